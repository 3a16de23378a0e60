// Package classifier assigns a department and a priority to complaint text.
//
// Priority is derived from keywords only. Department comes from a statistical
// model when one is fitted, and a keyword match always overrides the model.
package classifier

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/joescharf/civic/internal/models"
)

// ErrUnavailable means the statistical model could not be fitted. The
// classifier keeps working on keywords alone.
var ErrUnavailable = errors.New("classifier model unavailable")

// Predictor maps free text to a department label.
type Predictor interface {
	Predict(text string) (string, error)
}

// Source records how the department of a prediction was decided.
type Source string

const (
	SourceKeyword Source = "keyword"
	SourceModel   Source = "model"
	SourceDefault Source = "default"
)

// Prediction is the full result of classifying a text.
type Prediction struct {
	Department        models.Department
	Priority          models.Priority
	DepartmentSource  Source
	DepartmentKeyword string            // keyword that forced the department, if any
	PriorityKeyword   string            // keyword that raised the priority, if any
	ModelDepartment   models.Department // raw model output, empty without a usable prediction
}

// Classifier is safe for concurrent use. Train may be called while
// predictions run; each prediction sees either the old or the new model.
type Classifier struct {
	logger *zap.Logger
	model  atomic.Pointer[predictorBox]
	alpha  float64

	high        keywordList
	medium      keywordList
	departments []departmentRule
}

type predictorBox struct {
	p Predictor
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithModel installs an already fitted predictor.
func WithModel(p Predictor) Option {
	return func(c *Classifier) {
		if p != nil {
			c.model.Store(&predictorBox{p: p})
		}
	}
}

// WithAlpha sets the smoothing used by Train.
func WithAlpha(alpha float64) Option {
	return func(c *Classifier) { c.alpha = alpha }
}

// New returns a classifier. Without WithModel or a later Train it assigns
// departments by keyword only.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		logger:      zap.NewNop(),
		alpha:       DefaultAlpha,
		high:        compileKeywords(highPriorityKeywords),
		medium:      compileKeywords(mediumPriorityKeywords),
		departments: compileDepartmentRules(departmentKeywords),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromCorpusFile builds a classifier and fits it on the CSV corpus at path.
// The returned classifier is always usable; a non-nil error wraps
// ErrUnavailable and means it runs on keywords only.
func FromCorpusFile(path string, opts ...Option) (*Classifier, error) {
	c := New(opts...)
	if path == "" {
		return c, fmt.Errorf("%w: no corpus configured", ErrUnavailable)
	}
	examples, err := LoadCorpus(path)
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := c.Train(examples); err != nil {
		return c, err
	}
	return c, nil
}

// Train fits the department model on examples and swaps it in. On failure
// the previous model stays active.
func (c *Classifier) Train(examples []Example) error {
	texts := make([]string, len(examples))
	labels := make([]string, len(examples))
	for i, ex := range examples {
		texts[i] = ex.Text
		labels[i] = ex.Department
	}
	m, err := Fit(texts, labels, c.alpha)
	if err != nil {
		return fmt.Errorf("%w: fit: %v", ErrUnavailable, err)
	}
	c.model.Store(&predictorBox{p: m})
	c.logger.Info("classifier trained",
		zap.Int("examples", len(examples)),
		zap.Strings("classes", m.Classes()))
	return nil
}

// Available reports whether a statistical model is installed.
func (c *Classifier) Available() bool {
	return c.model.Load() != nil
}

// Predict returns the department and priority for text.
func (c *Classifier) Predict(text string) (models.Department, models.Priority) {
	p := c.Explain(text)
	return p.Department, p.Priority
}

// Explain classifies text and reports which rule decided each field.
func (c *Classifier) Explain(text string) Prediction {
	lower := strings.ToLower(text)
	p := Prediction{
		Department:       models.DepartmentMunicipal,
		Priority:         models.PriorityLow,
		DepartmentSource: SourceDefault,
	}

	if kw, ok := c.high.Match(lower); ok {
		p.Priority, p.PriorityKeyword = models.PriorityHigh, kw
	} else if kw, ok := c.medium.Match(lower); ok {
		p.Priority, p.PriorityKeyword = models.PriorityMedium, kw
	}

	if d, ok := c.modelPredict(text); ok {
		p.Department, p.DepartmentSource, p.ModelDepartment = d, SourceModel, d
	}

	for _, rule := range c.departments {
		if kw, ok := rule.keywords.Match(lower); ok {
			p.Department, p.DepartmentSource, p.DepartmentKeyword = rule.department, SourceKeyword, kw
			break
		}
	}
	return p
}

// modelPredict runs the statistical model. Any fault, including a panic or
// a label outside the department set, counts as no prediction.
func (c *Classifier) modelPredict(text string) (dept models.Department, ok bool) {
	box := c.model.Load()
	if box == nil {
		return "", false
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug("model prediction panicked", zap.Any("panic", r))
			dept, ok = "", false
		}
	}()

	label, err := box.p.Predict(text)
	if err != nil {
		c.logger.Debug("model prediction failed", zap.Error(err))
		return "", false
	}
	d, valid := models.ParseDepartment(label)
	if !valid {
		c.logger.Debug("model predicted unknown department", zap.String("label", label))
		return "", false
	}
	return d, true
}
