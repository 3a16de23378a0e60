package classifier

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// DefaultAlpha is the additive smoothing applied to term weights.
const DefaultAlpha = 1.0

// Model is a multinomial naive Bayes text model over TF-IDF features.
// It is immutable once fitted and safe for concurrent use.
type Model struct {
	vec           *vectorizer
	classes       []string
	logPrior      []float64
	logLikelihood [][]float64 // [class][term]
}

// Fit trains a model mapping texts to labels.
func Fit(texts, labels []string, alpha float64) (*Model, error) {
	if len(texts) == 0 {
		return nil, errors.New("no training examples")
	}
	if len(texts) != len(labels) {
		return nil, fmt.Errorf("got %d texts but %d labels", len(texts), len(labels))
	}
	if alpha <= 0 {
		alpha = DefaultAlpha
	}

	docs := make([][]string, len(texts))
	for i, t := range texts {
		docs[i] = tokenize(t)
	}
	vec, err := fitVectorizer(docs)
	if err != nil {
		return nil, err
	}

	classIndex := make(map[string]int)
	for _, l := range labels {
		classIndex[l] = 0
	}
	classes := make([]string, 0, len(classIndex))
	for l := range classIndex {
		classes = append(classes, l)
	}
	sort.Strings(classes)
	for i, l := range classes {
		classIndex[l] = i
	}

	vocabSize := len(vec.idf)
	classCount := make([]float64, len(classes))
	featureCount := make([][]float64, len(classes))
	for c := range featureCount {
		featureCount[c] = make([]float64, vocabSize)
	}
	for i, tokens := range docs {
		c := classIndex[labels[i]]
		classCount[c]++
		for _, tw := range vec.transform(tokens) {
			featureCount[c][tw.term] += tw.weight
		}
	}

	m := &Model{
		vec:           vec,
		classes:       classes,
		logPrior:      make([]float64, len(classes)),
		logLikelihood: make([][]float64, len(classes)),
	}
	total := float64(len(texts))
	for c := range classes {
		m.logPrior[c] = math.Log(classCount[c] / total)

		var sum float64
		for _, w := range featureCount[c] {
			sum += w
		}
		denom := math.Log(sum + alpha*float64(vocabSize))
		ll := make([]float64, vocabSize)
		for term, w := range featureCount[c] {
			ll[term] = math.Log(w+alpha) - denom
		}
		m.logLikelihood[c] = ll
	}
	return m, nil
}

// Classes returns the labels known to the model, sorted.
func (m *Model) Classes() []string {
	return append([]string(nil), m.classes...)
}

// Predict returns the most likely label for text. Exact ties go to the label
// that sorts first.
func (m *Model) Predict(text string) (string, error) {
	if m == nil || len(m.classes) == 0 {
		return "", errors.New("model not fitted")
	}
	x := m.vec.transform(tokenize(text))

	best, bestScore := 0, math.Inf(-1)
	for c := range m.classes {
		score := m.logPrior[c]
		for _, tw := range x {
			score += tw.weight * m.logLikelihood[c][tw.term]
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return m.classes[best], nil
}
