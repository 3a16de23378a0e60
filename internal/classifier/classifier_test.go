package classifier

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/joescharf/civic/internal/models"
)

// fixedModel always predicts the same label.
type fixedModel struct {
	label string
	err   error
	calls int
}

func (m *fixedModel) Predict(string) (string, error) {
	m.calls++
	return m.label, m.err
}

// panickyModel simulates an internal fault in the statistical step.
type panickyModel struct{}

func (panickyModel) Predict(string) (string, error) { panic("corrupt weights") }

func TestPredict_Priority(t *testing.T) {
	c := New()
	tests := []struct {
		text     string
		expected models.Priority
	}{
		// High
		{"There is a fire in the building", models.PriorityHigh},
		{"Gas leak near the school", models.PriorityHigh},
		{"LIVE WIRE hanging over the lane", models.PriorityHigh},
		{"Road accident at the crossing", models.PriorityHigh},
		{"Wall collapse after rain", models.PriorityHigh},
		{"Dog attack on a child", models.PriorityHigh},

		// High beats Medium
		{"Garbage heap caught fire", models.PriorityHigh},
		{"Traffic jam after the blast", models.PriorityHigh},

		// Medium
		{"Garbage not collected for a week", models.PriorityMedium},
		{"Sewage overflowing on the street", models.PriorityMedium},
		{"Mosquito breeding in stagnant pools", models.PriorityMedium},
		{"Bicycle theft outside the library", models.PriorityMedium},
		{"Pipe leak in the basement", models.PriorityMedium},

		// Low (default)
		{"Park bench paint faded", models.PriorityLow},
		{"Please add a new bus shelter", models.PriorityLow},
		{"", models.PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, prio := c.Predict(tt.text)
			assert.Equal(t, tt.expected, prio)
		})
	}
}

func TestPredict_DepartmentKeywords(t *testing.T) {
	c := New()
	tests := []struct {
		text     string
		expected models.Department
	}{
		{"Big pothole on the main road", models.DepartmentPWD},
		{"Tap has been dry since Monday", models.DepartmentWater},
		{"Transformer humming loudly", models.DepartmentElectricity},
		{"Loud noise from the hall every night", models.DepartmentPolice},
		{"Malaria cases rising in ward nine", models.DepartmentHealth},
		{"Cylinder stored unsafely in the shop", models.DepartmentFire},
		{"Public toilet is locked", models.DepartmentMunicipal},

		// Declaration order breaks ties: Electricity before Fire.
		{"Fire broke out at the power station", models.DepartmentElectricity},
		// Water before Police.
		{"Water tank stolen from the terrace", models.DepartmentWater},
		// Police before Municipal.
		{"Garbage truck blocking traffic", models.DepartmentPolice},

		// No keyword, no model.
		{"Something odd is happening", models.DepartmentMunicipal},
		{"", models.DepartmentMunicipal},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			dept, _ := c.Predict(tt.text)
			assert.Equal(t, tt.expected, dept)
		})
	}
}

func TestPredict_KeywordBeatsModel(t *testing.T) {
	m := &fixedModel{label: "Police"}
	c := New(WithModel(m))

	dept, _ := c.Predict("Deep pothole outside gate 3")
	assert.Equal(t, models.DepartmentPWD, dept)

	p := c.Explain("Deep pothole outside gate 3")
	assert.Equal(t, SourceKeyword, p.DepartmentSource)
	assert.Equal(t, "pothole", p.DepartmentKeyword)
	assert.Equal(t, models.DepartmentPolice, p.ModelDepartment)
}

func TestPredict_ModelUsedWithoutKeyword(t *testing.T) {
	c := New(WithModel(&fixedModel{label: "Health"}))

	dept, prio := c.Predict("Clinic closed during working hours")
	assert.Equal(t, models.DepartmentHealth, dept)
	assert.Equal(t, models.PriorityLow, prio)
	assert.Equal(t, SourceModel, c.Explain("Clinic closed").DepartmentSource)
}

func TestPredict_ModelFaultsFallBackToDefault(t *testing.T) {
	tests := []struct {
		name  string
		model Predictor
	}{
		{"error", &fixedModel{err: errors.New("boom")}},
		{"panic", panickyModel{}},
		{"unknown label", &fixedModel{label: "Transport"}},
		{"empty label", &fixedModel{label: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(WithModel(tt.model))

			dept, prio := c.Predict("Clinic closed during working hours")
			assert.Equal(t, models.DepartmentMunicipal, dept)
			assert.Equal(t, models.PriorityLow, prio)

			// The keyword pass still runs after a fault.
			dept, _ = c.Predict("Broken street divider")
			assert.Equal(t, models.DepartmentPWD, dept)
		})
	}
}

func TestPredict_WordBoundaries(t *testing.T) {
	c := New()
	tests := []struct {
		text         string
		expectedDept models.Department
		expectedPrio models.Priority
	}{
		// "sparking" must not match "spark", "firewall" must not match "fire".
		{"Firewall of the office is sparking", models.DepartmentMunicipal, models.PriorityLow},
		// "roadways" is not "road", "leaks" is not "leak".
		{"Roadways office leaks paperwork", models.DepartmentMunicipal, models.PriorityLow},
		// "currently" is not "current", "powerful" is not "power".
		{"Currently a powerful smellless breeze", models.DepartmentMunicipal, models.PriorityLow},
		// "taps" and "tapping" are not "tap".
		{"Tapping sound from the taps", models.DepartmentMunicipal, models.PriorityLow},
		// "carpooling" and "classroom" contain no configured keyword.
		{"Carpooling near the classroom", models.DepartmentMunicipal, models.PriorityLow},
		// Punctuation is a boundary.
		{"fire!", models.DepartmentFire, models.PriorityHigh},
		{"(pothole)", models.DepartmentPWD, models.PriorityLow},
		// Multi-word keywords.
		{"gas leak", models.DepartmentFire, models.PriorityHigh},
		{"gasleak", models.DepartmentMunicipal, models.PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			dept, prio := c.Predict(tt.text)
			assert.Equal(t, tt.expectedDept, dept)
			assert.Equal(t, tt.expectedPrio, prio)
		})
	}
}

func TestKeywordList_Match(t *testing.T) {
	list := compileKeywords([]string{"car", "class", " Gas Leak ", ""})
	require.Len(t, list, 3)

	_, ok := list.Match("carpooling")
	assert.False(t, ok)
	_, ok = list.Match("classroom")
	assert.False(t, ok)

	kw, ok := list.Match("my car is parked")
	assert.True(t, ok)
	assert.Equal(t, "car", kw)

	kw, ok = list.Match("a gas leak here")
	assert.True(t, ok)
	assert.Equal(t, "gas leak", kw)

	// The first listed keyword wins even if a later one appears earlier in the text.
	kw, ok = list.Match("class trip by car")
	assert.True(t, ok)
	assert.Equal(t, "car", kw)
}

func TestPredict_Scenario(t *testing.T) {
	c := New(WithModel(&fixedModel{label: "Water"}))

	p := c.Explain("Live wire sparking near the electricity pole, urgent!")
	assert.Equal(t, models.PriorityHigh, p.Priority)
	assert.Equal(t, "live wire", p.PriorityKeyword)
	assert.Equal(t, models.DepartmentElectricity, p.Department)
	assert.Equal(t, "pole", p.DepartmentKeyword)
}

func TestPredict_Idempotent(t *testing.T) {
	c, err := FromCorpusFile(filepath.Join("testdata", "corpus.csv"))
	require.NoError(t, err)

	inputs := []string{
		"Flames seen near the warehouse",
		"Muddy liquid from faucet",
		"Pothole and garbage",
		"",
	}
	for _, in := range inputs {
		d1, p1 := c.Predict(in)
		d2, p2 := c.Predict(in)
		assert.Equal(t, d1, d2, in)
		assert.Equal(t, p1, p2, in)
	}
}

func TestFromCorpusFile_TrainsModel(t *testing.T) {
	c, err := FromCorpusFile(filepath.Join("testdata", "corpus.csv"))
	require.NoError(t, err)
	assert.True(t, c.Available())

	tests := []struct {
		text     string
		expected models.Department
	}{
		{"electricity outage since morning", models.DepartmentElectricity},
		{"muddy liquid from the faucet", models.DepartmentWater},
		{"drunk men near the bus stand", models.DepartmentPolice},
		{"cracks on the flyover", models.DepartmentPWD},
		{"no doctor at the clinic", models.DepartmentHealth},
		{"flames from the warehouse", models.DepartmentFire},
		{"stray cattle in the square", models.DepartmentMunicipal},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			p := c.Explain(tt.text)
			assert.Equal(t, tt.expected, p.Department)
			assert.Equal(t, SourceModel, p.DepartmentSource)
		})
	}

	// The keyword override still wins over a trained model.
	dept, _ := c.Predict("flames from the warehouse near the pothole")
	assert.Equal(t, models.DepartmentPWD, dept)
}

func TestFromCorpusFile_MissingCorpusDegrades(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c, err := FromCorpusFile(filepath.Join(t.TempDir(), "missing.csv"), WithLogger(zap.New(core)))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	require.NotNil(t, c)
	assert.False(t, c.Available())
	assert.Equal(t, 0, logs.Len())

	dept, prio := c.Predict("Overflowing drain near temple")
	assert.Equal(t, models.DepartmentWater, dept)
	assert.Equal(t, models.PriorityLow, prio)
}

func TestFromCorpusFile_NoPath(t *testing.T) {
	c, err := FromCorpusFile("")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, c.Available())
}

func TestTrain_FailureKeepsPreviousModel(t *testing.T) {
	m := &fixedModel{label: "Fire"}
	c := New(WithModel(m))

	err := c.Train(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	examples, err := LoadCorpus(filepath.Join("testdata", "empty_text.csv"))
	require.NoError(t, err)
	err = c.Train(examples)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "empty vocabulary")

	dept, _ := c.Predict("something unusual")
	assert.Equal(t, models.DepartmentFire, dept)
	assert.Equal(t, 1, m.calls)
}

func TestTrain_LogsSuccess(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	c := New(WithLogger(zap.New(core)))

	examples, err := LoadCorpus(filepath.Join("testdata", "corpus.csv"))
	require.NoError(t, err)
	require.NoError(t, c.Train(examples))

	entries := logs.FilterMessage("classifier trained").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(len(examples)), entries[0].ContextMap()["examples"])
}

func TestReadCorpus(t *testing.T) {
	in := "text,label,priority\n\"Pipe burst, water everywhere\",Water,High\nNo lights,Electricity\n"
	examples, err := ReadCorpus(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, examples, 2)

	assert.Equal(t, "Pipe burst, water everywhere", examples[0].Text)
	assert.Equal(t, "Water", examples[0].Department)
	assert.Equal(t, "High", examples[0].Priority)
	assert.Equal(t, "", examples[1].Priority)
}

func TestReadCorpus_Errors(t *testing.T) {
	_, err := ReadCorpus(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadCorpus(strings.NewReader("text,label,priority\nonly-one-column\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestEvaluate(t *testing.T) {
	examples, err := LoadCorpus(filepath.Join("testdata", "corpus.csv"))
	require.NoError(t, err)

	trained := New()
	require.NoError(t, trained.Train(examples))
	ev := trained.Evaluate(examples)
	assert.Equal(t, len(examples), ev.Total)
	assert.GreaterOrEqual(t, ev.Accuracy(), 0.9)

	// Keyword-only routing sends everything without a keyword to Municipal.
	keywordOnly := New().Evaluate(examples)
	assert.Less(t, keywordOnly.Accuracy(), ev.Accuracy())
	assert.Equal(t, 4, keywordOnly.ByDepartment[models.DepartmentMunicipal].Correct)

	assert.Equal(t, 0.0, Evaluation{}.Accuracy())
}

func TestKeywordTable_IsCopy(t *testing.T) {
	table := KeywordTable()
	table[models.DepartmentPWD][0] = "changed"

	dept, _ := New().Predict("road closed")
	assert.Equal(t, models.DepartmentPWD, dept)
	assert.Len(t, table, len(models.Departments))
}
