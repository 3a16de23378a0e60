package cmd

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCorpus = filepath.Join("..", "internal", "classifier", "testdata", "corpus.csv")

func TestClassify_KeywordsWithoutCorpus(t *testing.T) {
	cliEnv(t)

	require.NoError(t, classifyRun("Street light pole is broken"))
	out := outText(t)
	assert.Contains(t, out, "Electricity")
	assert.Contains(t, out, `keyword "light"`)
	assert.Contains(t, out, "Medium")

	c, err := getClassifier()
	require.NoError(t, err)
	assert.False(t, c.Available())
}

func TestClassify_ModelFromCorpus(t *testing.T) {
	cliEnv(t)
	viper.Set("corpus_path", testCorpus)

	require.NoError(t, classifyRun("Flames seen near the warehouse"))
	out := outText(t)
	assert.Contains(t, out, "Fire")
	assert.Contains(t, out, "(model)")
}

func TestClassify_DefaultDepartment(t *testing.T) {
	cliEnv(t)

	require.NoError(t, classifyRun("something unclear happened"))
	out := outText(t)
	assert.Contains(t, out, "Municipal")
	assert.Contains(t, out, "(default)")
	assert.Contains(t, out, "Low")
}

func TestClassifyEval(t *testing.T) {
	cliEnv(t)
	viper.Set("corpus_path", testCorpus)

	require.NoError(t, classifyEvalRun(""))
	out := outText(t)
	assert.Contains(t, out, "Scored 28 examples")
	assert.Contains(t, out, "Accuracy:")
	assert.Contains(t, out, "Electricity")
}

func TestClassifyEval_MissingCorpus(t *testing.T) {
	cliEnv(t)
	err := classifyEvalRun(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "-", percent(0, 0))
	assert.Equal(t, "50.0%", percent(1, 2))
}
