package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestInfo(t *testing.T) {
	u, out, _ := newTestUI()
	u.Info("hello %s", "world")
	assert.Contains(t, out.String(), "hello world")
}

func TestSuccess(t *testing.T) {
	u, out, _ := newTestUI()
	u.Success("done %d", 42)
	assert.Contains(t, out.String(), "done 42")
}

func TestWarning(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Warning("careful %s", "now")
	assert.Contains(t, errOut.String(), "careful now")
}

func TestError(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Error("failed %s", "badly")
	assert.Contains(t, errOut.String(), "failed badly")
}

func TestVerboseLog_Enabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = true
	u.VerboseLog("detail %d", 1)
	assert.Contains(t, out.String(), "detail 1")
}

func TestVerboseLog_Disabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = false
	u.VerboseLog("detail %d", 1)
	assert.Empty(t, out.String())
}

func TestDryRunMsg_Enabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = true
	u.DryRunMsg("would create %s", "file")
	assert.Contains(t, errOut.String(), "[DRY-RUN]")
	assert.Contains(t, errOut.String(), "would create file")
}

func TestDryRunMsg_Disabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = false
	u.DryRunMsg("would create %s", "file")
	assert.Empty(t, errOut.String())
}

func TestColorHelpers(t *testing.T) {
	// Color helpers should return non-empty strings
	assert.NotEmpty(t, Cyan("test"))
	assert.NotEmpty(t, Green("test"))
	assert.NotEmpty(t, Yellow("test"))
	assert.NotEmpty(t, Red("test"))
}

func TestStatusColor(t *testing.T) {
	assert.Contains(t, StatusColor("Pending"), "Pending")
	assert.Contains(t, StatusColor("Solved"), "Solved")
	assert.Contains(t, StatusColor("Closed"), "Closed")
	assert.Equal(t, "unknown", StatusColor("unknown"))
}

func TestPriorityColor(t *testing.T) {
	assert.Contains(t, PriorityColor("High"), "High")
	assert.Contains(t, PriorityColor("Medium"), "Medium")
	assert.Contains(t, PriorityColor("Low"), "Low")
	assert.Equal(t, "urgent", PriorityColor("urgent"))
}

func TestStars(t *testing.T) {
	assert.Equal(t, "-", Stars(nil))

	four := 4
	s := Stars(&four)
	assert.Equal(t, 4, strings.Count(s, "\u2605"))
	assert.Equal(t, 1, strings.Count(s, "\u2606"))

	tooHigh := 9
	assert.Equal(t, 5, strings.Count(Stars(&tooHigh), "\u2605"))
}

func TestBar(t *testing.T) {
	assert.Empty(t, Bar(3, 0, 10))
	assert.Contains(t, Bar(5, 10, 10), " 5")
	assert.Equal(t, 5, strings.Count(Bar(5, 10, 10), "\u2588"))
	// Non-zero counts always get at least one cell.
	assert.Equal(t, 1, strings.Count(Bar(1, 100, 10), "\u2588"))
	assert.Equal(t, 0, strings.Count(Bar(0, 100, 10), "\u2588"))
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"Name", "Status"})
	require.NotNil(t, table)

	table.Append([]string{"Water", "Pending"})
	table.Append([]string{"PWD", "Closed"})
	err := table.Render()
	require.NoError(t, err)

	result := out.String()
	assert.True(t, strings.Contains(result, "Water") || strings.Contains(result, "WATER"),
		"table output should contain department names")
	assert.True(t, strings.Contains(result, "PWD"),
		"table output should contain department names")
}
