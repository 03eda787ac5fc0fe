package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	data := `community:
  generators:
    upper: [[4, 4], [1, 2]]
    is_renewable: [1, 2]
  loads:
    demand: [[2, 3]]
    ens_cost: [1]
  import:
    limit: [3, 3]
    price: [0.2, 0.2]
optimizer:
  n_iter: 3
  pop_size: 4
scene:
  name: cli
  workers: 1
runlog:
  type: jsonl
  conf:
    path: ` + filepath.Join(dir, "runs.jsonl") + `
log:
  level: error
`
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path, dir
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestRunHistoryPlot(t *testing.T) {
	cfg, dir := writeTestConfig(t)
	csvPath := filepath.Join(dir, "best.csv")

	out := execute(t, "run", "-c", cfg, "--runs", "2", "--seed", "3", "-o", csvPath, "--format", "csv")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "RUN"))

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "var,unit,t,value\n"))

	out = execute(t, "history", "-c", cfg, "--scene", "cli")
	lines = strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	id := strings.Fields(lines[1])[0]

	out = execute(t, "history", "-c", cfg, "--id", id, "--format", "json")
	assert.Contains(t, out, `"run_id": "`+id+`"`)

	html := filepath.Join(dir, "chart.html")
	out = execute(t, "plot", "-c", cfg, "-o", html)
	assert.Contains(t, out, "wrote 2 runs")
	_, err = os.Stat(html)
	assert.NoError(t, err)
}
