package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/ecom/core/schedule"
)

func testDoc(t *testing.T) Document {
	t.Helper()
	s, err := schedule.NewSchema(schedule.Dims{Steps: 2, Generators: 1})
	require.NoError(t, err)
	x := s.NewCandidate()
	x.Get(schedule.GenActPower).Set(0, 1, 3.5)
	x.Get(schedule.PImp).Set(0, 0, 1.25)
	return FromCandidate("run-1", "north", 42, x)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testDoc(t)))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"var", "unit", "t", "value"}, recs[0])
	assert.Equal(t, []string{"genActPower", "0", "1", "3.5"}, recs[2])
	assert.Contains(t, recs, []string{"pImp", "0", "0", "1.25"})

	// three generator variables and two grid vectors over two steps
	assert.Len(t, recs, 1+3*2+2*2)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, testDoc(t)))

	var back Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, "north", back.Scene)
	assert.Equal(t, [][]float64{{0, 3.5}}, back.Variables["genActPower"])
	assert.Empty(t, back.Variables["storEnerState"])
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatYAML, testDoc(t)))
	assert.Contains(t, buf.String(), "run_id: run-1")

	var back Document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, 42.0, back.BestFitness)
	assert.Equal(t, [][]float64{{1.25, 0}}, back.Variables["pImp"])
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
	assert.Error(t, Write(&bytes.Buffer{}, Format("xml"), Document{}))
}

func TestConvergenceChartHTML(t *testing.T) {
	var buf bytes.Buffer
	err := ConvergenceChartHTML(&buf, "north convergence",
		Series{Name: "run-a", Trace: []float64{10, 8, 8, 5}},
		Series{Name: "run-b", Trace: []float64{12, 7}},
	)
	require.NoError(t, err)
	html := buf.String()
	assert.True(t, strings.Contains(html, "<html"), "not an html page")
	assert.Contains(t, html, "north convergence")
	assert.Contains(t, html, "run-b")

	assert.Error(t, ConvergenceChartHTML(&buf, "empty"))
}
