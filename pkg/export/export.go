// Package export writes optimised schedules and convergence traces in
// formats meant for people and other tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/ecom/core/schedule"
)

// Format selects the encoding of a schedule document.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, csv, yaml or yml in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// Document is a schedule keyed by variable name, each variable holding one
// row per unit.
type Document struct {
	RunID       string                 `json:"run_id" yaml:"run_id"`
	Scene       string                 `json:"scene" yaml:"scene"`
	BestFitness float64                `json:"best_fitness" yaml:"best_fitness"`
	Variables   map[string][][]float64 `json:"variables" yaml:"variables"`
}

// FromCandidate copies every variable of x into a Document.
func FromCandidate(runID, scene string, fitness float64, x *schedule.Candidate) Document {
	doc := Document{RunID: runID, Scene: scene, BestFitness: fitness, Variables: map[string][][]float64{}}
	for _, v := range schedule.Vars() {
		doc.Variables[v.String()] = x.Get(v).Rows2D()
	}
	return doc
}

// Write encodes doc to w in the given format.
func Write(w io.Writer, f Format, doc Document) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, doc)
	case FormatCSV:
		return WriteCSV(w, doc)
	case FormatYAML:
		return WriteYAML(w, doc)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// WriteJSON writes the document as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteYAML writes the document as YAML.
func WriteYAML(w io.Writer, doc Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// WriteCSV writes one line per value with the header var,unit,t,value.
// Variables follow the schedule layout order; names unknown to the layout
// are skipped.
func WriteCSV(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"var", "unit", "t", "value"}); err != nil {
		return err
	}
	for _, v := range schedule.Vars() {
		rows := doc.Variables[v.String()]
		for u, row := range rows {
			for t, val := range row {
				rec := []string{
					v.String(),
					strconv.Itoa(u),
					strconv.Itoa(t),
					strconv.FormatFloat(val, 'f', -1, 64),
				}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
