package triallog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Record is the finalized output of one trial: for A agents and F
// completed formation cycles it carries 1 + A + F + F + F data fields in
// fixed order.
type Record struct {
	RunID string
	Trial int

	Agents          []string
	Distances       []float64 // per agent, metres
	ConvergenceSecs []float64 // per formation cycle
	AvoidanceSecs   []float64 // per formation cycle
	Assignments     []int     // per formation cycle
}

// Fields returns the record as CSV fields in the canonical column order:
// trial, per-agent distances, per-cycle convergence times, per-cycle
// avoidance times, per-cycle assignment counts.
func (r Record) Fields() []string {
	row := []string{fmt.Sprintf("%d", r.Trial)}
	for _, d := range r.Distances {
		row = append(row, fmt.Sprintf("%.6f", d))
	}
	for _, s := range r.ConvergenceSecs {
		row = append(row, fmt.Sprintf("%.6f", s))
	}
	for _, s := range r.AvoidanceSecs {
		row = append(row, fmt.Sprintf("%.6f", s))
	}
	for _, n := range r.Assignments {
		row = append(row, fmt.Sprintf("%d", n))
	}
	return row
}

// WriteCSV appends the record as one CSV row to w.
func (r Record) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.Fields()); err != nil {
		return fmt.Errorf("failed to write trial row: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// AppendCSV appends the record to the file at path, creating it if
// needed. The output is append-only: one row per trial, no header.
func (r Record) AppendCSV(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open datafile: %w", err)
	}
	defer f.Close()
	return r.WriteCSV(f)
}
