package imapconf

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/tbckr/imapdetect/internal/output"
)

// Result is the outcome of running the discovery pipeline for one address.
// Verified is nil when verification was skipped or no candidate was accepted.
type Result struct {
	Input      string      `json:"input"`
	Strategy   Strategy    `json:"strategy,omitempty"`
	Candidates []Candidate `json:"candidates"`
	Verified   *Candidate  `json:"verified,omitempty"`
}

// IsEmpty reports whether no strategy produced a candidate.
func (r *Result) IsEmpty() bool {
	return len(r.Candidates) == 0
}

// WritePlain writes one candidate per line as "host port tls|plain". When a
// candidate was verified only that candidate is written.
func (r *Result) WritePlain(w io.Writer) error {
	list := r.Candidates
	if r.Verified != nil {
		list = []Candidate{*r.Verified}
	}
	for _, c := range list {
		if _, err := fmt.Fprintf(w, "%s %d %s\n", c.Host, c.Port, c.Security()); err != nil {
			return err
		}
	}
	return nil
}

// WriteTable renders the candidate list as a table, marking the verified entry.
func (r *Result) WriteTable(w io.Writer) error {
	table := output.NewWrappingTable(w, 20, 40)
	table.Header([]string{"Input", "Strategy", "Host", "Port", "Security", "Verified"})
	if err := table.Bulk(r.rows()); err != nil {
		return err
	}
	return table.Render()
}

func (r *Result) rows() [][]string {
	rows := make([][]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		verified := ""
		if r.Verified != nil && *r.Verified == c {
			verified = "yes"
		}
		rows = append(rows, []string{
			r.Input, string(r.Strategy), c.Host, strconv.Itoa(c.Port), c.Security(), verified,
		})
	}
	return rows
}

// MultiResult aggregates results for several addresses.
type MultiResult struct {
	Results []*Result
}

// IsEmpty reports whether all contained results are empty.
func (m *MultiResult) IsEmpty() bool {
	for _, r := range m.Results {
		if !r.IsEmpty() {
			return false
		}
	}
	return true
}

// MarshalJSON serializes the multi-result as a JSON array of individual results.
func (m *MultiResult) MarshalJSON() ([]byte, error) {
	if m.Results == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m.Results)
}

// WritePlain writes every result, prefixing each line with its input.
func (m *MultiResult) WritePlain(w io.Writer) error {
	for _, r := range m.Results {
		list := r.Candidates
		if r.Verified != nil {
			list = []Candidate{*r.Verified}
		}
		for _, c := range list {
			if _, err := fmt.Fprintf(w, "%s %s %d %s\n", r.Input, c.Host, c.Port, c.Security()); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteTable renders all results in a single table.
func (m *MultiResult) WriteTable(w io.Writer) error {
	var rows [][]string
	for _, r := range m.Results {
		rows = append(rows, r.rows()...)
	}
	table := output.NewWrappingTable(w, 20, 40)
	table.Header([]string{"Input", "Strategy", "Host", "Port", "Security", "Verified"})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
