package check

import (
	"strings"

	"github.com/jandubois/snmp-probe/internal/probe"
)

// Verdict is the outcome of a pass. Its severity only ever rises.
type Verdict struct {
	Label     string
	Severity  probe.Severity
	Messages  []string
	Evaluated int // number of results absorbed
}

// NewVerdict returns an OK verdict for label.
func NewVerdict(label string) *Verdict {
	return &Verdict{Label: label}
}

// Failed returns the UNKNOWN verdict reporting err.
func Failed(label string, err error) *Verdict {
	return &Verdict{
		Label:    label,
		Severity: probe.SeverityUnknown,
		Messages: []string{err.Error()},
	}
}

// Absorb folds r into the verdict.
func (v *Verdict) Absorb(r Result) {
	v.Evaluated++
	if r.Severity > v.Severity {
		v.Severity = r.Severity
	}
	if r.Severity > probe.SeverityOK {
		v.Messages = append(v.Messages, r.Message)
	}
}

// String renders the single plugin output line.
func (v *Verdict) String() string {
	if v.Severity == probe.SeverityOK {
		return v.Label + ": OK"
	}
	return v.Label + ": " + strings.Join(v.Messages, ", ")
}

// Result converts the verdict into the probe JSON output format.
func (v *Verdict) Result() *probe.Result {
	messages := v.Messages
	if messages == nil {
		messages = []string{}
	}
	return &probe.Result{
		Status:  v.Severity.Status(),
		Message: v.String(),
		Metrics: map[string]any{
			"severity":  int(v.Severity),
			"evaluated": v.Evaluated,
			"problems":  len(v.Messages),
		},
		Data: map[string]any{
			"identifier": v.Label,
			"messages":   messages,
		},
	}
}
