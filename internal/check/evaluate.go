package check

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jandubois/snmp-probe/internal/config"
	"github.com/jandubois/snmp-probe/internal/oid"
	"github.com/jandubois/snmp-probe/internal/probe"
	"github.com/jandubois/snmp-probe/internal/rule"
	"github.com/jandubois/snmp-probe/internal/snmp"
)

// Result is the classification of one fetched value.
type Result struct {
	OID      oid.OID
	Value    snmp.Value
	Severity probe.Severity
	Message  string // empty when Severity is OK
}

// Evaluator classifies values against their value_map.
type Evaluator struct {
	model     *config.Model
	describer *Describer
	log       *slog.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(model *config.Model, describer *Describer, logger *slog.Logger) *Evaluator {
	return &Evaluator{model: model, describer: describer, log: orDiscard(logger)}
}

// Evaluate classifies value. Rules are tried in order and a later rule
// replaces the current choice only with a strictly higher severity, so the
// first of several equally severe matches wins. Values with no value_map
// are OK.
func (ev *Evaluator) Evaluate(ctx context.Context, id oid.OID, value snmp.Value) (Result, error) {
	res := Result{OID: id, Value: value}

	rules, found, err := ev.model.ValueMap(id)
	if err != nil {
		return res, err
	}
	if !found {
		ev.log.Debug("no value_map", "oid", id.String())
		return res, nil
	}

	text := value.String()
	best := -1
	for i, r := range rules {
		ok, err := rule.Match(r.Condition, text)
		if err != nil {
			return res, fmt.Errorf("%s value_map rule %d: %w", id, i, err)
		}
		if !ok {
			continue
		}
		sev := r.Severity
		if r.SeverityTemplate != "" {
			sev, err = rule.Severity(r.SeverityTemplate, text)
			if err != nil {
				return res, fmt.Errorf("%s value_map rule %d: %w", id, i, err)
			}
		}
		if sev > res.Severity {
			res.Severity = sev
			best = i
		}
	}

	if best < 0 {
		ev.log.Debug("value ok", "oid", id.String(), "value", text)
		return res, nil
	}

	label, err := ev.describer.Describe(ctx, id)
	if err != nil {
		return res, err
	}
	res.Message = label + " = " + text
	if ann := rules[best].Annotation; ann != "" {
		res.Message += " " + rule.Render(ann, text)
	}
	ev.log.Debug("value escalated",
		"oid", id.String(),
		"value", text,
		"severity", res.Severity.String(),
		"rule", best,
	)
	return res, nil
}
