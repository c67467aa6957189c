package check

import (
	"context"
	"log/slog"
	"time"

	units "github.com/docker/go-units"
	"github.com/jandubois/snmp-probe/internal/config"
	"github.com/jandubois/snmp-probe/internal/oid"
	"github.com/jandubois/snmp-probe/internal/probe"
	"github.com/jandubois/snmp-probe/internal/snmp"
)

// Options control an evaluation pass.
type Options struct {
	// Strict makes an identifier the agent does not have count as UNKNOWN
	// instead of being skipped.
	Strict bool
	Logger *slog.Logger
}

// Engine runs evaluation passes of one configuration against one agent.
type Engine struct {
	model     *config.Model
	client    QueryClient
	expander  *Expander
	evaluator *Evaluator
	strict    bool
	log       *slog.Logger
}

// New creates an Engine.
func New(model *config.Model, client QueryClient, opts Options) *Engine {
	logger := orDiscard(opts.Logger)
	return &Engine{
		model:     model,
		client:    client,
		expander:  NewExpander(model, client, logger),
		evaluator: NewEvaluator(model, NewDescriber(model, client, logger), logger),
		strict:    opts.Strict,
		log:       logger,
	}
}

// Check runs a pass and always returns a verdict: any error becomes an
// UNKNOWN verdict carrying the error message.
func (e *Engine) Check(ctx context.Context) *Verdict {
	v, err := e.Run(ctx)
	if err != nil {
		e.log.Warn("check failed", "identifier", e.model.Identifier, "error", err)
		return Failed(e.model.Identifier, err)
	}
	return v
}

// Run performs Expand, Query and Evaluate in order.
func (e *Engine) Run(ctx context.Context) (*Verdict, error) {
	start := time.Now()

	ids, err := e.Expand(ctx)
	if err != nil {
		return nil, err
	}
	vbs, err := e.Query(ctx, ids)
	if err != nil {
		return nil, err
	}
	v, err := e.Evaluate(ctx, vbs)
	if err != nil {
		return nil, err
	}

	e.log.Info("check complete",
		"identifier", e.model.Identifier,
		"severity", v.Severity.String(),
		"evaluated", v.Evaluated,
		"problems", len(v.Messages),
		"elapsed", units.HumanDuration(time.Since(start)),
	)
	return v, nil
}

// Expand returns the query list: every configured base identifier expanded
// in document order. Duplicates are kept.
func (e *Engine) Expand(ctx context.Context) ([]oid.OID, error) {
	var ids []oid.OID
	for _, base := range e.model.Keys() {
		expanded, err := e.expander.Expand(ctx, base)
		if err != nil {
			return nil, err
		}
		ids = append(ids, expanded...)
	}
	e.log.Info("expanded", "bases", len(e.model.Keys()), "identifiers", len(ids))
	return ids, nil
}

// Query fetches every identifier in one batched request.
func (e *Engine) Query(ctx context.Context, ids []oid.OID) ([]snmp.Varbind, error) {
	if len(ids) == 0 {
		e.log.Info("nothing to query")
		return nil, nil
	}
	vbs, err := e.client.GetMany(ctx, ids)
	if err != nil {
		return nil, transportError(err)
	}
	e.log.Info("queried", "requested", len(ids), "received", len(vbs))
	return vbs, nil
}

// Evaluate classifies every fetched value and folds the results into a verdict.
func (e *Engine) Evaluate(ctx context.Context, vbs []snmp.Varbind) (*Verdict, error) {
	v := NewVerdict(e.model.Identifier)
	for _, vb := range vbs {
		if vb.NotFound {
			e.log.Info("no such instance", "oid", vb.OID.String(), "strict", e.strict)
			if e.strict {
				v.Absorb(Result{
					OID:      vb.OID,
					Severity: probe.SeverityUnknown,
					Message:  vb.OID.String() + " couldn't be checked",
				})
			}
			continue
		}
		res, err := e.evaluator.Evaluate(ctx, vb.OID, vb.Value)
		if err != nil {
			return nil, err
		}
		v.Absorb(res)
	}
	return v, nil
}
