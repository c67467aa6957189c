package check

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jandubois/snmp-probe/internal/config"
	"github.com/jandubois/snmp-probe/internal/oid"
	"github.com/jandubois/snmp-probe/internal/rule"
)

const indexPrefix = "index_oid:"

// maxInterval bounds the number of identifiers a "lo-hi" range may cover.
const maxInterval = 1 << 16

// RangeKind selects how a base identifier is expanded.
type RangeKind int

const (
	RangeSingle   RangeKind = iota // no range: the base identifier itself
	RangeInterval                  // "lo-hi"
	RangeList                      // "a,b,c"
	RangeIndex                     // "index_oid:<oid>"
)

// Range is a parsed range expression.
type Range struct {
	Kind    RangeKind
	Lo, Hi  uint32   // RangeInterval
	List    []uint32 // RangeList
	Source  oid.OID  // RangeIndex: the table whose values are the indices
	Literal string
}

// ParseRange classifies a range expression.
func ParseRange(s string) (Range, error) {
	r := Range{Literal: s}
	switch {
	case strings.HasPrefix(s, indexPrefix):
		src, err := oid.Parse(strings.TrimPrefix(s, indexPrefix))
		if err != nil {
			return Range{}, fmt.Errorf("%w %q: %v", ErrRange, s, err)
		}
		r.Kind, r.Source = RangeIndex, src
	case strings.Contains(s, "-"):
		lo, hi, ok := strings.Cut(s, "-")
		if !ok || strings.Contains(hi, "-") {
			return Range{}, fmt.Errorf("%w %q: expected lo-hi", ErrRange, s)
		}
		l, err := parseIndex(lo)
		if err != nil {
			return Range{}, fmt.Errorf("%w %q: %v", ErrRange, s, err)
		}
		h, err := parseIndex(hi)
		if err != nil {
			return Range{}, fmt.Errorf("%w %q: %v", ErrRange, s, err)
		}
		if l > h {
			return Range{}, fmt.Errorf("%w %q: lower bound exceeds upper bound", ErrRange, s)
		}
		if uint64(h)-uint64(l)+1 > maxInterval {
			return Range{}, fmt.Errorf("%w %q: covers more than %d identifiers", ErrRange, s, maxInterval)
		}
		r.Kind, r.Lo, r.Hi = RangeInterval, l, h
	default:
		for _, part := range strings.Split(s, ",") {
			n, err := parseIndex(part)
			if err != nil {
				return Range{}, fmt.Errorf("%w %q: %v", ErrRange, s, err)
			}
			r.List = append(r.List, n)
		}
		r.Kind = RangeList
	}
	return r, nil
}

func parseIndex(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%q is not a non-negative integer", s)
	}
	return uint32(n), nil
}

// Expander turns configured base identifiers into the identifiers to query.
type Expander struct {
	model  *config.Model
	client QueryClient
	log    *slog.Logger
}

// NewExpander creates an Expander. The client is only used by index ranges.
func NewExpander(model *config.Model, client QueryClient, logger *slog.Logger) *Expander {
	return &Expander{model: model, client: client, log: orDiscard(logger)}
}

// Expand returns the identifiers covered by base, in query order.
func (x *Expander) Expand(ctx context.Context, base oid.OID) ([]oid.OID, error) {
	expr, found, err := x.model.Range(base)
	if err != nil {
		return nil, err
	}
	if !found {
		return []oid.OID{base}, nil
	}
	r, err := ParseRange(expr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", base, err)
	}

	switch r.Kind {
	case RangeInterval:
		out := make([]oid.OID, 0, int(uint64(r.Hi)-uint64(r.Lo))+1)
		for i := uint64(r.Lo); i <= uint64(r.Hi); i++ {
			out = append(out, base.Append(uint32(i)))
		}
		return out, nil
	case RangeList:
		out := make([]oid.OID, 0, len(r.List))
		for _, i := range r.List {
			out = append(out, base.Append(i))
		}
		return out, nil
	case RangeIndex:
		return x.expandIndex(ctx, base, r.Source)
	}
	return []oid.OID{base}, nil
}

// expandIndex is the index-table pipeline: enumerate, exclude, subtract.
func (x *Expander) expandIndex(ctx context.Context, base, source oid.OID) ([]oid.OID, error) {
	indices, err := x.Enumerate(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", base, err)
	}
	exclusions, err := x.model.ExcludeIndexMap(base)
	if err != nil {
		return nil, err
	}
	excluded, err := x.Excluded(ctx, indices, exclusions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", base, err)
	}

	out := make([]oid.OID, 0, len(indices))
	for _, i := range indices {
		if excluded[i] {
			continue
		}
		out = append(out, base.Append(i))
	}
	x.log.Info("expanded index table",
		"base", base.String(),
		"source", source.String(),
		"indices", len(indices),
		"excluded", len(excluded),
	)
	return out, nil
}

// Enumerate walks source and returns its values as indices, in walk order
// and with duplicates kept.
func (x *Expander) Enumerate(ctx context.Context, source oid.OID) ([]uint32, error) {
	vbs, err := x.client.Walk(ctx, source)
	if err != nil {
		return nil, transportError(err)
	}
	indices := make([]uint32, 0, len(vbs))
	for _, vb := range vbs {
		n, err := vb.Value.Int()
		if err != nil {
			return nil, fmt.Errorf("%w: index at %s: %v", ErrRange, vb.OID, err)
		}
		if n < 0 || n > int64(^uint32(0)) {
			return nil, fmt.Errorf("%w: index %d at %s is not a valid sub-identifier", ErrRange, n, vb.OID)
		}
		indices = append(indices, uint32(n))
	}
	return indices, nil
}

// Excluded applies the exclusion filters to indices. Each filter costs one
// batched fetch of <target>.<index> for every index; an index is excluded
// when any of its candidate values is missing or fails the filter.
func (x *Expander) Excluded(ctx context.Context, indices []uint32, exclusions []config.Exclusion) (map[uint32]bool, error) {
	excluded := make(map[uint32]bool)
	if len(indices) == 0 {
		return excluded, nil
	}
	for _, ex := range exclusions {
		candidates := make([]oid.OID, len(indices))
		for k, i := range indices {
			candidates[k] = ex.Target.Append(i)
		}
		vbs, err := x.client.GetMany(ctx, candidates)
		if err != nil {
			return nil, transportError(err)
		}
		for _, vb := range vbs {
			if !ex.Target.IsAncestorOf(vb.OID) {
				return nil, fmt.Errorf("%w: agent answered %s for a query under %s", ErrTransport, vb.OID, ex.Target)
			}
			i, _ := vb.OID.Last()
			if vb.NotFound {
				x.log.Debug("excluding index with no filter value", "index", i, "target", ex.Target.String())
				excluded[i] = true
				continue
			}
			ok, err := rule.Match(ex.Filter, vb.Value.String())
			if err != nil {
				return nil, fmt.Errorf("exclude filter for %s: %w", vb.OID, err)
			}
			if !ok {
				x.log.Debug("excluding index", "index", i, "filter", ex.Filter, "value", vb.Value.String())
				excluded[i] = true
			}
		}
	}
	return excluded, nil
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
