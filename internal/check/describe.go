package check

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jandubois/snmp-probe/internal/config"
	"github.com/jandubois/snmp-probe/internal/oid"
)

// Describer builds the human-readable label of an identifier: the entry's
// desc followed by a suffix taken from the id rule.
type Describer struct {
	model  *config.Model
	client QueryClient
	log    *slog.Logger
}

// NewDescriber creates a Describer. The client is only used by index_oid id rules.
func NewDescriber(model *config.Model, client QueryClient, logger *slog.Logger) *Describer {
	return &Describer{model: model, client: client, log: orDiscard(logger)}
}

// Describe returns the label for id. Without a desc the label is the
// dotted identifier.
//
// The suffix is, depending on the id rule: the final sub-identifier of id
// (no rule), the live value of <prefix>.<final sub-identifier> (index_oid:
// rule, for name tables such as ifDescr), or the rule text itself.
func (d *Describer) Describe(ctx context.Context, id oid.OID) (string, error) {
	desc, found, err := d.model.Desc(id)
	if err != nil {
		return "", err
	}
	if !found {
		return id.String(), nil
	}

	idRule, hasRule, err := d.model.IDRule(id)
	if err != nil {
		return "", err
	}

	last, ok := id.Last()
	if !ok {
		return "", fmt.Errorf("%w: empty identifier", ErrDescriptor)
	}
	suffix := strconv.FormatUint(uint64(last), 10)

	switch {
	case !hasRule:
	case strings.HasPrefix(idRule, indexPrefix):
		prefix, err := oid.Parse(strings.TrimPrefix(idRule, indexPrefix))
		if err != nil {
			return "", fmt.Errorf("%w for %s: id rule %q: %v", ErrDescriptor, id, idRule, err)
		}
		name := prefix.Append(last)
		vb, err := d.client.Get(ctx, name)
		if err != nil {
			return "", transportError(err)
		}
		if vb.NotFound {
			d.log.Debug("name table has no entry, using index", "oid", name.String())
		} else {
			suffix = vb.Value.String()
		}
	default:
		suffix = idRule
	}

	return desc + " " + suffix, nil
}
