// Package check evaluates a configuration against an SNMP agent and reduces
// the results to a single verdict.
//
// A pass runs in three stages, each a method on Engine so it can be driven
// on its own against a fake client:
//
//	Expand   base identifiers -> concrete identifiers (ranges, index tables)
//	Query    one batched get for every concrete identifier
//	Evaluate classify each value with its value_map and fold into a Verdict
//
// All queries are issued sequentially from the calling goroutine.
package check

import (
	"context"
	"errors"
	"fmt"

	"github.com/jandubois/snmp-probe/internal/oid"
	"github.com/jandubois/snmp-probe/internal/snmp"
)

var (
	// ErrRange marks a malformed range expression or index value.
	ErrRange = errors.New("invalid range")
	// ErrDescriptor marks an identifier for which no label can be built.
	ErrDescriptor = errors.New("no descriptor")
	// ErrTransport wraps every failure reported by the QueryClient.
	ErrTransport = errors.New("query failed")
)

// QueryClient fetches values from an agent. Implementations report absent
// instances as Varbinds with NotFound set, not as errors.
type QueryClient interface {
	Get(ctx context.Context, id oid.OID) (snmp.Varbind, error)
	GetMany(ctx context.Context, ids []oid.OID) ([]snmp.Varbind, error)
	Walk(ctx context.Context, root oid.OID) ([]snmp.Varbind, error)
}

func transportError(err error) error {
	if errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
