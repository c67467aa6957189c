package check

import (
	"context"
	"fmt"

	"github.com/jandubois/snmp-probe/internal/config"
	"github.com/jandubois/snmp-probe/internal/oid"
	"github.com/jandubois/snmp-probe/internal/probe"
	"github.com/jandubois/snmp-probe/internal/snmp"
)

// Extend adopts the result of a net-snmp "extend" script run by the agent:
// its first output line becomes the message and its exit status the
// severity. No rules are evaluated.
func Extend(ctx context.Context, client QueryClient, name string) (*Verdict, error) {
	if name == "" {
		return nil, fmt.Errorf("extend name is empty")
	}
	idx := snmp.ExtendIndex(name)
	ids := []oid.OID{
		snmp.NsExtendOutput1Line.Append(idx...),
		snmp.NsExtendResult.Append(idx...),
	}
	vbs, err := client.GetMany(ctx, ids)
	if err != nil {
		return nil, transportError(err)
	}
	if len(vbs) != len(ids) {
		return nil, fmt.Errorf("%w: expected %d varbinds, got %d", ErrTransport, len(ids), len(vbs))
	}
	output, status := vbs[0], vbs[1]
	if output.NotFound || status.NotFound {
		return nil, fmt.Errorf("%w: extend %q is not defined on the agent", config.ErrUnconfigured, name)
	}

	code, err := status.Value.Int()
	if err != nil {
		return nil, fmt.Errorf("extend %q result: %w", name, err)
	}

	v := NewVerdict(name)
	v.Evaluated = 1
	v.Messages = []string{output.Value.String()}
	sev, err := probe.ParseSeverity(code)
	if err != nil {
		v.Severity = probe.SeverityUnknown
		v.Messages = []string{fmt.Sprintf("%s (exit status %d)", output.Value.String(), code)}
		return v, nil
	}
	v.Severity = sev
	return v, nil
}
