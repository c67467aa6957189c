// Package snmptest provides an in-memory agent for tests.
package snmptest

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jandubois/snmp-probe/internal/oid"
	"github.com/jandubois/snmp-probe/internal/snmp"
)

// Client answers queries from a fixed set of values and records every call.
type Client struct {
	values map[string]snmp.Value
	sorted []oid.OID

	// Err, when set, is returned by every call.
	Err error

	Calls []Call
}

// Call records one round trip.
type Call struct {
	Op  string // "get", "getmany" or "walk"
	IDs []string
}

// New returns a client serving values, keyed by dotted identifier.
func New(values map[string]snmp.Value) *Client {
	c := &Client{values: make(map[string]snmp.Value, len(values))}
	for k, v := range values {
		c.Set(k, v)
	}
	return c
}

// Set adds or replaces a value.
func (c *Client) Set(id string, v snmp.Value) {
	parsed := oid.MustParse(id)
	key := parsed.String()
	if _, ok := c.values[key]; !ok {
		c.sorted = append(c.sorted, parsed)
		slices.SortFunc(c.sorted, oid.Compare)
	}
	c.values[key] = v
}

// Get implements the single-value query.
func (c *Client) Get(ctx context.Context, id oid.OID) (snmp.Varbind, error) {
	c.Calls = append(c.Calls, Call{Op: "get", IDs: []string{id.String()}})
	if c.Err != nil {
		return snmp.Varbind{}, c.Err
	}
	return c.lookup(id), nil
}

// GetMany implements the batched query.
func (c *Client) GetMany(ctx context.Context, ids []oid.OID) ([]snmp.Varbind, error) {
	call := Call{Op: "getmany"}
	for _, id := range ids {
		call.IDs = append(call.IDs, id.String())
	}
	c.Calls = append(c.Calls, call)
	if c.Err != nil {
		return nil, c.Err
	}
	out := make([]snmp.Varbind, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.lookup(id))
	}
	return out, nil
}

// Walk implements the subtree enumeration.
func (c *Client) Walk(ctx context.Context, root oid.OID) ([]snmp.Varbind, error) {
	c.Calls = append(c.Calls, Call{Op: "walk", IDs: []string{root.String()}})
	if c.Err != nil {
		return nil, c.Err
	}
	var out []snmp.Varbind
	for _, id := range c.sorted {
		if root.IsAncestorOf(id) {
			out = append(out, snmp.Varbind{OID: id, Value: c.values[id.String()]})
		}
	}
	return out, nil
}

func (c *Client) lookup(id oid.OID) snmp.Varbind {
	v, ok := c.values[id.String()]
	if !ok {
		return snmp.Missing(id)
	}
	return snmp.Varbind{OID: id, Value: v}
}

// Trace renders the recorded calls, one per line, for compact assertions.
func (c *Client) Trace() string {
	var b strings.Builder
	for _, call := range c.Calls {
		fmt.Fprintf(&b, "%s %s\n", call.Op, strings.Join(call.IDs, ","))
	}
	return b.String()
}
