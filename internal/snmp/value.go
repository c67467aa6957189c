// Package snmp provides the SNMP query client and the value types shared by
// every query backend.
package snmp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jandubois/snmp-probe/internal/oid"
)

// Kind is the SNMP syntax of a value, reduced to what rendering needs.
type Kind string

const (
	KindInteger   Kind = "integer"
	KindUnsigned  Kind = "unsigned" // Counter32, Gauge32, Unsigned32
	KindCounter64 Kind = "counter64"
	KindTimeTicks Kind = "timeticks"
	KindString    Kind = "string"
	KindOID       Kind = "oid"
	KindIPAddress Kind = "ipaddress"
	KindOpaque    Kind = "opaque"
	KindNull      Kind = "null"
)

// Value is a fetched value in its rendered text form.
type Value struct {
	Kind Kind
	Text string
}

// String returns the text substituted for %value in rule templates.
func (v Value) String() string {
	return v.Text
}

// Int interprets the value as an integer.
func (v Value) Int() (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(v.Text), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s value %q is not an integer", v.Kind, v.Text)
	}
	return n, nil
}

// Integer returns an integer value.
func Integer(n int64) Value {
	return Value{Kind: KindInteger, Text: strconv.FormatInt(n, 10)}
}

// String returns an octet-string value.
func String(s string) Value {
	return Value{Kind: KindString, Text: s}
}

// Varbind pairs an identifier with its value. NotFound is set when the agent
// answered noSuchInstance or noSuchObject.
type Varbind struct {
	OID      oid.OID
	Value    Value
	NotFound bool
}

// Missing returns the varbind an agent reports for an absent instance.
func Missing(id oid.OID) Varbind {
	return Varbind{OID: id, NotFound: true}
}
