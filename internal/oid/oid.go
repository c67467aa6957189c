// Package oid implements dotted-integer object identifiers and a prefix trie
// for nearest-ancestor lookups.
package oid

import (
	"fmt"
	"strconv"
	"strings"
)

// OID is a dotted sequence of sub-identifiers, e.g. 1.3.6.1.2.1.1.3.0.
type OID []uint32

// Parse parses a dotted identifier. A single leading dot is accepted.
func Parse(s string) (OID, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), ".")
	if s == "" {
		return nil, fmt.Errorf("empty identifier")
	}
	parts := strings.Split(s, ".")
	id := make(OID, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid identifier %q: component %q is not a non-negative integer", s, p)
		}
		id[i] = uint32(n)
	}
	return id, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) OID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String renders the identifier without a leading dot.
func (o OID) String() string {
	var b strings.Builder
	for i, n := range o {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.FormatUint(uint64(n), 10))
	}
	return b.String()
}

// Append returns a new identifier with sub appended. The receiver is not modified.
func (o OID) Append(sub ...uint32) OID {
	out := make(OID, 0, len(o)+len(sub))
	out = append(out, o...)
	return append(out, sub...)
}

// Last returns the final sub-identifier. ok is false for an empty identifier.
func (o OID) Last() (last uint32, ok bool) {
	if len(o) == 0 {
		return 0, false
	}
	return o[len(o)-1], true
}

// Parent returns the identifier with its final sub-identifier removed.
func (o OID) Parent() OID {
	if len(o) == 0 {
		return nil
	}
	return o[:len(o)-1]
}

// Equal reports whether o and other name the same identifier.
func (o OID) Equal(other OID) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is an ancestor of o or equal to it.
func (o OID) HasPrefix(prefix OID) bool {
	return len(prefix) <= len(o) && o[:len(prefix)].Equal(prefix)
}

// IsAncestorOf reports whether o is a strict prefix of other.
func (o OID) IsAncestorOf(other OID) bool {
	return len(o) < len(other) && other.HasPrefix(o)
}

// Compare orders identifiers lexicographically by sub-identifier, the order
// an SNMP agent walks them in.
func Compare(a, b OID) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}
