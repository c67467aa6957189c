// Package config holds the check configuration: the parsed rule document and
// the agent connection settings.
package config

import (
	"errors"
	"fmt"

	"github.com/jandubois/snmp-probe/internal/oid"
	"github.com/jandubois/snmp-probe/internal/probe"
)

// DefaultKey is the reserved oids key of the fallback entry.
const DefaultKey = "default"

var (
	// ErrConfig marks a malformed configuration document.
	ErrConfig = errors.New("invalid configuration")
	// ErrUnconfigured marks an identifier with no configured ancestor.
	ErrUnconfigured = errors.New("unconfigured identifier")
)

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConfig}, args...)...)
}

// Field names an entry attribute that can be inherited from the default entry.
type Field string

const (
	FieldRange           Field = "range"
	FieldValueMap        Field = "value_map"
	FieldID              Field = "id"
	FieldDesc            Field = "desc"
	FieldExcludeIndexMap Field = "exclude_index_map"
)

// Rule is one value_map row: when Condition holds, the value is classified
// with Severity and Annotation is appended to the message.
type Rule struct {
	Condition string
	Severity  probe.Severity
	// SeverityTemplate, when set, replaces Severity: it is rendered with the
	// observed value and evaluated to a severity at check time.
	SeverityTemplate string
	Annotation       string
}

// Exclusion is one exclude_index_map row. An index is dropped when the value
// at Target.<index> does not satisfy Filter.
type Exclusion struct {
	Filter string
	Target oid.OID
}

// Entry is the configuration of one base identifier.
type Entry struct {
	Range           string
	ValueMap        []Rule
	ID              string
	Desc            string
	ExcludeIndexMap []Exclusion

	set map[Field]bool
}

// Has reports whether f was given a value in the document.
func (e *Entry) Has(f Field) bool {
	return e != nil && e.set[f]
}

func (e *Entry) mark(f Field) {
	if e.set == nil {
		e.set = make(map[Field]bool)
	}
	e.set[f] = true
}

// Model is a parsed configuration document. It is immutable once Parse returns.
type Model struct {
	Identifier string   // Subject label printed in front of the verdict
	MIBs       []string // MIB module names; informational only

	keys    []oid.OID
	entries *oid.Trie[*Entry]
	def     *Entry
}

// Keys returns the configured base identifiers in document order, without
// the default entry.
func (m *Model) Keys() []oid.OID {
	keys := make([]oid.OID, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Entry returns the entry configured exactly at id.
func (m *Model) Entry(id oid.OID) (*Entry, bool) {
	return m.entries.Get(id)
}

// Default returns the default entry, or nil.
func (m *Model) Default() *Entry {
	return m.def
}

// Lookup resolves field f for id: the nearest configured ancestor of id (id
// itself included) supplies it, or the default entry when the nearest entry
// leaves it unset. It returns the supplying entry, or nil when neither sets
// the field. An id without any configured ancestor is an ErrUnconfigured error.
func (m *Model) Lookup(id oid.OID, f Field) (*Entry, error) {
	_, e, ok := m.entries.Nearest(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnconfigured, id)
	}
	if e.Has(f) {
		return e, nil
	}
	if m.def.Has(f) {
		return m.def, nil
	}
	return nil, nil
}

// Range returns the range expression governing id.
func (m *Model) Range(id oid.OID) (string, bool, error) {
	e, err := m.Lookup(id, FieldRange)
	if err != nil || e == nil {
		return "", false, err
	}
	return e.Range, true, nil
}

// ValueMap returns the rules classifying values under id.
func (m *Model) ValueMap(id oid.OID) ([]Rule, bool, error) {
	e, err := m.Lookup(id, FieldValueMap)
	if err != nil || e == nil {
		return nil, false, err
	}
	return e.ValueMap, true, nil
}

// IDRule returns the descriptor rule for id.
func (m *Model) IDRule(id oid.OID) (string, bool, error) {
	e, err := m.Lookup(id, FieldID)
	if err != nil || e == nil {
		return "", false, err
	}
	return e.ID, true, nil
}

// Desc returns the label prefix for id.
func (m *Model) Desc(id oid.OID) (string, bool, error) {
	e, err := m.Lookup(id, FieldDesc)
	if err != nil || e == nil {
		return "", false, err
	}
	return e.Desc, true, nil
}

// ExcludeIndexMap returns the exclusion filters applied when id is expanded
// through an index table.
func (m *Model) ExcludeIndexMap(id oid.OID) ([]Exclusion, error) {
	e, err := m.Lookup(id, FieldExcludeIndexMap)
	if err != nil || e == nil {
		return nil, err
	}
	return e.ExcludeIndexMap, nil
}
