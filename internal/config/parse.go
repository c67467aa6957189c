package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jandubois/snmp-probe/internal/oid"
	"github.com/jandubois/snmp-probe/internal/probe"
	"gopkg.in/yaml.v3"
)

// Parse decodes a configuration document. JSON documents are accepted as
// YAML flow syntax. The order of the oids mapping is preserved.
func Parse(data []byte) (*Model, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, configErrorf("%v", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, configErrorf("empty document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, configErrorf("top level must be a mapping")
	}

	m := &Model{entries: oid.NewTrie[*Entry]()}
	var oids *yaml.Node
	seen := make(map[string]bool)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i].Value, root.Content[i+1]
		if seen[key] {
			return nil, configErrorf("%s is given twice", key)
		}
		seen[key] = true
		switch key {
		case "identifier":
			s, _, err := scalarString(val)
			if err != nil {
				return nil, configErrorf("identifier: %v", err)
			}
			m.Identifier = s
		case "mibs":
			mibs, err := decodeMIBs(val)
			if err != nil {
				return nil, configErrorf("mibs: %v", err)
			}
			m.MIBs = mibs
		case "oids":
			oids = val
		}
	}

	if m.Identifier == "" {
		return nil, configErrorf("identifier is required")
	}
	if oids == nil || oids.Kind != yaml.MappingNode {
		return nil, configErrorf("oids must be a mapping")
	}

	for i := 0; i+1 < len(oids.Content); i += 2 {
		key := oids.Content[i].Value
		entry, err := decodeEntry(oids.Content[i+1])
		if err != nil {
			return nil, configErrorf("oids[%q]: %v", key, err)
		}
		if key == DefaultKey {
			if m.def != nil {
				return nil, configErrorf("oids[%q] is configured twice", key)
			}
			m.def = entry
			continue
		}
		id, err := oid.Parse(key)
		if err != nil {
			return nil, configErrorf("oids key: %v", err)
		}
		if _, dup := m.entries.Get(id); dup {
			return nil, configErrorf("oids[%q]: %s is configured twice", key, id)
		}
		m.entries.Insert(id, entry)
		m.keys = append(m.keys, id)
	}

	return m, nil
}

func decodeMIBs(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		s, ok, err := scalarString(n)
		if err != nil || !ok {
			return nil, err
		}
		return []string{s}, nil
	case yaml.SequenceNode:
		var mibs []string
		if err := n.Decode(&mibs); err != nil {
			return nil, err
		}
		return mibs, nil
	default:
		return nil, fmt.Errorf("expected a name or a list of names")
	}
}

func decodeEntry(n *yaml.Node) (*Entry, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("entry must be a mapping")
	}
	e := &Entry{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		if isNull(val) {
			continue
		}
		switch Field(key) {
		case FieldRange:
			s, _, err := scalarString(val)
			if err != nil {
				return nil, fmt.Errorf("range: %v", err)
			}
			e.Range = s
		case FieldValueMap:
			rules, err := decodeValueMap(val)
			if err != nil {
				return nil, fmt.Errorf("value_map: %v", err)
			}
			e.ValueMap = rules
		case FieldID:
			s, _, err := scalarString(val)
			if err != nil {
				return nil, fmt.Errorf("id: %v", err)
			}
			e.ID = s
		case FieldDesc:
			s, _, err := scalarString(val)
			if err != nil {
				return nil, fmt.Errorf("desc: %v", err)
			}
			e.Desc = s
		case FieldExcludeIndexMap:
			excl, err := decodeExclusions(val)
			if err != nil {
				return nil, fmt.Errorf("exclude_index_map: %v", err)
			}
			e.ExcludeIndexMap = excl
		default:
			return nil, fmt.Errorf("unknown field %q", key)
		}
		e.mark(Field(key))
	}
	return e, nil
}

func decodeValueMap(n *yaml.Node) ([]Rule, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("expected a list of rules")
	}
	rules := make([]Rule, 0, len(n.Content))
	for i, row := range n.Content {
		r, err := decodeRule(row)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %v", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func decodeRule(n *yaml.Node) (Rule, error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) < 2 || len(n.Content) > 3 {
		return Rule{}, fmt.Errorf("expected [condition, severity] or [condition, severity, annotation]")
	}

	var r Rule
	cond, ok, err := scalarString(n.Content[0])
	if err != nil {
		return Rule{}, fmt.Errorf("condition: %v", err)
	}
	if !ok || strings.TrimSpace(cond) == "" {
		return Rule{}, fmt.Errorf("condition is empty")
	}
	r.Condition = cond

	sev := n.Content[1]
	if sev.Kind != yaml.ScalarNode || isNull(sev) {
		return Rule{}, fmt.Errorf("severity must be an integer or a %%value template")
	}
	if v, err := strconv.ParseInt(strings.TrimSpace(sev.Value), 10, 64); err == nil {
		s, err := probe.ParseSeverity(v)
		if err != nil {
			return Rule{}, err
		}
		r.Severity = s
	} else if sev.Tag == "!!str" && strings.Contains(sev.Value, "%value") {
		r.SeverityTemplate = sev.Value
	} else {
		return Rule{}, fmt.Errorf("severity %q is neither an integer nor a %%value template", sev.Value)
	}

	if len(n.Content) == 3 {
		ann, _, err := scalarString(n.Content[2])
		if err != nil {
			return Rule{}, fmt.Errorf("annotation: %v", err)
		}
		r.Annotation = ann
	}
	return r, nil
}

func decodeExclusions(n *yaml.Node) ([]Exclusion, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("expected a list of [filter, oid] pairs")
	}
	out := make([]Exclusion, 0, len(n.Content))
	for i, row := range n.Content {
		if row.Kind != yaml.SequenceNode || len(row.Content) != 2 {
			return nil, fmt.Errorf("row %d: expected [filter, oid]", i)
		}
		filter, ok, err := scalarString(row.Content[0])
		if err != nil || !ok || strings.TrimSpace(filter) == "" {
			return nil, fmt.Errorf("row %d: filter must be a non-empty string", i)
		}
		target, _, err := scalarString(row.Content[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: %v", i, err)
		}
		id, err := oid.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("row %d: %v", i, err)
		}
		out = append(out, Exclusion{Filter: filter, Target: id})
	}
	return out, nil
}

// scalarString returns the text of a scalar node. ok is false for null.
func scalarString(n *yaml.Node) (s string, ok bool, err error) {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	if n.Kind != yaml.ScalarNode {
		return "", false, fmt.Errorf("expected a scalar at line %d", n.Line)
	}
	if isNull(n) {
		return "", false, nil
	}
	return n.Value, true, nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}
