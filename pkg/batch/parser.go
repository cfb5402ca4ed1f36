package batch

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Parse parses a YAML or JSON batch document.
func Parse(source []byte) (*Batch, error) {
	if len(source) > MaxSourceSize {
		return nil, &ParseError{Message: fmt.Sprintf("batch source size %d exceeds maximum %d bytes", len(source), MaxSourceSize)}
	}

	var raw yaml.Node
	if err := yaml.Unmarshal(source, &raw); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	// The root node is a document node containing the actual content
	if raw.Kind != yaml.DocumentNode || len(raw.Content) == 0 {
		return nil, &ParseError{Message: "empty batch definition"}
	}

	root := raw.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &ParseError{Message: "batch definition must be a mapping"}
	}

	b := &Batch{}
	var exprs *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		val := root.Content[i+1]
		switch key {
		case "description":
			if val.Kind != yaml.ScalarNode {
				return nil, &ParseError{Message: "description must be a string"}
			}
			b.Description = val.Value
		case "expressions":
			exprs = val
		default:
			return nil, &ParseError{Message: fmt.Sprintf("unknown field %q", key)}
		}
	}

	if exprs == nil {
		return nil, &ParseError{Message: "missing expressions"}
	}
	if exprs.Kind != yaml.SequenceNode {
		return nil, &ParseError{Message: "expressions must be a list"}
	}
	if len(exprs.Content) == 0 {
		return nil, &ParseError{Message: "expressions must not be empty"}
	}
	if len(exprs.Content) > MaxExpressions {
		return nil, &ParseError{Message: fmt.Sprintf("too many expressions: %d (max %d)", len(exprs.Content), MaxExpressions)}
	}

	seen := make(map[string]bool, len(exprs.Content))
	for i, node := range exprs.Content {
		loc := fmt.Sprintf("entry %d", i+1)
		entry, err := parseEntry(node, loc)
		if err != nil {
			return nil, err
		}
		if entry.ID == "" {
			entry.ID = fmt.Sprintf("expr-%d", i+1)
		}
		if !ValidID(entry.ID) {
			return nil, &ParseError{Message: fmt.Sprintf("invalid id %q", entry.ID), Location: loc}
		}
		if seen[entry.ID] {
			return nil, &ParseError{Message: fmt.Sprintf("duplicate id %q", entry.ID), Location: loc}
		}
		seen[entry.ID] = true
		b.Entries = append(b.Entries, entry)
	}

	return b, nil
}

func parseEntry(node *yaml.Node, loc string) (Entry, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			return Entry{}, &ParseError{Message: "expression must not be empty", Location: loc}
		}
		return Entry{Expression: node.Value}, nil

	case yaml.MappingNode:
		var e Entry
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			val := node.Content[i+1]
			if val.Kind != yaml.ScalarNode {
				return Entry{}, &ParseError{Message: fmt.Sprintf("%s must be a scalar", key), Location: loc}
			}
			switch key {
			case "id":
				e.ID = val.Value
			case "expression":
				e.Expression = val.Value
			case "expect":
				e.Expect = val.Value
				e.HasExpect = true
			default:
				return Entry{}, &ParseError{Message: fmt.Sprintf("unknown field %q", key), Location: loc}
			}
		}
		if e.Expression == "" {
			return Entry{}, &ParseError{Message: "missing expression", Location: loc}
		}
		return e, nil

	default:
		return Entry{}, &ParseError{Message: "entry must be an expression or a mapping", Location: loc}
	}
}
