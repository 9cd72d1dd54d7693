package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/qgraph/internal/ir"
)

// Document is a request file: one or more operations run as a batch.
//
//	transaction: true
//	operations:
//	  - op: createOneUser
//	    as: alice
//	    args:
//	      data: {email: a@example.com}
//	    select:
//	      - id
//	      - posts:
//	          args: {take: 2}
//	          select: [title]
//
// Selection order is kept, so the response lists fields in the order they
// were asked for. An operation without select returns every scalar field.
type Document struct {
	Transaction bool
	Operations  []*Selection
}

// LoadDocument reads a request document from path.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// ParseDocument parses a request document.
func ParseDocument(data []byte) (*Document, error) {
	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty request document")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return DocumentFromNode(&root)
}

// DocumentFromNode converts an already parsed YAML node. Scenario files
// embed request documents and hand them over this way.
func DocumentFromNode(n *yaml.Node) (*Document, error) {
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil, nodeError(n, "request document must be a mapping")
	}

	doc := &Document{}
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "transaction":
			if err := val.Decode(&doc.Transaction); err != nil {
				return nil, nodeError(val, "transaction: %v", err)
			}
		case "operations":
			if val.Kind != yaml.SequenceNode {
				return nil, nodeError(val, "operations must be a list")
			}
			for _, item := range val.Content {
				op, err := operation(item)
				if err != nil {
					return nil, err
				}
				doc.Operations = append(doc.Operations, op)
			}
		default:
			return nil, nodeError(key, "unknown key %q", key.Value)
		}
	}
	if len(doc.Operations) == 0 {
		return nil, nodeError(n, "operations list is required and must be non-empty")
	}
	return doc, nil
}

func operation(n *yaml.Node) (*Selection, error) {
	if n.Kind != yaml.MappingNode {
		return nil, nodeError(n, "operation must be a mapping")
	}
	sel := &Selection{}
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "op":
			sel.Name = val.Value
		default:
			if err := fieldKey(sel, key, val); err != nil {
				return nil, err
			}
		}
	}
	if sel.Name == "" {
		return nil, nodeError(n, "operation is missing op")
	}
	return sel, nil
}

// fieldKey handles the keys shared by operations and nested fields.
func fieldKey(sel *Selection, key, val *yaml.Node) error {
	switch key.Value {
	case "as":
		sel.Alias = val.Value
	case "args":
		args, err := arguments(val)
		if err != nil {
			return err
		}
		sel.Arguments = args
	case "select":
		nested, err := selections(val)
		if err != nil {
			return err
		}
		sel.Selections = nested
	default:
		return nodeError(key, "unknown key %q", key.Value)
	}
	return nil
}

func arguments(n *yaml.Node) (ir.IRObject, error) {
	if n.Kind != yaml.MappingNode {
		return nil, nodeError(n, "args must be a mapping")
	}
	var raw map[string]any
	if err := n.Decode(&raw); err != nil {
		return nil, nodeError(n, "args: %v", err)
	}
	v, err := ir.FromAny(raw)
	if err != nil {
		return nil, nodeError(n, "args: %v", err)
	}
	return v.(ir.IRObject), nil
}

// selections parses a select list. Items are field names or single-key
// mappings whose value is either a nested select list or a mapping with
// as, args and select.
func selections(n *yaml.Node) ([]*Selection, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, nodeError(n, "select must be a list")
	}
	out := make([]*Selection, 0, len(n.Content))
	for _, item := range n.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			out = append(out, &Selection{Name: item.Value})
		case yaml.MappingNode:
			if len(item.Content) != 2 {
				return nil, nodeError(item, "nested field must have exactly one key")
			}
			key, val := item.Content[0], item.Content[1]
			sel := &Selection{Name: key.Value}
			switch val.Kind {
			case yaml.SequenceNode:
				nested, err := selections(val)
				if err != nil {
					return nil, err
				}
				sel.Selections = nested
			case yaml.MappingNode:
				for i := 0; i < len(val.Content); i += 2 {
					if err := fieldKey(sel, val.Content[i], val.Content[i+1]); err != nil {
						return nil, err
					}
				}
			default:
				return nil, nodeError(val, "field %q: expected a list or a mapping", key.Value)
			}
			out = append(out, sel)
		default:
			return nil, nodeError(item, "invalid select item")
		}
	}
	return out, nil
}

func nodeError(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", n.Line, fmt.Sprintf(format, args...))
}
