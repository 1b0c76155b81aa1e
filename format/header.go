package format

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/ymj/core"
	"gopkg.in/yaml.v3"
)

const (
	maxHeaderDepth = 64
	maxHeaderNodes = 10000
)

// allowedTags lists the only YAML tags a header may resolve to. Anything else,
// including !!binary, !!merge and application tags, is rejected.
var allowedTags = map[string]bool{
	"!!null":      true,
	"!!bool":      true,
	"!!str":       true,
	"!!int":       true,
	"!!float":     true,
	"!!timestamp": true,
	"!!seq":       true,
	"!!map":       true,
}

// headerDecoder walks a yaml.Node tree instead of decoding into interface
// values, so no tag can select a Go type and alias expansion stays bounded.
type headerDecoder struct {
	nodes int
}

func decodeHeader(text string) (*core.FrontMatter, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidHeader, err)
	}

	node := &root
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return core.NewFrontMatter(), nil
		}
		node = node.Content[0]
	}
	if node.Kind == 0 {
		// blank header
		return core.NewFrontMatter(), nil
	}

	d := &headerDecoder{}
	node, err := d.resolve(node, 0)
	if err != nil {
		return nil, err
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: got %s", core.ErrHeaderNotMapping, describe(node))
	}
	return d.mapping(node, 0)
}

// resolve follows aliases and checks the tag of the node it lands on.
func (d *headerDecoder) resolve(node *yaml.Node, depth int) (*yaml.Node, error) {
	for node.Kind == yaml.AliasNode {
		depth++
		if depth > maxHeaderDepth || node.Alias == nil {
			return nil, fmt.Errorf("%w: alias nesting too deep", core.ErrUnsafeHeaderContent)
		}
		node = node.Alias
	}
	d.nodes++
	if d.nodes > maxHeaderNodes {
		return nil, fmt.Errorf("%w: header expands to more than %d nodes", core.ErrUnsafeHeaderContent, maxHeaderNodes)
	}
	if tag := node.ShortTag(); !allowedTags[tag] {
		return nil, fmt.Errorf("%w: tag %s at line %d", core.ErrUnsafeHeaderContent, tag, node.Line)
	}
	return node, nil
}

func (d *headerDecoder) value(node *yaml.Node, depth int) (core.Value, error) {
	if depth > maxHeaderDepth {
		return core.Value{}, fmt.Errorf("%w: nesting too deep", core.ErrUnsafeHeaderContent)
	}
	node, err := d.resolve(node, depth)
	if err != nil {
		return core.Value{}, err
	}

	switch node.Kind {
	case yaml.MappingNode:
		fm, err := d.mapping(node, depth)
		if err != nil {
			return core.Value{}, err
		}
		return core.MapValue(fm), nil
	case yaml.SequenceNode:
		items := make([]core.Value, 0, len(node.Content))
		for _, child := range node.Content {
			item, err := d.value(child, depth+1)
			if err != nil {
				return core.Value{}, err
			}
			items = append(items, item)
		}
		return core.ListValue(items...), nil
	case yaml.ScalarNode:
		return scalar(node), nil
	default:
		return core.Value{}, fmt.Errorf("%w: unexpected %s at line %d", core.ErrInvalidHeader, describe(node), node.Line)
	}
}

func (d *headerDecoder) mapping(node *yaml.Node, depth int) (*core.FrontMatter, error) {
	fm := core.NewFrontMatter()
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, err := d.resolve(node.Content[i], depth)
		if err != nil {
			return nil, err
		}
		if keyNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: non-scalar key at line %d", core.ErrInvalidHeader, keyNode.Line)
		}
		key := keyNode.Value
		if _, dup := fm.Get(key); dup {
			return nil, fmt.Errorf("%w: duplicate key %q at line %d", core.ErrInvalidHeader, key, keyNode.Line)
		}
		v, err := d.value(node.Content[i+1], depth+1)
		if err != nil {
			return nil, err
		}
		fm.Set(key, v)
	}
	return fm, nil
}

// scalar converts a resolved scalar node. Integers outside the int64 range
// become floats; anything the typed decode still rejects is kept as its
// source text.
func scalar(node *yaml.Node) core.Value {
	switch node.ShortTag() {
	case "!!null":
		return core.NullValue()
	case "!!bool":
		var b bool
		if node.Decode(&b) == nil {
			return core.BoolValue(b)
		}
	case "!!int":
		var n int64
		if node.Decode(&n) == nil {
			return core.IntValue(n)
		}
		var f float64
		if node.Decode(&f) == nil {
			return core.FloatValue(f)
		}
	case "!!float":
		var f float64
		if node.Decode(&f) == nil {
			return core.FloatValue(f)
		}
	case "!!timestamp":
		var t time.Time
		if node.Decode(&t) == nil {
			return core.DateValue(t)
		}
	}
	return core.StringValue(node.Value)
}

func describe(node *yaml.Node) string {
	switch node.Kind {
	case yaml.ScalarNode:
		return "scalar " + node.ShortTag()
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	default:
		return "empty node"
	}
}

// encodeHeader renders front matter as YAML, preserving key order.
func encodeHeader(fm *core.FrontMatter) ([]byte, error) {
	node, err := mappingNode(fm)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mappingNode(fm *core.FrontMatter) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range fm.Keys() {
		v, _ := fm.Get(key)
		keyNode := &yaml.Node{}
		if err := keyNode.Encode(key); err != nil {
			return nil, err
		}
		valueNode, err := valueNode(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		node.Content = append(node.Content, keyNode, valueNode)
	}
	return node, nil
}

func valueNode(v core.Value) (*yaml.Node, error) {
	switch v.Kind() {
	case core.KindNull:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case core.KindDate:
		t, _ := v.AsDate()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!timestamp", Value: core.FormatDate(t)}, nil
	case core.KindList:
		items, _ := v.AsList()
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range items {
			child, err := valueNode(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	case core.KindMap:
		fm, _ := v.AsMap()
		return mappingNode(fm)
	case core.KindString, core.KindInt, core.KindFloat, core.KindBool:
		node := &yaml.Node{}
		if err := node.Encode(v.Interface()); err != nil {
			return nil, err
		}
		return node, nil
	default:
		return nil, errors.New("unsupported value kind " + v.Kind().String())
	}
}
