package frontmatter

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAMLCodec decodes blocks with a full YAML parser. Plain scalars are coerced
// with the same rules as SimpleCodec rather than YAML's own resolver, so
// "True" stays a string and "0x10" is not a number.
type YAMLCodec struct{}

func (YAMLCodec) Decode(block string) (Metadata, error) {
	var md Metadata
	if strings.TrimSpace(block) == "" {
		return md, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
		return md, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		// Comments only.
		return md, nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return md, fmt.Errorf("%w: unexpected document", ErrMalformed)
	}
	root := resolveAlias(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return md, fmt.Errorf("%w: top level is not a mapping", ErrMalformed)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		v, err := yamlValue(resolveAlias(root.Content[i+1]))
		if err != nil {
			return Metadata{}, fmt.Errorf("%w: key %q: %v", ErrMalformed, key, err)
		}
		md.Set(key, v)
	}
	return md, nil
}

func yamlValue(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return yamlScalar(n), nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			s, err := yamlText(resolveAlias(c))
			if err != nil {
				return Value{}, err
			}
			items = append(items, s)
		}
		return Value{kind: KindList, list: items}, nil
	case yaml.MappingNode:
		fields := make([]Field, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			s, err := yamlText(resolveAlias(n.Content[i+1]))
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, Field{Key: n.Content[i].Value, Value: s})
		}
		return Value{kind: KindMap, fields: fields}, nil
	}
	return Value{}, fmt.Errorf("unsupported node kind %d", n.Kind)
}

func yamlScalar(n *yaml.Node) Value {
	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		return String(n.Value)
	}
	return coerce(n.Value)
}

// yamlText stringifies an element of a list or nested map. Deeper nesting is
// kept as flow YAML; only one level round-trips.
func yamlText(n *yaml.Node) (string, error) {
	if n.Kind == yaml.ScalarNode {
		return n.Value, nil
	}
	c := *n
	c.Style = yaml.FlowStyle
	out, err := yaml.Marshal(&c)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
