package schema

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalModel renders the definition as a declarative YAML model. Keys keep
// property order, which a plain map would lose.
func (d *Definition) MarshalModel() ([]byte, error) {
	props := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range d.Properties {
		node, err := p.modelNode()
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", p.Name, err)
		}
		appendPair(props, p.Name, node)
	}
	root := &yaml.Node{Kind: yaml.MappingNode}
	appendPair(root, d.Type, props)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("encoding model %s: %w", d.Type, err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Property) modelNode() (*yaml.Node, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	appendScalar(n, "_label", p.Label)
	if p.Help != "" {
		appendScalar(n, "_help", p.Help)
	}
	appendScalar(n, "type", string(p.Kind))
	if p.Size > 0 {
		if err := appendValue(n, "size", p.Size); err != nil {
			return nil, err
		}
	}
	if p.Default != nil {
		if err := appendValue(n, "initial", p.Default); err != nil {
			return nil, err
		}
	}
	if p.Advanced {
		if err := appendValue(n, "advanced", 1); err != nil {
			return nil, err
		}
	}
	if p.Domain != nil {
		dn, err := p.Domain.modelNode()
		if err != nil {
			return nil, err
		}
		appendPair(n, "domains", &yaml.Node{Kind: yaml.SequenceNode, Content: []*yaml.Node{dn}})
	}
	return n, nil
}

func (d *Domain) modelNode() (*yaml.Node, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	appendScalar(n, "type", string(d.Kind))
	switch d.Kind {
	case DomainRange:
		if err := appendValue(n, "value_range", []any{d.Min, d.Max}); err != nil {
			return nil, err
		}
	case DomainList:
		if err := appendValue(n, "values", d.Choices); err != nil {
			return nil, err
		}
	case DomainProxy:
		if len(d.Types) > 0 {
			if err := appendValue(n, "proxy_types", d.Types); err != nil {
				return nil, err
			}
		}
	}
	return n, nil
}

func appendPair(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, value)
}

func appendScalar(m *yaml.Node, key, value string) {
	appendPair(m, key, &yaml.Node{Kind: yaml.ScalarNode, Value: value})
}

func appendValue(m *yaml.Node, key string, v any) error {
	var value yaml.Node
	if err := value.Encode(v); err != nil {
		return err
	}
	appendPair(m, key, &value)
	return nil
}
