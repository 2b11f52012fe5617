package scene

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// FormatVersion is written to every scene and resource file.
const FormatVersion = 1

var ErrBadFormat = errors.New("unsupported file format")

type sceneFile struct {
	Format int       `yaml:"format"`
	Root   *fileNode `yaml:"root"`
}

type fileNode struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	ID         string         `yaml:"id,omitempty"`
	Groups     []string       `yaml:"groups,omitempty"`
	Behavior   *Behavior      `yaml:"behavior,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
	Children   []*fileNode    `yaml:"children,omitempty"`
}

// Encode serializes the tree rooted at root. Only nodes owned by root, or by
// another node that is itself saved, are written; the relative paths of
// skipped nodes are returned so callers can warn about them.
func Encode(root *Node) ([]byte, []string, error) {
	saved := map[*Node]bool{root: true}
	var skipped []string

	var build func(n *Node) *fileNode
	build = func(n *Node) *fileNode {
		fn := &fileNode{
			Name:       n.name,
			Type:       n.typ.Name,
			ID:         n.id.String(),
			Groups:     n.Groups(),
			Behavior:   n.behavior,
			Properties: n.ExplicitProperties(),
		}
		for _, c := range n.children {
			if c.owner == nil || !saved[c.owner] {
				skipped = append(skipped, PathFrom(root, c))
				continue
			}
			saved[c] = true
			fn.Children = append(fn.Children, build(c))
		}
		return fn
	}

	data, err := yaml.Marshal(&sceneFile{Format: FormatVersion, Root: build(root)})
	if err != nil {
		return nil, nil, fmt.Errorf("encode scene: %w", err)
	}
	return data, skipped, nil
}

// Decode parses a scene file. Every non-root node is owned by the new root.
func Decode(data []byte) (*Node, error) {
	var f sceneFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	if f.Format != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadFormat, f.Format)
	}
	if f.Root == nil {
		return nil, fmt.Errorf("decode scene: missing root")
	}
	root, err := f.Root.build()
	if err != nil {
		return nil, err
	}
	root.Walk(func(n *Node) bool {
		if n != root {
			n.owner = root
		}
		return true
	})
	return root, nil
}

func (fn *fileNode) build() (*Node, error) {
	n, err := NewNode(fn.Type, fn.Name)
	if err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	if id, err := uuid.Parse(fn.ID); err == nil {
		n.id = id
	}
	for _, g := range fn.Groups {
		n.AddGroup(g)
	}
	if fn.Behavior != nil {
		b := *fn.Behavior
		n.behavior = &b
	}
	for k, v := range fn.Properties {
		if err := n.Set(k, v); err != nil {
			return nil, fmt.Errorf("decode scene: node %s: %w", fn.Name, err)
		}
	}
	for _, fc := range fn.Children {
		c, err := fc.build()
		if err != nil {
			return nil, err
		}
		if err := n.AddChild(c, -1); err != nil {
			return nil, fmt.Errorf("decode scene: %w", err)
		}
	}
	return n, nil
}

// Resource is a standalone typed asset.
type Resource struct {
	Type       *TypeInfo
	Properties map[string]any
}

type resourceFile struct {
	Format     int            `yaml:"format"`
	Type       string         `yaml:"resource"`
	Properties map[string]any `yaml:"properties,omitempty"`
}

// NewResource builds a resource of a registered resource type. Unknown
// property names are returned rather than treated as errors.
func NewResource(typeName string, props map[string]any) (*Resource, []string, error) {
	t, ok := LookupType(typeName)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	if !t.Resource || t.Abstract {
		return nil, nil, fmt.Errorf("%s is not a resource type", typeName)
	}
	r := &Resource{Type: t, Properties: map[string]any{}}
	var unknown []string
	for k, v := range props {
		def, ok := t.Property(k)
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		cv, err := Coerce(def.Kind, v)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", k, err)
		}
		r.Properties[k] = cv
	}
	return r, unknown, nil
}

// Marshal encodes the resource as YAML.
func (r *Resource) Marshal() ([]byte, error) {
	return yaml.Marshal(&resourceFile{Format: FormatVersion, Type: r.Type.Name, Properties: r.Properties})
}
