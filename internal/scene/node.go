// Package scene implements the editable node tree: typed nodes with unique
// sibling names, a tree parent distinct from the serialization owner, group
// membership, attached behaviors and path resolution.
package scene

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnknownType     = errors.New("unknown node type")
	ErrNotInstantiable = errors.New("type cannot be instantiated as a node")
	ErrInvalidName     = errors.New("invalid node name")
	ErrNameTaken       = errors.New("sibling already exists")
	ErrHasParent       = errors.New("node already has a parent")
	ErrNotChild        = errors.New("node is not a child of this parent")
	ErrUnknownProperty = errors.New("unknown property")
)

// Behavior is a script attached to a node.
type Behavior struct {
	Path    string   `yaml:"path" json:"path"`
	Source  string   `yaml:"source" json:"-"`
	Methods []string `yaml:"-" json:"methods,omitempty"`
}

// Node is one element of the tree. Parent and owner are independent: parent
// defines tree shape, owner decides which node persists this one.
type Node struct {
	id       uuid.UUID
	name     string
	typ      *TypeInfo
	parent   *Node
	children []*Node
	owner    *Node
	groups   map[string]struct{}
	behavior *Behavior
	props    map[string]any
}

// NewNode constructs a detached node of a registered, instantiable type.
func NewNode(typeName, name string) (*Node, error) {
	t, ok := LookupType(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	if t.Resource || t.Abstract {
		return nil, fmt.Errorf("%w: %s", ErrNotInstantiable, typeName)
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &Node{
		id:     uuid.New(),
		name:   name,
		typ:    t,
		groups: map[string]struct{}{},
		props:  map[string]any{},
	}, nil
}

// ValidateName checks that name can be used as a node name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, "/:@%\"") || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (n *Node) ID() uuid.UUID       { return n.id }
func (n *Node) Name() string        { return n.name }
func (n *Node) Type() *TypeInfo     { return n.typ }
func (n *Node) TypeName() string    { return n.typ.Name }
func (n *Node) Parent() *Node       { return n.parent }
func (n *Node) Owner() *Node        { return n.owner }
func (n *Node) Behavior() *Behavior { return n.behavior }
func (n *Node) ChildCount() int     { return len(n.children) }

// SetOwner sets the serialization owner. It does not touch the tree.
func (n *Node) SetOwner(owner *Node) { n.owner = owner }

// SetBehavior replaces the attached behavior; nil detaches.
func (n *Node) SetBehavior(b *Behavior) { n.behavior = b }

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Child returns the direct child with the given name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// Index returns the position of n among its siblings, or -1 for a detached node.
func (n *Node) Index() int {
	if n.parent == nil {
		return -1
	}
	for i, c := range n.parent.children {
		if c == n {
			return i
		}
	}
	return -1
}

// Rename changes the node name, rejecting collisions with siblings.
func (n *Node) Rename(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if name == n.name {
		return nil
	}
	if n.parent != nil && n.parent.Child(name) != nil {
		return fmt.Errorf("%w: %s", ErrNameTaken, name)
	}
	n.name = name
	return nil
}

// AddChild inserts child at index; a negative or out-of-range index appends.
func (n *Node) AddChild(child *Node, index int) error {
	if child.parent != nil {
		return fmt.Errorf("%w: %s", ErrHasParent, child.name)
	}
	if child == n || child.IsAncestorOf(n) {
		return fmt.Errorf("cannot add %s under itself", child.name)
	}
	if n.Child(child.name) != nil {
		return fmt.Errorf("%w: %s", ErrNameTaken, child.name)
	}
	if index < 0 || index > len(n.children) {
		index = len(n.children)
	}
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
	child.parent = n
	return nil
}

// RemoveChild detaches child and returns the index it occupied.
func (n *Node) RemoveChild(child *Node) (int, error) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrNotChild, child.name)
}

// MoveChild repositions an existing child; out-of-range indices clamp to the end.
func (n *Node) MoveChild(child *Node, index int) error {
	if _, err := n.RemoveChild(child); err != nil {
		return err
	}
	if index < 0 || index > len(n.children) {
		index = len(n.children)
	}
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
	child.parent = n
	return nil
}

// IsAncestorOf reports whether n is a strict ancestor of other.
func (n *Node) IsAncestorOf(other *Node) bool {
	for p := other.parent; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// Walk visits n and its descendants depth-first in child order. Returning
// false from fn skips the node's subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Subtree returns n and all descendants in depth-first order.
func (n *Node) Subtree() []*Node {
	var out []*Node
	n.Walk(func(x *Node) bool {
		out = append(out, x)
		return true
	})
	return out
}

// Groups returns the group names the node belongs to, sorted.
func (n *Node) Groups() []string {
	out := make([]string, 0, len(n.groups))
	for g := range n.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// InGroup reports group membership.
func (n *Node) InGroup(group string) bool {
	_, ok := n.groups[group]
	return ok
}

// AddGroup adds a membership and reports whether it changed anything.
func (n *Node) AddGroup(group string) bool {
	if n.InGroup(group) {
		return false
	}
	n.groups[group] = struct{}{}
	return true
}

// RemoveGroup drops a membership and reports whether it changed anything.
func (n *Node) RemoveGroup(group string) bool {
	if !n.InGroup(group) {
		return false
	}
	delete(n.groups, group)
	return true
}

// HasProperty reports whether the node's type declares name.
func (n *Node) HasProperty(name string) bool {
	_, ok := n.typ.Property(name)
	return ok
}

// Get returns a property value, falling back to the declared default.
func (n *Node) Get(name string) (any, bool) {
	def, ok := n.typ.Property(name)
	if !ok {
		return nil, false
	}
	if v, set := n.props[name]; set {
		return v, true
	}
	return def.Default, true
}

// Set assigns a declared property after coercing the value to its kind.
func (n *Node) Set(name string, value any) error {
	def, ok := n.typ.Property(name)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownProperty, n.typ.Name, name)
	}
	v, err := Coerce(def.Kind, value)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	n.props[name] = v
	return nil
}

// SetRaw stores an already-coerced value, or clears it back to the default
// when explicit is false. Used to restore exact prior state on undo.
func (n *Node) SetRaw(name string, value any, explicit bool) {
	if !explicit {
		delete(n.props, name)
		return
	}
	n.props[name] = value
}

// Explicit returns the stored value for name and whether one is set.
func (n *Node) Explicit(name string) (any, bool) {
	v, ok := n.props[name]
	return v, ok
}

// Properties returns the effective value of every declared property.
func (n *Node) Properties() map[string]any {
	out := make(map[string]any)
	for _, def := range n.typ.Properties() {
		v, _ := n.Get(def.Name)
		out[def.Name] = v
	}
	return out
}

// ExplicitProperties returns only the values that differ from defaults by
// having been set.
func (n *Node) ExplicitProperties() map[string]any {
	out := make(map[string]any, len(n.props))
	for k, v := range n.props {
		out[k] = v
	}
	return out
}
