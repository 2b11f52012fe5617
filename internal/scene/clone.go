package scene

import (
	"maps"

	"github.com/google/uuid"
)

// Duplicate deep-copies n and its subtree under fresh ids. Groups, behaviors
// and explicit properties are copied. Owners pointing inside the subtree are
// remapped to the copies; owners outside it are kept as-is. The copy is
// detached.
func Duplicate(n *Node) *Node {
	mapping := map[*Node]*Node{}
	cp := duplicate(n, mapping)
	for orig, dup := range mapping {
		if orig.owner == nil {
			continue
		}
		if o, inside := mapping[orig.owner]; inside {
			dup.owner = o
		} else {
			dup.owner = orig.owner
		}
	}
	return cp
}

func duplicate(n *Node, mapping map[*Node]*Node) *Node {
	cp := &Node{
		id:     uuid.New(),
		name:   n.name,
		typ:    n.typ,
		groups: maps.Clone(n.groups),
		props:  maps.Clone(n.props),
	}
	if n.behavior != nil {
		b := *n.behavior
		b.Methods = append([]string(nil), n.behavior.Methods...)
		cp.behavior = &b
	}
	mapping[n] = cp
	for _, c := range n.children {
		cc := duplicate(c, mapping)
		cc.parent = cp
		cp.children = append(cp.children, cc)
	}
	return cp
}
