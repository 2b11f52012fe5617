package scene

import (
	"strconv"
	"strings"
)

// AbsolutePrefix is the prefix of absolute node paths: /root/<RootName>/...
const AbsolutePrefix = "/root"

// IsRootMarker reports whether path denotes the document root itself.
func IsRootMarker(path string) bool {
	switch strings.TrimSpace(path) {
	case "", "/", ".", "root":
		return true
	}
	return false
}

// Resolve finds the node a path refers to within the tree rooted at root.
// Lookup order: root marker, relative path from root, relative path with the
// root's own name as the first segment, then the absolute /root/<Root>/...
// form. Absolute paths that fall outside the tree do not resolve.
func Resolve(root *Node, path string) *Node {
	if root == nil {
		return nil
	}
	path = strings.TrimSpace(path)
	if IsRootMarker(path) {
		return root
	}

	if !strings.HasPrefix(path, "/") {
		if n := lookupRelative(root, path); n != nil {
			return n
		}
		first, rest, _ := strings.Cut(path, "/")
		if first == root.name {
			if rest == "" {
				return root
			}
			if n := lookupRelative(root, rest); n != nil {
				return n
			}
		}
		return nil
	}

	return lookupAbsolute(root, path)
}

func lookupRelative(root *Node, path string) *Node {
	cur := root
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if cur == root {
				return nil
			}
			cur = cur.parent
		default:
			cur = cur.Child(seg)
			if cur == nil {
				return nil
			}
		}
	}
	return cur
}

func lookupAbsolute(root *Node, path string) *Node {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) > 1 && segs[0] == "root" && segs[1] == root.name {
		segs = segs[1:]
	}
	if len(segs) == 0 || segs[0] != root.name {
		return nil
	}
	n := lookupRelative(root, strings.Join(segs[1:], "/"))
	if n == nil || (n != root && !root.IsAncestorOf(n)) {
		return nil
	}
	return n
}

// PathFrom returns the path of n relative to root, "." for the root itself.
// The result is empty when n is not inside root's tree.
func PathFrom(root, n *Node) string {
	if n == root {
		return "."
	}
	var segs []string
	for cur := n; cur != root; cur = cur.parent {
		if cur == nil {
			return ""
		}
		segs = append(segs, cur.name)
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return strings.Join(segs, "/")
}

// AbsolutePath returns the /root/<Root>/... form of n.
func AbsolutePath(root, n *Node) string {
	rel := PathFrom(root, n)
	if rel == "" {
		return ""
	}
	if rel == "." {
		return AbsolutePrefix + "/" + root.name
	}
	return AbsolutePrefix + "/" + root.name + "/" + rel
}

// UniqueName returns base if no child of parent uses it, else the first free
// of base2, base3, ...
func UniqueName(parent *Node, base string) string {
	if parent == nil || parent.Child(base) == nil {
		return base
	}
	for i := 2; ; i++ {
		candidate := base + strconv.Itoa(i)
		if parent.Child(candidate) == nil {
			return candidate
		}
	}
}
