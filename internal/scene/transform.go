package scene

import "math"

// Transform2D is a 2D affine transform: x' = A*x + B*y + Origin.
type Transform2D struct {
	X      Vec2 // first column
	Y      Vec2 // second column
	Origin Vec2
}

// Identity2D is the identity transform.
var Identity2D = Transform2D{X: Vec2{1, 0}, Y: Vec2{0, 1}}

// Compose2D builds a transform from position, rotation (radians) and scale.
func Compose2D(pos Vec2, rot float64, scale Vec2) Transform2D {
	c, s := math.Cos(rot), math.Sin(rot)
	return Transform2D{
		X:      Vec2{c * scale.X, s * scale.X},
		Y:      Vec2{-s * scale.Y, c * scale.Y},
		Origin: pos,
	}
}

// Mul returns t*o (apply o first).
func (t Transform2D) Mul(o Transform2D) Transform2D {
	return Transform2D{
		X:      t.basis(o.X),
		Y:      t.basis(o.Y),
		Origin: t.Apply(o.Origin),
	}
}

func (t Transform2D) basis(v Vec2) Vec2 {
	return Vec2{t.X.X*v.X + t.Y.X*v.Y, t.X.Y*v.X + t.Y.Y*v.Y}
}

// Apply transforms a point.
func (t Transform2D) Apply(p Vec2) Vec2 {
	return t.basis(p).Add(t.Origin)
}

// Inverse returns the inverse transform. A degenerate basis yields identity.
func (t Transform2D) Inverse() Transform2D {
	det := t.X.X*t.Y.Y - t.Y.X*t.X.Y
	if det == 0 {
		return Identity2D
	}
	inv := Transform2D{
		X: Vec2{t.Y.Y / det, -t.X.Y / det},
		Y: Vec2{-t.Y.X / det, t.X.X / det},
	}
	inv.Origin = inv.basis(Vec2{-t.Origin.X, -t.Origin.Y})
	return inv
}

// Decompose splits t into position, rotation and scale, ignoring skew.
func (t Transform2D) Decompose() (pos Vec2, rot float64, scale Vec2) {
	rot = math.Atan2(t.X.Y, t.X.X)
	sx := math.Hypot(t.X.X, t.X.Y)
	sy := math.Hypot(t.Y.X, t.Y.Y)
	if t.X.X*t.Y.Y-t.Y.X*t.X.Y < 0 {
		sy = -sy
	}
	return t.Origin, rot, Vec2{sx, sy}
}

// Local2D returns the node's own 2D transform.
func Local2D(n *Node) Transform2D {
	pos, _ := getVec2(n, "position", Vec2{})
	scale, _ := getVec2(n, "scale", Vec2{1, 1})
	rot := 0.0
	if v, ok := n.Get("rotation"); ok {
		if f, ok := v.(float64); ok {
			rot = f
		}
	}
	return Compose2D(pos, rot, scale)
}

// Global2D composes the 2D transforms of n and its 2D ancestors. A non-2D
// ancestor breaks the chain, as it has no 2D transform of its own.
func Global2D(n *Node) Transform2D {
	t := Identity2D
	for cur := n; cur != nil && cur.typ.Space == Space2D; cur = cur.parent {
		t = Local2D(cur).Mul(t)
	}
	return t
}

// Global3D returns the world position of a 3D node. Only translation is
// composed.
func Global3D(n *Node) Vec3 {
	var p Vec3
	for cur := n; cur != nil && cur.typ.Space == Space3D; cur = cur.parent {
		v, _ := cur.Get("position")
		if pv, ok := v.(Vec3); ok {
			p = p.Add(pv)
		}
	}
	return p
}

func getVec2(n *Node, name string, def Vec2) (Vec2, bool) {
	v, ok := n.Get(name)
	if !ok {
		return def, false
	}
	vv, ok := v.(Vec2)
	if !ok {
		return def, false
	}
	return vv, true
}
