package scene

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the value type of a declared property.
type Kind string

const (
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindVec2   Kind = "vector2"
	KindVec3   Kind = "vector3"
	KindColor  Kind = "color"
)

// Vec2 is a 2D vector property value.
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns v+o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Vec3 is a 3D vector property value.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Add returns v+o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v-o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Color is an RGBA color with components in [0,1].
type Color struct {
	R float64 `json:"r" yaml:"r"`
	G float64 `json:"g" yaml:"g"`
	B float64 `json:"b" yaml:"b"`
	A float64 `json:"a" yaml:"a"`
}

// RGBA8 returns the color as 8-bit channels.
func (c Color) RGBA8() (r, g, b, a uint8) {
	return to8(c.R), to8(c.G), to8(c.B), to8(c.A)
}

func to8(f float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, f)) * 255))
}

// ErrInvalidValue is returned when a value cannot be coerced to a property kind.
var ErrInvalidValue = errors.New("invalid property value")

// Coerce converts a decoded JSON/YAML value into the Go representation used
// for the given kind. Vectors accept {"x":..} objects or arrays; colors also
// accept "#rrggbb[aa]" strings.
func Coerce(kind Kind, v any) (any, error) {
	switch kind {
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindInt:
		if f, ok := number(v); ok && f == math.Trunc(f) {
			return int64(f), nil
		}
	case KindFloat:
		if f, ok := number(v); ok {
			return f, nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindVec2:
		if vv, ok := v.(Vec2); ok {
			return vv, nil
		}
		if c, ok := components(v, []string{"x", "y"}, 2); ok {
			return Vec2{c[0], c[1]}, nil
		}
	case KindVec3:
		if vv, ok := v.(Vec3); ok {
			return vv, nil
		}
		if c, ok := components(v, []string{"x", "y", "z"}, 3); ok {
			return Vec3{c[0], c[1], c[2]}, nil
		}
	case KindColor:
		if cc, ok := v.(Color); ok {
			return cc, nil
		}
		if s, ok := v.(string); ok {
			return parseHexColor(s)
		}
		if c, ok := components(v, []string{"r", "g", "b", "a"}, 3); ok {
			col := Color{c[0], c[1], c[2], 1}
			if len(c) > 3 {
				col.A = c[3]
			}
			return col, nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidValue, kind)
	}
	return nil, fmt.Errorf("%w: expected %s, got %T", ErrInvalidValue, kind, v)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// components extracts numeric components from either a map keyed by names or
// a list. Maps may omit trailing optional keys beyond min.
func components(v any, names []string, min int) ([]float64, bool) {
	switch t := v.(type) {
	case map[string]any:
		out := make([]float64, 0, len(names))
		for i, name := range names {
			raw, ok := t[name]
			if !ok {
				if i >= min {
					break
				}
				return nil, false
			}
			f, ok := number(raw)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	case []any:
		if len(t) < min || len(t) > len(names) {
			return nil, false
		}
		out := make([]float64, len(t))
		for i, raw := range t {
			f, ok := number(raw)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	}
	return nil, false
}

func parseHexColor(s string) (Color, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 && len(h) != 8 {
		return Color{}, fmt.Errorf("%w: bad color %q", ErrInvalidValue, s)
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: bad color %q", ErrInvalidValue, s)
	}
	if len(h) == 6 {
		n = n<<8 | 0xff
	}
	return Color{
		R: float64(n>>24&0xff) / 255,
		G: float64(n>>16&0xff) / 255,
		B: float64(n>>8&0xff) / 255,
		A: float64(n&0xff) / 255,
	}, nil
}
