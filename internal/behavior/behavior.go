// Package behavior compiles and runs node behavior scripts. Scripts are Lua
// chunks; top-level functions become the behavior's methods and ready() is
// invoked when playback starts.
package behavior

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"
)

// ErrCompile wraps every syntax or compilation failure. The wrapped message is
// the compiler's own text.
var ErrCompile = errors.New("compile error")

// Script is a compiled behavior.
type Script struct {
	Path    string
	Source  string
	Methods []string

	proto *lua.FunctionProto
}

// Compile parses and compiles source. On failure the error text is the
// compiler's message, unchanged.
func Compile(path, source string) (*Script, error) {
	chunk, err := parse.Parse(strings.NewReader(source), chunkName(path))
	if err != nil {
		return nil, &CompileError{Path: path, Detail: err.Error()}
	}
	proto, err := lua.Compile(chunk, chunkName(path))
	if err != nil {
		return nil, &CompileError{Path: path, Detail: err.Error()}
	}
	return &Script{Path: path, Source: source, Methods: methods(chunk), proto: proto}, nil
}

// CompileError carries the compiler's diagnostic.
type CompileError struct {
	Path   string
	Detail string
}

func (e *CompileError) Error() string { return e.Detail }

func (e *CompileError) Unwrap() error { return ErrCompile }

func chunkName(path string) string {
	if path == "" {
		return "<behavior>"
	}
	return path
}

func methods(chunk []ast.Stmt) []string {
	var out []string
	for _, stmt := range chunk {
		def, ok := stmt.(*ast.FuncDefStmt)
		if !ok || def.Name == nil {
			continue
		}
		switch {
		case def.Name.Method != "":
			out = append(out, def.Name.Method)
		default:
			switch fn := def.Name.Func.(type) {
			case *ast.IdentExpr:
				out = append(out, fn.Value)
			case *ast.AttrGetExpr:
				if key, ok := fn.Key.(*ast.StringExpr); ok {
					out = append(out, key.Value)
				}
			}
		}
	}
	return out
}

// Has reports whether the script defines the named top-level function.
func (s *Script) Has(method string) bool {
	for _, m := range s.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// Self describes the node a script runs against.
type Self struct {
	Name string
	Type string
	Path string
}

// Runner executes scripts in a restricted interpreter.
type Runner struct {
	// Timeout bounds one script run. Zero means no limit beyond ctx.
	Timeout time.Duration
	// Print receives everything the script prints.
	Print func(line string)
}

// Ready loads the script into a fresh state and calls ready() if defined.
func (r *Runner) Ready(ctx context.Context, s *Script, self Self) error {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			return fmt.Errorf("open %s: %w", lib.name, err)
		}
	}
	for _, unsafe := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(unsafe, lua.LNil)
	}
	L.SetGlobal("print", L.NewFunction(r.print))

	tbl := L.NewTable()
	tbl.RawSetString("name", lua.LString(self.Name))
	tbl.RawSetString("type", lua.LString(self.Type))
	tbl.RawSetString("path", lua.LString(self.Path))
	L.SetGlobal("self", tbl)

	L.SetContext(ctx)

	L.Push(L.NewFunctionFromProto(s.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return fmt.Errorf("%s: %w", s.Path, err)
	}
	if fn, ok := L.GetGlobal("ready").(*lua.LFunction); ok {
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
			return fmt.Errorf("%s: ready: %w", s.Path, err)
		}
	}
	return nil
}

func (r *Runner) print(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	if r.Print != nil {
		r.Print(strings.Join(parts, "\t"))
	}
	return 0
}
