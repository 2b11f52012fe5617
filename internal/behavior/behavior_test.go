package behavior

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	src := `
local speed = 10
function ready()
  print("ready", self.name)
end
function M_update(dt) end
`
	s, err := Compile("res://player.lua", src)
	require.NoError(t, err)
	assert.Equal(t, []string{"ready", "M_update"}, s.Methods)
	assert.True(t, s.Has("ready"))
	assert.False(t, s.Has("process"))
}

func TestCompileError(t *testing.T) {
	_, err := Compile("res://broken.lua", "function ready(\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCompile))

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "res://broken.lua", ce.Path)
	assert.NotEmpty(t, ce.Detail)
	assert.Equal(t, ce.Detail, err.Error())
}

func TestRunnerReady(t *testing.T) {
	s, err := Compile("res://a.lua", `function ready() print("hello", self.name, 1 + 2) end`)
	require.NoError(t, err)

	var lines []string
	r := &Runner{Print: func(line string) { lines = append(lines, line) }}
	require.NoError(t, r.Ready(context.Background(), s, Self{Name: "Player", Type: "Node2D", Path: "Player"}))
	assert.Equal(t, []string{"hello\tPlayer\t3"}, lines)
}

func TestRunnerSandbox(t *testing.T) {
	s, err := Compile("res://a.lua", `function ready() dofile("/etc/passwd") end`)
	require.NoError(t, err)
	r := &Runner{}
	assert.Error(t, r.Ready(context.Background(), s, Self{}))
}

func TestRunnerRuntimeError(t *testing.T) {
	s, err := Compile("res://a.lua", `error("boom")`)
	require.NoError(t, err)
	r := &Runner{}
	err = r.Ready(context.Background(), s, Self{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunnerTimeout(t *testing.T) {
	s, err := Compile("res://spin.lua", `function ready() while true do end end`)
	require.NoError(t, err)
	r := &Runner{Timeout: 50 * time.Millisecond}
	start := time.Now()
	assert.Error(t, r.Ready(context.Background(), s, Self{}))
	assert.Less(t, time.Since(start), 5*time.Second)
}
