package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/scenebridge/internal/protocol"
)

func TestReadParams(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		want    map[string]any
		wantErr bool
	}{
		{name: "none", args: nil, want: nil},
		{name: "inline", args: []string{`{"path":"Main/Hero"}`}, want: map[string]any{"path": "Main/Hero"}},
		{name: "stdin", args: []string{"-"}, stdin: " {\"max_depth\": 2}\n", want: map[string]any{"max_depth": 2.0}},
		{name: "array", args: []string{`[1,2]`}, wantErr: true},
		{name: "garbage", args: []string{`path=x`}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readParams(tt.args, strings.NewReader(tt.stdin))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintResult(t *testing.T) {
	res := protocol.Success("pong", nil)
	res.ID = "c1"

	var compact, pretty bytes.Buffer
	require.NoError(t, printResult(&compact, res, false))
	require.NoError(t, printResult(&pretty, res, true))

	assert.Equal(t, 1, strings.Count(compact.String(), "\n"))
	assert.Greater(t, strings.Count(pretty.String(), "\n"), 1)
	assert.JSONEq(t, compact.String(), pretty.String())
}
