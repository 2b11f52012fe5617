package protocol

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		kind    Kind
		message string
	}{
		{"not json", `{"action":`, KindProtocol, "invalid payload"},
		{"empty", ``, KindProtocol, "invalid payload"},
		{"array", `["create_node"]`, KindProtocol, "command must be an object"},
		{"string", `"ping"`, KindProtocol, "command must be an object"},
		{"null", `null`, KindProtocol, "command must be an object"},
		{"missing action", `{"path":"A"}`, KindValidation, "missing required parameter: action"},
		{"empty action", `{"action":""}`, KindValidation, "missing required parameter: action"},
		{"non-string action", `{"action":7}`, KindValidation, "missing required parameter: action"},
		{"unknown action", `{"action":"explode"}`, KindDispatch, "unknown action: explode"},
		{"missing param", `{"action":"create_node","name":"Box"}`, KindValidation, "missing required parameter: type"},
		{"empty param", `{"action":"rename_node","path":"A","new_name":""}`, KindValidation, "missing required parameter: new_name"},
		{"wrong param type", `{"action":"delete_node","path":5}`, KindValidation, ""},
		{"missing paths", `{"action":"select_nodes"}`, KindValidation, "missing required parameter: paths"},
		{"bad play mode", `{"action":"play","mode":"sideways"}`, KindValidation, ""},
		{"too many frames", `{"action":"capture_game_screenshot","wait_frames":100000}`, KindValidation, ""},
		{"negative index", `{"action":"reparent_node","path":"A","new_parent_path":"B","index":-5}`, KindValidation, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _, err := Decode([]byte(tt.payload))
			require.Error(t, err)
			assert.Nil(t, cmd)
			var pe *Error
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.kind, pe.Kind)
			if tt.message != "" {
				assert.Equal(t, tt.message, pe.Message)
			}
		})
	}
}

func TestDecodeCommands(t *testing.T) {
	cmd, env, err := Decode([]byte(`{"id":"cmd_1","action":"create_node","type":"Container","name":"Box","parent":"/","properties":{"size":[10,20]},"timestamp":1}`))
	require.NoError(t, err)
	assert.Equal(t, "cmd_1", env.ID)
	assert.Equal(t, "create_node", env.Action)
	create, ok := cmd.(CreateNode)
	require.True(t, ok)
	assert.Equal(t, "Container", create.Type)
	assert.Equal(t, "Box", create.Name)
	assert.Equal(t, "/", create.Parent)
	assert.Contains(t, create.Properties, "size")

	cmd, _, err = Decode([]byte(`{"action":"reparent_node","path":"A/B","new_parent_path":"C","index":2,"keep_global_transform":false}`))
	require.NoError(t, err)
	rep := cmd.(ReparentNode)
	require.NotNil(t, rep.Index)
	assert.Equal(t, 2, *rep.Index)
	require.NotNil(t, rep.KeepGlobalTransform)
	assert.False(t, *rep.KeepGlobalTransform)

	cmd, _, err = Decode([]byte(`{"action":"reparent_node","path":"A/B","new_parent_path":"C"}`))
	require.NoError(t, err)
	rep = cmd.(ReparentNode)
	assert.Nil(t, rep.Index)
	assert.Nil(t, rep.KeepGlobalTransform)

	cmd, _, err = Decode([]byte(`{"action":"search_nodes_by_name","name":"Enemy","exact":true,"select":true,"focus":true}`))
	require.NoError(t, err)
	search := cmd.(SearchByName)
	assert.True(t, search.Exact)
	assert.True(t, search.Select)
	assert.True(t, search.Focus)

	cmd, _, err = Decode([]byte(`{"action":"select_nodes","paths":[]}`))
	require.NoError(t, err)
	assert.Empty(t, cmd.(SelectNodes).Paths)

	cmd, _, err = Decode([]byte(`{"action":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, ActionPing, cmd.Action())
}

func TestDecodeAliases(t *testing.T) {
	cmd, _, err := Decode([]byte(`{"action":"create_scene","name":"MainMenu","root_type":"Node2D","save_path":"res://scenes/main_menu.scene"}`))
	require.NoError(t, err)
	assert.Equal(t, CreateScene{RootType: "Node2D", RootName: "MainMenu", Path: "res://scenes/main_menu.scene"}, cmd)

	cmd, _, err = Decode([]byte(`{"action":"create_scene","name":"Other","root_name":"Main","root_type":"Node2D"}`))
	require.NoError(t, err)
	assert.Equal(t, "Main", cmd.(CreateScene).RootName)

	cmd, env, err := Decode([]byte(`{"action":"play_scene","scene_path":"res://level.scene"}`))
	require.NoError(t, err)
	assert.Equal(t, "play_scene", env.Action)
	assert.Equal(t, Play{Mode: "custom", Scene: "res://level.scene"}, cmd)

	cmd, _, err = Decode([]byte(`{"action":"modify_node_property","node_path":"Main/Hero","property_name":"visible","property_value":false}`))
	require.NoError(t, err)
	assert.Equal(t, ModifyNode{Path: "Main/Hero", Properties: map[string]any{"visible": false}}, cmd)

	_, _, err = Decode([]byte(`{"action":"modify_node_property","node_path":"Main/Hero"}`))
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "missing required parameter: properties", pe.Message)
}

func TestEveryActionDecodes(t *testing.T) {
	for _, a := range ValidActions {
		t.Run(string(a), func(t *testing.T) {
			cmd, err := newCommand(a)
			require.NoError(t, err)
			assert.Equal(t, a, deref(cmd).Action())
		})
	}
}

func TestErrorKeepsID(t *testing.T) {
	_, env, err := Decode([]byte(`{"id":42,"action":"nope"}`))
	require.Error(t, err)
	assert.Equal(t, float64(42), env.ID)
}

func TestFailure(t *testing.T) {
	r := Failure(Errorf(KindDocumentState, "no document open").WithSuggestion("create or open a scene first"))
	assert.False(t, r.OK())
	assert.Equal(t, StatusError, r.Status)
	assert.Equal(t, KindDocumentState, r.Code)
	assert.Equal(t, "create or open a scene first", r.Suggestion)

	r = Failure(errors.New("disk full"))
	assert.Equal(t, KindHostOperation, r.Code)
	assert.Equal(t, "disk full", r.Message)
}

func TestEncode(t *testing.T) {
	r := Success("ok", map[string]any{"path": "Box"})
	r.ID = "cmd_7"
	var out map[string]any
	require.NoError(t, json.Unmarshal(Encode(r), &out))
	assert.Equal(t, "command_response", out["type"])
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "cmd_7", out["id"])
	assert.NotContains(t, out, "suggestion")
	assert.NotContains(t, out, "code")

	bad := Success("ok", map[string]any{"x": math.NaN()})
	bad.ID = "cmd_8"
	require.NoError(t, json.Unmarshal(Encode(bad), &out))
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "cmd_8", out["id"])
}
