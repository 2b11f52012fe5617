// Package protocol defines the JSON command protocol: the closed set of
// actions, their typed parameter structs, decoding and validation, and the
// result envelope sent back to clients.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mitchellh/mapstructure"
)

// Envelope holds the fields common to every request.
type Envelope struct {
	ID     any
	Action string
}

// Decode parses one frame into a typed command. The envelope is returned
// whenever the payload was an object, so errors can still echo the id.
func Decode(payload []byte) (Command, Envelope, error) {
	var env Envelope

	var raw any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, env, &Error{Kind: KindProtocol, Message: "invalid payload", Err: err}
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, env, Errorf(KindProtocol, "command must be an object")
	}
	env.ID = obj["id"]

	action, _ := obj["action"].(string)
	if action == "" {
		return nil, env, Errorf(KindValidation, "missing required parameter: action")
	}
	env.Action = action

	canonical := Action(action)
	if legacy, ok := legacyActions[action]; ok {
		canonical = legacy
	}
	applyAliases(canonical, obj)

	cmd, err := newCommand(canonical)
	if err != nil {
		return nil, env, err
	}
	if err := decodeParams(obj, cmd); err != nil {
		return nil, env, err
	}
	c := deref(cmd)
	if err := Check(c); err != nil {
		return nil, env, err
	}
	return c, env, nil
}

// Check validates a command built outside Decode, reporting failures the
// same way Decode does.
func Check(c Command) error {
	if err := c.Validate(); err != nil {
		return validationError(err)
	}
	return nil
}

// newCommand returns a pointer to the zero command for action.
func newCommand(action Action) (any, error) {
	switch action {
	case ActionCreateNode:
		return &CreateNode{}, nil
	case ActionDeleteNode:
		return &DeleteNode{}, nil
	case ActionModifyNode:
		return &ModifyNode{}, nil
	case ActionAttachScript:
		return &AttachScript{}, nil
	case ActionDuplicateNode:
		return &DuplicateNode{}, nil
	case ActionReparentNode:
		return &ReparentNode{}, nil
	case ActionRenameNode:
		return &RenameNode{}, nil
	case ActionAddToGroup:
		return &AddToGroup{}, nil
	case ActionRemoveFromGroup:
		return &RemoveFromGroup{}, nil
	case ActionUndo:
		return &Undo{}, nil
	case ActionRedo:
		return &Redo{}, nil
	case ActionCreateScene:
		return &CreateScene{}, nil
	case ActionOpenScene:
		return &OpenScene{}, nil
	case ActionSaveCurrentScene:
		return &SaveCurrentScene{}, nil
	case ActionCreateResource:
		return &CreateResource{}, nil
	case ActionSelectNodes:
		return &SelectNodes{}, nil
	case ActionPlay:
		return &Play{}, nil
	case ActionStopPlaying:
		return &StopPlaying{}, nil
	case ActionSearchByType:
		return &SearchByType{}, nil
	case ActionSearchByName:
		return &SearchByName{}, nil
	case ActionSearchByGroup:
		return &SearchByGroup{}, nil
	case ActionSearchByScript:
		return &SearchByScript{}, nil
	case ActionSceneDetailed:
		return &SceneDetailed{}, nil
	case ActionSceneTreeSimple:
		return &SceneTreeSimple{}, nil
	case ActionNodeInfo:
		return &NodeInfo{}, nil
	case ActionClassInfo:
		return &ClassInfo{}, nil
	case ActionInspectSceneFile:
		return &InspectSceneFile{}, nil
	case ActionDebugOutput:
		return &DebugOutput{}, nil
	case ActionPerformance:
		return &Performance{}, nil
	case ActionCaptureVisualContext:
		return &CaptureVisualContext{}, nil
	case ActionCaptureGameScreenshot:
		return &CaptureGameScreenshot{}, nil
	case ActionVisualSnapshot:
		return &VisualSnapshot{}, nil
	case ActionCaptureBaseline:
		return &CaptureBaseline{}, nil
	case ActionCompareBaseline:
		return &CompareBaseline{}, nil
	case ActionListBaselines:
		return &ListBaselines{}, nil
	case ActionGetBaseline:
		return &GetBaseline{}, nil
	case ActionDeleteBaseline:
		return &DeleteBaseline{}, nil
	case ActionProjectInfo:
		return &ProjectInfo{}, nil
	case ActionVersion:
		return &Version{}, nil
	case ActionPing:
		return &Ping{}, nil
	default:
		return nil, Errorf(KindDispatch, "unknown action: %s", action).
			WithSuggestion("see get_version for the list of supported actions")
	}
}

// legacyActions maps action names older agent toolkits still send.
var legacyActions = map[string]Action{
	"play_scene":           ActionPlay,
	"modify_node_property": ActionModifyNode,
}

// paramAliases maps older parameter names onto the canonical ones. The
// canonical key wins when both are present.
var paramAliases = map[Action]map[string]string{
	ActionCreateScene: {"name": "root_name", "save_path": "path"},
	ActionPlay:        {"scene_path": "scene"},
	ActionModifyNode:  {"node_path": "path"},
}

func applyAliases(action Action, obj map[string]any) {
	for alias, key := range paramAliases[action] {
		v, ok := obj[alias]
		if !ok {
			continue
		}
		if _, set := obj[key]; !set {
			obj[key] = v
		}
	}
	switch action {
	case ActionPlay:
		// A scene path without a mode plays that scene.
		if _, ok := obj["scene_path"]; ok {
			if _, set := obj["mode"]; !set {
				obj["mode"] = "custom"
			}
		}
	case ActionModifyNode:
		// modify_node_property carries a single property_name/property_value pair.
		name, ok := obj["property_name"].(string)
		if _, set := obj["properties"]; ok && name != "" && !set {
			obj["properties"] = map[string]any{name: obj["property_value"]}
		}
	}
}

func decodeParams(obj map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Squash:  true,
		Result:  target,
	})
	if err != nil {
		return HostError(err)
	}
	if err := dec.Decode(obj); err != nil {
		var merr *mapstructure.Error
		if errors.As(err, &merr) && len(merr.Errors) > 0 {
			return Errorf(KindValidation, "invalid parameter: %s", merr.Errors[0])
		}
		return Errorf(KindValidation, "invalid parameter: %v", err)
	}
	return nil
}

// deref turns the decoded pointer back into the value the engine switches on.
func deref(p any) Command {
	switch c := p.(type) {
	case *CreateNode:
		return *c
	case *DeleteNode:
		return *c
	case *ModifyNode:
		return *c
	case *AttachScript:
		return *c
	case *DuplicateNode:
		return *c
	case *ReparentNode:
		return *c
	case *RenameNode:
		return *c
	case *AddToGroup:
		return *c
	case *RemoveFromGroup:
		return *c
	case *Undo:
		return *c
	case *Redo:
		return *c
	case *CreateScene:
		return *c
	case *OpenScene:
		return *c
	case *SaveCurrentScene:
		return *c
	case *CreateResource:
		return *c
	case *SelectNodes:
		return *c
	case *Play:
		return *c
	case *StopPlaying:
		return *c
	case *SearchByType:
		return *c
	case *SearchByName:
		return *c
	case *SearchByGroup:
		return *c
	case *SearchByScript:
		return *c
	case *SceneDetailed:
		return *c
	case *SceneTreeSimple:
		return *c
	case *NodeInfo:
		return *c
	case *ClassInfo:
		return *c
	case *InspectSceneFile:
		return *c
	case *DebugOutput:
		return *c
	case *Performance:
		return *c
	case *CaptureVisualContext:
		return *c
	case *CaptureGameScreenshot:
		return *c
	case *VisualSnapshot:
		return *c
	case *CaptureBaseline:
		return *c
	case *CompareBaseline:
		return *c
	case *ListBaselines:
		return *c
	case *GetBaseline:
		return *c
	case *DeleteBaseline:
		return *c
	case *ProjectInfo:
		return *c
	case *Version:
		return *c
	case *Ping:
		return *c
	}
	panic(fmt.Sprintf("protocol: no command for %T", p))
}

// validationError reports the first failing field, in name order so the
// message is stable.
func validationError(err error) *Error {
	var errs validation.Errors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	}
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	field := fields[0]
	ferr := errs[field]

	var verr validation.Error
	if errors.As(ferr, &verr) {
		switch verr.Code() {
		case validation.ErrRequired.Code(), validation.ErrNotNilRequired.Code():
			return &Error{Kind: KindValidation, Message: "missing required parameter: " + field, Err: err}
		}
	}
	return &Error{Kind: KindValidation, Message: fmt.Sprintf("invalid parameter %s: %v", field, ferr), Err: err}
}
