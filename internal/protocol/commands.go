package protocol

// Action names a command. The set is closed: Decode rejects anything not
// listed in ValidActions.
type Action string

// Structural edits.
const (
	ActionCreateNode      Action = "create_node"
	ActionDeleteNode      Action = "delete_node"
	ActionModifyNode      Action = "modify_node"
	ActionAttachScript    Action = "attach_script"
	ActionDuplicateNode   Action = "duplicate_node"
	ActionReparentNode    Action = "reparent_node"
	ActionRenameNode      Action = "rename_node"
	ActionAddToGroup      Action = "add_to_group"
	ActionRemoveFromGroup Action = "remove_from_group"
	ActionUndo            Action = "undo"
	ActionRedo            Action = "redo"
)

// Documents and assets.
const (
	ActionCreateScene      Action = "create_scene"
	ActionOpenScene        Action = "open_scene"
	ActionSaveCurrentScene Action = "save_current_scene"
	ActionCreateResource   Action = "create_resource"
)

// Selection and playback.
const (
	ActionSelectNodes Action = "select_nodes"
	ActionPlay        Action = "play"
	ActionStopPlaying Action = "stop_playing"
)

// Queries.
const (
	ActionSearchByType   Action = "search_nodes_by_type"
	ActionSearchByName   Action = "search_nodes_by_name"
	ActionSearchByGroup  Action = "search_nodes_by_group"
	ActionSearchByScript Action = "search_nodes_by_script"
)

// Introspection.
const (
	ActionSceneDetailed    Action = "get_current_scene_detailed"
	ActionSceneTreeSimple  Action = "get_scene_tree_simple"
	ActionNodeInfo         Action = "get_node_info"
	ActionClassInfo        Action = "get_class_info"
	ActionInspectSceneFile Action = "inspect_scene_file"
	ActionDebugOutput      Action = "get_debug_output"
	ActionPerformance      Action = "get_performance_metrics"
)

// Capture and visual regression.
const (
	ActionCaptureVisualContext  Action = "capture_visual_context"
	ActionCaptureGameScreenshot Action = "capture_game_screenshot"
	ActionVisualSnapshot        Action = "get_visual_snapshot"
	ActionCaptureBaseline       Action = "capture_baseline"
	ActionCompareBaseline       Action = "compare_baseline"
	ActionListBaselines         Action = "list_baselines"
	ActionGetBaseline           Action = "get_baseline"
	ActionDeleteBaseline        Action = "delete_baseline"
)

// Project and version.
const (
	ActionProjectInfo Action = "get_project_info"
	ActionVersion     Action = "get_version"
	ActionPing        Action = "ping"
)

// ValidActions lists every supported action.
var ValidActions = []Action{
	ActionCreateNode, ActionDeleteNode, ActionModifyNode, ActionAttachScript,
	ActionDuplicateNode, ActionReparentNode, ActionRenameNode,
	ActionAddToGroup, ActionRemoveFromGroup, ActionUndo, ActionRedo,
	ActionCreateScene, ActionOpenScene, ActionSaveCurrentScene, ActionCreateResource,
	ActionSelectNodes, ActionPlay, ActionStopPlaying,
	ActionSearchByType, ActionSearchByName, ActionSearchByGroup, ActionSearchByScript,
	ActionSceneDetailed, ActionSceneTreeSimple, ActionNodeInfo, ActionClassInfo,
	ActionInspectSceneFile, ActionDebugOutput, ActionPerformance,
	ActionCaptureVisualContext, ActionCaptureGameScreenshot, ActionVisualSnapshot,
	ActionCaptureBaseline, ActionCompareBaseline, ActionListBaselines,
	ActionGetBaseline, ActionDeleteBaseline,
	ActionProjectInfo, ActionVersion, ActionPing,
}

// Command is a decoded, validated request.
type Command interface {
	Action() Action
	Validate() error
}

// CreateNode adds a node under parent (the root when empty).
type CreateNode struct {
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Parent     string         `json:"parent"`
	Properties map[string]any `json:"properties"`
}

// DeleteNode removes a node and its subtree.
type DeleteNode struct {
	Path string `json:"path"`
}

// ModifyNode assigns declared properties.
type ModifyNode struct {
	Path       string         `json:"path"`
	Properties map[string]any `json:"properties"`
}

// AttachScript compiles Source and attaches it as the node's behavior.
type AttachScript struct {
	Path       string `json:"path"`
	Source     string `json:"source"`
	ScriptPath string `json:"script_path"`
}

// DuplicateNode copies a subtree next to the original.
type DuplicateNode struct {
	Path    string `json:"path"`
	NewName string `json:"new_name"`
}

// ReparentNode moves a node under a new parent.
type ReparentNode struct {
	Path                string `json:"path"`
	NewParentPath       string `json:"new_parent_path"`
	Index               *int   `json:"index"`
	KeepGlobalTransform *bool  `json:"keep_global_transform"`
}

// RenameNode changes a node's name.
type RenameNode struct {
	Path    string `json:"path"`
	NewName string `json:"new_name"`
}

// AddToGroup adds a group membership.
type AddToGroup struct {
	Path  string `json:"path"`
	Group string `json:"group"`
}

// RemoveFromGroup drops a group membership.
type RemoveFromGroup struct {
	Path  string `json:"path"`
	Group string `json:"group"`
}

// Undo reverts the last edit.
type Undo struct{}

// Redo reapplies the last undone edit.
type Redo struct{}

// CreateScene replaces the open document with a new one.
type CreateScene struct {
	RootType string `json:"root_type"`
	RootName string `json:"root_name"`
	Path     string `json:"path"`
}

// OpenScene loads a scene file as the open document.
type OpenScene struct {
	Path string `json:"path"`
}

// SaveCurrentScene writes the open document.
type SaveCurrentScene struct {
	Path string `json:"path"`
}

// CreateResource writes a standalone typed asset.
type CreateResource struct {
	Type       string         `json:"type"`
	Path       string         `json:"path"`
	Properties map[string]any `json:"properties"`
}

// SelectNodes replaces the selection; an empty list clears it.
type SelectNodes struct {
	Paths []string `json:"paths"`
}

// Play starts running a scene.
type Play struct {
	Mode  string `json:"mode"`
	Scene string `json:"scene"`
}

// StopPlaying stops the running scene.
type StopPlaying struct{}

// SearchOptions are the side effects a search may perform on its matches.
type SearchOptions struct {
	Select bool `json:"select"`
	Focus  bool `json:"focus"`
}

// SearchByType finds nodes of a type or its subtypes.
type SearchByType struct {
	Type string `json:"type"`
	SearchOptions
}

// SearchByName finds nodes by name substring, or exact name.
type SearchByName struct {
	Name  string `json:"name"`
	Exact bool   `json:"exact"`
	SearchOptions
}

// SearchByGroup finds members of a group.
type SearchByGroup struct {
	Group string `json:"group"`
	SearchOptions
}

// SearchByScript finds nodes whose behavior has the given path.
type SearchByScript struct {
	ScriptPath string `json:"script_path"`
	SearchOptions
}

// SceneDetailed describes the whole open document.
type SceneDetailed struct {
	MaxDepth int `json:"max_depth"`
}

// SceneTreeSimple returns names and types only.
type SceneTreeSimple struct {
	MaxDepth int `json:"max_depth"`
}

// NodeInfo describes a single node.
type NodeInfo struct {
	Path string `json:"path"`
}

// ClassInfo describes a registered type.
type ClassInfo struct {
	Type string `json:"type"`
}

// InspectSceneFile reads a scene file without opening it.
type InspectSceneFile struct {
	Path string `json:"path"`
}

// DebugOutput returns recent editor output.
type DebugOutput struct {
	Limit int `json:"limit"`
}

// Performance returns runtime figures.
type Performance struct{}

// CaptureVisualContext describes what the viewport shows.
type CaptureVisualContext struct {
	Include3D bool `json:"include_3d"`
}

// CaptureGameScreenshot renders after WaitFrames frames and returns a PNG.
type CaptureGameScreenshot struct {
	WaitFrames int `json:"wait_frames"`
}

// VisualSnapshot is CaptureGameScreenshot plus scene context.
type VisualSnapshot struct {
	WaitFrames int `json:"wait_frames"`
}

// CaptureBaseline stores the next frame as a named baseline.
type CaptureBaseline struct {
	Name string `json:"name"`
}

// CompareBaseline diffs the next frame against a stored baseline.
type CompareBaseline struct {
	Baseline string `json:"baseline"`
}

// ListBaselines lists stored baselines.
type ListBaselines struct{}

// GetBaseline returns one stored baseline's metadata.
type GetBaseline struct {
	Name string `json:"name"`
}

// DeleteBaseline removes a stored baseline.
type DeleteBaseline struct {
	Name string `json:"name"`
}

// ProjectInfo describes the project.
type ProjectInfo struct{}

// Version reports server and editor versions.
type Version struct{}

// Ping checks liveness.
type Ping struct{}

func (CreateNode) Action() Action            { return ActionCreateNode }
func (DeleteNode) Action() Action            { return ActionDeleteNode }
func (ModifyNode) Action() Action            { return ActionModifyNode }
func (AttachScript) Action() Action          { return ActionAttachScript }
func (DuplicateNode) Action() Action         { return ActionDuplicateNode }
func (ReparentNode) Action() Action          { return ActionReparentNode }
func (RenameNode) Action() Action            { return ActionRenameNode }
func (AddToGroup) Action() Action            { return ActionAddToGroup }
func (RemoveFromGroup) Action() Action       { return ActionRemoveFromGroup }
func (Undo) Action() Action                  { return ActionUndo }
func (Redo) Action() Action                  { return ActionRedo }
func (CreateScene) Action() Action           { return ActionCreateScene }
func (OpenScene) Action() Action             { return ActionOpenScene }
func (SaveCurrentScene) Action() Action      { return ActionSaveCurrentScene }
func (CreateResource) Action() Action        { return ActionCreateResource }
func (SelectNodes) Action() Action           { return ActionSelectNodes }
func (Play) Action() Action                  { return ActionPlay }
func (StopPlaying) Action() Action           { return ActionStopPlaying }
func (SearchByType) Action() Action          { return ActionSearchByType }
func (SearchByName) Action() Action          { return ActionSearchByName }
func (SearchByGroup) Action() Action         { return ActionSearchByGroup }
func (SearchByScript) Action() Action        { return ActionSearchByScript }
func (SceneDetailed) Action() Action         { return ActionSceneDetailed }
func (SceneTreeSimple) Action() Action       { return ActionSceneTreeSimple }
func (NodeInfo) Action() Action              { return ActionNodeInfo }
func (ClassInfo) Action() Action             { return ActionClassInfo }
func (InspectSceneFile) Action() Action      { return ActionInspectSceneFile }
func (DebugOutput) Action() Action           { return ActionDebugOutput }
func (Performance) Action() Action           { return ActionPerformance }
func (CaptureVisualContext) Action() Action  { return ActionCaptureVisualContext }
func (CaptureGameScreenshot) Action() Action { return ActionCaptureGameScreenshot }
func (VisualSnapshot) Action() Action        { return ActionVisualSnapshot }
func (CaptureBaseline) Action() Action       { return ActionCaptureBaseline }
func (CompareBaseline) Action() Action       { return ActionCompareBaseline }
func (ListBaselines) Action() Action         { return ActionListBaselines }
func (GetBaseline) Action() Action           { return ActionGetBaseline }
func (DeleteBaseline) Action() Action        { return ActionDeleteBaseline }
func (ProjectInfo) Action() Action           { return ActionProjectInfo }
func (Version) Action() Action               { return ActionVersion }
func (Ping) Action() Action                  { return ActionPing }
