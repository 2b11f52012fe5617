package protocol

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const maxWaitFrames = 600

func (c CreateNode) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Type, validation.Required),
		validation.Field(&c.Name, validation.Required),
	)
}

func (c DeleteNode) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.Path, validation.Required))
}

func (c ModifyNode) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Properties, validation.Required),
	)
}

func (c AttachScript) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Source, validation.Required),
	)
}

func (c DuplicateNode) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.Path, validation.Required))
}

func (c ReparentNode) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.NewParentPath, validation.Required),
		validation.Field(&c.Index, validation.Min(-1)),
	)
}

func (c RenameNode) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.NewName, validation.Required),
	)
}

func (c AddToGroup) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Group, validation.Required),
	)
}

func (c RemoveFromGroup) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Group, validation.Required),
	)
}

func (c CreateScene) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.RootType, validation.Required),
		validation.Field(&c.RootName, validation.Required),
	)
}

func (c OpenScene) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.Path, validation.Required))
}

func (c CreateResource) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Type, validation.Required),
		validation.Field(&c.Path, validation.Required),
	)
}

func (c SelectNodes) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.Paths, validation.NotNil))
}

func (c Play) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Mode, validation.In("current", "main", "custom")),
	)
}

func (c SearchByType) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.Type, validation.Required))
}

func (c SearchByName) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.Name, validation.Required))
}

func (c SearchByGroup) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.Group, validation.Required))
}

func (c SearchByScript) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.ScriptPath, validation.Required))
}

func (c SceneDetailed) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.MaxDepth, validation.Min(0)))
}

func (c SceneTreeSimple) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.MaxDepth, validation.Min(0)))
}

func (c NodeInfo) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.Path, validation.Required))
}

func (c ClassInfo) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.Type, validation.Required))
}

func (c InspectSceneFile) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.Path, validation.Required))
}

func (c DebugOutput) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.Limit, validation.Min(0)))
}

func (c CaptureGameScreenshot) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.WaitFrames, validation.Min(0), validation.Max(maxWaitFrames)),
	)
}

func (c VisualSnapshot) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.WaitFrames, validation.Min(0), validation.Max(maxWaitFrames)),
	)
}

func (c CaptureBaseline) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.Name, validation.Required))
}

func (c CompareBaseline) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.Baseline, validation.Required))
}

func (c GetBaseline) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.Name, validation.Required))
}

func (c DeleteBaseline) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.Name, validation.Required))
}

func (SaveCurrentScene) Validate() error     { return nil }
func (Undo) Validate() error                 { return nil }
func (Redo) Validate() error                 { return nil }
func (StopPlaying) Validate() error          { return nil }
func (Performance) Validate() error          { return nil }
func (CaptureVisualContext) Validate() error { return nil }
func (ListBaselines) Validate() error        { return nil }
func (ProjectInfo) Validate() error          { return nil }
func (Version) Validate() error              { return nil }
func (Ping) Validate() error                 { return nil }
