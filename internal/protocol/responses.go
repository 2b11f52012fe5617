package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies a failed command. Every kind is recoverable: the
// connection stays open and the document is left untouched.
type Kind string

const (
	// KindProtocol: the frame was not a JSON object.
	KindProtocol Kind = "protocol_error"
	// KindDispatch: the action is not supported.
	KindDispatch Kind = "dispatch_error"
	// KindValidation: a required parameter is missing or malformed.
	KindValidation Kind = "validation_error"
	// KindDocumentState: no document, unknown node or a structural conflict.
	KindDocumentState Kind = "document_state_error"
	// KindHostOperation: a compile, save or load failed in the host.
	KindHostOperation Kind = "host_operation_error"
)

// Status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Message types sent by the server.
const (
	TypeCommandResponse = "command_response"
	TypeProjectInfo     = "project_info"
	TypeFileChanged     = "file_changed"
)

// Error is a command failure with its classification.
type Error struct {
	Kind       Kind
	Message    string
	Suggestion string
	Err        error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// WithSuggestion attaches a remediation hint.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// Errorf builds an Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// HostError wraps a host failure, keeping the host's own message.
func HostError(err error) *Error {
	return &Error{Kind: KindHostOperation, Message: err.Error(), Err: err}
}

// Result is the response to one command.
type Result struct {
	Type       string `json:"type"`
	ID         any    `json:"id,omitempty"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Code       Kind   `json:"code,omitempty"`
}

// Success builds a successful result.
func Success(message string, data any) Result {
	return Result{Type: TypeCommandResponse, Status: StatusSuccess, Message: message, Data: data}
}

// Failure converts err into an error result. Errors that are not *Error are
// reported as host-operation failures.
func Failure(err error) Result {
	var pe *Error
	if !errors.As(err, &pe) {
		pe = HostError(err)
	}
	return Result{
		Type:       TypeCommandResponse,
		Status:     StatusError,
		Message:    pe.Message,
		Suggestion: pe.Suggestion,
		Code:       pe.Kind,
	}
}

// OK reports whether the result is a success.
func (r Result) OK() bool { return r.Status == StatusSuccess }

// ProjectData describes the project a server instance works in.
type ProjectData struct {
	ProjectPath     string            `json:"project_path"`
	ProjectName     string            `json:"project_name"`
	EditorVersion   string            `json:"editor_version"`
	PluginVersion   string            `json:"plugin_version"`
	ProjectSettings map[string]string `json:"project_settings,omitempty"`
	IsReady         bool              `json:"is_ready"`
}

// Greeting is sent once when a connection opens.
type Greeting struct {
	Type string      `json:"type"`
	Data ProjectData `json:"data"`
}

// FileChanged notifies clients of a project file change.
type FileChanged struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Op   string `json:"op"`
}

// Encode marshals an outbound message. A value that cannot be encoded is
// replaced by an error result so the client always gets a reply.
func Encode(v any) []byte {
	data, err := json.Marshal(v)
	if err == nil {
		return data
	}
	fallback := Failure(fmt.Errorf("encode response: %w", err))
	if r, ok := v.(Result); ok {
		fallback.ID = r.ID
	}
	data, _ = json.Marshal(fallback)
	return data
}
