package session

import (
	"encoding/json"

	"github.com/ChuLiYu/rowplan/internal/geometry"
	"github.com/ChuLiYu/rowplan/pkg/types"
)

// CommandType identifies a session command in logs.
type CommandType string

const (
	CmdCreateRow          CommandType = "CREATE_ROW"
	CmdAssignHoles        CommandType = "ASSIGN_HOLES"
	CmdSetActiveRow       CommandType = "SET_ACTIVE_ROW"
	CmdSetSequencingInput CommandType = "SET_SEQUENCING_INPUT"
	CmdSetConstraints     CommandType = "SET_CONSTRAINTS"
	CmdSelectOption       CommandType = "SELECT_OPTION"
	CmdPointerDown        CommandType = "POINTER_DOWN"
	CmdPointerMove        CommandType = "POINTER_MOVE"
	CmdPointerUp          CommandType = "POINTER_UP"
	CmdClick              CommandType = "CLICK"
	CmdRequestUpload      CommandType = "REQUEST_UPLOAD"
	CmdUploadCompleted    CommandType = "UPLOAD_COMPLETED"
	CmdUploadFailed       CommandType = "UPLOAD_FAILED"
	CmdRequestOptimize    CommandType = "REQUEST_OPTIMIZE"
	CmdOptimizeCompleted  CommandType = "OPTIMIZE_COMPLETED"
	CmdOptimizeFailed     CommandType = "OPTIMIZE_FAILED"
	CmdRequestExport      CommandType = "REQUEST_EXPORT"
	CmdExportCompleted    CommandType = "EXPORT_COMPLETED"
	CmdExportFailed       CommandType = "EXPORT_FAILED"
)

// Command is an input to Apply: a user gesture, a form-control change, a
// button press, or the completion of a service call.
type Command interface {
	Type() CommandType
}

// CreateRow appends a new empty row and makes it active.
type CreateRow struct{}

// AssignHoles moves holes into the active row using the current sequencing
// input.
type AssignHoles struct {
	IDs []int
}

// SetActiveRow switches the row that receives assignments.
type SetActiveRow struct {
	Row types.RowID
}

// SetSequencingInput changes the start-from-previous-hole form value. The
// value is written through to the active row.
type SetSequencingInput struct {
	Value int
}

// SetConstraints replaces the optimizer constraint form values.
type SetConstraints struct {
	Constraints types.Constraints
}

// SelectOption picks an optimizer option by its index in the collection.
type SelectOption struct {
	Index int
}

// Pointer is a position on the drawing surface. When Viewport is set, Pos is
// a client coordinate inside that on-screen rectangle and is scaled into
// logical surface units first.
type Pointer struct {
	Pos      geometry.Point
	Viewport *geometry.Rect
}

// PointerDown starts a rubber-band gesture.
type PointerDown struct{ Pointer }

// PointerMove extends the gesture in progress.
type PointerMove struct{ Pointer }

// PointerUp ends the gesture and assigns the enclosed holes.
type PointerUp struct{}

// Click assigns the single hole under the pointer.
type Click struct{ Pointer }

// RequestUpload asks to upload a hole file.
type RequestUpload struct {
	Path string
}

// UploadCompleted delivers the parsed holes.
type UploadCompleted struct {
	Holes []types.Hole
	Count int
}

// UploadFailed reports a failed upload.
type UploadFailed struct {
	Err error
}

// RequestOptimize asks for timing options for the current layout.
type RequestOptimize struct{}

// OptimizeCompleted delivers the options. Epoch is copied from the
// StartOptimize effect that issued the request.
type OptimizeCompleted struct {
	Epoch   uint64
	Options []types.Option
	Metrics json.RawMessage
}

// OptimizeFailed reports a failed optimize.
type OptimizeFailed struct {
	Epoch uint64
	Err   error
}

// RequestExport asks to export the selected option.
type RequestExport struct{}

// ExportCompleted delivers the exported table.
type ExportCompleted struct {
	Content []byte
}

// ExportFailed reports a failed export.
type ExportFailed struct {
	Err error
}

func (CreateRow) Type() CommandType          { return CmdCreateRow }
func (AssignHoles) Type() CommandType        { return CmdAssignHoles }
func (SetActiveRow) Type() CommandType       { return CmdSetActiveRow }
func (SetSequencingInput) Type() CommandType { return CmdSetSequencingInput }
func (SetConstraints) Type() CommandType     { return CmdSetConstraints }
func (SelectOption) Type() CommandType       { return CmdSelectOption }
func (PointerDown) Type() CommandType        { return CmdPointerDown }
func (PointerMove) Type() CommandType        { return CmdPointerMove }
func (PointerUp) Type() CommandType          { return CmdPointerUp }
func (Click) Type() CommandType              { return CmdClick }
func (RequestUpload) Type() CommandType      { return CmdRequestUpload }
func (UploadCompleted) Type() CommandType    { return CmdUploadCompleted }
func (UploadFailed) Type() CommandType       { return CmdUploadFailed }
func (RequestOptimize) Type() CommandType    { return CmdRequestOptimize }
func (OptimizeCompleted) Type() CommandType  { return CmdOptimizeCompleted }
func (OptimizeFailed) Type() CommandType     { return CmdOptimizeFailed }
func (RequestExport) Type() CommandType      { return CmdRequestExport }
func (ExportCompleted) Type() CommandType    { return CmdExportCompleted }
func (ExportFailed) Type() CommandType       { return CmdExportFailed }
