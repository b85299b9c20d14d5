// ============================================================================
// rowplan Session - editor state
// ============================================================================
//
// Package: internal/session
// File: state.go
// Function: The single owned value holding everything the editor knows: the
//           assignment model, the optimizer options, form values, pending
//           request flags, the drag gesture and the status line.
//
// Ownership:
//   A State is not safe for concurrent use. The controller loop is its only
//   owner; all mutation goes through Apply (reducer.go).
//
// Lifetimes:
//   holes/rows  - replaced on every successful upload
//   options     - replaced on every successful optimize, cleared on upload
//   epoch       - bumped on upload; optimize results from an older epoch
//                 are discarded
//
// ============================================================================

package session

import (
	"encoding/json"
	"log/slog"

	"github.com/ChuLiYu/rowplan/internal/assignment"
	"github.com/ChuLiYu/rowplan/internal/geometry"
	"github.com/ChuLiYu/rowplan/internal/render"
	"github.com/ChuLiYu/rowplan/internal/selection"
	"github.com/ChuLiYu/rowplan/internal/workflow"
	"github.com/ChuLiYu/rowplan/pkg/types"
)

var log = slog.Default()

// Settings are the fixed parameters of a session.
type Settings struct {
	Surface      geometry.Surface
	MarkerRadius float64
	Constraints  types.Constraints // initial constraint form values
}

// DefaultConstraints are the constraint form defaults.
var DefaultConstraints = types.Constraints{
	HoleToHoleMin: 17,
	HoleToHoleMax: 42,
	RowToRowMin:   42,
	RowToRowMax:   100,
}

// DefaultSettings returns the standard surface and marker size.
func DefaultSettings() Settings {
	return Settings{
		Surface:      geometry.DefaultSurface(),
		MarkerRadius: render.DefaultMarkerRadius,
		Constraints:  DefaultConstraints,
	}
}

// State is the editor state.
type State struct {
	settings Settings

	model     *assignment.Model
	options   []types.Option
	selected  int // index into options, -1 for none
	canExport bool

	pending map[workflow.Op]bool
	epoch   uint64

	seqInput    int
	constraints types.Constraints

	drag   selection.Drag
	status string
}

// New returns an empty session.
func New(settings Settings) *State {
	if settings.Surface.Width <= 0 || settings.Surface.Height <= 0 {
		settings.Surface = geometry.DefaultSurface()
	}
	if settings.MarkerRadius <= 0 {
		settings.MarkerRadius = render.DefaultMarkerRadius
	}
	return &State{
		settings:    settings,
		model:       assignment.NewModel(),
		selected:    -1,
		pending:     make(map[workflow.Op]bool),
		seqInput:    types.DefaultStartFromPrevHole,
		constraints: settings.Constraints,
	}
}

// ============================================================================
// Queries
// ============================================================================

// Settings returns the settings the session was created with.
func (s *State) Settings() Settings { return s.settings }

// Holes returns the uploaded holes in upload order.
func (s *State) Holes() []types.Hole { return s.model.Holes() }

// Rows returns copies of the rows in creation order.
func (s *State) Rows() []types.Row { return s.model.Rows() }

// ActiveRow returns the row that assignments go to, 0 when there is none.
func (s *State) ActiveRow() types.RowID { return s.model.ActiveRow() }

// Owner returns the row a hole is assigned to.
func (s *State) Owner(holeID int) (types.RowID, bool) { return s.model.Owner(holeID) }

// Stats returns hole, row and assignment counts for status output.
func (s *State) Stats() map[string]int { return s.model.Stats() }

// Validate runs the local pre-flight checks.
func (s *State) Validate() []string { return s.model.Validate() }

// Snapshot copies the holes and rows.
func (s *State) Snapshot() types.Snapshot { return s.model.Snapshot() }

// Options returns the option collection.
func (s *State) Options() []types.Option {
	out := make([]types.Option, len(s.options))
	copy(out, s.options)
	return out
}

// SelectedIndex is the index of the selected option, -1 for none.
func (s *State) SelectedIndex() int { return s.selected }

// Selected returns the selected option.
func (s *State) Selected() (types.Option, bool) {
	if s.selected < 0 || s.selected >= len(s.options) {
		return types.Option{}, false
	}
	return s.options[s.selected], true
}

func (s *State) selectedPtr() *types.Option {
	if s.selected < 0 || s.selected >= len(s.options) {
		return nil
	}
	return &s.options[s.selected]
}

// ExportEnabled reports whether the export trigger is available.
func (s *State) ExportEnabled() bool { return s.canExport && !s.pending[workflow.OpExport] }

// Pending reports whether a call of the kind is in flight.
func (s *State) Pending(op workflow.Op) bool { return s.pending[op] }

// Idle reports whether no call is in flight.
func (s *State) Idle() bool {
	for _, p := range s.pending {
		if p {
			return false
		}
	}
	return true
}

// Epoch is the upload generation.
func (s *State) Epoch() uint64 { return s.epoch }

// SequencingInput is the start-from-previous-hole form value.
func (s *State) SequencingInput() int { return s.seqInput }

// Constraints are the current constraint form values.
func (s *State) Constraints() types.Constraints { return s.constraints }

// Band returns the rubber band while a drag is visible.
func (s *State) Band() (geometry.Rect, bool) { return s.drag.Rect() }

// Dragging reports whether a gesture is in progress.
func (s *State) Dragging() bool { return s.drag.Active() }

// Status is the status line.
func (s *State) Status() string { return s.status }

// Scene builds the display list for the current state.
func (s *State) Scene() render.Scene {
	in := render.Input{
		Surface:      s.settings.Surface,
		MarkerRadius: s.settings.MarkerRadius,
		Holes:        s.model.Holes(),
		Rows:         s.model.Rows(),
		ActiveRow:    s.model.ActiveRow(),
		Option:       s.selectedPtr(),
	}
	if band, ok := s.drag.Rect(); ok {
		in.Band = &band
	}
	return render.Build(in)
}

// ============================================================================
// Status formatting
// ============================================================================

type wireWindow struct {
	StartMs   float64 `json:"window_start_ms"`
	EndMs     float64 `json:"window_end_ms"`
	HoleCount int     `json:"hole_count"`
}

type wireMetrics struct {
	MaxHolesPer8ms int          `json:"max_holes_per_8ms"`
	HolesPer8ms    []wireWindow `json:"holes_per_8ms"`
}

// optionStatus renders an option's metrics the way the service reports them.
func optionStatus(o types.Option) string {
	m := wireMetrics{
		MaxHolesPer8ms: o.Metrics.MaxHolesPer8ms,
		HolesPer8ms:    make([]wireWindow, len(o.Metrics.HolesPer8ms)),
	}
	for i, w := range o.Metrics.HolesPer8ms {
		m.HolesPer8ms[i] = wireWindow{StartMs: w.StartMs, EndMs: w.EndMs, HoleCount: w.HoleCount}
	}
	return prettyJSON(m)
}

func uploadStatus(count int) string {
	return prettyJSON(map[string]int{"uploaded": count})
}

func rawStatus(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return prettyJSON(v), true
}

func prettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}
