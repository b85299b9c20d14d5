// ============================================================================
// rowplan Assignment Model - hole to row membership
// ============================================================================
//
// Package: internal/assignment
// File: model.go
// Function: Authoritative in-memory store of holes, rows and membership.
//
// Invariants:
//   1. Exclusive ownership - a hole id is in at most one row's HoleIDs.
//      Assign removes every id from its current owner before adding it to
//      the active row.
//   2. Active row - exactly one row is active once any row exists. Reset
//      always leaves one fresh, empty, active row behind.
//   3. Row ids are sequential from 1 and never reused. Rows are never
//      deleted; they can only be emptied by reassigning their holes.
//
// Data structures:
//   holes  []types.Hole          - upload order, drives draw order
//   rows   []*types.Row          - creation order, rows[i].ID == i+1
//   owner  map[int]types.RowID   - reverse index hole id -> owning row
//
// Concurrency:
//   The model is not locked. It is owned by the session state, which is only
//   touched from the controller loop goroutine.
//
// ============================================================================

package assignment

import (
	"errors"
	"fmt"

	"github.com/ChuLiYu/rowplan/pkg/types"
)

var (
	// ErrNoActiveRow is returned by Assign when there is no row to assign to.
	ErrNoActiveRow = errors.New("no active row")
	// ErrRowNotFound is returned for a row id that was never created.
	ErrRowNotFound = errors.New("row not found")
	// ErrInvalidSequencing is returned for a start_from_prev_hole below 1.
	ErrInvalidSequencing = errors.New("start_from_prev_hole must be >= 1")
)

// Model is the assignment store.
type Model struct {
	holes  []types.Hole
	rows   []*types.Row
	owner  map[int]types.RowID
	known  map[int]struct{}
	active types.RowID // 0 when no row exists
}

// NewModel returns an empty model with no holes and no rows.
func NewModel() *Model {
	return &Model{
		holes: make([]types.Hole, 0),
		rows:  make([]*types.Row, 0),
		owner: make(map[int]types.RowID),
		known: make(map[int]struct{}),
	}
}

// Reset replaces the hole collection, drops every row and creates exactly one
// fresh active row.
func (m *Model) Reset(holes []types.Hole) {
	m.holes = make([]types.Hole, len(holes))
	copy(m.holes, holes)
	m.known = make(map[int]struct{}, len(holes))
	for _, h := range holes {
		m.known[h.ID] = struct{}{}
	}
	m.rows = make([]*types.Row, 0)
	m.owner = make(map[int]types.RowID)
	m.active = 0
	m.CreateRow()
}

// CreateRow appends a row with the next sequential id and makes it active.
func (m *Model) CreateRow() types.RowID {
	id := types.RowID(len(m.rows) + 1)
	m.rows = append(m.rows, &types.Row{
		ID:                id,
		HoleIDs:           make([]int, 0),
		StartFromPrevHole: types.DefaultStartFromPrevHole,
	})
	m.active = id
	return id
}

// Assign moves every hole in ids to the active row and records the
// sequencing flag on it. Ids already in the active row stay where they are
// and ids that name no uploaded hole are skipped. A flag below 1 is stored as
// the default.
//
// It reports whether any membership changed.
func (m *Model) Assign(ids []int, startFromPrevHole int) (bool, error) {
	row := m.row(m.active)
	if row == nil {
		return false, ErrNoActiveRow
	}

	changed := false
	for _, id := range ids {
		if _, ok := m.known[id]; !ok {
			continue
		}
		owner, owned := m.owner[id]
		if owned && owner == row.ID {
			continue
		}
		if owned {
			m.removeFrom(owner, id)
		}
		row.HoleIDs = append(row.HoleIDs, id)
		m.owner[id] = row.ID
		changed = true
	}

	if startFromPrevHole < 1 {
		startFromPrevHole = types.DefaultStartFromPrevHole
	}
	row.StartFromPrevHole = startFromPrevHole
	return changed, nil
}

// removeFrom drops a hole id from a row's membership.
func (m *Model) removeFrom(rowID types.RowID, holeID int) {
	row := m.row(rowID)
	if row == nil {
		return
	}
	kept := row.HoleIDs[:0]
	for _, id := range row.HoleIDs {
		if id != holeID {
			kept = append(kept, id)
		}
	}
	row.HoleIDs = kept
	delete(m.owner, holeID)
}

// SetActiveRow changes which row later assignments target.
func (m *Model) SetActiveRow(id types.RowID) error {
	if m.row(id) == nil {
		return fmt.Errorf("%w: %d", ErrRowNotFound, id)
	}
	m.active = id
	return nil
}

// SetSequencing updates a row's start_from_prev_hole.
func (m *Model) SetSequencing(id types.RowID, value int) error {
	row := m.row(id)
	if row == nil {
		return fmt.Errorf("%w: %d", ErrRowNotFound, id)
	}
	if value < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidSequencing, value)
	}
	row.StartFromPrevHole = value
	return nil
}

func (m *Model) row(id types.RowID) *types.Row {
	if id < 1 || int(id) > len(m.rows) {
		return nil
	}
	return m.rows[id-1]
}

// ============================================================================
// Queries
// ============================================================================

// Holes returns the hole collection in upload order.
func (m *Model) Holes() []types.Hole {
	out := make([]types.Hole, len(m.holes))
	copy(out, m.holes)
	return out
}

// HasHoles reports whether anything has been uploaded.
func (m *Model) HasHoles() bool {
	return len(m.holes) > 0
}

// Rows returns deep copies of every row in creation order.
func (m *Model) Rows() []types.Row {
	out := make([]types.Row, len(m.rows))
	for i, r := range m.rows {
		out[i] = r.Clone()
	}
	return out
}

// Row returns a copy of one row.
func (m *Model) Row(id types.RowID) (types.Row, bool) {
	r := m.row(id)
	if r == nil {
		return types.Row{}, false
	}
	return r.Clone(), true
}

// ActiveRow returns the active row id, or 0 when there is none.
func (m *Model) ActiveRow() types.RowID {
	return m.active
}

// Owner returns the row holding a hole.
func (m *Model) Owner(holeID int) (types.RowID, bool) {
	id, ok := m.owner[holeID]
	return id, ok
}

// Snapshot copies holes and rows for an optimize request.
func (m *Model) Snapshot() types.Snapshot {
	return types.Snapshot{Holes: m.Holes(), Rows: m.Rows()}
}

// Stats summarizes the model.
func (m *Model) Stats() map[string]int {
	return map[string]int{
		"holes":      len(m.holes),
		"rows":       len(m.rows),
		"assigned":   len(m.owner),
		"unassigned": len(m.holes) - len(m.owner),
		"active_row": int(m.active),
	}
}
