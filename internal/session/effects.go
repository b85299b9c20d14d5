package session

import (
	"strings"

	"github.com/ChuLiYu/rowplan/internal/workflow"
	"github.com/ChuLiYu/rowplan/pkg/types"
)

// Change is the set of state areas an Apply touched.
type Change uint16

const (
	ChangeModel     Change = 1 << iota // holes, rows, membership, active row
	ChangeOptions                      // option collection replaced
	ChangeSelection                    // selected option
	ChangeBand                         // rubber band shown, moved or cleared
	ChangeControls                     // form values, pending flags, export enabled
	ChangeStatus                       // status line
)

// Redraw reports whether the drawing surface must be rebuilt.
func (c Change) Redraw() bool {
	return c&(ChangeModel|ChangeOptions|ChangeSelection|ChangeBand) != 0
}

// Has reports whether all bits of o are set.
func (c Change) Has(o Change) bool {
	return c&o == o
}

func (c Change) String() string {
	if c == 0 {
		return "none"
	}
	names := []string{"model", "options", "selection", "band", "controls", "status"}
	var parts []string
	for i, n := range names {
		if c&(1<<i) != 0 {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "|")
}

// Effect is work the caller performs after a reduction.
type Effect interface {
	Op() workflow.Op
}

// StartUpload uploads the file at Path.
type StartUpload struct {
	Path string
}

// StartOptimize sends the captured layout to the optimizer. The completion
// must echo Epoch.
type StartOptimize struct {
	Epoch   uint64
	Request workflow.OptimizeRequest
}

// StartExport sends the selected option's timing and summary.
type StartExport struct {
	Timing  []types.HoleTiming
	Summary []types.SummaryRow
}

// Download hands the exported table to the user.
type Download struct {
	Name    string
	Content []byte
}

func (StartUpload) Op() workflow.Op   { return workflow.OpUpload }
func (StartOptimize) Op() workflow.Op { return workflow.OpOptimize }
func (StartExport) Op() workflow.Op   { return workflow.OpExport }
func (Download) Op() workflow.Op      { return workflow.OpExport }

// Outcome is the result of applying one command.
type Outcome struct {
	Change  Change
	Effects []Effect
}
