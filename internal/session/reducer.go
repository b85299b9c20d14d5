package session

import (
	"github.com/ChuLiYu/rowplan/internal/geometry"
	"github.com/ChuLiYu/rowplan/internal/selection"
	"github.com/ChuLiYu/rowplan/internal/workflow"
	"github.com/ChuLiYu/rowplan/pkg/types"
)

// Apply is the only mutation path of a State. Commands whose preconditions
// do not hold (no active row, nothing selected, request already pending)
// leave the state untouched and return an empty Outcome.
func (s *State) Apply(cmd Command) Outcome {
	var out Outcome
	switch c := cmd.(type) {
	case CreateRow:
		s.model.CreateRow()
		out.Change = ChangeModel

	case AssignHoles:
		out.Change = s.assign(c.IDs)

	case SetActiveRow:
		if err := s.model.SetActiveRow(c.Row); err != nil {
			log.Debug("ignoring active row change", "row", c.Row, "error", err)
			break
		}
		row, _ := s.model.Row(c.Row)
		s.seqInput = row.StartFromPrevHole
		out.Change = ChangeModel | ChangeControls

	case SetSequencingInput:
		v := c.Value
		if v < 1 {
			v = types.DefaultStartFromPrevHole
		}
		s.seqInput = v
		out.Change = ChangeControls
		if active := s.model.ActiveRow(); active != 0 {
			if err := s.model.SetSequencing(active, v); err == nil {
				out.Change |= ChangeModel
			}
		}

	case SetConstraints:
		s.constraints = c.Constraints
		out.Change = ChangeControls

	case SelectOption:
		if c.Index < 0 || c.Index >= len(s.options) {
			log.Debug("ignoring option selection", "index", c.Index, "options", len(s.options))
			break
		}
		s.selected = c.Index
		s.status = optionStatus(s.options[c.Index])
		out.Change = ChangeSelection | ChangeStatus

	case PointerDown:
		if s.drag.Begin(s.logical(c.Pointer), s.model.HasHoles()) {
			out.Change = ChangeBand
		}

	case PointerMove:
		if s.drag.Move(s.logical(c.Pointer)) {
			out.Change = ChangeBand
		}

	case PointerUp:
		wasVisible := false
		if _, ok := s.drag.Rect(); ok {
			wasVisible = true
		}
		rect, ok := s.drag.End()
		if wasVisible {
			out.Change = ChangeBand
		}
		if !ok {
			break
		}
		ids := selection.InRect(s.model.Holes(), s.settings.Surface, rect)
		if len(ids) > 0 {
			out.Change |= s.assign(ids)
		}

	case Click:
		id, hit := selection.AtPoint(s.model.Holes(), s.settings.Surface, s.logical(c.Pointer), s.settings.MarkerRadius)
		if hit {
			out.Change = s.assign([]int{id})
		}

	case RequestUpload:
		if s.pending[workflow.OpUpload] {
			log.Debug("upload already pending")
			break
		}
		s.pending[workflow.OpUpload] = true
		out.Change = ChangeControls
		out.Effects = []Effect{StartUpload{Path: c.Path}}

	case UploadCompleted:
		s.pending[workflow.OpUpload] = false
		s.epoch++
		s.model.Reset(c.Holes)
		s.options = nil
		s.selected = -1
		s.canExport = false
		s.drag = selection.Drag{}
		s.seqInput = types.DefaultStartFromPrevHole
		count := c.Count
		if count == 0 {
			count = len(c.Holes)
		}
		s.status = uploadStatus(count)
		out.Change = ChangeModel | ChangeOptions | ChangeSelection | ChangeBand | ChangeControls | ChangeStatus

	case UploadFailed:
		s.pending[workflow.OpUpload] = false
		s.status = workflow.StatusMessage(workflow.OpUpload, c.Err)
		out.Change = ChangeControls | ChangeStatus

	case RequestOptimize:
		if s.pending[workflow.OpOptimize] {
			log.Debug("optimize already pending")
			break
		}
		s.pending[workflow.OpOptimize] = true
		out.Change = ChangeControls
		out.Effects = []Effect{StartOptimize{
			Epoch: s.epoch,
			Request: workflow.OptimizeRequest{
				Snapshot:    s.model.Snapshot(),
				Constraints: s.constraints,
			},
		}}

	case OptimizeCompleted:
		s.pending[workflow.OpOptimize] = false
		out.Change = ChangeControls
		if c.Epoch != s.epoch {
			log.Info("discarding options for a replaced hole set", "epoch", c.Epoch, "current", s.epoch)
			break
		}
		s.options = c.Options
		s.selected = -1
		if len(s.options) > 0 {
			s.selected = 0
		}
		s.canExport = len(s.options) > 0
		if st, ok := rawStatus(c.Metrics); ok {
			s.status = st
		} else if o, ok := s.Selected(); ok {
			s.status = optionStatus(o)
		} else {
			s.status = "no options returned"
		}
		out.Change |= ChangeOptions | ChangeSelection | ChangeStatus

	case OptimizeFailed:
		s.pending[workflow.OpOptimize] = false
		out.Change = ChangeControls
		if c.Epoch != s.epoch {
			break
		}
		s.status = workflow.StatusMessage(workflow.OpOptimize, c.Err)
		out.Change |= ChangeStatus

	case RequestExport:
		o, ok := s.Selected()
		if !ok || !s.canExport {
			log.Debug("export without a selected option")
			break
		}
		if s.pending[workflow.OpExport] {
			log.Debug("export already pending")
			break
		}
		s.pending[workflow.OpExport] = true
		out.Change = ChangeControls
		out.Effects = []Effect{StartExport{
			Timing:  append([]types.HoleTiming(nil), o.Timing...),
			Summary: workflow.SummaryRows(o),
		}}

	case ExportCompleted:
		s.pending[workflow.OpExport] = false
		out.Change = ChangeControls
		out.Effects = []Effect{Download{Name: workflow.ArtifactName, Content: c.Content}}

	case ExportFailed:
		s.pending[workflow.OpExport] = false
		s.status = workflow.StatusMessage(workflow.OpExport, c.Err)
		out.Change = ChangeControls | ChangeStatus

	default:
		log.Warn("unknown session command", "type", cmd.Type())
	}
	return out
}

// assign moves ids into the active row with the current sequencing input.
func (s *State) assign(ids []int) Change {
	before, _ := s.model.Row(s.model.ActiveRow())
	changed, err := s.model.Assign(ids, s.seqInput)
	if err != nil {
		log.Debug("assignment ignored", "holes", len(ids), "error", err)
		return 0
	}
	after, _ := s.model.Row(s.model.ActiveRow())
	if !changed && before.StartFromPrevHole == after.StartFromPrevHole {
		return 0
	}
	return ChangeModel
}

func (s *State) logical(p Pointer) geometry.Point {
	if p.Viewport == nil {
		return p.Pos
	}
	return s.settings.Surface.FromClient(p.Pos, *p.Viewport)
}
