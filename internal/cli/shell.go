package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ChuLiYu/rowplan/internal/artifact"
	"github.com/ChuLiYu/rowplan/internal/controller"
	"github.com/ChuLiYu/rowplan/internal/geometry"
	"github.com/ChuLiYu/rowplan/internal/render"
	"github.com/ChuLiYu/rowplan/internal/session"
	"github.com/ChuLiYu/rowplan/internal/workflow"
	"github.com/ChuLiYu/rowplan/pkg/types"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
)

// Colors
var (
	accent  = lipgloss.Color("#FF8800")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	failure = lipgloss.Color("#FF3333")
)

// Styles
var (
	promptStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	statusStyle  = lipgloss.NewStyle().Foreground(success)
	errorStyle   = lipgloss.NewStyle().Foreground(failure).Bold(true)
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

const shellHelp = `commands:
  upload <file>                 send a hole file to the optimizer
  row new                       create a row and make it active
  active <row>                  make a row active
  seq <n>                       start-from-previous-hole value of the active row
  assign <id> [id...]           move holes into the active row
  click <x> <y>                 assign the marker at a surface point
  down|move <x> <y>, up         pointer gesture in surface units
  drag <x1> <y1> <x2> <y2>      rubber-band select in one step
  constraints <h2h min> <h2h max> <r2r min> <r2r max>
  optimize                      request firing options
  options                       list firing options, * marks the selected one
  option <n>                    select option n (1-based)
  export                        download timing-results.csv
  validate [--remote]           check the rows locally or on the service
  rows                          list rows
  render [svg|png]              write the surface now
  status                        show the status line
  wait                          wait for pending requests
  quit`

// Shell is the line-oriented session front end.
type Shell struct {
	ctrl   *controller.Controller
	client *workflow.Client
	store  *artifact.Store
	out    io.Writer

	// WaitTimeout bounds how long a request command waits for its response.
	WaitTimeout time.Duration
}

// NewShell wires a shell to a started controller.
func NewShell(ctrl *controller.Controller, client *workflow.Client, store *artifact.Store, out io.Writer) *Shell {
	sh := &Shell{ctrl: ctrl, client: client, store: store, out: &lockedWriter{w: out}, WaitTimeout: 2 * time.Minute}
	ctrl.OnUpdate(func(u controller.Update) {
		if u.Change.Has(session.ChangeStatus) && u.Status != "" {
			fmt.Fprintln(sh.out, statusStyle.Render(u.Status))
		}
	})
	return sh
}

// Run executes lines from in until EOF or quit. With prompt set a prompt is
// printed before each line and errors do not end the session.
func (sh *Shell) Run(ctx context.Context, in io.Reader, prompt bool) error {
	scanner := bufio.NewScanner(in)
	lineNo := 0
	for {
		if prompt {
			fmt.Fprint(sh.out, promptStyle.Render("rowplan> "))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		lineNo++

		quit, err := sh.Exec(ctx, scanner.Text())
		if err != nil {
			if !prompt {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			fmt.Fprintln(sh.out, errorStyle.Render(err.Error()))
		}
		if quit {
			return nil
		}
	}
}

// Exec runs one command line.
func (sh *Shell) Exec(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return false, nil
	}
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "quit", "exit":
		return true, nil

	case "help":
		fmt.Fprintln(sh.out, mutedStyle.Render(shellHelp))
		return false, nil

	case "upload":
		if len(args) != 1 {
			return false, usage("upload <file>")
		}
		return false, sh.request(ctx, session.RequestUpload{Path: args[0]})

	case "optimize":
		if err := sh.request(ctx, session.RequestOptimize{}); err != nil {
			return false, err
		}
		return false, sh.printOptions()

	case "export":
		saved := sh.ctrl.Exports()
		if err := sh.request(ctx, session.RequestExport{}); err != nil {
			return false, err
		}
		if sh.store != nil && sh.ctrl.Exports() > saved {
			fmt.Fprintln(sh.out, mutedStyle.Render("saved "+sh.store.Path(workflow.ArtifactName)))
		}
		return false, nil

	case "wait":
		return false, sh.wait(ctx)

	case "row":
		if len(args) != 1 || args[0] != "new" {
			return false, usage("row new")
		}
		return false, sh.ctrl.Dispatch(session.CreateRow{})

	case "active":
		ids, err := ints(args, 1, 1)
		if err != nil {
			return false, usage("active <row>")
		}
		return false, sh.ctrl.Dispatch(session.SetActiveRow{Row: types.RowID(ids[0])})

	case "seq":
		ids, err := ints(args, 1, 1)
		if err != nil {
			return false, usage("seq <n>")
		}
		return false, sh.ctrl.Dispatch(session.SetSequencingInput{Value: ids[0]})

	case "assign":
		ids, err := ints(args, 1, -1)
		if err != nil {
			return false, usage("assign <id> [id...]")
		}
		return false, sh.ctrl.Dispatch(session.AssignHoles{IDs: ids})

	case "click", "down", "move":
		pts, err := points(args, 1)
		if err != nil {
			return false, usage(name + " <x> <y>")
		}
		p := session.Pointer{Pos: pts[0]}
		switch name {
		case "click":
			return false, sh.ctrl.Dispatch(session.Click{Pointer: p})
		case "down":
			return false, sh.ctrl.Dispatch(session.PointerDown{Pointer: p})
		default:
			return false, sh.ctrl.Dispatch(session.PointerMove{Pointer: p})
		}

	case "up":
		return false, sh.ctrl.Dispatch(session.PointerUp{})

	case "drag":
		pts, err := points(args, 2)
		if err != nil {
			return false, usage("drag <x1> <y1> <x2> <y2>")
		}
		for _, cmd := range []session.Command{
			session.PointerDown{Pointer: session.Pointer{Pos: pts[0]}},
			session.PointerMove{Pointer: session.Pointer{Pos: pts[1]}},
			session.PointerUp{},
		} {
			if err := sh.ctrl.Dispatch(cmd); err != nil {
				return false, err
			}
		}
		return false, nil

	case "constraints":
		vals, err := floats(args, 4)
		if err != nil {
			return false, usage("constraints <h2h min> <h2h max> <r2r min> <r2r max>")
		}
		return false, sh.ctrl.Dispatch(session.SetConstraints{Constraints: types.Constraints{
			HoleToHoleMin: vals[0],
			HoleToHoleMax: vals[1],
			RowToRowMin:   vals[2],
			RowToRowMax:   vals[3],
		}})

	case "options":
		return false, sh.printOptions()

	case "option":
		ids, err := ints(args, 1, 1)
		if err != nil {
			return false, usage("option <n>")
		}
		return false, sh.ctrl.Dispatch(session.SelectOption{Index: ids[0] - 1})

	case "validate":
		return false, sh.validate(ctx, len(args) == 1 && args[0] == "--remote")

	case "rows":
		return false, sh.printRows()

	case "status":
		var st string
		if err := sh.ctrl.Inspect(func(s *session.State) { st = s.Status() }); err != nil {
			return false, err
		}
		fmt.Fprintln(sh.out, statusStyle.Render(st))
		return false, nil

	case "render":
		format := "svg"
		if len(args) == 1 {
			format = args[0]
		}
		return false, sh.render(format)
	}

	return false, fmt.Errorf("%w %q (try help)", ErrUnknownCommand, name)
}

// request dispatches a request command and waits for its response.
func (sh *Shell) request(ctx context.Context, cmd session.Command) error {
	if err := sh.ctrl.Dispatch(cmd); err != nil {
		return err
	}
	return sh.wait(ctx)
}

func (sh *Shell) wait(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, sh.WaitTimeout)
	defer cancel()
	return sh.ctrl.WaitIdle(ctx)
}

func (sh *Shell) validate(ctx context.Context, remote bool) error {
	var problems []string
	var snap types.Snapshot
	if err := sh.ctrl.Inspect(func(s *session.State) {
		problems = s.Validate()
		snap = s.Snapshot()
	}); err != nil {
		return err
	}

	if remote {
		if sh.client == nil {
			return errors.New("no optimizer configured")
		}
		var err error
		problems, err = sh.client.Validate(ctx, snap)
		if err != nil {
			fmt.Fprintln(sh.out, errorStyle.Render(workflow.StatusMessage(workflow.OpValidate, err)))
			return nil
		}
	}

	if len(problems) == 0 {
		fmt.Fprintln(sh.out, statusStyle.Render("valid"))
		return nil
	}
	for _, p := range problems {
		fmt.Fprintln(sh.out, errorStyle.Render("- "+p))
	}
	return nil
}

func (sh *Shell) printRows() error {
	var rows []types.Row
	var active types.RowID
	var stats map[string]int
	if err := sh.ctrl.Inspect(func(s *session.State) {
		rows = s.Rows()
		active = s.ActiveRow()
		stats = s.Stats()
	}); err != nil {
		return err
	}

	fmt.Fprintln(sh.out, headingStyle.Render(fmt.Sprintf("%d holes, %d unassigned", stats["holes"], stats["unassigned"])))
	for _, r := range rows {
		marker := " "
		if r.ID == active {
			marker = "*"
		}
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(render.Hex(render.RowColor(r.ID)))).Render("●")
		fmt.Fprintf(sh.out, "%s %s row %d  start=%d  holes=%v\n", marker, swatch, r.ID, r.StartFromPrevHole, r.HoleIDs)
	}
	return nil
}

// printOptions lists the firing options, numbered the way option selects them.
func (sh *Shell) printOptions() error {
	var options []types.Option
	selected := -1
	if err := sh.ctrl.Inspect(func(s *session.State) {
		options = s.Options()
		selected = s.SelectedIndex()
	}); err != nil {
		return err
	}

	if len(options) == 0 {
		fmt.Fprintln(sh.out, mutedStyle.Render("no options"))
		return nil
	}
	for i, o := range options {
		marker := " "
		if i == selected {
			marker = "*"
		}
		fmt.Fprintf(sh.out, "%s %d) Opt %s: HH %g / RR %g / Max(8ms) %d\n",
			marker, i+1, o.ID, o.HoleToHoleMs, o.RowToRowMs, o.Metrics.MaxHolesPer8ms)
	}
	return nil
}

func (sh *Shell) render(format string) error {
	if sh.store == nil {
		return errors.New("no artifact directory configured")
	}
	var scene render.Scene
	if err := sh.ctrl.Inspect(func(s *session.State) { scene = s.Scene() }); err != nil {
		return err
	}

	var buf bytes.Buffer
	var name string
	switch format {
	case "svg":
		name = controller.SurfaceSVG
		if err := render.WriteSVG(&buf, scene); err != nil {
			return err
		}
	case "png":
		name = controller.SurfacePNG
		if err := render.WritePNG(&buf, scene); err != nil {
			return err
		}
	default:
		return usage("render [svg|png]")
	}

	path, err := sh.store.Save(name, buf.Bytes())
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, mutedStyle.Render("wrote "+path))
	return nil
}

// lockedWriter serializes status lines printed from the controller loop with
// command output.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func usage(s string) error {
	return fmt.Errorf("%w: %s", ErrUsage, s)
}

// ints parses at least lo and at most hi (-1 for any) integers.
func ints(args []string, lo, hi int) ([]int, error) {
	if len(args) < lo || (hi >= 0 && len(args) > hi) {
		return nil, ErrUsage
	}
	out := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(strings.TrimSuffix(a, ","))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func floats(args []string, n int) ([]float64, error) {
	if len(args) != n {
		return nil, ErrUsage
	}
	out := make([]float64, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func points(args []string, n int) ([]geometry.Point, error) {
	vals, err := floats(args, 2*n)
	if err != nil {
		return nil, err
	}
	pts := make([]geometry.Point, n)
	for i := range pts {
		pts[i] = geometry.Point{X: vals[2*i], Y: vals[2*i+1]}
	}
	return pts, nil
}
