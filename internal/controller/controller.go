// ============================================================================
// rowplan Controller - session loop
// ============================================================================
//
// Package: internal/controller
// File: controller.go
// Function: Owns the editor session. Every state change goes through one
//           goroutine; network round trips run on the worker pool and come
//           back to that goroutine as completion commands.
//
// Loop:
//   ┌──────────┐ Dispatch ┌───────────┐ Apply ┌──────────────┐
//   │  caller  │ ───────> │   loop    │ ────> │ session.State│
//   └──────────┘          │ goroutine │ <──── └──────────────┘
//                         └───────────┘ Outcome{Change, Effects}
//                           │      ↑
//                  Submit() │      │ Results()
//                           ↓      │
//                         ┌───────────┐
//                         │ worker    │ ── upload / optimize / export ──> service
//                         │ pool      │
//                         └───────────┘
//
//   1. A command is reduced against the state
//   2. Effects are executed: request tasks are submitted, downloads are
//      written to the artifact store
//   3. On a redraw the scene is rebuilt, written as SVG/PNG when enabled,
//      and handed to listeners
//   4. A finished task is turned into its completion command and goes
//      through step 1 again
//
// Concurrency:
//   Only the loop goroutine touches the state. Inspect runs a function on
//   the loop for read access. The worker pool's per-kind gates mirror the
//   state's pending flags, so at most one request per kind is in flight.
//
// Shutdown:
//   1. close(stopCh)  -> loop exits, late results are dropped
//   2. loopWg.Wait()
//   3. pool.Stop()    -> running requests finish, their results are discarded
//
// ============================================================================

package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ChuLiYu/rowplan/internal/artifact"
	"github.com/ChuLiYu/rowplan/internal/metrics"
	"github.com/ChuLiYu/rowplan/internal/render"
	"github.com/ChuLiYu/rowplan/internal/session"
	"github.com/ChuLiYu/rowplan/internal/worker"
	"github.com/ChuLiYu/rowplan/internal/workflow"
	"github.com/ChuLiYu/rowplan/pkg/types"
)

var log = slog.Default()

var (
	ErrStopped    = errors.New("controller stopped")
	ErrNotStarted = errors.New("controller not started")
)

// Artifact names written on redraw.
const (
	SurfaceSVG = "surface.svg"
	SurfacePNG = "surface.png"
)

// ============================================================================
// Types
// ============================================================================

// Config configures a Controller.
type Config struct {
	Settings       session.Settings
	WorkerCount    int           // request workers, default 3
	RequestTimeout time.Duration // per round trip, 0 for the client timeout only
	RenderSVG      bool          // write surface.svg on redraw
	RenderPNG      bool          // write surface.png on redraw
	ExportXLSX     bool          // also write the exported table as a workbook
}

// Update is what listeners receive after a command changed something.
type Update struct {
	Change session.Change
	Scene  render.Scene // rebuilt only when Change.Redraw()
	Status string
}

// Listener is called on the loop goroutine; it must not call Inspect or
// block on Dispatch.
type Listener func(Update)

// Optimizer is the part of the workflow client the controller drives.
type Optimizer interface {
	Upload(ctx context.Context, filename string, r io.Reader) (workflow.UploadResult, error)
	Optimize(ctx context.Context, req workflow.OptimizeRequest) (workflow.OptimizeResult, error)
	Export(ctx context.Context, timing []types.HoleTiming, summary []types.SummaryRow) ([]byte, error)
}

type envelope struct {
	cmd     session.Command
	inspect func(*session.State)
	done    chan struct{}
}

// inflight remembers what a submitted task was for.
type inflight struct {
	op      workflow.Op
	epoch   uint64
	summary []types.SummaryRow
}

// Controller drives one editor session.
type Controller struct {
	config  Config
	state   *session.State
	client  Optimizer
	pool    *worker.Pool
	store   *artifact.Store
	metrics *metrics.Collector

	tasks       map[string]inflight
	lastSummary []types.SummaryRow
	exports     atomic.Uint64

	listenerMu sync.Mutex
	listeners  []Listener

	cmdCh   chan envelope
	stopCh  chan struct{}
	loopWg  sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
}

// ============================================================================
// Lifecycle
// ============================================================================

// New creates a controller. store and collector may be nil.
func New(config Config, client Optimizer, store *artifact.Store, collector *metrics.Collector) *Controller {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 3
	}
	return &Controller{
		config:  config,
		state:   session.New(config.Settings),
		client:  client,
		pool:    worker.NewPool(8),
		store:   store,
		metrics: collector,
		tasks:   make(map[string]inflight),
		cmdCh:   make(chan envelope),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the worker pool and the loop.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ErrStopped
	}
	if c.started {
		return errors.New("controller already started")
	}
	if err := c.pool.Start(c.config.WorkerCount); err != nil {
		return err
	}

	c.started = true
	c.loopWg.Add(1)
	go c.loop()

	log.Info("Controller started", "workers", c.config.WorkerCount)
	return nil
}

// Stop ends the loop and waits for running requests. Their results are
// discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.started || c.stopped {
		c.stopped = true
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	log.Info("Stopping controller...")
	close(c.stopCh)
	c.loopWg.Wait()
	c.pool.Stop()
	log.Info("Controller stopped")
}

// OnUpdate registers a listener.
func (c *Controller) OnUpdate(l Listener) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.listeners = append(c.listeners, l)
}

// ============================================================================
// Public methods
// ============================================================================

// Dispatch hands a command to the loop and returns once it has been reduced
// and its effects started.
func (c *Controller) Dispatch(cmd session.Command) error {
	return c.send(envelope{cmd: cmd, done: make(chan struct{})})
}

// Inspect runs fn on the loop goroutine with read access to the state.
func (c *Controller) Inspect(fn func(*session.State)) error {
	return c.send(envelope{inspect: fn, done: make(chan struct{})})
}

// WaitIdle blocks until no request is pending or ctx ends.
func (c *Controller) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		idle := false
		if err := c.Inspect(func(s *session.State) { idle = s.Idle() }); err != nil {
			return err
		}
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Exports returns how many exported tables have been saved so far.
func (c *Controller) Exports() uint64 { return c.exports.Load() }

func (c *Controller) send(env envelope) error {
	c.mu.Lock()
	started, stopped := c.started, c.stopped
	c.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	if !started {
		return ErrNotStarted
	}

	select {
	case c.cmdCh <- env:
	case <-c.stopCh:
		return ErrStopped
	}
	select {
	case <-env.done:
		return nil
	case <-c.stopCh:
		return ErrStopped
	}
}

// ============================================================================
// Loop
// ============================================================================

func (c *Controller) loop() {
	defer c.loopWg.Done()
	results := c.pool.Results()

	for {
		select {
		case <-c.stopCh:
			log.Info("Session loop stopped")
			return

		case env := <-c.cmdCh:
			if env.inspect != nil {
				env.inspect(c.state)
			} else {
				c.apply(env.cmd)
			}
			close(env.done)

		case result, ok := <-results:
			if !ok {
				return
			}
			c.handleResult(result)
		}
	}
}

// apply reduces one command and carries out what it asks for.
func (c *Controller) apply(cmd session.Command) {
	if op, ok := requestOp(cmd); ok && c.state.Pending(op) && c.metrics != nil {
		c.metrics.RecordRejected(string(op))
	}

	out := c.state.Apply(cmd)
	log.Debug("Command applied", "type", cmd.Type(), "change", out.Change.String(), "effects", len(out.Effects))

	for _, eff := range out.Effects {
		c.execute(eff)
	}
	c.publish(out.Change)
}

// handleResult turns a finished task into its completion command.
func (c *Controller) handleResult(result worker.Result) {
	task, ok := c.tasks[result.TaskID]
	if !ok {
		log.Warn("Unknown task result", "task", result.TaskID)
		return
	}
	delete(c.tasks, result.TaskID)
	c.recordRequest(task.op, result)

	if !result.Success() {
		log.Warn("Request failed", "op", task.op, "duration", result.Duration, "error", result.Err)
	} else {
		log.Debug("Request completed", "op", task.op, "duration", result.Duration)
	}

	switch task.op {
	case workflow.OpUpload:
		if !result.Success() {
			c.apply(session.UploadFailed{Err: result.Err})
			return
		}
		up := result.Value.(workflow.UploadResult)
		c.apply(session.UploadCompleted{Holes: up.Holes, Count: up.Count})

	case workflow.OpOptimize:
		if !result.Success() {
			c.apply(session.OptimizeFailed{Epoch: task.epoch, Err: result.Err})
			return
		}
		opt := result.Value.(workflow.OptimizeResult)
		c.apply(session.OptimizeCompleted{Epoch: task.epoch, Options: opt.Options, Metrics: opt.Metrics})

	case workflow.OpExport:
		if !result.Success() {
			c.apply(session.ExportFailed{Err: result.Err})
			return
		}
		c.lastSummary = task.summary
		c.apply(session.ExportCompleted{Content: result.Value.([]byte)})
	}
}

// publish refreshes gauges, writes surface artifacts and notifies listeners.
func (c *Controller) publish(change session.Change) {
	if change == 0 {
		return
	}

	if c.metrics != nil {
		if change.Has(session.ChangeModel) {
			st := c.state.Stats()
			c.metrics.UpdateLayout(st["holes"], st["rows"], st["assigned"])
		}
		if change&(session.ChangeOptions|session.ChangeSelection) != 0 {
			o, ok := c.state.Selected()
			c.metrics.UpdateOptions(len(c.state.Options()), ok, o.Metrics.MaxHolesPer8ms)
		}
	}

	update := Update{Change: change, Status: c.state.Status()}
	if change.Redraw() {
		update.Scene = c.state.Scene()
		c.writeSurface(update.Scene)
		if c.metrics != nil {
			c.metrics.RecordRedraw()
		}
	}

	c.listenerMu.Lock()
	listeners := append([]Listener(nil), c.listeners...)
	c.listenerMu.Unlock()
	for _, l := range listeners {
		l(update)
	}
}

func (c *Controller) recordRequest(op workflow.Op, result worker.Result) {
	if c.metrics == nil {
		return
	}
	outcome := metrics.OutcomeOK
	if !result.Success() {
		var se *workflow.ServiceError
		if errors.As(result.Err, &se) {
			outcome = metrics.OutcomeServiceError
		} else {
			outcome = metrics.OutcomeTransportError
		}
	}
	c.metrics.RecordRequest(string(op), outcome, result.Duration)
}

func requestOp(cmd session.Command) (workflow.Op, bool) {
	switch cmd.(type) {
	case session.RequestUpload:
		return workflow.OpUpload, true
	case session.RequestOptimize:
		return workflow.OpOptimize, true
	case session.RequestExport:
		return workflow.OpExport, true
	}
	return "", false
}
