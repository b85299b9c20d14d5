package controller

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ChuLiYu/rowplan/internal/artifact"
	"github.com/ChuLiYu/rowplan/internal/render"
	"github.com/ChuLiYu/rowplan/internal/session"
	"github.com/ChuLiYu/rowplan/internal/worker"
	"github.com/ChuLiYu/rowplan/internal/workflow"
)

// execute carries out one effect of a reduction.
func (c *Controller) execute(eff session.Effect) {
	switch e := eff.(type) {
	case session.StartUpload:
		path := e.Path
		c.submit(inflight{op: workflow.OpUpload}, func(ctx context.Context) (any, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("failed to open %s: %w", path, err)
			}
			defer f.Close()
			return c.client.Upload(ctx, filepath.Base(path), f)
		})

	case session.StartOptimize:
		req := e.Request
		c.submit(inflight{op: workflow.OpOptimize, epoch: e.Epoch}, func(ctx context.Context) (any, error) {
			return c.client.Optimize(ctx, req)
		})

	case session.StartExport:
		timing, summary := e.Timing, e.Summary
		c.submit(inflight{op: workflow.OpExport, summary: summary}, func(ctx context.Context) (any, error) {
			return c.client.Export(ctx, timing, summary)
		})

	case session.Download:
		c.download(e)

	default:
		log.Warn("Unknown effect", "op", eff.Op())
	}
}

// submit queues a request task. A task the pool refuses fails the request
// right away so its pending flag clears.
func (c *Controller) submit(meta inflight, run func(ctx context.Context) (any, error)) {
	kind := worker.Kind(meta.op)
	if c.pool.Busy(kind) {
		log.Debug("Previous request still running", "op", meta.op)
	}
	id, err := c.pool.Submit(worker.Task{
		Kind:    kind,
		Run:     run,
		Timeout: c.config.RequestTimeout,
	})
	if err != nil {
		log.Warn("Request not submitted", "op", meta.op, "error", err)
		switch meta.op {
		case workflow.OpUpload:
			c.apply(session.UploadFailed{Err: err})
		case workflow.OpOptimize:
			c.apply(session.OptimizeFailed{Epoch: meta.epoch, Err: err})
		case workflow.OpExport:
			c.apply(session.ExportFailed{Err: err})
		}
		return
	}
	c.tasks[id] = meta
	log.Debug("Request submitted", "op", meta.op, "task", id)
}

// download writes the exported table, plus a workbook when configured.
func (c *Controller) download(d session.Download) {
	if c.store == nil {
		log.Warn("No artifact store, dropping download", "name", d.Name)
		return
	}

	path, err := c.store.Save(d.Name, d.Content)
	if err != nil {
		log.Error("Failed to save export", "name", d.Name, "error", err)
		return
	}
	c.exports.Add(1)
	c.recordArtifact("csv")
	log.Info("Export saved", "path", path, "bytes", len(d.Content))

	if !c.config.ExportXLSX {
		return
	}
	book, err := artifact.TimingWorkbook(d.Content, c.lastSummary)
	if err != nil {
		log.Error("Failed to build workbook", "error", err)
		return
	}
	name := artifact.XLSXName(d.Name)
	if _, err := c.store.Save(name, book); err != nil {
		log.Error("Failed to save workbook", "name", name, "error", err)
		return
	}
	c.recordArtifact("xlsx")
}

// writeSurface renders the scene into the artifact store.
func (c *Controller) writeSurface(scene render.Scene) {
	if c.store == nil {
		return
	}
	if c.config.RenderSVG {
		var buf bytes.Buffer
		if err := render.WriteSVG(&buf, scene); err != nil {
			log.Error("Failed to render svg", "error", err)
		} else if _, err := c.store.Save(SurfaceSVG, buf.Bytes()); err != nil {
			log.Error("Failed to save svg", "error", err)
		} else {
			c.recordArtifact("svg")
		}
	}
	if c.config.RenderPNG {
		var buf bytes.Buffer
		if err := render.WritePNG(&buf, scene); err != nil {
			log.Error("Failed to render png", "error", err)
		} else if _, err := c.store.Save(SurfacePNG, buf.Bytes()); err != nil {
			log.Error("Failed to save png", "error", err)
		} else {
			c.recordArtifact("png")
		}
	}
}

func (c *Controller) recordArtifact(kind string) {
	if c.metrics != nil {
		c.metrics.RecordArtifact(kind)
	}
}
