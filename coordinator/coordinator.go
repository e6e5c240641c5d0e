// seehuhn.de/go/pagekit - page-level editing and export of PDF documents
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package coordinator runs rendering and export requests in a background
// worker, and falls back to the calling goroutine when the worker is not
// available.
//
// A Coordinator starts out without a worker.  The first request creates
// one.  If creating the worker fails, if a request cannot be handed to the
// worker, if the worker crashes, or if a response does not arrive in time,
// the coordinator switches to foreground execution for the rest of its
// lifetime and re-runs the failed request directly.  Callers never see
// these failures.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"seehuhn.de/go/pagekit/render"
)

// Default timeouts for requests handled by the worker.
const (
	DefaultRenderTimeout = 30 * time.Second
	DefaultExportTimeout = 60 * time.Second
)

// ErrDisposed is returned for requests which are pending when
// [Coordinator.Cleanup] is called, and for all later requests.
var ErrDisposed = errors.New("coordinator disposed")

// errRerun tells a waiting request to run in the foreground, because the
// worker was abandoned.
var errRerun = errors.New("re-run in foreground")

// State is the state of a Coordinator.
type State int

// These are the states of a Coordinator.
const (
	Uninitialized State = iota
	WorkerActive
	Degraded
	Disposed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case WorkerActive:
		return "worker active"
	case Degraded:
		return "degraded"
	case Disposed:
		return "disposed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Stats holds counters which describe the past behaviour of a Coordinator.
type Stats struct {
	State State

	WorkerStarts int // workers created
	Dispatches   int // requests handed to a worker
	Foreground   int // requests executed in the calling goroutine
	Fallbacks    int // switches to foreground execution
	Timeouts     int // requests which timed out
	Discarded    int // responses which arrived after their request was abandoned
}

// Coordinator dispatches requests to a background worker.
// It is safe for concurrent use.
type Coordinator struct {
	log           logrus.FieldLogger
	foreground    Backend
	renderOpts    []render.Option
	factory       WorkerFactory
	noWorker      bool
	renderTimeout time.Duration
	exportTimeout time.Duration
	stopAfter     func() bool

	mu         sync.Mutex
	state      State
	worker     Worker
	workerDone chan struct{}
	pending    map[uint64]chan *Response
	nextID     uint64
	stats      Stats
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

// WithBackend sets the backend used for foreground execution.
// By default, a [render.Renderer] is used.
func WithBackend(b Backend) Option {
	return func(c *Coordinator) {
		c.foreground = b
	}
}

// WithRenderOptions sets options for the renderers created by the
// coordinator, both for foreground execution and for the default worker.
func WithRenderOptions(opts ...render.Option) Option {
	return func(c *Coordinator) {
		c.renderOpts = append(c.renderOpts, opts...)
	}
}

// WithWorkerFactory replaces the function used to start the worker.
func WithWorkerFactory(f WorkerFactory) Option {
	return func(c *Coordinator) {
		c.factory = f
	}
}

// WithoutWorker disables background execution.  The coordinator switches
// to foreground execution on the first request.
func WithoutWorker() Option {
	return func(c *Coordinator) {
		c.noWorker = true
	}
}

// WithTimeouts sets the time to wait for responses from the worker, for
// single pages and for batch exports.
func WithTimeouts(renderPage, export time.Duration) Option {
	return func(c *Coordinator) {
		c.renderTimeout = renderPage
		c.exportTimeout = export
	}
}

// New creates a new Coordinator.  When ctx is cancelled, the coordinator
// is disposed as if [Coordinator.Cleanup] had been called.
func New(ctx context.Context, opts ...Option) *Coordinator {
	c := &Coordinator{
		log:           logrus.StandardLogger(),
		renderTimeout: DefaultRenderTimeout,
		exportTimeout: DefaultExportTimeout,
		pending:       make(map[uint64]chan *Response),
	}
	for _, opt := range opts {
		opt(c)
	}

	renderOpts := append([]render.Option{render.WithLogger(c.log)}, c.renderOpts...)
	if c.foreground == nil {
		c.foreground = render.New(renderOpts...)
	}
	if c.factory == nil && !c.noWorker {
		c.factory = GoroutineWorkers(c.log, renderOpts...)
	}
	if c.noWorker {
		c.factory = nil
	}

	c.stopAfter = context.AfterFunc(ctx, c.Cleanup)
	return c
}

// Stats returns a snapshot of the coordinator's counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.State = c.state
	return s
}

// RenderPage renders a single page.  The page index is 0-based, and scale
// gives pixels per PDF point.  For raster formats the result holds a bitmap
// which the caller must close; for SVG the result holds the SVG text.
//
// Like SVG batches in [Coordinator.ExportPages], SVG output is always
// produced in the foreground, where the vector sources are configured.
// This does not start the worker.
func (c *Coordinator) RenderPage(ctx context.Context, buf []byte, pageIndex int, scale float64, format Format) (*Result, error) {
	req := &Request{
		Kind: KindRender,
		Buf:  buf,
		Tasks: []Task{{
			ID:     taskIDs.Add(1),
			Page:   pageIndex,
			Scale:  scale,
			Format: format,
		}},
	}
	resp, err := c.do(ctx, req, c.renderTimeout)
	if err != nil {
		return nil, err
	}
	return &resp.Results[0], nil
}

// ExportPages renders and encodes a batch of pages.  The results are in the
// order of the tasks.  If any task requests SVG output, the whole batch is
// executed in the foreground.
func (c *Coordinator) ExportPages(ctx context.Context, buf []byte, tasks []Task) ([]Result, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	req := &Request{
		Kind:  KindExport,
		Buf:   buf,
		Tasks: make([]Task, len(tasks)),
	}
	for i, t := range tasks {
		t.ID = taskIDs.Add(1)
		req.Tasks[i] = t
	}
	resp, err := c.do(ctx, req, c.exportTimeout)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// LoadDocument parses a document, so that it is cached for later requests.
func (c *Coordinator) LoadDocument(ctx context.Context, buf []byte) (DocInfo, error) {
	req := &Request{Kind: KindLoad, Buf: buf}
	resp, err := c.do(ctx, req, c.renderTimeout)
	if err != nil {
		return DocInfo{}, err
	}
	return resp.Info, nil
}

// Cleanup rejects all pending requests with [ErrDisposed] and stops the
// worker.  Calling Cleanup more than once has no effect.
func (c *Coordinator) Cleanup() {
	c.mu.Lock()
	if c.state == Disposed {
		c.mu.Unlock()
		return
	}
	from := c.state
	c.state = Disposed
	n := len(c.pending)
	c.rejectPendingLocked(ErrDisposed)
	w := c.stopWorkerLocked()
	c.mu.Unlock()

	if w != nil {
		w.Terminate()
	}
	c.stopAfter()
	c.log.WithFields(logrus.Fields{
		"from":    from,
		"to":      Disposed,
		"pending": n,
	}).Info("coordinator state changed")
}

// do runs a request, in the worker if possible.
func (c *Coordinator) do(ctx context.Context, req *Request, timeout time.Duration) (*Response, error) {
	if err := req.check(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	switch c.state {
	case Disposed:
		c.mu.Unlock()
		return nil, ErrDisposed
	case Uninitialized:
		if req.hasSVG() {
			break
		}
		c.startWorkerLocked()
	}
	if c.state != WorkerActive || req.hasSVG() {
		c.mu.Unlock()
		if req.hasSVG() {
			c.log.WithField("tasks", len(req.Tasks)).Debug("SVG request runs in the foreground")
		}
		return c.runForeground(ctx, req)
	}

	c.nextID++
	req.ID = c.nextID
	ch := make(chan *Response, 1)
	c.pending[req.ID] = ch
	c.stats.Dispatches++
	w := c.worker
	c.mu.Unlock()

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := w.Post(tctx, req)
	if err != nil {
		if !c.forget(req.ID) {
			return c.finish(ctx, req, <-ch)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			c.mu.Lock()
			c.stats.Timeouts++
			c.mu.Unlock()
			c.degrade("timeout", err)
		} else {
			c.degrade("dispatch failed", err)
		}
		return c.runForeground(ctx, req)
	}

	select {
	case resp := <-ch:
		return c.finish(ctx, req, resp)
	case <-tctx.Done():
	}

	if !c.forget(req.ID) {
		// the response arrived at the same time as the timeout
		return c.finish(ctx, req, <-ch)
	}
	if ctx.Err() != nil {
		// the caller gave up, the worker is still fine
		return nil, ctx.Err()
	}

	c.mu.Lock()
	c.stats.Timeouts++
	c.mu.Unlock()
	c.degrade("timeout", fmt.Errorf("no response after %s", timeout))
	return c.runForeground(ctx, req)
}

// finish interprets a response from the worker.
func (c *Coordinator) finish(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	switch {
	case resp.Err == nil:
		return resp, nil
	case errors.Is(resp.Err, ErrDisposed):
		return nil, ErrDisposed
	case errors.Is(resp.Err, errRerun):
		return c.runForeground(ctx, req)
	case errors.Is(resp.Err, ErrWorkerFailed):
		c.degrade("worker failed", resp.Err)
		return c.runForeground(ctx, req)
	}
	return nil, resp.Err
}

func (c *Coordinator) runForeground(ctx context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	if c.state == Disposed {
		c.mu.Unlock()
		return nil, ErrDisposed
	}
	c.stats.Foreground++
	c.mu.Unlock()

	resp := Execute(ctx, c.foreground, req)
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp, nil
}

// startWorkerLocked creates the worker.  On failure, the coordinator is
// degraded.
func (c *Coordinator) startWorkerLocked() {
	if c.factory == nil {
		c.degradeLocked("background execution not supported", nil)
		return
	}

	responses := make(chan *Response, 16)
	w, err := c.factory(responses)
	if err == nil && w == nil {
		err = errors.New("no worker returned")
	}
	if err != nil {
		c.degradeLocked("worker creation failed", err)
		return
	}

	done := make(chan struct{})
	c.worker = w
	c.workerDone = done
	c.stats.WorkerStarts++
	c.setStateLocked(WorkerActive, "worker started")
	go c.receive(responses, done)
}

// receive delivers responses from the worker to the waiting requests.
func (c *Coordinator) receive(responses <-chan *Response, done <-chan struct{}) {
	for {
		select {
		case resp := <-responses:
			c.mu.Lock()
			ch, ok := c.pending[resp.ID]
			delete(c.pending, resp.ID)
			if !ok {
				c.stats.Discarded++
			}
			c.mu.Unlock()

			if ok {
				ch <- resp
			} else {
				c.log.WithField("id", resp.ID).Debug("late response discarded")
				resp.release()
			}
		case <-done:
			for {
				select {
				case resp := <-responses:
					resp.release()
				default:
					return
				}
			}
		}
	}
}

// forget removes a pending request.  The return value is false if the
// request was already resolved, in which case a response is waiting in its
// channel.
func (c *Coordinator) forget(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[id]
	delete(c.pending, id)
	return ok
}

// degrade switches to foreground execution.
func (c *Coordinator) degrade(reason string, err error) {
	c.mu.Lock()
	if c.state != WorkerActive && c.state != Uninitialized {
		c.mu.Unlock()
		return
	}
	c.degradeLocked(reason, err)
	c.rejectPendingLocked(errRerun)
	w := c.stopWorkerLocked()
	c.mu.Unlock()

	if w != nil {
		w.Terminate()
	}
}

func (c *Coordinator) degradeLocked(reason string, err error) {
	c.stats.Fallbacks++
	log := c.log.WithField("reason", reason)
	if err != nil {
		log = log.WithError(err)
	}
	log.Warn("falling back to foreground execution")
	c.setStateLocked(Degraded, reason)
}

func (c *Coordinator) setStateLocked(to State, reason string) {
	from := c.state
	c.state = to
	c.log.WithFields(logrus.Fields{
		"from":   from,
		"to":     to,
		"reason": reason,
	}).Info("coordinator state changed")
}

func (c *Coordinator) rejectPendingLocked(err error) {
	for id, ch := range c.pending {
		ch <- &Response{ID: id, Err: err}
		delete(c.pending, id)
	}
}

func (c *Coordinator) stopWorkerLocked() Worker {
	w := c.worker
	c.worker = nil
	if c.workerDone != nil {
		close(c.workerDone)
		c.workerDone = nil
	}
	return w
}
