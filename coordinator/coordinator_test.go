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

package coordinator

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/sirupsen/logrus"

	"seehuhn.de/go/pagekit/internal/testpdf"
	"seehuhn.de/go/pagekit/render"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeWorker is a worker controlled by the test.
type fakeWorker struct {
	responses chan<- *Response

	// postErr, if set, is returned by Post.
	postErr error

	// handle computes the response to a request.  If handle is nil, the
	// worker never answers.
	handle func(req *Request) *Response

	// posted, if set, receives every request passed to Post.
	posted chan *Request

	// block makes Post wait until its context is done.
	block bool

	mu         sync.Mutex
	terminated int
}

func (w *fakeWorker) Post(ctx context.Context, req *Request) error {
	if w.postErr != nil {
		return w.postErr
	}
	if w.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if w.posted != nil {
		w.posted <- req
	}
	if w.handle != nil {
		resp := w.handle(req)
		go func() { w.responses <- resp }()
	}
	return nil
}

func (w *fakeWorker) Terminate() {
	w.mu.Lock()
	w.terminated++
	w.mu.Unlock()
}

func (w *fakeWorker) terminations() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.terminated
}

// fakeFactory returns a factory which hands out w and counts calls.
func fakeFactory(w *fakeWorker, calls *int) WorkerFactory {
	return func(responses chan<- *Response) (Worker, error) {
		*calls++
		w.responses = responses
		return w, nil
	}
}

func newTestCoordinator(t *testing.T, opts ...Option) *Coordinator {
	t.Helper()
	base := []Option{
		WithLogger(quietLogger()),
		WithRenderOptions(render.WithLogger(quietLogger())),
	}
	c := New(context.Background(), append(base, opts...)...)
	t.Cleanup(c.Cleanup)
	return c
}

// statsOpt ignores the State field when comparing Stats.
var statsOpt = cmpopts.IgnoreFields(Stats{}, "State")

func renderOnce(t *testing.T, c *Coordinator, buf []byte) {
	t.Helper()
	res, err := c.RenderPage(context.Background(), buf, 0, 0.25, PNG)
	if err != nil {
		t.Fatal(err)
	}
	if res.Bitmap == nil {
		t.Fatal("no bitmap")
	}
	res.Bitmap.Close()
}

func TestFallbackOnDispatchFailure(t *testing.T) {
	calls := 0
	w := &fakeWorker{postErr: errors.New("cannot post")}
	c := newTestCoordinator(t, WithWorkerFactory(fakeFactory(w, &calls)))
	buf := testpdf.Simple(2)

	renderOnce(t, c, buf)
	want := Stats{WorkerStarts: 1, Dispatches: 1, Foreground: 1, Fallbacks: 1}
	if d := cmp.Diff(want, c.Stats(), statsOpt); d != "" {
		t.Errorf("after first call (-want +got):\n%s", d)
	}
	if c.Stats().State != Degraded {
		t.Errorf("state %v, want degraded", c.Stats().State)
	}

	// later calls do not touch the worker
	renderOnce(t, c, buf)
	renderOnce(t, c, buf)
	want.Foreground = 3
	if d := cmp.Diff(want, c.Stats(), statsOpt); d != "" {
		t.Errorf("after three calls (-want +got):\n%s", d)
	}
	if calls != 1 {
		t.Errorf("factory called %d times", calls)
	}
	if w.terminations() != 1 {
		t.Errorf("worker terminated %d times", w.terminations())
	}
}

func TestWorkerCreationFailure(t *testing.T) {
	factory := func(chan<- *Response) (Worker, error) {
		return nil, errors.New("no threads today")
	}
	c := newTestCoordinator(t, WithWorkerFactory(factory))
	renderOnce(t, c, testpdf.Simple(1))

	want := Stats{State: Degraded, Foreground: 1, Fallbacks: 1}
	if d := cmp.Diff(want, c.Stats()); d != "" {
		t.Errorf("unexpected stats (-want +got):\n%s", d)
	}
}

func TestWithoutWorker(t *testing.T) {
	c := newTestCoordinator(t, WithoutWorker())
	info, err := c.LoadDocument(context.Background(), testpdf.Simple(3))
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(DocInfo{PageCount: 3, Loaded: true}, info); d != "" {
		t.Errorf("wrong info (-want +got):\n%s", d)
	}
	want := Stats{State: Degraded, Foreground: 1, Fallbacks: 1}
	if d := cmp.Diff(want, c.Stats()); d != "" {
		t.Errorf("unexpected stats (-want +got):\n%s", d)
	}
}

func TestTimeoutDegrades(t *testing.T) {
	calls := 0
	w := &fakeWorker{} // never answers
	c := newTestCoordinator(t,
		WithWorkerFactory(fakeFactory(w, &calls)),
		WithTimeouts(10*time.Millisecond, 10*time.Millisecond))
	buf := testpdf.Simple(1)

	renderOnce(t, c, buf)
	renderOnce(t, c, buf)
	want := Stats{
		State:        Degraded,
		WorkerStarts: 1,
		Dispatches:   1,
		Foreground:   2,
		Fallbacks:    1,
		Timeouts:     1,
	}
	if d := cmp.Diff(want, c.Stats()); d != "" {
		t.Errorf("unexpected stats (-want +got):\n%s", d)
	}
}

func TestPostDeadlineCountsAsTimeout(t *testing.T) {
	calls := 0
	w := &fakeWorker{block: true}
	c := newTestCoordinator(t,
		WithWorkerFactory(fakeFactory(w, &calls)),
		WithTimeouts(time.Nanosecond, time.Nanosecond))

	renderOnce(t, c, testpdf.Simple(1))
	want := Stats{
		State:        Degraded,
		WorkerStarts: 1,
		Dispatches:   1,
		Foreground:   1,
		Fallbacks:    1,
		Timeouts:     1,
	}
	if d := cmp.Diff(want, c.Stats()); d != "" {
		t.Errorf("unexpected stats (-want +got):\n%s", d)
	}
	if w.terminations() != 1 {
		t.Errorf("worker terminated %d times", w.terminations())
	}
}

func TestWorkerCrash(t *testing.T) {
	calls := 0
	w := &fakeWorker{
		handle: func(req *Request) *Response {
			return &Response{ID: req.ID, Err: ErrWorkerFailed}
		},
	}
	c := newTestCoordinator(t, WithWorkerFactory(fakeFactory(w, &calls)))
	renderOnce(t, c, testpdf.Simple(1))

	want := Stats{State: Degraded, WorkerStarts: 1, Dispatches: 1, Foreground: 1, Fallbacks: 1}
	if d := cmp.Diff(want, c.Stats()); d != "" {
		t.Errorf("unexpected stats (-want +got):\n%s", d)
	}
}

func TestWorkerErrorsPropagate(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.RenderPage(context.Background(), testpdf.Simple(2), 7, 1, PNG)
	if !errors.Is(err, render.ErrPageRange) {
		t.Errorf("got %v, want ErrPageRange", err)
	}
	// a failing request is not a failing worker
	if s := c.Stats(); s.State != WorkerActive || s.Foreground != 0 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestBatchOrder(t *testing.T) {
	c := newTestCoordinator(t)
	buf := testpdf.Simple(3)

	tasks := []Task{
		{Page: 2, Scale: 0.2, Format: PNG},
		{Page: 0, Scale: 0.3, Format: JPEG, Quality: 80},
		{Page: 1, Scale: 0.4, Format: PNG},
	}
	results, err := c.ExportPages(context.Background(), buf, tasks)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(tasks) {
		t.Fatalf("got %d results, want %d", len(results), len(tasks))
	}

	var pages []int
	for _, res := range results {
		pages = append(pages, res.Page)
		if res.Bitmap != nil {
			t.Error("export result holds a bitmap")
		}
	}
	if d := cmp.Diff([]int{2, 0, 1}, pages); d != "" {
		t.Errorf("wrong order (-want +got):\n%s", d)
	}

	img, err := png.Decode(bytes.NewReader(results[2].Data))
	if err != nil {
		t.Fatal(err)
	}
	if w := img.Bounds().Dx(); w != 238 {
		t.Errorf("third image is %d pixels wide, want 238", w)
	}
	if !bytes.HasPrefix(results[1].Data, []byte{0xFF, 0xD8}) {
		t.Error("second result is not a JPEG file")
	}

	s := c.Stats()
	if s.Dispatches != 1 || s.Foreground != 0 || s.State != WorkerActive {
		t.Errorf("batch not executed by the worker: %+v", s)
	}
}

func TestSVGBatchRunsInForeground(t *testing.T) {
	calls := 0
	w := &fakeWorker{handle: func(req *Request) *Response {
		t.Error("SVG batch sent to worker")
		return &Response{ID: req.ID}
	}}
	c := newTestCoordinator(t, WithWorkerFactory(fakeFactory(w, &calls)))
	buf := testpdf.Simple(2)

	tasks := []Task{
		{Page: 0, Scale: 0.5, Format: PNG},
		{Page: 1, Scale: 0.5, Format: SVG},
	}
	results, err := c.ExportPages(context.Background(), buf, tasks)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(results[1].Data), "<svg") {
		t.Errorf("second result is not SVG: %.40q", results[1].Data)
	}

	want := Stats{State: Uninitialized, Foreground: 1}
	if d := cmp.Diff(want, c.Stats()); d != "" {
		t.Errorf("unexpected stats (-want +got):\n%s", d)
	}
}

func TestRenderSVG(t *testing.T) {
	calls := 0
	w := &fakeWorker{posted: make(chan *Request, 1)}
	c := newTestCoordinator(t, WithWorkerFactory(fakeFactory(w, &calls)))

	res, err := c.RenderPage(context.Background(), testpdf.Simple(1), 0, 1, SVG)
	if err != nil {
		t.Fatal(err)
	}
	if res.Bitmap != nil || !strings.HasPrefix(res.SVG, "<svg") {
		t.Errorf("unexpected result %+v", res)
	}

	// single SVG pages are rendered in the foreground, without starting
	// the worker
	if calls != 0 || len(w.posted) != 0 {
		t.Errorf("worker used: %d starts, %d requests", calls, len(w.posted))
	}
	want := Stats{State: Uninitialized, Foreground: 1}
	if d := cmp.Diff(want, c.Stats()); d != "" {
		t.Errorf("unexpected stats (-want +got):\n%s", d)
	}
}

func TestCleanupRejectsPending(t *testing.T) {
	calls := 0
	w := &fakeWorker{posted: make(chan *Request, 1)}
	c := newTestCoordinator(t, WithWorkerFactory(fakeFactory(w, &calls)))

	errc := make(chan error, 1)
	go func() {
		_, err := c.RenderPage(context.Background(), testpdf.Simple(1), 0, 1, PNG)
		errc <- err
	}()
	<-w.posted

	c.Cleanup()
	if err := <-errc; !errors.Is(err, ErrDisposed) {
		t.Errorf("pending request: got %v, want ErrDisposed", err)
	}

	c.Cleanup()
	if w.terminations() != 1 {
		t.Errorf("worker terminated %d times", w.terminations())
	}
	_, err := c.LoadDocument(context.Background(), testpdf.Simple(1))
	if !errors.Is(err, ErrDisposed) {
		t.Errorf("later request: got %v, want ErrDisposed", err)
	}
	if s := c.Stats(); s.State != Disposed {
		t.Errorf("state %v, want disposed", s.State)
	}
}

func TestLifetimeContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := New(ctx, WithLogger(quietLogger()), WithoutWorker())
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for c.Stats().State != Disposed {
		if time.Now().After(deadline) {
			t.Fatal("coordinator not disposed")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCallerCancel(t *testing.T) {
	calls := 0
	w := &fakeWorker{posted: make(chan *Request, 1)}
	c := newTestCoordinator(t, WithWorkerFactory(fakeFactory(w, &calls)))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.RenderPage(ctx, testpdf.Simple(1), 0, 1, PNG)
		errc <- err
	}()
	<-w.posted
	cancel()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if s := c.Stats(); s.State != WorkerActive || s.Fallbacks != 0 {
		t.Errorf("cancellation degraded the coordinator: %+v", s)
	}
}

func TestLateResponseDiscarded(t *testing.T) {
	buf := testpdf.Simple(1)
	r := render.New(render.WithLogger(quietLogger()))
	bm, err := r.Rasterize(buf, 0, 0.1)
	if err != nil {
		t.Fatal(err)
	}

	calls := 0
	w := &fakeWorker{posted: make(chan *Request, 1)}
	c := newTestCoordinator(t, WithWorkerFactory(fakeFactory(w, &calls)))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.RenderPage(ctx, buf, 0, 0.1, PNG)
		errc <- err
	}()
	req := <-w.posted
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}

	// the worker answers after the caller has given up
	w.responses <- &Response{ID: req.ID, Results: []Result{{Bitmap: bm}}}

	deadline := time.Now().Add(5 * time.Second)
	for c.Stats().Discarded == 0 {
		if time.Now().After(deadline) {
			t.Fatal("late response not discarded")
		}
		time.Sleep(time.Millisecond)
	}

	defer func() {
		if recover() == nil {
			t.Error("bitmap of discarded response not closed")
		}
	}()
	bm.Image()
}

func TestInvalidRequests(t *testing.T) {
	c := newTestCoordinator(t)
	buf := testpdf.Simple(1)

	cases := []struct {
		page   int
		scale  float64
		format Format
		want   error
	}{
		{-1, 1, PNG, ErrInvalidTask},
		{0, 0, PNG, ErrInvalidTask},
		{0, -2, SVG, ErrInvalidTask},
		{0, 1, "gif", ErrUnknownFormat},
	}
	for _, tc := range cases {
		_, err := c.RenderPage(context.Background(), buf, tc.page, tc.scale, tc.format)
		if !errors.Is(err, tc.want) {
			t.Errorf("%d/%g/%s: got %v, want %v", tc.page, tc.scale, tc.format, err, tc.want)
		}
	}
	if s := c.Stats(); s.State != Uninitialized {
		t.Errorf("invalid requests changed the state to %v", s.State)
	}

	resp := Execute(context.Background(), render.New(), &Request{Kind: 99})
	if !errors.Is(resp.Err, ErrUnknownKind) {
		t.Errorf("got %v, want ErrUnknownKind", resp.Err)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"png": PNG, ".JPG": JPEG, "jpeg": JPEG, "svg": SVG} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("%q: got %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("tiff"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("got %v, want ErrUnknownFormat", err)
	}
}
