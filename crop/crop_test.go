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

package crop

import (
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/sirupsen/logrus"

	"seehuhn.de/go/pagekit/geometry"
	"seehuhn.de/go/pagekit/project"
)

type recordingSink struct {
	published []geometry.PDFRect
	pages     []int
	cleared   int
}

func (s *recordingSink) PublishDraft(page int, r geometry.PDFRect) {
	s.pages = append(s.pages, page)
	s.published = append(s.published, r)
}

func (s *recordingSink) ClearDraft() {
	s.cleared++
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// newTestEditor returns an editor for a 200×400 point page shown in a
// 100×200 pixel canvas, i.e. 2 points per pixel.
func newTestEditor(t *testing.T, sink DraftSink) *Editor {
	t.Helper()
	e := NewEditor(sink, WithLogger(quietLogger()))
	base := geometry.PDFRect{X: 0, Y: 0, Width: 200, Height: 400}
	if err := e.SetViewport(base, 100, 200); err != nil {
		t.Fatal(err)
	}
	return e
}

func drag(e *Editor, x0, y0, x1, y1 float64) {
	e.MouseDown(x0, y0)
	e.MouseMove((x0+x1)/2, (y0+y1)/2)
	e.MouseUp(x1, y1)
}

func TestTooSmallIsDiscarded(t *testing.T) {
	sink := &recordingSink{}
	e := newTestEditor(t, sink)

	drag(e, 10, 10, 15, 30) // w=5, h=20
	if e.State() != Idle {
		t.Errorf("state = %v, want idle", e.State())
	}
	if len(sink.published) != 0 {
		t.Errorf("draft published: %v", sink.published)
	}

	drag(e, 10, 10, 30, 15) // w=20, h=5
	if e.State() != Idle || len(sink.published) != 0 {
		t.Error("flat rectangle was accepted")
	}
}

func TestDefine(t *testing.T) {
	sink := &recordingSink{}
	e := newTestEditor(t, sink)

	// drag up and to the left
	drag(e, 60, 120, 10, 20)
	if e.State() != Defined {
		t.Fatalf("state = %v, want defined", e.State())
	}
	wantCanvas := geometry.CanvasRect{X: 10, Y: 20, W: 50, H: 100}
	if d := cmp.Diff(wantCanvas, e.Rect()); d != "" {
		t.Errorf("canvas rect (-want +got):\n%s", d)
	}
	wantPDF := geometry.PDFRect{X: 20, Y: 160, Width: 100, Height: 200}
	if len(sink.published) != 1 {
		t.Fatalf("%d drafts published, want 1", len(sink.published))
	}
	if d := cmp.Diff(wantPDF, sink.published[0], cmpopts.EquateApprox(1e-9, 1e-9)); d != "" {
		t.Errorf("pdf rect (-want +got):\n%s", d)
	}
}

func TestDefineClampsToViewport(t *testing.T) {
	sink := &recordingSink{}
	e := newTestEditor(t, sink)

	drag(e, -50, -50, 500, 500)
	want := geometry.CanvasRect{X: 0, Y: 0, W: 100, H: 200}
	if d := cmp.Diff(want, e.Rect()); d != "" {
		t.Errorf("(-want +got):\n%s", d)
	}
}

func TestHitTest(t *testing.T) {
	e := newTestEditor(t, &recordingSink{})
	drag(e, 20, 20, 80, 120)

	tests := []struct {
		x, y float64
		want Handle
	}{
		{20, 20, NW},
		{27, 13, NW},
		{50, 20, N},
		{80, 20, NE},
		{80, 70, E},
		{86, 126, SE},
		{50, 120, S},
		{20, 120, SW},
		{20, 70, W},
		{50, 70, Move},
		{5, 5, None},
		{90, 70, None},
	}
	for _, tt := range tests {
		if got := e.HitTest(tt.x, tt.y); got != tt.want {
			t.Errorf("HitTest(%g, %g) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestResize(t *testing.T) {
	sink := &recordingSink{}
	e := newTestEditor(t, sink)
	drag(e, 20, 20, 80, 120)

	e.MouseDown(80, 120)
	if e.State() != Adjusting || e.Handle() != SE {
		t.Fatalf("state %v, handle %v", e.State(), e.Handle())
	}
	e.MouseMove(90, 150)
	e.MouseMove(95, 160)
	if n := len(sink.published); n != 3 {
		t.Errorf("%d publications, want one per move", n)
	}
	e.MouseUp(95, 160)
	if e.State() != Defined {
		t.Errorf("state = %v after release", e.State())
	}
	want := geometry.CanvasRect{X: 20, Y: 20, W: 75, H: 140}
	if d := cmp.Diff(want, e.Rect()); d != "" {
		t.Errorf("(-want +got):\n%s", d)
	}

	// the west edge cannot be dragged past the minimum size
	e.MouseDown(20, 90)
	e.MouseUp(200, 90)
	if r := e.Rect(); r.W != MinSize || r.X != 85 {
		t.Errorf("after collapsing: %v", r)
	}
}

func TestMoveIsClamped(t *testing.T) {
	e := newTestEditor(t, &recordingSink{})
	drag(e, 20, 20, 80, 120)

	e.MouseDown(50, 70)
	if e.Handle() != Move {
		t.Fatalf("handle = %v", e.Handle())
	}
	e.MouseUp(150, -100)
	want := geometry.CanvasRect{X: 40, Y: 0, W: 60, H: 100}
	if d := cmp.Diff(want, e.Rect()); d != "" {
		t.Errorf("(-want +got):\n%s", d)
	}
}

func TestClearAndNavigation(t *testing.T) {
	store := project.NewStore()
	e := NewEditor(store, WithLogger(quietLogger()))
	if err := e.SetViewport(geometry.PDFRect{Width: 100, Height: 100}, 100, 100); err != nil {
		t.Fatal(err)
	}

	drag(e, 10, 10, 50, 50)
	if project.CropFor(store.Get(), 0) == nil {
		t.Fatal("no draft in the store")
	}
	e.SetPage(0)
	if e.State() != Defined {
		t.Error("re-entering the same page discarded the draft")
	}

	e.SetPage(1)
	if e.State() != Idle || store.Get().Crop != nil {
		t.Error("draft survived page navigation")
	}

	drag(e, 10, 10, 50, 50)
	if got := store.Get().Crop; got == nil || got.Page != 1 {
		t.Fatalf("draft = %v", got)
	}
	e.Escape()
	if e.State() != Idle || store.Get().Crop != nil {
		t.Error("escape did not discard the draft")
	}
}

func TestRedrawReplacesDraft(t *testing.T) {
	sink := &recordingSink{}
	e := newTestEditor(t, sink)
	drag(e, 20, 20, 40, 40)

	// pressing outside the rectangle starts a new one
	drag(e, 60, 100, 62, 102)
	if e.State() != Idle {
		t.Errorf("state = %v", e.State())
	}
	if sink.cleared != 1 {
		t.Errorf("cleared %d times, want 1", sink.cleared)
	}
}
