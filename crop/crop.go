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

// Package crop implements the mouse interaction for drawing and adjusting a
// crop rectangle on a page.
//
// The [Editor] receives pointer events in canvas coordinates.  Whenever the
// crop rectangle changes, the corresponding rectangle in PDF space is
// published to a [DraftSink].  There is no separate commit step.
package crop

import (
	"math"

	"github.com/sirupsen/logrus"
	"seehuhn.de/go/geom/vec"

	"seehuhn.de/go/pagekit/geometry"
)

const (
	// MinSize is the minimal width and height of a crop rectangle, in canvas
	// pixels.
	MinSize = 10

	// GrabRadius is the distance in canvas pixels within which a pointer
	// press picks up a resize handle.
	GrabRadius = 8
)

// DraftSink receives the crop rectangle while it is edited.
type DraftSink interface {
	PublishDraft(page int, r geometry.PDFRect)
	ClearDraft()
}

// State is the interaction state of an [Editor].
type State int

// These are the possible states of an [Editor].
const (
	Idle State = iota
	Defining
	Defined
	Adjusting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Defining:
		return "defining"
	case Defined:
		return "defined"
	case Adjusting:
		return "adjusting"
	default:
		return "invalid"
	}
}

// Handle identifies the part of the crop rectangle which is being dragged.
type Handle int

// The eight resize handles are named by compass direction, with north at the
// top of the canvas.  Move drags the whole rectangle.
const (
	None Handle = iota
	NW
	N
	NE
	E
	SE
	S
	SW
	W
	Move
)

var handleNames = [...]string{"none", "nw", "n", "ne", "e", "se", "s", "sw", "w", "move"}

func (h Handle) String() string {
	if h < 0 || int(h) >= len(handleNames) {
		return "invalid"
	}
	return handleNames[h]
}

func (h Handle) west() bool  { return h == NW || h == W || h == SW }
func (h Handle) east() bool  { return h == NE || h == E || h == SE }
func (h Handle) north() bool { return h == NW || h == N || h == NE }
func (h Handle) south() bool { return h == SW || h == S || h == SE }

// Editor is the state machine for one crop rectangle.
// An Editor is not safe for concurrent use.
type Editor struct {
	sink DraftSink
	log  logrus.FieldLogger

	page int
	tr   geometry.Transform

	state  State
	handle Handle

	// rect is the committed rectangle, normalized.  Valid in the Defined
	// and Adjusting states.
	rect geometry.CanvasRect

	// drag records the start of the current gesture.
	start     vec.Vec2
	startRect geometry.CanvasRect
}

// Option configures an [Editor].
type Option func(*Editor)

// WithLogger sets the logger used for state transitions.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Editor) {
		e.log = log
	}
}

// NewEditor returns an editor in the Idle state, publishing to sink.
func NewEditor(sink DraftSink, opts ...Option) *Editor {
	e := &Editor{
		sink: sink,
		log:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current interaction state.
func (e *Editor) State() State {
	return e.state
}

// Handle returns the handle being dragged in the Adjusting state, and
// [None] otherwise.
func (e *Editor) Handle() Handle {
	if e.state != Adjusting {
		return None
	}
	return e.handle
}

// Rect returns the current crop rectangle in canvas space.  While a new
// rectangle is being drawn, this is the normalized rubber band.
func (e *Editor) Rect() geometry.CanvasRect {
	return e.rect
}

// PDFRect returns the current crop rectangle in PDF space.
func (e *Editor) PDFRect() geometry.PDFRect {
	return e.tr.RectToPDF(e.rect)
}

// SetPage tells the editor which page is shown.  Switching to a different
// page discards the crop rectangle.
func (e *Editor) SetPage(page int) {
	if page == e.page {
		return
	}
	if e.state != Idle {
		e.log.WithFields(logrus.Fields{"from": e.page, "to": page}).
			Debug("crop: page changed, draft discarded")
		e.Clear()
	}
	e.page = page
}

// SetViewport sets the page box shown in the canvas, and the canvas size.
// An existing crop rectangle keeps its position on the page.
func (e *Editor) SetViewport(base geometry.PDFRect, width, height float64) error {
	tr, err := geometry.NewTransform(base, width, height)
	if err != nil {
		return err
	}
	if e.state == Defined || e.state == Adjusting {
		pdfRect := e.tr.RectToPDF(e.rect)
		e.rect = geometry.ClampCanvas(tr.RectToCanvas(pdfRect), width, height)
	}
	e.tr = tr
	return nil
}

// HitTest returns the handle at canvas position (x, y), or [None].
func (e *Editor) HitTest(x, y float64) Handle {
	if e.state != Defined && e.state != Adjusting {
		return None
	}

	r := e.rect
	xs := [3]float64{r.X, r.X + r.W/2, r.X + r.W}
	ys := [3]float64{r.Y, r.Y + r.H/2, r.Y + r.H}
	grid := [3][3]Handle{
		{NW, N, NE},
		{W, None, E},
		{SW, S, SE},
	}
	best, bestDist := None, math.Inf(1)
	for i, hy := range ys {
		for j, hx := range xs {
			h := grid[i][j]
			if h == None {
				continue
			}
			d := math.Max(math.Abs(x-hx), math.Abs(y-hy))
			if d <= GrabRadius && d < bestDist {
				best, bestDist = h, d
			}
		}
	}
	if best != None {
		return best
	}

	if x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H {
		return Move
	}
	return None
}

// MouseDown starts a gesture at canvas position (x, y).
func (e *Editor) MouseDown(x, y float64) {
	if e.tr.Valid() != nil {
		e.log.Debug("crop: no viewport, pointer event ignored")
		return
	}
	x, y = e.clampPoint(x, y)

	switch e.state {
	case Idle:
		e.startDefining(x, y)
	case Defined:
		h := e.HitTest(x, y)
		if h == None {
			e.sink.ClearDraft()
			e.startDefining(x, y)
			return
		}
		e.handle = h
		e.start = vec.Vec2{X: x, Y: y}
		e.startRect = e.rect
		e.setState(Adjusting)
	}
}

func (e *Editor) startDefining(x, y float64) {
	e.start = vec.Vec2{X: x, Y: y}
	e.rect = geometry.CanvasRect{X: x, Y: y}
	e.setState(Defining)
}

// MouseMove continues the current gesture.
func (e *Editor) MouseMove(x, y float64) {
	x, y = e.clampPoint(x, y)

	switch e.state {
	case Defining:
		e.rect = geometry.NormalizeRect(geometry.CanvasRect{
			X: e.start.X,
			Y: e.start.Y,
			W: x - e.start.X,
			H: y - e.start.Y,
		})
	case Adjusting:
		e.rect = e.adjust(x-e.start.X, y-e.start.Y)
		e.publish()
	}
}

// MouseUp ends the current gesture.  A newly drawn rectangle smaller than
// [MinSize] in either direction is discarded.
func (e *Editor) MouseUp(x, y float64) {
	e.MouseMove(x, y)

	switch e.state {
	case Defining:
		if e.rect.W < MinSize || e.rect.H < MinSize {
			e.log.WithFields(logrus.Fields{"w": e.rect.W, "h": e.rect.H}).
				Debug("crop: rectangle too small, discarded")
			e.rect = geometry.CanvasRect{}
			e.setState(Idle)
			return
		}
		e.setState(Defined)
		e.publish()
	case Adjusting:
		e.handle = None
		e.setState(Defined)
	}
}

// Clear discards the crop rectangle from any state.  This is also the
// reaction to the Escape key.
func (e *Editor) Clear() {
	hadDraft := e.state == Defined || e.state == Adjusting
	e.rect = geometry.CanvasRect{}
	e.handle = None
	e.setState(Idle)
	if hadDraft {
		e.sink.ClearDraft()
	}
}

// Escape is an alias for [Editor.Clear].
func (e *Editor) Escape() {
	e.Clear()
}

func (e *Editor) setState(s State) {
	if s == e.state {
		return
	}
	e.log.WithFields(logrus.Fields{
		"from":   e.state,
		"to":     s,
		"handle": e.handle,
	}).Debug("crop: state change")
	e.state = s
}

func (e *Editor) publish() {
	e.sink.PublishDraft(e.page, e.tr.RectToPDF(e.rect))
}

func (e *Editor) clampPoint(x, y float64) (float64, float64) {
	return clamp(x, 0, e.tr.Width), clamp(y, 0, e.tr.Height)
}

// adjust applies a drag by (dx, dy) to the rectangle at the start of the
// gesture, keeping it inside the viewport and at least MinSize large.
func (e *Editor) adjust(dx, dy float64) geometry.CanvasRect {
	r := e.startRect
	W, H := e.tr.Width, e.tr.Height
	x0, y0 := r.X, r.Y
	x1, y1 := r.X+r.W, r.Y+r.H

	if e.handle == Move {
		dx = clamp(dx, -x0, W-x1)
		dy = clamp(dy, -y0, H-y1)
		return geometry.CanvasRect{X: x0 + dx, Y: y0 + dy, W: r.W, H: r.H}
	}

	if e.handle.west() {
		x0 = clamp(x0+dx, 0, x1-MinSize)
	}
	if e.handle.east() {
		x1 = clamp(x1+dx, x0+MinSize, W)
	}
	if e.handle.north() {
		y0 = clamp(y0+dy, 0, y1-MinSize)
	}
	if e.handle.south() {
		y1 = clamp(y1+dy, y0+MinSize, H)
	}
	return geometry.CanvasRect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(x, hi))
}
