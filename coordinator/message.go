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
	"fmt"
	"strings"
	"sync/atomic"

	"seehuhn.de/go/pagekit/render"
)

var (
	// ErrUnknownKind is returned for requests of an unknown kind.
	ErrUnknownKind = errors.New("unknown request kind")

	// ErrUnknownFormat is returned for unsupported output formats.
	ErrUnknownFormat = errors.New("unknown output format")

	// ErrInvalidTask is returned for tasks with an invalid page index or
	// scale.
	ErrInvalidTask = errors.New("invalid task")

	// ErrWorkerFailed is reported by a worker which could not process a
	// request.  The coordinator reacts by switching to foreground execution.
	ErrWorkerFailed = errors.New("worker failed")
)

// Kind is the type of a request.
type Kind int

// These are the supported request kinds.
const (
	KindRender Kind = iota + 1
	KindExport
	KindLoad
)

func (k Kind) String() string {
	switch k {
	case KindRender:
		return "render"
	case KindExport:
		return "export"
	case KindLoad:
		return "load"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Format is an output format.
type Format string

// These are the supported output formats.
const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	SVG  Format = "svg"
)

// ParseFormat converts a format name, like a file name extension, into
// a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "svg":
		return SVG, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFormat, s)
}

func (f Format) check() error {
	switch f {
	case PNG, JPEG, SVG:
		return nil
	}
	return fmt.Errorf("%w %q", ErrUnknownFormat, string(f))
}

// Task describes one page of a batch export.
type Task struct {
	// ID is assigned by the coordinator.
	ID uint64

	Page    int // 0-based
	Scale   float64
	Format  Format
	Quality int // JPEG quality, 1-100
}

func (t Task) check() error {
	if t.Page < 0 {
		return fmt.Errorf("%w: page index %d", ErrInvalidTask, t.Page)
	}
	if !(t.Scale > 0) {
		return fmt.Errorf("%w: scale %g", ErrInvalidTask, t.Scale)
	}
	return t.Format.check()
}

// Result is the outcome of rendering one page.
type Result struct {
	TaskID uint64
	Page   int
	Format Format

	// Bitmap is set by RenderPage for raster formats.  The caller owns the
	// bitmap and must close it.
	Bitmap *render.Bitmap

	// SVG is set for the SVG format.
	SVG string

	// Data is the encoded image, set by ExportPages.
	Data []byte
}

// DocInfo describes a loaded document.
type DocInfo struct {
	PageCount int
	Loaded    bool
}

// Request is a message sent to a worker.
type Request struct {
	ID    uint64
	Kind  Kind
	Buf   []byte
	Tasks []Task // one task for KindRender, any number for KindExport
}

func (req *Request) check() error {
	switch req.Kind {
	case KindLoad:
		return nil
	case KindRender:
		if len(req.Tasks) != 1 {
			return fmt.Errorf("%w: render request with %d tasks", ErrInvalidTask, len(req.Tasks))
		}
	case KindExport:
	default:
		return fmt.Errorf("%w %d", ErrUnknownKind, int(req.Kind))
	}
	for _, t := range req.Tasks {
		if err := t.check(); err != nil {
			return err
		}
	}
	return nil
}

// hasSVG reports whether any task of the request produces SVG output.
func (req *Request) hasSVG() bool {
	for _, t := range req.Tasks {
		if t.Format == SVG {
			return true
		}
	}
	return false
}

// Response is a message sent by a worker.  ID matches the request.
type Response struct {
	ID      uint64
	Results []Result
	Info    DocInfo
	Err     error
}

// release closes all bitmaps contained in the response.
func (resp *Response) release() {
	for i := range resp.Results {
		if bm := resp.Results[i].Bitmap; bm != nil {
			bm.Close()
			resp.Results[i].Bitmap = nil
		}
	}
}

var taskIDs atomic.Uint64

// Backend performs the actual rendering.  [*render.Renderer] implements
// this interface.
type Backend interface {
	Rasterize(buf []byte, pageIndex int, scale float64) (*render.Bitmap, error)
	Vectorize(ctx context.Context, buf []byte, pageIndex int, scale float64) (string, error)
	LoadMeta(buf []byte) (int, error)
}

// Execute processes a request using the given backend.  Workers call this
// function, and the coordinator calls it for foreground execution.
func Execute(ctx context.Context, b Backend, req *Request) *Response {
	resp := &Response{ID: req.ID}
	if err := req.check(); err != nil {
		resp.Err = err
		return resp
	}

	switch req.Kind {
	case KindLoad:
		n, err := b.LoadMeta(req.Buf)
		if err != nil {
			resp.Err = err
			return resp
		}
		resp.Info = DocInfo{PageCount: n, Loaded: true}

	case KindRender:
		res, err := renderTask(ctx, b, req.Buf, req.Tasks[0])
		if err != nil {
			resp.Err = err
			return resp
		}
		resp.Results = []Result{res}

	case KindExport:
		resp.Results = make([]Result, 0, len(req.Tasks))
		for i, t := range req.Tasks {
			if err := ctx.Err(); err != nil {
				resp.Err = err
				return resp
			}
			res, err := exportTask(ctx, b, req.Buf, t)
			if err != nil {
				resp.Results = nil
				resp.Err = fmt.Errorf("task %d (page %d): %w", i, t.Page, err)
				return resp
			}
			resp.Results = append(resp.Results, res)
		}
	}
	return resp
}

func renderTask(ctx context.Context, b Backend, buf []byte, t Task) (Result, error) {
	res := Result{TaskID: t.ID, Page: t.Page, Format: t.Format}
	if t.Format == SVG {
		svg, err := b.Vectorize(ctx, buf, t.Page, t.Scale)
		if err != nil {
			return Result{}, err
		}
		res.SVG = svg
		return res, nil
	}

	bm, err := b.Rasterize(buf, t.Page, t.Scale)
	if err != nil {
		return Result{}, err
	}
	res.Bitmap = bm
	return res, nil
}

// exportTask renders a page and encodes the result.
func exportTask(ctx context.Context, b Backend, buf []byte, t Task) (Result, error) {
	res, err := renderTask(ctx, b, buf, t)
	if err != nil {
		return Result{}, err
	}
	if t.Format == SVG {
		res.Data = []byte(res.SVG)
		return res, nil
	}

	bm := res.Bitmap
	res.Bitmap = nil
	defer bm.Close()

	out := &bytes.Buffer{}
	switch t.Format {
	case PNG:
		err = bm.EncodePNG(out)
	case JPEG:
		err = bm.EncodeJPEG(out, t.Quality)
	}
	if err != nil {
		return Result{}, err
	}
	res.Data = out.Bytes()
	return res, nil
}
