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

package edit

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"

	"seehuhn.de/go/pagekit/geometry"
	"seehuhn.de/go/pagekit/internal/pdfconf"
	"seehuhn.de/go/pagekit/internal/testpdf"
	"seehuhn.de/go/pagekit/pagerange"
	"seehuhn.de/go/pagekit/render"
)

func newTestEditor(t *testing.T, opts ...Option) *Editor {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	e, err := New(append([]Option{WithLogger(log)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

// pageAttrs returns the inherited attributes of a 1-based page.
func pageAttrs(t *testing.T, buf []byte, page int) *model.InheritedPageAttrs {
	t.Helper()
	ctx, err := api.ReadContext(bytes.NewReader(buf), pdfconf.New())
	if err != nil {
		t.Fatal(err)
	}
	_, _, inh, err := ctx.PageDict(page, false)
	if err != nil {
		t.Fatal(err)
	}
	return inh
}

// pageIDs identifies the pages of documents made by testpdf.Simple, using
// the width of the grey rectangle on each page.
func pageIDs(t *testing.T, buf []byte) []int {
	t.Helper()
	r := render.New(render.WithCacheSize(0))
	n, err := r.LoadMeta(buf)
	if err != nil {
		t.Fatal(err)
	}
	var ids []int
	for i := range n {
		bm, err := r.Rasterize(buf, i, 1)
		if err != nil {
			t.Fatal(err)
		}
		img := bm.Image()
		w := 0
		for 50+w < img.Bounds().Dx() && img.RGBAAt(50+w, 742).R < 0xC0 {
			w++
		}
		bm.Close()
		ids = append(ids, w/20)
	}
	return ids
}

func TestCheck(t *testing.T) {
	e := newTestEditor(t, WithMaxFileSize(1000))

	if err := e.Check([]byte("hello, world")); !errors.Is(err, ErrNotPDF) {
		t.Errorf("got %v, want ErrNotPDF", err)
	}
	if err := e.Check(testpdf.Simple(5)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("got %v, want ErrTooLarge", err)
	}
	if err := e.Check([]byte("%PDF-1.7\n")); err != nil {
		t.Errorf("unexpected error %v", err)
	}

	_, err := e.SetCropBox([]byte("GIF89a"), []int{1}, geometry.PDFRect{Width: 1, Height: 1})
	if !errors.Is(err, ErrNotPDF) {
		t.Errorf("SetCropBox: got %v, want ErrNotPDF", err)
	}
}

func TestValidate(t *testing.T) {
	e := newTestEditor(t)
	if err := e.Validate(testpdf.Simple(2)); err != nil {
		t.Error(err)
	}
	if err := e.Validate([]byte("%PDF-1.7\ngarbage")); !errors.Is(err, ErrNotPDF) {
		t.Errorf("got %v, want ErrNotPDF", err)
	}
}

func TestSetCropBox(t *testing.T) {
	e := newTestEditor(t)
	box := geometry.PDFRect{X: 100, Y: 100, Width: 200, Height: 300}
	out, err := e.SetCropBox(testpdf.Simple(3), []int{1, 3}, box)
	if err != nil {
		t.Fatal(err)
	}

	for _, page := range []int{1, 3} {
		inh := pageAttrs(t, out, page)
		if inh.CropBox == nil {
			t.Fatalf("page %d: no crop box", page)
		}
		got := geometry.PDFRect{
			X:      inh.CropBox.LL.X,
			Y:      inh.CropBox.LL.Y,
			Width:  inh.CropBox.UR.X - inh.CropBox.LL.X,
			Height: inh.CropBox.UR.Y - inh.CropBox.LL.Y,
		}
		if d := cmp.Diff(box, got); d != "" {
			t.Errorf("page %d: crop box (-want +got):\n%s", page, d)
		}
		if inh.MediaBox.UR.Y != 842 {
			t.Errorf("page %d: media box changed", page)
		}
	}
}

func TestHardCrop(t *testing.T) {
	e := newTestEditor(t)
	box := geometry.PDFRect{X: 50, Y: 60, Width: 100, Height: 100}
	out, err := e.SetMediaBoxAndCropBox(testpdf.Simple(2), []int{2}, box)
	if err != nil {
		t.Fatal(err)
	}

	inh := pageAttrs(t, out, 2)
	if inh.MediaBox.LL.X != 50 || inh.MediaBox.UR.Y != 160 {
		t.Errorf("wrong media box %v", inh.MediaBox)
	}
	inh = pageAttrs(t, out, 1)
	if inh.MediaBox.UR.Y != 842 {
		t.Errorf("page 1 changed: %v", inh.MediaBox)
	}

	_, err = e.SetMediaBoxAndCropBox(testpdf.Simple(1), []int{1}, geometry.PDFRect{Width: 10})
	if !errors.Is(err, geometry.ErrDegenerate) {
		t.Errorf("got %v, want ErrDegenerate", err)
	}
}

func TestExtractPageRanges(t *testing.T) {
	e := newTestEditor(t)
	out, err := e.ExtractPageRanges(testpdf.Simple(5), []pagerange.Range{{First: 4, Last: 5}, {First: 1, Last: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]int{4, 5, 1}, pageIDs(t, out)); d != "" {
		t.Errorf("wrong pages (-want +got):\n%s", d)
	}

	_, err = e.ExtractPageRanges(testpdf.Simple(5), []pagerange.Range{{First: 3, Last: 2}})
	if !errors.Is(err, ErrNoPages) {
		t.Errorf("got %v, want ErrNoPages", err)
	}
}

func TestReorder(t *testing.T) {
	e := newTestEditor(t)
	out, err := e.Reorder(testpdf.Simple(4), geometry.PageOrder{3, 0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]int{4, 1, 2}, pageIDs(t, out)); d != "" {
		t.Errorf("wrong pages (-want +got):\n%s", d)
	}

	_, err = e.Reorder(testpdf.Simple(2), geometry.PageOrder{0, 0})
	if !errors.Is(err, geometry.ErrInvalidOrder) {
		t.Errorf("got %v, want ErrInvalidOrder", err)
	}
}

func TestSplit(t *testing.T) {
	e := newTestEditor(t)
	parts, err := e.Split(testpdf.Simple(5), "1-2, 4-")
	if err != nil {
		t.Fatal(err)
	}
	var got [][]int
	for _, part := range parts {
		got = append(got, pageIDs(t, part))
	}
	if d := cmp.Diff([][]int{{1, 2}, {4, 5}}, got); d != "" {
		t.Errorf("wrong parts (-want +got):\n%s", d)
	}

	_, err = e.Split(testpdf.Simple(5), "7-9")
	if !errors.Is(err, pagerange.ErrNoPages) {
		t.Errorf("got %v, want pagerange.ErrNoPages", err)
	}
}

func TestMergeDocuments(t *testing.T) {
	e := newTestEditor(t)
	out, err := e.MergeDocuments([][]byte{testpdf.Simple(2), testpdf.Simple(1)})
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]int{1, 2, 1}, pageIDs(t, out)); d != "" {
		t.Errorf("wrong pages (-want +got):\n%s", d)
	}
}

func TestRotate(t *testing.T) {
	e := newTestEditor(t)
	out, err := e.Rotate(testpdf.Simple(2), []int{2}, 90)
	if err != nil {
		t.Fatal(err)
	}
	if rot := pageAttrs(t, out, 1).Rotate; rot != 0 {
		t.Errorf("page 1 rotated by %d", rot)
	}
	if rot := pageAttrs(t, out, 2).Rotate; rot != 90 {
		t.Errorf("page 2 rotated by %d, want 90", rot)
	}

	_, err = e.Rotate(testpdf.Simple(1), []int{1}, 45)
	if !errors.Is(err, geometry.ErrRotation) {
		t.Errorf("got %v, want ErrRotation", err)
	}
}

func TestPassword(t *testing.T) {
	e := newTestEditor(t, WithPassword("I\u00ADX"))
	if e.password != "IX" {
		t.Errorf("password %q, want %q", e.password, "IX")
	}

	_, err := New(WithPassword("a\u0007b"))
	if err == nil {
		t.Error("control character accepted")
	}
}
