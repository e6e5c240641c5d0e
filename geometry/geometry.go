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

// Package geometry converts rectangles between canvas space and PDF space.
//
// Canvas space is measured in device pixels, with the origin in the top-left
// corner of the viewport and y increasing downwards.  PDF space is measured in
// points (1/72 inch), with the origin in the bottom-left corner and y
// increasing upwards.  A viewport shows the base box of a page, which is the
// crop box if present and the media box otherwise.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"seehuhn.de/go/geom/rect"
)

var (
	// ErrDegenerate indicates a zero-sized viewport or page box, for which no
	// coordinate transformation exists.
	ErrDegenerate = errors.New("degenerate viewport or page box")

	// ErrRotation indicates a page rotation which is not a multiple of 90
	// degrees.
	ErrRotation = errors.New("page rotation must be a multiple of 90")
)

// PDFRect is a rectangle in PDF space.  X and Y give the lower-left corner.
type PDFRect struct {
	X, Y          float64
	Width, Height float64
}

// FromRect converts a rectangle given by its corners.
func FromRect(r rect.Rect) PDFRect {
	return PDFRect{
		X:      math.Min(r.LLx, r.URx),
		Y:      math.Min(r.LLy, r.URy),
		Width:  math.Abs(r.URx - r.LLx),
		Height: math.Abs(r.URy - r.LLy),
	}
}

// Rect returns the rectangle in corner form.
func (r PDFRect) Rect() rect.Rect {
	r = r.Normalize()
	return rect.Rect{
		LLx: r.X,
		LLy: r.Y,
		URx: r.X + r.Width,
		URy: r.Y + r.Height,
	}
}

// IsZero reports whether the rectangle has zero area.
func (r PDFRect) IsZero() bool {
	return r.Width == 0 || r.Height == 0
}

// Normalize returns an equivalent rectangle with non-negative width and
// height.
func (r PDFRect) Normalize() PDFRect {
	if r.Width < 0 {
		r.X += r.Width
		r.Width = -r.Width
	}
	if r.Height < 0 {
		r.Y += r.Height
		r.Height = -r.Height
	}
	return r
}

// Contains reports whether other lies inside r, allowing for rounding errors
// of the given absolute size.
func (r PDFRect) Contains(other PDFRect, eps float64) bool {
	r = r.Normalize()
	other = other.Normalize()
	return other.X >= r.X-eps &&
		other.Y >= r.Y-eps &&
		other.X+other.Width <= r.X+r.Width+eps &&
		other.Y+other.Height <= r.Y+r.Height+eps
}

// Intersect returns the intersection of two rectangles.  If the rectangles do
// not overlap, the result has zero width or height.
func (r PDFRect) Intersect(other PDFRect) PDFRect {
	r = r.Normalize()
	other = other.Normalize()
	x0 := math.Max(r.X, other.X)
	y0 := math.Max(r.Y, other.Y)
	x1 := math.Min(r.X+r.Width, other.X+other.Width)
	y1 := math.Min(r.Y+r.Height, other.Y+other.Height)
	return PDFRect{
		X:      x0,
		Y:      y0,
		Width:  math.Max(x1-x0, 0),
		Height: math.Max(y1-y0, 0),
	}
}

func (r PDFRect) String() string {
	return fmt.Sprintf("[%g %g %g %g]", r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// CanvasRect is a rectangle in canvas space.  X and Y give the top-left
// corner.  While a drag gesture is in progress, W and H may be negative.
type CanvasRect struct {
	X, Y float64
	W, H float64
}

// NormalizeRect returns an equivalent rectangle with non-negative width and
// height, by moving the origin to the smaller coordinate.
func NormalizeRect(r CanvasRect) CanvasRect {
	if r.W < 0 {
		r.X += r.W
		r.W = -r.W
	}
	if r.H < 0 {
		r.Y += r.H
		r.H = -r.H
	}
	return r
}

// ClampCanvas restricts a rectangle to the viewport [0,W]×[0,H].  The
// rectangle is normalized first.
func ClampCanvas(r CanvasRect, W, H float64) CanvasRect {
	r = NormalizeRect(r)
	x0 := clamp(r.X, 0, W)
	y0 := clamp(r.Y, 0, H)
	x1 := clamp(r.X+r.W, 0, W)
	y1 := clamp(r.Y+r.H, 0, H)
	return CanvasRect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// PageGeometry describes the size and boxes of one page.
//
// Values must be constructed using [NewPageGeometry] and are never modified
// afterwards.
type PageGeometry struct {
	// Index is the 0-based position of the page in the document.
	Index int

	// Width and Height give the size of the base box in points, as the page
	// is displayed, i.e. after rotation has been applied.
	Width, Height float64

	// Rotation is the number of degrees by which the page is rotated
	// clockwise when displayed.  This is one of 0, 90, 180 or 270.
	Rotation int

	MediaBox PDFRect

	// CropBox is nil, if the crop box coincides with the media box.
	CropBox *PDFRect
}

// NewPageGeometry validates and normalizes the boxes of a page.
//
// A crop box equal to the media box is dropped, and a crop box which extends
// beyond the media box is clipped.  The rotation is reduced modulo 360.
func NewPageGeometry(index int, mediaBox rect.Rect, cropBox *rect.Rect, rotation int) (PageGeometry, error) {
	if index < 0 {
		return PageGeometry{}, fmt.Errorf("invalid page index %d", index)
	}
	if rotation%90 != 0 {
		return PageGeometry{}, fmt.Errorf("page %d: %w (got %d)", index, ErrRotation, rotation)
	}
	rotation = ((rotation % 360) + 360) % 360

	media := FromRect(mediaBox)
	if media.IsZero() {
		return PageGeometry{}, fmt.Errorf("page %d: empty media box: %w", index, ErrDegenerate)
	}

	pg := PageGeometry{
		Index:    index,
		Rotation: rotation,
		MediaBox: media,
	}
	if cropBox != nil {
		crop := media.Intersect(FromRect(*cropBox))
		if crop.IsZero() {
			return PageGeometry{}, fmt.Errorf("page %d: crop box outside media box: %w", index, ErrDegenerate)
		}
		if crop != media {
			pg.CropBox = &crop
		}
	}

	base := BaseBox(pg)
	pg.Width, pg.Height = RotatedSize(base.Width, base.Height, rotation)
	return pg, nil
}

// BaseBox returns the region of the page which is shown in a viewport: the
// crop box if the page has one, and the media box otherwise.
func BaseBox(pg PageGeometry) PDFRect {
	if pg.CropBox != nil {
		return *pg.CropBox
	}
	return pg.MediaBox
}

// RotatedSize returns the displayed size of a w×h box after rotating it by the
// given number of degrees.
func RotatedSize(w, h float64, rotation int) (float64, float64) {
	r := ((rotation % 360) + 360) % 360
	if r == 90 || r == 270 {
		return h, w
	}
	return w, h
}
