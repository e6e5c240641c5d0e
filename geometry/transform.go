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

package geometry

import (
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// CanvasToPDF converts a rectangle in a vpW×vpH viewport showing the box
// base into PDF space.
//
// The rectangle is not normalized; a negative width or height in canvas
// space gives a negative width or height in PDF space.  If the viewport or
// the base box is empty, the zero rectangle is returned.
func CanvasToPDF(r CanvasRect, vpW, vpH float64, base PDFRect) PDFRect {
	if vpW == 0 || vpH == 0 || base.IsZero() {
		return PDFRect{}
	}
	scaleX := base.Width / vpW
	scaleY := base.Height / vpH
	return PDFRect{
		X:      base.X + r.X*scaleX,
		Y:      base.Y + (base.Height - (r.Y+r.H)*scaleY),
		Width:  r.W * scaleX,
		Height: r.H * scaleY,
	}
}

// PDFToCanvas is the inverse of [CanvasToPDF].
func PDFToCanvas(r PDFRect, vpW, vpH float64, base PDFRect) CanvasRect {
	if vpW == 0 || vpH == 0 || base.IsZero() {
		return CanvasRect{}
	}
	scaleX := vpW / base.Width
	scaleY := vpH / base.Height
	return CanvasRect{
		X: (r.X - base.X) * scaleX,
		Y: (base.Y + base.Height - r.Y - r.Height) * scaleY,
		W: r.Width * scaleX,
		H: r.Height * scaleY,
	}
}

// Transform is the affine map between a viewport and the page box it shows.
// The zero value is not usable; use [NewTransform].
type Transform struct {
	// ToPDF maps canvas points to PDF points.
	ToPDF matrix.Matrix

	// ToCanvas maps PDF points to canvas points.
	ToCanvas matrix.Matrix

	Base   PDFRect
	Width  float64
	Height float64
}

// NewTransform returns the transformation for a vpW×vpH viewport which shows
// the box base.
func NewTransform(base PDFRect, vpW, vpH float64) (Transform, error) {
	t := Transform{Base: base.Normalize(), Width: vpW, Height: vpH}
	if err := t.Valid(); err != nil {
		return Transform{}, err
	}

	sx := t.Base.Width / vpW
	sy := t.Base.Height / vpH
	top := t.Base.Y + t.Base.Height

	// canvas y grows downwards, PDF y grows upwards
	t.ToPDF = matrix.Scale(sx, -sy).Mul(matrix.Translate(t.Base.X, top))
	t.ToCanvas = t.ToPDF.Inv()
	return t, nil
}

// Valid returns [ErrDegenerate] if no transformation between the viewport and
// the base box exists.
func (t Transform) Valid() error {
	if !(t.Width > 0 && t.Height > 0) || t.Base.IsZero() {
		return ErrDegenerate
	}
	return nil
}

// RectToPDF converts a canvas rectangle to PDF space.  The result is
// normalized.
func (t Transform) RectToPDF(r CanvasRect) PDFRect {
	r = NormalizeRect(r)
	p0 := t.ToPDF.Apply(vec.Vec2{X: r.X, Y: r.Y})
	p1 := t.ToPDF.Apply(vec.Vec2{X: r.X + r.W, Y: r.Y + r.H})
	return FromRect(rect.Rect{LLx: p0.X, LLy: p0.Y, URx: p1.X, URy: p1.Y})
}

// RectToCanvas converts a PDF rectangle to canvas space.  The result is
// normalized.
func (t Transform) RectToCanvas(r PDFRect) CanvasRect {
	r = r.Normalize()
	p0 := t.ToCanvas.Apply(vec.Vec2{X: r.X, Y: r.Y})
	p1 := t.ToCanvas.Apply(vec.Vec2{X: r.X + r.Width, Y: r.Y + r.Height})
	return NormalizeRect(CanvasRect{X: p0.X, Y: p0.Y, W: p1.X - p0.X, H: p1.Y - p0.Y})
}

// PointToPDF converts a single canvas point to PDF space.
func (t Transform) PointToPDF(p vec.Vec2) vec.Vec2 {
	return t.ToPDF.Apply(p)
}
