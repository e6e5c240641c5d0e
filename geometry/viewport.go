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

import "math"

// MaxScale is the largest scale [FitViewport] will choose.  Small pages in
// large containers are not blown up beyond this.
const MaxScale = 2.0

// PointsPerInch is the number of PDF points in one inch.
const PointsPerInch = 72

// Viewport describes how a page is placed inside a container.
type Viewport struct {
	// Width and Height give the size of the page image in device pixels.
	Width, Height float64

	// Scale is the number of device pixels per PDF point.
	Scale float64

	// OffsetX and OffsetY give the position of the page image inside the
	// container.
	OffsetX, OffsetY float64
}

// FitViewport places a pageW×pageH page (in points) inside a container of
// the given size (in pixels), leaving at least padding pixels on every side.
// The page is scaled to fit, but never by more than [MaxScale], and is
// centred in the container.
//
// If the page or the available space is empty, the zero Viewport is
// returned.
func FitViewport(pageW, pageH, containerW, containerH, padding float64) Viewport {
	availW := containerW - 2*padding
	availH := containerH - 2*padding
	if !(pageW > 0 && pageH > 0 && availW > 0 && availH > 0) {
		return Viewport{}
	}

	scale := math.Min(math.Min(availW/pageW, availH/pageH), MaxScale)
	w := pageW * scale
	h := pageH * scale
	return Viewport{
		Width:   w,
		Height:  h,
		Scale:   scale,
		OffsetX: (containerW - w) / 2,
		OffsetY: (containerH - h) / 2,
	}
}

// Transform returns the map between the viewport and the given page box.
func (vp Viewport) Transform(base PDFRect) (Transform, error) {
	return NewTransform(base, vp.Width, vp.Height)
}

// DPIToScale converts a resolution in dots per inch into a scale factor in
// pixels per point.
func DPIToScale(dpi float64) float64 {
	return dpi / PointsPerInch
}

// ScaleToDPI is the inverse of [DPIToScale].
func ScaleToDPI(scale float64) float64 {
	return scale * PointsPerInch
}
