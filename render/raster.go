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

package render

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/vector"
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/vec"
)

// curveSteps is the number of line segments used to approximate a Bézier
// curve when stroking.
const curveSteps = 16

// rasterDevice paints onto an RGBA image.
//
// The rasterizer only implements the non-zero winding rule, so even-odd
// fills are approximated by non-zero fills.
type rasterDevice struct {
	img *image.RGBA
	ras *vector.Rasterizer
}

func newRasterDevice(img *image.RGBA) *rasterDevice {
	b := img.Bounds()
	return &rasterDevice{
		img: img,
		ras: vector.NewRasterizer(b.Dx(), b.Dy()),
	}
}

func (d *rasterDevice) reset() {
	b := d.img.Bounds()
	d.ras.Reset(b.Dx(), b.Dy())
	d.ras.DrawOp = draw.Over
}

func (d *rasterDevice) draw(col color.NRGBA) {
	d.ras.Draw(d.img, d.img.Bounds(), image.NewUniform(col), image.Point{})
}

func (d *rasterDevice) fill(p path, _ bool, col color.NRGBA) {
	d.reset()
	open := false
	for _, seg := range p {
		switch seg.op {
		case opMoveTo:
			if open {
				d.ras.ClosePath()
			}
			d.ras.MoveTo(float32(seg.pts[0].X), float32(seg.pts[0].Y))
			open = true
		case opLineTo:
			d.ras.LineTo(float32(seg.pts[0].X), float32(seg.pts[0].Y))
		case opCubeTo:
			d.ras.CubeTo(
				float32(seg.pts[0].X), float32(seg.pts[0].Y),
				float32(seg.pts[1].X), float32(seg.pts[1].Y),
				float32(seg.pts[2].X), float32(seg.pts[2].Y))
		case opClose:
			d.ras.ClosePath()
		}
	}
	if open {
		// fills implicitly close all subpaths
		d.ras.ClosePath()
	}
	d.draw(col)
}

func (d *rasterDevice) image(img image.Image, m matrix.Matrix) {
	aff := f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
	xdraw.BiLinear.Transform(d.img, aff, img, img.Bounds(), draw.Over, nil)
}

// stroke draws every line segment as a filled quadrilateral.  Joins and
// caps are not drawn.
func (d *rasterDevice) stroke(p path, width float64, col color.NRGBA) {
	d.reset()
	hw := max(width/2, 0.5)
	for _, line := range flatten(p) {
		for i := 1; i < len(line); i++ {
			d.quad(line[i-1], line[i], hw)
		}
	}
	d.draw(col)
}

func (d *rasterDevice) quad(from, to vec.Vec2, hw float64) {
	dir := to.Sub(from)
	l := dir.Length()
	if l == 0 {
		return
	}
	n := vec.Vec2{X: -dir.Y / l * hw, Y: dir.X / l * hw}

	p1, p2 := from.Add(n), to.Add(n)
	p3, p4 := to.Sub(n), from.Sub(n)
	d.ras.MoveTo(float32(p1.X), float32(p1.Y))
	d.ras.LineTo(float32(p2.X), float32(p2.Y))
	d.ras.LineTo(float32(p3.X), float32(p3.Y))
	d.ras.LineTo(float32(p4.X), float32(p4.Y))
	d.ras.ClosePath()
}

// flatten converts a path into polylines, one per subpath.  Closed subpaths
// end with their starting point.
func flatten(p path) [][]vec.Vec2 {
	var res [][]vec.Vec2
	var cur []vec.Vec2
	for _, seg := range p {
		switch seg.op {
		case opMoveTo:
			if len(cur) > 1 {
				res = append(res, cur)
			}
			cur = []vec.Vec2{seg.pts[0]}
		case opLineTo:
			cur = append(cur, seg.pts[0])
		case opCubeTo:
			if len(cur) == 0 {
				continue
			}
			p0 := cur[len(cur)-1]
			for i := 1; i <= curveSteps; i++ {
				cur = append(cur, bezier(p0, seg.pts[0], seg.pts[1], seg.pts[2], float64(i)/curveSteps))
			}
		case opClose:
			if len(cur) > 0 {
				start := cur[0]
				cur = append(cur, start)
				res = append(res, cur)
				cur = []vec.Vec2{start}
			}
		}
	}
	if len(cur) > 1 {
		res = append(res, cur)
	}
	return res
}

func bezier(p0, p1, p2, p3 vec.Vec2, t float64) vec.Vec2 {
	s := 1 - t
	a, b, c, d := s*s*s, 3*s*s*t, 3*s*t*t, t*t*t
	return vec.Vec2{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}
