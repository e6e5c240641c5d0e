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
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"seehuhn.de/go/geom/matrix"

	"seehuhn.de/go/pagekit/internal/float"
)

// svgDevice writes painting operations as SVG path elements.
type svgDevice struct {
	buf    strings.Builder
	paths  int
	images int
}

func newSVGDevice(w, h int) *svgDevice {
	d := &svgDevice{}
	fmt.Fprintf(&d.buf,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		w, h, w, h)
	d.buf.WriteString(`<rect width="100%" height="100%" fill="#ffffff"/>`)
	return d
}

func (d *svgDevice) fill(p path, evenOdd bool, col color.NRGBA) {
	if len(p) == 0 {
		return
	}
	d.buf.WriteString(`<path d="`)
	d.writePath(p)
	fmt.Fprintf(&d.buf, `" fill="%s"`, hexColor(col))
	if evenOdd {
		d.buf.WriteString(` fill-rule="evenodd"`)
	}
	d.buf.WriteString("/>")
	d.paths++
}

func (d *svgDevice) stroke(p path, width float64, col color.NRGBA) {
	if len(p) == 0 {
		return
	}
	d.buf.WriteString(`<path d="`)
	d.writePath(p)
	fmt.Fprintf(&d.buf, `" fill="none" stroke="%s" stroke-width="%s"/>`,
		hexColor(col), num(max(width, 1)))
	d.paths++
}

// image embeds img as a PNG file.
func (d *svgDevice) image(img image.Image, m matrix.Matrix) {
	data := &bytes.Buffer{}
	if err := png.Encode(data, img); err != nil {
		return
	}
	b := img.Bounds()
	fmt.Fprintf(&d.buf, `<image x="%d" y="%d" width="%d" height="%d" transform="matrix(%s %s %s %s %s %s)" href="data:image/png;base64,`,
		b.Min.X, b.Min.Y, b.Dx(), b.Dy(),
		num6(m[0]), num6(m[1]), num6(m[2]), num6(m[3]), num(m[4]), num(m[5]))
	d.buf.WriteString(base64.StdEncoding.EncodeToString(data.Bytes()))
	d.buf.WriteString(`"/>`)
	d.images++
}

func (d *svgDevice) writePath(p path) {
	for i, seg := range p {
		if i > 0 {
			d.buf.WriteByte(' ')
		}
		switch seg.op {
		case opMoveTo:
			fmt.Fprintf(&d.buf, "M%s %s", num(seg.pts[0].X), num(seg.pts[0].Y))
		case opLineTo:
			fmt.Fprintf(&d.buf, "L%s %s", num(seg.pts[0].X), num(seg.pts[0].Y))
		case opCubeTo:
			fmt.Fprintf(&d.buf, "C%s %s %s %s %s %s",
				num(seg.pts[0].X), num(seg.pts[0].Y),
				num(seg.pts[1].X), num(seg.pts[1].Y),
				num(seg.pts[2].X), num(seg.pts[2].Y))
		case opClose:
			d.buf.WriteByte('Z')
		}
	}
}

// String returns the complete SVG document.
func (d *svgDevice) String() string {
	return d.buf.String() + "</svg>"
}

func hexColor(col color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", col.R, col.G, col.B)
}

// num formats a coordinate with at most two decimal places.
func num(x float64) string {
	return float.Format(x, 2)
}

// num6 formats a matrix coefficient.
func num6(x float64) string {
	return float.Format(x, 6)
}
