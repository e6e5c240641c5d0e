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
	"image"
	"image/color"
	_ "image/jpeg" // DCTDecode images
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font/gofont/goregular"
	"seehuhn.de/go/geom/matrix"
	geompath "seehuhn.de/go/geom/path"
	"seehuhn.de/go/geom/vec"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/font"
	"seehuhn.de/go/pdf/font/dict"
	"seehuhn.de/go/pdf/font/glyphdata"
	pdfcolor "seehuhn.de/go/pdf/graphics/color"
	pdfimage "seehuhn.de/go/pdf/graphics/image"
	"seehuhn.de/go/pdf/reader"
	"seehuhn.de/go/postscript/cid"
	"seehuhn.de/go/sfnt"
	"seehuhn.de/go/sfnt/glyph"

	"seehuhn.de/go/pagekit/geometry"
)

const maxFormDepth = 8

// Colours used for images which cannot be decoded, and as the default
// fill and stroke colour.
var (
	imageColor = color.NRGBA{R: 0xC8, G: 0xC8, B: 0xC8, A: 0xFF}
	black      = color.NRGBA{A: 0xFF}
)

// A device receives painting operations in device coordinates.
type device interface {
	fill(p path, evenOdd bool, col color.NRGBA)
	stroke(p path, width float64, col color.NRGBA)

	// image paints img.  The matrix maps image pixel coordinates, with
	// the origin at the top-left corner, to device coordinates.
	image(img image.Image, m matrix.Matrix)
}

type pathOp uint8

const (
	opMoveTo pathOp = iota
	opLineTo
	opCubeTo
	opClose
)

type segment struct {
	op  pathOp
	pts [3]vec.Vec2
}

type path []segment

// pageMatrix maps the default user space of a page to device pixels, with
// the origin in the top-left corner of the displayed page.  The crop box is
// mapped onto the whole device and the page rotation is applied.
func pageMatrix(pg geometry.PageGeometry, scale float64) matrix.Matrix {
	base := geometry.BaseBox(pg)
	bw, bh := base.Width, base.Height

	var rot matrix.Matrix
	switch pg.Rotation {
	case 90:
		rot = matrix.Matrix{0, -1, 1, 0, 0, bw}
	case 180:
		rot = matrix.Matrix{-1, 0, 0, -1, bw, bh}
	case 270:
		rot = matrix.Matrix{0, 1, -1, 0, bh, 0}
	default:
		rot = matrix.Identity
	}

	return matrix.Translate(-base.X, -base.Y).
		Mul(rot).
		Mul(matrix.Scale(scale, -scale)).
		Mul(matrix.Translate(0, pg.Height*scale))
}

// fallbackFont is used for text in fonts without embedded glyph outlines.
var fallbackFont = sync.OnceValues(func() (*sfnt.Font, error) {
	return sfnt.Read(bytes.NewReader(goregular.TTF))
})

// canvas receives the callbacks of a content stream reader and forwards
// the painting operations to a device.
//
// The reader's CTM includes the page matrix, so that all coordinates
// passed to the device are in pixels.
type canvas struct {
	rd    *reader.Reader
	dev   device
	log   logrus.FieldLogger
	fonts map[font.Instance]*sfnt.Font
	depth int

	cur        path
	start, pen vec.Vec2
	havePen    bool
}

// newCanvas creates a content stream reader for r which paints onto dev.
// The font cache is shared between a page and its form XObjects.
func newCanvas(r pdf.Getter, dev device, log logrus.FieldLogger, fonts map[font.Instance]*sfnt.Font, depth int) *canvas {
	c := &canvas{
		rd:    reader.New(r, nil),
		dev:   dev,
		log:   log,
		fonts: fonts,
		depth: depth,
	}
	c.rd.PathMoveTo = c.moveTo
	c.rd.PathLineTo = c.lineTo
	c.rd.PathCurveTo = c.curveTo
	c.rd.PathRectangle = c.rectangle
	c.rd.PathClose = c.closePath
	c.rd.PathPaint = c.paint
	c.rd.DrawXObject = c.drawXObject
	c.rd.Character = c.character
	return c
}

// paintPage runs the content streams of a page.
func (c *canvas) paintPage(page pdf.Dict, m matrix.Matrix) error {
	c.rd.Reset()
	return c.rd.ParsePage(page, m)
}

func (c *canvas) moveTo(x, y float64) error {
	p := c.rd.CTM.Apply(vec.Vec2{X: x, Y: y})
	c.cur = append(c.cur, segment{op: opMoveTo, pts: [3]vec.Vec2{p}})
	c.start = p
	c.pen = p
	c.havePen = true
	return nil
}

func (c *canvas) lineTo(x, y float64) error {
	if !c.havePen {
		return nil
	}
	p := c.rd.CTM.Apply(vec.Vec2{X: x, Y: y})
	c.cur = append(c.cur, segment{op: opLineTo, pts: [3]vec.Vec2{p}})
	c.pen = p
	return nil
}

func (c *canvas) curveTo(x1, y1, x2, y2, x3, y3 float64) error {
	if !c.havePen {
		return nil
	}
	m := c.rd.CTM
	seg := segment{op: opCubeTo, pts: [3]vec.Vec2{
		m.Apply(vec.Vec2{X: x1, Y: y1}),
		m.Apply(vec.Vec2{X: x2, Y: y2}),
		m.Apply(vec.Vec2{X: x3, Y: y3}),
	}}
	c.cur = append(c.cur, seg)
	c.pen = seg.pts[2]
	return nil
}

func (c *canvas) rectangle(x, y, w, h float64) error {
	c.moveTo(x, y)
	c.lineTo(x+w, y)
	c.lineTo(x+w, y+h)
	c.lineTo(x, y+h)
	return c.closePath()
}

func (c *canvas) closePath() error {
	if c.havePen {
		c.cur = append(c.cur, segment{op: opClose})
		c.pen = c.start
	}
	return nil
}

// paint implements the path painting operators.  Clipping is not
// supported.
func (c *canvas) paint(op string) error {
	switch op {
	case "f", "F":
		c.draw(true, false, false)
	case "f*":
		c.draw(true, true, false)
	case "S":
		c.draw(false, false, true)
	case "s":
		c.closePath()
		c.draw(false, false, true)
	case "B":
		c.draw(true, false, true)
	case "B*":
		c.draw(true, true, true)
	case "b":
		c.closePath()
		c.draw(true, false, true)
	case "b*":
		c.closePath()
		c.draw(true, true, true)
	}
	c.cur = nil
	c.havePen = false
	return nil
}

func (c *canvas) draw(fill, evenOdd, stroke bool) {
	if len(c.cur) == 0 {
		return
	}
	if fill {
		c.dev.fill(c.cur, evenOdd, toNRGBA(c.rd.FillColor))
	}
	if stroke {
		c.dev.stroke(c.cur, c.rd.LineWidth*lineScale(c.rd.CTM), toNRGBA(c.rd.StrokeColor))
	}
}

// lineScale gives the factor by which m magnifies lengths.
func lineScale(m matrix.Matrix) float64 {
	return math.Sqrt(math.Abs(m[0]*m[3] - m[1]*m[2]))
}

// character paints one glyph.  Glyphs are taken from the embedded font
// file if there is one, and from a substitute font otherwise.  Glyphs
// which cannot be found are drawn as boxes.
func (c *canvas) character(code cid.CID, text string, width float64) error {
	rd := c.rd
	if rd.TextFont == nil || rd.TextRenderingMode%4 == 3 {
		// no font, or invisible text
		return nil
	}
	col := toNRGBA(rd.FillColor)
	fs, hs := rd.TextFontSize, rd.TextHorizontalScaling

	f, gid := c.glyph(rd.TextFont, code, text)
	if f == nil {
		if text == " " || width == 0 {
			return nil
		}
		m := matrix.Translate(0, rd.TextRise).Mul(rd.TextMatrix).Mul(rd.CTM)
		c.dev.fill(box(m, 0.1*width, 0, 0.8*width, 0.6*fs), false, col)
		return nil
	}

	upem := float64(f.UnitsPerEm)
	m := matrix.Matrix{fs * hs / upem, 0, 0, fs / upem, 0, rd.TextRise}.
		Mul(rd.TextMatrix).
		Mul(rd.CTM)
	if p := outline(f, gid, m); len(p) > 0 {
		c.dev.fill(p, false, col)
	}
	return nil
}

// glyph selects the font and glyph used to draw a character.
func (c *canvas) glyph(inst font.Instance, code cid.CID, text string) (*sfnt.Font, glyph.ID) {
	runes := []rune(text)

	if f := c.embedded(inst); f != nil {
		gid := glyph.ID(code)
		if len(runes) > 0 {
			if g := lookup(f, runes[0]); g != 0 {
				gid = g
			}
		}
		return f, gid
	}

	if len(runes) == 0 {
		return nil, 0
	}
	f, err := fallbackFont()
	if err != nil {
		c.log.WithError(err).Debug("substitute font unavailable")
		return nil, 0
	}
	gid := lookup(f, runes[0])
	if gid == 0 {
		return nil, 0
	}
	return f, gid
}

// embedded returns the embedded font program of a font, or nil if the
// font has no embedded glyph outlines.  Fonts which cannot be read are
// remembered, so that every font is only tried once.
func (c *canvas) embedded(inst font.Instance) *sfnt.Font {
	if f, seen := c.fonts[inst]; seen {
		return f
	}

	var stream *glyphdata.Stream
	switch info := inst.FontInfo().(type) {
	case *dict.FontInfoSimple:
		stream = info.FontFile
	case *dict.FontInfoGlyfEmbedded:
		stream = info.FontFile
	case *dict.FontInfoCID:
		stream = info.FontFile
	}

	var f *sfnt.Font
	if stream != nil {
		buf := &bytes.Buffer{}
		err := stream.WriteTo(buf, nil)
		if err == nil {
			f, err = sfnt.Read(bytes.NewReader(buf.Bytes()))
		}
		if err != nil {
			c.log.WithError(err).Debug("embedded font not usable")
			f = nil
		}
	}
	c.fonts[inst] = f
	return f
}

func lookup(f *sfnt.Font, r rune) glyph.ID {
	cmap, err := f.CMapTable.GetBest()
	if err != nil || cmap == nil {
		return 0
	}
	return cmap.Lookup(r)
}

// outline returns the outline of a glyph, transformed by m.  Quadratic
// segments are converted to cubic ones.
func outline(f *sfnt.Font, gid glyph.ID, m matrix.Matrix) path {
	if f.Outlines == nil {
		return nil
	}

	var p path
	var pen vec.Vec2
	for cmd, pts := range f.Outlines.Path(gid) {
		switch cmd {
		case geompath.CmdMoveTo:
			pen = m.Apply(pts[0])
			p = append(p, segment{op: opMoveTo, pts: [3]vec.Vec2{pen}})
		case geompath.CmdLineTo:
			pen = m.Apply(pts[0])
			p = append(p, segment{op: opLineTo, pts: [3]vec.Vec2{pen}})
		case geompath.CmdQuadTo:
			q, end := m.Apply(pts[0]), m.Apply(pts[1])
			c1 := vec.Vec2{X: pen.X + 2*(q.X-pen.X)/3, Y: pen.Y + 2*(q.Y-pen.Y)/3}
			c2 := vec.Vec2{X: end.X + 2*(q.X-end.X)/3, Y: end.Y + 2*(q.Y-end.Y)/3}
			p = append(p, segment{op: opCubeTo, pts: [3]vec.Vec2{c1, c2, end}})
			pen = end
		case geompath.CmdCubeTo:
			seg := segment{op: opCubeTo, pts: [3]vec.Vec2{
				m.Apply(pts[0]), m.Apply(pts[1]), m.Apply(pts[2]),
			}}
			p = append(p, seg)
			pen = seg.pts[2]
		case geompath.CmdClose:
			p = append(p, segment{op: opClose})
		}
	}
	return p
}

// box returns the rectangle with corner (x, y), width w and height h,
// transformed by m.
func box(m matrix.Matrix, x, y, w, h float64) path {
	corners := []vec.Vec2{{X: x, Y: y}, {X: x + w, Y: y}, {X: x + w, Y: y + h}, {X: x, Y: y + h}}
	p := make(path, 0, 5)
	for i, corner := range corners {
		op := opLineTo
		if i == 0 {
			op = opMoveTo
		}
		p = append(p, segment{op: op, pts: [3]vec.Vec2{m.Apply(corner)}})
	}
	return append(p, segment{op: opClose})
}

func (c *canvas) drawXObject(name string) error {
	rd := c.rd
	if rd.Resources == nil {
		return nil
	}
	obj, ok := rd.Resources.XObject[pdf.Name(name)]
	if !ok {
		c.log.WithField("name", name).Debug("XObject not found")
		return nil
	}
	stm, err := pdf.GetStream(rd.R, obj)
	if err != nil || stm == nil {
		c.log.WithError(err).WithField("name", name).Debug("XObject skipped")
		return nil
	}

	subtype, _ := pdf.GetName(rd.R, stm.Dict["Subtype"])
	switch subtype {
	case "Image":
		c.drawImage(name, obj)
	case "Form":
		c.drawForm(name, stm)
	}
	return nil
}

// drawImage paints an image XObject into the unit square of user space.
// Images which cannot be decoded are shown as grey rectangles.
func (c *canvas) drawImage(name string, obj pdf.Object) {
	ctm := c.rd.CTM
	src, err := decodeImage(c.rd.R, obj)
	if err != nil || src == nil {
		c.log.WithError(err).WithField("name", name).Debug("image shown as placeholder")
		c.dev.fill(box(ctm, 0, 0, 1, 1), false, imageColor)
		return
	}

	b := src.Bounds()
	toUnit := matrix.Matrix{1 / float64(b.Dx()), 0, 0, -1 / float64(b.Dy()), 0, 1}
	c.dev.image(src, matrix.Translate(-float64(b.Min.X), -float64(b.Min.Y)).Mul(toUnit).Mul(ctm))
}

// decodeImage converts an image XObject into a Go image.  Encoded data
// is tried first, raw samples are only understood for 8-bit grey and RGB
// images.
func decodeImage(r pdf.Getter, obj pdf.Object) (image.Image, error) {
	img, err := pdfimage.ExtractDict(pdf.NewExtractor(r), obj)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	err = img.WriteData(buf)
	if err != nil {
		return nil, err
	}
	data := buf.Bytes()

	if decoded, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return decoded, nil
	}

	w, h := img.Width, img.Height
	if w <= 0 || h <= 0 {
		return nil, nil
	}
	switch img.ColorSpace.Family() {
	case pdfcolor.FamilyDeviceGray, pdfcolor.FamilyCalGray:
		if len(data) < w*h {
			return nil, nil
		}
		gray := image.NewGray(image.Rect(0, 0, w, h))
		copy(gray.Pix, data)
		return gray, nil
	case pdfcolor.FamilyDeviceRGB, pdfcolor.FamilyCalRGB:
		if len(data) < 3*w*h {
			return nil, nil
		}
		rgba := image.NewRGBA(image.Rect(0, 0, w, h))
		for i := range w * h {
			copy(rgba.Pix[4*i:4*i+3], data[3*i:3*i+3])
			rgba.Pix[4*i+3] = 0xFF
		}
		return rgba, nil
	}
	return nil, nil
}

// drawForm runs the content stream of a form XObject.  The form starts
// with the current colours and line width; forms without their own
// resources use the resources of the caller.
func (c *canvas) drawForm(name string, stm *pdf.Stream) {
	if c.depth >= maxFormDepth {
		c.log.WithField("name", name).Warn("form XObjects nested too deeply")
		return
	}
	rd := c.rd

	fm := matrix.Identity
	if a, _ := pdf.GetArray(rd.R, stm.Dict["Matrix"]); len(a) == 6 {
		for i := range 6 {
			x, _ := pdf.GetNumber(rd.R, a[i])
			fm[i] = float64(x)
		}
	}

	body, err := pdf.DecodeStream(rd.R, stm, 0)
	if err != nil {
		c.log.WithError(err).WithField("name", name).Warn("form XObject not readable")
		return
	}

	sub := newCanvas(rd.R, c.dev, c.log, c.fonts, c.depth+1)
	sub.rd.Reset()
	sub.rd.CTM = fm.Mul(rd.CTM)
	sub.rd.FillColor = rd.FillColor
	sub.rd.StrokeColor = rd.StrokeColor
	sub.rd.LineWidth = rd.LineWidth
	sub.rd.Resources = rd.Resources
	if resDict, _ := pdf.GetDict(rd.R, stm.Dict["Resources"]); resDict != nil {
		res := &pdf.Resources{}
		if err := pdf.DecodeDict(rd.R, res, resDict); err == nil {
			sub.rd.Resources = res
		}
	}

	err = sub.rd.ParseContentStream(body)
	if err != nil {
		c.log.WithError(err).WithField("name", name).Warn("form XObject truncated")
	}
}

// toNRGBA converts a colour in one of the device or calibrated colour
// spaces.  Other colours are shown as black.
func toNRGBA(col pdfcolor.Color) color.NRGBA {
	if col == nil {
		return black
	}
	v, _, _ := pdfcolor.Operator(col)
	switch col.ColorSpace().Family() {
	case pdfcolor.FamilyDeviceGray, pdfcolor.FamilyCalGray:
		if len(v) < 1 {
			break
		}
		g := toByte(v[0])
		return color.NRGBA{R: g, G: g, B: g, A: 0xFF}
	case pdfcolor.FamilyDeviceRGB, pdfcolor.FamilyCalRGB:
		if len(v) < 3 {
			break
		}
		return color.NRGBA{R: toByte(v[0]), G: toByte(v[1]), B: toByte(v[2]), A: 0xFF}
	case pdfcolor.FamilyDeviceCMYK:
		if len(v) < 4 {
			break
		}
		k := 1 - clamp(v[3])
		return color.NRGBA{
			R: toByte((1 - clamp(v[0])) * k),
			G: toByte((1 - clamp(v[1])) * k),
			B: toByte((1 - clamp(v[2])) * k),
			A: 0xFF,
		}
	}
	return black
}

func toByte(x float64) uint8 {
	return uint8(math.Round(clamp(x) * 255))
}

func clamp(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
