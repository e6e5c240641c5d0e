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

// Package testpdf writes small PDF files for use in tests.
package testpdf

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"seehuhn.de/go/geom/rect"
)

// A4 is the media box of an A4 page.
var A4 = rect.Rect{LLx: 0, LLy: 0, URx: 595, URy: 842}

// Page describes one page of a test document.
type Page struct {
	MediaBox rect.Rect
	CropBox  *rect.Rect
	Rotate   int

	// Content is the content stream of the page.
	Content string

	// Forms maps resource names to the content streams of form XObjects.
	// The forms use the media box of the page as their bounding box.
	Forms map[string]string

	// Images lists resource names of 1×1 grey image XObjects.
	Images []string

	// Fonts lists resource names of Helvetica fonts, which are not
	// embedded.
	Fonts []string
}

// Build returns a PDF file containing the given pages.
func Build(pages ...Page) []byte {
	w := &writer{}
	w.buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	// object numbers: 1 = catalog, 2 = page tree, then pages and their
	// resources
	next := 3
	type pageRefs struct {
		page, content int
		forms         map[string]int
		images        map[string]int
		fonts         map[string]int
	}
	refs := make([]pageRefs, len(pages))
	for i, p := range pages {
		refs[i].page = next
		refs[i].content = next + 1
		next += 2
		refs[i].forms = make(map[string]int)
		for _, name := range slices.Sorted(maps.Keys(p.Forms)) {
			refs[i].forms[name] = next
			next++
		}
		refs[i].images = make(map[string]int)
		for _, name := range p.Images {
			refs[i].images[name] = next
			next++
		}
		refs[i].fonts = make(map[string]int)
		for _, name := range p.Fonts {
			refs[i].fonts[name] = next
			next++
		}
	}
	w.offsets = make([]int, next)

	w.object(1, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := &bytes.Buffer{}
	for i := range pages {
		if i > 0 {
			kids.WriteByte(' ')
		}
		fmt.Fprintf(kids, "%d 0 R", refs[i].page)
	}
	w.object(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)))

	for i, p := range pages {
		media := p.MediaBox
		if media.IsZero() {
			media = A4
		}

		xobj := &bytes.Buffer{}
		for name, ref := range refs[i].forms {
			fmt.Fprintf(xobj, " /%s %d 0 R", name, ref)
		}
		for name, ref := range refs[i].images {
			fmt.Fprintf(xobj, " /%s %d 0 R", name, ref)
		}

		fonts := &bytes.Buffer{}
		for name, ref := range refs[i].fonts {
			fmt.Fprintf(fonts, " /%s %d 0 R", name, ref)
		}

		dict := &bytes.Buffer{}
		fmt.Fprintf(dict, "<< /Type /Page /Parent 2 0 R /MediaBox %s", box(media))
		if p.CropBox != nil {
			fmt.Fprintf(dict, " /CropBox %s", box(*p.CropBox))
		}
		if p.Rotate != 0 {
			fmt.Fprintf(dict, " /Rotate %d", p.Rotate)
		}
		fmt.Fprintf(dict, " /Resources << /XObject <<%s >>", xobj)
		if fonts.Len() > 0 {
			fmt.Fprintf(dict, " /Font <<%s >>", fonts)
		}
		dict.WriteString(" >>")
		fmt.Fprintf(dict, " /Contents %d 0 R >>", refs[i].content)
		w.object(refs[i].page, dict.String())

		w.stream(refs[i].content, "", p.Content)
		for name, ref := range refs[i].forms {
			extra := "/Type /XObject /Subtype /Form /BBox " + box(media)
			w.stream(ref, extra, p.Forms[name])
		}
		for _, ref := range refs[i].images {
			extra := "/Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceGray /BitsPerComponent 8"
			w.stream(ref, extra, "\x80")
		}
		for _, ref := range refs[i].fonts {
			w.object(ref, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
		}
	}

	xref := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n", next)
	w.buf.WriteString("0000000000 65535 f \n")
	for _, off := range w.offsets[1:] {
		fmt.Fprintf(&w.buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&w.buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", next, xref)
	return w.buf.Bytes()
}

// Simple returns a document with n A4 pages.  Each page has a filled grey
// rectangle whose width encodes the page number.
func Simple(n int) []byte {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{
			MediaBox: A4,
			Content:  fmt.Sprintf("0.5 g 50 50 %d 100 re f\n", 20*(i+1)),
		}
	}
	return Build(pages...)
}

type writer struct {
	buf     bytes.Buffer
	offsets []int
}

func (w *writer) object(num int, body string) {
	w.offsets[num] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (w *writer) stream(num int, extra, data string) {
	w.offsets[num] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n%s\nendstream\nendobj\n",
		num, extra, len(data), data)
}

func box(r rect.Rect) string {
	return fmt.Sprintf("[%g %g %g %g]", r.LLx, r.LLy, r.URx, r.URy)
}
