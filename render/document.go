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
	"errors"
	"fmt"
	"sync"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/font"
	"seehuhn.de/go/pdf/pagetree"
	"seehuhn.de/go/sfnt"

	"seehuhn.de/go/pagekit/geometry"
)

// document is a parsed PDF file.
type document struct {
	pages []geometry.PageGeometry

	// mu protects the reader, which keeps state while a page is painted.
	mu    sync.Mutex
	r     *pdf.Reader
	dicts []pdf.Dict
	fonts map[font.Instance]*sfnt.Font
}

func loadDocument(buf []byte) (*document, error) {
	if len(buf) == 0 {
		return nil, &DocumentError{Err: errors.New("empty file")}
	}
	r, err := pdf.NewReader(bytes.NewReader(buf), nil)
	if err != nil {
		return nil, &DocumentError{Err: err}
	}

	n, err := pagetree.NumPages(r)
	if err != nil {
		return nil, &DocumentError{Err: err}
	}

	doc := &document{
		r:     r,
		pages: make([]geometry.PageGeometry, n),
		dicts: make([]pdf.Dict, n),
		fonts: make(map[font.Instance]*sfnt.Font),
	}
	for i := range n {
		// GetPage fills in inherited attributes like MediaBox and Rotate.
		_, dict, err := pagetree.GetPage(r, i)
		if err != nil {
			return nil, &DocumentError{Err: fmt.Errorf("page %d: %w", i+1, err)}
		}

		mediaBox, err := pdf.GetRectangle(r, dict["MediaBox"])
		if err != nil {
			return nil, &DocumentError{Err: fmt.Errorf("page %d: %w", i+1, err)}
		}
		var cropBox *rect.Rect
		if box, err := pdf.GetRectangle(r, dict["CropBox"]); err == nil && box != nil {
			c := fromRectangle(box)
			cropBox = &c
		}
		rotate, _ := pdf.GetInt(r, dict["Rotate"])

		pg, err := geometry.NewPageGeometry(i, fromRectangle(mediaBox), cropBox, int(rotate))
		if err != nil {
			return nil, &DocumentError{Err: fmt.Errorf("page %d: %w", i+1, err)}
		}
		doc.pages[i] = pg
		doc.dicts[i] = dict
	}
	return doc, nil
}

// page returns the page dictionary and geometry of page i.
func (d *document) page(i int) (pdf.Dict, geometry.PageGeometry, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, geometry.PageGeometry{}, fmt.Errorf("page %d of %d: %w", i, len(d.pages), ErrPageRange)
	}
	return d.dicts[i], d.pages[i], nil
}

// fromRectangle converts a PDF rectangle.  A missing rectangle gives the
// zero rectangle, which NewPageGeometry rejects.
func fromRectangle(r *pdf.Rectangle) rect.Rect {
	if r == nil {
		return rect.Rect{}
	}
	return rect.Rect{LLx: r.LLx, LLy: r.LLy, URx: r.URx, URy: r.URy}
}
