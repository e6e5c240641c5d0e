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

package svgconv

import (
	"context"
	"errors"
	"fmt"

	"seehuhn.de/go/pagekit/edit"
	"seehuhn.de/go/pagekit/pagerange"
	"seehuhn.de/go/pagekit/render"
)

// Source returns a vector source which converts pages using the service.
// Acquisition fails if the client has no endpoint.  The page is cut out of
// the document with ed before it is sent, so that only a single page
// crosses the network.
//
// The service decides the size of the SVG image; the scale factor passed to
// the vectorizer is ignored.
func Source(c *Client, ed *edit.Editor) render.VectorSource {
	return render.VectorSource{
		Name: "remote",
		Acquire: func() (render.Vectorizer, error) {
			if c == nil || c.endpoint == "" {
				return nil, errors.New("no endpoint configured")
			}
			return &remote{client: c, editor: ed}, nil
		},
	}
}

type remote struct {
	client *Client
	editor *edit.Editor
}

func (v *remote) Vectorize(ctx context.Context, buf []byte, pageIndex int, _ float64) (string, error) {
	n, err := v.editor.PageCount(buf)
	if err != nil {
		return "", err
	}
	if pageIndex < 0 || pageIndex >= n {
		return "", fmt.Errorf("page %d of %d: %w", pageIndex, n, render.ErrPageRange)
	}

	page1 := pageIndex + 1
	single, err := v.editor.ExtractPageRanges(buf, []pagerange.Range{{First: page1, Last: page1}})
	if err != nil {
		return "", err
	}
	return v.client.Convert(ctx, single, 1)
}
