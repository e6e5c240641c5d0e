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
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"

	"github.com/sirupsen/logrus"
)

// Vectorizer converts a page of a PDF document into an SVG image.
// The page index is 0-based.
type Vectorizer interface {
	Vectorize(ctx context.Context, buf []byte, pageIndex int, scale float64) (string, error)
}

// VectorSource describes one way of obtaining a Vectorizer.
type VectorSource struct {
	Name    string
	Acquire func() (Vectorizer, error)
}

// vectorizer returns the cached vectorizer, or tries all vector sources in
// order.  Only success is cached; after a failure the sources are tried
// again on the next call.
func (r *Renderer) vectorizer() (Vectorizer, error) {
	r.vecMu.Lock()
	defer r.vecMu.Unlock()

	if r.vec != nil {
		return r.vec, nil
	}

	var errs []error
	for _, src := range r.sources {
		v, err := src.Acquire()
		if err == nil && v == nil {
			err = errors.New("no vectorizer returned")
		}
		if err != nil {
			r.log.WithError(err).WithField("source", src.Name).Warn("vector source unavailable")
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			continue
		}
		r.log.WithField("source", src.Name).Debug("vector source acquired")
		r.vec = v
		r.vecName = src.Name
		return v, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrNoVectorizer, errors.Join(errs...))
}

// VectorizerName returns the name of the vector source in use, or the empty
// string if no vectorizer has been acquired yet.
func (r *Renderer) VectorizerName() string {
	r.vecMu.Lock()
	defer r.vecMu.Unlock()
	return r.vecName
}

// painter is the built-in vectorizer.
type painter struct {
	r *Renderer
}

func (p painter) Vectorize(ctx context.Context, buf []byte, pageIndex int, scale float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc, err := p.r.document(buf)
	if err != nil {
		return "", err
	}
	_, pg, err := doc.page(pageIndex)
	if err != nil {
		return "", err
	}

	w, h, err := pixelSize(pg, scale)
	if err != nil {
		return "", err
	}
	dev := newSVGDevice(w, h)
	p.r.paint(doc, pageIndex, dev, scale)
	p.r.log.WithFields(logrus.Fields{
		"page":   pageIndex,
		"paths":  dev.paths,
		"images": dev.images,
	}).Debug("page vectorized")
	return dev.String(), nil
}

// rasterSVG wraps a bitmap into an SVG document.
func rasterSVG(bm *Bitmap) (string, error) {
	img := bm.Image()
	pngData := &bytes.Buffer{}
	err := png.Encode(pngData, img)
	if err != nil {
		return "", err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	res := &bytes.Buffer{}
	fmt.Fprintf(res, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`, w, h)
	fmt.Fprintf(res, `<image width="%d" height="%d" href="data:image/png;base64,`, w, h)
	enc := base64.NewEncoder(base64.StdEncoding, res)
	enc.Write(pngData.Bytes())
	enc.Close()
	res.WriteString(`"/></svg>`)
	return res.String(), nil
}
