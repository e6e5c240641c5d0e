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

// Package render rasterizes and vectorizes single pages of PDF documents.
//
// A [Renderer] keeps recently used documents in a cache, so that repeated
// requests for pages of the same file do not re-parse the file.  Paths,
// images and form XObjects are painted, and text is drawn using the
// embedded font programs.  Text in fonts without embedded outlines is
// drawn in a substitute font.  Clipping paths, shadings and patterns are
// ignored.
package render

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"seehuhn.de/go/pagekit/geometry"
)

const (
	// DefaultCacheSize is the default number of documents kept in the
	// cache of a Renderer.
	DefaultCacheSize = 8

	// DefaultIdleTimeout is the default time after which unused documents
	// are removed from the cache.
	DefaultIdleTimeout = 5 * time.Minute

	// maxPixels limits the size of rasterized pages.
	maxPixels = 1 << 26
)

var (
	// ErrPageRange is returned when a page index is outside the document.
	ErrPageRange = errors.New("page index out of range")

	// ErrNoVectorizer is returned by [Renderer.Vectorize] when none of the
	// configured vector sources could be acquired.
	ErrNoVectorizer = errors.New("no vectorizer available")

	// ErrScale is returned for scale factors which are not positive and
	// finite.
	ErrScale = errors.New("invalid scale")
)

// DocumentError indicates that a PDF file could not be read.
type DocumentError struct {
	Err error
}

func (err *DocumentError) Error() string {
	return "malformed PDF document: " + err.Err.Error()
}

func (err *DocumentError) Unwrap() error {
	return err.Err
}

// Renderer renders pages of PDF documents.
// It is safe for concurrent use.
type Renderer struct {
	log       logrus.FieldLogger
	now       func() time.Time
	cacheSize int
	idle      time.Duration
	sources   []VectorSource
	builtin   bool

	mu    sync.Mutex
	cache *docCache

	vecMu   sync.Mutex
	vec     Vectorizer
	vecName string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used by the renderer.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Renderer) {
		r.log = log
	}
}

// WithClock replaces the clock used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		r.now = now
	}
}

// WithCacheSize sets the maximal number of cached documents.
// A size of zero disables caching.
func WithCacheSize(n int) Option {
	return func(r *Renderer) {
		r.cacheSize = max(n, 0)
	}
}

// WithIdleTimeout sets the time after which unused documents are removed
// from the cache.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Renderer) {
		r.idle = d
	}
}

// WithVectorSources adds vector sources.  The sources are tried in order,
// before the built-in SVG painter.
func WithVectorSources(sources ...VectorSource) Option {
	return func(r *Renderer) {
		r.sources = append(r.sources, sources...)
	}
}

// WithoutBuiltinVectorizer removes the built-in SVG painter from the list
// of vector sources.
func WithoutBuiltinVectorizer() Option {
	return func(r *Renderer) {
		r.builtin = false
	}
}

// New creates a new Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		log:       logrus.StandardLogger(),
		now:       time.Now,
		cacheSize: DefaultCacheSize,
		idle:      DefaultIdleTimeout,
		builtin:   true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.builtin {
		r.sources = append(r.sources, VectorSource{
			Name: "builtin",
			Acquire: func() (Vectorizer, error) {
				return painter{r: r}, nil
			},
		})
	}

	r.cache = newDocCache(r.cacheSize, r.idle)
	r.cache.onEvict = func(key docKey, reason string) {
		r.log.WithFields(logrus.Fields{
			"size":   key.size,
			"hash":   fmt.Sprintf("%016x", key.hash),
			"reason": reason,
		}).Debug("document evicted from cache")
	}
	return r
}

// LoadMeta reads a PDF file and returns the number of pages.
func (r *Renderer) LoadMeta(buf []byte) (int, error) {
	doc, err := r.document(buf)
	if err != nil {
		return 0, err
	}
	return len(doc.pages), nil
}

// Geometry returns the geometry of all pages of a PDF file.
func (r *Renderer) Geometry(buf []byte) ([]geometry.PageGeometry, error) {
	doc, err := r.document(buf)
	if err != nil {
		return nil, err
	}
	res := make([]geometry.PageGeometry, len(doc.pages))
	copy(res, doc.pages)
	return res, nil
}

// Rasterize renders a page into a bitmap.  The page index is 0-based and
// scale gives the number of pixels per PDF point.
//
// The caller must close the returned bitmap.
func (r *Renderer) Rasterize(buf []byte, pageIndex int, scale float64) (*Bitmap, error) {
	if !validScale(scale) {
		return nil, fmt.Errorf("%w %g", ErrScale, scale)
	}
	doc, err := r.document(buf)
	if err != nil {
		return nil, err
	}
	_, pg, err := doc.page(pageIndex)
	if err != nil {
		return nil, err
	}

	w, h, err := pixelSize(pg, scale)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageIndex, err)
	}

	bm := newBitmap(w, h)
	dev := newRasterDevice(bm.img)
	r.paint(doc, pageIndex, dev, scale)
	return bm, nil
}

// paint runs the content streams of a page.  Errors in the content stream
// only cut the page short, they are logged but not returned.
func (r *Renderer) paint(doc *document, pageIndex int, dev device, scale float64) {
	doc.mu.Lock()
	defer doc.mu.Unlock()

	dict, pg, err := doc.page(pageIndex)
	if err != nil {
		return
	}
	c := newCanvas(doc.r, dev, r.log, doc.fonts, 0)
	err = c.paintPage(dict, pageMatrix(pg, scale))
	if err != nil {
		r.log.WithError(err).WithField("page", pageIndex).Warn("content stream truncated")
	}
}

func (r *Renderer) document(buf []byte) (*document, error) {
	key := keyFor(buf)

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if doc, ok := r.cache.Get(key, now); ok {
		return doc, nil
	}

	doc, err := loadDocument(buf)
	if err != nil {
		return nil, err
	}
	r.cache.Put(key, doc, now)
	r.log.WithFields(logrus.Fields{
		"size":  len(buf),
		"pages": len(doc.pages),
	}).Debug("document loaded")
	return doc, nil
}

func validScale(scale float64) bool {
	return scale > 0 && !math.IsInf(scale, 0)
}

// pixelSize returns the size of the bitmap for a page.  The size is
// checked before conversion to int, so that huge scale factors cannot
// overflow.
func pixelSize(pg geometry.PageGeometry, scale float64) (int, int, error) {
	w := max(math.Round(pg.Width*scale), 1)
	h := max(math.Round(pg.Height*scale), 1)
	if math.IsInf(w*h, 0) || w*h > maxPixels {
		return 0, 0, fmt.Errorf("%w %g: %gx%g pixels exceeds size limit", ErrScale, scale, w, h)
	}
	return int(w), int(h), nil
}

// Vectorize renders a page as an SVG image, using the first vector source
// which can be acquired.  If vectorizing fails, the page is rasterized and
// the bitmap is embedded into an SVG document instead.
func (r *Renderer) Vectorize(ctx context.Context, buf []byte, pageIndex int, scale float64) (string, error) {
	if !validScale(scale) {
		return "", fmt.Errorf("%w %g", ErrScale, scale)
	}
	v, err := r.vectorizer()
	if err != nil {
		return "", err
	}

	svg, err := v.Vectorize(ctx, buf, pageIndex, scale)
	if err == nil {
		return svg, nil
	}
	if errors.Is(err, ErrPageRange) {
		return "", err
	}
	r.log.WithError(err).WithField("page", pageIndex).Warn("vectorizing failed, embedding raster image")

	bm, rErr := r.Rasterize(buf, pageIndex, scale)
	if rErr != nil {
		return "", rErr
	}
	defer bm.Close()
	return rasterSVG(bm)
}
