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
	"image/jpeg"
	"image/png"
	"io"
	"sync"

	"golang.org/x/image/draw"
)

var pixPool = sync.Pool{}

// Bitmap holds the pixels of a rasterized page.
//
// Bitmaps are handed from one goroutine to another without copying.
// Once a bitmap is no longer needed, Close must be called to return the
// pixel buffer to a pool.
type Bitmap struct {
	mu  sync.Mutex
	img *image.RGBA
}

// newBitmap allocates a white bitmap.
func newBitmap(w, h int) *Bitmap {
	n := 4 * w * h
	var pix []uint8
	if p, ok := pixPool.Get().(*[]uint8); ok && cap(*p) >= n {
		pix = (*p)[:n]
	} else {
		pix = make([]uint8, n)
	}
	for i := range pix {
		pix[i] = 0xFF
	}

	img := &image.RGBA{
		Pix:    pix,
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}
	return &Bitmap{img: img}
}

// Image returns the pixels of the bitmap.
// Image panics if the bitmap has been closed.
func (b *Bitmap) Image() *image.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.img == nil {
		panic("render: use of closed Bitmap")
	}
	return b.img
}

// Size returns the width and height of the bitmap in pixels.
func (b *Bitmap) Size() (int, int) {
	r := b.Image().Bounds()
	return r.Dx(), r.Dy()
}

// Close releases the pixel buffer.  Calling Close more than once has no
// effect.
func (b *Bitmap) Close() error {
	b.mu.Lock()
	img := b.img
	b.img = nil
	b.mu.Unlock()

	if img != nil {
		pix := img.Pix[:0]
		pixPool.Put(&pix)
	}
	return nil
}

// Thumbnail returns a scaled-down copy of the bitmap which fits into
// a box of maxW×maxH pixels.  The aspect ratio is preserved, and
// bitmaps which already fit are copied at their original size.
func (b *Bitmap) Thumbnail(maxW, maxH int) *image.RGBA {
	src := b.Image()
	sr := src.Bounds()
	w, h := sr.Dx(), sr.Dy()
	if w > maxW {
		h = max(h*maxW/w, 1)
		w = maxW
	}
	if h > maxH {
		w = max(w*maxH/h, 1)
		h = maxH
	}
	w, h = max(w, 1), max(h, 1)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, sr, draw.Src, nil)
	return dst
}

// EncodePNG writes the bitmap in PNG format.
func (b *Bitmap) EncodePNG(w io.Writer) error {
	return png.Encode(w, b.Image())
}

// EncodeJPEG writes the bitmap in JPEG format.  The quality ranges from 1
// to 100; values outside this range select the default quality.
func (b *Bitmap) EncodeJPEG(w io.Writer, quality int) error {
	var opt *jpeg.Options
	if quality >= 1 && quality <= 100 {
		opt = &jpeg.Options{Quality: quality}
	}
	return jpeg.Encode(w, b.Image(), opt)
}
