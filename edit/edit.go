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

// Package edit implements page-level modifications of PDF files.
//
// All operations have whole-document semantics: the input is never
// modified, and every call returns the bytes of a complete new PDF file.
// Page numbers are 1-based throughout this package, since they are passed
// through to the PDF library unchanged.
package edit

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sirupsen/logrus"
	"github.com/xdg-go/stringprep"

	"seehuhn.de/go/pagekit/geometry"
	"seehuhn.de/go/pagekit/internal/pdfconf"
	"seehuhn.de/go/pagekit/pagerange"
)

// DefaultMaxFileSize is the largest input file accepted by default.
const DefaultMaxFileSize = 256 << 20

// headerWindow is the number of bytes at the start of a file which are
// searched for the PDF header.
const headerWindow = 1024

var (
	// ErrNotPDF indicates that the input is not a PDF file.
	ErrNotPDF = errors.New("not a PDF file")

	// ErrTooLarge indicates that the input exceeds the configured size
	// limit.
	ErrTooLarge = errors.New("file too large")

	// ErrNoPages is returned when an operation would select no pages.
	ErrNoPages = errors.New("no pages selected")
)

// Editor performs edit operations on PDF files.
type Editor struct {
	log      logrus.FieldLogger
	maxSize  int
	password string
}

// Option configures an Editor.
type Option func(*Editor) error

// WithLogger sets the logger used by the editor.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Editor) error {
		e.log = log
		return nil
	}
}

// WithMaxFileSize sets the size limit for input files, in bytes.
func WithMaxFileSize(n int) Option {
	return func(e *Editor) error {
		e.maxSize = n
		return nil
	}
}

// WithPassword sets the password used to open encrypted files.
// The password is normalized using SASLprep, as required for AES-256
// encryption.
func WithPassword(pw string) Option {
	return func(e *Editor) error {
		prepped, err := stringprep.SASLprep.Prepare(pw)
		if err != nil {
			return fmt.Errorf("invalid password: %w", err)
		}
		e.password = prepped
		return nil
	}
}

// New returns a new Editor.
func New(opts ...Option) (*Editor, error) {
	e := &Editor{
		log:     logrus.StandardLogger(),
		maxSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Editor) conf() *model.Configuration {
	conf := pdfconf.New()
	if e.password != "" {
		conf.UserPW = e.password
		conf.OwnerPW = e.password
	}
	return conf
}

// Check performs the cheap validity checks on an input file: the size limit
// and the presence of a PDF header.
func (e *Editor) Check(buf []byte) error {
	if e.maxSize > 0 && len(buf) > e.maxSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(buf), e.maxSize)
	}
	if !bytes.Contains(buf[:min(len(buf), headerWindow)], []byte("%PDF-")) {
		return ErrNotPDF
	}
	return nil
}

// Validate checks that buf contains a valid PDF file.
func (e *Editor) Validate(buf []byte) error {
	if err := e.Check(buf); err != nil {
		return err
	}
	err := api.Validate(bytes.NewReader(buf), e.conf())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotPDF, err)
	}
	return nil
}

// PageCount returns the number of pages in a PDF file.
func (e *Editor) PageCount(buf []byte) (int, error) {
	if err := e.Check(buf); err != nil {
		return 0, err
	}
	n, err := api.PageCount(bytes.NewReader(buf), e.conf())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNotPDF, err)
	}
	return n, nil
}

type transform func(rs io.ReadSeeker, w io.Writer, conf *model.Configuration) error

// apply runs a pdfcpu operation on buf.
func (e *Editor) apply(buf []byte, op string, fields logrus.Fields, fn transform) ([]byte, error) {
	if err := e.Check(buf); err != nil {
		return nil, err
	}

	out := &bytes.Buffer{}
	err := fn(bytes.NewReader(buf), out, e.conf())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e.log.WithFields(fields).WithFields(logrus.Fields{
		"op":  op,
		"in":  len(buf),
		"out": out.Len(),
	}).Debug("document rewritten")
	return out.Bytes(), nil
}

// SetCropBox sets the crop box of the given pages.  This is a soft crop:
// the content outside the crop box is kept in the file.
func (e *Editor) SetCropBox(buf []byte, pages1 []int, r geometry.PDFRect) ([]byte, error) {
	sel, box, err := boxArgs(pages1, r)
	if err != nil {
		return nil, err
	}
	fields := logrus.Fields{"pages": pagerange.Format(pages1), "box": r.String()}
	return e.apply(buf, "crop", fields, func(rs io.ReadSeeker, w io.Writer, conf *model.Configuration) error {
		return api.Crop(rs, w, sel, box, conf)
	})
}

// SetMediaBoxAndCropBox sets both the media box and the crop box of the
// given pages.  This is a hard crop: viewers can no longer show the
// content outside the box.
func (e *Editor) SetMediaBoxAndCropBox(buf []byte, pages1 []int, r geometry.PDFRect) ([]byte, error) {
	sel, box, err := boxArgs(pages1, r)
	if err != nil {
		return nil, err
	}
	pb := &model.PageBoundaries{Media: box, Crop: box}
	fields := logrus.Fields{"pages": pagerange.Format(pages1), "box": r.String()}
	return e.apply(buf, "hard crop", fields, func(rs io.ReadSeeker, w io.Writer, conf *model.Configuration) error {
		return api.AddBoxes(rs, w, sel, pb, conf)
	})
}

func boxArgs(pages1 []int, r geometry.PDFRect) ([]string, *model.Box, error) {
	if len(pages1) == 0 {
		return nil, nil, ErrNoPages
	}
	r = r.Normalize()
	if r.IsZero() {
		return nil, nil, fmt.Errorf("crop box %s: %w", r, geometry.ErrDegenerate)
	}
	box := &model.Box{
		Rect: types.NewRectangle(r.X, r.Y, r.X+r.Width, r.Y+r.Height),
	}
	return pagerange.Selection(pages1), box, nil
}

// ExtractPageRanges returns a document containing the pages from the given
// ranges, in the order of the ranges.
func (e *Editor) ExtractPageRanges(buf []byte, ranges1 []pagerange.Range) ([]byte, error) {
	var sel []string
	for _, r := range ranges1 {
		switch r.Len() {
		case 0:
			continue
		case 1:
			sel = append(sel, strconv.Itoa(r.First))
		default:
			sel = append(sel, strconv.Itoa(r.First)+"-"+strconv.Itoa(r.Last))
		}
	}
	if len(sel) == 0 {
		return nil, ErrNoPages
	}
	return e.collect(buf, "extract", sel)
}

// Reorder returns a document containing the pages listed in order.
// Pages which do not appear in order are dropped.
func (e *Editor) Reorder(buf []byte, order geometry.PageOrder) ([]byte, error) {
	n, err := e.PageCount(buf)
	if err != nil {
		return nil, err
	}
	if err := order.Validate(n); err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, ErrNoPages
	}
	return e.collect(buf, "reorder", pagerange.Selection(order.Pages1()))
}

func (e *Editor) collect(buf []byte, op string, sel []string) ([]byte, error) {
	fields := logrus.Fields{"selection": sel}
	return e.apply(buf, op, fields, func(rs io.ReadSeeker, w io.Writer, conf *model.Configuration) error {
		return api.Collect(rs, w, sel, conf)
	})
}

// Split returns one document for every term of a page range expression.
func (e *Editor) Split(buf []byte, expr string) ([][]byte, error) {
	n, err := e.PageCount(buf)
	if err != nil {
		return nil, err
	}
	if _, err := pagerange.Validate(expr, n); err != nil {
		return nil, err
	}

	var res [][]byte
	for _, r := range pagerange.Ranges(expr, n) {
		part, err := e.ExtractPageRanges(buf, []pagerange.Range{r})
		if err != nil {
			return nil, err
		}
		res = append(res, part)
	}
	return res, nil
}

// MergeDocuments concatenates the pages of several documents.
func (e *Editor) MergeDocuments(bufs [][]byte) ([]byte, error) {
	if len(bufs) == 0 {
		return nil, ErrNoPages
	}
	total := 0
	rsc := make([]io.ReadSeeker, len(bufs))
	for i, buf := range bufs {
		if err := e.Check(buf); err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}
		total += len(buf)
		rsc[i] = bytes.NewReader(buf)
	}

	out := &bytes.Buffer{}
	err := api.MergeRaw(rsc, out, false, e.conf())
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	e.log.WithFields(logrus.Fields{
		"op":    "merge",
		"files": len(bufs),
		"in":    total,
		"out":   out.Len(),
	}).Debug("document rewritten")
	return out.Bytes(), nil
}

// Rotate adds the given angle to the rotation of the selected pages.
// The angle must be a multiple of 90 degrees.
func (e *Editor) Rotate(buf []byte, pages1 []int, degrees int) ([]byte, error) {
	if degrees%90 != 0 {
		return nil, fmt.Errorf("%w (got %d)", geometry.ErrRotation, degrees)
	}
	if len(pages1) == 0 {
		return nil, ErrNoPages
	}
	sel := pagerange.Selection(pages1)
	fields := logrus.Fields{"pages": pagerange.Format(pages1), "degrees": degrees}
	return e.apply(buf, "rotate", fields, func(rs io.ReadSeeker, w io.Writer, conf *model.Configuration) error {
		return api.Rotate(rs, w, degrees, sel, conf)
	})
}
