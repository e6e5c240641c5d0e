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

// Pdf-crop sets the crop box of pages in a PDF file.
//
// By default, a soft crop is applied: only the crop box is changed and
// the content outside the box stays in the file.  With -hard, the media box
// is changed as well.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"seehuhn.de/go/pagekit/coordinator"
	"seehuhn.de/go/pagekit/geometry"
	"seehuhn.de/go/pagekit/pagerange"
	"seehuhn.de/go/pagekit/render"
	"seehuhn.de/go/pagekit/tools/internal/buildinfo"
	"seehuhn.de/go/pagekit/tools/internal/config"
	"seehuhn.de/go/pagekit/tools/internal/profile"
)

var (
	out        = flag.String("o", "out.pdf", "output file name")
	force      = flag.Bool("f", false, "overwrite output file if it exists")
	pages      = flag.String("pages", "", "pages to crop (default all)")
	boxArg     = flag.String("box", "", "crop box `llx,lly,urx,ury` in PDF points")
	marginArg  = flag.String("margins", "", "margins `top,right,bottom,left` in PDF points, measured on the unrotated page")
	hard       = flag.Bool("hard", false, "also set the media box")
	preview    = flag.String("preview", "", "render the first cropped page to this PNG `file`")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
	memprofile = flag.String("memprofile", "", "write memory profile to `file`")
)

func main() {
	cfg, err := config.FromEnv(os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.RegisterFlags(flag.CommandLine)
	cfg.RegisterRenderFlags(flag.CommandLine)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pdf-crop \u2014 set the crop box of PDF pages\n")
		fmt.Fprintf(os.Stderr, "%s\n\n", buildinfo.Short("pdf-crop"))
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  pdf-crop [options] -box llx,lly,urx,ury <file.pdf>\n")
		fmt.Fprintf(os.Stderr, "  pdf-crop [options] -margins top,right,bottom,left <file.pdf>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pdf-crop -box 50,50,545,792 -o cropped.pdf document.pdf\n")
		fmt.Fprintf(os.Stderr, "  pdf-crop -pages 2-5 -margins 36,36,36,36 -hard document.pdf\n")
	}
	flag.Parse()

	if flag.NArg() != 1 || (*boxArg == "") == (*marginArg == "") {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(cfg, flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, inName string) error {
	if err := config.CheckOutput(*out, *force); err != nil {
		return err
	}

	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	stop, err := profile.Start(log, *cpuprofile, *memprofile)
	if err != nil {
		return err
	}
	defer stop()

	buf, err := os.ReadFile(inName)
	if err != nil {
		return err
	}
	ed, err := cfg.Editor(log)
	if err != nil {
		return err
	}
	n, err := ed.PageCount(buf)
	if err != nil {
		return fmt.Errorf("%s: %w", inName, err)
	}

	pages1 := pagerange.Indices0ToPages1(geometry.Identity(n))
	if *pages != "" {
		pages1, err = pagerange.Validate(*pages, n)
		if err != nil {
			return err
		}
	}

	var box geometry.PDFRect
	if *boxArg != "" {
		box, err = parseBox(*boxArg)
	} else {
		box, err = marginBox(log, buf, pages1[0]-1, *marginArg)
	}
	if err != nil {
		return err
	}

	var res []byte
	if *hard {
		res, err = ed.SetMediaBoxAndCropBox(buf, pages1, box)
	} else {
		res, err = ed.SetCropBox(buf, pages1, box)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, res, 0o644); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"pages": pagerange.Format(pages1),
		"box":   box.String(),
		"hard":  *hard,
		"out":   *out,
	}).Info("pages cropped")

	if *preview != "" {
		return writePreview(cfg, log, res, pages1[0]-1)
	}
	return nil
}

// parseBox parses a rectangle given as four comma-separated numbers.
func parseBox(s string) (geometry.PDFRect, error) {
	v, err := parseNumbers(s, 4)
	if err != nil {
		return geometry.PDFRect{}, fmt.Errorf("invalid box %q: %w", s, err)
	}
	r := geometry.PDFRect{X: v[0], Y: v[1], Width: v[2] - v[0], Height: v[3] - v[1]}.Normalize()
	if r.IsZero() {
		return geometry.PDFRect{}, fmt.Errorf("invalid box %q: %w", s, geometry.ErrDegenerate)
	}
	return r, nil
}

// marginBox returns the visible area of a page, shrunk by the given
// margins.
func marginBox(log logrus.FieldLogger, buf []byte, pageIndex int, margins string) (geometry.PDFRect, error) {
	r := render.New(render.WithLogger(log), render.WithCacheSize(0))
	geom, err := r.Geometry(buf)
	if err != nil {
		return geometry.PDFRect{}, err
	}
	return shrink(geometry.BaseBox(geom[pageIndex]), margins)
}

func shrink(base geometry.PDFRect, margins string) (geometry.PDFRect, error) {
	m, err := parseNumbers(margins, 4)
	if err != nil {
		return geometry.PDFRect{}, fmt.Errorf("invalid margins %q: %w", margins, err)
	}
	top, right, bottom, left := m[0], m[1], m[2], m[3]

	// the margins are applied in a viewport of the same size as the page
	canvas := geometry.CanvasRect{
		X: left,
		Y: top,
		W: base.Width - left - right,
		H: base.Height - top - bottom,
	}
	if canvas.W <= 0 || canvas.H <= 0 {
		return geometry.PDFRect{}, fmt.Errorf("margins %q: %w", margins, geometry.ErrDegenerate)
	}
	t, err := geometry.NewTransform(base, base.Width, base.Height)
	if err != nil {
		return geometry.PDFRect{}, err
	}
	return t.RectToPDF(canvas), nil
}

func parseNumbers(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d numbers, got %d", n, len(parts))
	}
	res := make([]float64, n)
	for i, part := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		res[i] = x
	}
	return res, nil
}

func writePreview(cfg *config.Config, log logrus.FieldLogger, buf []byte, pageIndex int) error {
	ed, err := cfg.Editor(log)
	if err != nil {
		return err
	}
	ctx := context.Background()
	coord := cfg.Coordinator(ctx, log, ed)
	defer coord.Cleanup()

	res, err := coord.RenderPage(ctx, buf, pageIndex, 1, coordinator.PNG)
	if err != nil {
		return err
	}
	defer res.Bitmap.Close()

	f, err := os.Create(*preview)
	if err != nil {
		return err
	}
	err = res.Bitmap.EncodePNG(f)
	return errors.Join(err, f.Close())
}
