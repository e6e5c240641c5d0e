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

// Pdf2img renders pages of a PDF file to PNG, JPEG or SVG files.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"seehuhn.de/go/pagekit/coordinator"
	"seehuhn.de/go/pagekit/geometry"
	"seehuhn.de/go/pagekit/pagerange"
	"seehuhn.de/go/pagekit/tools/internal/buildinfo"
	"seehuhn.de/go/pagekit/tools/internal/config"
	"seehuhn.de/go/pagekit/tools/internal/profile"
)

var (
	dpi        = flag.Float64("dpi", 72.0, "resolution for rendering")
	pages      = flag.String("pages", "1", "pages to render, e.g. \"1-3,7\"")
	formatArg  = flag.String("format", "", "output format (png, jpeg, svg); default from the output file name")
	quality    = flag.Int("quality", 90, "JPEG quality (1-100)")
	thumb      = flag.String("thumb", "", "also write PNG thumbnails which fit into `WxH` pixels")
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
		fmt.Fprintf(os.Stderr, "pdf2img \u2014 render PDF pages to image files\n")
		fmt.Fprintf(os.Stderr, "%s\n\n", buildinfo.Short("pdf2img"))
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  pdf2img [options] <input.pdf> <output>\n\n")
		fmt.Fprintf(os.Stderr, "If more than one page is rendered, the page number is inserted\n")
		fmt.Fprintf(os.Stderr, "before the extension of the output file name.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pdf2img -dpi 150 document.pdf page.png\n")
		fmt.Fprintf(os.Stderr, "  pdf2img -pages 2-4 -quality 80 document.pdf page.jpg\n")
		fmt.Fprintf(os.Stderr, "  pdf2img -pages 1-5 -thumb 120x160 document.pdf page.png\n")
		fmt.Fprintf(os.Stderr, "  pdf2img -pages 1 -svg-endpoint http://localhost:8080/ document.pdf page.svg\n")
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(cfg, flag.Arg(0), flag.Arg(1)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, inName, outName string) error {
	log, err := cfg.Logger()
	if err != nil {
		return err
	}

	stop, err := profile.Start(log, *cpuprofile, *memprofile)
	if err != nil {
		return err
	}
	defer stop()

	format, err := outputFormat(*formatArg, outName)
	if err != nil {
		return err
	}
	var thumbW, thumbH int
	if *thumb != "" {
		thumbW, thumbH, err = parseSize(*thumb)
		if err != nil {
			return err
		}
	}

	buf, err := os.ReadFile(inName)
	if err != nil {
		return err
	}

	ed, err := cfg.Editor(log)
	if err != nil {
		return err
	}
	if err := ed.Check(buf); err != nil {
		return fmt.Errorf("%s: %w", inName, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	coord := cfg.Coordinator(ctx, log, ed)
	defer coord.Cleanup()

	info, err := coord.LoadDocument(ctx, buf)
	if err != nil {
		return fmt.Errorf("%s: %w", inName, err)
	}
	pages1, err := pagerange.Validate(*pages, info.PageCount)
	if err != nil {
		return err
	}

	scale := geometry.DPIToScale(*dpi)
	tasks := make([]coordinator.Task, len(pages1))
	for i, idx := range pagerange.Pages1ToIndices0(pages1) {
		tasks[i] = coordinator.Task{
			Page:    idx,
			Scale:   scale,
			Format:  format,
			Quality: *quality,
		}
	}
	results, err := coord.ExportPages(ctx, buf, tasks)
	if err != nil {
		return err
	}

	for i, res := range results {
		fname := outName
		if len(results) > 1 {
			fname = numbered(outName, pages1[i])
		}
		if err := os.WriteFile(fname, res.Data, 0o644); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"page":   pages1[i],
			"file":   fname,
			"format": res.Format,
			"bytes":  len(res.Data),
		}).Info("page written")
	}

	if thumbW > 0 {
		for i, idx := range pagerange.Pages1ToIndices0(pages1) {
			fname := thumbName(outName, pages1[i], len(pages1) > 1)
			err := writeThumbnail(ctx, coord, buf, idx, scale, thumbW, thumbH, fname)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"page": pages1[i],
				"file": fname,
			}).Info("thumbnail written")
		}
	}

	s := coord.Stats()
	log.WithFields(logrus.Fields{
		"state":      s.State,
		"foreground": s.Foreground,
		"fallbacks":  s.Fallbacks,
	}).Debug("coordinator statistics")
	return nil
}

func outputFormat(arg, outName string) (coordinator.Format, error) {
	if arg != "" {
		return coordinator.ParseFormat(arg)
	}
	ext := filepath.Ext(outName)
	if ext == "" {
		return coordinator.PNG, nil
	}
	return coordinator.ParseFormat(ext)
}

// writeThumbnail renders a page and writes a scaled-down copy as a PNG
// file.
func writeThumbnail(ctx context.Context, coord *coordinator.Coordinator, buf []byte, pageIndex int, scale float64, w, h int, fname string) error {
	res, err := coord.RenderPage(ctx, buf, pageIndex, scale, coordinator.PNG)
	if err != nil {
		return err
	}
	defer res.Bitmap.Close()
	img := res.Bitmap.Thumbnail(w, h)

	out, err := os.Create(fname)
	if err != nil {
		return err
	}
	err = png.Encode(out, img)
	if err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// parseSize parses a size of the form "WxH".
func parseSize(s string) (int, int, error) {
	var w, h int
	_, err := fmt.Sscanf(strings.ToLower(s), "%dx%d", &w, &h)
	if err != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q, expected WxH", s)
	}
	return w, h, nil
}

// thumbName returns the file name of the thumbnail for a page.
func thumbName(outName string, page1 int, multi bool) string {
	ext := filepath.Ext(outName)
	fname := strings.TrimSuffix(outName, ext) + "-thumb.png"
	if multi {
		fname = numbered(fname, page1)
	}
	return fname
}

// numbered inserts a page number before the extension of a file name.
func numbered(fname string, page1 int) string {
	ext := filepath.Ext(fname)
	return fmt.Sprintf("%s-%03d%s", strings.TrimSuffix(fname, ext), page1, ext)
}
