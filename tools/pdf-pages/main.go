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

// Pdf-pages reorders, deletes and rotates the pages of a PDF file.
//
// The operations are applied in the order -order, -move, -delete, -rotate.
// Page numbers given to -delete refer to the original document; page
// numbers given to -rotate-pages refer to the output.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"seehuhn.de/go/pagekit/geometry"
	"seehuhn.de/go/pagekit/pagerange"
	"seehuhn.de/go/pagekit/project"
	"seehuhn.de/go/pagekit/render"
	"seehuhn.de/go/pagekit/tools/internal/buildinfo"
	"seehuhn.de/go/pagekit/tools/internal/config"
	"seehuhn.de/go/pagekit/tools/internal/profile"
)

var (
	out         = flag.String("o", "out.pdf", "output file name")
	force       = flag.Bool("f", false, "overwrite output file if it exists")
	orderArg    = flag.String("order", "", "new page order, e.g. \"3,1-2\"; pages not listed are dropped")
	deleteArg   = flag.String("delete", "", "pages to delete")
	rotate      = flag.Int("rotate", 0, "rotation in degrees, a multiple of 90")
	rotatePages = flag.String("rotate-pages", "", "output pages to rotate (default all)")
	dryRun      = flag.Bool("n", false, "print the resulting page selection and exit")
	cpuprofile  = flag.String("cpuprofile", "", "write cpu profile to `file`")
	memprofile  = flag.String("memprofile", "", "write memory profile to `file`")
	moves       moveList
)

func main() {
	cfg, err := config.FromEnv(os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Var(&moves, "move", "move the page at position `from:to` (1-based, can be repeated)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pdf-pages \u2014 reorder, delete and rotate PDF pages\n")
		fmt.Fprintf(os.Stderr, "%s\n\n", buildinfo.Short("pdf-pages"))
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  pdf-pages [options] <file.pdf>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pdf-pages -order 5,1-4 document.pdf\n")
		fmt.Fprintf(os.Stderr, "  pdf-pages -delete 2,7- -rotate 90 -rotate-pages 1 document.pdf\n")
		fmt.Fprintf(os.Stderr, "  pdf-pages -move 3:1 -n document.pdf\n")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(cfg, flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, inName string) error {
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
	if err := ed.Check(buf); err != nil {
		return fmt.Errorf("%s: %w", inName, err)
	}

	r := render.New(render.WithLogger(log), render.WithCacheSize(0))
	geom, err := r.Geometry(buf)
	if err != nil {
		return fmt.Errorf("%s: %w", inName, err)
	}

	store := project.NewStore()
	unsubscribe := store.Subscribe(func(s project.State) {
		log.WithField("selection", project.SelectionExpr(s)).Debug("page order changed")
	})
	defer unsubscribe()
	store.Load(geom)

	order, err := newOrder(store.Get().Order, *orderArg, moves, *deleteArg)
	if err != nil {
		return err
	}
	if err := store.SetOrder(order); err != nil {
		return err
	}
	state := store.Get()
	if len(state.Order) == 0 {
		return fmt.Errorf("all pages deleted")
	}

	if *dryRun {
		fmt.Println(project.SelectionExpr(state))
		return nil
	}
	if err := config.CheckOutput(*out, *force); err != nil {
		return err
	}

	res, err := ed.Reorder(buf, state.Order)
	if err != nil {
		return err
	}
	if *rotate != 0 {
		sel := pagerange.Indices0ToPages1(geometry.Identity(len(state.Order)))
		if *rotatePages != "" {
			sel, err = pagerange.Validate(*rotatePages, len(state.Order))
			if err != nil {
				return err
			}
		}
		res, err = ed.Rotate(res, sel, *rotate)
		if err != nil {
			return err
		}
	}
	if err := os.WriteFile(*out, res, 0o644); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"selection": project.SelectionExpr(state),
		"rotate":    *rotate,
		"out":       *out,
	}).Info("pages rearranged")
	return nil
}

// newOrder applies the command line operations to a page order.
func newOrder(order geometry.PageOrder, orderExpr string, moves []move, deleteExpr string) (geometry.PageOrder, error) {
	n := len(order)
	var err error

	if orderExpr != "" {
		if _, err := pagerange.Validate(orderExpr, n); err != nil {
			return nil, err
		}
		order = nil
		for _, r := range pagerange.Ranges(orderExpr, n) {
			for p := r.First; p <= r.Last; p++ {
				order = append(order, p-1)
			}
		}
		if err := order.Validate(n); err != nil {
			return nil, err
		}
	}

	for _, m := range moves {
		order, err = order.Move(m.from-1, m.to-1)
		if err != nil {
			return nil, err
		}
	}

	if deleteExpr != "" {
		del, err := pagerange.Validate(deleteExpr, n)
		if err != nil {
			return nil, err
		}
		drop := make(map[int]bool, len(del))
		for _, p := range del {
			drop[p-1] = true
		}
		var positions []int
		for pos, idx := range order {
			if drop[idx] {
				positions = append(positions, pos)
			}
		}
		order, err = order.Delete(positions...)
		if err != nil {
			return nil, err
		}
	}
	return order, nil
}

type move struct {
	from, to int
}

// moveList is a repeatable flag of the form "from:to".
type moveList []move

func (l *moveList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, len(*l))
	for i, m := range *l {
		parts[i] = fmt.Sprintf("%d:%d", m.from, m.to)
	}
	return strings.Join(parts, ",")
}

func (l *moveList) Set(s string) error {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return fmt.Errorf("expected from:to, got %q", s)
	}
	from, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return err
	}
	to, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return err
	}
	*l = append(*l, move{from: from, to: to})
	return nil
}
