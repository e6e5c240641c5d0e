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

// Pdf-split splits a PDF file into several files, one for each term of a
// page range expression.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"seehuhn.de/go/pagekit/tools/internal/buildinfo"
	"seehuhn.de/go/pagekit/tools/internal/config"
	"seehuhn.de/go/pagekit/tools/internal/profile"
)

var (
	prefix     = flag.String("o", "part", "prefix for the output file names")
	force      = flag.Bool("f", false, "overwrite output files if they exist")
	pages      = flag.String("pages", "", "page range expression, e.g. \"1-3,4,5-\"")
	each       = flag.Bool("each", false, "write every page to a separate file")
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

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pdf-split \u2014 split a PDF file\n")
		fmt.Fprintf(os.Stderr, "%s\n\n", buildinfo.Short("pdf-split"))
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  pdf-split [options] -pages <expr> <file.pdf>\n")
		fmt.Fprintf(os.Stderr, "  pdf-split [options] -each <file.pdf>\n\n")
		fmt.Fprintf(os.Stderr, "The output files are named <prefix>-001.pdf, <prefix>-002.pdf, ...\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 || (*pages == "") == !*each {
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

	expr := *pages
	if *each {
		n, err := ed.PageCount(buf)
		if err != nil {
			return fmt.Errorf("%s: %w", inName, err)
		}
		expr = eachPage(n)
	}

	parts, err := ed.Split(buf, expr)
	if err != nil {
		return err
	}

	names := make([]string, len(parts))
	for i := range parts {
		names[i] = partName(*prefix, i)
		if err := config.CheckOutput(names[i], *force); err != nil {
			return err
		}
	}
	for i, part := range parts {
		if err := os.WriteFile(names[i], part, 0o644); err != nil {
			return err
		}
	}

	log.WithFields(logrus.Fields{
		"expr":  expr,
		"files": len(parts),
	}).Info("document split")
	return nil
}

// eachPage returns an expression with one term for every page.
func eachPage(n int) string {
	terms := make([]string, n)
	for i := range terms {
		terms[i] = strconv.Itoa(i + 1)
	}
	return strings.Join(terms, ",")
}

func partName(prefix string, i int) string {
	return fmt.Sprintf("%s-%03d.pdf", prefix, i+1)
}

