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

// Concat concatenates PDF files.
//
// The pages of all input files are copied, in the order in which the files
// are given on the command line.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"seehuhn.de/go/pagekit/tools/internal/buildinfo"
	"seehuhn.de/go/pagekit/tools/internal/config"
	"seehuhn.de/go/pagekit/tools/internal/profile"
)

var (
	out        = flag.String("o", "out.pdf", "output file name")
	force      = flag.Bool("f", false, "overwrite output file if it exists")
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
		fmt.Fprintf(os.Stderr, "pdf-concat \u2014 concatenate PDF files\n")
		fmt.Fprintf(os.Stderr, "%s\n\n", buildinfo.Short("pdf-concat"))
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  pdf-concat [options] <file.pdf>...\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "error: no input files given")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(cfg, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, in []string) error {
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

	ed, err := cfg.Editor(log)
	if err != nil {
		return err
	}

	bufs := make([][]byte, len(in))
	for i, fname := range in {
		bufs[i], err = os.ReadFile(fname)
		if err != nil {
			return err
		}
		if err := ed.Check(bufs[i]); err != nil {
			return fmt.Errorf("%s: %w", fname, err)
		}
	}

	res, err := ed.MergeDocuments(bufs)
	if err != nil {
		return err
	}
	n, err := ed.PageCount(res)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, res, 0o644); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"files": len(in),
		"pages": n,
		"out":   *out,
	}).Info("documents concatenated")
	return nil
}
