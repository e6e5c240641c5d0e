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

// Package logging sets up the logrus logger used by the command line tools.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Options controls the construction of a logger.
type Options struct {
	// Level is the base log level, for example from the environment.
	// If empty, "warning" is used.
	Level string

	// Verbose and Quiet adjust the level by the given number of steps.
	Verbose int
	Quiet   int

	// Output is the destination of the log.  If nil, os.Stderr is used.
	Output io.Writer

	// JSON forces JSON output.  Otherwise, text output is used when the
	// output is a terminal.
	JSON bool
}

// New returns a logger configured according to opt.
func New(opt Options) (*logrus.Logger, error) {
	level := logrus.WarnLevel
	if s := strings.TrimSpace(opt.Level); s != "" {
		l, err := logrus.ParseLevel(s)
		if err != nil {
			return nil, err
		}
		level = l
	}
	level = adjust(level, opt.Verbose-opt.Quiet)

	out := opt.Output
	if out == nil {
		out = os.Stderr
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)
	if !opt.JSON && isTerminal(out) {
		log.SetFormatter(&logrus.TextFormatter{
			ForceColors:     true,
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log, nil
}

// adjust moves the level by delta steps towards more verbose output,
// staying within the range from panic to trace.
func adjust(level logrus.Level, delta int) logrus.Level {
	l := int(level) + delta
	l = max(l, int(logrus.PanicLevel))
	l = min(l, int(logrus.TraceLevel))
	return logrus.Level(l)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
