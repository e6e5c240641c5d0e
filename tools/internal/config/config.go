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

// Package config collects the settings shared by the command line tools.
//
// Defaults come from the environment and can be overridden by command line
// flags:
//
//	PAGEKIT_SVG_ENDPOINT    URL of the remote SVG conversion service
//	PAGEKIT_RENDER_TIMEOUT  worker timeout for single pages, e.g. "30s"
//	PAGEKIT_EXPORT_TIMEOUT  worker timeout for batch exports
//	PAGEKIT_LOG_LEVEL       logrus level name
//	PAGEKIT_NO_WORKER       if true, render in the foreground only
package config

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"seehuhn.de/go/pagekit/coordinator"
	"seehuhn.de/go/pagekit/edit"
	"seehuhn.de/go/pagekit/internal/logging"
	"seehuhn.de/go/pagekit/render"
	"seehuhn.de/go/pagekit/svgconv"
)

// Names of the environment variables.
const (
	EnvSVGEndpoint   = "PAGEKIT_SVG_ENDPOINT"
	EnvRenderTimeout = "PAGEKIT_RENDER_TIMEOUT"
	EnvExportTimeout = "PAGEKIT_EXPORT_TIMEOUT"
	EnvLogLevel      = "PAGEKIT_LOG_LEVEL"
	EnvNoWorker      = "PAGEKIT_NO_WORKER"
)

// Config holds the settings of a tool.
type Config struct {
	SVGEndpoint   string
	RenderTimeout time.Duration
	ExportTimeout time.Duration
	LogLevel      string
	NoWorker      bool

	// Password is used for encrypted documents.  The value "-" means that
	// the password is read from the terminal.
	Password string

	Verbose counter
	Quiet   counter
}

// FromEnv returns the settings given by the environment.  The function
// getenv is normally [os.Getenv].
func FromEnv(getenv func(string) string) (*Config, error) {
	c := &Config{
		SVGEndpoint:   strings.TrimSpace(getenv(EnvSVGEndpoint)),
		RenderTimeout: coordinator.DefaultRenderTimeout,
		ExportTimeout: coordinator.DefaultExportTimeout,
		LogLevel:      strings.TrimSpace(getenv(EnvLogLevel)),
	}

	var err error
	if s := getenv(EnvRenderTimeout); s != "" {
		c.RenderTimeout, err = parseDuration(EnvRenderTimeout, s)
		if err != nil {
			return nil, err
		}
	}
	if s := getenv(EnvExportTimeout); s != "" {
		c.ExportTimeout, err = parseDuration(EnvExportTimeout, s)
		if err != nil {
			return nil, err
		}
	}
	if s := getenv(EnvNoWorker); s != "" {
		c.NoWorker, err = strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvNoWorker, err)
		}
	}
	return c, nil
}

func parseDuration(name, s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: timeout must be positive, not %s", name, d)
	}
	return d, nil
}

// RegisterFlags adds the common flags to flags.  The current values of c are
// used as defaults.
func (c *Config) RegisterFlags(flags *flag.FlagSet) {
	flags.StringVar(&c.Password, "p", c.Password, "PDF password, or \"-\" to read it from the terminal")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log `level` (trace, debug, info, warning, error)")
	flags.Var(&c.Verbose, "v", "more verbose logging (can be repeated)")
	flags.Var(&c.Quiet, "q", "less verbose logging (can be repeated)")
}

// RegisterRenderFlags adds the flags which control rendering to flags.
func (c *Config) RegisterRenderFlags(flags *flag.FlagSet) {
	flags.StringVar(&c.SVGEndpoint, "svg-endpoint", c.SVGEndpoint, "`URL` of the SVG conversion service")
	flags.DurationVar(&c.RenderTimeout, "render-timeout", c.RenderTimeout, "worker timeout for a single page")
	flags.DurationVar(&c.ExportTimeout, "export-timeout", c.ExportTimeout, "worker timeout for a batch export")
	flags.BoolVar(&c.NoWorker, "no-worker", c.NoWorker, "render in the foreground only")
}

// Logger returns a logger for the configured level.
func (c *Config) Logger() (*logrus.Logger, error) {
	return logging.New(logging.Options{
		Level:   c.LogLevel,
		Verbose: int(c.Verbose),
		Quiet:   int(c.Quiet),
	})
}

// Editor returns a PDF editor using the configured password.
func (c *Config) Editor(log logrus.FieldLogger) (*edit.Editor, error) {
	opts := []edit.Option{edit.WithLogger(log)}
	pw, err := c.password()
	if err != nil {
		return nil, err
	}
	if pw != "" {
		opts = append(opts, edit.WithPassword(pw))
	}
	return edit.New(opts...)
}

func (c *Config) password() (string, error) {
	if c.Password != "-" {
		return c.Password, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot read password: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	c.Password = string(pw)
	return c.Password, nil
}

// Coordinator returns a coordinator for rendering.  If an SVG endpoint is
// configured, the remote service is tried before the built-in vectorizer.
func (c *Config) Coordinator(ctx context.Context, log logrus.FieldLogger, ed *edit.Editor) *coordinator.Coordinator {
	var renderOpts []render.Option
	if c.SVGEndpoint != "" {
		client := svgconv.New(svgconv.WithEndpoint(c.SVGEndpoint), svgconv.WithLogger(log))
		renderOpts = append(renderOpts, render.WithVectorSources(svgconv.Source(client, ed)))
	}

	opts := []coordinator.Option{
		coordinator.WithLogger(log),
		coordinator.WithRenderOptions(renderOpts...),
		coordinator.WithTimeouts(c.RenderTimeout, c.ExportTimeout),
	}
	if c.NoWorker {
		opts = append(opts, coordinator.WithoutWorker())
	}
	return coordinator.New(ctx, opts...)
}

// counter is a flag which counts how often it is given.
type counter int

func (n *counter) String() string {
	if n == nil {
		return "0"
	}
	return strconv.Itoa(int(*n))
}

func (n *counter) Set(s string) error {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if b {
		*n++
	}
	return nil
}

func (n *counter) IsBoolFlag() bool { return true }

// CheckOutput returns an error if fname exists and force is not set.
func CheckOutput(fname string, force bool) error {
	if force {
		return nil
	}
	if _, err := os.Stat(fname); !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("output file %q already exists", fname)
	}
	return nil
}
