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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

func env(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestFromEnv(t *testing.T) {
	got, err := FromEnv(env(map[string]string{
		EnvSVGEndpoint:   " http://localhost:8080/convert ",
		EnvRenderTimeout: "5s",
		EnvLogLevel:      "debug",
		EnvNoWorker:      "1",
	}))
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		SVGEndpoint:   "http://localhost:8080/convert",
		RenderTimeout: 5 * time.Second,
		ExportTimeout: 60 * time.Second,
		LogLevel:      "debug",
		NoWorker:      true,
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("unexpected config (-want +got):\n%s", d)
	}
}

func TestFromEnvErrors(t *testing.T) {
	cases := []map[string]string{
		{EnvRenderTimeout: "soon"},
		{EnvExportTimeout: "-1s"},
		{EnvNoWorker: "perhaps"},
	}
	for _, m := range cases {
		if _, err := FromEnv(env(m)); err == nil {
			t.Errorf("%v: no error", m)
		}
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	c, err := FromEnv(env(map[string]string{
		EnvSVGEndpoint: "http://a/",
		EnvLogLevel:    "info",
	}))
	if err != nil {
		t.Fatal(err)
	}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)
	c.RegisterRenderFlags(fs)
	err = fs.Parse([]string{"-svg-endpoint", "http://b/", "-v", "-v", "-no-worker", "-render-timeout", "2s", "in.pdf"})
	if err != nil {
		t.Fatal(err)
	}

	if c.SVGEndpoint != "http://b/" || !c.NoWorker || c.RenderTimeout != 2*time.Second {
		t.Errorf("flags not applied: %+v", c)
	}
	if c.Verbose != 2 {
		t.Errorf("verbose = %d, want 2", c.Verbose)
	}
	if fs.Arg(0) != "in.pdf" {
		t.Errorf("wrong argument %q", fs.Arg(0))
	}

	log, err := c.Logger()
	if err != nil {
		t.Fatal(err)
	}
	if log.GetLevel() != logrus.TraceLevel {
		t.Errorf("level %v, want trace", log.GetLevel())
	}
}

func TestEditorPassword(t *testing.T) {
	c := &Config{Password: "secret"}
	if _, err := c.Editor(logrus.New()); err != nil {
		t.Fatal(err)
	}
	c = &Config{Password: "bad\x07"}
	if _, err := c.Editor(logrus.New()); err == nil {
		t.Error("invalid password accepted")
	}
}

func TestCheckOutput(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "out.pdf")
	if err := CheckOutput(fname, false); err != nil {
		t.Errorf("new file: %v", err)
	}
	if err := os.WriteFile(fname, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CheckOutput(fname, false); err == nil {
		t.Error("existing file not detected")
	}
	if err := CheckOutput(fname, true); err != nil {
		t.Errorf("forced: %v", err)
	}
}
