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

// Package svgconv is a client for a remote PDF to SVG conversion service.
//
// The service accepts a multipart POST request containing a single-page PDF
// file and returns the page as SVG text.
package svgconv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultEndpoint is the URL of a conversion service running locally.
const DefaultEndpoint = "http://localhost:4000/convert/svg"

const (
	maxSVGSize     = 64 << 20
	maxMessageSize = 4 << 10
)

// StatusError is returned when the service answers with a status other
// than 200.  Message holds the response body.
type StatusError struct {
	Code    int
	Message string
}

func (err *StatusError) Error() string {
	msg := fmt.Sprintf("SVG conversion failed: %d %s", err.Code, http.StatusText(err.Code))
	if err.Message != "" {
		msg += ": " + err.Message
	}
	return msg
}

// Client sends conversion requests to the service.
type Client struct {
	endpoint    string
	http        *http.Client
	log         logrus.FieldLogger
	exportPlain bool
	vacuumDefs  bool
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint sets the URL of the service.
func WithEndpoint(url string) Option {
	return func(c *Client) {
		c.endpoint = url
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger used by the client.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithExportPlain controls whether the service writes plain SVG, without
// editor-specific extensions.  The default is true.
func WithExportPlain(plain bool) Option {
	return func(c *Client) {
		c.exportPlain = plain
	}
}

// WithVacuumDefs controls whether the service removes unused definitions
// from the SVG output.  The default is true.
func WithVacuumDefs(vacuum bool) Option {
	return func(c *Client) {
		c.vacuumDefs = vacuum
	}
}

// New returns a client for the service.
func New(opts ...Option) *Client {
	c := &Client{
		endpoint:    DefaultEndpoint,
		http:        &http.Client{Timeout: 2 * time.Minute},
		log:         logrus.StandardLogger(),
		exportPlain: true,
		vacuumDefs:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Convert sends a PDF file to the service and returns the SVG text for the
// given 1-based page.  Page numbers less than 1 select the first page.
// Failed requests are not retried.
func (c *Client) Convert(ctx context.Context, pdf []byte, page int) (string, error) {
	if c.endpoint == "" {
		return "", errors.New("SVG conversion: no endpoint configured")
	}
	page = max(page, 1)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "page.pdf")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(pdf); err != nil {
		return "", err
	}
	fields := []struct{ key, val string }{
		{"page", strconv.Itoa(page)},
		{"exportPlain", strconv.FormatBool(c.exportPlain)},
		{"vacuumDefs", strconv.FormatBool(c.vacuumDefs)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.key, f.val); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("SVG conversion: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("SVG conversion: %w", err)
	}
	defer resp.Body.Close()

	log := c.log.WithFields(logrus.Fields{
		"endpoint": c.endpoint,
		"status":   resp.StatusCode,
		"elapsed":  time.Since(start).Round(time.Millisecond),
	})

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxMessageSize))
		log.Debug("SVG conversion rejected")
		return "", &StatusError{
			Code:    resp.StatusCode,
			Message: strings.TrimSpace(string(msg)),
		}
	}

	svg, err := io.ReadAll(io.LimitReader(resp.Body, maxSVGSize+1))
	if err != nil {
		return "", fmt.Errorf("SVG conversion: %w", err)
	}
	if len(svg) > maxSVGSize {
		return "", fmt.Errorf("SVG conversion: response exceeds %d bytes", maxSVGSize)
	}
	log.WithField("bytes", len(svg)).Debug("SVG conversion done")
	return string(svg), nil
}
