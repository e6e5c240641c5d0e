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

// Package pagerange parses and formats page selection expressions like
// "1,3,5-8,10-".
//
// An expression is a comma-separated list of terms.  Each term is either a
// page number, or a range "a-b" where either side may be omitted: "a-"
// extends to the last page, "-b" starts at page 1.  Whitespace around terms
// and around the dash is ignored.
//
// This package is the only place which uses 1-based page numbers.  All other
// packages of this module work with 0-based page indices; use
// [Pages1ToIndices0] and [Indices0ToPages1] to convert.
package pagerange

import (
	"errors"
	"math"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrEmpty is returned by [Validate] if the expression contains no terms.
	ErrEmpty = errors.New("expression empty")

	// ErrNoPages is returned by [Validate] if the expression contains terms,
	// but none of them refers to an existing page.
	ErrNoPages = errors.New("no valid pages")
)

// ExprError records a page range expression which could not be used.
type ExprError struct {
	Expr string
	Err  error
}

func (err *ExprError) Error() string {
	return "page range " + strconv.Quote(err.Expr) + ": " + err.Err.Error()
}

func (err *ExprError) Unwrap() error {
	return err.Err
}

// Range is an inclusive range of 1-based page numbers.
type Range struct {
	First, Last int
}

// Len returns the number of pages in the range.
func (r Range) Len() int {
	if r.Last < r.First {
		return 0
	}
	return r.Last - r.First + 1
}

// Parse returns the sorted list of 1-based page numbers selected by expr.
// Numbers outside [1, maxPage] are silently dropped, and terms which cannot be
// parsed are skipped.  The empty expression selects no pages.
func Parse(expr string, maxPage int) []int {
	var pages []int
	for _, r := range Ranges(expr, maxPage) {
		for p := r.First; p <= r.Last; p++ {
			pages = append(pages, p)
		}
	}
	slices.Sort(pages)
	return slices.Compact(pages)
}

// Validate parses expr like [Parse] does, but returns an error if no pages are
// selected.  The error wraps [ErrEmpty] if expr is empty or consists of
// whitespace only, and [ErrNoPages] otherwise.
func Validate(expr string, maxPage int) ([]int, error) {
	if strings.TrimSpace(normalize(expr)) == "" {
		return nil, &ExprError{Expr: expr, Err: ErrEmpty}
	}
	pages := Parse(expr, maxPage)
	if len(pages) == 0 {
		return nil, &ExprError{Expr: expr, Err: ErrNoPages}
	}
	return pages, nil
}

// Ranges returns the terms of expr as page ranges, in the order in which they
// appear in the expression.  The ranges are clipped to [1, maxPage]; terms
// which cannot be parsed or which select no pages are omitted.
func Ranges(expr string, maxPage int) []Range {
	if maxPage < 1 {
		return nil
	}

	var res []Range
	for _, term := range strings.Split(normalize(expr), ",") {
		r, ok := parseTerm(strings.TrimSpace(term), maxPage)
		if !ok {
			continue
		}
		r.First = max(r.First, 1)
		r.Last = min(r.Last, maxPage)
		if r.Len() > 0 {
			res = append(res, r)
		}
	}
	return res
}

func parseTerm(term string, maxPage int) (Range, bool) {
	if term == "" {
		return Range{}, false
	}

	left, right, isRange := strings.Cut(term, "-")
	if !isRange {
		p, ok := parseNumber(term)
		return Range{p, p}, ok
	}

	left = strings.TrimSpace(left)
	right = strings.TrimSpace(right)
	r := Range{First: 1, Last: maxPage}
	var ok bool
	switch {
	case left == "" && right == "":
		return Range{}, false
	case left == "":
		r.Last, ok = parseNumber(right)
	case right == "":
		r.First, ok = parseNumber(left)
	default:
		r.First, ok = parseNumber(left)
		if ok {
			r.Last, ok = parseNumber(right)
		}
	}
	return r, ok
}

// parseNumber accepts a non-empty string of ASCII digits.  Numbers which
// do not fit into an int are returned as [math.MaxInt], which is clipped to
// the last page by the caller.
func parseNumber(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, c := range []byte(s) {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// only digits, so this is a range error
		return math.MaxInt, true
	}
	return n, true
}

var dashes = strings.NewReplacer(
	"‐", "-", // hyphen
	"‑", "-", // non-breaking hyphen
	"‒", "-", // figure dash
	"–", "-", // en dash
	"\u2014", "-", // em dash
	"−", "-", // minus sign
)

// normalize maps full-width digits and punctuation (as typed through an input
// method) to ASCII, and all dash-like characters to "-".
func normalize(expr string) string {
	return dashes.Replace(norm.NFKC.String(expr))
}

// Format returns the shortest expression which selects exactly the given
// pages.  Runs of three or more consecutive pages are written as ranges.
// A run of exactly two pages is written as "a,b".
func Format(pages []int) string {
	pages = slices.Clone(pages)
	slices.Sort(pages)
	pages = slices.Compact(pages)

	var parts []string
	for _, r := range runs(pages) {
		switch r.Len() {
		case 1:
			parts = append(parts, strconv.Itoa(r.First))
		case 2:
			parts = append(parts, strconv.Itoa(r.First), strconv.Itoa(r.Last))
		default:
			parts = append(parts, strconv.Itoa(r.First)+"-"+strconv.Itoa(r.Last))
		}
	}
	return strings.Join(parts, ",")
}

// Selection converts a list of 1-based page numbers into page selection
// strings as understood by the PDF editing library, one string per run of
// consecutive pages.  The order of pages is preserved.
func Selection(pages []int) []string {
	var res []string
	for _, r := range runs(pages) {
		if r.Len() == 1 {
			res = append(res, strconv.Itoa(r.First))
		} else {
			res = append(res, strconv.Itoa(r.First)+"-"+strconv.Itoa(r.Last))
		}
	}
	return res
}

// runs splits pages into maximal runs of consecutive ascending numbers.
func runs(pages []int) []Range {
	var res []Range
	for i := 0; i < len(pages); {
		j := i + 1
		for j < len(pages) && pages[j] == pages[j-1]+1 {
			j++
		}
		res = append(res, Range{First: pages[i], Last: pages[j-1]})
		i = j
	}
	return res
}

// Pages1ToIndices0 converts 1-based page numbers to 0-based page indices.
func Pages1ToIndices0(pages []int) []int {
	res := make([]int, len(pages))
	for i, p := range pages {
		res[i] = p - 1
	}
	return res
}

// Indices0ToPages1 converts 0-based page indices to 1-based page numbers.
func Indices0ToPages1(indices []int) []int {
	res := make([]int, len(indices))
	for i, idx := range indices {
		res[i] = idx + 1
	}
	return res
}
