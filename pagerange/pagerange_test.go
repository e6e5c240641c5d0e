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

package pagerange

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	type testCase struct {
		expr    string
		maxPage int
		want    []int
	}
	cases := []testCase{
		{"1,3,5-8,10-", 12, []int{1, 3, 5, 6, 7, 8, 10, 11, 12}},
		{"-3", 10, []int{1, 2, 3}},
		{"5-", 10, []int{5, 6, 7, 8, 9, 10}},
		{"", 10, nil},
		{"   ", 10, nil},
		{" 2 , 4 - 6 ", 10, []int{2, 4, 5, 6}},
		{"3,1,2,3", 10, []int{1, 2, 3}},
		{"0,11,5", 10, []int{5}},
		{"8-15", 10, []int{8, 9, 10}},
		{"x,2,a-4,4-b,6", 10, []int{2, 6}},
		{"-", 10, nil},
		{"5-3", 10, nil},
		{"1-2-3", 10, nil},
		{"+2,3", 10, []int{3}},
		{",,4,,", 10, []int{4}},
		{"1-", 0, nil},
		{"１，３－４", 10, []int{1, 3, 4}}, // full-width input
		{"2–4", 10, []int{2, 3, 4}},    // en dash
		{"9-99999999999999999999", 10, []int{9, 10}},
		{"99999999999999999999-", 10, nil},
		{"99999999999999999999,2", 10, []int{2}},
	}
	for _, c := range cases {
		got := Parse(c.expr, c.maxPage)
		if d := cmp.Diff(c.want, got); d != "" {
			t.Errorf("Parse(%q, %d): (-want +got):\n%s", c.expr, c.maxPage, d)
		}
	}
}

func TestValidate(t *testing.T) {
	for _, expr := range []string{"", "  ", "\t\n"} {
		_, err := Validate(expr, 5)
		if !errors.Is(err, ErrEmpty) {
			t.Errorf("blank expression %q: got %v, want ErrEmpty", expr, err)
		}
	}

	// terms are present, but none of them selects a page
	for _, expr := range []string{",", " , ,", "-", "x"} {
		_, err := Validate(expr, 5)
		if !errors.Is(err, ErrNoPages) {
			t.Errorf("%q: got %v, want ErrNoPages", expr, err)
		}
	}

	pages, err := Validate("1-99999999999999999999", 5)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]int{1, 2, 3, 4, 5}, pages); d != "" {
		t.Errorf("overflowing range end (-want +got):\n%s", d)
	}

	_, err = Validate("7-9", 5)
	if !errors.Is(err, ErrNoPages) {
		t.Errorf("out of range: got %v, want ErrNoPages", err)
	}
	if errors.Is(err, ErrEmpty) {
		t.Error("ErrNoPages and ErrEmpty must be distinguishable")
	}
	var exprErr *ExprError
	if !errors.As(err, &exprErr) || exprErr.Expr != "7-9" {
		t.Errorf("expected *ExprError for %q, got %v", "7-9", err)
	}

	pages, err = Validate("2-3", 5)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]int{2, 3}, pages); d != "" {
		t.Error(d)
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		in   []int
		want string
	}{
		{nil, ""},
		{[]int{4}, "4"},
		{[]int{1, 2}, "1,2"},
		{[]int{1, 2, 3}, "1-3"},
		{[]int{1, 3, 5, 6, 7, 8, 10, 11, 12}, "1,3,5-8,10-12"},
		{[]int{1, 2, 4, 5, 7}, "1,2,4,5,7"},
		{[]int{5, 3, 4, 3}, "3-5"},
	}
	for _, c := range cases {
		got := Format(c.in)
		if got != c.want {
			t.Errorf("Format(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 500 {
		maxPage := 1 + rng.IntN(40)
		var pages []int
		for p := 1; p <= maxPage; p++ {
			if rng.IntN(3) == 0 {
				pages = append(pages, p)
			}
		}

		got := Parse(Format(pages), maxPage)
		if d := cmp.Diff(pages, got); d != "" {
			t.Fatalf("round trip of %v via %q failed (-want +got):\n%s",
				pages, Format(pages), d)
		}
	}
}

func TestRanges(t *testing.T) {
	got := Ranges("9-, 2, 4-6, bad, -2", 10)
	want := []Range{{9, 10}, {2, 2}, {4, 6}, {1, 2}}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("(-want +got):\n%s", d)
	}
}

func TestSelection(t *testing.T) {
	got := Selection([]int{3, 4, 5, 1, 2, 9})
	want := []string{"3-5", "1-2", "9"}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("(-want +got):\n%s", d)
	}
}

func TestIndexConversion(t *testing.T) {
	pages := []int{1, 5, 3}
	idx := Pages1ToIndices0(pages)
	if d := cmp.Diff([]int{0, 4, 2}, idx); d != "" {
		t.Error(d)
	}
	if d := cmp.Diff(pages, Indices0ToPages1(idx)); d != "" {
		t.Error(d)
	}
	if len(Pages1ToIndices0(nil)) != 0 {
		t.Error("conversion of nil must yield an empty list")
	}
}
