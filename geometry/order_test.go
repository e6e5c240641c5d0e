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

package geometry

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPageOrderValidate(t *testing.T) {
	tests := []struct {
		name  string
		order PageOrder
		n     int
		ok    bool
	}{
		{"identity", Identity(4), 4, true},
		{"empty", PageOrder{}, 4, true},
		{"subset", PageOrder{3, 0}, 4, true},
		{"duplicate", PageOrder{1, 1}, 4, false},
		{"negative", PageOrder{-1}, 4, false},
		{"out of range", PageOrder{4}, 4, false},
		{"too long", PageOrder{0, 1, 2}, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.order.Validate(tt.n)
			if tt.ok && err != nil {
				t.Errorf("unexpected error %v", err)
			} else if !tt.ok && !errors.Is(err, ErrInvalidOrder) {
				t.Errorf("got %v, want ErrInvalidOrder", err)
			}
		})
	}
}

func TestPageOrderMove(t *testing.T) {
	o := Identity(5)
	moved, err := o.Move(4, 1)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(PageOrder{0, 4, 1, 2, 3}, moved); d != "" {
		t.Errorf("(-want +got):\n%s", d)
	}
	if d := cmp.Diff(Identity(5), o); d != "" {
		t.Errorf("receiver modified:\n%s", d)
	}

	moved, err = moved.Move(0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(PageOrder{4, 1, 2, 3, 0}, moved); d != "" {
		t.Errorf("(-want +got):\n%s", d)
	}
	if err := moved.Validate(5); err != nil {
		t.Error(err)
	}

	if _, err := o.Move(0, 5); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("out of range move: got %v", err)
	}
}

func TestPageOrderDelete(t *testing.T) {
	o := PageOrder{2, 0, 1, 3}
	got, err := o.Delete(0, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(PageOrder{0, 1}, got); d != "" {
		t.Errorf("(-want +got):\n%s", d)
	}
	if d := cmp.Diff([]int{1, 2}, got.Pages1()); d != "" {
		t.Errorf("Pages1 (-want +got):\n%s", d)
	}
	if _, err := o.Delete(4); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("got %v", err)
	}
	if !Identity(3).IsIdentity(3) || !got.IsIdentity(2) || o.IsIdentity(4) {
		t.Error("IsIdentity failed")
	}
}
