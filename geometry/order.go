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
	"fmt"
	"slices"
)

// ErrInvalidOrder is returned when a page order refers to pages which do not
// exist, or lists a page more than once.
var ErrInvalidOrder = errors.New("invalid page order")

// PageOrder lists 0-based page indices in display and export order.
// Pages which are not listed have been deleted.
//
// The methods of PageOrder never modify the receiver.
type PageOrder []int

// Identity returns the order 0, 1, ..., n-1.
func Identity(n int) PageOrder {
	o := make(PageOrder, max(n, 0))
	for i := range o {
		o[i] = i
	}
	return o
}

// Validate checks that every element is a valid index for a document with n
// pages and that no page is listed twice.
func (o PageOrder) Validate(n int) error {
	if len(o) > n {
		return fmt.Errorf("%w: %d entries for %d pages", ErrInvalidOrder, len(o), n)
	}
	seen := make([]bool, n)
	for pos, idx := range o {
		if idx < 0 || idx >= n {
			return fmt.Errorf("%w: page index %d at position %d out of range",
				ErrInvalidOrder, idx, pos)
		}
		if seen[idx] {
			return fmt.Errorf("%w: page index %d listed twice", ErrInvalidOrder, idx)
		}
		seen[idx] = true
	}
	return nil
}

// Move returns a new order where the entry at position from has been moved to
// position to.  Positions refer to the order, not to page indices.
func (o PageOrder) Move(from, to int) (PageOrder, error) {
	if from < 0 || from >= len(o) || to < 0 || to >= len(o) {
		return nil, fmt.Errorf("%w: cannot move position %d to %d (length %d)",
			ErrInvalidOrder, from, to, len(o))
	}
	res := slices.Clone(o)
	idx := res[from]
	res = slices.Delete(res, from, from+1)
	res = slices.Insert(res, to, idx)
	return res, nil
}

// Delete returns a new order with the entries at the given positions removed.
func (o PageOrder) Delete(positions ...int) (PageOrder, error) {
	drop := make([]bool, len(o))
	for _, pos := range positions {
		if pos < 0 || pos >= len(o) {
			return nil, fmt.Errorf("%w: position %d out of range (length %d)",
				ErrInvalidOrder, pos, len(o))
		}
		drop[pos] = true
	}
	res := make(PageOrder, 0, len(o))
	for pos, idx := range o {
		if !drop[pos] {
			res = append(res, idx)
		}
	}
	return res, nil
}

// Pages1 returns the order as 1-based page numbers.
func (o PageOrder) Pages1() []int {
	res := make([]int, len(o))
	for i, idx := range o {
		res[i] = idx + 1
	}
	return res
}

// IsIdentity reports whether the order lists all n pages in their original
// order.
func (o PageOrder) IsIdentity(n int) bool {
	if len(o) != n {
		return false
	}
	for i, idx := range o {
		if idx != i {
			return false
		}
	}
	return true
}
