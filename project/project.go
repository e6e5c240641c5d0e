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

// Package project holds the editing state of one document.
//
// The state lives in a [Store].  Consumers read it using [Store.Get], change
// it using [Store.Update], and can register for change notifications using
// [Store.Subscribe].  The state is kept in memory only.
package project

import (
	"slices"
	"strings"
	"sync"

	"seehuhn.de/go/pagekit/geometry"
	"seehuhn.de/go/pagekit/pagerange"
)

// CropDraft is a crop rectangle which has been drawn on a page, but not yet
// applied to the document.
type CropDraft struct {
	Page int
	Rect geometry.PDFRect
}

// State is a snapshot of the project state.
//
// The slices in a State must not be modified.  Use [Store.Update] to make
// changes.
type State struct {
	// Pages describes the pages of the loaded document, indexed by
	// 0-based page index.
	Pages []geometry.PageGeometry

	// Order is the current display and export order.
	Order geometry.PageOrder

	// Current is the 0-based index of the page shown in the editor.
	Current int

	// Crop is the active crop draft, or nil.
	Crop *CropDraft
}

func (s State) clone() State {
	res := s
	res.Pages = slices.Clone(s.Pages)
	res.Order = slices.Clone(s.Order)
	if s.Crop != nil {
		c := *s.Crop
		res.Crop = &c
	}
	return res
}

// Store holds the project state and notifies subscribers of changes.
// A Store is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	state State

	subscribers map[int]func(State)
	nextID      int
}

// NewStore returns a store with an empty project.
func NewStore() *Store {
	return &Store{
		subscribers: make(map[int]func(State)),
	}
}

// Get returns a snapshot of the current state.
func (s *Store) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Update applies fn to a copy of the state, stores the result and notifies
// all subscribers.
func (s *Store) Update(fn func(*State)) {
	s.mu.Lock()
	next := s.state.clone()
	fn(&next)
	s.state = next
	subs := make([]func(State), 0, len(s.subscribers))
	for _, id := range sortedKeys(s.subscribers) {
		subs = append(subs, s.subscribers[id])
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next.clone())
	}
}

// Subscribe registers fn to be called after every change of the state.
// Subscribers are called in the order in which they were registered.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

func sortedKeys(m map[int]func(State)) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Load replaces the project with a freshly loaded document.
func (s *Store) Load(pages []geometry.PageGeometry) {
	s.Update(func(st *State) {
		*st = State{
			Pages: slices.Clone(pages),
			Order: geometry.Identity(len(pages)),
		}
	})
}

// SetCurrent switches the editor to the given page.  A crop draft for a
// different page is discarded.
func (s *Store) SetCurrent(page int) {
	s.Update(func(st *State) {
		st.Current = page
		if st.Crop != nil && st.Crop.Page != page {
			st.Crop = nil
		}
	})
}

// SetOrder replaces the page order, after checking it against the loaded
// document.
func (s *Store) SetOrder(order geometry.PageOrder) error {
	var err error
	s.Update(func(st *State) {
		err = order.Validate(len(st.Pages))
		if err == nil {
			st.Order = slices.Clone(order)
		}
	})
	return err
}

// PublishDraft sets the crop draft.
func (s *Store) PublishDraft(page int, r geometry.PDFRect) {
	s.Update(func(st *State) {
		st.Crop = &CropDraft{Page: page, Rect: r}
	})
}

// ClearDraft removes the crop draft, if any.
func (s *Store) ClearDraft() {
	s.Update(func(st *State) {
		st.Crop = nil
	})
}

// CurrentPage returns the geometry of the page shown in the editor.
func CurrentPage(s State) (geometry.PageGeometry, bool) {
	if s.Current < 0 || s.Current >= len(s.Pages) {
		return geometry.PageGeometry{}, false
	}
	return s.Pages[s.Current], true
}

// VisiblePages returns the pages which have not been deleted, in display
// order.
func VisiblePages(s State) []geometry.PageGeometry {
	res := make([]geometry.PageGeometry, 0, len(s.Order))
	for _, idx := range s.Order {
		if idx >= 0 && idx < len(s.Pages) {
			res = append(res, s.Pages[idx])
		}
	}
	return res
}

// CropFor returns the crop draft rectangle for the given page, or nil if
// there is none.
func CropFor(s State, page int) *geometry.PDFRect {
	if s.Crop == nil || s.Crop.Page != page {
		return nil
	}
	r := s.Crop.Rect
	return &r
}

// ExportSelection returns the 1-based page numbers of the visible pages, in
// export order.
func ExportSelection(s State) []int {
	return s.Order.Pages1()
}

// SelectionExpr returns a page range expression selecting the visible
// pages in export order.  Runs of consecutive ascending pages are joined
// into ranges, so the order {2, 0, 1} gives "3,1-2".
func SelectionExpr(s State) string {
	return strings.Join(pagerange.Selection(ExportSelection(s)), ",")
}
