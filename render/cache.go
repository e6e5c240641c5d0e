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

package render

import (
	"hash/fnv"
	"time"
)

// prefixSize is the number of leading bytes of a file which go into the
// cache key.
const prefixSize = 64 * 1024

// docKey identifies the contents of a PDF file.
//
// Keys are computed from the file size and a hash of the start of the file.
// Two different files can map to the same key; the idle expiry of cache
// entries bounds how long such a collision can persist.
type docKey struct {
	hash uint64
	size int
}

func keyFor(buf []byte) docKey {
	h := fnv.New64a()
	h.Write(buf[:min(len(buf), prefixSize)])
	return docKey{hash: h.Sum64(), size: len(buf)}
}

// docCache is an LRU cache of loaded documents, where entries also expire
// after a period without access.
type docCache struct {
	capacity    int
	idle        time.Duration
	entries     map[docKey]*cacheEntry
	first, last *cacheEntry

	// onEvict, if set, is called for every entry which is removed.
	onEvict func(key docKey, reason string)
}

type cacheEntry struct {
	prev, next *cacheEntry
	key        docKey
	doc        *document
	lastUsed   time.Time
}

func newDocCache(capacity int, idle time.Duration) *docCache {
	return &docCache{
		capacity: capacity,
		idle:     idle,
		entries:  make(map[docKey]*cacheEntry, capacity),
	}
}

// Put adds a document to the cache.
func (c *docCache) Put(key docKey, doc *document, now time.Time) {
	if c.capacity <= 0 {
		return
	}

	if ent, ok := c.entries[key]; ok {
		ent.doc = doc
		ent.lastUsed = now
		c.moveToFront(ent)
		return
	}

	ent := &cacheEntry{
		key:      key,
		doc:      doc,
		lastUsed: now,
	}
	c.entries[key] = ent
	c.moveToFront(ent)

	if len(c.entries) > c.capacity {
		c.remove(c.last, "capacity")
	}
}

// Get returns a document from the cache, marks it as recently used, and
// resets its idle timer.
func (c *docCache) Get(key docKey, now time.Time) (*document, bool) {
	c.Expire(now)

	ent, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	ent.lastUsed = now
	c.moveToFront(ent)
	return ent.doc, true
}

// Expire removes all entries which have not been used for longer than the
// idle period.
func (c *docCache) Expire(now time.Time) {
	// the least recently used entries are at the end of the list
	for c.last != nil && now.Sub(c.last.lastUsed) > c.idle {
		c.remove(c.last, "idle")
	}
}

// Len returns the number of cached documents.
func (c *docCache) Len() int {
	return len(c.entries)
}

func (c *docCache) moveToFront(ent *cacheEntry) {
	if ent == c.first {
		return
	}

	c.unlink(ent)
	ent.next = c.first
	if c.first != nil {
		c.first.prev = ent
	}
	c.first = ent
	if c.last == nil {
		c.last = ent
	}
}

func (c *docCache) unlink(ent *cacheEntry) {
	if ent.prev != nil {
		ent.prev.next = ent.next
	}
	if ent.next != nil {
		ent.next.prev = ent.prev
	}
	if ent == c.first {
		c.first = ent.next
	}
	if ent == c.last {
		c.last = ent.prev
	}
	ent.prev = nil
	ent.next = nil
}

func (c *docCache) remove(ent *cacheEntry, reason string) {
	c.unlink(ent)
	delete(c.entries, ent.key)
	if c.onEvict != nil {
		c.onEvict(ent.key, reason)
	}
}
