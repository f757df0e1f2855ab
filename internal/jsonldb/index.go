// Lookups of table rows by a secondary key, such as a share id or a page name.

package jsonldb

import (
	"iter"
	"slices"
	"sync"

	"github.com/maruel/ksid"
)

// keyed maps each secondary key to the sorted ids of the rows carrying it.
//
// The table feeds it through TableObserver while holding its write lock, so
// readers take a copy of the ids and resolve rows afterwards.
type keyed[K comparable, T Row[T]] struct {
	table *Table[T]
	key   func(T) K
	mu    sync.RWMutex
	ids   map[K][]ksid.ID
}

func (k *keyed[K, T]) init(table *Table[T], key func(T) K) {
	k.table = table
	k.key = key
	k.ids = map[K][]ksid.ID{}
}

func (k *keyed[K, T]) snapshot(key K) []ksid.ID {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return slices.Clone(k.ids[key])
}

// OnAppend implements [TableObserver].
func (k *keyed[K, T]) OnAppend(row T) {
	k.mu.Lock()
	k.add(k.key(row), row.GetID())
	k.mu.Unlock()
}

// OnUpdate implements [TableObserver]. Only a changed key moves the row.
func (k *keyed[K, T]) OnUpdate(prev, curr T) {
	from, to := k.key(prev), k.key(curr)
	if from == to {
		return
	}
	k.mu.Lock()
	k.remove(from, prev.GetID())
	k.add(to, curr.GetID())
	k.mu.Unlock()
}

// OnDelete implements [TableObserver].
func (k *keyed[K, T]) OnDelete(row T) {
	k.mu.Lock()
	k.remove(k.key(row), row.GetID())
	k.mu.Unlock()
}

func (k *keyed[K, T]) add(key K, id ksid.ID) {
	ids := k.ids[key]
	if i, found := slices.BinarySearch(ids, id); !found {
		k.ids[key] = slices.Insert(ids, i, id)
	}
}

func (k *keyed[K, T]) remove(key K, id ksid.ID) {
	ids := k.ids[key]
	i, found := slices.BinarySearch(ids, id)
	if !found {
		return
	}
	if ids = slices.Delete(ids, i, i+1); len(ids) == 0 {
		delete(k.ids, key)
	} else {
		k.ids[key] = ids
	}
}

// UniqueIndex resolves a key expected to name a single row, like a share id.
//
// Updates that keep the key, such as revoking a share, keep the row
// reachable. Should two rows carry the same key, the newest id wins.
type UniqueIndex[K comparable, T Row[T]] struct {
	keyed[K, T]
}

// NewUniqueIndex indexes the rows of table, current and future, by key.
func NewUniqueIndex[K comparable, T Row[T]](table *Table[T], key func(T) K) *UniqueIndex[K, T] {
	u := &UniqueIndex[K, T]{}
	u.init(table, key)
	table.AddObserver(u)
	return u
}

// Get returns a clone of the row carrying key, or the zero value.
func (u *UniqueIndex[K, T]) Get(key K) T {
	ids := u.snapshot(key)
	for i := len(ids) - 1; i >= 0; i-- {
		if row, ok := u.table.lookup(ids[i]); ok {
			return row
		}
	}
	var zero T
	return zero
}

// Has reports whether a row carries key.
func (u *UniqueIndex[K, T]) Has(key K) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.ids[key]) != 0
}

// Index groups rows sharing a key, like every share of one page.
type Index[K comparable, T Row[T]] struct {
	keyed[K, T]
}

// NewIndex indexes the rows of table, current and future, by key.
func NewIndex[K comparable, T Row[T]](table *Table[T], key func(T) K) *Index[K, T] {
	x := &Index[K, T]{}
	x.init(table, key)
	table.AddObserver(x)
	return x
}

// Iter yields clones of the rows carrying key in id order. Rows deleted while
// iterating are skipped.
func (x *Index[K, T]) Iter(key K) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, id := range x.snapshot(key) {
			row, ok := x.table.lookup(id)
			if ok && !yield(row) {
				return
			}
		}
	}
}
