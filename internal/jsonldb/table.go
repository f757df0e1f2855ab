package jsonldb

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/maruel/ksid"
)

// Row is implemented by types stored in a [Table].
type Row[T any] interface {
	// Clone returns a deep copy so callers never share memory with the cache.
	Clone() T
	// GetID returns the row's primary key. It must be non-zero.
	GetID() ksid.ID
	// Validate returns an error if the row must not be persisted.
	Validate() error
}

// TableObserver is notified after each successful mutation of a [Table].
//
// Callbacks run while the table write lock is held; they must not call back
// into the table.
type TableObserver[T any] interface {
	OnAppend(row T)
	OnUpdate(prev, curr T)
	OnDelete(row T)
}

var errZeroID = errors.New("row ID cannot be zero")

// Table handles storage and in-memory caching for a single table in JSONL format.
type Table[T Row[T]] struct {
	path string
	mu   sync.RWMutex

	rows      []T
	byID      map[ksid.ID]int
	observers []TableObserver[T]
}

// NewTable creates a new Table and loads all data from the file.
//
// A missing file is an empty table. The parent directory is not created; it
// must exist by the time the first row is written.
func NewTable[T Row[T]](path string) (*Table[T], error) {
	table := &Table[T]{
		path: path,
		byID: map[ksid.ID]int{},
	}
	if err := table.load(); err != nil {
		return nil, err
	}
	return table, nil
}

func (t *Table[T]) load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.rows = []T{}
			return nil
		}
		return fmt.Errorf("failed to open table file %s: %w", t.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var rows []T
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			return fmt.Errorf("failed to unmarshal row in %s: %w", t.path, err)
		}
		if i, ok := t.byID[row.GetID()]; ok {
			// Last write wins, like a replayed log.
			rows[i] = row
			continue
		}
		t.byID[row.GetID()] = len(rows)
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read table file %s: %w", t.path, err)
	}
	if rows == nil {
		rows = []T{}
	}
	t.rows = rows
	return nil
}

// AddObserver registers o and replays every existing row to it as an append.
func (t *Table[T]) AddObserver(o TableObserver[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, o)
	for _, row := range t.rows {
		o.OnAppend(row)
	}
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Get returns a clone of the row with the given ID, or the zero value.
func (t *Table[T]) Get(id ksid.ID) T {
	row, _ := t.lookup(id)
	return row
}

// lookup returns a clone of the row with id and whether it exists.
func (t *Table[T]) lookup(id ksid.ID) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i, ok := t.byID[id]; ok {
		return t.rows[i].Clone(), true
	}
	var zero T
	return zero, false
}

// All returns an iterator over clones of all rows.
func (t *Table[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// Append adds a new row to the table and persists it.
func (t *Table[T]) Append(row T) error {
	if err := row.Validate(); err != nil {
		return fmt.Errorf("invalid row: %w", err)
	}
	id := row.GetID()
	if id.IsZero() {
		return errZeroID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[id]; ok {
		return fmt.Errorf("row %s already exists", id)
	}

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G302: 0o644 is intentional for data files
	if err != nil {
		return fmt.Errorf("failed to open table file for append: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}

	row = row.Clone()
	t.byID[id] = len(t.rows)
	t.rows = append(t.rows, row)
	for _, o := range t.observers {
		o.OnAppend(row)
	}
	return nil
}

// Update replaces the row with the same ID and persists the table.
//
// It returns the previous row, or the zero value if no row has this ID, in
// which case nothing is written.
func (t *Table[T]) Update(row T) (T, error) {
	var zero T
	if err := row.Validate(); err != nil {
		return zero, fmt.Errorf("invalid row: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.byID[row.GetID()]
	if !ok {
		return zero, nil
	}
	prev := t.rows[i]
	row = row.Clone()
	rows := make([]T, len(t.rows))
	copy(rows, t.rows)
	rows[i] = row
	if err := t.flush(rows); err != nil {
		return zero, err
	}
	t.rows = rows
	for _, o := range t.observers {
		o.OnUpdate(prev, row)
	}
	return prev.Clone(), nil
}

// Delete removes the row with the given ID and persists the table.
// It returns false if no row has this ID.
func (t *Table[T]) Delete(id ksid.ID) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.byID[id]
	if !ok {
		return false, nil
	}
	prev := t.rows[i]
	rows := make([]T, 0, len(t.rows)-1)
	rows = append(rows, t.rows[:i]...)
	rows = append(rows, t.rows[i+1:]...)
	if err := t.flush(rows); err != nil {
		return false, err
	}
	t.rows = rows
	t.reindex()
	for _, o := range t.observers {
		o.OnDelete(prev)
	}
	return true, nil
}

func (t *Table[T]) reindex() {
	clear(t.byID)
	for i, row := range t.rows {
		t.byID[row.GetID()] = i
	}
}

// flush rewrites the whole file with rows. Must be called with mu held.
func (t *Table[T]) flush(rows []T) error {
	var buf bytes.Buffer
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal row: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	f, err := os.CreateTemp(filepath.Dir(t.path), "."+filepath.Base(t.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write table file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close table file: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace table file: %w", err)
	}
	return nil
}
