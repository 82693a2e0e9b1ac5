package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/kobosync/internal/model"
)

// ColumnType is a portable column type; each dialect renders it.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeBigInt
	TypeInteger
	TypeDouble
	TypeTimestamp
	TypeDate
)

// WriteMode selects how the sync engine applies rows to a table.
type WriteMode int

const (
	// InsertOnce tables are created if absent and never updated.
	InsertOnce WriteMode = iota
	// Mutable tables overwrite non-key, non-immutable columns and bump
	// the version column.
	Mutable
	// AppendOnly tables only ever receive plain inserts.
	AppendOnly
)

// Column is one table column.
type Column struct {
	Name string
	Type ColumnType
}

// Index is a secondary index created during schema evolution.
type Index struct {
	Name    string
	Columns []string
}

// Table describes one stored entity.
type Table struct {
	Name      string
	Entity    model.EntityType
	Columns   []Column
	Key       []string
	Immutable []string
	Mode      WriteMode
	Indexes   []Index
}

// Versioned reports whether the table carries a version column.
func (t *Table) Versioned() bool {
	return t.ColumnIndex("version") >= 0
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// KeyOf extracts the key values from a row.
func (t *Table) KeyOf(row []any) []any {
	key := make([]any, len(t.Key))
	for i, k := range t.Key {
		key[i] = row[t.ColumnIndex(k)]
	}
	return key
}

// KeyString renders key values as one comparable string.
func KeyString(key []any) string {
	parts := make([]string, len(key))
	for i, k := range key {
		parts[i] = fmt.Sprint(k)
	}
	return strings.Join(parts, "\x1f")
}

func (t *Table) isKey(col string) bool {
	for _, k := range t.Key {
		if k == col {
			return true
		}
	}
	return false
}

func (t *Table) isImmutable(col string) bool {
	for _, k := range t.Immutable {
		if k == col {
			return true
		}
	}
	return false
}

// UpdatableColumns returns the columns an upsert overwrites.
func (t *Table) UpdatableColumns() []string {
	var out []string
	for _, c := range t.Columns {
		if t.isKey(c.Name) || t.isImmutable(c.Name) {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}

var (
	registry   = make(map[string]*Table)
	registryMu sync.RWMutex
)

// Register adds a table to the catalogue. It panics on a duplicate name.
func Register(t *Table) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[t.Name]; exists {
		panic(fmt.Sprintf("table already registered: %s", t.Name))
	}
	registry[t.Name] = t
}

// Lookup returns a registered table by name.
func Lookup(name string) (*Table, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	t, ok := registry[name]
	return t, ok
}

// Tables returns every registered table, sorted by name.
func Tables() []*Table {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]*Table, 0, len(registry))
	for _, t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
