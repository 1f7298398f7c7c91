// Package helper maps eBPF helper function ids to their names.
package helper

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/ezrec/bpfasm/translate"
)

var f = translate.From

var (
	ErrHelperDuplicate = errors.New(f("duplicate helper name"))
	ErrHelperId        = errors.New(f("helper id out of range"))
)

// MAX_ID is the largest helper id a table may name.
const MAX_ID = 1 << 16

// Table is an ordered table of helper names, indexed by id.
// Unnamed ids hold the empty string.
type Table struct {
	names []string
	ids   map[string]int64
}

// New returns a table naming ids 0 through len(names)-1.
// An empty name leaves its id unnamed.
func New(names ...string) (table *Table, err error) {
	table = &Table{
		names: make([]string, len(names)),
		ids:   make(map[string]int64, len(names)),
	}

	for id, name := range names {
		err = table.set(int64(id), name)
		if err != nil {
			return nil, err
		}
	}

	return
}

// FromMap returns a table from a sparse id to name map.
func FromMap(names map[int64]string) (table *Table, err error) {
	table = &Table{
		ids: make(map[string]int64, len(names)),
	}

	for _, id := range slices.Sorted(maps.Keys(names)) {
		if id < 0 || id > MAX_ID {
			return nil, ErrHelperId
		}
		if int(id) >= len(table.names) {
			table.names = append(table.names, make([]string, int(id)+1-len(table.names))...)
		}
		err = table.set(id, names[id])
		if err != nil {
			return nil, err
		}
	}

	return
}

func (table *Table) set(id int64, name string) error {
	if len(name) == 0 {
		return nil
	}
	if _, dup := table.ids[name]; dup {
		return fmt.Errorf("%w: %v", ErrHelperDuplicate, name)
	}
	table.names[id] = name
	table.ids[name] = id
	return nil
}

// Name returns the name of a helper id. A nil table names nothing.
func (table *Table) Name(id int64) (name string, ok bool) {
	if table == nil || id < 0 || id >= int64(len(table.names)) {
		return
	}
	name = table.names[id]
	ok = len(name) != 0
	return
}

// Lookup returns the id of a helper name.
func (table *Table) Lookup(name string) (id int64, ok bool) {
	if table == nil {
		return
	}
	id, ok = table.ids[name]
	return
}

// Len returns one more than the largest id in the table.
func (table *Table) Len() int {
	if table == nil {
		return 0
	}
	return len(table.names)
}

// Names returns a copy of the names, indexed by id.
func (table *Table) Names() []string {
	if table == nil {
		return nil
	}
	return slices.Clone(table.names)
}
