// Package item provides bidirectional interning between item names and the
// dense integer IDs the mining pipeline operates on internally.
package item

import "sync"

// ID is the dense integer identifier assigned to an interned item name.
type ID int64

// Root is the sentinel ID reserved for tree roots (FPNode / Pattern Tree
// roots). It is never assigned to a real interned item name.
const Root ID = 0

// Interner maps item names to IDs and back. It is append-only: once an ID is
// assigned to a name it is never reassigned or removed. ID 0 is reserved as
// the Root sentinel and is never handed out by Intern. Safe for concurrent
// use by multiple readers and writers.
type Interner struct {
	mu       sync.RWMutex
	nameToID map[string]ID
	idToName []string // idToName[id-1] is the name for ID(id)
	newSince []ID     // IDs interned since the last DrainNew call
}

// NewInterner returns an empty Interner.
func NewInterner() *Interner {
	return &Interner{
		nameToID: make(map[string]ID),
	}
}

// Intern returns the ID for name, assigning a new one if name has not been
// seen before.
func (in *Interner) Intern(name string) ID {
	in.mu.RLock()
	if id, ok := in.nameToID[name]; ok {
		in.mu.RUnlock()
		return id
	}
	in.mu.RUnlock()

	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.nameToID[name]; ok {
		return id
	}
	id := ID(len(in.idToName) + 1)
	in.nameToID[name] = id
	in.idToName = append(in.idToName, name)
	in.newSince = append(in.newSince, id)
	return id
}

// Lookup returns the name for id and whether id has been interned.
func (in *Interner) Lookup(id ID) (string, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if id <= 0 || int(id) > len(in.idToName) {
		return "", false
	}
	return in.idToName[id-1], true
}

// LookupID returns the ID for name and whether name has been interned.
func (in *Interner) LookupID(name string) (ID, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	id, ok := in.nameToID[name]
	return id, ok
}

// Len returns the number of distinct items interned so far.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.idToName)
}

// DrainNew returns the IDs interned since the last call to DrainNew (or
// since construction), in interning order, and clears that backlog. It backs
// the newItemsEncountered event: callers poll it once per batch.
func (in *Interner) DrainNew() []ID {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.newSince) == 0 {
		return nil
	}
	drained := in.newSince
	in.newSince = nil
	return drained
}
