package falkorpersist

import (
	"context"
	"fmt"
	"sync"
)

// SchemaTable selects one of the id-to-name tables a graph maintains.
type SchemaTable int

const (
	Labels SchemaTable = iota
	RelationshipTypes
	PropertyKeys
)

var schemaTableInfo = [...]struct {
	name      string
	procedure string
	column    string
}{
	Labels:            {"labels", "db.labels", "label"},
	RelationshipTypes: {"relationship types", "db.relationshipTypes", "relationshipType"},
	PropertyKeys:      {"property keys", "db.propertyKeys", "propertyKey"},
}

func (t SchemaTable) String() string {
	if t >= 0 && int(t) < len(schemaTableInfo) {
		return schemaTableInfo[t].name
	}
	return fmt.Sprintf("SchemaTable(%d)", int(t))
}

// Query returns the read-only procedure call that lists the table's entries
// starting at skip.
func (t SchemaTable) Query(skip int) string {
	info := schemaTableInfo[t]
	return fmt.Sprintf("CALL %s() YIELD %s RETURN %s SKIP %d", info.procedure, info.column, info.column, skip)
}

// SchemaFetcher loads the names of a table from position skip onward, in id
// order.
type SchemaFetcher interface {
	FetchSchema(ctx context.Context, table SchemaTable, skip int) ([]string, error)
}

// SchemaFetcherFunc adapts a function to SchemaFetcher.
type SchemaFetcherFunc func(ctx context.Context, table SchemaTable, skip int) ([]string, error)

func (f SchemaFetcherFunc) FetchSchema(ctx context.Context, table SchemaTable, skip int) ([]string, error) {
	return f(ctx, table, skip)
}

// Resolver turns the integer ids of a compact reply into names.
type Resolver interface {
	Label(ctx context.Context, id int64) (string, error)
	RelationshipType(ctx context.Context, id int64) (string, error)
	PropertyKey(ctx context.Context, id int64) (string, error)
}

type schemaEntries struct {
	mu    sync.RWMutex
	names []string
}

// Schema caches the label, relationship type and property key tables of a
// graph. Ids are dense and assigned in order by the server, so a miss only
// needs the entries past the current size. Each table has its own lock; a
// refresh holds it for the duration of the fetch so concurrent misses on the
// same table never issue overlapping fetches.
type Schema struct {
	fetcher SchemaFetcher
	tables  [len(schemaTableInfo)]schemaEntries
}

var _ Resolver = (*Schema)(nil)

// NewSchema creates an empty cache backed by fetcher.
func NewSchema(fetcher SchemaFetcher) *Schema {
	return &Schema{fetcher: fetcher}
}

func (s *Schema) entries(table SchemaTable) (*schemaEntries, error) {
	if table < 0 || int(table) >= len(s.tables) {
		return nil, fmt.Errorf("falkorpersist: unknown schema table %d", int(table))
	}
	return &s.tables[table], nil
}

// Resolve returns the name for id in table, refreshing the table once if id is
// past its end.
func (s *Schema) Resolve(ctx context.Context, table SchemaTable, id int64) (string, error) {
	e, err := s.entries(table)
	if err != nil {
		return "", err
	}
	if id < 0 {
		return "", &CacheConsistencyError{Table: table, ID: id}
	}

	e.mu.RLock()
	if id < int64(len(e.names)) {
		name := e.names[id]
		e.mu.RUnlock()
		return name, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	// Another caller may have refreshed while we waited.
	if id < int64(len(e.names)) {
		return e.names[id], nil
	}
	if err := s.refreshLocked(ctx, table, e); err != nil {
		return "", err
	}
	if id >= int64(len(e.names)) {
		return "", &CacheConsistencyError{Table: table, ID: id, Size: len(e.names)}
	}
	return e.names[id], nil
}

// Label resolves a label id.
func (s *Schema) Label(ctx context.Context, id int64) (string, error) {
	return s.Resolve(ctx, Labels, id)
}

// RelationshipType resolves a relationship type id.
func (s *Schema) RelationshipType(ctx context.Context, id int64) (string, error) {
	return s.Resolve(ctx, RelationshipTypes, id)
}

// PropertyKey resolves a property key id.
func (s *Schema) PropertyKey(ctx context.Context, id int64) (string, error) {
	return s.Resolve(ctx, PropertyKeys, id)
}

// List returns a copy of the table, loading it first if it is empty.
func (s *Schema) List(ctx context.Context, table SchemaTable) ([]string, error) {
	e, err := s.entries(table)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.names) == 0 {
		if err := s.refreshLocked(ctx, table, e); err != nil {
			return nil, err
		}
	}
	return append([]string(nil), e.names...), nil
}

// Refresh appends any entries the server has added to table since the last
// fetch.
func (s *Schema) Refresh(ctx context.Context, table SchemaTable) error {
	e, err := s.entries(table)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return s.refreshLocked(ctx, table, e)
}

// Reset empties every table. Use it after the graph's schema changed in a way
// that renumbers ids, such as deleting the graph.
func (s *Schema) Reset() {
	for i := range s.tables {
		e := &s.tables[i]
		e.mu.Lock()
		e.names = nil
		e.mu.Unlock()
	}
}

// refreshLocked must be called with e.mu held for writing. The table is left
// untouched when the fetch fails.
func (s *Schema) refreshLocked(ctx context.Context, table SchemaTable, e *schemaEntries) error {
	if s.fetcher == nil {
		return fmt.Errorf("falkorpersist: no schema fetcher for %s", table)
	}
	names, err := s.fetcher.FetchSchema(ctx, table, len(e.names))
	if err != nil {
		return fmt.Errorf("refresh %s: %w", table, err)
	}
	e.names = append(e.names, names...)
	return nil
}
