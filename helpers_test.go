package falkorpersist

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// fakeConn is an in-memory Conn. It serves the schema procedures from its
// tables and hands every other command to reply.
type fakeConn struct {
	mu     sync.Mutex
	calls  [][]any
	tables [3][]string
	reply  func(args []any) (any, error)

	schemaFetches atomic.Int32
}

func newFakeConn(labels, relTypes, keys []string) *fakeConn {
	return &fakeConn{tables: [3][]string{labels, relTypes, keys}}
}

func (f *fakeConn) Do(_ context.Context, args ...any) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()

	if len(args) >= 3 && args[0] == "GRAPH.RO_QUERY" {
		if q, ok := args[2].(string); ok && strings.HasPrefix(q, "CALL db.") {
			f.schemaFetches.Add(1)
			return f.schemaReply(q), nil
		}
	}
	if f.reply == nil {
		return statsOnly("Query internal execution time: 0.1 milliseconds"), nil
	}
	return f.reply(args)
}

func (f *fakeConn) schemaReply(query string) any {
	table := Labels
	switch {
	case strings.HasPrefix(query, "CALL db.relationshipTypes()"):
		table = RelationshipTypes
	case strings.HasPrefix(query, "CALL db.propertyKeys()"):
		table = PropertyKeys
	}
	skip, _ := strconv.Atoi(query[strings.LastIndex(query, " ")+1:])

	f.mu.Lock()
	names := f.tables[table]
	f.mu.Unlock()
	if skip > len(names) {
		skip = len(names)
	}
	rows := make([]any, 0, len(names)-skip)
	for _, name := range names[skip:] {
		rows = append(rows, []any{str(name)})
	}
	return []any{
		[]any{[]any{int64(1), "name"}},
		rows,
		[]any{"Cached execution: 0", "Query internal execution time: 0.2 milliseconds"},
	}
}

func (f *fakeConn) addNames(table SchemaTable, names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table] = append(f.tables[table], names...)
}

// commands returns the calls that were not schema fetches.
func (f *fakeConn) commands() [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]any
	for _, c := range f.calls {
		if len(c) >= 3 && c[0] == "GRAPH.RO_QUERY" {
			if q, ok := c[2].(string); ok && strings.HasPrefix(q, "CALL db.") {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// Wire builders for compact replies.

func pair(t ValueType, v any) []any { return []any{int64(t), v} }

func str(s string) []any { return pair(TypeString, s) }
func integer(n int64) []any { return pair(TypeInteger, n) }
func prop(key int64, t ValueType, v any) []any {
	return []any{key, int64(t), v}
}

func nodePayload(id int64, labels []int64, props ...[]any) []any {
	ls := make([]any, len(labels))
	for i, l := range labels {
		ls[i] = l
	}
	ps := make([]any, len(props))
	for i, p := range props {
		ps[i] = p
	}
	return []any{id, ls, ps}
}

func edgePayload(id, relType, src, dst int64, props ...[]any) []any {
	ps := make([]any, len(props))
	for i, p := range props {
		ps[i] = p
	}
	return []any{id, relType, src, dst, ps}
}

func columns(names ...string) []any {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = []any{int64(1), n}
	}
	return out
}

func resultSet(cols []any, rows ...[]any) any {
	rs := make([]any, len(rows))
	for i, r := range rows {
		rs[i] = r
	}
	return []any{cols, rs, []any{"Cached execution: 1", "Query internal execution time: 0.5 milliseconds"}}
}

func statsOnly(lines ...string) any {
	ls := make([]any, len(lines))
	for i, l := range lines {
		ls[i] = l
	}
	return []any{ls}
}

// staticResolver resolves ids by index without I/O.
type staticResolver struct {
	labels, relTypes, keys []string
}

func (r staticResolver) lookup(names []string, id int64, t SchemaTable) (string, error) {
	if id < 0 || id >= int64(len(names)) {
		return "", &CacheConsistencyError{Table: t, ID: id, Size: len(names)}
	}
	return names[id], nil
}

func (r staticResolver) Label(_ context.Context, id int64) (string, error) {
	return r.lookup(r.labels, id, Labels)
}

func (r staticResolver) RelationshipType(_ context.Context, id int64) (string, error) {
	return r.lookup(r.relTypes, id, RelationshipTypes)
}

func (r staticResolver) PropertyKey(_ context.Context, id int64) (string, error) {
	return r.lookup(r.keys, id, PropertyKeys)
}

var testResolver = staticResolver{
	labels:   []string{"User", "Team", "Admin"},
	relTypes: []string{"MEMBER_OF", "FOLLOWS"},
	keys:     []string{"name", "age", "since", "score"},
}

func testDecoder() *Decoder { return NewDecoder(context.Background(), testResolver) }
