package falkorpersist

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Client is the entry point of the package. It owns the transport and hands
// out Graph handles, each with its own schema cache.
type Client struct {
	conn Conn
	log  *logrus.Entry
	// metaCache stores parsed entityMetadata to avoid costly reflection on every call.
	metaCache sync.Map
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used by the client and its graphs. The default
// is the logrus standard logger.
func WithLogger(logger *logrus.Logger) ClientOption {
	return func(c *Client) {
		c.log = logrus.NewEntry(logger)
	}
}

// NewClient creates a new Client over conn.
//
// Parameters:
//   - conn: The transport every command is sent through, usually a *RedisExecutor.
//   - opts: Optional settings such as WithLogger.
func NewClient(conn Conn, opts ...ClientOption) *Client {
	c := &Client{conn: conn, log: logrus.NewEntry(logrus.StandardLogger())}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SelectGraph returns a handle on the named graph. Handles are cheap; each
// carries its own schema cache, so reuse one per graph.
func (c *Client) SelectGraph(name string) *Graph {
	g := &Graph{
		client: c,
		name:   name,
		log:    c.log.WithField("graph", name),
	}
	g.schema = NewSchema(g)
	return g
}

// ListGraphs returns the names of the graphs stored on the server.
func (c *Client) ListGraphs(ctx context.Context) ([]string, error) {
	reply, err := c.conn.Do(ctx, "GRAPH.LIST")
	if err != nil {
		return nil, err
	}
	return stringList(reply)
}

// entityMetadata returns the cached tag metadata for typ.
func (c *Client) entityMetadata(typ reflect.Type) (*entityMetadata, error) {
	if cached, ok := c.metaCache.Load(typ); ok {
		return cached.(*entityMetadata), nil
	}
	meta, err := parseTagsFromType(typ)
	if err != nil {
		return nil, err
	}
	actual, _ := c.metaCache.LoadOrStore(typ, meta)
	return actual.(*entityMetadata), nil
}

//---

// Graph executes queries against a single named graph and resolves the ids
// in compact replies through its schema cache.
type Graph struct {
	client *Client
	name   string
	schema *Schema
	log    *logrus.Entry
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Schema returns the graph's label, relationship type and property key cache.
func (g *Graph) Schema() *Schema { return g.schema }

// QueryOption customizes a single query.
type QueryOption func(*queryOptions)

type queryOptions struct {
	timeout time.Duration
}

// WithTimeout asks the server to abort the query after d. Durations are sent
// with millisecond precision.
func WithTimeout(d time.Duration) QueryOption {
	return func(o *queryOptions) { o.timeout = d }
}

// Query runs a read-write query and decodes every row into a Row.
func (g *Graph) Query(ctx context.Context, query string, params map[string]any, opts ...QueryOption) (*QueryResult[Row], error) {
	return QueryAs(ctx, g, query, params, Rows(), opts...)
}

// ROQuery runs a read-only query and decodes every row into a Row.
func (g *Graph) ROQuery(ctx context.Context, query string, params map[string]any, opts ...QueryOption) (*QueryResult[Row], error) {
	return ROQueryAs(ctx, g, query, params, Rows(), opts...)
}

// QueryAs runs a read-write query on g and decodes each row with rt.
//
// Parameters:
//   - ctx: The context for the query execution and for any schema refresh it triggers.
//   - g: The graph to query.
//   - query: The Cypher text, sent as is.
//   - params: Values bound to $name placeholders; may be nil.
//   - rt: The row decoder, e.g. Rows() or Column(AsNode).
//
// Returns:
//
//	The decoded result, or the first encoding, transport or decoding error.
func QueryAs[T any](ctx context.Context, g *Graph, query string, params map[string]any, rt RowTarget[T], opts ...QueryOption) (*QueryResult[T], error) {
	return runQuery(ctx, g, "GRAPH.QUERY", query, params, rt, opts)
}

// ROQueryAs is the read-only variant of QueryAs.
func ROQueryAs[T any](ctx context.Context, g *Graph, query string, params map[string]any, rt RowTarget[T], opts ...QueryOption) (*QueryResult[T], error) {
	return runQuery(ctx, g, "GRAPH.RO_QUERY", query, params, rt, opts)
}

func runQuery[T any](ctx context.Context, g *Graph, command, query string, params map[string]any, rt RowTarget[T], opts []QueryOption) (*QueryResult[T], error) {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	text, err := BuildQuery(query, params)
	if err != nil {
		return nil, err
	}

	args := []any{command, g.name, text, "--compact"}
	if o.timeout > 0 {
		args = append(args, "TIMEOUT", o.timeout.Milliseconds())
	}

	log := g.log.WithField("command", command)
	log.WithField("query", query).Debug("executing query")

	reply, err := g.client.conn.Do(ctx, args...)
	if err != nil {
		log.WithError(err).Debug("query failed")
		return nil, err
	}
	if err := replyError(reply); err != nil {
		log.WithError(err).Debug("query failed")
		return nil, err
	}

	res, err := parseReply(NewDecoder(ctx, g.schema), reply, rt)
	if err != nil {
		return nil, fmt.Errorf("could not decode reply: %w", err)
	}
	log.WithFields(logrus.Fields{
		"rows":           len(res.Rows),
		"cached":         res.Stats.CachedExecution,
		"execution_time": res.Stats.ExecutionTime,
	}).Debug("query completed")
	return res, nil
}

// Explain returns the execution plan the server would use for query.
func (g *Graph) Explain(ctx context.Context, query string, params map[string]any) ([]string, error) {
	text, err := BuildQuery(query, params)
	if err != nil {
		return nil, err
	}
	reply, err := g.client.conn.Do(ctx, "GRAPH.EXPLAIN", g.name, text)
	if err != nil {
		return nil, err
	}
	return stringList(reply)
}

// Delete removes the graph from the server and clears the schema cache.
func (g *Graph) Delete(ctx context.Context) error {
	if _, err := g.client.conn.Do(ctx, "GRAPH.DELETE", g.name); err != nil {
		return err
	}
	g.schema.Reset()
	g.log.Debug("graph deleted")
	return nil
}

// FetchSchema implements SchemaFetcher by running the table's procedure
// query. The rows are plain strings, so no resolver is needed to decode them.
func (g *Graph) FetchSchema(ctx context.Context, table SchemaTable, skip int) ([]string, error) {
	reply, err := g.client.conn.Do(ctx, "GRAPH.RO_QUERY", g.name, table.Query(skip), "--compact")
	if err != nil {
		return nil, err
	}
	if err := replyError(reply); err != nil {
		return nil, err
	}
	res, err := parseReply(NewDecoder(ctx, nil), reply, Column(AsString))
	if err != nil {
		return nil, fmt.Errorf("could not decode %s: %w", table, err)
	}
	g.log.WithFields(logrus.Fields{
		"table":   table.String(),
		"skip":    skip,
		"fetched": len(res.Rows),
	}).Debug("schema refreshed")
	return res.Rows, nil
}

// replyError surfaces a server error embedded in a reply array, which
// FalkorDB uses for errors raised while a query runs.
func replyError(reply any) error {
	parts, ok := reply.([]any)
	if !ok {
		return nil
	}
	for _, part := range parts {
		if err, ok := part.(error); ok {
			return err
		}
	}
	return nil
}

func stringList(reply any) ([]string, error) {
	items, err := asArray(TypeArray, reply)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := asString(TypeString, item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
