package falkorpersist

import (
	"context"
	"fmt"

	"github.com/saulfrancisco-ruizacevedo/gocypher"
)

// GraphResult is a de-duplicated collection of the nodes and relationships
// returned by a query, in order of first appearance.
type GraphResult struct {
	Nodes         []Node
	Relationships []Relationship
}

// FindGraph executes a graph query defined by a gocypher.QueryBuilder and collects
// every node and relationship it returns into a GraphResult.
//
// This method is domain-agnostic; it does not need to know about specific Go structs
// like User or Post. Returned paths, lists and maps are searched as well, so
// `RETURN p` for a path p contributes all of its nodes and relationships.
//
// The caller is responsible for constructing a valid query via the QueryBuilder, including
// a RETURN clause that specifies which graph elements should be included, e.g. `RETURN u, r, p`.
// Elements returned in several rows appear once, keyed by their id.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - qb: A pointer to a configured gocypher.QueryBuilder instance that defines the graph to retrieve.
//
// Returns:
//   - A pointer to a GraphResult containing the de-duplicated nodes and relationships.
//   - An ErrNotFound error if the query executes successfully but returns zero rows.
//   - Any other error encountered during query building, execution or decoding.
func (g *Graph) FindGraph(ctx context.Context, qb *gocypher.QueryBuilder) (*GraphResult, error) {
	query, params, err := qb.Build()
	if err != nil {
		return nil, fmt.Errorf("could not build query: %w", err)
	}

	res, err := g.ROQuery(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, ErrNotFound
	}

	c := newGraphCollector()
	for _, row := range res.Rows {
		for _, v := range row.Values {
			c.collect(v)
		}
	}
	return c.result, nil
}

type graphCollector struct {
	result            *GraphResult
	seenNodes         map[int64]bool
	seenRelationships map[int64]bool
}

func newGraphCollector() *graphCollector {
	return &graphCollector{
		result: &GraphResult{
			Nodes:         make([]Node, 0),
			Relationships: make([]Relationship, 0),
		},
		seenNodes:         make(map[int64]bool),
		seenRelationships: make(map[int64]bool),
	}
}

func (c *graphCollector) collect(v Value) {
	switch v := v.(type) {
	case Node:
		if !c.seenNodes[v.ID] {
			c.seenNodes[v.ID] = true
			c.result.Nodes = append(c.result.Nodes, v)
		}
	case Relationship:
		if !c.seenRelationships[v.ID] {
			c.seenRelationships[v.ID] = true
			c.result.Relationships = append(c.result.Relationships, v)
		}
	case Path:
		for _, n := range v.Nodes {
			c.collect(n)
		}
		for _, r := range v.Relationships {
			c.collect(r)
		}
	case List:
		for _, item := range v {
			c.collect(item)
		}
	case Map:
		for _, k := range sortedKeys(v) {
			c.collect(v[k])
		}
	}
}
