package falkorpersist

import (
	"context"
	"fmt"
	"reflect"

	"github.com/saulfrancisco-ruizacevedo/gocypher"
)

// Repository provides a generic abstraction for CRUD operations for a specific
// entity type T. It relies on `falkor` struct tags to map struct fields to node
// properties, and materializes query results through a Record derived from
// the same tags.
type Repository[T any] struct {
	graph  *Graph
	meta   *entityMetadata
	record *Record[T]
}

// NewRepository creates a new generic repository for the type T on graph g.
// It parses the struct tags of T to understand its mapping to a node.
//
// Parameters:
//   - g: The graph all queries are executed against.
//
// Returns:
//
//	A new Repository instance or an error if the struct tags are invalid or
//	no field is tagged as the primary key.
func NewRepository[T any](g *Graph) (*Repository[T], error) {
	meta, err := g.client.entityMetadata(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	if meta.PKField == "" {
		return nil, fmt.Errorf("struct %s has no field tagged 'pk'", meta.Label)
	}
	record, err := recordFromMetadata[T](meta)
	if err != nil {
		return nil, err
	}
	return &Repository[T]{graph: g, meta: meta, record: record}, nil
}

// Record returns the record target used to materialize T, for use with
// QueryAs and Column in custom queries.
func (r *Repository[T]) Record() *Record[T] { return r.record }

// Save creates a new node or updates an existing one.
// It uses a MERGE query based on the struct's primary key (`pk` tag).
// All other tagged fields are set on the node.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - entity: A pointer to the struct instance to be saved.
//
// Returns:
//
//	An error if the query building or execution fails.
func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	val := reflect.ValueOf(entity).Elem()
	pkValue := val.FieldByName(r.meta.PKField).Interface()
	mergeProps := map[string]interface{}{r.meta.PKProp: pkValue}

	setProps := make(map[string]interface{})
	for _, m := range r.meta.Mappings {
		if m.Field != r.meta.PKField {
			// The property is prefixed with 'n.' for the SET clause.
			setProps["n."+m.Prop] = val.FieldByIndex(m.Index).Interface()
		}
	}

	qb := gocypher.NewQueryBuilder().
		Merge(gocypher.N("n", r.meta.Label).WithProperties(mergeProps))
	if len(setProps) > 0 {
		qb = qb.Set(setProps)
	}
	query, params, err := qb.Return("n").Build()
	if err != nil {
		return err
	}
	_, err = r.graph.Query(ctx, query, params)
	return err
}

// FindByID retrieves a single entity from the database by its primary key.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - id: The primary key value of the entity to find.
//
// Returns:
//
//	A pointer to the found entity, ErrNotFound if no record is found, or another
//	error if the query or mapping fails.
func (r *Repository[T]) FindByID(ctx context.Context, id interface{}) (*T, error) {
	qb := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", r.meta.Label).WithProperties(map[string]interface{}{r.meta.PKProp: id})).
		Return("n")
	return r.FindOne(ctx, qb)
}

// FindAll retrieves every node carrying the entity's label.
func (r *Repository[T]) FindAll(ctx context.Context) ([]*T, error) {
	qb := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", r.meta.Label)).
		Return("n")
	return r.Find(ctx, qb)
}

// FindByProperty retrieves the entities whose property prop equals value.
// An empty slice is returned when nothing matches.
func (r *Repository[T]) FindByProperty(ctx context.Context, prop string, value interface{}) ([]*T, error) {
	qb := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", r.meta.Label).WithProperties(map[string]interface{}{prop: value})).
		Return("n")
	return r.Find(ctx, qb)
}

// Find runs a custom read-only query that returns a single column of nodes
// and materializes each row into T.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - qb: A query builder whose RETURN clause yields exactly one node per row.
//
// Returns:
//
//	The materialized entities, possibly empty, or an error if the query fails
//	or a returned node does not fit T.
func (r *Repository[T]) Find(ctx context.Context, qb *gocypher.QueryBuilder) ([]*T, error) {
	query, params, err := qb.Build()
	if err != nil {
		return nil, fmt.Errorf("could not build query: %w", err)
	}
	res, err := ROQueryAs(ctx, r.graph, query, params, Column[T](r.record))
	if err != nil {
		return nil, err
	}
	entities := make([]*T, len(res.Rows))
	for i := range res.Rows {
		entities[i] = &res.Rows[i]
	}
	return entities, nil
}

// FindOne is like Find but expects exactly one result. It returns ErrNotFound
// when the query matches nothing.
func (r *Repository[T]) FindOne(ctx context.Context, qb *gocypher.QueryBuilder) (*T, error) {
	entities, err := r.Find(ctx, qb)
	if err != nil {
		return nil, err
	}
	switch len(entities) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return entities[0], nil
	default:
		// This indicates a data integrity issue when looking up by primary key.
		return nil, fmt.Errorf("expected 1 record but found %d", len(entities))
	}
}

// Count returns the number of nodes carrying the entity's label.
func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("MATCH (n:%s) RETURN count(n)", quoteIdentifier(r.meta.Label))
	return r.count(ctx, query, nil)
}

// CountByProperty returns the number of entities whose property prop equals value.
func (r *Repository[T]) CountByProperty(ctx context.Context, prop string, value interface{}) (int64, error) {
	query := fmt.Sprintf("MATCH (n:%s) WHERE n.%s = $value RETURN count(n)",
		quoteIdentifier(r.meta.Label), quoteIdentifier(prop))
	return r.count(ctx, query, map[string]any{"value": value})
}

func (r *Repository[T]) count(ctx context.Context, query string, params map[string]any) (int64, error) {
	res, err := ROQueryAs(ctx, r.graph, query, params, Column(AsInt64))
	if err != nil {
		return 0, err
	}
	if len(res.Rows) != 1 {
		return 0, fmt.Errorf("expected 1 count row but found %d", len(res.Rows))
	}
	return res.Rows[0], nil
}

// Delete removes a node from the database by its primary key.
// It uses a DETACH DELETE query to also remove any relationships connected to the node.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - id: The primary key value of the entity to delete.
//
// Returns:
//
//	An error if the query building or execution fails.
func (r *Repository[T]) Delete(ctx context.Context, id interface{}) error {
	props := map[string]interface{}{r.meta.PKProp: id}
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", r.meta.Label).WithProperties(props)).
		DetachDelete("n").
		Build()
	if err != nil {
		return err
	}
	_, err = r.graph.Query(ctx, query, params)
	return err
}

//---

// CreateRelation creates a directed relationship between two existing entities in the database.
// It uses reflection to find the entities' primary keys and labels to build the query.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - fromEntity, toEntity: Non-nil pointers to tagged structs already saved.
//   - relType: The relationship type, e.g. "WROTE".
//   - relProps: Properties stored on the relationship; may be nil.
func (g *Graph) CreateRelation(ctx context.Context, fromEntity any, toEntity any, relType string, relProps map[string]interface{}) error {
	fromMeta, fromPKVal, err := g.entityMetaAndPK(fromEntity)
	if err != nil {
		return err
	}
	toMeta, toPKVal, err := g.entityMetaAndPK(toEntity)
	if err != nil {
		return err
	}

	qb := gocypher.NewQueryBuilder().
		Match(gocypher.N("a", fromMeta.Label).WithProperties(map[string]interface{}{fromMeta.PKProp: fromPKVal})).
		Match(gocypher.N("b", toMeta.Label).WithProperties(map[string]interface{}{toMeta.PKProp: toPKVal})).
		Create(
			gocypher.NRef("a"),
			gocypher.R("r", relType).To().WithProperties(relProps),
			gocypher.NRef("b"),
		)

	query, params, err := qb.Build()
	if err != nil {
		return err
	}

	res, err := g.Query(ctx, query, params)
	if err != nil {
		return err
	}
	if res.Stats.RelationshipsCreated == 0 {
		return fmt.Errorf("%w: no relationship created between %s and %s", ErrNotFound, fromMeta.Label, toMeta.Label)
	}
	return nil
}

// entityMetaAndPK retrieves an entity's metadata and primary key value.
func (g *Graph) entityMetaAndPK(entity any) (*entityMetadata, any, error) {
	val := reflect.ValueOf(entity)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return nil, nil, fmt.Errorf("entity must be a non-nil pointer")
	}
	meta, err := g.client.entityMetadata(val.Elem().Type())
	if err != nil {
		return nil, nil, err
	}
	if meta.PKField == "" {
		return nil, nil, fmt.Errorf("struct %s has no field tagged 'pk'", meta.Label)
	}
	return meta, val.Elem().FieldByName(meta.PKField).Interface(), nil
}
