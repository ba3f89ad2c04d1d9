package falkorpersist

type entityKind int

const (
	nodeEntity entityKind = iota
	relationshipEntity
)

// Field maps one entity property onto a field of T.
type Field[T any] struct {
	name   string
	accept func(ValueType) bool
	assign func(dst *T, v Value) error
}

// Name returns the property name the field is read from.
func (f Field[T]) Name() string { return f.name }

// Prop declares a field read from property name, materialized through target
// and stored with set. A property missing from the entity is materialized from
// Null, so only targets accepting Null (such as Optional) tolerate it.
func Prop[T, F any](name string, target Target[F], set func(dst *T, value F)) Field[T] {
	return Field[T]{
		name:   name,
		accept: target.Matches,
		assign: func(dst *T, v Value) error {
			out, err := target.Materialize(v)
			if err != nil {
				return err
			}
			set(dst, out)
			return nil
		},
	}
}

// Record maps nodes carrying a label, or relationships of a type, onto T. It
// is a Target: materializing an entity with another label or type fails with
// ErrMismatch, so records of different shapes can be combined with OneOf.
type Record[T any] struct {
	kind      entityKind
	name      string
	fields    []Field[T]
	id        func(dst *T, id int64)
	endpoints func(dst *T, source, destination int64)
}

// NodeRecord declares a record built from nodes that carry label.
func NodeRecord[T any](label string, fields ...Field[T]) *Record[T] {
	return &Record[T]{kind: nodeEntity, name: label, fields: fields}
}

// RelationshipRecord declares a record built from relationships of relType.
func RelationshipRecord[T any](relType string, fields ...Field[T]) *Record[T] {
	return &Record[T]{kind: relationshipEntity, name: relType, fields: fields}
}

// WithID stores the entity id in each materialized record.
func (r *Record[T]) WithID(set func(dst *T, id int64)) *Record[T] {
	r.id = set
	return r
}

// WithEndpoints stores the source and destination node ids of a relationship
// record. It has no effect on node records.
func (r *Record[T]) WithEndpoints(set func(dst *T, source, destination int64)) *Record[T] {
	r.endpoints = set
	return r
}

// Label returns the label or relationship type the record expects.
func (r *Record[T]) Label() string { return r.name }

// Fields returns the property names of the record, in declaration order.
func (r *Record[T]) Fields() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.name
	}
	return names
}

func (r *Record[T]) Matches(t ValueType) bool {
	if r.kind == relationshipEntity {
		return t == TypeEdge
	}
	return t == TypeNode
}

func (r *Record[T]) Materialize(v Value) (T, error) {
	var out T
	switch e := v.(type) {
	case Node:
		if r.kind != nodeEntity {
			return out, decodeErrorf(TypeNode, "record %q expects a relationship", r.name)
		}
		if !e.HasLabel(r.name) {
			return out, wrapDecodeError(TypeNode, ErrMismatch, "node %d labels %v lack %q", e.ID, e.Labels, r.name)
		}
		if r.id != nil {
			r.id(&out, e.ID)
		}
		err := r.project(&out, TypeNode, e.Properties)
		return out, err
	case Relationship:
		if r.kind != relationshipEntity {
			return out, decodeErrorf(TypeEdge, "record %q expects a node", r.name)
		}
		if e.RelType != r.name {
			return out, wrapDecodeError(TypeEdge, ErrMismatch, "relationship %d has type %q, not %q", e.ID, e.RelType, r.name)
		}
		if r.id != nil {
			r.id(&out, e.ID)
		}
		if r.endpoints != nil {
			r.endpoints(&out, e.SourceID, e.DestinationID)
		}
		err := r.project(&out, TypeEdge, e.Properties)
		return out, err
	case nil:
		return out, decodeErrorf(TypeNull, "record %q cannot be built from null", r.name)
	default:
		return out, decodeErrorf(v.Type(), "record %q cannot be built from %T", r.name, v)
	}
}

func (r *Record[T]) project(dst *T, owner ValueType, props Map) error {
	for _, f := range r.fields {
		v, ok := props[f.name]
		if v == nil {
			v = Null{}
		}
		if !f.accept(v.Type()) {
			if !ok {
				return decodeErrorf(owner, "record %q: missing property %q", r.name, f.name)
			}
			return decodeErrorf(owner, "record %q: property %q has type %s", r.name, f.name, v.Type())
		}
		if err := f.assign(dst, v); err != nil {
			return wrapDecodeError(owner, err, "record %q: property %q", r.name, f.name)
		}
	}
	return nil
}
