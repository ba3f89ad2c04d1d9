package falkorpersist

import (
	"context"
	"math"
	"strconv"
	"time"
)

// Decoder turns compact reply payloads into Values. It resolves label,
// relationship type and property key ids through its Resolver, which may
// perform I/O bound to the decoder's context.
type Decoder struct {
	ctx      context.Context
	resolver Resolver
}

// NewDecoder returns a decoder resolving ids through r. A nil r rejects any
// payload that needs id resolution.
func NewDecoder(ctx context.Context, r Resolver) *Decoder {
	if ctx == nil {
		ctx = context.Background()
	}
	if r == nil {
		r = noResolver{}
	}
	return &Decoder{ctx: ctx, resolver: r}
}

// Pair decodes a [tag, payload] pair.
func (d *Decoder) Pair(raw any) (Value, error) {
	t, payload, err := splitPair(raw)
	if err != nil {
		return nil, err
	}
	return d.Value(t, payload)
}

// Value decodes payload according to tag t.
func (d *Decoder) Value(t ValueType, raw any) (Value, error) {
	switch t {
	case TypeNull:
		return Null{}, nil
	case TypeString, TypeInteger, TypeBoolean, TypeDouble:
		return scalar(t, raw)
	case TypeArray:
		return d.list(raw)
	case TypeMap:
		return d.dict(raw)
	case TypeNode:
		return d.node(raw)
	case TypeEdge:
		return d.relationship(raw)
	case TypePath:
		return d.path(raw)
	case TypePoint:
		return point(raw)
	case TypeVector32:
		return vector32(raw)
	case TypeDateTime, TypeDate, TypeTime, TypeDuration:
		payload, err := unwrapScalar(t, raw, t)
		if err != nil {
			return nil, err
		}
		secs, err := asInt64(t, payload)
		if err != nil {
			return nil, err
		}
		return temporal(t, secs)
	default:
		return nil, decodeErrorf(t, "unsupported value type")
	}
}

func (d *Decoder) list(raw any) (List, error) {
	items, err := asArray(TypeArray, raw)
	if err != nil {
		return nil, err
	}
	out := make(List, len(items))
	for i, item := range items {
		v, err := d.Pair(item)
		if err != nil {
			return nil, wrapDecodeError(TypeArray, err, "element %d", i)
		}
		out[i] = v
	}
	return out, nil
}

// dict decodes the flat [key, [tag, value], key, [tag, value], ...] layout.
func (d *Decoder) dict(raw any) (Map, error) {
	items, err := asArray(TypeMap, raw)
	if err != nil {
		return nil, err
	}
	if len(items)%2 != 0 {
		return nil, decodeErrorf(TypeMap, "odd number of elements (%d)", len(items))
	}
	out := make(Map, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		key, err := asString(TypeMap, items[i])
		if err != nil {
			return nil, err
		}
		v, err := d.Pair(items[i+1])
		if err != nil {
			return nil, wrapDecodeError(TypeMap, err, "key %q", key)
		}
		out[key] = v
	}
	return out, nil
}

// node decodes [id, [label_id...], [property...]].
func (d *Decoder) node(raw any) (Node, error) {
	fields, err := asArrayN(TypeNode, raw, 3)
	if err != nil {
		return Node{}, err
	}
	id, err := asInt64(TypeNode, fields[0])
	if err != nil {
		return Node{}, err
	}
	labelIDs, err := asArray(TypeNode, fields[1])
	if err != nil {
		return Node{}, err
	}
	labels := make([]string, len(labelIDs))
	for i, raw := range labelIDs {
		lid, err := asInt64(TypeNode, raw)
		if err != nil {
			return Node{}, err
		}
		if labels[i], err = d.resolver.Label(d.ctx, lid); err != nil {
			return Node{}, err
		}
	}
	props, err := d.properties(TypeNode, fields[2])
	if err != nil {
		return Node{}, err
	}
	return Node{ID: id, Labels: labels, Properties: props}, nil
}

// relationship decodes [id, type_id, src_id, dest_id, [property...]].
func (d *Decoder) relationship(raw any) (Relationship, error) {
	fields, err := asArrayN(TypeEdge, raw, 5)
	if err != nil {
		return Relationship{}, err
	}
	var ids [4]int64
	for i := range ids {
		if ids[i], err = asInt64(TypeEdge, fields[i]); err != nil {
			return Relationship{}, err
		}
	}
	relType, err := d.resolver.RelationshipType(d.ctx, ids[1])
	if err != nil {
		return Relationship{}, err
	}
	props, err := d.properties(TypeEdge, fields[4])
	if err != nil {
		return Relationship{}, err
	}
	return Relationship{
		ID:            ids[0],
		RelType:       relType,
		SourceID:      ids[2],
		DestinationID: ids[3],
		Properties:    props,
	}, nil
}

// properties accepts entries shaped [key_id, [tag, value]] or the flattened
// [key_id, tag, value].
func (d *Decoder) properties(owner ValueType, raw any) (Map, error) {
	entries, err := asArray(owner, raw)
	if err != nil {
		return nil, err
	}
	out := make(Map, len(entries))
	for _, entry := range entries {
		fields, err := asArray(owner, entry)
		if err != nil {
			return nil, err
		}
		var keyID int64
		var v Value
		switch len(fields) {
		case 2:
			if keyID, err = asInt64(owner, fields[0]); err != nil {
				return nil, err
			}
			v, err = d.Pair(fields[1])
		case 3:
			if keyID, err = asInt64(owner, fields[0]); err != nil {
				return nil, err
			}
			v, err = d.Pair([]any{fields[1], fields[2]})
		default:
			return nil, decodeErrorf(owner, "property entry has %d elements", len(fields))
		}
		if err != nil {
			return nil, err
		}
		key, err := d.resolver.PropertyKey(d.ctx, keyID)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func (d *Decoder) path(raw any) (Path, error) {
	fields, err := asArrayN(TypePath, raw, 2)
	if err != nil {
		return Path{}, err
	}
	nodes, err := pathPart(d, fields[0], AsNode)
	if err != nil {
		return Path{}, wrapDecodeError(TypePath, err, "nodes")
	}
	rels, err := pathPart(d, fields[1], AsRelationship)
	if err != nil {
		return Path{}, wrapDecodeError(TypePath, err, "relationships")
	}
	return Path{Nodes: nodes, Relationships: rels}, nil
}

func pathPart[T any](d *Decoder, raw any, elem Target[T]) ([]T, error) {
	t, payload, err := splitPair(raw)
	if err != nil {
		return nil, err
	}
	if t != TypeArray {
		return nil, decodeErrorf(t, "expected Array")
	}
	return Decode(d, ListOf(elem), t, payload)
}

func point(raw any) (Point, error) {
	fields, err := asArrayN(TypePoint, raw, 2)
	if err != nil {
		return Point{}, err
	}
	lat, err := coordinate(fields[0])
	if err != nil {
		return Point{}, err
	}
	lon, err := coordinate(fields[1])
	if err != nil {
		return Point{}, err
	}
	return Point{Latitude: lat, Longitude: lon}, nil
}

func vector32(raw any) (Vector32, error) {
	items, err := asArray(TypeVector32, raw)
	if err != nil {
		return nil, err
	}
	out := make(Vector32, len(items))
	for i, item := range items {
		payload, err := unwrapScalar(TypeVector32, item, TypeDouble)
		if err != nil {
			return nil, err
		}
		f, err := asFloat64(TypeVector32, payload)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

// maxDurationSeconds is the largest whole-second span a time.Duration holds.
const maxDurationSeconds = int64(math.MaxInt64 / int64(time.Second))

func temporal(t ValueType, secs int64) (Value, error) {
	switch t {
	case TypeDateTime:
		return LocalDateTime{Time: time.Unix(secs, 0).UTC()}, nil
	case TypeDate:
		y, m, d := time.Unix(secs, 0).UTC().Date()
		return LocalDate{Year: y, Month: m, Day: d}, nil
	case TypeTime:
		h, m, s := time.Unix(secs, 0).UTC().Clock()
		return LocalTime{Hour: h, Minute: m, Second: s}, nil
	default:
		if secs > maxDurationSeconds || secs < -maxDurationSeconds {
			return nil, decodeErrorf(t, "%d seconds is out of range", secs)
		}
		return Duration{Duration: time.Duration(secs) * time.Second}, nil
	}
}

// splitPair splits a [tag, payload] pair.
func splitPair(raw any) (ValueType, any, error) {
	fields, err := asArrayN(TypeUnknown, raw, 2)
	if err != nil {
		return TypeUnknown, nil, err
	}
	code, err := asInt64(TypeUnknown, fields[0])
	if err != nil {
		return TypeUnknown, nil, err
	}
	t := ValueType(code)
	if !t.valid() || t == TypeUnknown {
		return t, nil, decodeErrorf(t, "unrecognized value type %d", code)
	}
	return t, fields[1], nil
}

func scalar(t ValueType, raw any) (Value, error) {
	payload, err := unwrapScalar(t, raw, t)
	if err != nil {
		return nil, err
	}
	switch t {
	case TypeString:
		s, err := asString(t, payload)
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case TypeInteger:
		n, err := asInt64(t, payload)
		if err != nil {
			return nil, err
		}
		return Integer(n), nil
	case TypeBoolean:
		b, err := asBool(t, payload)
		if err != nil {
			return nil, err
		}
		return Boolean(b), nil
	default:
		f, err := asFloat64(t, payload)
		if err != nil {
			return nil, err
		}
		return Double(f), nil
	}
}

// coordinate decodes one point component, plain or as a Double pair.
func coordinate(raw any) (float64, error) {
	payload, err := unwrapScalar(TypePoint, raw, TypeDouble)
	if err != nil {
		return 0, err
	}
	return asFloat64(TypePoint, payload)
}

// unwrapScalar accepts a scalar either bare or nested in a [tag, value] pair
// whose tag is want. Any other array is an error.
func unwrapScalar(owner ValueType, raw any, want ValueType) (any, error) {
	fields, ok := raw.([]any)
	if !ok {
		return raw, nil
	}
	if len(fields) != 2 {
		return nil, decodeErrorf(owner, "expected a scalar, got an array of %d elements", len(fields))
	}
	code, err := asInt64(owner, fields[0])
	if err != nil {
		return nil, wrapDecodeError(owner, err, "nested value has no tag")
	}
	if ValueType(code) != want {
		return nil, decodeErrorf(owner, "nested tag %s, expected %s", ValueType(code), want)
	}
	return fields[1], nil
}

func asArray(t ValueType, raw any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case nil:
		return nil, nil
	default:
		return nil, decodeErrorf(t, "expected array, got %T", raw)
	}
}

func asArrayN(t ValueType, raw any, n int) ([]any, error) {
	items, err := asArray(t, raw)
	if err != nil {
		return nil, err
	}
	if len(items) != n {
		return nil, decodeErrorf(t, "expected %d elements, got %d", n, len(items))
	}
	return items, nil
}

func asString(t ValueType, raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", decodeErrorf(t, "expected string, got %T", raw)
	}
}

func asInt64(t ValueType, raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, decodeErrorf(t, "integer %d overflows int64", v)
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, wrapDecodeError(t, err, "expected integer")
		}
		return n, nil
	default:
		return 0, decodeErrorf(t, "expected integer, got %T", raw)
	}
}

func asBool(t ValueType, raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch v {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return false, decodeErrorf(t, "expected boolean, got %q", v)
	case int64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
		return false, decodeErrorf(t, "expected boolean, got %d", v)
	default:
		return false, decodeErrorf(t, "expected boolean, got %T", raw)
	}
}

func asFloat64(t ValueType, raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, wrapDecodeError(t, err, "expected double")
		}
		return f, nil
	default:
		return 0, decodeErrorf(t, "expected double, got %T", raw)
	}
}

type noResolver struct{}

func (noResolver) Label(_ context.Context, id int64) (string, error) {
	return "", decodeErrorf(TypeNode, "no resolver for label id %d", id)
}

func (noResolver) RelationshipType(_ context.Context, id int64) (string, error) {
	return "", decodeErrorf(TypeEdge, "no resolver for relationship type id %d", id)
}

func (noResolver) PropertyKey(_ context.Context, id int64) (string, error) {
	return "", decodeErrorf(TypeUnknown, "no resolver for property key id %d", id)
}
