package falkorpersist

import (
	"errors"
	"time"
)

// Target describes a Go type that can be materialized from a decoded value.
// Matches declares which wire tags the target claims; Materialize builds the
// Go value from a Value whose tag Matches accepted.
//
// Any type can take part in decoding by providing a Target. Record targets
// built with NodeRecord and RelationshipRecord return an error wrapping
// ErrMismatch when the entity carries a different label or type, which lets
// OneOf disambiguate between record shapes.
type Target[T any] interface {
	Matches(t ValueType) bool
	Materialize(v Value) (T, error)
}

// Decode decodes payload raw under tag t and materializes it into target.
func Decode[T any](d *Decoder, target Target[T], t ValueType, raw any) (T, error) {
	var zero T
	if !target.Matches(t) {
		if _, ok := target.(candidateSet); ok {
			return zero, &UnexpectedValueError{Type: t, Raw: raw}
		}
		return zero, decodeErrorf(t, "not accepted by target %T", target)
	}
	v, err := d.Value(t, raw)
	if err != nil {
		return zero, err
	}
	out, err := target.Materialize(v)
	if err != nil {
		var uv *UnexpectedValueError
		if errors.As(err, &uv) && uv.Raw == nil {
			uv.Raw = raw
		}
		return zero, err
	}
	return out, nil
}

// DecodePair decodes a [tag, payload] pair into target.
func DecodePair[T any](d *Decoder, target Target[T], raw any) (T, error) {
	t, payload, err := splitPair(raw)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode(d, target, t, payload)
}

// Materialize converts an already decoded value into target.
func Materialize[T any](target Target[T], v Value) (T, error) {
	if v == nil {
		v = Null{}
	}
	if !target.Matches(v.Type()) {
		var zero T
		if _, ok := target.(candidateSet); ok {
			return zero, &UnexpectedValueError{Type: v.Type(), Value: v}
		}
		return zero, decodeErrorf(v.Type(), "not accepted by target %T", target)
	}
	return target.Materialize(v)
}

// TargetFunc builds a Target from the tags it accepts and a conversion.
func TargetFunc[T any](fn func(Value) (T, error), types ...ValueType) Target[T] {
	return funcTarget[T]{types: types, fn: fn}
}

type funcTarget[T any] struct {
	types []ValueType
	fn    func(Value) (T, error)
}

func (f funcTarget[T]) Matches(t ValueType) bool {
	for _, want := range f.types {
		if want == t {
			return true
		}
	}
	return false
}

func (f funcTarget[T]) Materialize(v Value) (T, error) { return f.fn(v) }

// as asserts the dynamic type of v, reporting a DecodeError on mismatch.
func as[V Value](v Value) (V, error) {
	out, ok := v.(V)
	if !ok {
		return out, decodeErrorf(v.Type(), "unexpected value %T", v)
	}
	return out, nil
}

var (
	// AsAny accepts every decodable tag and returns the Value itself.
	AsAny Target[Value] = anyTarget{}

	AsString Target[string] = TargetFunc(func(v Value) (string, error) {
		s, err := as[String](v)
		return string(s), err
	}, TypeString)

	AsInt64 Target[int64] = TargetFunc(func(v Value) (int64, error) {
		n, err := as[Integer](v)
		return int64(n), err
	}, TypeInteger)

	AsInt Target[int] = TargetFunc(func(v Value) (int, error) {
		n, err := as[Integer](v)
		return int(n), err
	}, TypeInteger)

	AsBool Target[bool] = TargetFunc(func(v Value) (bool, error) {
		b, err := as[Boolean](v)
		return bool(b), err
	}, TypeBoolean)

	// AsFloat64 also widens integers.
	AsFloat64 Target[float64] = TargetFunc(func(v Value) (float64, error) {
		if n, ok := v.(Integer); ok {
			return float64(n), nil
		}
		f, err := as[Double](v)
		return float64(f), err
	}, TypeDouble, TypeInteger)

	AsNode         Target[Node]         = TargetFunc(as[Node], TypeNode)
	AsRelationship Target[Relationship] = TargetFunc(as[Relationship], TypeEdge)
	AsPath         Target[Path]         = TargetFunc(as[Path], TypePath)
	AsVector32     Target[Vector32]     = TargetFunc(as[Vector32], TypeVector32)

	// AsPoint also accepts a {latitude, longitude} map, the form points take
	// when sent as parameters.
	AsPoint Target[Point] = TargetFunc(pointFromValue, TypePoint, TypeMap)

	AsDateTime Target[time.Time] = TargetFunc(func(v Value) (time.Time, error) {
		dt, err := as[LocalDateTime](v)
		return dt.Time, err
	}, TypeDateTime)

	AsDate Target[LocalDate] = TargetFunc(as[LocalDate], TypeDate)
	AsTime Target[LocalTime] = TargetFunc(as[LocalTime], TypeTime)

	AsDuration Target[time.Duration] = TargetFunc(func(v Value) (time.Duration, error) {
		d, err := as[Duration](v)
		return d.Duration, err
	}, TypeDuration)
)

type anyTarget struct{}

func (anyTarget) Matches(t ValueType) bool          { return t.valid() && t != TypeUnknown }
func (anyTarget) Materialize(v Value) (Value, error) { return v, nil }

func pointFromValue(v Value) (Point, error) {
	switch x := v.(type) {
	case Point:
		return x, nil
	case Map:
		lat, okLat := x["latitude"]
		lon, okLon := x["longitude"]
		if !okLat || !okLon {
			return Point{}, decodeErrorf(TypeMap, "map is not a point")
		}
		la, err := Materialize(AsFloat64, lat)
		if err != nil {
			return Point{}, err
		}
		lo, err := Materialize(AsFloat64, lon)
		if err != nil {
			return Point{}, err
		}
		return Point{Latitude: la, Longitude: lo}, nil
	default:
		return Point{}, decodeErrorf(v.Type(), "unexpected value %T", v)
	}
}

// ListOf materializes an Array whose elements all materialize into elem.
func ListOf[E any](elem Target[E]) Target[[]E] {
	return listTarget[E]{elem: elem}
}

type listTarget[E any] struct{ elem Target[E] }

func (listTarget[E]) Matches(t ValueType) bool { return t == TypeArray }

func (l listTarget[E]) Materialize(v Value) ([]E, error) {
	items, err := as[List](v)
	if err != nil {
		return nil, err
	}
	out := make([]E, len(items))
	for i, item := range items {
		if out[i], err = Materialize(l.elem, item); err != nil {
			return nil, wrapDecodeError(TypeArray, err, "element %d", i)
		}
	}
	return out, nil
}

// MapOf materializes a Map whose values all materialize into elem.
func MapOf[V any](elem Target[V]) Target[map[string]V] {
	return mapTarget[V]{elem: elem}
}

type mapTarget[V any] struct{ elem Target[V] }

func (mapTarget[V]) Matches(t ValueType) bool { return t == TypeMap }

func (m mapTarget[V]) Materialize(v Value) (map[string]V, error) {
	entries, err := as[Map](v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]V, len(entries))
	for k, e := range entries {
		item, err := Materialize(m.elem, e)
		if err != nil {
			return nil, wrapDecodeError(TypeMap, err, "key %q", k)
		}
		out[k] = item
	}
	return out, nil
}

// Optional accepts Null as a nil pointer in addition to what inner accepts.
func Optional[T any](inner Target[T]) Target[*T] {
	return optionalTarget[T]{inner: inner}
}

type optionalTarget[T any] struct{ inner Target[T] }

func (o optionalTarget[T]) Matches(t ValueType) bool {
	return t == TypeNull || o.inner.Matches(t)
}

func (o optionalTarget[T]) Materialize(v Value) (*T, error) {
	if _, ok := v.(Null); ok && !o.inner.Matches(TypeNull) {
		return nil, nil
	}
	out, err := o.inner.Materialize(v)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// candidateSet marks polymorphic targets, whose failures are reported as
// UnexpectedValueError rather than DecodeError.
type candidateSet interface{ candidates() int }

// OneOf tries each candidate in order and returns the first successful
// materialization. A candidate is skipped when it does not claim the tag or
// reports ErrMismatch; any other error is returned.
func OneOf[T any](candidates ...Target[T]) Target[T] {
	return oneOfTarget[T]{options: candidates}
}

type oneOfTarget[T any] struct{ options []Target[T] }

func (o oneOfTarget[T]) candidates() int { return len(o.options) }

func (o oneOfTarget[T]) Matches(t ValueType) bool {
	for _, c := range o.options {
		if c.Matches(t) {
			return true
		}
	}
	return false
}

func (o oneOfTarget[T]) Materialize(v Value) (T, error) {
	for _, c := range o.options {
		if !c.Matches(v.Type()) {
			continue
		}
		out, err := c.Materialize(v)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, ErrMismatch) {
			return out, err
		}
	}
	var zero T
	return zero, &UnexpectedValueError{Type: v.Type(), Value: v}
}
