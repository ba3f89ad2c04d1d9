package falkorpersist

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

// tagName is the struct tag read by the persistence layer, e.g.
//
//	UserID string  `falkor:"pk,property:userId"`
//	Bio    *string `falkor:"property:bio"`
//	Nick   string  `falkor:"property:nick,optional"`
const tagName = "falkor"

// entityMetadata holds the parsed `falkor` tag information for a specific struct type.
// This metadata is cached by the Client to avoid costly reflection on every operation.
type entityMetadata struct {
	// Label is the graph node label, defaulting to the struct's name.
	Label string
	// PKField is the name of the struct field marked as the primary key.
	PKField string
	// PKProp is the property name of the primary key in the database.
	PKProp string
	// Mappings lists the tagged fields in declaration order.
	Mappings []fieldMapping
}

type fieldMapping struct {
	Field    string
	Index    []int
	Prop     string
	Optional bool
}

// labeler lets a struct override the label derived from its type name.
type labeler interface {
	GraphLabel() string
}

// parseTagsFromType reads the `falkor` tags of a struct (or pointer to struct)
// type. At most one field may carry pk; every tagged field must be exported
// and name its property. The label is the type name unless the type
// implements GraphLabel.
func parseTagsFromType(typ reflect.Type) (*entityMetadata, error) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type %s is not a struct", typ.Name())
	}

	meta := &entityMetadata{Label: typ.Name()}
	if l, ok := reflect.New(typ).Interface().(labeler); ok {
		meta.Label = l.GraphLabel()
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get(tagName)
		if tag == "" || tag == "-" {
			continue
		}
		if !field.IsExported() {
			return nil, fmt.Errorf("field %s is tagged but not exported", field.Name)
		}

		m := fieldMapping{Field: field.Name, Index: field.Index}
		isPk := false
		for _, part := range strings.Split(tag, ",") {
			switch {
			case part == "pk":
				isPk = true
			case part == "optional":
				m.Optional = true
			case strings.HasPrefix(part, "property:"):
				m.Prop = strings.TrimPrefix(part, "property:")
			}
		}
		if m.Prop == "" {
			return nil, fmt.Errorf("field %s is missing 'property' tag component", field.Name)
		}
		if isPk {
			if meta.PKField != "" {
				return nil, fmt.Errorf("struct %s declares more than one primary key", typ.Name())
			}
			meta.PKField = field.Name
			meta.PKProp = m.Prop
		}
		meta.Mappings = append(meta.Mappings, m)
	}
	return meta, nil
}

// parseTags is a generic convenience wrapper around parseTagsFromType.
func parseTags[T any]() (*entityMetadata, error) {
	return parseTagsFromType(reflect.TypeOf((*T)(nil)).Elem())
}

// SchemaFromTags derives a node record for T from its `falkor` struct tags.
// Pointer fields and fields tagged optional accept a missing or null
// property.
func SchemaFromTags[T any]() (*Record[T], error) {
	meta, err := parseTags[T]()
	if err != nil {
		return nil, err
	}
	return recordFromMetadata[T](meta)
}

func recordFromMetadata[T any](meta *entityMetadata) (*Record[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	fields := make([]Field[T], 0, len(meta.Mappings))
	for _, m := range meta.Mappings {
		sf := typ.FieldByIndex(m.Index)
		conv, err := converterFor(sf.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		if m.Optional {
			conv = conv.orZero(sf.Type)
		}
		index := m.Index
		fields = append(fields, Field[T]{
			name:   m.Prop,
			accept: conv.accept,
			assign: func(dst *T, v Value) error {
				rv, err := conv.convert(v)
				if err != nil {
					return err
				}
				reflect.ValueOf(dst).Elem().FieldByIndex(index).Set(rv)
				return nil
			},
		})
	}
	return NodeRecord(meta.Label, fields...), nil
}

// converter materializes Values into a reflect type.
type converter struct {
	accept  func(ValueType) bool
	convert func(Value) (reflect.Value, error)
}

func (c converter) orZero(t reflect.Type) converter {
	return converter{
		accept: func(vt ValueType) bool { return vt == TypeNull || c.accept(vt) },
		convert: func(v Value) (reflect.Value, error) {
			if _, ok := v.(Null); ok {
				return reflect.Zero(t), nil
			}
			return c.convert(v)
		},
	}
}

func accepts(types ...ValueType) func(ValueType) bool {
	return func(t ValueType) bool {
		for _, want := range types {
			if want == t {
				return true
			}
		}
		return false
	}
}

var (
	valueIfaceType = reflect.TypeOf((*Value)(nil)).Elem()
	timeType       = reflect.TypeOf(time.Time{})
	durationType   = reflect.TypeOf(time.Duration(0))
)

func converterFor(t reflect.Type) (converter, error) {
	switch {
	case t == valueIfaceType:
		return converter{
			accept:  AsAny.Matches,
			convert: func(v Value) (reflect.Value, error) { return reflect.ValueOf(&v).Elem(), nil },
		}, nil
	case t.Kind() != reflect.Interface && t.Kind() != reflect.Ptr && t.Implements(valueIfaceType):
		zero := reflect.Zero(t).Interface().(Value)
		return converter{
			accept: accepts(zero.Type()),
			convert: func(v Value) (reflect.Value, error) {
				rv := reflect.ValueOf(v)
				if rv.Type() != t {
					return reflect.Value{}, decodeErrorf(v.Type(), "cannot assign %T to %s", v, t)
				}
				return rv, nil
			},
		}, nil
	case t == timeType:
		return fromTarget(OneOf(AsDateTime, TargetFunc(func(v Value) (time.Time, error) {
			d, err := as[LocalDate](v)
			return d.Time(), err
		}, TypeDate))), nil
	case t == durationType:
		return fromTarget(AsDuration), nil
	}

	switch t.Kind() {
	case reflect.Ptr:
		inner, err := converterFor(t.Elem())
		if err != nil {
			return converter{}, err
		}
		return converter{
			accept: func(vt ValueType) bool { return vt == TypeNull || inner.accept(vt) },
			convert: func(v Value) (reflect.Value, error) {
				if _, ok := v.(Null); ok {
					return reflect.Zero(t), nil
				}
				rv, err := inner.convert(v)
				if err != nil {
					return reflect.Value{}, err
				}
				ptr := reflect.New(t.Elem())
				ptr.Elem().Set(rv)
				return ptr, nil
			},
		}, nil
	case reflect.String:
		return convertible(fromTarget(AsString), t), nil
	case reflect.Bool:
		return convertible(fromTarget(AsBool), t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return convertible(fromTarget(AsInt64), t), nil
	case reflect.Float32, reflect.Float64:
		return convertible(fromTarget(AsFloat64), t), nil
	case reflect.Slice:
		return sliceConverter(t)
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return converter{}, fmt.Errorf("unsupported map key type %s", t.Key())
		}
		elem, err := converterFor(t.Elem())
		if err != nil {
			return converter{}, err
		}
		return converter{
			accept: accepts(TypeMap),
			convert: func(v Value) (reflect.Value, error) {
				entries, err := as[Map](v)
				if err != nil {
					return reflect.Value{}, err
				}
				out := reflect.MakeMapWithSize(t, len(entries))
				for k, e := range entries {
					if e == nil {
						e = Null{}
					}
					if !elem.accept(e.Type()) {
						return reflect.Value{}, decodeErrorf(e.Type(), "map key %q not assignable to %s", k, t.Elem())
					}
					rv, err := elem.convert(e)
					if err != nil {
						return reflect.Value{}, err
					}
					out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), rv)
				}
				return out, nil
			},
		}, nil
	}
	return converter{}, fmt.Errorf("unsupported field type %s", t)
}

func sliceConverter(t reflect.Type) (converter, error) {
	elem, err := converterFor(t.Elem())
	if err != nil {
		return converter{}, err
	}
	types := []ValueType{TypeArray}
	if k := t.Elem().Kind(); k == reflect.Float32 || k == reflect.Float64 {
		types = append(types, TypeVector32)
	}
	return converter{
		accept: accepts(types...),
		convert: func(v Value) (reflect.Value, error) {
			if vec, ok := v.(Vector32); ok {
				out := reflect.MakeSlice(t, len(vec), len(vec))
				for i, f := range vec {
					out.Index(i).Set(reflect.ValueOf(float64(f)).Convert(t.Elem()))
				}
				return out, nil
			}
			items, err := as[List](v)
			if err != nil {
				return reflect.Value{}, err
			}
			out := reflect.MakeSlice(t, len(items), len(items))
			for i, item := range items {
				if item == nil {
					item = Null{}
				}
				if !elem.accept(item.Type()) {
					return reflect.Value{}, decodeErrorf(item.Type(), "element %d not assignable to %s", i, t.Elem())
				}
				rv, err := elem.convert(item)
				if err != nil {
					return reflect.Value{}, err
				}
				out.Index(i).Set(rv)
			}
			return out, nil
		},
	}, nil
}

func fromTarget[T any](target Target[T]) converter {
	return converter{
		accept: target.Matches,
		convert: func(v Value) (reflect.Value, error) {
			out, err := target.Materialize(v)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(out), nil
		},
	}
}

// convertible converts the result of c to the named or sized type t. Numbers
// that do not fit t are rejected.
func convertible(c converter, t reflect.Type) converter {
	return converter{
		accept: c.accept,
		convert: func(v Value) (reflect.Value, error) {
			rv, err := c.convert(v)
			if err != nil {
				return reflect.Value{}, err
			}
			if overflows(rv, t) {
				return reflect.Value{}, decodeErrorf(v.Type(), "%v overflows %s", v, t)
			}
			return rv.Convert(t), nil
		},
	}
}

func overflows(rv reflect.Value, t reflect.Type) bool {
	dst := reflect.New(t).Elem()
	switch {
	case rv.CanInt() && dst.CanInt():
		return dst.OverflowInt(rv.Int())
	case rv.CanInt() && dst.CanUint():
		n := rv.Int()
		return n < 0 || dst.OverflowUint(uint64(n))
	case rv.CanFloat() && dst.CanFloat():
		return dst.OverflowFloat(rv.Float())
	}
	return false
}

type paramField struct {
	prop  string
	index []int
}

var paramFieldCache sync.Map // reflect.Type -> []paramField

// structParamFields lists the fields a struct parameter is encoded from: the
// `falkor` tagged fields when the struct has any, otherwise every exported
// field under its Go name.
func structParamFields(typ reflect.Type) []paramField {
	if cached, ok := paramFieldCache.Load(typ); ok {
		return cached.([]paramField)
	}
	var tagged, exported []paramField
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get(tagName)
		if tag == "-" {
			continue
		}
		exported = append(exported, paramField{prop: field.Name, index: field.Index})
		for _, part := range strings.Split(tag, ",") {
			if prop, ok := strings.CutPrefix(part, "property:"); ok {
				tagged = append(tagged, paramField{prop: prop, index: field.Index})
			}
		}
	}
	fields := exported
	if len(tagged) > 0 {
		fields = tagged
	}
	paramFieldCache.Store(typ, fields)
	return fields
}
