package falkorpersist

import (
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// ErrUnsupportedParam is returned for parameter values that have no Cypher
// literal form.
var ErrUnsupportedParam = errors.New("unsupported parameter type")

// ParamMarshaler is implemented by types that render their own Cypher literal.
// The returned text is inserted verbatim into the query preamble.
type ParamMarshaler interface {
	MarshalCypher() (string, error)
}

// BuildQuery prefixes query with a CYPHER preamble binding params:
//
//	CYPHER name="Jamie" age=42 MATCH (p {name: $name}) RETURN p
//
// Parameter names are emitted in sorted order. The query is returned unchanged
// when params is empty.
func BuildQuery(query string, params map[string]any) (string, error) {
	if len(params) == 0 {
		return query, nil
	}
	names := make([]string, 0, len(params))
	for name := range params {
		if !isIdentifier(name) {
			return "", fmt.Errorf("invalid parameter name %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("CYPHER")
	for _, name := range names {
		literal, err := EncodeParam(params[name])
		if err != nil {
			return "", fmt.Errorf("parameter %q: %w", name, err)
		}
		b.WriteByte(' ')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(literal)
	}
	b.WriteByte(' ')
	b.WriteString(query)
	return b.String(), nil
}

// EncodeParam renders v as a Cypher literal.
//
//	"Jamie"                     → "Jamie"   (double quoted, JSON escaped)
//	42, 1.5, true, nil          → 42, 1.5, true, null
//	[]any{1, "a"}               → [1,"a"]
//	map[string]any{"name": "x"} → {name:"x"}
//	Point{1, 2}                 → {latitude: 1.0,longitude: 2.0}
//
// Structs render as maps keyed by their falkor tag property names (or field
// names). Values implementing encoding.TextMarshaler or fmt.Stringer fall back
// to a string literal of their text form.
func EncodeParam(v any) (string, error) {
	var b strings.Builder
	if err := encodeParam(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

func encodeParam(b *strings.Builder, v any) error {
	switch x := v.(type) {
	case nil, Null:
		b.WriteString("null")
	case ParamMarshaler:
		s, err := x.MarshalCypher()
		if err != nil {
			return err
		}
		b.WriteString(s)
	case string:
		quoteString(b, x)
	case String:
		quoteString(b, string(x))
	case bool:
		b.WriteString(strconv.FormatBool(x))
	case Boolean:
		b.WriteString(strconv.FormatBool(bool(x)))
	case int:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case int8:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case int16:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case int32:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case Integer:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case uint:
		b.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint8:
		b.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint16:
		b.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint32:
		b.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint64:
		b.WriteString(strconv.FormatUint(x, 10))
	case float32:
		return formatFloat(b, float64(x), 32)
	case float64:
		return formatFloat(b, x, 64)
	case Double:
		return formatFloat(b, float64(x), 64)
	case List:
		b.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := encodeParam(b, e); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case Map:
		return encodeEntries(b, func(yield func(string, any) error) error {
			for _, k := range sortedKeys(x) {
				if err := yield(k, x[k]); err != nil {
					return err
				}
			}
			return nil
		})
	case Point:
		encodePoint(b, x.Latitude, x.Longitude)
	case dbtype.Point2D:
		encodePoint(b, x.Y, x.X)
	case Vector32:
		b.WriteString("vecf32([")
		for i, f := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := formatFloat(b, float64(f), 32); err != nil {
				return err
			}
		}
		b.WriteString("])")
	case LocalDateTime:
		encodeTemporal(b, "localdatetime", x.Time.UTC().Format("2006-01-02T15:04:05"))
	case time.Time:
		encodeTemporal(b, "localdatetime", x.UTC().Format("2006-01-02T15:04:05"))
	case dbtype.LocalDateTime:
		encodeTemporal(b, "localdatetime", x.Time().Format("2006-01-02T15:04:05"))
	case LocalDate:
		encodeTemporal(b, "date", x.String())
	case dbtype.Date:
		encodeTemporal(b, "date", x.Time().Format(time.DateOnly))
	case LocalTime:
		encodeTemporal(b, "localtime", x.String())
	case dbtype.LocalTime:
		encodeTemporal(b, "localtime", x.Time().Format(time.TimeOnly))
	case Duration:
		encodeTemporal(b, "duration", isoDuration(x.Duration))
	case time.Duration:
		encodeTemporal(b, "duration", isoDuration(x))
	case Node, Relationship, Path:
		return fmt.Errorf("%w: %T cannot be sent as a parameter", ErrUnsupportedParam, v)
	case encoding.TextMarshaler:
		text, err := x.MarshalText()
		if err != nil {
			return err
		}
		quoteString(b, string(text))
	case fmt.Stringer:
		quoteString(b, x.String())
	default:
		return encodeReflect(b, reflect.ValueOf(v))
	}
	return nil
}

// encodeReflect handles slices, string-keyed maps, structs and pointers of
// arbitrary element types.
func encodeReflect(b *strings.Builder, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.String:
		quoteString(b, rv.String())
		return nil
	case reflect.Bool:
		b.WriteString(strconv.FormatBool(rv.Bool()))
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(strconv.FormatInt(rv.Int(), 10))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		b.WriteString(strconv.FormatUint(rv.Uint(), 10))
		return nil
	case reflect.Float32, reflect.Float64:
		return formatFloat(b, rv.Float(), rv.Type().Bits())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			b.WriteString("null")
			return nil
		}
		return encodeParam(b, rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			b.WriteString("null")
			return nil
		}
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			quoteString(b, string(rv.Bytes()))
			return nil
		}
		b.WriteByte('[')
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := encodeParam(b, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		b.WriteByte(']')
		return nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%w: map key type %s", ErrUnsupportedParam, rv.Type().Key())
		}
		if rv.IsNil() {
			b.WriteString("null")
			return nil
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		return encodeEntries(b, func(yield func(string, any) error) error {
			for _, k := range keys {
				if err := yield(k.String(), rv.MapIndex(k).Interface()); err != nil {
					return err
				}
			}
			return nil
		})
	case reflect.Struct:
		meta := structParamFields(rv.Type())
		return encodeEntries(b, func(yield func(string, any) error) error {
			for _, f := range meta {
				if err := yield(f.prop, rv.FieldByIndex(f.index).Interface()); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedParam, rv.Type())
}

func encodeEntries(b *strings.Builder, each func(yield func(string, any) error) error) error {
	b.WriteByte('{')
	first := true
	err := each(func(key string, v any) error {
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(quoteIdentifier(key))
		b.WriteByte(':')
		return encodeParam(b, v)
	})
	b.WriteByte('}')
	return err
}

func encodePoint(b *strings.Builder, lat, lon float64) {
	b.WriteString("{latitude: ")
	_ = formatFloat(b, lat, 64)
	b.WriteString(",longitude: ")
	_ = formatFloat(b, lon, 64)
	b.WriteByte('}')
}

func encodeTemporal(b *strings.Builder, fn, text string) {
	b.WriteString(fn)
	b.WriteByte('(')
	quoteString(b, text)
	b.WriteByte(')')
}

func isoDuration(d time.Duration) string {
	secs := strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
	return "PT" + secs + "S"
}

// formatFloat always emits a decimal point so the server keeps the value a
// double.
func formatFloat(b *strings.Builder, f float64, bits int) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: non-finite float %v", ErrUnsupportedParam, f)
	}
	s := strconv.FormatFloat(f, 'f', -1, bits)
	b.WriteString(s)
	if !strings.ContainsRune(s, '.') {
		b.WriteString(".0")
	}
	return nil
}

// quoteString writes s as a double-quoted literal with JSON escaping, which
// Cypher string literals accept.
func quoteString(b *strings.Builder, s string) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	b.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}

func quoteIdentifier(name string) string {
	if isIdentifier(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
