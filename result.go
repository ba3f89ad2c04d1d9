package falkorpersist

// QueryResult holds the decoded reply of a query.
type QueryResult[T any] struct {
	// Columns are the names of the returned columns; empty for queries
	// without a RETURN clause.
	Columns []string
	Rows    []T
	Stats   Statistics
}

// Row is one result row decoded into Values, aligned with Keys.
type Row struct {
	Keys   []string
	Values []Value
}

// Get returns the value of column key.
func (r Row) Get(key string) (Value, bool) {
	for i, k := range r.Keys {
		if k == key {
			return r.Values[i], true
		}
	}
	return nil, false
}

// RowTarget decodes the cells of a row, each a [tag, payload] pair, into T.
type RowTarget[T any] interface {
	DecodeRow(d *Decoder, columns []string, cells []any) (T, error)
}

// Rows decodes every column into a Value.
func Rows() RowTarget[Row] { return rowTarget{} }

type rowTarget struct{}

func (rowTarget) DecodeRow(d *Decoder, columns []string, cells []any) (Row, error) {
	values := make([]Value, len(cells))
	for i, cell := range cells {
		v, err := d.Pair(cell)
		if err != nil {
			return Row{}, err
		}
		values[i] = v
	}
	return Row{Keys: columns, Values: values}, nil
}

// Column decodes rows made of a single column into target.
func Column[T any](target Target[T]) RowTarget[T] { return columnTarget[T]{target: target} }

type columnTarget[T any] struct{ target Target[T] }

func (c columnTarget[T]) DecodeRow(d *Decoder, columns []string, cells []any) (T, error) {
	if len(cells) != 1 {
		var zero T
		return zero, decodeErrorf(TypeArray, "expected a single column, got %d", len(cells))
	}
	return DecodePair(d, c.target, cells[0])
}

// RowFunc adapts a function over decoded rows to a RowTarget.
func RowFunc[T any](fn func(Row) (T, error)) RowTarget[T] { return rowFunc[T](fn) }

type rowFunc[T any] func(Row) (T, error)

func (f rowFunc[T]) DecodeRow(d *Decoder, columns []string, cells []any) (T, error) {
	row, err := rowTarget{}.DecodeRow(d, columns, cells)
	if err != nil {
		var zero T
		return zero, err
	}
	return f(row)
}

// parseReply decodes a compact reply: either [stats] or
// [columns, rows, stats].
func parseReply[T any](d *Decoder, raw any, rt RowTarget[T]) (*QueryResult[T], error) {
	parts, err := asArray(TypeArray, raw)
	if err != nil {
		return nil, err
	}
	res := &QueryResult[T]{}
	switch len(parts) {
	case 1:
		if res.Stats, err = parseStatisticsRaw(parts[0]); err != nil {
			return nil, err
		}
		return res, nil
	case 3:
	default:
		return nil, decodeErrorf(TypeArray, "reply has %d sections", len(parts))
	}

	if res.Columns, err = parseColumns(parts[0]); err != nil {
		return nil, err
	}
	rows, err := asArray(TypeArray, parts[1])
	if err != nil {
		return nil, err
	}
	res.Rows = make([]T, 0, len(rows))
	for i, raw := range rows {
		cells, err := asArray(TypeArray, raw)
		if err != nil {
			return nil, err
		}
		if len(cells) != len(res.Columns) {
			return nil, decodeErrorf(TypeArray, "row %d has %d cells for %d columns", i, len(cells), len(res.Columns))
		}
		row, err := rt.DecodeRow(d, res.Columns, cells)
		if err != nil {
			return nil, wrapDecodeError(TypeArray, err, "row %d", i)
		}
		res.Rows = append(res.Rows, row)
	}
	if res.Stats, err = parseStatisticsRaw(parts[2]); err != nil {
		return nil, err
	}
	return res, nil
}

// parseColumns accepts [type, name] pairs as well as bare names.
func parseColumns(raw any) ([]string, error) {
	items, err := asArray(TypeArray, raw)
	if err != nil {
		return nil, err
	}
	columns := make([]string, len(items))
	for i, item := range items {
		if pair, ok := item.([]any); ok {
			if len(pair) != 2 {
				return nil, decodeErrorf(TypeArray, "column %d has %d elements", i, len(pair))
			}
			item = pair[1]
		}
		if columns[i], err = asString(TypeString, item); err != nil {
			return nil, err
		}
	}
	return columns, nil
}
