package falkorpersist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReply_StatsOnly(t *testing.T) {
	res, err := parseReply(testDecoder(), statsOnly("Nodes created: 1", "Query internal execution time: 1 milliseconds"), Rows())
	require.NoError(t, err)
	assert.Empty(t, res.Columns)
	assert.Empty(t, res.Rows)
	assert.Equal(t, int64(1), res.Stats.NodesCreated)
}

func TestParseReply_Rows(t *testing.T) {
	raw := resultSet(columns("n", "count"),
		[]any{pair(TypeNode, nodePayload(1, []int64{0}, prop(0, TypeString, "Ann"))), integer(3)},
		[]any{pair(TypeNull, nil), integer(0)},
	)
	res, err := parseReply(testDecoder(), raw, Rows())
	require.NoError(t, err)
	assert.Equal(t, []string{"n", "count"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.True(t, res.Stats.CachedExecution)

	n, ok := res.Rows[0].Get("n")
	require.True(t, ok)
	assert.Equal(t, Node{ID: 1, Labels: []string{"User"}, Properties: Map{"name": String("Ann")}}, n)

	c, ok := res.Rows[1].Get("count")
	require.True(t, ok)
	assert.Equal(t, Integer(0), c)

	_, ok = res.Rows[1].Get("missing")
	assert.False(t, ok)
}

func TestParseReply_BareColumnNames(t *testing.T) {
	raw := []any{[]any{"x"}, []any{[]any{integer(1)}}, []any{}}
	res, err := parseReply(testDecoder(), raw, Column(AsInt64))
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, res.Columns)
	assert.Equal(t, []int64{1}, res.Rows)
}

func TestParseReply_Column(t *testing.T) {
	raw := resultSet(columns("name"), []any{str("a")}, []any{str("b")})
	res, err := parseReply(testDecoder(), raw, Column(AsString))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.Rows)

	raw = resultSet(columns("a", "b"), []any{str("a"), str("b")})
	_, err = parseReply(testDecoder(), raw, Column(AsString))
	assert.Error(t, err)
}

func TestParseReply_RowFunc(t *testing.T) {
	type pairRow struct {
		Name string
		N    int64
	}
	rt := RowFunc(func(r Row) (pairRow, error) {
		name, err := Materialize(AsString, r.Values[0])
		if err != nil {
			return pairRow{}, err
		}
		n, err := Materialize(AsInt64, r.Values[1])
		return pairRow{Name: name, N: n}, err
	})
	res, err := parseReply(testDecoder(), resultSet(columns("name", "n"), []any{str("a"), integer(2)}), rt)
	require.NoError(t, err)
	assert.Equal(t, []pairRow{{Name: "a", N: 2}}, res.Rows)
}

func TestParseReply_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"not an array", "OK"},
		{"two sections", []any{[]any{}, []any{}}},
		{"cell count", resultSet(columns("a", "b"), []any{integer(1)})},
		{"bad cell", resultSet(columns("a"), []any{[]any{int64(42), "x"}})},
		{"bad column", []any{[]any{[]any{int64(1)}}, []any{}, []any{}}},
		{"bad stats", []any{[]any{int64(5)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := parseReply(testDecoder(), tt.raw, Rows())
			assert.Error(t, err)
			assert.Nil(t, res)
		})
	}
}
