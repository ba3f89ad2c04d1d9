package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"name=Ann", "age=33", "score=1.5", "admin=true", "team=null", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":  "Ann",
		"age":   int64(33),
		"score": 1.5,
		"admin": true,
		"team":  nil,
		"note":  "a=b",
	}, params)

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseParams([]string{"=1"})
	assert.Error(t, err)

	params, err = parseParams([]string{"mood=nan", "limit=Infinity", "low=-inf", "big=1e400"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"mood":  "nan",
		"limit": "Infinity",
		"low":   "-inf",
		"big":   "1e400",
	}, params)
}
