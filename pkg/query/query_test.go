package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeExample(t *testing.T) {
	q, err := BuildPaginationQuery("https://www.instagram.com/graphql/query/", "abcd",
		NewVariables(P("id", "123"), P("first", 12), P("after", "ABC==")))
	require.NoError(t, err)

	assert.Equal(t,
		"query_hash=abcd&variables=%7B%22id%22%3A%22123%22%2C%22first%22%3A12%2C%22after%22%3A%22ABC%3D%3D%22%7D",
		q.Encode())
	assert.Equal(t, "https://www.instagram.com/graphql/query/?"+q.Encode(), q.URL())
	assert.Equal(t, q.URL(), q.Request().URL)
	assert.Equal(t, "GET", q.Request().Method)
}

func TestEncodeHasNoSeparatorArtifacts(t *testing.T) {
	q, err := BuildPaginationQuery("https://example.test/q", "h",
		NewVariables(P("a", 1), P("b", []any{1, 2}), P("c", NewVariables(P("d", true)))))
	require.NoError(t, err)

	assert.NotContains(t, q.Encode(), "%3A+")
	assert.NotContains(t, q.Encode(), "%2C+")
}

func TestURLWithExistingQuery(t *testing.T) {
	q, err := BuildPaginationQuery("https://example.test/q?x=1", "h", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/q?x=1&query_hash=h&variables=%7B%7D", q.URL())
}

func TestRoundTrip(t *testing.T) {
	nested := NewVariables(P("z", "last"), P("a", nil))
	vars := NewVariables(
		P("tag_name", "café"),
		P("include_reel", true),
		P("first", 12),
		P("ratio", 0.5),
		P("whole", 2.0),
		P("note", `say "hi": a, b`),
		P("list", []any{"x", 3, false}),
		P("nested", nested),
		P("emoji", "📷"),
	)

	q, err := BuildPaginationQuery("https://example.test/q", "feedc0de", vars)
	require.NoError(t, err)

	hash, decoded, err := Decode(q.Encode())
	require.NoError(t, err)
	assert.Equal(t, "feedc0de", hash)

	var keys []string
	for pair := decoded.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	assert.Equal(t, []string{"tag_name", "include_reel", "first", "ratio", "whole", "note", "list", "nested", "emoji"}, keys)

	assert.Equal(t, "café", decoded.Value("tag_name"))
	assert.Equal(t, true, decoded.Value("include_reel"))
	assert.Equal(t, int64(12), decoded.Value("first"))
	assert.Equal(t, 0.5, decoded.Value("ratio"))
	assert.Equal(t, 2.0, decoded.Value("whole"))
	assert.Equal(t, `say "hi": a, b`, decoded.Value("note"))
	assert.Equal(t, []any{"x", int64(3), false}, decoded.Value("list"))
	assert.Equal(t, "📷", decoded.Value("emoji"))

	inner, ok := decoded.Value("nested").(*Variables)
	require.True(t, ok)
	assert.Equal(t, "z", inner.Oldest().Key)
	assert.Nil(t, inner.Value("a"))

	// re-encoding the decoded pair is byte identical
	again, err := BuildPaginationQuery("https://example.test/q", hash, decoded)
	require.NoError(t, err)
	assert.Equal(t, q.Encode(), again.Encode())
}

func TestMarshalEscaping(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected string
	}{
		{"plain", "abc", `"abc"`},
		{"latin", "café", `"caf\u00e9"`},
		{"astral", "📷", `"\ud83d\udcf7"`},
		{"control", "a\nb\t\x01", `"a\nb\t\u0001"`},
		{"html is kept", "<a&b>", `"<a&b>"`},
		{"quotes", `"\`, `"\"\\"`},
		{"del", "\x7f", `"\u007f"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := MarshalVariables(NewVariables(P("v", tt.value)))
			require.NoError(t, err)
			assert.Equal(t, `{"v":`+tt.expected+`}`, string(raw))
		})
	}
}

func TestMarshalNumbers(t *testing.T) {
	raw, err := MarshalVariables(NewVariables(
		P("i", 12), P("i64", int64(-7)), P("f", 1.5), P("whole", 3.0), P("big", 1e20), P("tiny", 1e-7),
	))
	require.NoError(t, err)
	assert.Equal(t, `{"i":12,"i64":-7,"f":1.5,"whole":3.0,"big":1e+20,"tiny":1e-07}`, string(raw))
}

func TestMarshalMapSortsKeys(t *testing.T) {
	raw, err := MarshalVariables(NewVariables(P("m", map[string]any{"b": 1, "a": 2})))
	require.NoError(t, err)
	assert.Equal(t, `{"m":{"a":2,"b":1}}`, string(raw))
}

func TestMarshalRejectsUnsupported(t *testing.T) {
	_, err := BuildPaginationQuery("https://example.test/q", "h", NewVariables(P("ch", make(chan int))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ch")
}

func TestBuildValidation(t *testing.T) {
	_, err := BuildPaginationQuery("", "h", nil)
	assert.Error(t, err)
	_, err = BuildPaginationQuery("https://example.test/q", "", nil)
	assert.Error(t, err)
}

func TestBuildSnapshotsVariables(t *testing.T) {
	vars := ContinuationVariables("1", 12, "c1")
	q, err := BuildPaginationQuery("https://example.test/q", "h", vars)
	require.NoError(t, err)

	vars.Set("after", "c2")
	assert.Equal(t, "c1", q.Variables.Value("after"))
	assert.True(t, strings.Contains(q.Encode(), "c1"))
}

func TestHelpers(t *testing.T) {
	raw, err := MarshalVariables(ContinuationVariables("42", 12, "QVFD"))
	require.NoError(t, err)
	assert.Equal(t, `{"id":"42","first":12,"after":"QVFD"}`, string(raw))

	raw, err = MarshalVariables(TagExploreVariables("sunset"))
	require.NoError(t, err)
	assert.Equal(t, `{"tag_name":"sunset","include_reel":true,"include_logged_out":false}`, string(raw))
}

func TestDecodeErrors(t *testing.T) {
	tests := []string{
		"variables=%7B%7D",
		"query_hash=h",
		"query_hash=h&variables=%5B1%5D",
		"query_hash=h&variables=%7B%22a%22%3A",
		"query_hash=h&variables=%7B%7D%7B%7D",
		"query_hash=h&variables=%zz",
	}
	for _, encoded := range tests {
		_, _, err := Decode(encoded)
		assert.Error(t, err, encoded)
	}
}
