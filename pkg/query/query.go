package query

import (
	"fmt"
	"net/url"
	"strings"

	"igcrawler/pkg/instagram"
)

// QueryContext is a built GraphQL GET query. It is immutable once built.
type QueryContext struct {
	QueryHash   string
	EndpointURL string
	Variables   *Variables

	encoded string
}

// BuildPaginationQuery serializes vars and pairs them with queryHash.
func BuildPaginationQuery(endpointURL, queryHash string, vars *Variables) (*QueryContext, error) {
	if endpointURL == "" {
		return nil, fmt.Errorf("query endpoint URL is empty")
	}
	if queryHash == "" {
		return nil, fmt.Errorf("query hash is empty")
	}

	raw, err := MarshalVariables(vars)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize variables: %w", err)
	}

	// decoding our own output gives the query a private copy of vars
	snapshot, err := UnmarshalVariables(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot variables: %w", err)
	}

	return &QueryContext{
		QueryHash:   queryHash,
		EndpointURL: endpointURL,
		Variables:   snapshot,
		encoded:     encodePair(queryHash, string(raw)),
	}, nil
}

func encodePair(hash, variables string) string {
	return url.Values{
		"query_hash": {hash},
		"variables":  {variables},
	}.Encode()
}

// Encode returns the form-encoded query_hash/variables pair.
func (q *QueryContext) Encode() string {
	return q.encoded
}

// URL returns the endpoint with the encoded pair as its query string.
func (q *QueryContext) URL() string {
	sep := "?"
	if strings.Contains(q.EndpointURL, "?") {
		sep = "&"
	}
	return q.EndpointURL + sep + q.encoded
}

// Request returns the GET request for this query.
func (q *QueryContext) Request() *instagram.Request {
	return instagram.Get(q.URL())
}

// Decode recovers the query hash and variables from an encoded pair.
func Decode(encoded string) (string, *Variables, error) {
	values, err := url.ParseQuery(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("invalid query encoding: %w", err)
	}
	if _, ok := values["query_hash"]; !ok {
		return "", nil, fmt.Errorf("query_hash missing from %q", encoded)
	}
	raw, ok := values["variables"]
	if !ok {
		return "", nil, fmt.Errorf("variables missing from %q", encoded)
	}

	vars, err := UnmarshalVariables([]byte(raw[0]))
	if err != nil {
		return "", nil, fmt.Errorf("invalid variables: %w", err)
	}
	return values.Get("query_hash"), vars, nil
}
