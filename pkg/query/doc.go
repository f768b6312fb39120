// Package query builds the GraphQL GET queries used for pagination.
//
// Variables keep their insertion order and are serialized as compact JSON,
// so the encoded form never carries separator whitespace:
//
//	q, _ := query.BuildPaginationQuery(endpoint, hash,
//	    query.ContinuationVariables("123", 12, "ABC=="))
//	q.Encode() // query_hash=...&variables=%7B%22id%22%3A%22123%22%2C...
//
// Decode is the inverse of Encode.
package query
