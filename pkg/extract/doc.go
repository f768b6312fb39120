// Package extract maps raw profile, continuation and search responses into
// crawler records. Every required key is checked; a missing one is reported
// as a parsing error naming its JSON path.
package extract
