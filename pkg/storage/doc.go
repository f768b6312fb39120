// Package storage is the CLI's record sink.
//
// Manager implements crawler.Sink. Records are written as one indented JSON
// file per record (json format), appended to records.jsonl (jsonl format) or
// streamed to stdout as JSON lines. File writes are atomic (temporary file
// and rename); an existing file is never replaced unless overwriting is
// enabled, a numbered sibling is written instead.
//
// An optional jq filter (github.com/itchyny/gojq) projects every record
// before it is written. The variables $kind and $name hold the record kind
// and its subject:
//
//	igcrawler profile natgeo --filter '{name: $name, likes: [.post_data[].like_count]}'
package storage
