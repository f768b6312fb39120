package models

import (
	"encoding/json"
	"time"
)

// PostRecord is the flattened view of one timeline post.
type PostRecord struct {
	PostID        string `json:"post_id"`
	CommentCount  int64  `json:"comment_count"`
	TimestampUnix int64  `json:"timestamp"`
	LikeCount     int64  `json:"like_count"`
}

// AggregateResult accumulates a profile across every page of its timeline.
// Posts only ever grow, in page-arrival order.
type AggregateResult struct {
	PageID        string       `json:"page_id"`
	FollowerCount int64        `json:"follower_count"`
	PageName      string       `json:"page_name"`
	MediaCount    int64        `json:"media_count"`
	HasNextPage   bool         `json:"has_next_page"`
	EndCursor     *string      `json:"end_cursor"`
	Posts         []PostRecord `json:"post_data"`
}

// Clone returns a copy that shares nothing with the receiver.
func (a *AggregateResult) Clone() *AggregateResult {
	if a == nil {
		return nil
	}
	c := *a
	if a.EndCursor != nil {
		cursor := *a.EndCursor
		c.EndCursor = &cursor
	}
	c.Posts = make([]PostRecord, len(a.Posts))
	copy(c.Posts, a.Posts)
	return &c
}

// Cursor returns the end cursor or an empty string when it is null.
func (a *AggregateResult) Cursor() string {
	if a == nil || a.EndCursor == nil {
		return ""
	}
	return *a.EndCursor
}

type UserRecord struct {
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	IsPrivate     bool   `json:"is_private"`
	FollowerCount int64  `json:"follower_count"`
}

type TagRecord struct {
	Name       string `json:"name"`
	MediaCount int64  `json:"count"`
}

// RecordKind identifies the payload carried by a Record.
type RecordKind string

const (
	KindProfile    RecordKind = "profile"
	KindUserSearch RecordKind = "user_search"
	KindTagSearch  RecordKind = "tag_search"
	KindTagExplore RecordKind = "tag_explore"
)

// Record is anything a crawl job hands to its sink.
type Record interface {
	Kind() RecordKind
	// Name is a stable identifier for the record's subject, used for file names.
	Name() string
}

// ProfileResult is the terminal (or partial) output of a profile crawl.
type ProfileResult struct {
	Target    string    `json:"target"`
	Pages     int       `json:"pages"`
	Partial   bool      `json:"partial,omitempty"`
	CrawledAt time.Time `json:"crawled_at"`
	AggregateResult
}

func (r *ProfileResult) Kind() RecordKind { return KindProfile }
func (r *ProfileResult) Name() string     { return r.Target }

type UserSearchResult struct {
	Query     string       `json:"query"`
	Users     []UserRecord `json:"users"`
	CrawledAt time.Time    `json:"crawled_at"`
}

func (r *UserSearchResult) Kind() RecordKind { return KindUserSearch }
func (r *UserSearchResult) Name() string     { return r.Query }

type TagSearchResult struct {
	Query     string      `json:"query"`
	Tags      []TagRecord `json:"hashtags"`
	CrawledAt time.Time   `json:"crawled_at"`
}

func (r *TagSearchResult) Kind() RecordKind { return KindTagSearch }
func (r *TagSearchResult) Name() string     { return r.Query }

// ExploreResult carries the raw tag-explore response. No pagination
// contract is assumed for this endpoint.
type ExploreResult struct {
	TagName   string          `json:"tag_name"`
	Status    int             `json:"status"`
	Body      json.RawMessage `json:"body"`
	CrawledAt time.Time       `json:"crawled_at"`
}

func (r *ExploreResult) Kind() RecordKind { return KindTagExplore }
func (r *ExploreResult) Name() string     { return r.TagName }
