// Package testutil holds fixtures and a fake Instagram server shared by the
// crawler's tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Post is the fixture form of one timeline post.
type Post struct {
	ID       string
	Comments int64
	Likes    int64
	Taken    int64
}

// Profile is a fake account served by MockInstagramServer. Pages[0] is
// embedded in the landing page; later pages are served by GraphQL.
type Profile struct {
	ID        string
	Username  string
	FullName  string
	Followers int64
	Pages     [][]Post
}

// MediaCount is the number of posts across every page.
func (p Profile) MediaCount() int64 {
	var n int64
	for _, page := range p.Pages {
		n += int64(len(page))
	}
	return n
}

// GeneratePosts returns count posts with IDs prefix-0 .. prefix-(count-1).
func GeneratePosts(count int, prefix string) []Post {
	posts := make([]Post, count)
	for i := range posts {
		posts[i] = Post{
			ID:       fmt.Sprintf("%s-%d", prefix, i),
			Comments: int64(i),
			Likes:    int64(i * 10),
			Taken:    1700000000 + int64(i),
		}
	}
	return posts
}

// CursorFor is the end cursor that leads to page index i.
func CursorFor(i int) string {
	return fmt.Sprintf("QVFD-cursor-%d==", i)
}

// GeneratePages splits total posts into pages of size pageSize.
func GeneratePages(total, pageSize int) [][]Post {
	var pages [][]Post
	all := GeneratePosts(total, "post")
	for len(all) > 0 {
		n := pageSize
		if n > len(all) {
			n = len(all)
		}
		pages = append(pages, all[:n])
		all = all[n:]
	}
	if len(pages) == 0 {
		pages = [][]Post{{}}
	}
	return pages
}

func edges(posts []Post) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(posts))
	for _, p := range posts {
		out = append(out, map[string]interface{}{
			"node": map[string]interface{}{
				"id":                      p.ID,
				"taken_at_timestamp":      p.Taken,
				"edge_media_to_comment":   map[string]interface{}{"count": p.Comments},
				"edge_media_preview_like": map[string]interface{}{"count": p.Likes},
				"is_video":                false,
			},
		})
	}
	return out
}

func pageInfo(hasNext bool, cursor string) map[string]interface{} {
	info := map[string]interface{}{"has_next_page": hasNext, "end_cursor": nil}
	if cursor != "" {
		info["end_cursor"] = cursor
	}
	return info
}

// Timeline is the edge_owner_to_timeline_media object for one page.
func Timeline(count int64, posts []Post, hasNext bool, cursor string) map[string]interface{} {
	return map[string]interface{}{
		"count":     count,
		"page_info": pageInfo(hasNext, cursor),
		"edges":     edges(posts),
	}
}

// SharedData is the window._sharedData object of a profile's landing page.
func SharedData(p Profile) map[string]interface{} {
	hasNext := len(p.Pages) > 1
	cursor := ""
	if hasNext {
		cursor = CursorFor(1)
	}
	var first []Post
	if len(p.Pages) > 0 {
		first = p.Pages[0]
	}
	return map[string]interface{}{
		"config":       map[string]interface{}{"csrf_token": "ignored"},
		"country_code": "US",
		"entry_data": map[string]interface{}{
			"ProfilePage": []interface{}{
				map[string]interface{}{
					"logging_page_id": "profilePage_" + p.ID,
					"graphql": map[string]interface{}{
						"user": map[string]interface{}{
							"id":                           p.ID,
							"username":                     p.Username,
							"full_name":                    p.FullName,
							"biography":                    "{not json} \"quoted\" </b>",
							"edge_followed_by":             map[string]interface{}{"count": p.Followers},
							"edge_owner_to_timeline_media": Timeline(p.MediaCount(), first, hasNext, cursor),
						},
					},
				},
			},
		},
	}
}

// ProfileHTML renders a landing page embedding data as window._sharedData.
func ProfileHTML(data interface{}) []byte {
	raw, _ := json.Marshal(data)
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\"><head>\n")
	b.WriteString("<script type=\"text/javascript\">window.__initialDataLoaded = function(){ return {}; };</script>\n")
	b.WriteString("<script type=\"text/javascript\">\n  window._sharedData = ")
	b.Write(raw)
	b.WriteString(";\n</script>\n")
	b.WriteString("<script type=\"text/javascript\">window.__bufferedData = {\"late\": true};</script>\n")
	b.WriteString("</head><body><span id=\"react-root\"></span></body></html>\n")
	return []byte(b.String())
}

// MediaJSON is a GraphQL continuation response.
func MediaJSON(count int64, posts []Post, hasNext bool, cursor string) []byte {
	raw, _ := json.Marshal(map[string]interface{}{
		"data": map[string]interface{}{
			"user": map[string]interface{}{
				"edge_owner_to_timeline_media": Timeline(count, posts, hasNext, cursor),
			},
		},
		"status": "ok",
	})
	return raw
}

// SearchUser is a fake account returned by blended search.
type SearchUser struct {
	Username  string
	FullName  string
	Private   bool
	Followers int64
}

// SearchTag is a fake hashtag returned by blended search.
type SearchTag struct {
	Name       string
	MediaCount int64
}

// UserSearchJSON is a blended search response listing users.
func UserSearchJSON(users []SearchUser) []byte {
	entries := make([]interface{}, 0, len(users))
	for i, u := range users {
		entries = append(entries, map[string]interface{}{
			"position": i,
			"user": map[string]interface{}{
				"pk":             fmt.Sprint(1000 + i),
				"username":       u.Username,
				"full_name":      u.FullName,
				"is_private":     u.Private,
				"follower_count": u.Followers,
			},
		})
	}
	raw, _ := json.Marshal(map[string]interface{}{
		"users":    entries,
		"places":   []interface{}{},
		"hashtags": []interface{}{},
		"status":   "ok",
	})
	return raw
}

// TagSearchJSON is a blended search response listing hashtags.
func TagSearchJSON(tags []SearchTag) []byte {
	entries := make([]interface{}, 0, len(tags))
	for i, t := range tags {
		entries = append(entries, map[string]interface{}{
			"position": i,
			"hashtag": map[string]interface{}{
				"name":        t.Name,
				"id":          fmt.Sprint(2000 + i),
				"media_count": t.MediaCount,
			},
		})
	}
	raw, _ := json.Marshal(map[string]interface{}{
		"users":    []interface{}{},
		"places":   []interface{}{},
		"hashtags": entries,
		"status":   "ok",
	})
	return raw
}
