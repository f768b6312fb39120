package models

// Wire shapes of the platform's JSON documents. Every field the crawler
// depends on is a pointer so that a missing key can be told apart from a
// zero value and reported as schema drift.

// SharedData is the bootstrap object embedded in the profile page as
// window._sharedData.
type SharedData struct {
	EntryData *EntryData `json:"entry_data"`
}

type EntryData struct {
	ProfilePage []ProfilePage `json:"ProfilePage"`
}

type ProfilePage struct {
	GraphQL *GraphQL `json:"graphql"`
}

type GraphQL struct {
	User *User `json:"user"`
}

// InstagramResponse is the body of a GraphQL continuation query.
type InstagramResponse struct {
	Data   *Data  `json:"data"`
	Status string `json:"status"`
}

type Data struct {
	User *User `json:"user"`
}

type User struct {
	ID                       *string                   `json:"id"`
	FullName                 *string                   `json:"full_name"`
	EdgeFollowedBy           *Count                    `json:"edge_followed_by"`
	EdgeOwnerToTimelineMedia *EdgeOwnerToTimelineMedia `json:"edge_owner_to_timeline_media"`
}

type Count struct {
	Count *int64 `json:"count"`
}

type EdgeOwnerToTimelineMedia struct {
	Count    *int64    `json:"count"`
	PageInfo *PageInfo `json:"page_info"`
	Edges    *[]Edge   `json:"edges"`
}

type PageInfo struct {
	HasNextPage *bool   `json:"has_next_page"`
	EndCursor   *string `json:"end_cursor"`
}

type Edge struct {
	Node *Node `json:"node"`
}

type Node struct {
	ID                   *string `json:"id"`
	TakenAtTimestamp     *int64  `json:"taken_at_timestamp"`
	EdgeMediaToComment   *Count  `json:"edge_media_to_comment"`
	EdgeMediaPreviewLike *Count  `json:"edge_media_preview_like"`
}

// TopSearchResponse is the body returned by the blended search endpoint.
type TopSearchResponse struct {
	Users    *[]UserEntry    `json:"users"`
	Hashtags *[]HashtagEntry `json:"hashtags"`
}

type UserEntry struct {
	User *SearchUser `json:"user"`
}

type SearchUser struct {
	Username      *string `json:"username"`
	FullName      *string `json:"full_name"`
	IsPrivate     *bool   `json:"is_private"`
	FollowerCount *int64  `json:"follower_count"`
}

type HashtagEntry struct {
	Hashtag *SearchHashtag `json:"hashtag"`
}

type SearchHashtag struct {
	Name       *string `json:"name"`
	MediaCount *int64  `json:"media_count"`
}
