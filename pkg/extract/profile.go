package extract

import (
	"encoding/json"
	"fmt"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/models"
)

const (
	userPath         = "entry_data.ProfilePage[0].graphql.user"
	continuationPath = "data.user.edge_owner_to_timeline_media"
)

// FirstPage maps the profile landing page into a fresh aggregate.
func FirstPage(htmlBody []byte) (*models.AggregateResult, error) {
	raw, err := ScriptJSON(htmlBody, SharedDataMarker)
	if err != nil {
		return nil, err
	}

	var shared models.SharedData
	if err := json.Unmarshal(raw, &shared); err != nil {
		return nil, errs.NewParseError(SharedDataMarker, "malformed bootstrap JSON", err)
	}

	switch {
	case shared.EntryData == nil:
		return nil, missing("entry_data")
	case len(shared.EntryData.ProfilePage) == 0:
		return nil, missing("entry_data.ProfilePage[0]")
	case shared.EntryData.ProfilePage[0].GraphQL == nil:
		return nil, missing("entry_data.ProfilePage[0].graphql")
	case shared.EntryData.ProfilePage[0].GraphQL.User == nil:
		return nil, missing(userPath)
	}
	user := shared.EntryData.ProfilePage[0].GraphQL.User

	if user.ID == nil {
		return nil, missing(userPath + ".id")
	}
	if user.EdgeFollowedBy == nil || user.EdgeFollowedBy.Count == nil {
		return nil, missing(userPath + ".edge_followed_by.count")
	}
	if user.FullName == nil {
		return nil, missing(userPath + ".full_name")
	}

	mediaPath := userPath + ".edge_owner_to_timeline_media"
	media := user.EdgeOwnerToTimelineMedia
	if media == nil {
		return nil, missing(mediaPath)
	}
	if media.Count == nil {
		return nil, missing(mediaPath + ".count")
	}

	posts, info, err := timeline(media, mediaPath)
	if err != nil {
		return nil, err
	}

	return &models.AggregateResult{
		PageID:        *user.ID,
		FollowerCount: *user.EdgeFollowedBy.Count,
		PageName:      *user.FullName,
		MediaCount:    *media.Count,
		HasNextPage:   *info.HasNextPage,
		EndCursor:     info.EndCursor,
		Posts:         posts,
	}, nil
}

// NextPage merges a continuation response into prev. Posts are appended and
// the page info is replaced. prev is left untouched on error.
func NextPage(jsonBody []byte, prev *models.AggregateResult) (*models.AggregateResult, error) {
	if prev == nil {
		return nil, fmt.Errorf("next page needs the aggregate of the previous pages")
	}

	var resp models.InstagramResponse
	if err := json.Unmarshal(jsonBody, &resp); err != nil {
		return nil, errs.NewParseError("data", "malformed continuation JSON", err)
	}

	switch {
	case resp.Data == nil:
		return nil, missing("data")
	case resp.Data.User == nil:
		return nil, missing("data.user")
	case resp.Data.User.EdgeOwnerToTimelineMedia == nil:
		return nil, missing(continuationPath)
	}

	posts, info, err := timeline(resp.Data.User.EdgeOwnerToTimelineMedia, continuationPath)
	if err != nil {
		return nil, err
	}

	prev.Posts = append(prev.Posts, posts...)
	prev.HasNextPage = *info.HasNextPage
	prev.EndCursor = info.EndCursor
	return prev, nil
}

// PostFromEdge maps one timeline edge. Error paths are relative to the edge.
func PostFromEdge(edge models.Edge) (models.PostRecord, error) {
	return postAt(edge, "edge")
}

func timeline(media *models.EdgeOwnerToTimelineMedia, path string) ([]models.PostRecord, *models.PageInfo, error) {
	if media.PageInfo == nil {
		return nil, nil, missing(path + ".page_info")
	}
	if media.PageInfo.HasNextPage == nil {
		return nil, nil, missing(path + ".page_info.has_next_page")
	}
	if media.Edges == nil {
		return nil, nil, missing(path + ".edges")
	}

	edges := *media.Edges
	posts := make([]models.PostRecord, 0, len(edges))
	for i, edge := range edges {
		post, err := postAt(edge, fmt.Sprintf("%s.edges[%d]", path, i))
		if err != nil {
			return nil, nil, err
		}
		posts = append(posts, post)
	}
	return posts, media.PageInfo, nil
}

func postAt(edge models.Edge, path string) (models.PostRecord, error) {
	node := edge.Node
	switch {
	case node == nil:
		return models.PostRecord{}, missing(path + ".node")
	case node.ID == nil:
		return models.PostRecord{}, missing(path + ".node.id")
	case node.EdgeMediaToComment == nil || node.EdgeMediaToComment.Count == nil:
		return models.PostRecord{}, missing(path + ".node.edge_media_to_comment.count")
	case node.TakenAtTimestamp == nil:
		return models.PostRecord{}, missing(path + ".node.taken_at_timestamp")
	case node.EdgeMediaPreviewLike == nil || node.EdgeMediaPreviewLike.Count == nil:
		return models.PostRecord{}, missing(path + ".node.edge_media_preview_like.count")
	}

	return models.PostRecord{
		PostID:        *node.ID,
		CommentCount:  *node.EdgeMediaToComment.Count,
		TimestampUnix: *node.TakenAtTimestamp,
		LikeCount:     *node.EdgeMediaPreviewLike.Count,
	}, nil
}

func missing(path string) *errs.Error {
	return errs.NewParseError(path, "required key missing", nil)
}
