package extract

import (
	"encoding/json"
	"fmt"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/models"
)

// UserSearch maps users[].user of a blended search response.
func UserSearch(jsonBody []byte) ([]models.UserRecord, error) {
	resp, err := decodeSearch(jsonBody)
	if err != nil {
		return nil, err
	}
	if resp.Users == nil {
		return nil, missing("users")
	}

	users := make([]models.UserRecord, 0, len(*resp.Users))
	for i, entry := range *resp.Users {
		path := fmt.Sprintf("users[%d].user", i)
		u := entry.User
		switch {
		case u == nil:
			return nil, missing(path)
		case u.Username == nil:
			return nil, missing(path + ".username")
		case u.FullName == nil:
			return nil, missing(path + ".full_name")
		case u.IsPrivate == nil:
			return nil, missing(path + ".is_private")
		case u.FollowerCount == nil:
			return nil, missing(path + ".follower_count")
		}
		users = append(users, models.UserRecord{
			Username:      *u.Username,
			FullName:      *u.FullName,
			IsPrivate:     *u.IsPrivate,
			FollowerCount: *u.FollowerCount,
		})
	}
	return users, nil
}

// TagSearch maps hashtags[].hashtag of a blended search response.
func TagSearch(jsonBody []byte) ([]models.TagRecord, error) {
	resp, err := decodeSearch(jsonBody)
	if err != nil {
		return nil, err
	}
	if resp.Hashtags == nil {
		return nil, missing("hashtags")
	}

	tags := make([]models.TagRecord, 0, len(*resp.Hashtags))
	for i, entry := range *resp.Hashtags {
		path := fmt.Sprintf("hashtags[%d].hashtag", i)
		h := entry.Hashtag
		switch {
		case h == nil:
			return nil, missing(path)
		case h.Name == nil:
			return nil, missing(path + ".name")
		case h.MediaCount == nil:
			return nil, missing(path + ".media_count")
		}
		tags = append(tags, models.TagRecord{Name: *h.Name, MediaCount: *h.MediaCount})
	}
	return tags, nil
}

func decodeSearch(body []byte) (*models.TopSearchResponse, error) {
	var resp models.TopSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errs.NewParseError("$", "malformed search JSON", err)
	}
	return &resp, nil
}
