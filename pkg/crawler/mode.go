package crawler

import (
	"errors"
	"strings"

	"igcrawler/pkg/models"
)

var (
	// ErrNoMode means no identifying parameter was given.
	ErrNoMode = errors.New("one of user id, search query or explore tag is required")
	// ErrAmbiguousMode means more than one identifying parameter was given.
	ErrAmbiguousMode = errors.New("only one of user id, search query or explore tag may be given")
)

// Mode selects what a job crawls. It is decided once, before any request.
type Mode interface {
	Kind() models.RecordKind
	Target() string
	isMode()
}

// ProfileMode walks a profile's whole timeline.
type ProfileMode struct {
	UserID string
}

// SearchMode runs one blended search for accounts or, with Tag, hashtags.
type SearchMode struct {
	Query string
	Tag   bool
}

// TagExploreMode issues a single hashtag explore query.
type TagExploreMode struct {
	TagName string
}

func (ProfileMode) Kind() models.RecordKind { return models.KindProfile }
func (m ProfileMode) Target() string        { return m.UserID }
func (ProfileMode) isMode()                 {}

func (m SearchMode) Kind() models.RecordKind {
	if m.Tag {
		return models.KindTagSearch
	}
	return models.KindUserSearch
}
func (m SearchMode) Target() string { return m.Query }
func (SearchMode) isMode()          {}

func (TagExploreMode) Kind() models.RecordKind { return models.KindTagExplore }
func (m TagExploreMode) Target() string        { return m.TagName }
func (TagExploreMode) isMode()                 {}

// ModeFromParams resolves the legacy parameter set. Exactly one of userID,
// search and explore must be non-empty; searchTag only applies to search.
func ModeFromParams(userID, search, explore string, searchTag bool) (Mode, error) {
	userID = strings.TrimSpace(userID)
	search = strings.TrimSpace(search)
	explore = strings.TrimPrefix(strings.TrimSpace(explore), "#")

	var modes []Mode
	if userID != "" {
		modes = append(modes, ProfileMode{UserID: userID})
	}
	if search != "" {
		modes = append(modes, SearchMode{Query: search, Tag: searchTag})
	}
	if explore != "" {
		modes = append(modes, TagExploreMode{TagName: explore})
	}

	switch len(modes) {
	case 0:
		return nil, ErrNoMode
	case 1:
		return modes[0], nil
	default:
		return nil, ErrAmbiguousMode
	}
}
