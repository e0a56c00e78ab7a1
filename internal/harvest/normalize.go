package harvest

import (
	"fmt"
	"time"

	"ruok-relay-go/internal/model"
)

// MalformedRecordError reports a fetched post that lacks a required field
type MalformedRecordError struct {
	PostID *int64
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.PostID == nil {
		return "malformed post: " + e.Reason
	}
	return fmt.Sprintf("malformed post %d: %s", *e.PostID, e.Reason)
}

// Normalizer flattens raw feed posts into warehouse rows
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a normalizer stamping rows with the given clock
func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// Normalize maps a raw post onto the posts table layout
func (n *Normalizer) Normalize(raw model.RawPost) (model.Post, error) {
	if raw.ID == nil {
		return model.Post{}, &MalformedRecordError{Reason: "missing id"}
	}
	if raw.User == nil || raw.User.ID == nil {
		return model.Post{}, &MalformedRecordError{PostID: raw.ID, Reason: "missing user.id"}
	}

	post := model.Post{
		ID:                *raw.ID,
		CreatedAt:         raw.CreatedAt,
		User:              normalizeAuthor(raw.User),
		FullText:          raw.FullText,
		Truncated:         raw.Truncated,
		Source:            raw.Source,
		Entities:          normalizeEntities(raw.Entities),
		IsQuoteStatus:     raw.IsQuoteStatus,
		InReplyToStatusID: raw.InReplyToStatusID,
		InReplyToUserID:   raw.InReplyToUserID,
		LoadedAt:          model.Timestamp(n.now()),
	}

	// a quote of a deleted post is flagged but carries no quoted id
	if raw.IsQuoteStatus && raw.QuotedStatusID != nil {
		post.QuotedStatusID = raw.QuotedStatusID
	}

	return post, nil
}

func normalizeAuthor(user *model.RawUser) model.Author {
	return model.Author{
		ID:              *user.ID,
		Name:            user.Name,
		ScreenName:      user.ScreenName,
		Location:        user.Location,
		Description:     user.Description,
		Protected:       user.Protected,
		Verified:        user.Verified,
		URL:             user.URL,
		FollowersCount:  user.FollowersCount,
		FriendsCount:    user.FriendsCount,
		ListedCount:     user.ListedCount,
		FavouritesCount: user.FavouritesCount,
		StatusesCount:   user.StatusesCount,
		CreatedAt:       user.CreatedAt,
	}
}

func normalizeEntities(raw model.RawEntities) model.Entities {
	entities := model.Entities{
		Hashtags:     make([]model.Hashtag, 0, len(raw.Hashtags)),
		URLs:         make([]model.URL, 0, len(raw.URLs)),
		UserMentions: make([]model.Mention, 0, len(raw.UserMentions)),
	}

	seenTags := make(map[string]bool, len(raw.Hashtags))
	for _, tag := range raw.Hashtags {
		if seenTags[tag.Text] {
			continue
		}
		seenTags[tag.Text] = true
		entities.Hashtags = append(entities.Hashtags, model.Hashtag{Text: tag.Text})
	}

	seenURLs := make(map[string]bool, len(raw.URLs))
	for _, u := range raw.URLs {
		if seenURLs[u.ExpandedURL] {
			continue
		}
		seenURLs[u.ExpandedURL] = true
		entities.URLs = append(entities.URLs, model.URL{ExpandedURL: u.ExpandedURL})
	}

	for _, mention := range raw.UserMentions {
		entities.UserMentions = append(entities.UserMentions, model.Mention{ID: mention.ID, ScreenName: mention.ScreenName})
	}

	// absent media stays nil so it encodes as null
	if raw.Media != nil {
		entities.Media = make([]model.Media, 0, len(raw.Media))
		for _, m := range raw.Media {
			entities.Media = append(entities.Media, model.Media{ID: m.ID, Type: m.Type, MediaURLHTTPS: m.MediaURLHTTPS})
		}
	}

	return entities
}
