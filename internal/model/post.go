package model

import (
	"encoding/json"
	"time"
)

// ListMember is a member of the curated list whose posts are harvested
type ListMember struct {
	UserID     int64  `json:"id"`
	ScreenName string `json:"screen_name"`
}

// RawPost is a timeline entry as returned by the feed API.
// Pointer and slice fields keep the difference between an absent key and a zero value.
type RawPost struct {
	ID                *int64      `json:"id"`
	CreatedAt         string      `json:"created_at"`
	User              *RawUser    `json:"user"`
	FullText          string      `json:"full_text"`
	Truncated         bool        `json:"truncated"`
	Source            *string     `json:"source"`
	Entities          RawEntities `json:"entities"`
	IsQuoteStatus     bool        `json:"is_quote_status"`
	QuotedStatusID    *int64      `json:"quoted_status_id"`
	InReplyToStatusID *int64      `json:"in_reply_to_status_id"`
	InReplyToUserID   *int64      `json:"in_reply_to_user_id"`
}

// RawUser is the author object embedded in a RawPost
type RawUser struct {
	ID              *int64  `json:"id"`
	Name            string  `json:"name"`
	ScreenName      string  `json:"screen_name"`
	Location        *string `json:"location"`
	Description     *string `json:"description"`
	Protected       bool    `json:"protected"`
	Verified        bool    `json:"verified"`
	URL             *string `json:"url"`
	FollowersCount  int64   `json:"followers_count"`
	FriendsCount    int64   `json:"friends_count"`
	ListedCount     int64   `json:"listed_count"`
	FavouritesCount int64   `json:"favourites_count"`
	StatusesCount   int64   `json:"statuses_count"`
	CreatedAt       string  `json:"created_at"`
}

// RawEntities holds the entity lists of a RawPost. Media is nil when the key is absent.
type RawEntities struct {
	Hashtags []struct {
		Text string `json:"text"`
	} `json:"hashtags"`
	Media []struct {
		ID            int64  `json:"id"`
		Type          string `json:"type"`
		MediaURLHTTPS string `json:"media_url_https"`
	} `json:"media"`
	URLs []struct {
		ExpandedURL string `json:"expanded_url"`
	} `json:"urls"`
	UserMentions []struct {
		ID         int64  `json:"id"`
		ScreenName string `json:"screen_name"`
	} `json:"user_mentions"`
}

// Post is a normalized post row of the posts table
type Post struct {
	ID                int64     `json:"id"`
	CreatedAt         string    `json:"created_at"`
	User              Author    `json:"user"`
	FullText          string    `json:"full_text"`
	Truncated         bool      `json:"truncated"`
	Source            *string   `json:"source"`
	Entities          Entities  `json:"entities"`
	IsQuoteStatus     bool      `json:"is_quote_status"`
	QuotedStatusID    *int64    `json:"quoted_status_id"`
	InReplyToStatusID *int64    `json:"in_reply_to_status_id"`
	InReplyToUserID   *int64    `json:"in_reply_to_user_id"`
	LoadedAt          Timestamp `json:"loaded_at"`
}

// Author is the user record nested in a Post
type Author struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	ScreenName      string  `json:"screen_name"`
	Location        *string `json:"location"`
	Description     *string `json:"description"`
	Protected       bool    `json:"protected"`
	Verified        bool    `json:"verified"`
	URL             *string `json:"url"`
	FollowersCount  int64   `json:"followers_count"`
	FriendsCount    int64   `json:"friends_count"`
	ListedCount     int64   `json:"listed_count"`
	FavouritesCount int64   `json:"favourites_count"`
	StatusesCount   int64   `json:"statuses_count"`
	CreatedAt       string  `json:"created_at"`
}

// Entities of a normalized post. A nil Media encodes as null, an empty one as [].
type Entities struct {
	Hashtags     []Hashtag `json:"hashtags"`
	Media        []Media   `json:"media"`
	URLs         []URL     `json:"urls"`
	UserMentions []Mention `json:"user_mentions"`
}

type Hashtag struct {
	Text string `json:"text"`
}

type Media struct {
	ID            int64  `json:"id"`
	Type          string `json:"type"`
	MediaURLHTTPS string `json:"media_url_https"`
}

type URL struct {
	ExpandedURL string `json:"expanded_url"`
}

type Mention struct {
	ID         int64  `json:"id"`
	ScreenName string `json:"screen_name"`
}

// timestampLayout is the canonical warehouse TIMESTAMP text form
const timestampLayout = "2006-01-02 15:04:05.000000 UTC"

// Timestamp marshals as a warehouse TIMESTAMP literal in UTC
type Timestamp time.Time

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(timestampLayout))
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(timestampLayout, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time value
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}
