// Package event defines the typed envelope and source payload schema for
// incoming stream events. Parsing happens once at the boundary; everything
// downstream works with these structs.
package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind tags an envelope with the operation it carries.
type Kind string

const (
	KindUpsert Kind = "upsert"
	KindEdit   Kind = "edit"
	KindDelete Kind = "delete"
)

// Envelope is the wire format for one stream event. Payload is a SourcePost
// object for upsert/edit and a bare post id string for delete.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// SourcePost mirrors the upstream post object, limited to the fields the
// pipeline consumes. Timestamps arrive as ISO-8601 strings.
type SourcePost struct {
	ID                 string            `json:"id"`
	URI                string            `json:"uri"`
	URL                string            `json:"url"`
	Content            string            `json:"content"`
	SpoilerText        string            `json:"spoiler_text"`
	Language           *string           `json:"language"`
	Visibility         string            `json:"visibility"`
	Sensitive          bool              `json:"sensitive"`
	ReblogsCount       int64             `json:"reblogs_count"`
	FavouritesCount    int64             `json:"favourites_count"`
	RepliesCount       int64             `json:"replies_count"`
	InReplyToID        *string           `json:"in_reply_to_id"`
	InReplyToAccountID *string           `json:"in_reply_to_account_id"`
	Reblog             *SourcePost       `json:"reblog"`
	Account            *SourceAccount    `json:"account"`
	Tags               []SourceTag       `json:"tags"`
	Mentions           []SourceMention   `json:"mentions"`
	MediaAttachments   []SourceMedia     `json:"media_attachments"`
	CreatedAt          time.Time         `json:"created_at"`
	EditedAt           *time.Time        `json:"edited_at"`
}

// SourceAccount is the embedded author object on a SourcePost.
type SourceAccount struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Acct           string `json:"acct"`
	DisplayName    string `json:"display_name"`
	FollowersCount int64  `json:"followers_count"`
	FollowingCount int64  `json:"following_count"`
	StatusesCount  int64  `json:"statuses_count"`
	Bot            bool   `json:"bot"`
	Avatar         string `json:"avatar"`
}

type SourceTag struct {
	Name string `json:"name"`
}

type SourceMention struct {
	ID       string `json:"id"`
	Acct     string `json:"acct"`
	Username string `json:"username"`
}

type SourceMedia struct {
	Type string `json:"type"`
}

// DecodePost parses the envelope payload as a SourcePost. The account object
// and post id are required; anything else is optional.
func (e Envelope) DecodePost() (*SourcePost, error) {
	if e.Kind != KindUpsert && e.Kind != KindEdit {
		return nil, fmt.Errorf("envelope kind %q does not carry a post payload", e.Kind)
	}
	var post SourcePost
	if err := json.Unmarshal(e.Payload, &post); err != nil {
		return nil, fmt.Errorf("decode post payload: %w", err)
	}
	if post.ID == "" {
		return nil, fmt.Errorf("post payload missing id")
	}
	if post.Account == nil || post.Account.ID == "" {
		return nil, fmt.Errorf("post payload missing account")
	}
	return &post, nil
}

// DecodePostID parses the envelope payload of a delete event. Accepts either
// a bare JSON string or a raw identifier.
func (e Envelope) DecodePostID() (string, error) {
	if e.Kind != KindDelete {
		return "", fmt.Errorf("envelope kind %q does not carry a post id", e.Kind)
	}
	var id string
	if err := json.Unmarshal(e.Payload, &id); err != nil {
		id = strings.TrimSpace(string(e.Payload))
	}
	if id == "" {
		return "", fmt.Errorf("delete payload missing post id")
	}
	return id, nil
}
