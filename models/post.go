package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Author is the nested author sub-record some feed responses embed. Other
// responses flatten the same fields onto the post itself; Post accepts both.
type Author struct {
	UserID     int    `json:"user_id"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name"`
	LastName   string `json:"last_name"`
}

// Post mirrors a server-owned feed entry. Decoding normalizes every accepted
// server shape into this one record so nothing downstream has to probe for
// alternate field spellings.
type Post struct {
	ID         int
	Title      string
	Content    string
	ImageURL   string
	CreatedAt  string
	FirstName  string
	MiddleName string
	LastName   string
	Author     *Author
	HeartCount int
	Reactions  []Reaction

	// Client-only comment cache, absent until the first on-demand load.
	Comments        []*Comment
	CommentsFetched bool
	CommentsShown   bool
}

func (p *Post) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID         *int            `json:"id"`
		PostID     *int            `json:"post_id"`
		AltPostID  *int            `json:"postId"`
		Title      string          `json:"title"`
		Content    string          `json:"content"`
		Text       string          `json:"text"`
		ImageURL   string          `json:"image_url"`
		Image      string          `json:"image"`
		PhotoPath  string          `json:"photo_path"`
		CreatedAt  string          `json:"created_at"`
		CreatedAlt string          `json:"createdAt"`
		FirstName  string          `json:"first_name"`
		MiddleName string          `json:"middle_name"`
		LastName   string          `json:"last_name"`
		Author     *Author         `json:"author"`
		User       *Author         `json:"user"`
		HeartCount *int            `json:"heart_count"`
		Reactions  json.RawMessage `json:"reactions"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*p = Post{
		Title:      aux.Title,
		Content:    firstNonEmpty(aux.Content, aux.Text),
		ImageURL:   firstNonEmpty(aux.ImageURL, aux.Image, aux.PhotoPath),
		CreatedAt:  firstNonEmpty(aux.CreatedAt, aux.CreatedAlt),
		FirstName:  aux.FirstName,
		MiddleName: aux.MiddleName,
		LastName:   aux.LastName,
	}
	switch {
	case aux.ID != nil:
		p.ID = *aux.ID
	case aux.PostID != nil:
		p.ID = *aux.PostID
	case aux.AltPostID != nil:
		p.ID = *aux.AltPostID
	}
	if aux.Author != nil {
		p.Author = aux.Author
	} else if aux.User != nil {
		p.Author = aux.User
	}
	if aux.HeartCount != nil {
		p.HeartCount = *aux.HeartCount
	}
	if len(aux.Reactions) > 0 {
		var list []Reaction
		if err := json.Unmarshal(aux.Reactions, &list); err == nil {
			p.Reactions = list
			if aux.HeartCount == nil {
				p.HeartCount = countActiveHearts(list)
			}
		}
	}
	return nil
}

// Key returns the stable identity used for per-post bookkeeping. Posts the
// server failed to give an id fall back to a timestamp-derived key; those
// posts are still displayable, but network operations reject them.
func (p *Post) Key() string {
	if p.ID > 0 {
		return strconv.Itoa(p.ID)
	}
	if p.CreatedAt != "" {
		return "t:" + p.CreatedAt
	}
	return "c:" + p.Content
}

// AuthorName assembles a display name from the flattened name fields and, if
// present, the nested author record.
func (p *Post) AuthorName() string {
	parts := []string{p.FirstName, p.MiddleName, p.LastName}
	if p.Author != nil {
		parts = append(parts, p.Author.FirstName, p.Author.MiddleName, p.Author.LastName)
	}
	name := joinNameParts(parts...)
	if name == "" {
		return "Unknown author"
	}
	return name
}

// AuthorInitial returns the uppercased first letter of the author name.
func (p *Post) AuthorInitial() string {
	name := strings.TrimSpace(p.AuthorName())
	if name == "" {
		return "A"
	}
	r, _ := utf8.DecodeRuneInString(name)
	return strings.ToUpper(string(r))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func countActiveHearts(list []Reaction) int {
	n := 0
	for _, r := range list {
		if r.Type == "heart" && r.IsActive {
			n++
		}
	}
	return n
}
