package models

import "encoding/json"

// Reaction is one user's reaction on one post. IsActive distinguishes a
// toggled-off reaction from a live one.
type Reaction struct {
	UserID   int    `json:"user_id"`
	Type     string `json:"reaction_type"`
	IsActive bool   `json:"is_active"`
}

type ReactionRequest struct {
	Type string `json:"reaction_type"`
}

// ReactionResult is the toggle-reaction response. The server is loose about
// its shape: a scalar heart_count, a per-type count map, or a full reaction
// list may come back, and all three must resolve to a count when possible.
type ReactionResult struct {
	Reactions []Reaction

	heartCount int
	hasCount   bool
}

// HeartCount reports the authoritative heart count, if the response carried
// one in any shape.
func (r *ReactionResult) HeartCount() (int, bool) {
	return r.heartCount, r.hasCount
}

func (r *ReactionResult) UnmarshalJSON(data []byte) error {
	var aux struct {
		HeartCount *int            `json:"heart_count"`
		Reactions  json.RawMessage `json:"reactions"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = ReactionResult{}
	if aux.HeartCount != nil {
		r.heartCount = *aux.HeartCount
		r.hasCount = true
	}
	if len(aux.Reactions) == 0 {
		return nil
	}
	var byType map[string]int
	if err := json.Unmarshal(aux.Reactions, &byType); err == nil {
		if n, ok := byType["heart"]; ok && !r.hasCount {
			r.heartCount = n
			r.hasCount = true
		}
		return nil
	}
	var list []Reaction
	if err := json.Unmarshal(aux.Reactions, &list); err == nil {
		r.Reactions = list
		if !r.hasCount {
			r.heartCount = countActiveHearts(list)
			r.hasCount = true
		}
	}
	return nil
}

// Comment belongs to exactly one post. Author fields follow the same
// flattened-or-nested duality as posts.
type Comment struct {
	ID         int
	PostID     int
	Content    string
	CreatedAt  string
	FirstName  string
	MiddleName string
	LastName   string
	Author     *Author
}

type CommentRequest struct {
	Content string `json:"content"`
}

func (c *Comment) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID         int     `json:"id"`
		PostID     int     `json:"post_id"`
		Content    string  `json:"content"`
		Text       string  `json:"text"`
		CreatedAt  string  `json:"created_at"`
		CreatedAlt string  `json:"createdAt"`
		FirstName  string  `json:"first_name"`
		MiddleName string  `json:"middle_name"`
		LastName   string  `json:"last_name"`
		Author     *Author `json:"author"`
		User       *Author `json:"user"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Comment{
		ID:         aux.ID,
		PostID:     aux.PostID,
		Content:    firstNonEmpty(aux.Content, aux.Text),
		CreatedAt:  firstNonEmpty(aux.CreatedAt, aux.CreatedAlt),
		FirstName:  aux.FirstName,
		MiddleName: aux.MiddleName,
		LastName:   aux.LastName,
	}
	if aux.Author != nil {
		c.Author = aux.Author
	} else if aux.User != nil {
		c.Author = aux.User
	}
	return nil
}

// AuthorName resolves the comment author's display name.
func (c *Comment) AuthorName() string {
	parts := []string{c.FirstName, c.MiddleName, c.LastName}
	if c.Author != nil {
		parts = append(parts, c.Author.FirstName, c.Author.MiddleName, c.Author.LastName)
	}
	name := joinNameParts(parts...)
	if name == "" {
		return "Unknown"
	}
	return name
}
