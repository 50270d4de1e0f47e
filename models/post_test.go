package models

import (
	"encoding/json"
	"testing"
)

func decodePost(t *testing.T, raw string) *Post {
	t.Helper()
	var p Post
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("decode post: %v", err)
	}
	return &p
}

func TestPostDecodeFlattened(t *testing.T) {
	p := decodePost(t, `{
		"id": 12,
		"title": "Library hours",
		"content": "Open until midnight this week",
		"created_at": "2025-03-01T10:00:00Z",
		"first_name": "Amina",
		"last_name": "Khan",
		"heart_count": 4
	}`)

	if p.ID != 12 {
		t.Fatalf("id = %d, want 12", p.ID)
	}
	if p.Content != "Open until midnight this week" {
		t.Fatalf("content = %q", p.Content)
	}
	if p.HeartCount != 4 {
		t.Fatalf("heart count = %d, want 4", p.HeartCount)
	}
	if got := p.AuthorName(); got != "Amina Khan" {
		t.Fatalf("author = %q, want Amina Khan", got)
	}
}

func TestPostDecodeAlternateSpellings(t *testing.T) {
	p := decodePost(t, `{
		"post_id": 9,
		"text": "alt shape",
		"createdAt": "2025-03-02T08:00:00Z",
		"photo_path": "/uploads/a.png",
		"user": {"user_id": 2, "first_name": "Diego", "last_name": "Reyes"}
	}`)

	if p.ID != 9 {
		t.Fatalf("id = %d, want 9", p.ID)
	}
	if p.Content != "alt shape" {
		t.Fatalf("content = %q", p.Content)
	}
	if p.CreatedAt != "2025-03-02T08:00:00Z" {
		t.Fatalf("created at = %q", p.CreatedAt)
	}
	if p.ImageURL != "/uploads/a.png" {
		t.Fatalf("image = %q", p.ImageURL)
	}
	if got := p.AuthorName(); got != "Diego Reyes" {
		t.Fatalf("author = %q, want Diego Reyes", got)
	}
}

func TestPostDecodeReactionList(t *testing.T) {
	p := decodePost(t, `{
		"id": 3,
		"content": "x",
		"reactions": [
			{"user_id": 1, "reaction_type": "heart", "is_active": true},
			{"user_id": 2, "reaction_type": "heart", "is_active": false},
			{"user_id": 3, "reaction_type": "heart", "is_active": true}
		]
	}`)

	if p.HeartCount != 2 {
		t.Fatalf("heart count = %d, want 2 active hearts", p.HeartCount)
	}
	if len(p.Reactions) != 3 {
		t.Fatalf("reactions = %d, want 3", len(p.Reactions))
	}
}

func TestPostAuthorNameCombinesAndTrims(t *testing.T) {
	p := &Post{
		FirstName: "  Amina ",
		LastName:  "Khan",
		Author:    &Author{MiddleName: " J. "},
	}
	if got := p.AuthorName(); got != "Amina Khan J." {
		t.Fatalf("author = %q, want %q", got, "Amina Khan J.")
	}
}

func TestPostAuthorNameUnknown(t *testing.T) {
	p := &Post{FirstName: "  ", Author: &Author{}}
	if got := p.AuthorName(); got != "Unknown author" {
		t.Fatalf("author = %q, want Unknown author", got)
	}
	if got := p.AuthorInitial(); got != "U" {
		t.Fatalf("initial = %q, want U", got)
	}
}

func TestPostAuthorInitialMultibyte(t *testing.T) {
	p := &Post{FirstName: "Élodie", LastName: "Durand"}
	if got := p.AuthorInitial(); got != "É" {
		t.Fatalf("initial = %q, want É", got)
	}
	if got := (&Post{FirstName: "özge"}).AuthorInitial(); got != "Ö" {
		t.Fatalf("initial = %q, want Ö", got)
	}
}

func TestPostKey(t *testing.T) {
	if got := (&Post{ID: 42}).Key(); got != "42" {
		t.Fatalf("key = %q, want 42", got)
	}
	if got := (&Post{CreatedAt: "2025-03-01T10:00:00Z"}).Key(); got != "t:2025-03-01T10:00:00Z" {
		t.Fatalf("fallback key = %q", got)
	}
	if got := (&Post{Content: "orphan"}).Key(); got != "c:orphan" {
		t.Fatalf("last-resort key = %q", got)
	}
}

func TestReactionResultShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
		has  bool
	}{
		{"scalar count", `{"heart_count": 7}`, 7, true},
		{"count map", `{"reactions": {"heart": 5}}`, 5, true},
		{"reaction list", `{"reactions": [
			{"user_id": 1, "reaction_type": "heart", "is_active": true},
			{"user_id": 2, "reaction_type": "heart", "is_active": false}
		]}`, 1, true},
		{"empty", `{}`, 0, false},
	}
	for _, tc := range cases {
		var r ReactionResult
		if err := json.Unmarshal([]byte(tc.raw), &r); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		n, ok := r.HeartCount()
		if ok != tc.has || n != tc.want {
			t.Fatalf("%s: count = %d,%v, want %d,%v", tc.name, n, ok, tc.want, tc.has)
		}
	}
}

func TestCommentDecodeAndAuthor(t *testing.T) {
	var c Comment
	raw := `{"id": 1, "post_id": 42, "text": "nice", "author": {"first_name": "Amina", "last_name": "Khan"}}`
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("decode comment: %v", err)
	}
	if c.PostID != 42 || c.Content != "nice" {
		t.Fatalf("comment = %+v", c)
	}
	if got := c.AuthorName(); got != "Amina Khan" {
		t.Fatalf("author = %q", got)
	}

	anon := &Comment{}
	if got := anon.AuthorName(); got != "Unknown" {
		t.Fatalf("anonymous author = %q, want Unknown", got)
	}
}
