// Package apitest provides an in-process double of the campus API for the
// client test suites. Handlers mirror the real API's routes and response
// shapes over in-memory state.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"campushub.com/campus-feed/models"
)

// Account is a seeded login identity.
type Account struct {
	Password string
	Token    string
	User     models.AuthUser
}

// StoredPost is a feed entry as the server holds it. NestedAuthor selects
// the nested author sub-record rendering instead of flattened name fields.
type StoredPost struct {
	ID           int
	Title        string
	Content      string
	AuthorID     int
	CampusID     int
	ImageName    string
	CreatedAt    string
	Author       models.Author
	NestedAuthor bool
}

type StoredComment struct {
	ID      int
	PostID  int
	Content string
	Author  models.Author
}

type Server struct {
	httpSrv *httptest.Server

	// ReactShape selects the toggle-reaction response shape:
	// "count", "map", "list" or "empty".
	ReactShape string

	mu            sync.Mutex
	accounts      map[string]*Account
	tokens        map[string]*Account
	posts         []*StoredPost
	comments      map[int][]*StoredComment
	hearts        map[int]map[int]bool
	nextPostID    int
	nextCommentID int
	requests      map[string]int
	failures      map[string]string
}

func New() *Server {
	s := &Server{
		ReactShape: "count",
		accounts:   make(map[string]*Account),
		tokens:     make(map[string]*Account),
		comments:   make(map[int][]*StoredComment),
		hearts:     make(map[int]map[int]bool),
		nextPostID: 1,
		requests:   make(map[string]int),
		failures:   make(map[string]string),
	}
	s.nextCommentID = 1

	r := mux.NewRouter()
	r.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	r.HandleFunc("/auth/profile", s.handleGetProfile).Methods("GET")
	r.HandleFunc("/auth/profile", s.handleUpdateProfile).Methods("PUT")
	r.HandleFunc("/post", s.handleListPosts).Methods("GET")
	r.HandleFunc("/post", s.handleCreatePost).Methods("POST")
	r.HandleFunc("/post/{postId}/react", s.handleReact).Methods("POST")
	r.HandleFunc("/post/{postId}/comments", s.handleListComments).Methods("GET")
	r.HandleFunc("/post/{postId}/comments", s.handleCreateComment).Methods("POST")

	s.httpSrv = httptest.NewServer(s.counted(r))
	return s
}

func (s *Server) URL() string { return s.httpSrv.URL }

func (s *Server) Close() { s.httpSrv.Close() }

// RequestCount reports how many requests hit a method and exact path.
func (s *Server) RequestCount(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[method+" "+path]
}

func (s *Server) AddAccount(email, password, token string, user models.AuthUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := &Account{Password: password, Token: token, User: user}
	s.accounts[email] = acct
	s.tokens[token] = acct
}

// SeedPost stores a post, assigning an id when the caller left it zero.
func (s *Server) SeedPost(p *StoredPost) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.nextPostID
		s.nextPostID++
	} else if p.ID >= s.nextPostID {
		s.nextPostID = p.ID + 1
	}
	if p.CreatedAt == "" {
		p.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	s.posts = append(s.posts, p)
	return p.ID
}

func (s *Server) SeedComment(postID int, c *StoredComment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.nextCommentID
	s.nextCommentID++
	c.PostID = postID
	s.comments[postID] = append(s.comments[postID], c)
}

func (s *Server) PostCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

// LastPost returns the most recently stored post.
func (s *Server) LastPost() *StoredPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.posts) == 0 {
		return nil
	}
	return s.posts[len(s.posts)-1]
}

// LastComment returns the most recently stored comment on a post.
func (s *Server) LastComment(postID int) *StoredComment {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.comments[postID]
	if len(cs) == 0 {
		return nil
	}
	return cs[len(cs)-1]
}

// FailWith makes every request to a method and path fail with a 500 and the
// given message until ClearFailures is called.
func (s *Server) FailWith(method, path, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = message
}

func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]string)
}

func (s *Server) counted(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.requests[key]++
		msg, failing := s.failures[key]
		s.mu.Unlock()
		if failing {
			jsonMessage(w, http.StatusInternalServerError, msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authed(r *http.Request) *Account {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[token]
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[req.Email]
	s.mu.Unlock()
	if !ok || acct.Password != req.Password {
		jsonMessage(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.LoginResponse{
		Message: "Login successful",
		User:    &acct.User,
		Token:   acct.Token,
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	acct := s.authed(r)
	if acct == nil {
		jsonMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(acct.User)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	acct := s.authed(r)
	if acct == nil {
		jsonMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var update models.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		jsonMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	if update.Email != nil {
		acct.User.Email = *update.Email
	}
	if update.FirstName != nil {
		acct.User.FirstName = *update.FirstName
	}
	if update.MiddleName != nil {
		acct.User.MiddleName = *update.MiddleName
	}
	if update.LastName != nil {
		acct.User.LastName = *update.LastName
	}
	if update.Campus != nil {
		acct.User.Campus = *update.Campus
	}
	user := acct.User
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed := []map[string]interface{}{}
	for _, p := range s.posts {
		entry := map[string]interface{}{
			"id":          p.ID,
			"title":       p.Title,
			"content":     p.Content,
			"created_at":  p.CreatedAt,
			"heart_count": s.heartCountLocked(p.ID),
		}
		if p.ImageName != "" {
			entry["image_url"] = "/uploads/" + p.ImageName
		}
		if p.NestedAuthor {
			entry["author"] = p.Author
		} else {
			entry["first_name"] = p.Author.FirstName
			entry["middle_name"] = p.Author.MiddleName
			entry["last_name"] = p.Author.LastName
		}
		feed = append(feed, entry)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(feed)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	acct := s.authed(r)
	if acct == nil {
		jsonMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		jsonMessage(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	content := r.FormValue("content")
	if content == "" {
		jsonMessage(w, http.StatusBadRequest, "content is required")
		return
	}
	authorID, err := strconv.Atoi(r.FormValue("author_id"))
	if err != nil {
		jsonMessage(w, http.StatusBadRequest, "Invalid author_id")
		return
	}
	campusID, err := strconv.Atoi(r.FormValue("campus_id"))
	if err != nil {
		jsonMessage(w, http.StatusBadRequest, "Invalid campus_id")
		return
	}

	post := &StoredPost{
		Title:     r.FormValue("title"),
		Content:   content,
		AuthorID:  authorID,
		CampusID:  campusID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Author: models.Author{
			UserID:     acct.User.UserID,
			FirstName:  acct.User.FirstName,
			MiddleName: acct.User.MiddleName,
			LastName:   acct.User.LastName,
		},
	}
	if file, header, err := r.FormFile("image"); err == nil {
		file.Close()
		post.ImageName = header.Filename
	}

	s.mu.Lock()
	post.ID = s.nextPostID
	s.nextPostID++
	s.posts = append(s.posts, post)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":      post.ID,
		"content": post.Content,
	})
}

func (s *Server) handleReact(w http.ResponseWriter, r *http.Request) {
	acct := s.authed(r)
	if acct == nil {
		jsonMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	postID, err := strconv.Atoi(mux.Vars(r)["postId"])
	if err != nil {
		jsonMessage(w, http.StatusBadRequest, "Invalid post ID")
		return
	}

	var req models.ReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
		jsonMessage(w, http.StatusBadRequest, "reaction_type is required")
		return
	}

	s.mu.Lock()
	if s.hearts[postID] == nil {
		s.hearts[postID] = make(map[int]bool)
	}
	s.hearts[postID][acct.User.UserID] = !s.hearts[postID][acct.User.UserID]
	count := s.heartCountLocked(postID)
	var list []models.Reaction
	for userID, active := range s.hearts[postID] {
		list = append(list, models.Reaction{UserID: userID, Type: "heart", IsActive: active})
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch s.ReactShape {
	case "map":
		json.NewEncoder(w).Encode(map[string]interface{}{
			"reactions": map[string]int{"heart": count},
		})
	case "list":
		json.NewEncoder(w).Encode(map[string]interface{}{
			"reactions": list,
		})
	case "empty":
		fmt.Fprint(w, "{}")
	default:
		json.NewEncoder(w).Encode(map[string]interface{}{
			"heart_count": count,
		})
	}
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.Atoi(mux.Vars(r)["postId"])
	if err != nil {
		jsonMessage(w, http.StatusBadRequest, "Invalid post ID")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	comments := []map[string]interface{}{}
	for _, c := range s.comments[postID] {
		comments = append(comments, map[string]interface{}{
			"id":         c.ID,
			"post_id":    c.PostID,
			"content":    c.Content,
			"first_name": c.Author.FirstName,
			"last_name":  c.Author.LastName,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(comments)
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	acct := s.authed(r)
	if acct == nil {
		jsonMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	postID, err := strconv.Atoi(mux.Vars(r)["postId"])
	if err != nil {
		jsonMessage(w, http.StatusBadRequest, "Invalid post ID")
		return
	}

	var req models.CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Content == "" {
		jsonMessage(w, http.StatusBadRequest, "Comment content is required")
		return
	}

	s.mu.Lock()
	comment := &StoredComment{
		ID:      s.nextCommentID,
		PostID:  postID,
		Content: req.Content,
		Author: models.Author{
			UserID:    acct.User.UserID,
			FirstName: acct.User.FirstName,
			LastName:  acct.User.LastName,
		},
	}
	s.nextCommentID++
	s.comments[postID] = append(s.comments[postID], comment)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Comment added",
	})
}

// heartCountLocked counts active hearts on a post. Callers must hold s.mu.
func (s *Server) heartCountLocked(postID int) int {
	n := 0
	for _, active := range s.hearts[postID] {
		if active {
			n++
		}
	}
	return n
}

func jsonMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
