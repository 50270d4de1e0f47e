package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v4"

	"campushub.com/campus-feed/api"
	"campushub.com/campus-feed/attachments"
	"campushub.com/campus-feed/log"
	"campushub.com/campus-feed/models"
)

// Local validation failures, detected before any network call.
var (
	ErrEmptyContent = errors.New("post content is empty")
	ErrEmptyComment = errors.New("comment text is empty")
	ErrNoActor      = errors.New("current user cannot be resolved")
	ErrNoCampus     = errors.New("campus cannot be resolved")
	ErrNoPostID     = errors.New("post has no server id")
)

// User-facing fallback messages when the boundary reports nothing usable.
const (
	msgLoadFailed     = "Failed to load posts."
	msgPostFailed     = "Failed to create post."
	msgReactFailed    = "Failed to react to post."
	msgCommentFailed  = "Failed to add comment."
	msgCommentsFailed = "Failed to load comments."
	msgUnreachable    = "Cannot reach the server. Check your connection."
)

// postOps tracks one post's in-flight operations and draft comment so one
// post's pending state never bleeds into another's.
type postOps struct {
	Reacting          bool
	SubmittingComment bool
	LoadingComments   bool
	CommentDraft      string
}

// FeedController owns the post collection and every feed interaction:
// loading, creation with an optional image attachment, reaction toggles, and
// on-demand comments.
type FeedController struct {
	api      *api.Client
	auth     *AuthService
	previews *attachments.Registry

	mu         sync.Mutex
	posts      []*models.Post
	loading    bool
	errMessage string
	ops        map[string]*postOps

	draftContent string
	draftTitle   string
	image        *attachments.Attachment
}

func NewFeedController(client *api.Client, auth *AuthService, previews *attachments.Registry) *FeedController {
	return &FeedController{
		api:      client,
		auth:     auth,
		previews: previews,
		ops:      make(map[string]*postOps),
	}
}

// LoadPosts fetches the feed and replaces the collection wholesale. On
// failure the previous collection stays as it was.
func (f *FeedController) LoadPosts(ctx context.Context) error {
	f.mu.Lock()
	f.loading = true
	f.errMessage = ""
	f.mu.Unlock()

	var posts []*models.Post
	err := f.api.GetJSON(ctx, "/post", &posts)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = false
	if err != nil {
		log.Error.Printf("load posts failed: %v", err)
		f.errMessage = boundaryMessage(err, msgLoadFailed)
		return err
	}
	f.posts = posts
	return nil
}

// SubmitPost validates the draft, resolves the acting user, and submits the
// multipart create request. On success the whole draft is cleared and the
// feed is reloaded to reconcile with server state.
func (f *FeedController) SubmitPost(ctx context.Context) error {
	f.mu.Lock()
	content := strings.TrimSpace(f.draftContent)
	title := strings.TrimSpace(f.draftTitle)
	image := f.image
	f.mu.Unlock()

	if content == "" {
		f.setError("Post content cannot be empty.")
		return ErrEmptyContent
	}
	userID, campusID := f.actorIdentity()
	if userID <= 0 {
		f.setError("You must be logged in to post.")
		return ErrNoActor
	}
	if campusID <= 0 {
		f.setError("Your campus could not be determined.")
		return ErrNoCampus
	}

	fields := map[string]string{
		"content":   content,
		"author_id": strconv.Itoa(userID),
		"campus_id": strconv.Itoa(campusID),
	}
	if title != "" {
		fields["title"] = title
	}

	var file *os.File
	var fileName string
	if image != nil {
		fh, err := os.Open(image.SourcePath)
		if err != nil {
			log.Error.Printf("attachment unreadable: %v", err)
			f.setError("The attached image could not be read.")
			return err
		}
		file = fh
		fileName = filepath.Base(image.SourcePath)
	}

	var err error
	if file != nil {
		err = f.api.PostMultipart(ctx, "/post", fields, "image", fileName, file, nil)
		file.Close()
	} else {
		err = f.api.PostMultipart(ctx, "/post", fields, "", "", nil, nil)
	}
	if err != nil {
		log.Error.Printf("create post failed: %v", err)
		f.setError(boundaryMessage(err, msgPostFailed))
		return err
	}

	f.mu.Lock()
	f.draftContent = ""
	f.draftTitle = ""
	released := f.image
	f.image = nil
	f.mu.Unlock()
	f.previews.Release(released)

	return f.LoadPosts(ctx)
}

// SetImageAttachment stages an image for the next post, releasing any
// previously held preview before creating the new one.
func (f *FeedController) SetImageAttachment(path string) error {
	f.mu.Lock()
	prev := f.image
	f.image = nil
	f.mu.Unlock()
	f.previews.Release(prev)

	att, err := f.previews.Create(path)
	if err != nil {
		log.Error.Printf("image attachment failed: %v", err)
		f.setError("Could not attach image.")
		return err
	}
	f.mu.Lock()
	f.image = att
	f.mu.Unlock()
	return nil
}

// ClearImageAttachment drops the staged image and releases its preview.
// Clearing twice is a no-op the second time.
func (f *FeedController) ClearImageAttachment() {
	f.mu.Lock()
	prev := f.image
	f.image = nil
	f.mu.Unlock()
	f.previews.Release(prev)
}

// ReactToPost toggles the heart reaction on a post. The per-post reacting
// flag is set for the duration and cleared exactly once whatever the
// outcome. The locally held count takes the response's value when one comes
// back in any shape, and falls back to a +1 optimistic bump otherwise.
func (f *FeedController) ReactToPost(ctx context.Context, post *models.Post) error {
	if post == nil || post.ID <= 0 {
		f.setError("This post cannot be reacted to.")
		return ErrNoPostID
	}
	if userID, _ := f.actorIdentity(); userID <= 0 {
		f.setError("You must be logged in to react.")
		return ErrNoActor
	}

	key := post.Key()
	f.setReacting(key, true)

	var result models.ReactionResult
	err := f.api.PostJSON(ctx, fmt.Sprintf("/post/%d/react", post.ID), models.ReactionRequest{Type: "heart"}, &result)

	f.setReacting(key, false)
	if err != nil {
		log.Error.Printf("react to post %d failed: %v", post.ID, err)
		f.setError(boundaryMessage(err, msgReactFailed))
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := result.HeartCount(); ok {
		post.HeartCount = n
	} else {
		post.HeartCount++
	}
	if len(result.Reactions) > 0 {
		post.Reactions = result.Reactions
	}
	return nil
}

// SubmitComment posts the per-post draft comment. On success the draft is
// reset and the feed reloaded; the submitting flag clears exactly once
// either way.
func (f *FeedController) SubmitComment(ctx context.Context, post *models.Post) error {
	if post == nil || post.ID <= 0 {
		f.setError("This post cannot be commented on.")
		return ErrNoPostID
	}
	key := post.Key()

	f.mu.Lock()
	draft := strings.TrimSpace(f.op(key).CommentDraft)
	f.mu.Unlock()
	if draft == "" {
		f.setError("Comment cannot be empty.")
		return ErrEmptyComment
	}
	if userID, _ := f.actorIdentity(); userID <= 0 {
		f.setError("You must be logged in to comment.")
		return ErrNoActor
	}

	f.setSubmittingComment(key, true)
	err := f.api.PostJSON(ctx, fmt.Sprintf("/post/%d/comments", post.ID), models.CommentRequest{Content: draft}, nil)
	f.setSubmittingComment(key, false)
	if err != nil {
		log.Error.Printf("comment on post %d failed: %v", post.ID, err)
		f.setError(boundaryMessage(err, msgCommentFailed))
		return err
	}

	f.mu.Lock()
	f.op(key).CommentDraft = ""
	f.mu.Unlock()

	return f.LoadPosts(ctx)
}

// ToggleComments is a tri-state toggle. Shown comments are hidden;
// fetched-but-hidden comments are shown again; never-fetched comments are
// loaded exactly once, cached on the post, and shown.
func (f *FeedController) ToggleComments(ctx context.Context, post *models.Post) error {
	if post == nil {
		return ErrNoPostID
	}

	f.mu.Lock()
	if post.CommentsShown {
		post.CommentsShown = false
		f.mu.Unlock()
		return nil
	}
	if post.CommentsFetched {
		post.CommentsShown = true
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	if post.ID <= 0 {
		f.setError("Comments are unavailable for this post.")
		return ErrNoPostID
	}

	key := post.Key()
	f.setLoadingComments(key, true)

	var comments []*models.Comment
	err := f.api.GetJSON(ctx, fmt.Sprintf("/post/%d/comments", post.ID), &comments)

	f.setLoadingComments(key, false)
	if err != nil {
		log.Error.Printf("load comments for post %d failed: %v", post.ID, err)
		f.setError(boundaryMessage(err, msgCommentsFailed))
		return err
	}

	f.mu.Lock()
	post.Comments = comments
	post.CommentsFetched = true
	post.CommentsShown = true
	f.mu.Unlock()
	return nil
}

// Posts returns a snapshot of the current collection in server order.
func (f *FeedController) Posts() []*models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Post, len(f.posts))
	copy(out, f.posts)
	return out
}

func (f *FeedController) IsLoading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

func (f *FeedController) ErrorMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errMessage
}

func (f *FeedController) SetDraft(content, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draftContent = content
	f.draftTitle = title
}

func (f *FeedController) Draft() (content, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draftContent, f.draftTitle
}

// ImageAttachment returns the currently staged attachment, if any.
func (f *FeedController) ImageAttachment() *attachments.Attachment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.image
}

func (f *FeedController) SetCommentDraft(key, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.op(key).CommentDraft = text
}

func (f *FeedController) CommentDraft(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.op(key).CommentDraft
}

func (f *FeedController) IsReacting(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.op(key).Reacting
}

func (f *FeedController) IsSubmittingComment(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.op(key).SubmittingComment
}

func (f *FeedController) IsLoadingComments(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.op(key).LoadingComments
}

// Close releases the staged attachment. The preview registry itself is owned
// by the caller.
func (f *FeedController) Close() {
	f.ClearImageAttachment()
}

// op returns the per-post state for a key, creating it on first use. Callers
// must hold f.mu.
func (f *FeedController) op(key string) *postOps {
	ops, ok := f.ops[key]
	if !ok {
		ops = &postOps{}
		f.ops[key] = ops
	}
	return ops
}

func (f *FeedController) setReacting(key string, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.op(key).Reacting = v
}

func (f *FeedController) setSubmittingComment(key string, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.op(key).SubmittingComment = v
}

func (f *FeedController) setLoadingComments(key string, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.op(key).LoadingComments = v
}

func (f *FeedController) setError(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errMessage = msg
}

// actorIdentity resolves the acting user's id and campus id: the broadcast
// snapshot first, then durable storage, then the bearer token's claims.
func (f *FeedController) actorIdentity() (userID, campusID int) {
	if u := f.auth.GetCurrentUser(); u != nil {
		userID, campusID = u.UserID, u.CampusID
	}
	if userID <= 0 || campusID <= 0 {
		if u := f.auth.StoredUser(); u != nil {
			if userID <= 0 {
				userID = u.UserID
			}
			if campusID <= 0 {
				campusID = u.CampusID
			}
		}
	}
	if userID <= 0 || campusID <= 0 {
		if claims := f.auth.TokenClaims(); claims != nil {
			if userID <= 0 {
				userID = intClaim(claims, "user_id")
			}
			if campusID <= 0 {
				campusID = intClaim(claims, "campus_id")
			}
		}
	}
	return userID, campusID
}

func intClaim(claims jwt.MapClaims, name string) int {
	switch v := claims[name].(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// boundaryMessage turns a boundary error into a user-facing message: a
// transport failure gets the unreachable message, a server-reported message
// is surfaced verbatim, anything else gets the fallback.
func boundaryMessage(err error, fallback string) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if apiErr.Unreachable() {
			return msgUnreachable
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return fallback
}
