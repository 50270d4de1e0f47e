package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"campushub.com/campus-feed/api"
	"campushub.com/campus-feed/attachments"
	"campushub.com/campus-feed/config"
	"campushub.com/campus-feed/log"
	"campushub.com/campus-feed/models"
	"campushub.com/campus-feed/services"
	"campushub.com/campus-feed/storage"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: feedcli <command> [flags]

commands:
  login -email <email> -password <password>
  logout
  whoami
  profile
  update-profile [-first <name>] [-middle <name>] [-last <name>] [-campus <campus>]
  feed
  post -content <text> [-title <title>] [-image <path>]
  react -post <id>
  comment -post <id> -text <text>
  comments -post <id>`)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	store, err := storage.Open(cfg.DataDir)
	if err != nil {
		log.Error.Fatalf("failed to open storage: %v", err)
	}

	client := api.New(cfg.APIBaseURL, store.Token)
	auth := services.NewAuthService(client, store)
	auth.Initialize()

	previews, err := attachments.NewRegistry(filepath.Join(cfg.DataDir, "previews"))
	if err != nil {
		log.Error.Fatalf("failed to open preview dir: %v", err)
	}
	defer previews.Close()

	feed := services.NewFeedController(client, auth, previews)
	defer feed.Close()
	guard := services.NewRouteGuard(auth)

	ctx := context.Background()
	cmd, args := flag.Arg(0), flag.Args()[1:]

	switch cmd {
	case "login":
		runLogin(ctx, auth, args)
	case "logout":
		auth.Logout()
		fmt.Println("Logged out successfully!")
	case "whoami":
		runWhoami(auth)
	case "profile":
		requireAuth(guard, cmd)
		runProfile(ctx, auth)
	case "update-profile":
		requireAuth(guard, cmd)
		runUpdateProfile(ctx, auth, args)
	case "feed":
		requireAuth(guard, cmd)
		runFeed(ctx, feed)
	case "post":
		requireAuth(guard, cmd)
		runPost(ctx, feed, args)
	case "react":
		requireAuth(guard, cmd)
		runReact(ctx, feed, args)
	case "comment":
		requireAuth(guard, cmd)
		runComment(ctx, feed, args)
	case "comments":
		requireAuth(guard, cmd)
		runComments(ctx, feed, args)
	default:
		usage()
		os.Exit(2)
	}
}

func requireAuth(guard *services.RouteGuard, route string) {
	if !guard.CanActivate(route) {
		fmt.Fprintln(os.Stderr, "Please login first.")
		os.Exit(1)
	}
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func runLogin(ctx context.Context, auth *services.AuthService, args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)
	if *email == "" || *password == "" {
		fail("login requires -email and -password")
	}

	resp, err := auth.Login(ctx, models.LoginRequest{Email: *email, Password: *password})
	if err != nil {
		fail(loginMessage(err))
	}
	fmt.Printf("%s Welcome, %s.\n", resp.Message, resp.User.FullName())
}

func loginMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" && !apiErr.Unreachable() {
		return apiErr.Message
	}
	return "Login failed. Please try again."
}

func runWhoami(auth *services.AuthService) {
	if !auth.IsAuthenticated() {
		fmt.Println("Not logged in.")
		return
	}
	fmt.Println(auth.CurrentUserName())
	if auth.TokenExpired() {
		fmt.Println("(token expired, login again)")
	}
}

func runProfile(ctx context.Context, auth *services.AuthService) {
	user, err := auth.GetProfile(ctx)
	if err != nil {
		fail("Failed to fetch profile.")
	}
	fmt.Printf("%s (%s)\n", user.FullName(), user.Initials())
	fmt.Printf("  email:  %s\n", user.Email)
	if user.Role != "" {
		fmt.Printf("  role:   %s\n", user.Role)
	}
	if user.Campus != "" {
		fmt.Printf("  campus: %s\n", user.Campus)
	}
}

func runUpdateProfile(ctx context.Context, auth *services.AuthService, args []string) {
	fs := flag.NewFlagSet("update-profile", flag.ExitOnError)
	first := fs.String("first", "", "first name")
	middle := fs.String("middle", "", "middle name")
	last := fs.String("last", "", "last name")
	campus := fs.String("campus", "", "campus")
	fs.Parse(args)

	var update models.ProfileUpdate
	if *first != "" {
		update.FirstName = first
	}
	if *middle != "" {
		update.MiddleName = middle
	}
	if *last != "" {
		update.LastName = last
	}
	if *campus != "" {
		update.Campus = campus
	}

	user, err := auth.UpdateProfile(ctx, update)
	if err != nil {
		fail("Failed to update profile.")
	}
	fmt.Printf("Profile updated: %s\n", user.FullName())
}

func runFeed(ctx context.Context, feed *services.FeedController) {
	if err := feed.LoadPosts(ctx); err != nil {
		fail(feed.ErrorMessage())
	}
	posts := feed.Posts()
	if len(posts) == 0 {
		fmt.Println("No posts yet.")
		return
	}
	for _, p := range posts {
		printPost(p)
	}
}

func printPost(p *models.Post) {
	fmt.Printf("#%d %s", p.ID, p.AuthorName())
	if p.CreatedAt != "" {
		fmt.Printf("  (%s)", p.CreatedAt)
	}
	fmt.Println()
	if p.Title != "" {
		fmt.Printf("  %s\n", p.Title)
	}
	fmt.Printf("  %s\n", p.Content)
	if p.ImageURL != "" {
		fmt.Printf("  image: %s\n", p.ImageURL)
	}
	fmt.Printf("  hearts: %d\n", p.HeartCount)
}

func runPost(ctx context.Context, feed *services.FeedController, args []string) {
	fs := flag.NewFlagSet("post", flag.ExitOnError)
	content := fs.String("content", "", "post content")
	title := fs.String("title", "", "optional title")
	image := fs.String("image", "", "optional image path")
	fs.Parse(args)

	if *image != "" {
		if err := feed.SetImageAttachment(*image); err != nil {
			fail(feed.ErrorMessage())
		}
	}
	feed.SetDraft(*content, *title)
	if err := feed.SubmitPost(ctx); err != nil {
		fail(feed.ErrorMessage())
	}
	fmt.Println("Posted.")
}

func runReact(ctx context.Context, feed *services.FeedController, args []string) {
	post := findPost(ctx, feed, args, "react")
	if err := feed.ReactToPost(ctx, post); err != nil {
		fail(feed.ErrorMessage())
	}
	fmt.Printf("Post #%d now has %d hearts.\n", post.ID, post.HeartCount)
}

func runComment(ctx context.Context, feed *services.FeedController, args []string) {
	fs := flag.NewFlagSet("comment", flag.ExitOnError)
	postID := fs.Int("post", 0, "post id")
	text := fs.String("text", "", "comment text")
	fs.Parse(args)

	post := lookupPost(ctx, feed, *postID)
	feed.SetCommentDraft(post.Key(), *text)
	if err := feed.SubmitComment(ctx, post); err != nil {
		fail(feed.ErrorMessage())
	}
	fmt.Println("Comment added.")
}

func runComments(ctx context.Context, feed *services.FeedController, args []string) {
	post := findPost(ctx, feed, args, "comments")
	if err := feed.ToggleComments(ctx, post); err != nil {
		fail(feed.ErrorMessage())
	}
	if len(post.Comments) == 0 {
		fmt.Println("No comments yet.")
		return
	}
	for _, c := range post.Comments {
		fmt.Printf("  %s: %s\n", c.AuthorName(), c.Content)
	}
}

func findPost(ctx context.Context, feed *services.FeedController, args []string, name string) *models.Post {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	postID := fs.Int("post", 0, "post id")
	fs.Parse(args)
	return lookupPost(ctx, feed, *postID)
}

func lookupPost(ctx context.Context, feed *services.FeedController, postID int) *models.Post {
	if postID <= 0 {
		fail("a valid -post id is required")
	}
	if err := feed.LoadPosts(ctx); err != nil {
		fail(feed.ErrorMessage())
	}
	for _, p := range feed.Posts() {
		if p.ID == postID {
			return p
		}
	}
	fail("Post " + strconv.Itoa(postID) + " not found.")
	return nil
}
