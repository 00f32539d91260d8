package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/agoranet/stoa/internal/backend"
	"github.com/agoranet/stoa/internal/backend/postgrest"
)

var opts = struct {
	Fixture       string        `long:"fixture" env:"FIXTURE" default:"fixture.json" description:"path to demo data fixture"`
	BackendURL    string        `long:"backend.url" env:"BACKEND_URL" default:"http://localhost:54321" description:"hosted data service url"`
	BackendAPIKey string        `long:"backend.api_key" env:"BACKEND_API_KEY" description:"hosted data service anon api key"`
	Timeout       time.Duration `long:"timeout" env:"TIMEOUT" default:"10s" description:"timeout for requests to the data service"`
}{}

// fixture replays demo content through the same client the web service uses.
// Profiles come from signup, so every referenced user already exists and
// carries its own access token.
type fixture struct {
	Users []struct {
		ID    string `json:"id"`
		Token string `json:"token"`
	} `json:"users"`
	Posts []struct {
		Owner   string `json:"owner"`
		Content string `json:"content"`
	} `json:"posts"`
	Comments []struct {
		Post    int    `json:"post"`
		Author  string `json:"author"`
		Content string `json:"content"`
	} `json:"comments"`
	Likes []struct {
		Post  int    `json:"post"`
		Liker string `json:"liker"`
	} `json:"likes"`
	Follows []struct {
		Follower  string `json:"follower"`
		Following string `json:"following"`
	} `json:"follows"`
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "seed"
	parser.LongDescription = "Demo data seeder"

	_, err := parser.Parse()

	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("error occurred while parsing flags")
	}

	logrus.Info("seed started")
	logrus.Infof("%+v", opts)

	b, err := os.ReadFile(opts.Fixture)
	if err != nil {
		logrus.WithError(err).Fatal("failed to read fixture")
	}

	var f fixture
	if err := json.Unmarshal(b, &f); err != nil {
		logrus.WithError(err).Fatal("failed to parse fixture")
	}

	tokens := make(map[string]string, len(f.Users))
	for _, u := range f.Users {
		tokens[u.ID] = u.Token
	}

	c := postgrest.New(&http.Client{Timeout: opts.Timeout}, opts.BackendURL, opts.BackendAPIKey)
	ctx := context.Background()

	postIDs := make([]string, 0, len(f.Posts))
	for i, p := range f.Posts {
		post, err := c.CreatePost(ctx, tokens[p.Owner], &backend.CreatePostParams{
			ID:        uuid.NewString(),
			OwnerID:   p.Owner,
			Content:   p.Content,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			logrus.WithError(err).WithField("post", i).Fatal("failed to create post")
		}

		postIDs = append(postIDs, post.ID)
		logrus.WithField("id", post.ID).Info("post created")
	}

	for i, v := range f.Comments {
		if _, err := c.CreateComment(ctx, tokens[v.Author], &backend.CreateCommentParams{
			ID:        uuid.NewString(),
			PostID:    postIDs[v.Post],
			UserID:    v.Author,
			Content:   v.Content,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			logrus.WithError(err).WithField("comment", i).Fatal("failed to create comment")
		}
	}
	logrus.Infof("%d comments created", len(f.Comments))

	for i, v := range f.Likes {
		if err := c.Like(ctx, tokens[v.Liker], postIDs[v.Post], v.Liker); err != nil {
			logrus.WithError(err).WithField("like", i).Fatal("failed to like")
		}
	}
	logrus.Infof("%d likes created", len(f.Likes))

	for i, v := range f.Follows {
		if err := c.Follow(ctx, tokens[v.Follower], v.Follower, v.Following); err != nil {
			logrus.WithError(err).WithField("follow", i).Fatal("failed to follow")
		}
	}
	logrus.Infof("%d follows created", len(f.Follows))

	logrus.Info("seed finished")
}
