// Package postgrest is implementation of backend client interface.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agoranet/stoa/internal/backend"
	"github.com/agoranet/stoa/internal/entities"
)

var log = logrus.WithField("layer", "backend").WithField("package", "postgrest")

const (
	restPath = "/rest/v1"
	authPath = "/auth/v1"
)

type client struct {
	http   *http.Client
	base   string
	apiKey string
}

type profileDTO struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	AvatarURL   string    `json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type postDTO struct {
	ID        string      `json:"id"`
	OwnerID   string      `json:"owner_id"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	Author    *profileDTO `json:"author,omitempty"`
}

type commentDTO struct {
	ID        string      `json:"id"`
	PostID    string      `json:"post_id"`
	UserID    string      `json:"user_id"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	Author    *profileDTO `json:"author,omitempty"`
}

type userDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// New creates a client for a PostgREST-compatible deployment with a
// GoTrue-style auth endpoint.
func New(h *http.Client, base, apiKey string) backend.Client {
	return &client{
		http:   h,
		base:   strings.TrimSuffix(base, "/"),
		apiKey: apiKey,
	}
}

func (c *client) newRequest(ctx context.Context, method, path, token string, q url.Values, body interface{}) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	u := c.base + path
	if len(q) > 0 {
		u = fmt.Sprintf("%s?%s", u, q.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", c.apiKey)
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// do executes req and decodes a 2xx body into out (out may be nil).
func (c *client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to do request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return backend.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNotAcceptable:
		return backend.ErrNotFound
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, readServiceMessage(resp.Body))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// count issues a HEAD request and extracts the exact row count from the
// Content-Range header ("0-24/3851" or "*/0").
func (c *client) count(ctx context.Context, collection string, q url.Values) (int, error) {
	req, err := c.newRequest(ctx, http.MethodHead, fmt.Sprintf("%s/%s", restPath, collection), "", q, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to do request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	cr := resp.Header.Get("Content-Range")
	idx := strings.LastIndex(cr, "/")
	if idx < 0 {
		return 0, fmt.Errorf("malformed content-range %q", cr)
	}

	v, err := strconv.Atoi(cr[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("malformed content-range %q: %w", cr, err)
	}

	return v, nil
}

// exists reports whether any row matches the given filters.
func (c *client) exists(ctx context.Context, collection string, q url.Values) (bool, error) {
	q.Set("select", "*")
	q.Set("limit", "1")

	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("%s/%s", restPath, collection), "", q, nil)
	if err != nil {
		return false, err
	}

	var rows []json.RawMessage
	if err := c.do(req, &rows); err != nil {
		return false, err
	}

	return len(rows) > 0, nil
}

func (c *client) CurrentUser(ctx context.Context, token string) (*entities.User, error) {
	if token == "" {
		return nil, backend.ErrUnauthorized
	}

	req, err := c.newRequest(ctx, http.MethodGet, authPath+"/user", token, nil, nil)
	if err != nil {
		return nil, err
	}

	var dto userDTO
	if err := c.do(req, &dto); err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	return &entities.User{ID: dto.ID, Email: dto.Email}, nil
}

func (c *client) SignOut(ctx context.Context, token string) error {
	req, err := c.newRequest(ctx, http.MethodPost, authPath+"/logout", token, nil, nil)
	if err != nil {
		return err
	}

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}

	return nil
}

func (c *client) GetProfile(ctx context.Context, id string) (*entities.Profile, error) {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("select", "*")

	req, err := c.newRequest(ctx, http.MethodGet, restPath+"/profiles", "", q, nil)
	if err != nil {
		return nil, err
	}

	var rows []profileDTO
	if err := c.do(req, &rows); err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if len(rows) == 0 {
		return nil, backend.ErrNotFound
	}

	return toProfile(&rows[0]), nil
}

func (c *client) ListPosts(ctx context.Context, p *backend.ListPostsParams) ([]*entities.Post, error) {
	q := url.Values{}
	q.Set("select", "*,author:profiles(*)")
	q.Set("order", "created_at.desc")
	if p.Owner != nil {
		q.Set("owner_id", "eq."+*p.Owner)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(int(p.Limit)))
	}

	req, err := c.newRequest(ctx, http.MethodGet, restPath+"/posts", "", q, nil)
	if err != nil {
		return nil, err
	}

	var rows []postDTO
	if err := c.do(req, &rows); err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	out := make([]*entities.Post, len(rows))
	for i := range rows {
		out[i] = toPost(&rows[i])
	}

	return out, nil
}

func (c *client) CreatePost(ctx context.Context, token string, p *backend.CreatePostParams) (*entities.Post, error) {
	req, err := c.newRequest(ctx, http.MethodPost, restPath+"/posts", token, nil, postDTO{
		ID:        p.ID,
		OwnerID:   p.OwnerID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	var rows []postDTO
	if err := c.do(req, &rows); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("service returned no representation")
	}

	return toPost(&rows[0]), nil
}

func (c *client) DeletePost(ctx context.Context, token, postID string) error {
	q := url.Values{}
	q.Set("id", "eq."+postID)

	req, err := c.newRequest(ctx, http.MethodDelete, restPath+"/posts", token, q, nil)
	if err != nil {
		return err
	}

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	return nil
}

func (c *client) CountLikes(ctx context.Context, postID string) (int, error) {
	q := url.Values{}
	q.Set("post_id", "eq."+postID)

	v, err := c.count(ctx, "likes", q)
	if err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}

	return v, nil
}

func (c *client) HasLiked(ctx context.Context, postID, userID string) (bool, error) {
	q := url.Values{}
	q.Set("post_id", "eq."+postID)
	q.Set("user_id", "eq."+userID)

	v, err := c.exists(ctx, "likes", q)
	if err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}

	return v, nil
}

func (c *client) Like(ctx context.Context, token, postID, userID string) error {
	req, err := c.newRequest(ctx, http.MethodPost, restPath+"/likes", token, nil, map[string]string{
		"post_id": postID,
		"user_id": userID,
	})
	if err != nil {
		return err
	}

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("failed to like: %w", err)
	}

	return nil
}

func (c *client) Unlike(ctx context.Context, token, postID, userID string) error {
	q := url.Values{}
	q.Set("post_id", "eq."+postID)
	q.Set("user_id", "eq."+userID)

	req, err := c.newRequest(ctx, http.MethodDelete, restPath+"/likes", token, q, nil)
	if err != nil {
		return err
	}

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("failed to unlike: %w", err)
	}

	return nil
}

func (c *client) ListComments(ctx context.Context, postID string) ([]*entities.Comment, error) {
	q := url.Values{}
	q.Set("select", "*,author:profiles(*)")
	q.Set("post_id", "eq."+postID)
	q.Set("order", "created_at.asc")

	req, err := c.newRequest(ctx, http.MethodGet, restPath+"/comments", "", q, nil)
	if err != nil {
		return nil, err
	}

	var rows []commentDTO
	if err := c.do(req, &rows); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	out := make([]*entities.Comment, len(rows))
	for i := range rows {
		out[i] = toComment(&rows[i])
	}

	return out, nil
}

func (c *client) CountComments(ctx context.Context, postID string) (int, error) {
	q := url.Values{}
	q.Set("post_id", "eq."+postID)

	v, err := c.count(ctx, "comments", q)
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}

	return v, nil
}

func (c *client) CreateComment(ctx context.Context, token string, p *backend.CreateCommentParams) (*entities.Comment, error) {
	req, err := c.newRequest(ctx, http.MethodPost, restPath+"/comments", token, nil, commentDTO{
		ID:        p.ID,
		PostID:    p.PostID,
		UserID:    p.UserID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	var rows []commentDTO
	if err := c.do(req, &rows); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("service returned no representation")
	}

	return toComment(&rows[0]), nil
}

func (c *client) CountFollowers(ctx context.Context, userID string) (int, error) {
	q := url.Values{}
	q.Set("following_id", "eq."+userID)

	v, err := c.count(ctx, "follows", q)
	if err != nil {
		return 0, fmt.Errorf("failed to count followers: %w", err)
	}

	return v, nil
}

func (c *client) CountFollowing(ctx context.Context, userID string) (int, error) {
	q := url.Values{}
	q.Set("follower_id", "eq."+userID)

	v, err := c.count(ctx, "follows", q)
	if err != nil {
		return 0, fmt.Errorf("failed to count following: %w", err)
	}

	return v, nil
}

func (c *client) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	q := url.Values{}
	q.Set("follower_id", "eq."+followerID)
	q.Set("following_id", "eq."+followingID)

	v, err := c.exists(ctx, "follows", q)
	if err != nil {
		return false, fmt.Errorf("failed to check follow: %w", err)
	}

	return v, nil
}

func (c *client) Follow(ctx context.Context, token, followerID, followingID string) error {
	req, err := c.newRequest(ctx, http.MethodPost, restPath+"/follows", token, nil, map[string]string{
		"follower_id":  followerID,
		"following_id": followingID,
	})
	if err != nil {
		return err
	}

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("failed to follow: %w", err)
	}

	return nil
}

func (c *client) Unfollow(ctx context.Context, token, followerID, followingID string) error {
	q := url.Values{}
	q.Set("follower_id", "eq."+followerID)
	q.Set("following_id", "eq."+followingID)

	req, err := c.newRequest(ctx, http.MethodDelete, restPath+"/follows", token, q, nil)
	if err != nil {
		return err
	}

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("failed to unfollow: %w", err)
	}

	return nil
}

func (c *client) Ping(ctx context.Context) (interface{}, error) {
	q := url.Values{}
	q.Set("limit", "1")

	if _, err := c.count(ctx, "profiles", q); err != nil {
		return nil, err
	}

	return nil, nil
}

func (c *client) Name() string {
	return "backend"
}

func readServiceMessage(r io.Reader) string {
	var body struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}

	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&body); err != nil {
		log.WithError(err).Debug("failed to decode service error body")
		return "unknown error"
	}

	if body.Message != "" {
		return body.Message
	}
	if body.Msg != "" {
		return body.Msg
	}

	return "unknown error"
}

func toProfile(d *profileDTO) *entities.Profile {
	if d == nil {
		return nil
	}

	return &entities.Profile{
		ID:          d.ID,
		Username:    d.Username,
		DisplayName: d.DisplayName,
		Bio:         d.Bio,
		AvatarURL:   d.AvatarURL,
		CreatedAt:   d.CreatedAt,
	}
}

func toPost(d *postDTO) *entities.Post {
	return &entities.Post{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Content:   d.Content,
		CreatedAt: d.CreatedAt,
		Author:    toProfile(d.Author),
	}
}

func toComment(d *commentDTO) *entities.Comment {
	return &entities.Comment{
		ID:        d.ID,
		PostID:    d.PostID,
		UserID:    d.UserID,
		Content:   d.Content,
		CreatedAt: d.CreatedAt,
		Author:    toProfile(d.Author),
	}
}
