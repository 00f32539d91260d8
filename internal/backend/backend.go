// Package backend contains a client interface for the hosted data service.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/Decentr-net/go-api/health"

	"github.com/agoranet/stoa/internal/entities"
)

//go:generate mockgen -destination=./mock/backend.go -package=mock -source=backend.go

// ErrNotFound ...
var ErrNotFound = fmt.Errorf("not found")

// ErrUnauthorized is returned when the viewer's token is missing, expired or
// refused by the service.
var ErrUnauthorized = fmt.Errorf("unauthorized")

// Client provides methods for interacting with the hosted data service.
// Mutating methods take the viewer's access token; the service's own
// authorization layer is the source of truth for permissions.
type Client interface {
	health.Pinger

	CurrentUser(ctx context.Context, token string) (*entities.User, error)
	SignOut(ctx context.Context, token string) error

	GetProfile(ctx context.Context, id string) (*entities.Profile, error)

	ListPosts(ctx context.Context, p *ListPostsParams) ([]*entities.Post, error)
	CreatePost(ctx context.Context, token string, p *CreatePostParams) (*entities.Post, error)
	DeletePost(ctx context.Context, token, postID string) error

	CountLikes(ctx context.Context, postID string) (int, error)
	HasLiked(ctx context.Context, postID, userID string) (bool, error)
	Like(ctx context.Context, token, postID, userID string) error
	Unlike(ctx context.Context, token, postID, userID string) error

	ListComments(ctx context.Context, postID string) ([]*entities.Comment, error)
	CountComments(ctx context.Context, postID string) (int, error)
	CreateComment(ctx context.Context, token string, p *CreateCommentParams) (*entities.Comment, error)

	CountFollowers(ctx context.Context, userID string) (int, error)
	CountFollowing(ctx context.Context, userID string) (int, error)
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	Follow(ctx context.Context, token, followerID, followingID string) error
	Unfollow(ctx context.Context, token, followerID, followingID string) error
}

// ListPostsParams ...
type ListPostsParams struct {
	Owner *string
	Limit uint16
}

// CreatePostParams ...
type CreatePostParams struct {
	ID        string
	OwnerID   string
	Content   string
	CreatedAt time.Time
}

// CreateCommentParams ...
type CreateCommentParams struct {
	ID        string
	PostID    string
	UserID    string
	Content   string
	CreatedAt time.Time
}
