package server

import (
	"html/template"

	"github.com/agoranet/stoa/internal/entities"
)

const defaultLimit = 100

// page carries data every rendered page needs.
type page struct {
	Viewer    *entities.Profile
	ViewerID  string
	Flashes   []string
	CSRFField template.HTML
}

// postCard is one post annotated with the aggregates its card renders.
type postCard struct {
	Post          *entities.Post
	LikesCount    int
	CommentsCount int
	IsLiked       bool
	IsOwner       bool
	Comments      []*entities.Comment
	CSRFField     template.HTML
}

// feedPage ...
type feedPage struct {
	page
	Posts []*postCard
}

// profilePage ...
type profilePage struct {
	page
	Profile     *entities.Profile
	Posts       []*postCard
	Followers   int
	Following   int
	IsFollowing bool
	IsSelf      bool
}

// notFoundPage ...
type notFoundPage struct {
	page
	What string
}
