package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/gorilla/csrf"
	"github.com/sirupsen/logrus"
	"github.com/tomasen/realip"

	"github.com/agoranet/stoa/internal/backend"
	"github.com/agoranet/stoa/internal/entities"
	"github.com/agoranet/stoa/internal/middleware"
	"github.com/agoranet/stoa/internal/session"
)

var log = logrus.WithField("layer", "server")

const genericFailure = "Something went wrong, please try again"

func (s server) feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, _ := middleware.ViewerFromContext(ctx)

	out := feedPage{page: s.newPage(w, r, viewer)}

	posts, err := s.c.ListPosts(ctx, &backend.ListPostsParams{Limit: defaultLimit})
	if err != nil {
		if s.redirectUnauthorized(w, r, err) {
			return
		}
		s.m.BackendErrors.WithLabelValues("list_posts").Inc()
		log.WithError(err).Error("failed to list posts")
	}

	out.Posts = make([]*postCard, 0, len(posts))
	for _, p := range posts {
		out.Posts = append(out.Posts, s.loadCard(r, p, viewer))
	}

	render(w, http.StatusOK, feedTmpl, out)
}

func (s server) profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, _ := middleware.ViewerFromContext(ctx)
	targetID := chi.URLParam(r, "id")

	target, err := s.c.GetProfile(ctx, targetID)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			render(w, http.StatusNotFound, notFoundTmpl, notFoundPage{
				page: s.newPage(w, r, viewer),
				What: "profile",
			})
			return
		}
		if s.redirectUnauthorized(w, r, err) {
			return
		}
		s.m.BackendErrors.WithLabelValues("get_profile").Inc()
		log.WithError(err).Error("failed to get profile")
		render(w, http.StatusNotFound, notFoundTmpl, notFoundPage{
			page: s.newPage(w, r, viewer),
			What: "profile",
		})
		return
	}

	out := profilePage{
		page:    s.newPage(w, r, viewer),
		Profile: target,
		IsSelf:  viewer.UserID == target.ID,
	}

	posts, err := s.c.ListPosts(ctx, &backend.ListPostsParams{Owner: &target.ID, Limit: defaultLimit})
	if err != nil {
		s.m.BackendErrors.WithLabelValues("list_posts").Inc()
		log.WithError(err).Error("failed to list profile posts")
	}

	out.Posts = make([]*postCard, 0, len(posts))
	for _, p := range posts {
		out.Posts = append(out.Posts, s.loadCard(r, p, viewer))
	}

	if out.Followers, err = s.c.CountFollowers(ctx, target.ID); err != nil {
		s.m.BackendErrors.WithLabelValues("count_followers").Inc()
		log.WithError(err).Error("failed to count followers")
	}

	if out.Following, err = s.c.CountFollowing(ctx, target.ID); err != nil {
		s.m.BackendErrors.WithLabelValues("count_following").Inc()
		log.WithError(err).Error("failed to count following")
	}

	if !out.IsSelf {
		if out.IsFollowing, err = s.c.IsFollowing(ctx, viewer.UserID, target.ID); err != nil {
			s.m.BackendErrors.WithLabelValues("is_following").Inc()
			log.WithError(err).Error("failed to check follow")
		}
	}

	render(w, http.StatusOK, profileTmpl, out)
}

// loadCard fetches the aggregates one post card renders. A failed load
// degrades that card only, the page still renders.
func (s server) loadCard(r *http.Request, p *entities.Post, viewer *session.Viewer) *postCard {
	ctx := r.Context()

	out := postCard{
		Post:      p,
		IsOwner:   viewer.UserID == p.OwnerID,
		CSRFField: csrf.TemplateField(r),
	}

	var err error
	if out.LikesCount, err = s.c.CountLikes(ctx, p.ID); err != nil {
		s.m.BackendErrors.WithLabelValues("count_likes").Inc()
		log.WithError(err).WithField("post", p.ID).Error("failed to count likes")
	}

	if out.Comments, err = s.c.ListComments(ctx, p.ID); err != nil {
		s.m.BackendErrors.WithLabelValues("list_comments").Inc()
		log.WithError(err).WithField("post", p.ID).Error("failed to list comments")
	}
	out.CommentsCount = len(out.Comments)

	if out.IsLiked, err = s.c.HasLiked(ctx, p.ID, viewer.UserID); err != nil {
		s.m.BackendErrors.WithLabelValues("has_liked").Inc()
		log.WithError(err).WithField("post", p.ID).Error("failed to check like")
	}

	return &out
}

func (s server) createPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, _ := middleware.ViewerFromContext(ctx)

	content := strings.TrimSpace(r.FormValue("content"))
	if content == "" {
		s.redirectBack(w, r)
		return
	}

	user, err := s.c.CurrentUser(ctx, viewer.Token)
	if err != nil {
		s.failMutation(w, r, "current_user", err)
		return
	}

	if _, err := s.c.CreatePost(ctx, viewer.Token, &backend.CreatePostParams{
		ID:        uuid.NewString(),
		OwnerID:   user.ID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		s.failMutation(w, r, "create_post", err)
		return
	}

	s.m.PostsCreated.Inc()
	log.WithFields(logrus.Fields{"viewer": user.ID, "ip": realip.FromRequest(r)}).Info("post created")

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s server) deletePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, _ := middleware.ViewerFromContext(ctx)
	postID := chi.URLParam(r, "id")

	// the delete control is hidden on foreign posts, but the service's own
	// authorization decides whether this call is allowed
	if err := s.c.DeletePost(ctx, viewer.Token, postID); err != nil {
		s.failMutation(w, r, "delete_post", err)
		return
	}

	s.m.PostsDeleted.Inc()
	log.WithFields(logrus.Fields{"viewer": viewer.UserID, "post": postID, "ip": realip.FromRequest(r)}).Info("post deleted")

	s.redirectBack(w, r)
}

func (s server) toggleLike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, _ := middleware.ViewerFromContext(ctx)
	postID := chi.URLParam(r, "id")

	liked, err := s.c.HasLiked(ctx, postID, viewer.UserID)
	if err != nil {
		s.failMutation(w, r, "has_liked", err)
		return
	}

	if liked {
		err = s.c.Unlike(ctx, viewer.Token, postID, viewer.UserID)
	} else {
		err = s.c.Like(ctx, viewer.Token, postID, viewer.UserID)
	}
	if err != nil {
		s.failMutation(w, r, "toggle_like", err)
		return
	}

	action := "like"
	if liked {
		action = "unlike"
	}
	s.m.LikesToggled.WithLabelValues(action).Inc()

	s.redirectBack(w, r)
}

func (s server) createComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, _ := middleware.ViewerFromContext(ctx)
	postID := chi.URLParam(r, "id")

	content := strings.TrimSpace(r.FormValue("content"))
	if content == "" {
		s.redirectBack(w, r)
		return
	}

	if _, err := s.c.CreateComment(ctx, viewer.Token, &backend.CreateCommentParams{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    viewer.UserID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		s.failMutation(w, r, "create_comment", err)
		return
	}

	s.m.CommentsCreated.Inc()

	s.redirectBack(w, r)
}

func (s server) toggleFollow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, _ := middleware.ViewerFromContext(ctx)
	targetID := chi.URLParam(r, "id")

	following, err := s.c.IsFollowing(ctx, viewer.UserID, targetID)
	if err != nil {
		s.failMutation(w, r, "is_following", err)
		return
	}

	if following {
		err = s.c.Unfollow(ctx, viewer.Token, viewer.UserID, targetID)
	} else {
		err = s.c.Follow(ctx, viewer.Token, viewer.UserID, targetID)
	}
	if err != nil {
		s.failMutation(w, r, "toggle_follow", err)
		return
	}

	action := "follow"
	if following {
		action = "unfollow"
	}
	s.m.FollowsToggled.WithLabelValues(action).Inc()

	s.redirectBack(w, r)
}

func (s server) logout(w http.ResponseWriter, r *http.Request) {
	viewer, _ := middleware.ViewerFromContext(r.Context())

	if err := s.c.SignOut(r.Context(), viewer.Token); err != nil {
		s.m.BackendErrors.WithLabelValues("sign_out").Inc()
		log.WithError(err).Error("failed to sign out on service side")
	}

	if err := s.sess.SignOut(w, r); err != nil {
		log.WithError(err).Error("failed to drop session")
	}

	http.Redirect(w, r, s.authURL, http.StatusFound)
}

// authCallback exchanges the access token handed back by the external
// authentication entry point for a cookie session.
func (s server) authCallback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("access_token")
	if token == "" {
		http.Redirect(w, r, s.authURL, http.StatusFound)
		return
	}

	user, err := s.c.CurrentUser(r.Context(), token)
	if err != nil {
		s.m.BackendErrors.WithLabelValues("current_user").Inc()
		log.WithError(err).Error("failed to resolve user for callback token")
		http.Redirect(w, r, s.authURL, http.StatusFound)
		return
	}

	if err := s.sess.SignIn(w, r, session.Viewer{UserID: user.ID, Token: token}); err != nil {
		log.WithError(err).Error("failed to establish session")
		http.Redirect(w, r, s.authURL, http.StatusFound)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// newPage loads the data the layout renders on every page. A failed viewer
// profile load keeps the page usable.
func (s server) newPage(w http.ResponseWriter, r *http.Request, viewer *session.Viewer) page {
	out := page{
		ViewerID:  viewer.UserID,
		Flashes:   s.sess.PopFlashes(w, r),
		CSRFField: csrf.TemplateField(r),
	}

	profile, err := s.c.GetProfile(r.Context(), viewer.UserID)
	if err != nil {
		s.m.BackendErrors.WithLabelValues("get_profile").Inc()
		log.WithError(err).Error("failed to get viewer profile")
		return out
	}
	out.Viewer = profile

	return out
}

// failMutation surfaces a failed mutation as a flash notification and sends
// the viewer back where they came from. An unauthorized viewer is sent to the
// authentication entry point instead.
func (s server) failMutation(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.m.BackendErrors.WithLabelValues(op).Inc()

	if s.redirectUnauthorized(w, r, err) {
		return
	}

	log.WithError(err).WithField("op", op).Error("mutation failed")

	msg := genericFailure
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	s.sess.Flash(w, r, msg)

	s.redirectBack(w, r)
}

func (s server) redirectUnauthorized(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, backend.ErrUnauthorized) {
		return false
	}

	if err := s.sess.SignOut(w, r); err != nil {
		log.WithError(err).Error("failed to drop session")
	}
	http.Redirect(w, r, s.authURL, http.StatusFound)

	return true
}

func (s server) redirectBack(w http.ResponseWriter, r *http.Request) {
	to := r.Header.Get("Referer")
	if to == "" {
		to = "/"
	}
	http.Redirect(w, r, to, http.StatusFound)
}
