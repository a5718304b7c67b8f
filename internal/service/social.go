package service

import (
	"context"
	"net/http"

	"github.com/dearfriend/dearfriend-go/internal/api"
	"github.com/dearfriend/dearfriend-go/internal/cache"
	"github.com/dearfriend/dearfriend-go/internal/errs"
	"github.com/dearfriend/dearfriend-go/internal/model"
)

// Social covers the optimistic mutations: likes, pins, reports, blocks and
// post deletion. Every mutation follows the same shape: take the per-target
// in-flight gate, apply the optimistic patch, issue the call, then confirm or
// revert. A failed action is never left looking successful.
type Social struct {
	client Doer
	cache  *cache.Cache
}

// NewSocial constructs Social with required dependencies.
func NewSocial(client Doer, c *cache.Cache) *Social {
	return &Social{client: client, cache: c}
}

// ToggleLikePost flips the caller's like on a post. The new state and counter
// delta are applied to every cached view before the network call; on failure
// the exact previous state is restored. Returns the new liked state.
func (s *Social) ToggleLikePost(ctx context.Context, postID string) (bool, error) {
	if err := validID(postID); err != nil {
		return false, err
	}

	key := "like:post:" + postID
	if !s.cache.Begin(key) {
		return false, errs.ErrInFlight
	}
	defer s.cache.End(key)

	prev, ok := s.cache.PostLiked(postID)
	if !ok {
		return false, errs.ErrNotFound
	}
	next := !prev
	s.cache.SetPostLiked(postID, next)

	err := s.client.Do(ctx, api.Request{
		Method: likeMethod(prev),
		Path:   "/api/likes",
		JSON:   map[string]string{"postId": postID},
	}, nil)
	if err != nil {
		s.cache.SetPostLiked(postID, prev)
		return prev, err
	}
	return next, nil
}

// ToggleLikeReply flips the caller's like on one reply of a post.
func (s *Social) ToggleLikeReply(ctx context.Context, postID, replyID string) (bool, error) {
	if err := validID(postID); err != nil {
		return false, err
	}
	if err := validID(replyID); err != nil {
		return false, err
	}

	key := "like:reply:" + replyID
	if !s.cache.Begin(key) {
		return false, errs.ErrInFlight
	}
	defer s.cache.End(key)

	prev, ok := s.cache.ReplyLiked(postID, replyID)
	if !ok {
		return false, errs.ErrNotFound
	}
	next := !prev
	s.cache.SetReplyLiked(postID, replyID, next)

	err := s.client.Do(ctx, api.Request{
		Method: likeMethod(prev),
		Path:   "/api/likes",
		JSON:   map[string]string{"replyId": replyID},
	}, nil)
	if err != nil {
		s.cache.SetReplyLiked(postID, replyID, prev)
		return prev, err
	}
	return next, nil
}

// PinReply marks replyID as the post's single "most helpful" reply, unsetting
// any previous pin. Empty replyID unpins. The previous pin is restored on
// failure.
func (s *Social) PinReply(ctx context.Context, postID, replyID string) error {
	if err := validID(postID); err != nil {
		return err
	}
	if replyID != "" {
		if err := validID(replyID); err != nil {
			return err
		}
	}

	key := "pin:" + postID
	if !s.cache.Begin(key) {
		return errs.ErrInFlight
	}
	defer s.cache.End(key)

	prev, _ := s.cache.SetPinnedReply(postID, replyID)

	var jsonBody any
	if replyID == "" {
		jsonBody = map[string]any{"replyId": nil}
	} else {
		jsonBody = map[string]string{"replyId": replyID}
	}
	err := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/api/posts/" + postID + "/pin",
		JSON:   jsonBody,
	}, nil)
	if err != nil {
		s.cache.SetPinnedReply(postID, prev)
		return err
	}
	return nil
}

// ReportPost files a report. A duplicate report maps to ErrAlreadyReported so
// callers can show "you already reported this" instead of a generic failure.
func (s *Social) ReportPost(ctx context.Context, postID, reason string) error {
	return s.report(ctx, map[string]string{"postId": postID, "reason": reason})
}

// ReportReply files a report against a reply.
func (s *Social) ReportReply(ctx context.Context, replyID, reason string) error {
	return s.report(ctx, map[string]string{"replyId": replyID, "reason": reason})
}

func (s *Social) report(ctx context.Context, body map[string]string) error {
	err := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/api/reports",
		JSON:   body,
	}, nil)
	if api.IsConflict(err) {
		return errs.ErrAlreadyReported
	}
	return err
}

// BlockUser blocks the author and optimistically removes their content from
// every cached view. Removal is not invertible patch-by-patch, so a failed
// call invalidates the caches instead, forcing an authoritative refetch.
func (s *Social) BlockUser(ctx context.Context, userID string) error {
	if err := validID(userID); err != nil {
		return err
	}

	key := "block:" + userID
	if !s.cache.Begin(key) {
		return errs.ErrInFlight
	}
	defer s.cache.End(key)

	s.cache.RemoveUser(userID)

	err := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/api/blocks",
		JSON:   map[string]string{"userId": userID},
	}, nil)
	if err != nil {
		s.cache.Invalidate()
		return err
	}
	return nil
}

// UnblockUser removes the block-list entry optimistically and reinserts it at
// its previous position if the call fails.
func (s *Social) UnblockUser(ctx context.Context, userID string) error {
	if err := validID(userID); err != nil {
		return err
	}

	key := "unblock:" + userID
	if !s.cache.Begin(key) {
		return errs.ErrInFlight
	}
	defer s.cache.End(key)

	removed, idx := s.cache.RemoveBlocked(userID)

	err := s.client.Do(ctx, api.Request{
		Method: http.MethodDelete,
		Path:   "/api/blocks",
		JSON:   map[string]string{"userId": userID},
	}, nil)
	if err != nil {
		if removed != nil {
			s.cache.InsertBlocked(*removed, idx)
		}
		return err
	}
	return nil
}

// ListBlocked fetches the caller's block list and caches it.
func (s *Social) ListBlocked(ctx context.Context) ([]model.BlockedUser, error) {
	var res struct {
		Items []model.BlockedUser `json:"items"`
	}
	err := s.client.Do(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "/api/blocks?limit=50",
	}, &res)
	if err != nil {
		return nil, err
	}
	s.cache.SetBlocked(res.Items)
	return res.Items, nil
}

// DeletePost removes the caller's own post, optimistically dropping it from
// every cached view. A failed call invalidates the caches.
func (s *Social) DeletePost(ctx context.Context, postID string) error {
	if err := validID(postID); err != nil {
		return err
	}

	key := "delete:" + postID
	if !s.cache.Begin(key) {
		return errs.ErrInFlight
	}
	defer s.cache.End(key)

	s.cache.RemovePost(postID)

	err := s.client.Do(ctx, api.Request{
		Method: http.MethodDelete,
		Path:   "/api/posts/" + postID,
	}, nil)
	if err != nil {
		s.cache.Invalidate()
		return err
	}
	return nil
}

// likeMethod maps the previous liked state to the HTTP method: liking creates
// the like row, unliking deletes it.
func likeMethod(prevLiked bool) string {
	if prevLiked {
		return http.MethodDelete
	}
	return http.MethodPost
}
