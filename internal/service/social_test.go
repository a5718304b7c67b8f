package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/dearfriend/dearfriend-go/internal/api"
	"github.com/dearfriend/dearfriend-go/internal/cache"
	"github.com/dearfriend/dearfriend-go/internal/errs"
	"github.com/dearfriend/dearfriend-go/internal/model"
)

// socialCache seeds a cache with the test post visible in both the feed and
// the detail view, so tests can check that patches and rollbacks reach both.
func socialCache() *cache.Cache {
	c := cache.New()
	p := feedPost(postID, 5, false)
	c.ResetFeed([]model.FeedPage{{Items: []model.Post{p}}})
	c.SetPost(model.PostDetail{
		Post: p,
		Replies: []model.Reply{
			{ID: replyID, PostID: postID, Author: model.Author{ID: userID}, Counts: model.ReplyCounts{Likes: 2}},
		},
	})
	return c
}

func TestToggleLikePost_Success(t *testing.T) {
	t.Parallel()

	client := &fakeDoer{}
	c := socialCache()
	social := NewSocial(client, c)

	liked, err := social.ToggleLikePost(context.Background(), postID)
	if err != nil {
		t.Fatalf("ToggleLikePost: %v", err)
	}
	if !liked {
		t.Fatalf("want liked=true after toggling from unliked")
	}

	req := client.last(t)
	if req.Method != http.MethodPost || req.Path != "/api/likes" {
		t.Fatalf("bad request: %s %s", req.Method, req.Path)
	}
	if bodyField(t, req, "postId") != postID {
		t.Fatalf("bad body: %+v", req.JSON)
	}

	d, _ := c.Post(postID)
	if !d.Post.LikedByMe || d.Post.Counts.Likes != 6 {
		t.Fatalf("detail not patched: %+v", d.Post)
	}
	if it := c.Feed()[0].Items[0]; !it.LikedByMe || it.Counts.Likes != 6 {
		t.Fatalf("feed not patched: %+v", it)
	}

	// toggling again unlikes with DELETE
	liked, err = social.ToggleLikePost(context.Background(), postID)
	if err != nil || liked {
		t.Fatalf("second toggle: liked=%v err=%v", liked, err)
	}
	if client.last(t).Method != http.MethodDelete {
		t.Fatalf("unlike must DELETE, got %s", client.last(t).Method)
	}
}

func TestToggleLikePost_RollbackOnFailure(t *testing.T) {
	t.Parallel()

	client := &fakeDoer{handler: func(req api.Request, out any) error {
		return &api.Error{Status: http.StatusInternalServerError, Message: "boom"}
	}}
	c := socialCache()
	social := NewSocial(client, c)

	liked, err := social.ToggleLikePost(context.Background(), postID)
	if err == nil {
		t.Fatalf("want error")
	}
	if liked {
		t.Fatalf("failed toggle must report the previous state")
	}

	d, _ := c.Post(postID)
	if d.Post.LikedByMe || d.Post.Counts.Likes != 5 {
		t.Fatalf("detail not rolled back: %+v", d.Post)
	}
	if it := c.Feed()[0].Items[0]; it.LikedByMe || it.Counts.Likes != 5 {
		t.Fatalf("feed not rolled back: %+v", it)
	}
}

func TestToggleLikePost_InFlightGate(t *testing.T) {
	t.Parallel()

	c := socialCache()
	social := NewSocial(&fakeDoer{}, c)

	if !c.Begin("like:post:" + postID) {
		t.Fatalf("seed Begin failed")
	}
	defer c.End("like:post:" + postID)

	if _, err := social.ToggleLikePost(context.Background(), postID); !errors.Is(err, errs.ErrInFlight) {
		t.Fatalf("err=%v, want ErrInFlight", err)
	}
}

func TestToggleLikePost_UnknownPost(t *testing.T) {
	t.Parallel()

	social := NewSocial(&fakeDoer{}, cache.New())
	if _, err := social.ToggleLikePost(context.Background(), postID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestToggleLikeReply_RollbackOnFailure(t *testing.T) {
	t.Parallel()

	client := &fakeDoer{handler: func(req api.Request, out any) error {
		return errors.New("network down")
	}}
	c := socialCache()
	social := NewSocial(client, c)

	if _, err := social.ToggleLikeReply(context.Background(), postID, replyID); err == nil {
		t.Fatalf("want error")
	}
	d, _ := c.Post(postID)
	if d.Replies[0].LikedByMe || d.Replies[0].Counts.Likes != 2 {
		t.Fatalf("reply not rolled back: %+v", d.Replies[0])
	}
}

func TestIDValidation_BothArguments(t *testing.T) {
	t.Parallel()

	client := &fakeDoer{}
	social := NewSocial(client, socialCache())

	if _, err := social.ToggleLikeReply(context.Background(), "not-a-uuid", replyID); err == nil {
		t.Fatalf("want error on bad post id")
	}
	if _, err := social.ToggleLikeReply(context.Background(), postID, "not-a-uuid"); err == nil {
		t.Fatalf("want error on bad reply id")
	}
	if err := social.PinReply(context.Background(), postID, "not-a-uuid"); err == nil {
		t.Fatalf("want error on bad reply id")
	}
	if len(client.calls) != 0 {
		t.Fatalf("invalid ids must never reach the network")
	}
}

func TestPinReply_RestoresPreviousPinOnFailure(t *testing.T) {
	t.Parallel()

	client := &fakeDoer{handler: func(req api.Request, out any) error {
		return errors.New("network down")
	}}
	c := socialCache()
	c.SetPinnedReply(postID, replyID)
	social := NewSocial(client, c)

	other := "6ba7b813-9dad-11d1-80b4-00c04fd430c8"
	if err := social.PinReply(context.Background(), postID, other); err == nil {
		t.Fatalf("want error")
	}

	d, _ := c.Post(postID)
	if d.Post.PinnedReplyID == nil || *d.Post.PinnedReplyID != replyID {
		t.Fatalf("previous pin not restored: %v", d.Post.PinnedReplyID)
	}
}

func TestPinReply_UnpinSendsNullReplyID(t *testing.T) {
	t.Parallel()

	client := &fakeDoer{}
	c := socialCache()
	c.SetPinnedReply(postID, replyID)
	social := NewSocial(client, c)

	if err := social.PinReply(context.Background(), postID, ""); err != nil {
		t.Fatalf("PinReply: %v", err)
	}
	req := client.last(t)
	if req.Path != "/api/posts/"+postID+"/pin" {
		t.Fatalf("path=%s", req.Path)
	}
	if bodyField(t, req, "replyId") != "" {
		t.Fatalf("unpin must send null replyId: %+v", req.JSON)
	}
	d, _ := c.Post(postID)
	if d.Post.PinnedReplyID != nil {
		t.Fatalf("still pinned: %v", *d.Post.PinnedReplyID)
	}
}

func TestReportPost_DuplicateMapsToAlreadyReported(t *testing.T) {
	t.Parallel()

	client := &fakeDoer{handler: func(req api.Request, out any) error {
		return &api.Error{Status: http.StatusConflict, Message: "duplicate report"}
	}}
	social := NewSocial(client, cache.New())

	err := social.ReportPost(context.Background(), postID, "spam")
	if !errors.Is(err, errs.ErrAlreadyReported) {
		t.Fatalf("err=%v, want ErrAlreadyReported", err)
	}
}

func TestReportReply_PassesThroughOtherErrors(t *testing.T) {
	t.Parallel()

	boom := &api.Error{Status: http.StatusInternalServerError, Message: "boom"}
	client := &fakeDoer{handler: func(req api.Request, out any) error {
		return boom
	}}
	social := NewSocial(client, cache.New())

	err := social.ReportReply(context.Background(), replyID, "spam")
	if errors.Is(err, errs.ErrAlreadyReported) {
		t.Fatalf("5xx must not map to ErrAlreadyReported")
	}
	var ae *api.Error
	if !errors.As(err, &ae) || ae.Status != http.StatusInternalServerError {
		t.Fatalf("err=%v", err)
	}
}

func TestBlockUser_RemovesContentOptimistically(t *testing.T) {
	t.Parallel()

	client := &fakeDoer{}
	c := socialCache()
	social := NewSocial(client, c)

	if err := social.BlockUser(context.Background(), userID); err != nil {
		t.Fatalf("BlockUser: %v", err)
	}
	if bodyField(t, client.last(t), "userId") != userID {
		t.Fatalf("bad body: %+v", client.last(t).JSON)
	}

	// userID authored both the post and its reply in the fixture
	if _, ok := c.Post(postID); ok {
		t.Fatalf("blocked author's post still cached")
	}
	if items := c.Feed()[0].Items; len(items) != 0 {
		t.Fatalf("blocked author's posts still in feed: %+v", items)
	}
}

func TestBlockUser_FailureInvalidatesCaches(t *testing.T) {
	t.Parallel()

	client := &fakeDoer{handler: func(req api.Request, out any) error {
		return errors.New("network down")
	}}
	c := socialCache()
	social := NewSocial(client, c)

	if err := social.BlockUser(context.Background(), userID); err == nil {
		t.Fatalf("want error")
	}
	// removal cannot be inverted patch-by-patch, so everything is dropped
	// and the next read refetches
	if len(c.Feed()) != 0 {
		t.Fatalf("feed must be invalidated after failed block")
	}
	if _, ok := c.Post(postID); ok {
		t.Fatalf("detail must be invalidated after failed block")
	}
}

func TestUnblockUser_ReinsertsOnFailure(t *testing.T) {
	t.Parallel()

	client := &fakeDoer{handler: func(req api.Request, out any) error {
		return errors.New("network down")
	}}
	c := cache.New()
	c.SetBlocked([]model.BlockedUser{{ID: "other"}, {ID: userID}, {ID: "another"}})
	social := NewSocial(client, c)

	if err := social.UnblockUser(context.Background(), userID); err == nil {
		t.Fatalf("want error")
	}
	got := c.Blocked()
	if len(got) != 3 || got[1].ID != userID {
		t.Fatalf("entry not restored at its position: %+v", got)
	}
}

func TestUnblockUser_Success(t *testing.T) {
	t.Parallel()

	client := &fakeDoer{}
	c := cache.New()
	c.SetBlocked([]model.BlockedUser{{ID: userID}})
	social := NewSocial(client, c)

	if err := social.UnblockUser(context.Background(), userID); err != nil {
		t.Fatalf("UnblockUser: %v", err)
	}
	if client.last(t).Method != http.MethodDelete {
		t.Fatalf("method=%s", client.last(t).Method)
	}
	if len(c.Blocked()) != 0 {
		t.Fatalf("entry not removed")
	}
}

func TestListBlocked_CachesResult(t *testing.T) {
	t.Parallel()

	client := &fakeDoer{handler: func(req api.Request, out any) error {
		respond(t, out, map[string]any{"items": []model.BlockedUser{{ID: userID}}})
		return nil
	}}
	c := cache.New()
	social := NewSocial(client, c)

	users, err := social.ListBlocked(context.Background())
	if err != nil {
		t.Fatalf("ListBlocked: %v", err)
	}
	if len(users) != 1 || users[0].ID != userID {
		t.Fatalf("bad list: %+v", users)
	}
	if got := c.Blocked(); len(got) != 1 || got[0].ID != userID {
		t.Fatalf("list not cached: %+v", got)
	}
}

func TestDeletePost_FailureInvalidatesCaches(t *testing.T) {
	t.Parallel()

	client := &fakeDoer{handler: func(req api.Request, out any) error {
		return errors.New("network down")
	}}
	c := socialCache()
	social := NewSocial(client, c)

	if err := social.DeletePost(context.Background(), postID); err == nil {
		t.Fatalf("want error")
	}
	if len(c.Feed()) != 0 {
		t.Fatalf("feed must be invalidated after failed delete")
	}
}

func TestDeletePost_Success(t *testing.T) {
	t.Parallel()

	client := &fakeDoer{}
	c := socialCache()
	social := NewSocial(client, c)

	if err := social.DeletePost(context.Background(), postID); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	req := client.last(t)
	if req.Method != http.MethodDelete || req.Path != "/api/posts/"+postID {
		t.Fatalf("bad request: %s %s", req.Method, req.Path)
	}
	if _, ok := c.Post(postID); ok {
		t.Fatalf("detail still cached")
	}
	if items := c.Feed()[0].Items; len(items) != 0 {
		t.Fatalf("post still in feed: %+v", items)
	}
}
