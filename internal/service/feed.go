package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gofrs/uuid/v5"

	"github.com/dearfriend/dearfriend-go/internal/api"
	"github.com/dearfriend/dearfriend-go/internal/cache"
	"github.com/dearfriend/dearfriend-go/internal/model"
)

const feedPageLimit = 30

// Feed covers read paths: the paginated feed, single posts, and content
// creation. Fetched pages land in the cache so later optimistic patches can
// reach every view of a post.
type Feed struct {
	client Doer
	cache  *cache.Cache
}

// NewFeed constructs Feed with required dependencies.
func NewFeed(client Doer, c *cache.Cache) *Feed {
	return &Feed{client: client, cache: c}
}

// Load fetches one feed page. A nil cursor starts over and resets the cached
// page set; a non-nil cursor appends. category "" means all categories.
func (f *Feed) Load(ctx context.Context, category model.Category, cursor *string) (*model.FeedPage, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(feedPageLimit))
	if category != "" {
		q.Set("category", string(category))
	}
	if cursor != nil {
		q.Set("cursor", *cursor)
	}

	var page model.FeedPage
	err := f.client.Do(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "/api/feed?" + q.Encode(),
	}, &page)
	if err != nil {
		return nil, err
	}

	if cursor == nil {
		f.cache.ResetFeed([]model.FeedPage{page})
	} else {
		f.cache.AppendFeedPage(page)
	}
	return &page, nil
}

// LoadPost fetches a post with its replies and caches the detail.
func (f *Feed) LoadPost(ctx context.Context, postID string) (*model.PostDetail, error) {
	if err := validID(postID); err != nil {
		return nil, err
	}

	var detail model.PostDetail
	err := f.client.Do(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "/api/posts/" + postID,
	}, &detail)
	if err != nil {
		return nil, err
	}

	f.cache.SetPost(detail)
	return &detail, nil
}

// CreatePost publishes a new post and invalidates the cached feed so the next
// load shows it in server order.
func (f *Feed) CreatePost(ctx context.Context, category model.Category, body string) (*model.Post, error) {
	if body == "" {
		return nil, errors.New("empty body")
	}

	var res struct {
		Post model.Post `json:"post"`
	}
	err := f.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/api/posts",
		JSON:   map[string]string{"category": string(category), "body": body},
	}, &res)
	if err != nil {
		return nil, err
	}

	f.cache.InvalidateFeed()
	return &res.Post, nil
}

// CreateReply posts a reply and folds the confirmed reply into every cached
// view of the post.
func (f *Feed) CreateReply(ctx context.Context, postID, body string) (*model.Reply, error) {
	if err := validID(postID); err != nil {
		return nil, err
	}
	if body == "" {
		return nil, errors.New("empty body")
	}

	var res struct {
		Reply model.Reply `json:"reply"`
	}
	err := f.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/api/posts/" + postID + "/replies",
		JSON:   map[string]string{"body": body},
	}, &res)
	if err != nil {
		return nil, err
	}

	if res.Reply.PostID == "" {
		res.Reply.PostID = postID
	}
	f.cache.AddReply(res.Reply)
	return &res.Reply, nil
}

// validID rejects ids that are not UUIDs before they reach the network, the
// same gate the screens apply to deep-link parameters.
func validID(id string) error {
	if _, err := uuid.FromString(id); err != nil {
		return fmt.Errorf("invalid id %q", id)
	}
	return nil
}
