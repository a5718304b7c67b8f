// Package cache holds the client's local read models (feed pages, post
// details, block list) and keeps every cached view of an entity consistent
// under optimistic and confirmed updates.
//
// All patch methods apply to every view the target appears in, so a post seen
// both in the feed and on its own detail screen never disagrees with itself.
// Patch methods return enough of the prior state for the caller to revert
// exactly if the underlying network call fails.
package cache

import (
	"sync"

	"github.com/dearfriend/dearfriend-go/internal/model"
)

// Cache is safe for concurrent use. Counters are clamped at zero and like
// patches are idempotent: re-applying a state the target already has is a
// no-op relative to the counter.
type Cache struct {
	mu      sync.Mutex
	feed    []model.FeedPage
	posts   map[string]*model.PostDetail
	blocked []model.BlockedUser

	inflight map[string]struct{}
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		posts:    map[string]*model.PostDetail{},
		inflight: map[string]struct{}{},
	}
}

// ---- in-flight gate ----

// Begin marks the action key as in flight and reports whether it was free.
// Callers must pair every successful Begin with End on all exit paths.
func (c *Cache) Begin(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[key]; busy {
		return false
	}
	c.inflight[key] = struct{}{}
	return true
}

// End releases an in-flight action key.
func (c *Cache) End(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)
}

// ---- feed ----

// ResetFeed replaces all cached feed pages.
func (c *Cache) ResetFeed(pages []model.FeedPage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feed = clonePages(pages)
}

// AppendFeedPage adds one page at the end of the cached feed.
func (c *Cache) AppendFeedPage(page model.FeedPage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feed = append(c.feed, clonePage(page))
}

// Feed returns a deep copy of the cached feed pages.
func (c *Cache) Feed() []model.FeedPage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clonePages(c.feed)
}

// InvalidateFeed drops all cached feed pages, forcing a refetch.
func (c *Cache) InvalidateFeed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feed = nil
}

// ---- post detail ----

// SetPost stores a post detail read model.
func (c *Cache) SetPost(d model.PostDetail) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := cloneDetail(d)
	c.posts[d.Post.ID] = &cp
}

// Post returns a deep copy of the cached detail for id, if present.
func (c *Cache) Post(id string) (*model.PostDetail, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.posts[id]
	if !ok {
		return nil, false
	}
	cp := cloneDetail(*d)
	return &cp, true
}

// InvalidatePost drops the cached detail for id.
func (c *Cache) InvalidatePost(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.posts, id)
}

// Invalidate drops every cached read model. Used when an optimistic removal
// fails and only an authoritative refetch can restore truth.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feed = nil
	c.posts = map[string]*model.PostDetail{}
	c.blocked = nil
}

// AddReply appends a confirmed reply to the post's detail and bumps the reply
// counter in every view of the post.
func (c *Cache) AddReply(reply model.Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.posts[reply.PostID]; ok {
		d.Replies = append(d.Replies, reply)
		d.Post.Counts.Replies++
	}
	c.eachFeedItem(reply.PostID, func(p *model.Post) {
		p.Counts.Replies++
	})
}

// ---- optimistic patches ----

// PostLiked returns the last known liked state of a post, preferring the
// detail view, and whether the post is cached anywhere.
func (c *Cache) PostLiked(postID string) (liked, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d, has := c.posts[postID]; has {
		return d.Post.LikedByMe, true
	}
	c.eachFeedItem(postID, func(p *model.Post) {
		if !ok {
			liked, ok = p.LikedByMe, true
		}
	})
	return liked, ok
}

// ReplyLiked returns the last known liked state of one reply of a post.
func (c *Cache) ReplyLiked(postID, replyID string) (liked, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, has := c.posts[postID]
	if !has {
		return false, false
	}
	for i := range d.Replies {
		if d.Replies[i].ID == replyID {
			return d.Replies[i].LikedByMe, true
		}
	}
	return false, false
}

// SetPostLiked applies the like boolean and counter delta to the post in both
// the detail and feed views. It returns the previous liked state (for exact
// rollback) and whether the post was found in any view.
func (c *Cache) SetPostLiked(postID string, liked bool) (prev, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d, has := c.posts[postID]; has {
		prev, ok = d.Post.LikedByMe, true
		patchLike(&d.Post.LikedByMe, &d.Post.Counts.Likes, liked)
	}
	c.eachFeedItem(postID, func(p *model.Post) {
		if !ok {
			prev, ok = p.LikedByMe, true
		}
		patchLike(&p.LikedByMe, &p.Counts.Likes, liked)
	})
	return prev, ok
}

// SetReplyLiked applies the like boolean and counter delta to one reply of a
// post. It returns the previous liked state and whether the reply was found.
func (c *Cache) SetReplyLiked(postID, replyID string, liked bool) (prev, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, has := c.posts[postID]
	if !has {
		return false, false
	}
	for i := range d.Replies {
		if d.Replies[i].ID != replyID {
			continue
		}
		prev, ok = d.Replies[i].LikedByMe, true
		patchLike(&d.Replies[i].LikedByMe, &d.Replies[i].Counts.Likes, liked)
	}
	return prev, ok
}

// SetPinnedReply marks replyID as the post's single pinned reply in every
// view, unsetting any previous pin. Empty replyID unpins. It returns the
// previously pinned id ("" for none) and whether the post was found.
func (c *Cache) SetPinnedReply(postID, replyID string) (prev string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d, has := c.posts[postID]; has {
		ok = true
		if d.Post.PinnedReplyID != nil {
			prev = *d.Post.PinnedReplyID
		}
		d.Post.PinnedReplyID = pinnedID(replyID)
		for i := range d.Replies {
			d.Replies[i].IsPinned = d.Replies[i].ID == replyID && replyID != ""
		}
	}
	c.eachFeedItem(postID, func(p *model.Post) {
		if !ok {
			ok = true
			if p.PinnedReplyID != nil {
				prev = *p.PinnedReplyID
			}
		}
		p.PinnedReplyID = pinnedID(replyID)
	})
	return prev, ok
}

// RemovePost drops the post from the feed and detail caches.
func (c *Cache) RemovePost(postID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.posts, postID)
	for i := range c.feed {
		c.feed[i].Items = deletePosts(c.feed[i].Items, func(p model.Post) bool {
			return p.ID == postID
		})
	}
}

// RemoveUser drops everything authored by userID: their posts from the feed
// and detail caches, and their replies from open post details (decrementing
// the reply counter in every view by the number of removed replies).
func (c *Cache) RemoveUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.feed {
		c.feed[i].Items = deletePosts(c.feed[i].Items, func(p model.Post) bool {
			return p.Author.ID == userID
		})
	}
	for id, d := range c.posts {
		if d.Post.Author.ID == userID {
			delete(c.posts, id)
			continue
		}
		kept := d.Replies[:0]
		removed := 0
		for _, r := range d.Replies {
			if r.Author.ID == userID {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		if removed == 0 {
			continue
		}
		d.Replies = kept
		d.Post.Counts.Replies = floor(d.Post.Counts.Replies - removed)
		c.eachFeedItem(id, func(p *model.Post) {
			p.Counts.Replies = floor(p.Counts.Replies - removed)
		})
	}
}

// ---- block list ----

// SetBlocked replaces the cached block list.
func (c *Cache) SetBlocked(users []model.BlockedUser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocked = append([]model.BlockedUser(nil), users...)
}

// Blocked returns a copy of the cached block list.
func (c *Cache) Blocked() []model.BlockedUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.BlockedUser(nil), c.blocked...)
}

// RemoveBlocked drops userID from the block list, returning the removed entry
// and its index for exact rollback.
func (c *Cache) RemoveBlocked(userID string) (removed *model.BlockedUser, idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, u := range c.blocked {
		if u.ID == userID {
			cp := u
			c.blocked = append(c.blocked[:i], c.blocked[i+1:]...)
			return &cp, i
		}
	}
	return nil, -1
}

// InsertBlocked restores a previously removed block-list entry at idx.
func (c *Cache) InsertBlocked(u model.BlockedUser, idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx < 0 || idx > len(c.blocked) {
		idx = len(c.blocked)
	}
	c.blocked = append(c.blocked, model.BlockedUser{})
	copy(c.blocked[idx+1:], c.blocked[idx:])
	c.blocked[idx] = u
}

// ---- helpers ----

// patchLike sets the boolean and adjusts the counter by the delta relative to
// the previous state: no delta when the state already matches, never below 0.
func patchLike(liked *bool, likes *int, next bool) {
	if *liked != next {
		if next {
			*likes++
		} else {
			*likes = floor(*likes - 1)
		}
	}
	*liked = next
}

func floor(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func pinnedID(replyID string) *string {
	if replyID == "" {
		return nil
	}
	id := replyID
	return &id
}

// eachFeedItem visits every feed view of postID. Callers hold the lock.
func (c *Cache) eachFeedItem(postID string, fn func(*model.Post)) {
	for i := range c.feed {
		for j := range c.feed[i].Items {
			if c.feed[i].Items[j].ID == postID {
				fn(&c.feed[i].Items[j])
			}
		}
	}
}

func deletePosts(items []model.Post, match func(model.Post) bool) []model.Post {
	kept := items[:0]
	for _, p := range items {
		if !match(p) {
			kept = append(kept, p)
		}
	}
	return kept
}

func clonePages(pages []model.FeedPage) []model.FeedPage {
	out := make([]model.FeedPage, len(pages))
	for i, p := range pages {
		out[i] = clonePage(p)
	}
	return out
}

func clonePage(p model.FeedPage) model.FeedPage {
	cp := p
	cp.Items = append([]model.Post(nil), p.Items...)
	for i := range cp.Items {
		cp.Items[i].PinnedReplyID = clonePtr(cp.Items[i].PinnedReplyID)
	}
	cp.NextCursor = clonePtr(p.NextCursor)
	return cp
}

func cloneDetail(d model.PostDetail) model.PostDetail {
	cp := d
	cp.Post.PinnedReplyID = clonePtr(d.Post.PinnedReplyID)
	cp.Replies = append([]model.Reply(nil), d.Replies...)
	return cp
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
