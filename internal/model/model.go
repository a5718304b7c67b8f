// Package model defines domain entities shared by the API client, cache and services.
package model

import "time"

// SessionTokens collects the stored access/refresh pair. Both fields are
// present together or not at all; a partial pair is treated as no session.
type SessionTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// CurrentUser is captured once when a session is established, from the access
// token subject. Calling code never re-derives it by parsing token internals.
type CurrentUser struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Category classifies a post.
type Category string

// Known post categories.
const (
	CategoryPersonal     Category = "PERSONAL"
	CategoryRelationship Category = "RELATIONSHIP"
	CategoryCareer       Category = "CAREER"
)

// Author identifies the writer of a post or reply.
type Author struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	DisplayName *string `json:"displayName"`
}

// PostCounts carries denormalized counters shown next to a post.
type PostCounts struct {
	Replies int `json:"replies"`
	Likes   int `json:"likes"`
}

// Post is a feed item or the head of a post detail.
type Post struct {
	ID            string     `json:"id"`
	Category      Category   `json:"category"`
	Body          string     `json:"body"`
	CreatedAt     time.Time  `json:"createdAt"`
	Author        Author     `json:"author"`
	Counts        PostCounts `json:"counts"`
	PinnedReplyID *string    `json:"pinnedReplyId"`
	LikedByMe     bool       `json:"likedByMe"`
	IsMine        bool       `json:"isMine"`
}

// ReplyCounts carries denormalized counters shown next to a reply.
type ReplyCounts struct {
	Likes int `json:"likes"`
}

// Reply is a single answer under a post. At most one reply per post is pinned.
type Reply struct {
	ID        string      `json:"id"`
	PostID    string      `json:"postId"`
	Body      string      `json:"body"`
	CreatedAt time.Time   `json:"createdAt"`
	Author    Author      `json:"author"`
	Counts    ReplyCounts `json:"counts"`
	LikedByMe bool        `json:"likedByMe"`
	IsPinned  bool        `json:"isPinned"`
}

// FeedPage is one cursor-paginated slice of the feed.
type FeedPage struct {
	Items      []Post  `json:"items"`
	NextCursor *string `json:"nextCursor"`
}

// PostDetail is the full read model for a single post screen.
type PostDetail struct {
	Post    Post    `json:"post"`
	Replies []Reply `json:"replies"`
}

// BlockedUser is an entry in the caller's block list.
type BlockedUser struct {
	ID          string    `json:"id"`
	Username    *string   `json:"username"`
	DisplayName *string   `json:"displayName"`
	BlockedAt   time.Time `json:"blockedAt"`
}
