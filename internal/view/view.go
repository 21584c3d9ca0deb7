// Package view turns domain records into the JSON shapes served to clients.
//
// Every projection is relative to a viewer: the same message renders with
// different self and permission flags for its author and for the other
// participant. Functions here are pure; callers load whatever associations
// the projection reads (Message.Author, Message.DeletedBy, Conversation
// members and their users).
package view

import (
	"time"

	"github.com/coony/chat-backend/internal/domain"
)

// DefaultAvatar is used when a user has no avatar of their own.
const DefaultAvatar = "/static/img/avatar-default.png"

// User is the public identity of a user.
type User struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Handle    string `json:"handle"`
	AvatarURL string `json:"avatar_url"`
}

// Profile is the signed-in user's own view of their account.
type Profile struct {
	User
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Bio       string    `json:"bio"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a message as one viewer sees it.
type Message struct {
	ID               uint      `json:"id"`
	ConversationID   uint      `json:"conversation_id"`
	Text             string    `json:"text"`
	DisplayText      string    `json:"display_text"`
	CreatedAt        time.Time `json:"created_at"`
	Author           User      `json:"author"`
	IsSelf           bool      `json:"is_self"`
	IsDeletedForAll  bool      `json:"is_deleted_for_all"`
	DeletedLabel     *string   `json:"deleted_label"`
	CanDeleteForSelf bool      `json:"can_delete_for_self"`
	CanDeleteForAll  bool      `json:"can_delete_for_all"`
}

// Conversation is an inbox row: the partner and the newest visible message.
type Conversation struct {
	ID            uint       `json:"id"`
	Partner       User       `json:"partner"`
	LastMessage   string     `json:"last_message"`
	LastMessageAt *time.Time `json:"last_message_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Post is a timeline entry with its counters.
type Post struct {
	ID           uint      `json:"id"`
	Author       User      `json:"author"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	IsSelf       bool      `json:"is_self"`
}

// Comment is a reply on a post.
type Comment struct {
	ID        uint      `json:"id"`
	PostID    uint      `json:"post_id"`
	Author    User      `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Presenter carries presentation settings.
type Presenter struct {
	// DefaultAvatar replaces missing avatars; empty means DefaultAvatar.
	DefaultAvatar string
}

func (p Presenter) avatar() string {
	if p.DefaultAvatar != "" {
		return p.DefaultAvatar
	}
	return DefaultAvatar
}

// User projects u's public identity. The handle is "@slug", or empty when the
// user has none.
func (p Presenter) User(u domain.User) User {
	out := User{ID: u.ID, Name: u.Name, AvatarURL: p.avatar()}
	if u.Username != "" {
		out.Handle = "@" + u.Username
	}
	if u.AvatarURL != nil && *u.AvatarURL != "" {
		out.AvatarURL = *u.AvatarURL
	}
	return out
}

// Profile projects the account owner's view of u.
func (p Presenter) Profile(u domain.User) Profile {
	return Profile{
		User:      p.User(u),
		Username:  u.Username,
		Email:     u.Email,
		Phone:     u.Phone,
		Bio:       u.Bio,
		Location:  u.Location,
		CreatedAt: u.CreatedAt,
	}
}

// Message projects m for viewerID. A message deleted for everyone carries no
// text, only the placeholder label.
func (p Presenter) Message(m domain.Message, viewerID uint) Message {
	self := m.AuthorID == viewerID
	out := Message{
		ID:               m.ID,
		ConversationID:   m.ConversationID,
		Text:             m.Text,
		DisplayText:      m.Text,
		CreatedAt:        m.CreatedAt,
		Author:           p.User(m.Author),
		IsSelf:           self,
		IsDeletedForAll:  m.DeletedForEveryone,
		CanDeleteForSelf: true,
		CanDeleteForAll:  self && !m.DeletedForEveryone,
	}
	if m.DeletedForEveryone {
		label := m.DeletedLabel()
		out.Text = ""
		out.DisplayText = label
		out.DeletedLabel = &label
	}
	return out
}

// Messages projects a list for viewerID, never returning nil.
func (p Presenter) Messages(ms []domain.Message, viewerID uint) []Message {
	out := make([]Message, 0, len(ms))
	for _, m := range ms {
		out = append(out, p.Message(m, viewerID))
	}
	return out
}

// Conversation projects c for viewerID. The partner is the other participant,
// or the viewer themself when no other member is loaded. last may be nil.
func (p Presenter) Conversation(c domain.Conversation, viewerID uint, last *domain.Message) Conversation {
	out := Conversation{ID: c.ID, UpdatedAt: c.UpdatedAt}
	if other := c.Other(viewerID); other != nil {
		out.Partner = p.User(*other)
	} else {
		for _, mb := range c.Members {
			if mb.UserID == viewerID {
				out.Partner = p.User(mb.User)
				break
			}
		}
	}
	if last != nil {
		out.LastMessage = last.Text
		if last.DeletedForEveryone {
			out.LastMessage = last.DeletedLabel()
		}
		at := last.CreatedAt
		out.LastMessageAt = &at
	}
	return out
}

// Post projects a post with its counters for viewerID.
func (p Presenter) Post(post domain.Post, likes, comments int64, viewerID uint) Post {
	return Post{
		ID:           post.ID,
		Author:       p.User(post.Author),
		Text:         post.Text,
		CreatedAt:    post.CreatedAt,
		LikeCount:    likes,
		CommentCount: comments,
		IsSelf:       post.AuthorID == viewerID,
	}
}

// Comment projects a comment.
func (p Presenter) Comment(c domain.Comment) Comment {
	return Comment{
		ID:        c.ID,
		PostID:    c.PostID,
		Author:    p.User(c.Author),
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}
