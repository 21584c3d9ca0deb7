package domain

import "time"

// Post is a timeline entry. Comments and like events on a user's posts feed
// that user's notifications.
type Post struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	AuthorID  uint      `json:"author_id"  gorm:"not null;index"`
	Text      string    `json:"text"       gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	Author User `json:"-" gorm:"foreignKey:AuthorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Post.
func (Post) TableName() string { return "posts" }

// Comment is a reply on a post.
type Comment struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	PostID    uint      `json:"post_id"    gorm:"not null;index"`
	AuthorID  uint      `json:"author_id"  gorm:"not null;index"`
	Text      string    `json:"text"       gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	Author User `json:"-" gorm:"foreignKey:AuthorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Post   Post `json:"-" gorm:"foreignKey:PostID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Comment.
func (Comment) TableName() string { return "comments" }

// PostLike is the current like state of (post, user).
type PostLike struct {
	PostID    uint `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time

	Post Post `gorm:"foreignKey:PostID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PostLike.
func (PostLike) TableName() string { return "post_likes" }

// PostLikeEvent is the notification-facing record of the latest like of a
// post by a user. Unliking keeps it; liking again moves CreatedAt forward.
type PostLikeEvent struct {
	ID        uint      `gorm:"primaryKey"`
	PostID    uint      `gorm:"not null;uniqueIndex:ux_like_event_post_user,priority:1"`
	UserID    uint      `gorm:"not null;uniqueIndex:ux_like_event_post_user,priority:2"`
	CreatedAt time.Time `gorm:"index"`

	User User `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Post Post `gorm:"foreignKey:PostID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PostLikeEvent.
func (PostLikeEvent) TableName() string { return "post_like_events" }

// NotificationState holds a user's feed low-water mark. Items at or before
// ClearedAt are filtered out of the feed; no source row is modified.
type NotificationState struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false"`
	ClearedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for NotificationState.
func (NotificationState) TableName() string { return "notification_states" }
