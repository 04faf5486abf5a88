package models

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a community article authored by a dietitian. Pinned posts sort
// before the rest of the feed.
type Post struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID uuid.UUID `gorm:"type:uuid;index;not null" json:"author_id"`

	Title    string `gorm:"size:200;not null" json:"title"`
	Content  string `gorm:"type:text;not null" json:"content"`
	ImageURL string `gorm:"size:255" json:"image_url"`
	VideoURL string `gorm:"size:255" json:"video_url"`
	IsPinned bool   `gorm:"default:false" json:"is_pinned"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Author   *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Comments []Comment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
}

func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// YouTubeID extracts the video id from a youtube.com watch URL, or "" when
// the post has no usable video link.
func (p *Post) YouTubeID() string {
	if p.VideoURL == "" || !strings.Contains(p.VideoURL, "youtube.com") {
		return ""
	}
	u, err := url.Parse(p.VideoURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}

// Comment belongs to a post; a non-nil ParentID makes it a reply (one level
// of nesting).
type Comment struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PostID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"post_id"`
	UserID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	ParentID *uuid.UUID `gorm:"type:uuid" json:"parent_id,omitempty"`

	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`

	User    *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Replies []Comment `gorm:"foreignKey:ParentID" json:"replies,omitempty"`
}

func (c *Comment) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
