package model

import "time"

// Article is a published piece of writing.
//
// Slug is derived from the title plus the numeric ID ("my-title-42"), which
// keeps it unique without a lookup loop. Rating is the running average of
// RatingCount reviews and is only ever updated incrementally.
type Article struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	TagID       *int64    `json:"tagId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Body        string    `json:"body"`
	CoverURL    string    `json:"coverUrl"`
	Slug        string    `json:"slug"`
	Rating      float64   `json:"rating"`
	RatingCount int64     `json:"ratingCount"`
	TotalClaps  int64     `json:"totalClaps"`
	ReadTime    string    `json:"readTime"` // computed, not stored
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Author *Profile `json:"author,omitempty"`
}

// Tag groups articles by topic. Deleting a tag deletes its articles.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Rating is one user's review of an article.
type Rating struct {
	ArticleID int64     `json:"articleId"`
	UserID    int64     `json:"userId"`
	Value     int       `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is an ArticleComment row.
type Comment struct {
	ID         int64     `json:"id"`
	ArticleID  int64     `json:"articleId"`
	UserID     int64     `json:"userId"`
	Comment    string    `json:"comment"`
	TotalLikes int64     `json:"totalLikes"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Author *Profile `json:"author,omitempty"`
}

// CommentEdit records the text a comment had before an edit.
type CommentEdit struct {
	ID        int64     `json:"id"`
	CommentID int64     `json:"commentId"`
	Comment   string    `json:"comment"`
	EditedAt  time.Time `json:"editedAt"`
}

// Report flags an article for moderators.
type Report struct {
	ID        int64     `json:"id"`
	ArticleID int64     `json:"articleId"`
	UserID    int64     `json:"userId"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}
