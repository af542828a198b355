package model

import "time"

// Notification types.
const (
	NotifyNewArticle = "new_article"
	NotifyNewComment = "new_comment"
	NotifyNewFollow  = "new_follower"
)

// Notification is an in-app message for one recipient. Only IsRead changes
// after creation.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	ArticleID *int64    `json:"articleId,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}
