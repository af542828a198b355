package validation

import (
	"encoding/json"
	"strings"
)

// SignupRequest is the body of POST /api/users.
type SignupRequest struct {
	FirstName string `json:"firstname" validate:"required,alpha"`
	LastName  string `json:"lastname"  validate:"required,alpha"`
	Username  string `json:"username"  validate:"required,min=2"`
	Email     string `json:"email"     validate:"required,email"`
	Password  string `json:"password"  validate:"required,alphanum,min=8"`
}

func (SignupRequest) ValidationMessages() map[string]string {
	return map[string]string{
		"firstname.required": "First name field must be specified.",
		"firstname.alpha":    "First name can only contain alphabetic characters.",
		"lastname.required":  "Last name field must be specified.",
		"lastname.alpha":     "Last name can only contain alphabetic characters.",
		"username.required":  "Username field must be specified.",
		"username.min":       "Username must not be less than 2 characters.",
		"email.required":     "Email field cannot be blank.",
		"email.email":        "Email is invalid.",
		"password.required":  "Password must be Alphanumeric.",
		"password.alphanum":  "Password must be Alphanumeric.",
		"password.min":       "Password cannot be less than 8 characters.",
	}
}

// LoginRequest is the body of POST /api/users/login. Name is either the
// email address or the username.
type LoginRequest struct {
	Name     string `json:"name"     validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (LoginRequest) ValidationMessages() map[string]string {
	return map[string]string{
		"name.required":     "Email or Username is required to login",
		"password.required": "Password is required to login",
	}
}

// NotificationSettingsRequest is the body of PATCH /api/users/notification.
// The flags stay raw so that strings like "yes" are rejected instead of
// decoded.
type NotificationSettingsRequest struct {
	EmailNotification json.RawMessage `json:"emailNotification" validate:"required,jsonbool"`
	InAppNotification json.RawMessage `json:"inAppNotification" validate:"required,jsonbool"`
}

func (NotificationSettingsRequest) ValidationMessages() map[string]string {
	return map[string]string{
		"emailNotification.required": "Please specify if you want to recieve email notifications",
		"emailNotification.jsonbool": "emailNotification should be either true or false",
		"inAppNotification.required": "Please specify if you want to recieve in app notifications",
		"inAppNotification.jsonbool": "InAppNotification should be either true or false",
	}
}

// Values returns the validated flags.
func (r NotificationSettingsRequest) Values() (email, inApp bool) {
	return isTrue(r.EmailNotification), isTrue(r.InAppNotification)
}

func isTrue(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "true"
}

// PasswordResetRequest is the body of POST /api/users/reset-password.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (PasswordResetRequest) ValidationMessages() map[string]string {
	return map[string]string{
		"email.required": "Email field cannot be blank.",
		"email.email":    "Email is invalid.",
	}
}

// ResetPasswordRequest is the body of PATCH /api/users/reset-password.
// Matching the two passwords is a service rule with its own message.
type ResetPasswordRequest struct {
	NewPassword     string `json:"newPassword"     validate:"required,alphanum,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

func (ResetPasswordRequest) ValidationMessages() map[string]string {
	return map[string]string{
		"newPassword.required":     "Password must be Alphanumeric.",
		"newPassword.alphanum":     "Password must be Alphanumeric.",
		"newPassword.min":          "Password cannot be less than 8 characters.",
		"confirmPassword.required": "Please confirm your password.",
	}
}

// ProfileUpdateRequest is the body of PUT /api/user. Empty fields are left
// unchanged.
type ProfileUpdateRequest struct {
	FirstName string `json:"firstname" validate:"omitempty,alpha"`
	LastName  string `json:"lastname"  validate:"omitempty,alpha"`
	Bio       string `json:"bio"       validate:"omitempty,max=500"`
	Image     string `json:"image"     validate:"omitempty,url"`
}

func (ProfileUpdateRequest) ValidationMessages() map[string]string {
	return map[string]string{
		"firstname.alpha": "First name can only contain alphabetic characters.",
		"lastname.alpha":  "Last name can only contain alphabetic characters.",
		"bio.max":         "Bio cannot be more than 500 characters.",
		"image.url":       "Image must be a valid URL.",
	}
}

// ArticleRequest is the body of POST /api/articles.
type ArticleRequest struct {
	Title       string `json:"title"       validate:"required,max=255"`
	Description string `json:"description" validate:"required,max=500"`
	Body        string `json:"body"        validate:"required"`
	TagID       *int64 `json:"tagId"       validate:"omitempty,gt=0"`
	CoverURL    string `json:"coverUrl"    validate:"omitempty,url"`
}

func (ArticleRequest) ValidationMessages() map[string]string {
	return map[string]string{
		"title.required":       "Title field must be specified.",
		"title.max":            "Title cannot be more than 255 characters.",
		"description.required": "Description field must be specified.",
		"description.max":      "Description cannot be more than 500 characters.",
		"body.required":        "Body field must be specified.",
		"tagId.gt":             "tagId must be a positive number.",
		"coverUrl.url":         "coverUrl must be a valid URL.",
	}
}

// ArticleUpdateRequest is the body of PUT /api/articles/{slug}. Empty fields
// are left unchanged.
type ArticleUpdateRequest struct {
	Title       string `json:"title"       validate:"omitempty,max=255"`
	Description string `json:"description" validate:"omitempty,max=500"`
	Body        string `json:"body"`
	TagID       *int64 `json:"tagId"       validate:"omitempty,gt=0"`
	CoverURL    string `json:"coverUrl"    validate:"omitempty,url"`
}

func (ArticleUpdateRequest) ValidationMessages() map[string]string {
	return ArticleRequest{}.ValidationMessages()
}

// CommentRequest is the body of comment create and edit.
type CommentRequest struct {
	Comment string `json:"comment" validate:"required,max=2000"`
}

func (CommentRequest) ValidationMessages() map[string]string {
	return map[string]string{
		"comment.required": "Comment field must be specified.",
		"comment.max":      "Comment cannot be more than 2000 characters.",
	}
}

// RatingRequest is the body of POST /api/articles/{slug}/rating.
type RatingRequest struct {
	Rating int `json:"rating" validate:"required,gte=1,lte=5"`
}

func (RatingRequest) ValidationMessages() map[string]string {
	return map[string]string{
		"rating.required": "Rating field must be specified.",
		"rating.gte":      "Rating must be between 1 and 5.",
		"rating.lte":      "Rating must be between 1 and 5.",
	}
}

// ReportRequest is the body of POST /api/articles/{slug}/report.
type ReportRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=1000"`
}

func (ReportRequest) ValidationMessages() map[string]string {
	return map[string]string{
		"reason.required": "Please specify a reason for reporting this article.",
		"reason.min":      "Reason must not be less than 3 characters.",
		"reason.max":      "Reason cannot be more than 1000 characters.",
	}
}
