package dispatch

import (
	"bytes"
	"fmt"
	"html/template"
)

const layout = `<!DOCTYPE html>
<html>
<head>
<style>
  body { font-family: 'Open Sans', sans-serif; text-align: center; padding: 60px; }
  .banner { background: #5863f8; color: #fff; padding: 20px; }
  .action { display: inline-block; background: #5863f8; color: #fff; padding: 10px; border-radius: 5px; text-decoration: none; }
</style>
</head>
<body>
<div class="banner"><h2>Authors Haven</h2><p>Hi {{.Username}},</p></div>
<p>{{.Message}}</p>
{{if .Link}}<p><a class="action" href="{{.Link}}">{{.Action}}</a></p>{{end}}
</body>
</html>`

var emailTemplate = template.Must(template.New("email").Parse(layout))

type emailData struct {
	Username string
	Message  string
	Link     string
	Action   string
}

func render(to, subject string, data emailData) (Email, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return Email{}, fmt.Errorf("dispatch: rendering %q email: %w", subject, err)
	}

	text := fmt.Sprintf("Hi %s,\n\n%s\n", data.Username, data.Message)
	if data.Link != "" {
		text += "\n" + data.Action + ": " + data.Link + "\n"
	}
	return Email{To: to, Subject: subject, Text: text, HTML: buf.String()}, nil
}

// VerifyEmailMessage builds the signup verification email.
func VerifyEmailMessage(to, username, link string) (Email, error) {
	return render(to, "Authors Haven: verify your email", emailData{
		Username: username,
		Message:  "Welcome to Authors Haven. Please confirm your email address to activate your account.",
		Link:     link,
		Action:   "Verify email",
	})
}

// ResetPasswordMessage builds the password reset email.
func ResetPasswordMessage(to, username, link string) (Email, error) {
	return render(to, "Authors Haven: reset your password", emailData{
		Username: username,
		Message:  "We received a request to reset your password. The link below expires soon; ignore this email if you did not ask for it.",
		Link:     link,
		Action:   "Reset password",
	})
}

// NotificationMessage builds the email copy of an in-app notification.
func NotificationMessage(to, username, message, link string) (Email, error) {
	return render(to, "Authors Haven: new notification", emailData{
		Username: username,
		Message:  message,
		Link:     link,
		Action:   "View on Authors Haven",
	})
}
