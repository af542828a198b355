package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/auth"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/repository"
)

// MaxUsernameAttempts caps the search for a free username during social
// login.
const MaxUsernameAttempts = 1000

// SocialResolver maps a provider identity onto a local account.
//
// A known email returns the existing user untouched. Otherwise a free
// username is derived from the profile and a new active user is inserted.
// The resolver never talks to the provider; the profile has already been
// fetched by auth.Provider.
type SocialResolver struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewSocialResolver(users repository.UserRepository, logger *slog.Logger) *SocialResolver {
	return &SocialResolver{users: users, logger: logger}
}

// Resolve returns the user for p, creating one on first sight.
func (r *SocialResolver) Resolve(ctx context.Context, p auth.SocialProfile) (*model.User, error) {
	email := strings.TrimSpace(p.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "the social account did not share an email address")
	}

	existing, err := r.users.GetUserByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/social: looking up %s: %w", email, err)
	}

	username, err := r.freeUsername(ctx, candidateUsername(p))
	if err != nil {
		return nil, err
	}

	firstName := strings.TrimSpace(p.FirstName)
	if firstName == "" {
		firstName = username
	}
	lastName := strings.TrimSpace(p.LastName)
	if lastName == "" {
		lastName = username
	}

	u := &model.User{
		Email:             email,
		Username:          username,
		FirstName:         firstName,
		LastName:          lastName,
		Image:             p.AvatarURL,
		Role:              model.RoleUser,
		Active:            true,
		EmailNotification: true,
		InAppNotification: true,
		Provider:          p.Provider,
		ProviderID:        p.ProviderID,
	}
	if err := r.users.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("service/social: creating user %s: %w", email, err)
	}

	r.logger.Info("user registered via social login",
		slog.Int64("userID", u.ID),
		slog.String("username", u.Username),
		slog.String("provider", p.Provider),
	)
	return u, nil
}

// freeUsername walks NextUsername from candidate until an unused name turns
// up or MaxUsernameAttempts is reached.
func (r *SocialResolver) freeUsername(ctx context.Context, candidate string) (string, error) {
	name := candidate
	for i := 0; i < MaxUsernameAttempts; i++ {
		taken, err := r.users.UsernameExists(ctx, name)
		if err != nil {
			return "", fmt.Errorf("service/social: checking username %s: %w", name, err)
		}
		if !taken {
			return name, nil
		}
		name = NextUsername(name)
	}
	return "", apperror.New(apperror.ErrConflict,
		fmt.Sprintf("could not find a free username based on %q", candidate))
}

// fallbackUsername is the stem used when the profile offers nothing usable.
const fallbackUsername = "user"

// candidateUsername prefers the provider username, then the first name, then
// the local part of the email. Case is kept: usernames are case-sensitive.
func candidateUsername(p auth.SocialProfile) string {
	local, _, _ := strings.Cut(p.Email, "@")
	for _, c := range []string{p.Username, p.FirstName, local} {
		if c = strings.Join(strings.Fields(c), ""); c != "" {
			return c
		}
	}
	return fallbackUsername
}

// NextUsername increments a trailing integer ("john45" → "john46") or
// appends "1" when there is none ("john" → "john1"). Zero padding is kept
// ("shaolin007" → "shaolin008").
func NextUsername(name string) string {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) {
		return name + "1"
	}
	n, err := strconv.ParseUint(name[i:], 10, 64)
	if err != nil {
		// Too many digits to count; start a fresh suffix.
		return name + "1"
	}
	width := len(name) - i
	return name[:i] + fmt.Sprintf("%0*d", width, n+1)
}
