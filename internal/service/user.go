package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/repository"
)

// UserService covers the signed-in user's account, public profiles and the
// follow graph.
type UserService struct {
	users    repository.UserRepository
	follows  repository.FollowRepository
	notifier Notifier
	logger   *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	follows repository.FollowRepository,
	notifier Notifier,
	logger *slog.Logger,
) *UserService {
	return &UserService{users: users, follows: follows, notifier: notifier, logger: logger}
}

// IsActive reports whether the user has verified their email. It satisfies
// auth.ActiveChecker.
func (s *UserService) IsActive(ctx context.Context, id int64) (bool, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return false, err
	}
	return u.Active, nil
}

// UserRole returns the role stored on the account. It satisfies
// auth.RoleChecker.
func (s *UserService) UserRole(ctx context.Context, id int64) (string, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetUserByID(ctx, id)
}

// ProfileUpdate holds the editable profile fields. Empty values keep the
// current value.
type ProfileUpdate struct {
	FirstName string
	LastName  string
	Bio       string
	Image     string
}

func (s *UserService) UpdateProfile(ctx context.Context, id int64, in ProfileUpdate) (*model.User, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if v := strings.TrimSpace(in.FirstName); v != "" {
		u.FirstName = v
	}
	if v := strings.TrimSpace(in.LastName); v != "" {
		u.LastName = v
	}
	if v := strings.TrimSpace(in.Bio); v != "" {
		u.Bio = v
	}
	if v := strings.TrimSpace(in.Image); v != "" {
		u.Image = v
	}

	if err := s.users.UpdateUserProfile(ctx, u); err != nil {
		return nil, fmt.Errorf("service/user: updating profile %d: %w", id, err)
	}
	return u, nil
}

func (s *UserService) UpdateNotificationSettings(ctx context.Context, id int64, email, inApp bool) (*model.User, error) {
	if err := s.users.UpdateNotificationSettings(ctx, id, email, inApp); err != nil {
		return nil, err
	}
	s.logger.Info("notification settings updated",
		slog.Int64("userID", id),
		slog.Bool("email", email),
		slog.Bool("inApp", inApp),
	)
	return s.users.GetUserByID(ctx, id)
}

// =========================================================================
// PROFILES AND FOLLOWS
// =========================================================================

func (s *UserService) byUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.New(apperror.ErrNotFound,
				fmt.Sprintf("User with username %s does not exist", username))
		}
		return nil, fmt.Errorf("service/user: looking up %s: %w", username, err)
	}
	return u, nil
}

// Profile returns username's public profile. viewerID is zero for anonymous
// callers; otherwise Following says whether the viewer follows the user.
func (s *UserService) Profile(ctx context.Context, viewerID int64, username string) (*model.Profile, error) {
	u, err := s.byUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	p := model.ProfileOf(u)
	if viewerID > 0 && viewerID != u.ID {
		following, err := s.follows.IsFollowing(ctx, viewerID, u.ID)
		if err != nil {
			return nil, fmt.Errorf("service/user: checking follow: %w", err)
		}
		p.Following = following
	}
	return &p, nil
}

// Follow makes followerID follow username and notifies them.
func (s *UserService) Follow(ctx context.Context, followerID int64, username string) (*model.Profile, error) {
	target, err := s.byUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if target.ID == followerID {
		return nil, apperror.Forbidden("you cannot follow yourself")
	}

	if err := s.follows.Follow(ctx, followerID, target.ID); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Forbidden(fmt.Sprintf("you are already following %s", target.Username))
		}
		return nil, fmt.Errorf("service/user: following %s: %w", username, err)
	}

	follower, err := s.users.GetUserByID(ctx, followerID)
	if err != nil {
		s.logger.Warn("follow succeeded but follower lookup failed",
			slog.Int64("followerID", followerID),
			slog.String("error", err.Error()),
		)
	} else {
		s.notifier.Followed(ctx, follower, target)
	}

	p := model.ProfileOf(target)
	p.Following = true
	return &p, nil
}

func (s *UserService) Unfollow(ctx context.Context, followerID int64, username string) (*model.Profile, error) {
	target, err := s.byUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if target.ID == followerID {
		return nil, apperror.Forbidden("you cannot unfollow yourself")
	}

	if err := s.follows.Unfollow(ctx, followerID, target.ID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.New(apperror.ErrNotFound,
				fmt.Sprintf("you are not following %s", target.Username))
		}
		return nil, fmt.Errorf("service/user: unfollowing %s: %w", username, err)
	}

	p := model.ProfileOf(target)
	return &p, nil
}

// Followers lists the profiles following username.
func (s *UserService) Followers(ctx context.Context, username string) ([]model.Profile, error) {
	u, err := s.byUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	users, err := s.follows.ListFollowers(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("service/user: listing followers of %s: %w", username, err)
	}
	return profiles(users), nil
}

// Following lists the profiles username follows.
func (s *UserService) Following(ctx context.Context, username string) ([]model.Profile, error) {
	u, err := s.byUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	users, err := s.follows.ListFollowing(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("service/user: listing following of %s: %w", username, err)
	}
	out := profiles(users)
	for i := range out {
		out[i].Following = true
	}
	return out, nil
}

func profiles(users []model.User) []model.Profile {
	out := make([]model.Profile, 0, len(users))
	for i := range users {
		out = append(out, model.ProfileOf(&users[i]))
	}
	return out
}
