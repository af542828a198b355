package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/auth"
	"github.com/sakif/authors-haven/internal/dispatch"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/repository"
)

// AuthConfig carries the settings AuthService needs from config.Config.
type AuthConfig struct {
	// AppURL prefixes the links sent by email.
	AppURL         string
	VerifyEmailTTL time.Duration
	ResetTTL       time.Duration
}

// AuthService handles signup, email verification, login and password reset.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository → read/write user records
//   - resolver   *SocialResolver           → social login account lookup
//   - tokens     *auth.TokenService        → access and email-link JWTs
//   - passwords  *auth.PasswordService     → bcrypt
//   - dispatcher Dispatcher                → verification and reset emails
type AuthService struct {
	users      repository.UserRepository
	resolver   *SocialResolver
	tokens     *auth.TokenService
	passwords  *auth.PasswordService
	dispatcher Dispatcher
	cfg        AuthConfig
	logger     *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	resolver *SocialResolver,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	dispatcher Dispatcher,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:      users,
		resolver:   resolver,
		tokens:     tokens,
		passwords:  passwords,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
	}
}

// AuthResult bundles a user with a freshly issued access token.
type AuthResult struct {
	User  *model.User
	Token string
}

// SignupInput is the validated signup form.
type SignupInput struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Password  string
}

// Signup creates an inactive account and emails a verification link.
// The returned token works immediately, but routes that require an active
// account refuse it until the email is verified.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "Password cannot be more than 72 characters.")
	}

	u := &model.User{
		FirstName:         strings.TrimSpace(in.FirstName),
		LastName:          strings.TrimSpace(in.LastName),
		Username:          strings.TrimSpace(in.Username),
		Email:             strings.TrimSpace(in.Email),
		Password:          hash,
		Role:              model.RoleUser,
		EmailNotification: true,
		InAppNotification: true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.sendVerification(u)

	token, err := s.accessToken(u)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed up",
		slog.Int64("userID", u.ID),
		slog.String("username", u.Username),
	)
	return &AuthResult{User: u, Token: token}, nil
}

func (s *AuthService) sendVerification(u *model.User) {
	token, err := s.tokens.GenerateWithDuration(auth.Payload{
		UserID:  u.ID,
		Email:   u.Email,
		Purpose: auth.PurposeVerifyEmail,
	}, s.cfg.VerifyEmailTTL)
	if err != nil {
		s.logger.Error("signing verification token", slog.Int64("userID", u.ID), slog.String("error", err.Error()))
		return
	}

	link := s.cfg.AppURL + "/api/users/verifyemail?token=" + url.QueryEscape(token)
	msg, err := dispatch.VerifyEmailMessage(u.Email, u.Username, link)
	if err != nil {
		s.logger.Error("rendering verification email", slog.Int64("userID", u.ID), slog.String("error", err.Error()))
		return
	}
	s.dispatcher.SendEmail(msg)
}

// VerifyEmail activates the account named by a verification token.
// Verifying an already active account succeeds without a write.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	p, err := s.tokens.ValidatePurpose(token, auth.PurposeVerifyEmail)
	if err != nil {
		return nil, apperror.New(apperror.ErrValidation, "invalid email")
	}

	u, err := s.users.GetUserByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.New(apperror.ErrNotFound, "user doesn't exist")
		}
		return nil, fmt.Errorf("service/auth: loading user %d: %w", p.UserID, err)
	}
	if !strings.EqualFold(u.Email, p.Email) {
		return nil, apperror.New(apperror.ErrValidation, "invalid email")
	}

	if !u.Active {
		if err := s.users.ActivateUser(ctx, u.ID); err != nil {
			return nil, fmt.Errorf("service/auth: activating user %d: %w", u.ID, err)
		}
		u.Active = true
		s.logger.Info("email verified", slog.Int64("userID", u.ID))
	}
	return u, nil
}

// Login authenticates by email or username. An unknown name is a 404 and a
// wrong password a 403, both with the same message.
func (s *AuthService) Login(ctx context.Context, name, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)

	var u *model.User
	var err error
	if strings.Contains(name, "@") {
		u, err = s.users.GetUserByEmail(ctx, name)
	} else {
		u, err = s.users.GetUserByUsername(ctx, name)
	}
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.New(apperror.ErrNotFound, "invalid credentials")
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", name, err)
	}

	if err := s.passwords.Verify(u.Password, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Forbidden("invalid credentials")
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}
	if !u.Active {
		return nil, apperror.Forbidden("You have to verify your email before you login")
	}

	token, err := s.accessToken(u)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", slog.Int64("userID", u.ID))
	return &AuthResult{User: u, Token: token}, nil
}

// RequestPasswordReset emails a time-boxed reset link.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.New(apperror.ErrNotFound, "user not found in our records")
		}
		return fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	token, err := s.tokens.GenerateWithDuration(auth.Payload{
		UserID:  u.ID,
		Email:   u.Email,
		Purpose: auth.PurposeResetPassword,
	}, s.cfg.ResetTTL)
	if err != nil {
		return fmt.Errorf("service/auth: signing reset token: %w", err)
	}

	link := s.cfg.AppURL + "/api/users/reset-password?token=" + url.QueryEscape(token)
	msg, err := dispatch.ResetPasswordMessage(u.Email, u.Username, link)
	if err != nil {
		return fmt.Errorf("service/auth: rendering reset email: %w", err)
	}
	s.dispatcher.SendEmail(msg)

	s.logger.Info("password reset requested", slog.Int64("userID", u.ID))
	return nil
}

// ResetPassword sets a new password for the user named by a reset token.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword, confirm string) error {
	if newPassword != confirm {
		return apperror.New(apperror.ErrValidation, "The supplied passwords do not match")
	}

	p, err := s.tokens.ValidatePurpose(token, auth.PurposeResetPassword)
	if err != nil {
		return apperror.New(apperror.ErrValidation, "Invalid password reset link")
	}

	u, err := s.users.GetUserByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.New(apperror.ErrNotFound, "User not found")
		}
		return fmt.Errorf("service/auth: loading user %d: %w", p.UserID, err)
	}
	if !strings.EqualFold(u.Email, p.Email) {
		return apperror.New(apperror.ErrValidation, "Invalid password reset link")
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return apperror.ValidationFailed("newPassword", "Password cannot be more than 72 characters.")
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return fmt.Errorf("service/auth: updating password for user %d: %w", u.ID, err)
	}

	s.logger.Info("password reset", slog.Int64("userID", u.ID))
	return nil
}

// LoginSocial resolves a provider profile to a local user and issues an
// access token.
func (s *AuthService) LoginSocial(ctx context.Context, p *auth.SocialProfile) (*AuthResult, error) {
	if p == nil {
		return nil, fmt.Errorf("service/auth: social profile must not be nil")
	}

	u, err := s.resolver.Resolve(ctx, *p)
	if err != nil {
		return nil, err
	}

	token, err := s.accessToken(u)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user authenticated via social login",
		slog.Int64("userID", u.ID),
		slog.String("provider", p.Provider),
	)
	return &AuthResult{User: u, Token: token}, nil
}

func (s *AuthService) accessToken(u *model.User) (string, error) {
	token, err := s.tokens.Generate(auth.Payload{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Purpose:  auth.PurposeAccess,
	})
	if err != nil {
		return "", fmt.Errorf("service/auth: generating token for user %d: %w", u.ID, err)
	}
	return token, nil
}
