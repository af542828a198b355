package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/auth"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/service"
	"github.com/sakif/authors-haven/internal/validation"
)

const stateCookie = "oauth_state"

// AuthHandler covers signup, email verification, login, password reset and
// the social login flow.
//
// DEPENDENCY CHAIN:
//   - auth      *service.AuthService → account rules and token issuing
//   - providers *auth.Providers      → OAuth code exchange per provider
type AuthHandler struct {
	auth      *service.AuthService
	providers *auth.Providers
	// redirectURL is where the browser lands after a social login attempt.
	redirectURL string
	secure      bool
	logger      *slog.Logger
}

func NewAuthHandler(
	authService *service.AuthService,
	providers *auth.Providers,
	redirectURL string,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:        authService,
		providers:   providers,
		redirectURL: strings.TrimRight(redirectURL, "/"),
		secure:      secureCookies,
		logger:      logger,
	}
}

// userWithToken is the user object returned by signup and login: the user's
// fields with the access token alongside.
type userWithToken struct {
	*model.User
	Token string `json:"token"`
}

// HandleSignup is POST /api/users.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	req, ok := bodyOf[validation.SignupRequest](w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.auth.Signup(r.Context(), service.SignupInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{
		"message": "user created successfully",
		"user":    userWithToken{User: res.User, Token: res.Token},
	})
}

// HandleVerifyEmail is GET /api/users/verifyemail?token=...
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	u, err := h.auth.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "email verified successfully",
		"user":    u,
	})
}

// HandleLogin is POST /api/users/login. The name field takes an email
// address or a username.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := bodyOf[validation.LoginRequest](w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.auth.Login(r.Context(), req.Name, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"message": "user logged in successfully",
		"user":    userWithToken{User: res.User, Token: res.Token},
	})
}

// HandleRequestReset is POST /api/users/reset-password.
func (h *AuthHandler) HandleRequestReset(w http.ResponseWriter, r *http.Request) {
	req, ok := bodyOf[validation.PasswordResetRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "Please, verify password reset link in your email box",
	})
}

// HandleResetPassword is PATCH /api/users/reset-password?token=...
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	req, ok := bodyOf[validation.ResetPasswordRequest](w, r, h.logger)
	if !ok {
		return
	}

	err := h.auth.ResetPassword(r.Context(), r.URL.Query().Get("token"), req.NewPassword, req.ConfirmPassword)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "Password reset successful. Please, login using your new password.",
	})
}

// =========================================================================
// SOCIAL LOGIN
// =========================================================================

// HandleSocialLogin redirects the browser to the provider's consent page.
//
// HTTP: GET /api/users/auth/{provider}
//
// CSRF PROTECTION VIA STATE:
// A random state value goes into a short-lived HttpOnly cookie and into the
// authorization URL. The callback only proceeds when the provider echoes
// the same value back.
func (h *AuthHandler) HandleSocialLogin(w http.ResponseWriter, r *http.Request) {
	provider, err := h.providers.Get(chi.URLParam(r, "provider"))
	if err != nil {
		writeError(w, h.logger, apperror.New(apperror.ErrNotFound, "Route not found"))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/users/auth",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleSocialCallback completes the OAuth flow.
//
// HTTP: GET /api/users/auth/{provider}/redirect?code=...&state=...
//
// The outcome is always a redirect to the client app: ?token=<jwt> on
// success, ?errorData=<message> when consent was denied or anything failed.
func (h *AuthHandler) HandleSocialCallback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, err := h.providers.Get(name)
	if err != nil {
		writeError(w, h.logger, apperror.New(apperror.ErrNotFound, "Route not found"))
		return
	}

	q := r.URL.Query()
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || q.Get("state") != cookie.Value {
		h.logger.Warn("social callback: state mismatch", slog.String("provider", name))
		h.redirectWithError(w, r, "invalid OAuth state")
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/api/users/auth",
		MaxAge: -1,
	})

	if denied := q.Get("error"); denied != "" {
		h.logger.Info("social callback: consent denied",
			slog.String("provider", name),
			slog.String("error", denied),
		)
		h.redirectWithError(w, r, "authorization was denied")
		return
	}

	code := q.Get("code")
	if code == "" {
		h.redirectWithError(w, r, "missing OAuth code")
		return
	}

	profile, err := provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("social callback: exchange failed",
			slog.String("provider", name),
			slog.String("error", err.Error()),
		)
		h.redirectWithError(w, r, "authentication failed")
		return
	}

	res, err := h.auth.LoginSocial(r.Context(), profile)
	if err != nil {
		msg := "authentication failed"
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			msg = appErr.Message
		} else {
			h.logger.Error("social callback: login failed",
				slog.String("provider", name),
				slog.String("error", err.Error()),
			)
		}
		h.redirectWithError(w, r, msg)
		return
	}

	http.Redirect(w, r, h.redirectURL+"/?token="+url.QueryEscape(res.Token), http.StatusSeeOther)
}

func (h *AuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, h.redirectURL+"/?errorData="+url.QueryEscape(msg), http.StatusSeeOther)
}
