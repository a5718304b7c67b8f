// Package service wires the API client, session store and cache into the
// operations calling code uses: auth lifecycle, feed/post reads, and the
// optimistic like/pin/report/block mutations.
package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/dearfriend/dearfriend-go/internal/api"
	"github.com/dearfriend/dearfriend-go/internal/errs"
	"github.com/dearfriend/dearfriend-go/internal/model"
	"github.com/dearfriend/dearfriend-go/internal/session"
)

// Doer performs one authenticated API request. Satisfied by *api.Client.
type Doer interface {
	Do(ctx context.Context, req api.Request, out any) error
}

// ResetNotice is shown after a forgot-password request regardless of outcome,
// so responses never reveal whether an account exists for the email.
const ResetNotice = "If an account exists for that email, you'll receive a reset link shortly."

// Auth covers the session lifecycle: sign-up/in/out and password flows.
type Auth struct {
	client Doer
	store  session.Store
}

// NewAuth constructs Auth with required dependencies.
func NewAuth(client Doer, store session.Store) *Auth {
	return &Auth{client: client, store: store}
}

// SignUpInput carries the sign-up form fields.
type SignUpInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

// SignUp registers a new account. It does not establish a session.
func (a *Auth) SignUp(ctx context.Context, in SignUpInput) error {
	if in.Email == "" || in.Password == "" || in.Username == "" {
		return errors.New("empty email/password/username")
	}
	return a.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/sign-up",
		JSON:   in,
	}, nil)
}

// SignIn exchanges credentials for a token pair, persists it, and returns the
// user captured from the new session.
func (a *Auth) SignIn(ctx context.Context, email, password string) (*model.CurrentUser, error) {
	if email == "" || password == "" {
		return nil, errors.New("empty email/password")
	}

	var res struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	err := a.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/sign-in",
		JSON:   map[string]string{"email": email, "password": password},
	}, &res)
	if err != nil {
		return nil, err
	}

	tokens := model.SessionTokens{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}
	if err := a.store.SetTokens(tokens); err != nil {
		return nil, err
	}
	return a.store.CurrentUser()
}

// SignOut destroys the local session.
func (a *Auth) SignOut(ctx context.Context) error {
	return a.store.Clear()
}

// IsAuthed reports whether a token pair is stored locally. This is a silent,
// optimistic gate: the authoritative check remains server-side 401 handling in
// the request client.
func (a *Auth) IsAuthed() bool {
	tokens, err := a.store.Tokens()
	return err == nil && tokens != nil
}

// CurrentUser returns the user captured at session-establish time, or nil.
func (a *Auth) CurrentUser() (*model.CurrentUser, error) {
	return a.store.CurrentUser()
}

// ChangePassword updates the password for the signed-in user. Without a
// stored session it fails locally with errs.ErrNoSession instead of burning a
// request that can only 401.
func (a *Auth) ChangePassword(ctx context.Context, current, next string) error {
	tokens, err := a.store.Tokens()
	if err != nil {
		return err
	}
	if tokens == nil {
		return errs.ErrNoSession
	}
	return a.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/change-password",
		JSON:   map[string]string{"currentPassword": current, "newPassword": next},
	}, nil)
}

// ForgotPassword requests a reset link. The returned notice is identical on
// success and on failure to avoid user enumeration; the backend outcome is
// deliberately not surfaced.
func (a *Auth) ForgotPassword(ctx context.Context, email string) string {
	_ = a.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/forgot-password",
		JSON:   map[string]string{"email": email},
	}, nil)
	return ResetNotice
}

// ResetPassword sets a new password using the one-time token from a reset
// deep link. The token rides in an explicit Authorization header, which takes
// precedence over any stored session.
func (a *Auth) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" || newPassword == "" {
		return errors.New("empty token/password")
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+resetToken)
	return a.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/update-password",
		JSON:   map[string]string{"newPassword": newPassword},
		Header: header,
	}, nil)
}
