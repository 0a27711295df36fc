package app

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/auth"
	"github.com/spigell/hirewire/internal/identity"
	"github.com/spigell/hirewire/internal/logger"
	"github.com/spigell/hirewire/internal/router"
)

type SignUpInput struct {
	Email    string
	Password string
	Name     string
	Role     identity.Role
}

// SignUp registers a new account. When the provider asks for an email
// confirmation there is no session yet and the user stays signed out.
func (a *App) SignUp(ctx context.Context, in SignUpInput) error {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		a.notices.Error("Sign Up Failed", "Email and password are required.")
		return errors.New("email and password are required")
	}

	meta := auth.UserMetadata{FullName: strings.TrimSpace(in.Name), Role: string(identity.ParseRole(string(in.Role)))}
	sess, err := a.auth.SignUp(ctx, email, in.Password, meta)
	if err != nil {
		a.providerFailure("Sign Up Failed", err)
		return err
	}
	if sess == nil {
		a.notices.Info("Check Your Email", "Confirm your email address to finish signing up.")
		return nil
	}

	a.land()
	a.notices.Success("Welcome", "Your account is ready.")
	return nil
}

// SignIn authenticates with email and password and moves to the landing
// view of the signed-in identity.
func (a *App) SignIn(ctx context.Context, email, password string) error {
	if _, err := a.auth.SignIn(ctx, strings.TrimSpace(email), password); err != nil {
		a.providerFailure("Sign In Failed", err)
		return err
	}

	a.land()
	return nil
}

// ExchangeCode completes a social sign-in callback.
func (a *App) ExchangeCode(ctx context.Context, code, verifier string) error {
	if _, err := a.auth.ExchangeCode(ctx, code, verifier); err != nil {
		a.providerFailure("Sign In Failed", err)
		return err
	}

	a.land()
	return nil
}

// SignOut ends the session. The local session is always cleared, even when
// the provider could not be reached.
func (a *App) SignOut(ctx context.Context) error {
	err := a.auth.SignOut(ctx)
	if err != nil {
		a.logger.Warn("remote sign-out failed", zap.Error(err))
	}

	// The provider normally publishes the sign-out; handle it directly in
	// case it did not.
	if !a.holder.Current().IsGuest() {
		a.syncer.Handle(nil)
	}

	a.notices.Info("Signed Out", "See you soon.")
	return err
}

// Navigate asks for view on behalf of intent. Blocked requests move to the
// redirect target and post the gate's notice.
func (a *App) Navigate(view router.View, intent router.Intent) router.Decision {
	d := router.Gate(router.Request{View: view, Intent: intent}, a.holder.Current())
	a.follow(d)
	return d
}

// NavigateHome shows the home view without touching the session.
func (a *App) NavigateHome() router.Decision {
	d := router.NavigateHome()
	a.follow(d)
	return d
}

// GoHome is the home button: it signs out an authenticated user and then
// shows the home view.
func (a *App) GoHome(ctx context.Context) router.Decision {
	if !a.holder.Current().IsGuest() {
		_ = a.SignOut(ctx)
	}
	return a.NavigateHome()
}

// gate checks an operation the same way navigation would, following the
// redirect when it is refused.
func (a *App) gate(view router.View, intent router.Intent) (identity.Identity, bool) {
	id := a.holder.Current()
	d := router.Gate(router.Request{View: view, Intent: intent}, id)
	if d.Allowed {
		return id, true
	}
	a.follow(d)
	return id, false
}

func (a *App) follow(d router.Decision) {
	a.mu.Lock()
	a.view = d.View
	a.intent = d.Intent
	a.mu.Unlock()

	if d.Notice != nil {
		a.notices.Notify(d.Notice.Severity, d.Notice.Title, d.Notice.Message)
	}
}

func (a *App) land() {
	// Read the identity under the lock so a profile merge racing with this
	// call is either seen here or re-lands in identityChanged.
	a.mu.Lock()
	id := a.holder.Current()
	a.view = router.Landing(id)
	a.landing = a.view
	view := a.view
	a.mu.Unlock()

	a.logger.Info("signed in", zap.String(logger.FieldUserID, id.ID), zap.String("view", string(view)))
}

func (a *App) providerFailure(title string, err error) {
	var pe *auth.ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		a.notices.Error(title, pe.Message)
		return
	}
	a.logger.Warn(strings.ToLower(title), zap.Error(err))
	a.notices.Error(title, "The sign-in service could not be reached. Please try again.")
}
