package auth

import (
	"context"
	"strings"
	"time"

	"pinharvest/pkg/browser"
	"pinharvest/pkg/errors"
	"pinharvest/pkg/logger"
)

// Strategy is one way of establishing an authenticated session. Strategies
// are attempted in order by the Coordinator until one succeeds.
type Strategy interface {
	// Name identifies the strategy in logs and session records.
	Name() string

	// Authenticate drives the surface through the login flow. A nil error
	// means the session is established and verified on the surface.
	Authenticate(ctx context.Context, s browser.Surface) (*Session, error)
}

const (
	StrategySessionRestore = "session_restore"
	StrategyFederated      = "federated"
	StrategyDirect         = "direct"
)

// SessionRestore replays previously saved tokens and verifies that the site
// still accepts them. Stale tokens fail the probe rather than the strategy
// silently passing them through.
type SessionRestore struct {
	Flow   Flow
	Store  CredentialStore
	Name_  string
	Logger logger.Logger
}

// NewSessionRestore creates the token-replay strategy for the named account.
func NewSessionRestore(flow Flow, store CredentialStore, accountName string) *SessionRestore {
	return &SessionRestore{
		Flow:   flow,
		Store:  store,
		Name_:  accountName,
		Logger: logger.GetLogger(),
	}
}

func (s *SessionRestore) Name() string { return StrategySessionRestore }

func (s *SessionRestore) Authenticate(ctx context.Context, surface browser.Surface) (*Session, error) {
	account, err := s.Store.Retrieve(s.Name_)
	if err != nil {
		return nil, errors.NewAuthFailure("no saved session available", err)
	}
	if len(account.Tokens) == 0 {
		return nil, errors.NewAuthFailure("saved account has no session tokens", nil)
	}

	// Cookies must be set against the target origin, so land there first.
	if err := surface.Navigate(ctx, s.Flow.HomeURL, browser.WaitLoad, 0); err != nil {
		return nil, errors.NewAuthFailure("failed to open site before restoring session", err)
	}
	if err := surface.SetCookies(account.Tokens); err != nil {
		return nil, errors.NewAuthFailure("failed to install saved tokens", err)
	}
	if err := surface.Navigate(ctx, s.Flow.HomeURL, browser.WaitLoad, 0); err != nil {
		return nil, errors.NewAuthFailure("failed to reload after restoring session", err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, ok := s.Flow.LoggedInProbe.FindWait(probeCtx, surface, 0); !ok {
		return nil, errors.NewAuthFailure("saved session rejected by site", nil)
	}

	return &Session{Tokens: account.Tokens, Valid: true, Strategy: StrategySessionRestore}, nil
}

// FederatedLogin signs in through the federated identity provider. The
// provider may open its consent screen in a popup or navigate the current
// tab; both are handled.
type FederatedLogin struct {
	Flow        Flow
	Credentials Credentials
	StepTimeout time.Duration
	Logger      logger.Logger
}

// NewFederatedLogin creates the identity-provider strategy.
func NewFederatedLogin(flow Flow, creds Credentials, stepTimeout time.Duration) *FederatedLogin {
	if stepTimeout <= 0 {
		stepTimeout = 15 * time.Second
	}
	return &FederatedLogin{
		Flow:        flow,
		Credentials: creds,
		StepTimeout: stepTimeout,
		Logger:      logger.GetLogger(),
	}
}

func (f *FederatedLogin) Name() string { return StrategyFederated }

func (f *FederatedLogin) Authenticate(ctx context.Context, surface browser.Surface) (*Session, error) {
	if f.Credentials.Email == "" || f.Credentials.Password == "" {
		return nil, errors.NewAuthFailure("federated login requires email and password", nil)
	}

	if err := surface.Navigate(ctx, f.Flow.LoginURL, browser.WaitLoad, 0); err != nil {
		return nil, errors.NewAuthFailure("failed to open login page", err)
	}

	btnCtx, cancel := context.WithTimeout(ctx, f.StepTimeout)
	button, ok := f.Flow.FederatedButton.FindWait(btnCtx, surface, 0)
	cancel()
	if !ok {
		return nil, errors.NewAuthFailure("federated sign-in button not found", nil)
	}
	if err := button.Click(); err != nil {
		return nil, errors.NewAuthFailure("failed to open federated sign-in", err)
	}

	provider, err := f.waitForProviderSurface(ctx, surface)
	if err != nil {
		return nil, err
	}

	if err := f.submitStep(ctx, provider, f.Flow.EmailField, f.Flow.EmailNext, f.Credentials.Email); err != nil {
		return nil, err
	}
	if err := f.submitStep(ctx, provider, f.Flow.PasswordField, f.Flow.PasswordNext, f.Credentials.Password); err != nil {
		return nil, err
	}

	if err := f.verify(ctx, surface); err != nil {
		return nil, err
	}

	tokens, err := surface.Cookies()
	if err != nil {
		return nil, errors.NewAuthFailure("failed to read session tokens", err)
	}
	return &Session{Tokens: tokens, Valid: true, Strategy: StrategyFederated}, nil
}

// waitForProviderSurface locates the identity provider's page, polling while
// the popup or navigation settles.
func (f *FederatedLogin) waitForProviderSurface(ctx context.Context, surface browser.Surface) (browser.Surface, error) {
	waitCtx, cancel := context.WithTimeout(ctx, f.StepTimeout)
	defer cancel()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if provider, ok := f.Flow.federatedSurface(surface); ok {
			return provider, nil
		}
		select {
		case <-waitCtx.Done():
			return nil, errors.NewAuthFailure("identity provider page never appeared", waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// submitStep fills one field of the provider flow and advances. When the next
// button cannot be found, pressing Enter in the field is used instead.
func (f *FederatedLogin) submitStep(ctx context.Context, provider browser.Surface, field, next Locator, value string) error {
	stepCtx, cancel := context.WithTimeout(ctx, f.StepTimeout)
	defer cancel()

	el, ok := field.FindWait(stepCtx, provider, 0)
	if !ok {
		return errors.NewAuthFailure("provider field not found: "+field.Name, nil)
	}
	if err := el.Input(value); err != nil {
		return errors.NewAuthFailure("failed to fill "+field.Name, err)
	}

	if button, ok := next.Find(provider); ok {
		if err := button.Click(); err == nil {
			return nil
		}
	}
	if err := el.PressEnter(); err != nil {
		return errors.NewAuthFailure("failed to advance past "+field.Name, err)
	}
	return nil
}

// verify waits for the site to show a logged-in surface after the provider
// flow completes.
func (f *FederatedLogin) verify(ctx context.Context, surface browser.Surface) error {
	verifyCtx, cancel := context.WithTimeout(ctx, f.StepTimeout)
	defer cancel()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if f.Flow.LoggedInProbe.Present(surface) {
			return nil
		}
		url := surface.URL()
		if !strings.Contains(url, f.Flow.LoginPathFragment) && !containsFold(url, f.Flow.FederatedHostFragment) {
			return nil
		}
		select {
		case <-verifyCtx.Done():
			return errors.NewAuthFailure("site did not confirm federated login", verifyCtx.Err())
		case <-ticker.C:
		}
	}
}

// DirectLogin submits credentials to the site's own login form. Success is
// judged by the URL leaving the login path.
type DirectLogin struct {
	Flow        Flow
	Credentials Credentials
	StepTimeout time.Duration
	Logger      logger.Logger
}

// NewDirectLogin creates the site-native credential strategy.
func NewDirectLogin(flow Flow, creds Credentials, stepTimeout time.Duration) *DirectLogin {
	if stepTimeout <= 0 {
		stepTimeout = 15 * time.Second
	}
	return &DirectLogin{
		Flow:        flow,
		Credentials: creds,
		StepTimeout: stepTimeout,
		Logger:      logger.GetLogger(),
	}
}

func (d *DirectLogin) Name() string { return StrategyDirect }

func (d *DirectLogin) Authenticate(ctx context.Context, surface browser.Surface) (*Session, error) {
	if d.Credentials.Email == "" || d.Credentials.Password == "" {
		return nil, errors.NewAuthFailure("direct login requires email and password", nil)
	}

	if err := surface.Navigate(ctx, d.Flow.LoginURL, browser.WaitLoad, 0); err != nil {
		return nil, errors.NewAuthFailure("failed to open login page", err)
	}

	stepCtx, cancel := context.WithTimeout(ctx, d.StepTimeout)
	emailEl, ok := d.Flow.DirectEmail.FindWait(stepCtx, surface, 0)
	cancel()
	if !ok {
		return nil, errors.NewAuthFailure("login form email field not found", nil)
	}
	if err := emailEl.Input(d.Credentials.Email); err != nil {
		return nil, errors.NewAuthFailure("failed to fill email field", err)
	}

	passEl, ok := d.Flow.DirectPassword.Find(surface)
	if !ok {
		return nil, errors.NewAuthFailure("login form password field not found", nil)
	}
	if err := passEl.Input(d.Credentials.Password); err != nil {
		return nil, errors.NewAuthFailure("failed to fill password field", err)
	}

	if submit, ok := d.Flow.DirectSubmit.Find(surface); ok {
		if err := submit.Click(); err != nil {
			return nil, errors.NewAuthFailure("failed to submit login form", err)
		}
	} else if err := passEl.PressEnter(); err != nil {
		return nil, errors.NewAuthFailure("failed to submit login form", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, d.StepTimeout)
	defer cancel()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !strings.Contains(surface.URL(), d.Flow.LoginPathFragment) {
			break
		}
		select {
		case <-verifyCtx.Done():
			return nil, errors.NewAuthFailure("site rejected direct login", verifyCtx.Err())
		case <-ticker.C:
		}
	}

	tokens, err := surface.Cookies()
	if err != nil {
		return nil, errors.NewAuthFailure("failed to read session tokens", err)
	}
	return &Session{Tokens: tokens, Valid: true, Strategy: StrategyDirect}, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
