package auth

import (
	"context"
	"time"

	"pinharvest/pkg/browser"
	"pinharvest/pkg/config"
	"pinharvest/pkg/errors"
	"pinharvest/pkg/logger"
)

// Coordinator walks an ordered list of authentication strategies until one
// yields a verified session. A strategy failure is contained and logged, and
// the next strategy gets a clean attempt.
type Coordinator struct {
	strategies  []Strategy
	store       CredentialStore
	accountName string
	log         logger.Logger
}

// NewCoordinator builds the standard strategy chain from configuration:
// session restore, then federated sign-in, then direct credentials.
func NewCoordinator(cfg config.AuthConfig, store CredentialStore) *Coordinator {
	flow := DefaultFlow(cfg.LoginURL)
	creds := Credentials{Email: cfg.Email, Password: cfg.Password}

	stepTimeout := cfg.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = 15 * time.Second
	}

	name := cfg.Email
	if name == "" {
		name = "default"
	}

	return &Coordinator{
		strategies: []Strategy{
			NewSessionRestore(flow, store, name),
			NewFederatedLogin(flow, creds, stepTimeout),
			NewDirectLogin(flow, creds, stepTimeout),
		},
		store:       store,
		accountName: name,
		log:         logger.GetLogger(),
	}
}

// NewCoordinatorWithStrategies builds a coordinator over an explicit chain.
func NewCoordinatorWithStrategies(store CredentialStore, accountName string, strategies ...Strategy) *Coordinator {
	if accountName == "" {
		accountName = "default"
	}
	return &Coordinator{
		strategies:  strategies,
		store:       store,
		accountName: accountName,
		log:         logger.GetLogger(),
	}
}

// Authenticate attempts each strategy in order on the given surface. The
// first verified session wins. Fresh sessions are persisted so the next run
// can restore them without logging in again.
func (c *Coordinator) Authenticate(ctx context.Context, surface browser.Surface) (*Session, error) {
	if len(c.strategies) == 0 {
		return nil, errors.NewAuthFailure("no authentication strategies configured", nil)
	}

	var lastErr error
	for _, strategy := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewAuthFailure("authentication cancelled", err)
		}

		c.log.WithField("strategy", strategy.Name()).Info("Attempting authentication")

		session, err := c.attempt(ctx, strategy, surface)
		logger.LogAuthStrategy(strategy.Name(), err == nil, err)
		if err != nil {
			lastErr = err
			continue
		}

		if strategy.Name() != StrategySessionRestore {
			c.persistTokens(session)
		}
		return session, nil
	}

	return nil, errors.NewAuthFailure("all authentication strategies failed", lastErr)
}

// attempt runs one strategy, containing panics from flaky page drivers so a
// single bad strategy cannot take down the chain.
func (c *Coordinator) attempt(ctx context.Context, strategy Strategy, surface browser.Surface) (session *Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			session = nil
			err = errors.NewAuthFailure("authentication strategy panicked", nil)
			c.log.WithFields(map[string]interface{}{
				"strategy": strategy.Name(),
				"panic":    r,
			}).Error("Authentication strategy panicked")
		}
	}()
	return strategy.Authenticate(ctx, surface)
}

// persistTokens saves the session tokens for future restore attempts. A save
// failure degrades the next run but not this one.
func (c *Coordinator) persistTokens(session *Session) {
	if session == nil || len(session.Tokens) == 0 {
		return
	}

	account, err := c.store.Retrieve(c.accountName)
	if err != nil {
		account = &Account{Name: c.accountName}
	}
	account.Tokens = session.Tokens
	account.LastModified = time.Now()

	if err := c.store.Store(account); err != nil {
		c.log.WithField("account", c.accountName).WithError(err).Warn("Failed to persist session tokens")
	}
}
