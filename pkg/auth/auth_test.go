package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinharvest/pkg/browser"
	"pinharvest/pkg/errors"
)

// fakeElement is a scripted page element.
type fakeElement struct {
	text    string
	attrs   map[string]string
	clicked int
	inputs  []string
	entered int
}

func (f *fakeElement) Text() (string, error) { return f.text, nil }
func (f *fakeElement) Attribute(name string) (string, error) {
	return f.attrs[name], nil
}
func (f *fakeElement) HTML() (string, error)                       { return f.text, nil }
func (f *fakeElement) Query(sel string) ([]browser.Element, error) { return nil, nil }
func (f *fakeElement) Click() error                                { f.clicked++; return nil }
func (f *fakeElement) Input(text string) error                     { f.inputs = append(f.inputs, text); return nil }
func (f *fakeElement) PressEnter() error                           { f.entered++; return nil }

// fakeSurface is a scripted browsing surface. Selector matches and the
// reported URL can be mutated by hooks as the flow progresses.
type fakeSurface struct {
	url        string
	elements   map[string][]browser.Element
	cookies    []browser.Cookie
	setCookies [][]browser.Cookie
	navigated  []string
	others     []browser.Surface
	onNavigate func(url string)
	onQuery    func(sel string)
	onURL      func()
}

func newFakeSurface(url string) *fakeSurface {
	return &fakeSurface{url: url, elements: make(map[string][]browser.Element)}
}

func (f *fakeSurface) Navigate(ctx context.Context, url string, wait browser.WaitPolicy, timeout time.Duration) error {
	f.navigated = append(f.navigated, url)
	f.url = url
	if f.onNavigate != nil {
		f.onNavigate(url)
	}
	return nil
}

func (f *fakeSurface) URL() string {
	if f.onURL != nil {
		f.onURL()
	}
	return f.url
}

func (f *fakeSurface) Query(sel string) ([]browser.Element, error) {
	if f.onQuery != nil {
		f.onQuery(sel)
	}
	return f.elements[sel], nil
}

func (f *fakeSurface) Evaluate(script string) (string, error) { return "", nil }

func (f *fakeSurface) Cookies() ([]browser.Cookie, error) { return f.cookies, nil }

func (f *fakeSurface) SetCookies(cookies []browser.Cookie) error {
	f.setCookies = append(f.setCookies, cookies)
	return nil
}

func (f *fakeSurface) Surfaces() ([]browser.Surface, error) { return f.others, nil }

func (f *fakeSurface) Close() error { return nil }

// memoryStore is an in-memory CredentialStore for tests.
type memoryStore struct {
	accounts map[string]*Account
	storeErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: make(map[string]*Account)}
}

func (m *memoryStore) Store(account *Account) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	if account == nil || account.Name == "" {
		return ErrInvalidAccount
	}
	m.accounts[account.Name] = account
	return nil
}

func (m *memoryStore) Retrieve(name string) (*Account, error) {
	if a, ok := m.accounts[name]; ok {
		return a, nil
	}
	return nil, ErrAccountNotFound
}

func (m *memoryStore) List() ([]*Account, error) {
	out := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (m *memoryStore) Delete(name string) error {
	if _, ok := m.accounts[name]; !ok {
		return ErrAccountNotFound
	}
	delete(m.accounts, name)
	return nil
}

func (m *memoryStore) Exists(name string) bool {
	_, ok := m.accounts[name]
	return ok
}

func testFlow() Flow {
	f := DefaultFlow("https://example.com/login/")
	f.HomeURL = "https://example.com/"
	f.LoginPathFragment = "login"
	return f
}

func TestLocatorFallbackOrder(t *testing.T) {
	surface := newFakeSurface("https://example.com/")
	second := &fakeElement{text: "second"}
	surface.elements["#b"] = []browser.Element{second}

	loc := Locator{Name: "test", Selectors: []string{"#a", "#b", "#c"}}
	el, ok := loc.Find(surface)
	require.True(t, ok)
	text, err := el.Text()
	require.NoError(t, err)
	assert.Equal(t, "second", text)
}

func TestLocatorFindWaitTimesOut(t *testing.T) {
	surface := newFakeSurface("https://example.com/")
	loc := Locator{Name: "missing", Selectors: []string{"#missing"}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, ok := loc.FindWait(ctx, surface, 10*time.Millisecond)
	assert.False(t, ok)
}

func TestSessionRestoreSuccess(t *testing.T) {
	store := newMemoryStore()
	store.accounts["user@example.com"] = &Account{
		Name:   "user@example.com",
		Tokens: TokenSet{{Name: "_session", Value: "abc"}},
	}

	flow := testFlow()
	surface := newFakeSurface("about:blank")
	surface.elements[flow.LoggedInProbe.Selectors[0]] = []browser.Element{&fakeElement{}}

	strategy := NewSessionRestore(flow, store, "user@example.com")
	session, err := strategy.Authenticate(context.Background(), surface)
	require.NoError(t, err)
	assert.True(t, session.Valid)
	assert.Equal(t, StrategySessionRestore, session.Strategy)
	require.Len(t, surface.setCookies, 1)
	assert.Equal(t, "_session", surface.setCookies[0][0].Name)
}

func TestSessionRestoreNoSavedAccount(t *testing.T) {
	strategy := NewSessionRestore(testFlow(), newMemoryStore(), "nobody@example.com")
	_, err := strategy.Authenticate(context.Background(), newFakeSurface("about:blank"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuth))
}

func TestSessionRestoreStaleTokensRejected(t *testing.T) {
	store := newMemoryStore()
	store.accounts["user@example.com"] = &Account{
		Name:   "user@example.com",
		Tokens: TokenSet{{Name: "_session", Value: "stale"}},
	}

	// No logged-in probe element ever appears.
	surface := newFakeSurface("about:blank")
	strategy := NewSessionRestore(testFlow(), store, "user@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := strategy.Authenticate(ctx, surface)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuth))
}

func TestDirectLoginSuccess(t *testing.T) {
	flow := testFlow()
	surface := newFakeSurface("about:blank")
	email := &fakeElement{}
	password := &fakeElement{}
	submit := &fakeElement{}
	surface.elements["input#email"] = []browser.Element{email}
	surface.elements["input#password"] = []browser.Element{password}
	surface.elements[`button[type="submit"]`] = []browser.Element{submit}
	surface.cookies = []browser.Cookie{{Name: "_session", Value: "fresh"}}

	// Submitting moves the surface off the login path.
	surface.onURL = func() {
		if submit.clicked > 0 {
			surface.url = "https://example.com/"
		}
	}

	strategy := NewDirectLogin(flow, Credentials{Email: "user@example.com", Password: "pw"}, 2*time.Second)
	session, err := strategy.Authenticate(context.Background(), surface)
	require.NoError(t, err)
	assert.True(t, session.Valid)
	assert.Equal(t, StrategyDirect, session.Strategy)
	assert.Equal(t, []string{"user@example.com"}, email.inputs)
	assert.Equal(t, []string{"pw"}, password.inputs)
	assert.Equal(t, 1, submit.clicked)
	require.Len(t, session.Tokens, 1)
}

func TestDirectLoginRequiresCredentials(t *testing.T) {
	strategy := NewDirectLogin(testFlow(), Credentials{}, time.Second)
	_, err := strategy.Authenticate(context.Background(), newFakeSurface("about:blank"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuth))
}

func TestDirectLoginRejectedStaysOnLoginPage(t *testing.T) {
	flow := testFlow()
	surface := newFakeSurface("about:blank")
	surface.elements["input#email"] = []browser.Element{&fakeElement{}}
	surface.elements["input#password"] = []browser.Element{&fakeElement{}}
	surface.elements[`button[type="submit"]`] = []browser.Element{&fakeElement{}}

	strategy := NewDirectLogin(flow, Credentials{Email: "user@example.com", Password: "bad"}, 200*time.Millisecond)
	_, err := strategy.Authenticate(context.Background(), surface)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuth))
}

func TestFederatedLoginSamePageFlow(t *testing.T) {
	flow := testFlow()
	surface := newFakeSurface("about:blank")
	button := &fakeElement{}
	email := &fakeElement{}
	next := &fakeElement{}
	password := &fakeElement{}
	passNext := &fakeElement{}

	surface.elements[flow.FederatedButton.Selectors[0]] = []browser.Element{button}
	surface.cookies = []browser.Cookie{{Name: "_session", Value: "federated"}}

	// Clicking the connect button navigates this tab to the provider.
	// Advancing past the password step lands back on the site logged in.
	advance := func() {
		if passNext.clicked > 0 {
			surface.url = "https://example.com/"
			surface.elements[flow.LoggedInProbe.Selectors[0]] = []browser.Element{&fakeElement{}}
			return
		}
		if button.clicked > 0 {
			surface.url = "https://accounts.google.com/signin"
			surface.elements[`input[type="email"]`] = []browser.Element{email}
			surface.elements["#identifierNext button"] = []browser.Element{next}
		}
		if next.clicked > 0 {
			surface.elements[`input[type="password"]`] = []browser.Element{password}
			surface.elements["#passwordNext button"] = []browser.Element{passNext}
		}
	}
	surface.onURL = advance
	surface.onQuery = func(string) { advance() }

	strategy := NewFederatedLogin(flow, Credentials{Email: "user@example.com", Password: "pw"}, 2*time.Second)
	session, err := strategy.Authenticate(context.Background(), surface)
	require.NoError(t, err)
	assert.True(t, session.Valid)
	assert.Equal(t, StrategyFederated, session.Strategy)
	assert.Equal(t, []string{"user@example.com"}, email.inputs)
	assert.Equal(t, []string{"pw"}, password.inputs)
}

func TestFederatedLoginPopupFlow(t *testing.T) {
	flow := testFlow()
	surface := newFakeSurface("https://example.com/login/")
	button := &fakeElement{}
	surface.elements[flow.FederatedButton.Selectors[0]] = []browser.Element{button}
	surface.cookies = []browser.Cookie{{Name: "_session", Value: "federated"}}

	popup := newFakeSurface("https://accounts.google.com/signin")
	email := &fakeElement{}
	next := &fakeElement{}
	password := &fakeElement{}
	passNext := &fakeElement{}
	popup.elements[`input[type="email"]`] = []browser.Element{email}
	popup.elements["#identifierNext button"] = []browser.Element{next}
	popup.elements[`input[type="password"]`] = []browser.Element{password}
	popup.elements["#passwordNext button"] = []browser.Element{passNext}
	surface.others = []browser.Surface{popup}

	surface.onQuery = func(sel string) {
		if passNext.clicked > 0 {
			surface.url = "https://example.com/"
			surface.elements[flow.LoggedInProbe.Selectors[0]] = []browser.Element{&fakeElement{}}
		}
	}

	strategy := NewFederatedLogin(flow, Credentials{Email: "user@example.com", Password: "pw"}, 2*time.Second)
	session, err := strategy.Authenticate(context.Background(), surface)
	require.NoError(t, err)
	assert.Equal(t, StrategyFederated, session.Strategy)
	assert.Equal(t, []string{"user@example.com"}, email.inputs)
}

// stubStrategy is a scripted Strategy for coordinator tests.
type stubStrategy struct {
	name     string
	session  *Session
	err      error
	attempts int
	panics   bool
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Authenticate(ctx context.Context, surface browser.Surface) (*Session, error) {
	s.attempts++
	if s.panics {
		panic("driver blew up")
	}
	return s.session, s.err
}

func TestCoordinatorFirstStrategyWins(t *testing.T) {
	store := newMemoryStore()
	first := &stubStrategy{name: StrategySessionRestore, session: &Session{Valid: true, Strategy: StrategySessionRestore}}
	second := &stubStrategy{name: StrategyFederated}

	coord := NewCoordinatorWithStrategies(store, "user@example.com", first, second)
	session, err := coord.Authenticate(context.Background(), newFakeSurface("about:blank"))
	require.NoError(t, err)
	assert.Equal(t, StrategySessionRestore, session.Strategy)
	assert.Equal(t, 1, first.attempts)
	assert.Equal(t, 0, second.attempts)
}

func TestCoordinatorFallsThroughFailures(t *testing.T) {
	store := newMemoryStore()
	tokens := TokenSet{{Name: "_session", Value: "fresh"}}
	first := &stubStrategy{name: StrategySessionRestore, err: errors.NewAuthFailure("no saved session", nil)}
	second := &stubStrategy{name: StrategyFederated, err: errors.NewAuthFailure("button missing", nil)}
	third := &stubStrategy{name: StrategyDirect, session: &Session{Tokens: tokens, Valid: true, Strategy: StrategyDirect}}

	coord := NewCoordinatorWithStrategies(store, "user@example.com", first, second, third)
	session, err := coord.Authenticate(context.Background(), newFakeSurface("about:blank"))
	require.NoError(t, err)
	assert.Equal(t, StrategyDirect, session.Strategy)
	assert.Equal(t, 1, first.attempts)
	assert.Equal(t, 1, second.attempts)

	// Fresh tokens were persisted for the next run.
	account, err := store.Retrieve("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, tokens, account.Tokens)
}

func TestCoordinatorAllStrategiesFail(t *testing.T) {
	first := &stubStrategy{name: StrategySessionRestore, err: errors.NewAuthFailure("a", nil)}
	second := &stubStrategy{name: StrategyDirect, err: errors.NewAuthFailure("b", nil)}

	coord := NewCoordinatorWithStrategies(newMemoryStore(), "user@example.com", first, second)
	_, err := coord.Authenticate(context.Background(), newFakeSurface("about:blank"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuth))
}

func TestCoordinatorContainsPanickingStrategy(t *testing.T) {
	bad := &stubStrategy{name: StrategyFederated, panics: true}
	good := &stubStrategy{name: StrategyDirect, session: &Session{Valid: true, Strategy: StrategyDirect}}

	coord := NewCoordinatorWithStrategies(newMemoryStore(), "user@example.com", bad, good)
	session, err := coord.Authenticate(context.Background(), newFakeSurface("about:blank"))
	require.NoError(t, err)
	assert.Equal(t, StrategyDirect, session.Strategy)
}

func TestCoordinatorDoesNotRepersistRestoredSession(t *testing.T) {
	store := newMemoryStore()
	store.storeErr = errors.New(errors.ErrorTypePersistence, "store must not be written")
	restored := &stubStrategy{
		name:    StrategySessionRestore,
		session: &Session{Tokens: TokenSet{{Name: "_session", Value: "v"}}, Valid: true, Strategy: StrategySessionRestore},
	}

	coord := NewCoordinatorWithStrategies(store, "user@example.com", restored)
	_, err := coord.Authenticate(context.Background(), newFakeSurface("about:blank"))
	require.NoError(t, err)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := t.TempDir() + "/cookies.json"
	store := NewFileStore(path)

	account := &Account{
		Name:   "user@example.com",
		Tokens: TokenSet{{Name: "_session", Value: "abc", Domain: ".example.com"}},
	}
	require.NoError(t, store.Store(account))
	assert.True(t, store.Exists("user@example.com"))

	loaded, err := store.Retrieve("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.Tokens, loaded.Tokens)

	require.NoError(t, store.Delete("user@example.com"))
	assert.False(t, store.Exists("user@example.com"))
}
