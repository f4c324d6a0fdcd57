package auth

import "pinharvest/pkg/browser"

// Flow describes the site-specific login surfaces and the locators used to
// drive them. Defaults target Pinterest with Google federated sign-in, but
// every field can be overridden for test harnesses or markup changes.
type Flow struct {
	LoginURL string
	HomeURL  string

	// LoginPathFragment appears in the URL while unauthenticated. Direct
	// login is considered successful once the URL no longer contains it.
	LoginPathFragment string

	// FederatedHostFragment identifies the identity provider's pages when
	// the federated flow opens them in the same tab instead of a popup.
	FederatedHostFragment string

	LoggedInProbe   Locator
	FederatedButton Locator
	EmailField      Locator
	EmailNext       Locator
	PasswordField   Locator
	PasswordNext    Locator
	DirectEmail     Locator
	DirectPassword  Locator
	DirectSubmit    Locator
}

// DefaultFlow returns the locator set for Pinterest with Google sign-in.
func DefaultFlow(loginURL string) Flow {
	if loginURL == "" {
		loginURL = "https://www.pinterest.com/login/"
	}
	return Flow{
		LoginURL:              loginURL,
		HomeURL:               "https://www.pinterest.com/",
		LoginPathFragment:     "login",
		FederatedHostFragment: "accounts.google.com",
		LoggedInProbe: Locator{
			Name: "logged-in probe",
			Selectors: []string{
				`[data-test-id="header-profile"]`,
				`[data-test-id="homefeed-feed"]`,
				`[aria-label="Profile"]`,
			},
		},
		FederatedButton: Locator{
			Name: "google connect button",
			Selectors: []string{
				`div[data-test-id="google-connect-button"]`,
				`button[aria-label="Continue with Google"]`,
				`div[data-test-id="gplus-button"] button`,
			},
		},
		EmailField: Locator{
			Name: "federated email field",
			Selectors: []string{
				`input[type="email"]`,
				`#identifierId`,
			},
		},
		EmailNext: Locator{
			Name: "federated email next",
			Selectors: []string{
				`#identifierNext button`,
				`#identifierNext`,
			},
		},
		PasswordField: Locator{
			Name: "federated password field",
			Selectors: []string{
				`input[type="password"]`,
				`input[name="Passwd"]`,
			},
		},
		PasswordNext: Locator{
			Name: "federated password next",
			Selectors: []string{
				`#passwordNext button`,
				`#passwordNext`,
			},
		},
		DirectEmail: Locator{
			Name: "direct email field",
			Selectors: []string{
				`input#email`,
				`input[name="id"]`,
				`input[type="email"]`,
			},
		},
		DirectPassword: Locator{
			Name: "direct password field",
			Selectors: []string{
				`input#password`,
				`input[name="password"]`,
				`input[type="password"]`,
			},
		},
		DirectSubmit: Locator{
			Name: "direct submit button",
			Selectors: []string{
				`button[type="submit"]`,
				`div[data-test-id="registerFormSubmitButton"] button`,
			},
		},
	}
}

// federatedSurface finds the identity provider's page among the open browser
// surfaces. The provider either opened a popup or navigated the current tab.
func (f Flow) federatedSurface(current browser.Surface) (browser.Surface, bool) {
	surfaces, err := current.Surfaces()
	if err == nil {
		for _, s := range surfaces {
			if containsFold(s.URL(), f.FederatedHostFragment) {
				return s, true
			}
		}
	}
	if containsFold(current.URL(), f.FederatedHostFragment) {
		return current, true
	}
	return nil, false
}
