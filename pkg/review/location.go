package review

import (
	"strings"

	"github.com/japaniel/nottranslated/pkg/suspects"
)

// Locator reads and writes the externally visible location.
type Locator interface {
	Location() (string, error)
	SetLocation(loc string) error
}

// DeriveLocation maps session state to an address: /{locale} while browsing,
// /{locale}/{slug} while inspecting.
func DeriveLocation(locale string, current *suspects.Suspect) string {
	if current == nil {
		return "/" + locale
	}
	return "/" + locale + "/" + current.Slug
}

// Location is DeriveLocation for the navigator's state.
func (n *Navigator) Location() string {
	if s, ok := n.Current(); ok {
		return DeriveLocation(n.locale, &s)
	}
	return DeriveLocation(n.locale, nil)
}

// ParseLocation splits an address produced by DeriveLocation.
func ParseLocation(loc string) (locale, slug string, ok bool) {
	loc = strings.TrimPrefix(loc, "/")
	if loc == "" {
		return "", "", false
	}
	locale, slug, _ = strings.Cut(loc, "/")
	return locale, slug, locale != ""
}

// Sync writes derived to loc only when it differs from what loc holds. It
// reports whether a write happened.
func Sync(loc Locator, derived string) (bool, error) {
	observed, err := loc.Location()
	if err != nil {
		return false, err
	}
	if observed == derived {
		return false, nil
	}
	if err := loc.SetLocation(derived); err != nil {
		return false, err
	}
	return true, nil
}
