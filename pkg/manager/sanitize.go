package manager

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// ErrUnsafeField is returned when a host field would be unsafe to pass to ssh
// or to terminal automation.
var ErrUnsafeField = errors.New("unsafe host field")

// Allow-lists for fields that reach ssh argv. Neither may start with '-'
// (ssh would read it as an option) and neither may contain whitespace, quotes,
// shell metacharacters or '@'. Hostnames cover bare IPv6 literals with an
// optional zone ("fe80::1%en0"); brackets are not valid in user@host.
var (
	hostnamePattern = regexp.MustCompile(`^[A-Za-z0-9_:][A-Za-z0-9._:%-]*$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._-]*\$?$`)
)

const maxDisplayNameLen = 128

// ValidHostname reports whether s passes the hostname allow-list.
func ValidHostname(s string) bool {
	return len(s) <= 253 && hostnamePattern.MatchString(s)
}

// ValidUsername reports whether s passes the username allow-list.
func ValidUsername(s string) bool {
	return len(s) <= 64 && usernamePattern.MatchString(s)
}

// CheckTarget returns ErrUnsafeField unless both hostname and username pass
// their allow-lists.
func CheckTarget(h HostProfile) error {
	if !ValidHostname(h.Hostname) {
		return errors.Wrapf(ErrUnsafeField, "hostname %q", h.Hostname)
	}
	if !ValidUsername(h.Username) {
		return errors.Wrapf(ErrUnsafeField, "username %q", h.Username)
	}
	return nil
}

// SafeDisplayName strips control characters and caps the length so a display
// name can be used as a window title.
func SafeDisplayName(s string) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if n == maxDisplayNameLen {
			break
		}
		b.WriteRune(r)
		n++
	}
	return strings.TrimSpace(b.String())
}

func displayNameRule(value interface{}) error {
	s, _ := value.(string)
	for _, r := range s {
		if unicode.IsControl(r) {
			return errors.New("must not contain control characters")
		}
	}
	if len([]rune(s)) > maxDisplayNameLen {
		return errors.Errorf("must be at most %d characters", maxDisplayNameLen)
	}
	return nil
}
