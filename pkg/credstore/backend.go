package credstore

import (
	"runtime"
	"strings"
)

// BackendKind identifies the platform credential backend (for status output only).
type BackendKind string

const (
	BackendKeychain      BackendKind = "keychain"
	BackendSecretService BackendKind = "secret-service"
	BackendWinCred       BackendKind = "wincred"
	BackendUnsupported   BackendKind = "unsupported"
)

// Backend returns the backend kind for the current OS.
func Backend() BackendKind {
	return backendFor(runtime.GOOS)
}

func backendFor(goos string) BackendKind {
	switch goos {
	case "darwin":
		return BackendKeychain
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly":
		return BackendSecretService
	case "windows":
		return BackendWinCred
	default:
		return BackendUnsupported
	}
}

// BackendLabel returns a short label for display.
func BackendLabel() string {
	switch Backend() {
	case BackendKeychain:
		return "macOS Keychain"
	case BackendSecretService:
		return "Secret Service (D-Bus)"
	case BackendWinCred:
		return "Windows Credential Manager"
	default:
		return "Unsupported"
	}
}

// BackendHint returns a troubleshooting hint for status and error messages.
func BackendHint() string {
	switch Backend() {
	case BackendKeychain:
		return "approve the Keychain access prompt; it is asked once for all hosts"
	case BackendSecretService:
		return "a Secret Service provider (gnome-keyring, KeePassXC) must be running on the session D-Bus"
	case BackendWinCred:
		return "Windows Credential Manager must be available for the current user"
	default:
		return "no credential store backend for " + strings.TrimSpace(runtime.GOOS)
	}
}
