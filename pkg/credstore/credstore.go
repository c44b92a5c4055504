// Package credstore wraps the platform credential store (macOS Keychain,
// Linux Secret Service, Windows Credential Manager) behind get/set of one
// opaque string value.
//
// Security model:
//   - Values are never logged.
//   - All host passwords share a single entry (Namespace, Account) so the user
//     grants store access once instead of once per host.
package credstore

import (
	"github.com/pkg/errors"
	"github.com/zalando/go-keyring"
)

const (
	// Namespace is the keyring service name for every entry this application owns.
	Namespace = "ssh-session-manager"

	// Account is the single account under Namespace; it stands for "all hosts".
	Account = "all_hosts"
)

// ErrStoreUnavailable is returned when the backing store cannot be read or written.
var ErrStoreUnavailable = errors.New("credential store unavailable")

// Store is the opaque get/set contract the ledger depends on.
type Store interface {
	// GetOpaque returns the stored value. found is false when nothing is stored.
	GetOpaque(namespace, account string) (value string, found bool, err error)

	// SetOpaque replaces the stored value.
	SetOpaque(namespace, account, value string) error
}

// Keyring is a Store backed by the OS keyring. The zero value is ready to use.
type Keyring struct{}

var _ Store = Keyring{}

// NewKeyring returns the OS keyring adapter. It holds no connection state;
// each call goes to the platform store.
func NewKeyring() Keyring {
	return Keyring{}
}

func (Keyring) GetOpaque(namespace, account string) (string, bool, error) {
	v, err := keyring.Get(namespace, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, unavailable(err, "get", namespace, account)
	}
	return v, true, nil
}

func (Keyring) SetOpaque(namespace, account, value string) error {
	if err := keyring.Set(namespace, account, value); err != nil {
		return unavailable(err, "set", namespace, account)
	}
	return nil
}

// Delete removes an entry. A missing entry is not an error.
func (Keyring) Delete(namespace, account string) error {
	if err := keyring.Delete(namespace, account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return unavailable(err, "delete", namespace, account)
	}
	return nil
}

type storeError struct {
	op, namespace, account string
	cause                  error
}

func (e *storeError) Error() string {
	return e.op + " " + e.namespace + "/" + e.account + ": " + ErrStoreUnavailable.Error() + ": " + e.cause.Error()
}

func (e *storeError) Is(target error) bool { return target == ErrStoreUnavailable }

func (e *storeError) Unwrap() error { return e.cause }

func unavailable(cause error, op, namespace, account string) error {
	return &storeError{op: op, namespace: namespace, account: account, cause: cause}
}
