// Package ledger keeps every host password in one JSON document
// ({"user@host": "password", ...}) stored as a single credential-store value.
//
// The store has no partial update, so every write is read-modify-write of the
// whole document. There is one foreground writer per process; no locking is
// done here.
package ledger

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ssh-session-launcher/pkg/credstore"
	"ssh-session-launcher/pkg/logging"
)

var (
	// ErrLedgerCorrupt marks a stored document that is not a JSON object of strings.
	// It is logged and recovered from by treating the ledger as empty.
	ErrLedgerCorrupt = errors.New("password ledger corrupt")

	// ErrVerificationMismatch is returned by Upsert when the read-back after a
	// write disagrees with what was written. The password is still usable for
	// the current session; only persistence is suspect.
	ErrVerificationMismatch = errors.New("password ledger verification mismatch")
)

// Key derives the ledger key for a target. Display names never take part:
// two profiles with the same username and hostname share one entry.
func Key(username, hostname string) string {
	return strings.TrimSpace(username) + "@" + strings.TrimSpace(hostname)
}

// Ledger reads and writes the consolidated password document.
type Ledger struct {
	store     credstore.Store
	namespace string
	account   string
	log       *zap.Logger
}

// New returns a Ledger over store using the fixed application namespace and account.
func New(store credstore.Store, log *zap.Logger) *Ledger {
	return &Ledger{
		store:     store,
		namespace: credstore.Namespace,
		account:   credstore.Account,
		log:       logging.OrNop(log),
	}
}

// LoadAll returns the full mapping. An absent or corrupt document yields an
// empty mapping; only store failures are returned.
func (l *Ledger) LoadAll() (map[string]string, error) {
	raw, found, err := l.store.GetOpaque(l.namespace, l.account)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	if !found || strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		l.log.Warn("stored passwords unreadable, treating as empty",
			zap.Error(errors.Wrap(ErrLedgerCorrupt, err.Error())))
		return map[string]string{}, nil
	}
	if out == nil {
		out = map[string]string{}
	}
	return out, nil
}

// Upsert stores password for username@hostname and verifies the write by
// reading it back. A corrupt document is replaced by a valid one.
func (l *Ledger) Upsert(username, hostname, password string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(hostname) == "" {
		return errors.New("ledger upsert: username and hostname are required")
	}
	if password == "" {
		return errors.New("ledger upsert: empty password refused")
	}

	all, err := l.LoadAll()
	if err != nil {
		return errors.Wrap(err, "ledger upsert: load")
	}
	key := Key(username, hostname)
	all[key] = password

	doc, err := encode(all)
	if err != nil {
		return errors.Wrap(err, "ledger upsert: encode")
	}
	if err := l.store.SetOpaque(l.namespace, l.account, doc); err != nil {
		return errors.Wrap(err, "ledger upsert: write")
	}
	l.log.Debug("password stored", zap.String("key", key), zap.Int("entries", len(all)))

	back, err := l.LoadAll()
	if err != nil {
		return errors.Wrapf(ErrVerificationMismatch, "%s: read-back failed: %v", key, err)
	}
	if got, ok := back[key]; !ok || got != password {
		return errors.Wrap(ErrVerificationMismatch, key)
	}
	return nil
}

// Lookup returns the stored password for username@hostname.
func (l *Ledger) Lookup(username, hostname string) (string, bool, error) {
	all, err := l.LoadAll()
	if err != nil {
		return "", false, err
	}
	pw, ok := all[Key(username, hostname)]
	if !ok || pw == "" {
		return "", false, nil
	}
	return pw, true, nil
}

// Keys returns the sorted ledger keys. Passwords are not exposed.
func (l *Ledger) Keys() ([]string, error) {
	all, err := l.LoadAll()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func encode(all map[string]string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(all); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
