package devserver

import (
	"errors"
	"strings"
	"sync"

	"github.com/MrEthical07/authstate/password"
)

var (
	ErrDuplicateAccount = errors.New("account already exists")
	ErrUnknownAccount   = errors.New("unknown account")
)

// Account is one user of the reference backend.
type Account struct {
	Email        string
	PasswordHash string
	Permissions  []string
	Roles        []string
}

// Users is a concurrency-safe account table keyed by lower-cased email.
type Users struct {
	hasher *password.Hasher

	mu       sync.RWMutex
	accounts map[string]Account
}

func NewUsers(hasher *password.Hasher) *Users {
	return &Users{
		hasher:   hasher,
		accounts: make(map[string]Account),
	}
}

// Add hashes pw and stores the account.
func (u *Users) Add(email, pw string, permissions, roles []string) error {
	hash, err := u.hasher.Hash(pw)
	if err != nil {
		return err
	}
	key := normalizeEmail(email)

	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.accounts[key]; ok {
		return ErrDuplicateAccount
	}
	u.accounts[key] = Account{
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Permissions:  append([]string(nil), permissions...),
		Roles:        append([]string(nil), roles...),
	}
	return nil
}

// SetGrants replaces an account's permissions and roles. Tokens already
// issued keep their old claims; GET /me reports the new ones.
func (u *Users) SetGrants(email string, permissions, roles []string) error {
	key := normalizeEmail(email)

	u.mu.Lock()
	defer u.mu.Unlock()
	acc, ok := u.accounts[key]
	if !ok {
		return ErrUnknownAccount
	}
	acc.Permissions = append([]string(nil), permissions...)
	acc.Roles = append([]string(nil), roles...)
	u.accounts[key] = acc
	return nil
}

func (u *Users) Lookup(email string) (Account, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	acc, ok := u.accounts[normalizeEmail(email)]
	return acc, ok
}

// Authenticate returns the account when pw matches.
func (u *Users) Authenticate(email, pw string) (Account, bool) {
	acc, ok := u.Lookup(email)
	if !ok {
		// Spend the same work as a real check.
		_, _ = u.hasher.Verify(pw, dummyHash)
		return Account{}, false
	}
	match, err := u.hasher.Verify(pw, acc.PasswordHash)
	if err != nil || !match {
		return Account{}, false
	}
	return acc, true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// dummyHash is well-formed and matches no known password.
const dummyHash = "$argon2id$v=19$m=8192,t=1,p=1$c29tZXNhbHRzb21lc2FsdA$2GZhbq0Yk1ZH4p9c3Gq3mQ"
