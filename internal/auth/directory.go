package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	errUnknownAccount = errors.New("unknown account")
	errBadPassword    = errors.New("password mismatch")
)

// Account is a directory entry with a bcrypt password hash.
type Account struct {
	Principal    Principal
	PasswordHash []byte
}

// NewAccount hashes password for p.
func NewAccount(p Principal, password string) (Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}
	return Account{Principal: p, PasswordHash: hash}, nil
}

type accountRecord struct {
	Principal
	PasswordHash string `json:"passwordHash"`
}

// ReadAccounts decodes a JSON array of principals carrying bcrypt password
// hashes. Plaintext passwords are never accepted.
func ReadAccounts(r io.Reader) ([]Account, error) {
	var records []accountRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	out := make([]Account, 0, len(records))
	for i, rec := range records {
		if rec.Email == "" || rec.ID == "" || !rec.Role.Valid() {
			return nil, fmt.Errorf("account %d: id, email and a valid role are required", i)
		}
		if _, err := bcrypt.Cost([]byte(rec.PasswordHash)); err != nil {
			return nil, fmt.Errorf("account %s: password hash: %w", rec.Email, err)
		}
		out = append(out, Account{Principal: rec.Principal, PasswordHash: []byte(rec.PasswordHash)})
	}
	return out, nil
}

// LoadAccounts reads accounts from the JSON file at path.
func LoadAccounts(path string) ([]Account, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAccounts(f)
}

// Len returns the number of accounts.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.accounts)
}

// Directory is an in-process identity provider keyed by email.
type Directory struct {
	mu       sync.RWMutex
	accounts map[string]Account
	// dummy is compared against when the email is unknown so both failure
	// paths cost one bcrypt comparison.
	dummy []byte
}

// NewDirectory creates a directory holding accounts.
func NewDirectory(accounts ...Account) *Directory {
	d := &Directory{accounts: make(map[string]Account)}
	d.dummy, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	for _, a := range accounts {
		d.Add(a)
	}
	return d
}

// Add inserts or replaces an account.
func (d *Directory) Add(a Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[strings.ToLower(a.Principal.Email)] = a
}

// Authenticate checks the password against the stored hash.
func (d *Directory) Authenticate(_ context.Context, email, password string) (Principal, error) {
	d.mu.RLock()
	acct, ok := d.accounts[strings.ToLower(email)]
	d.mu.RUnlock()
	if !ok {
		_ = bcrypt.CompareHashAndPassword(d.dummy, []byte(password))
		return Principal{}, errUnknownAccount
	}
	if err := bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)); err != nil {
		return Principal{}, errBadPassword
	}
	return acct.Principal, nil
}
