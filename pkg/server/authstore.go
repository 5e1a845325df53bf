package server

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log"
	"strings"
	"time"

	bbolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/bcrypt"
)

var bucketAccounts = []byte("accounts")

// Account is a stored login identity. The ID doubles as the player pool id
// for sessions opened by this account.
type Account struct {
	ID        int32
	Name      string
	Hash      []byte // bcrypt
	Authority int
	Created   time.Time
}

// AccountStore keeps accounts in a bbolt database, gob-encoded and keyed by
// lowercased name.
type AccountStore struct {
	bolt *bbolt.DB
}

// OpenAccountStore opens or creates the account database.
func OpenAccountStore(path string) (*AccountStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("authstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAccounts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("authstore: create bucket: %w", err)
	}
	return &AccountStore{bolt: db}, nil
}

// Close closes the underlying bbolt database.
func (s *AccountStore) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

func accountKey(name string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(name)))
}

func encodeAccount(acct *Account) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(acct); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeAccount(data []byte) (*Account, error) {
	var acct Account
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// Create registers a new account. The name must be unused.
func (s *AccountStore) Create(name, password string, authority int) (*Account, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("authstore: account name is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("authstore: hash password: %w", err)
	}
	acct := &Account{
		Name:      strings.TrimSpace(name),
		Hash:      hash,
		Authority: authority,
		Created:   time.Now(),
	}
	err = s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		key := accountKey(name)
		if b.Get(key) != nil {
			return fmt.Errorf("authstore: account %q already exists", acct.Name)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		acct.ID = int32(seq)
		data, err := encodeAccount(acct)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// Get looks an account up by name.
func (s *AccountStore) Get(name string) (*Account, error) {
	var acct *Account
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAccounts).Get(accountKey(name))
		if data == nil {
			return fmt.Errorf("authstore: no such account %q", name)
		}
		var err error
		acct, err = decodeAccount(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// Authenticate checks a name/password pair. It deliberately reports the
// same error for a missing account and a wrong password.
func (s *AccountStore) Authenticate(name, password string) (*Account, error) {
	acct, err := s.Get(name)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword(acct.Hash, []byte(password)) != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	return acct, nil
}

// SetPassword replaces an account's password.
func (s *AccountStore) SetPassword(name, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("authstore: hash password: %w", err)
	}
	return s.update(name, func(acct *Account) { acct.Hash = hash })
}

// SetAuthority changes an account's authority level.
func (s *AccountStore) SetAuthority(name string, level int) error {
	return s.update(name, func(acct *Account) { acct.Authority = level })
}

func (s *AccountStore) update(name string, mutate func(*Account)) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		key := accountKey(name)
		data := b.Get(key)
		if data == nil {
			return fmt.Errorf("authstore: no such account %q", name)
		}
		acct, err := decodeAccount(data)
		if err != nil {
			return err
		}
		mutate(acct)
		out, err := encodeAccount(acct)
		if err != nil {
			return err
		}
		return b.Put(key, out)
	})
}

// Delete removes an account.
func (s *AccountStore) Delete(name string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAccounts).Delete(accountKey(name))
	})
}

// List returns every account, in bucket key order.
func (s *AccountStore) List() ([]*Account, error) {
	var out []*Account
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAccounts).ForEach(func(_, data []byte) error {
			acct, err := decodeAccount(data)
			if err != nil {
				return err
			}
			out = append(out, acct)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SeedAdmin ensures the admin account exists with the given password,
// creating it with the given authority when missing. Returns true when it
// was created rather than updated.
func (s *AccountStore) SeedAdmin(password string, authority int) (bool, error) {
	if _, err := s.Get("admin"); err == nil {
		return false, s.SetPassword("admin", password)
	}
	if _, err := s.Create("admin", password, authority); err != nil {
		return false, err
	}
	log.Printf("AUTH: seeded admin account (authority %d)", authority)
	return true, nil
}
