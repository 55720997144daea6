package account

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fruitslash/scorekeeper/crypto"
)

var ErrInvalidPassword = errors.New("invalid password")

/*
Manager holds the player's identity key in a local bolt db file. It is the
signing capability used for score submissions.
*/
type Manager struct {
	db       *adb
	password string
}

/*
NewManager opens (or when "create" is true creates) key store in directory
"dir". When password is not empty values in the store are encrypted with it.
*/
func NewManager(dir string, password string, create bool) (*Manager, error) {
	var db *adb
	var err error
	if create {
		db, err = createNewDb(dir, password)
	} else {
		db, err = openDb(filepath.Join(dir, AccountFileName), password, false)
	}
	if err != nil {
		return nil, err
	}

	ok, err := db.Do().VerifyPassword()
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	if !ok {
		return nil, errors.Join(ErrInvalidPassword, db.Close())
	}
	return &Manager{db: db, password: password}, nil
}

/*
CreateKeys derives keys from the mnemonic (generates new mnemonic when empty
string is given) and stores them. Returns the mnemonic used.
*/
func (m *Manager) CreateKeys(mnemonic string) (string, error) {
	keys, err := NewKeys(mnemonic)
	if err != nil {
		return "", fmt.Errorf("generating keys: %w", err)
	}
	err = m.db.WithTransaction(func(tx *adbtx) error {
		if err := tx.SetEncrypted(m.password != ""); err != nil {
			return err
		}
		if err := tx.SetMnemonic(keys.Mnemonic); err != nil {
			return err
		}
		if err := tx.SetMasterKey(keys.MasterKey.String()); err != nil {
			return err
		}
		return tx.SetAccountKey(keys.AccountKey)
	})
	if err != nil {
		return "", fmt.Errorf("storing keys: %w", err)
	}
	return keys.Mnemonic, nil
}

func (m *Manager) GetAccountKey() (*AccountKey, error) {
	return m.db.Do().GetAccountKey()
}

// GetMnemonic returns mnemonic seed of the key store
func (m *Manager) GetMnemonic() (string, error) {
	return m.db.Do().GetMnemonic()
}

/*
Signer returns signer of the account. When the store has no keys the error
is crypto.ErrSigningUnavailable.
*/
func (m *Manager) Signer() (crypto.Signer, error) {
	key, err := m.GetAccountKey()
	if err != nil {
		if errors.Is(err, errKeysNotFound) {
			return nil, crypto.ErrSigningUnavailable
		}
		return nil, fmt.Errorf("%w: %w", crypto.ErrSigningUnavailable, err)
	}
	return key.Signer()
}

// Identity returns the wallet identity (hex encoded public key) of the account.
func (m *Manager) Identity() (string, error) {
	key, err := m.GetAccountKey()
	if err != nil {
		return "", err
	}
	return key.Identity(), nil
}

func (m *Manager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

// IsEncrypted returns true if key store exists in "dir" and is encrypted,
// returns error if key store does not exist.
func IsEncrypted(dir string) (bool, error) {
	db, err := openDb(filepath.Join(dir, AccountFileName), "", false)
	if err != nil {
		return false, err
	}
	defer db.Close()
	return db.Do().IsEncrypted()
}
