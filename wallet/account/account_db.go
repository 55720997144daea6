package account

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fruitslash/scorekeeper/crypto"
)

var (
	keysBucket = []byte("keys")
	metaBucket = []byte("meta")

	masterKeyName      = []byte("masterKey")
	mnemonicKeyName    = []byte("mnemonicKey")
	accountKeyName     = []byte("accountKey")
	isEncryptedKeyName = []byte("isEncryptedKey")

	errKeysNotFound = errors.New("keys not found")
)

const AccountFileName = "accounts.db"

type (
	adb struct {
		db         *bolt.DB
		dbFilePath string
		password   string
	}

	adbtx struct {
		adb *adb
		tx  *bolt.Tx
	}
)

func (a *adbtx) SetAccountKey(key *AccountKey) error {
	return a.withTx(a.tx, func(tx *bolt.Tx) error {
		val, err := json.Marshal(key)
		if err != nil {
			return err
		}
		if val, err = a.encryptValue(val); err != nil {
			return err
		}
		return tx.Bucket(keysBucket).Put(accountKeyName, val)
	}, true)
}

func (a *adbtx) GetAccountKey() (*AccountKey, error) {
	var key *AccountKey
	err := a.withTx(a.tx, func(tx *bolt.Tx) error {
		k := tx.Bucket(keysBucket).Get(accountKeyName)
		if k == nil {
			return errKeysNotFound
		}
		val, err := a.decryptValue(k)
		if err != nil {
			return err
		}
		return json.Unmarshal(val, &key)
	}, false)
	if err != nil {
		return nil, err
	}
	return key, nil
}

func (a *adbtx) SetMasterKey(masterKey string) error {
	return a.putEncrypted(masterKeyName, []byte(masterKey))
}

func (a *adbtx) GetMasterKey() (string, error) {
	v, err := a.getDecrypted(masterKeyName)
	return string(v), err
}

func (a *adbtx) SetMnemonic(mnemonic string) error {
	return a.putEncrypted(mnemonicKeyName, []byte(mnemonic))
}

func (a *adbtx) GetMnemonic() (string, error) {
	v, err := a.getDecrypted(mnemonicKeyName)
	return string(v), err
}

func (a *adbtx) SetEncrypted(encrypted bool) error {
	return a.withTx(a.tx, func(tx *bolt.Tx) error {
		var b byte
		if encrypted {
			b = 0x01
		}
		return tx.Bucket(metaBucket).Put(isEncryptedKeyName, []byte{b})
	}, true)
}

func (a *adbtx) IsEncrypted() (bool, error) {
	var res bool
	err := a.withTx(a.tx, func(tx *bolt.Tx) error {
		encrypted := tx.Bucket(metaBucket).Get(isEncryptedKeyName)
		res = bytes.Equal(encrypted, []byte{0x01})
		return nil
	}, false)
	if err != nil {
		return false, err
	}
	return res, nil
}

// VerifyPassword returns false when the store is encrypted and the password
// of the db handle does not decrypt the stored keys.
func (a *adbtx) VerifyPassword() (bool, error) {
	encrypted, err := a.IsEncrypted()
	if err != nil {
		return false, err
	}
	if !encrypted {
		return true, nil
	}
	if _, err := a.GetAccountKey(); err != nil {
		if errors.Is(err, errKeysNotFound) {
			return true, nil
		}
		return false, nil
	}
	return true, nil
}

func (a *adbtx) putEncrypted(key, value []byte) error {
	return a.withTx(a.tx, func(tx *bolt.Tx) error {
		val, err := a.encryptValue(value)
		if err != nil {
			return err
		}
		return tx.Bucket(keysBucket).Put(key, val)
	}, true)
}

func (a *adbtx) getDecrypted(key []byte) ([]byte, error) {
	var res []byte
	err := a.withTx(a.tx, func(tx *bolt.Tx) error {
		v := tx.Bucket(keysBucket).Get(key)
		if v == nil {
			return errKeysNotFound
		}
		val, err := a.decryptValue(v)
		if err != nil {
			return err
		}
		res = val
		return nil
	}, false)
	return res, err
}

func (a *adbtx) encryptValue(val []byte) ([]byte, error) {
	isEncrypted, err := a.IsEncrypted()
	if err != nil {
		return nil, err
	}
	if !isEncrypted {
		return val, nil
	}
	encryptedValue, err := crypto.Encrypt(a.adb.password, val)
	if err != nil {
		return nil, err
	}
	return []byte(encryptedValue), nil
}

func (a *adbtx) decryptValue(val []byte) ([]byte, error) {
	isEncrypted, err := a.IsEncrypted()
	if err != nil {
		return nil, err
	}
	if !isEncrypted {
		// bolt values are only valid for the life of the transaction
		return bytes.Clone(val), nil
	}
	return crypto.Decrypt(a.adb.password, string(val))
}

func (a *adbtx) withTx(dbTx *bolt.Tx, myFunc func(tx *bolt.Tx) error, writeTx bool) error {
	if dbTx != nil {
		return myFunc(dbTx)
	} else if writeTx {
		return a.adb.db.Update(myFunc)
	} else {
		return a.adb.db.View(myFunc)
	}
}

func openDb(dbFilePath string, pw string, create bool) (*adb, error) {
	_, statErr := os.Stat(dbFilePath)
	exists := statErr == nil
	if create && exists {
		return nil, fmt.Errorf("cannot create account db, file (%s) already exists", dbFilePath)
	} else if !create && !exists {
		return nil, fmt.Errorf("cannot open account db, file (%s) does not exist", dbFilePath)
	}

	db, err := bolt.Open(dbFilePath, 0600, &bolt.Options{Timeout: 3 * time.Second}) // -rw-------
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt DB: %w", err)
	}

	a := &adb{db: db, dbFilePath: dbFilePath, password: pw}
	if err := a.createBuckets(); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create db buckets: %w", err), db.Close())
	}

	if create {
		if err := a.Do().SetEncrypted(pw != ""); err != nil {
			return nil, errors.Join(err, db.Close())
		}
	}
	return a, nil
}

func createNewDb(dir string, pw string) (*adb, error) {
	if err := os.MkdirAll(dir, 0700); err != nil { // -rwx------
		return nil, err
	}
	return openDb(filepath.Join(dir, AccountFileName), pw, true)
}

func (a *adb) Close() error {
	if a.db == nil {
		return nil
	}
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("closing db: %w", err)
	}
	return nil
}

func (a *adb) WithTransaction(fn func(tx *adbtx) error) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		return fn(&adbtx{adb: a, tx: tx})
	})
}

func (a *adb) Do() *adbtx {
	return &adbtx{adb: a, tx: nil}
}

func (a *adb) createBuckets() error {
	return a.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{keysBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
}
