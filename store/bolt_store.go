package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fruitslash/scorekeeper/leaderboard"
)

const BoltStoreFileName = "scorekeeper.db"

var (
	submissionsBucket = []byte("submissions") // id => json(Submission)
	walletIndexBucket = []byte("walletIndex") // wallet => bucket[id]nil
	metaBucket        = []byte("meta")        // key => value
)

var (
	leaderboardKey = []byte("leaderboard")
)

var ErrNotFound = errors.New("not found")

type (
	BoltStore struct {
		db *bolt.DB
	}

	BoltStoreTx struct {
		db *BoltStore
		tx *bolt.Tx
	}
)

/*
New opens (creates when missing) on-disk journal using bolt db. Parent
directories must exist beforehand.
*/
func New(dbFile string) (*BoltStore, error) {
	db, err := bolt.Open(dbFile, 0600, &bolt.Options{Timeout: 3 * time.Second}) // -rw-------
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt DB: %w", err)
	}
	s := &BoltStore{db: db}
	if err := createBuckets(db.Update, submissionsBucket, walletIndexBucket, metaBucket); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create db buckets: %w", err), db.Close())
	}
	return s, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// WithTransaction runs "fn" in single read-write transaction.
func (s *BoltStore) WithTransaction(fn func(txc *BoltStoreTx) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&BoltStoreTx{db: s, tx: tx})
	})
}

// Do returns accessor where every call runs in it's own transaction.
func (s *BoltStore) Do() *BoltStoreTx {
	return &BoltStoreTx{db: s, tx: nil}
}

// SetSubmission is shortcut for Do().SetSubmission.
func (s *BoltStore) SetSubmission(rec *Submission) error {
	return s.Do().SetSubmission(rec)
}

func (s *BoltStore) SetSnapshot(entries []leaderboard.Entry, updated time.Time) error {
	return s.Do().SetSnapshot(&Snapshot{Entries: entries, Updated: updated})
}

/*
LoadSnapshot returns the entries of the last stored leaderboard, nil when
there is none.
*/
func (s *BoltStore) LoadSnapshot() ([]leaderboard.Entry, time.Time, error) {
	snap, err := s.Do().GetSnapshot()
	if err != nil || snap == nil {
		return nil, time.Time{}, err
	}
	return snap.Entries, snap.Updated, nil
}

func (s *BoltStoreTx) SetSubmission(rec *Submission) error {
	if rec == nil || rec.ID == "" {
		return errors.New("submission id must be assigned")
	}
	return s.withTx(s.tx, func(tx *bolt.Tx) error {
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding submission: %w", err)
		}
		if err := tx.Bucket(submissionsBucket).Put([]byte(rec.ID), b); err != nil {
			return err
		}
		if rec.Wallet == "" {
			return nil
		}
		wb, err := ensureSubBucket(tx, walletIndexBucket, []byte(rec.Wallet), false)
		if err != nil {
			return err
		}
		return wb.Put([]byte(rec.ID), nil)
	}, true)
}

// GetSubmission returns ErrNotFound when there is no record with given id.
func (s *BoltStoreTx) GetSubmission(id string) (*Submission, error) {
	var rec *Submission
	err := s.withTx(s.tx, func(tx *bolt.Tx) error {
		b := tx.Bucket(submissionsBucket).Get([]byte(id))
		if b == nil {
			return fmt.Errorf("submission %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(b, &rec)
	}, false)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

/*
GetSubmissions returns submissions of the wallet, oldest first. Empty wallet
returns all the submissions.
*/
func (s *BoltStoreTx) GetSubmissions(wallet string) ([]*Submission, error) {
	var res []*Submission
	err := s.withTx(s.tx, func(tx *bolt.Tx) error {
		sb := tx.Bucket(submissionsBucket)
		add := func(k, v []byte) error {
			if v == nil {
				v = sb.Get(k)
			}
			if v == nil {
				return nil
			}
			var rec Submission
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding submission %s: %w", k, err)
			}
			res = append(res, &rec)
			return nil
		}
		if wallet == "" {
			return sb.ForEach(add)
		}
		wb, err := ensureSubBucket(tx, walletIndexBucket, []byte(wallet), true)
		if err != nil || wb == nil {
			return err
		}
		return wb.ForEach(func(k, _ []byte) error { return add(k, nil) })
	}, false)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Created.Equal(res[j].Created) {
			return res[i].ID < res[j].ID
		}
		return res[i].Created.Before(res[j].Created)
	})
	return res, nil
}

func (s *BoltStoreTx) SetSnapshot(snap *Snapshot) error {
	return s.withTx(s.tx, func(tx *bolt.Tx) error {
		b, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encoding leaderboard snapshot: %w", err)
		}
		return tx.Bucket(metaBucket).Put(leaderboardKey, b)
	}, true)
}

// GetSnapshot returns nil when no snapshot has been stored yet.
func (s *BoltStoreTx) GetSnapshot() (*Snapshot, error) {
	var snap *Snapshot
	err := s.withTx(s.tx, func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket).Get(leaderboardKey)
		if b == nil {
			return nil
		}
		return json.Unmarshal(b, &snap)
	}, false)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *BoltStoreTx) withTx(dbTx *bolt.Tx, myFunc func(tx *bolt.Tx) error, writeTx bool) error {
	if dbTx != nil {
		return myFunc(dbTx)
	} else if writeTx {
		return s.db.db.Update(myFunc)
	} else {
		return s.db.db.View(myFunc)
	}
}

func createBuckets(update func(fn func(*bolt.Tx) error) error, buckets ...[]byte) error {
	return update(func(tx *bolt.Tx) error {
		for _, bucket := range buckets {
			_, err := tx.CreateBucketIfNotExists(bucket)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func ensureSubBucket(tx *bolt.Tx, parentBucket []byte, bucket []byte, allowAbsent bool) (*bolt.Bucket, error) {
	pb := tx.Bucket(parentBucket)
	if pb == nil {
		return nil, fmt.Errorf("bucket %s not found", parentBucket)
	}
	b := pb.Bucket(bucket)
	if b == nil {
		if tx.Writable() {
			return pb.CreateBucket(bucket)
		}
		if allowAbsent {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to ensure bucket %s/%s", parentBucket, bucket)
	}
	return b, nil
}
