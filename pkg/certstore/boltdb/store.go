// Package boltdb provides a persistent certstore.Store that keeps
// learned certificates in a single file.
package boltdb

import (
	"context"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"code.keywarden.org/golang/pkg/certstore"
)

const (
	connectTimeout = 5 * time.Second
	certBucket     = "certTbl"
)

type certStore struct {
	dbpath string
}

// New returns a certstore.Store implementation that persists Records in
// a single file boltdb database. It errors if the database schema can
// not be created.
func New(dbpath string) (certstore.Store, error) {
	store := certStore{dbpath: dbpath}

	db, err := bolt.Open(dbpath, 0600, &bolt.Options{Timeout: connectTimeout})
	if nil != err {
		return nil, wrapError(err, "failed connecting to database")
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(certBucket))
		return wrapError(err, "failed %s bucket creation", certBucket)
	})
	if nil != err {
		return nil, wrapError(err, "failed db initialization")
	}

	return store, nil
}

// Put inserts rec keyed by fingerprint. An already present fingerprint
// reports existed=true and leaves the stored record untouched.
func (self certStore) Put(ctx context.Context, rec certstore.Record) (bool, error) {
	err := rec.Check()
	if nil != err {
		return false, wrapError(err, "record is invalid")
	}

	srzrec, err := cbor.Marshal(rec)
	if nil != err {
		return false, wrapError(err, "failed cbor.Marshal(rec)")
	}

	db, err := self.open(ctx)
	if nil != err {
		return false, err
	}
	defer db.Close()

	var existed bool
	err = db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(certBucket))
		if nil == bucket {
			return newError("missing %s bucket", certBucket)
		}
		if nil != bucket.Get([]byte(rec.Fingerprint)) {
			existed = true
			return nil
		}
		return wrapError(bucket.Put([]byte(rec.Fingerprint), srzrec), "failed bucket.Put")
	})
	if nil != err {
		return false, wrapError(err, "failed db update")
	}

	return existed, nil
}

// Get returns the Record stored under fingerprint.
func (self certStore) Get(ctx context.Context, fingerprint string) (certstore.Record, bool, error) {
	var rec certstore.Record
	var found bool

	db, err := self.open(ctx)
	if nil != err {
		return rec, false, err
	}
	defer db.Close()

	err = db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(certBucket))
		if nil == bucket {
			return newError("missing %s bucket", certBucket)
		}
		srzrec := bucket.Get([]byte(fingerprint))
		if nil == srzrec {
			return nil
		}
		found = true
		return wrapError(cbor.Unmarshal(srzrec, &rec), "failed cbor.Unmarshal")
	})
	if nil != err {
		return certstore.Record{}, false, wrapError(err, "failed db view")
	}

	return rec, found, nil
}

// Search returns the Records whose subject contains pattern, in
// fingerprint order (the bucket iteration order).
func (self certStore) Search(ctx context.Context, pattern string) ([]certstore.Record, error) {
	db, err := self.open(ctx)
	if nil != err {
		return nil, err
	}
	defer db.Close()

	var recs []certstore.Record
	err = db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(certBucket))
		if nil == bucket {
			return newError("missing %s bucket", certBucket)
		}
		return bucket.ForEach(func(_, srzrec []byte) error {
			var rec certstore.Record
			err := cbor.Unmarshal(srzrec, &rec)
			if nil != err {
				return wrapError(err, "failed cbor.Unmarshal")
			}
			if strings.Contains(rec.Subject, pattern) {
				recs = append(recs, rec)
			}
			return nil
		})
	})
	if nil != err {
		return nil, wrapError(err, "failed db view")
	}

	return recs, nil
}

// Delete removes the Record stored under fingerprint.
func (self certStore) Delete(ctx context.Context, fingerprint string) (bool, error) {
	db, err := self.open(ctx)
	if nil != err {
		return false, err
	}
	defer db.Close()

	var removed bool
	err = db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(certBucket))
		if nil == bucket {
			return newError("missing %s bucket", certBucket)
		}
		if nil == bucket.Get([]byte(fingerprint)) {
			return nil
		}
		removed = true
		return wrapError(bucket.Delete([]byte(fingerprint)), "failed bucket.Delete")
	})
	if nil != err {
		return false, wrapError(err, "failed db update")
	}

	return removed, nil
}

func (self certStore) open(ctx context.Context) (*bolt.DB, error) {
	timeout := connectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remain := time.Until(deadline); remain < timeout {
			timeout = remain
		}
	}
	db, err := bolt.Open(self.dbpath, 0600, &bolt.Options{Timeout: timeout})
	return db, wrapError(err, "failed connecting to database")
}

var _ certstore.Store = certStore{}
