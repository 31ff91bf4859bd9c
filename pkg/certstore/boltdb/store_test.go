package boltdb

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"path"
	"testing"
	"time"

	"code.keywarden.org/golang/pkg/certstore"
)

func TestNew(t *testing.T) {
	tmpdir := t.TempDir()
	dbPath := path.Join(tmpdir, "cert.db")
	_, err := New(dbPath)
	if nil != err {
		t.Errorf("failed New, got error %v", err)
	}
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rec := makeRecord(t, "Bolt Test CA")
	existed, err := store.Put(ctx, rec)
	if nil != err {
		t.Fatalf("failed Put, got error %v", err)
	}
	if existed {
		t.Error("first Put reported existed")
	}

	read, found, err := store.Get(ctx, rec.Fingerprint)
	if nil != err {
		t.Fatalf("failed Get, got error %v", err)
	}
	if !found {
		t.Fatal("stored record not found")
	}
	if read.Fingerprint != rec.Fingerprint || read.Subject != rec.Subject || read.SerialNo != rec.SerialNo {
		t.Errorf("failed read record control, \n%+v\n!=\n%+v", read, rec)
	}
	if !read.NotBefore.Equal(rec.NotBefore) || !read.NotAfter.Equal(rec.NotAfter) {
		t.Error("failed read record validity control")
	}
	if string(read.DER) != string(rec.DER) {
		t.Error("failed read record DER control")
	}
}

func TestPutDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rec := makeRecord(t, "Bolt Dup CA")
	_, err := store.Put(ctx, rec)
	if nil != err {
		t.Fatalf("failed Put, got error %v", err)
	}
	existed, err := store.Put(ctx, rec)
	if nil != err {
		t.Fatalf("failed second Put, got error %v", err)
	}
	if !existed {
		t.Error("second Put did not report existed")
	}
}

func TestPutInvalid(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Put(ctx, certstore.Record{Fingerprint: "BAD"})
	if nil == err {
		t.Fatal("Put accepted an invalid record")
	}
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, found, err := store.Get(ctx, certstore.FingerprintDER([]byte("no such cert")))
	if nil != err {
		t.Fatalf("failed Get, got error %v", err)
	}
	if found {
		t.Error("Get found a record in an empty store")
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, cn := range []string{"Search Alpha CA", "Search Beta CA", "Other Root"} {
		_, err := store.Put(ctx, makeRecord(t, cn))
		if nil != err {
			t.Fatalf("failed Put(%q), got error %v", cn, err)
		}
	}

	recs, err := store.Search(ctx, "Search")
	if nil != err {
		t.Fatalf("failed Search, got error %v", err)
	}
	if 2 != len(recs) {
		t.Errorf("got %d records, expected 2", len(recs))
	}

	recs, err = store.Search(ctx, "no match")
	if nil != err {
		t.Fatalf("failed Search, got error %v", err)
	}
	if 0 != len(recs) {
		t.Errorf("got %d records, expected none", len(recs))
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rec := makeRecord(t, "Bolt Delete CA")
	_, err := store.Put(ctx, rec)
	if nil != err {
		t.Fatalf("failed Put, got error %v", err)
	}

	removed, err := store.Delete(ctx, rec.Fingerprint)
	if nil != err {
		t.Fatalf("failed Delete, got error %v", err)
	}
	if !removed {
		t.Error("Delete did not report removal")
	}

	removed, err = store.Delete(ctx, rec.Fingerprint)
	if nil != err {
		t.Fatalf("failed second Delete, got error %v", err)
	}
	if removed {
		t.Error("second Delete reported removal")
	}
}

func newTestStore(t *testing.T) certstore.Store {
	t.Helper()

	dbPath := path.Join(t.TempDir(), "cert.db")
	store, err := New(dbPath)
	if nil != err {
		t.Fatalf("failed New, got error %v", err)
	}
	return store
}

func makeRecord(t *testing.T, cn string) certstore.Record {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if nil != err {
		t.Fatalf("failed generating key, got error %v", err)
	}
	tpl := x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour).Truncate(time.Second),
		NotAfter:     time.Now().Add(time.Hour).Truncate(time.Second),
	}
	der, err := x509.CreateCertificate(rand.Reader, &tpl, &tpl, &key.PublicKey, key)
	if nil != err {
		t.Fatalf("failed creating certificate, got error %v", err)
	}
	rec, err := certstore.NewRecord(der)
	if nil != err {
		t.Fatalf("failed NewRecord, got error %v", err)
	}
	return rec
}
