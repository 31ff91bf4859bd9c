package pgdb

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"code.keywarden.org/golang/pkg/certstore"
)

const testDSN = "host=localhost port=25432 database=kwdb user=postgres password=notasecret sslmode=disable search_path=keywarden_test,public"

var dbInitError error

func init() {
	pgconn, err := pgx.Connect(context.Background(), testDSN)
	if nil == err {
		err = Migrate(pgconn, "keywarden_test")
	}
	dbInitError = err
}

func TestPing(t *testing.T) {
	ctx := context.Background() // t.Context() gets in the way when controlling transaction
	pgconn := newConn(ctx, t)
	err := pgconn.Ping(ctx)
	if nil != err {
		t.Fatalf("failed connection test, got error %v", err)
	}
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	store := newCertStore(ctx, t)

	rec := makeRecord(t, "PG Test CA")
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
	store := newCertStore(ctx, t)

	rec := makeRecord(t, "PG Dup CA")
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

	// the stored record must be left untouched
	read, _, err := store.Get(ctx, rec.Fingerprint)
	if nil != err {
		t.Fatalf("failed Get, got error %v", err)
	}
	if read.Subject != rec.Subject {
		t.Error("duplicate Put changed the stored record")
	}
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	store := newCertStore(ctx, t)

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
	store := newCertStore(ctx, t)

	for _, cn := range []string{"PG Search Alpha", "PG Search Beta", "Unrelated Root"} {
		_, err := store.Put(ctx, makeRecord(t, cn))
		if nil != err {
			t.Fatalf("failed Put(%q), got error %v", cn, err)
		}
	}

	recs, err := store.Search(ctx, "PG Search")
	if nil != err {
		t.Fatalf("failed Search, got error %v", err)
	}
	if 2 != len(recs) {
		t.Errorf("got %d records, expected 2", len(recs))
	}
	// fingerprint ordering
	if 2 == len(recs) && recs[0].Fingerprint > recs[1].Fingerprint {
		t.Error("records are not in fingerprint order")
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := newCertStore(ctx, t)

	rec := makeRecord(t, "PG Delete CA")
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

func newConn(ctx context.Context, t *testing.T) *pgx.Conn {
	if nil != dbInitError {
		// dbInitError is set by init block above
		t.Skipf("no test database, got error %v", dbInitError)
	}
	pgconn, err := pgx.Connect(ctx, testDSN)
	if nil != err {
		t.Fatalf("failed pgx.Connect, got error %v", err)
	}
	return pgconn
}

// newCertStore returns a CertStore working inside a transaction that is
// rolled back when the test completes.
func newCertStore(ctx context.Context, t *testing.T) *CertStore {
	pgconn := newConn(ctx, t)
	tx, err := pgconn.Begin(ctx)
	if nil != err {
		t.Fatalf("failed starting transaction, got error %v", err)
	}

	_, err = tx.Exec(ctx, "DELETE FROM certificate")
	if nil != err {
		t.Fatalf("failed tx initialization, got error %v", err)
	}
	t.Cleanup(func() {
		err := tx.Rollback(ctx)
		if nil != err {
			t.Logf("failed rolling back test transaction, got error %v", err)
		} else {
			t.Log("rolled back test transaction")
		}
	})

	return &CertStore{DB: tx}
}

func makeRecord(t *testing.T, cn string) certstore.Record {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if nil != err {
		t.Fatalf("failed generating key, got error %v", err)
	}
	tpl := x509.Certificate{
		SerialNumber: big.NewInt(12),
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
