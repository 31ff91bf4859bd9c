// Package pgdb provides a certstore.Store backed by a shared postgres
// database, for deployments where several hosts learn cards against the
// same certificate pool.
package pgdb

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"code.keywarden.org/golang/pkg/certstore"
)

// PGDB is implemented by pgx.Tx, pgx.Conn & pgxpool.Pool.
// Accessing the database through this common interface simplifies testing.
type PGDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CertStore is a certstore.Store keeping Records in postgres.
type CertStore struct {
	DB PGDB
}

//go:embed cert_store_schema.sql
var schemaScriptTpl string

// Migrate creates the certificate schema owned by "<dbschema>_owner".
func Migrate(pgconn *pgx.Conn, dbschema string) error {

	// render schema creation script
	schemaName := pgx.Identifier{dbschema}.Sanitize()
	schemaOwner := pgx.Identifier{fmt.Sprintf("%s_owner", dbschema)}.Sanitize()
	schemaScript := strings.ReplaceAll(schemaScriptTpl, "${schema_name}", schemaName)
	schemaScript = strings.ReplaceAll(schemaScript, "${schema_owner}", schemaOwner)

	_, err := pgconn.Exec(context.Background(), schemaScript)

	return wrapError(err, "failed db schema initialization") // nil if err is nil...
}

// New returns a CertStore connected through a pgx pool.
func New(ctx context.Context, dsn string) (*CertStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if nil != err {
		return nil, wrapError(err, "failed connection pool creation")
	}

	return &CertStore{DB: pool}, nil
}

// Put inserts rec, reporting existed=true when the fingerprint is
// already stored. The stored record is never overwritten.
func (self *CertStore) Put(ctx context.Context, rec certstore.Record) (bool, error) {
	err := rec.Check()
	if nil != err {
		return false, wrapError(err, "record is invalid")
	}

	tag, err := self.DB.Exec(
		ctx,
		`INSERT INTO
		   certificate (fingerprint, subject, issuer, serial_no, not_before, not_after, der)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (fingerprint) DO NOTHING
		`,
		rec.Fingerprint, rec.Subject, rec.Issuer, rec.SerialNo, rec.NotBefore, rec.NotAfter, rec.DER,
	)
	if nil != err {
		return false, wrapError(err, "failed DB.Exec")
	}

	return 0 == tag.RowsAffected(), nil
}

// Get returns the Record stored under fingerprint.
func (self *CertStore) Get(ctx context.Context, fingerprint string) (certstore.Record, bool, error) {
	rows, err := self.DB.Query(
		ctx,
		// columns are renamed to match certstore.Record struct
		`SELECT
		   fingerprint as "Fingerprint",
		   subject as "Subject",
		   issuer as "Issuer",
		   serial_no as "SerialNo",
		   not_before as "NotBefore",
		   not_after as "NotAfter",
		   der as "DER"
		 FROM
		   certificate
		 WHERE
		   fingerprint = $1
		`,
		fingerprint,
	)
	if nil != err {
		return certstore.Record{}, false, wrapError(err, "failed DB.Query")
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToStructByNameLax[certstore.Record])
	if nil != err {
		if errors.Is(err, pgx.ErrNoRows) {
			return certstore.Record{}, false, nil
		}
		return certstore.Record{}, false, wrapError(err, "failed pgx.CollectOneRow")
	}
	return rec, true, nil
}

// Search returns the Records whose subject contains pattern, in
// fingerprint order.
func (self *CertStore) Search(ctx context.Context, pattern string) ([]certstore.Record, error) {
	rows, err := self.DB.Query(
		ctx,
		`SELECT
		   fingerprint as "Fingerprint",
		   subject as "Subject",
		   issuer as "Issuer",
		   serial_no as "SerialNo",
		   not_before as "NotBefore",
		   not_after as "NotAfter",
		   der as "DER"
		 FROM
		   certificate
		 WHERE
		   position($1 in subject) > 0
		 ORDER BY
		   fingerprint
		`,
		pattern,
	)
	if nil != err {
		return nil, wrapError(err, "failed DB.Query")
	}
	recs, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[certstore.Record])
	return recs, wrapError(err, "failed pgx.CollectRows") // nil if err is nil
}

// Delete removes the Record stored under fingerprint.
func (self *CertStore) Delete(ctx context.Context, fingerprint string) (bool, error) {
	tag, err := self.DB.Exec(
		ctx,
		`DELETE FROM certificate WHERE fingerprint = $1`,
		fingerprint,
	)
	if nil != err {
		return false, wrapError(err, "failed DB.Exec")
	}
	return tag.RowsAffected() > 0, nil
}

var _ certstore.Store = &CertStore{}
