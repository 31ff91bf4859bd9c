// Package certstore defines the certificate store consumed when
// learning card-resident keys: lookup, insert with duplicate detection,
// search and delete, keyed by the SHA-1 fingerprint of the DER
// encoding. Backends live in the boltdb and pgdb subpackages.
package certstore

import (
	"context"
	"crypto/sha1"
	"crypto/x509"
	"fmt"
	"strings"
	"time"

	"code.keywarden.org/golang/internal/utils"
)

// Store is implemented by certificate store backends.
type Store interface {
	// Put inserts rec, reporting existed=true when a record with the
	// same fingerprint was already present (the record is not changed).
	Put(ctx context.Context, rec Record) (existed bool, err error)

	// Get returns the record stored under fingerprint.
	// The bool flag is false when no such record exists.
	Get(ctx context.Context, fingerprint string) (Record, bool, error)

	// Search returns the records whose subject contains pattern,
	// ordered by fingerprint.
	Search(ctx context.Context, pattern string) ([]Record, error)

	// Delete removes the record stored under fingerprint and reports
	// whether one was removed.
	Delete(ctx context.Context, fingerprint string) (bool, error)
}

// Record is one stored certificate. Storage backends persist it in
// cbor with compact integer keys; the JSON form is the display surface,
// where the DER encoding renders as hex text.
type Record struct {
	Fingerprint string          `json:"fingerprint" cbor:"1,keyasint"`
	Subject     string          `json:"subject" cbor:"2,keyasint"`
	Issuer      string          `json:"issuer" cbor:"3,keyasint"`
	SerialNo    string          `json:"serialno" cbor:"4,keyasint"`
	NotBefore   time.Time       `json:"not_before" cbor:"5,keyasint"`
	NotAfter    time.Time       `json:"not_after" cbor:"6,keyasint"`
	DER         utils.HexBinary `json:"der" cbor:"7,keyasint"`
}

// Check returns an error if the Record is invalid.
func (self Record) Check() error {
	if 40 != len(self.Fingerprint) || !utils.IsHexString(self.Fingerprint) {
		return newError("invalid fingerprint, need 40 hex characters")
	}
	if 0 == len(self.DER) {
		return newError("empty DER encoding")
	}
	if FingerprintDER(self.DER) != self.Fingerprint {
		return newError("fingerprint does not match DER encoding")
	}
	return nil
}

// NewRecord builds a Record from a DER encoded certificate.
// It errors if der does not parse.
func NewRecord(der []byte) (Record, error) {
	cert, err := x509.ParseCertificate(der)
	if nil != err {
		return Record{}, wrapError(err, "failed parsing certificate")
	}
	return Record{
		Fingerprint: FingerprintDER(der),
		Subject:     cert.Subject.String(),
		Issuer:      cert.Issuer.String(),
		SerialNo:    fmt.Sprintf("%X", cert.SerialNumber),
		NotBefore:   cert.NotBefore,
		NotAfter:    cert.NotAfter,
		DER:         append([]byte(nil), der...),
	}, nil
}

// FingerprintDER returns the upper case hex SHA-1 fingerprint of der.
func FingerprintDER(der []byte) string {
	sum := sha1.Sum(der)
	return strings.ToUpper(fmt.Sprintf("%x", sum[:]))
}
