package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"code.keywarden.org/golang/internal/utils"
	"code.keywarden.org/golang/pkg/assuan"
	"code.keywarden.org/golang/pkg/certstore"
)

// KeyPair is one keypair learned from a card: the keygrip and the
// card-local key id. Lines carrying extra tokens are truncated to these
// two so protocol extensions cannot change the contract.
type KeyPair struct {
	Keygrip string
	KeyId   string
}

// CardSerialNo returns the serial number of the currently inserted
// card. Only the leading run of hex digits of the status line is kept.
func (self *Client) CardSerialNo(ctx context.Context) (string, error) {
	conn, log, release, err := self.begin(ctx)
	if nil != err {
		return "", err
	}
	defer release()

	var serialno string
	var seen bool
	status := assuan.StatusFunc(func(keyword, rest string) error {
		if "SERIALNO" == keyword {
			seen = true
			serialno = rest[:utils.LeadingHexSpan(rest)]
		}
		return nil
	})

	err = conn.Transact(ctx, "SCD SERIALNO", nil, self.defaultInquiry(log), status)
	if nil != err {
		return "", err
	}
	if !seen {
		return "", newFlagError(ErrorNoData, "peer sent no SERIALNO status")
	}
	return serialno, nil
}

// CardKeyPairInfo lists the keypairs of the currently inserted card by
// forcing a card learn and collecting its KEYPAIRINFO status lines, in
// the order the card reported them.
func (self *Client) CardKeyPairInfo(ctx context.Context) ([]KeyPair, error) {
	conn, log, release, err := self.begin(ctx)
	if nil != err {
		return nil, err
	}
	defer release()

	var pairs []KeyPair
	status := assuan.StatusFunc(func(keyword, rest string) error {
		if "KEYPAIRINFO" != keyword {
			return nil
		}
		pair := KeyPair{}
		fields := strings.Fields(rest)
		if len(fields) > 0 {
			pair.Keygrip = fields[0]
		}
		if len(fields) > 1 {
			pair.KeyId = fields[1]
		}
		pairs = append(pairs, pair)
		return nil
	})

	err = conn.Transact(ctx, "SCD LEARN --force", nil, self.defaultInquiry(log), status)
	if nil != err {
		return nil, err
	}
	if 0 == len(pairs) {
		return nil, newFlagError(ErrorNoData, "peer sent no KEYPAIRINFO status")
	}
	return pairs, nil
}

// Learn asks the agent to send everything it knows about the inserted
// card and stores each streamed certificate in store. Certificates that
// do not parse, or fail the basic check for a reason other than a
// missing issuer chain, are logged and skipped; the learn itself keeps
// going. PROGRESS status lines reach the Progress sink, which aborts
// the whole transaction by returning an error.
func (self *Client) Learn(ctx context.Context, store certstore.Store) error {
	if nil == store {
		return newFlagError(ErrorBadArgs, "nil certificate store")
	}

	conn, log, release, err := self.begin(ctx)
	if nil != err {
		return err
	}
	defer release()

	var acc []byte
	sink := assuan.DataSinkFunc(func(chunk []byte) error {
		if nil != chunk {
			acc = append(acc, chunk...)
			return nil
		}

		// record boundary, process what we have
		record := acc
		acc = acc[:0]
		err := self.reportProgress("learncard C 0 0")
		if nil != err {
			return err
		}
		self.storeLearnedCert(ctx, log, store, record)
		return nil
	})

	status := assuan.StatusFunc(func(keyword, rest string) error {
		if "PROGRESS" == keyword {
			return self.reportProgress(rest)
		}
		return nil
	})

	return conn.Transact(ctx, "LEARN --send", sink, self.defaultInquiry(log), status)
}

// storeLearnedCert handles one certificate record of a learn stream.
// Failures are deliberately not fatal to the surrounding transaction.
func (self *Client) storeLearnedCert(ctx context.Context, log *slog.Logger, store certstore.Store, der []byte) {
	if 0 == len(der) {
		return
	}

	rec, err := certstore.NewRecord(der)
	if nil != err {
		log.Error("failed to parse a learned certificate", "error", err)
		return
	}
	err = basicCertCheck(rec)
	if nil != err && !errors.Is(err, ErrorMissingIssuer) {
		log.Error("invalid learned certificate", "error", err)
		return
	}

	existed, err := store.Put(ctx, rec)
	switch {
	case nil != err:
		log.Error("failed storing learned certificate", "error", err)
	case existed:
		log.Debug("certificate already in store", "fingerprint", rec.Fingerprint)
	default:
		log.Info("certificate imported", "fingerprint", rec.Fingerprint)
	}
}

// basicCertCheck is the sanity gate for learned certificates. A record
// whose issuer chain is simply not at hand yet raises
// ErrorMissingIssuer, which Learn tolerates: learning a card is assumed
// to be done on purpose, the chain can arrive later.
func basicCertCheck(rec certstore.Record) error {
	if rec.NotAfter.Before(rec.NotBefore) {
		return newError("certificate validity ends before it starts")
	}
	if rec.Subject != rec.Issuer {
		return newFlagError(ErrorMissingIssuer, "issuer certificate not available")
	}
	return nil
}

// reportProgress forwards progress data to the configured sink.
func (self *Client) reportProgress(args string) error {
	if nil == self.Progress {
		return nil
	}
	return self.Progress(args)
}
