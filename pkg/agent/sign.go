package agent

import (
	"context"
	"crypto"
	"fmt"

	"code.keywarden.org/golang/internal/algos"
	"code.keywarden.org/golang/pkg/sexp"
)

// Sign asks the agent to sign digest with the key selected by keygrip
// and returns the signature as a canonical S-expression. desc, when not
// empty, is shown to the user if a passphrase prompt comes up. algo
// names the digest algorithm the caller used.
func (self *Client) Sign(ctx context.Context, keygrip, desc string, digest []byte, algo crypto.Hash) ([]byte, error) {
	d, err := algos.GetDigest(algo)
	if nil != err {
		return nil, wrapError(err, "unusable digest algorithm")
	}
	err = checkKeygrip(keygrip)
	if nil != err {
		return nil, err
	}
	hashLine, err := hexDigestLine(digest, "SETHASH %d", d.ID)
	if nil != err {
		return nil, err
	}

	conn, log, release, err := self.begin(ctx)
	if nil != err {
		return nil, err
	}
	defer release()

	for _, line := range []string{"RESET", "SIGKEY " + keygrip} {
		err = conn.Transact(ctx, line, nil, nil, nil)
		if nil != err {
			return nil, err
		}
	}
	err = setKeyDesc(ctx, conn, desc)
	if nil != err {
		return nil, err
	}
	err = conn.Transact(ctx, hashLine, nil, nil, nil)
	if nil != err {
		return nil, err
	}

	sink := collectSink{}
	err = conn.Transact(ctx, "PKSIGN", &sink, self.defaultInquiry(log), nil)
	if nil != err {
		return nil, err
	}

	_, err = sexp.CanonLen(sink.data)
	if nil != err {
		return nil, wrapError(err, "discarding malformed signature")
	}
	return sink.data, nil
}

// SignCard asks the card daemon to sign digest with the card key named
// by keyid (e.g. "OPENPGP.1"). The card returns an unwrapped raw
// signature; SignCard normalizes it into the same sig-val expression
// the agent produces, assuming an RSA key — cards holding other key
// types are not representable by this wrapper yet.
//
// Only SHA-1, RIPEMD-160, MD5 and SHA-256 digests can be used; anything
// else is rejected before any I/O.
func (self *Client) SignCard(ctx context.Context, keyid, desc string, digest []byte, algo crypto.Hash) ([]byte, error) {
	_ = desc // the card daemon has no description slot

	d, err := algos.GetCardDigest(algo)
	if nil != err {
		return nil, wrapError(err, "unusable digest algorithm")
	}
	dataLine, err := hexDigestLine(digest, "SCD SETDATA")
	if nil != err {
		return nil, err
	}

	conn, log, release, err := self.begin(ctx)
	if nil != err {
		return nil, err
	}
	defer release()

	err = conn.Transact(ctx, dataLine, nil, nil, nil)
	if nil != err {
		return nil, err
	}

	sink := collectSink{}
	line := fmt.Sprintf("SCD PKSIGN --hash=%s %s", d.CardName, keyid)
	err = conn.Transact(ctx, line, &sink, self.defaultInquiry(log), nil)
	if nil != err {
		return nil, err
	}

	sig := sexp.WrapRawSignature("rsa", sink.data)
	_, err = sexp.CanonLen(sig)
	if nil != err {
		return nil, wrapError(err, "discarding malformed signature")
	}
	return sig, nil
}
