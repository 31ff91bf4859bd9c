package agent

import (
	"context"
	"crypto/x509"

	"code.keywarden.org/golang/pkg/assuan"
	"code.keywarden.org/golang/pkg/certstore"
)

// TrustFlags describes how a root certificate is trusted. Valid
// distinguishes a cleanly answered query from an unset record: on any
// error return the flags are meaningless and left all-cleared, never
// "default untrusted".
type TrustFlags struct {
	// Relax allows relaxed validation of the certificate chain.
	Relax bool

	// ChainModel selects chain-model instead of shell-model validity.
	ChainModel bool

	// Valid is set only after a clean trust query.
	Valid bool
}

// IsTrusted asks the agent whether a root certificate is on the trust
// list. The certificate is given either as cert or as its hex
// fingerprint — supplying both is a caller error.
func (self *Client) IsTrusted(ctx context.Context, cert *x509.Certificate, hexfpr string) (TrustFlags, error) {
	var flags TrustFlags

	if nil != cert && "" != hexfpr {
		return flags, newFlagError(ErrorBadArgs, "cert and fingerprint are mutually exclusive")
	}
	fpr := hexfpr
	if "" == fpr {
		if nil == cert {
			return flags, newFlagError(ErrorBadArgs, "need a cert or a fingerprint")
		}
		fpr = certstore.FingerprintDER(cert.Raw)
	}

	conn, _, release, err := self.begin(ctx)
	if nil != err {
		return flags, err
	}
	defer release()

	status := assuan.StatusFunc(func(keyword, rest string) error {
		if "TRUSTLISTFLAG" != keyword {
			return nil
		}
		if _, ok := assuan.HasKeyword(rest, "relax"); ok {
			flags.Relax = true
		}
		if _, ok := assuan.HasKeyword(rest, "cm"); ok {
			flags.ChainModel = true
		}
		return nil
	})

	err = conn.Transact(ctx, "ISTRUSTED "+fpr, nil, nil, status)
	if nil != err {
		// callers must never see half-populated flags
		return TrustFlags{}, err
	}
	flags.Valid = true
	return flags, nil
}

// MarkTrusted asks the agent to put cert on the trust list, identified
// by its fingerprint and formatted issuer name. The agent will seek the
// user's confirmation.
func (self *Client) MarkTrusted(ctx context.Context, cert *x509.Certificate) error {
	if nil == cert {
		return newFlagError(ErrorBadArgs, "nil certificate")
	}
	dn := cert.Issuer.String()
	if "" == dn {
		return newFlagError(ErrorBadArgs, "certificate carries no issuer name")
	}
	fpr := certstore.FingerprintDER(cert.Raw)

	conn, log, release, err := self.begin(ctx)
	if nil != err {
		return err
	}
	defer release()

	line := "MARKTRUSTED " + fpr + " S " + dn
	return conn.Transact(ctx, line, nil, self.defaultInquiry(log), nil)
}
