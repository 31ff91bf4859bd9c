package agent

import (
	"context"
	"strings"

	"code.keywarden.org/golang/pkg/assuan"
	"code.keywarden.org/golang/pkg/secmem"
	"code.keywarden.org/golang/pkg/sexp"
)

// GenKey asks the agent to generate a key from keyparams (a canonical
// S-expression with the key parameters) and returns the public part as
// a canonical S-expression.
func (self *Client) GenKey(ctx context.Context, keyparams []byte) ([]byte, error) {
	_, err := sexp.CanonLen(keyparams)
	if nil != err {
		return nil, wrapError(err, "key parameters are not a canonical S-expression")
	}

	conn, log, release, err := self.begin(ctx)
	if nil != err {
		return nil, err
	}
	defer release()

	err = conn.Transact(ctx, "RESET", nil, nil, nil)
	if nil != err {
		return nil, err
	}

	sink := collectSink{}
	inq := self.withDefault(log, "KEYPARAM", keyparams, false)
	err = conn.Transact(ctx, "GENKEY", &sink, inq, nil)
	if nil != err {
		return nil, err
	}

	_, err = sexp.CanonLen(sink.data)
	if nil != err {
		return nil, wrapError(err, "discarding malformed public key")
	}
	return sink.data, nil
}

// ReadKey returns the public key selected by keyref as a canonical
// S-expression. With fromCard, keyref is a card key id (e.g.
// "OPENPGP.3") read through the card daemon; otherwise it is a keygrip.
func (self *Client) ReadKey(ctx context.Context, fromCard bool, keyref string) ([]byte, error) {
	if !fromCard {
		err := checkKeygrip(keyref)
		if nil != err {
			return nil, err
		}
	}

	conn, log, release, err := self.begin(ctx)
	if nil != err {
		return nil, err
	}
	defer release()

	err = conn.Transact(ctx, "RESET", nil, nil, nil)
	if nil != err {
		return nil, err
	}

	line := "READKEY " + keyref
	if fromCard {
		line = "SCD " + line
	}
	sink := collectSink{}
	err = conn.Transact(ctx, line, &sink, self.defaultInquiry(log), nil)
	if nil != err {
		return nil, err
	}

	_, err = sexp.CanonLen(sink.data)
	if nil != err {
		return nil, wrapError(err, "discarding malformed public key")
	}
	return sink.data, nil
}

// HaveKey reports through its error whether the agent holds a secret
// key for keygrip: a nil return means it does.
func (self *Client) HaveKey(ctx context.Context, keygrip string) error {
	err := checkKeygrip(keygrip)
	if nil != err {
		return err
	}

	conn, _, release, err := self.begin(ctx)
	if nil != err {
		return err
	}
	defer release()

	return conn.Transact(ctx, "HAVEKEY "+keygrip, nil, nil, nil)
}

// Passwd asks the agent to change the passphrase protecting the key
// selected by keygrip. desc, when not empty, replaces the agent's
// default prompt.
func (self *Client) Passwd(ctx context.Context, keygrip, desc string) error {
	err := checkKeygrip(keygrip)
	if nil != err {
		return err
	}

	conn, log, release, err := self.begin(ctx)
	if nil != err {
		return err
	}
	defer release()

	err = setKeyDesc(ctx, conn, desc)
	if nil != err {
		return err
	}

	return conn.Transact(ctx, "PASSWD "+keygrip, nil, self.defaultInquiry(log), nil)
}

// KeyInfo returns the serial number of the token holding the key
// selected by keygrip, or "" when the key is not card-resident.
func (self *Client) KeyInfo(ctx context.Context, keygrip string) (string, error) {
	err := checkKeygrip(keygrip)
	if nil != err {
		return "", err
	}

	conn, _, release, err := self.begin(ctx)
	if nil != err {
		return "", err
	}
	defer release()

	var serialno string
	status := assuan.StatusFunc(func(keyword, rest string) error {
		if "KEYINFO" != keyword || "" != serialno {
			return nil
		}
		// grip, then the literal T marker, then serial, then the id
		// string; anything shorter carries no serial
		fields := strings.Fields(rest)
		if len(fields) >= 4 && "T" == fields[1] {
			serialno = fields[2]
		}
		return nil
	})

	err = conn.Transact(ctx, "KEYINFO "+keygrip, nil, nil, status)
	if nil != err {
		return "", err
	}
	// separator characters would corrupt downstream colon-delimited records
	if strings.ContainsAny(serialno, ":\r\n") {
		return "", newError("invalid serial number in KEYINFO status")
	}
	return serialno, nil
}

// ImportKey hands key (a secret key transfer blob) to the agent for
// storage. The payload crosses the wire as a confidential data block.
func (self *Client) ImportKey(ctx context.Context, key []byte) error {
	conn, log, release, err := self.begin(ctx)
	if nil != err {
		return err
	}
	defer release()

	inq := self.withDefault(log, "KEYDATA", key, true)
	return conn.Transact(ctx, "IMPORT_KEY", nil, inq, nil)
}

// ExportKey receives the secret key selected by keygrip from the agent
// as a canonical S-expression in a confidential buffer owned by the
// caller, who must Wipe it. desc, when not empty, is shown with the
// agent's passphrase question.
func (self *Client) ExportKey(ctx context.Context, keygrip, desc string) (*secmem.Buffer, error) {
	err := checkKeygrip(keygrip)
	if nil != err {
		return nil, err
	}

	conn, log, release, err := self.begin(ctx)
	if nil != err {
		return nil, err
	}
	defer release()

	err = setKeyDesc(ctx, conn, desc)
	if nil != err {
		return nil, err
	}

	result := secmem.New(0)
	sink := secmemSink{buf: result}
	conn.BeginConfidential()
	defer conn.EndConfidential()
	err = conn.Transact(ctx, "EXPORT_KEY "+keygrip, &sink, self.defaultInquiry(log), nil)
	if nil != err {
		result.Wipe()
		return nil, err
	}

	_, err = sexp.CanonLen(result.Bytes())
	if nil != err {
		result.Wipe()
		return nil, wrapError(err, "discarding malformed key blob")
	}
	return result, nil
}
