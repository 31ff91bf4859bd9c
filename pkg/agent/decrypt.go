package agent

import (
	"context"

	"code.keywarden.org/golang/pkg/secmem"
	"code.keywarden.org/golang/pkg/sexp"
)

// Decrypt asks the agent to decrypt ciphertext (a canonical
// S-expression) with the key selected by keygrip. The plaintext comes
// back in a confidential buffer owned by the caller, who must Wipe it.
func (self *Client) Decrypt(ctx context.Context, keygrip, desc string, ciphertext []byte) (*secmem.Buffer, error) {
	err := checkKeygrip(keygrip)
	if nil != err {
		return nil, err
	}
	_, err = sexp.CanonLen(ciphertext)
	if nil != err {
		return nil, wrapError(err, "ciphertext is not a canonical S-expression")
	}

	conn, log, release, err := self.begin(ctx)
	if nil != err {
		return nil, err
	}
	defer release()

	for _, line := range []string{"RESET", "SETKEY " + keygrip} {
		err = conn.Transact(ctx, line, nil, nil, nil)
		if nil != err {
			return nil, err
		}
	}
	err = setKeyDesc(ctx, conn, desc)
	if nil != err {
		return nil, err
	}

	// the raw reply stays confidential from arrival to unwrap
	result := secmem.New(0)
	sink := secmemSink{buf: result}
	inq := self.withDefault(log, "CIPHERTEXT", ciphertext, true)
	conn.BeginConfidential()
	defer conn.EndConfidential()
	err = conn.Transact(ctx, "PKDECRYPT", &sink, inq, nil)
	if nil != err {
		result.Wipe()
		return nil, err
	}

	payload, err := sexp.UnwrapValue(result.Bytes())
	if nil != err {
		result.Wipe()
		return nil, wrapError(err, "discarding malformed decrypt result")
	}

	plain := secmem.New(len(payload))
	copy(plain.Bytes(), payload)
	result.Wipe()
	return plain, nil
}

// secmemSink accumulates streamed data into a confidential buffer.
type secmemSink struct {
	buf *secmem.Buffer
}

func (self *secmemSink) HandleData(chunk []byte) error {
	if nil != chunk {
		self.buf.Append(chunk)
		secmem.Zeroize(chunk)
	}
	return nil
}
