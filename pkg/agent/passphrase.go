package agent

import (
	"context"

	"code.keywarden.org/golang/pkg/assuan"
	"code.keywarden.org/golang/pkg/secmem"
)

// AskPassphrase has the agent prompt the user with desc and returns the
// collected passphrase in a confidential buffer owned by the caller,
// who must Wipe it (Buffer.String yields the passphrase text). With
// repeat, the agent asks for the passphrase twice and shows a quality
// bar, the mode used when protecting newly imported or exported keys.
func (self *Client) AskPassphrase(ctx context.Context, desc string, repeat bool) (*secmem.Buffer, error) {
	arg := "X"
	if "" != desc {
		arg = assuan.PercentPlusEscape(desc)
	}
	line := "GET_PASSPHRASE --data"
	if repeat {
		line += " --repeat=1 --check --qualitybar"
	}
	// the X placeholders keep the cache-id, error and prompt slots empty
	line += " -- X X X " + arg
	if len(line) > assuan.MaxLineLen {
		return nil, newFlagError(ErrorBadArgs, "description does not fit a protocol line")
	}

	conn, log, release, err := self.begin(ctx)
	if nil != err {
		return nil, err
	}
	defer release()

	result := secmem.New(0)
	sink := secmemSink{buf: result}
	conn.BeginConfidential()
	defer conn.EndConfidential()
	err = conn.Transact(ctx, line, &sink, self.defaultInquiry(log), nil)
	if nil != err {
		result.Wipe()
		return nil, err
	}
	return result, nil
}
