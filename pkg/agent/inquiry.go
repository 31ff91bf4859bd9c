package agent

import (
	"log/slog"

	"code.keywarden.org/golang/pkg/assuan"
	"code.keywarden.org/golang/pkg/secmem"
)

// defaultInquiry returns the fallback inquiry dispatcher used by every
// operation. In priority order: pinentry launch notifications are
// proxied to Notify (a failing hop is logged, never propagated),
// passphrase requests are answered from the configured static
// passphrase, and anything unknown is logged and acknowledged as an
// empty continuation so newer peers keep working against this client.
func (self *Client) defaultInquiry(log *slog.Logger) assuan.InquiryHandler {
	return assuan.InquiryFunc(func(conn *assuan.Conn, keyword, rest string) error {
		switch {
		case "PINENTRY_LAUNCHED" == keyword:
			if nil == self.Notify {
				return nil
			}
			err := self.Notify(notifyLine(keyword, rest))
			if nil != err {
				// not passed on, the transaction must survive a broken
				// notification hop
				log.Error("failed to proxy PINENTRY_LAUNCHED inquiry", "error", err)
			}
			return nil

		case "PASSPHRASE" == keyword || "NEW_PASSPHRASE" == keyword:
			secret, ok := self.staticPassphrase()
			if !ok {
				break
			}
			conn.BeginConfidential()
			defer conn.EndConfidential()
			defer secret.Wipe()
			return conn.SendData(secret.Bytes())
		}

		log.Error("ignoring agent inquiry", "keyword", keyword)
		return nil
	})
}

// withDefault builds an inquiry handler that answers keyword with
// answer and falls back to the default dispatcher for everything else.
// confidential guards the answer from the protocol log.
func (self *Client) withDefault(log *slog.Logger, keyword string, answer []byte, confidential bool) assuan.InquiryHandler {
	fallback := self.defaultInquiry(log)
	return assuan.InquiryFunc(func(conn *assuan.Conn, kw, rest string) error {
		if kw != keyword {
			return fallback.HandleInquiry(conn, kw, rest)
		}
		if confidential {
			conn.BeginConfidential()
			defer conn.EndConfidential()
		}
		return conn.SendData(answer)
	})
}

func (self *Client) staticPassphrase() (*secmem.Buffer, bool) {
	if nil == self.StaticPassphrase {
		return nil, false
	}
	secret, ok := self.StaticPassphrase()
	if !ok {
		return nil, false
	}
	return secmem.NewFrom([]byte(secret)), true
}
