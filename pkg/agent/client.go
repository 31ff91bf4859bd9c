// Package agent is the delegation client for the key agent: every
// private key operation of the certificate manager — signing,
// decryption, key generation, export, import, passphrase collection,
// trust decisions — is forwarded to the agent process over the assuan
// line protocol, and card-resident keys are reached through the agent's
// smartcard redirection. No private key material ever enters this
// process; commands carry keygrips and hex digests, results come back
// as canonical S-expressions.
package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"code.keywarden.org/golang/internal/observability"
	"code.keywarden.org/golang/internal/utils"
	"code.keywarden.org/golang/pkg/assuan"
)

// Client is a handle on one agent session. The zero value plus a Dialer
// is usable; the connection is established lazily by the first
// operation and reused afterwards.
//
// A Client runs one transaction at a time: the protocol has no request
// identifiers, so an internal mutex serializes operations. It is safe
// for concurrent use, but callers see operations queue up.
type Client struct {
	// Dialer establishes the pipe to the agent (socket discovery and
	// process bring-up live behind it). Required.
	Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

	// StaticPassphrase, when set and returning ok, answers the agent's
	// PASSPHRASE/NEW_PASSPHRASE inquiries without user interaction.
	StaticPassphrase func() (secret string, ok bool)

	// Notify receives PINENTRY_LAUNCHED notification lines for
	// forwarding to the user interface. A failing Notify is logged and
	// never fails the transaction.
	Notify func(line string) error

	// Progress receives PROGRESS status arguments during Learn.
	// Returning an error aborts the running transaction.
	Progress func(args string) error

	// Log receives protocol traces at DEBUG level. nil means the
	// Observability carried by the operation context, falling back to
	// slog.Default().
	Log *slog.Logger

	mut        sync.Mutex
	conn       *assuan.Conn
	dialLogged bool
}

// begin acquires the Client for one operation: it serializes against
// other operations, makes sure the connection is live and attaches a
// fresh trace id to the protocol log. The returned release func must
// run before the operation returns.
func (self *Client) begin(ctx context.Context) (conn *assuan.Conn, log *slog.Logger, release func(), err error) {
	self.mut.Lock()

	conn, err = self.ensureConn(ctx)
	if nil != err {
		self.mut.Unlock()
		return nil, nil, nil, err
	}

	log = observability.TraceLogger(self.logger(ctx))
	conn.SetLogger(log)
	return conn, log, self.mut.Unlock, nil
}

// logger resolves the base logger for one operation: the Client's own
// Log when set, otherwise the Observability carried by ctx.
func (self *Client) logger(ctx context.Context) *slog.Logger {
	if nil != self.Log {
		return self.Log
	}
	return observability.GetObservability(ctx).Log()
}

// ensureConn dials the agent on first use. Runs with the mutex held.
func (self *Client) ensureConn(ctx context.Context) (*assuan.Conn, error) {
	if nil != self.conn {
		return self.conn, nil
	}
	if nil == self.Dialer {
		return nil, newFlagError(ErrorNoAgent, "no Dialer configured")
	}

	pipe, err := self.Dialer(ctx)
	if nil != err {
		// reported once per Client, not once per call
		if !self.dialLogged {
			self.dialLogged = true
			self.logger(ctx).Info("no key agent reachable", "error", err)
		}
		return nil, utils.WrapError(err, 0, ErrorNoAgent, "failed dialing agent")
	}

	conn := assuan.NewConn(pipe, self.logger(ctx))
	err = conn.Greeting()
	if nil != err {
		conn.Close()
		return nil, wrapError(err, "failed agent greeting")
	}

	self.conn = conn
	return conn, nil
}

// Close tears down the agent connection, if one was established.
func (self *Client) Close() error {
	self.mut.Lock()
	defer self.mut.Unlock()

	if nil == self.conn {
		return nil
	}
	err := self.conn.Close()
	self.conn = nil
	return err
}

// Nop runs the empty command, proving the agent is alive.
func (self *Client) Nop(ctx context.Context) error {
	conn, _, release, err := self.begin(ctx)
	if nil != err {
		return err
	}
	defer release()

	return conn.Transact(ctx, "NOP", nil, nil, nil)
}

// GetConfirmation asks the agent to show desc with okay and cancel
// buttons. A nil return means the user confirmed.
func (self *Client) GetConfirmation(ctx context.Context, desc string) error {
	conn, log, release, err := self.begin(ctx)
	if nil != err {
		return err
	}
	defer release()

	line := "GET_CONFIRMATION " + assuan.PercentPlusEscape(desc)
	return conn.Transact(ctx, line, nil, self.defaultInquiry(log), nil)
}

// checkKeygrip rejects anything but the fixed-width hex grip form
// before a transaction is attempted.
func checkKeygrip(keygrip string) error {
	if 40 != len(keygrip) || !utils.IsHexString(keygrip) {
		return newFlagError(ErrorBadArgs, "keygrip must be 40 hex characters")
	}
	return nil
}

// setKeyDesc issues the optional SETKEYDESC step shared by several
// operations. desc is escaped here; callers pass free text.
func setKeyDesc(ctx context.Context, conn *assuan.Conn, desc string) error {
	if "" == desc {
		return nil
	}
	return conn.Transact(ctx, "SETKEYDESC "+assuan.PercentPlusEscape(desc), nil, nil, nil)
}

// hexDigestLine renders "<command> <args...> <HEXDIGEST>", rejecting
// digests whose hex encoding cannot fit the protocol line.
func hexDigestLine(digest []byte, format string, args ...any) (string, error) {
	head := fmt.Sprintf(format, args...)
	if len(head)+1+2*len(digest) > assuan.MaxLineLen {
		return "", newFlagError(ErrorBadArgs, "digest of %d bytes does not fit a protocol line", len(digest))
	}
	return fmt.Sprintf("%s %X", head, digest), nil
}

// collectSink accumulates the streamed payload of one transaction.
type collectSink struct {
	data []byte
}

func (self *collectSink) HandleData(chunk []byte) error {
	if nil != chunk {
		self.data = append(self.data, chunk...)
	}
	return nil
}

var _ assuan.DataSink = &collectSink{}

// notifyLine reassembles an inquiry line for the Notify hop.
func notifyLine(keyword, rest string) string {
	if "" == rest {
		return keyword
	}
	return strings.TrimSpace(keyword + " " + rest)
}
