package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
)

func decryptScript(result string) func(peer *fakeAgent, line string, rd *bufio.Reader, wr io.Writer) {
	return func(peer *fakeAgent, line string, rd *bufio.Reader, wr io.Writer) {
		switch line {
		case "RESET", "SETKEY " + testGrip:
			fmt.Fprintf(wr, "OK\n")
		case "PKDECRYPT":
			fmt.Fprintf(wr, "INQUIRE CIPHERTEXT\n")
			readInquiryReplies(rd, peer.record)
			fmt.Fprintf(wr, "D %s\n", result)
			fmt.Fprintf(wr, "OK\n")
		default:
			fmt.Fprintf(wr, "ERR 100 unexpected command\n")
		}
	}
}

func TestDecrypt(t *testing.T) {
	client, peer := newFakeAgent(t, decryptScript("(5:value6:secret)"))
	defer client.Close()

	plain, err := client.Decrypt(context.Background(), testGrip, "", []byte("(3:enc)"))
	if nil != err {
		t.Fatalf("failed Decrypt, got error %v", err)
	}
	defer plain.Wipe()

	if "secret" != plain.String() {
		t.Errorf("got plaintext %q", plain.String())
	}

	// the ciphertext must have crossed the wire inside the inquiry block
	var sent []string
	for _, cmd := range peer.commands() {
		if "D (3:enc)" == cmd || "END" == cmd {
			sent = append(sent, cmd)
		}
	}
	if 2 != len(sent) {
		t.Errorf("peer received %v, expected the ciphertext block", peer.commands())
	}
}

func TestDecryptLegacyResult(t *testing.T) {
	client, _ := newFakeAgent(t, decryptScript("6:secret"))
	defer client.Close()

	plain, err := client.Decrypt(context.Background(), testGrip, "", []byte("(3:enc)"))
	if nil != err {
		t.Fatalf("failed Decrypt, got error %v", err)
	}
	defer plain.Wipe()

	if "secret" != plain.String() {
		t.Errorf("got plaintext %q", plain.String())
	}
}

func TestDecryptMalformedResult(t *testing.T) {
	client, _ := newFakeAgent(t, decryptScript("(5:value20:short)"))
	defer client.Close()

	_, err := client.Decrypt(context.Background(), testGrip, "", []byte("(3:enc)"))
	if nil == err {
		t.Fatal("Decrypt accepted a malformed result")
	}
}

func TestDecryptBadCiphertext(t *testing.T) {
	client, dialed := noDialClient()

	_, err := client.Decrypt(context.Background(), testGrip, "", []byte("not canonical"))
	if nil == err {
		t.Fatal("Decrypt accepted a non-canonical ciphertext")
	}
	if *dialed {
		t.Error("bad ciphertext reached the dialer")
	}
}

func TestDecryptBadKeygrip(t *testing.T) {
	client, dialed := noDialClient()

	_, err := client.Decrypt(context.Background(), "short", "", []byte("(3:enc)"))
	if !errors.Is(err, ErrorBadArgs) {
		t.Fatalf("got error %v, expected ErrorBadArgs", err)
	}
	if *dialed {
		t.Error("invalid keygrip reached the dialer")
	}
}
