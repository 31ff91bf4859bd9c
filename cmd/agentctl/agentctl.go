// Command agentctl runs single key agent operations from the shell,
// mainly to probe an agent deployment.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"
	"time"

	"code.keywarden.org/golang/pkg/agent"
	"code.keywarden.org/golang/pkg/certstore/boltdb"
)

const usageFmt = `
Command Usage: %s [Flags] <operation>
  Run one key agent operation.

Operations:
  nop                 check that the agent is alive
  havekey <keygrip>   check that the agent holds a secret key
  keyinfo <keygrip>   print the serial number of the holding token
  serialno            print the serial number of the inserted card
  keypairinfo         list the keypairs of the inserted card
  learn               store the inserted card's certificates
  search <pattern>    print stored certificates whose subject matches
  confirm <text>      ask the user for a confirmation

Flags:
------
`

type Cmd struct {
	Socket  string
	DBPath  string
	Timeout time.Duration
	Verbose bool
	Args    []string
}

func parseFlags(progname string, args []string) *Cmd {
	cmd := Cmd{}

	flags := flag.NewFlagSet(progname, flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, usageFmt, path.Base(progname))
		flags.PrintDefaults()
	}

	flags.StringVar(&cmd.Socket, "s", "", `path of the agent unix socket (required)`)
	flags.StringVar(&cmd.DBPath, "db", "certs.db", `path of the certificate store used by learn`)
	flags.DurationVar(&cmd.Timeout, "t", 30*time.Second, `operation timeout`)
	flags.BoolVar(&cmd.Verbose, "v", false, `log the protocol exchange`)

	flags.Parse(args)
	cmd.Args = flags.Args()
	if "" == cmd.Socket || 0 == len(cmd.Args) {
		flags.Usage()
		os.Exit(2)
	}

	return &cmd
}

func main() {
	cmd := parseFlags(os.Args[0], os.Args[1:])

	level := slog.LevelInfo
	if cmd.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	client := &agent.Client{
		Dialer: func(ctx context.Context) (io.ReadWriteCloser, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", cmd.Socket)
		},
		Progress: func(args string) error {
			log.Info("progress", "data", args)
			return nil
		},
		Log: log,
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cmd.Timeout)
	defer cancel()

	err := run(ctx, client, cmd)
	if nil != err {
		log.Error("operation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, client *agent.Client, cmd *Cmd) error {
	op, args := cmd.Args[0], cmd.Args[1:]

	switch op {
	case "nop":
		return client.Nop(ctx)

	case "havekey":
		if 1 != len(args) {
			return fmt.Errorf("havekey needs a keygrip argument")
		}
		err := client.HaveKey(ctx, args[0])
		if nil != err {
			return err
		}
		fmt.Println("secret key is available")
		return nil

	case "keyinfo":
		if 1 != len(args) {
			return fmt.Errorf("keyinfo needs a keygrip argument")
		}
		serialno, err := client.KeyInfo(ctx, args[0])
		if nil != err {
			return err
		}
		if "" == serialno {
			fmt.Println("key is not stored on a token")
		} else {
			fmt.Println(serialno)
		}
		return nil

	case "serialno":
		serialno, err := client.CardSerialNo(ctx)
		if nil != err {
			return err
		}
		fmt.Println(serialno)
		return nil

	case "keypairinfo":
		pairs, err := client.CardKeyPairInfo(ctx)
		if nil != err {
			return err
		}
		for _, pair := range pairs {
			fmt.Printf("%s %s\n", pair.Keygrip, pair.KeyId)
		}
		return nil

	case "learn":
		store, err := boltdb.New(cmd.DBPath)
		if nil != err {
			return err
		}
		return client.Learn(ctx, store)

	case "search":
		if 1 != len(args) {
			return fmt.Errorf("search needs a subject pattern argument")
		}
		store, err := boltdb.New(cmd.DBPath)
		if nil != err {
			return err
		}
		recs, err := store.Search(ctx, args[0])
		if nil != err {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		for _, rec := range recs {
			err = enc.Encode(rec)
			if nil != err {
				return err
			}
		}
		return nil

	case "confirm":
		if 1 != len(args) {
			return fmt.Errorf("confirm needs a text argument")
		}
		err := client.GetConfirmation(ctx, args[0])
		if nil != err {
			return err
		}
		fmt.Println("confirmed")
		return nil

	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}
