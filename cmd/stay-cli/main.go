package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"staychain/cmd/internal/passphrase"
	"staychain/rpc"
)

const (
	rpcURLEnv        = "STAY_RPC_URL"
	rpcTokenEnv      = "STAY_RPC_TOKEN"
	rpcJWTSecretEnv  = "STAY_RPC_JWT_SECRET"
	rpcJWTIssuerEnv  = "STAY_RPC_JWT_ISSUER"
	keyPassphraseEnv = "STAY_KEY_PASSPHRASE"
	chainIDEnv       = "STAY_CHAIN_ID"
	defaultEndpoint  = "http://127.0.0.1:8545"
	defaultChainID   = 187
	commandTimeout   = 30 * time.Second
)

// cli carries what every subcommand needs. Tests swap the fields.
type cli struct {
	endpoint   string
	chainID    uint64
	client     *rpc.Client
	stdout     io.Writer
	stderr     io.Writer
	now        func() time.Time
	passphrase func() (string, error)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	c, rest, err := newCLI(args, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	if len(rest) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	return c.dispatch(rest)
}

func newCLI(args []string, stdout, stderr io.Writer) (*cli, []string, error) {
	fs := flag.NewFlagSet("stay-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	endpoint := fs.String("rpc", envOr(rpcURLEnv, defaultEndpoint), "node RPC endpoint")
	chainID := fs.Uint64("chain-id", envUint(chainIDEnv, defaultChainID), "chain id transactions are signed for")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	c := &cli{
		endpoint:   *endpoint,
		chainID:    *chainID,
		stdout:     stdout,
		stderr:     stderr,
		now:        time.Now,
		passphrase: passphrase.NewSource(keyPassphraseEnv, "key").Get,
	}
	c.client = rpc.NewClient(c.endpoint, rpc.WithBearer(c.bearerToken))
	return c, fs.Args(), nil
}

func (c *cli) dispatch(args []string) int {
	switch args[0] {
	case "keygen":
		return c.runKeygen(args[1:])
	case "address":
		return c.runAddress(args[1:])
	case "host":
		return c.runHostInit(args[1:])
	case "guest":
		return c.runGuestInit(args[1:])
	case "listing":
		return c.runListingInit(args[1:])
	case "reserve":
		return c.runReserve(args[1:])
	case "escrow":
		return c.runEscrowCommand(args[1:])
	case "token":
		return c.runTokenCommand(args[1:])
	case "get":
		return c.runGet(args[1:])
	case "events":
		return c.runEvents(args[1:])
	case "help", "-h", "--help":
		fmt.Fprintln(c.stdout, usage())
		return 0
	default:
		fmt.Fprintf(c.stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(c.stderr, usage())
		return 1
	}
}

func usage() string {
	return `Usage: stay-cli [--rpc URL] [--chain-id N] <command> [flags]

Keys:
  keygen   --out FILE                      create an encrypted keystore
  address  --key FILE                      print the keystore's address

Lodging:
  host     --key FILE --name --email [--image]
  guest    --key FILE --name --email [--phone --dob --lang --image]
  listing  --key FILE --title --price --guests [...]
  reserve  --key FILE --listing ADDR --id N --start DATE --end DATE --guests N --price-per-night N

Escrow:
  escrow fund     --key FILE --reservation ADDR --id N --amount N --release DATE
  escrow release  --key FILE --escrow ADDR
  escrow get      --escrow ADDR
  escrow address  --reservation ADDR --id N
  escrow quote    --amount N

Token:
  token mint-to   --key FILE --owner ADDR --amount N [--mint ADDR]
  token transfer  --key FILE --to ADDR --amount N [--mint ADDR]
  token account   --address ADDR
  token asset

Queries:
  get host|guest|listing|reservation|mint ADDR
  events [--type PREFIX] [--after SEQ] [--limit N]

Environment: STAY_RPC_URL, STAY_CHAIN_ID, STAY_KEY_PASSPHRASE,
STAY_RPC_TOKEN or STAY_RPC_JWT_SECRET for stay_sendTransaction.`
}

// bearerToken returns a static token, or mints a short-lived one when the
// node's JWT secret is available locally.
func (c *cli) bearerToken() (string, error) {
	if token := strings.TrimSpace(os.Getenv(rpcTokenEnv)); token != "" {
		return token, nil
	}
	secret := strings.TrimSpace(os.Getenv(rpcJWTSecretEnv))
	if secret == "" {
		return "", nil
	}
	issuer := envOr(rpcJWTIssuerEnv, "staychain")
	return rpc.IssueToken(secret, issuer, "stay-cli", 5*time.Minute, c.now())
}

func (c *cli) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

func (c *cli) printJSON(v interface{}) int {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return c.fail(err)
	}
	return 0
}

// fail prints err, expanding JSON-RPC error data, and returns the exit code.
func (c *cli) fail(err error) int {
	var rpcErr *rpc.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Data != nil {
		data, _ := json.Marshal(rpcErr.Data)
		fmt.Fprintf(c.stderr, "Error: %s (%d): %s\n", rpcErr.Message, rpcErr.Code, data)
		return 1
	}
	fmt.Fprintln(c.stderr, "Error:", err)
	return 1
}

func (c *cli) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}
