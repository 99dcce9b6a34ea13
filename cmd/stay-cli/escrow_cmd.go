package main

import (
	"fmt"

	"staychain/core/types"
	"staychain/rpc"
)

func (c *cli) runEscrowCommand(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(c.stderr, usage())
		return 1
	}
	switch args[0] {
	case "fund":
		return c.runEscrowFund(args[1:])
	case "release":
		return c.runEscrowRelease(args[1:])
	case "get":
		return c.runEscrowGet(args[1:])
	case "address":
		return c.runEscrowAddress(args[1:])
	case "quote":
		return c.runEscrowQuote(args[1:])
	default:
		fmt.Fprintf(c.stderr, "Unknown escrow subcommand: %s\n", args[0])
		return 1
	}
}

// paymentAsset resolves mint and treasury, asking the node for whichever
// flag was left empty.
func (c *cli) paymentAsset(mintFlag, treasuryFlag string) (mint, treasury [20]byte, err error) {
	if mintFlag == "" || treasuryFlag == "" {
		ctx, cancel := c.context()
		defer cancel()
		var asset rpc.PaymentAssetJSON
		if err := c.client.Call(ctx, "token_getPaymentAsset", nil, &asset); err != nil {
			return mint, treasury, err
		}
		if mintFlag == "" {
			mintFlag = asset.Mint
		}
		if treasuryFlag == "" {
			treasuryFlag = asset.Treasury
		}
	}
	if mint, err = parseAddressArg("mint", mintFlag); err != nil {
		return mint, treasury, err
	}
	treasury, err = parseAddressArg("treasury", treasuryFlag)
	return mint, treasury, err
}

func (c *cli) runEscrowFund(args []string) int {
	flags := c.newFlagSet("escrow fund")
	keyPath := flags.String("key", "", "guest keystore")
	reservation := flags.String("reservation", "", "reservation address")
	id := flags.Uint64("id", 0, "escrow id")
	amountStr := flags.String("amount", "", "amount in base units")
	release := flags.String("release", "", "earliest release time")
	mintFlag := flags.String("mint", "", "payment mint (defaults to the node's)")
	treasuryFlag := flags.String("treasury", "", "platform treasury (defaults to the node's)")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	res, err := parseAddressArg("reservation", *reservation)
	if err != nil {
		return c.fail(err)
	}
	amount, err := parseAmount("amount", *amountStr)
	if err != nil {
		return c.fail(err)
	}
	releaseAt, err := parseTime("release", *release, c.now())
	if err != nil {
		return c.fail(err)
	}
	mint, treasury, err := c.paymentAsset(*mintFlag, *treasuryFlag)
	if err != nil {
		return c.fail(err)
	}
	return c.submit(*keyPath, types.TxTypeFundEscrow, types.FundEscrowPayload{
		Reservation: res, EscrowID: *id, Amount: amount, ReleaseDate: releaseAt, Mint: mint, Treasury: treasury,
	})
}

func (c *cli) runEscrowRelease(args []string) int {
	flags := c.newFlagSet("escrow release")
	keyPath := flags.String("key", "", "platform authority keystore")
	escrowFlag := flags.String("escrow", "", "escrow address")
	mintFlag := flags.String("mint", "", "payment mint (defaults to the node's)")
	treasuryFlag := flags.String("treasury", "", "platform treasury (defaults to the node's)")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	esc, err := parseAddressArg("escrow", *escrowFlag)
	if err != nil {
		return c.fail(err)
	}
	mint, treasury, err := c.paymentAsset(*mintFlag, *treasuryFlag)
	if err != nil {
		return c.fail(err)
	}
	return c.submit(*keyPath, types.TxTypeReleaseEscrow, types.ReleaseEscrowPayload{Escrow: esc, Mint: mint, Treasury: treasury})
}

func (c *cli) runEscrowGet(args []string) int {
	flags := c.newFlagSet("escrow get")
	escrowFlag := flags.String("escrow", "", "escrow address")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if _, err := parseAddressArg("escrow", *escrowFlag); err != nil {
		return c.fail(err)
	}
	return c.query("escrow_get", map[string]string{"address": *escrowFlag}, &rpc.EscrowJSON{})
}

func (c *cli) runEscrowAddress(args []string) int {
	flags := c.newFlagSet("escrow address")
	reservation := flags.String("reservation", "", "reservation address")
	id := flags.Uint64("id", 0, "escrow id")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if _, err := parseAddressArg("reservation", *reservation); err != nil {
		return c.fail(err)
	}
	var addr string
	params := map[string]interface{}{"reservation": *reservation, "escrowId": *id}
	return c.query("escrow_address", params, &addr)
}

func (c *cli) runEscrowQuote(args []string) int {
	flags := c.newFlagSet("escrow quote")
	amountStr := flags.String("amount", "", "amount in base units")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	amount, err := parseAmount("amount", *amountStr)
	if err != nil {
		return c.fail(err)
	}
	return c.query("escrow_quote", map[string]string{"amount": fmt.Sprint(amount)}, &rpc.QuoteJSON{})
}

// query calls a read-only method and prints its result.
func (c *cli) query(method string, params interface{}, out interface{}) int {
	ctx, cancel := c.context()
	defer cancel()
	if err := c.client.Call(ctx, method, params, out); err != nil {
		return c.fail(err)
	}
	return c.printJSON(out)
}
