package main

import (
	"fmt"

	"staychain/core/types"
	"staychain/native/fees"
	"staychain/rpc"
)

func (c *cli) runTokenCommand(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(c.stderr, usage())
		return 1
	}
	switch args[0] {
	case "mint-to":
		return c.runMintTo(args[1:])
	case "transfer":
		return c.runTransfer(args[1:])
	case "account":
		return c.runTokenAccount(args[1:])
	case "asset":
		return c.query("token_getPaymentAsset", nil, &rpc.PaymentAssetJSON{})
	default:
		fmt.Fprintf(c.stderr, "Unknown token subcommand: %s\n", args[0])
		return 1
	}
}

func (c *cli) runMintTo(args []string) int {
	flags := c.newFlagSet("token mint-to")
	keyPath := flags.String("key", "", "mint authority keystore")
	owner := flags.String("owner", "", "recipient wallet")
	amountStr := flags.String("amount", "", "amount in base units")
	mintFlag := flags.String("mint", "", "mint (defaults to the payment mint)")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	to, err := parseAddressArg("owner", *owner)
	if err != nil {
		return c.fail(err)
	}
	amount, err := parseAmount("amount", *amountStr)
	if err != nil {
		return c.fail(err)
	}
	mint, _, err := c.paymentAsset(*mintFlag, "")
	if err != nil {
		return c.fail(err)
	}
	return c.submit(*keyPath, types.TxTypeMintTo, types.MintToPayload{Mint: mint, Owner: to, Amount: amount})
}

func (c *cli) runTransfer(args []string) int {
	flags := c.newFlagSet("token transfer")
	keyPath := flags.String("key", "", "sender keystore")
	toFlag := flags.String("to", "", "recipient wallet")
	amountStr := flags.String("amount", "", "amount in base units")
	mintFlag := flags.String("mint", "", "mint (defaults to the payment mint)")
	decimals := flags.Uint("decimals", uint(fees.TransferDecimals), "mint decimals, checked by the ledger")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	to, err := parseAddressArg("to", *toFlag)
	if err != nil {
		return c.fail(err)
	}
	amount, err := parseAmount("amount", *amountStr)
	if err != nil {
		return c.fail(err)
	}
	if *decimals > 255 {
		return c.fail(fmt.Errorf("--decimals must be <= 255"))
	}
	mint, _, err := c.paymentAsset(*mintFlag, "")
	if err != nil {
		return c.fail(err)
	}
	return c.submit(*keyPath, types.TxTypeTransfer, types.TransferPayload{Mint: mint, To: to, Amount: amount, Decimals: uint8(*decimals)})
}

func (c *cli) runTokenAccount(args []string) int {
	flags := c.newFlagSet("token account")
	address := flags.String("address", "", "token account address")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if _, err := parseAddressArg("address", *address); err != nil {
		return c.fail(err)
	}
	return c.query("token_getAccount", map[string]string{"address": *address}, &rpc.TokenAccountJSON{})
}
