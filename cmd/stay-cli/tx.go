package main

import (
	"staychain/core/types"
	"staychain/crypto"
)

// submit signs payload with the keystore at keyPath, using the sender's next
// nonce, and prints the receipt.
func (c *cli) submit(keyPath string, txType types.TxType, payload interface{}) int {
	key, err := c.loadKey(keyPath)
	if err != nil {
		return c.fail(err)
	}
	return c.submitWithKey(key, txType, payload)
}

func (c *cli) submitWithKey(key *crypto.PrivateKey, txType types.TxType, payload interface{}) int {
	ctx, cancel := c.context()
	defer cancel()

	nonce, err := c.client.Nonce(ctx, key.PubKey().Address().String())
	if err != nil {
		return c.fail(err)
	}
	tx := &types.Transaction{ChainID: c.chainID, Type: txType, Nonce: nonce}
	if err := tx.EncodePayload(payload); err != nil {
		return c.fail(err)
	}
	if err := tx.Sign(key.PrivateKey); err != nil {
		return c.fail(err)
	}
	receipt, err := c.client.SendTransaction(ctx, tx)
	if err != nil {
		return c.fail(err)
	}
	return c.printJSON(receipt)
}
