package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"staychain/crypto"
)

func (c *cli) runKeygen(args []string) int {
	flags := c.newFlagSet("keygen")
	out := flags.String("out", "wallet.keystore", "keystore file to create")
	force := flags.Bool("force", false, "overwrite an existing keystore")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if _, err := os.Stat(*out); err == nil && !*force {
		return c.fail(fmt.Errorf("%s already exists; pass --force to overwrite", *out))
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return c.fail(err)
	}
	pass, err := c.passphrase()
	if err != nil {
		return c.fail(err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return c.fail(err)
	}
	if err := crypto.SaveToKeystore(*out, key, pass); err != nil {
		return c.fail(err)
	}
	fmt.Fprintf(c.stdout, "Keystore: %s\nAddress:  %s\n", *out, key.PubKey().Address().String())
	return 0
}

func (c *cli) runAddress(args []string) int {
	flags := c.newFlagSet("address")
	keyPath := flags.String("key", "", "keystore file")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	key, err := c.loadKey(*keyPath)
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintln(c.stdout, key.PubKey().Address().String())
	return 0
}

func (c *cli) loadKey(path string) (*crypto.PrivateKey, error) {
	if path == "" {
		return nil, errors.New("--key is required")
	}
	pass, err := c.passphrase()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("open keystore %s: %w", path, err)
	}
	return key, nil
}
