package main

import (
	"fmt"

	"staychain/rpc"
)

var getMethods = map[string]struct {
	method string
	out    func() interface{}
}{
	"host":        {"lodging_getHost", func() interface{} { return &rpc.HostJSON{} }},
	"guest":       {"lodging_getGuest", func() interface{} { return &rpc.GuestJSON{} }},
	"listing":     {"lodging_getListing", func() interface{} { return &rpc.ListingJSON{} }},
	"reservation": {"lodging_getReservation", func() interface{} { return &rpc.ReservationJSON{} }},
	"mint":        {"token_getMint", func() interface{} { return &rpc.MintJSON{} }},
}

func (c *cli) runGet(args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(c.stderr, "Usage: get host|guest|listing|reservation|mint ADDR")
		return 1
	}
	entry, ok := getMethods[args[0]]
	if !ok {
		fmt.Fprintf(c.stderr, "Unknown record kind: %s\n", args[0])
		return 1
	}
	if _, err := parseAddressArg("address", args[1]); err != nil {
		return c.fail(err)
	}
	return c.query(entry.method, map[string]string{"address": args[1]}, entry.out())
}

func (c *cli) runEvents(args []string) int {
	flags := c.newFlagSet("events")
	prefix := flags.String("type", "escrow.", "event type prefix")
	after := flags.Int64("after", 0, "return events after this sequence number")
	limit := flags.Int("limit", 50, "maximum events")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	ctx, cancel := c.context()
	defer cancel()
	events, next, err := c.client.ListEvents(ctx, *prefix, *after, *limit)
	if err != nil {
		return c.fail(err)
	}
	return c.printJSON(map[string]interface{}{"events": events, "nextSeq": next})
}
