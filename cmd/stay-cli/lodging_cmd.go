package main

import (
	"fmt"
	"math"
	"strings"

	"staychain/core/types"
)

const secondsPerNight = 86_400

func (c *cli) runHostInit(args []string) int {
	flags := c.newFlagSet("host")
	keyPath := flags.String("key", "", "host keystore")
	name := flags.String("name", "", "display name")
	email := flags.String("email", "", "contact email")
	image := flags.String("image", "", "profile image URL")
	passwordHash := flags.String("password-hash", "", "pre-hashed password")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*name) == "" {
		return c.fail(fmt.Errorf("--name is required"))
	}
	return c.submit(*keyPath, types.TxTypeInitializeHost, types.InitializeHostPayload{
		Name: *name, Email: *email, Image: *image, HashedPassword: *passwordHash,
	})
}

func (c *cli) runGuestInit(args []string) int {
	flags := c.newFlagSet("guest")
	keyPath := flags.String("key", "", "guest keystore")
	name := flags.String("name", "", "display name")
	email := flags.String("email", "", "contact email")
	image := flags.String("image", "", "profile image URL")
	passwordHash := flags.String("password-hash", "", "pre-hashed password")
	phone := flags.String("phone", "", "phone number")
	dob := flags.String("dob", "", "date of birth (YYYY-MM-DD or unix seconds)")
	lang := flags.String("lang", "", "preferred language")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*name) == "" {
		return c.fail(fmt.Errorf("--name is required"))
	}
	var birth uint64
	if *dob != "" {
		var err error
		if birth, err = parseTime("dob", *dob, c.now()); err != nil {
			return c.fail(err)
		}
	}
	return c.submit(*keyPath, types.TxTypeInitializeGuest, types.InitializeGuestPayload{
		Name: *name, Email: *email, ImageURL: *image, HashedPassword: *passwordHash,
		PhoneNumber: *phone, DateOfBirth: birth, PreferredLanguage: *lang,
	})
}

func (c *cli) runListingInit(args []string) int {
	flags := c.newFlagSet("listing")
	keyPath := flags.String("key", "", "host keystore")
	title := flags.String("title", "", "listing title")
	description := flags.String("description", "", "listing description")
	image := flags.String("image", "", "image URL")
	category := flags.String("category", "", "category")
	rooms := flags.Uint("rooms", 1, "room count")
	bathrooms := flags.Uint("bathrooms", 1, "bathroom count")
	guests := flags.Uint("guests", 1, "maximum guests")
	country := flags.String("country", "", "ISO country code")
	price := flags.String("price", "", "nightly price in base units")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*title) == "" {
		return c.fail(fmt.Errorf("--title is required"))
	}
	for name, v := range map[string]uint{"rooms": *rooms, "bathrooms": *bathrooms, "guests": *guests} {
		if v > math.MaxUint8 {
			return c.fail(fmt.Errorf("--%s must be <= %d", name, math.MaxUint8))
		}
	}
	amount, err := parseAmount("price", *price)
	if err != nil {
		return c.fail(err)
	}
	return c.submit(*keyPath, types.TxTypeInitializeListing, types.InitializeListingPayload{
		Title: *title, Description: *description, ImageURL: *image, Category: *category,
		RoomCount: uint8(*rooms), BathroomCount: uint8(*bathrooms), GuestCount: uint8(*guests),
		CountryCode: strings.ToUpper(*country), Price: amount,
	})
}

func (c *cli) runReserve(args []string) int {
	flags := c.newFlagSet("reserve")
	keyPath := flags.String("key", "", "guest keystore")
	listing := flags.String("listing", "", "listing address")
	id := flags.Uint64("id", 0, "reservation id, unique per guest")
	start := flags.String("start", "", "check-in date")
	end := flags.String("end", "", "check-out date")
	guests := flags.Uint("guests", 1, "guest count")
	pricePerNight := flags.String("price-per-night", "", "nightly price in base units")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	payload, err := c.reservationPayload(*listing, *id, *start, *end, *guests, *pricePerNight)
	if err != nil {
		return c.fail(err)
	}
	return c.submit(*keyPath, types.TxTypeInitializeReservation, payload)
}

// reservationPayload derives the night count and total from the dates.
func (c *cli) reservationPayload(listing string, id uint64, start, end string, guests uint, pricePerNight string) (types.InitializeReservationPayload, error) {
	var p types.InitializeReservationPayload
	var err error
	if p.Listing, err = parseAddressArg("listing", listing); err != nil {
		return p, err
	}
	now := c.now()
	if p.StartDate, err = parseTime("start", start, now); err != nil {
		return p, err
	}
	if p.EndDate, err = parseTime("end", end, now); err != nil {
		return p, err
	}
	if p.EndDate <= p.StartDate {
		return p, fmt.Errorf("--end must be after --start")
	}
	if guests > math.MaxUint8 {
		return p, fmt.Errorf("--guests must be <= %d", math.MaxUint8)
	}
	if p.PricePerNight, err = parseAmount("price-per-night", pricePerNight); err != nil {
		return p, err
	}
	nights := (p.EndDate - p.StartDate + secondsPerNight - 1) / secondsPerNight
	if nights > math.MaxUint16 {
		return p, fmt.Errorf("stay of %d nights is too long", nights)
	}
	if p.PricePerNight != 0 && nights > math.MaxUint64/p.PricePerNight {
		return p, fmt.Errorf("total price overflows uint64")
	}
	p.ReservationID = id
	p.GuestCount = uint8(guests)
	p.TotalNights = uint16(nights)
	p.TotalPrice = nights * p.PricePerNight
	return p, nil
}
