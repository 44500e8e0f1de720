package pricing

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Machforo/illora-ai-chieftain/internal/models"
)

var (
	ErrInvalidCatalogKey = errors.New("invalid catalog key")
	ErrInvalidNights     = errors.New("nights out of range")
	ErrPriceOverflow     = errors.New("price exceeds the representable amount")
)

// DefaultMaxNights caps a single booking when Options.MaxNights is unset
const DefaultMaxNights = 365

// KeyError reports an unknown room or add-on key
type KeyError struct {
	Kind string // "room" or "addon"
	Key  string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.Key, ErrInvalidCatalogKey)
}

func (e *KeyError) Unwrap() error { return ErrInvalidCatalogKey }

// Room is a bookable room type. Prices are in minor currency units.
type Room struct {
	Type     models.RoomType
	PerNight int64
}

// Addon is an extra service. Complimentary add-ons have no price.
type Addon struct {
	Key   string
	Name  string
	Price int64
}

// Options configures a Catalog
type Options struct {
	Rooms         []Room
	Addons        []Addon
	Complimentary []Addon
	CashDeposit   int64
	Currency      string
	MaxNights     int // zero means DefaultMaxNights
}

// AddonPrice is the priced form of a single add-on
type AddonPrice struct {
	Key           string
	Name          string
	Amount        int64
	Complimentary bool
}

// Catalog is the immutable price table loaded at startup
type Catalog struct {
	rooms         []Room
	roomsByKey    map[string]Room
	addons        map[string]Addon
	complimentary map[string]Addon
	patterns      []pattern
	cashDeposit   int64
	currency      string
	maxNights     int
}

type pattern struct {
	text string
	key  string
}

// NewCatalog validates opts and builds a Catalog
func NewCatalog(opts Options) (*Catalog, error) {
	if len(opts.Rooms) == 0 {
		return nil, errors.New("catalog needs at least one room")
	}
	if opts.CashDeposit < 0 {
		return nil, errors.New("cash deposit must not be negative")
	}
	if opts.MaxNights < 0 {
		return nil, errors.New("max nights must not be negative")
	}

	c := &Catalog{
		rooms:         append([]Room(nil), opts.Rooms...),
		roomsByKey:    make(map[string]Room, len(opts.Rooms)),
		addons:        make(map[string]Addon, len(opts.Addons)),
		complimentary: make(map[string]Addon, len(opts.Complimentary)),
		cashDeposit:   opts.CashDeposit,
		currency:      strings.ToLower(opts.Currency),
		maxNights:     opts.MaxNights,
	}
	if c.currency == "" {
		c.currency = "inr"
	}
	if c.maxNights == 0 {
		c.maxNights = DefaultMaxNights
	}

	for _, r := range opts.Rooms {
		if r.PerNight < 0 {
			return nil, fmt.Errorf("room %s has a negative price", r.Type)
		}
		c.roomsByKey[NormalizeKey(string(r.Type))] = r
	}
	for _, a := range opts.Complimentary {
		a.Key = NormalizeKey(a.Key)
		a.Price = 0
		c.complimentary[a.Key] = a
	}
	for _, a := range opts.Addons {
		a.Key = NormalizeKey(a.Key)
		if a.Price < 0 {
			return nil, fmt.Errorf("addon %s has a negative price", a.Key)
		}
		if _, free := c.complimentary[a.Key]; free {
			continue
		}
		c.addons[a.Key] = a
	}

	c.buildPatterns()
	return c, nil
}

// Default returns the canonical hotel price table. A non-positive
// cashDeposit keeps the canonical deposit.
func Default(cashDeposit int64, currency string) *Catalog {
	opts := DefaultOptions()
	if cashDeposit > 0 {
		opts.CashDeposit = cashDeposit
	}
	if currency != "" {
		opts.Currency = currency
	}
	c, err := NewCatalog(opts)
	if err != nil {
		panic(fmt.Sprintf("default catalog: %v", err))
	}
	return c
}

// DefaultOptions holds the canonical prices in minor units (paise)
func DefaultOptions() Options {
	return Options{
		Rooms: []Room{
			{Type: models.RoomDeluxe, PerNight: 4000_00},
			{Type: models.RoomExecutive, PerNight: 6000_00},
			{Type: models.RoomFamily, PerNight: 8000_00},
		},
		Addons: []Addon{
			{Key: "spa_massage", Name: "Spa Massage", Price: 3000_00},
			{Key: "spa_aromatherapy", Name: "Aromatherapy", Price: 3500_00},
			{Key: "spa_hot_stone", Name: "Hot Stone Therapy", Price: 4000_00},
			{Key: "juice", Name: "Juice", Price: 510_00},
			{Key: "mocktail", Name: "Mocktail", Price: 935_00},
			{Key: "cocktail", Name: "Cocktail", Price: 1275_00},
			{Key: "milkshake", Name: "Milkshake", Price: 595_00},
			{Key: "smoothie", Name: "Smoothie", Price: 595_00},
			{Key: "bbq_sliders", Name: "BBQ Sliders", Price: 595_00},
			{Key: "masai_spiced_nuts", Name: "Masai Spiced Nuts", Price: 510_00},
			{Key: "cheese_platter", Name: "Cheese Platter", Price: 765_00},
			{Key: "chocolate_brownie", Name: "Chocolate Brownie", Price: 510_00},
			{Key: "cheesecake", Name: "Cheesecake", Price: 510_00},
			{Key: "banana_spring_roll", Name: "Banana Spring Roll", Price: 510_00},
			{Key: "stuffed_mini_peppers", Name: "Stuffed Mini Peppers", Price: 595_00},
			{Key: "vegetable_skewers", Name: "Vegetable Skewers", Price: 595_00},
		},
		Complimentary: []Addon{
			{Key: "tea", Name: "Tea"},
			{Key: "coffee", Name: "Coffee"},
			{Key: "earl_grey", Name: "Earl Grey"},
			{Key: "green_tea", Name: "Green Tea"},
			{Key: "espresso", Name: "Espresso"},
			{Key: "latte", Name: "Latte"},
			{Key: "americano", Name: "Americano"},
			{Key: "cappuccino", Name: "Cappuccino"},
			{Key: "masala_tea", Name: "Masala Tea"},
			{Key: "jasmine_tea", Name: "Jasmine Tea"},
			{Key: "darjeeling", Name: "Darjeeling"},
		},
		CashDeposit: 2000_00,
		Currency:    "inr",
	}
}

// NormalizeKey lowercases s and collapses whitespace and separators into
// single underscores, so "Spa Massage", "spa-massage" and "SPA_MASSAGE"
// all map to "spa_massage".
func NormalizeKey(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}

// Rooms returns the rooms in menu order
func (c *Catalog) Rooms() []Room {
	return append([]Room(nil), c.rooms...)
}

// RoomByIndex resolves a 1-based menu index such as "2"
func (c *Catalog) RoomByIndex(input string) (Room, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > len(c.rooms) {
		return Room{}, false
	}
	return c.rooms[n-1], true
}

// Room looks up a room type
func (c *Catalog) Room(roomType models.RoomType) (Room, error) {
	r, ok := c.roomsByKey[NormalizeKey(string(roomType))]
	if !ok {
		return Room{}, &KeyError{Kind: "room", Key: string(roomType)}
	}
	return r, nil
}

// PriceForRoom is the full stay price for online payment, or the fixed
// deposit for cash on arrival.
func (c *Catalog) PriceForRoom(roomType models.RoomType, nights int, mode models.PaymentMode) (int64, error) {
	room, err := c.Room(roomType)
	if err != nil {
		return 0, err
	}
	if nights <= 0 || nights > c.maxNights {
		return 0, fmt.Errorf("%w: got %d, at most %d", ErrInvalidNights, nights, c.maxNights)
	}
	if mode == models.PaymentCashOnArrival {
		return c.cashDeposit, nil
	}
	if room.PerNight > 0 && int64(nights) > math.MaxInt64/room.PerNight {
		return 0, fmt.Errorf("%w: %s for %d nights", ErrPriceOverflow, room.Type, nights)
	}
	return room.PerNight * int64(nights), nil
}

// PriceForAddon prices a single add-on. Complimentary keys are always zero.
func (c *Catalog) PriceForAddon(key string) (AddonPrice, error) {
	k := NormalizeKey(key)
	if a, ok := c.complimentary[k]; ok {
		return AddonPrice{Key: k, Name: a.Name, Complimentary: true}, nil
	}
	if a, ok := c.addons[k]; ok {
		return AddonPrice{Key: k, Name: a.Name, Amount: a.Price}, nil
	}
	return AddonPrice{}, &KeyError{Kind: "addon", Key: key}
}

// PriceAddons prices every key and returns the billable subtotal
func (c *Catalog) PriceAddons(keys []string) ([]AddonPrice, int64, error) {
	prices := make([]AddonPrice, 0, len(keys))
	var total int64
	for _, key := range keys {
		p, err := c.PriceForAddon(key)
		if err != nil {
			return nil, 0, err
		}
		prices = append(prices, p)
		if !p.Complimentary {
			total += p.Amount
		}
	}
	return prices, total, nil
}

// Total is the room price plus every non-complimentary add-on
func (c *Catalog) Total(req models.BookingRequest) (int64, error) {
	room, err := c.PriceForRoom(req.RoomType, req.Nights, req.PaymentMode)
	if err != nil {
		return 0, err
	}
	_, addons, err := c.PriceAddons(req.Addons)
	if err != nil {
		return 0, err
	}
	if addons > math.MaxInt64-room {
		return 0, ErrPriceOverflow
	}
	return room + addons, nil
}

// Validate checks every key in req against the catalog
func (c *Catalog) Validate(req models.BookingRequest) error {
	_, err := c.Total(req)
	return err
}

// MatchAddons returns the keys of add-ons mentioned in free text, by key or
// display name. Longer names win over names they contain.
func (c *Catalog) MatchAddons(text string) []string {
	haystack := "_" + NormalizeKey(text) + "_"
	if haystack == "__" {
		return nil
	}

	var found []string
	seen := make(map[string]bool)
	for _, p := range c.patterns {
		needle := "_" + p.text + "_"
		idx := strings.Index(haystack, needle)
		if idx < 0 {
			continue
		}
		// blank the match so "tea" does not also fire inside "green_tea"
		haystack = haystack[:idx+1] + strings.Repeat("#", len(p.text)) + haystack[idx+1+len(p.text):]
		if !seen[p.key] {
			seen[p.key] = true
			found = append(found, p.key)
		}
	}
	return found
}

// Billable reports whether key prices above zero
func (c *Catalog) Billable(key string) bool {
	_, ok := c.addons[NormalizeKey(key)]
	return ok
}

// Currency is the lowercase ISO currency code
func (c *Catalog) Currency() string { return c.currency }

// MaxNights is the longest stay a single booking may request
func (c *Catalog) MaxNights() int { return c.maxNights }

// CashDeposit is the cash-on-arrival deposit in minor units
func (c *Catalog) CashDeposit() int64 { return c.cashDeposit }

// Format renders a minor-unit amount for chat messages
func (c *Catalog) Format(amount int64) string {
	symbol := strings.ToUpper(c.currency) + " "
	switch c.currency {
	case "inr":
		symbol = "₹"
	case "usd":
		symbol = "$"
	case "eur":
		symbol = "€"
	case "gbp":
		symbol = "£"
	}
	if amount%100 == 0 {
		return fmt.Sprintf("%s%d", symbol, amount/100)
	}
	return fmt.Sprintf("%s%d.%02d", symbol, amount/100, amount%100)
}

func (c *Catalog) buildPatterns() {
	add := func(a Addon) {
		c.patterns = append(c.patterns, pattern{text: a.Key, key: a.Key})
		if name := NormalizeKey(a.Name); name != "" && name != a.Key {
			c.patterns = append(c.patterns, pattern{text: name, key: a.Key})
		}
	}
	for _, a := range c.addons {
		add(a)
	}
	for _, a := range c.complimentary {
		add(a)
	}
	// longest first, then alphabetical for a stable order
	sort.Slice(c.patterns, func(i, j int) bool {
		if len(c.patterns[i].text) != len(c.patterns[j].text) {
			return len(c.patterns[i].text) > len(c.patterns[j].text)
		}
		return c.patterns[i].text < c.patterns[j].text
	})
}
