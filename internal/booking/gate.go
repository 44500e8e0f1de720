package booking

import (
	"strings"

	"github.com/Machforo/illora-ai-chieftain/internal/models"
	"github.com/Machforo/illora-ai-chieftain/internal/pricing"
)

// DefaultRestricted lists services reserved for staying guests
var DefaultRestricted = []string{
	"room service",
	"spa",
	"gym",
	"pool",
	"wake-up call",
	"book a room",
	"booking",
}

// Gate decides whether a classified message enters the booking dialogue and
// whether a message asks for a guest-only service.
type Gate struct {
	bookingLabel string
	restricted   []string
}

func NewGate(bookingLabel string, restricted []string) *Gate {
	if restricted == nil {
		restricted = DefaultRestricted
	}
	g := &Gate{bookingLabel: strings.TrimSpace(bookingLabel)}
	for _, kw := range restricted {
		if k := pricing.NormalizeKey(kw); k != "" {
			g.restricted = append(g.restricted, "_"+k+"_")
		}
	}
	return g
}

// ShouldEnterBooking is true only for the configured booking label. It is
// evaluated on every Idle message; nothing is cached.
func (g *Gate) ShouldEnterBooking(label string) bool {
	return g.bookingLabel != "" && strings.TrimSpace(label) == g.bookingLabel
}

// Restricted reports whether a non-guest asked for a guest-only service.
// Keywords match on word boundaries, so "spa" does not fire inside "space".
func (g *Gate) Restricted(userType models.UserType, text string) bool {
	if userType != models.UserNonGuest {
		return false
	}
	haystack := "_" + pricing.NormalizeKey(text) + "_"
	for _, kw := range g.restricted {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
