package booking

import (
	"fmt"
	"strings"

	"github.com/Machforo/illora-ai-chieftain/internal/models"
	"github.com/Machforo/illora-ai-chieftain/internal/pricing"
)

// messages renders every outbound text of the dialogue
type messages struct {
	hotel   string
	catalog *pricing.Catalog
}

func (m messages) welcome() string {
	return fmt.Sprintf("👋 Welcome to *%s*.\n"+
		"Are you a *guest* staying with us or a *non-guest* (e.g., restaurant or event visitor)?\n"+
		"Please reply with *guest* or *non-guest* to proceed.", m.hotel)
}

func (m messages) guestAck() string {
	return fmt.Sprintf("✅ Great! You're marked as a guest of %s. How can I assist you today?", m.hotel)
}

func (m messages) visitorAck() string {
	return "✅ Noted. You're marked as a visitor. Some services are exclusive to our guests. Feel free to ask any questions!"
}

func (m messages) restricted() string {
	return fmt.Sprintf("We're sorry, this service is exclusive to *guests* at %s.\n"+
		"Feel free to explore our dining options, events, and lobby amenities!", m.hotel)
}

func (m messages) roomMenu(addons []string) string {
	var b strings.Builder
	b.WriteString("💼 Let's book your stay:\nPlease choose your room type:\n")
	rooms := m.catalog.Rooms()
	choices := make([]string, 0, len(rooms))
	for i, r := range rooms {
		fmt.Fprintf(&b, "%d. %s Room - %s/night\n", i+1, r.Type, m.catalog.Format(r.PerNight))
		choices = append(choices, fmt.Sprintf("*%d*", i+1))
	}
	if len(addons) > 0 {
		fmt.Fprintf(&b, "\n✨ We'll add %s to your booking.\n", m.addonNames(addons))
	}
	fmt.Fprintf(&b, "\nReply with %s to proceed.", joinChoices(choices))
	return b.String()
}

func (m messages) nightsPrompt(room models.RoomType) string {
	return fmt.Sprintf("🛏️ Great! How many nights would you like to stay in our *%s Room*?\nReply with a number.", room)
}

func (m messages) paymentPrompt() string {
	return "💳 How would you like to pay?\n" +
		"1. Online Payment\n" +
		"2. Cash on Arrival\n\n" +
		"Reply with *1* or *2*."
}

func (m messages) summary(sess *models.Session, total int64) string {
	var b strings.Builder
	b.WriteString("🧾 *Booking Summary:*\n")
	fmt.Fprintf(&b, "🏨 Room: *%s*\n", sess.RoomType)
	fmt.Fprintf(&b, "🌙 Nights: *%d*\n", sess.Nights)
	fmt.Fprintf(&b, "💰 Payment: *%s*\n", sess.PaymentMode.Label())
	if len(sess.Addons) > 0 {
		fmt.Fprintf(&b, "✨ Add-ons: %s\n", m.addonLines(sess.Addons))
	}
	if sess.PaymentMode == models.PaymentCashOnArrival {
		fmt.Fprintf(&b, "💵 Due now: %s (deposit, balance payable on arrival)\n\n", m.catalog.Format(total))
	} else {
		fmt.Fprintf(&b, "💵 Total: %s\n\n", m.catalog.Format(total))
	}
	b.WriteString("✅ Please reply with *Yes* to confirm your booking.")
	return b.String()
}

func (m messages) confirmed(url string) string {
	return fmt.Sprintf("🎉 *Your booking at %s is confirmed!*\n\n"+
		"To complete the process, please follow this payment link:\n%s", m.hotel, url)
}

func (m messages) paymentFailed() string {
	return "⚠ Payment link generation failed. Please try again by telling us you'd like to book."
}

func (m messages) catalogFailed(err error) string {
	return fmt.Sprintf("⚠ We couldn't price your request (%v). Please start the booking again.", err)
}

func (m messages) cancelled() string {
	return "❌ Booking not confirmed. Tell us whenever you'd like to book again."
}

func (m messages) addonOffer(addons []string, total int64) string {
	return fmt.Sprintf("\n\n🛎️ Would you like to order %s for %s? Reply *Yes* to get a payment link.",
		m.addonLines(addons), m.catalog.Format(total))
}

func (m messages) addonConfirmed(url string) string {
	return fmt.Sprintf("🎉 Your order is placed! Complete the payment here:\n%s", url)
}

func (m messages) addonCancelled() string {
	return "No problem, nothing was ordered. How else can I help?"
}

// addonLines lists add-ons with their price, marking complimentary items
func (m messages) addonLines(keys []string) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		p, err := m.catalog.PriceForAddon(k)
		if err != nil {
			parts = append(parts, k)
			continue
		}
		if p.Complimentary {
			parts = append(parts, p.Name+" (complimentary)")
		} else {
			parts = append(parts, fmt.Sprintf("%s (%s)", p.Name, m.catalog.Format(p.Amount)))
		}
	}
	return strings.Join(parts, ", ")
}

func (m messages) addonNames(keys []string) string {
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		if p, err := m.catalog.PriceForAddon(k); err == nil {
			names = append(names, p.Name)
		} else {
			names = append(names, k)
		}
	}
	return strings.Join(names, ", ")
}

func joinChoices(choices []string) string {
	switch len(choices) {
	case 0:
		return ""
	case 1:
		return choices[0]
	case 2:
		return choices[0] + " or " + choices[1]
	}
	return strings.Join(choices[:len(choices)-1], ", ") + ", or " + choices[len(choices)-1]
}
