package models

import "time"

// Channel identifies the inbound transport a message arrived on
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelNATS     Channel = "nats"
)

// Stage is the position of a conversation inside the booking dialogue
type Stage string

const (
	StageIdle                   Stage = "idle"
	StageIdentify               Stage = "identify"
	StageRoomSelection          Stage = "room_selection"
	StageNightsInput            Stage = "nights_input"
	StagePaymentMethodSelection Stage = "payment_method_selection"
	StageConfirmation           Stage = "confirmation"
	StageAddonConfirmation      Stage = "addon_confirmation"
)

// Valid reports whether s is one of the known stages
func (s Stage) Valid() bool {
	switch s {
	case StageIdle, StageIdentify, StageRoomSelection, StageNightsInput,
		StagePaymentMethodSelection, StageConfirmation, StageAddonConfirmation:
		return true
	}
	return false
}

type UserType string

const (
	UserUnknown  UserType = "unknown"
	UserGuest    UserType = "guest"
	UserNonGuest UserType = "non_guest"
)

type RoomType string

const (
	RoomDeluxe    RoomType = "Deluxe"
	RoomExecutive RoomType = "Executive"
	RoomFamily    RoomType = "Family"
)

type PaymentMode string

const (
	PaymentOnline        PaymentMode = "online"
	PaymentCashOnArrival PaymentMode = "cash_on_arrival"
)

// Label is the human readable name used in summaries
func (p PaymentMode) Label() string {
	switch p {
	case PaymentOnline:
		return "Online"
	case PaymentCashOnArrival:
		return "Cash on Arrival"
	}
	return string(p)
}

// Session is the per-identity conversation state. Identity never changes
// after creation; Stage is only mutated by the booking engine.
type Session struct {
	Identity       string      `json:"identity"`
	Channel        Channel     `json:"channel"`
	Stage          Stage       `json:"stage"`
	UserType       UserType    `json:"user_type"`
	RoomType       RoomType    `json:"room_type,omitempty"`
	Nights         int         `json:"nights,omitempty"`
	PaymentMode    PaymentMode `json:"payment_mode,omitempty"`
	ComputedPrice  *int64      `json:"computed_price,omitempty"` // minor units
	Addons         []string    `json:"addons,omitempty"`
	PendingBooking bool        `json:"pending_booking,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	LastActivity   time.Time   `json:"last_activity"`
}

// SessionKey scopes an identity to its channel. Identities are only unique
// within a channel; the web session id is chosen by the client.
func SessionKey(channel Channel, identity string) string {
	return string(channel) + ":" + identity
}

// Key is the store key of the session
func (s *Session) Key() string {
	return SessionKey(s.Channel, s.Identity)
}

// NewSession returns a session in the given initial stage
func NewSession(identity string, channel Channel, initial Stage) *Session {
	now := time.Now()
	return &Session{
		Identity:     identity,
		Channel:      channel,
		Stage:        initial,
		UserType:     UserUnknown,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// ResetBooking clears every booking field and returns the session to Idle.
// UserType survives the reset.
func (s *Session) ResetBooking() {
	s.Stage = StageIdle
	s.RoomType = ""
	s.Nights = 0
	s.PaymentMode = ""
	s.ComputedPrice = nil
	s.Addons = nil
	s.PendingBooking = false
}

// Clone returns a deep copy
func (s *Session) Clone() *Session {
	c := *s
	if s.ComputedPrice != nil {
		p := *s.ComputedPrice
		c.ComputedPrice = &p
	}
	if s.Addons != nil {
		c.Addons = append([]string(nil), s.Addons...)
	}
	return &c
}

// BookingRequest is the snapshot handed to the payment requester at confirmation
type BookingRequest struct {
	Identity    string
	RoomType    RoomType
	Nights      int
	PaymentMode PaymentMode
	Addons      []string
}

// MessageRequest is an inbound message normalized from any transport
type MessageRequest struct {
	Channel  Channel `json:"channel"`
	Identity string  `json:"identity"`
	Text     string  `json:"text"`
}

// MessageResponse is the outcome of one conversational turn
type MessageResponse struct {
	Identity   string   `json:"identity"`
	Reply      string   `json:"reply"`
	Stage      Stage    `json:"stage"`
	UserType   UserType `json:"user_type"`
	Intent     string   `json:"intent,omitempty"`
	PaymentURL string   `json:"payment_url,omitempty"`
	ErrorCode  *string  `json:"error_code,omitempty"`
}

// Error codes
const (
	ErrorInvalidRequest       = "INVALID_REQUEST"
	ErrorSessionUnavailable   = "SESSION_UNAVAILABLE"
	ErrorResponderFailed      = "RESPONDER_UNAVAILABLE"
	ErrorPaymentSessionFailed = "PAYMENT_SESSION_FAILED"
	ErrorInvalidCatalogKey    = "INVALID_CATALOG_KEY"
)
