package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Machforo/illora-ai-chieftain/internal/llm"
	"github.com/Machforo/illora-ai-chieftain/internal/models"
	"github.com/Machforo/illora-ai-chieftain/internal/payment"
	"github.com/Machforo/illora-ai-chieftain/internal/pricing"
	"github.com/Machforo/illora-ai-chieftain/internal/prompts"
	"go.uber.org/zap"
)

var ErrInvalidStageInput = errors.New("input does not match the current stage")

// Recorder observes dialogue activity
type Recorder interface {
	ObserveTurn(channel models.Channel, from, to models.Stage)
	ObserveRefusal(channel models.Channel)
}

// Options wires an Engine. Catalog, Classifier, Responder and Payments are
// required.
type Options struct {
	Hotel      string
	Catalog    *pricing.Catalog
	Classifier llm.Classifier
	Responder  llm.Responder
	Payments   payment.Requester
	Gate       *Gate
	Policies   map[models.Channel]Policy
	Recorder   Recorder
	Logger     *zap.Logger
}

// Outcome is the result of one turn
type Outcome struct {
	Reply      string
	Intent     string
	PaymentURL string
	Refused    bool
	ErrorCode  string
}

// Engine runs the booking dialogue. It holds no per-user state; every
// turn reads and mutates the session it is given, and the caller persists
// it atomically.
type Engine struct {
	catalog    *pricing.Catalog
	classifier llm.Classifier
	responder  llm.Responder
	payments   payment.Requester
	gate       *Gate
	policies   map[models.Channel]Policy
	recorder   Recorder
	logger     *zap.Logger
	text       messages
}

func NewEngine(opts Options) (*Engine, error) {
	switch {
	case opts.Catalog == nil:
		return nil, errors.New("booking engine needs a catalog")
	case opts.Classifier == nil:
		return nil, errors.New("booking engine needs an intent classifier")
	case opts.Responder == nil:
		return nil, errors.New("booking engine needs a responder")
	case opts.Payments == nil:
		return nil, errors.New("booking engine needs a payment requester")
	}
	if opts.Hotel == "" {
		opts.Hotel = "ILLORA RETREATS"
	}
	if opts.Gate == nil {
		opts.Gate = NewGate(llm.IntentPaymentRequest, nil)
	}
	policies := DefaultPolicies()
	for ch, p := range opts.Policies {
		policies[ch] = p
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Engine{
		catalog:    opts.Catalog,
		classifier: opts.Classifier,
		responder:  opts.Responder,
		payments:   opts.Payments,
		gate:       opts.Gate,
		policies:   policies,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
		text:       messages{hotel: opts.Hotel, catalog: opts.Catalog},
	}, nil
}

// Policy returns the dialogue policy for a channel
func (e *Engine) Policy(channel models.Channel) Policy {
	if p, ok := e.policies[channel]; ok {
		return p
	}
	return Policy{InvalidInput: InvalidInputReprompt}
}

// NewSession creates a session in the channel's initial stage
func (e *Engine) NewSession(identity string, channel models.Channel) *models.Session {
	p := e.Policy(channel)
	sess := models.NewSession(identity, channel, p.InitialStage())
	sess.UserType = p.InitialUserType()
	return sess
}

// Step handles one inbound message. Failures never escape: each is turned
// into a reply, and the session is never left in a stage it cannot leave.
func (e *Engine) Step(ctx context.Context, sess *models.Session, input string) Outcome {
	text := strings.TrimSpace(input)
	from := sess.Stage

	var out Outcome
	if e.gate.Restricted(sess.UserType, text) {
		out = Outcome{Reply: e.text.restricted(), Refused: true}
		if e.recorder != nil {
			e.recorder.ObserveRefusal(sess.Channel)
		}
	} else {
		out = e.dispatch(ctx, sess, text)
	}

	if e.recorder != nil {
		e.recorder.ObserveTurn(sess.Channel, from, sess.Stage)
	}
	e.logger.Debug("dialogue turn",
		zap.String("identity", sess.Identity),
		zap.String("channel", string(sess.Channel)),
		zap.String("from", string(from)),
		zap.String("to", string(sess.Stage)),
		zap.String("intent", out.Intent))
	return out
}

func (e *Engine) dispatch(ctx context.Context, sess *models.Session, text string) Outcome {
	switch sess.Stage {
	case models.StageIdle:
		return e.idle(ctx, sess, text)
	case models.StageIdentify:
		return e.identify(sess, text)
	case models.StageRoomSelection:
		return e.selectRoom(ctx, sess, text)
	case models.StageNightsInput:
		return e.inputNights(ctx, sess, text)
	case models.StagePaymentMethodSelection:
		return e.selectPayment(ctx, sess, text)
	case models.StageConfirmation:
		return e.confirm(ctx, sess, text)
	case models.StageAddonConfirmation:
		return e.confirmAddons(ctx, sess, text)
	}

	e.logger.Warn("unknown stage, resetting session",
		zap.String("identity", sess.Identity),
		zap.String("stage", string(sess.Stage)))
	sess.ResetBooking()
	return e.idle(ctx, sess, text)
}

func (e *Engine) idle(ctx context.Context, sess *models.Session, text string) Outcome {
	intent, err := e.classifier.Classify(ctx, text)
	if err != nil {
		e.logger.Warn("intent classification failed", zap.String("identity", sess.Identity), zap.Error(err))
		intent = llm.IntentGeneralQuery
	}

	if e.gate.ShouldEnterBooking(intent) {
		out := e.enterBooking(sess, text)
		out.Intent = intent
		return out
	}

	out := e.answer(ctx, sess, text)
	out.Intent = intent

	if sess.UserType == models.UserGuest {
		if offer := e.offerAddons(sess, text); offer != "" {
			out.Reply += offer
		}
	}
	return out
}

func (e *Engine) enterBooking(sess *models.Session, text string) Outcome {
	switch {
	case sess.UserType == models.UserNonGuest:
		if e.recorder != nil {
			e.recorder.ObserveRefusal(sess.Channel)
		}
		return Outcome{Reply: e.text.restricted(), Refused: true}
	case sess.UserType == models.UserUnknown && e.Policy(sess.Channel).IdentifyFirst:
		sess.Stage = models.StageIdentify
		sess.PendingBooking = true
		sess.Addons = e.catalog.MatchAddons(text)
		return Outcome{Reply: e.text.welcome()}
	}

	if sess.UserType == models.UserUnknown {
		sess.UserType = models.UserGuest
	}
	sess.Addons = e.catalog.MatchAddons(text)
	sess.Stage = models.StageRoomSelection
	return Outcome{Reply: e.text.roomMenu(sess.Addons)}
}

// identify checks for visitors first since "non-guest" contains "guest"
func (e *Engine) identify(sess *models.Session, text string) Outcome {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "non-guest"), strings.Contains(lower, "non guest"),
		strings.Contains(lower, "nonguest"), strings.Contains(lower, "visitor"):
		sess.UserType = models.UserNonGuest
		sess.ResetBooking()
		return Outcome{Reply: e.text.visitorAck()}

	case strings.Contains(lower, "guest"):
		sess.UserType = models.UserGuest
		if sess.PendingBooking {
			sess.PendingBooking = false
			sess.Stage = models.StageRoomSelection
			return Outcome{Reply: e.text.guestAck() + "\n\n" + e.text.roomMenu(sess.Addons)}
		}
		sess.Stage = models.StageIdle
		return Outcome{Reply: e.text.guestAck()}
	}

	return Outcome{Reply: e.text.welcome()}
}

func (e *Engine) selectRoom(ctx context.Context, sess *models.Session, text string) Outcome {
	room, err := e.parseRoom(text)
	if err != nil {
		return e.invalid(ctx, sess, text, err, e.text.roomMenu(sess.Addons))
	}
	sess.RoomType = room.Type
	sess.Stage = models.StageNightsInput
	return Outcome{Reply: e.text.nightsPrompt(room.Type)}
}

func (e *Engine) inputNights(ctx context.Context, sess *models.Session, text string) Outcome {
	nights, err := e.parseNights(text)
	if err != nil {
		return e.invalid(ctx, sess, text, err, e.text.nightsPrompt(sess.RoomType))
	}
	sess.Nights = nights
	sess.Stage = models.StagePaymentMethodSelection
	return Outcome{Reply: e.text.paymentPrompt()}
}

func (e *Engine) selectPayment(ctx context.Context, sess *models.Session, text string) Outcome {
	mode, err := parsePaymentMode(text)
	if err != nil {
		return e.invalid(ctx, sess, text, err, e.text.paymentPrompt())
	}

	sess.PaymentMode = mode
	total, err := e.catalog.Total(bookingRequest(sess))
	if err != nil {
		return e.abortOnCatalog(sess, err)
	}
	sess.ComputedPrice = &total
	sess.Stage = models.StageConfirmation
	return Outcome{Reply: e.text.summary(sess, total)}
}

func (e *Engine) confirm(ctx context.Context, sess *models.Session, text string) Outcome {
	if !affirmative(text) {
		sess.ResetBooking()
		return Outcome{Reply: e.text.cancelled()}
	}

	req := bookingRequest(sess)
	sess.ResetBooking()

	checkout, err := e.payments.CreateCheckout(ctx, req)
	if err != nil {
		return e.paymentFailure(sess, err)
	}

	e.logger.Info("booking confirmed",
		zap.String("identity", req.Identity),
		zap.String("room", string(req.RoomType)),
		zap.Int("nights", req.Nights),
		zap.String("payment_mode", string(req.PaymentMode)))
	return Outcome{Reply: e.text.confirmed(checkout.URL), PaymentURL: checkout.URL}
}

func (e *Engine) confirmAddons(ctx context.Context, sess *models.Session, text string) Outcome {
	addons := sess.Addons
	sess.ResetBooking()
	if !affirmative(text) {
		return Outcome{Reply: e.text.addonCancelled()}
	}

	checkout, err := e.payments.CreateAddonCheckout(ctx, sess.Identity, addons)
	if err != nil {
		return e.paymentFailure(sess, err)
	}
	return Outcome{Reply: e.text.addonConfirmed(checkout.URL), PaymentURL: checkout.URL}
}

// offerAddons moves a guest into AddonConfirmation when the message names
// billable add-ons, and returns the offer text.
func (e *Engine) offerAddons(sess *models.Session, text string) string {
	var billable []string
	for _, key := range e.catalog.MatchAddons(text) {
		if e.catalog.Billable(key) {
			billable = append(billable, key)
		}
	}
	if len(billable) == 0 {
		return ""
	}
	_, total, err := e.catalog.PriceAddons(billable)
	if err != nil {
		return ""
	}
	sess.Addons = billable
	sess.Stage = models.StageAddonConfirmation
	return e.text.addonOffer(billable, total)
}

// invalid handles input a stage did not ask for. The stage and its fields
// stay as they were.
func (e *Engine) invalid(ctx context.Context, sess *models.Session, text string, cause error, reprompt string) Outcome {
	e.logger.Debug("invalid stage input",
		zap.String("identity", sess.Identity),
		zap.String("stage", string(sess.Stage)),
		zap.Error(cause))

	if e.Policy(sess.Channel).InvalidInput == InvalidInputResponder {
		out := e.answer(ctx, sess, text)
		out.Reply += "\n\n" + reprompt
		return out
	}
	return Outcome{Reply: reprompt}
}

func (e *Engine) answer(ctx context.Context, sess *models.Session, text string) Outcome {
	reply, err := e.responder.Answer(ctx, sess.Key(), text, sess.UserType)
	if err != nil {
		e.logger.Error("qa responder failed", zap.String("identity", sess.Identity), zap.Error(err))
		return Outcome{Reply: prompts.FallbackMessage, ErrorCode: models.ErrorResponderFailed}
	}
	return Outcome{Reply: reply}
}

func (e *Engine) paymentFailure(sess *models.Session, err error) Outcome {
	if errors.Is(err, pricing.ErrInvalidCatalogKey) {
		return e.abortOnCatalog(sess, err)
	}
	e.logger.Error("payment session failed", zap.String("identity", sess.Identity), zap.Error(err))
	return Outcome{Reply: e.text.paymentFailed(), ErrorCode: models.ErrorPaymentSessionFailed}
}

func (e *Engine) abortOnCatalog(sess *models.Session, err error) Outcome {
	e.logger.Error("booking rejected by catalog", zap.String("identity", sess.Identity), zap.Error(err))
	sess.ResetBooking()
	return Outcome{Reply: e.text.catalogFailed(err), ErrorCode: models.ErrorInvalidCatalogKey}
}

func bookingRequest(sess *models.Session) models.BookingRequest {
	return models.BookingRequest{
		Identity:    sess.Identity,
		RoomType:    sess.RoomType,
		Nights:      sess.Nights,
		PaymentMode: sess.PaymentMode,
		Addons:      append([]string(nil), sess.Addons...),
	}
}

func (e *Engine) parseRoom(text string) (pricing.Room, error) {
	room, ok := e.catalog.RoomByIndex(text)
	if !ok || !isDigits(text) {
		return pricing.Room{}, fmt.Errorf("%w: room choice %q", ErrInvalidStageInput, text)
	}
	return room, nil
}

// parseNights accepts 1..catalog.MaxNights
func (e *Engine) parseNights(text string) (int, error) {
	if !isDigits(text) {
		return 0, fmt.Errorf("%w: nights %q", ErrInvalidStageInput, text)
	}
	n, err := strconv.Atoi(text)
	if err != nil || n <= 0 || n > e.catalog.MaxNights() {
		return 0, fmt.Errorf("%w: nights %q", ErrInvalidStageInput, text)
	}
	return n, nil
}

func parsePaymentMode(text string) (models.PaymentMode, error) {
	switch text {
	case "1":
		return models.PaymentOnline, nil
	case "2":
		return models.PaymentCashOnArrival, nil
	}
	return "", fmt.Errorf("%w: payment choice %q", ErrInvalidStageInput, text)
}

func affirmative(text string) bool {
	return strings.EqualFold(strings.Trim(text, " .!"), "yes")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
