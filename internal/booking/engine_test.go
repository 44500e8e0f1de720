package booking

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Machforo/illora-ai-chieftain/internal/llm"
	"github.com/Machforo/illora-ai-chieftain/internal/models"
	"github.com/Machforo/illora-ai-chieftain/internal/payment"
	"github.com/Machforo/illora-ai-chieftain/internal/pricing"
	"github.com/Machforo/illora-ai-chieftain/internal/prompts"
)

type fakeResponder struct {
	err      error
	calls    int
	identity string
}

func (f *fakeResponder) Answer(ctx context.Context, identity, query string, userType models.UserType) (string, error) {
	f.calls++
	f.identity = identity
	if f.err != nil {
		return "", f.err
	}
	return "answer: " + query, nil
}

type fakePayments struct {
	err        error
	requests   []models.BookingRequest
	addonCalls [][]string
}

func (f *fakePayments) CreateCheckout(ctx context.Context, req models.BookingRequest) (*payment.Checkout, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &payment.Checkout{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil
}

func (f *fakePayments) CreateAddonCheckout(ctx context.Context, identity string, addons []string) (*payment.Checkout, error) {
	f.addonCalls = append(f.addonCalls, addons)
	if f.err != nil {
		return nil, f.err
	}
	return &payment.Checkout{ID: "cs_2", URL: "https://pay.example/cs_2"}, nil
}

type countingRecorder struct {
	turns    int
	refusals int
}

func (c *countingRecorder) ObserveTurn(models.Channel, models.Stage, models.Stage) { c.turns++ }
func (c *countingRecorder) ObserveRefusal(models.Channel) { c.refusals++ }

type fixture struct {
	engine    *Engine
	responder *fakeResponder
	payments  *fakePayments
	recorder  *countingRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		responder: &fakeResponder{},
		payments:  &fakePayments{},
		recorder:  &countingRecorder{},
	}
	e, err := NewEngine(Options{
		Hotel:      "ILLORA RETREATS",
		Catalog:    pricing.Default(0, ""),
		Classifier: llm.NewKeywordClassifier(),
		Responder:  f.responder,
		Payments:   f.payments,
		Recorder:   f.recorder,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	f.engine = e
	return f
}

func (f *fixture) step(t *testing.T, sess *models.Session, text string) Outcome {
	t.Helper()
	return f.engine.Step(context.Background(), sess, text)
}

func assertCleared(t *testing.T, sess *models.Session) {
	t.Helper()
	if sess.Stage != models.StageIdle {
		t.Fatalf("expected Idle, got %s", sess.Stage)
	}
	if sess.RoomType != "" || sess.Nights != 0 || sess.PaymentMode != "" || sess.ComputedPrice != nil || sess.Addons != nil {
		t.Fatalf("booking fields not cleared: %+v", sess)
	}
}

func TestBookingHappyPath(t *testing.T) {
	f := newFixture(t)
	sess := f.engine.NewSession("U1", models.ChannelWeb)

	out := f.step(t, sess, "I want to book a room")
	if sess.Stage != models.StageRoomSelection || out.Intent != llm.IntentPaymentRequest {
		t.Fatalf("expected RoomSelection, got %s (intent %s)", sess.Stage, out.Intent)
	}
	if !strings.Contains(out.Reply, "Executive Room - ₹6000/night") {
		t.Fatalf("room menu missing prices: %q", out.Reply)
	}

	f.step(t, sess, "2")
	if sess.RoomType != models.RoomExecutive || sess.Stage != models.StageNightsInput {
		t.Fatalf("expected Executive/NightsInput, got %s/%s", sess.RoomType, sess.Stage)
	}

	f.step(t, sess, "3")
	if sess.Nights != 3 || sess.Stage != models.StagePaymentMethodSelection {
		t.Fatalf("expected 3 nights/PaymentMethodSelection, got %d/%s", sess.Nights, sess.Stage)
	}

	out = f.step(t, sess, "1")
	if sess.PaymentMode != models.PaymentOnline || sess.Stage != models.StageConfirmation {
		t.Fatalf("expected online/Confirmation, got %s/%s", sess.PaymentMode, sess.Stage)
	}
	if sess.ComputedPrice == nil || *sess.ComputedPrice != 6000_00*3 {
		t.Fatalf("unexpected computed price %v", sess.ComputedPrice)
	}
	if !strings.Contains(out.Reply, "₹18000") {
		t.Fatalf("summary missing total: %q", out.Reply)
	}

	out = f.step(t, sess, "Yes")
	if out.PaymentURL != "https://pay.example/cs_1" || !strings.Contains(out.Reply, out.PaymentURL) {
		t.Fatalf("expected payment link, got %+v", out)
	}
	want := models.BookingRequest{Identity: "U1", RoomType: models.RoomExecutive, Nights: 3, PaymentMode: models.PaymentOnline}
	if len(f.payments.requests) != 1 {
		t.Fatalf("expected one payment request, got %d", len(f.payments.requests))
	}
	got := f.payments.requests[0]
	if got.Identity != want.Identity || got.RoomType != want.RoomType || got.Nights != want.Nights ||
		got.PaymentMode != want.PaymentMode || len(got.Addons) != 0 {
		t.Fatalf("unexpected request %+v", got)
	}
	assertCleared(t, sess)
}

func TestPaymentFailureReturnsToIdle(t *testing.T) {
	f := newFixture(t)
	f.payments.err = &payment.SessionError{Reason: "timeout"}
	sess := f.engine.NewSession("U1", models.ChannelWeb)

	for _, in := range []string{"book a room", "1", "2", "2"} {
		f.step(t, sess, in)
	}
	if sess.Stage != models.StageConfirmation {
		t.Fatalf("expected Confirmation, got %s", sess.Stage)
	}

	out := f.step(t, sess, "yes")
	if out.ErrorCode != models.ErrorPaymentSessionFailed || out.PaymentURL != "" {
		t.Fatalf("expected payment failure outcome, got %+v", out)
	}
	if !strings.Contains(out.Reply, "try again") {
		t.Fatalf("expected retry invitation, got %q", out.Reply)
	}
	assertCleared(t, sess)
}

func TestCatalogRejectionIsDistinct(t *testing.T) {
	f := newFixture(t)
	f.payments.err = &pricing.KeyError{Kind: "addon", Key: "caviar"}
	sess := f.engine.NewSession("U1", models.ChannelWeb)
	for _, in := range []string{"book a room", "1", "1", "1"} {
		f.step(t, sess, in)
	}

	out := f.step(t, sess, "yes")
	if out.ErrorCode != models.ErrorInvalidCatalogKey {
		t.Fatalf("expected catalog error code, got %+v", out)
	}
	assertCleared(t, sess)
}

func TestStaleRoomIsRejectedBeforePayment(t *testing.T) {
	f := newFixture(t)
	sess := f.engine.NewSession("U1", models.ChannelWeb)
	sess.Stage = models.StagePaymentMethodSelection
	sess.RoomType = "Penthouse"
	sess.Nights = 2

	out := f.step(t, sess, "1")
	if out.ErrorCode != models.ErrorInvalidCatalogKey {
		t.Fatalf("expected catalog error, got %+v", out)
	}
	if len(f.payments.requests) != 0 {
		t.Fatal("payment must not be requested for an unknown room")
	}
	assertCleared(t, sess)
}

func TestDeclinedConfirmationResets(t *testing.T) {
	f := newFixture(t)
	sess := f.engine.NewSession("U1", models.ChannelWhatsApp)
	sess.UserType = models.UserGuest
	sess.Stage = models.StageIdle

	for _, in := range []string{"I'd like to book", "3", "4", "2"} {
		f.step(t, sess, in)
	}
	if sess.ComputedPrice == nil || *sess.ComputedPrice != 2000_00 {
		t.Fatalf("cash bookings price the deposit, got %v", sess.ComputedPrice)
	}

	out := f.step(t, sess, "no thanks")
	if !strings.Contains(out.Reply, "not confirmed") {
		t.Fatalf("expected cancellation, got %q", out.Reply)
	}
	if len(f.payments.requests) != 0 {
		t.Fatal("declined booking must not request payment")
	}
	assertCleared(t, sess)
	if sess.UserType != models.UserGuest {
		t.Fatalf("user type must survive a reset, got %s", sess.UserType)
	}
}

func TestDuplicateConfirmationIsFreshIdleMessage(t *testing.T) {
	f := newFixture(t)
	sess := f.engine.NewSession("U1", models.ChannelWeb)
	for _, in := range []string{"book a room", "1", "1", "1", "yes"} {
		f.step(t, sess, in)
	}

	out := f.step(t, sess, "yes")
	if len(f.payments.requests) != 1 {
		t.Fatalf("duplicate confirmation created %d payment requests", len(f.payments.requests))
	}
	if out.Reply != "answer: yes" || sess.Stage != models.StageIdle {
		t.Fatalf("expected a QA answer in Idle, got %q in %s", out.Reply, sess.Stage)
	}
}

func TestInvalidNightsReprompts(t *testing.T) {
	f := newFixture(t)
	sess := f.engine.NewSession("U1", models.ChannelWhatsApp)
	sess.UserType = models.UserGuest
	sess.Stage = models.StageNightsInput
	sess.RoomType = models.RoomDeluxe

	for _, in := range []string{"abc", "0", "-2", "+3", "2.5", "", "366", "9223372036854775807", "99999999999999999999"} {
		out := f.step(t, sess, in)
		if sess.Stage != models.StageNightsInput || sess.Nights != 0 || sess.RoomType != models.RoomDeluxe {
			t.Fatalf("%q mutated the session: %+v", in, sess)
		}
		if !strings.Contains(out.Reply, "How many nights") {
			t.Fatalf("%q: expected re-prompt, got %q", in, out.Reply)
		}
	}
	if f.responder.calls != 0 {
		t.Fatal("strict channels must not consult the responder")
	}
}

func TestNightsAreCappedBeforePricing(t *testing.T) {
	f := newFixture(t)
	sess := f.engine.NewSession("U1", models.ChannelWeb)
	f.step(t, sess, "book a room")
	f.step(t, sess, "2")

	f.step(t, sess, "9223372036854775807")
	if sess.Stage != models.StageNightsInput || sess.Nights != 0 {
		t.Fatalf("huge night count accepted: %+v", sess)
	}
	if _, err := f.engine.parseNights("366"); !errors.Is(err, ErrInvalidStageInput) {
		t.Fatalf("expected ErrInvalidStageInput above the cap, got %v", err)
	}

	f.step(t, sess, "365")
	f.step(t, sess, "1")
	if sess.Stage != models.StageConfirmation || sess.ComputedPrice == nil || *sess.ComputedPrice != 6000_00*365 {
		t.Fatalf("expected a positive total for the longest stay, got %+v", sess)
	}
}

func TestInvalidInputFallsBackToResponder(t *testing.T) {
	f := newFixture(t)
	sess := f.engine.NewSession("U1", models.ChannelWeb)
	f.step(t, sess, "book a room")

	out := f.step(t, sess, "is breakfast included?")
	if sess.Stage != models.StageRoomSelection || sess.RoomType != "" {
		t.Fatalf("fallback must not change the stage, got %s", sess.Stage)
	}
	if !strings.HasPrefix(out.Reply, "answer: is breakfast included?") || !strings.Contains(out.Reply, "choose your room type") {
		t.Fatalf("expected answer plus menu reminder, got %q", out.Reply)
	}
	if f.responder.identity != "web:U1" {
		t.Fatalf("history must be keyed per channel, got %q", f.responder.identity)
	}
	if _, err := f.engine.parseRoom("4"); !errors.Is(err, ErrInvalidStageInput) {
		t.Fatalf("expected ErrInvalidStageInput, got %v", err)
	}
}

func TestResponderFailureUsesApology(t *testing.T) {
	f := newFixture(t)
	f.responder.err = llm.ErrResponderUnavailable
	sess := f.engine.NewSession("U1", models.ChannelWeb)

	out := f.step(t, sess, "what time is breakfast served?")
	if out.Reply != prompts.FallbackMessage || out.ErrorCode != models.ErrorResponderFailed {
		t.Fatalf("expected apology, got %+v", out)
	}
	if sess.Stage != models.StageIdle {
		t.Fatalf("expected Idle, got %s", sess.Stage)
	}
}

func TestIdentification(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType models.UserType
		wantNext models.Stage
	}{
		{"guest", "I'm a guest", models.UserGuest, models.StageIdle},
		{"non-guest contains guest", "non-guest", models.UserNonGuest, models.StageIdle},
		{"visitor", "just a visitor", models.UserNonGuest, models.StageIdle},
		{"unrecognised", "hello", models.UserUnknown, models.StageIdentify},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			sess := f.engine.NewSession("whatsapp:+911", models.ChannelWhatsApp)
			if sess.Stage != models.StageIdentify || sess.UserType != models.UserUnknown {
				t.Fatalf("WhatsApp sessions start by identifying, got %s", sess.Stage)
			}

			f.step(t, sess, tt.input)
			if sess.UserType != tt.wantType || sess.Stage != tt.wantNext {
				t.Fatalf("got %s/%s, want %s/%s", sess.UserType, sess.Stage, tt.wantType, tt.wantNext)
			}
		})
	}
}

func TestPendingBookingResumesAfterIdentification(t *testing.T) {
	f := newFixture(t)
	sess := f.engine.NewSession("whatsapp:+911", models.ChannelWhatsApp)
	sess.Stage = models.StageIdle

	f.step(t, sess, "book a room with a cheese platter")
	if sess.Stage != models.StageIdentify || !sess.PendingBooking {
		t.Fatalf("expected Identify with a pending booking, got %s", sess.Stage)
	}

	out := f.step(t, sess, "guest")
	if sess.Stage != models.StageRoomSelection || sess.PendingBooking {
		t.Fatalf("expected RoomSelection, got %s", sess.Stage)
	}
	if !strings.Contains(out.Reply, "Cheese Platter") {
		t.Fatalf("expected the add-on in the menu, got %q", out.Reply)
	}
}

func TestRestrictedGuardLeavesSessionUntouched(t *testing.T) {
	f := newFixture(t)
	sess := f.engine.NewSession("whatsapp:+911", models.ChannelWhatsApp)
	f.step(t, sess, "visitor")

	sess.Stage = models.StageNightsInput
	sess.RoomType = models.RoomFamily
	before := sess.Clone()

	for _, in := range []string{"Can I use the SPA?", "room service please", "booking", "wake-up call at 6"} {
		out := f.step(t, sess, in)
		if !out.Refused || !strings.Contains(out.Reply, "exclusive to *guests*") {
			t.Fatalf("%q: expected refusal, got %+v", in, out)
		}
		if sess.Stage != before.Stage || sess.RoomType != before.RoomType || sess.Nights != before.Nights {
			t.Fatalf("%q: refusal mutated the session", in)
		}
	}
	if f.recorder.refusals != 4 {
		t.Fatalf("expected 4 refusals recorded, got %d", f.recorder.refusals)
	}
	if f.responder.calls != 0 {
		t.Fatal("refusals must short-circuit before the responder")
	}
}

func TestNonGuestBookingIntentIsRefused(t *testing.T) {
	f := newFixture(t)
	sess := f.engine.NewSession("whatsapp:+911", models.ChannelWhatsApp)
	f.step(t, sess, "visitor")

	out := f.step(t, sess, "I want to reserve for tonight")
	if !out.Refused || sess.Stage != models.StageIdle {
		t.Fatalf("expected a refusal in Idle, got %+v in %s", out, sess.Stage)
	}
}

func TestBookingCarriesAddons(t *testing.T) {
	f := newFixture(t)
	sess := f.engine.NewSession("U1", models.ChannelWeb)

	f.step(t, sess, "book a room with a spa massage and coffee")
	if len(sess.Addons) != 2 {
		t.Fatalf("expected two add-ons, got %v", sess.Addons)
	}
	f.step(t, sess, "1")
	f.step(t, sess, "2")
	out := f.step(t, sess, "1")
	if *sess.ComputedPrice != 4000_00*2+3000_00 {
		t.Fatalf("complimentary items must not be billed, got %d", *sess.ComputedPrice)
	}
	if !strings.Contains(out.Reply, "Coffee (complimentary)") {
		t.Fatalf("summary should list complimentary items, got %q", out.Reply)
	}

	f.step(t, sess, "yes")
	if got := f.payments.requests[0].Addons; len(got) != 2 {
		t.Fatalf("add-ons not passed to payment: %v", got)
	}
}

func TestAddonQuickCheckout(t *testing.T) {
	f := newFixture(t)
	sess := f.engine.NewSession("U1", models.ChannelWeb)

	out := f.step(t, sess, "could I get a mocktail and a coffee?")
	if sess.Stage != models.StageAddonConfirmation {
		t.Fatalf("expected AddonConfirmation, got %s", sess.Stage)
	}
	if !strings.Contains(out.Reply, "Mocktail (₹935)") {
		t.Fatalf("expected an offer, got %q", out.Reply)
	}

	out = f.step(t, sess, "yes")
	if out.PaymentURL != "https://pay.example/cs_2" || len(f.payments.addonCalls) != 1 {
		t.Fatalf("expected an add-on checkout, got %+v", out)
	}
	if got := f.payments.addonCalls[0]; len(got) != 1 || got[0] != "mocktail" {
		t.Fatalf("only billable add-ons are checked out, got %v", got)
	}
	assertCleared(t, sess)

	f.step(t, sess, "just a coffee please")
	if sess.Stage != models.StageIdle {
		t.Fatalf("complimentary-only mentions make no offer, got %s", sess.Stage)
	}
}

func TestAddonOfferDeclined(t *testing.T) {
	f := newFixture(t)
	sess := f.engine.NewSession("U1", models.ChannelWeb)
	f.step(t, sess, "tell me about the cheesecake")

	f.step(t, sess, "maybe later")
	if len(f.payments.addonCalls) != 0 {
		t.Fatal("declined offer must not create a checkout")
	}
	assertCleared(t, sess)
}

func TestGate(t *testing.T) {
	g := NewGate("payment_request", nil)
	if !g.ShouldEnterBooking("payment_request") || g.ShouldEnterBooking("general_query") {
		t.Fatal("gate must match only the booking label")
	}
	if g.Restricted(models.UserGuest, "spa") {
		t.Fatal("guests are never restricted")
	}
	if g.Restricted(models.UserNonGuest, "is there parking space?") {
		t.Fatal("keywords must match whole words")
	}
	if !g.Restricted(models.UserNonGuest, "Wake up call at 7") {
		t.Fatal("separators should be normalized")
	}
}
