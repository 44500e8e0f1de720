package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Machforo/illora-ai-chieftain/internal/models"
	"github.com/Machforo/illora-ai-chieftain/internal/pricing"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"go.uber.org/zap"
)

type sessionCreator func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// StripeRequester creates Stripe hosted checkout sessions
type StripeRequester struct {
	catalog    *pricing.Catalog
	baseURL    *url.URL
	newSession sessionCreator
	logger     *zap.Logger
}

// NewStripeRequester configures the Stripe key and return URLs
func NewStripeRequester(secretKey, baseURL string, catalog *pricing.Catalog, logger *zap.Logger) (*StripeRequester, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	stripe.Key = secretKey

	return &StripeRequester{
		catalog:    catalog,
		baseURL:    u,
		newSession: session.New,
		logger:     logger,
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("base URL must be an absolute http(s) URL, got %q", raw)
	}
	return u, nil
}

// CreateCheckout bills the room (or the cash deposit) plus billable add-ons
func (s *StripeRequester) CreateCheckout(ctx context.Context, req models.BookingRequest) (*Checkout, error) {
	roomAmount, err := s.catalog.PriceForRoom(req.RoomType, req.Nights, req.PaymentMode)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("%d night(s) stay", req.Nights)
	if req.PaymentMode == models.PaymentCashOnArrival {
		description += ", deposit, balance payable on arrival"
	}
	items := []*stripe.CheckoutSessionLineItemParams{
		s.lineItem(fmt.Sprintf("%s Room Booking", req.RoomType), description, roomAmount),
	}

	addonItems, addonTotal, err := s.addonLineItems(req.Addons)
	if err != nil {
		return nil, err
	}
	items = append(items, addonItems...)

	return s.create(ctx, req.Identity, items, roomAmount+addonTotal)
}

// CreateAddonCheckout bills add-ons alone
func (s *StripeRequester) CreateAddonCheckout(ctx context.Context, identity string, addons []string) (*Checkout, error) {
	items, total, err := s.addonLineItems(addons)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &SessionError{Reason: "no billable add-ons"}
	}
	return s.create(ctx, identity, items, total)
}

func (s *StripeRequester) addonLineItems(keys []string) ([]*stripe.CheckoutSessionLineItemParams, int64, error) {
	prices, total, err := s.catalog.PriceAddons(keys)
	if err != nil {
		return nil, 0, err
	}
	var items []*stripe.CheckoutSessionLineItemParams
	for _, p := range prices {
		if p.Complimentary {
			continue
		}
		items = append(items, s.lineItem(p.Name, "", p.Amount))
	}
	return items, total, nil
}

func (s *StripeRequester) lineItem(name, description string, amount int64) *stripe.CheckoutSessionLineItemParams {
	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(name),
	}
	if description != "" {
		product.Description = stripe.String(description)
	}
	return &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:    stripe.String(s.catalog.Currency()),
			ProductData: product,
			UnitAmount:  stripe.Int64(amount),
		},
		Quantity: stripe.Int64(1),
	}
}

func (s *StripeRequester) returnURL(outcome, identity string) string {
	u := *s.baseURL
	q := u.Query()
	q.Set("payment", outcome)
	q.Set("session_id", identity)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *StripeRequester) create(ctx context.Context, identity string, items []*stripe.CheckoutSessionLineItemParams, total int64) (*Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:          items,
		SuccessURL:         stripe.String(s.returnURL("success", identity)),
		CancelURL:          stripe.String(s.returnURL("cancel", identity)),
		ClientReferenceID:  stripe.String(identity),
	}
	params.Context = ctx

	sess, err := s.newSession(params)
	if err != nil {
		s.logger.Error("stripe checkout failed", zap.String("identity", identity), zap.Error(err))
		return nil, &SessionError{Reason: "provider rejected the request", Err: err}
	}
	if sess == nil || (!strings.HasPrefix(sess.URL, "https://") && !strings.HasPrefix(sess.URL, "http://")) {
		return nil, &SessionError{Reason: "malformed provider response"}
	}

	s.logger.Info("stripe checkout created",
		zap.String("identity", identity),
		zap.String("checkout_id", sess.ID),
		zap.Int64("amount", total))

	return &Checkout{
		ID:       sess.ID,
		URL:      sess.URL,
		Amount:   total,
		Currency: s.catalog.Currency(),
	}, nil
}
