// Package billing provides the Stripe integration for credit packs and VIP
// subscriptions.
package billing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	billingportalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/DukeRupert/oraculo/internal/domain"
)

// ErrUnknownProduct is returned for a product key with no configured price.
var ErrUnknownProduct = errors.New("billing: unknown product")

// Product keys accepted by the checkout endpoint.
const (
	ProductCreditsSmall  = "credits_small"
	ProductCreditsMedium = "credits_medium"
	ProductCreditsLarge  = "credits_large"
	ProductVIPMonthly    = "vip_monthly"
	ProductVIPYearly     = "vip_yearly"
)

// Product is a purchasable item.
type Product struct {
	Key     string                    `json:"key"`
	PriceID string                    `json:"-"`
	Mode    stripe.CheckoutSessionMode `json:"mode"`
	Tier    domain.SubscriptionStatus `json:"tier,omitempty"` // set for subscriptions
}

// CheckoutParams describes a checkout for one product.
type CheckoutParams struct {
	UserID     uuid.UUID
	Email      string
	CustomerID string // reused when the profile is already linked
	ProductKey string
	SuccessURL string
	CancelURL  string
}

// Service defines the interface for billing operations.
type Service interface {
	// Products lists the products that have a configured price.
	Products() []Product

	// CreateCheckoutSession creates a Stripe Checkout session and returns the
	// URL to send the user to. The user id travels as client_reference_id.
	CreateCheckoutSession(params CheckoutParams) (string, error)

	// CreatePortalSession creates a Stripe Customer Portal session.
	CreatePortalSession(customerID, returnURL string) (string, error)

	// GetSubscription retrieves a Stripe subscription by ID.
	GetSubscription(subscriptionID string) (*stripe.Subscription, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)

	// TierForPriceID returns the VIP tier sold under a price, or "".
	TierForPriceID(priceID string) domain.SubscriptionStatus
}

// PriceConfig holds the Stripe price IDs for each product.
type PriceConfig struct {
	CreditsSmallPriceID  string
	CreditsMediumPriceID string
	CreditsLargePriceID  string
	VIPMonthlyPriceID    string
	VIPYearlyPriceID     string
}

// catalog builds the product list from the configured prices.
func (p PriceConfig) catalog() map[string]Product {
	all := []Product{
		{Key: ProductCreditsSmall, PriceID: p.CreditsSmallPriceID, Mode: stripe.CheckoutSessionModePayment},
		{Key: ProductCreditsMedium, PriceID: p.CreditsMediumPriceID, Mode: stripe.CheckoutSessionModePayment},
		{Key: ProductCreditsLarge, PriceID: p.CreditsLargePriceID, Mode: stripe.CheckoutSessionModePayment},
		{Key: ProductVIPMonthly, PriceID: p.VIPMonthlyPriceID, Mode: stripe.CheckoutSessionModeSubscription, Tier: domain.SubscriptionMonthly},
		{Key: ProductVIPYearly, PriceID: p.VIPYearlyPriceID, Mode: stripe.CheckoutSessionModeSubscription, Tier: domain.SubscriptionYearly},
	}

	products := make(map[string]Product, len(all))
	for _, product := range all {
		if product.PriceID != "" {
			products[product.Key] = product
		}
	}
	return products
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
	products      map[string]Product
	priceToTier   map[string]domain.SubscriptionStatus
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
func NewStripeService(secretKey, webhookSecret string, prices PriceConfig) Service {
	stripe.Key = secretKey
	return newStripeService(webhookSecret, prices)
}

func newStripeService(webhookSecret string, prices PriceConfig) *stripeService {
	products := prices.catalog()
	priceToTier := make(map[string]domain.SubscriptionStatus)
	for _, product := range products {
		if product.Tier != "" {
			priceToTier[product.PriceID] = product.Tier
		}
	}

	return &stripeService{
		webhookSecret: webhookSecret,
		products:      products,
		priceToTier:   priceToTier,
	}
}

func (s *stripeService) Products() []Product {
	out := make([]Product, 0, len(s.products))
	for _, product := range s.products {
		out = append(out, product)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (s *stripeService) CreateCheckoutSession(p CheckoutParams) (string, error) {
	product, ok := s.products[p.ProductKey]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProduct, p.ProductKey)
	}

	params := checkoutParams(product, p)
	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create checkout session: %w", err)
	}
	return sess.URL, nil
}

// checkoutParams builds the Stripe request for a product.
func checkoutParams(product Product, p CheckoutParams) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(product.Mode)),
		ClientReferenceID: stripe.String(p.UserID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(product.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.AddMetadata("product", product.Key)

	switch {
	case p.CustomerID != "":
		params.Customer = stripe.String(p.CustomerID)
	case p.Email != "":
		params.CustomerEmail = stripe.String(p.Email)
	}

	// Payment mode only creates a customer when asked to; the customer id is
	// what later links the profile to subscription events.
	if product.Mode == stripe.CheckoutSessionModePayment && p.CustomerID == "" {
		params.CustomerCreation = stripe.String(string(stripe.CheckoutSessionCustomerCreationAlways))
	}
	return params
}

func (s *stripeService) CreatePortalSession(customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	sess, err := billingportalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create portal session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) GetSubscription(subscriptionID string) (*stripe.Subscription, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("stripe get subscription: %w", err)
	}
	return sub, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

func (s *stripeService) TierForPriceID(priceID string) domain.SubscriptionStatus {
	return s.priceToTier[priceID]
}
