package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"

	"github.com/DukeRupert/oraculo/internal/billing"
	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/metrics"
	"github.com/DukeRupert/oraculo/internal/service"
)

// maxWebhookBodyBytes matches Stripe's documented event size ceiling.
const maxWebhookBodyBytes = 65536

// WebhookHandler handles incoming webhook events from Stripe.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it directly.
// Authentication is via the Stripe webhook signature verification.
type WebhookHandler struct {
	billing  billing.Service
	payments service.PaymentService
	logger   *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, payments service.PaymentService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:  billingService,
		payments: payments,
		logger:   logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are public. Stripe signs the payload instead.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
//
// Events that fail for a transient reason get a 500 so Stripe redelivers
// them; credit grants are idempotent per event id. Events that name an
// unknown profile are acknowledged and logged.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.billing.VerifyWebhookSignature(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		metrics.RecordWebhookEvent("unknown", "rejected")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	eventType := string(event.Type)
	h.logger.Info("stripe webhook received", "type", eventType, "id", event.ID)

	err = h.dispatch(r.Context(), event)
	switch {
	case err == nil:
		metrics.RecordWebhookEvent(eventType, "processed")
	case domain.ErrorCode(err) == domain.ENOTFOUND || domain.ErrorCode(err) == domain.EINVALID:
		h.logger.Warn("stripe event ignored", "type", eventType, "id", event.ID, "error", err)
		metrics.RecordWebhookEvent(eventType, "ignored")
	default:
		h.logger.Error("stripe event failed", "type", eventType, "id", event.ID, "error", err)
		metrics.RecordWebhookEvent(eventType, "failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// dispatch routes an event to its handler. Unhandled types are not errors.
func (h *WebhookHandler) dispatch(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		return h.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.updated":
		return h.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		return h.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_succeeded":
		return h.handlePaymentSucceeded(ctx, event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		return nil
	}
}

func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	const op = "webhook.checkout_completed"

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return domain.Wrap(err, domain.EINVALID, op, "malformed checkout session")
	}

	userID, err := uuid.Parse(session.ClientReferenceID)
	if err != nil {
		return domain.Invalid(op, "checkout session has no user reference")
	}

	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}

	switch session.Mode {
	case stripe.CheckoutSessionModePayment:
		if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			h.logger.Info("checkout completed without payment", "session_id", session.ID, "status", session.PaymentStatus)
			return nil
		}
		_, err := h.payments.ApplyCreditPurchase(ctx, service.CreditPurchase{
			EventID:     event.ID,
			UserID:      userID,
			CustomerID:  customerID,
			AmountCents: session.AmountTotal,
			Currency:    string(session.Currency),
			Payload:     event.Data.Raw,
		})
		return err

	case stripe.CheckoutSessionModeSubscription:
		if session.Subscription == nil {
			return domain.Invalid(op, "subscription checkout without subscription")
		}
		sub, err := h.billing.GetSubscription(session.Subscription.ID)
		if err != nil {
			return domain.Internal(err, op, "failed to load subscription")
		}
		if customerID != "" {
			if err := h.payments.LinkCustomer(ctx, userID, customerID); err != nil {
				return err
			}
		}
		return h.payments.SetSubscription(ctx, userID, h.subscriptionChange(sub))

	default:
		h.logger.Debug("checkout mode not handled", "mode", session.Mode)
		return nil
	}
}

func (h *WebhookHandler) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	const op = "webhook.subscription_updated"

	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return domain.Wrap(err, domain.EINVALID, op, "malformed subscription")
	}
	if sub.Customer == nil {
		return domain.Invalid(op, "subscription event missing customer")
	}

	switch sub.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return h.payments.SetSubscriptionByCustomer(ctx, sub.Customer.ID, h.subscriptionChange(&sub))
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncompleteExpired:
		return h.payments.SetSubscriptionByCustomer(ctx, sub.Customer.ID, service.SubscriptionChange{Status: domain.SubscriptionFree})
	default:
		// past_due and incomplete keep the current end date; access lapses
		// on its own when the date passes.
		h.logger.Info("subscription status left unchanged", "subscription_id", sub.ID, "status", sub.Status)
		return nil
	}
}

func (h *WebhookHandler) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	const op = "webhook.subscription_deleted"

	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return domain.Wrap(err, domain.EINVALID, op, "malformed subscription")
	}
	if sub.Customer == nil {
		return domain.Invalid(op, "subscription event missing customer")
	}

	h.logger.Info("subscription deleted", "customer_id", sub.Customer.ID, "subscription_id", sub.ID)
	return h.payments.SetSubscriptionByCustomer(ctx, sub.Customer.ID, service.SubscriptionChange{Status: domain.SubscriptionFree})
}

func (h *WebhookHandler) handlePaymentSucceeded(ctx context.Context, event stripe.Event) error {
	const op = "webhook.payment_succeeded"

	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return domain.Wrap(err, domain.EINVALID, op, "malformed invoice")
	}

	// One-off payments are handled by checkout.session.completed.
	if invoice.Subscription == nil || invoice.Customer == nil || invoice.Lines == nil {
		return nil
	}

	var (
		end  int64
		tier domain.SubscriptionStatus
	)
	for _, line := range invoice.Lines.Data {
		if line.Period != nil && line.Period.End > end {
			end = line.Period.End
		}
		if tier == "" && line.Price != nil {
			tier = h.billing.TierForPriceID(line.Price.ID)
		}
	}
	if end == 0 {
		return domain.Invalid(op, fmt.Sprintf("invoice %s has no period", invoice.ID))
	}
	if tier == "" {
		tier = domain.SubscriptionMonthly
	}

	endDate := time.Unix(end, 0).UTC()
	return h.payments.SetSubscriptionByCustomer(ctx, invoice.Customer.ID, service.SubscriptionChange{
		Status:  tier,
		EndDate: &endDate,
	})
}

// subscriptionChange maps a Stripe subscription to the profile state.
func (h *WebhookHandler) subscriptionChange(sub *stripe.Subscription) service.SubscriptionChange {
	tier := domain.SubscriptionStatus("")
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item.Price != nil {
				if tier = h.billing.TierForPriceID(item.Price.ID); tier != "" {
					break
				}
			}
		}
	}
	if tier == "" {
		h.logger.Warn("subscription price has no tier, assuming monthly", "subscription_id", sub.ID)
		tier = domain.SubscriptionMonthly
	}

	change := service.SubscriptionChange{Status: tier}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		change.EndDate = &end
	}
	return change
}
