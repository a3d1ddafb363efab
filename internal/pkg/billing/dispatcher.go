package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/AhmadMHawwash/10xarch-sub002/app/models"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/catalog"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/env"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/tokens"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"gorm.io/gorm"
)

// ErrInvalidSignature marks an event whose signature did not verify
// against the shared webhook secret. No side effects happen for these.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Result reports how an inbound event was handled.
type Result struct {
	EventType string
	Duplicate bool
	Ignored   bool
}

// Dispatcher verifies inbound events, persists them for idempotency
// and routes them by type to the lifecycle and payment handlers.
type Dispatcher struct {
	secret    string
	repo      Repository
	lifecycle *LifecycleHandler
	payments  *PaymentHandler
}

// NewDispatcher creates a dispatcher from injected collaborators.
func NewDispatcher(secret string, repo Repository, lifecycle *LifecycleHandler, payments *PaymentHandler) *Dispatcher {
	return &Dispatcher{secret: secret, repo: repo, lifecycle: lifecycle, payments: payments}
}

// NewDispatcherFromDB wires the dispatcher with GORM-backed
// repositories, the env-configured webhook secret and the live Stripe
// client.
func NewDispatcherFromDB(db *gorm.DB, cat catalog.Catalog) *Dispatcher {
	repo := NewRepository(db)
	tok := tokens.NewServiceFromDB(db)
	live := NewStripeClientFromEnv()
	return NewDispatcher(
		env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		repo,
		NewLifecycleHandler(repo, cat, tok),
		NewPaymentHandler(repo, cat, tok, live),
	)
}

// Process verifies the signed payload, short-circuits replayed event
// ids, and dispatches the event. An unrecognized type is acknowledged
// as success to prevent redelivery storms. Handler failures are
// recorded on the stored event row and returned to the caller.
func (d *Dispatcher) Process(ctx context.Context, payload []byte, signatureHeader string) (Result, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, d.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	res := Result{EventType: string(event.Type)}
	created, stored, err := d.repo.CreateWebhookEventIfNotExists(&models.WebhookEvent{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(payload),
		SignatureValid:  true,
	})
	if err != nil {
		return res, err
	}
	if !created {
		res.Duplicate = true
		return res, nil
	}

	procErr := d.route(ctx, event, &res)
	errMsg := ""
	if procErr != nil {
		errMsg = procErr.Error()
	}
	if err := d.repo.MarkWebhookProcessed(stored.ID, errMsg); err != nil {
		log.Printf("billing: failed to mark webhook event %d processed: %v", stored.ID, err)
	}
	return res, procErr
}

func (d *Dispatcher) route(ctx context.Context, event stripe.Event, res *Result) error {
	switch string(event.Type) {
	case "customer.subscription.created":
		sub, err := parseSubscription(event)
		if err != nil {
			return err
		}
		return d.lifecycle.HandleCreated(ctx, sub)
	case "customer.subscription.updated":
		sub, err := parseSubscription(event)
		if err != nil {
			return err
		}
		return d.lifecycle.HandleUpdated(ctx, sub)
	case "customer.subscription.deleted":
		sub, err := parseSubscription(event)
		if err != nil {
			return err
		}
		return d.lifecycle.HandleDeleted(ctx, sub)
	case "invoice.payment_succeeded":
		inv, err := parseInvoice(event)
		if err != nil {
			return err
		}
		return d.payments.HandlePaymentSucceeded(ctx, inv)
	case "invoice.payment_failed":
		inv, err := parseInvoice(event)
		if err != nil {
			return err
		}
		return d.payments.HandlePaymentFailed(ctx, inv)
	case "invoice.payment_action_required":
		inv, err := parseInvoice(event)
		if err != nil {
			return err
		}
		return d.payments.HandlePaymentActionRequired(ctx, inv)
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("parse checkout session payload: %w", err)
		}
		return d.payments.HandleCheckoutCompleted(ctx, &session)
	default:
		res.Ignored = true
		return nil
	}
}

func parseSubscription(event stripe.Event) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("parse subscription payload: %w", err)
	}
	return &sub, nil
}

func parseInvoice(event stripe.Event) (*stripe.Invoice, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return nil, fmt.Errorf("parse invoice payload: %w", err)
	}
	return &inv, nil
}
