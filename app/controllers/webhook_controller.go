package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/billing"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/catalog"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/database"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/metrics/counter"
)

// HandleBillingWebhook accepts signed billing-platform events. Invalid
// signatures get a 400 with zero side effects; successful processing,
// including ignored unknown types and replayed event ids, acks with
// 200 {received:true}. Any processing failure after verification also
// maps to 400 with the error message.
func HandleBillingWebhook(cat catalog.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rawBody := append([]byte(nil), c.BodyRaw()...)
		signature := strings.TrimSpace(c.Get("Stripe-Signature"))

		dispatcher := billing.NewDispatcherFromDB(database.GetDB(), cat)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		res, err := dispatcher.Process(ctx, rawBody, signature)
		if err != nil {
			if errors.Is(err, billing.ErrInvalidSignature) {
				recordWebhookOutcome(res.EventType, counter.OutcomeRejected)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": fiber.Map{"message": "invalid webhook signature"},
				})
			}
			recordWebhookOutcome(res.EventType, counter.OutcomeFailed)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fiber.Map{"message": err.Error()},
			})
		}

		switch {
		case res.Duplicate:
			recordWebhookOutcome(res.EventType, counter.OutcomeDuplicate)
		case res.Ignored:
			recordWebhookOutcome(res.EventType, counter.OutcomeIgnored)
		default:
			recordWebhookOutcome(res.EventType, counter.OutcomeProcessed)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
	}
}

func recordWebhookOutcome(eventType, outcome string) {
	if eventType == "" {
		eventType = "unknown"
	}
	if err := counter.AddWebhookEvent(eventType, outcome); err != nil {
		log.Printf("failed to count webhook event %s/%s: %v", eventType, outcome, err)
	}
}
