package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/AhmadMHawwash/10xarch-sub002/app/models"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/cache"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/database"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/metrics/counter"
	"github.com/AhmadMHawwash/10xarch-sub002/internal/pkg/tokens"
)

var validate = validator.New()

const balanceCacheTTL = 30 * time.Second

type deductRequest struct {
	OwnerType string `json:"owner_type" validate:"omitempty,oneof=user org"`
	OwnerID   string `json:"owner_id" validate:"required,max=64"`
	Tokens    int64  `json:"tokens" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"max=100"`
}

type grantRequest struct {
	OwnerType    string `json:"owner_type" validate:"omitempty,oneof=user org"`
	OwnerID      string `json:"owner_id" validate:"required,max=64"`
	Tokens       int64  `json:"tokens" validate:"required,gt=0"`
	BonusTokens  int64  `json:"bonus_tokens" validate:"gte=0"`
	Subscription bool   `json:"subscription"`
}

// HandleTokenDeduct debits usage tokens for an owner. Insufficient
// funds are not an error; only a missing balance row is.
func HandleTokenDeduct(c *fiber.Ctx) error {
	var req deductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body", "message": err.Error()})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	owner := models.OwnerRef{Type: models.NormalizeOwnerType(req.OwnerType), ID: req.OwnerID}
	reason := req.Reason
	if reason == "" {
		reason = "usage:" + uuid.NewString()
	}

	svc := tokens.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := svc.Deduct(ctx, owner, req.Tokens, reason)
	if err != nil {
		if errors.Is(err, tokens.ErrNoBalance) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "balance_not_found", "message": err.Error()})
		}
		log.Printf("token deduction failed for %s:%s: %v", owner.Type, owner.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "deduction_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// HandleTokenGrant credits tokens to an owner. Used by support for
// manual top-ups and corrections; webhook-driven grants do not pass
// through here.
func HandleTokenGrant(c *fiber.Ctx) error {
	var req grantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body", "message": err.Error()})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	owner := models.OwnerRef{Type: models.NormalizeOwnerType(req.OwnerType), ID: req.OwnerID}
	svc := tokens.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	granted, err := svc.Grant(ctx, tokens.GrantInput{
		Owner:             owner,
		BaseAmount:        req.Tokens,
		BonusAmount:       req.BonusTokens,
		SubscriptionGrant: req.Subscription,
	})
	if err != nil {
		log.Printf("token grant failed for %s:%s: %v", owner.Type, owner.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "grant_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"granted": granted})
}

// HandleTokenBalance returns the owner's balance row, served from a
// short-lived cache that mutations invalidate best-effort.
func HandleTokenBalance(c *fiber.Ctx) error {
	owner := models.OwnerRef{
		Type: models.NormalizeOwnerType(c.Query("owner_type")),
		ID:   c.Query("owner_id"),
	}
	if owner.ID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": "owner_id is required"})
	}

	key := cache.BalanceKey(owner.Type, owner.ID)
	if cached, err := cache.Get(key); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusOK).SendString(cached)
	}

	svc := tokens.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	balance, err := svc.GetBalance(ctx, owner)
	if err != nil {
		if errors.Is(err, tokens.ErrNoBalance) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "balance_not_found", "message": err.Error()})
		}
		log.Printf("balance lookup failed for %s:%s: %v", owner.Type, owner.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "balance_lookup_failed"})
	}

	if body, err := json.Marshal(balance); err == nil {
		if err := cache.Set(key, string(body), balanceCacheTTL); err != nil {
			log.Printf("failed to cache balance for %s:%s: %v", owner.Type, owner.ID, err)
		}
	}
	return c.Status(fiber.StatusOK).JSON(balance)
}

// HandleWebhookMetrics exposes the webhook processing counters.
func HandleWebhookMetrics(c *fiber.Ctx) error {
	snapshot, err := counter.Snapshot()
	if err != nil {
		log.Printf("failed to read webhook counters: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "metrics_unavailable"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"webhook_events": snapshot})
}
