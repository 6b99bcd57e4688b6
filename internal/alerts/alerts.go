// Package alerts keeps user price alerts in redis and fires a one-shot event
// when the watched coin reaches its target.
package alerts

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/papertrade/papertrade/internal/marketdata"
	"github.com/papertrade/papertrade/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const keyPrefix = "alerts:"

// EventPublisher matches the redis-backed publisher used for settlements.
type EventPublisher interface {
	PublishEvent(ctx context.Context, userID uuid.UUID, event models.Event) error
}

type Service struct {
	rdb     *redis.Client
	gateway marketdata.Gateway
	events  EventPublisher
	log     *slog.Logger
}

func NewService(rdb *redis.Client, gateway marketdata.Gateway, events EventPublisher, log *slog.Logger) *Service {
	return &Service{
		rdb:     rdb,
		gateway: gateway,
		events:  events,
		log:     log,
	}
}

// Set records an alert after validating the coin id against the price feed.
// It reports false, not an error, when the coin cannot be priced or the store
// is unavailable.
func (s *Service) Set(ctx context.Context, userID uuid.UUID, coinID string, targetPrice decimal.Decimal) bool {
	if _, ok := s.gateway.Price(ctx, coinID); !ok {
		s.log.Warn("rejecting alert for unpriceable coin", "coin", coinID)
		return false
	}

	if err := s.rdb.HSet(ctx, keyPrefix+coinID, userID.String(), targetPrice.String()).Err(); err != nil {
		s.log.Error("failed to store price alert", "coin", coinID, "error", err)
		return false
	}

	s.log.Info("price alert set", "user", userID, "coin", coinID, "target", targetPrice)
	return true
}

// Check walks every stored alert, fires those whose coin has reached the
// target price, and removes fired alerts. Failures are skip-and-continue.
func (s *Service) Check(ctx context.Context) {
	keys, err := s.rdb.Keys(ctx, keyPrefix+"*").Result()
	if err != nil {
		s.log.Error("failed to list alert keys", "error", err)
		return
	}

	for _, key := range keys {
		coinID := strings.TrimPrefix(key, keyPrefix)

		currentPrice, ok := s.gateway.Price(ctx, coinID)
		if !ok {
			continue
		}

		fields, err := s.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			s.log.Error("failed to read alerts", "coin", coinID, "error", err)
			continue
		}

		for userField, targetField := range fields {
			target, err := decimal.NewFromString(targetField)
			if err != nil {
				s.rdb.HDel(ctx, key, userField)
				continue
			}

			if currentPrice.LessThan(target) {
				continue
			}

			userID, err := uuid.Parse(userField)
			if err != nil {
				s.rdb.HDel(ctx, key, userField)
				continue
			}

			event := models.Event{
				Kind:         models.EventPriceAlert,
				CoinID:       coinID,
				TargetPrice:  target,
				CurrentPrice: currentPrice,
			}
			if err := s.events.PublishEvent(ctx, userID, event); err != nil {
				s.log.Warn("failed to publish price alert", "user", userID, "coin", coinID, "error", err)
				continue
			}

			s.rdb.HDel(ctx, key, userField)
			s.log.Info("price alert fired", "user", userID, "coin", coinID, "price", currentPrice)
		}
	}
}
