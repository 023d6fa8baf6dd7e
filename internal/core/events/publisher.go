package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Nzyazin/settlement/internal/core/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const TypePurchaseSettled = "purchase.settled"

// SettlementEvent is emitted after a settlement commits. The ledger remains
// the source of truth; consumers must tolerate missing events.
type SettlementEvent struct {
	PurchaseID      uuid.UUID       `json:"purchase_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	SellerUserID    uuid.UUID       `json:"seller_user_id"`
	Price           decimal.Decimal `json:"price"`
	AffiliateCount  int             `json:"affiliate_count"`
	CommissionTotal decimal.Decimal `json:"commission_total"`
	SettledAt       time.Time       `json:"settled_at"`
}

func NewSettlementEvent(s *models.Settlement, sellerUserID uuid.UUID) SettlementEvent {
	total := decimal.Zero
	for _, d := range s.Distributions {
		total = total.Add(d.CommissionAmount)
	}
	return SettlementEvent{
		PurchaseID:      s.Purchase.ID,
		ProductID:       s.Purchase.ProductID,
		SellerUserID:    sellerUserID,
		Price:           s.Purchase.Price,
		AffiliateCount:  len(s.Distributions),
		CommissionTotal: total,
		SettledAt:       s.Purchase.CreatedAt,
	}
}

type Publisher interface {
	PublishSettlement(ctx context.Context, event SettlementEvent) error
}

type NopPublisher struct{}

func (NopPublisher) PublishSettlement(context.Context, SettlementEvent) error { return nil }

// RedisPublisher appends events to a capped Redis stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisClient accepts either a redis:// URL or a bare host:port.
func NewRedisClient(addr string) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, maxLen: 100000}
}

func (p *RedisPublisher) PublishSettlement(ctx context.Context, event SettlementEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal settlement event: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":    TypePurchaseSettled,
			"payload": string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish settlement event: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
