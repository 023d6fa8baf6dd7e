package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/Nzyazin/settlement/internal/core/events"
	"github.com/Nzyazin/settlement/internal/core/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSettlementEventTotals(t *testing.T) {
	seller := uuid.New()
	s := &models.Settlement{
		Purchase: models.Purchase{
			ID:        uuid.New(),
			ProductID: uuid.New(),
			Price:     decimal.RequireFromString("100000"),
			CreatedAt: time.Now(),
		},
		Distributions: []models.CommissionDistribution{
			{CommissionAmount: decimal.RequireFromString("10000.00")},
			{CommissionAmount: decimal.RequireFromString("5000.00")},
		},
	}

	event := events.NewSettlementEvent(s, seller)

	assert.Equal(t, seller, event.SellerUserID)
	assert.Equal(t, 2, event.AffiliateCount)
	assert.True(t, event.CommissionTotal.Equal(decimal.RequireFromString("15000")))
	assert.Equal(t, s.Purchase.ID, event.PurchaseID)
}

func TestRedisPublisherReportsUnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	publisher := events.NewRedisPublisher(client, "test:settlements")
	defer publisher.Close()

	err := publisher.PublishSettlement(context.Background(), events.SettlementEvent{PurchaseID: uuid.New()})
	assert.ErrorContains(t, err, "publish settlement event")
}

func TestNopPublisher(t *testing.T) {
	var p events.Publisher = events.NopPublisher{}
	assert.NoError(t, p.PublishSettlement(context.Background(), events.SettlementEvent{}))
}

func TestNewRedisClientAcceptsURLAndAddr(t *testing.T) {
	client, err := events.NewRedisClient("redis://:secret@localhost:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", client.Options().Addr)
	assert.Equal(t, 2, client.Options().DB)
	client.Close()

	client, err = events.NewRedisClient("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", client.Options().Addr)
	client.Close()

	_, err = events.NewRedisClient("redis://localhost:6379/notadb")
	assert.Error(t, err)
}
