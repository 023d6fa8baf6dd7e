package usecase_test

import (
	"context"
	"testing"

	"github.com/Nzyazin/settlement/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleCreatesThenUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.newUser(t)
	product := f.newProduct(t, seller, true)
	affiliate := uuid.New()

	rate := dec("12.5")
	link, created, err := f.affiliates.Toggle(ctx, usecase.AffiliateToggle{
		ProductID:       product,
		AffiliateUserID: affiliate,
		CommissionRate:  &rate,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, link.IsActive)

	off := false
	updated, created, err := f.affiliates.Toggle(ctx, usecase.AffiliateToggle{
		ProductID:       product,
		AffiliateUserID: affiliate,
		IsActive:        &off,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, link.ID, updated.ID)
	assert.False(t, updated.IsActive)
	assert.True(t, updated.CommissionRate.Equal(rate), "rate kept when omitted")

	active, err := f.affiliates.ListActiveForProduct(ctx, product)
	require.NoError(t, err)
	assert.Empty(t, active)

	mine, err := f.affiliates.ListByUser(ctx, affiliate)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestToggleCreatesInactiveLink(t *testing.T) {
	f := newFixture(t)
	product := f.newProduct(t, f.newUser(t), true)
	affiliate := uuid.New()

	f.linkAffiliate(t, product, affiliate, "5", false)

	active, err := f.affiliates.ListActiveForProduct(context.Background(), product)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestToggleValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.newProduct(t, f.newUser(t), true)

	tooHigh := dec("100.01")
	negative := dec("-1")
	fine := dec("10")

	tests := []struct {
		name string
		req  usecase.AffiliateToggle
		want error
	}{
		{"nil affiliate", usecase.AffiliateToggle{ProductID: product, CommissionRate: &fine}, usecase.ErrInvalidUserID},
		{"unknown product", usecase.AffiliateToggle{ProductID: uuid.New(), AffiliateUserID: uuid.New(), CommissionRate: &fine}, usecase.ErrProductNotFound},
		{"missing rate", usecase.AffiliateToggle{ProductID: product, AffiliateUserID: uuid.New()}, usecase.ErrInvalidCommissionRate},
		{"rate above 100", usecase.AffiliateToggle{ProductID: product, AffiliateUserID: uuid.New(), CommissionRate: &tooHigh}, usecase.ErrInvalidCommissionRate},
		{"negative rate", usecase.AffiliateToggle{ProductID: product, AffiliateUserID: uuid.New(), CommissionRate: &negative}, usecase.ErrInvalidCommissionRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.affiliates.Toggle(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
