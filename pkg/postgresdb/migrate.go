package postgresdb

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied on startup. Every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS products (
	id         UUID PRIMARY KEY,
	user_id    UUID NOT NULL,
	title      VARCHAR(255) NOT NULL,
	price      NUMERIC(10,2) NOT NULL,
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS wallets (
	id         UUID PRIMARY KEY,
	user_id    UUID NOT NULL UNIQUE,
	balance    NUMERIC(15,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS wallet_transactions (
	id               UUID PRIMARY KEY,
	seq              BIGSERIAL NOT NULL UNIQUE,
	wallet_id        UUID NOT NULL REFERENCES wallets(id),
	amount           NUMERIC(15,2) NOT NULL,
	transaction_type VARCHAR(50) NOT NULL
		CHECK (transaction_type IN ('purchase_income', 'affiliate_commission', 'withdrawal', 'topup')),
	reference_id     UUID,
	description      TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
);

CREATE INDEX IF NOT EXISTS idx_wallet_transactions_wallet_created
	ON wallet_transactions (wallet_id, created_at DESC, seq DESC);

CREATE TABLE IF NOT EXISTS product_purchases (
	id             UUID PRIMARY KEY,
	product_id     UUID NOT NULL REFERENCES products(id),
	buyer_user_id  UUID,
	buyer_email    VARCHAR(255),
	purchase_price NUMERIC(10,2) NOT NULL CHECK (purchase_price > 0),
	download_url   TEXT NOT NULL DEFAULT '',
	status         VARCHAR(20) NOT NULL DEFAULT 'completed',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
	CHECK (buyer_user_id IS NOT NULL OR buyer_email IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_product_purchases_buyer
	ON product_purchases (buyer_user_id) WHERE buyer_user_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS affiliate_products (
	id                UUID PRIMARY KEY,
	product_id        UUID NOT NULL REFERENCES products(id),
	affiliate_user_id UUID NOT NULL,
	commission_rate   NUMERIC(5,2) NOT NULL CHECK (commission_rate >= 0 AND commission_rate <= 100),
	is_active         BOOLEAN NOT NULL DEFAULT TRUE,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (product_id, affiliate_user_id)
);

CREATE TABLE IF NOT EXISTS commission_distributions (
	id                   UUID PRIMARY KEY,
	affiliate_product_id UUID NOT NULL REFERENCES affiliate_products(id),
	purchase_id          UUID NOT NULL REFERENCES product_purchases(id),
	affiliate_user_id    UUID NOT NULL,
	commission_amount    NUMERIC(15,2) NOT NULL CHECK (commission_amount >= 0),
	created_at           TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
	UNIQUE (affiliate_product_id, purchase_id)
);
`

func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
