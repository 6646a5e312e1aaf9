package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/teknokapsul/lease-service/internal/domain"
)

const offerColumns = `
	id, contract_id, owner_id, amount, months, status, paid_at, checkout_token,
	gateway_payment_id, payout_planned, created_at, updated_at`

func scanOffer(row pgx.Row) (*domain.UpfrontOffer, error) {
	var o domain.UpfrontOffer
	err := row.Scan(
		&o.ID, &o.ContractID, &o.OwnerID, &o.Amount, &o.Months, &o.Status, &o.PaidAt, &o.CheckoutToken,
		&o.GatewayPaymentID, &o.PayoutPlanned, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	return &o, nil
}

const paymentColumns = `
	id, owner_id, contract_id, payer_id, type, rent_base, amount, landlord_amount,
	platform_revenue, status, paid_at, checkout_token, gateway_payment_id, payout_planned,
	created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.StandalonePayment, error) {
	var p domain.StandalonePayment
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.ContractID, &p.PayerID, &p.Type, &p.RentBase, &p.Amount, &p.LandlordAmount,
		&p.PlatformRevenue, &p.Status, &p.PaidAt, &p.CheckoutToken, &p.GatewayPaymentID, &p.PayoutPlanned,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CreateOffer inserts a new upfront offer.
func (r *PostgresRepository) CreateOffer(ctx context.Context, offer domain.UpfrontOffer) error {
	query := `
		INSERT INTO lease_upfront_offers (id, contract_id, owner_id, amount, months, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		offer.ID,
		offer.ContractID,
		offer.OwnerID,
		offer.Amount,
		offer.Months,
		offer.Status,
		offer.CreatedAt,
		offer.UpdatedAt,
	)
	return err
}

// GetOffer retrieves an offer scoped to its contract.
func (r *PostgresRepository) GetOffer(ctx context.Context, contractID, offerID string) (*domain.UpfrontOffer, error) {
	query := `SELECT ` + offerColumns + ` FROM lease_upfront_offers WHERE contract_id = $1 AND id = $2`
	return scanOffer(r.db.QueryRow(ctx, query, contractID, offerID))
}

// GetOfferByID retrieves an offer by id alone.
func (r *PostgresRepository) GetOfferByID(ctx context.Context, offerID string) (*domain.UpfrontOffer, error) {
	return scanOffer(r.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM lease_upfront_offers WHERE id = $1`, offerID))
}

// FindOfferByCheckoutToken retrieves the offer holding a checkout token.
func (r *PostgresRepository) FindOfferByCheckoutToken(ctx context.Context, token string) (*domain.UpfrontOffer, error) {
	return scanOffer(r.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM lease_upfront_offers WHERE checkout_token = $1 LIMIT 1`, token))
}

// AcceptOffer moves a PROPOSED offer to ACCEPTED.
func (r *PostgresRepository) AcceptOffer(ctx context.Context, offerID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE lease_upfront_offers SET status = 'ACCEPTED', updated_at = NOW() WHERE id = $1 AND status = 'PROPOSED'`, offerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SaveOfferCheckout stores a checkout token on an accepted offer.
func (r *PostgresRepository) SaveOfferCheckout(ctx context.Context, offerID, token string) error {
	query := `
		UPDATE lease_upfront_offers
		SET checkout_token = $2, gateway_payment_id = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'ACCEPTED'
	`
	tag, err := r.db.Exec(ctx, query, offerID, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStateConflict
	}
	return nil
}

// UpsertStandalonePayment inserts a standalone payment or refreshes the
// amounts of an unpaid one with the same id and type, then returns the
// stored record.
func (r *PostgresRepository) UpsertStandalonePayment(ctx context.Context, payment domain.StandalonePayment) (*domain.StandalonePayment, error) {
	query := `
		INSERT INTO lease_payments (
			id, owner_id, contract_id, payer_id, type, rent_base, amount, landlord_amount,
			platform_revenue, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
		SET rent_base = EXCLUDED.rent_base,
			amount = EXCLUDED.amount,
			landlord_amount = EXCLUDED.landlord_amount,
			platform_revenue = EXCLUDED.platform_revenue,
			updated_at = NOW()
		WHERE lease_payments.status NOT IN ('PAID', 'PAYMENT_PENDING')
		  AND lease_payments.type = EXCLUDED.type
		  AND lease_payments.payer_id = EXCLUDED.payer_id
	`
	_, err := r.db.Exec(ctx, query,
		payment.ID,
		payment.OwnerID,
		payment.ContractID,
		payment.PayerID,
		payment.Type,
		payment.RentBase,
		payment.Amount,
		payment.LandlordAmount,
		payment.PlatformRevenue,
		payment.Status,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r.GetStandalonePayment(ctx, payment.ID)
}

// GetStandalonePayment retrieves a standalone payment by id.
func (r *PostgresRepository) GetStandalonePayment(ctx context.Context, paymentID string) (*domain.StandalonePayment, error) {
	return scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM lease_payments WHERE id = $1`, paymentID))
}

// FindStandalonePaymentByCheckoutToken retrieves the payment holding a checkout token.
func (r *PostgresRepository) FindStandalonePaymentByCheckoutToken(ctx context.Context, token string) (*domain.StandalonePayment, error) {
	return scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM lease_payments WHERE checkout_token = $1 LIMIT 1`, token))
}

// SavePaymentCheckout stores a checkout token on an unpaid standalone payment.
func (r *PostgresRepository) SavePaymentCheckout(ctx context.Context, paymentID, token string, amount int64) error {
	query := `
		UPDATE lease_payments
		SET checkout_token = $2, gateway_payment_id = NULL, amount = $3, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('PAID', 'REFUNDED')
	`
	tag, err := r.db.Exec(ctx, query, paymentID, token, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStateConflict
	}
	return nil
}

// ResetRefunded reopens a REFUNDED invoice or payment as DUE and drops its
// old gateway references.
func (r *PostgresRepository) ResetRefunded(ctx context.Context, kind, id string) error {
	if kind == domain.SourceOffer {
		return fmt.Errorf("upfront offers cannot be refunded")
	}
	src, err := lookupSource(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = 'DUE',
			checkout_token = NULL,
			gateway_payment_id = NULL,
			paid_at = NULL,
			payout_planned = FALSE,
			updated_at = NOW()
		WHERE id = $1 AND status = 'REFUNDED'
	`, src.table)
	_, err = r.db.Exec(ctx, query, id)
	return err
}

// SetGatewayPaymentID caches the gateway payment id resolved for a record.
func (r *PostgresRepository) SetGatewayPaymentID(ctx context.Context, kind, id, paymentID string) error {
	src, err := lookupSource(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET gateway_payment_id = $2, updated_at = NOW() WHERE id = $1`, src.table)
	tag, err := r.db.Exec(ctx, query, id, paymentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return src.notFound
	}
	return nil
}

// TransitionStatus moves a record to status unless it is already there or
// in a state reconciliation must not leave (PAID, REFUNDED, CLOSED_UPFRONT).
// It reports whether this call performed the transition.
func (r *PostgresRepository) TransitionStatus(ctx context.Context, kind, id, status string, paidAt *time.Time) (bool, error) {
	src, err := lookupSource(kind)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $2, paid_at = $3, updated_at = NOW()
		WHERE id = $1
		  AND status <> $2
		  AND status NOT IN ('PAID', 'REFUNDED', 'CLOSED_UPFRONT')
	`, src.table)
	tag, err := r.db.Exec(ctx, query, id, status, paidAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkRefunded sets an invoice or payment to REFUNDED and clears its
// paid-at stamp and payout flag.
func (r *PostgresRepository) MarkRefunded(ctx context.Context, kind, id string) error {
	if kind == domain.SourceOffer {
		return fmt.Errorf("upfront offers cannot be refunded")
	}
	src, err := lookupSource(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = 'REFUNDED', paid_at = NULL, payout_planned = FALSE, updated_at = NOW()
		WHERE id = $1
	`, src.table)
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return src.notFound
	}
	return nil
}

// ListPaidWithoutPayout returns ids of PAID records of kind whose payout
// was never planned and whose landlord share is positive. Independent
// payments have no payout and are excluded. Least recently touched records
// come first, so a record deferred by DeferPayout yields to the rest.
func (r *PostgresRepository) ListPaidWithoutPayout(ctx context.Context, kind string, limit int) ([]string, error) {
	src, err := lookupSource(kind)
	if err != nil {
		return nil, err
	}
	filter := ""
	if kind == domain.SourcePayment {
		filter = "AND type = 'DEPOSIT'"
	}
	query := fmt.Sprintf(`
		SELECT id FROM %s
		WHERE status = 'PAID' AND payout_planned = FALSE AND %s > 0 %s
		ORDER BY updated_at ASC, id ASC
		LIMIT $1
	`, src.table, src.amountColumn, filter)

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeferPayout moves a PAID record whose payout could not be planned to the
// back of the payout sweep's queue.
func (r *PostgresRepository) DeferPayout(ctx context.Context, kind, id string) error {
	src, err := lookupSource(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET updated_at = NOW()
		WHERE id = $1 AND status = 'PAID' AND payout_planned = FALSE
	`, src.table)
	_, err = r.db.Exec(ctx, query, id)
	return err
}
