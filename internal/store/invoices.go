package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/teknokapsul/lease-service/internal/domain"
)

const invoiceColumns = `
	id, contract_id, owner_id, period, due_date, rent_base, tenant_total, landlord_net,
	platform_revenue, agent_revenue, status, is_overdue, paid_at, late_fee_enabled,
	late_days, late_fee_amount, checkout_token, gateway_payment_id, payout_planned,
	early_payment_applied, amount_locked, charged_total, created_at, updated_at`

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(
		&inv.ID, &inv.ContractID, &inv.OwnerID, &inv.Period, &inv.DueDate, &inv.RentBase, &inv.TenantTotal, &inv.LandlordNet,
		&inv.PlatformRevenue, &inv.AgentRevenue, &inv.Status, &inv.IsOverdue, &inv.PaidAt, &inv.LateFeeEnabled,
		&inv.LateDays, &inv.LateFeeAmount, &inv.CheckoutToken, &inv.GatewayPaymentID, &inv.PayoutPlanned,
		&inv.EarlyPaymentApplied, &inv.AmountLocked, &inv.ChargedTotal, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *PostgresRepository) queryInvoices(ctx context.Context, query string, args ...interface{}) ([]domain.Invoice, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func (r *PostgresRepository) queryInvoice(ctx context.Context, query string, args ...interface{}) (*domain.Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return inv, nil
}

// CountInvoices returns how many invoices a contract has.
func (r *PostgresRepository) CountInvoices(ctx context.Context, contractID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM lease_invoices WHERE contract_id = $1`, contractID).Scan(&count)
	return count, err
}

// InsertInvoices writes a batch of invoices in one transaction. Periods
// that already exist are left untouched. It returns the rows inserted.
func (r *PostgresRepository) InsertInvoices(ctx context.Context, invoices []domain.Invoice) (int64, error) {
	if len(invoices) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO lease_invoices (
			id, contract_id, owner_id, period, due_date, rent_base, tenant_total, landlord_net,
			platform_revenue, agent_revenue, status, late_fee_enabled, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (contract_id, period) DO NOTHING
	`
	batch := &pgx.Batch{}
	for _, inv := range invoices {
		batch.Queue(query,
			inv.ID, inv.ContractID, inv.OwnerID, inv.Period, inv.DueDate, inv.RentBase, inv.TenantTotal, inv.LandlordNet,
			inv.PlatformRevenue, inv.AgentRevenue, inv.Status, inv.LateFeeEnabled, inv.CreatedAt, inv.UpdatedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	var inserted int64
	for range invoices {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, err
		}
		inserted += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetInvoice retrieves an invoice scoped to its contract.
func (r *PostgresRepository) GetInvoice(ctx context.Context, contractID, invoiceID string) (*domain.Invoice, error) {
	return r.queryInvoice(ctx, `SELECT `+invoiceColumns+` FROM lease_invoices WHERE contract_id = $1 AND id = $2`, contractID, invoiceID)
}

// GetInvoiceByID retrieves an invoice by id alone.
func (r *PostgresRepository) GetInvoiceByID(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return r.queryInvoice(ctx, `SELECT `+invoiceColumns+` FROM lease_invoices WHERE id = $1`, invoiceID)
}

// FindInvoiceByCheckoutToken retrieves the invoice holding a checkout token.
func (r *PostgresRepository) FindInvoiceByCheckoutToken(ctx context.Context, token string) (*domain.Invoice, error) {
	return r.queryInvoice(ctx, `SELECT `+invoiceColumns+` FROM lease_invoices WHERE checkout_token = $1 LIMIT 1`, token)
}

// ListInvoicesByContract returns a contract's invoices ordered by period.
func (r *PostgresRepository) ListInvoicesByContract(ctx context.Context, contractID string) ([]domain.Invoice, error) {
	return r.queryInvoices(ctx, `SELECT `+invoiceColumns+` FROM lease_invoices WHERE contract_id = $1 ORDER BY period ASC`, contractID)
}

// SaveInvoiceCheckout stores a new checkout token with the amounts it was
// opened for. The previous gateway payment id is cleared.
func (r *PostgresRepository) SaveInvoiceCheckout(ctx context.Context, invoiceID string, params InvoiceCheckoutParams) error {
	query := `
		UPDATE lease_invoices
		SET checkout_token = $2,
			gateway_payment_id = NULL,
			tenant_total = $3,
			landlord_net = $4,
			platform_revenue = $5,
			agent_revenue = $6,
			charged_total = $7,
			early_payment_applied = $8,
			updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('PAID', 'REFUNDED', 'CLOSED_UPFRONT')
	`
	tag, err := r.db.Exec(ctx, query, invoiceID, params.Token, params.TenantTotal, params.LandlordNet,
		params.PlatformRevenue, params.AgentRevenue, params.ChargedTotal, params.EarlyPaymentApplied)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStateConflict
	}
	return nil
}

// CloseOpenInvoices marks the oldest open invoices of a contract as
// CLOSED_UPFRONT, at most months of them.
func (r *PostgresRepository) CloseOpenInvoices(ctx context.Context, contractID string, months int) (int64, error) {
	if months <= 0 {
		return 0, nil
	}
	query := `
		UPDATE lease_invoices
		SET status = 'CLOSED_UPFRONT', is_overdue = FALSE, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM lease_invoices
			WHERE contract_id = $1 AND status IN ('DUE', 'OVERDUE')
			ORDER BY period ASC
			LIMIT $2
			FOR UPDATE
		)
	`
	tag, err := r.db.Exec(ctx, query, contractID, months)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListDueInvoicesPastDue returns DUE invoices whose due date is before now.
func (r *PostgresRepository) ListDueInvoicesPastDue(ctx context.Context, now time.Time, limit int) ([]domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM lease_invoices WHERE status = 'DUE' AND due_date < $1 ORDER BY due_date ASC LIMIT $2`
	return r.queryInvoices(ctx, query, now, limit)
}

// MarkInvoiceOverdue moves a DUE invoice to OVERDUE.
func (r *PostgresRepository) MarkInvoiceOverdue(ctx context.Context, invoiceID string) (bool, error) {
	query := `
		UPDATE lease_invoices
		SET status = 'OVERDUE', is_overdue = TRUE, updated_at = NOW()
		WHERE id = $1 AND status = 'DUE'
	`
	tag, err := r.db.Exec(ctx, query, invoiceID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListInvoicesForLateFees returns overdue invoices with fees enabled that
// were not assessed on assessedOn yet.
func (r *PostgresRepository) ListInvoicesForLateFees(ctx context.Context, assessedOn time.Time, limit int) ([]domain.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM lease_invoices
		WHERE status = 'OVERDUE'
		  AND late_fee_enabled = TRUE
		  AND (late_fee_assessed_on IS NULL OR late_fee_assessed_on < $1)
		ORDER BY due_date ASC
		LIMIT $2
	`
	return r.queryInvoices(ctx, query, assessedOn, limit)
}

// UpdateInvoiceLateFee overwrites an overdue invoice's late fee fields.
func (r *PostgresRepository) UpdateInvoiceLateFee(ctx context.Context, invoiceID string, lateDays int, amount int64, assessedOn time.Time) error {
	query := `
		UPDATE lease_invoices
		SET late_days = $2, late_fee_amount = $3, late_fee_assessed_on = $4, updated_at = NOW()
		WHERE id = $1 AND status = 'OVERDUE'
	`
	_, err := r.db.Exec(ctx, query, invoiceID, lateDays, amount, assessedOn)
	return err
}

// ListRecentlyPaidInvoices returns PAID invoices with a gateway reference
// paid at or after since, newest first.
func (r *PostgresRepository) ListRecentlyPaidInvoices(ctx context.Context, since time.Time, limit int) ([]domain.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM lease_invoices
		WHERE status = 'PAID'
		  AND paid_at >= $1
		  AND (checkout_token IS NOT NULL OR gateway_payment_id IS NOT NULL)
		ORDER BY paid_at DESC
		LIMIT $2
	`
	return r.queryInvoices(ctx, query, since, limit)
}

// SetInvoiceStatus overwrites an invoice's status and paid-at stamp. Any
// status other than PAID clears the payout flag.
func (r *PostgresRepository) SetInvoiceStatus(ctx context.Context, invoiceID, status string, paidAt *time.Time) error {
	query := `
		UPDATE lease_invoices
		SET status = $2::text,
			paid_at = $3,
			is_overdue = ($2::text = 'OVERDUE'),
			payout_planned = CASE WHEN $2::text = 'PAID' THEN payout_planned ELSE FALSE END,
			updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, invoiceID, status, paidAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}
