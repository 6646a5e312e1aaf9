package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/teknokapsul/lease-service/internal/domain"
)

// PlanPayout inserts a payout for a PAID source record and sets its
// payout flag in the same transaction. The source row is locked first, so
// of two concurrent callers only one inserts. It reports whether a payout
// was created.
func (r *PostgresRepository) PlanPayout(ctx context.Context, kind, sourceID string, payout domain.Payout) (bool, error) {
	src, err := lookupSource(kind)
	if err != nil {
		return false, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var (
		status  string
		planned bool
	)
	lockQuery := fmt.Sprintf(`SELECT status, payout_planned FROM %s WHERE id = $1 FOR UPDATE`, src.table)
	if err := tx.QueryRow(ctx, lockQuery, sourceID).Scan(&status, &planned); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, src.notFound
		}
		return false, err
	}
	if planned || status != domain.InvoiceStatusPaid {
		return false, nil
	}

	insertQuery := `
		INSERT INTO lease_payouts (
			id, owner_id, contract_id, invoice_id, offer_id, payment_id, amount, planned_at, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
	`
	tag, err := tx.Exec(ctx, insertQuery,
		payout.ID,
		payout.OwnerID,
		payout.ContractID,
		payout.InvoiceID,
		payout.OfferID,
		payout.PaymentID,
		payout.Amount,
		payout.PlannedAt,
		payout.Status,
		payout.CreatedAt,
	)
	if err != nil {
		return false, err
	}

	flagQuery := fmt.Sprintf(`UPDATE %s SET payout_planned = TRUE, updated_at = NOW() WHERE id = $1`, src.table)
	if _, err := tx.Exec(ctx, flagQuery, sourceID); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeletePayoutForSource removes the planned payout of a source record.
func (r *PostgresRepository) DeletePayoutForSource(ctx context.Context, kind, sourceID string) error {
	src, err := lookupSource(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM lease_payouts WHERE %s = $1 AND status = 'PLANNED'`, src.payoutColumn)
	_, err = r.db.Exec(ctx, query, sourceID)
	return err
}

// AppendLedgerEntry records a wallet ledger entry. An entry of the same
// type and reference for the same source is written once.
func (r *PostgresRepository) AppendLedgerEntry(ctx context.Context, entry domain.LedgerEntry) error {
	query := `
		INSERT INTO lease_wallet_ledger (id, owner_id, contract_id, source_type, source_id, entry_type, reference, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source_type, source_id, entry_type, reference) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.OwnerID,
		entry.ContractID,
		entry.SourceType,
		entry.SourceID,
		entry.EntryType,
		entry.Reference,
		entry.Amount,
		entry.CreatedAt,
	)
	return err
}

// UpsertLegalCase opens a legal case for an invoice unless one exists.
func (r *PostgresRepository) UpsertLegalCase(ctx context.Context, legalCase domain.LegalCase) error {
	query := `
		INSERT INTO lease_legal_cases (
			id, invoice_id, contract_id, owner_id, status, notice_sent, enforcement_started, eviction_filed, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (invoice_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		legalCase.ID,
		legalCase.InvoiceID,
		legalCase.ContractID,
		legalCase.OwnerID,
		legalCase.Status,
		legalCase.NoticeSent,
		legalCase.EnforcementStarted,
		legalCase.EvictionFiled,
		legalCase.CreatedAt,
		legalCase.UpdatedAt,
	)
	return err
}
