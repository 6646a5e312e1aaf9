package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/teknokapsul/lease-service/internal/domain"
)

const contractColumns = `
	id, owner_id, status, start_date, pay_day, rent_amount, agent_id, late_fee_enabled,
	tenant_name, tenant_email, tenant_phone, tenant_national_id,
	renewal_status, renewal_increase_percent, renewal_new_rent,
	renewal_offered_at, renewal_responded_at, renewal_activated_at,
	guest_token_hash, created_at, updated_at`

func scanContract(row pgx.Row) (*domain.LeaseContract, error) {
	var (
		c               domain.LeaseContract
		renewalStatus   *string
		increasePercent *int
		newRent         *int64
		offeredAt       *time.Time
		respondedAt     *time.Time
		activatedAt     *time.Time
	)
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.Status, &c.StartDate, &c.PayDay, &c.RentAmount, &c.AgentID, &c.LateFeeEnabled,
		&c.Tenant.Name, &c.Tenant.Email, &c.Tenant.Phone, &c.Tenant.NationalID,
		&renewalStatus, &increasePercent, &newRent,
		&offeredAt, &respondedAt, &activatedAt,
		&c.GuestTokenHash, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if renewalStatus != nil {
		c.Renewal = &domain.Renewal{
			Status:      *renewalStatus,
			OfferedAt:   offeredAt,
			RespondedAt: respondedAt,
			ActivatedAt: activatedAt,
		}
		if increasePercent != nil {
			c.Renewal.IncreasePercent = *increasePercent
		}
		if newRent != nil {
			c.Renewal.NewRentAmount = *newRent
		}
	}
	return &c, nil
}

func collectContracts(rows pgx.Rows) ([]domain.LeaseContract, error) {
	defer rows.Close()
	var contracts []domain.LeaseContract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, *c)
	}
	return contracts, rows.Err()
}

// GetContract retrieves a contract by id.
func (r *PostgresRepository) GetContract(ctx context.Context, contractID string) (*domain.LeaseContract, error) {
	query := `SELECT ` + contractColumns + ` FROM lease_contracts WHERE id = $1`
	contract, err := scanContract(r.db.QueryRow(ctx, query, contractID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, err
	}
	return contract, nil
}

// ListContractsAwaitingInvoices returns billable contracts with no invoices yet.
func (r *PostgresRepository) ListContractsAwaitingInvoices(ctx context.Context, limit int) ([]domain.LeaseContract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM lease_contracts c
		WHERE c.status IN ('active', 'approved')
		  AND c.start_date IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM lease_invoices i WHERE i.contract_id = c.id)
		ORDER BY c.created_at ASC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return collectContracts(rows)
}

// ListContractsDueForRenewal returns active contracts that either need a
// renewal offer or have an accepted renewal old enough to activate.
func (r *PostgresRepository) ListContractsDueForRenewal(ctx context.Context, offerStartedBefore, activateStartedBefore time.Time, limit int) ([]domain.LeaseContract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM lease_contracts
		WHERE status = 'active'
		  AND start_date IS NOT NULL
		  AND (
			(renewal_status IS NULL AND start_date <= $1)
			OR (renewal_status = 'ACCEPTED' AND start_date <= $2)
		  )
		ORDER BY start_date ASC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, offerStartedBefore, activateStartedBefore, limit)
	if err != nil {
		return nil, err
	}
	return collectContracts(rows)
}

// OfferRenewal stores a renewal offer if none exists yet.
func (r *PostgresRepository) OfferRenewal(ctx context.Context, contractID string, renewal domain.Renewal) (bool, error) {
	query := `
		UPDATE lease_contracts
		SET renewal_status = $2,
			renewal_increase_percent = $3,
			renewal_new_rent = $4,
			renewal_offered_at = $5,
			updated_at = NOW()
		WHERE id = $1 AND renewal_status IS NULL
	`
	tag, err := r.db.Exec(ctx, query, contractID, renewal.Status, renewal.IncreasePercent, renewal.NewRentAmount, renewal.OfferedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RespondToRenewal records the tenant's answer to an open offer.
func (r *PostgresRepository) RespondToRenewal(ctx context.Context, contractID, status string, respondedAt time.Time) (bool, error) {
	query := `
		UPDATE lease_contracts
		SET renewal_status = $2, renewal_responded_at = $3, updated_at = NOW()
		WHERE id = $1 AND renewal_status = 'OFFERED'
	`
	tag, err := r.db.Exec(ctx, query, contractID, status, respondedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ActivateRenewal applies an accepted renewal's rent to the contract.
func (r *PostgresRepository) ActivateRenewal(ctx context.Context, contractID string, newRent int64, activatedAt time.Time) (bool, error) {
	query := `
		UPDATE lease_contracts
		SET rent_amount = $2,
			renewal_status = 'ACTIVATED',
			renewal_activated_at = $3,
			updated_at = NOW()
		WHERE id = $1 AND renewal_status = 'ACCEPTED'
	`
	tag, err := r.db.Exec(ctx, query, contractID, newRent, activatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetGuestTokenHash replaces the contract's guest token hash.
func (r *PostgresRepository) SetGuestTokenHash(ctx context.Context, contractID, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE lease_contracts SET guest_token_hash = $2, updated_at = NOW() WHERE id = $1`, contractID, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrContractNotFound
	}
	return nil
}

// ListHolidays returns the holiday dates configured for an owner.
func (r *PostgresRepository) ListHolidays(ctx context.Context, ownerID string) ([]time.Time, error) {
	rows, err := r.db.Query(ctx, `SELECT holiday_date FROM owner_holidays WHERE owner_id = $1 ORDER BY holiday_date`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}
