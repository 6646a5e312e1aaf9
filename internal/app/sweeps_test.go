package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teknokapsul/lease-service/internal/domain"
	"github.com/teknokapsul/lease-service/pkg/gatewayclient"
)

func TestRunOverdueSweep_ContinuesPastFailures(t *testing.T) {
	repo := newMemRepo()
	repo.addContract(testContract())
	repo.addInvoice(testInvoice("inv-feb", "2025-02", time.Date(2025, 2, 1, 0, 0, 0, 0, istanbul)))
	repo.addInvoice(testInvoice("inv-mar", "2025-03", time.Date(2025, 3, 1, 0, 0, 0, 0, istanbul)))
	repo.addInvoice(testInvoice("inv-apr", "2025-04", time.Date(2025, 4, 1, 0, 0, 0, 0, istanbul)))
	repo.overdueErrs["inv-feb"] = errors.New("connection reset")
	pub := &publisherStub{}
	svc := newTestService(repo, newGatewayStub(), pub, nil)

	result, err := svc.RunOverdueSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Evaluated != 2 || result.Failed != 1 || result.Succeeded != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if inv := repo.invoice(t, "inv-mar"); inv.Status != domain.InvoiceStatusOverdue || !inv.IsOverdue {
		t.Fatalf("expected inv-mar OVERDUE, got %s", inv.Status)
	}
	if inv := repo.invoice(t, "inv-feb"); inv.Status != domain.InvoiceStatusDue {
		t.Fatalf("expected inv-feb to stay DUE, got %s", inv.Status)
	}
	if inv := repo.invoice(t, "inv-apr"); inv.Status != domain.InvoiceStatusDue {
		t.Fatalf("expected future invoice untouched, got %s", inv.Status)
	}
	if len(repo.legalCases) != 2 {
		t.Fatalf("expected legal cases for both past-due invoices, got %d", len(repo.legalCases))
	}
	if got := pub.count("lease.invoice.overdue"); got != 1 {
		t.Fatalf("expected one overdue event, got %d", got)
	}

	delete(repo.overdueErrs, "inv-feb")
	result, err = svc.RunOverdueSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Evaluated != 1 || result.Succeeded != 1 || len(repo.legalCases) != 2 {
		t.Fatalf("expected retry of the failed invoice only, got %+v", result)
	}
}

func TestRunLateFees_OverwritesInsteadOfAccumulating(t *testing.T) {
	repo := newMemRepo()
	repo.addContract(testContract())
	inv := testInvoice("inv-1", "2025-02", time.Date(2025, 2, 19, 0, 0, 0, 0, istanbul))
	inv.Status = domain.InvoiceStatusOverdue
	inv.IsOverdue = true
	inv.LateFeeEnabled = true
	repo.addInvoice(inv)
	disabled := testInvoice("inv-2", "2025-01", time.Date(2025, 1, 19, 0, 0, 0, 0, istanbul))
	disabled.Status = domain.InvoiceStatusOverdue
	repo.addInvoice(disabled)
	svc := newTestService(repo, newGatewayStub(), nil, nil)

	for run := 0; run < 2; run++ {
		result, err := svc.RunLateFees(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Succeeded != 1 {
			t.Fatalf("expected one fee update, got %+v", result)
		}
		stored := repo.invoice(t, "inv-1")
		if stored.LateDays != 10 || stored.LateFeeAmount != 500 {
			t.Fatalf("run %d: expected 10 late days and fee 500, got %d / %d", run, stored.LateDays, stored.LateFeeAmount)
		}
	}
	if repo.invoice(t, "inv-2").LateFeeAmount != 0 {
		t.Fatal("expected no fee on an invoice with fees disabled")
	}
}

func TestRunReconciliation_CountsOutcomes(t *testing.T) {
	repo := newMemRepo()
	repo.addContract(testContract())
	repo.addInvoice(paidInvoice("inv-ok", "2025-01", "pay-ok"))
	repo.addInvoice(paidInvoice("inv-void", "2025-02", "pay-void"))
	repo.addInvoice(paidInvoice("inv-lost", "2025-03", "pay-lost"))
	gw := newGatewayStub()
	gw.setPayment(gatewayclient.Payment{PaymentID: "pay-ok", PaymentStatus: gatewayclient.PaymentStatusSuccess, PaidPrice: "103.00"})
	gw.setPayment(gatewayclient.Payment{PaymentID: "pay-void", PaymentStatus: gatewayclient.PaymentStatusSuccess, PaidPrice: "0.00"})
	svc := newTestService(repo, gw, nil, nil)

	result, err := svc.RunReconciliation(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.SweepResult{Evaluated: 3, Succeeded: 1, Failed: 1, Skipped: 1}
	if result != want {
		t.Fatalf("expected %+v, got %+v", want, result)
	}
	if inv := repo.invoice(t, "inv-void"); inv.Status != domain.InvoiceStatusRefunded {
		t.Fatalf("expected chargeback to refund inv-void, got %s", inv.Status)
	}
	if inv := repo.invoice(t, "inv-lost"); inv.Status != domain.InvoiceStatusPaid {
		t.Fatalf("expected lookup failure to keep PAID, got %s", inv.Status)
	}
}

func TestRunReconciliation_ReportsInterruption(t *testing.T) {
	repo := newMemRepo()
	repo.addContract(testContract())
	repo.addInvoice(paidInvoice("inv-ok", "2025-01", "pay-ok"))
	gw := newGatewayStub()
	gw.setPayment(gatewayclient.Payment{PaymentID: "pay-ok", PaymentStatus: gatewayclient.PaymentStatusSuccess, PaidPrice: "103.00"})
	svc := newTestService(repo, gw, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.RunReconciliation(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Evaluated != 1 {
		t.Fatalf("expected partial counts to be returned, got %+v", result)
	}
}

func TestRunPayoutSweep_RecoversUnplannedPayouts(t *testing.T) {
	repo := newMemRepo()
	repo.addContract(testContract())
	inv := paidInvoice("inv-1", "2025-02", "pay-1")
	inv.PayoutPlanned = false
	repo.addInvoice(inv)

	contractID := testContractID
	paidAt := testNow.Add(-time.Hour)
	repo.payments["dep-1"] = &domain.StandalonePayment{
		ID: "dep-1", OwnerID: testOwnerID, ContractID: &contractID, Type: domain.PaymentTypeDeposit,
		Amount: 30000, LandlordAmount: 20000, PlatformRevenue: 10000,
		Status: domain.InvoiceStatusPaid, PaidAt: &paidAt,
	}
	repo.payments["ind-1"] = &domain.StandalonePayment{
		ID: "ind-1", OwnerID: testOwnerID, Type: domain.PaymentTypeIndependent,
		Amount: 5150, Status: domain.InvoiceStatusPaid, PaidAt: &paidAt,
	}
	svc := newTestService(repo, newGatewayStub(), nil, nil)
	ctx := context.Background()

	result, err := svc.RunPayoutSweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Evaluated != 2 || result.Succeeded != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	payout, ok := repo.payoutFor(domain.SourceInvoice, "inv-1")
	if !ok || payout.PlannedAt.Format("2006-01-02") != "2025-03-07" {
		t.Fatalf("expected invoice payout on 2025-03-07, got %+v", payout)
	}
	deposit, ok := repo.payoutFor(domain.SourcePayment, "dep-1")
	if !ok || deposit.Amount != 20000 {
		t.Fatalf("expected deposit payout of 20000, got %+v", deposit)
	}
	if _, ok := repo.payoutFor(domain.SourcePayment, "ind-1"); ok {
		t.Fatal("independent payments carry no payout")
	}

	result, err = svc.RunPayoutSweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Evaluated != 0 || repo.payoutCount() != 2 {
		t.Fatalf("expected nothing left to plan, got %+v", result)
	}
}

func TestRunRenewals(t *testing.T) {
	repo := newMemRepo()
	date := func(y int, m time.Month, d int) *time.Time {
		v := time.Date(y, m, d, 0, 0, 0, 0, istanbul)
		return &v
	}

	offer := testContract()
	offer.ID = "c-offer"
	offer.StartDate = date(2024, 4, 1)
	repo.addContract(offer)

	activate := testContract()
	activate.ID = "c-activate"
	activate.StartDate = date(2024, 3, 1)
	activate.Renewal = &domain.Renewal{Status: domain.RenewalStatusAccepted, IncreasePercent: 25, NewRentAmount: 12500}
	repo.addContract(activate)

	young := testContract()
	young.ID = "c-young"
	young.StartDate = date(2024, 6, 1)
	repo.addContract(young)

	ended := testContract()
	ended.ID = "c-ended"
	ended.Status = domain.ContractStatusEnded
	ended.StartDate = date(2023, 1, 1)
	repo.addContract(ended)

	pub := &publisherStub{}
	svc := newTestService(repo, newGatewayStub(), pub, nil)
	ctx := context.Background()

	result, err := svc.RunRenewals(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.SweepResult{Evaluated: 4, Succeeded: 2, Skipped: 2}
	if result != want {
		t.Fatalf("expected %+v, got %+v", want, result)
	}

	offered, _ := repo.GetContract(ctx, "c-offer")
	if offered.Renewal == nil || offered.Renewal.Status != domain.RenewalStatusOffered || offered.Renewal.NewRentAmount != 12500 {
		t.Fatalf("expected OFFERED renewal at 12500, got %+v", offered.Renewal)
	}
	activated, _ := repo.GetContract(ctx, "c-activate")
	if activated.RentAmount != 12500 || activated.Renewal.Status != domain.RenewalStatusActivated {
		t.Fatalf("expected activated rent 12500, got %d (%s)", activated.RentAmount, activated.Renewal.Status)
	}
	if pub.count("lease.renewal.offered") != 1 || pub.count("lease.renewal.activated") != 1 || pub.count("notification.email") != 1 {
		t.Fatalf("unexpected events: %v", pub.keys)
	}

	result, err = svc.RunRenewals(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Succeeded != 0 || result.Skipped != 4 {
		t.Fatalf("expected a repeated run to change nothing, got %+v", result)
	}
}

func TestRespondToRenewal(t *testing.T) {
	ctx := context.Background()
	setup := func() (*memRepo, *Service) {
		repo := newMemRepo()
		contract := testContract()
		contract.Renewal = &domain.Renewal{Status: domain.RenewalStatusOffered, IncreasePercent: 25, NewRentAmount: 12500}
		repo.addContract(contract)
		return repo, newTestService(repo, newGatewayStub(), nil, nil)
	}

	t.Run("tenant accepts", func(t *testing.T) {
		repo, svc := setup()
		renewal, err := svc.RespondToRenewal(ctx, tenant, testOwnerID, testContractID, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if renewal.Status != domain.RenewalStatusAccepted || renewal.RespondedAt == nil {
			t.Fatalf("unexpected renewal: %+v", renewal)
		}
		stored, _ := repo.GetContract(ctx, testContractID)
		if stored.Renewal.Status != domain.RenewalStatusAccepted {
			t.Fatalf("expected stored ACCEPTED, got %s", stored.Renewal.Status)
		}
		if _, err := svc.RespondToRenewal(ctx, tenant, testOwnerID, testContractID, false); !errors.Is(err, ErrInvalidStatus) {
			t.Fatalf("expected a second answer to be rejected, got %v", err)
		}
	})

	t.Run("tenant rejects", func(t *testing.T) {
		_, svc := setup()
		renewal, err := svc.RespondToRenewal(ctx, tenant, testOwnerID, testContractID, false)
		if err != nil || renewal.Status != domain.RenewalStatusRejected {
			t.Fatalf("expected REJECTED, got %+v, %v", renewal, err)
		}
	})

	t.Run("landlord cannot answer", func(t *testing.T) {
		_, svc := setup()
		if _, err := svc.RespondToRenewal(ctx, landlord, testOwnerID, testContractID, true); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("no open offer", func(t *testing.T) {
		repo := newMemRepo()
		repo.addContract(testContract())
		svc := newTestService(repo, newGatewayStub(), nil, nil)
		if _, err := svc.RespondToRenewal(ctx, tenant, testOwnerID, testContractID, true); !errors.Is(err, ErrInvalidStatus) {
			t.Fatalf("expected ErrInvalidStatus, got %v", err)
		}
	})
}

func TestMonthsElapsed(t *testing.T) {
	tests := []struct {
		name       string
		start, now time.Time
		want       int
	}{
		{"same day a year later", time.Date(2024, 1, 15, 0, 0, 0, 0, istanbul), time.Date(2025, 1, 15, 0, 0, 0, 0, istanbul), 12},
		{"one day short", time.Date(2024, 1, 15, 0, 0, 0, 0, istanbul), time.Date(2025, 1, 14, 0, 0, 0, 0, istanbul), 11},
		{"month end", time.Date(2024, 1, 31, 0, 0, 0, 0, istanbul), time.Date(2024, 2, 29, 0, 0, 0, 0, istanbul), 0},
		{"future start", time.Date(2026, 1, 1, 0, 0, 0, 0, istanbul), testNow, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MonthsElapsed(tt.start, tt.now, istanbul); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestUpfrontOffers_ProposeAndAccept(t *testing.T) {
	repo := newMemRepo()
	repo.addContract(testContract())
	pub := &publisherStub{}
	svc := newTestService(repo, newGatewayStub(), pub, nil)
	ctx := context.Background()

	if _, err := svc.ProposeUpfrontOffer(ctx, tenant, testOwnerID, testContractID, 6, 60000); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected tenant proposal to be forbidden, got %v", err)
	}
	for _, months := range []int{0, MaxUpfrontMonths + 1} {
		if _, err := svc.ProposeUpfrontOffer(ctx, landlord, testOwnerID, testContractID, months, 60000); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected months=%d to be rejected, got %v", months, err)
		}
	}
	if _, err := svc.ProposeUpfrontOffer(ctx, landlord, testOwnerID, testContractID, 6, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected zero amount to be rejected, got %v", err)
	}

	offer, err := svc.ProposeUpfrontOffer(ctx, landlord, testOwnerID, testContractID, 6, 60000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if offer.Status != domain.OfferStatusProposed || pub.count("notification.email") != 1 {
		t.Fatalf("expected PROPOSED offer and a tenant notification, got %+v", offer)
	}

	if _, err := svc.AcceptUpfrontOffer(ctx, landlord, testOwnerID, testContractID, offer.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected landlord acceptance to be forbidden, got %v", err)
	}
	accepted, err := svc.AcceptUpfrontOffer(ctx, tenant, testOwnerID, testContractID, offer.ID)
	if err != nil || accepted.Status != domain.OfferStatusAccepted {
		t.Fatalf("expected ACCEPTED, got %+v, %v", accepted, err)
	}
	if _, err := svc.AcceptUpfrontOffer(ctx, tenant, testOwnerID, testContractID, offer.ID); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected a second acceptance to be rejected, got %v", err)
	}
}
