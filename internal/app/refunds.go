package app

import (
	"context"
	"fmt"
	"log"

	"github.com/teknokapsul/lease-service/internal/domain"
	"github.com/teknokapsul/lease-service/pkg/gatewayclient"
)

// ItemRefund is the gateway outcome for one refunded line item.
type ItemRefund struct {
	PaymentTransactionID string `json:"payment_transaction_id"`
	Amount               int64  `json:"amount"`
	Success              bool   `json:"success"`
	Error                string `json:"error,omitempty"`
}

// RefundResult is returned to the admin after a refund.
type RefundResult struct {
	Success       bool         `json:"success"`
	Status        string       `json:"status"`
	RefundResults []ItemRefund `json:"refund_results"`
	Warning       string       `json:"warning,omitempty"`
}

// StatusResult is returned after an admin status override.
type StatusResult struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

// RefundInvoice refunds a PAID invoice at the gateway, one line item at a
// time, and marks it REFUNDED locally even when some item refunds fail.
func (s *Service) RefundInvoice(ctx context.Context, caller Caller, ownerUID, contractID, invoiceID string) (*RefundResult, error) {
	if !s.IsAdmin(caller) {
		return nil, ErrAdminRequired
	}
	contract, err := s.loadContract(ctx, ownerUID, contractID)
	if err != nil {
		return nil, err
	}
	invoice, err := s.repo.GetInvoice(ctx, contract.ID, invoiceID)
	if err != nil {
		return nil, err
	}
	switch invoice.Status {
	case domain.InvoiceStatusRefunded:
		return nil, ErrAlreadyRefunded
	case domain.InvoiceStatusPaid:
	default:
		return nil, ErrNotPaid
	}

	result := &RefundResult{Success: true, Status: domain.InvoiceStatusRefunded, RefundResults: []ItemRefund{}}
	target := invoiceTarget(invoice)

	paymentID, err := s.resolvePaymentID(ctx, target)
	if err != nil {
		return nil, err
	}
	if paymentID == "" {
		result.Warning = "no gateway payment is linked to this invoice; refunded locally only"
	} else {
		items, err := s.refundAtGateway(ctx, invoice, paymentID)
		if err != nil {
			return nil, err
		}
		result.RefundResults = items
		for _, item := range items {
			if !item.Success {
				result.Warning = "one or more gateway refunds failed; invoice was marked REFUNDED and needs manual reconciliation"
				log.Printf("level=error component=refunds msg=\"partial gateway refund\" invoice_id=%s payment_id=%s", invoice.ID, paymentID)
				break
			}
		}
	}

	if err := s.repo.MarkRefunded(ctx, domain.SourceInvoice, invoice.ID); err != nil {
		return nil, fmt.Errorf("failed to mark invoice refunded: %w", err)
	}
	if err := s.repo.DeletePayoutForSource(ctx, domain.SourceInvoice, invoice.ID); err != nil {
		return nil, fmt.Errorf("failed to delete payout: %w", err)
	}
	if err := s.reverseLedger(ctx, target); err != nil {
		log.Printf("level=error component=refunds msg=\"failed to reverse ledger\" invoice_id=%s err=%v", invoice.ID, err)
	}

	s.publishEvent(ctx, "lease.invoice.refunded", map[string]interface{}{
		"invoice_id":  invoice.ID,
		"owner_id":    invoice.OwnerID,
		"contract_id": invoice.ContractID,
		"reason":      "admin",
		"admin_id":    caller.ID,
	})
	s.notifyTenant(ctx, contract, "invoice_refunded", "Your rent payment was refunded", map[string]string{
		"period": invoice.Period,
		"amount": gatewayclient.FormatAmount(chargedAmount(invoice)),
	})
	return result, nil
}

// resolvePaymentID returns the gateway payment id for target, resolving
// it from the checkout token when only the token is known. An empty id
// with a nil error means the target never went through the gateway.
func (s *Service) resolvePaymentID(ctx context.Context, target *paymentTarget) (string, error) {
	if target.paymentID != nil && *target.paymentID != "" {
		return *target.paymentID, nil
	}
	if target.checkoutToken == nil || *target.checkoutToken == "" {
		return "", nil
	}

	gctx, cancel := s.gatewayContext(ctx)
	defer cancel()
	checkout, err := s.gateway.RetrieveCheckout(gctx, *target.checkoutToken)
	if err != nil {
		return "", gatewayError("retrieve checkout", err)
	}
	if checkout.PaymentID == "" {
		return "", nil
	}
	if err := s.repo.SetGatewayPaymentID(ctx, target.kind, target.id, checkout.PaymentID); err != nil {
		log.Printf("level=warn component=refunds msg=\"failed to cache gateway payment id\" id=%s err=%v", target.id, err)
	}
	return checkout.PaymentID, nil
}

func (s *Service) refundAtGateway(ctx context.Context, invoice *domain.Invoice, paymentID string) ([]ItemRefund, error) {
	gctx, cancel := s.gatewayContext(ctx)
	payment, err := s.gateway.RetrievePayment(gctx, paymentID)
	cancel()
	if err != nil {
		return nil, gatewayError("retrieve payment", err)
	}

	results := make([]ItemRefund, 0, len(payment.Items))
	for _, item := range payment.Items {
		amount, err := gatewayclient.ParseAmount(item.PaidPrice)
		if err != nil {
			results = append(results, ItemRefund{PaymentTransactionID: item.PaymentTransactionID, Error: err.Error()})
			continue
		}

		gctx, cancel := s.gatewayContext(ctx)
		_, err = s.gateway.Refund(gctx, gatewayclient.RefundRequest{
			ConversationID:       conversationID(domain.SourceInvoice, invoice.ID),
			PaymentTransactionID: item.PaymentTransactionID,
			Price:                gatewayclient.FormatAmount(amount),
			Currency:             s.settings.Currency,
		})
		cancel()

		entry := ItemRefund{PaymentTransactionID: item.PaymentTransactionID, Amount: amount, Success: err == nil}
		if err != nil {
			entry.Error = err.Error()
			log.Printf("level=warn component=refunds msg=\"item refund failed\" invoice_id=%s transaction_id=%s err=%v", invoice.ID, item.PaymentTransactionID, err)
		}
		results = append(results, entry)
	}
	return results, nil
}

func chargedAmount(invoice *domain.Invoice) int64 {
	if invoice.ChargedTotal != nil {
		return *invoice.ChargedTotal
	}
	return invoice.TenantTotal
}

// SetInvoiceStatus overrides an invoice status. PAID keeps an existing
// paid-at stamp and leaves payout planning to the payout sweep; any other
// status clears paid-at and drops a planned payout. Leaving PAID reverses
// the ledger entry of that payment.
func (s *Service) SetInvoiceStatus(ctx context.Context, caller Caller, ownerUID, contractID, invoiceID, status string) (*StatusResult, error) {
	if !s.IsAdmin(caller) {
		return nil, ErrAdminRequired
	}
	if !domain.IsValidInvoiceStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	contract, err := s.loadContract(ctx, ownerUID, contractID)
	if err != nil {
		return nil, err
	}
	invoice, err := s.repo.GetInvoice(ctx, contract.ID, invoiceID)
	if err != nil {
		return nil, err
	}

	switch status {
	case domain.InvoiceStatusRefunded:
		if err := s.repo.MarkRefunded(ctx, domain.SourceInvoice, invoice.ID); err != nil {
			return nil, fmt.Errorf("failed to mark invoice refunded: %w", err)
		}
		if err := s.repo.DeletePayoutForSource(ctx, domain.SourceInvoice, invoice.ID); err != nil {
			return nil, fmt.Errorf("failed to delete payout: %w", err)
		}
		if err := s.reverseLedger(ctx, invoiceTarget(invoice)); err != nil {
			return nil, err
		}
	case domain.InvoiceStatusPaid:
		paidAt := invoice.PaidAt
		if paidAt == nil {
			now := s.now()
			paidAt = &now
		}
		if err := s.repo.SetInvoiceStatus(ctx, invoice.ID, status, paidAt); err != nil {
			return nil, fmt.Errorf("failed to set invoice status: %w", err)
		}
	default:
		if err := s.repo.SetInvoiceStatus(ctx, invoice.ID, status, nil); err != nil {
			return nil, fmt.Errorf("failed to set invoice status: %w", err)
		}
		if invoice.PayoutPlanned {
			if err := s.repo.DeletePayoutForSource(ctx, domain.SourceInvoice, invoice.ID); err != nil {
				return nil, fmt.Errorf("failed to delete payout: %w", err)
			}
		}
		if err := s.reverseLedger(ctx, invoiceTarget(invoice)); err != nil {
			return nil, err
		}
	}

	log.Printf("level=info component=admin msg=\"invoice status overridden\" invoice_id=%s from=%s to=%s admin_id=%s", invoice.ID, invoice.Status, status, caller.ID)
	return &StatusResult{Success: true, Status: status}, nil
}
