package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/teknokapsul/lease-service/internal/domain"
	"github.com/teknokapsul/lease-service/internal/store"
	"github.com/teknokapsul/lease-service/pkg/gatewayclient"
)

// Callback outcomes reported to the result page.
const (
	CallbackSuccess = "success"
	CallbackFailed  = "failed"
	CallbackPending = "pending"
	CallbackError   = "error"
)

// ReconcileResult is the outcome of comparing a target with the gateway.
type ReconcileResult struct {
	Status  string `json:"status"`
	Changed bool   `json:"changed"`
}

// paymentTarget is the common view of an invoice, upfront offer or
// standalone payment while its status is reconciled.
type paymentTarget struct {
	kind          string
	id            string
	ownerID       string
	contractID    *string
	status        string
	paidAt        *time.Time
	checkoutToken *string
	paymentID     *string
	payoutPlanned bool
	payoutAmount  int64
	ledgerType    string
	months        int
	paymentType   string
}

func invoiceTarget(invoice *domain.Invoice) *paymentTarget {
	contractID := invoice.ContractID
	return &paymentTarget{
		kind:          domain.SourceInvoice,
		id:            invoice.ID,
		ownerID:       invoice.OwnerID,
		contractID:    &contractID,
		status:        invoice.Status,
		paidAt:        invoice.PaidAt,
		checkoutToken: invoice.CheckoutToken,
		paymentID:     invoice.GatewayPaymentID,
		payoutPlanned: invoice.PayoutPlanned,
		payoutAmount:  invoice.LandlordNet,
		ledgerType:    domain.LedgerPaymentReceived,
	}
}

func offerTarget(offer *domain.UpfrontOffer) *paymentTarget {
	contractID := offer.ContractID
	return &paymentTarget{
		kind:          domain.SourceOffer,
		id:            offer.ID,
		ownerID:       offer.OwnerID,
		contractID:    &contractID,
		status:        offer.Status,
		paidAt:        offer.PaidAt,
		checkoutToken: offer.CheckoutToken,
		paymentID:     offer.GatewayPaymentID,
		payoutPlanned: offer.PayoutPlanned,
		payoutAmount:  offer.Amount,
		ledgerType:    domain.LedgerUpfrontPayment,
		months:        offer.Months,
	}
}

func standaloneTarget(payment *domain.StandalonePayment) *paymentTarget {
	t := &paymentTarget{
		kind:          domain.SourcePayment,
		id:            payment.ID,
		ownerID:       payment.OwnerID,
		contractID:    payment.ContractID,
		status:        payment.Status,
		paidAt:        payment.PaidAt,
		checkoutToken: payment.CheckoutToken,
		paymentID:     payment.GatewayPaymentID,
		payoutPlanned: payment.PayoutPlanned,
		paymentType:   payment.Type,
	}
	if payment.Type == domain.PaymentTypeDeposit {
		t.payoutAmount = payment.LandlordAmount
		t.ledgerType = domain.LedgerDepositReceived
	}
	return t
}

func (s *Service) loadTarget(ctx context.Context, kind, id string) (*paymentTarget, error) {
	switch kind {
	case domain.SourceInvoice:
		invoice, err := s.repo.GetInvoiceByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return invoiceTarget(invoice), nil
	case domain.SourceOffer:
		offer, err := s.repo.GetOfferByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return offerTarget(offer), nil
	case domain.SourcePayment:
		payment, err := s.repo.GetStandalonePayment(ctx, id)
		if err != nil {
			return nil, err
		}
		return standaloneTarget(payment), nil
	}
	return nil, fmt.Errorf("unknown payment target kind %q", kind)
}

// findTargetByToken resolves the record owning a checkout token, trying
// invoices, then upfront offers, then standalone payments.
func (s *Service) findTargetByToken(ctx context.Context, token string) (*paymentTarget, error) {
	invoice, err := s.repo.FindInvoiceByCheckoutToken(ctx, token)
	if err == nil {
		return invoiceTarget(invoice), nil
	}
	if !errors.Is(err, store.ErrInvoiceNotFound) {
		return nil, err
	}

	offer, err := s.repo.FindOfferByCheckoutToken(ctx, token)
	if err == nil {
		return offerTarget(offer), nil
	}
	if !errors.Is(err, store.ErrOfferNotFound) {
		return nil, err
	}

	payment, err := s.repo.FindStandalonePaymentByCheckoutToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return standaloneTarget(payment), nil
}

// conversationID encodes the target so the callback can load it directly.
func conversationID(kind, id string) string {
	return kind + ":" + id
}

func parseConversationID(value string) (kind, id string, ok bool) {
	kind, id, found := strings.Cut(value, ":")
	if !found || id == "" {
		return "", "", false
	}
	switch kind {
	case domain.SourceInvoice, domain.SourceOffer, domain.SourcePayment:
		return kind, id, true
	}
	return "", "", false
}

// MapGatewayStatus maps a gateway payment status to an invoice status.
func MapGatewayStatus(paymentStatus string) string {
	switch strings.ToUpper(strings.TrimSpace(paymentStatus)) {
	case gatewayclient.PaymentStatusSuccess:
		return domain.InvoiceStatusPaid
	case gatewayclient.PaymentStatusFailure:
		return domain.InvoiceStatusFailed
	default:
		return domain.InvoiceStatusPaymentPending
	}
}

// isReversal reports whether a gateway answer contradicts a local PAID
// state. A missing paid price is not treated as zero.
func isReversal(paymentStatus string, paidPrice *int64) bool {
	switch strings.ToUpper(strings.TrimSpace(paymentStatus)) {
	case gatewayclient.PaymentStatusFailure, gatewayclient.PaymentStatusCancelled, gatewayclient.PaymentStatusVoid:
		return true
	}
	return paidPrice != nil && *paidPrice == 0
}

type gatewayState struct {
	paymentID     string
	paymentStatus string
	paidPrice     *int64
}

// resolveGatewayState asks the gateway for the payment behind target. A
// known payment id is used directly; otherwise the checkout token is
// resolved and the payment id it yields is cached on the record.
func (s *Service) resolveGatewayState(ctx context.Context, target *paymentTarget, prefetched *gatewayclient.CheckoutResult) (*gatewayState, error) {
	gctx, cancel := s.gatewayContext(ctx)
	defer cancel()

	if target.paymentID != nil && *target.paymentID != "" {
		payment, err := s.gateway.RetrievePayment(gctx, *target.paymentID)
		if err != nil {
			return nil, gatewayError("retrieve payment", err)
		}
		return &gatewayState{
			paymentID:     payment.PaymentID,
			paymentStatus: payment.PaymentStatus,
			paidPrice:     parsePaidPrice(payment.PaidPrice),
		}, nil
	}

	result := prefetched
	if result == nil {
		if target.checkoutToken == nil || *target.checkoutToken == "" {
			return nil, nil
		}
		var err error
		result, err = s.gateway.RetrieveCheckout(gctx, *target.checkoutToken)
		if err != nil {
			return nil, gatewayError("retrieve checkout", err)
		}
	}

	if result.PaymentID != "" {
		if err := s.repo.SetGatewayPaymentID(ctx, target.kind, target.id, result.PaymentID); err != nil {
			log.Printf("level=warn component=payments msg=\"failed to cache gateway payment id\" kind=%s id=%s err=%v", target.kind, target.id, err)
		} else {
			paymentID := result.PaymentID
			target.paymentID = &paymentID
		}
	}
	return &gatewayState{
		paymentID:     result.PaymentID,
		paymentStatus: result.PaymentStatus,
		paidPrice:     parsePaidPrice(result.PaidPrice),
	}, nil
}

func parsePaidPrice(value string) *int64 {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	amount, err := gatewayclient.ParseAmount(value)
	if err != nil {
		return nil
	}
	return &amount
}

// reconcile brings target's stored status in line with the gateway.
// Concurrent reconciliations of the same checkout share one execution.
func (s *Service) reconcile(ctx context.Context, target *paymentTarget, prefetched *gatewayclient.CheckoutResult) (ReconcileResult, error) {
	key := conversationID(target.kind, target.id)
	if target.checkoutToken != nil && *target.checkoutToken != "" {
		key = *target.checkoutToken
	}
	v, err, _ := s.inflight.Do(key, func() (interface{}, error) {
		return s.reconcileOnce(ctx, target, prefetched)
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	return v.(ReconcileResult), nil
}

func (s *Service) reconcileOnce(ctx context.Context, target *paymentTarget, prefetched *gatewayclient.CheckoutResult) (ReconcileResult, error) {
	unchanged := ReconcileResult{Status: target.status}

	switch target.status {
	case domain.InvoiceStatusRefunded, domain.InvoiceStatusClosedUpfront:
		return unchanged, nil
	}

	state, err := s.resolveGatewayState(ctx, target, prefetched)
	if err != nil {
		return unchanged, err
	}
	if state == nil {
		return unchanged, nil
	}

	if target.status == domain.InvoiceStatusPaid {
		if !isReversal(state.paymentStatus, state.paidPrice) {
			return unchanged, nil
		}
		return s.applyChargeback(ctx, target)
	}

	mapped := MapGatewayStatus(state.paymentStatus)
	if target.kind == domain.SourceOffer && mapped != domain.InvoiceStatusPaid {
		return unchanged, nil
	}
	if mapped == target.status {
		return unchanged, nil
	}

	var paidAt *time.Time
	if mapped == domain.InvoiceStatusPaid {
		now := s.now()
		paidAt = &now
	}
	changed, err := s.repo.TransitionStatus(ctx, target.kind, target.id, mapped, paidAt)
	if err != nil {
		return unchanged, fmt.Errorf("failed to update %s status: %w", target.kind, err)
	}
	if !changed {
		current, err := s.loadTarget(ctx, target.kind, target.id)
		if err != nil {
			return unchanged, nil
		}
		return ReconcileResult{Status: current.status}, nil
	}

	target.status = mapped
	if paidAt != nil {
		target.paidAt = paidAt
		s.onPaid(ctx, target)
	}
	return ReconcileResult{Status: mapped, Changed: true}, nil
}

// applyChargeback reverses a PAID target the gateway no longer backs.
func (s *Service) applyChargeback(ctx context.Context, target *paymentTarget) (ReconcileResult, error) {
	unchanged := ReconcileResult{Status: target.status}
	if target.kind == domain.SourceOffer {
		log.Printf("level=warn component=payments msg=\"gateway reports reversal for paid upfront offer, manual review required\" offer_id=%s", target.id)
		return unchanged, nil
	}

	if err := s.repo.MarkRefunded(ctx, target.kind, target.id); err != nil {
		return unchanged, fmt.Errorf("failed to reverse %s: %w", target.kind, err)
	}
	if err := s.repo.DeletePayoutForSource(ctx, target.kind, target.id); err != nil {
		log.Printf("level=error component=payments msg=\"failed to delete payout after chargeback\" kind=%s id=%s err=%v", target.kind, target.id, err)
	}
	if err := s.reverseLedger(ctx, target); err != nil {
		log.Printf("level=error component=payments msg=\"failed to reverse ledger after chargeback\" kind=%s id=%s err=%v", target.kind, target.id, err)
	}
	log.Printf("level=warn component=payments msg=\"chargeback detected\" kind=%s id=%s", target.kind, target.id)

	if target.kind == domain.SourceInvoice {
		s.publishEvent(ctx, "lease.invoice.refunded", map[string]interface{}{
			"invoice_id":  target.id,
			"owner_id":    target.ownerID,
			"contract_id": target.contractID,
			"reason":      "chargeback",
		})
	}
	return ReconcileResult{Status: domain.InvoiceStatusRefunded, Changed: true}, nil
}

// onPaid runs the side effects of a PAID transition. The status is already
// persisted; failures here are logged and recovered by the payout sweep.
func (s *Service) onPaid(ctx context.Context, target *paymentTarget) {
	if target.kind == domain.SourceOffer && target.contractID != nil {
		closed, err := s.repo.CloseOpenInvoices(ctx, *target.contractID, target.months)
		if err != nil {
			log.Printf("level=error component=payments msg=\"failed to close invoices for upfront offer\" offer_id=%s err=%v", target.id, err)
		} else {
			log.Printf("level=info component=payments msg=\"closed invoices for upfront offer\" offer_id=%s closed=%d", target.id, closed)
		}
	}

	if err := s.settlePaid(ctx, target); err != nil {
		log.Printf("level=error component=payments msg=\"failed to settle paid target\" kind=%s id=%s err=%v", target.kind, target.id, err)
	}

	switch target.kind {
	case domain.SourceInvoice:
		s.publishEvent(ctx, "lease.invoice.paid", map[string]interface{}{
			"invoice_id":  target.id,
			"owner_id":    target.ownerID,
			"contract_id": target.contractID,
			"paid_at":     target.paidAt,
		})
	case domain.SourceOffer:
		s.publishEvent(ctx, "lease.offer.paid", map[string]interface{}{
			"offer_id":    target.id,
			"owner_id":    target.ownerID,
			"contract_id": target.contractID,
			"months":      target.months,
			"paid_at":     target.paidAt,
		})
	}
}

// CheckInvoiceStatus reconciles an invoice on request of a contract party.
func (s *Service) CheckInvoiceStatus(ctx context.Context, caller Caller, ownerUID, contractID, invoiceID string) (ReconcileResult, error) {
	contract, err := s.loadContract(ctx, ownerUID, contractID)
	if err != nil {
		return ReconcileResult{}, err
	}
	if err := authorizeParty(contract, caller); err != nil {
		return ReconcileResult{}, err
	}
	invoice, err := s.repo.GetInvoice(ctx, contract.ID, invoiceID)
	if err != nil {
		return ReconcileResult{}, err
	}
	return s.reconcile(ctx, invoiceTarget(invoice), nil)
}

// HandleCallback processes a gateway redirect for a checkout token and
// returns the outcome for the result page. It never fails; internal errors
// are reported as CallbackError.
func (s *Service) HandleCallback(ctx context.Context, token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return CallbackError
	}

	gctx, cancel := s.gatewayContext(ctx)
	checkout, err := s.gateway.RetrieveCheckout(gctx, token)
	cancel()
	if err != nil {
		log.Printf("level=warn component=callback msg=\"failed to retrieve checkout\" err=%v", err)
		checkout = nil
	}

	var target *paymentTarget
	if checkout != nil {
		if kind, id, ok := parseConversationID(checkout.ConversationID); ok {
			candidate, err := s.loadTarget(ctx, kind, id)
			if err == nil && candidate.checkoutToken != nil && *candidate.checkoutToken == token {
				target = candidate
			}
		}
	}
	if target == nil {
		target, err = s.findTargetByToken(ctx, token)
		if err != nil {
			if isNotFound(err) {
				log.Printf("level=warn component=callback msg=\"no record owns checkout token\"")
			} else {
				log.Printf("level=error component=callback msg=\"token lookup failed\" err=%v", err)
			}
			return CallbackError
		}
	}

	result, err := s.reconcile(ctx, target, checkout)
	if err != nil {
		log.Printf("level=error component=callback msg=\"reconciliation failed\" kind=%s id=%s err=%v", target.kind, target.id, err)
		return CallbackError
	}
	return callbackOutcome(result.Status)
}

func callbackOutcome(status string) string {
	switch status {
	case domain.InvoiceStatusPaid, domain.InvoiceStatusClosedUpfront:
		return CallbackSuccess
	case domain.InvoiceStatusFailed, domain.InvoiceStatusRefunded:
		return CallbackFailed
	default:
		return CallbackPending
	}
}
