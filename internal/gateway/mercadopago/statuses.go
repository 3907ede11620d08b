package mercadopago

import "github.com/frahmantamala/payment-orchestrator/internal/core/status"

var statuses = map[string]status.Status{
	"pending":      status.PendingAuthorize,
	"in_process":   status.PendingAuthorize,
	"authorized":   status.Authorized,
	"approved":     status.Successful,
	"in_mediation": status.InMediation,
	"rejected":     status.Rejected,
	"cancelled":    status.Cancelled,
	"refunded":     status.Refunded,
	"charged_back": status.ChargedBack,
}

var statusDetails = map[string]status.Detail{
	"accredited":                           status.DetailApproved,
	"pending_capture":                      status.DetailApproved,
	"pending_contingency":                  status.DetailPending,
	"pending_review_manual":                status.DetailPendingReview,
	"pending_waiting_payment":              status.DetailPendingPayment,
	"cc_rejected_insufficient_amount":      status.DetailInsufficientFunds,
	"cc_rejected_call_for_authorize":       status.DetailCallForAuthorize,
	"cc_rejected_high_risk":                status.DetailFraud,
	"cc_rejected_blacklist":                status.DetailFraud,
	"cc_rejected_bad_filled_card_number":   status.DetailInvalidCard,
	"cc_rejected_bad_filled_security_code": status.DetailInvalidData,
	"cc_rejected_bad_filled_date":          status.DetailInvalidData,
	"cc_rejected_bad_filled_other":         status.DetailInvalidData,
	"cc_rejected_invalid_installments":     status.DetailInvalidData,
	"cc_rejected_card_disabled":            status.DetailCardDisabled,
	"cc_rejected_duplicated_payment":       status.DetailDuplicatedPayment,
	"cc_rejected_max_attempts":             status.DetailRejected,
	"cc_rejected_other_reason":             status.DetailRejected,
	"cc_rejected_card_error":               status.DetailGatewayError,
	"expired":                              status.DetailExpired,
	"by_collector":                         status.DetailByMerchant,
	"by_admin":                             status.DetailByGateway,
	"by_payer":                             status.DetailByMerchant,
	"refunded":                             status.DetailByMerchant,
	"settled":                              status.DetailChargeBack,
	"reimbursed":                           status.DetailChargeBack,
}
