package cybersource

import (
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
)

var decisionStatuses = map[string]status.Status{
	DecisionAccept: status.Authorized,
	DecisionReview: status.PendingAuthorize,
	DecisionReject: status.Rejected,
	DecisionError:  status.Rejected,
}

var reasonCodeDetails = map[string]status.Detail{
	"100": status.DetailApproved,
	"101": status.DetailInvalidData,
	"102": status.DetailInvalidData,
	"150": status.DetailGatewayError,
	"151": status.DetailGatewayError,
	"152": status.DetailGatewayError,
	"201": status.DetailCallForAuthorize,
	"202": status.DetailExpired,
	"203": status.DetailRejected,
	"204": status.DetailInsufficientFunds,
	"205": status.DetailFraud,
	"207": status.DetailGatewayError,
	"208": status.DetailCardDisabled,
	"210": status.DetailInsufficientFunds,
	"211": status.DetailInvalidCard,
	"221": status.DetailFraud,
	"230": status.DetailInvalidCard,
	"233": status.DetailRejected,
	"236": status.DetailGatewayError,
	"400": status.DetailFraud,
	"480": status.DetailPendingReview,
	"481": status.DetailFraud,
	"520": status.DetailRejected,
}

// retryableReasonCodes are processor side failures where a fresh attempt may succeed.
var retryableReasonCodes = map[string]bool{
	"150": true,
	"151": true,
	"152": true,
	"207": true,
	"236": true,
}

// Case management decisions sent by the order status IPN.
var caseDecisionStatuses = map[string]status.Status{
	DecisionAccept: status.Authorized,
	DecisionReject: status.Rejected,
}

var caseDecisionDetails = map[string]status.Detail{
	DecisionAccept: status.DetailApproved,
	DecisionReject: status.DetailFraud,
}

func decisionStatus(decision string) (status.Status, error) {
	if st, ok := decisionStatuses[decision]; ok {
		return st, nil
	}
	return "", &gateway.NoMatchingStatusError{UnknownStatus: decision}
}

func reasonCodeDetail(code string) (status.Detail, error) {
	if d, ok := reasonCodeDetails[code]; ok {
		return d, nil
	}
	return "", &gateway.NoMatchingStatusError{UnknownStatus: code}
}
