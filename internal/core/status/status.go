package status

// Status is the lifecycle state shared by payments and payment orders.
type Status string

const (
	Creating            Status = "creating"
	PendingClientAction Status = "pendingClientAction"
	PendingAuthorize    Status = "pendingAuthorize"
	Authorized          Status = "authorized"
	PendingCapture      Status = "pendingCapture"
	Successful          Status = "successful"
	PendingCancel       Status = "pendingCancel"
	Cancelled           Status = "cancelled"
	Rejected            Status = "rejected"
	Refunded            Status = "refunded"
	PartialRefund       Status = "partialRefund"
	ChargedBack         Status = "chargedBack"
	InMediation         Status = "inMediation"
)

var allStatuses = []Status{
	Creating, PendingClientAction, PendingAuthorize, Authorized, PendingCapture, Successful,
	PendingCancel, Cancelled, Rejected, Refunded, PartialRefund, ChargedBack, InMediation,
}

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	for _, st := range allStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// Parse returns the Status named by s.
func Parse(s string) (Status, bool) {
	st := Status(s)
	return st, st.Valid()
}

// Detail is the reason code stored alongside every status write.
type Detail string

const (
	DetailUnknown           Detail = "unknown"
	DetailApproved          Detail = "approved"
	DetailPending           Detail = "pending"
	DetailPendingReview     Detail = "pendingReview"
	DetailPendingPayment    Detail = "pendingPayment"
	DetailInsufficientFunds Detail = "insufficientFunds"
	DetailCallForAuthorize  Detail = "callForAuthorize"
	DetailFraud             Detail = "fraud"
	DetailInvalidCard       Detail = "invalidCard"
	DetailInvalidData       Detail = "invalidData"
	DetailCardDisabled      Detail = "cardDisabled"
	DetailExpired           Detail = "expired"
	DetailDuplicatedPayment Detail = "duplicatedPayment"
	DetailRejected          Detail = "rejected"
	DetailByMerchant        Detail = "byMerchant"
	DetailByGateway         Detail = "byGateway"
	DetailManualRefund      Detail = "manualRefund"
	DetailChargeBack        Detail = "chargeBack"
	DetailGatewayError      Detail = "gatewayError"
)

func (d Detail) String() string {
	return string(d)
}
