package cybersource

import "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"

// ResponseHandler joins the decision manager reply with the authorization reply of one createPayment call.
type ResponseHandler struct {
	DecisionManager *ReplyMessage
	Authorization   *ReplyMessage
	// MockedAuthorization is set when the review policy replaced the authorization call.
	MockedAuthorization bool
}

// SkipAuthorization reports whether the fraud screen already settled the payment.
func (h *ResponseHandler) SkipAuthorization() bool {
	d := h.DecisionManager.Decision
	return d == DecisionReject || d == DecisionError
}

func (h *ResponseHandler) InReview() bool {
	return h.DecisionManager.Decision == DecisionReview
}

// NeedsReviewCancel reports a case left open in the review queue for a payment that was not authorized.
func (h *ResponseHandler) NeedsReviewCancel() bool {
	return h.InReview() && h.Authorization != nil && !h.Authorization.Accepted()
}

// Decision is the combined decision. An accepted authorization waiting for review stays in REVIEW.
func (h *ResponseHandler) Decision() string {
	if h.Authorization == nil {
		return h.DecisionManager.Decision
	}
	if h.InReview() && h.Authorization.Accepted() {
		return DecisionReview
	}
	return h.Authorization.Decision
}

func (h *ResponseHandler) ReasonCode() string {
	if h.Authorization == nil {
		return h.DecisionManager.ReasonCode
	}
	if h.InReview() && h.Authorization.Accepted() {
		return "480"
	}
	return h.Authorization.ReasonCode
}

func (h *ResponseHandler) GatewayReference() string {
	if h.Authorization != nil && h.Authorization.RequestID != "" {
		return h.Authorization.RequestID
	}
	return h.DecisionManager.RequestID
}

func (h *ResponseHandler) Metadata() map[string]any {
	meta := map[string]any{
		metaDecisionRequestID:  h.DecisionManager.RequestID,
		payment.MetaDecision:   h.DecisionManager.Decision,
		payment.MetaReasonCode: h.ReasonCode(),
	}
	if h.Authorization != nil && !h.MockedAuthorization {
		meta[payment.MetaAuthRequestID] = h.Authorization.RequestID
	}
	if h.MockedAuthorization {
		meta["mockedAuthorization"] = true
	}
	return meta
}

func (h *ResponseHandler) PaymentInformation() map[string]any {
	info := map[string]any{}
	if h.DecisionManager.AFSReply != nil {
		info["afsResult"] = h.DecisionManager.AFSReply.AFSResult
	}
	if h.Authorization == nil || h.Authorization.AuthReply == nil {
		return info
	}
	reply := h.Authorization.AuthReply
	info["authorizationCode"] = reply.AuthorizationCode
	info["avsCode"] = reply.AVSCode
	info["cvCode"] = reply.CVCode
	info["processorResponse"] = reply.ProcessorResponse
	return info
}
