package cybersource

import "math/rand/v2"

// ReviewPolicy decides whether a REVIEW decision may reach authorization while the case waits in manual review.
// Draws above Percentage get a mocked rejection instead.
type ReviewPolicy struct {
	Percentage float64
	Rand       func() float64
}

func (p ReviewPolicy) AllowsManualReview() bool {
	draw := p.Rand
	if draw == nil {
		draw = rand.Float64
	}
	return draw()*100 <= p.Percentage
}

// mockedRejection stands in for an authorization that was never sent.
func mockedRejection(dm *ReplyMessage) *ReplyMessage {
	return &ReplyMessage{
		MerchantReferenceCode: dm.MerchantReferenceCode,
		Decision:              DecisionReject,
		ReasonCode:            "481",
	}
}
