package cybersource

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"

	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
)

// caseManagementOrderStatus is the body case management posts when a reviewer settles cases.
type caseManagementOrderStatus struct {
	XMLName    xml.Name     `xml:"CaseManagementOrderStatus"`
	MerchantID string       `xml:"MerchantID,attr"`
	Updates    []caseUpdate `xml:"Update"`
}

type caseUpdate struct {
	MerchantReferenceNumber string `xml:"MerchantReferenceNumber,attr" json:"merchant_reference_number"`
	RequestID               string `xml:"RequestID,attr" json:"request_id"`
	OriginalDecision        string `xml:"OriginalDecision" json:"original_decision"`
	NewDecision             string `xml:"NewDecision" json:"new_decision"`
	Reviewer                string `xml:"Reviewer" json:"reviewer,omitempty"`
	ReviewerComments        string `xml:"ReviewerComments" json:"reviewer_comments,omitempty"`
	Queue                   string `xml:"Queue" json:"queue,omitempty"`
	Profile                 string `xml:"Profile" json:"profile,omitempty"`
}

var errEmptyContent = errors.New("cybersource ipn without content")

func extractContent(body []byte, query url.Values) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte("<")) {
		return trimmed, nil
	}
	if form, err := url.ParseQuery(string(trimmed)); err == nil {
		if content := form.Get("content"); content != "" {
			return []byte(content), nil
		}
	}
	if content := query.Get("content"); content != "" {
		return []byte(content), nil
	}
	return nil, errEmptyContent
}

func (a *Adapter) ParseIpnPayload(ctx context.Context, body []byte, query url.Values) ([]gateway.IpnRecord, error) {
	content, err := extractContent(body, query)
	if err != nil {
		return nil, gateway.Malformed(err)
	}

	var doc caseManagementOrderStatus
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, gateway.Malformed(fmt.Errorf("invalid case management xml: %w", err))
	}
	if len(doc.Updates) == 0 {
		return nil, &gateway.SkipIpnError{Reason: "case management notification without updates"}
	}

	records := make([]gateway.IpnRecord, 0, len(doc.Updates))
	for _, u := range doc.Updates {
		if u.MerchantReferenceNumber == "" {
			return nil, gateway.Malformed(errors.New("case management update without MerchantReferenceNumber"))
		}
		raw, err := json.Marshal(u)
		if err != nil {
			return nil, err
		}
		records = append(records, gateway.IpnRecord{ClientReference: u.MerchantReferenceNumber, Payload: raw})
	}
	return records, nil
}

func decodeUpdate(record gateway.IpnRecord) (caseUpdate, error) {
	var u caseUpdate
	if err := json.Unmarshal(record.Payload, &u); err != nil {
		return u, fmt.Errorf("invalid case update payload: %w", err)
	}
	return u, nil
}

// TranslateIpnStatus keeps a declined authorization rejected even when the reviewer accepts the case.
func (a *Adapter) TranslateIpnStatus(record gateway.IpnRecord, p *payment.Payment) (status.Status, error) {
	u, err := decodeUpdate(record)
	if err != nil {
		return "", err
	}
	st, ok := caseDecisionStatuses[u.NewDecision]
	if !ok {
		return "", &gateway.NoMatchingStatusError{UnknownStatus: u.NewDecision}
	}
	if st == status.Authorized && p != nil && p.Status == status.Rejected {
		return status.Rejected, nil
	}
	return st, nil
}

func (a *Adapter) TranslateIpnStatusDetail(record gateway.IpnRecord, p *payment.Payment) (status.Detail, error) {
	u, err := decodeUpdate(record)
	if err != nil {
		return "", err
	}
	d, ok := caseDecisionDetails[u.NewDecision]
	if !ok {
		return "", &gateway.NoMatchingStatusError{UnknownStatus: u.NewDecision}
	}
	if u.NewDecision == DecisionAccept && p != nil && p.Status == status.Rejected {
		return p.StatusDetail, nil
	}
	return d, nil
}
