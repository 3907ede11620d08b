package cybersource_test

import (
	"context"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway/cybersource"
)

const orderStatusXML = `<?xml version="1.0" encoding="UTF-8"?>
<CaseManagementOrderStatus xmlns="http://reports.cybersource.com/reports/cmos/1.0" MerchantID="acme" Name="Case Management Order Status" Date="2024-05-10 12:00:00 GMT" Version="1.1">
  <Update MerchantReferenceNumber="ORD-1_0_0" RequestID="dm-1">
    <OriginalDecision>REVIEW</OriginalDecision>
    <NewDecision>ACCEPT</NewDecision>
    <Reviewer>jdoe</Reviewer>
  </Update>
  <Update MerchantReferenceNumber="ORD-2_0_0" RequestID="dm-2">
    <OriginalDecision>REVIEW</OriginalDecision>
    <NewDecision>REJECT</NewDecision>
  </Update>
</CaseManagementOrderStatus>`

var _ = Describe("Case management IPN", func() {
	var adapter *cybersource.Adapter

	BeforeEach(func() {
		adapter = cybersource.NewAdapter(newFakeClient(), cybersource.Options{})
	})

	It("extracts one record per update from the form content", func() {
		body := []byte(url.Values{"content": {orderStatusXML}}.Encode())

		records, err := adapter.ParseIpnPayload(context.Background(), body, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(records[0].ClientReference).To(Equal("ORD-1_0_0"))
		Expect(records[1].ClientReference).To(Equal("ORD-2_0_0"))
	})

	It("accepts a raw xml body", func() {
		records, err := adapter.ParseIpnPayload(context.Background(), []byte(orderStatusXML), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
	})

	It("skips notifications without updates", func() {
		_, err := adapter.ParseIpnPayload(context.Background(), []byte(`<CaseManagementOrderStatus MerchantID="acme"></CaseManagementOrderStatus>`), nil)
		Expect(gateway.IsSkipIpn(err)).To(BeTrue())
	})

	It("fails on garbage", func() {
		_, err := adapter.ParseIpnPayload(context.Background(), []byte("content=not-xml"), nil)
		Expect(err).To(HaveOccurred())
		Expect(gateway.IsSkipIpn(err)).To(BeFalse())
	})

	Describe("translation", func() {
		var records []gateway.IpnRecord

		BeforeEach(func() {
			var err error
			records, err = adapter.ParseIpnPayload(context.Background(), []byte(orderStatusXML), nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("authorizes an accepted review", func() {
			p := &payment.Payment{Status: status.PendingAuthorize}
			st, err := adapter.TranslateIpnStatus(records[0], p)
			Expect(err).NotTo(HaveOccurred())
			Expect(st).To(Equal(status.Authorized))
		})

		It("keeps a declined payment rejected when the reviewer accepts", func() {
			p := &payment.Payment{Status: status.Rejected, StatusDetail: status.DetailInsufficientFunds}
			st, err := adapter.TranslateIpnStatus(records[0], p)
			Expect(err).NotTo(HaveOccurred())
			Expect(st).To(Equal(status.Rejected))

			d, err := adapter.TranslateIpnStatusDetail(records[0], p)
			Expect(err).NotTo(HaveOccurred())
			Expect(d).To(Equal(status.DetailInsufficientFunds))
		})

		It("rejects a rejected review as fraud", func() {
			p := &payment.Payment{Status: status.PendingAuthorize}
			st, err := adapter.TranslateIpnStatus(records[1], p)
			Expect(err).NotTo(HaveOccurred())
			Expect(st).To(Equal(status.Rejected))

			d, err := adapter.TranslateIpnStatusDetail(records[1], p)
			Expect(err).NotTo(HaveOccurred())
			Expect(d).To(Equal(status.DetailFraud))
		})
	})
})
