package cybersource_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payment-orchestrator/internal/gateway/cybersource"
)

const replyEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <c:replyMessage xmlns:c="urn:schemas-cybersource-com:transaction-data-1.155">
      <c:merchantReferenceCode>ORD-1_0_0</c:merchantReferenceCode>
      <c:requestID>6012345678</c:requestID>
      <c:decision>ACCEPT</c:decision>
      <c:reasonCode>100</c:reasonCode>
      <c:ccAuthReply>
        <c:reasonCode>100</c:reasonCode>
        <c:amount>159.90</c:amount>
        <c:authorizationCode>831000</c:authorizationCode>
      </c:ccAuthReply>
    </c:replyMessage>
  </soap:Body>
</soap:Envelope>`

const faultEnvelope = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body><soap:Fault><faultcode>wsse:FailedCheck</faultcode><faultstring>Security Data : UsernameToken authentication failed.</faultstring></soap:Fault></soap:Body>
</soap:Envelope>`

var _ = Describe("SOAP client", func() {
	var (
		server   *httptest.Server
		received string
		response string
	)

	BeforeEach(func() {
		response = replyEnvelope
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			received = string(body)
			w.Header().Set("Content-Type", "text/xml")
			_, _ = w.Write([]byte(response))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("sends a ws-security envelope and decodes the reply", func() {
		client := cybersource.NewClient(server.URL, "acme", "secret-key", server.Client())

		reply, err := client.RunTransaction(context.Background(), &cybersource.RequestMessage{
			MerchantReferenceCode: "ORD-1_0_0",
			AuthService:           &cybersource.Service{Run: "true"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.Decision).To(Equal(cybersource.DecisionAccept))
		Expect(reply.RequestID).To(Equal("6012345678"))
		Expect(reply.AuthReply.AuthorizationCode).To(Equal("831000"))

		Expect(received).To(ContainSubstring("<wsse:Username>acme</wsse:Username>"))
		Expect(received).To(ContainSubstring("secret-key"))
		Expect(received).To(ContainSubstring(`<ccAuthService run="true">`))
		Expect(strings.Count(received, "<merchantID>acme</merchantID>")).To(Equal(1))
	})

	It("turns soap faults into errors", func() {
		response = faultEnvelope
		client := cybersource.NewClient(server.URL, "acme", "wrong", server.Client())

		_, err := client.RunTransaction(context.Background(), &cybersource.RequestMessage{MerchantReferenceCode: "x"})
		Expect(err).To(MatchError(ContainSubstring("UsernameToken authentication failed")))
	})

	It("rejects malformed bodies", func() {
		response = "<html>bad gateway"
		client := cybersource.NewClient(server.URL, "acme", "k", server.Client())

		_, err := client.RunTransaction(context.Background(), &cybersource.RequestMessage{MerchantReferenceCode: "x"})
		Expect(err).To(HaveOccurred())
	})
})
