package cybersource

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
)

// Client runs one SOAP transaction against the processor.
type Client interface {
	RunTransaction(ctx context.Context, req *RequestMessage) (*ReplyMessage, error)
}

type soapClient struct {
	endpoint       string
	merchantID     string
	transactionKey string
	httpClient     *http.Client
}

func NewClient(endpoint, merchantID, transactionKey string, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &soapClient{
		endpoint:       endpoint,
		merchantID:     merchantID,
		transactionKey: transactionKey,
		httpClient:     httpClient,
	}
}

func (c *soapClient) RunTransaction(ctx context.Context, req *RequestMessage) (*ReplyMessage, error) {
	req.Xmlns = transactionNamespace
	req.MerchantID = c.merchantID

	env := requestEnvelope{SoapNS: soapNamespace}
	env.Security.WsseNS = wsseNamespace
	env.Security.UsernameToken.Username = c.merchantID
	env.Security.UsernameToken.Password.Type = passwordTextType
	env.Security.UsernameToken.Password.Value = c.transactionKey
	env.Body.Request = req

	payload, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode soap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(append([]byte(xml.Header), payload...)))
	if err != nil {
		return nil, fmt.Errorf("failed to build soap request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
	httpReq.Header.Set("SOAPAction", "runTransaction")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("soap call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read soap response: %w", err)
	}

	var out responseEnvelope
	if err := xml.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("malformed soap response (http %d): %w", resp.StatusCode, err)
	}
	if out.Body.Fault != nil {
		return nil, fmt.Errorf("soap fault %s: %s", out.Body.Fault.Code, out.Body.Fault.String)
	}
	if out.Body.Reply == nil {
		return nil, fmt.Errorf("soap response without replyMessage (http %d)", resp.StatusCode)
	}
	return out.Body.Reply, nil
}
