package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type Payer struct {
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	DocumentType   string `json:"document_type,omitempty"`
	DocumentNumber string `json:"document_number"`
}

type IssueRequest struct {
	Reference       string      `json:"reference"`
	Amount          json.Number `json:"amount"`
	Currency        string      `json:"currency"`
	DueDate         string      `json:"due_date"`
	Payer           Payer       `json:"payer"`
	NotificationURL string      `json:"notification_url,omitempty"`
}

// Ticket is a boleto issued by the provider.
type Ticket struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Barcode   string `json:"barcode"`
	URL       string `json:"url"`
	DueDate   string `json:"due_date"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, httpClient: httpClient}
}

func (c *Client) Issue(ctx context.Context, in IssueRequest) (*Ticket, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tickets", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ticket issuer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var t Ticket
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("malformed ticket response: %w", err)
	}
	if t.URL == "" || t.Barcode == "" {
		return nil, fmt.Errorf("ticket response for %s without url or barcode", in.Reference)
	}
	return &t, nil
}
