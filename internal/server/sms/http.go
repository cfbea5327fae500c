package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

type gatewayMessage struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// HTTPSender posts messages to an SMS gateway. Any 2xx answer counts as
// delivered.
type HTTPSender struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTPSender validates endpoint. A nil client means http.DefaultClient.
func NewHTTPSender(endpoint, token string, client *http.Client) (*HTTPSender, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("sms gateway url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("sms gateway url must be http or https, got %q", u.Scheme)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSender{endpoint: endpoint, token: token, client: client}, nil
}

func (s *HTTPSender) Send(ctx context.Context, code, phoneNumber string) (bool, error) {
	body, err := json.Marshal(gatewayMessage{To: phoneNumber, Message: MessageText(code)})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("sms gateway: unexpected status %d", resp.StatusCode)
	}
	return true, nil
}
