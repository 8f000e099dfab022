// Package mailer provides email delivery implementations behind the
// protocol.Mailer interface.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cadencehq/cadence/pkg/protocol"
)

const postmarkAPIURL = "https://api.postmarkapp.com/email"

// Postmark delivers through the Postmark transactional email API with
// open and link tracking enabled.
type Postmark struct {
	serverToken string
	fromEmail   string
	apiURL      string
	client      *http.Client
}

func NewPostmark(serverToken, fromEmail string) (*Postmark, error) {
	if serverToken == "" {
		return nil, errors.New("postmark server token is required")
	}

	if fromEmail == "" {
		return nil, errors.New("postmark from email is required")
	}

	return &Postmark{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		apiURL:      postmarkAPIURL,
		client:      &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// WithAPIURL overrides the API endpoint, for tests.
func (p *Postmark) WithAPIURL(apiURL string) *Postmark {
	p.apiURL = apiURL

	return p
}

type postmarkRequest struct {
	From          string            `json:"From"`
	To            string            `json:"To"`
	Subject       string            `json:"Subject"`
	HTMLBody      string            `json:"HtmlBody"`
	TextBody      string            `json:"TextBody,omitempty"`
	MessageStream string            `json:"MessageStream"`
	TrackOpens    bool              `json:"TrackOpens"`
	TrackLinks    string            `json:"TrackLinks"`
	Metadata      map[string]string `json:"Metadata,omitempty"`
}

type postmarkResponse struct {
	MessageID string `json:"MessageID"`
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

func (p *Postmark) Send(ctx context.Context, message protocol.EmailMessage) (string, error) {
	payload, err := json.Marshal(postmarkRequest{
		From:          p.fromEmail,
		To:            message.To,
		Subject:       message.Subject,
		HTMLBody:      message.HTMLBody,
		TextBody:      message.TextBody,
		MessageStream: "outbound",
		TrackOpens:    true,
		TrackLinks:    "HtmlAndText",
		Metadata:      message.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal postmark request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create postmark request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", p.serverToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("postmark request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read postmark response: %w", err)
	}

	var parsed postmarkResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode postmark response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || parsed.ErrorCode != 0 {
		return "", fmt.Errorf("postmark rejected the message (status %d, code %d): %s",
			resp.StatusCode, parsed.ErrorCode, parsed.Message)
	}

	return parsed.MessageID, nil
}
