package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultSMSURL is the Africa's Talking production messaging endpoint.
const DefaultSMSURL = "https://api.africastalking.com/version1/messaging"

// SMSConfig describes an Africa's Talking style bulk SMS endpoint.
type SMSConfig struct {
	Username string
	APIKey   string
	URL      string
	SenderID string
}

type smsResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			StatusCode int    `json:"statusCode"`
			Number     string `json:"number"`
			Status     string `json:"status"`
			MessageID  string `json:"messageId"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

// SMSTransport posts a form-encoded message to the SMS gateway.
type SMSTransport struct {
	cfg    SMSConfig
	client *http.Client
}

func NewSMSTransport(cfg SMSConfig, client *http.Client) *SMSTransport {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &SMSTransport{cfg: cfg, client: client}
}

func (*SMSTransport) Name() string { return "sms" }

func (t *SMSTransport) Send(ctx context.Context, msg Message) error {
	if msg.To.Phone == "" {
		return ErrNoAddress
	}

	data := url.Values{}
	data.Set("username", t.cfg.Username)
	data.Set("to", msg.To.Phone)
	data.Set("message", msg.Body)
	if t.cfg.SenderID != "" {
		data.Set("from", t.cfg.SenderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("create SMS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apikey", t.cfg.APIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("SMS send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SMS API returned status %d", resp.StatusCode)
	}

	var smsResp smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&smsResp); err != nil {
		return fmt.Errorf("decode SMS response: %w", err)
	}
	for _, r := range smsResp.SMSMessageData.Recipients {
		if r.StatusCode >= 400 {
			return fmt.Errorf("SMS rejected for %s: %s", r.Number, r.Status)
		}
	}
	return nil
}
