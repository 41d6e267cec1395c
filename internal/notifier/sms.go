package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/naruebet/wallet-auth-api/internal/config"
)

// SMSNotifier delivers codes through an HTTP SMS gateway.
type SMSNotifier struct {
	cfg    config.SMSConfig
	client *http.Client
}

// NewSMSNotifier creates a Notifier that posts messages to the configured
// gateway.
func NewSMSNotifier(cfg config.SMSConfig) *SMSNotifier {
	return &SMSNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type smsRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

func (n *SMSNotifier) SendVerificationCode(ctx context.Context, destination, code string) error {
	payload, err := json.Marshal(smsRequest{
		To:      destination,
		From:    n.cfg.Sender,
		Message: fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.GatewayURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}

	return nil
}
