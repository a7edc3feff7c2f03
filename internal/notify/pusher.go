package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/model"
)

const defaultPushEndpoint = "https://exp.host/--/api/v2/push/send"

// HTTPPusher posts one push message per device token to the platform push
// gateway. The gateway owns actual wire delivery to the device.
type HTTPPusher struct {
	endpoint string
	client   *http.Client
}

func NewHTTPPusher(endpoint string) *HTTPPusher {
	if endpoint == "" {
		endpoint = defaultPushEndpoint
	}
	return &HTTPPusher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type pushRequest struct {
	To    string                 `json:"to"`
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Sound string                 `json:"sound"`
	Data  model.NotificationData `json:"data"`
}

func (p *HTTPPusher) Push(ctx context.Context, token, title, body string, data model.NotificationData) error {
	payload, err := json.Marshal(pushRequest{
		To:    token,
		Title: title,
		Body:  body,
		Sound: "default",
		Data:  data,
	})
	if err != nil {
		return fmt.Errorf("marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}
	return nil
}
