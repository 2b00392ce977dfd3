package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/tow-dispatch/internal/models"
)

// PushNotifier posts FCM-style data messages so the handset rings and vibrates
// until the matching stop message arrives.
type PushNotifier struct {
	Endpoint string
	Key      string
	Token    string // device registration token
	Client   *http.Client
}

func NewPushNotifier(endpoint, key, token string) *PushNotifier {
	return &PushNotifier{Endpoint: endpoint, Key: key, Token: token, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (p *PushNotifier) PlayAlert(ctx context.Context, o models.Offer) error {
	return p.send(ctx, map[string]interface{}{
		"type":       "tow_request_alert",
		"offer_id":   o.ID,
		"pickup":     o.PickupAddress,
		"base_price": o.BasePrice.StringFixed(2),
		"sound":      "notification",
		"vibrate_ms": 1000,
	})
}

func (p *PushNotifier) StopAlert(ctx context.Context, offerID string) error {
	return p.send(ctx, map[string]interface{}{"type": "tow_request_alert_stop", "offer_id": offerID})
}

func (p *PushNotifier) send(ctx context.Context, data map[string]interface{}) error {
	body := map[string]interface{}{"message": map[string]interface{}{"token": p.Token, "data": data}}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.Key != "" {
		req.Header.Set("Authorization", "Bearer "+p.Key)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}
