package whatsapp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"refhub/entity"
	"refhub/lib/sl"
)

const defaultBaseUrl = "https://api.callmebot.com/whatsapp.php"

// Client sends WhatsApp messages through the CallMeBot gateway. The API is a
// bare GET with phone, text and apikey query parameters.
type Client struct {
	hc      *http.Client
	baseUrl string
	log     *slog.Logger
}

func NewClient(baseUrl string, log *slog.Logger) *Client {
	if baseUrl == "" {
		baseUrl = defaultBaseUrl
	}
	return &Client{
		hc:      &http.Client{Timeout: 10 * time.Second},
		baseUrl: baseUrl,
		log:     log.With(sl.Module("whatsapp")),
	}
}

func (c *Client) Send(ctx context.Context, channel entity.Channel, text string) error {
	log := c.log.With(sl.Secret("phone", channel.Phone))

	t1 := time.Now()
	defer func() {
		log.Debug("callmebot request completed",
			slog.String("duration", fmt.Sprintf("%.3fms", float64(time.Since(t1))/float64(time.Millisecond))))
	}()

	q := url.Values{}
	q.Set("phone", channel.Phone)
	q.Set("text", text)
	q.Set("apikey", channel.ApiKey)
	endpoint := fmt.Sprintf("%s?%s", c.baseUrl, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("callmebot request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("callmebot %s: %s", resp.Status, body)
	}
	return nil
}
