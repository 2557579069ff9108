package answer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient posts frames to the answering service as base64 JPEG and
// returns the reply body as text. Timeouts and non-2xx replies surface as
// errors; there is no retry.
type HTTPClient struct {
	url  string
	http *http.Client
}

func NewHTTPClient(url string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{url: url, http: &http.Client{Timeout: timeout}}
}

type analyzeRequest struct {
	Image string `json:"image"`
}

func (c *HTTPClient) Analyze(ctx context.Context, frame []byte) (string, error) {
	body, err := json.Marshal(analyzeRequest{Image: base64.StdEncoding.EncodeToString(frame)})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("answering service returned %s", resp.Status)
	}
	reply, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return string(reply), nil
}
