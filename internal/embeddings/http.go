package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrBatchTooLarge is returned when Embed receives more texts than the
// driver accepts in one call.
var ErrBatchTooLarge = errors.New("embedding batch too large")

func checkBatch(n, max int) error {
	if n > max {
		return fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, n, max)
	}
	return nil
}

// post sends in as JSON and decodes a 200 response into out.
func post(ctx context.Context, client *http.Client, kind, url string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s embeddings: http request: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s embeddings API returned %d: %s", kind, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s embeddings: decode response: %w", kind, err)
	}
	return nil
}
