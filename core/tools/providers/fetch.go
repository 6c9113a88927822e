package providers

import (
	"context"
	"fmt"
	"io"
)

// FetchPage retrieves the raw content of one page, capped at
// [maxResponseBytes]. It is the fetcher used by the search content extractor.
func (c *Client) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	var data []byte
	err := c.get(ctx, pageURL, func(body io.Reader) error {
		var readErr error
		data, readErr = io.ReadAll(body)
		if readErr != nil {
			return fmt.Errorf("failed to read page body: %w", readErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
