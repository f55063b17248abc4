package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mcservers/playersessions/config"
	appErrors "github.com/mcservers/playersessions/internal/errors"
	"github.com/mcservers/playersessions/internal/models"
	pkgErrors "github.com/mcservers/playersessions/pkg/errors"
	"github.com/mcservers/playersessions/pkg/logger"
)

const (
	HeaderAPIKey = "X-API-Key"

	maxResponseBody = 64 << 10
)

// Client sends session batches to the collection API.
type Client interface {
	Upload(ctx context.Context, batch []*models.Session) error
}

type implClient struct {
	httpCli  *http.Client
	endpoint string
	apiKey   string
	l        logger.Logger
}

func NewClient(cfg config.UploadConfig, l logger.Logger) Client {
	return &implClient{
		httpCli:  &http.Client{Timeout: cfg.Timeout},
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		l:        l,
	}
}

// Upload PUTs batch as one JSON array. It returns nil on 200, a
// *pkgErrors.StatusError for any other status, and an error wrapping
// ErrUploadTransport when the exchange itself fails.
func (c *implClient) Upload(ctx context.Context, batch []*models.Session) error {
	body, err := json.Marshal(NewSessionRecords(batch))
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAPIKey, c.apiKey)

	startedAt := time.Now()
	defer func() {
		c.l.Debugf(ctx, "delivery.api.client.Upload: response took %d ms", time.Since(startedAt).Milliseconds())
	}()

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", appErrors.ErrUploadTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", appErrors.ErrUploadTransport, err)
	}

	c.l.Debugf(ctx, "delivery.api.client.Upload: got response (%d)\n%s\n\n%s",
		resp.StatusCode, formatHeader(resp.Header), respBody)

	if resp.StatusCode != http.StatusOK {
		return pkgErrors.NewStatusError(resp, respBody)
	}

	return nil
}

func formatHeader(h http.Header) string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+strings.Join(h[k], ", "))
	}
	return strings.Join(lines, "\n")
}
