// Package client reads the accumulated map from a running daemon's bridge API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goodtune/sitetime/internal/storage"
	"github.com/rs/zerolog"
)

// Client implements storage.Source over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
	logger  zerolog.Logger
}

var _ storage.Source = (*Client)(nil)

// New creates a client for the bridge at baseURL, e.g. http://127.0.0.1:8765.
func New(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		// The watch stream has no deadline; ctx ends it.
		stream: &http.Client{},
		logger: logger.With().Str("component", "bridge-client").Logger(),
	}
}

// Load fetches the whole map. An empty map on the daemon is reported as
// storage.ErrNotFound so callers treat it like an unwritten store.
func (c *Client) Load(ctx context.Context) (storage.AccumulatedMap, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/data", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch data: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch data: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := storage.Decode(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

// Subscribe opens the watch stream. The returned channel is closed when ctx
// is done or the daemon ends the stream.
func (c *Client) Subscribe(ctx context.Context) (<-chan storage.AccumulatedMap, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/data/watch", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open watch stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("open watch stream: unexpected status %d", resp.StatusCode)
	}

	out := make(chan storage.AccumulatedMap, 1)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		err := readEvents(resp.Body, func(event string, data []byte) bool {
			if event != "change" {
				return true
			}
			decoded, err := storage.Decode(data)
			if err != nil {
				c.logger.Warn().Err(err).Msg("Ignoring malformed change event")
				return true
			}
			select {
			case out <- decoded:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil && ctx.Err() == nil {
			c.logger.Warn().Err(err).Msg("Watch stream ended")
		}
	}()

	return out, nil
}

// readEvents parses a text/event-stream body, calling fn for every complete
// event until fn returns false or the body ends.
func readEvents(r io.Reader, fn func(event string, data []byte) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 16<<20)

	var (
		event string
		data  bytes.Buffer
	)

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if data.Len() > 0 || event != "" {
				if event == "" {
					event = "message"
				}
				if !fn(event, bytes.TrimSuffix(data.Bytes(), []byte("\n"))) {
					return nil
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				event = value
			case "data":
				data.WriteString(value)
				data.WriteByte('\n')
			}
		}
	}

	return scanner.Err()
}
