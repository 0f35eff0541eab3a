package clients

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"catalogsync/internal/supplier/feed"
	"catalogsync/internal/supplier/models"
	"catalogsync/pkg/logger"
)

// Fetcher получает данные по URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// BulkClient fetches and parses the supplier's file feed. Each resource is a
// delimited file plus an .inf companion carrying the last-modified stamp, so
// an unchanged feed can be skipped without downloading the data file.
type BulkClient struct {
	baseURL  string
	encoding string
	fetcher  Fetcher
	log      logger.Logger
}

func NewBulkClient(baseURL, encoding string, fetcher Fetcher, writer io.Writer) *BulkClient {
	_log := logger.NewLogger(writer, "[SupplierBulkClient]")
	return &BulkClient{baseURL: baseURL, encoding: encoding, fetcher: fetcher, log: _log}
}

func (c *BulkClient) resourceURL(resource models.FeedResource) string {
	return fmt.Sprintf("%s/%s.csv", c.baseURL, resource)
}

func (c *BulkClient) infURL(resource models.FeedResource) string {
	return fmt.Sprintf("%s/%s.inf", c.baseURL, resource)
}

// Fetch downloads and parses one bulk resource.
func (c *BulkClient) Fetch(ctx context.Context, resource models.FeedResource) (*models.FeedPayload, error) {
	body, err := c.fetcher.Fetch(ctx, c.resourceURL(resource))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", resource, err)
	}
	defer body.Close()

	required := feed.RequiredInventoryColumns
	if resource == models.FeedKits {
		required = feed.RequiredKitColumns
	}
	parser := feed.NewParser(required)
	parser.Encoding = c.encoding

	payload, err := parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", resource, err)
	}
	c.log.Log("fetched feed %s: %d records", resource, payload.TotalRecords)
	return payload, nil
}

// FetchModTime reads the feed's .inf companion. The stamp comes either as
// "2006-01-02 15:04:05" or as Unix seconds, one value per line.
func (c *BulkClient) FetchModTime(ctx context.Context, resource models.FeedResource) (time.Time, error) {
	body, err := c.fetcher.Fetch(ctx, c.infURL(resource))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch inf for %s: %w", resource, err)
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if t, err := time.Parse("2006-01-02 15:04:05", line); err == nil {
			return t, nil
		}
		if epochSec, err := strconv.ParseInt(line, 10, 64); err == nil {
			return time.Unix(epochSec, 0), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return time.Time{}, err
	}
	return time.Time{}, errors.New("could not determine feed mod time from inf file")
}
