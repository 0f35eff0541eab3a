package clients

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"catalogsync/internal/supplier/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	responses map[string]string
	requested []string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (io.ReadCloser, error) {
	f.requested = append(f.requested, url)
	body, ok := f.responses[url]
	if !ok {
		return nil, fmt.Errorf("unexpected status code 404")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func TestBulkClientFetch(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string]string{
		"http://feeds/inventory.csv": "LineCode,PartNumber,QtyTotal\nABC,X-1,5\nABC,X-2,3\n",
	}}
	c := NewBulkClient("http://feeds", "", fetcher, io.Discard)

	payload, err := c.Fetch(context.Background(), models.FeedInventory)
	require.NoError(t, err)
	assert.Equal(t, 2, payload.TotalRecords)
	assert.Equal(t, "X-1", payload.Rows[0].PartNumber)
}

func TestBulkClientFetchKitsUsesKitColumns(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string]string{
		"http://feeds/kits.csv": "KitPartNumber,ComponentPartNumber,ComponentQty\nK-1,C-1,2\n",
	}}
	c := NewBulkClient("http://feeds", "", fetcher, io.Discard)

	payload, err := c.Fetch(context.Background(), models.FeedKits)
	require.NoError(t, err)
	require.Len(t, payload.Rows, 1)
	assert.Equal(t, "K-1", payload.Rows[0].KitPartNumber)
	assert.Equal(t, "C-1", payload.Rows[0].ComponentPartNumber)
}

func TestBulkClientFetchModTime(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string]string{
		"http://feeds/inventory.inf": "2025-03-01 06:00:00\n",
		"http://feeds/pricing.inf":   "1740808800\n",
		"http://feeds/kits.inf":      "no stamp here\n",
	}}
	c := NewBulkClient("http://feeds", "", fetcher, io.Discard)

	stamp, err := c.FetchModTime(context.Background(), models.FeedInventory)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC), stamp)

	stamp, err = c.FetchModTime(context.Background(), models.FeedPricing)
	require.NoError(t, err)
	assert.Equal(t, int64(1740808800), stamp.Unix())

	_, err = c.FetchModTime(context.Background(), models.FeedKits)
	require.Error(t, err)
}

func TestBulkClientFetchError(t *testing.T) {
	c := NewBulkClient("http://feeds", "", &stubFetcher{responses: map[string]string{}}, io.Discard)
	_, err := c.Fetch(context.Background(), models.FeedInventory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inventory")
}
