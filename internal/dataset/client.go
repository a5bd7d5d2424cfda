package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultPageSize = 100

// Client fetches a dataset split from the Hugging Face datasets-server
// rows API and caches it on disk. The split is consumed in full at
// startup; nothing here mutates the dataset.
type Client struct {
	baseURL   string
	datasetID string
	cacheDir  string
	client    *http.Client
	logger    *slog.Logger
}

// NewClient creates a dataset client. baseURL is the datasets-server root,
// e.g. "https://datasets-server.huggingface.co".
func NewClient(baseURL, datasetID, cacheDir string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		datasetID: datasetID,
		cacheDir:  cacheDir,
		client:    &http.Client{Timeout: 60 * time.Second},
		logger:    logger,
	}
}

type rowsResponse struct {
	NumRowsTotal int `json:"num_rows_total"`
	Rows         []struct {
		RowIdx int             `json:"row_idx"`
		Row    json.RawMessage `json:"row"`
	} `json:"rows"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// LoadSplit returns every record of the split, reading the on-disk cache
// when present and fetching (then caching) otherwise.
func (c *Client) LoadSplit(ctx context.Context, split string) ([]Record, error) {
	if records, err := c.readCache(split); err == nil {
		c.logger.Info("dataset loaded from cache", "split", split, "rows", len(records))
		return records, nil
	} else if !os.IsNotExist(err) {
		c.logger.Warn("dataset cache unreadable, refetching", "split", split, "error", err)
	}

	records, err := c.fetchSplit(ctx, split)
	if err != nil {
		return nil, err
	}

	if err := c.writeCache(split, records); err != nil {
		c.logger.Warn("failed to write dataset cache", "split", split, "error", err)
	}
	return records, nil
}

func (c *Client) fetchSplit(ctx context.Context, split string) ([]Record, error) {
	var records []Record
	offset := 0
	total := -1

	for total < 0 || offset < total {
		page, err := c.fetchPage(ctx, split, offset, defaultPageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch rows at offset %d: %w", offset, err)
		}
		total = page.NumRowsTotal

		for _, r := range page.Rows {
			var rec Record
			if err := json.Unmarshal(r.Row, &rec); err != nil {
				// Skip malformed rows; the dataset occasionally carries
				// stray shapes and annotation never targets them.
				c.logger.Warn("skipping malformed dataset row", "row_idx", r.RowIdx, "error", err)
				continue
			}
			rec.Split = split
			records = append(records, rec)
		}

		if len(page.Rows) == 0 {
			break
		}
		offset += len(page.Rows)
	}

	c.logger.Info("dataset fetched", "dataset", c.datasetID, "split", split, "rows", len(records))
	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, split string, offset, length int) (*rowsResponse, error) {
	q := url.Values{}
	q.Set("dataset", c.datasetID)
	q.Set("config", "default")
	q.Set("split", split)
	q.Set("offset", fmt.Sprintf("%d", offset))
	q.Set("length", fmt.Sprintf("%d", length))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rows?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(body))
	}

	var page rowsResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &page, nil
}

func (c *Client) cachePath(split string) string {
	name := strings.ReplaceAll(c.datasetID, "/", "_") + "_" + split + ".json"
	return filepath.Join(c.cacheDir, name)
}

func (c *Client) readCache(split string) ([]Record, error) {
	data, err := os.ReadFile(c.cachePath(split))
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse cache: %w", err)
	}
	return records, nil
}

func (c *Client) writeCache(split string, records []Record) error {
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	return os.WriteFile(c.cachePath(split), data, 0o644)
}
