// Package sheets reads planner collections from the CSV export of a Google
// spreadsheet, one tab per collection.
package sheets

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	sheetcsv "mvpplanner/internal/sheets"
	"mvpplanner/internal/source/core"
	"mvpplanner/pkg/domain"
)

// Config locates the spreadsheet.
type Config struct {
	BaseURL string
	SheetID string
	// GIDs maps collection names to tab ids.
	GIDs    map[string]string
	Timeout time.Duration
	Retries int
}

// Client fetches collections over HTTP.
type Client struct {
	http    *resty.Client
	sheetID string
	gids    map[string]string
	logger  *zap.Logger
}

// New builds a client. Transient failures are retried cfg.Retries times.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.SheetID == "" {
		return nil, fmt.Errorf("sheet id required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://docs.google.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Accept", "text/csv")
	gids := make(map[string]string, len(cfg.GIDs))
	for k, v := range cfg.GIDs {
		gids[k] = v
	}
	return &Client{http: client, sheetID: cfg.SheetID, gids: gids, logger: logger}, nil
}

// Fetch downloads and decodes one tab. Collections without a configured tab
// return core.ErrNotFound.
func (c *Client) Fetch(ctx context.Context, name domain.CollectionName) ([]domain.Record, error) {
	gid, ok := c.gids[string(name)]
	if !ok || gid == "" {
		return nil, core.ErrNotFound
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("sheetID", c.sheetID).
		SetQueryParams(map[string]string{"format": "csv", "gid": gid}).
		Get("/spreadsheets/d/{sheetID}/export")
	if err != nil {
		c.logger.Error("sheet request failed", zap.String("collection", string(name)), zap.Error(err))
		return nil, fmt.Errorf("fetch sheet %s: %w", name, err)
	}
	if resp.IsError() {
		c.logger.Error("sheet request rejected",
			zap.String("collection", string(name)),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, fmt.Errorf("failed to fetch sheet %s: %d", name, resp.StatusCode())
	}
	records := sheetcsv.DecodeCSV(resp.String())
	c.logger.Debug("sheet fetched", zap.String("collection", string(name)), zap.Int("rows", len(records)))
	return records, nil
}
