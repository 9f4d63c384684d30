// Package dataset reads the engine's dataset collections. Access is
// strictly read-only; dataset maintenance (CSV import, CRUD) happens
// elsewhere.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/railops/rakeplan/core/model"
)

// DefaultPageSize is the page size used when paging collections.
const DefaultPageSize = 200

// Config holds the dataset endpoint settings.
type Config struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	PageSize       int    `json:"page_size"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
}

// Client pages through dataset collections over HTTP/JSON.
type Client struct {
	base     string
	pageSize int
	client   *http.Client
}

// NewClient creates a Client for the configured endpoint.
func NewClient(cfg Config) *Client {
	cfg.SetDefaults()
	return &Client{
		base:     strings.TrimSuffix(cfg.BaseURL, "/"),
		pageSize: cfg.PageSize,
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

type page struct {
	Data []json.RawMessage `json:"data"`
}

// collect pages GET /{name}?skip&limit until a short page is returned.
func (c *Client) collect(ctx context.Context, name string) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	for skip := 0; ; skip += c.pageSize {
		u := fmt.Sprintf("%s/%s?skip=%s&limit=%s", c.base, url.PathEscape(name),
			strconv.Itoa(skip), strconv.Itoa(c.pageSize))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("build dataset request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", name, err)
		}
		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, fmt.Errorf("fetch %s: status %d: %s", name, resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		var p page
		err = json.NewDecoder(resp.Body).Decode(&p)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode %s page: %w", name, err)
		}
		rows = append(rows, p.Data...)
		if len(p.Data) < c.pageSize {
			return rows, nil
		}
	}
}

// Orders fetches all order rows.
func (c *Client) Orders(ctx context.Context) ([]model.Order, error) {
	rows, err := c.collect(ctx, model.DatasetOrders)
	if err != nil {
		return nil, err
	}
	out := make([]model.Order, 0, len(rows))
	for _, raw := range rows {
		var o model.Order
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		o.Fields = extraFields(raw, orderColumns)
		out = append(out, o)
	}
	return out, nil
}

// Rakes fetches all rake rows.
func (c *Client) Rakes(ctx context.Context) ([]model.Rake, error) {
	rows, err := c.collect(ctx, model.DatasetRakes)
	if err != nil {
		return nil, err
	}
	out := make([]model.Rake, 0, len(rows))
	for _, raw := range rows {
		var r model.Rake
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode rake: %w", err)
		}
		r.Fields = extraFields(raw, rakeColumns)
		out = append(out, r)
	}
	return out, nil
}

// Stockyards fetches all stockyard rows.
func (c *Client) Stockyards(ctx context.Context) ([]model.Stockyard, error) {
	rows, err := c.collect(ctx, model.DatasetStockyards)
	if err != nil {
		return nil, err
	}
	out := make([]model.Stockyard, 0, len(rows))
	for _, raw := range rows {
		var s model.Stockyard
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode stockyard: %w", err)
		}
		s.Fields = extraFields(raw, stockyardColumns)
		out = append(out, s)
	}
	return out, nil
}

// Rows fetches any collection as tagged scalar rows. Collections
// without a typed view (loading_points, products, wagon_types) are read
// through this.
func (c *Client) Rows(ctx context.Context, name string) ([]model.Fields, error) {
	rows, err := c.collect(ctx, name)
	if err != nil {
		return nil, err
	}
	out := make([]model.Fields, 0, len(rows))
	for _, raw := range rows {
		out = append(out, extraFields(raw, nil))
	}
	return out, nil
}

var (
	orderColumns = map[string]bool{
		"id": true, "order_number": true, "product_code": true,
		"quantity_tonnes": true, "destination": true, "status": true,
	}
	rakeColumns = map[string]bool{
		"id": true, "rake_number": true, "wagon_type_code": true,
		"num_wagons": true, "total_capacity_tonnes": true, "status": true,
	}
	stockyardColumns = map[string]bool{
		"id": true, "code": true, "name": true, "location": true,
		"capacity_tonnes": true,
	}
)

// extraFields keeps CSV-derived columns that the typed structs do not
// model, as tagged scalars. Non-scalar extras are dropped.
func extraFields(raw json.RawMessage, known map[string]bool) model.Fields {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil
	}
	var fields model.Fields
	for k, v := range all {
		if known[k] {
			continue
		}
		var val model.Value
		if err := json.Unmarshal(v, &val); err != nil {
			continue
		}
		if fields == nil {
			fields = make(model.Fields)
		}
		fields[k] = val
	}
	return fields
}
