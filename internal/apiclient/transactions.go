package apiclient

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"expenso/internal/catalog"
	"expenso/internal/core"
)

func (c *Client) ListTransactions(ctx context.Context, q core.ListQuery) (TransactionList, error) {
	var out TransactionList
	err := c.do(ctx, http.MethodGet, "/transactions", q.Values(), nil, &out)
	return out, err
}

func (c *Client) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	var out transactionEnvelope
	if err := c.do(ctx, http.MethodGet, "/transactions/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return core.Transaction{}, err
	}
	return out.Transaction, nil
}

func (c *Client) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	var out transactionEnvelope
	if err := c.do(ctx, http.MethodPost, "/transactions", nil, PayloadFrom(t), &out); err != nil {
		return core.Transaction{}, err
	}
	return out.Transaction, nil
}

func (c *Client) UpdateTransaction(ctx context.Context, id string, t core.Transaction) (core.Transaction, error) {
	var out transactionEnvelope
	if err := c.do(ctx, http.MethodPut, "/transactions/"+url.PathEscape(id), nil, PayloadFrom(t), &out); err != nil {
		return core.Transaction{}, err
	}
	return out.Transaction, nil
}

func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/transactions/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) Dashboard(ctx context.Context) (core.DashboardData, error) {
	var out dashboardEnvelope
	if err := c.do(ctx, http.MethodGet, "/dashboard", nil, nil, &out); err != nil {
		return core.DashboardData{}, err
	}
	return out.DashboardData, nil
}

// Reports asks for the aggregate of r, bounded by its calendar dates at now.
func (c *Client) Reports(ctx context.Context, r catalog.DateRange, now time.Time) (core.Report, error) {
	from, to := r.Bounds(now)
	q := url.Values{}
	q.Set("range", string(r))
	q.Set("dateFrom", from.String())
	q.Set("dateTo", to.String())

	var out reportEnvelope
	if err := c.do(ctx, http.MethodGet, "/reports", q, nil, &out); err != nil {
		return core.Report{}, err
	}
	if out.Range == "" {
		out.Range = string(r)
	}
	if out.From.IsZero() {
		out.From, out.To = from, to
	}
	return out.Report, nil
}

func (c *Client) Categories(ctx context.Context) ([]catalog.Category, error) {
	var out categoryList
	if err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Download is a streamed export. Callers must Close it.
type Download struct {
	Body        io.ReadCloser
	ContentType string
	Filename    string
}

func (d *Download) Close() error {
	return d.Body.Close()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

// Export streams GET /transactions/export. The timeout keeps running until
// the body is closed.
func (c *Client) Export(ctx context.Context, f core.Filters) (*Download, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	q := url.Values{}
	f.Encode(q)
	req, err := c.newRequest(ctx, http.MethodGet, "/transactions/export", q, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/csv, application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("GET /transactions/export: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer resp.Body.Close()
		return nil, decodeError(resp, http.MethodGet, "/transactions/export")
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "text/csv"
	}
	filename := "transactions.csv"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return &Download{
		Body:        cancelOnClose{ReadCloser: resp.Body, cancel: cancel},
		ContentType: ct,
		Filename:    filename,
	}, nil
}
