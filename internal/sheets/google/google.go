package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expenso/internal/core"
	"expenso/internal/log"
	ports "expenso/internal/sheets"
)

var _ ports.AuditWriter = (*Client)(nil)

// Options selects the spreadsheet and credentials. OAuth client and token
// files take precedence over a service account.
type Options struct {
	SpreadsheetID      string
	SheetName          string
	OAuthClientFile    string
	OAuthTokenFile     string
	ServiceAccountFile string
	Logger             *slog.Logger
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base name without year, e.g. "Activity"; rows go to "<year> Activity".
	sheetBase string
	logger    *slog.Logger

	// mu serializes appends so rows keep event order.
	mu sync.Mutex
	// Sheets whose header has been checked during this process.
	ready map[string]bool
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts.SpreadsheetID, opts.SheetName, opts.Logger), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test endpoint.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetBase string, logger *slog.Logger) *Client {
	if strings.TrimSpace(sheetBase) == "" {
		sheetBase = "Activity"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     strings.TrimSpace(sheetBase),
		logger:        logger,
		ready:         map[string]bool{},
	}
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	switch {
	case opts.OAuthClientFile != "" || opts.OAuthTokenFile != "":
		hc, err := oauthHTTPClient(ctx, opts.OAuthClientFile, opts.OAuthTokenFile)
		if err != nil {
			return nil, err
		}
		return gsheet.NewService(ctx, goption.WithHTTPClient(hc))
	case opts.ServiceAccountFile != "":
		b, err := os.ReadFile(opts.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return gsheet.NewService(ctx,
			goption.WithCredentialsJSON(b),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}
	return nil, errors.New("missing credentials (set an OAuth client and token file or a service account file)")
}

// oauthHTTPClient builds a client from the token written by oauth-init. The
// token source refreshes the access token as needed.
func oauthHTTPClient(ctx context.Context, clientFile, tokenFile string) (*http.Client, error) {
	if clientFile == "" {
		return nil, errors.New("missing oauth client file")
	}
	if tokenFile == "" {
		return nil, errors.New("missing oauth token file")
	}
	clientJSON, err := os.ReadFile(clientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	cfg, err := oauthgoogle.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	tokenJSON, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	return cfg.Client(ctx, &tok), nil
}

func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   5,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 60 * time.Second,
	}
}

// AppendActivity writes events to the yearly sheet matching each event's
// time, adding the header row to a sheet the first time it is used.
func (c *Client) AppendActivity(ctx context.Context, events []core.ActivityEvent) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(events) == 0 {
		return "", nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byYear := map[int][][]any{}
	for _, e := range events {
		y := e.OccurredAt.UTC().Year()
		byYear[y] = append(byYear[y], ports.AuditRow(e))
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	refs := make([]string, 0, len(years))
	for _, y := range years {
		sheet := yearPrefixedName(c.sheetBase, y)
		if err := c.ensureHeader(ctx, sheet); err != nil {
			return strings.Join(refs, ","), err
		}
		vr := &gsheet.ValueRange{Values: byYear[y]}
		resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, sheet+"!A:J", vr).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return strings.Join(refs, ","), fmt.Errorf("append to %s: %w", sheet, err)
		}
		ref := sheet
		if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
			ref = resp.Updates.UpdatedRange
		}
		refs = append(refs, ref)
		c.logger.InfoContext(ctx, "Appended audit rows", log.FieldComponent, log.ComponentSheets, "sheet", sheet, "rows", len(byYear[y]))
	}
	return strings.Join(refs, ","), nil
}

func (c *Client) ensureHeader(ctx context.Context, sheet string) error {
	if c.ready[sheet] {
		return nil
	}
	rng := sheet + "!A1:J1"
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		vr := &gsheet.ValueRange{Values: [][]any{ports.AuditHeader}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("write header to %s: %w", sheet, err)
		}
	}
	c.ready[sheet] = true
	return nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
