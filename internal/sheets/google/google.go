package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"cuentas/internal/core"
	ports "cuentas/internal/sheets"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client mirrors posted journal entries into a Google spreadsheet, one
// sheet per year ("2026 Asientos"), one row per journal line.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base sheet name without year (e.g. "Asientos"); code prefixes year.
	ledgerBase string

	// Row-count cache so consecutive appends skip the A:A read.
	mu                 sync.Mutex
	cachedSheet        string
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

// Ensure interface conformance
var (
	_ ports.EntryAppender = (*Client)(nil)
	_ ports.EntryRemover  = (*Client)(nil)
	_ ports.LedgerReader  = (*Client)(nil)
)

// Indirection for tests
var jsonUnmarshal = json.Unmarshal

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus an OAuth client and token
// (GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE, and
// GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE; see cmd/oauth-init).
// Optional: GOOGLE_SHEET_NAME, the ledger base name (default "Asientos").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	ledgerBase := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if ledgerBase == "" {
		ledgerBase = "Asientos"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		ledgerBase:         ledgerBase,
		cacheValidDuration: 2 * time.Minute,
	}, nil
}

// newSheetsService initializes a Sheets service from the OAuth client
// config and cached token produced by cmd/oauth-init.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	clientJSON := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"))
	clientFile := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"))

	var clientBytes []byte
	switch {
	case clientJSON != "":
		clientBytes = []byte(clientJSON)
	case clientFile != "":
		b, err := os.ReadFile(clientFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
		clientBytes = b
	default:
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}

	conf, err := goauth.ConfigFromJSON(clientBytes, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	tokenJSON := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_JSON"))
	tokenFile := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_FILE"))

	var tokenBytes []byte
	switch {
	case tokenJSON != "":
		tokenBytes = []byte(tokenJSON)
	case tokenFile != "":
		b, err := os.ReadFile(tokenFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth token file: %w", err)
		}
		tokenBytes = b
	default:
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}

	var token oauth2.Token
	if err := jsonUnmarshal(tokenBytes, &token); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(conf.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// AppendEntry writes one row per journal line to the year sheet of the
// entry's date and returns the written range as the row reference.
func (c *Client) AppendEntry(ctx context.Context, e core.JournalEntry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if e.Reference == "" {
		return "", errors.New("entry has no reference")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheetName := yearPrefixedName(c.ledgerBase, e.Date.Year())
	nextRow, err := c.nextRow(ctx, sheetName)
	if err != nil {
		return "", err
	}

	values := make([][]any, 0, len(e.Lines))
	for _, l := range e.Lines {
		desc := l.Description
		if desc == "" {
			desc = e.Description
		}
		debit, credit := "", ""
		if l.Debit.IsPositive() {
			debit = l.Debit.StringFixed(2)
		}
		if l.Credit.IsPositive() {
			credit = l.Credit.StringFixed(2)
		}
		values = append(values, []any{
			e.Reference, e.Date.String(), l.LineNo, l.AccountCode.String(), desc, debit, credit,
		})
	}

	lastRow := nextRow + len(values) - 1
	rng := fmt.Sprintf("%s!A%d:G%d", sheetName, nextRow, lastRow)
	vr := &gsheet.ValueRange{Values: values}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		c.InvalidateRowCache()
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}

	c.advanceRowCache(sheetName, len(values))
	return rng, nil
}

// RemoveEntry deletes every mirrored row carrying the given reference.
// The year sheet is derived from the year embedded in the reference.
func (c *Client) RemoveEntry(ctx context.Context, reference string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	sheetName := yearPrefixedName(c.ledgerBase, refYear(reference))

	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	var sheetID int64 = -1
	for _, s := range meta.Sheets {
		if s.Properties != nil && s.Properties.Title == sheetName {
			sheetID = s.Properties.SheetId
			break
		}
	}
	if sheetID == -1 {
		slog.WarnContext(ctx, "Ledger sheet not found, nothing to remove",
			"sheet", sheetName,
			"reference", reference)
		return nil
	}

	rng := fmt.Sprintf("%s!A:A", sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	rows := matchReferenceRows(resp.Values, reference)
	if len(rows) == 0 {
		return nil
	}

	// Delete bottom-up so earlier indexes stay valid
	reqs := make([]*gsheet.Request, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		reqs = append(reqs, &gsheet.Request{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rows[i]),
					EndIndex:   int64(rows[i] + 1),
				},
			},
		})
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: reqs,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete rows for %s: %w", reference, err)
	}

	c.InvalidateRowCache()
	slog.InfoContext(ctx, "Removed mirrored entry rows",
		"reference", reference,
		"sheet", sheetName,
		"rows", len(rows))
	return nil
}

// ListReferences returns the distinct references mirrored for a year.
func (c *Client) ListReferences(ctx context.Context, year int) ([]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	sheetName := yearPrefixedName(c.ledgerBase, year)
	rng := fmt.Sprintf("%s!A:A", sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return collectReferences(resp.Values), nil
}

func (c *Client) nextRow(ctx context.Context, sheetName string) (int, error) {
	c.mu.Lock()
	if c.cachedSheet == sheetName && time.Now().Before(c.cacheExpiresAt) {
		n := c.cachedRowCount + 1
		c.mu.Unlock()
		return n, nil
	}
	c.mu.Unlock()

	rng := fmt.Sprintf("%s!A:A", sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to get sheet dimensions for %s: %w", sheetName, err)
	}

	c.mu.Lock()
	c.cachedSheet = sheetName
	c.cachedRowCount = len(resp.Values)
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	n := c.cachedRowCount + 1
	c.mu.Unlock()
	return n, nil
}

func (c *Client) advanceRowCache(sheetName string, rows int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedSheet == sheetName && time.Now().Before(c.cacheExpiresAt) {
		c.cachedRowCount += rows
	}
}

// InvalidateRowCache forces the next append to re-read the sheet size.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheExpiresAt = time.Time{}
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
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

// refYear extracts the year embedded in a posting reference (AST-YYYY-NNNNNN).
func refYear(reference string) int {
	parts := strings.Split(reference, "-")
	if len(parts) == 3 {
		if y, err := strconv.Atoi(parts[1]); err == nil && y > 1900 && y < 3000 {
			return y
		}
	}
	return time.Now().Year()
}
