// Package gsheets exposes the small slice of the Google Sheets API the
// exporter needs: opening a tab by gid and reading or writing its rows.
package gsheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var ErrTabNotFound = errors.New("tab not found")

// Row is a snapshot of a data row, keyed by the header of the tab.
type Row struct {
	// Number is the 1-based row in the tab. The header is row 1.
	Number int
	// Values is missing the columns past the last stored cell.
	Values map[string]string
}

// Get returns the cell of the named column and whether the row has one.
func (r *Row) Get(column string) (string, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// Tab is a single worksheet.
type Tab interface {
	Title() string
	Clear(ctx context.Context) error
	SetHeaderRow(ctx context.Context, header []string) error
	// AddRows appends rows after the last non-empty row in one call.
	AddRows(ctx context.Context, rows [][]string) error
	// Rows loads every row below the header.
	Rows(ctx context.Context) ([]*Row, error)
	// SaveRow overwrites the row at row.Number with row.Values, in header
	// order.
	SaveRow(ctx context.Context, row *Row) error
	// Cells loads the raw grid, header included.
	Cells(ctx context.Context) ([][]string, error)
}

// Opener opens a tab of a spreadsheet.
type Opener interface {
	OpenTab(ctx context.Context, spreadsheetID, tabID string) (Tab, error)
}

// Client talks to the Sheets API.
type Client struct {
	Service *sheets.Service
	Log     *slog.Logger
	// Limiter paces requests when set.
	Limiter *rate.Limiter
}

// NewLimiter stays under the default quota of 60 requests per minute per
// user.
func NewLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Second), 10)
}

// NewClient authenticates with service account credentials in JSON form.
func NewClient(ctx context.Context, credentialsJSON []byte, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		Service: svc,
		Limiter: NewLimiter(),
	}, nil
}

func (c *Client) SetLogger(log *slog.Logger) {
	c.Log = log
}

func (c *Client) log() *slog.Logger {
	if c.Log == nil {
		return slog.Default()
	}
	return c.Log
}

func (c *Client) wait(ctx context.Context) error {
	if c.Limiter == nil {
		return nil
	}
	if err := c.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// OpenTab finds the tab whose gid is tabID.
func (c *Client) OpenTab(ctx context.Context, spreadsheetID, tabID string) (Tab, error) {
	gid, err := strconv.ParseInt(tabID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse gid %q: %w", tabID, err)
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	doc, err := c.Service.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return nil, c.wrap("get spreadsheet", err)
	}
	for _, sheet := range doc.Sheets {
		if sheet.Properties != nil && sheet.Properties.SheetId == gid {
			return &tab{
				client:        c,
				spreadsheetID: spreadsheetID,
				title:         sheet.Properties.Title,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: gid %s in %s", ErrTabNotFound, tabID, spreadsheetID)
}
