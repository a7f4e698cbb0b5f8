// Package google appends expense rows to a Google spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"outlay/internal/core"
	ports "outlay/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ ports.RowAppender = (*Client)(nil)

// New creates a Sheets client for the given spreadsheet and sheet.
// Credentials come from GOOGLE_CREDENTIALS_JSON when set, otherwise from
// Application Default Credentials (GOOGLE_APPLICATION_CREDENTIALS).
func New(ctx context.Context, spreadsheetID, sheetName string) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if strings.TrimSpace(sheetName) == "" {
		return nil, errors.New("missing sheet name")
	}

	opts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}
	if credsJSON := strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_JSON")); credsJSON != "" {
		opts = append(opts, goption.WithCredentialsJSON([]byte(credsJSON)))
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// AppendExpense appends one row per expense: date, description, amount,
// category name. Returns the updated range as a row reference.
func (c *Client) AppendExpense(ctx context.Context, e core.Expense) (string, error) {
	categoryName := ""
	if e.Category != nil {
		categoryName = e.Category.Name
	}

	vr := &gsheet.ValueRange{
		Values: [][]interface{}{{
			e.Date.String(),
			e.Description,
			e.Amount,
			categoryName,
		}},
	}

	resp, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, c.sheetName+"!A:D", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append expense row: %w", err)
	}

	rowRef := ""
	if resp.Updates != nil {
		rowRef = resp.Updates.UpdatedRange
	}

	slog.InfoContext(ctx, "Expense appended to spreadsheet",
		"id", e.ID,
		"range", rowRef,
		"sheet", c.sheetName)

	return rowRef, nil
}
