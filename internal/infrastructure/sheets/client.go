// Package sheets adapts the Google Sheets API to the untyped grid the sync
// core consumes. All spreadsheet addressing stays in A1 notation; the core
// never sees API types.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc *sheetsapi.Service
}

// NewClient builds a Sheets client from a service-account credentials file.
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets service: %w", err)
	}
	return &Client{svc: svc}, nil
}

func (c *Client) Read(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read range %s: %w", readRange, err)
	}
	return resp.Values, nil
}

func (c *Client) Update(ctx context.Context, spreadsheetID, writeRange string, values [][]interface{}) error {
	_, err := c.svc.Spreadsheets.Values.
		Update(spreadsheetID, writeRange, &sheetsapi.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update range %s: %w", writeRange, err)
	}
	return nil
}

func (c *Client) Append(ctx context.Context, spreadsheetID, writeRange string, values [][]interface{}) error {
	_, err := c.svc.Spreadsheets.Values.
		Append(spreadsheetID, writeRange, &sheetsapi.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append to range %s: %w", writeRange, err)
	}
	return nil
}

func (c *Client) Clear(ctx context.Context, spreadsheetID, clearRange string) error {
	_, err := c.svc.Spreadsheets.Values.
		Clear(spreadsheetID, clearRange, &sheetsapi.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear range %s: %w", clearRange, err)
	}
	return nil
}

func (c *Client) CreateTab(ctx context.Context, spreadsheetID, title string) error {
	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			AddSheet: &sheetsapi.AddSheetRequest{
				Properties: &sheetsapi.SheetProperties{Title: title},
			},
		}},
	}
	_, err := c.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to create tab %s: %w", title, err)
	}
	return nil
}

func (c *Client) ListTabNames(ctx context.Context, spreadsheetID string) ([]string, error) {
	resp, err := c.svc.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list tabs: %w", err)
	}

	names := make([]string, 0, len(resp.Sheets))
	for _, sheet := range resp.Sheets {
		if sheet.Properties != nil {
			names = append(names, sheet.Properties.Title)
		}
	}
	return names, nil
}
