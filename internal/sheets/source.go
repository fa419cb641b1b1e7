// Package sheets fetches raw spreadsheet rows through the Google Sheets API
// using a service account.
package sheets

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2/google"
	gsheets "google.golang.org/api/sheets/v4"
	"google.golang.org/api/option"
)

const (
	scopeReadOnly    = "https://www.googleapis.com/auth/spreadsheets.readonly"
	defaultReadRange = "Sheet1"
)

var ErrNoData = errors.New("no data found in spreadsheet")

type Source struct {
	svc       *gsheets.Service
	readRange string
}

// New builds a Source from service-account credentials JSON.
func New(ctx context.Context, credentialsJSON []byte) (*Source, error) {
	cfg, err := google.JWTConfigFromJSON(credentialsJSON, scopeReadOnly)
	if err != nil {
		return nil, fmt.Errorf("sheets: parse credentials: %w", err)
	}

	svc, err := gsheets.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}

	return &Source{svc: svc, readRange: defaultReadRange}, nil
}

// FetchRows returns the sheet's cells as strings, header row first.
func (s *Source) FetchRows(ctx context.Context, spreadsheetID string) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: fetch %s: %w", spreadsheetID, err)
	}
	if len(resp.Values) == 0 {
		return nil, ErrNoData
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}
