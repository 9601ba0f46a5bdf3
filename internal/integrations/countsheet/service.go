package countsheet

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// CountRow is one parsed stock-take line: SKU, location code, counted
// quantity.
type CountRow struct {
	SKU          string          `json:"sku"`
	LocationCode string          `json:"location_code"`
	Counted      decimal.Decimal `json:"counted"`
}

type ParseIssue struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type CountSheetService struct {
	sheetsService *sheets.Service
}

// NewCountSheetService builds a read-only Sheets client from the service
// account credentials in COUNT_SHEET_CREDENTIALS (JSON) or a local file.
func NewCountSheetService() (*CountSheetService, error) {
	ctx := context.Background()

	credentialsJSON := os.Getenv("COUNT_SHEET_CREDENTIALS")
	var credentials *google.Credentials
	var err error

	if credentialsJSON != "" {
		credentials, err = google.CredentialsFromJSON(ctx, []byte(credentialsJSON), sheets.SpreadsheetsReadonlyScope)
	} else {
		credentialsFile := "configs/google-credentials.json"
		b, readErr := os.ReadFile(credentialsFile)
		if readErr != nil {
			return nil, fmt.Errorf("cannot read credentials file: %w", readErr)
		}
		credentials, err = google.CredentialsFromJSON(ctx, b, sheets.SpreadsheetsReadonlyScope)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot load Google credentials: %w", err)
	}

	client := oauth2.NewClient(ctx, credentials.TokenSource)
	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("cannot create Google Sheets client: %w", err)
	}

	return &CountSheetService{sheetsService: sheetsService}, nil
}

func (s *CountSheetService) ReadCounts(spreadsheetID, readRange string) ([]CountRow, []ParseIssue, error) {
	resp, err := s.sheetsService.Spreadsheets.Values.Get(spreadsheetID, readRange).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read spreadsheet: %w", err)
	}

	return ParseCounts(resp.Values), parseIssues(resp.Values), nil
}

// ParseCounts extracts valid count rows from raw sheet values. Expected
// columns: SKU, location code, counted quantity; the first row may be a
// header and is skipped when its quantity cell is not numeric.
func ParseCounts(values [][]interface{}) []CountRow {
	var counts []CountRow

	for _, row := range values {
		count, ok := parseRow(row)
		if !ok {
			continue
		}
		counts = append(counts, count)
	}

	return counts
}

func parseIssues(values [][]interface{}) []ParseIssue {
	var issues []ParseIssue

	for i, row := range values {
		if _, ok := parseRow(row); ok {
			continue
		}
		if i == 0 {
			// header row
			continue
		}
		issues = append(issues, ParseIssue{
			Row:    i + 1,
			Reason: "expected columns: sku, location code, counted quantity",
		})
	}

	return issues
}

func parseRow(row []interface{}) (CountRow, bool) {
	if len(row) < 3 {
		return CountRow{}, false
	}

	sku := strings.TrimSpace(fmt.Sprintf("%v", row[0]))
	locationCode := strings.TrimSpace(fmt.Sprintf("%v", row[1]))
	rawQty := strings.TrimSpace(fmt.Sprintf("%v", row[2]))

	if sku == "" || locationCode == "" || rawQty == "" {
		return CountRow{}, false
	}

	counted, err := decimal.NewFromString(strings.ReplaceAll(rawQty, ",", "."))
	if err != nil {
		return CountRow{}, false
	}
	if counted.IsNegative() {
		return CountRow{}, false
	}

	return CountRow{SKU: sku, LocationCode: locationCode, Counted: counted}, true
}
