// Package sheets fetches a Google Sheet's public CSV export and prepares
// it for the report page: newest-first ordering, substring search and
// fixed-size pagination.
package sheets

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
)

const PageSize = 20

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
}

// Report is the parsed sheet, rows already reversed so the most recent
// entries come first.
type Report struct {
	Columns []string
	Rows    [][]string
}

// Fetch downloads and parses the CSV export for a sheet ID.
func (c *Client) Fetch(sheetID string) (*Report, error) {
	endpoint := fmt.Sprintf("%s/%s/export?format=csv", c.baseURL, sheetID)
	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sheet: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sheet export returned status %d", resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse sheet CSV: %w", err)
	}
	if len(records) == 0 {
		return &Report{Columns: []string{}, Rows: [][]string{}}, nil
	}

	columns := records[0]
	rows := make([][]string, 0, len(records)-1)
	// Reverse so the most recent rows show first.
	for i := len(records) - 1; i >= 1; i-- {
		row := records[i]
		// Pad ragged rows to the header width.
		for len(row) < len(columns) {
			row = append(row, "")
		}
		rows = append(rows, row)
	}

	return &Report{Columns: columns, Rows: rows}, nil
}

// Filter keeps rows where any cell contains the query, case-insensitive.
func (r *Report) Filter(query string) *Report {
	query = strings.TrimSpace(query)
	if query == "" {
		return r
	}
	lower := strings.ToLower(query)
	filtered := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		for _, cell := range row {
			if strings.Contains(strings.ToLower(cell), lower) {
				filtered = append(filtered, row)
				break
			}
		}
	}
	return &Report{Columns: r.Columns, Rows: filtered}
}

// Page returns one page of rows plus pagination facts. Page numbers are
// clamped into range; the empty report still has one page.
func (r *Report) Page(page int) (rows [][]string, pageNum, totalPages int) {
	totalPages = (len(r.Rows) + PageSize - 1) / PageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * PageSize
	end := start + PageSize
	if end > len(r.Rows) {
		end = len(r.Rows)
	}
	if start > len(r.Rows) {
		start = len(r.Rows)
	}
	return r.Rows[start:end], page, totalPages
}
