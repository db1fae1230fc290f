// Package store defines the contract the repositories use to reach the
// remote spreadsheet-style table store, together with the retry policy
// and the error taxonomy every implementation must honor.
//
// A table region is addressed in A1 notation ("Funders!A2:K2"); rows are
// sequences of cell strings. Implementations live behind this interface
// so repositories never see transport details.
package store

import "context"

// BatchRequest is one operation in a BatchUpdate call. Exactly one of the
// fields is set.
type BatchRequest struct {
	// WriteRange rewrites the given range with Rows.
	WriteRange string `json:"write_range,omitempty"`
	// ClearRange blanks the given range.
	ClearRange string `json:"clear_range,omitempty"`
	// AppendRange appends Rows after the given range's table region.
	AppendRange string `json:"append_range,omitempty"`

	Rows [][]string `json:"rows,omitempty"`
}

// SheetInfo describes one tab of a spreadsheet document.
type SheetInfo struct {
	Title    string `json:"title"`
	RowCount int    `json:"row_count"`
	ColCount int    `json:"col_count"`
}

// TableMetadata is the document-level metadata returned by Metadata.
type TableMetadata struct {
	Title  string      `json:"title"`
	Sheets []SheetInfo `json:"sheets"`
}

// TableStore is range-oriented access to a remote table document.
//
// Every method either succeeds or returns one of the package error types
// (AuthError, RateLimitError, ConnectionError, StoreError); callers are
// expected to propagate these unchanged. HealthCheck is the exception:
// it never returns an error, only a boolean.
type TableStore interface {
	// ReadRange returns the rows in the given range; an empty range
	// yields an empty slice, not an error.
	ReadRange(ctx context.Context, tableID, rng string) ([][]string, error)

	// WriteRange overwrites the given range with rows.
	WriteRange(ctx context.Context, tableID, rng string, rows [][]string) error

	// AppendRows appends rows after the last data row of the region
	// containing rng.
	AppendRows(ctx context.Context, tableID, rng string, rows [][]string) error

	// ClearRange blanks all cells in the given range without shifting
	// subsequent rows.
	ClearRange(ctx context.Context, tableID, rng string) error

	// BatchUpdate executes several write-side operations in one request.
	BatchUpdate(ctx context.Context, tableID string, reqs []BatchRequest) error

	// Metadata fetches document metadata (title, sheet dimensions).
	Metadata(ctx context.Context, tableID string) (*TableMetadata, error)

	// HealthCheck verifies the store can authenticate and obtain a
	// session. It never fails hard; any problem reports false.
	HealthCheck(ctx context.Context) bool
}
