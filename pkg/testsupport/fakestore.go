package testsupport

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/fundwise/fundsheet/store"
)

var rangePattern = regexp.MustCompile(`^([^!]+)!([A-Z]+)(\d*):([A-Z]+)(\d*)$`)

// FakeTableStore is an in-memory store.TableStore for repository tests.
// Sheets are plain row grids; operation counters let tests assert how
// many remote calls an operation would have cost.
type FakeTableStore struct {
	mu     sync.Mutex
	sheets map[string][][]string

	Reads   int
	Writes  int
	Appends int
	Clears  int

	// Err, when set, is returned by every data operation.
	Err error

	// MetaErr, when set, is returned by Metadata only, so tests can
	// model a reachable store whose document is inaccessible.
	MetaErr error

	// Unhealthy flips HealthCheck to false.
	Unhealthy bool
}

var _ store.TableStore = (*FakeTableStore)(nil)

// NewFakeTableStore returns an empty fake store.
func NewFakeTableStore() *FakeTableStore {
	return &FakeTableStore{sheets: map[string][][]string{}}
}

// Seed replaces a sheet's rows. Row 0 is the header row.
func (f *FakeTableStore) Seed(sheet string, rows [][]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make([][]string, len(rows))
	for i, r := range rows {
		copied[i] = append([]string(nil), r...)
	}
	f.sheets[sheet] = copied
}

// Rows returns a copy of a sheet's current rows.
func (f *FakeTableStore) Rows(sheet string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.sheets[sheet]
	copied := make([][]string, len(rows))
	for i, r := range rows {
		copied[i] = append([]string(nil), r...)
	}
	return copied
}

// ResetCounters zeroes the operation counters.
func (f *FakeTableStore) ResetCounters() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads, f.Writes, f.Appends, f.Clears = 0, 0, 0, 0
}

func parseRange(rng string) (sheet string, startRow, endRow int, err error) {
	m := rangePattern.FindStringSubmatch(rng)
	if m == nil {
		return "", 0, 0, fmt.Errorf("malformed range %q", rng)
	}
	sheet = m[1]
	if m[3] != "" {
		startRow, _ = strconv.Atoi(m[3])
	} else {
		startRow = 1
	}
	if m[5] != "" {
		endRow, _ = strconv.Atoi(m[5])
	}
	return sheet, startRow, endRow, nil
}

// ReadRange implements store.TableStore.
func (f *FakeTableStore) ReadRange(_ context.Context, _ string, rng string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++
	if f.Err != nil {
		return nil, f.Err
	}
	sheet, startRow, endRow, err := parseRange(rng)
	if err != nil {
		return nil, err
	}
	rows := f.sheets[sheet]
	if startRow > len(rows) {
		return [][]string{}, nil
	}
	if endRow == 0 || endRow > len(rows) {
		endRow = len(rows)
	}
	out := make([][]string, 0, endRow-startRow+1)
	for _, r := range rows[startRow-1 : endRow] {
		out = append(out, append([]string(nil), r...))
	}
	return out, nil
}

// WriteRange implements store.TableStore, growing the sheet as needed.
func (f *FakeTableStore) WriteRange(_ context.Context, _ string, rng string, rows [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes++
	if f.Err != nil {
		return f.Err
	}
	sheet, startRow, _, err := parseRange(rng)
	if err != nil {
		return err
	}
	grid := f.sheets[sheet]
	for i, row := range rows {
		n := startRow - 1 + i
		for len(grid) <= n {
			grid = append(grid, []string{})
		}
		grid[n] = append([]string(nil), row...)
	}
	f.sheets[sheet] = grid
	return nil
}

// AppendRows implements store.TableStore.
func (f *FakeTableStore) AppendRows(_ context.Context, _ string, rng string, rows [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Appends++
	if f.Err != nil {
		return f.Err
	}
	sheet, _, _, err := parseRange(rng)
	if err != nil {
		return err
	}
	for _, row := range rows {
		f.sheets[sheet] = append(f.sheets[sheet], append([]string(nil), row...))
	}
	return nil
}

// ClearRange implements store.TableStore. Cleared rows stay in place as
// empty rows, mirroring the remote clear semantics.
func (f *FakeTableStore) ClearRange(_ context.Context, _ string, rng string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Clears++
	if f.Err != nil {
		return f.Err
	}
	sheet, startRow, endRow, err := parseRange(rng)
	if err != nil {
		return err
	}
	rows := f.sheets[sheet]
	if endRow == 0 || endRow > len(rows) {
		endRow = len(rows)
	}
	for n := startRow; n <= endRow && n <= len(rows); n++ {
		rows[n-1] = []string{}
	}
	return nil
}

// BatchUpdate implements store.TableStore by applying each request in
// order.
func (f *FakeTableStore) BatchUpdate(ctx context.Context, tableID string, reqs []store.BatchRequest) error {
	for _, r := range reqs {
		var err error
		switch {
		case r.WriteRange != "":
			err = f.WriteRange(ctx, tableID, r.WriteRange, r.Rows)
		case r.ClearRange != "":
			err = f.ClearRange(ctx, tableID, r.ClearRange)
		case r.AppendRange != "":
			err = f.AppendRows(ctx, tableID, r.AppendRange, r.Rows)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Metadata implements store.TableStore.
func (f *FakeTableStore) Metadata(context.Context, string) (*store.TableMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MetaErr != nil {
		return nil, f.MetaErr
	}
	if f.Err != nil {
		return nil, f.Err
	}
	meta := &store.TableMetadata{Title: "fake"}
	for name, rows := range f.sheets {
		cols := 0
		for _, r := range rows {
			if len(r) > cols {
				cols = len(r)
			}
		}
		meta.Sheets = append(meta.Sheets, store.SheetInfo{Title: name, RowCount: len(rows), ColCount: cols})
	}
	return meta, nil
}

// HealthCheck implements store.TableStore.
func (f *FakeTableStore) HealthCheck(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.Unhealthy && f.Err == nil
}
