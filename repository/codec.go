// Package repository implements typed data access over a remote
// spreadsheet table: a generic base repository addressing one sheet,
// a caching decorator, and one repository per domain entity.
package repository

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundwise/fundsheet/entity"
)

// RowCodec translates between an entity and one spreadsheet row. Encode
// must produce exactly len(Headers()) cells in header order; Decode must
// tolerate rows shorter than the header set, since the remote API trims
// trailing empty cells.
type RowCodec[T entity.Entity] interface {
	// Table is the sheet name the entity lives in.
	Table() string

	// Headers is the fixed column set, written as row 1.
	Headers() []string

	// Encode renders an entity as one row of cells.
	Encode(record T) []string

	// Decode rebuilds an entity from a row. A cell that fails to parse
	// is reported as a ParseIssue with its documented default
	// substituted; the error is non-nil only when the row is unusable
	// (no identifier), and such rows are skipped by the repository.
	Decode(row []string) (T, []ParseIssue, error)
}

// ParseIssue records one cell that failed to parse and had its field
// default substituted during decoding.
type ParseIssue struct {
	Field string
	Value string
	Err   error
}

func (i ParseIssue) String() string {
	return fmt.Sprintf("%s=%q: %v", i.Field, i.Value, i.Err)
}

// rowParser runs the per-field decoders for one row, collecting an
// issue and substituting the default whenever a cell fails to parse.
type rowParser struct {
	issues []ParseIssue
}

func (p *rowParser) fail(field, value string, err error) {
	p.issues = append(p.issues, ParseIssue{Field: field, Value: value, Err: err})
}

func (p *rowParser) Decimal(field, s string) decimal.Decimal {
	d, err := decodeDecimal(s)
	if err != nil {
		p.fail(field, s, err)
		return decimal.Zero
	}
	return d
}

func (p *rowParser) Int(field, s string) int {
	n, err := decodeInt(s)
	if err != nil {
		p.fail(field, s, err)
		return 0
	}
	return n
}

func (p *rowParser) Int64(field, s string) int64 {
	n, err := decodeInt64(s)
	if err != nil {
		p.fail(field, s, err)
		return 0
	}
	return n
}

func (p *rowParser) Float(field, s string) float64 {
	f, err := decodeFloat(s)
	if err != nil {
		p.fail(field, s, err)
		return 0
	}
	return f
}

func (p *rowParser) Time(field, s string) time.Time {
	t, err := decodeTime(s)
	if err != nil {
		p.fail(field, s, err)
		return time.Time{}
	}
	return t
}

func (p *rowParser) OptTime(field, s string) *time.Time {
	t, err := decodeOptTime(s)
	if err != nil {
		p.fail(field, s, err)
		return nil
	}
	return t
}

func (p *rowParser) JSONMap(field, s string) map[string]any {
	m, err := decodeJSONMap(s)
	if err != nil {
		p.fail(field, s, err)
		return map[string]any{}
	}
	return m
}

func (p *rowParser) Contact(field, s string) *entity.ContactInfo {
	c, err := decodeContact(s)
	if err != nil {
		p.fail(field, s, err)
		return nil
	}
	return c
}

// cell returns the i-th column of a row, or "" when the row is short.
func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// columnLetter converts a 1-based column number to its A1 letter form.
func columnLetter(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

const (
	timeLayout = time.RFC3339
	dateLayout = "2006-01-02"
)

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return t.UTC(), nil
}

func encodeOptTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return encodeTime(*t)
}

func decodeOptTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := decodeTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeDecimal(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func decodeDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	// Cells edited by hand sometimes carry currency formatting.
	s = strings.ReplaceAll(strings.TrimPrefix(s, "$"), ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

func encodeInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func decodeInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func encodeInt64(n int64) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}

func decodeInt64(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func encodeFloat(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func decodeFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}

const listSeparator = ","

func encodeList(items []string) string {
	return strings.Join(items, listSeparator)
}

func decodeList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, listSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func encodeJSONMap(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeJSONMap(s string) (map[string]any, error) {
	if s == "" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("invalid JSON cell: %w", err)
	}
	return m, nil
}

func encodeContact(c *entity.ContactInfo) string {
	if c == nil || *c == (entity.ContactInfo{}) {
		return ""
	}
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeContact(s string) (*entity.ContactInfo, error) {
	if s == "" {
		return nil, nil
	}
	var c entity.ContactInfo
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil, fmt.Errorf("invalid contact cell: %w", err)
	}
	return &c, nil
}
