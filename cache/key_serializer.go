package cache

import (
	"encoding/json"
	"fmt"
	"strings"
)

// KeySeparator delimits cache key segments.
const KeySeparator = "::"

// KeySerializer builds a stable cache key from a table name, an
// operation name, and the operation's arguments. Keys for the same
// table share a common prefix so the whole table can be invalidated
// at once.
type KeySerializer interface {
	SerializeKey(table, op string, args ...any) string
}

// TablePrefix returns the key prefix shared by every entry of a table.
func TablePrefix(table string) string {
	return table + KeySeparator
}

// defaultKeySerializer produces table::op::arg1::arg2 keys. Argument
// rendering must be deterministic across calls so repeated queries hit
// the same entry.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer returns the serializer used by the cached
// repositories.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// SerializeKey implements KeySerializer.
func (s *defaultKeySerializer) SerializeKey(table, op string, args ...any) string {
	parts := make([]string, 0, len(args)+2)
	parts = append(parts, table, op)
	for _, arg := range args {
		parts = append(parts, s.serializeValue(arg))
	}
	return strings.Join(parts, KeySeparator)
}

func (s *defaultKeySerializer) serializeValue(v any) string {
	switch value := v.(type) {
	case nil:
		return "nil"
	case string:
		return value
	case fmt.Stringer:
		return value.String()
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return fmt.Sprintf("%v", value)
	case []string:
		return "[" + strings.Join(value, ",") + "]"
	case error:
		return value.Error()
	}
	// json.Marshal sorts map keys, which keeps composite arguments
	// deterministic.
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T", v)
	}
	return string(data)
}
