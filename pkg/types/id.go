package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is a 64-bit snowflake identifier. It is serialised to JSON as a string
// because Mini App clients parse numbers as float64; decoding accepts both
// forms.
type ID int64

func (id ID) Int64() int64 {
	return int64(id)
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func (id ID) IsZero() bool {
	return id == 0
}

func (id ID) Value() (driver.Value, error) {
	return int64(id), nil
}

func (id *ID) Scan(value interface{}) error {
	switch v := value.(type) {
	case int64:
		*id = ID(v)
		return nil
	case []byte:
		return id.parse(string(v))
	case string:
		return id.parse(v)
	case nil:
		*id = 0
		return nil
	default:
		return fmt.Errorf("cannot convert %T to ID", value)
	}
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		return id.parse(str)
	}
	var num int64
	if err := json.Unmarshal(data, &num); err == nil {
		*id = ID(num)
		return nil
	}
	return fmt.Errorf("invalid id format")
}

func (id *ID) parse(raw string) error {
	parsed, err := ParseID(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseID converts a decimal string into an ID.
func ParseID(raw string) (ID, error) {
	val, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return ID(val), nil
}
