package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Address 收货/账单地址，结构由前端决定，这里按 JSON 文本原样存取。
type Address map[string]any

func (Address) GormDataType() string { return "text" }

func (a Address) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Address) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("address: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*a = nil
		return nil
	}
	out := Address{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("address: %w", err)
	}
	*a = out
	return nil
}
