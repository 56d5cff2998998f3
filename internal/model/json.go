// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList 以 JSON 数组形式存储在数据库的字符串切片字段（如设施列表）。
type StringList []string

// Value 实现 driver.Valuer，序列化为 JSON 字符串写入数据库。
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner，从数据库读取 JSON 字符串并反序列化。
func (s *StringList) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// UintList 以 JSON 数组形式存储的 ID 列表（如聚类成员房源 ID）。
type UintList []uint

func (u UintList) Value() (driver.Value, error) {
	if u == nil {
		return "[]", nil
	}
	b, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (u *UintList) Scan(value interface{}) error {
	return scanJSON(value, u)
}

// FloatVector 以 JSON 数组形式存储的特征向量。
type FloatVector []float64

func (v FloatVector) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *FloatVector) Scan(value interface{}) error {
	return scanJSON(value, v)
}

// FeatureMap 以 JSON 对象形式存储的匹配特征快照。
type FeatureMap map[string]interface{}

func (m FeatureMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *FeatureMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// scanJSON 统一处理 MySQL 驱动返回的 []byte / string 两种形态。
func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("无法将 %T 扫描为 JSON 字段", value)
	}
}
