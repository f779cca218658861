package model

import (
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// ValueKind 单元格值类型
type ValueKind uint8

const (
	KindEmpty ValueKind = iota
	KindText
	KindNumber
)

// Value 单元格值（空 / 文本 / 数值）
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
}

// Empty 空值
func Empty() Value { return Value{} }

// Text 文本值，空白字符串视为空值
func Text(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Value{}
	}
	return Value{Kind: KindText, Str: s}
}

// Number 数值，NaN/Inf 视为空值
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{Kind: KindNumber, Num: f}
}

// ParseValue 将原始单元格字符串解析为 Value：能识别为数字的转为数值，否则保留文本；
// 以 0 开头的编码（如 "0123"）保留为文本
func ParseValue(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Value{}
	}
	if len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9' {
		return Value{Kind: KindText, Str: s}
	}
	if f, ok := ParseNumber(s); ok {
		return Number(f)
	}
	return Value{Kind: KindText, Str: s}
}

// ParseNumber 解析数字字符串，支持千分位逗号、空格与百分号
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	pct := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if pct {
		f /= 100
	}
	return f, true
}

// IsEmpty 是否为空值
func (v Value) IsEmpty() bool { return v.Kind == KindEmpty }

// IsNumber 是否为数值
func (v Value) IsNumber() bool { return v.Kind == KindNumber }

// Float 数值视图；文本尝试解析，失败返回 (0, false)
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindText:
		return ParseNumber(v.Str)
	default:
		return 0, false
	}
}

// FloatOrZero 数值视图，非数值按 0 处理
func (v Value) FloatOrZero() float64 {
	f, _ := v.Float()
	return f
}

// String 文本视图；整数值不带小数点
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Str
	case KindNumber:
		return FormatNumber(v.Num)
	default:
		return ""
	}
}

// Equal 值相等（数值按数值比较，其余按文本比较）
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	if v.Kind == KindNumber {
		return v.Num == o.Num
	}
	return v.Str == o.Str
}

// FormatNumber 数字格式化：整数不带小数点，其余最短表示
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// MarshalJSON 空值输出 null，数值输出 number，文本输出 string
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return []byte(strconv.FormatFloat(v.Num, 'f', -1, 64)), nil
	case KindText:
		return json.Marshal(v.Str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON 接受 null / number / string
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// FromAny 从 JSON 解码结果构造 Value
func FromAny(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Value{}
	case float64:
		return Number(x)
	case int:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return Number(f)
		}
		return Text(x.String())
	case bool:
		if x {
			return Number(1)
		}
		return Number(0)
	case string:
		return Text(strings.TrimSpace(x))
	default:
		return Value{}
	}
}

// Cell 动态列单元格（列名 + 值）
type Cell struct {
	Column string `json:"column"`
	Value  Value  `json:"value"`
}
