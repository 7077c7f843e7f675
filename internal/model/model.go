package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Scalar 表示服务端返回的标量字段。
//
// 后端可能把账号、套餐 ID、余额序列化为数字或字符串，缺失时为 null。
// 这里保留原始形态，并按前端的 `value ?? ''` 规则渲染展示文本。
type Scalar struct {
	raw   string
	num   float64
	isNum bool
	set   bool
}

// StringScalar builds a string-valued Scalar.
func StringScalar(s string) Scalar {
	return Scalar{raw: s, set: true}
}

// NumberScalar builds a number-valued Scalar.
func NumberScalar(f float64) Scalar {
	return Scalar{raw: FormatNumber(f), num: f, isNum: true, set: true}
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = Scalar{}
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*s = NumberScalar(f)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = StringScalar(str)
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*s = StringScalar(strconv.FormatBool(b))
		return nil
	}

	// 对象/数组：保留原文
	*s = StringScalar(string(data))
	return nil
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	switch {
	case !s.set:
		return []byte("null"), nil
	case s.isNum:
		return json.Marshal(s.num)
	default:
		return json.Marshal(s.raw)
	}
}

// String renders the display text; null renders as "".
func (s Scalar) String() string {
	return s.raw
}

// IsSet reports whether the field was present and non-null.
func (s Scalar) IsSet() bool {
	return s.set
}

// Float returns the numeric value when the scalar is a number or a numeric string.
func (s Scalar) Float() (float64, bool) {
	if !s.set {
		return 0, false
	}
	if s.isNum {
		return s.num, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s.raw), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FormatNumber formats like JavaScript's Number#toString for the common range.
func FormatNumber(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 0) {
		if f > 0 {
			return "Infinity"
		}
		return "-Infinity"
	}
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// UserRecord is the client view of a server-owned user. Account is the
// immutable key; the client never mutates a record except by re-fetching.
type UserRecord struct {
	Account   Scalar `json:"account"`
	Name      Scalar `json:"name"`
	Phone     Scalar `json:"phone"`
	PackageID Scalar `json:"packageId"`
	Balance   Scalar `json:"balance"`
}

// RemainingTime is the derived duration record of the user console.
type RemainingTime struct {
	UsedDurationText      Scalar `json:"usedDurationText"`
	RemainingDurationText Scalar `json:"remainingDurationText"`
}

// HourlyStat is one bucket of the traffic statistics endpoint.
type HourlyStat struct {
	Hour            Scalar `json:"hour"`
	OnlineUserCount Scalar `json:"onlineUserCount"`
}
