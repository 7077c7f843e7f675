package model

import (
	"encoding/json"
	"math"
	"testing"
)

func TestScalar_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
		set   bool
		isNum bool
	}{
		{name: "integer", input: `42`, want: "42", set: true, isNum: true},
		{name: "decimal", input: `12.5`, want: "12.5", set: true, isNum: true},
		{name: "trailing zeros", input: `100.00`, want: "100", set: true, isNum: true},
		{name: "string", input: `"555"`, want: "555", set: true},
		{name: "empty string", input: `""`, want: "", set: true},
		{name: "null", input: `null`, want: "", set: false},
		{name: "bool", input: `true`, want: "true", set: true},
		{name: "object", input: `{"a":1}`, want: `{"a":1}`, set: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var s Scalar
			if err := json.Unmarshal([]byte(tt.input), &s); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if s.String() != tt.want {
				t.Fatalf("got %q want %q", s.String(), tt.want)
			}
			if s.IsSet() != tt.set {
				t.Fatalf("set=%v want %v", s.IsSet(), tt.set)
			}
			if _, ok := s.Float(); tt.isNum && !ok {
				t.Fatalf("expected numeric scalar")
			}
		})
	}
}

func TestScalar_MissingFieldRendersEmpty(t *testing.T) {
	var u UserRecord
	if err := json.Unmarshal([]byte(`{"account":42,"name":"A"}`), &u); err != nil {
		t.Fatal(err)
	}
	if u.Account.String() != "42" || u.Name.String() != "A" {
		t.Fatalf("got account=%q name=%q", u.Account, u.Name)
	}
	if u.Phone.String() != "" || u.Phone.IsSet() {
		t.Fatalf("missing phone should be unset and render empty")
	}
}

func TestScalar_MarshalJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(UserRecord{Account: NumberScalar(7), Name: StringScalar("x")})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"account":7,"name":"x","phone":null,"packageId":null,"balance":null}`
	if string(b) != want {
		t.Fatalf("got %s want %s", b, want)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[float64]string{
		0:        "0",
		150:      "150",
		12.5:     "12.5",
		-3:       "-3",
		0.1 + 0.2: "0.30000000000000004",
	}
	for in, want := range tests {
		if got := FormatNumber(in); got != want {
			t.Errorf("FormatNumber(%v)=%q want %q", in, got, want)
		}
	}
	if FormatNumber(math.NaN()) != "NaN" {
		t.Errorf("NaN formatting")
	}
}
