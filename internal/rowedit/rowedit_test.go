package rowedit

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"telecom-console/internal/model"
)

func row(account float64, name string, balance float64) model.UserRecord {
	return model.UserRecord{
		Account:   model.NumberScalar(account),
		Name:      model.StringScalar(name),
		Phone:     model.StringScalar(" 555 "),
		PackageID: model.NumberScalar(1),
		Balance:   model.NumberScalar(balance),
	}
}

func TestBeginRejectsSecondRow(t *testing.T) {
	var s Session
	a := row(1, "A", 10)
	b := row(2, "B", 20)

	edA, err := s.Begin(a)
	if err != nil {
		t.Fatalf("Begin(A) err=%v", err)
	}
	if err := edA.Set("name", "A2"); err != nil {
		t.Fatalf("Set err=%v", err)
	}

	edB, err := s.Begin(b)
	if !errors.Is(err, ErrAnotherRowEditing) || edB != nil {
		t.Fatalf("Begin(B)=%v,%v want ErrAnotherRowEditing", edB, err)
	}
	if err.Error() != "同时只能编辑一个用户，请先保存或取消当前行" {
		t.Fatalf("message=%q", err.Error())
	}
	if s.Mode("1") != Editing || s.Mode("2") != Viewing {
		t.Fatalf("modes A=%v B=%v", s.Mode("1"), s.Mode("2"))
	}
	cur, ok := s.Current()
	if !ok || cur.Account != "1" || cur.Value("name") != "A2" {
		t.Fatalf("row A was disturbed: %+v", cur)
	}
}

func TestBeginSameRowReturnsExistingEditor(t *testing.T) {
	var s Session
	first, _ := s.Begin(row(1, "A", 10))
	_ = first.Set("phone", "999")
	again, err := s.Begin(row(1, "A", 10))
	if err != nil || again != first || again.Value("phone") != "999" {
		t.Fatalf("re-entry got=%p err=%v want=%p", again, err, first)
	}
}

func TestEditorSeedsInputs(t *testing.T) {
	var s Session
	ed, err := s.Begin(row(7, " Ann ", 12.5))
	if err != nil {
		t.Fatal(err)
	}
	want := []Input{
		{Field: "name", Kind: Text, Value: "Ann"},
		{Field: "phone", Kind: Text, Value: "555"},
		{Field: "packageId", Kind: Number, Value: "1"},
		{Field: "balance", Kind: Number, Value: "12.5"},
	}
	if len(ed.Inputs) != len(want) {
		t.Fatalf("inputs=%+v", ed.Inputs)
	}
	for i := range want {
		if ed.Inputs[i] != want[i] {
			t.Fatalf("input[%d]=%+v want=%+v", i, ed.Inputs[i], want[i])
		}
	}
	if ed.ActionLabel() != "保存" || ed.SecondaryLabel() != "取消" {
		t.Fatalf("labels=%q/%q", ed.ActionLabel(), ed.SecondaryLabel())
	}
	if err := ed.Set("account", "x"); err == nil {
		t.Fatalf("account must not be editable")
	}
}

func TestPayloadCoercesNumbers(t *testing.T) {
	var s Session
	ed, _ := s.Begin(row(7, "A", 0))
	_ = ed.Set("balance", "12.5")
	_ = ed.Set("packageId", "")
	_ = ed.Set("phone", "12.5")

	p := ed.Payload()
	if v, ok := p["balance"].(float64); !ok || v != 12.5 {
		t.Fatalf("balance=%#v want float64 12.5", p["balance"])
	}
	if v, ok := p["packageId"].(float64); !ok || v != 0 {
		t.Fatalf("packageId=%#v want 0", p["packageId"])
	}
	if v, ok := p["phone"].(string); !ok || v != "12.5" {
		t.Fatalf("phone=%#v want string", p["phone"])
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"balance":12.5,"name":"A","packageId":0,"phone":"12.5"}`
	if string(data) != want {
		t.Fatalf("json=%s want=%s", data, want)
	}

	_ = ed.Set("balance", "abc")
	if ed.Payload()["balance"] != nil {
		t.Fatalf("invalid number should become null")
	}
}

func TestCommitAndCancel(t *testing.T) {
	var s Session
	if err := s.Commit("1"); !errors.Is(err, ErrNotEditing) {
		t.Fatalf("Commit without edit err=%v", err)
	}
	_, _ = s.Begin(row(1, "A", 1))
	if err := s.Commit("2"); !errors.Is(err, ErrNotEditing) {
		t.Fatalf("Commit wrong row err=%v", err)
	}
	if err := s.Commit("1"); err != nil {
		t.Fatalf("Commit err=%v", err)
	}
	if _, ok := s.Current(); ok {
		t.Fatalf("lock not released")
	}
	_, _ = s.Begin(row(2, "B", 1))
	s.Cancel()
	if _, err := s.Begin(row(3, "C", 1)); err != nil {
		t.Fatalf("Begin after cancel err=%v", err)
	}
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12.5", 12.5, true},
		{"  42 ", 42, true},
		{"", 0, true},
		{"   ", 0, true},
		{"-5", -5, true},
		{"+3", 3, true},
		{".5", 0.5, true},
		{"5.", 5, true},
		{"1e3", 1000, true},
		{"0x1F", 31, true},
		{"0b101", 5, true},
		{"abc", 0, false},
		{"12abc", 0, false},
		{"1_000", 0, false},
		{"inf", 0, false},
		{"NaN", 0, false},
		{"-0x1", 0, false},
	}
	for _, tt := range tests {
		got, ok := ToNumber(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ToNumber(%q)=%v,%v want=%v,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
	if f, ok := ToNumber("Infinity"); !ok || !math.IsInf(f, 1) {
		t.Errorf("Infinity=%v,%v", f, ok)
	}
	if NumberOrNull("Infinity") != nil {
		t.Errorf("Infinity should serialise as null")
	}
}

func TestCreatePayload(t *testing.T) {
	req := CreatePayload(CreateForm{Name: "N", Phone: "P", PackageID: "2", Balance: "30.5", Password: "pw"})
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"account":null,"name":"N","phone":"P","packageId":2,"balance":30.5,"password":"pw"}`
	if string(data) != want {
		t.Fatalf("json=%s want=%s", data, want)
	}
}

func TestDeletePrompt(t *testing.T) {
	if got := DeletePrompt("42"); got != "确认删除账号 42 吗？" {
		t.Fatalf("prompt=%q", got)
	}
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"plain":                  "plain",
		"\x1b[31mred\x1b[0m":     "red",
		"a\nb\tc":                "a b c",
		"bell\x07":               "bell",
		"\x1b]0;title\x07after":  "after",
		"中文\x00名":               "中文名",
	}
	for in, want := range tests {
		if got := Sanitize(in); got != want {
			t.Errorf("Sanitize(%q)=%q want=%q", in, got, want)
		}
	}
}
