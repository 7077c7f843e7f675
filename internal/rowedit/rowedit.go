// Package rowedit is the single-row edit lock of the user table and the
// payload builders for edit, create and delete.
package rowedit

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"telecom-console/internal/model"
)

var (
	// ErrAnotherRowEditing rejects entering edit mode while a different row edits.
	ErrAnotherRowEditing = errors.New("同时只能编辑一个用户，请先保存或取消当前行")
	// ErrNotEditing is returned when committing a row that is not editing.
	ErrNotEditing = errors.New("row is not being edited")
)

const (
	EditLabel   = "修改"
	DeleteLabel = "删除"
	SaveLabel   = "保存"
	CancelLabel = "取消"
)

type Mode int

const (
	Viewing Mode = iota
	Editing
)

func (m Mode) String() string {
	if m == Editing {
		return "editing"
	}
	return "viewing"
}

// Kind selects how an input value is coerced into the payload.
type Kind int

const (
	Text Kind = iota
	Number
)

// Input is one editable cell.
type Input struct {
	Field string
	Kind  Kind
	Value string
}

// EditableFields lists the editable columns in display order.
var EditableFields = []string{"name", "phone", "packageId", "balance"}

// Editor holds the in-progress values of the editing row.
type Editor struct {
	Account string
	Inputs  []Input
}

func newEditor(row model.UserRecord) *Editor {
	return &Editor{
		Account: row.Account.String(),
		Inputs: []Input{
			{Field: "name", Kind: Text, Value: strings.TrimSpace(row.Name.String())},
			{Field: "phone", Kind: Text, Value: strings.TrimSpace(row.Phone.String())},
			{Field: "packageId", Kind: Number, Value: strings.TrimSpace(row.PackageID.String())},
			// balance seeds from the raw value, not the rendered cell
			{Field: "balance", Kind: Number, Value: row.Balance.String()},
		},
	}
}

// ActionLabel is the primary button label while editing.
func (e *Editor) ActionLabel() string { return SaveLabel }

// SecondaryLabel is the delete button label while editing.
func (e *Editor) SecondaryLabel() string { return CancelLabel }

// Value returns the current value of field.
func (e *Editor) Value(field string) string {
	for _, in := range e.Inputs {
		if in.Field == field {
			return in.Value
		}
	}
	return ""
}

// Set replaces the value of field.
func (e *Editor) Set(field, value string) error {
	for i := range e.Inputs {
		if e.Inputs[i].Field == field {
			e.Inputs[i].Value = value
			return nil
		}
	}
	return fmt.Errorf("unknown field %q", field)
}

// Payload collects every input; numeric inputs are coerced like a browser
// number field (blank is 0, unparsable is null).
func (e *Editor) Payload() map[string]interface{} {
	out := make(map[string]interface{}, len(e.Inputs))
	for _, in := range e.Inputs {
		if in.Kind == Number {
			out[in.Field] = NumberOrNull(in.Value)
			continue
		}
		out[in.Field] = in.Value
	}
	return out
}

// Session enforces that at most one row is editing.
type Session struct {
	mu     sync.Mutex
	editor *Editor
}

// Mode returns the mode of the row keyed by account.
func (s *Session) Mode(account string) Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editor != nil && s.editor.Account == account {
		return Editing
	}
	return Viewing
}

// Current returns the editing row, if any.
func (s *Session) Current() (*Editor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor, s.editor != nil
}

// Begin moves row into Editing. A different row already editing yields
// ErrAnotherRowEditing and no state change; the same row returns its editor.
func (s *Session) Begin(row model.UserRecord) (*Editor, error) {
	account := row.Account.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editor != nil {
		if s.editor.Account == account {
			return s.editor, nil
		}
		return nil, ErrAnotherRowEditing
	}
	s.editor = newEditor(row)
	return s.editor, nil
}

// Commit releases the lock after a successful save of account.
func (s *Session) Commit(account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editor == nil || s.editor.Account != account {
		return ErrNotEditing
	}
	s.editor = nil
	return nil
}

// Cancel discards the in-progress edit, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.editor = nil
	s.mu.Unlock()
}

// CreateForm is the add-user form as typed.
type CreateForm struct {
	Name      string
	Phone     string
	PackageID string
	Balance   string
	Password  string
}

// CreateRequest is the create-user payload; the server assigns the account.
type CreateRequest struct {
	Account   *string     `json:"account"`
	Name      string      `json:"name"`
	Phone     string      `json:"phone"`
	PackageID interface{} `json:"packageId"`
	Balance   interface{} `json:"balance"`
	Password  string      `json:"password"`
}

func CreatePayload(f CreateForm) CreateRequest {
	return CreateRequest{
		Name:      f.Name,
		Phone:     f.Phone,
		PackageID: NumberOrNull(f.PackageID),
		Balance:   NumberOrNull(f.Balance),
		Password:  f.Password,
	}
}

// DeletePrompt is the confirmation shown before deleting account.
func DeletePrompt(account string) string {
	return fmt.Sprintf("确认删除账号 %s 吗？", account)
}
