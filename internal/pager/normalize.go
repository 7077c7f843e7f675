package pager

import (
	"encoding/json"
	"fmt"
	"math"

	"telecom-console/internal/gateway"
	"telecom-console/internal/model"
)

// Page is one normalised page of the user list.
type Page struct {
	Users      []model.UserRecord
	PageNumber int
	TotalPages int
}

// Normalize accepts a bare array of users or an object with content (or
// data), an optional pageNumber and either totalPages or totalElements.
// Missing paging fields fall back to the requested page and prevTotal.
func Normalize(body gateway.Body, requestedPage, pageSize, prevTotal int) (Page, error) {
	out := Page{PageNumber: requestedPage, TotalPages: prevTotal}

	if body.IsArray() {
		if err := json.Unmarshal(body, &out.Users); err != nil {
			return Page{}, fmt.Errorf("decode user list: %w", err)
		}
		out.TotalPages = atLeastOne(out.TotalPages)
		return out, nil
	}

	obj, ok := body.Object()
	if !ok {
		return Page{}, fmt.Errorf("unexpected user list payload: %.64s", string(body))
	}

	rows := nonNull(obj["content"])
	if rows == nil {
		rows = nonNull(obj["data"])
	}
	if rows != nil {
		if err := json.Unmarshal(rows, &out.Users); err != nil {
			return Page{}, fmt.Errorf("decode user list: %w", err)
		}
	}

	if n, ok := number(obj["pageNumber"]); ok {
		out.PageNumber = int(n)
	}
	if n, ok := number(obj["totalPages"]); ok {
		out.TotalPages = int(n)
	} else if n, ok := number(obj["totalElements"]); ok {
		out.TotalPages = TotalPages(int(n), pageSize)
	}
	out.TotalPages = atLeastOne(out.TotalPages)
	return out, nil
}

// TotalPages is max(1, ceil(totalElements/pageSize)).
func TotalPages(totalElements, pageSize int) int {
	if pageSize <= 0 {
		return 1
	}
	return atLeastOne(int(math.Ceil(float64(totalElements) / float64(pageSize))))
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}

func number(raw json.RawMessage) (float64, bool) {
	if nonNull(raw) == nil {
		return 0, false
	}
	var s model.Scalar
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	return s.Float()
}
