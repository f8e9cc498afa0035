package types

import "strings"

// Envelope is the order backend's response wrapper. Older endpoints report
// their message under "msg", newer ones under "message".
type Envelope[T any] struct {
	Success    bool        `json:"success"`
	Data       T           `json:"data"`
	Message    string      `json:"message,omitempty"`
	Msg        string      `json:"msg,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// ErrorMessage returns whichever message field the backend populated.
func (e Envelope[T]) ErrorMessage() string {
	if m := strings.TrimSpace(e.Message); m != "" {
		return m
	}
	return strings.TrimSpace(e.Msg)
}

// Pagination is the paging block attached to list responses.
type Pagination struct {
	Page        int `json:"page"`
	PerPage     int `json:"perPage"`
	TotalPage   int `json:"totalPage"`
	TotalRecord int `json:"totalRecord"`
}

// ErrorEnvelope is returned by the backend on rejected requests. ERROR carries
// machine-readable markers such as the unknown-customer condition.
type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"ERROR,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
