package tmdb

import (
	"errors"
	"fmt"
	"strings"
)

const (
	OpPopular = "popular"
	OpDetails = "details"
)

// ErrEmptyDetails 表示详情接口返回了 2xx 但内容为空对象（无 id）。
var ErrEmptyDetails = errors.New("详情响应为空")

// Error 是 TMDB 调用阶段的可追溯错误。
// 上层据此区分“列表失败（致命）”与“详情失败（跳过该条）”。
type Error struct {
	Op  string // OpPopular 或 OpDetails
	ID  int    // 仅 OpDetails 有意义
	Err error
}

func (e *Error) Error() string {
	if e.Op == OpDetails {
		return fmt.Sprintf("tmdb op=%s id=%d: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("tmdb op=%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatusError 表示 TMDB 返回了非 2xx 的 HTTP 状态码。
// Message 优先取 TMDB 的 status_message，其次是 HTML 错误页的 <title>。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, msg)
}

// UnexpectedContentError 表示 2xx 但 body 不是 JSON（常见于代理/网关返回的 HTML 页面）。
type UnexpectedContentError struct {
	URL         string
	ContentType string
	Title       string
}

func (e *UnexpectedContentError) Error() string {
	if e == nil {
		return "unexpected content"
	}
	if t := strings.TrimSpace(e.Title); t != "" {
		return fmt.Sprintf("响应不是 JSON（content-type=%s，title=%q）", e.ContentType, t)
	}
	return fmt.Sprintf("响应不是 JSON（content-type=%s）", e.ContentType)
}

// StatusCode 返回错误链上的 HTTP 状态码；没有则返回 0。
func StatusCode(err error) int {
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
