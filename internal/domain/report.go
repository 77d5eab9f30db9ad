package domain

import (
	"time"

	json "github.com/goccy/go-json"
)

const (
	StatusAdded   = "added"
	StatusSkipped = "skipped"
)

const (
	PosterStatusDownloaded = "downloaded"
	PosterStatusFailed     = "failed"
	PosterStatusDisabled   = "disabled"
	PosterStatusNone       = "none"
)

const (
	ErrCodeDetailFailed  = "detail_failed"
	ErrCodePosterFailed  = "poster_failed"
	ErrCodeListingFailed = "listing_failed"
	ErrCodeIOFailed      = "io_failed"
	ErrCodeCanceled      = "canceled"
	ErrCodeConfigInvalid = "config_invalid"
	ErrCodeAPIKeyMissing = "api_key_missing"
)

// RunReport 是对外稳定输出（report 文件 / stdout JSON）的结构。
type RunReport struct {
	RunID string `json:"run_id"`

	Page      int `json:"page"`
	Requested int `json:"requested"`
	// Listed 是从列表页实际取到的条目数（<= Requested；0 表示该页没有电影）。
	Listed int `json:"listed"`

	CSVPath   string `json:"csv_path"`
	PosterDir string `json:"poster_dir"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`

	// Error 非空表示整次运行失败（列表请求失败、CSV 无法写入、配置错误等）。
	Error *RunError `json:"error,omitempty"`
}

type ReportSummary struct {
	Added        int `json:"added"`
	Skipped      int `json:"skipped"`
	PosterFailed int `json:"poster_failed"`
}

type RunError struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

type ItemResult struct {
	TMDBID      int    `json:"tmdb_id"`
	Title       string `json:"title"`
	ReleaseYear string `json:"release_year"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Poster PosterResult `json:"poster"`
}

type PosterResult struct {
	Recorded string `json:"recorded"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Failed 表示整次运行失败（对应非 0 退出码）。
func (r *RunReport) Failed() bool {
	return r != nil && r.Error != nil
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary 由 items 计算得出
//
// items 保持 API 返回顺序，不排序（与 CSV 行顺序一致）。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Items == nil {
		r.Items = []ItemResult{}
	}

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusAdded:
			s.Added++
		case StatusSkipped:
			s.Skipped++
		}
		if it.Poster.Status == PosterStatusFailed {
			s.PosterFailed++
		}
	}
	r.Summary = s
}

// MarshalJSON 集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
