package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout 是单个请求的总超时（含读 body）。
	DefaultTimeout = 20 * time.Second

	// UserAgent 固定为工具自身标识；TMDB 是公开 API，不需要伪装浏览器。
	UserAgent = "tmdbscrape/1.0 (+https://github.com/John-Robertt/tmdbscrape)"
)

// Transport 把“固定 UA + 代理 + keep-alive 策略”固化为统一策略。
//
// 约束：不做重试。每个请求只尝试一次，失败由上层按阶段决定是致命还是跳过。
type Transport struct {
	Base *http.Transport

	// UserAgent 非空时覆盖请求上的 UA（resty 等上层库会自带默认 UA）。
	UserAgent string

	// DisableKeepAlives 决定是否对 Request 设置 Close=true（额外保险）。
	// 真正禁用 keep-alive 依赖 Base.DisableKeepAlives。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// Clone 会复制 Header 等，避免在 RoundTripper 内部“污染”调用方的 request。
	r := req.Clone(req.Context())
	if t.UserAgent != "" {
		r.Header.Set("User-Agent", t.UserAgent)
	}
	if t.DisableKeepAlives {
		r.Close = true
	}
	return t.Base.RoundTrip(r)
}

// NewAPIClient 构造用于 TMDB API 调用的 HTTP client。
//
// 规则：
// - proxyURL 非空：必须走代理，且禁用 keep-alive（每请求新连接）
// - timeout <= 0 时使用 DefaultTimeout
func NewAPIClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	return newClient(strings.TrimSpace(proxyURL), timeout)
}

// NewImageClient 构造用于 poster 下载的 HTTP client。
//
// 规则：
// - imageProxy=false：图片直连（忽略 proxyURL）
// - imageProxy=true：图片走 proxyURL，且禁用 keep-alive
func NewImageClient(proxyURL string, imageProxy bool, timeout time.Duration) (*http.Client, error) {
	if !imageProxy {
		return newClient("", timeout)
	}
	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL == "" {
		return nil, errors.New("image_proxy=true 但 proxy.url 为空")
	}
	return newClient(proxyURL, timeout)
}

func newClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}

	disableKeepAlives := false
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	tr := &Transport{
		Base:              base,
		UserAgent:         UserAgent,
		DisableKeepAlives: disableKeepAlives,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}
