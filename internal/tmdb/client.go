package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-hclog"
)

const (
	DefaultBaseURL  = "https://api.themoviedb.org/3"
	DefaultLanguage = "en-US"
)

// Options 是构造 Client 的参数。
type Options struct {
	BaseURL  string
	APIKey   string
	Language string

	// HTTPClient 承载代理/超时/UA 策略（见 infra/httpx）；为空时使用 resty 默认 client。
	HTTPClient *http.Client
	Logger     hclog.Logger
}

// Client 封装 TMDB v3 的两个只读接口。
//
// 约束：
// - 不做重试、不做缓存、不做限速
// - 错误信息里的 URL 会隐去 api_key
type Client struct {
	rc       *resty.Client
	language string
}

func New(opts Options) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("api_key 不能为空")
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	lang := strings.TrimSpace(opts.Language)
	if lang == "" {
		lang = DefaultLanguage
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(base).
		SetQueryParam("api_key", key).
		SetHeader("Accept", "application/json")
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	rc.SetLogger(restyLogger{l: logger.Named("resty")})

	return &Client{rc: rc, language: lang}, nil
}

// Popular 获取 /movie/popular 的第 page 页。
func (c *Client) Popular(ctx context.Context, page int) (PopularPage, error) {
	var out PopularPage
	q := map[string]string{
		"language": c.language,
		"page":     strconv.Itoa(page),
	}
	if err := c.get(ctx, "/movie/popular", nil, q, &out); err != nil {
		return PopularPage{}, &Error{Op: OpPopular, Err: err}
	}
	return out, nil
}

// MovieDetails 获取单部电影详情（附带 credits）。
func (c *Client) MovieDetails(ctx context.Context, id int) (MovieDetails, error) {
	var out MovieDetails
	pp := map[string]string{"id": strconv.Itoa(id)}
	q := map[string]string{"append_to_response": "credits"}
	if err := c.get(ctx, "/movie/{id}", pp, q, &out); err != nil {
		return MovieDetails{}, &Error{Op: OpDetails, ID: id, Err: err}
	}
	if out.ID == 0 {
		return MovieDetails{}, &Error{Op: OpDetails, ID: id, Err: ErrEmptyDetails}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, pathParams, query map[string]string, out any) error {
	req := c.rc.R().SetContext(ctx).SetQueryParams(query)
	if len(pathParams) > 0 {
		req.SetPathParams(pathParams)
	}
	resp, err := req.Get(path)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = redactURL(ue.URL)
		}
		return err
	}

	body := resp.Body()
	ct := resp.Header().Get("Content-Type")
	u := responseURL(resp)

	if !resp.IsSuccess() {
		se := &HTTPStatusError{URL: u, StatusCode: resp.StatusCode()}
		var ae apiError
		if json.Unmarshal(body, &ae) == nil && ae.StatusMessage != "" {
			se.Message = ae.StatusMessage
		} else if looksLikeHTML(ct, body) {
			se.Message = htmlTitle(body)
		}
		return se
	}
	if looksLikeHTML(ct, body) {
		return &UnexpectedContentError{URL: u, ContentType: ct, Title: htmlTitle(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("解析响应失败：%w", err)
	}
	return nil
}

func responseURL(resp *resty.Response) string {
	if resp == nil || resp.Request == nil || resp.Request.RawRequest == nil || resp.Request.RawRequest.URL == nil {
		return ""
	}
	return redactURL(resp.Request.RawRequest.URL.String())
}

// redactURL 隐去 query 中的 api_key（错误信息会进入日志与 report）。
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get("api_key") == "" {
		return raw
	}
	q.Set("api_key", "***")
	u.RawQuery = q.Encode()
	return u.String()
}

var apiKeyParam = regexp.MustCompile(`api_key=[^&\s"]+`)

// restyLogger 把 resty 的 printf 风格日志接到 hclog（同样隐去 api_key）。
type restyLogger struct {
	l hclog.Logger
}

func (r restyLogger) msg(format string, v ...interface{}) string {
	return apiKeyParam.ReplaceAllString(strings.TrimSpace(fmt.Sprintf(format, v...)), "api_key=***")
}

func (r restyLogger) Errorf(format string, v ...interface{}) { r.l.Error(r.msg(format, v...)) }

func (r restyLogger) Warnf(format string, v ...interface{}) { r.l.Warn(r.msg(format, v...)) }

func (r restyLogger) Debugf(format string, v ...interface{}) { r.l.Debug(r.msg(format, v...)) }
