package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/tmdbscrape/internal/logx"
)

const (
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeAPIKeyMissing 表示所有来源都没有提供 TMDB API key。
	ErrCodeAPIKeyMissing = "api_key_missing"
)

const (
	// FileName 是 cwd 下可选的配置文件名。
	FileName = "tmdbscrape.yaml"
	// EnvFileName 是 cwd 下可选的 .env 文件名。
	EnvFileName = ".env"

	DefaultPage          = 1
	MaxPage              = 500
	DefaultAPIBaseURL    = "https://api.themoviedb.org/3"
	DefaultImageBaseURL  = "https://image.tmdb.org/t/p/w500"
	DefaultLanguage      = "en-US"
	DefaultCSVPath       = "data/movies.csv"
	DefaultPosterDir     = "pictures/movie_posters"
	DefaultPosterPrefix  = "movie_posters"
	DefaultDefaultPoster = "movie_posters/default.png"
	DefaultTimeout       = 20 * time.Second
	DefaultLogLevel      = "info"
)

// 环境变量名（进程环境优先于 .env）。
const (
	EnvAPIKey       = "TMDB_API_KEY"
	EnvAPIBaseURL   = "TMDB_API_BASE_URL"
	EnvImageBaseURL = "TMDB_IMAGE_BASE_URL"
	EnvCSVPath      = "TMDBSCRAPE_CSV"
	EnvPosterDir    = "TMDBSCRAPE_POSTER_DIR"
	EnvLogLevel     = "LOG_LEVEL"
)

// CLIArgs 只包含 CLI 暴露的两项入口（count/page），并保留 page “是否显式指定”的信息。
type CLIArgs struct {
	Count int

	Page    int
	PageSet bool
}

// FileConfig 对应 tmdbscrape.yaml 的解析结构。
type FileConfig struct {
	APIKey          string       `yaml:"api_key"`
	APIBaseURL      string       `yaml:"api_base_url"`
	ImageBaseURL    string       `yaml:"image_base_url"`
	Language        string       `yaml:"language"`
	CSVPath         string       `yaml:"csv_path"`
	PosterDir       string       `yaml:"poster_dir"`
	PosterPrefix    string       `yaml:"poster_prefix"`
	DefaultPoster   string       `yaml:"default_poster"`
	DownloadPosters *bool        `yaml:"download_posters"`
	Proxy           *ProxyConfig `yaml:"proxy"`
	ImageProxy      bool         `yaml:"image_proxy"`
	TimeoutSec      int          `yaml:"timeout_sec"`
	LogLevel        string       `yaml:"log_level"`
	ReportPath      string       `yaml:"report_path"`
}

type ProxyConfig struct {
	URL string `yaml:"url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Count int
	Page  int

	APIKey       string
	APIBaseURL   string
	ImageBaseURL string
	Language     string

	// 以下路径均为绝对路径（相对路径以 cwd 为基准）。
	CSVPath   string
	PosterDir string

	PosterPrefix    string
	DefaultPoster   string
	DownloadPosters bool

	ProxyURL   string
	ImageProxy bool
	Timeout    time.Duration

	LogLevel string

	// ReportPath 非空时，report JSON 额外原子写入该路径。
	ReportPath string

	// ConfigFile 是实际读取到的配置文件路径；不存在时为空。
	ConfigFile string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeAPIKeyMissing:
		return fmt.Sprintf("%s：未配置 TMDB API key（设置环境变量 %s，或写入 %s / %s 的 api_key）", e.Code, EnvAPIKey, EnvFileName, FileName)
	case ErrCodeInvalid:
		if e.Path == "" {
			if e.Err != nil {
				return fmt.Sprintf("%s：%v", e.Code, e.Err)
			}
			return e.Code
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取 cwd 下的可选配置来源，然后与 CLI 参数合并为最终配置。
//
// 覆盖优先级（固定）：
// - page：CLI > 默认 1
// - 其他字段：进程环境变量 > <cwd>/.env > <cwd>/tmdbscrape.yaml > 默认值
//
// .env 只作为查找来源，不写回进程环境。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		cfgPath = ""
	}

	envPath := filepath.Join(cwdAbs, EnvFileName)
	dotenv, err := readDotEnv(envPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: envPath, Err: err}
	}
	env := func(key string) string {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(dotenv[key])
	}

	return merge(cwdAbs, cli, fc, env, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, env func(string) string, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	if cli.Count < 1 {
		return invalid(fmt.Errorf("count 必须 >= 1，实际是 %d", cli.Count))
	}
	page := DefaultPage
	if cli.PageSet {
		page = cli.Page
	}
	if page < 1 || page > MaxPage {
		return invalid(fmt.Errorf("page 必须在 1..%d 之间，实际是 %d", MaxPage, page))
	}

	apiKey := first(env(EnvAPIKey), fc.APIKey)
	if apiKey == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeAPIKeyMissing, Path: cfgPath}
	}

	apiBase := strings.TrimRight(first(env(EnvAPIBaseURL), fc.APIBaseURL, DefaultAPIBaseURL), "/")
	if err := validateHTTPURL("api_base_url", apiBase); err != nil {
		return invalid(err)
	}
	imageBase := strings.TrimRight(first(env(EnvImageBaseURL), fc.ImageBaseURL, DefaultImageBaseURL), "/")
	if err := validateHTTPURL("image_base_url", imageBase); err != nil {
		return invalid(err)
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return invalid(fmt.Errorf("proxy.url 无效：%w", err))
		}
	}
	if fc.ImageProxy && proxyURL == "" {
		return invalid(fmt.Errorf("image_proxy=true 但 proxy.url 为空"))
	}

	timeout := DefaultTimeout
	if fc.TimeoutSec < 0 {
		return invalid(fmt.Errorf("timeout_sec 不能为负数：%d", fc.TimeoutSec))
	}
	if fc.TimeoutSec > 0 {
		timeout = time.Duration(fc.TimeoutSec) * time.Second
	}

	logLevel := strings.ToLower(first(env(EnvLogLevel), fc.LogLevel, DefaultLogLevel))
	if !logx.ValidLevel(logLevel) {
		return invalid(fmt.Errorf("log_level 无效：%q", logLevel))
	}

	download := true
	if fc.DownloadPosters != nil {
		download = *fc.DownloadPosters
	}

	prefix := strings.Trim(strings.TrimSpace(fc.PosterPrefix), "/")
	if prefix == "" {
		prefix = DefaultPosterPrefix
	}

	reportPath := ""
	if rp := strings.TrimSpace(fc.ReportPath); rp != "" {
		reportPath = absCleanFrom(cwdAbs, rp)
	}

	return EffectiveConfig{
		Count:           cli.Count,
		Page:            page,
		APIKey:          apiKey,
		APIBaseURL:      apiBase,
		ImageBaseURL:    imageBase,
		Language:        first(fc.Language, DefaultLanguage),
		CSVPath:         absCleanFrom(cwdAbs, first(env(EnvCSVPath), fc.CSVPath, DefaultCSVPath)),
		PosterDir:       absCleanFrom(cwdAbs, first(env(EnvPosterDir), fc.PosterDir, DefaultPosterDir)),
		PosterPrefix:    prefix,
		DefaultPoster:   first(fc.DefaultPoster, DefaultDefaultPoster),
		DownloadPosters: download,
		ProxyURL:        proxyURL,
		ImageProxy:      fc.ImageProxy,
		Timeout:         timeout,
		LogLevel:        logLevel,
		ReportPath:      reportPath,
		ConfigFile:      cfgPath,
	}, nil
}

// MaskAPIKey 只保留首尾各 3 个字符，用于日志/横幅展示。
func MaskAPIKey(key string) string {
	if len(key) <= 6 {
		return strings.Repeat("*", len(key))
	}
	return key[:3] + strings.Repeat("*", len(key)-6) + key[len(key)-3:]
}

// TimeoutString 以秒为单位展示超时（用于横幅）。
func (c EffectiveConfig) TimeoutString() string {
	return strconv.Itoa(int(c.Timeout/time.Second)) + "s"
}

func first(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}

// readDotEnv 读取 .env；不存在返回空 map。
func readDotEnv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return godotenv.Read(path)
}
