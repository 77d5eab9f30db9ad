package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/mattn/go-isatty"

	"github.com/John-Robertt/tmdbscrape/internal/app/run"
	"github.com/John-Robertt/tmdbscrape/internal/config"
	"github.com/John-Robertt/tmdbscrape/internal/domain"
	"github.com/John-Robertt/tmdbscrape/internal/infra/fsx"
	"github.com/John-Robertt/tmdbscrape/internal/infra/httpx"
	"github.com/John-Robertt/tmdbscrape/internal/logx"
	"github.com/John-Robertt/tmdbscrape/internal/tmdb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runCmd(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

func runCmd(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}
	for _, a := range args {
		if isHelp(a) {
			printUsage(stdout)
			return 0
		}
	}

	ca, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "参数错误：%v\n\n", err)
		printUsage(stderr)
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, ca)
	if err != nil {
		emitReport(stdout, stderr, reportForConfigError(ca, err))
		return 1
	}

	progressW, interactive := pickProgressWriter(stdout, stderr)
	logW := stderr
	if interactive {
		logW = progressW
	}
	logger := logx.New(logLevelFor(eff.LogLevel, interactive), logW)

	client, err := newTMDBClient(eff, logger)
	if err != nil {
		emitReport(stdout, stderr, reportForConfigError(ca, &config.Error{Code: config.ErrCodeInvalid, Path: eff.ConfigFile, Err: err}))
		return 1
	}

	var obs run.Observer
	var ui *progressUI
	if interactive {
		ui = newProgressUI(progressW)
		obs = ui
	}

	rr := run.ExecuteWithObserver(ctx, eff, client, logger, obs)
	if ui != nil {
		ui.stop()
	}

	if eff.ReportPath != "" {
		if err := writeReportFile(eff.ReportPath, rr); err != nil {
			fmt.Fprintf(stderr, "写入 report 失败：%v\n", err)
			emitReport(stdout, stderr, rr)
			return 1
		}
	}

	emitReport(stdout, stderr, rr)
	if interactive {
		emitLocations(progressW, eff, rr)
	}
	if rr.Failed() {
		return 1
	}
	return 0
}

// parseArgs 解析位置参数：<count> [page]。
// 任何非法输入都在发起网络请求之前返回错误（退出码 2）。
func parseArgs(args []string) (config.CLIArgs, error) {
	ca := config.CLIArgs{}

	pos := make([]string, 0, 2)
	for _, a := range args {
		if strings.HasPrefix(a, "-") && !isInt(a) {
			return config.CLIArgs{}, fmt.Errorf("未知参数 %q", a)
		}
		pos = append(pos, a)
	}

	switch len(pos) {
	case 0:
		return config.CLIArgs{}, fmt.Errorf("缺少 count")
	case 1, 2:
	default:
		return config.CLIArgs{}, fmt.Errorf("多余的参数：%q", pos[2:])
	}

	n, err := strconv.Atoi(pos[0])
	if err != nil {
		return config.CLIArgs{}, fmt.Errorf("count 必须是整数，实际是 %q", pos[0])
	}
	if n < 1 {
		return config.CLIArgs{}, fmt.Errorf("count 必须 >= 1，实际是 %d", n)
	}
	ca.Count = n

	if len(pos) == 2 {
		p, err := strconv.Atoi(pos[1])
		if err != nil {
			return config.CLIArgs{}, fmt.Errorf("page 必须是整数，实际是 %q", pos[1])
		}
		if p < 1 || p > config.MaxPage {
			return config.CLIArgs{}, fmt.Errorf("page 必须在 1..%d 之间，实际是 %d", config.MaxPage, p)
		}
		ca.Page = p
		ca.PageSet = true
	}
	return ca, nil
}

func isInt(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  tmdbscrape <count> [page]

参数：
  count       从热门列表取前 count 部电影（>= 1）
  page        热门列表页码（1..500，默认 1）
  -h, --help  显示帮助

示例：
  tmdbscrape 20 1

配置（优先级从高到低）：环境变量 > .env > tmdbscrape.yaml > 默认值
  TMDB_API_KEY           TMDB API key（必填）
  TMDB_API_BASE_URL      API 地址（默认 https://api.themoviedb.org/3）
  TMDB_IMAGE_BASE_URL    图片地址（默认 https://image.tmdb.org/t/p/w500）
  TMDBSCRAPE_CSV         CSV 路径（默认 data/movies.csv）
  TMDBSCRAPE_POSTER_DIR  poster 目录（默认 pictures/movie_posters）
  LOG_LEVEL              日志级别（默认 info）
`)
}

func newTMDBClient(eff config.EffectiveConfig, logger hclog.Logger) (*tmdb.Client, error) {
	hc, err := httpx.NewAPIClient(eff.ProxyURL, eff.Timeout)
	if err != nil {
		return nil, fmt.Errorf("proxy.url 无效：%w", err)
	}
	return tmdb.New(tmdb.Options{
		BaseURL:    eff.APIBaseURL,
		APIKey:     eff.APIKey,
		Language:   eff.Language,
		HTTPClient: hc,
		Logger:     logger,
	})
}

// logLevelFor 在交互终端下把 info 级日志收敛到 warn：逐条结果已经由进度行展示。
func logLevelFor(level string, interactive bool) string {
	if !interactive {
		return level
	}
	switch strings.ToLower(level) {
	case "trace", "debug", "warn", "error", "off":
		return level
	default:
		return "warn"
	}
}

func emitReport(stdout, stderr io.Writer, rr domain.RunReport) {
	if isTTY(stdout) {
		fmt.Fprintln(stdout, summaryLine(rr))
		for _, it := range rr.Items {
			if it.Status != domain.StatusSkipped {
				continue
			}
			fmt.Fprintf(stderr, "%d %s: %s\n", it.TMDBID, it.ErrorCode, it.ErrorMsg)
		}
		if rr.Error != nil {
			fmt.Fprintf(stderr, "%s: %s\n", rr.Error.Code, rr.Error.Msg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(stderr, summaryLine(rr))
	if rr.Error != nil {
		fmt.Fprintf(stderr, "%s: %s\n", rr.Error.Code, rr.Error.Msg)
	}
}

func summaryLine(rr domain.RunReport) string {
	if rr.Error == nil && rr.Listed == 0 {
		return fmt.Sprintf("完成：没有找到电影（page=%d）", rr.Page)
	}
	s := fmt.Sprintf("完成：added=%d skipped=%d poster_failed=%d",
		rr.Summary.Added, rr.Summary.Skipped, rr.Summary.PosterFailed,
	)
	if rr.Error != nil {
		s = "失败（" + rr.Error.Code + "）：" + strings.TrimPrefix(s, "完成：")
	}
	return s
}

func reportForConfigError(ca config.CLIArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	page := ca.Page
	if !ca.PageSet {
		page = config.DefaultPage
	}
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rr := domain.RunReport{
		RunID:      uuid.NewString(),
		Page:       page,
		Requested:  ca.Count,
		StartedAt:  now,
		FinishedAt: now,
		Items:      []domain.ItemResult{},
		Error:      &domain.RunError{Code: code, Msg: err.Error()},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), b)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func pickProgressWriter(stdout, stderr io.Writer) (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(stderr) {
		return stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(stdout) {
		return stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig, rr domain.RunReport) {
	// 这几行用于降低“完成后不知道产物在哪”的摩擦，且不影响 stdout JSON 契约。
	if w == nil || rr.Failed() || rr.Listed == 0 {
		return
	}
	fmt.Fprintf(w, "csv: %s\n", eff.CSVPath)
	fmt.Fprintf(w, "posters: %s\n", eff.PosterDir)
	if eff.ReportPath != "" {
		fmt.Fprintf(w, "report: %s\n", eff.ReportPath)
	}
	fmt.Fprintln(w, "下一步：运行 'npm run db:import' 把 CSV 导入数据库")
}
