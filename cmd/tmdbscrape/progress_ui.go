package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/John-Robertt/tmdbscrape/internal/app/run"
	"github.com/John-Robertt/tmdbscrape/internal/config"
	"github.com/John-Robertt/tmdbscrape/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

var (
	addedMark = color.New(color.FgGreen, color.Bold)
	skipMark  = color.New(color.FgYellow, color.Bold)
	warnMark  = color.New(color.FgYellow)
)

// progressUI 把 run 的事件渲染成终端行：每部电影一行 ADDED/SKIP，
// 详情请求或 poster 下载卡住超过阈值时补一行 keepalive。
// 只在 TTY 下启用；非 TTY 时 stdout 只留给 JSON 报告。
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total int
	done  int
	added int
	skip  int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] tmdbscrape run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  count: %d\n", eff.Count)
	fmt.Fprintf(p.w, "  page: %d\n", eff.Page)
	fmt.Fprintf(p.w, "  api: %s (key=%s)\n", truncate(eff.APIBaseURL, 120), config.MaskAPIKey(eff.APIKey))
	fmt.Fprintf(p.w, "  language: %s\n", eff.Language)
	fmt.Fprintf(p.w, "  posters: %s\n", formatPosters(eff))
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  image_proxy: %s\n", onOff(eff.ImageProxy))
	fmt.Fprintf(p.w, "  timeout: %s\n", eff.TimeoutString())
	if eff.ConfigFile != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigFile)
	}

	fmt.Fprintln(p.w, "输出:")
	fmt.Fprintf(p.w, "  csv: %s\n", eff.CSVPath)
	fmt.Fprintf(p.w, "  posters: %s\n", eff.PosterDir)
	if eff.ReportPath != "" {
		fmt.Fprintf(p.w, "  report: %s\n", eff.ReportPath)
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
	p.mu.Unlock()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "listing":
		fmt.Fprintf(p.w, "列表: page=%d results=%d selected=%d total_pages=%d (%s)\n",
			intField(fields, "page"),
			intField(fields, "results"),
			intField(fields, "selected"),
			intField(fields, "total_pages"),
			formatShortDuration(dur),
		)
	case "exec":
		p.total = intField(fields, "total_items")
		fmt.Fprintf(p.w, "执行: total_items=%d\n\n", p.total)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// idx/total 由 run 层给出；这里同时维护自己的计数，供 keepalive 使用。
	p.done = idx
	p.total = total

	switch res.Status {
	case domain.StatusAdded:
		p.added++
		fmt.Fprintf(p.w, "[%d/%d] %s %d %s (%s) poster=%s (%s)\n",
			idx, total, addedMark.Sprint("ADDED"), res.TMDBID, truncate(res.Title, 80), res.ReleaseYear,
			formatPoster(res.Poster), formatShortDuration(dur),
		)
	case domain.StatusSkipped:
		p.skip++
		fmt.Fprintf(p.w, "[%d/%d] %s %d %s %s: %s (%s)\n",
			idx, total, skipMark.Sprint("SKIP"), res.TMDBID, truncate(res.Title, 80),
			res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %d (%s)\n",
			idx, total, strings.ToUpper(res.Status), res.TMDBID, formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.done >= p.total {
		p.stopTickerLocked()
	}
}

// stop 在运行提前结束（取消/写入失败）时停止 ticker。
func (p *progressUI) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
}

func (p *progressUI) stopTickerLocked() {
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stopCh := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				// 已完成：安全退出（OnItemDone 会 close stopCh，但这里也做兜底）。
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}

				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					elapsed := time.Since(p.startedAt)
					fmt.Fprintf(p.w, "进度: done=%d/%d added=%d skip=%d elapsed=%s\n",
						p.done, p.total, p.added, p.skip, formatElapsed(elapsed),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stopCh:
				return
			}
		}
	}()
}

func formatPoster(pr domain.PosterResult) string {
	switch pr.Status {
	case domain.PosterStatusFailed:
		return warnMark.Sprint("failed") + "(" + truncate(pr.Error, 90) + ")"
	case "":
		return "-"
	default:
		return pr.Status
	}
}

func formatPosters(eff config.EffectiveConfig) string {
	if !eff.DownloadPosters {
		return "off (只记录路径)"
	}
	return "on (" + truncate(eff.ImageBaseURL, 120) + ")"
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}
