package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/John-Robertt/tmdbscrape/internal/app/planner"
	"github.com/John-Robertt/tmdbscrape/internal/config"
	"github.com/John-Robertt/tmdbscrape/internal/domain"
	"github.com/John-Robertt/tmdbscrape/internal/extract"
	"github.com/John-Robertt/tmdbscrape/internal/infra/fsx"
	"github.com/John-Robertt/tmdbscrape/internal/infra/httpx"
	"github.com/John-Robertt/tmdbscrape/internal/infra/imgx"
	"github.com/John-Robertt/tmdbscrape/internal/moviecsv"
	"github.com/John-Robertt/tmdbscrape/internal/tmdb"
)

// Source 是 run 对 TMDB 的最小依赖（*tmdb.Client 实现它；测试可替换为 stub）。
type Source interface {
	Popular(ctx context.Context, page int) (tmdb.PopularPage, error)
	MovieDetails(ctx context.Context, id int) (tmdb.MovieDetails, error)
}

// Execute 执行一次抓取并返回对外稳定的 RunReport。
//
// 列表失败、CSV 无法写入、被取消属于整次失败（RunReport.Error 非空）；
// 单条详情失败只跳过该条，poster 失败只记录告警（CSV 行照常写入）。
func Execute(ctx context.Context, eff config.EffectiveConfig, src Source, logger hclog.Logger) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, src, logger, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, src Source, logger hclog.Logger, obs Observer) domain.RunReport {
	started := time.Now().UTC()
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Page:      eff.Page,
		Requested: eff.Count,
		CSVPath:   eff.CSVPath,
		PosterDir: eff.PosterDir,
		StartedAt: started,
		Items:     []domain.ItemResult{},
	}
	fail := func(code, msg string) domain.RunReport {
		logger.Error(msg, "code", code)
		rr.Error = &domain.RunError{Code: code, Msg: msg}
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	if src == nil {
		return fail(domain.ErrCodeConfigInvalid, "TMDB source 为空")
	}

	var imageClient *http.Client
	if eff.DownloadPosters {
		ic, err := httpx.NewImageClient(eff.ProxyURL, eff.ImageProxy, eff.Timeout)
		if err != nil {
			return fail(domain.ErrCodeConfigInvalid, err.Error())
		}
		imageClient = ic
	}

	if err := fsx.EnsureDir(filepath.Dir(eff.CSVPath)); err != nil {
		return fail(domain.ErrCodeIOFailed, fmt.Sprintf("创建数据目录失败：%v", err))
	}
	if err := fsx.EnsureDir(eff.PosterDir); err != nil {
		return fail(domain.ErrCodeIOFailed, fmt.Sprintf("创建 poster 目录失败：%v", err))
	}

	listStarted := time.Now()
	page, err := src.Popular(ctx, eff.Page)
	if err != nil {
		if ctx.Err() != nil {
			return fail(domain.ErrCodeCanceled, "已取消")
		}
		return fail(domain.ErrCodeListingFailed, humanizeTMDBError(err))
	}

	selected := page.Results
	if len(selected) > eff.Count {
		selected = selected[:eff.Count]
	}
	rr.Listed = len(selected)

	if obs != nil {
		obs.OnPhaseDone("listing", map[string]any{
			"page":        eff.Page,
			"results":     len(page.Results),
			"selected":    len(selected),
			"total_pages": page.TotalPages,
		}, time.Since(listStarted))
	}

	if len(selected) == 0 {
		logger.Info("该页没有电影", "page", eff.Page)
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	w, err := moviecsv.OpenAppend(eff.CSVPath)
	if err != nil {
		return fail(domain.ErrCodeIOFailed, fmt.Sprintf("打开 CSV 失败：%v", err))
	}

	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"total_items": len(selected),
			"posters":     eff.DownloadPosters,
		}, 0)
	}

	posterOpts := planner.PosterOptions{
		ImageBaseURL:  eff.ImageBaseURL,
		PosterDir:     eff.PosterDir,
		PosterPrefix:  eff.PosterPrefix,
		DefaultPoster: eff.DefaultPoster,
		Download:      eff.DownloadPosters,
	}

	var runErr *domain.RunError
	for i, sum := range selected {
		if ctx.Err() != nil {
			runErr = &domain.RunError{Code: domain.ErrCodeCanceled, Msg: "已取消"}
			break
		}

		oneStarted := time.Now()
		item, rec, ok := execOne(ctx, sum, src, imageClient, posterOpts, logger)
		if !ok && ctx.Err() != nil {
			runErr = &domain.RunError{Code: domain.ErrCodeCanceled, Msg: "已取消"}
			break
		}
		if ok {
			if err := w.Append(rec); err != nil {
				item.Status = domain.StatusSkipped
				item.ErrorCode = domain.ErrCodeIOFailed
				item.ErrorMsg = fmt.Sprintf("写入 CSV 失败：%v", err)
				rr.Items = append(rr.Items, item)
				runErr = &domain.RunError{Code: domain.ErrCodeIOFailed, Msg: item.ErrorMsg}
				break
			}
			logger.Info("已添加", "tmdb_id", rec.TMDBID, "title", rec.Title, "year", rec.ReleaseYear)
		}

		rr.Items = append(rr.Items, item)
		if obs != nil {
			obs.OnItemDone(i+1, len(selected), item, time.Since(oneStarted))
		}
	}

	if err := w.Close(); err != nil && runErr == nil {
		runErr = &domain.RunError{Code: domain.ErrCodeIOFailed, Msg: fmt.Sprintf("关闭 CSV 失败：%v", err)}
	}
	if runErr != nil {
		logger.Error(runErr.Msg, "code", runErr.Code)
		rr.Error = runErr
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

// execOne 处理一部电影：详情 -> poster -> 记录。
// ok=false 表示详情失败，该条不写 CSV 行。
func execOne(ctx context.Context, sum tmdb.MovieSummary, src Source, imageClient *http.Client, opts planner.PosterOptions, logger hclog.Logger) (domain.ItemResult, domain.MovieRecord, bool) {
	item := domain.ItemResult{
		TMDBID: sum.ID,
		Title:  sum.Title,
	}

	d, err := src.MovieDetails(ctx, sum.ID)
	if err != nil {
		item.Status = domain.StatusSkipped
		item.ErrorCode = domain.ErrCodeDetailFailed
		item.ErrorMsg = humanizeTMDBError(err)
		logger.Warn("获取详情失败，跳过", "tmdb_id", sum.ID, "title", sum.Title, "error", err)
		return item, domain.MovieRecord{}, false
	}

	plan := planner.PlanPoster(opts, sum.ID, d.PosterPath)
	item.Poster = domain.PosterResult{Recorded: plan.Recorded}
	switch {
	case plan.SourceURL == "":
		item.Poster.Status = domain.PosterStatusNone
	case !plan.Download:
		item.Poster.Status = domain.PosterStatusDisabled
	default:
		if err := fetchPoster(ctx, imageClient, plan, opts.PosterDir); err != nil {
			item.Poster.Status = domain.PosterStatusFailed
			item.Poster.Error = humanizePosterError(err)
			logger.Warn("poster 下载失败", "tmdb_id", sum.ID, "url", plan.SourceURL, "error", err)
		} else {
			item.Poster.Status = domain.PosterStatusDownloaded
		}
	}

	rec := extract.Record(sum, d, plan.Recorded)
	item.Title = rec.Title
	item.ReleaseYear = rec.ReleaseYear
	item.Status = domain.StatusAdded
	return item, rec, true
}

func fetchPoster(ctx context.Context, c *http.Client, plan domain.PosterPlan, dir string) error {
	b, err := download(ctx, c, plan.SourceURL)
	if err != nil {
		return err
	}
	b, err = imgx.NormalizeJPEG(b)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(dir, filepath.Base(plan.LocalPath), b)
}

func download(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("image client 为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func humanizeTMDBError(err error) string {
	if err == nil {
		return "TMDB 请求失败"
	}

	if errors.Is(err, tmdb.ErrEmptyDetails) {
		return "TMDB 返回了空的详情对象。"
	}

	var ue *tmdb.UnexpectedContentError
	if errors.As(err, &ue) {
		if t := strings.TrimSpace(ue.Title); t != "" {
			return fmt.Sprintf("TMDB 返回了非 JSON 内容（%q）。通常是代理/网关拦截，建议检查 proxy.url 与 api_base_url。", t)
		}
		return "TMDB 返回了非 JSON 内容。通常是代理/网关拦截，建议检查 proxy.url 与 api_base_url。"
	}

	var hs *tmdb.HTTPStatusError
	if errors.As(err, &hs) {
		msg := strings.TrimSpace(hs.Message)
		switch hs.StatusCode {
		case 401:
			return fmt.Sprintf("TMDB 返回 HTTP 401（API key 无效）。请检查 %s：%s", config.EnvAPIKey, msg)
		case 404:
			return "TMDB 返回 HTTP 404（该电影不存在或已下架）。"
		case 429:
			return "TMDB 返回 HTTP 429（触发限流）。请稍后重试。"
		default:
			if msg != "" {
				return fmt.Sprintf("TMDB 返回 HTTP %d：%s", hs.StatusCode, msg)
			}
			return fmt.Sprintf("TMDB 返回 HTTP %d。", hs.StatusCode)
		}
	}

	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return "TMDB 请求超时。建议检查网络/代理后重试。"
	}
	if strings.Contains(low, "tls") || strings.Contains(low, "handshake") || strings.Contains(low, "ssl") {
		return "TMDB 连接失败（TLS/SSL）。建议配置 proxy.url 或稍后重试。"
	}
	return fmt.Sprintf("TMDB 请求失败：%v", err)
}

func humanizePosterError(err error) string {
	if imgx.IsNotImage(err) {
		return fmt.Sprintf("poster 内容无效：%v", err)
	}
	if fsx.IsPathTypeConflict(err) {
		return fmt.Sprintf("poster 写入失败：%v", err)
	}
	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return "poster 下载超时。"
	}
	return fmt.Sprintf("poster 下载失败：%v", err)
}
