package planner

import (
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/John-Robertt/tmdbscrape/internal/domain"
)

const (
	DefaultImageBaseURL  = "https://image.tmdb.org/t/p/w500"
	DefaultPosterPrefix  = "movie_posters"
	DefaultDefaultPoster = "movie_posters/default.png"
)

// PosterOptions 是 poster 规划需要的最小配置。
type PosterOptions struct {
	ImageBaseURL  string
	PosterDir     string // 绝对路径
	PosterPrefix  string // 写入 CSV 的相对前缀
	DefaultPoster string // 无 poster 时写入 CSV 的值
	Download      bool   // false：只记录路径，不下载
}

// PlanPoster 为一部电影生成确定性的 poster 计划（不做任何网络/磁盘操作）。
//
// 规则：
// - posterPath 为空：记录 DefaultPoster，不下载（默认图只引用，不生成）
// - posterPath 非空：记录 <prefix>/<id>.jpg，与下载是否成功无关
func PlanPoster(opts PosterOptions, id int, posterPath string) domain.PosterPlan {
	posterPath = strings.TrimSpace(posterPath)
	if posterPath == "" {
		def := opts.DefaultPoster
		if def == "" {
			def = DefaultDefaultPoster
		}
		return domain.PosterPlan{Recorded: def}
	}

	base := strings.TrimRight(opts.ImageBaseURL, "/")
	if base == "" {
		base = DefaultImageBaseURL
	}
	if !strings.HasPrefix(posterPath, "/") {
		posterPath = "/" + posterPath
	}
	prefix := opts.PosterPrefix
	if prefix == "" {
		prefix = DefaultPosterPrefix
	}

	name := FileName(id)
	return domain.PosterPlan{
		SourceURL: base + posterPath,
		LocalPath: filepath.Join(opts.PosterDir, name),
		// CSV 里的值是给下游 importer 用的，固定用 '/' 分隔（与平台无关）。
		Recorded: path.Join(prefix, name),
		Download: opts.Download,
	}
}

// FileName 返回 poster 的本地文件名：<id>.jpg。
func FileName(id int) string {
	return strconv.Itoa(id) + ".jpg"
}
