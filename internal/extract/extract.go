// Package extract 把 TMDB 的列表项与详情响应规整为 domain.MovieRecord。
//
// 所有函数都是纯函数：相同输入 => 相同输出，不做任何 I/O。
package extract

import (
	"strings"

	"github.com/John-Robertt/tmdbscrape/internal/domain"
	"github.com/John-Robertt/tmdbscrape/internal/tmdb"
)

// CastLimit 是写入 CSV 的演员数上限。
const CastLimit = 5

const sep = ", "

// Director 返回第一个 job=="Director" 的成员名；没有则返回空串。
func Director(crew []tmdb.CrewMember) string {
	for _, m := range crew {
		if m.Job == "Director" {
			return m.Name
		}
	}
	return ""
}

// TopCast 按列表顺序取前 n 位演员名，用 ", " 连接（不足 n 位就取全部）。
func TopCast(cast []tmdb.CastMember, n int) string {
	if n < 0 {
		n = 0
	}
	if len(cast) < n {
		n = len(cast)
	}
	names := make([]string, 0, n)
	for _, m := range cast[:n] {
		names = append(names, m.Name)
	}
	return strings.Join(names, sep)
}

func Genres(gs []tmdb.Genre) string {
	names := make([]string, 0, len(gs))
	for _, g := range gs {
		names = append(names, g.Name)
	}
	return strings.Join(names, sep)
}

// ReleaseYear 取 release_date 的前 4 个字符；缺失或不足 4 个字符返回 "Unknown"。
func ReleaseYear(date string) string {
	r := []rune(strings.TrimSpace(date))
	if len(r) < 4 {
		return domain.UnknownYear
	}
	return string(r[:4])
}

// Title 优先使用列表项的标题；为空时回退到详情里的标题。
func Title(sum tmdb.MovieSummary, d tmdb.MovieDetails) string {
	if t := strings.TrimSpace(sum.Title); t != "" {
		return sum.Title
	}
	return d.Title
}

// Record 合并列表项与详情，poster 为已确定的 CSV 记录值。
func Record(sum tmdb.MovieSummary, d tmdb.MovieDetails, poster string) domain.MovieRecord {
	id := sum.ID
	if id == 0 {
		id = d.ID
	}
	return domain.MovieRecord{
		TMDBID:      id,
		Title:       Title(sum, d),
		Director:    Director(d.Credits.Crew),
		Cast:        TopCast(d.Credits.Cast, CastLimit),
		Synopsis:    d.Overview,
		Poster:      poster,
		ReleaseYear: ReleaseYear(d.ReleaseDate),
		Genres:      Genres(d.Genres),
		Runtime:     d.Runtime,
		Rating:      d.VoteAverage,
	}
}
