// Package moviecsv 负责电影 CSV 的编码与追加写入。
//
// 方言：UTF-8、最小化引号、CRLF 行尾。文件只追加，从不截断或重写。
package moviecsv

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/John-Robertt/tmdbscrape/internal/domain"
	"github.com/John-Robertt/tmdbscrape/internal/infra/fsx"
)

// Header 是 CSV 的列名，顺序即列顺序。
var Header = []string{
	"tmdb_id",
	"title",
	"director",
	"cast",
	"synopsis",
	"poster",
	"release_year",
	"genres",
	"runtime",
	"rating",
}

// Row 把一条记录编码为与 Header 对齐的字段。
func Row(r domain.MovieRecord) []string {
	return []string{
		strconv.Itoa(r.TMDBID),
		r.Title,
		r.Director,
		r.Cast,
		r.Synopsis,
		r.Poster,
		r.ReleaseYear,
		r.Genres,
		strconv.Itoa(r.Runtime),
		FormatRating(r.Rating),
	}
}

// FormatRating 按最短表示输出评分，整数值保留一位小数（7.5、8.0、0.0）。
func FormatRating(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// Writer 以追加模式持有 CSV 文件，整个批次只打开一次。
type Writer struct {
	f    *os.File
	w    *csv.Writer
	rows int
}

// OpenAppend 以追加模式打开（不存在则创建）path。
// 文件为新建或大小为 0 时先写入表头。
func OpenAppend(path string) (*Writer, error) {
	if err := fsx.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	w := csv.NewWriter(f)
	w.UseCRLF = true
	cw := &Writer{f: f, w: w}
	if fi.Size() == 0 {
		if err := cw.writeLine(Header); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return cw, nil
}

// Append 写入一行并立即 flush（中途失败时已写入的行保持完整）。
func (cw *Writer) Append(r domain.MovieRecord) error {
	if err := cw.writeLine(Row(r)); err != nil {
		return err
	}
	cw.rows++
	return nil
}

// Rows 返回本次打开后追加的数据行数（不含表头）。
func (cw *Writer) Rows() int { return cw.rows }

func (cw *Writer) Path() string { return cw.f.Name() }

func (cw *Writer) Close() error {
	cw.w.Flush()
	ferr := cw.w.Error()
	cerr := cw.f.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}

func (cw *Writer) writeLine(rec []string) error {
	if err := cw.w.Write(rec); err != nil {
		return err
	}
	cw.w.Flush()
	return cw.w.Error()
}
