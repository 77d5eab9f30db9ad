package logx

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Name 是日志的根名称。
const Name = "tmdbscrape"

// New 构造根 logger。
//
// - level 为空或无法识别时使用 info
// - w 为空时写到 stderr（stdout 留给 report JSON）
func New(level string, w io.Writer) hclog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lv := hclog.LevelFromString(strings.TrimSpace(level))
	if lv == hclog.NoLevel {
		lv = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   Name,
		Level:  lv,
		Output: w,
	})
}

// ValidLevel 判断 level 是否是 hclog 能识别的级别名。
func ValidLevel(level string) bool {
	return hclog.LevelFromString(strings.TrimSpace(level)) != hclog.NoLevel
}
