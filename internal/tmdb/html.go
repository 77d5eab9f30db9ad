package tmdb

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// looksLikeHTML 用于识别“2xx 但返回了 HTML”的情况（代理登录页、CDN 拦截页等）。
func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	b := bytes.TrimSpace(body)
	return len(b) > 0 && b[0] == '<'
}

// htmlTitle 提取 HTML 页面的 <title>；解析失败返回空串。
func htmlTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}
