package engine

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// MergeTags 把标签以 "#tag" 形式追加到正文后，中间隔一个空格
func MergeTags(content string, tags []string) string {
	var tokens []string
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, "#"+t)
		}
	}
	if len(tokens) == 0 {
		return content
	}
	return strings.TrimSpace(content + " " + strings.Join(tokens, " "))
}

// PlainText 把富文本正文转成纯文本，不含标签和实体时原样返回
func PlainText(content string) string {
	if !strings.ContainsAny(content, "<>&") {
		return content
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return strings.TrimRight(doc.Text(), "\n")
}

// TruncateString 按字符截断
func TruncateString(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
