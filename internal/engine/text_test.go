package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeTags(t *testing.T) {
	assert.Equal(t, "hello #a #b", MergeTags("hello", []string{"a", "b"}))
	assert.Equal(t, "x", MergeTags("x", nil))
	assert.Equal(t, "x", MergeTags("x", []string{}))
	assert.Equal(t, "x #a", MergeTags("x", []string{" a ", "", "  "}))
	assert.Equal(t, "#a", MergeTags("", []string{"a"}))
	assert.Equal(t, "  x  ", MergeTags("  x  ", nil))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "plain text", PlainText("plain text"))
	assert.Equal(t, "hello world", PlainText("<b>hello</b> world"))
	assert.Equal(t, "第一段\n第二段", PlainText("<p>第一段</p><p>第二段</p>"))
	assert.Equal(t, "a\nb", PlainText("a<br>b"))
	assert.Equal(t, "1 < 2 & 3", PlainText("1 &lt; 2 &amp; 3"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "标题", TruncateString("标题很长", 2))
	assert.Equal(t, "abc", TruncateString("abc", 0))
	assert.Equal(t, "abc", TruncateString("abc", 5))
}
