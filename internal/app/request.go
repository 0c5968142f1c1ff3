package app

import (
	"errors"
	"fmt"
	"strings"

	"Multipost/internal/types"

	"github.com/tidwall/gjson"
)

// ParseRequest 解析宿主发来的发布请求
//
// 支持两种形式：
//
//	{"data": {"content": ..., "video": {...}, ...}, "isAutoPublish": true}
//	{"content": ..., "video": {...}, ..., "isAutoPublish": true}
//
// 缺少视频不算解析错误，由引擎按无输入处理
func ParseRequest(data []byte) (*types.PublishRequest, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("请求不是有效的 JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, errors.New("请求必须是 JSON 对象")
	}

	body := root
	if d := root.Get("data"); d.Exists() {
		if !d.IsObject() {
			return nil, fmt.Errorf("data 字段必须是对象，实际为 %s", d.Type)
		}
		body = d
	}

	req := &types.PublishRequest{
		Content:     body.Get("content").String(),
		Title:       body.Get("title").String(),
		Tags:        parseTags(body.Get("tags")),
		Video:       parseMediaRef(body.Get("video")),
		Cover:       parseMediaRef(body.Get("cover")),
		AutoPublish: root.Get("isAutoPublish").Bool() || body.Get("isAutoPublish").Bool(),
	}
	return req, nil
}

// parseMediaRef 字符串视为 URL，对象读取 url/name/type
func parseMediaRef(v gjson.Result) *types.MediaRef {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return nil
	case v.Type == gjson.String:
		if v.String() == "" {
			return nil
		}
		return MediaRefFromURL(v.String())
	case v.IsObject():
		ref := &types.MediaRef{
			URL:      v.Get("url").String(),
			Name:     v.Get("name").String(),
			MimeType: v.Get("type").String(),
		}
		if ref.URL == "" {
			return nil
		}
		if ref.Name == "" {
			ref.Name = baseName(ref.URL)
		}
		return ref
	}
	return nil
}

// parseTags 数组或逗号分隔的字符串
func parseTags(v gjson.Result) []string {
	var tags []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			tags = append(tags, s)
		}
	}
	switch {
	case v.IsArray():
		for _, t := range v.Array() {
			add(t.String())
		}
	case v.Type == gjson.String:
		for _, t := range strings.FieldsFunc(v.String(), func(r rune) bool { return r == ',' || r == '，' }) {
			add(t)
		}
	}
	return tags
}

// MediaRefFromURL 只有地址的媒体引用，文件名取地址的最后一段
func MediaRefFromURL(url string) *types.MediaRef {
	return &types.MediaRef{URL: url, Name: baseName(url)}
}

func baseName(ref string) string {
	ref = strings.TrimRight(ref, "/")
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if i := strings.LastIndexAny(ref, `/\`); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
