// Package dom 定义发布引擎操作页面所需的最小文档接口
// 浏览器页面与离线 HTML 快照都实现这些接口
package dom

import "context"

// ControlKind 可编辑控件类别
type ControlKind int

const (
	// KindPlain 普通表单控件（input 等），写 value
	KindPlain ControlKind = iota
	// KindRichText contenteditable 容器，写渲染文本
	KindRichText
	// KindTextArea 多行文本框，写 value
	KindTextArea
)

func (k ControlKind) String() string {
	switch k {
	case KindRichText:
		return "rich_text"
	case KindTextArea:
		return "textarea"
	default:
		return "plain"
	}
}

// File 注入到文件输入框的单个文件
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Node 可在其子树内查询元素的节点
type Node interface {
	// QueryAll 按 CSS 选择器返回子树内所有匹配元素（文档顺序）
	QueryAll(ctx context.Context, selector string) ([]Element, error)
}

// Element 页面元素
type Element interface {
	Node

	TagName(ctx context.Context) (string, error) // 大写标签名
	Text(ctx context.Context) (string, error)    // 去除首尾空白的 textContent
	Attr(ctx context.Context, name string) (string, bool, error)
	Visible(ctx context.Context) (bool, error)
	Kind(ctx context.Context) (ControlKind, error)

	SetValue(ctx context.Context, value string) error
	SetText(ctx context.Context, text string) error
	SetChecked(ctx context.Context, checked bool) error
	// SetFiles 替换文件列表，不触发任何事件
	SetFiles(ctx context.Context, files ...File) error
	// Dispatch 派发冒泡的同名事件
	Dispatch(ctx context.Context, event string) error
	Click(ctx context.Context) error
	Remove(ctx context.Context) error

	// Closest 返回自身或最近的匹配祖先，没有时返回 nil
	Closest(ctx context.Context, selector string) (Element, error)
	// Parent 返回父元素，没有时返回 nil
	Parent(ctx context.Context) (Element, error)
	ChildCount(ctx context.Context) (int, error)
	// Same 是否与 other 指向同一个节点
	Same(ctx context.Context, other Element) (bool, error)
}

// Document 整个页面
type Document interface {
	Node
	// CreateFileInput 在 body 末尾创建隐藏的文件输入框
	CreateFileInput(ctx context.Context, id, accept string) (Element, error)
}
