// Package htmldoc 基于 goquery 的离线文档实现
// 用于对保存下来的页面快照做选择器探测，也作为测试用的合成页面
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"Multipost/internal/platform/dom"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Op 变更类型
type Op string

const (
	OpValue   Op = "value"
	OpText    Op = "text"
	OpChecked Op = "checked"
	OpFiles   Op = "files"
	OpEvent   Op = "event"
	OpClick   Op = "click"
	OpCreate  Op = "create"
	OpRemove  Op = "remove"
)

// Mutation 一条对文档的变更记录
type Mutation struct {
	Op     Op
	Target string // 形如 input#id.class
	Detail string

	node *html.Node
}

type clickHook struct {
	match cascadia.Selector
	fn    func()
}

// Document 内存中的 HTML 文档，记录引擎对它做的所有变更
type Document struct {
	mutex   sync.Mutex
	doc     *goquery.Document
	values  map[*html.Node]string
	files   map[*html.Node][]dom.File
	journal []Mutation
	hooks   []clickHook
}

// Parse 解析 HTML
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html failed: %w", err)
	}
	return &Document{
		doc:    doc,
		values: make(map[*html.Node]string),
		files:  make(map[*html.Node][]dom.File),
	}, nil
}

// ParseString 解析 HTML 字符串
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// MustParse 解析失败时 panic，仅用于测试
func MustParse(s string) *Document {
	d, err := ParseString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func compile(selector string) (cascadia.Selector, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return m, nil
}

func (d *Document) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	return d.query(ctx, d.doc.Selection, selector)
}

func (d *Document) query(ctx context.Context, from *goquery.Selection, selector string) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := compile(selector)
	if err != nil {
		return nil, err
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	found := from.FindMatcher(m)
	out := make([]dom.Element, 0, found.Length())
	for _, n := range found.Nodes {
		out = append(out, &element{doc: d, node: n})
	}
	return out, nil
}

func (d *Document) CreateFileInput(ctx context.Context, id, accept string) (dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	parent := d.doc.Find("body").Nodes
	if len(parent) == 0 {
		return nil, fmt.Errorf("document has no body")
	}
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     "input",
		DataAtom: atom.Input,
		Attr: []html.Attribute{
			{Key: "type", Val: "file"},
			{Key: "accept", Val: accept},
			{Key: "style", Val: "display: none"},
			{Key: "id", Val: id},
		},
	}
	parent[0].AppendChild(n)
	d.record(OpCreate, n, accept)
	return &element{doc: d, node: n}, nil
}

// record 调用方需持有锁
func (d *Document) record(op Op, n *html.Node, detail string) {
	d.journal = append(d.journal, Mutation{Op: op, Target: describe(n), Detail: detail, node: n})
}

// OnClick 注册点击回调，元素被点击时若匹配 selector 则执行 fn
// fn 在锁外执行，可以调用 Show/Hide 修改文档
func (d *Document) OnClick(selector string, fn func()) error {
	m, err := compile(selector)
	if err != nil {
		return err
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.hooks = append(d.hooks, clickHook{match: m, fn: fn})
	return nil
}

// Show 移除匹配元素的 hidden 属性
func (d *Document) Show(selector string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.doc.Find(selector).RemoveAttr("hidden")
}

// Hide 为匹配元素添加 hidden 属性
func (d *Document) Hide(selector string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.doc.Find(selector).SetAttr("hidden", "")
}

// Journal 返回变更记录副本
func (d *Document) Journal() []Mutation {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]Mutation(nil), d.journal...)
}

// Mutations 按类型筛选变更记录
func (d *Document) Mutations(op Op) []Mutation {
	var out []Mutation
	for _, m := range d.Journal() {
		if m.Op == op {
			out = append(out, m)
		}
	}
	return out
}

func (d *Document) first(selector string) *html.Node {
	nodes := d.doc.Find(selector).Nodes
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// Value 返回首个匹配元素被写入的 value
func (d *Document) Value(selector string) string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.values[d.first(selector)]
}

// Text 返回首个匹配元素的文本
func (d *Document) Text(selector string) string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return strings.TrimSpace(d.doc.Find(selector).First().Text())
}

// Files 返回首个匹配元素当前的文件列表
func (d *Document) Files(selector string) []dom.File {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.files[d.first(selector)]
}

// Events 返回首个匹配元素收到的事件（按派发顺序）
func (d *Document) Events(selector string) []string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	n := d.first(selector)
	var out []string
	for _, m := range d.journal {
		if m.Op == OpEvent && m.node == n {
			out = append(out, m.Detail)
		}
	}
	return out
}

// Clicked 首个匹配元素是否被点击过
func (d *Document) Clicked(selector string) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	n := d.first(selector)
	for _, m := range d.journal {
		if m.Op == OpClick && m.node == n {
			return true
		}
	}
	return false
}

// Checked 首个匹配元素是否带 checked 属性
func (d *Document) Checked(selector string) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	_, ok := d.doc.Find(selector).First().Attr("checked")
	return ok
}

// Exists 文档中是否存在匹配元素
func (d *Document) Exists(selector string) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.doc.Find(selector).Length() > 0
}

func describe(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(n.Data)
	for _, a := range n.Attr {
		if a.Key == "id" && a.Val != "" {
			b.WriteString("#" + a.Val)
		}
	}
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				b.WriteString("." + c)
			}
		}
	}
	return b.String()
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
