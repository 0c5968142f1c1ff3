package htmldoc

import (
	"context"
	"fmt"
	"strings"

	"Multipost/internal/platform/dom"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

type element struct {
	doc  *Document
	node *html.Node
}

var _ dom.Element = (*element)(nil)

func (e *element) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	return e.doc.query(ctx, goquery.NewDocumentFromNode(e.node).Selection, selector)
}

func (e *element) TagName(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.ToUpper(e.node.Data), nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.doc.mutex.Lock()
	defer e.doc.mutex.Unlock()
	return strings.TrimSpace(goquery.NewDocumentFromNode(e.node).Text()), nil
}

func (e *element) Attr(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	e.doc.mutex.Lock()
	defer e.doc.mutex.Unlock()
	v, ok := attr(e.node, name)
	return v, ok, nil
}

// Visible 元素及其祖先都未被 hidden / display:none / visibility:hidden 隐藏，且仍在文档中
func (e *element) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.doc.mutex.Lock()
	defer e.doc.mutex.Unlock()

	if e.node.Data == "input" {
		if t, _ := attr(e.node, "type"); strings.EqualFold(t, "hidden") {
			return false, nil
		}
	}
	n := e.node
	for ; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if _, ok := attr(n, "hidden"); ok {
			return false, nil
		}
		style, _ := attr(n, "style")
		style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false, nil
		}
	}
	return n != nil && n.Type == html.DocumentNode, nil
}

func (e *element) Kind(ctx context.Context) (dom.ControlKind, error) {
	if err := ctx.Err(); err != nil {
		return dom.KindPlain, err
	}
	e.doc.mutex.Lock()
	defer e.doc.mutex.Unlock()

	if v, ok := attr(e.node, "contenteditable"); ok && (v == "" || strings.EqualFold(v, "true")) {
		return dom.KindRichText, nil
	}
	if e.node.Data == "textarea" {
		return dom.KindTextArea, nil
	}
	return dom.KindPlain, nil
}

func (e *element) SetValue(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mutex.Lock()
	defer e.doc.mutex.Unlock()
	e.doc.values[e.node] = value
	e.doc.record(OpValue, e.node, value)
	return nil
}

func (e *element) SetText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mutex.Lock()
	defer e.doc.mutex.Unlock()
	goquery.NewDocumentFromNode(e.node).SetText(text)
	e.doc.record(OpText, e.node, text)
	return nil
}

func (e *element) SetChecked(ctx context.Context, checked bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mutex.Lock()
	defer e.doc.mutex.Unlock()
	sel := goquery.NewDocumentFromNode(e.node).Selection
	if checked {
		sel.SetAttr("checked", "")
	} else {
		sel.RemoveAttr("checked")
	}
	e.doc.record(OpChecked, e.node, fmt.Sprint(checked))
	return nil
}

func (e *element) SetFiles(ctx context.Context, files ...dom.File) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mutex.Lock()
	defer e.doc.mutex.Unlock()

	if e.node.Data != "input" {
		return fmt.Errorf("%s is not a file input", describe(e.node))
	}
	e.doc.files[e.node] = append([]dom.File(nil), files...)
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name+" "+f.MimeType)
	}
	e.doc.record(OpFiles, e.node, strings.Join(names, ","))
	return nil
}

func (e *element) Dispatch(ctx context.Context, event string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mutex.Lock()
	defer e.doc.mutex.Unlock()
	e.doc.record(OpEvent, e.node, event)
	return nil
}

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mutex.Lock()
	e.doc.record(OpClick, e.node, "")
	var fire []func()
	for _, h := range e.doc.hooks {
		if h.match.Match(e.node) {
			fire = append(fire, h.fn)
		}
	}
	e.doc.mutex.Unlock()

	for _, fn := range fire {
		fn()
	}
	return nil
}

func (e *element) Remove(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mutex.Lock()
	defer e.doc.mutex.Unlock()
	if e.node.Parent != nil {
		e.node.Parent.RemoveChild(e.node)
	}
	e.doc.record(OpRemove, e.node, "")
	return nil
}

func (e *element) Closest(ctx context.Context, selector string) (dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := compile(selector)
	if err != nil {
		return nil, err
	}
	e.doc.mutex.Lock()
	defer e.doc.mutex.Unlock()
	for n := e.node; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if m.Match(n) {
			return &element{doc: e.doc, node: n}, nil
		}
	}
	return nil, nil
}

func (e *element) Parent(ctx context.Context) (dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.doc.mutex.Lock()
	defer e.doc.mutex.Unlock()
	if p := e.node.Parent; p != nil && p.Type == html.ElementNode {
		return &element{doc: e.doc, node: p}, nil
	}
	return nil, nil
}

func (e *element) ChildCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e.doc.mutex.Lock()
	defer e.doc.mutex.Unlock()
	count := 0
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			count++
		}
	}
	return count, nil
}

func (e *element) Same(ctx context.Context, other dom.Element) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	o, ok := other.(*element)
	return ok && o.doc == e.doc && o.node == e.node, nil
}

func (e *element) String() string {
	return describe(e.node)
}
