package browser

import (
	"context"
	"encoding/base64"
	"fmt"

	"Multipost/internal/platform/dom"

	"github.com/playwright-community/playwright-go"
)

// PageDocument 以 playwright 页面实现 dom.Document
// 所有写操作都在页面内执行脚本完成，与内容脚本的效果一致
type PageDocument struct {
	page playwright.Page
}

// NewPageDocument 包装页面
func NewPageDocument(page playwright.Page) *PageDocument {
	return &PageDocument{page: page}
}

func (d *PageDocument) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := d.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", selector, err)
	}
	return wrapHandles(handles), nil
}

const createFileInputScript = `([id, accept]) => {
  const input = document.createElement('input');
  input.type = 'file';
  input.id = id;
  input.accept = accept;
  input.style.display = 'none';
  document.body.appendChild(input);
  return input;
}`

func (d *PageDocument) CreateFileInput(ctx context.Context, id, accept string) (dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handle, err := d.page.EvaluateHandle(createFileInputScript, []interface{}{id, accept})
	if err != nil {
		return nil, fmt.Errorf("create file input failed: %w", err)
	}
	el := handle.AsElement()
	if el == nil {
		return nil, fmt.Errorf("create file input failed: not an element")
	}
	return &pageElement{handle: el}, nil
}

type pageElement struct {
	handle playwright.ElementHandle
}

func wrapHandles(handles []playwright.ElementHandle) []dom.Element {
	out := make([]dom.Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, &pageElement{handle: h})
	}
	return out
}

// Dispose 释放元素句柄，之后不能再使用
func (e *pageElement) Dispose() error {
	return e.handle.Dispose()
}

func (e *pageElement) eval(ctx context.Context, script string, arg ...interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.handle.Evaluate(script, arg...)
}

func (e *pageElement) evalString(ctx context.Context, script string, arg ...interface{}) (string, error) {
	v, err := e.eval(ctx, script, arg...)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// evalElement 执行返回元素或 null 的脚本
func (e *pageElement) evalElement(ctx context.Context, script string, arg ...interface{}) (dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handle, err := e.handle.EvaluateHandle(script, arg...)
	if err != nil {
		return nil, err
	}
	el := handle.AsElement()
	if el == nil {
		_ = handle.Dispose()
		return nil, nil
	}
	return &pageElement{handle: el}, nil
}

func (e *pageElement) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := e.handle.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", selector, err)
	}
	return wrapHandles(handles), nil
}

func (e *pageElement) TagName(ctx context.Context) (string, error) {
	return e.evalString(ctx, `el => el.tagName`)
}

func (e *pageElement) Text(ctx context.Context) (string, error) {
	return e.evalString(ctx, `el => (el.textContent || '').trim()`)
}

func (e *pageElement) Attr(ctx context.Context, name string) (string, bool, error) {
	v, err := e.eval(ctx, `(el, name) => el.hasAttribute(name) ? el.getAttribute(name) : null`, name)
	if err != nil {
		return "", false, err
	}
	s, ok := v.(string)
	return s, ok, nil
}

func (e *pageElement) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.handle.IsVisible()
}

func (e *pageElement) Kind(ctx context.Context) (dom.ControlKind, error) {
	kind, err := e.evalString(ctx, `el => el.isContentEditable ? 'rich' : (el.tagName === 'TEXTAREA' ? 'textarea' : 'plain')`)
	if err != nil {
		return dom.KindPlain, err
	}
	switch kind {
	case "rich":
		return dom.KindRichText, nil
	case "textarea":
		return dom.KindTextArea, nil
	default:
		return dom.KindPlain, nil
	}
}

// 受控组件会拦截实例上的 value 赋值，走原型上的 setter
const setValueScript = `(el, value) => {
  const desc = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(el), 'value');
  if (desc && desc.set) {
    desc.set.call(el, value);
  } else {
    el.value = value;
  }
}`

func (e *pageElement) SetValue(ctx context.Context, value string) error {
	_, err := e.eval(ctx, setValueScript, value)
	return err
}

func (e *pageElement) SetText(ctx context.Context, text string) error {
	_, err := e.eval(ctx, `(el, text) => { el.innerText = text }`, text)
	return err
}

func (e *pageElement) SetChecked(ctx context.Context, checked bool) error {
	_, err := e.eval(ctx, `(el, checked) => { el.checked = checked }`, checked)
	return err
}

const setFilesScript = `(el, files) => {
  const dt = new DataTransfer();
  for (const f of files) {
    const bin = atob(f.data);
    const bytes = new Uint8Array(bin.length);
    for (let i = 0; i < bin.length; i++) bytes[i] = bin.charCodeAt(i);
    dt.items.add(new File([bytes], f.name, { type: f.type }));
  }
  el.files = dt.files;
}`

// MaxPageFileBytes 单次注入页面的文件总大小上限
// 文件以 base64 传给页面再解码，峰值内存约为文件大小的四倍
const MaxPageFileBytes = 512 << 20

func checkFileSize(files []dom.File, limit int) error {
	total := 0
	for _, f := range files {
		total += len(f.Data)
	}
	if total > limit {
		return fmt.Errorf("文件过大: %d 字节，上限 %d 字节", total, limit)
	}
	return nil
}

// SetFiles 通过 DataTransfer 替换 files，不触发事件
// playwright 的 SetInputFiles 会自行派发 input/change，这里不用它
func (e *pageElement) SetFiles(ctx context.Context, files ...dom.File) error {
	if err := checkFileSize(files, MaxPageFileBytes); err != nil {
		return err
	}
	payload := make([]map[string]interface{}, 0, len(files))
	for _, f := range files {
		payload = append(payload, map[string]interface{}{
			"name": f.Name,
			"type": f.MimeType,
			"data": base64.StdEncoding.EncodeToString(f.Data),
		})
	}
	_, err := e.eval(ctx, setFilesScript, payload)
	return err
}

func (e *pageElement) Dispatch(ctx context.Context, event string) error {
	_, err := e.eval(ctx, `(el, type) => { el.dispatchEvent(new Event(type, { bubbles: true })) }`, event)
	return err
}

func (e *pageElement) Click(ctx context.Context) error {
	_, err := e.eval(ctx, `el => el.click()`)
	return err
}

func (e *pageElement) Remove(ctx context.Context) error {
	_, err := e.eval(ctx, `el => el.remove()`)
	return err
}

func (e *pageElement) Closest(ctx context.Context, selector string) (dom.Element, error) {
	return e.evalElement(ctx, `(el, sel) => el.closest(sel)`, selector)
}

func (e *pageElement) Parent(ctx context.Context) (dom.Element, error) {
	return e.evalElement(ctx, `el => el.parentElement`)
}

func (e *pageElement) ChildCount(ctx context.Context) (int, error) {
	return e.evalInt(ctx, `el => el.children.length`)
}

// Depth 到根元素的层数，一次脚本调用
func (e *pageElement) Depth(ctx context.Context) (int, error) {
	return e.evalInt(ctx, `el => { let d = 0; for (let p = el.parentElement; p; p = p.parentElement) d++; return d; }`)
}

func (e *pageElement) evalInt(ctx context.Context, script string) (int, error) {
	v, err := e.eval(ctx, script)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unexpected number %T", v)
	}
}

func (e *pageElement) Same(ctx context.Context, other dom.Element) (bool, error) {
	o, ok := other.(*pageElement)
	if !ok {
		return false, nil
	}
	v, err := e.eval(ctx, `(a, b) => a === b`, o.handle)
	if err != nil {
		return false, err
	}
	same, _ := v.(bool)
	return same, nil
}

func (e *pageElement) String() string {
	s, err := e.handle.Evaluate(`el => el.tagName.toLowerCase() + (el.id ? '#' + el.id : '')`)
	if err != nil {
		return "element"
	}
	str, _ := s.(string)
	return str
}
