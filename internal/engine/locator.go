package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"Multipost/internal/platform/dom"
)

// Finder 在 scope 内按某种规则查找候选元素
type Finder func(ctx context.Context, scope dom.Node) ([]dom.Element, error)

// Strategy 一种定位方式，按顺序尝试
type Strategy struct {
	Name string
	Find Finder
	// AllowHidden 为 true 时不要求元素可见（文件输入框通常是隐藏的）
	AllowHidden bool
}

// TextMatch 文本匹配方式
type TextMatch int

const (
	MatchExact TextMatch = iota
	MatchContains
)

// Selector 按 CSS 选择器查找
func Selector(selector string) Strategy {
	return Strategy{
		Name: "selector:" + selector,
		Find: func(ctx context.Context, scope dom.Node) ([]dom.Element, error) {
			return scope.QueryAll(ctx, selector)
		},
	}
}

// Text 在 selector 匹配的元素中按文本查找，结果按文本长度升序排列
// maxLen > 0 时只保留文本不超过 maxLen 个字符的元素
func Text(selector, needle string, match TextMatch, maxLen int) Strategy {
	mode := "="
	if match == MatchContains {
		mode = "*="
	}
	return Strategy{
		Name: fmt.Sprintf("text:%s%s%q", selector, mode, needle),
		Find: func(ctx context.Context, scope dom.Node) ([]dom.Element, error) {
			return findByText(ctx, scope, selector, func(text string) bool {
				if maxLen > 0 && utf8.RuneCountInString(text) > maxLen {
					return false
				}
				if match == MatchExact {
					return text == needle
				}
				return strings.Contains(text, needle)
			})
		},
	}
}

// TextAny 文本包含任意一个 needle 即匹配
func TextAny(selector string, needles ...string) Strategy {
	return Strategy{
		Name: fmt.Sprintf("text:%s*=%q", selector, needles),
		Find: func(ctx context.Context, scope dom.Node) ([]dom.Element, error) {
			return findByText(ctx, scope, selector, func(text string) bool {
				return containsAny(text, needles)
			})
		},
	}
}

// TextAll 文本同时包含所有 needle 才匹配
func TextAll(selector string, needles ...string) Strategy {
	return Strategy{
		Name: fmt.Sprintf("text:%s&=%q", selector, needles),
		Find: func(ctx context.Context, scope dom.Node) ([]dom.Element, error) {
			return findByText(ctx, scope, selector, func(text string) bool {
				for _, n := range needles {
					if !strings.Contains(text, n) {
						return false
					}
				}
				return len(needles) > 0
			})
		},
	}
}

// TextOneOf 文本与任意一个 label 完全相同即匹配
func TextOneOf(selector string, labels ...string) Strategy {
	return Strategy{
		Name: fmt.Sprintf("text:%s=%q", selector, labels),
		Find: func(ctx context.Context, scope dom.Node) ([]dom.Element, error) {
			return findByText(ctx, scope, selector, func(text string) bool {
				for _, l := range labels {
					if text == l {
						return true
					}
				}
				return false
			})
		},
	}
}

// Icon 属性值（忽略大小写）包含任意一个提示词即匹配
func Icon(selector, attr string, hints ...string) Strategy {
	return Strategy{
		Name: fmt.Sprintf("icon:%s[%s~%v]", selector, attr, hints),
		Find: func(ctx context.Context, scope dom.Node) ([]dom.Element, error) {
			els, err := scope.QueryAll(ctx, selector)
			if err != nil {
				return nil, err
			}
			var out []dom.Element
			for _, el := range els {
				v, ok, err := el.Attr(ctx, attr)
				if err != nil {
					return nil, err
				}
				if ok && containsAny(strings.ToLower(v), hints) {
					out = append(out, el)
				}
			}
			return out, nil
		},
	}
}

// Container 标签为 tag 且子元素不少于 minChildren 的元素
func Container(selector, tag string, minChildren int) Strategy {
	tag = strings.ToUpper(tag)
	return Strategy{
		Name: fmt.Sprintf("container:%s>%s{%d}", selector, tag, minChildren),
		Find: func(ctx context.Context, scope dom.Node) ([]dom.Element, error) {
			els, err := scope.QueryAll(ctx, selector)
			if err != nil {
				return nil, err
			}
			var out []dom.Element
			for _, el := range els {
				name, err := el.TagName(ctx)
				if err != nil {
					return nil, err
				}
				if tag != "" && name != tag {
					continue
				}
				n, err := el.ChildCount(ctx)
				if err != nil {
					return nil, err
				}
				if n >= minChildren {
					out = append(out, el)
				}
			}
			return out, nil
		},
	}
}

// Closest 把 inner 找到的元素换成最近的匹配祖先，没有祖先的丢弃
func Closest(inner Strategy, selector string) Strategy {
	return Strategy{
		Name:        inner.Name + " closest:" + selector,
		AllowHidden: inner.AllowHidden,
		Find: func(ctx context.Context, scope dom.Node) ([]dom.Element, error) {
			els, err := inner.Find(ctx, scope)
			if err != nil {
				return nil, err
			}
			var out []dom.Element
			for _, el := range els {
				anc, err := el.Closest(ctx, selector)
				if err != nil {
					return nil, err
				}
				if anc == nil {
					continue
				}
				dup, err := containsElement(ctx, out, anc)
				if err != nil {
					return nil, err
				}
				if dup {
					release([]dom.Element{anc}, nil)
				} else {
					out = append(out, anc)
				}
			}
			release(els, nil)
			return out, nil
		},
	}
}

// Hidden 返回允许隐藏元素的副本
func (s Strategy) Hidden() Strategy {
	s.AllowHidden = true
	return s
}

// Locate 按顺序尝试每个策略，返回第一个可见匹配及其策略名
// 全部落空时返回 nil 和空名称，不视为错误
func Locate(ctx context.Context, scope dom.Node, strategies []Strategy) (dom.Element, string, error) {
	for _, s := range strategies {
		els, err := s.Find(ctx, scope)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", s.Name, err)
		}
		for _, el := range els {
			if s.AllowHidden {
				release(els, el)
				return el, s.Name, nil
			}
			visible, err := el.Visible(ctx)
			if err != nil {
				release(els, nil)
				return nil, "", fmt.Errorf("%s: %w", s.Name, err)
			}
			if visible {
				release(els, el)
				return el, s.Name, nil
			}
		}
		release(els, nil)
	}
	return nil, "", nil
}

// disposer 持有页面句柄的元素
type disposer interface {
	Dispose() error
}

// release 释放 els 中除 keep 以外的元素句柄
func release(els []dom.Element, keep dom.Element) {
	for _, el := range els {
		if el == keep {
			continue
		}
		if d, ok := el.(disposer); ok {
			_ = d.Dispose()
		}
	}
}

type textCandidate struct {
	el    dom.Element
	size  int
	depth int
}

func findByText(ctx context.Context, scope dom.Node, selector string, keep func(string) bool) ([]dom.Element, error) {
	els, err := scope.QueryAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	var found []textCandidate
	for _, el := range els {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		if !keep(text) {
			release([]dom.Element{el}, nil)
			continue
		}
		depth, err := elementDepth(ctx, el)
		if err != nil {
			return nil, err
		}
		found = append(found, textCandidate{el: el, size: utf8.RuneCountInString(text), depth: depth})
	}
	// 文本短的优先；文本相同时祖先与后代并列，层级深的在前
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].size != found[j].size {
			return found[i].size < found[j].size
		}
		return found[i].depth > found[j].depth
	})

	out := make([]dom.Element, len(found))
	for i, c := range found {
		out[i] = c.el
	}
	return out, nil
}

// depther 能一次算出层数的元素，页面元素实现它以免逐级取父节点
type depther interface {
	Depth(ctx context.Context) (int, error)
}

// elementDepth 到根元素的层数
func elementDepth(ctx context.Context, el dom.Element) (int, error) {
	if d, ok := el.(depther); ok {
		return d.Depth(ctx)
	}
	depth := 0
	for {
		parent, err := el.Parent(ctx)
		if err != nil {
			return 0, err
		}
		if parent == nil {
			return depth, nil
		}
		depth++
		el = parent
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func containsElement(ctx context.Context, els []dom.Element, target dom.Element) (bool, error) {
	for _, el := range els {
		same, err := el.Same(ctx, target)
		if err != nil || same {
			return same, err
		}
	}
	return false, nil
}
