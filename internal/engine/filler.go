package engine

import (
	"context"
	"fmt"

	"Multipost/internal/platform/dom"
)

// fillPlan 每种控件的写入方式与事件顺序
type fillPlan struct {
	assign func(ctx context.Context, el dom.Element, value string) error
	events []string
}

var fillPlans = map[dom.ControlKind]fillPlan{
	dom.KindPlain: {
		assign: func(ctx context.Context, el dom.Element, v string) error { return el.SetValue(ctx, v) },
		events: []string{"input", "change"},
	},
	dom.KindRichText: {
		assign: func(ctx context.Context, el dom.Element, v string) error { return el.SetText(ctx, v) },
		events: []string{"input", "change", "blur"},
	},
	dom.KindTextArea: {
		assign: func(ctx context.Context, el dom.Element, v string) error { return el.SetValue(ctx, v) },
		events: []string{"input", "change"},
	},
}

// FillEvents 返回某类控件写入后需要派发的事件
func FillEvents(kind dom.ControlKind) []string {
	return append([]string(nil), fillPlans[kind].events...)
}

// Fill 写入 value 并按顺序派发事件，页面依赖这些事件同步自身状态
func Fill(ctx context.Context, el dom.Element, value string) (dom.ControlKind, error) {
	kind, err := el.Kind(ctx)
	if err != nil {
		return kind, err
	}
	plan, ok := fillPlans[kind]
	if !ok {
		return kind, fmt.Errorf("unsupported control kind %s", kind)
	}
	if err := plan.assign(ctx, el, value); err != nil {
		return kind, fmt.Errorf("set %s value failed: %w", kind, err)
	}
	for _, event := range plan.events {
		if err := el.Dispatch(ctx, event); err != nil {
			return kind, fmt.Errorf("dispatch %s failed: %w", event, err)
		}
	}
	return kind, nil
}
