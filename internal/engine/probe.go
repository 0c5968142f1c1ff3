package engine

import (
	"context"
	"fmt"

	"Multipost/internal/platform/dom"
)

// ProbeResult 一条策略链在页面上的定位结果
type ProbeResult struct {
	Chain    string
	Matched  bool
	Strategy string
	Element  string
}

type namedChain struct {
	name       string
	strategies []Strategy
}

// Probe 在给定页面上逐条执行 profile 中的策略链，不做任何修改
func Probe(ctx context.Context, doc dom.Node, profile *Profile) ([]ProbeResult, error) {
	c, err := compile(profile)
	if err != nil {
		return nil, err
	}

	chains := []namedChain{
		{"upload_tab", c.uploadTab},
		{"video_input", c.videoInput},
		{"upload_done", c.uploadDone},
	}
	for _, f := range c.fields {
		chains = append(chains, namedChain{"field:" + f.spec.Name, f.strategies})
	}
	chains = append(chains,
		namedChain{"cover.open", c.coverOpen},
		namedChain{"cover.upload_tab", c.coverTab},
		namedChain{"cover.drop_zone", c.dropZone},
		namedChain{"cover.confirm", c.coverConfirm},
		namedChain{"submit", c.submit},
	)

	var results []ProbeResult
	for _, ch := range chains {
		if len(ch.strategies) == 0 {
			continue
		}
		el, name, err := Locate(ctx, doc, ch.strategies)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ch.name, err)
		}
		res := ProbeResult{Chain: ch.name, Matched: el != nil, Strategy: name}
		if s, ok := el.(fmt.Stringer); ok {
			res.Element = s.String()
		}
		results = append(results, res)
	}
	return results, nil
}
