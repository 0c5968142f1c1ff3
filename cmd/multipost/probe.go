package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"Multipost/internal/engine"
	"Multipost/internal/platform/dom/htmldoc"

	"github.com/spf13/cobra"
)

func newProbeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <page.html>",
		Short: "在保存的页面快照上检查定位策略，不修改页面",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := root.profile()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			doc, err := htmldoc.Parse(f)
			if err != nil {
				return fmt.Errorf("解析页面失败: %w", err)
			}
			results, err := engine.Probe(cmd.Context(), doc, profile)
			if err != nil {
				return err
			}
			printProbe(cmd.OutOrStdout(), results)
			return nil
		},
	}
}

func printProbe(w io.Writer, results []engine.ProbeResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "定位\t结果\t策略\t元素")
	for _, r := range results {
		status := "未找到"
		if r.Matched {
			status = "找到"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Chain, status, r.Strategy, r.Element)
	}
	_ = tw.Flush()
}
