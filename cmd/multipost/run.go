package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"Multipost/internal/app"
	"Multipost/internal/config"
	"Multipost/internal/engine"
	"Multipost/internal/service"
	"Multipost/internal/types"
	"Multipost/internal/utils"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type runOptions struct {
	requestPath string
	video       string
	cover       string
	title       string
	content     string
	tags        []string
	autoPublish bool
	events      bool
	rawLogs     bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "打开发布页面并执行一次发布",
		Example: `  multipost run --request req.json
  multipost run --video ./clip.mp4 --cover ./cover.jpg --title 标题 --content 正文 --tag 穿搭 --auto-publish`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(cmd)
			if err != nil {
				return err
			}
			return runPublish(cmd.Context(), cmd.OutOrStdout(), root, req, opts)
		},
	}
	opts.bind(cmd.Flags())
	return cmd
}

func (o *runOptions) bind(f *pflag.FlagSet) {
	f.StringVar(&o.requestPath, "request", "", "请求 JSON 文件，- 表示标准输入")
	f.StringVar(&o.video, "video", "", "视频地址或本地路径")
	f.StringVar(&o.cover, "cover", "", "封面地址或本地路径")
	f.StringVar(&o.title, "title", "", "标题")
	f.StringVar(&o.content, "content", "", "正文，可以包含 HTML")
	f.StringSliceVar(&o.tags, "tag", nil, "话题标签，可重复")
	f.BoolVar(&o.autoPublish, "auto-publish", false, "填写完成后点击发布")
	f.BoolVar(&o.events, "events", false, "以 JSON 行输出运行事件")
	f.BoolVar(&o.rawLogs, "raw-logs", false, "警告摘要中不合并重复的日志")
}

// request 先读请求文件，再用显式指定的参数覆盖
func (o *runOptions) request(cmd *cobra.Command) (*types.PublishRequest, error) {
	req := &types.PublishRequest{}
	if o.requestPath != "" {
		var (
			data []byte
			err  error
		)
		if o.requestPath == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(o.requestPath)
		}
		if err != nil {
			return nil, fmt.Errorf("读取请求失败: %w", err)
		}
		if req, err = app.ParseRequest(data); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("video") {
		req.Video = app.MediaRefFromURL(o.video)
	}
	if flags.Changed("cover") {
		req.Cover = app.MediaRefFromURL(o.cover)
	}
	if flags.Changed("title") {
		req.Title = o.title
	}
	if flags.Changed("content") {
		req.Content = o.content
	}
	if flags.Changed("tag") {
		req.Tags = o.tags
	}
	if flags.Changed("auto-publish") {
		req.AutoPublish = o.autoPublish
	}
	return req, nil
}

func runPublish(ctx context.Context, out io.Writer, root *rootOptions, req *types.PublishRequest, opts *runOptions) error {
	logs := service.NewLogService()
	logs.SetDedupEnabled(!opts.rawLogs)
	utils.SetLogService(logs)
	defer utils.SetLogService(nil)

	media := app.NewMediaServer()
	if err := media.Start(config.Config.MediaAddr); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = media.Close(shutdownCtx)
	}()
	for _, ref := range []*types.MediaRef{req.Video, req.Cover} {
		if err := media.Resolve(ref); err != nil {
			return err
		}
	}

	var extra []engine.Option
	if opts.events {
		enc := json.NewEncoder(out)
		extra = append(extra, engine.WithObserver(func(ev types.Event) {
			_ = enc.Encode(map[string]interface{}{"type": ev.EventType(), "event": ev})
		}))
	}

	pool := newPool()
	defer pool.Close()
	uploader, err := root.uploader(pool, extra...)
	if err != nil {
		return err
	}

	report, runErr := uploader.Publish(ctx, req)
	logs.Close()
	if report != nil {
		printReport(out, report)
	}
	printWarnings(out, logs.Query(types.LogQuery{Level: types.LogLevelWarn, Limit: 20}), logs.IsDedupEnabled())
	return runErr
}

func printReport(w io.Writer, report *engine.Report) {
	if report.Skipped {
		fmt.Fprintln(w, "已有发布流程在运行，本次跳过")
		return
	}
	fmt.Fprintf(w, "运行 %s 结束，状态 %s\n", report.RunID, report.State)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "步骤\t结果\t说明")
	for _, o := range report.Outcomes {
		detail := o.Detail
		if o.Err != nil {
			detail = o.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", o.Step, o.Severity, detail)
	}
	_ = tw.Flush()
}

func printWarnings(w io.Writer, warns []types.SimpleLog, merged bool) {
	if len(warns) == 0 {
		return
	}
	if merged {
		fmt.Fprintf(w, "\n警告 (%d，重复行已合并):\n", len(warns))
	} else {
		fmt.Fprintf(w, "\n警告 (%d):\n", len(warns))
	}
	for i := len(warns) - 1; i >= 0; i-- {
		fmt.Fprintf(w, "  %s %s\n", warns[i].Time, warns[i].Message)
	}
}
