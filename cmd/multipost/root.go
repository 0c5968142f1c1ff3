package main

import (
	"Multipost/internal/config"
	"Multipost/internal/engine"
	"Multipost/internal/platform/browser"
	"Multipost/internal/platform/dewu"
	"Multipost/internal/utils"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath  string
	profilePath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "multipost",
		Short:         "在创作者中心页面上自动完成视频发布",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(opts.configPath); err != nil {
				return err
			}
			return utils.InitLogger()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "配置文件路径")
	root.PersistentFlags().StringVar(&opts.profilePath, "profile", "", "目标站点配置文件，默认使用内置得物配置")

	root.AddCommand(
		newRunCmd(opts),
		newProbeCmd(opts),
		newCheckCmd(opts),
		newLoginCmd(opts),
		newProfileCmd(opts),
	)
	return root
}

// profile 命令行参数优先，其次配置文件
func (o *rootOptions) profile() (*engine.Profile, error) {
	path := o.profilePath
	if path == "" && config.Config != nil {
		path = config.Config.ProfilePath
	}
	return dewu.LoadProfile(path)
}

func (o *rootOptions) uploader(pool *browser.Pool, extra ...engine.Option) (*dewu.Uploader, error) {
	profile, err := o.profile()
	if err != nil {
		return nil, err
	}
	opts, err := dewu.EngineOptions(config.Config)
	if err != nil {
		return nil, err
	}
	return dewu.NewUploader(pool, config.GetCookiePath(profile.Platform), profile, append(opts, extra...)...)
}

func newPool() *browser.Pool {
	return browser.NewPool(config.Config.Headless, 1)
}
