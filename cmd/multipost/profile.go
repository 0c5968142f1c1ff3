package main

import (
	"github.com/spf13/cobra"
)

func newProfileCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "输出当前生效的目标站点配置",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := root.profile()
			if err != nil {
				return err
			}
			data, err := profile.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
