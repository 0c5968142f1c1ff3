package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "打开页面检查登录 Cookie 是否有效",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool := newPool()
			defer pool.Close()
			uploader, err := root.uploader(pool)
			if err != nil {
				return err
			}
			valid, err := uploader.ValidateCookie(cmd.Context())
			if err != nil {
				return err
			}
			if !valid {
				return fmt.Errorf("%s 登录已失效，请执行 multipost login", uploader.Platform())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s 登录有效\n", uploader.Platform())
			return nil
		},
	}
}

func newLoginCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "打开登录页面，登录完成后保存 Cookie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool := newPool()
			defer pool.Close()
			uploader, err := root.uploader(pool)
			if err != nil {
				return err
			}
			return uploader.Login(cmd.Context())
		},
	}
}
