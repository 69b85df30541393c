package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xxxkjing/ClassComp-Score/pkg/jwt"
)

// tokenCommand 签发运维 Token（与 API 使用同一密钥）
func tokenCommand() *cobra.Command {
	var userID, username, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "签发访问 Token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			token, err := jwt.NewManager(&a.cfg.Auth).GenerateAccessToken(userID, username, role)
			if err != nil {
				return fmt.Errorf("签发 Token 失败: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "ops", "Token 中的 user_id")
	cmd.Flags().StringVar(&username, "username", programName, "Token 中的用户名（写入变更记录）")
	cmd.Flags().StringVar(&role, "role", "admin", "角色")
	return cmd
}
