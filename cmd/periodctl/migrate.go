package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xxxkjing/ClassComp-Score/internal/model"
	"github.com/xxxkjing/ClassComp-Score/pkg/database"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "执行数据库迁移（PostgreSQL 版本化迁移，SQLite 自动建表）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			if err := a.openDB(); err != nil {
				return err
			}
			if err := database.Migrate(a.db, a.cfg.Database.Driver, a.logger, model.MigrateModels...); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "迁移完成")
			return nil
		},
	}
}
