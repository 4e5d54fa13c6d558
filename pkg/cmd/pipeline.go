package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/storage"
)

var (
	rescanCmd = &cobra.Command{
		Use:   "rescan",
		Short: "list items stuck in importing state",
		Long: "Inspects the record store for items still marked importing. " +
			"A running server requeues these automatically on startup and on the rescan cron; " +
			"this command only reports them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := configs.InitConfig(configPath); err != nil {
				return err
			}

			ctx := context.Background()

			mgr, err := storage.Init(ctx)
			if err != nil {
				return err
			}
			defer mgr.Close()

			type row struct {
				CollectionID string `gorm:"column:collection_id"`
				Items        int64  `gorm:"column:items"`
			}

			var rows []row

			err = mgr.GetDBClient().GetDB().WithContext(ctx).
				Model(&model.Item{}).
				Where("importing = ?", true).
				Select("collection_id, COUNT(*) AS items").
				Group("collection_id").
				Scan(&rows).Error
			if err != nil {
				return err
			}

			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no items in importing state")

				return nil
			}

			for _, r := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", r.CollectionID, r.Items)
			}

			return nil
		},
	}
)

// registerPipelineCommands 注册流水线相关命令.
func registerPipelineCommands() {
	rootCmd.AddCommand(rescanCmd)
}
