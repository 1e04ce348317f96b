package cmd

import (
	"teacher_connect_backend/internal/cache"
	"teacher_connect_backend/internal/repository"
	"teacher_connect_backend/internal/service"
	"teacher_connect_backend/pkg/database"

	"github.com/spf13/cobra"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Manage the cached credit leaderboard",
}

var leaderboardRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recompute the redis leaderboard from the credit ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
		if err != nil {
			return err
		}
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()

		credits := service.NewCreditService(
			repository.NewCreditRepository(db),
			repository.NewUserRepository(db),
			cache.NewLeaderboardCache(rdb),
		)
		n, err := credits.RebuildLeaderboard(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("leaderboard rebuilt for %d students\n", n)
		return nil
	},
}

func init() {
	leaderboardCmd.AddCommand(leaderboardRebuildCmd)
}
