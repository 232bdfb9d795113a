package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shipquote/backend/config"
	"github.com/shipquote/backend/internal/bootstrap"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Launches a browser, logs in to the partner and reports whether the session is alive.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		p, err := bootstrap.NewPartner(cfg, partnerID, bootstrap.ChromeLauncher(cfg.Browser, logger), logger)
		if err != nil {
			return err
		}
		defer p.Close()

		started := time.Now()
		session, err := p.Acquire(cmd.Context())
		if err != nil {
			return fmt.Errorf("login to %s failed: %w", partnerID, err)
		}
		elapsed := time.Since(started)
		session.Release(nil)

		stats := p.Stats()
		t := newTable()
		t.AppendHeader(table.Row{"Partner", "Login", "Alive", "Idle", "Busy", "Pool"})
		t.AppendRow(table.Row{p.ID(), elapsed.Round(time.Millisecond), p.Alive(cmd.Context()), stats.Idle, stats.Busy, stats.MaxSize})
		t.Render()
		return nil
	},
}
