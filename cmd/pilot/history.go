package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cmdpilot/internal/config"
	"cmdpilot/internal/history"
)

var (
	historyLimit    int
	historySession  string
	historySessions bool
)

// historyCmd reads the SQLite run history
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent commands from the run history",
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFilePath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := history.NewStore(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	if historySessions {
		sessions, err := store.Sessions(historyLimit)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("no recorded sessions")
			return nil
		}
		for _, s := range sessions {
			fmt.Printf("%s  %s  %s\n", s.StartedAt.Format("2006-01-02 15:04:05"), s.ID, s.Goal)
		}
		return nil
	}

	var records []history.CommandRecord
	if historySession != "" {
		records, err = store.BySession(historySession)
	} else {
		records, err = store.Recent(historyLimit)
	}
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("no recorded commands")
		return nil
	}

	for _, r := range records {
		fmt.Printf("%s  rc=%-3d try=%d  $ %s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.ExitCode, r.Attempt, r.Command)
		if historySession == "" {
			fmt.Printf("    session=%s cwd=%s\n", r.SessionID, r.Cwd)
		}
	}
	return nil
}
