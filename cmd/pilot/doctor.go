package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cmdpilot/internal/config"
)

// doctorCmd checks provider configuration and reachability
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check provider configuration and reachability",
	Long: `Probes every provider in the configured chain concurrently:
Ollama's version endpoint, Gemini and the HuggingFace router with a
minimal request. Unconfigured providers are reported, not probed.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFilePath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	providers := chainFromConfig(cfg).Providers()

	type probe struct {
		name       string
		model      string
		configured bool
		err        error
	}
	results := make([]probe, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			r := probe{name: p.Name(), model: p.Model(), configured: p.Available()}
			if r.configured {
				r.err = p.Healthy(gctx)
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	okMark := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("✓")   // Green
	badMark := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗") // Red
	offMark := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("-") // Grey

	fmt.Println("cmdpilot doctor")
	fmt.Println("===============")
	fmt.Printf("Config: %s\n", configFilePath())
	fmt.Printf("Order:  %s\n", cfg.LLM.Order)
	fmt.Println()

	healthy := 0
	for _, r := range results {
		switch {
		case !r.configured:
			fmt.Printf("%s %s: not configured (model %s)\n", offMark, r.name, r.model)
		case r.err != nil:
			fmt.Printf("%s %s: unreachable: %v\n", badMark, r.name, r.err)
		default:
			healthy++
			fmt.Printf("%s %s: ok (model %s)\n", okMark, r.name, r.model)
		}
	}

	fmt.Println()
	fmt.Printf("%d of %d providers healthy\n", healthy, len(results))
	fmt.Printf("Data dir:  %s\n", config.Dir())
	fmt.Printf("Event log: %s\n", filepath.Join(cfg.Log.Dir, "exec.log"))
	fmt.Printf("History:   %s (enabled=%t)\n", cfg.History.Path, cfg.History.Enabled)
	return nil
}
