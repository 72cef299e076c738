package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cmdpilot/internal/recipe"
)

// recipesCmd lists the static goal-to-command table
var recipesCmd = &cobra.Command{
	Use:   "recipes",
	Short: "List the built-in goal keyword recipes",
	Run: func(cmd *cobra.Command, args []string) {
		for _, r := range recipe.All() {
			fmt.Println(r.ID)
			fmt.Printf("  keywords: %s\n", strings.Join(r.Keywords, ", "))
			fmt.Printf("  command:  %s\n", r.Command)
		}
	},
}
