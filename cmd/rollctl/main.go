// Package main provides rollctl, the command line front end of the roll
// engine: item use, damage rolls and the animation server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var opts appOptions

var rootCmd = &cobra.Command{
	Use:   "rollctl",
	Short: "Multi-part damage and auto-roll engine",
	Long: `rollctl uses items from a YAML catalogue. Using an item chains its attack or
tool check, its aggregated damage roll and its other formula, and posts one chat
message per roll to the configured message store.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to configuration file (empty = defaults and environment)")
	pf.StringVar(&opts.itemsDir, "items", "content/items", "path to item YAML directory")
	pf.StringVar(&opts.userID, "user", "player", "ID of the rolling user")
	pf.StringSliceVar(&opts.gmIDs, "gm", []string{"gm"}, "IDs of the game masters")
	pf.Uint64Var(&opts.seed, "seed", 0, "deterministic dice seed (0 = crypto source)")

	rootCmd.AddCommand(useCmd)
	rootCmd.AddCommand(damageCmd)
	rootCmd.AddCommand(itemsCmd)
	rootCmd.AddCommand(serveCmd)
}
