// Package cli provides the varman command surface. Every subcommand maps
// onto one core catalog or exchange operation.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"varman/internal/catalog"
	"varman/internal/config"
	"varman/internal/store"
)

// Version is set at build time.
var Version = "0.1.0"

// commandContext carries the opened store and catalog for one invocation.
type commandContext struct {
	cfg     *config.Config
	store   *store.Store
	catalog *catalog.Catalog
}

// newCommandContext loads config, opens the store and ensures the schema
// exists. The returned cleanup closes the connection.
func newCommandContext(ctx context.Context) (*commandContext, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, nil, err
	}
	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Init(ctx); err != nil {
		st.Close()
		return nil, nil, err
	}
	return &commandContext{
		cfg:     cfg,
		store:   st,
		catalog: catalog.New(st),
	}, st.Close, nil
}

// NewRootCmd creates the varman root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "varman",
		Short:   "Manage variable metadata for tabular datasets",
		Long: `varman is a metadata catalog for tabular-dataset variables: their data
types, multilingual labels, validation constraints and categorical value
sets, with JSON import and export for interchange.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newVariableCmd(),
		newCategorySetCmd(),
		newImportCmd(),
		newExportCmd(),
		newResetCmd(),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// confirm prompts on stdin before destructive operations.
func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
