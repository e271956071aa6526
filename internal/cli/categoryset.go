package cli

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"varman/internal/metadata"
)

func newCategorySetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "category-set",
		Aliases: []string{"cs"},
		Short:   "Manage categorical value sets",
	}
	cmd.AddCommand(
		newCategorySetCreateCmd(),
		newCategorySetListCmd(),
		newCategorySetShowCmd(),
		newCategorySetDeleteCmd(),
		newCategoryAddCmd(),
		newCategoryRemoveCmd(),
		newCategoryLabelAddCmd(),
		newCategoryLabelRemoveCmd(),
	)
	return cmd
}

func newCategorySetCreateCmd() *cobra.Command {
	var categories []string
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a category set with its initial categories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, cleanup, err := newCommandContext(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			set := &metadata.CategorySet{Name: args[0]}
			for _, name := range categories {
				set.Categories = append(set.Categories, metadata.Category{Name: name})
			}
			created, err := cc.catalog.CreateCategorySet(ctx, set)
			if err != nil {
				return describeErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Category set %q created with %d categories.\n",
				created.Name, len(created.Categories))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&categories, "categories", "c", nil, "category names in order")
	return cmd
}

func newCategorySetListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List category sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cc, cleanup, err := newCommandContext(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			sets, err := cc.catalog.CategorySets(ctx)
			if err != nil {
				return err
			}
			if len(sets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No category sets found.")
				return nil
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sets)
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Name", "Categories"})
			for _, set := range sets {
				t.AppendRow(table.Row{set.Name, len(set.Categories)})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")
	return cmd
}

func newCategorySetShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show NAME",
		Short: "Show a category set and its categories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, cleanup, err := newCommandContext(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			set, err := cc.catalog.CategorySetByName(ctx, args[0])
			if err != nil {
				return err
			}
			if set == nil {
				return fmt.Errorf("category set %q does not exist", args[0])
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(set)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name: %s\n", set.Name)
			fmt.Fprintln(out, "Categories:")
			for _, cat := range set.Categories {
				fmt.Fprintf(out, "  %s\n", cat.Name)
				for _, l := range cat.Labels {
					fmt.Fprintf(out, "    %s\n", formatLabel(l))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of plain text")
	return cmd
}

func newCategorySetDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete an unreferenced category set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, cleanup, err := newCommandContext(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			name := args[0]
			if !yes && !confirm(cmd, fmt.Sprintf("Delete category set %q?", name)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Operation cancelled.")
				return nil
			}
			if err := cc.catalog.DeleteCategorySet(ctx, name); err != nil {
				return describeErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Category set %q deleted.\n", name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func newCategoryAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-category SET CATEGORY",
		Short: "Append a category to a set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, cleanup, err := newCommandContext(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cc.catalog.AddCategory(ctx, args[0], metadata.Category{Name: args[1]}); err != nil {
				return describeErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Category %q added to %q.\n", args[1], args[0])
			return nil
		},
	}
	return cmd
}

func newCategoryRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-category SET CATEGORY",
		Short: "Remove a category from a set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, cleanup, err := newCommandContext(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cc.catalog.RemoveCategory(ctx, args[0], args[1]); err != nil {
				return describeErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Category %q removed from %q.\n", args[1], args[0])
			return nil
		},
	}
	return cmd
}

func newCategoryLabelAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-label SET CATEGORY LABEL",
		Short: "Attach a label to a category (LABEL is lang:text or lang:purpose:text)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, cleanup, err := newCommandContext(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			l, err := parseLabelFlag(args[2])
			if err != nil {
				return err
			}
			if err := cc.catalog.AddCategoryLabel(ctx, args[0], args[1], l); err != nil {
				return describeErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Label added to category %q.\n", args[1])
			return nil
		},
	}
	return cmd
}

func newCategoryLabelRemoveCmd() *cobra.Command {
	var labelID int64
	cmd := &cobra.Command{
		Use:   "remove-label SET CATEGORY",
		Short: "Remove a label from a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, cleanup, err := newCommandContext(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cc.catalog.RemoveCategoryLabel(ctx, args[0], args[1], labelID); err != nil {
				return describeErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Label removed from category %q.\n", args[1])
			return nil
		},
	}
	cmd.Flags().Int64Var(&labelID, "id", 0, "label id to remove")
	cmd.MarkFlagRequired("id") //nolint:errcheck
	return cmd
}
