package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"varman/internal/catalog"
	"varman/internal/exchange"
	"varman/internal/metadata"
)

func newVariableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variable",
		Short: "Create, inspect and modify variables",
	}
	cmd.AddCommand(
		newVariableCreateCmd(),
		newVariableListCmd(),
		newVariableShowCmd(),
		newVariableUpdateCmd(),
		newVariableDeleteCmd(),
	)
	return cmd
}

// constraintFlags collects the shared constraint flag set used by create
// and update.
type constraintFlags struct {
	minValue float64
	maxValue float64
	email    bool
	url      bool
	regex    string
}

func (f *constraintFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.minValue, "min-value", 0, "minimum value constraint")
	cmd.Flags().Float64Var(&f.maxValue, "max-value", 0, "maximum value constraint")
	cmd.Flags().BoolVar(&f.email, "email", false, "require values to be email addresses")
	cmd.Flags().BoolVar(&f.url, "url", false, "require values to be URLs")
	cmd.Flags().StringVar(&f.regex, "regex", "", "require values to match a pattern")
}

func (f *constraintFlags) constraints(cmd *cobra.Command) []metadata.Constraint {
	var out []metadata.Constraint
	if cmd.Flags().Changed("min-value") {
		out = append(out, metadata.Constraint{Kind: metadata.MinValue, Value: f.minValue})
	}
	if cmd.Flags().Changed("max-value") {
		out = append(out, metadata.Constraint{Kind: metadata.MaxValue, Value: f.maxValue})
	}
	if f.email {
		out = append(out, metadata.Constraint{Kind: metadata.Email})
	}
	if f.url {
		out = append(out, metadata.Constraint{Kind: metadata.URL})
	}
	if f.regex != "" {
		out = append(out, metadata.Constraint{Kind: metadata.Regex, Pattern: f.regex})
	}
	return out
}

func newVariableCreateCmd() *cobra.Command {
	var (
		dataType    string
		categorySet string
		categories  []string
		description string
		reference   string
		labelFlags  []string
		conFlags    constraintFlags
	)
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, cleanup, err := newCommandContext(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			name := args[0]
			labels, err := parseLabelFlags(labelFlags)
			if err != nil {
				return err
			}
			dt := metadata.DataType(dataType)

			var created *metadata.Variable
			switch {
			case dt.Categorical() && categorySet != "" && len(categories) > 0:
				return fmt.Errorf("cannot specify both --category-set and --categories")
			case dt.Categorical() && categorySet != "":
				set, err := cc.catalog.CategorySetByName(ctx, categorySet)
				if err != nil {
					return err
				}
				if set == nil {
					return fmt.Errorf("category set %q does not exist", categorySet)
				}
				created, err = cc.catalog.CreateVariable(ctx, &metadata.Variable{
					Name:          name,
					DataType:      dt,
					CategorySetID: &set.ID,
					Description:   description,
					Reference:     reference,
					Labels:        labels,
					Constraints:   conFlags.constraints(cmd),
				})
				if err != nil {
					return describeErr(err)
				}
			case dt.Categorical():
				created, err = cc.catalog.CreateCategorical(ctx, name, dt, categories, description, reference)
				if err != nil {
					return describeErr(err)
				}
				for _, l := range labels {
					if err := cc.catalog.AddVariableLabel(ctx, name, l); err != nil {
						return describeErr(err)
					}
				}
			default:
				created, err = cc.catalog.CreateVariable(ctx, &metadata.Variable{
					Name:        name,
					DataType:    dt,
					Description: description,
					Reference:   reference,
					Labels:      labels,
					Constraints: conFlags.constraints(cmd),
				})
				if err != nil {
					return describeErr(err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Variable %q created.\n", created.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataType, "data-type", "t", "", "data type: discrete, continuous, nominal, ordinal or text")
	cmd.Flags().StringVar(&categorySet, "category-set", "", "existing category set (nominal/ordinal)")
	cmd.Flags().StringSliceVar(&categories, "categories", nil, "category names for a new category set (nominal/ordinal)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "variable description")
	cmd.Flags().StringVarP(&reference, "reference", "r", "", "variable reference")
	cmd.Flags().StringArrayVarP(&labelFlags, "label", "l", nil, "label as lang:text or lang:purpose:text (repeatable)")
	conFlags.register(cmd)
	cmd.MarkFlagRequired("data-type") //nolint:errcheck
	return cmd
}

func newVariableListCmd() *cobra.Command {
	var (
		dataType   string
		filterExpr string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cc, cleanup, err := newCommandContext(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var filter *metadata.DataType
			if dataType != "" {
				dt := metadata.DataType(dataType)
				if !dt.Valid() {
					return fmt.Errorf("unknown data type %q", dataType)
				}
				filter = &dt
			}
			variables, err := cc.catalog.Variables(ctx, filter)
			if err != nil {
				return err
			}
			if filterExpr != "" {
				variables, err = filterVariables(variables, filterExpr)
				if err != nil {
					return err
				}
			}
			if len(variables) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No variables found.")
				return nil
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(variables)
			}

			setNames := make(map[int64]string)
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Name", "Type", "Category Set", "Labels", "Constraints"})
			for _, v := range variables {
				setName := ""
				if v.CategorySetID != nil {
					if cached, ok := setNames[*v.CategorySetID]; ok {
						setName = cached
					} else if set, err := cc.catalog.CategorySetByID(ctx, *v.CategorySetID); err == nil && set != nil {
						setName = set.Name
						setNames[set.ID] = set.Name
					}
				}
				t.AppendRow(table.Row{v.Name, v.DataType, setName, len(v.Labels), len(v.Constraints)})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataType, "data-type", "t", "", "only variables of this data type")
	cmd.Flags().StringVar(&filterExpr, "filter", "", `expression filter, e.g. 'data_type == "nominal"'`)
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")
	return cmd
}

// filterVariables keeps the variables for which the expression evaluates to
// true. The expression sees name, data_type, description and reference.
func filterVariables(variables []*metadata.Variable, filterExpr string) ([]*metadata.Variable, error) {
	program, err := expr.Compile(filterExpr, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	var out []*metadata.Variable
	for _, v := range variables {
		env := map[string]any{
			"name":        v.Name,
			"data_type":   string(v.DataType),
			"description": v.Description,
			"reference":   v.Reference,
		}
		keep, err := expr.Run(program, env)
		if err != nil {
			return nil, fmt.Errorf("evaluate filter: %w", err)
		}
		if keep.(bool) {
			out = append(out, v)
		}
	}
	return out, nil
}

func newVariableShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show NAME",
		Short: "Show a variable's full definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, cleanup, err := newCommandContext(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			name := args[0]
			v, err := cc.catalog.VariableByName(ctx, name)
			if err != nil {
				return err
			}
			if v == nil {
				return fmt.Errorf("variable %q does not exist", name)
			}

			if asJSON {
				doc, err := exchange.NewExporter(cc.catalog).ExportBatch(ctx, []string{name}, exchange.ShapeInternal)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(doc[0].Variable)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name: %s\n", v.Name)
			fmt.Fprintf(out, "Type: %s\n", v.DataType)
			if v.Description != "" {
				fmt.Fprintf(out, "Description: %s\n", v.Description)
			}
			if v.Reference != "" {
				fmt.Fprintf(out, "Reference: %s\n", v.Reference)
			}
			if v.CategorySetID != nil {
				set, err := cc.catalog.CategorySetByID(ctx, *v.CategorySetID)
				if err != nil {
					return err
				}
				if set != nil {
					fmt.Fprintf(out, "Category set: %s\n", set.Name)
					fmt.Fprintf(out, "Categories: %s\n", strings.Join(set.CategoryNames(), ", "))
				}
			}
			if len(v.Labels) > 0 {
				fmt.Fprintln(out, "Labels:")
				for _, l := range v.Labels {
					fmt.Fprintf(out, "  %s\n", formatLabel(l))
				}
			}
			if len(v.Constraints) > 0 {
				fmt.Fprintln(out, "Constraints:")
				for _, c := range v.Constraints {
					fmt.Fprintf(out, "  %s\n", c)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of plain text")
	return cmd
}

func newVariableUpdateCmd() *cobra.Command {
	var (
		rename       string
		description  string
		reference    string
		addLabels    []string
		removeLabels []int64
		conFlags     constraintFlags
		removeCons   []string
	)
	cmd := &cobra.Command{
		Use:   "update NAME",
		Short: "Update a variable's fields, labels and constraints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, cleanup, err := newCommandContext(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			name := args[0]
			u := metadata.VariableUpdate{}
			if cmd.Flags().Changed("rename") {
				u.Name = &rename
			}
			if cmd.Flags().Changed("description") {
				u.Description = &description
			}
			if cmd.Flags().Changed("reference") {
				u.Reference = &reference
			}
			if !u.Empty() {
				if _, err := cc.catalog.UpdateVariable(ctx, name, u); err != nil {
					return describeErr(err)
				}
				if u.Name != nil {
					name = *u.Name
				}
			}

			labels, err := parseLabelFlags(addLabels)
			if err != nil {
				return err
			}
			for _, l := range labels {
				if err := cc.catalog.AddVariableLabel(ctx, name, l); err != nil {
					return describeErr(err)
				}
			}
			for _, id := range removeLabels {
				if err := cc.catalog.RemoveVariableLabel(ctx, name, id); err != nil {
					return describeErr(err)
				}
			}
			for _, c := range conFlags.constraints(cmd) {
				if err := cc.catalog.SetConstraint(ctx, name, c); err != nil {
					return describeErr(err)
				}
			}
			for _, kindStr := range removeCons {
				kind, err := metadata.ParseConstraintKind(kindStr)
				if err != nil {
					return err
				}
				if err := cc.catalog.RemoveConstraint(ctx, name, kind); err != nil {
					return describeErr(err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Variable %q updated.\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&rename, "rename", "", "new variable name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringVarP(&reference, "reference", "r", "", "new reference")
	cmd.Flags().StringArrayVar(&addLabels, "add-label", nil, "label as lang:text or lang:purpose:text (repeatable)")
	cmd.Flags().Int64SliceVar(&removeLabels, "remove-label", nil, "label id to remove (repeatable)")
	cmd.Flags().StringSliceVar(&removeCons, "remove-constraint", nil, "constraint kind to remove (repeatable)")
	conFlags.register(cmd)
	return cmd
}

func newVariableDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a variable and its labels and constraints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, cleanup, err := newCommandContext(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			name := args[0]
			if !yes && !confirm(cmd, fmt.Sprintf("Delete variable %q?", name)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Operation cancelled.")
				return nil
			}
			if err := cc.catalog.DeleteVariable(ctx, name); err != nil {
				return describeErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Variable %q deleted.\n", name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func parseLabelFlags(flags []string) ([]metadata.Label, error) {
	var labels []metadata.Label
	for _, s := range flags {
		l, err := parseLabelFlag(s)
		if err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, nil
}

// describeErr expands catalog validation errors so field-level detail
// reaches the terminal instead of only "validation failed".
func describeErr(err error) error {
	var appErr *catalog.AppError
	if errors.As(err, &appErr) && len(appErr.Details) > 0 {
		var b strings.Builder
		b.WriteString(appErr.Message)
		for _, d := range appErr.Details {
			b.WriteString(fmt.Sprintf("\n  %s: %s", d.Field, d.Message))
		}
		return errors.New(b.String())
	}
	return err
}
