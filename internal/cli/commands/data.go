package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/datamap/internal/catalog"
	"github.com/conduit-lang/datamap/internal/cli/ui"
	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/model"
	"github.com/conduit-lang/datamap/pkg/orm/schema"
	"github.com/conduit-lang/datamap/pkg/orm/serializer"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// outputOptions selects how records are printed
type outputOptions struct {
	format     string
	serializer string
}

func (o *outputOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "output", "o", outputTable, "Output format: table or json")
	cmd.Flags().StringVar(&o.serializer, "serializer", serializer.DefaultName, "Serializer for json output: default or jsonapi")
}

func (o *outputOptions) validate() error {
	if o.format != outputTable && o.format != outputJSON {
		return fmt.Errorf("invalid --output %q (expected table or json)", o.format)
	}
	return nil
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the catalog tables in SQL storage",
		Long: `Create the cat table if the cat model is stored in SQLite or PostgreSQL.

Memory and Redis storage need no schema; the command reports that and exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			return opts.run(ctx, func(e *env) error {
				cats, err := e.model(catalog.Cat.Name())
				if err != nil {
					return err
				}
				store := sqlStore(cats)
				if store == nil {
					ui.WriteInfo(out, "cat storage needs no migration", opts.noColor)
					return nil
				}
				if err := catalog.Migrate(ctx, store.DB(), store.Dialect()); err != nil {
					return err
				}
				ui.WriteSuccess(out, fmt.Sprintf("created table %s (%s)", catalog.Cat.Table(), store.Dialect()), opts.noColor)
				return nil
			})
		},
	}
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace every cat with the fixture cats",
		Long: `Truncate the cat model and insert the fixture cats.

With the memory driver the seeded data only lives as long as the command;
use "serve --seed" to serve seeded in-memory data.`,
		Example: `  # Seed a SQLite database, creating the table first
  datamap seed --migrate --config datamap.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			return opts.run(ctx, func(e *env) error {
				cats, err := e.model(catalog.Cat.Name())
				if err != nil {
					return err
				}
				if store := sqlStore(cats); migrate && store != nil {
					if err := catalog.Migrate(ctx, store.DB(), store.Dialect()); err != nil {
						return err
					}
				}

				n, err := catalog.Seed(ctx, cats)
				if err != nil {
					return err
				}
				ui.WriteSuccess(out, fmt.Sprintf("seeded %d cats", n), opts.noColor)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "Create the table first when storage is SQL")
	return cmd
}

func newListCommand(opts *rootOptions) *cobra.Command {
	var (
		multi  adapter.MultiOptions
		filter map[string]string
		output outputOptions
	)

	cmd := &cobra.Command{
		Use:   "list <model>",
		Short: "List the records of a model",
		Example: `  # Second page of active cats, oldest first
  datamap list cat --filter isActive=true --sort -age --page 2 --limit 10

  # JSON:API document
  datamap list cat -o json --serializer jsonapi`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := output.validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			return opts.run(ctx, func(e *env) error {
				class, err := e.model(args[0])
				if err != nil {
					return err
				}

				where := toWhere(filter)
				items, err := class.Some(ctx, where, &multi)
				if err != nil {
					return err
				}
				total, err := class.CountSome(ctx, where)
				if err != nil {
					return err
				}

				if output.format == outputJSON {
					var sopts serializer.Options
					if output.serializer == serializer.JSONAPIName {
						sopts = serializer.Options{"meta": map[string]any{
							"total": total,
							"page":  multi.PageOrDefault(),
							"limit": multi.LimitOrDefault(),
						}}
					}
					doc, err := items.Serialize(output.serializer, sopts)
					if err != nil {
						return err
					}
					return writeJSON(out, doc)
				}

				columns := columnsFor(class.Metadata(), multi.Fields)
				table := ui.NewTable(out, columns, opts.noColor)
				for _, row := range items.ToJSON() {
					cells := make([]string, len(columns))
					for i, c := range columns {
						cells[i] = ui.Cell(row[c])
					}
					table.AddRow(cells...)
				}
				table.Render()
				ui.WriteInfo(out, fmt.Sprintf("page %d: %d of %d", multi.PageOrDefault(), items.Len(), total), opts.noColor)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&multi.Page, "page", 0, "Page number, starting at 1")
	cmd.Flags().IntVar(&multi.Limit, "limit", 0, fmt.Sprintf("Records per page (default %d)", adapter.DefaultLimit))
	cmd.Flags().StringVar(&multi.Sort, "sort", "", "Comma-separated attributes, '-' prefix for descending")
	cmd.Flags().StringSliceVar(&multi.Fields, "fields", nil, "Attributes to include (the identifier is always included)")
	cmd.Flags().StringToStringVar(&filter, "filter", nil, "Equality filter, e.g. --filter name=Fluffy")
	output.register(cmd)
	return cmd
}

func newGetCommand(opts *rootOptions) *cobra.Command {
	var (
		fields []string
		output outputOptions
	)

	cmd := &cobra.Command{
		Use:   "get <model> <id>",
		Short: "Show one record by identifier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := output.validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			return opts.run(ctx, func(e *env) error {
				class, err := e.model(args[0])
				if err != nil {
					return err
				}

				inst, err := class.OneByID(ctx, args[1], &adapter.SingleOptions{Fields: fields})
				if err != nil {
					return err
				}
				if inst == nil {
					return fmt.Errorf("%s %s: %w", class.Name(), args[1], model.ErrRecordNotFound)
				}

				if output.format == outputJSON {
					doc, err := inst.Serialize(output.serializer, nil)
					if err != nil {
						return err
					}
					return writeJSON(out, doc)
				}

				row := inst.ToJSON()
				table := ui.NewKeyValueTable(out, opts.noColor)
				for _, c := range columnsFor(class.Metadata(), fields) {
					table.AddRow(c, ui.Cell(row[c]))
				}
				table.Render()
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&fields, "fields", nil, "Attributes to include (the identifier is always included)")
	output.register(cmd)
	return cmd
}

func newCountCommand(opts *rootOptions) *cobra.Command {
	var filter map[string]string

	cmd := &cobra.Command{
		Use:   "count <model>",
		Short: "Count the records of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			return opts.run(ctx, func(e *env) error {
				class, err := e.model(args[0])
				if err != nil {
					return err
				}
				n, err := class.CountSome(ctx, toWhere(filter))
				if err != nil {
					return err
				}
				fmt.Fprintln(out, strconv.FormatInt(n, 10))
				return nil
			})
		},
	}

	cmd.Flags().StringToStringVar(&filter, "filter", nil, "Equality filter, e.g. --filter name=Fluffy")
	return cmd
}

func toWhere(filter map[string]string) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	where := make(map[string]any, len(filter))
	for k, v := range filter {
		where[k] = v
	}
	return where
}

// columnsFor lists the attributes printed for a projection: every attribute
// when fields is empty, otherwise the identifier followed by fields
func columnsFor(meta *schema.Model, fields []string) []string {
	if len(fields) == 0 {
		return meta.Names()
	}
	columns := []string{meta.IDField()}
	seen := map[string]bool{meta.IDField(): true}
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			columns = append(columns, f)
		}
	}
	return columns
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
