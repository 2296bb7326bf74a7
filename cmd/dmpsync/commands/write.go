package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmphub/dmpsync/pkg/engine"
	"github.com/dmphub/dmpsync/pkg/plan"
)

var createCmd = &cobra.Command{
	Use:   "create [file]",
	Short: "Create a record, minting an identifier if none is given",
	Long: `Create a new record from a JSON document. With no file argument the
document is read from stdin. The writer named by --provenance becomes
the record's owner.

Example:
  dmpsync create plan.json -p provenance-01`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProvenance(); err != nil {
			return err
		}
		rec, err := readRecordArg(args)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		eng, _, err := buildEngine(ctx)
		if err != nil {
			return err
		}

		created, err := eng.CreateRecord(ctx, provenance, rec)
		if err != nil {
			return err
		}
		return printRecord(created)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <id> [file]",
	Short: "Merge a proposed state into an existing record",
	Long: `Merge a writer's proposed state into a record. Owner writes replace
the owned fields; external writes only touch the writer's own funding
and related-identifier contributions.

Example:
  dmpsync update doi.org/10.48321/D1ABC123 plan.json -p funder-nsf`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProvenance(); err != nil {
			return err
		}
		rec, err := readRecordArg(args[1:])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		eng, _, err := buildEngine(ctx)
		if err != nil {
			return err
		}

		updated, err := eng.UpdateRecord(ctx, provenance, args[0], rec)
		if errors.Is(err, engine.ErrNoChange) {
			fmt.Fprintln(os.Stderr, "No change: proposed state matches the current record.")
			return nil
		}
		if err != nil {
			return err
		}
		return printRecord(updated)
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(updateCmd)
}

func readRecordArg(args []string) (*plan.Record, error) {
	var data []byte
	var err error
	if len(args) == 1 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record document: %w", err)
	}
	return plan.ParseRecord(data)
}

func printRecord(rec *plan.Record) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
