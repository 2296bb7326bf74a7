package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch a record state",
	Long: `Fetch a record by identifier. The --at flag selects a version:
"latest" (default), "tombstone", or an RFC3339 snapshot timestamp.

Example:
  dmpsync get doi.org/10.48321/D1ABC123 --at 2026-03-01T12:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, _ := cmd.Flags().GetString("at")

		ctx := cmd.Context()
		eng, _, err := buildEngine(ctx)
		if err != nil {
			return err
		}

		rec, err := eng.GetRecord(ctx, args[0], at)
		if err != nil {
			return err
		}
		return printRecord(rec)
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions <id>",
	Short: "List a record's version snapshots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, _, err := buildEngine(ctx)
		if err != nil {
			return err
		}

		refs, err := eng.ListVersions(ctx, args[0])
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			fmt.Println("No snapshots.")
			return nil
		}
		for _, ref := range refs {
			fmt.Println(ref.Locator)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(versionsCmd)

	getCmd.Flags().String("at", "", "Version selector (latest, tombstone, or RFC3339 timestamp)")
}
