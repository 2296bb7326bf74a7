package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var tombstoneCmd = &cobra.Command{
	Use:   "tombstone <id>",
	Short: "Retire a record (owner only)",
	Long: `Retire a record. The latest state is frozen under the tombstone key
with its title prefixed, and further writes are refused.

The --last-seen timestamp guards against retiring a record someone else
just changed; it must match the record's current modification time.

Example:
  dmpsync tombstone doi.org/10.48321/D1ABC123 -p provenance-01 --last-seen 2026-03-01T12:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProvenance(); err != nil {
			return err
		}

		var lastSeen time.Time
		if raw, _ := cmd.Flags().GetString("last-seen"); raw != "" {
			var err error
			lastSeen, err = time.Parse(time.RFC3339, raw)
			if err != nil {
				return fmt.Errorf("invalid --last-seen timestamp: %w", err)
			}
		}

		ctx := cmd.Context()
		eng, _, err := buildEngine(ctx)
		if err != nil {
			return err
		}

		tomb, err := eng.TombstoneRecord(ctx, provenance, args[0], lastSeen)
		if err != nil {
			return err
		}
		fmt.Printf("Tombstoned: %s\n", tomb.Title)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tombstoneCmd)
	tombstoneCmd.Flags().String("last-seen", "", "Modification timestamp of the state the caller last saw (RFC3339)")
}
