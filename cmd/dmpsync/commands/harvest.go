package commands

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dmphub/dmpsync/pkg/config"
	"github.com/dmphub/dmpsync/pkg/engine/comparator"
	"github.com/dmphub/dmpsync/pkg/engine/ledger"
	"github.com/dmphub/dmpsync/pkg/engine/policy"
	"github.com/dmphub/dmpsync/pkg/harvester"
	"github.com/dmphub/dmpsync/pkg/storage"
	"github.com/dmphub/dmpsync/pkg/tui"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest <id>...",
	Short: "Score candidate works against one or more records",
	Long: `Run a harvest cycle: read candidate works from the given source
files, score each against the records, and queue plausible matches for
review. Each --works value is label=path, or a bare path. With several
record ids the cycle fans out over --workers goroutines.

Example:
  dmpsync harvest doi.org/10.48321/D1ABC123 --works datacite=dc.json --match-config match.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workFiles, _ := cmd.Flags().GetStringArray("works")
		if len(workFiles) == 0 {
			return fmt.Errorf("at least one --works file is required")
		}
		matchPath, _ := cmd.Flags().GetString("match-config")
		workers, _ := cmd.Flags().GetInt("workers")

		ctx := cmd.Context()
		eng, store, err := buildEngine(ctx)
		if err != nil {
			return err
		}

		h, err := buildHarvester(eng.Comparator, eng.Ledger, store, matchPath)
		if err != nil {
			return err
		}

		registry := harvester.NewRegistry()
		for _, spec := range workFiles {
			label, path, found := strings.Cut(spec, "=")
			if !found {
				label, path = "", spec
			}
			registry.Register(&harvester.FileSource{Path: path, Label: label})
		}

		failed := 0
		for _, res := range h.HarvestBatch(ctx, args, registry, workers) {
			if res.Err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "%s: %v\n", res.RecordID, res.Err)
				continue
			}
			fmt.Printf("%s: tracked %d new candidate(s)\n", res.RecordID, res.Tracked)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d record(s) failed", failed, len(args))
		}
		return nil
	},
}

var reviewCmd = &cobra.Command{
	Use:   "review <id>",
	Short: "Review tracked candidates interactively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, store, err := buildEngine(ctx)
		if err != nil {
			return err
		}

		h, err := buildHarvester(eng.Comparator, eng.Ledger, store, "")
		if err != nil {
			return err
		}

		model := tui.NewModel(h, store, args[0])
		_, err = tea.NewProgram(model).Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(harvestCmd)
	rootCmd.AddCommand(reviewCmd)

	harvestCmd.Flags().StringArray("works", nil, "Candidate works file, label=path")
	harvestCmd.Flags().String("match-config", "", "Match policy file (bands, rules, threshold)")
	harvestCmd.Flags().Int("workers", 4, "Worker pool size for multi-record harvests")
}

// buildHarvester applies the match policy file, when given, on top of
// the engine's comparator and ledger.
func buildHarvester(cmp *comparator.Comparator, led *ledger.Ledger, store storage.RecordStore, matchPath string) (*harvester.Harvester, error) {
	h := harvester.New(store, cmp, led)
	if matchPath == "" {
		return h, nil
	}

	matchCfg, err := config.LoadMatchConfig(matchPath)
	if err != nil {
		return nil, err
	}

	h.Comparator = comparator.New(comparator.WithBands(matchCfg.Bands))
	h.Threshold = matchCfg.Threshold

	if len(matchCfg.Rules) > 0 {
		rules, err := policy.NewCELEngine()
		if err != nil {
			return nil, err
		}
		if err := rules.Compile(matchCfg.Rules); err != nil {
			return nil, err
		}
		h.Rules = rules
	}
	return h, nil
}
