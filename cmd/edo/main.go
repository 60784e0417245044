// Command edo is a thin wiring demonstration for the engine: it builds
// an EngineConfig, a default logger, a local process farm, and a
// filesystem-backed storage manager, then exposes "plan" and "run" as
// cobra subcommands over a registry of transforms supplied by the
// (out-of-scope) configuration evaluator. The CLI surface itself is not
// part of the engine's contract — only pkg/... is.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/edo-build/edo/pkg/addr"
	"github.com/edo-build/edo/pkg/edoconfig"
	"github.com/edo-build/edo/pkg/edolog"
	"github.com/edo-build/edo/pkg/environment"
	"github.com/edo-build/edo/pkg/environment/localenv"
	"github.com/edo-build/edo/pkg/scheduler"
	"github.com/edo-build/edo/pkg/storage/localbackend"
	"github.com/edo-build/edo/pkg/storagemgr"
	"github.com/edo-build/edo/pkg/transform"
)

var (
	development bool
	batchSize   int
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "edo",
		Short: "Edo is a hermetic, reproducible build engine",
	}
	root.PersistentFlags().BoolVar(&development, "development", false, "use human-readable development logging")
	root.PersistentFlags().IntVar(&batchSize, "batch-size", 0, "override the scheduler's default concurrency bound")

	root.AddCommand(newPlanCmd(), newRunCmd())
	return root
}

// bootstrap assembles the shared engine wiring every subcommand needs:
// configuration, logger, local storage manager, and a local process farm.
// A real embedder would plug the configuration evaluator's transform
// registry in here instead of an empty one.
func bootstrap() (*scheduler.Scheduler, error) {
	cfg, err := edoconfig.Resolve(edoconfig.Overrides{BatchSize: batchSize})
	if err != nil {
		return nil, fmt.Errorf("edo: %w", err)
	}

	local, _, _, _ := cfg.StorageRoots()
	backend, err := localbackend.New(local)
	if err != nil {
		return nil, fmt.Errorf("edo: local backend: %w", err)
	}
	storageMgr := storagemgr.New(backend)

	farms := environment.NewManager()
	farms.Register(addr.New("//farm/local"), &localenv.Farm{Root: cfg.LocalFarmRoot()})

	reg := transform.NewBuilder().Freeze() // populated by the configuration evaluator in a real embedder

	sched := scheduler.New(scheduler.Config{
		Registry:     reg,
		Storage:      storageMgr,
		Environments: farms,
		BatchSize:    cfg.BatchSize,
	})
	return sched, nil
}

// parseAddr accepts a bare "//path/to/target" argument; the (out-of-scope)
// configuration evaluator would otherwise resolve shorthand names.
func parseAddr(raw string) addr.Addr {
	return addr.New(raw)
}

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan ADDR",
		Short: "Print the wave-ordered batches a run would dispatch, without executing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := bootstrap()
			if err != nil {
				return err
			}
			plan, err := sched.Plan(cmd.Context(), parseAddr(args[0]))
			if err != nil {
				return err
			}
			for i, batch := range plan.Batches {
				fmt.Printf("wave %d:\n", i)
				for _, a := range batch {
					fmt.Printf("  %s\n", a.String())
				}
			}
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run ADDR",
		Short: "Build ADDR and its dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := bootstrap()
			if err != nil {
				return err
			}
			log := edolog.New(edolog.Options{Development: development})
			result, err := sched.Run(cmd.Context(), log, parseAddr(args[0]))
			if err != nil {
				return err
			}
			for a, state := range result.Statuses {
				fmt.Printf("%-8s %s\n", state, a)
			}
			return nil
		},
	}
}
