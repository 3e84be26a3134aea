package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/your-org/reid/internal/audit"
	"github.com/your-org/reid/internal/models"
	"github.com/your-org/reid/internal/vision"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the identity engine offline over recorded frames",
	Long: `Feeds a JSONL file of frame tasks through an in-process identity engine
configured from the identity section of the config file. Nothing is published
or persisted; the resulting assignments are analyzed and optionally written
as an audit JSONL file.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().String("file", "", "JSONL file of frame tasks (required)")
	simulateCmd.Flags().String("out", "", "write assignment records to this JSONL file")
	simulateCmd.Flags().Bool("quiet", false, "hide the progress bar")
	_ = simulateCmd.MarkFlagRequired("file")
}

const maintainEvery = 100

// memorySink collects audit records in memory.
type memorySink struct {
	mu      sync.Mutex
	records []audit.Record
}

func (m *memorySink) Append(_ context.Context, recs ...audit.Record) error {
	m.mu.Lock()
	m.records = append(m.records, recs...)
	m.mu.Unlock()
	return nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	frames, err := readFramesFile(mustGetString(cmd, "file"))
	if err != nil {
		return fmt.Errorf("failed to read frames: %w", err)
	}

	records, err := simulate(cmd.Context(), cfg.Identity.EngineConfig(), cfg.Tracking.MaxMissed, frames, !mustGetBool(cmd, "quiet"))
	if err != nil {
		return err
	}

	if out := mustGetString(cmd, "out"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		if err := audit.WriteJSONL(f, records); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	audit.Analyze(records).Print(os.Stdout)
	return nil
}

// simulate runs frames through a fresh engine in file order and returns the
// assignment records.
func simulate(ctx context.Context, engineCfg vision.Config, maxMissed int, frames []models.FrameTask, progress bool) ([]audit.Record, error) {
	engine, err := vision.NewEngine(engineCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid identity config: %w", err)
	}
	sink := &memorySink{}
	pipeline := vision.NewPipeline(engine, nil, nil, sink, vision.PipelineOptions{MaxMissed: maxMissed})

	var bar interface{ Add(int) error }
	if progress {
		pb := newFrameProgressBar(len(frames), "Resolving identities")
		defer func() {
			_ = pb.Finish()
			fmt.Println()
		}()
		bar = pb
	}

	for i, task := range frames {
		if err := pipeline.ProcessFrame(ctx, task); err != nil {
			return nil, err
		}
		if i%maintainEvery == maintainEvery-1 {
			pipeline.Maintain(pipeline.Clock())
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return sink.records, nil
}
