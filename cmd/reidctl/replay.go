package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/your-org/reid/internal/queue"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Publish recorded detection frames to the FRAMES stream",
	Long: `Reads a JSONL file with one frame task per line and publishes the frames
in file order. Frames keep their recorded timestamps, so identity TTLs behave
as they did when the recording was made.`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().String("file", "", "JSONL file of frame tasks (required)")
	replayCmd.Flags().Float64("rate", 0, "frames per second to publish; 0 publishes as fast as possible")
	_ = replayCmd.MarkFlagRequired("file")
}

func runReplay(cmd *cobra.Command, args []string) error {
	path := mustGetString(cmd, "file")
	rate := mustGetFloat64(cmd, "rate")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	frames, err := readFramesFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(frames) == 0 {
		fmt.Println("No frames to replay")
		return nil
	}

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer producer.Close()

	ctx := cmd.Context()
	if err := producer.EnsureStreams(ctx); err != nil {
		return fmt.Errorf("failed to ensure streams: %w", err)
	}

	var tick <-chan time.Time
	if rate > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
		defer ticker.Stop()
		tick = ticker.C
	}

	bar := newFrameProgressBar(len(frames), "Publishing frames")
	for _, task := range frames {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		}
		if err := producer.PublishFrame(ctx, task); err != nil {
			return fmt.Errorf("failed to publish frame %d of %s: %w", task.FrameNumber, task.CameraID, err)
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	fmt.Printf("\nPublished %d frames\n", len(frames))
	return nil
}
