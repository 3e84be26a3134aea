package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/your-org/reid/internal/models"
)

const maxFrameLine = 16 << 20

// readFrames decodes one FrameTask per line. Blank lines are skipped and
// frames without an id get a fresh one.
func readFrames(r io.Reader) ([]models.FrameTask, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameLine)

	var frames []models.FrameTask
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var task models.FrameTask
		if err := json.Unmarshal(sc.Bytes(), &task); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if task.CameraID == "" {
			return nil, fmt.Errorf("line %d: missing camera_id", line)
		}
		if task.FrameID == uuid.Nil {
			task.FrameID = uuid.New()
		}
		frames = append(frames, task)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read frames: %w", err)
	}
	return frames, nil
}

func readFramesFile(path string) ([]models.FrameTask, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readFrames(f)
}

func newFrameProgressBar(count int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(count,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}
