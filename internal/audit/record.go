// Package audit records identity assignments as JSONL and analyzes them.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Kind is the outcome of one identity decision.
type Kind string

const (
	KindNewVisitor Kind = "NEW_VISITOR"
	KindReIDMatch  Kind = "REID_MATCH"
)

// Record is one assignment of a global id to a local track.
type Record struct {
	CameraID    string    `json:"camera_id"`
	FrameNumber int64     `json:"frame_number"`
	LocalID     uint64    `json:"local_id"`
	GlobalID    string    `json:"global_id"`
	Kind        Kind      `json:"assignment_type"`
	Similarity  float32   `json:"similarity_score"`
	Timestamp   time.Time `json:"timestamp"`
}

// WriteJSONL writes one JSON object per line.
func WriteJSONL(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return nil
}

// ReadJSONL parses records until EOF. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return out, nil
}
