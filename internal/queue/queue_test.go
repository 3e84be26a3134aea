package queue

import (
	"fmt"
	"testing"
)

func TestSubjects(t *testing.T) {
	tests := []struct {
		camera string
		frame  string
		event  string
	}{
		{"cam1", "frames.cam1", "events.cam1"},
		{"lobby.north", "frames.lobby_north", "events.lobby_north"},
		{"a b*c>", "frames.a_b_c_", "events.a_b_c_"},
		{"", "frames._", "events._"},
	}
	for _, tt := range tests {
		if got := FrameSubject(tt.camera); got != tt.frame {
			t.Errorf("FrameSubject(%q) = %s, want %s", tt.camera, got, tt.frame)
		}
		if got := EventSubject(tt.camera); got != tt.event {
			t.Errorf("EventSubject(%q) = %s, want %s", tt.camera, got, tt.event)
		}
	}
}

func TestShardStableAndInRange(t *testing.T) {
	const n = 5
	used := make(map[int]bool)
	for i := 0; i < 200; i++ {
		subject := FrameSubject(fmt.Sprintf("cam%d", i))
		s := Shard(subject, n)
		if s < 0 || s >= n {
			t.Fatalf("shard %d out of range", s)
		}
		if again := Shard(subject, n); again != s {
			t.Fatalf("shard for %s changed: %d then %d", subject, s, again)
		}
		used[s] = true
	}
	if len(used) != n {
		t.Errorf("only %d of %d workers used for 200 cameras", len(used), n)
	}
	if Shard("frames.x", 1) != 0 || Shard("frames.x", 0) != 0 {
		t.Error("single worker must get shard 0")
	}
}
