package report_test

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/scrolland/cuestionario-videos/internal/participants"
	"github.com/scrolland/cuestionario-videos/internal/report"
)

func sampleRecords() []*participants.Record {
	started := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	completed := started.Add(20 * time.Minute)
	return []*participants.Record{
		{
			ID:          "P1700000000001",
			Gender:      "female",
			Age:         "18-25",
			StartedAt:   started,
			CompletedAt: &completed,
			Completed:   true,
			Responses: []participants.Response{
				{VideoIndex: 0, VideoPath: "/v/e2/a.mp4", Category: "entertainment", IsFake: true, IsObvious: true, Quality: "low", Rating: 9, Timestamp: started, ResponseTimeSecs: 3},
				{VideoIndex: 1, VideoPath: "/v/e5/b.mp4", Category: "entertainment", IsFake: true, Quality: "high", Rating: 7, FakeCause: "Odd lighting", Timestamp: started, ResponseTimeSecs: 5},
				{VideoIndex: 2, VideoPath: "/v/reals/c.mp4", Category: "informational", Quality: "real", Rating: 3, Timestamp: started, ResponseTimeSecs: 4},
			},
		},
		{
			ID:        "P1700000000002",
			Gender:    "male",
			Age:       "26-35",
			StartedAt: started,
			Responses: []participants.Response{
				{VideoIndex: 0, VideoPath: "/v/e5/b.mp4", Category: "entertainment", IsFake: true, Quality: "high", Rating: 4, FakeCause: "odd lighting", Timestamp: started, ResponseTimeSecs: 8},
				{VideoIndex: 1, VideoPath: "/v/reals/d.mp4", Category: "informational", Quality: "real", Rating: 8, Timestamp: started, ResponseTimeSecs: 2},
			},
		},
	}
}

func TestComputeAggregates(t *testing.T) {
	stats := report.Compute(sampleRecords())

	if stats.TotalParticipants != 2 || stats.Completed != 1 {
		t.Errorf("participants = %d/%d completed, want 2/1", stats.TotalParticipants, stats.Completed)
	}
	if stats.TotalResponses != 5 {
		t.Errorf("responses = %d, want 5", stats.TotalResponses)
	}
	if stats.GenderCounts["female"] != 1 || stats.GenderCounts["male"] != 1 {
		t.Errorf("gender counts = %v", stats.GenderCounts)
	}
	if stats.MeanObviousRating != 9 {
		t.Errorf("mean obvious = %v, want 9", stats.MeanObviousRating)
	}
	if got := stats.MeanFakeRating; math.Abs(got-5.5) > 1e-9 {
		t.Errorf("mean fake = %v, want 5.5", got)
	}
	if got := stats.MeanRealRating; math.Abs(got-5.5) > 1e-9 {
		t.Errorf("mean real = %v, want 5.5", got)
	}
	// One of two non-obvious fakes rated >= 6; one of two reals rated < 6.
	if got := stats.FakeDetectionRate; math.Abs(got-0.5) > 1e-9 {
		t.Errorf("fake detection rate = %v, want 0.5", got)
	}
	if got := stats.RealAccuracyRate; math.Abs(got-0.5) > 1e-9 {
		t.Errorf("real accuracy rate = %v, want 0.5", got)
	}
	if got := stats.MinResponseSecs; got != 2 {
		t.Errorf("min response = %v, want 2", got)
	}
	if got := stats.MaxResponseSecs; got != 8 {
		t.Errorf("max response = %v, want 8", got)
	}
	if len(stats.TopFakeCauses) != 1 {
		t.Fatalf("causes = %v, want one merged entry", stats.TopFakeCauses)
	}
	if stats.TopFakeCauses[0].Cause != "odd lighting" || stats.TopFakeCauses[0].Count != 2 {
		t.Errorf("top cause = %+v", stats.TopFakeCauses[0])
	}
	if got := stats.CategoryMeans["entertainment"]; math.Abs(got-20.0/3.0) > 1e-9 {
		t.Errorf("entertainment mean = %v", got)
	}
}

func TestComputeEmptyRecords(t *testing.T) {
	stats := report.Compute(nil)
	if stats.TotalParticipants != 0 || stats.TotalResponses != 0 {
		t.Errorf("empty stats not zeroed: %+v", stats)
	}
	if stats.FakeDetectionRate != 0 || stats.MeanRealRating != 0 {
		t.Errorf("empty stats not zeroed: %+v", stats)
	}
}

func TestWriteCSVStartsWithBOM(t *testing.T) {
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, sampleRecords()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	data := buf.Bytes()
	if !bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		t.Error("csv output missing UTF-8 byte-order mark")
	}

	lines := strings.Split(strings.TrimSpace(string(data[3:])), "\n")
	// Header plus one row per response.
	if len(lines) != 6 {
		t.Fatalf("csv lines = %d, want 6", len(lines))
	}
	if !strings.HasPrefix(lines[0], "participant_id,gender,age") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "P1700000000001") || !strings.Contains(lines[1], "yes") {
		t.Errorf("first row = %q", lines[1])
	}
}

func TestWriteJSONRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := report.WriteJSON(&buf, sampleRecords()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var decoded []*participants.Record
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d records, want 2", len(decoded))
	}
	if decoded[0].ID != "P1700000000001" || len(decoded[0].Responses) != 3 {
		t.Errorf("first record = %+v", decoded[0])
	}
}
