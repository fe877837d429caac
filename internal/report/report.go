package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/scrolland/cuestionario-videos/internal/participants"
)

// detectionThreshold splits slider ratings: >= 6 counts as "judged
// fake", <= 5 as "judged real".
const detectionThreshold = 6

// CauseCount is one free-text fake-detection cause with its frequency.
type CauseCount struct {
	Cause string `json:"cause"`
	Count int    `json:"count"`
}

// Stats is the aggregate roll-up over all participant records.
type Stats struct {
	TotalParticipants int            `json:"total_participants"`
	Completed         int            `json:"completed"`
	TotalResponses    int            `json:"total_responses"`
	GenderCounts      map[string]int `json:"gender_counts"`
	AgeCounts         map[string]int `json:"age_counts"`

	MeanObviousRating float64 `json:"mean_obvious_rating"`
	MeanFakeRating    float64 `json:"mean_fake_rating"`
	MeanRealRating    float64 `json:"mean_real_rating"`

	// CategoryMeans maps content category to its mean slider rating.
	CategoryMeans map[string]float64 `json:"category_means"`

	// FakeDetectionRate is the share of non-obvious fakes rated at or
	// above the detection threshold; RealAccuracyRate the share of real
	// clips rated below it.
	FakeDetectionRate float64 `json:"fake_detection_rate"`
	RealAccuracyRate  float64 `json:"real_accuracy_rate"`

	MeanResponseSecs float64 `json:"mean_response_secs"`
	MinResponseSecs  float64 `json:"min_response_secs"`
	MaxResponseSecs  float64 `json:"max_response_secs"`

	TopFakeCauses []CauseCount `json:"top_fake_causes"`
}

// Compute aggregates every record into one Stats value.
func Compute(records []*participants.Record) Stats {
	stats := Stats{
		GenderCounts:  make(map[string]int),
		AgeCounts:     make(map[string]int),
		CategoryMeans: make(map[string]float64),
	}

	var (
		obviousSum, obviousN float64
		fakeSum, fakeN       float64
		realSum, realN       float64
		fakeDetected         float64
		realCorrect          float64
		timeSum              float64
		timeN                float64
		categorySums         = make(map[string]float64)
		categoryCounts       = make(map[string]float64)
		causes               = make(map[string]int)
	)

	for _, record := range records {
		stats.TotalParticipants++
		if record.Completed {
			stats.Completed++
		}
		if record.Gender != "" {
			stats.GenderCounts[record.Gender]++
		}
		if record.Age != "" {
			stats.AgeCounts[record.Age]++
		}

		for _, response := range record.Responses {
			stats.TotalResponses++
			rating := float64(response.Rating)

			switch {
			case response.IsObvious:
				obviousSum += rating
				obviousN++
			case response.IsFake:
				fakeSum += rating
				fakeN++
				if response.Rating >= detectionThreshold {
					fakeDetected++
				}
			default:
				realSum += rating
				realN++
				if response.Rating < detectionThreshold {
					realCorrect++
				}
			}

			if response.Category != "" {
				categorySums[response.Category] += rating
				categoryCounts[response.Category]++
			}

			if response.ResponseTimeSecs > 0 {
				if timeN == 0 || response.ResponseTimeSecs < stats.MinResponseSecs {
					stats.MinResponseSecs = response.ResponseTimeSecs
				}
				if response.ResponseTimeSecs > stats.MaxResponseSecs {
					stats.MaxResponseSecs = response.ResponseTimeSecs
				}
				timeSum += response.ResponseTimeSecs
				timeN++
			}

			if cause := strings.TrimSpace(response.FakeCause); cause != "" {
				causes[strings.ToLower(cause)]++
			}
		}
	}

	if obviousN > 0 {
		stats.MeanObviousRating = obviousSum / obviousN
	}
	if fakeN > 0 {
		stats.MeanFakeRating = fakeSum / fakeN
		stats.FakeDetectionRate = fakeDetected / fakeN
	}
	if realN > 0 {
		stats.MeanRealRating = realSum / realN
		stats.RealAccuracyRate = realCorrect / realN
	}
	if timeN > 0 {
		stats.MeanResponseSecs = timeSum / timeN
	}
	for category, sum := range categorySums {
		stats.CategoryMeans[category] = sum / categoryCounts[category]
	}

	for cause, count := range causes {
		stats.TopFakeCauses = append(stats.TopFakeCauses, CauseCount{Cause: cause, Count: count})
	}
	sort.Slice(stats.TopFakeCauses, func(i, j int) bool {
		if stats.TopFakeCauses[i].Count != stats.TopFakeCauses[j].Count {
			return stats.TopFakeCauses[i].Count > stats.TopFakeCauses[j].Count
		}
		return stats.TopFakeCauses[i].Cause < stats.TopFakeCauses[j].Cause
	})
	if len(stats.TopFakeCauses) > 10 {
		stats.TopFakeCauses = stats.TopFakeCauses[:10]
	}

	return stats
}

var csvHeader = []string{
	"participant_id",
	"gender",
	"age",
	"started_at",
	"completed_at",
	"completed",
	"response_timestamp",
	"video_index",
	"video_path",
	"category",
	"is_fake",
	"is_obvious_fake",
	"quality",
	"slider_rating",
	"fake_cause",
	"response_time_secs",
}

// WriteCSV emits one row per response, UTF-8 with a byte-order mark so
// spreadsheet tools pick the encoding up without prompting.
func WriteCSV(w io.Writer, records []*participants.Record) error {
	bomWriter := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	writer := csv.NewWriter(bomWriter)

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, record := range records {
		completedAt := ""
		if record.CompletedAt != nil {
			completedAt = record.CompletedAt.Format(time.RFC3339)
		}
		for _, response := range record.Responses {
			row := []string{
				record.ID,
				record.Gender,
				record.Age,
				record.StartedAt.Format(time.RFC3339),
				completedAt,
				yesNo(record.Completed),
				response.Timestamp.Format(time.RFC3339),
				strconv.Itoa(response.VideoIndex),
				response.VideoPath,
				response.Category,
				yesNo(response.IsFake),
				yesNo(response.IsObvious),
				response.Quality,
				strconv.Itoa(response.Rating),
				response.FakeCause,
				strconv.FormatFloat(response.ResponseTimeSecs, 'f', -1, 64),
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("write csv row for %s: %w", record.ID, err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return bomWriter.Close()
}

// WriteJSON dumps every record as a single indented JSON document.
func WriteJSON(w io.Writer, records []*participants.Record) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if records == nil {
		records = []*participants.Record{}
	}
	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
