package participants

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/scrolland/cuestionario-videos/internal/assets"
	"github.com/scrolland/cuestionario-videos/internal/prompt"
	"github.com/scrolland/cuestionario-videos/internal/services"
)

func testAssignment(n int) []AssignedVideo {
	selection := make([]assets.VideoAsset, n)
	for i := range selection {
		selection[i] = assets.VideoAsset{
			Path:      "/videos/e2/clip.mp4",
			FileName:  "clip.mp4",
			Folder:    "e2",
			Category:  prompt.CategoryEntertainment,
			Quality:   assets.QualityLow,
			Synthetic: true,
		}
	}
	return AssignmentFromAssets(selection)
}

func newTestStore(t *testing.T, opts ...StoreOption) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), nil, opts...)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestCreateAssignsTimeBasedID(t *testing.T) {
	fixed := time.UnixMilli(1700000000123)
	store := newTestStore(t, WithClock(func() time.Time { return fixed }))

	record, err := store.Create(Demographics{Gender: "female", Age: "26-35"}, testAssignment(3))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if record.ID != "P1700000000123" {
		t.Errorf("id = %q, want P1700000000123", record.ID)
	}
	if record.Completed {
		t.Error("fresh record must not be completed")
	}
	if len(record.Responses) != 0 {
		t.Errorf("fresh record has %d responses", len(record.Responses))
	}
}

func TestCreateDetectsIDCollision(t *testing.T) {
	fixed := time.UnixMilli(1700000000123)
	store := newTestStore(t, WithClock(func() time.Time { return fixed }))

	if _, err := store.Create(Demographics{}, testAssignment(1)); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := store.Create(Demographics{}, testAssignment(1))
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestAppendResponseRoundTrip(t *testing.T) {
	store := newTestStore(t)
	record, err := store.Create(Demographics{Gender: "male", Age: "18-25"}, testAssignment(2))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	response := Response{
		VideoIndex:       0,
		VideoPath:        "/videos/e2/clip.mp4",
		Category:         "entertainment",
		Quality:          "low",
		IsFake:           true,
		Rating:           7,
		FakeCause:        "unnatural blinking",
		ResponseTimeSecs: 4.2,
	}
	if _, err := store.AppendResponse(record.ID, response); err != nil {
		t.Fatalf("AppendResponse: %v", err)
	}

	loaded, err := store.Get(record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(loaded.Responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(loaded.Responses))
	}
	got := loaded.Responses[0]
	if got.Rating != 7 || got.FakeCause != "unnatural blinking" || !got.IsFake {
		t.Errorf("response round-trip mismatch: %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("append must stamp the response time")
	}
}

func TestAppendResponseOverwritesMismatchedTags(t *testing.T) {
	store := newTestStore(t)
	record, err := store.Create(Demographics{}, testAssignment(1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A buggy client contradicts the assignment on every tag.
	_, err = store.AppendResponse(record.ID, Response{
		VideoIndex: 0,
		VideoPath:  "/videos/reals/other.mp4",
		Category:   "informational",
		Quality:    "high",
		IsFake:     false,
		IsObvious:  true,
		Rating:     5,
	})
	if err != nil {
		t.Fatalf("AppendResponse: %v", err)
	}

	loaded, err := store.Get(record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got := loaded.Responses[0]
	want := record.Assignment[0]
	if got.VideoPath != want.Path || got.Category != want.Category || got.Quality != want.Quality {
		t.Errorf("stored tags %+v do not match assignment %+v", got, want)
	}
	if got.IsFake != want.IsFake || got.IsObvious != want.IsObvious {
		t.Errorf("stored fake flags %v/%v, want assignment's %v/%v",
			got.IsFake, got.IsObvious, want.IsFake, want.IsObvious)
	}
	if got.Rating != 5 {
		t.Errorf("rating = %d, want the client's 5", got.Rating)
	}
}

func TestAppendResponseUnknownParticipant(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AppendResponse("P404", Response{VideoIndex: 0})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendResponseRejectsBadIndex(t *testing.T) {
	store := newTestStore(t)
	record, err := store.Create(Demographics{}, testAssignment(2))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = store.AppendResponse(record.ID, Response{VideoIndex: 5})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for out-of-range index, got %v", err)
	}
}

func TestAppendResponseRejectsOverflow(t *testing.T) {
	store := newTestStore(t)
	record, err := store.Create(Demographics{}, testAssignment(1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.AppendResponse(record.ID, Response{VideoIndex: 0}); err != nil {
		t.Fatalf("first append: %v", err)
	}
	_, err = store.AppendResponse(record.ID, Response{VideoIndex: 0})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation when assignment is fully answered, got %v", err)
	}
}

func TestMarkCompletedStampsTime(t *testing.T) {
	store := newTestStore(t)
	record, err := store.Create(Demographics{}, testAssignment(1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := store.MarkCompleted(record.ID)
	if err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if !updated.Completed {
		t.Error("record not marked completed")
	}
	if updated.CompletedAt == nil || updated.CompletedAt.IsZero() {
		t.Error("completion timestamp missing")
	}
}

func TestConcurrentAppendsAreSerialized(t *testing.T) {
	store := newTestStore(t)
	record, err := store.Create(Demographics{}, testAssignment(20))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			if _, err := store.AppendResponse(record.ID, Response{VideoIndex: index}); err != nil {
				t.Errorf("append %d: %v", index, err)
			}
		}(i)
	}
	wg.Wait()

	loaded, err := store.Get(record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(loaded.Responses) != 20 {
		t.Fatalf("responses = %d, want 20 (lost update)", len(loaded.Responses))
	}
}

func TestListOrdersByID(t *testing.T) {
	var tick int64 = 1700000000000
	store := newTestStore(t, WithClock(func() time.Time {
		tick++
		return time.UnixMilli(tick)
	}))

	for i := 0; i < 3; i++ {
		if _, err := store.Create(Demographics{}, testAssignment(1)); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	records, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i-1].ID >= records[i].ID {
			t.Errorf("records out of order: %s before %s", records[i-1].ID, records[i].ID)
		}
	}
}
