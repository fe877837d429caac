package participants

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/scrolland/cuestionario-videos/internal/assets"
	"github.com/scrolland/cuestionario-videos/internal/logging"
	"github.com/scrolland/cuestionario-videos/internal/services"
)

// ErrDuplicateID reports a participant id collision at creation time.
var ErrDuplicateID = errors.New("participant id already exists")

// Demographics are the fields collected at session start.
type Demographics struct {
	Gender string `json:"gender"`
	Age    string `json:"age"`
}

// AssignedVideo is one entry in a participant's fixed assignment. The
// asset tags are denormalized so records stay meaningful even if the
// content tree is reorganized later.
type AssignedVideo struct {
	Index       int    `json:"index"`
	Path        string `json:"path"`
	FileName    string `json:"file_name"`
	Folder      string `json:"folder"`
	Category    string `json:"category"`
	Quality     string `json:"quality"`
	IsFake      bool   `json:"is_fake"`
	IsObvious   bool   `json:"is_obvious_fake"`
}

// Response is one answered video. Immutable once appended.
type Response struct {
	VideoIndex       int       `json:"video_index"`
	VideoPath        string    `json:"video_path"`
	Category         string    `json:"category"`
	Quality          string    `json:"quality"`
	IsFake           bool      `json:"is_fake"`
	IsObvious        bool      `json:"is_obvious_fake"`
	Rating           int       `json:"rating"`
	FakeCause        string    `json:"fake_cause,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	ResponseTimeSecs float64   `json:"response_time_secs"`
}

// Record is the durable per-participant document.
type Record struct {
	ID          string          `json:"id"`
	Gender      string          `json:"gender"`
	Age         string          `json:"age"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Completed   bool            `json:"completed"`
	Assignment  []AssignedVideo `json:"videos"`
	Responses   []Response      `json:"responses"`
}

// AssignmentFromAssets converts a selector result into the persisted
// assignment form, preserving display order.
func AssignmentFromAssets(selection []assets.VideoAsset) []AssignedVideo {
	assignment := make([]AssignedVideo, len(selection))
	for i, asset := range selection {
		assignment[i] = AssignedVideo{
			Index:     i,
			Path:      asset.Path,
			FileName:  asset.FileName,
			Folder:    asset.Folder,
			Category:  string(asset.Category),
			Quality:   string(asset.Quality),
			IsFake:    asset.Synthetic,
			IsObvious: asset.ObviousFake,
		}
	}
	return assignment
}

// Store keeps one JSON document per participant under a data
// directory. Every mutation is a wholesale read-modify-write guarded
// by a per-id mutex, so concurrent appends for the same participant
// are serialized inside the store.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// StoreOption adjusts store behaviour, mainly for tests.
type StoreOption func(*Store)

// WithClock overrides the wall clock used for ids and timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore opens (creating if needed) the participant directory.
func NewStore(dir string, logger *slog.Logger, opts ...StoreOption) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("participant directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create participant directory: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	store := &Store{
		dir:    dir,
		logger: logging.NewComponentLogger(logger, "participants"),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Create allocates a time-based id, persists a fresh record with the
// given assignment, and returns it.
func (s *Store) Create(demographics Demographics, assignment []AssignedVideo) (*Record, error) {
	now := s.now()
	id := "P" + strconv.FormatInt(now.UnixMilli(), 10)

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(s.recordPath(id)); err == nil {
		return nil, fmt.Errorf("create participant %s: %w", id, ErrDuplicateID)
	}

	record := &Record{
		ID:         id,
		Gender:     demographics.Gender,
		Age:        demographics.Age,
		StartedAt:  now,
		Assignment: assignment,
		Responses:  []Response{},
	}
	if err := s.write(record); err != nil {
		return nil, err
	}
	s.logger.Info("participant created",
		logging.String(logging.FieldParticipant, id),
		logging.Int("assignment_size", len(assignment)))
	return record, nil
}

// Get reads one record.
func (s *Store) Get(id string) (*Record, error) {
	return s.read(id)
}

// AppendResponse loads the record, appends the response, and persists
// the whole document back.
func (s *Store) AppendResponse(id string, response Response) (*Record, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	record, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if response.VideoIndex < 0 || response.VideoIndex >= len(record.Assignment) {
		return nil, services.Wrap(services.ErrValidation, "participants", "append_response",
			fmt.Sprintf("video index %d outside assignment of %d", response.VideoIndex, len(record.Assignment)), nil)
	}
	if len(record.Responses) >= len(record.Assignment) {
		return nil, services.Wrap(services.ErrValidation, "participants", "append_response",
			"assignment already fully answered", nil)
	}

	// The assignment is the source of truth for what was shown; never
	// trust client-supplied tags.
	assigned := record.Assignment[response.VideoIndex]
	response.VideoPath = assigned.Path
	response.Category = assigned.Category
	response.Quality = assigned.Quality
	response.IsFake = assigned.IsFake
	response.IsObvious = assigned.IsObvious

	if response.Timestamp.IsZero() {
		response.Timestamp = s.now()
	}

	record.Responses = append(record.Responses, response)
	if err := s.write(record); err != nil {
		return nil, err
	}
	return record, nil
}

// MarkCompleted flips the completion flag and stamps the time.
func (s *Store) MarkCompleted(id string) (*Record, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	record, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if !record.Completed {
		record.Completed = true
		completed := s.now()
		record.CompletedAt = &completed
		if err := s.write(record); err != nil {
			return nil, err
		}
		s.logger.Info("participant completed",
			logging.String(logging.FieldParticipant, id),
			logging.Int("responses", len(record.Responses)))
	}
	return record, nil
}

// List returns every record ordered by id, which sorts oldest first
// because ids embed a millisecond timestamp.
func (s *Store) List() ([]*Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read participant directory: %w", err)
	}

	var records []*Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		record, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			s.logger.Warn("skipping unreadable participant record",
				logging.String("file", name), logging.Error(err))
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) read(id string) (*Record, error) {
	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "participants", "read",
				fmt.Sprintf("participant %s", id), nil)
		}
		return nil, fmt.Errorf("read participant %s: %w", id, err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode participant %s: %w", id, err)
	}
	return &record, nil
}

func (s *Store) write(record *Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode participant %s: %w", record.ID, err)
	}
	path := s.recordPath(record.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write participant %s: %w", record.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persist participant %s: %w", record.ID, err)
	}
	return nil
}
