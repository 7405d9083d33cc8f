// Package session holds the in-memory state of a workout being performed
// and flushes it to the store when the user saves.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/liftlog/internal/models"
)

var (
	// ErrNotActive is returned by every mutation issued while no workout is running.
	ErrNotActive = errors.New("no active workout")

	// ErrAlreadyActive is returned by Start while a workout is running.
	ErrAlreadyActive = errors.New("workout already active")
)

// DefaultTitle names a saved workout when the caller gives no title.
const DefaultTitle = "Workout"

// Saver persists a completed workout atomically.
type Saver interface {
	SaveWorkoutSession(ctx context.Context, rec models.SessionRecord) (models.SaveResult, error)
}

// ActiveSet is one set of an exercise in progress.
type ActiveSet struct {
	Reps        int            `json:"reps"`
	Weight      float64        `json:"weight"`
	RestSeconds int            `json:"rest_seconds"`
	Completed   bool           `json:"completed"`
	Type        models.SetType `json:"set_type,omitempty"`
}

// ActiveExercise is an exercise class being performed, keyed by a runtime id
// until it is saved.
type ActiveExercise struct {
	RuntimeID string                  `json:"runtime_id"`
	Class     models.ExerciseClassRef `json:"exercise_class"`
	Sets      []ActiveSet             `json:"sets"`
}

// State is a point-in-time copy of a manager's session.
type State struct {
	Active    bool             `json:"active"`
	StartTime *time.Time       `json:"start_time,omitempty"`
	Exercises []ActiveExercise `json:"exercises"`

	// ElapsedSeconds is read under the same lock as the rest of the state.
	ElapsedSeconds int64 `json:"elapsed_seconds"`
}

// SetDefaults seeds a new set. Type defaults to RESISTANCE when empty.
type SetDefaults struct {
	Reps        int            `json:"reps"`
	Weight      float64        `json:"weight"`
	RestSeconds int            `json:"rest_seconds"`
	Type        models.SetType `json:"set_type,omitempty"`
}

// SetUpdate changes the non-nil fields of a set.
type SetUpdate struct {
	Reps        *int            `json:"reps,omitempty"`
	Weight      *float64        `json:"weight,omitempty"`
	RestSeconds *int            `json:"rest_seconds,omitempty"`
	Completed   *bool           `json:"completed,omitempty"`
	Type        *models.SetType `json:"set_type,omitempty"`
}

// Template seeds one exercise when starting from a saved workout.
type Template struct {
	Class models.ExerciseClassRef
	Sets  []models.SetTarget
}

// Manager owns the active workout of one user. Idle managers reject every
// mutation except Start. Methods are safe for concurrent use; callers still
// treat one manager as owned by a single user.
type Manager struct {
	userID int64
	saver  Saver
	now    func() time.Time
	newID  func() string
	log    *slog.Logger

	mu        sync.Mutex
	active    bool
	startTime time.Time
	exercises []ActiveExercise
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger used for save outcomes.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithIDGenerator replaces the runtime id source.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

// NewManager returns an idle manager for userID that saves through saver.
func NewManager(userID int64, saver Saver, opts ...Option) *Manager {
	m := &Manager{
		userID: userID,
		saver:  saver,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// UserID returns the owner of the session.
func (m *Manager) UserID() int64 {
	return m.userID
}

// IsActive reports whether a workout is running.
func (m *Manager) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Start begins an empty workout.
func (m *Manager) Start() error {
	return m.StartFrom(nil)
}

// StartFrom begins a workout seeded with the given exercises and their
// template sets, in order.
func (m *Manager) StartFrom(templates []Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return ErrAlreadyActive
	}
	m.active = true
	m.startTime = m.now()
	m.exercises = nil
	for _, t := range templates {
		ex := ActiveExercise{RuntimeID: m.newID(), Class: t.Class, Sets: make([]ActiveSet, 0, len(t.Sets))}
		for _, target := range t.Sets {
			ex.Sets = append(ex.Sets, ActiveSet{
				Reps:        target.Reps,
				Weight:      target.Weight,
				RestSeconds: target.RestSeconds,
				Type:        models.SetTypeResistance,
			})
		}
		m.exercises = append(m.exercises, ex)
	}
	return nil
}

// AddExercise appends an exercise with no sets and returns its runtime id.
func (m *Manager) AddExercise(class models.ExerciseClassRef) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return "", ErrNotActive
	}
	id := m.newID()
	m.exercises = append(m.exercises, ActiveExercise{RuntimeID: id, Class: class, Sets: []ActiveSet{}})
	return id, nil
}

// RemoveExercise drops an exercise and its sets. An unknown id is a no-op.
func (m *Manager) RemoveExercise(runtimeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return ErrNotActive
	}
	if i := m.indexOf(runtimeID); i >= 0 {
		m.exercises = append(m.exercises[:i], m.exercises[i+1:]...)
	}
	return nil
}

// MoveExercise moves an exercise to position to (zero-based), shifting the
// others.
func (m *Manager) MoveExercise(runtimeID string, to int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return ErrNotActive
	}
	from := m.indexOf(runtimeID)
	if from < 0 {
		return fmt.Errorf("exercise %q: %w", runtimeID, models.ErrInvariant)
	}
	if to < 0 || to >= len(m.exercises) {
		return fmt.Errorf("position %d of %d: %w", to, len(m.exercises), models.ErrInvariant)
	}
	ex := m.exercises[from]
	m.exercises = append(m.exercises[:from], m.exercises[from+1:]...)
	m.exercises = append(m.exercises[:to], append([]ActiveExercise{ex}, m.exercises[to:]...)...)
	return nil
}

// AddSet appends a set to an exercise and returns its index. With nil
// defaults the last set's reps, weight, rest and type are repeated, or a zero
// set is added when there is none.
func (m *Manager) AddSet(runtimeID string, defaults *SetDefaults) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ex, err := m.exercise(runtimeID)
	if err != nil {
		return 0, err
	}
	var set ActiveSet
	switch {
	case defaults != nil:
		set = ActiveSet{Reps: defaults.Reps, Weight: defaults.Weight, RestSeconds: defaults.RestSeconds, Type: defaults.Type}
	case len(ex.Sets) > 0:
		last := ex.Sets[len(ex.Sets)-1]
		set = ActiveSet{Reps: last.Reps, Weight: last.Weight, RestSeconds: last.RestSeconds, Type: last.Type}
	}
	if set.Type == "" {
		set.Type = models.SetTypeResistance
	}
	ex.Sets = append(ex.Sets, set)
	return len(ex.Sets) - 1, nil
}

// UpdateSet applies the non-nil fields of u to one set.
func (m *Manager) UpdateSet(runtimeID string, index int, u SetUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, err := m.set(runtimeID, index)
	if err != nil {
		return err
	}
	if u.Reps != nil {
		set.Reps = *u.Reps
	}
	if u.Weight != nil {
		set.Weight = *u.Weight
	}
	if u.RestSeconds != nil {
		set.RestSeconds = *u.RestSeconds
	}
	if u.Completed != nil {
		set.Completed = *u.Completed
	}
	if u.Type != nil {
		set.Type = *u.Type
	}
	return nil
}

// RemoveSet deletes one set, keeping the others in order.
func (m *Manager) RemoveSet(runtimeID string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.set(runtimeID, index); err != nil {
		return err
	}
	ex := &m.exercises[m.indexOf(runtimeID)]
	ex.Sets = append(ex.Sets[:index], ex.Sets[index+1:]...)
	return nil
}

// ToggleSetCompletion flips a set's completed flag and returns the new value.
func (m *Manager) ToggleSetCompletion(runtimeID string, index int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, err := m.set(runtimeID, index)
	if err != nil {
		return false, err
	}
	set.Completed = !set.Completed
	return set.Completed, nil
}

// End discards the workout without saving it.
func (m *Manager) End() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return ErrNotActive
	}
	m.reset()
	return nil
}

// Save persists the workout and returns the manager to idle. On failure the
// session is left exactly as it was so the caller can retry.
func (m *Manager) Save(ctx context.Context, title string) (models.SaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return models.SaveResult{}, ErrNotActive
	}
	rec := m.record(title)
	res, err := m.saver.SaveWorkoutSession(ctx, rec)
	if err != nil {
		m.log.Error("saving workout failed", "user_id", m.userID, "exercises", len(rec.Exercises), "error", err)
		return models.SaveResult{}, err
	}
	m.log.Info("workout saved",
		"user_id", m.userID,
		"workout_session_id", res.WorkoutSessionID,
		"exercises", len(res.ExerciseSessionIDs),
		"sets", res.SetCount,
		"duration", rec.Duration)
	m.reset()
	return res, nil
}

// Snapshot returns a deep copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := State{Active: m.active, Exercises: make([]ActiveExercise, len(m.exercises))}
	if m.active {
		t := m.startTime
		st.StartTime = &t
		st.ElapsedSeconds = int64(m.elapsed().Seconds())
	}
	for i, ex := range m.exercises {
		st.Exercises[i] = ActiveExercise{RuntimeID: ex.RuntimeID, Class: ex.Class, Sets: append([]ActiveSet{}, ex.Sets...)}
	}
	return st
}

// Elapsed returns how long the workout has been running, or zero when idle.
func (m *Manager) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return 0
	}
	return m.elapsed()
}

// elapsed is the running time, never negative. Caller holds mu.
func (m *Manager) elapsed() time.Duration {
	if d := m.now().Sub(m.startTime); d > 0 {
		return d
	}
	return 0
}

// record builds the save input. Caller holds mu.
func (m *Manager) record(title string) models.SessionRecord {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	elapsed := m.now().Sub(m.startTime).Truncate(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	rec := models.SessionRecord{
		UserID:    m.userID,
		Title:     title,
		StartedOn: m.startTime,
		Duration:  elapsed,
		Exercises: make([]models.ExerciseRecord, 0, len(m.exercises)),
	}
	for _, ex := range m.exercises {
		er := models.ExerciseRecord{RuntimeID: ex.RuntimeID, ExerciseClassID: ex.Class.ID, Sets: make([]models.SetRecord, 0, len(ex.Sets))}
		for _, s := range ex.Sets {
			er.Sets = append(er.Sets, models.SetRecord{
				Reps:        s.Reps,
				RestSeconds: s.RestSeconds,
				Completed:   s.Completed,
				Type:        s.Type,
				Weight:      s.Weight,
			})
		}
		rec.Exercises = append(rec.Exercises, er)
	}
	return rec
}

func (m *Manager) reset() {
	m.active = false
	m.startTime = time.Time{}
	m.exercises = nil
}

func (m *Manager) indexOf(runtimeID string) int {
	for i := range m.exercises {
		if m.exercises[i].RuntimeID == runtimeID {
			return i
		}
	}
	return -1
}

func (m *Manager) exercise(runtimeID string) (*ActiveExercise, error) {
	if !m.active {
		return nil, ErrNotActive
	}
	i := m.indexOf(runtimeID)
	if i < 0 {
		return nil, fmt.Errorf("exercise %q: %w", runtimeID, models.ErrInvariant)
	}
	return &m.exercises[i], nil
}

func (m *Manager) set(runtimeID string, index int) (*ActiveSet, error) {
	ex, err := m.exercise(runtimeID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(ex.Sets) {
		return nil, fmt.Errorf("set %d of exercise %q: %w", index, runtimeID, models.ErrInvariant)
	}
	return &ex.Sets[index], nil
}
