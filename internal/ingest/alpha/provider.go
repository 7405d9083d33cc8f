package alpha

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

// Source names this provider in import logs.
const Source = "alpha"

// Store is the storage surface the importer needs.
type Store interface {
	FindExerciseClassByTitle(ctx context.Context, userID int64, title string) (models.ExerciseClass, bool, error)
	InsertExerciseClass(ctx context.Context, userID int64, in models.NewExerciseClass) (models.ExerciseClass, error)
	WorkoutSessionExists(ctx context.Context, userID int64, title string, startedOn time.Time) (bool, error)
	SaveWorkoutSession(ctx context.Context, rec models.SessionRecord) (models.SaveResult, error)
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	UpdateImportLog(ctx context.Context, id int64, log storage.ImportLog) error
}

var _ Store = (*storage.DB)(nil)

// Provider processes Alpha Progression CSV exports.
type Provider struct {
	db  Store
	log *slog.Logger
	now func() time.Time
}

// NewProvider creates a new Alpha Progression ingest provider.
func NewProvider(db Store, log *slog.Logger) *Provider {
	return &Provider{db: db, log: log, now: time.Now}
}

// Ingest parses a CSV export and saves every session the user does not
// already have as workout history. Each session is its own transaction, so a
// failure stops the import but keeps sessions saved before it. With dryRun
// nothing is written and the counts describe what would be.
func (p *Provider) Ingest(ctx context.Context, r io.Reader, userID int64, dryRun bool) (*ingest.Result, error) {
	start := p.now()
	sessions, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}

	result := &ingest.Result{SessionsReceived: len(sessions), DryRun: dryRun}
	for _, s := range sessions {
		result.SetsReceived += s.SetCount()
	}

	var logID int64
	if !dryRun {
		logID, err = p.db.InsertImportLog(ctx, storage.ImportLog{
			UserID:           userID,
			CreatedAt:        start,
			Source:           Source,
			Status:           "running",
			SessionsReceived: result.SessionsReceived,
		})
		if err != nil {
			return nil, fmt.Errorf("starting import log: %w", err)
		}
	}

	importErr := p.importSessions(ctx, sessions, userID, dryRun, result)

	if !dryRun {
		entry := storage.ImportLog{
			Status:           "success",
			SessionsReceived: result.SessionsReceived,
			SessionsInserted: result.SessionsInserted,
			SessionsSkipped:  result.SessionsSkipped,
			SetsInserted:     result.SetsInserted,
		}
		ms := p.now().Sub(start).Milliseconds()
		entry.DurationMs = &ms
		if importErr != nil {
			msg := importErr.Error()
			entry.Status = "error"
			entry.ErrorMessage = &msg
		}
		if err := p.db.UpdateImportLog(ctx, logID, entry); err != nil {
			p.log.Warn("failed to update import log", "id", logID, "error", err)
		}
	}
	if importErr != nil {
		return result, importErr
	}

	p.log.Info("alpha import finished",
		"user_id", userID,
		"dry_run", dryRun,
		"sessions_received", result.SessionsReceived,
		"sessions_inserted", result.SessionsInserted,
		"sessions_skipped", result.SessionsSkipped,
		"sets_inserted", result.SetsInserted,
	)
	return result, nil
}

func (p *Provider) importSessions(ctx context.Context, sessions []Session, userID int64, dryRun bool, result *ingest.Result) error {
	classes := make(map[string]int64)
	for _, s := range sessions {
		exists, err := p.db.WorkoutSessionExists(ctx, userID, s.Name, s.Date)
		if err != nil {
			return fmt.Errorf("checking session %q: %w", s.Name, err)
		}
		if exists {
			result.SessionsSkipped++
			continue
		}
		if dryRun {
			result.SessionsInserted++
			result.SetsInserted += s.SetCount()
			continue
		}

		rec := models.SessionRecord{
			UserID:    userID,
			Title:     s.Name,
			StartedOn: s.Date,
			Duration:  s.Duration,
		}
		for i, ex := range s.Exercises {
			classID, err := p.classID(ctx, userID, ex, classes, result)
			if err != nil {
				return err
			}
			rec.Exercises = append(rec.Exercises, toExerciseRecord(fmt.Sprintf("%d", i+1), classID, ex))
		}

		saved, err := p.db.SaveWorkoutSession(ctx, rec)
		if err != nil {
			return fmt.Errorf("saving session %q from %s: %w", s.Name, s.Date.Format("2006-01-02"), err)
		}
		result.SessionsInserted++
		result.SetsInserted += saved.SetCount
	}
	return nil
}

// classID finds the user's exercise class for ex by title, creating it when
// it does not exist yet.
func (p *Provider) classID(ctx context.Context, userID int64, ex Exercise, cache map[string]int64, result *ingest.Result) (int64, error) {
	key := strings.ToLower(ex.Name)
	if id, ok := cache[key]; ok {
		return id, nil
	}
	c, found, err := p.db.FindExerciseClassByTitle(ctx, userID, ex.Name)
	if err != nil {
		return 0, fmt.Errorf("finding exercise class %q: %w", ex.Name, err)
	}
	if !found {
		c, err = p.db.InsertExerciseClass(ctx, userID, models.NewExerciseClass{
			Title:       ex.Name,
			Type:        models.ExerciseTypeResistance,
			EquipmentID: equipmentID(ex.Equipment),
		})
		if err != nil {
			return 0, fmt.Errorf("creating exercise class %q: %w", ex.Name, err)
		}
		result.ExerciseClassesCreated++
		p.log.Debug("created exercise class", "title", c.Title, "equipment", c.Equipment)
	}
	cache[key] = c.ID
	return c.ID, nil
}

func toExerciseRecord(runtimeID string, classID int64, ex Exercise) models.ExerciseRecord {
	rec := models.ExerciseRecord{RuntimeID: runtimeID, ExerciseClassID: classID}
	for _, set := range ex.Sets {
		setType := models.SetTypeResistance
		if set.IsWarmup {
			setType = models.SetTypeWarmup
		}
		rec.Sets = append(rec.Sets, models.SetRecord{
			Reps:      set.Reps,
			Completed: true,
			Type:      setType,
			Weight:    set.WeightKg,
		})
	}
	return rec
}

// equipmentID maps an Alpha Progression equipment label to a seeded
// equipment id, falling back to Other.
func equipmentID(label string) int64 {
	switch l := strings.ToLower(strings.TrimSpace(label)); {
	case strings.HasPrefix(l, "smith"):
		return models.EquipmentSmithMachine
	case strings.HasPrefix(l, "barbell"), l == "ez bar", l == "trap bar":
		return models.EquipmentBarbell
	case strings.HasPrefix(l, "dumbbell"):
		return models.EquipmentDumbbell
	case strings.HasPrefix(l, "machine"):
		return models.EquipmentMachine
	case strings.HasPrefix(l, "cable"):
		return models.EquipmentCable
	case strings.HasPrefix(l, "bodyweight"):
		return models.EquipmentBodyweight
	case strings.HasPrefix(l, "kettlebell"):
		return models.EquipmentKettlebell
	case strings.Contains(l, "band"):
		return models.EquipmentBand
	}
	return models.EquipmentOther
}
