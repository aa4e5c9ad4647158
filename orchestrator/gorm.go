package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/taskflow/types"
)

// runRecord is the persisted shape of a run aggregate.
type runRecord struct {
	ID       string `gorm:"primaryKey;size:36"`
	Name     string `gorm:"size:255"`
	TaskName string `gorm:"size:255;index"`

	StateID   string `gorm:"size:36"`
	StateType string `gorm:"size:32;index"`
	StateName string `gorm:"size:64"`

	RunCount int

	FlowRunID       *string `gorm:"size:36;index"`
	FlowRunRunCount int

	// TaskInputs is the JSON-encoded input linkage map.
	TaskInputs string

	StartTime         *time.Time
	EndTime           *time.Time
	ExpectedStartTime *time.Time
	TotalRunTimeNS    int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (runRecord) TableName() string { return "task_runs" }

// stateRecord is one persisted entry of a run's state history. Position
// orders the history; the original Err of Failed/Crashed states is not
// persisted, only its message survives a round trip.
type stateRecord struct {
	ID       string `gorm:"primaryKey;size:36"`
	RunID    string `gorm:"size:36;index:idx_state_run_position,priority:1"`
	Position int    `gorm:"index:idx_state_run_position,priority:2"`

	Type      string `gorm:"size:32"`
	Name      string `gorm:"size:64"`
	Message   string
	Timestamp time.Time

	ResultBackend    string `gorm:"size:64"`
	ResultStorageKey string

	FlowRunID *string `gorm:"size:36"`
	CacheKey  string
}

func (stateRecord) TableName() string { return "task_run_states" }

// GormClient is a Client backed by a GORM database. All writes for a run go
// through one transaction per proposal, so the per-run ordering guarantee
// holds as long as the database serializes conflicting transactions.
type GormClient struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormClient migrates the run tables and returns a durable client.
func NewGormClient(db *gorm.DB, logger *zap.Logger) (*GormClient, error) {
	if db == nil {
		return nil, types.NewConfigError("db cannot be nil")
	}
	if err := db.AutoMigrate(&runRecord{}, &stateRecord{}); err != nil {
		return nil, fmt.Errorf("migrate run tables: %w", err)
	}
	return &GormClient{
		db:     db,
		logger: logger.With(zap.String("component", "orchestrator_gorm")),
	}, nil
}

// CreateRun implements Client.
func (c *GormClient) CreateRun(ctx context.Context, spec RunSpec) (*types.Run, error) {
	id := spec.RunID
	if id == uuid.Nil {
		id = uuid.New()
	}

	inputs, err := json.Marshal(spec.TaskInputs)
	if err != nil {
		return nil, fmt.Errorf("encode task inputs: %w", err)
	}

	now := time.Now()
	rec := runRecord{
		ID:              id.String(),
		Name:            spec.Name,
		TaskName:        spec.TaskName,
		FlowRunRunCount: spec.FlowRunRunCount,
		TaskInputs:      string(inputs),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if spec.FlowRunID != nil {
		s := spec.FlowRunID.String()
		rec.FlowRunID = &s
	}

	if err := c.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	c.logger.Debug("run created",
		zap.String("run_id", rec.ID),
		zap.String("task", rec.TaskName))
	return runFromRecord(&rec, nil)
}

// ProposeState implements Client.
func (c *GormClient) ProposeState(ctx context.Context, runID uuid.UUID, desired *types.State) (*types.State, error) {
	var accepted *types.State

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec runRecord
		if err := tx.First(&rec, "id = ?", runID.String()).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.NewError(types.ErrInternalError, "unknown run: "+runID.String())
			}
			return fmt.Errorf("load run: %w", err)
		}

		var position int64
		if err := tx.Model(&stateRecord{}).Where("run_id = ?", rec.ID).Count(&position).Error; err != nil {
			return fmt.Errorf("count states: %w", err)
		}

		if !accepts(types.StateType(rec.StateType), position > 0, desired.Type) {
			if position == 0 {
				return types.NewError(types.ErrInvalidTransition,
					"run has no state yet, first proposal must be Pending")
			}
			var currentRec stateRecord
			if err := tx.First(&currentRec, "id = ?", rec.StateID).Error; err != nil {
				return fmt.Errorf("load current state: %w", err)
			}
			current, err := stateFromRecord(&currentRec)
			if err != nil {
				return err
			}
			c.logger.Debug("proposal rejected",
				zap.String("run_id", rec.ID),
				zap.String("current", rec.StateType),
				zap.String("desired", string(desired.Type)))
			accepted = current
			return nil
		}

		st := desired.Clone()
		if st.ID == uuid.Nil {
			st.ID = uuid.New()
		}
		if st.Timestamp.IsZero() {
			st.Timestamp = time.Now()
		}
		st.Details.TaskRunID = runID
		if st.Details.FlowRunID == nil && rec.FlowRunID != nil {
			if flowID, err := uuid.Parse(*rec.FlowRunID); err == nil {
				st.Details.FlowRunID = &flowID
			}
		}

		stRec := stateToRecord(st, rec.ID, int(position))
		if err := tx.Create(stRec).Error; err != nil {
			return fmt.Errorf("append state: %w", err)
		}

		run, err := runFromRecord(&rec, nil)
		if err != nil {
			return err
		}
		apply(run, st, time.Now())
		updated := runToRecord(run)
		updated.TaskInputs = rec.TaskInputs
		updated.CreatedAt = rec.CreatedAt
		if err := tx.Save(updated).Error; err != nil {
			return fmt.Errorf("update run: %w", err)
		}

		accepted = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// ReadRun implements Client.
func (c *GormClient) ReadRun(ctx context.Context, runID uuid.UUID) (*types.Run, error) {
	var rec runRecord
	if err := c.db.WithContext(ctx).First(&rec, "id = ?", runID.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewError(types.ErrInternalError, "unknown run: "+runID.String())
		}
		return nil, fmt.Errorf("load run: %w", err)
	}

	var current *types.State
	if rec.StateID != "" {
		var stRec stateRecord
		if err := c.db.WithContext(ctx).First(&stRec, "id = ?", rec.StateID).Error; err == nil {
			if st, convErr := stateFromRecord(&stRec); convErr == nil {
				current = st
			}
		}
	}
	return runFromRecord(&rec, current)
}

// ReadRunStates implements Client.
func (c *GormClient) ReadRunStates(ctx context.Context, runID uuid.UUID) ([]*types.State, error) {
	var recs []stateRecord
	err := c.db.WithContext(ctx).
		Where("run_id = ?", runID.String()).
		Order("position asc").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load states: %w", err)
	}

	out := make([]*types.State, 0, len(recs))
	for i := range recs {
		st, err := stateFromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func runToRecord(run *types.Run) *runRecord {
	rec := &runRecord{
		ID:                run.ID.String(),
		Name:              run.Name,
		TaskName:          run.TaskName,
		StateID:           run.StateID.String(),
		StateType:         string(run.StateType),
		StateName:         run.StateName,
		RunCount:          run.RunCount,
		FlowRunRunCount:   run.FlowRunRunCount,
		StartTime:         run.StartTime,
		EndTime:           run.EndTime,
		ExpectedStartTime: run.ExpectedStartTime,
		TotalRunTimeNS:    int64(run.TotalRunTime),
		CreatedAt:         run.CreatedAt,
		UpdatedAt:         run.UpdatedAt,
	}
	if run.StateID == uuid.Nil {
		rec.StateID = ""
	}
	if run.FlowRunID != nil {
		s := run.FlowRunID.String()
		rec.FlowRunID = &s
	}
	return rec
}

func runFromRecord(rec *runRecord, current *types.State) (*types.Run, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("parse run id %q: %w", rec.ID, err)
	}

	run := &types.Run{
		ID:                id,
		Name:              rec.Name,
		TaskName:          rec.TaskName,
		StateType:         types.StateType(rec.StateType),
		StateName:         rec.StateName,
		State:             current,
		RunCount:          rec.RunCount,
		FlowRunRunCount:   rec.FlowRunRunCount,
		StartTime:         rec.StartTime,
		EndTime:           rec.EndTime,
		ExpectedStartTime: rec.ExpectedStartTime,
		TotalRunTime:      time.Duration(rec.TotalRunTimeNS),
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
	if rec.StateID != "" {
		stateID, err := uuid.Parse(rec.StateID)
		if err != nil {
			return nil, fmt.Errorf("parse state id %q: %w", rec.StateID, err)
		}
		run.StateID = stateID
	}
	if rec.FlowRunID != nil {
		flowID, err := uuid.Parse(*rec.FlowRunID)
		if err != nil {
			return nil, fmt.Errorf("parse flow run id %q: %w", *rec.FlowRunID, err)
		}
		run.FlowRunID = &flowID
	}
	if rec.TaskInputs != "" {
		if err := json.Unmarshal([]byte(rec.TaskInputs), &run.TaskInputs); err != nil {
			return nil, fmt.Errorf("decode task inputs: %w", err)
		}
	}
	return run, nil
}

func stateToRecord(st *types.State, runID string, position int) *stateRecord {
	rec := &stateRecord{
		ID:        st.ID.String(),
		RunID:     runID,
		Position:  position,
		Type:      string(st.Type),
		Name:      st.Name,
		Message:   st.Message,
		Timestamp: st.Timestamp,
		CacheKey:  st.Details.CacheKey,
	}
	if st.ResultRef != nil {
		rec.ResultBackend = st.ResultRef.Backend
		rec.ResultStorageKey = st.ResultRef.StorageKey
	}
	if st.Details.FlowRunID != nil {
		s := st.Details.FlowRunID.String()
		rec.FlowRunID = &s
	}
	return rec
}

func stateFromRecord(rec *stateRecord) (*types.State, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("parse state id %q: %w", rec.ID, err)
	}
	runID, err := uuid.Parse(rec.RunID)
	if err != nil {
		return nil, fmt.Errorf("parse run id %q: %w", rec.RunID, err)
	}

	st := &types.State{
		ID:        id,
		Type:      types.StateType(rec.Type),
		Name:      rec.Name,
		Message:   rec.Message,
		Timestamp: rec.Timestamp,
		Details: types.StateDetails{
			TaskRunID: runID,
			CacheKey:  rec.CacheKey,
		},
	}
	if rec.ResultStorageKey != "" {
		st.ResultRef = &types.ResultRef{
			Backend:    rec.ResultBackend,
			StorageKey: rec.ResultStorageKey,
		}
	}
	if rec.FlowRunID != nil {
		flowID, err := uuid.Parse(*rec.FlowRunID)
		if err != nil {
			return nil, fmt.Errorf("parse flow run id %q: %w", *rec.FlowRunID, err)
		}
		st.Details.FlowRunID = &flowID
	}
	return st, nil
}
