package importer

import (
	"alcyxob/shaper/internal/repository"
	"alcyxob/shaper/internal/storage"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	objectKeyPrefix    = "imports/"
	maxLineBytes       = 1 << 20
	defaultProgressRow = 100
)

var ErrInvalidRequest = errors.New("invalid import request")

type RunnerConfig struct {
	// ProgressEvery is how many rows pass between status writes.
	ProgressEvery   int
	UploadURLExpiry time.Duration
}

// UploadTicket tells an admin where to PUT a dataset before starting an import.
type UploadTicket struct {
	ObjectKey   string    `json:"objectKey"`
	UploadURL   string    `json:"uploadUrl"`
	ContentType string    `json:"contentType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type StartRequest struct {
	Kind      Kind
	ObjectKey string
	Source    string // defaults to the object's base name
	StartedBy primitive.ObjectID
}

// Runner executes import jobs in the background and records their progress.
type Runner struct {
	baseCtx   context.Context
	store     Store
	files     storage.FileStorage
	exercises repository.ExerciseRepository
	cfg       RunnerConfig
	logger    *slog.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewRunner ties background jobs to baseCtx, not to the request that started them.
func NewRunner(baseCtx context.Context, store Store, files storage.FileStorage, exercises repository.ExerciseRepository, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = defaultProgressRow
	}
	if cfg.UploadURLExpiry <= 0 {
		cfg.UploadURLExpiry = storage.DefaultPresignedURLExpiry
	}
	return &Runner{
		baseCtx:   baseCtx,
		store:     store,
		files:     files,
		exercises: exercises,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// RequestUploadURL reserves a fresh object key and presigns a PUT for it.
func (r *Runner) RequestUploadURL(ctx context.Context, kind Kind) (*UploadTicket, error) {
	if kind != KindExercises {
		return nil, fmt.Errorf("%w: unsupported kind %q", ErrInvalidRequest, kind)
	}
	key := objectKeyPrefix + string(kind) + "/" + uuid.NewString() + ".jsonl"
	const contentType = "application/x-ndjson"

	url, err := r.files.GeneratePresignedUploadURL(ctx, key, contentType, r.cfg.UploadURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return &UploadTicket{
		ObjectKey:   key,
		UploadURL:   url,
		ContentType: contentType,
		ExpiresAt:   r.now().UTC().Add(r.cfg.UploadURLExpiry),
	}, nil
}

// Start records a pending job and runs it in a new goroutine.
func (r *Runner) Start(ctx context.Context, req StartRequest) (*Job, error) {
	if req.Kind == "" {
		req.Kind = KindExercises
	}
	if req.Kind != KindExercises {
		return nil, fmt.Errorf("%w: unsupported kind %q", ErrInvalidRequest, req.Kind)
	}
	if !strings.HasPrefix(req.ObjectKey, objectKeyPrefix) || strings.Contains(req.ObjectKey, "..") {
		return nil, fmt.Errorf("%w: object key must come from an upload ticket", ErrInvalidRequest)
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = strings.TrimSuffix(path.Base(req.ObjectKey), path.Ext(req.ObjectKey))
	}

	now := r.now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		Kind:      req.Kind,
		Source:    source,
		ObjectKey: req.ObjectKey,
		Status:    StatusPending,
		StartedBy: req.StartedBy.Hex(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Save(ctx, job); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "import job queued",
		"module", "importer",
		"operation", "start",
		"job_id", job.ID,
		"object_key", job.ObjectKey,
	)

	snapshot := *job
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(job)
	}()
	return &snapshot, nil
}

func (r *Runner) Get(ctx context.Context, id string) (*Job, error) {
	return r.store.Get(ctx, id)
}

func (r *Runner) ListRecent(ctx context.Context, limit int64) ([]Job, error) {
	return r.store.ListRecent(ctx, limit)
}

// Wait blocks until every started job has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(job *Job) {
	ctx := r.baseCtx
	started := r.now().UTC()
	job.Status = StatusRunning
	job.StartedAt = &started
	r.save(job)

	err := r.importExercises(ctx, job)

	finished := r.now().UTC()
	job.FinishedAt = &finished
	outcome := "success"
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		outcome = "failure"
	} else {
		job.Status = StatusCompleted
		job.Total = job.Processed
	}
	r.save(job)

	if err == nil {
		r.removeDataset(job)
	}

	r.logger.Info("import job finished",
		"module", "importer",
		"operation", "run",
		"outcome", outcome,
		"job_id", job.ID,
		"processed", job.Processed,
		"inserted", job.Inserted,
		"updated", job.Updated,
		"failed", job.Failed,
		"duration", finished.Sub(started),
		"error", job.Error,
	)
}

func (r *Runner) importExercises(ctx context.Context, job *Job) error {
	body, err := r.files.OpenObject(ctx, job.ObjectKey)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer body.Close()

	authorID, _ := primitive.ObjectIDFromHex(job.StartedBy)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("import interrupted: %w", err)
		}
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		job.Processed++

		exercise, err := ParseExerciseLine(line, job.Source, authorID)
		if err != nil {
			job.recordRowError(lineNo, err)
		} else if inserted, err := r.exercises.UpsertBySource(ctx, exercise); err != nil {
			job.recordRowError(lineNo, err)
		} else if inserted {
			job.Inserted++
		} else {
			job.Updated++
		}

		if job.Processed%r.cfg.ProgressEvery == 0 {
			r.save(job)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read dataset: %w", err)
	}
	return nil
}

// removeDataset drops the uploaded object once its rows are in the library.
func (r *Runner) removeDataset(job *Job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.baseCtx), 10*time.Second)
	defer cancel()
	if err := r.files.DeleteObject(ctx, job.ObjectKey); err != nil {
		r.logger.Warn("could not remove imported dataset",
			"module", "importer",
			"operation", "remove_dataset",
			"job_id", job.ID,
			"object_key", job.ObjectKey,
			"error", err,
		)
	}
}

// save writes progress even after baseCtx is cancelled so the final state lands.
func (r *Runner) save(job *Job) {
	job.UpdatedAt = r.now().UTC()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.baseCtx), 5*time.Second)
	defer cancel()
	if err := r.store.Save(ctx, job); err != nil {
		r.logger.Error("could not persist import job status",
			"module", "importer",
			"operation", "save_status",
			"outcome", "failure",
			"job_id", job.ID,
			"error", err,
		)
	}
}
