package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/assetmeta/internal/classifier"
	"github.com/example/assetmeta/internal/config"
	"github.com/example/assetmeta/internal/envelope"
	"github.com/example/assetmeta/internal/features"
	"github.com/example/assetmeta/internal/logging"
	"github.com/example/assetmeta/internal/metadata"
	"github.com/example/assetmeta/internal/repository"
)

// Caller performs one classifier call.
type Caller interface {
	Invoke(ctx context.Context, target classifier.Target, req classifier.Request, creds classifier.Credentials) (classifier.RawResponse, error)
}

// JobRepository defines the persistence operations needed by the worker.
type JobRepository interface {
	SaveLog(ctx context.Context, log *repository.JobLog) error
	FindByJobID(ctx context.Context, jobID string) (*repository.JobLog, error)
	AggregateMetrics(ctx context.Context, successStatus string) (*repository.JobAggregation, error)
}

// Job is one asset processing request from the harness.
type Job struct {
	ID           string            `json:"id"`
	Asset        Asset             `json:"asset"`
	Instructions map[string]string `json:"instructions"`
	OutputPath   string            `json:"output"`
}

// Result summarizes a successful invocation.
type Result struct {
	JobID        string
	Kind         features.Kind
	Features     features.Set
	OutputPath   string
	Skipped      []string
	FeatureCount int
}

// Status values recorded for jobs.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Analysis names sent in the multipart parameter block.
const (
	tagOperation   = "auto-tagging"
	colorOperation = "color-extraction"
)

// Worker runs the classification pipeline for one asset per call. It holds
// no per-job state; concurrent Process calls are independent.
type Worker struct {
	caller     Caller
	defaults   config.Defaults
	serializer metadata.Serializer
	cache      Cache
	repo       JobRepository
	logger     *zap.Logger
	resultTTL  time.Duration
}

// Option customizes the worker.
type Option func(*Worker)

// WithSerializer overrides the metadata serializer.
func WithSerializer(s metadata.Serializer) Option {
	return func(w *Worker) {
		if s != nil {
			w.serializer = s
		}
	}
}

// WithJobStore enables recording job outcomes in the cache and repository.
// Either may be nil.
func WithJobStore(cache Cache, repo JobRepository) Option {
	return func(w *Worker) {
		w.cache = cache
		w.repo = repo
	}
}

// NewWorker constructs a worker. defaults are the process-wide settings that
// per-job instructions are layered over.
func NewWorker(caller Caller, defaults config.Defaults, logger *zap.Logger, opts ...Option) *Worker {
	w := &Worker{
		caller:     caller,
		defaults:   defaults,
		serializer: metadata.JSONSerializer{Indent: "  "},
		logger:     logger.Named("worker"),
		resultTTL:  time.Hour,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Process classifies the job's asset and writes its metadata document. The
// document is only written when every mandatory classifier succeeded.
func (w *Worker) Process(ctx context.Context, job Job) (*Result, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	opLogger := logging.WithOperation(w.logger, "worker.process", job.ID)

	result, err := w.run(ctx, job, opLogger)
	if err != nil {
		w.logFailure(opLogger, err)
		w.record(ctx, job.ID, nil, err)
		return nil, err
	}
	opLogger.Info("metadata written",
		zap.String("kind", string(result.Kind)),
		zap.Int("features", result.FeatureCount),
		zap.String("output", result.OutputPath),
	)
	w.record(ctx, job.ID, result, nil)
	return result, nil
}

func (w *Worker) run(ctx context.Context, job Job, opLogger *zap.Logger) (*Result, error) {
	settings, err := config.Resolve(job.Instructions, w.defaults)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	if job.OutputPath == "" {
		return nil, &ConfigurationError{Err: errors.New("no output location")}
	}

	upload := settings.Kind == features.KindColor || job.Asset.URL == ""
	src, err := loadSource(job.Asset, upload)
	if err != nil {
		return nil, err
	}

	req := classifier.Request{
		AssetURL:    job.Asset.URL,
		Threshold:   settings.Threshold,
		TopN:        settings.TopN,
		Encoding:    classifier.EncodingJSON,
		Asset:       src.data,
		AssetName:   src.name,
		ContentType: src.contentType,
	}
	if upload {
		req.Encoding = classifier.EncodingMultipart
		req.Operation = tagOperation
		if settings.Kind == features.KindColor {
			req.Operation = colorOperation
		}
	}

	outcomes := w.classifyAll(ctx, settings, req, opLogger)
	set, skipped, err := features.Collect(settings.Kind, outcomes)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	skippedIDs := make([]string, 0, len(skipped))
	for _, s := range skipped {
		opLogger.Warn("optional classifier skipped",
			zap.String("classifier_id", s.ClassifierID),
			zap.Error(s.Err),
		)
		skippedIDs = append(skippedIDs, s.ClassifierID)
	}

	tree := metadata.Assemble(set)
	doc, err := w.serializer.Serialize(tree)
	if err != nil {
		return nil, fmt.Errorf("serialize metadata: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outputPath := resolveOutputPath(job.OutputPath, w.serializer.Extension())
	if err := writeFileAtomic(outputPath, doc); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	return &Result{
		JobID:        job.ID,
		Kind:         settings.Kind,
		Features:     set,
		OutputPath:   outputPath,
		Skipped:      skippedIDs,
		FeatureCount: set.Len(),
	}, nil
}

// classifyAll calls every target concurrently. Outcomes are stored by target
// position so completion order never affects the aggregate. A mandatory
// failure cancels the calls still in flight.
func (w *Worker) classifyAll(ctx context.Context, settings config.Settings, req classifier.Request, opLogger *zap.Logger) []features.Outcome {
	outcomes := make([]features.Outcome, len(settings.Targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, target := range settings.Targets {
		i, target := i, target
		g.Go(func() error {
			set, err := w.classifyOne(gctx, target, settings, req, opLogger)
			outcomes[i] = features.Outcome{
				ClassifierID: target.ID,
				Optional:     target.Optional,
				Set:          set,
				Err:          err,
			}
			if err != nil && !target.Optional {
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (w *Worker) classifyOne(ctx context.Context, target classifier.Target, settings config.Settings, req classifier.Request, opLogger *zap.Logger) (features.Set, error) {
	callCtx, cancel := context.WithTimeout(ctx, settings.CallTimeout)
	defer cancel()
	started := time.Now()

	resp, err := w.caller.Invoke(callCtx, target, req, settings.Credentials)
	if err != nil {
		return features.Set{}, err
	}

	record, err := envelope.Decode(resp.Header, resp.Body)
	if err != nil {
		var malformed *envelope.MalformedResponseError
		if errors.As(err, &malformed) {
			malformed.ClassifierID = target.ID
			malformed.CorrelationID = resp.CorrelationHeader()
		}
		return features.Set{}, err
	}

	set, err := features.Normalize(record, settings.Kind)
	if err != nil {
		var invalid *features.InvalidFeatureError
		if errors.As(err, &invalid) {
			invalid.ClassifierID = target.ID
			return features.Set{}, err
		}
		return features.Set{}, &envelope.MalformedResponseError{
			ClassifierID:  target.ID,
			CorrelationID: resp.CorrelationHeader(),
			Reason:        "unexpected payload shape",
			Err:           err,
		}
	}
	logging.WithClassifier(opLogger, target.ID, target.URL()).Debug("classifier call completed",
		zap.Int("features", set.Len()),
		zap.Duration("elapsed", time.Since(started)),
	)
	return set, nil
}

// logFailure is the single place an abandoned invocation is logged.
func (w *Worker) logFailure(opLogger *zap.Logger, err error) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("category", FailureCategory(err)),
	}
	if id := classifier.ClassifierIDOf(err); id != "" {
		fields = append(fields, zap.String("classifier_id", id))
	}
	var callErr *classifier.CallError
	if errors.As(err, &callErr) && callErr.StatusCode != 0 {
		fields = append(fields, zap.Int("status", callErr.StatusCode))
	}
	if corr := classifier.CorrelationID(err); corr != "" {
		fields = append(fields, zap.String("correlation_id", corr))
	}
	opLogger.Error("job failed", fields...)
}

// resolveOutputPath places the document inside the output location when it
// names an existing directory.
func resolveOutputPath(output, extension string) string {
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, "metadata"+extension)
	}
	return output
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
