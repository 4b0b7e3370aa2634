package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
	"github.com/kirillkom/health-report-analyzer/internal/core/ports"
	"github.com/kirillkom/health-report-analyzer/internal/core/simulation"
	"github.com/kirillkom/health-report-analyzer/internal/core/validation"
)

// WorkflowDeps are shared by every controller a registry creates.
type WorkflowDeps struct {
	Validator  *validation.MetricValidator
	Extraction *ExtractionSimulator
	Analysis   *AnalysisEngine
	Publisher  ports.EventPublisher
	Logger     *slog.Logger
	Now        func() time.Time

	// MaxDocumentBytes caps uploads; zero disables the check.
	MaxDocumentBytes int64
}

// WorkflowController owns the Upload → Extracting → Review → Analyzing →
// Result state machine of one session.
//
// opMu serializes user operations. mu guards state and is the only lock
// simulator callbacks take, so an operation may wait for a cancelled job
// while holding opMu.
type WorkflowController struct {
	id         string
	validator  *validation.MetricValidator
	extraction *ExtractionSimulator
	analysis   *AnalysisEngine
	publisher  ports.EventPublisher
	logger     *slog.Logger
	now        func() time.Time
	maxBytes   int64

	ctx    context.Context
	cancel context.CancelFunc

	opMu sync.Mutex
	mu   sync.Mutex

	closed      bool
	stage       domain.Stage
	progress    int
	document    *domain.UploadedDocument
	snapshot    *domain.HealthMetricsSnapshot
	fieldErrors map[domain.MetricField]*domain.ValidationError
	result      *domain.ClassificationResult
	lastFailure string
	generation  uint64
	sequence    uint64
	job         *simulation.Job
	updatedAt   time.Time
}

func NewWorkflowController(id string, deps WorkflowDeps) *WorkflowController {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	validator := deps.Validator
	if validator == nil {
		validator = validation.NewMetricValidator(validation.EditPolicyClamp)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkflowController{
		id:          id,
		validator:   validator,
		extraction:  deps.Extraction,
		analysis:    deps.Analysis,
		publisher:   deps.Publisher,
		logger:      logger.With("session_id", id),
		now:         now,
		maxBytes:    deps.MaxDocumentBytes,
		ctx:         ctx,
		cancel:      cancel,
		stage:       domain.StageUpload,
		fieldErrors: make(map[domain.MetricField]*domain.ValidationError),
		updatedAt:   now().UTC(),
	}
}

func (c *WorkflowController) ID() string {
	return c.id
}

// Upload accepts a document and starts extraction.
func (c *WorkflowController) Upload(ctx context.Context, doc domain.UploadedDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.WrapError(domain.ErrSessionClosed, "upload", fmt.Errorf("session=%s", c.id))
	}
	if c.stage != domain.StageUpload {
		return domain.WrapError(domain.ErrInvalidTransition, "upload", fmt.Errorf("stage=%s", c.stage))
	}

	doc.MediaType = domain.NormalizeMediaType(string(doc.MediaType))
	if doc.MediaType == "" {
		doc.MediaType = domain.MediaTypeFromFilename(doc.Name)
	}
	if !doc.MediaType.Allowed() {
		err := domain.WrapError(domain.ErrUnsupportedFileType, "upload", fmt.Errorf("type=%q name=%q", doc.MediaType, doc.Name))
		c.lastFailure = err.Error()
		return err
	}
	if c.maxBytes > 0 && doc.Size > c.maxBytes {
		err := domain.WrapError(domain.ErrDocumentTooLarge, "upload", fmt.Errorf("size=%d max=%d", doc.Size, c.maxBytes))
		c.lastFailure = err.Error()
		return err
	}

	c.document = &doc
	c.lastFailure = ""
	c.logger.Info("workflow_document_accepted", "name", doc.Name, "size", doc.Size, "media_type", doc.MediaType)
	c.transition(domain.StageExtracting, "extracting health metrics")
	c.startExtraction(doc)
	return nil
}

// UpdateMetric applies one Review edit. A rejected edit stays pending for
// its field and blocks RunAnalysis until a valid edit of that field.
func (c *WorkflowController) UpdateMetric(field domain.MetricField, raw string) (domain.MetricValue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.MetricValue{}, domain.WrapError(domain.ErrSessionClosed, "update metric", fmt.Errorf("session=%s", c.id))
	}
	if c.stage != domain.StageReview || c.snapshot == nil {
		return domain.MetricValue{}, domain.WrapError(domain.ErrInvalidTransition, "update metric", fmt.Errorf("stage=%s", c.stage))
	}

	value, err := c.validator.Validate(field, raw)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) && verr.Reason != domain.ReasonUnknownField {
			c.fieldErrors[field] = verr
		}
		c.logger.Debug("workflow_metric_rejected", "field", field, "error", err)
		return domain.MetricValue{}, err
	}

	updated, _ := c.snapshot.With(field, value)
	c.snapshot = &updated
	delete(c.fieldErrors, field)
	c.updatedAt = c.now().UTC()
	return value, nil
}

// RunAnalysis freezes the reviewed snapshot and starts the analysis.
func (c *WorkflowController) RunAnalysis(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.WrapError(domain.ErrSessionClosed, "run analysis", fmt.Errorf("session=%s", c.id))
	}
	if c.stage != domain.StageReview || c.snapshot == nil {
		return domain.WrapError(domain.ErrInvalidTransition, "run analysis", fmt.Errorf("stage=%s", c.stage))
	}
	if len(c.fieldErrors) > 0 {
		return fmt.Errorf("run analysis: %w", c.pendingFieldErrors())
	}
	if err := c.validator.ValidateSnapshot(*c.snapshot); err != nil {
		return fmt.Errorf("run analysis: %w", err)
	}

	frozen := *c.snapshot
	c.lastFailure = ""
	c.transition(domain.StageAnalyzing, "analyzing health metrics")
	c.startAnalysis(frozen)
	return nil
}

// Reset stops any running simulator, discards document, snapshot and result
// and returns to Upload. It is valid from every stage.
func (c *WorkflowController) Reset() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	job := c.clearLocked()
	c.transition(domain.StageUpload, "reset")
	c.mu.Unlock()

	job.Wait()
}

// Close resets the session and refuses further operations.
func (c *WorkflowController) Close() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	stage := c.stage
	job := c.clearLocked()
	c.publish(domain.Event{
		Type:    domain.EventClosed,
		Stage:   stage,
		Message: "session closed",
	})
	c.closed = true
	c.cancel()
	c.mu.Unlock()

	job.Wait()
	c.logger.Info("workflow_session_closed")
}

// RecordExport announces a finished export in the session's event sequence.
func (c *WorkflowController) RecordExport(format domain.ExportFormat, filename string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.WrapError(domain.ErrSessionClosed, "record export", fmt.Errorf("session=%s", c.id))
	}
	if c.stage != domain.StageResult || c.result == nil {
		return domain.WrapError(domain.ErrResultNotReady, "record export", fmt.Errorf("stage=%s", c.stage))
	}
	c.logger.Info("workflow_result_exported", "format", format, "filename", filename)
	c.publish(domain.Event{
		Type:    domain.EventExported,
		Stage:   c.stage,
		Format:  format,
		Message: filename,
	})
	return nil
}

func (c *WorkflowController) View() domain.WorkflowView {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := domain.WorkflowView{
		SessionID:   c.id,
		Stage:       c.stage,
		Progress:    c.progress,
		LastFailure: c.lastFailure,
		UpdatedAt:   c.updatedAt,
	}
	if c.document != nil {
		doc := *c.document
		doc.Content = nil
		view.Document = &doc
	}
	if c.snapshot != nil {
		snapshot := *c.snapshot
		view.Snapshot = &snapshot
	}
	if c.result != nil {
		result := *c.result
		view.Result = &result
	}
	if len(c.fieldErrors) > 0 {
		view.FieldErrors = make(map[domain.MetricField]string, len(c.fieldErrors))
		for field, verr := range c.fieldErrors {
			view.FieldErrors[field] = verr.Reason
		}
	}
	return view
}

func (c *WorkflowController) startExtraction(doc domain.UploadedDocument) {
	c.waitFinishedJobLocked()
	gen := c.nextGenerationLocked()
	c.job = c.extraction.Start(c.ctx, doc, ExtractionCallbacks{
		OnProgress: func(progress int) bool {
			return c.onProgress(gen, domain.StageExtracting, progress)
		},
		OnComplete: func(snapshot domain.HealthMetricsSnapshot) {
			c.completeExtraction(gen, snapshot)
		},
		OnFailure: func(err error) {
			c.failExtraction(gen, err)
		},
	})
}

func (c *WorkflowController) startAnalysis(snapshot domain.HealthMetricsSnapshot) {
	c.waitFinishedJobLocked()
	gen := c.nextGenerationLocked()
	c.job = c.analysis.Start(c.ctx, snapshot, AnalysisCallbacks{
		OnProgress: func(progress int) bool {
			return c.onProgress(gen, domain.StageAnalyzing, progress)
		},
		OnComplete: func(result domain.ClassificationResult) {
			c.completeAnalysis(gen, result)
		},
		OnFailure: func(err error) {
			c.failAnalysis(gen, err)
		},
	})
}

// waitFinishedJobLocked reaps the previous job. New jobs start only from
// Upload or Review, which a job reaches through its final callback, so the
// goroutine no longer needs mu.
func (c *WorkflowController) waitFinishedJobLocked() {
	if c.job != nil {
		c.job.Wait()
		c.job = nil
	}
}

func (c *WorkflowController) nextGenerationLocked() uint64 {
	c.generation++
	c.progress = 0
	return c.generation
}

func (c *WorkflowController) onProgress(gen uint64, stage domain.Stage, progress int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale(gen, stage) {
		return false
	}
	c.progress = progress
	c.updatedAt = c.now().UTC()
	c.publish(domain.Event{
		Type:     domain.EventProgress,
		Stage:    stage,
		Progress: progress,
	})
	return true
}

func (c *WorkflowController) completeExtraction(gen uint64, snapshot domain.HealthMetricsSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale(gen, domain.StageExtracting) {
		return
	}

	c.snapshot = &snapshot
	c.fieldErrors = make(map[domain.MetricField]*domain.ValidationError)
	for _, verr := range c.validator.CheckSnapshot(snapshot) {
		c.fieldErrors[verr.Field] = verr
	}

	published := snapshot
	c.publish(domain.Event{
		Type:     domain.EventCompleted,
		Stage:    domain.StageExtracting,
		Progress: simulation.MaxProgress,
		Snapshot: &published,
	})
	c.transition(domain.StageReview, "metrics ready for review")
}

func (c *WorkflowController) failExtraction(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale(gen, domain.StageExtracting) {
		return
	}

	c.logger.Warn("workflow_extraction_failed", "error", err)
	c.lastFailure = err.Error()
	c.publish(domain.Event{
		Type:    domain.EventFailed,
		Stage:   domain.StageExtracting,
		Message: c.lastFailure,
	})
	c.document = nil
	c.progress = 0
	c.transition(domain.StageUpload, "extraction failed")
}

func (c *WorkflowController) completeAnalysis(gen uint64, result domain.ClassificationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale(gen, domain.StageAnalyzing) {
		return
	}

	if result.ClassifiedAt.IsZero() {
		result.ClassifiedAt = c.now().UTC()
	}
	c.result = &result

	published := result
	c.publish(domain.Event{
		Type:     domain.EventCompleted,
		Stage:    domain.StageAnalyzing,
		Progress: simulation.MaxProgress,
		Result:   &published,
	})
	c.transition(domain.StageResult, result.Status)
}

func (c *WorkflowController) failAnalysis(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale(gen, domain.StageAnalyzing) {
		return
	}

	c.logger.Warn("workflow_analysis_failed", "error", err)
	c.lastFailure = err.Error()
	c.publish(domain.Event{
		Type:    domain.EventFailed,
		Stage:   domain.StageAnalyzing,
		Message: c.lastFailure,
	})
	c.progress = 0
	c.transition(domain.StageReview, "analysis failed")
}

// stale reports whether a simulator callback belongs to a superseded run.
func (c *WorkflowController) stale(gen uint64, stage domain.Stage) bool {
	if c.closed || gen != c.generation || c.stage != stage {
		c.logger.Debug("stale_event_discarded", "generation", gen, "current_generation", c.generation, "stage", stage)
		return true
	}
	return false
}

// clearLocked cancels the running job and drops every piece of session data.
// The caller waits on the returned job after releasing mu.
func (c *WorkflowController) clearLocked() *simulation.Job {
	job := c.job
	c.job = nil
	job.Cancel()
	c.generation++

	c.progress = 0
	c.document = nil
	c.snapshot = nil
	c.result = nil
	c.lastFailure = ""
	c.fieldErrors = make(map[domain.MetricField]*domain.ValidationError)
	return job
}

func (c *WorkflowController) transition(to domain.Stage, message string) {
	from := c.stage
	c.stage = to
	c.updatedAt = c.now().UTC()
	c.logger.Info("workflow_stage_changed", "from", from, "to", to)
	c.publish(domain.Event{
		Type:    domain.EventStageChanged,
		Stage:   to,
		From:    from,
		Message: message,
	})
}

func (c *WorkflowController) publish(event domain.Event) {
	if c.publisher == nil {
		return
	}
	c.sequence++
	event.SessionID = c.id
	event.Sequence = c.sequence
	event.At = c.now().UTC()
	if err := c.publisher.Publish(context.Background(), event); err != nil {
		c.logger.Warn("workflow_event_publish_failed", "type", event.Type, "error", err)
	}
}

func (c *WorkflowController) pendingFieldErrors() error {
	fields := make([]string, 0, len(c.fieldErrors))
	for field := range c.fieldErrors {
		fields = append(fields, string(field))
	}
	sort.Strings(fields)

	errs := make([]error, 0, len(fields))
	for _, field := range fields {
		errs = append(errs, c.fieldErrors[domain.MetricField(field)])
	}
	return errors.Join(errs...)
}
