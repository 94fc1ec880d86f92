// Package render orchestrates voiceline generation: it walks the chunk list,
// drives the rendering engine in single, parallel, or batched mode, and keeps
// every chunk's status and audio path durable in the store.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"cinecast/internal/audio"
	"cinecast/internal/chunkstore"
	"cinecast/internal/retry"
	"cinecast/internal/services"
	"cinecast/internal/services/tts"
	"cinecast/internal/textutil"
	"cinecast/internal/voice"
)

// RandomSeed asks the orchestrator to pick one positive seed per run.
const RandomSeed int64 = -1

// minValidWAVBytes rejects header-only engine output.
const minValidWAVBytes = 64

// Engine is the slice of the tts client the orchestrator drives.
type Engine interface {
	Render(ctx context.Context, req tts.Request) error
	RenderBatch(ctx context.Context, reqs []tts.Request, seed int64) ([]error, error)
}

// Journal records run and per-chunk outcomes for later inspection. A nil
// journal disables recording.
type Journal interface {
	BeginRun(mode string, total int) (string, error)
	RecordChunk(runID string, chunkID int, status, detail string) error
	FinishRun(runID string, completed, failed int) error
}

// Params configures an orchestrator.
type Params struct {
	Store        *chunkstore.Store
	Voices       *voice.Config
	Engine       Engine
	OutputDir    string
	FFmpegBinary string
	Workers      int
	BatchSize    int
	GroupByVoice bool
	Seed         int64
	Logger       *slog.Logger
}

// Option customizes an orchestrator.
type Option func(*Orchestrator)

// WithJournal attaches a run journal.
func WithJournal(journal Journal) Option {
	return func(o *Orchestrator) { o.journal = journal }
}

// WithProgress attaches a per-chunk progress callback.
func WithProgress(fn func(done, total int)) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithCleanupPolicy overrides how temp-file deletion is retried.
func WithCleanupPolicy(policy retry.Policy) Option {
	return func(o *Orchestrator) { o.cleanup = policy }
}

// Orchestrator drives voiceline generation against one chunk store.
type Orchestrator struct {
	store        *chunkstore.Store
	voices       *voice.Config
	engine       Engine
	outputDir    string
	ffmpegBinary string
	workers      int
	batchSize    int
	groupByVoice bool
	seed         int64
	cleanup      retry.Policy
	logger       *slog.Logger
	journal      Journal
	progress     func(done, total int)
}

// New builds an orchestrator.
func New(p Params, opts ...Option) (*Orchestrator, error) {
	if p.Store == nil {
		return nil, errors.New("render: store required")
	}
	if p.Engine == nil {
		return nil, services.Wrap(services.ErrConfiguration, "render", "new", "no rendering engine configured", nil)
	}
	if p.Workers <= 0 {
		p.Workers = 1
	}
	if p.BatchSize <= 0 {
		p.BatchSize = 4
	}
	if p.FFmpegBinary == "" {
		p.FFmpegBinary = "ffmpeg"
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	o := &Orchestrator{
		store:        p.Store,
		voices:       p.Voices,
		engine:       p.Engine,
		outputDir:    p.OutputDir,
		ffmpegBinary: p.FFmpegBinary,
		workers:      p.Workers,
		batchSize:    p.BatchSize,
		groupByVoice: p.GroupByVoice,
		seed:         p.Seed,
		cleanup:      retry.Cleanup,
		logger:       p.Logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Failure pairs a chunk id with the reason it could not be rendered.
type Failure struct {
	ID     int
	Reason string
}

// Summary reports a generation run.
type Summary struct {
	Completed []int
	Failed    []Failure
	Skipped   int
}

// GenerateOne renders a single chunk by id. Out-of-range ids and chunks
// without text fail immediately without touching any state.
func (o *Orchestrator) GenerateOne(ctx context.Context, id int) error {
	chunks, err := o.store.Load()
	if err != nil {
		return err
	}
	if id < 0 || id >= len(chunks) {
		return services.Wrap(services.ErrValidation, "render", "generate",
			fmt.Sprintf("chunk %d out of range (have %d)", id, len(chunks)), chunkstore.ErrOutOfRange)
	}
	chunk := chunks[id]
	if !chunk.HasText() {
		return services.Wrap(services.ErrValidation, "render", "generate",
			fmt.Sprintf("chunk %d has no text", id), nil)
	}

	runID := o.beginRun("single", 1)
	err = o.renderChunk(ctx, chunk, o.resolveSeed(), runID)
	o.finishRun(runID, err)
	return err
}

// GenerateParallel renders the given chunks with a bounded worker pool. A nil
// ids slice means every chunk that is not already done. Chunks without text
// are skipped. Per-chunk failures land in the summary, not the error.
func (o *Orchestrator) GenerateParallel(ctx context.Context, ids []int) (Summary, error) {
	targets, skipped, err := o.selectTargets(ids)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Skipped: skipped}
	if len(targets) == 0 {
		return summary, nil
	}

	runID := o.beginRun("parallel", len(targets))
	seed := o.resolveSeed()

	var mu sync.Mutex
	done := 0
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.workers)
	for _, chunk := range targets {
		group.Go(func() error {
			renderErr := o.renderChunk(groupCtx, chunk, seed, runID)
			mu.Lock()
			defer mu.Unlock()
			if renderErr != nil {
				summary.Failed = append(summary.Failed, Failure{ID: chunk.ID, Reason: services.Reason(renderErr)})
			} else {
				summary.Completed = append(summary.Completed, chunk.ID)
			}
			done++
			o.reportProgress(done, len(targets))
			return nil
		})
	}
	group.Wait()

	o.finishRunCounts(runID, len(summary.Completed), len(summary.Failed))
	return summary, nil
}

// GenerateBatch renders chunks through the engine's batch endpoint, sharing
// one seed across each batch. Chunks are optionally regrouped by voice so the
// engine reloads models as rarely as possible; results are persisted batch by
// batch so an interrupted run keeps its finished work.
func (o *Orchestrator) GenerateBatch(ctx context.Context, ids []int) (Summary, error) {
	targets, skipped, err := o.selectTargets(ids)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Skipped: skipped}
	if len(targets) == 0 {
		return summary, nil
	}

	// The whole selection is claimed up front, so a crash mid-run leaves the
	// unprocessed suffix visibly in-flight rather than silently pending.
	o.markGenerating(targets)

	if o.groupByVoice {
		keys := make([]string, len(targets))
		for i, chunk := range targets {
			keys[i] = o.voices.GroupKey(chunk.Speaker)
		}
		order := voice.GroupOrder(keys)
		reordered := make([]chunkstore.Chunk, len(targets))
		for i, idx := range order {
			reordered[i] = targets[idx]
		}
		targets = reordered
	}

	runID := o.beginRun("batch", len(targets))
	seed := o.resolveSeed()
	done := 0

	for start := 0; start < len(targets); start += o.batchSize {
		end := min(start+o.batchSize, len(targets))
		batch := targets[start:end]

		reqs := make([]tts.Request, 0, len(batch))
		prepared := make([]chunkstore.Chunk, 0, len(batch))
		for _, chunk := range batch {
			spec, specErr := o.voiceFor(chunk)
			if specErr != nil {
				o.recordFailure(runID, chunk.ID, specErr)
				summary.Failed = append(summary.Failed, Failure{ID: chunk.ID, Reason: services.Reason(specErr)})
				done++
				continue
			}
			reqs = append(reqs, tts.Request{
				Text:       chunk.Text,
				Instruct:   chunk.Instruct,
				Voice:      spec,
				Seed:       seed,
				OutputPath: o.tempBatchPath(chunk.ID),
			})
			prepared = append(prepared, chunk)
		}
		if len(reqs) == 0 {
			o.reportProgress(done, len(targets))
			continue
		}

		results, batchErr := o.engine.RenderBatch(ctx, reqs, seed)
		for i, chunk := range prepared {
			var itemErr error
			switch {
			case batchErr != nil:
				itemErr = batchErr
			case results[i] != nil:
				itemErr = results[i]
			default:
				itemErr = o.finalizeRendered(ctx, chunk, reqs[i].OutputPath, runID)
			}
			if itemErr != nil {
				o.recordFailure(runID, chunk.ID, itemErr)
				summary.Failed = append(summary.Failed, Failure{ID: chunk.ID, Reason: services.Reason(itemErr)})
			} else {
				summary.Completed = append(summary.Completed, chunk.ID)
			}
			done++
			o.reportProgress(done, len(targets))
		}
	}

	o.finishRunCounts(runID, len(summary.Completed), len(summary.Failed))
	return summary, nil
}

// selectTargets resolves which chunks a run covers. Explicit ids are
// validated strictly; the default selection takes every chunk that is not
// done yet and silently skips textless ones.
func (o *Orchestrator) selectTargets(ids []int) ([]chunkstore.Chunk, int, error) {
	chunks, err := o.store.Load()
	if err != nil {
		return nil, 0, err
	}

	var targets []chunkstore.Chunk
	skipped := 0
	if ids == nil {
		for _, chunk := range chunks {
			if chunk.Status == chunkstore.StatusDone {
				continue
			}
			if !chunk.HasText() {
				skipped++
				continue
			}
			targets = append(targets, chunk)
		}
		return targets, skipped, nil
	}

	for _, id := range ids {
		if id < 0 || id >= len(chunks) {
			return nil, 0, services.Wrap(services.ErrValidation, "render", "generate",
				fmt.Sprintf("chunk %d out of range (have %d)", id, len(chunks)), chunkstore.ErrOutOfRange)
		}
		if !chunks[id].HasText() {
			skipped++
			continue
		}
		targets = append(targets, chunks[id])
	}
	return targets, skipped, nil
}

// renderChunk runs the full single-chunk sequence: mark generating, render to
// a temp file, validate, convert, persist the final state.
func (o *Orchestrator) renderChunk(ctx context.Context, chunk chunkstore.Chunk, seed int64, runID string) error {
	if _, err := o.store.UpdateFields(chunk.ID, chunkstore.FieldPatch{
		Status: chunkstore.StatusPtr(chunkstore.StatusGenerating),
	}); err != nil {
		return err
	}

	err := func() error {
		spec, err := o.voiceFor(chunk)
		if err != nil {
			return err
		}
		tempPath := o.tempChunkPath(chunk.ID)
		if err := o.engine.Render(ctx, tts.Request{
			Text:       chunk.Text,
			Instruct:   chunk.Instruct,
			Voice:      spec,
			Seed:       seed,
			OutputPath: tempPath,
		}); err != nil {
			return err
		}
		return o.finalizeRendered(ctx, chunk, tempPath, runID)
	}()

	if err != nil {
		o.recordFailure(runID, chunk.ID, err)
		return err
	}
	return nil
}

// finalizeRendered validates engine output, converts it to its final form,
// removes the temp file, and marks the chunk done.
func (o *Orchestrator) finalizeRendered(ctx context.Context, chunk chunkstore.Chunk, tempPath, runID string) error {
	info, err := os.Stat(tempPath)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "validate",
			fmt.Sprintf("chunk %d: engine produced no output", chunk.ID), err)
	}
	if info.Size() < minValidWAVBytes {
		return services.Wrap(services.ErrExternalTool, "render", "validate",
			fmt.Sprintf("chunk %d: engine output is %d bytes", chunk.ID, info.Size()), nil)
	}

	finalPath, err := audio.ConvertToMP3(ctx, o.ffmpegBinary, tempPath, o.renderedPath(chunk))
	if err != nil {
		return err
	}

	if cleanupErr := o.cleanup.Do(func() error {
		err := os.Remove(tempPath)
		if err != nil && os.IsNotExist(err) {
			return nil
		}
		return err
	}, nil); cleanupErr != nil {
		o.logger.Warn("temp file could not be removed",
			slog.String("path", tempPath),
			slog.Any("error", cleanupErr))
	}

	if _, err := o.store.UpdateFields(chunk.ID, chunkstore.FieldPatch{
		Status:    chunkstore.StatusPtr(chunkstore.StatusDone),
		AudioPath: chunkstore.StringPtr(finalPath),
	}); err != nil {
		return err
	}
	if o.journal != nil {
		o.journal.RecordChunk(runID, chunk.ID, string(chunkstore.StatusDone), finalPath)
	}
	return nil
}

func (o *Orchestrator) voiceFor(chunk chunkstore.Chunk) (voice.Spec, error) {
	spec, ok := o.voices.Lookup(chunk.Speaker)
	if !ok {
		return voice.Spec{}, services.Wrap(services.ErrConfiguration, "render", "voice",
			fmt.Sprintf("no voice configured for speaker %q", chunk.Speaker), nil)
	}
	return spec, nil
}

func (o *Orchestrator) markGenerating(batch []chunkstore.Chunk) {
	for _, chunk := range batch {
		if _, err := o.store.UpdateFields(chunk.ID, chunkstore.FieldPatch{
			Status: chunkstore.StatusPtr(chunkstore.StatusGenerating),
		}); err != nil {
			o.logger.Warn("could not mark chunk generating", slog.Int("chunk", chunk.ID))
		}
	}
}

func (o *Orchestrator) recordFailure(runID string, chunkID int, cause error) {
	reason := services.Reason(cause)
	if _, err := o.store.UpdateFields(chunkID, chunkstore.FieldPatch{
		Status: chunkstore.StatusPtr(chunkstore.StatusError),
	}); err != nil {
		o.logger.Error("could not persist chunk failure", slog.Int("chunk", chunkID))
	}
	o.logger.Error("chunk render failed", slog.Int("chunk", chunkID), slog.String("reason", reason))
	if o.journal != nil {
		o.journal.RecordChunk(runID, chunkID, string(chunkstore.StatusError), reason)
	}
}

func (o *Orchestrator) resolveSeed() int64 {
	if o.seed == RandomSeed {
		return rand.Int64N(1 << 31)
	}
	return o.seed
}

func (o *Orchestrator) tempChunkPath(id int) string {
	return filepath.Join(o.outputDir, fmt.Sprintf("temp_chunk_%d.wav", id))
}

func (o *Orchestrator) tempBatchPath(id int) string {
	return filepath.Join(o.outputDir, fmt.Sprintf("temp_batch_%d.wav", id))
}

func (o *Orchestrator) renderedPath(chunk chunkstore.Chunk) string {
	name := fmt.Sprintf("voiceline_%04d_%s.mp3", chunk.ID+1, textutil.SanitizeToken(chunk.Speaker))
	return filepath.Join(o.outputDir, name)
}

func (o *Orchestrator) beginRun(mode string, total int) string {
	if o.journal == nil {
		return ""
	}
	runID, err := o.journal.BeginRun(mode, total)
	if err != nil {
		o.logger.Warn("journal unavailable", slog.String("mode", mode))
		return ""
	}
	return runID
}

func (o *Orchestrator) finishRun(runID string, err error) {
	if err != nil {
		o.finishRunCounts(runID, 0, 1)
		return
	}
	o.finishRunCounts(runID, 1, 0)
}

func (o *Orchestrator) finishRunCounts(runID string, completed, failed int) {
	if o.journal == nil || runID == "" {
		return
	}
	o.journal.FinishRun(runID, completed, failed)
}

func (o *Orchestrator) reportProgress(done, total int) {
	if o.progress != nil {
		o.progress(done, total)
	}
}
