// Package pipeline orchestrates one batch of raw text through extraction,
// embedding, deduplication, and persistence.
//
// Extraction and embedding are the expensive stages and run concurrently
// across input units, bounded by the configured concurrency limit. The
// decide-and-commit step for each unit runs on a single serialized stage in
// submission order, so every candidate sees the records committed before it
// and the outcome sequence matches input order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sourcegraph/conc/stream"

	"github.com/taskmint/taskmint/internal/config"
	"github.com/taskmint/taskmint/internal/dedup"
	"github.com/taskmint/taskmint/internal/embed"
	"github.com/taskmint/taskmint/internal/extract"
	"github.com/taskmint/taskmint/internal/index"
	"github.com/taskmint/taskmint/internal/store"
	"github.com/taskmint/taskmint/internal/types"
)

// Orchestrator wires the pipeline stages together. It owns the similarity
// index for the duration of its life; the index is a cache of the store and
// is only ever updated after a store write has committed.
type Orchestrator struct {
	extractor extract.Extractor
	embedder  embed.Embedder
	store     *store.Store
	idx       *index.Index
	engine    *dedup.Engine
	cfg       *config.Config
}

// New creates an orchestrator. The index should already reflect the store's
// ACTIVE records; use Rebuild for that.
func New(extractor extract.Extractor, embedder embed.Embedder, st *store.Store, idx *index.Index, engine *dedup.Engine, cfg *config.Config) (*Orchestrator, error) {
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if idx == nil {
		return nil, fmt.Errorf("index is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("dedup engine is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return &Orchestrator{
		extractor: extractor,
		embedder:  embedder,
		store:     st,
		idx:       idx,
		engine:    engine,
		cfg:       cfg,
	}, nil
}

// Rebuild resynchronizes the similarity index from the store's ACTIVE
// records. Call on startup and after any crash; the store is the source of
// truth and the index is a derived projection of it.
func (o *Orchestrator) Rebuild(ctx context.Context) error {
	records, err := o.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active tasks: %w", err)
	}
	if err := o.idx.Rebuild(records); err != nil {
		return fmt.Errorf("failed to rebuild similarity index: %w", err)
	}
	return nil
}

// preparedCandidate is one extracted candidate with its fingerprint.
// A nil embedding with unavailable set means every embedding attempt
// failed and the candidate must be routed to manual review.
type preparedCandidate struct {
	candidate   types.TaskCandidate
	embedding   []float32
	unavailable bool
}

// preparedUnit is the result of the concurrent stage for one input unit.
// rejectReason, when set, rejects the whole unit and candidates is empty.
type preparedUnit struct {
	inputIndex   int
	rejectReason string
	candidates   []preparedCandidate
}

// ProcessBatch runs every input unit through the pipeline and returns at
// least one outcome per unit, in input order. No unit's failure aborts the
// batch; rejections are ordinary outcomes.
func (o *Orchestrator) ProcessBatch(ctx context.Context, inputs []string) []types.Outcome {
	if len(inputs) == 0 {
		return nil
	}

	startedAt := time.Now().UTC()
	outcomes := make([]types.Outcome, 0, len(inputs))

	concurrency := o.cfg.BatchConcurrencyLimit
	if concurrency < 1 {
		concurrency = 1
	}

	// Tasks (extraction + embedding) run concurrently in the pool;
	// callbacks (decide-and-commit) run one at a time in submission
	// order, which is the single-writer discipline that keeps two
	// near-duplicates in the same batch from both being admitted as new.
	st := stream.New().WithMaxGoroutines(concurrency)
	for i, input := range inputs {
		st.Go(func() stream.Callback {
			unit := o.prepare(ctx, i, input)
			return func() {
				outcomes = append(outcomes, o.commit(ctx, unit)...)
			}
		})
	}
	st.Wait()

	o.recordBatch(ctx, startedAt, len(inputs), outcomes)
	return outcomes
}

// prepare runs the concurrent stage for one unit: extraction with retry,
// then an embedding (with retry) per surviving candidate. It performs no
// writes; all store and index mutations happen in commit.
func (o *Orchestrator) prepare(ctx context.Context, inputIndex int, input string) preparedUnit {
	unit := preparedUnit{inputIndex: inputIndex}

	if ctx.Err() != nil {
		unit.rejectReason = types.ReasonBatchCanceled
		return unit
	}

	var result *extract.Result
	err := retryWithBackoff(ctx, o.cfg, fmt.Sprintf("extraction for unit %d", inputIndex), o.cfg.ExtractionRetryCount, func(ctx context.Context) error {
		var callErr error
		result, callErr = o.extractor.Extract(ctx, input)
		return callErr
	})
	if err != nil {
		if ctx.Err() != nil {
			unit.rejectReason = types.ReasonBatchCanceled
		} else {
			log.Printf("[PIPELINE] unit %d rejected: %v", inputIndex, err)
			unit.rejectReason = types.ReasonExtractionFailed
		}
		return unit
	}

	if result.Summary != "" {
		log.Printf("[PIPELINE] unit %d: %s", inputIndex, result.Summary)
	}
	if len(result.Candidates) == 0 {
		unit.rejectReason = types.ReasonNoActionableTasks
		return unit
	}

	unit.candidates = make([]preparedCandidate, 0, len(result.Candidates))
	for _, candidate := range result.Candidates {
		prepared := preparedCandidate{candidate: candidate}
		text := embed.CanonicalText(candidate)

		err := retryWithBackoff(ctx, o.cfg, fmt.Sprintf("embedding for %q", candidate.Title), o.cfg.EmbeddingRetryCount, func(ctx context.Context) error {
			vec, callErr := o.embedder.Embed(ctx, text)
			if callErr != nil {
				return callErr
			}
			prepared.embedding = vec
			return nil
		})
		if err != nil {
			// Cancellation is resolved at commit time; a true outage
			// routes the candidate to manual review rather than letting
			// it be deduplicated blind or dropped.
			log.Printf("[PIPELINE] embedding unavailable for %q: %v", candidate.Title, err)
			prepared.embedding = nil
			prepared.unavailable = true
		}
		unit.candidates = append(unit.candidates, prepared)
	}
	return unit
}

// commit is the serialized stage: it turns one prepared unit into outcomes,
// writing records and updating the index. Runs strictly in input order.
func (o *Orchestrator) commit(ctx context.Context, unit preparedUnit) []types.Outcome {
	if unit.rejectReason != "" {
		return []types.Outcome{{
			InputIndex: unit.inputIndex,
			Kind:       types.OutcomeRejected,
			Reason:     unit.rejectReason,
		}}
	}

	outcomes := make([]types.Outcome, 0, len(unit.candidates))
	for _, prepared := range unit.candidates {
		outcomes = append(outcomes, o.commitCandidate(ctx, unit.inputIndex, prepared))
	}
	return outcomes
}

// commitCandidate makes the dedup decision for one candidate and persists
// the result. The store write always precedes the index update.
func (o *Orchestrator) commitCandidate(ctx context.Context, inputIndex int, prepared preparedCandidate) types.Outcome {
	// Anything not committed when the batch is canceled is dropped
	// without a partial record.
	if ctx.Err() != nil {
		return types.Outcome{
			InputIndex: inputIndex,
			Kind:       types.OutcomeRejected,
			Reason:     types.ReasonBatchCanceled,
		}
	}

	candidate := prepared.candidate

	if prepared.unavailable {
		record := types.NewTaskRecord(candidate)
		record.NeedsReview = true
		record.ReviewReason = types.ReasonEmbeddingUnavailable
		if err := o.store.Insert(ctx, record); err != nil {
			return o.rejectStoreError(inputIndex, candidate, err)
		}
		// Deliberately absent from the index: without a fingerprint the
		// record cannot be matched until reembedding recovers it.
		log.Printf("[PIPELINE] %s needs review (%s): %q", record.ID, types.ReasonEmbeddingUnavailable, candidate.Title)
		return types.Outcome{
			InputIndex: inputIndex,
			Kind:       types.OutcomeNeedsReview,
			Record:     record,
			Reason:     types.ReasonEmbeddingUnavailable,
		}
	}

	decision, existing := o.decide(ctx, prepared.embedding)

	switch decision.Verdict {
	case dedup.VerdictDuplicate:
		return o.commitDuplicate(ctx, inputIndex, candidate, decision, existing)

	case dedup.VerdictReview:
		record := types.NewTaskRecord(candidate)
		record.Embedding = prepared.embedding
		record.NeedsReview = true
		record.ReviewReason = fmt.Sprintf("near-duplicate of %s (similarity %.3f)", decision.MatchID, decision.Score)
		if err := o.store.Insert(ctx, record); err != nil {
			return o.rejectStoreError(inputIndex, candidate, err)
		}
		o.indexUpsert(record.ID, prepared.embedding)
		log.Printf("[PIPELINE] %s needs review: %q scored %.3f against %s", record.ID, candidate.Title, decision.Score, decision.MatchID)
		return types.Outcome{
			InputIndex: inputIndex,
			Kind:       types.OutcomeNeedsReview,
			Record:     record,
			Reason:     record.ReviewReason,
			MatchID:    decision.MatchID,
			Score:      decision.Score,
		}

	default:
		record := types.NewTaskRecord(candidate)
		record.Embedding = prepared.embedding
		if err := o.store.Insert(ctx, record); err != nil {
			return o.rejectStoreError(inputIndex, candidate, err)
		}
		o.indexUpsert(record.ID, prepared.embedding)
		if decision.MatchID != "" {
			log.Printf("[PIPELINE] %s accepted: %q (nearest %s at %.3f)", record.ID, candidate.Title, decision.MatchID, decision.Score)
		} else {
			log.Printf("[PIPELINE] %s accepted: %q", record.ID, candidate.Title)
		}
		return types.Outcome{
			InputIndex: inputIndex,
			Kind:       types.OutcomeAccepted,
			Record:     record,
			MatchID:    decision.MatchID,
			Score:      decision.Score,
		}
	}
}

// decide classifies the embedding and resolves the matched record. When the
// index knows an id the store does not, the store wins: the stale entry is
// removed and the decision is retaken against what remains.
func (o *Orchestrator) decide(ctx context.Context, embedding []float32) (dedup.Decision, *types.TaskRecord) {
	for {
		decision := o.engine.Decide(embedding)
		if decision.Verdict != dedup.VerdictDuplicate {
			return decision, nil
		}

		existing, err := o.store.Get(ctx, decision.MatchID)
		if err != nil {
			log.Printf("[PIPELINE] failed to load matched task %s: %v", decision.MatchID, err)
			return decision, nil
		}
		if existing == nil || existing.Status != types.StatusActive {
			log.Printf("[PIPELINE] index/store disagreement on %s, dropping stale index entry", decision.MatchID)
			o.idx.Remove(decision.MatchID)
			continue
		}
		return decision, existing
	}
}

// commitDuplicate handles a DUPLICATE verdict: no new record, optional
// field-level refresh of the survivor. The refresh is best-effort; a failed
// refresh is logged and the duplicate verdict stands.
func (o *Orchestrator) commitDuplicate(ctx context.Context, inputIndex int, candidate types.TaskCandidate, decision dedup.Decision, existing *types.TaskRecord) types.Outcome {
	if existing == nil {
		// Matched record could not be loaded; report the duplicate
		// against the id alone.
		return types.Outcome{
			InputIndex: inputIndex,
			Kind:       types.OutcomeMerged,
			Reason:     fmt.Sprintf("duplicate of %s", decision.MatchID),
			MatchID:    decision.MatchID,
			Score:      decision.Score,
		}
	}

	patch, _ := dedup.Merge(existing, candidate)
	if !patch.Empty() {
		fields := store.UpdateFields{
			DueDate:        patch.DueDate,
			EstimatedHours: patch.EstimatedHours,
		}
		if err := o.store.Update(ctx, existing.ID, fields); err != nil {
			log.Printf("[PIPELINE] failed to refresh %s from duplicate: %v", existing.ID, err)
		} else {
			if patch.DueDate != nil {
				existing.DueDate = patch.DueDate
			}
			if patch.EstimatedHours != nil {
				existing.EstimatedHours = patch.EstimatedHours
			}
		}
	}

	log.Printf("[DEDUP] %q is a duplicate of %s (similarity %.3f)", candidate.Title, existing.ID, decision.Score)
	return types.Outcome{
		InputIndex: inputIndex,
		Kind:       types.OutcomeMerged,
		Record:     existing,
		MatchID:    existing.ID,
		Score:      decision.Score,
	}
}

// rejectStoreError folds a failed store write into a rejection outcome so
// the batch keeps moving.
func (o *Orchestrator) rejectStoreError(inputIndex int, candidate types.TaskCandidate, err error) types.Outcome {
	log.Printf("[PIPELINE] store write failed for %q: %v", candidate.Title, err)
	return types.Outcome{
		InputIndex: inputIndex,
		Kind:       types.OutcomeRejected,
		Reason:     fmt.Sprintf("store-error: %v", err),
	}
}

// indexUpsert mirrors a committed record into the index. Failures here do
// not undo the store write; the record is durable and the index will pick
// it up on the next rebuild.
func (o *Orchestrator) indexUpsert(id string, embedding []float32) {
	if err := o.idx.Upsert(id, embedding); err != nil {
		log.Printf("[PIPELINE] failed to index %s: %v", id, err)
	}
}

// recordBatch writes the audit row for a completed batch. Audit is
// fail-open: a write failure is logged and never surfaced.
func (o *Orchestrator) recordBatch(ctx context.Context, startedAt time.Time, inputs int, outcomes []types.Outcome) {
	run := &types.BatchRun{
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Inputs:     inputs,
	}
	for _, outcome := range outcomes {
		switch outcome.Kind {
		case types.OutcomeAccepted:
			run.Accepted++
		case types.OutcomeMerged:
			run.Merged++
		case types.OutcomeNeedsReview:
			run.NeedsReview++
		case types.OutcomeRejected:
			run.Rejected++
		}
	}

	// The batch itself may have been canceled; the audit row should
	// still be written if the store allows it.
	if err := o.store.RecordBatch(context.WithoutCancel(ctx), run); err != nil {
		log.Printf("[PIPELINE] failed to record batch audit row: %v", err)
	}
}

// Reembed fingerprints ACTIVE records whose embedding is missing
// (embedding-unavailable leftovers), stores the vector, clears the review
// flag when reviewing was only about the missing embedding, and adds the
// record to the index. Returns the records that were recovered.
func (o *Orchestrator) Reembed(ctx context.Context) ([]*types.TaskRecord, error) {
	return Reembed(ctx, o.store, o.embedder, o.idx, o.cfg)
}

// Reembed is the standalone form of Orchestrator.Reembed for callers that
// have no extraction client wired, such as the reembed maintenance command.
func Reembed(ctx context.Context, st *store.Store, embedder embed.Embedder, idx *index.Index, cfg *config.Config) ([]*types.TaskRecord, error) {
	active, err := st.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tasks: %w", err)
	}

	var recovered []*types.TaskRecord
	for _, record := range active {
		if record.Embedding != nil {
			continue
		}
		if ctx.Err() != nil {
			return recovered, ctx.Err()
		}

		text := embed.CanonicalText(types.TaskCandidate{Title: record.Title, DueDate: record.DueDate})
		var vec []float32
		err := retryWithBackoff(ctx, cfg, fmt.Sprintf("reembedding %s", record.ID), cfg.EmbeddingRetryCount, func(ctx context.Context) error {
			var callErr error
			vec, callErr = embedder.Embed(ctx, text)
			return callErr
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return recovered, err
			}
			log.Printf("[PIPELINE] reembedding %s still unavailable: %v", record.ID, err)
			continue
		}

		fields := store.UpdateFields{Embedding: vec}
		clearFlag := record.NeedsReview && record.ReviewReason == types.ReasonEmbeddingUnavailable
		if clearFlag {
			cleared := false
			reason := ""
			fields.NeedsReview = &cleared
			fields.ReviewReason = &reason
		}
		if err := st.Update(ctx, record.ID, fields); err != nil {
			log.Printf("[PIPELINE] failed to store recovered embedding for %s: %v", record.ID, err)
			continue
		}
		record.Embedding = vec
		if clearFlag {
			record.NeedsReview = false
			record.ReviewReason = ""
		}
		if err := idx.Upsert(record.ID, vec); err != nil {
			log.Printf("[PIPELINE] failed to index %s: %v", record.ID, err)
		}
		log.Printf("[PIPELINE] recovered embedding for %s: %q", record.ID, record.Title)
		recovered = append(recovered, record)
	}
	return recovered, nil
}
