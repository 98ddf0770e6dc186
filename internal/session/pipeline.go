package session

import (
	"context"
	"log"
	"time"

	"github.com/ethanbaker/avatar-client/internal/archive"
)

// evaluate waits for the backend to settle, then resolves and publishes the evaluation
func (c *Controller) evaluate(ctx context.Context, gen uint64, room string) {
	defer c.wg.Done()

	log.Printf("[SESSION]: Waiting %s for the transcript to settle...", c.opts.SettleDelay)
	timer := time.NewTimer(c.opts.SettleDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	entries := c.store.Snapshot()
	if len(entries) == 0 && room != "" {
		log.Printf("[SESSION]: No local transcript, fetching history for room '%s'", room)

		resp, err := c.history.FetchHistory(ctx, room)
		switch {
		case err != nil:
			log.Printf("[SESSION]: Failed to fetch conversation history: %v", err)
		case len(resp.Transcript) > 0:
			c.transcriptMu.Lock()
			if c.isCurrent(gen, StateEvaluationProcessing) {
				c.store.Replace(resp.Transcript)
			}
			c.transcriptMu.Unlock()
			entries = c.store.Snapshot()
		}
	}
	if ctx.Err() != nil {
		return
	}

	outcome, err := c.evaluator.Resolve(ctx, entries)
	if err != nil {
		log.Printf("[SESSION]: Evaluation cancelled: %v", err)
		return
	}

	// The backend's copy wins when it holds more of the conversation
	if len(outcome.Transcript) > 0 {
		c.transcriptMu.Lock()
		if c.isCurrent(gen, StateEvaluationProcessing) {
			c.store.ReplaceIfLonger(outcome.Transcript)
		}
		c.transcriptMu.Unlock()
	}

	c.mu.Lock()
	if c.generation != gen || c.state != StateEvaluationProcessing || ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.state = StateEvaluationReady
	c.outcome = &outcome
	c.pipelineCancel = nil
	record := c.recordLocked()
	c.mu.Unlock()

	log.Printf("[SESSION]: Evaluation ready (%s)", outcome.Kind)
	c.notify()

	c.save(record)
}

// recordLocked builds the archive record of the finished session
func (c *Controller) recordLocked() *archive.Record {
	record := archive.NewRecord(c.room, c.participant)
	record.DisconnectReason = c.reason
	record.Transcript = c.store.Snapshot()
	record.Outcome = *c.outcome
	record.StartedAt = c.startedAt
	record.EndedAt = c.endedAt
	return record
}

func (c *Controller) save(record *archive.Record) {
	if c.archive == nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.opts.RequestTimeout)
	defer cancel()

	if err := c.archive.Save(ctx, record); err != nil {
		log.Printf("[SESSION]: Failed to archive session %s: %v", record.ID, err)
	}
}

// reconcile adopts the backend transcript when it is strictly longer than the local one
func (c *Controller) reconcile() {
	c.mu.Lock()
	if c.state != StateActive || c.room == "" {
		c.mu.Unlock()
		return
	}
	gen, room := c.generation, c.room
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.ctx, c.opts.RequestTimeout)
	defer cancel()

	resp, err := c.history.FetchHistory(ctx, room)
	if err != nil {
		log.Printf("[SESSION]: Transcript reconciliation failed: %v", err)
		return
	}

	c.transcriptMu.Lock()
	defer c.transcriptMu.Unlock()

	if !c.isCurrent(gen, StateActive) {
		return
	}
	if c.store.ReplaceIfLonger(resp.Transcript) {
		log.Printf("[SESSION]: Adopted backend transcript for room '%s' (%d entries)", room, len(resp.Transcript))
	}
}
