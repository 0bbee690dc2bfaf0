// Package ingest turns raw mailbox messages into admitted task
// records, exactly once each.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/peytonb/inboxtasks/internal/model"
	"github.com/peytonb/inboxtasks/internal/source"
	"github.com/peytonb/inboxtasks/internal/store"
	"github.com/peytonb/inboxtasks/internal/summarize"
)

// metaKeyLastUID is the metadata key for the fetch watermark: the
// highest UID every message at or below which has been fully resolved
// (admitted or permanently dropped).
const metaKeyLastUID = "last_uid"

// Report summarizes one poll cycle.
type Report struct {
	Fetched         int
	Admitted        int
	DroppedCutoff   int
	DroppedDedup    int
	DroppedLabel    int
	DroppedRetry    int
	Held            int
	SummaryFallback bool
}

// Pipeline runs the fetch -> cutoff -> dedup -> classify -> summarize
// -> admit sequence for one mailbox. The poll controller guarantees at
// most one Run is in flight, so the retry counters need no lock.
type Pipeline struct {
	source     source.Source
	summarizer summarize.Summarizer
	store      store.Store
	cfg        *model.Config
	log        *zap.SugaredLogger

	// retries counts consecutive summarizer failures per UID. It lives
	// outside the store and is distinct from the permanent seen-UID
	// set: a held message has not been admitted yet.
	retries map[uint32]int
}

// New creates a pipeline. summarizer may be nil when ai.enabled is
// false; the heuristic fallback is used instead.
func New(
	src source.Source,
	summarizer summarize.Summarizer,
	st store.Store,
	cfg *model.Config,
	log *zap.SugaredLogger,
) *Pipeline {
	return &Pipeline{
		source:     src,
		summarizer: summarizer,
		store:      st,
		cfg:        cfg,
		log:        log,
		retries:    make(map[uint32]int),
	}
}

// Run executes one poll cycle. A source or persistence failure aborts
// the remainder of the cycle; records admitted before the failure stay
// admitted. Per-message summarizer and invariant errors are absorbed.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	var report Report

	watermark, err := p.loadWatermark(ctx)
	if err != nil {
		return report, err
	}

	cutoff, hasCutoff := p.cfg.Cutoff()

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout())
	defer cancel()

	messages, err := p.source.FetchNew(fetchCtx, watermark, cutoff)
	if err != nil {
		return report, fmt.Errorf("fetch failed: %w", err)
	}
	report.Fetched = len(messages)

	// maxResolved tracks the highest UID safe to skip next cycle;
	// minHeld pins the watermark below any message pending retry.
	maxResolved := watermark
	var minHeld uint32

	dropSet := p.cfg.DropLabelSet()

	defer func() {
		p.saveWatermark(ctx, watermark, maxResolved, minHeld)
	}()

	for _, msg := range messages {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		uid := strconv.FormatUint(uint64(msg.UID), 10)

		// Cutoff filter: permanently ignored, no record, no retry.
		if hasCutoff && msg.ReceivedAt.Before(cutoff) {
			report.DroppedCutoff++
			maxResolved = maxUID(maxResolved, msg.UID)
			continue
		}

		// Dedup filter: the store is the authority, across every
		// status and past deletion.
		seen, err := p.store.HasSeenUID(ctx, uid)
		if err != nil {
			return report, fmt.Errorf("dedup check for UID %s: %w", uid, err)
		}
		if seen {
			report.DroppedDedup++
			maxResolved = maxUID(maxResolved, msg.UID)
			continue
		}

		// Classification filter.
		if p.classifyEnabled() {
			label, err := p.summarizer.Classify(ctx, msg.Subject, msg.Body)
			if err != nil {
				// A confused classifier must not drop mail; treat the
				// message as actionable and move on.
				p.log.Warnw("classification failed, treating as actionable",
					"uid", uid, "error", err)
				label = summarize.LabelActionable
			}
			if _, drop := dropSet[label]; drop {
				if err := p.store.MarkSeenUID(ctx, uid); err != nil {
					return report, fmt.Errorf("marking dropped UID %s: %w", uid, err)
				}
				report.DroppedLabel++
				maxResolved = maxUID(maxResolved, msg.UID)
				p.log.Infow("dropped by label", "uid", uid, "label", label)
				continue
			}
		}

		summary, held, err := p.summarizeMessage(ctx, msg, uid, &report)
		if err != nil {
			return report, err
		}
		if held {
			report.Held++
			minHeld = minUID(minHeld, msg.UID)
			continue
		}
		if summary == "" {
			// Retry budget exhausted; dropped permanently.
			report.DroppedRetry++
			maxResolved = maxUID(maxResolved, msg.UID)
			continue
		}

		rec := model.TaskRecord{
			SourceUID:  uid,
			From:       msg.From,
			Subject:    msg.Subject,
			Snippet:    firstLine(msg.Body),
			Summary:    summary,
			Status:     model.StatusActive,
			ReceivedAt: msg.ReceivedAt,
			CreatedAt:  time.Now().UTC(),
		}

		if err := p.store.Insert(ctx, rec); err != nil {
			if errors.Is(err, store.ErrDuplicateUID) {
				// Lost a race with another writer; dedup held.
				p.log.Warnw("duplicate UID at insert", "uid", uid)
				report.DroppedDedup++
				maxResolved = maxUID(maxResolved, msg.UID)
				continue
			}
			return report, fmt.Errorf("admitting UID %s: %w", uid, err)
		}

		delete(p.retries, msg.UID)
		report.Admitted++
		maxResolved = maxUID(maxResolved, msg.UID)
		p.log.Infow("admitted task", "uid", uid, "from", msg.From)

		if p.cfg.IMAP.MarkAsRead {
			if err := p.source.MarkSeen(ctx, msg.UID); err != nil {
				p.log.Warnw("mark-as-read failed", "uid", uid, "error", err)
			}
		}
	}

	return report, nil
}

// summarizeMessage produces the summary line for one message. It
// returns held=true when the message should stay unseen for a later
// retry, and an empty summary with held=false when the retry budget is
// exhausted and the message was dropped.
func (p *Pipeline) summarizeMessage(
	ctx context.Context,
	msg source.RawMessage,
	uid string,
	report *Report,
) (summary string, held bool, err error) {
	if !p.cfg.AI.Enabled || p.summarizer == nil {
		report.SummaryFallback = true
		return summarize.HeuristicSummary(msg.Body, summarize.MaxSummaryLen), false, nil
	}

	summary, sumErr := p.summarizer.Summarize(ctx, msg.Subject, msg.Body)
	if sumErr == nil {
		return summary, false, nil
	}

	if !errors.Is(sumErr, summarize.ErrUnavailable) &&
		!errors.Is(sumErr, summarize.ErrQuotaExceeded) {
		// Unexpected failure class; treat like a transient outage.
		p.log.Warnw("unexpected summarizer error", "uid", uid, "error", sumErr)
	}

	p.retries[msg.UID]++
	if p.retries[msg.UID] <= p.cfg.AI.SummaryMaxRetries {
		p.log.Warnw("summarization failed, holding for retry",
			"uid", uid,
			"attempt", p.retries[msg.UID],
			"max", p.cfg.AI.SummaryMaxRetries,
			"error", sumErr)
		return "", true, nil
	}

	// Bounded retry exhausted: drop permanently so one poison message
	// cannot block the watermark forever.
	delete(p.retries, msg.UID)
	if err := p.store.MarkSeenUID(ctx, uid); err != nil {
		return "", false, fmt.Errorf("marking exhausted UID %s: %w", uid, err)
	}
	p.log.Warnw("summarization retries exhausted, message dropped",
		"uid", uid, "error", sumErr)
	return "", false, nil
}

func (p *Pipeline) classifyEnabled() bool {
	return p.cfg.AI.Enabled && p.cfg.AI.Classify && p.summarizer != nil
}

// loadWatermark reads the persisted last-UID watermark.
func (p *Pipeline) loadWatermark(ctx context.Context) (uint32, error) {
	raw, err := p.store.GetMetadata(ctx, metaKeyLastUID)
	if err != nil {
		return 0, fmt.Errorf("reading watermark: %w", err)
	}
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		// A corrupt watermark re-fetches everything; dedup absorbs it.
		p.log.Warnw("invalid watermark, resetting", "value", raw)
		return 0, nil
	}
	return uint32(v), nil
}

// saveWatermark advances the watermark to the highest fully-resolved
// UID, never past a message held for retry.
func (p *Pipeline) saveWatermark(ctx context.Context, old, maxResolved, minHeld uint32) {
	next := maxResolved
	if minHeld > 0 && minHeld-1 < next {
		next = minHeld - 1
	}
	if next <= old {
		return
	}

	err := p.store.SetMetadata(ctx, metaKeyLastUID, strconv.FormatUint(uint64(next), 10))
	if err != nil {
		p.log.Errorw("persisting watermark failed", "watermark", next, "error", err)
	}
}

// firstLine returns the first non-empty body line, clamped to the
// snippet length at a rune boundary.
func firstLine(body string) string {
	for _, line := range strings.Split(body, "\n") {
		s := strings.TrimSpace(line)
		if s != "" {
			if utf8.RuneCountInString(s) > summarize.MaxSummaryLen {
				s = string([]rune(s)[:summarize.MaxSummaryLen])
			}
			return s
		}
	}
	return ""
}

func maxUID(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func minUID(current, candidate uint32) uint32 {
	if current == 0 || candidate < current {
		return candidate
	}
	return current
}
