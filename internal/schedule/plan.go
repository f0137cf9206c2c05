// Package schedule assigns a sending domain and a scheduled_for instant
// to each item about to be moved from staged to queued. It is a pure
// function: every external fact (existing domain commitments, the
// current time, the source of jitter) is passed in, nothing is read
// from a store or a clock directly.
package schedule

import (
	"fmt"
	"time"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/pkg/timeutil"
)

// Config holds the spacing/working-hours parameters a plan is computed
// under. DefaultConfig returns the default values.
type Config struct {
	Sender           domain.SenderIdentity
	Timezone         string
	WorkStart        int
	WorkEnd          int
	IntervalMinutes  float64
	JitterSecondsMax float64
	SkipWeekends     bool
	DisableWorkHours bool
}

// DefaultConfig returns the configuration original_source/config.py ships
// as defaults.
func DefaultConfig(sender domain.SenderIdentity) Config {
	return Config{
		Sender:           sender,
		Timezone:         "America/Los_Angeles",
		WorkStart:        9,
		WorkEnd:          17,
		IntervalMinutes:  3.5,
		JitterSecondsMax: 30,
		SkipWeekends:     true,
		DisableWorkHours: false,
	}
}

// Input is one item awaiting a domain and schedule assignment.
type Input struct {
	QueueItemID string
	// PinnedDomainIndex is set when the item previously failed and is
	// being retried through the same domain it already used.
	PinnedDomainIndex *int
}

// Result is the domain and instant assigned to one input item.
type Result struct {
	QueueItemID  string
	DomainIndex  int
	ScheduledFor time.Time
	FromEmail    string
}

// JitterSource produces a uniform random value in [0, 1). Tests pass a
// deterministic stub; production wires math/rand/v2.Float64.
type JitterSource func() float64

// Plan assigns a (domain_index, scheduled_for) pair to each item in
// items, in order, given a snapshot of the latest scheduled_for per
// domain index across every queued/processing item system-wide
// (commitments). Round-robin assignment for unpinned items walks the
// domain pool in order starting from roundRobinStart and always
// advances by one per item, whether or not that item was pinned.
func Plan(cfg Config, commitments map[int]time.Time, items []Input, now time.Time, roundRobinStart int, jitter JitterSource) ([]Result, error) {
	loc, err := timeutil.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	poolSize := len(domain.BaseDomains)
	if poolSize == 0 {
		return nil, fmt.Errorf("domain pool is empty")
	}

	startTime := now
	if !cfg.DisableWorkHours {
		startTime = timeutil.StartTime(now, loc, cfg.WorkStart, cfg.WorkEnd, cfg.SkipWeekends)
	}
	interval := time.Duration(cfg.IntervalMinutes * float64(time.Minute))

	// domainCurrentTime holds the latest instant assigned to a domain
	// within THIS plan call; domainTouched distinguishes "we have
	// already scheduled onto this domain in this batch" from "this
	// domain only carries a pre-existing cross-campaign commitment".
	domainCurrentTime := make(map[int]time.Time, len(commitments))
	domainTouched := make(map[int]bool, len(commitments))

	results := make([]Result, 0, len(items))
	roundRobin := roundRobinStart

	for _, item := range items {
		var domainIndex int
		if item.PinnedDomainIndex != nil {
			domainIndex = *item.PinnedDomainIndex
		} else {
			domainIndex = roundRobin % poolSize
		}
		roundRobin++

		jitterDur := time.Duration(jitter() * cfg.JitterSecondsMax * float64(time.Second))

		var scheduledFor time.Time
		switch {
		case domainTouched[domainIndex]:
			// Already scheduled onto this domain earlier in this batch.
			scheduledFor = domainCurrentTime[domainIndex].Add(interval).Add(jitterDur)
		default:
			if existing, ok := commitments[domainIndex]; ok {
				// Domain carries a commitment from outside this batch.
				scheduledFor = existing.Add(interval).Add(jitterDur)
			} else {
				// First-ever use of this domain: no spacing to respect yet.
				scheduledFor = startTime.Add(jitterDur)
			}
		}

		if !cfg.DisableWorkHours {
			scheduledFor = timeutil.ClampToWorkingHours(scheduledFor, loc, cfg.WorkStart, cfg.WorkEnd, cfg.SkipWeekends)
		}

		domainCurrentTime[domainIndex] = scheduledFor
		domainTouched[domainIndex] = true

		_, fromEmail := domain.DomainAt(cfg.Sender, domainIndex)
		results = append(results, Result{
			QueueItemID:  item.QueueItemID,
			DomainIndex:  domainIndex,
			ScheduledFor: scheduledFor,
			FromEmail:    fromEmail,
		})
	}

	return results, nil
}
