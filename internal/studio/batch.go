package studio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/semaphore"

	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/media"
)

// RegeneratePolicy decides what GenerateAll does with slots that already have an asset
type RegeneratePolicy string

const (
	// PolicySkipExisting leaves generated slots alone
	PolicySkipExisting RegeneratePolicy = "skip-existing"
	// PolicyOverwrite regenerates every slot
	PolicyOverwrite RegeneratePolicy = "overwrite"
)

// ParsePolicy accepts "skip-existing" (the default for "") and "overwrite"
func ParsePolicy(s string) (RegeneratePolicy, error) {
	switch RegeneratePolicy(s) {
	case "", PolicySkipExisting:
		return PolicySkipExisting, nil
	case PolicyOverwrite:
		return PolicyOverwrite, nil
	}
	return "", clierrors.ValidationError(fmt.Errorf("unknown regenerate policy %q", s), "Use skip-existing or overwrite.")
}

// BatchReport is the per-scene result of GenerateAll, in board order
type BatchReport struct {
	Media     media.Type    `json:"media"`
	Outcomes  []Outcome     `json:"outcomes"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Canceled  int           `json:"canceled"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Errors returns the failed outcomes
func (r BatchReport) Errors() []Outcome {
	return lo.Filter(r.Outcomes, func(o Outcome, _ int) bool { return o.Error != "" })
}

// GenerateAll runs one generation per scene, bounded by MaxConcurrency and
// paced by the submission rate limiter. Scene failures are recorded in the
// report and never abort the batch.
func (s *Studio) GenerateAll(ctx context.Context, m media.Type, token string, policy RegeneratePolicy) BatchReport {
	started := time.Now()
	report := BatchReport{Media: m}
	if policy == "" {
		policy = PolicySkipExisting
	}

	ids := s.store.SceneIDs()
	report.Outcomes = make([]Outcome, len(ids))
	sem := semaphore.NewWeighted(int64(s.maxConcurrency))

	var wg sync.WaitGroup
	for i, id := range ids {
		report.Outcomes[i] = Outcome{SceneID: id, Media: m}

		if policy == PolicySkipExisting {
			if sc, err := s.store.Scene(id); err == nil && sc.SlotOf(m).Generated {
				report.Outcomes[i].Skipped = true
				s.publishDone(report.Outcomes[i])
				continue
			}
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			report.Outcomes[i].Canceled = true
			s.publishDone(report.Outcomes[i])
			continue
		}

		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()
			defer sem.Release(1)
			report.Outcomes[i] = s.runOne(ctx, id, m, token)
			s.publishDone(report.Outcomes[i])
		}(i, id)
	}
	wg.Wait()

	report.Succeeded = lo.CountBy(report.Outcomes, func(o Outcome) bool { return o.URL != "" })
	report.Failed = lo.CountBy(report.Outcomes, func(o Outcome) bool { return o.Error != "" })
	report.Skipped = lo.CountBy(report.Outcomes, func(o Outcome) bool { return o.Skipped })
	report.Canceled = lo.CountBy(report.Outcomes, func(o Outcome) bool { return o.Canceled })
	report.Elapsed = time.Since(started)

	s.logger.Info("Batch finished",
		"media", m,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"canceled", report.Canceled,
	)
	s.publish(Event{Type: EventBatch, Media: m, Batch: &report})
	return report
}

func (s *Studio) runOne(ctx context.Context, id int, m media.Type, token string) (out Outcome) {
	out = Outcome{SceneID: id, Media: m}
	defer func() {
		if v := recover(); v != nil {
			err := recovered(v)
			s.logger.Error("Generation panicked", "scene", id, "media", m, "error", err)
			out.Error = err.Error()
		}
	}()

	if err := s.limiter.Wait(ctx); err != nil {
		out.Canceled = true
		return out
	}

	res, err := s.Generate(ctx, id, m, token)
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func (s *Studio) publishDone(o Outcome) {
	s.publish(Event{Type: EventSceneDone, SceneID: o.SceneID, Media: o.Media, Outcome: &o, Error: o.Error})
}
