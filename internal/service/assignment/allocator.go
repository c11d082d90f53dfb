// Package assignment turns per-paper reviewer rankings into a greedy,
// constraint-respecting set of suggested assignments.
package assignment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/fairyhunter13/confms-ai-service/internal/adapter/observability"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	obsctx "github.com/fairyhunter13/confms-ai-service/internal/observability"
)

// Ranker ranks candidate reviewers for a single paper.
type Ranker interface {
	RankReviewers(ctx context.Context, paper domain.Paper, candidateIDs []string, reviewers map[string]domain.Reviewer) ([]domain.Match, error)
}

// Request is the allocator input.
type Request struct {
	PaperIDs    []string
	Papers      map[string]domain.Paper
	ReviewerIDs []string
	Reviewers   map[string]domain.Reviewer
	Constraints domain.AssignmentConstraints
	Existing    []domain.ExistingAssignment
}

// Allocator suggests reviewer assignments.
type Allocator struct {
	ranker Ranker
}

// NewAllocator returns an Allocator backed by ranker.
func NewAllocator(ranker Ranker) *Allocator { return &Allocator{ranker: ranker} }

type candidate struct {
	paperID    string
	reviewerID string
	score      float64
	rationale  string
}

type pair struct{ paper, reviewer string }

// Suggest computes assignments. Only malformed constraints or an empty paper
// list produce an error; per-paper failures are logged and skipped. Pairs in
// Existing are never suggested again and, unless IgnoreExistingLoad is set,
// count toward both the reviewer cap and the paper minimum.
func (a *Allocator) Suggest(ctx context.Context, req Request) (domain.AssignmentResult, error) {
	lg := obsctx.LoggerFromContext(ctx)
	c := req.Constraints
	paperIDs := dedupe(req.PaperIDs)
	if len(paperIDs) == 0 {
		return domain.AssignmentResult{}, fmt.Errorf("op=assignment.Suggest: %w: no paper ids", domain.ErrInvalidInput)
	}
	if c.MaxPapersPerReviewer < 1 || c.MinReviewersPerPaper < 1 {
		return domain.AssignmentResult{}, fmt.Errorf("op=assignment.Suggest: %w: max_papers_per_reviewer and min_reviewers_per_paper must be >= 1", domain.ErrInvalidInput)
	}
	if c.OverloadFactor <= 0 {
		c.OverloadFactor = domain.DefaultAssignmentConstraints().OverloadFactor
	}
	reviewerIDs := dedupe(req.ReviewerIDs)

	coi := make(map[pair]struct{}, len(c.COIExclusions))
	for _, p := range c.COIExclusions {
		coi[pair{p.PaperID, p.ReviewerID}] = struct{}{}
	}
	existing := make(map[pair]struct{}, len(req.Existing))
	for _, e := range req.Existing {
		existing[pair{e.PaperID, e.ReviewerID}] = struct{}{}
	}

	var candidates []candidate
	for _, pid := range paperIDs {
		paper, ok := req.Papers[pid]
		if !ok {
			lg.Warn("paper data missing; skipping", slog.String("paper_id", pid))
			continue
		}
		if paper.ID == "" {
			paper.ID = pid
		}
		matches, err := a.ranker.RankReviewers(ctx, paper, reviewerIDs, req.Reviewers)
		if err != nil {
			lg.Warn("ranking failed; skipping paper", slog.String("paper_id", pid), slog.Any("error", err))
			continue
		}
		for _, m := range matches {
			if _, blocked := coi[pair{pid, m.ReviewerID}]; blocked {
				continue
			}
			if _, held := existing[pair{pid, m.ReviewerID}]; held {
				continue
			}
			candidates = append(candidates, candidate{paperID: pid, reviewerID: m.ReviewerID, score: m.Score, rationale: m.Rationale})
		}
	}

	known := make(map[string]bool, len(reviewerIDs))
	for _, id := range reviewerIDs {
		known[id] = true
	}
	requested := make(map[string]bool, len(paperIDs))
	for _, id := range paperIDs {
		requested[id] = true
	}
	// existing pairs count once each toward reviewer load and paper coverage
	load := make(map[string]int, len(reviewerIDs))
	perPaper := make(map[string]int, len(paperIDs))
	if !c.IgnoreExistingLoad {
		for p := range existing {
			if known[p.reviewer] {
				load[p.reviewer]++
			}
			if requested[p.paper] {
				perPaper[p.paper]++
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	suggested := make([]domain.Assignment, 0, len(candidates))
	for _, cand := range candidates {
		if perPaper[cand.paperID] >= c.MinReviewersPerPaper {
			continue
		}
		if load[cand.reviewerID] >= c.MaxPapersPerReviewer {
			continue
		}
		perPaper[cand.paperID]++
		load[cand.reviewerID]++
		suggested = append(suggested, domain.Assignment{
			PaperID:    cand.paperID,
			ReviewerID: cand.reviewerID,
			Score:      cand.score,
			Rationale:  cand.rationale,
		})
	}

	unassigned := []string{}
	for _, pid := range paperIDs {
		if perPaper[pid] < c.MinReviewersPerPaper {
			unassigned = append(unassigned, pid)
		}
	}

	overloaded := []string{}
	if c.WorkloadBalance {
		overloaded = Overloaded(reviewerIDs, load, c.OverloadFactor)
	}

	rationale := fmt.Sprintf("Suggested %d assignments. Max %d papers per reviewer. Min %d reviewers per paper",
		len(suggested), c.MaxPapersPerReviewer, c.MinReviewersPerPaper)
	if len(unassigned) > 0 {
		rationale += fmt.Sprintf(". %d papers need more reviewers", len(unassigned))
	}

	observability.ObserveAllocation(len(suggested), len(unassigned))
	lg.Info("assignment suggestion computed",
		slog.Int("papers", len(paperIDs)),
		slog.Int("reviewers", len(reviewerIDs)),
		slog.Int("suggested", len(suggested)),
		slog.Int("unassigned", len(unassigned)))

	return domain.AssignmentResult{
		SuggestedAssignments: suggested,
		UnassignedPapers:     unassigned,
		OverloadedReviewers:  overloaded,
		Rationale:            rationale,
	}, nil
}

// Overloaded lists reviewers, in ids order, whose load exceeds factor times the mean.
func Overloaded(ids []string, load map[string]int, factor float64) []string {
	out := []string{}
	if len(ids) == 0 {
		return out
	}
	total := 0
	for _, id := range ids {
		total += load[id]
	}
	limit := factor * float64(total) / float64(len(ids))
	for _, id := range ids {
		if float64(load[id]) > limit {
			out = append(out, id)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
