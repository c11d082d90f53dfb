package usecase

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	obsctx "github.com/fairyhunter13/confms-ai-service/internal/observability"
	"github.com/fairyhunter13/confms-ai-service/internal/service/assignment"
	"github.com/fairyhunter13/confms-ai-service/internal/service/similarity"
)

// Suggester produces an allocation for a request.
type Suggester interface {
	Suggest(ctx context.Context, req assignment.Request) (domain.AssignmentResult, error)
}

// AssignmentService exposes reviewer ranking and allocation to chairs.
type AssignmentService struct {
	Ranker    assignment.Ranker
	Allocator Suggester
	Guard     Guard
	Audit     *Auditor
	ModelID   string
}

// NewAssignmentService allocates on top of scorer.
func NewAssignmentService(scorer *similarity.Scorer, guard Guard, audit *Auditor, modelID string) AssignmentService {
	return AssignmentService{
		Ranker:    scorer,
		Allocator: assignment.NewAllocator(scorer),
		Guard:     guard,
		Audit:     audit,
		ModelID:   modelID,
	}
}

// SimilarityInput ranks Reviewers against one Paper.
type SimilarityInput struct {
	Caller
	Paper     domain.Paper
	Reviewers []domain.Reviewer
}

// CalculateSimilarity ranks reviewers by descending similarity to the paper.
func (s AssignmentService) CalculateSimilarity(ctx context.Context, in SimilarityInput) ([]domain.Match, error) {
	if len(in.Reviewers) == 0 {
		return nil, fmt.Errorf("%w: at least one reviewer is required", domain.ErrInvalidArgument)
	}
	ctx = obsctx.WithConference(ctx, in.ConferenceID, domain.FeatureReviewerSimilarity)
	if err := s.Guard.Allow(ctx, in.ConferenceID, domain.FeatureReviewerSimilarity); err != nil {
		return nil, err
	}
	ids, byID := indexReviewers(in.Reviewers)
	matches, err := s.Ranker.RankReviewers(ctx, in.Paper, ids, byID)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []domain.Match{}
	}
	top := 0.0
	if len(matches) > 0 {
		top = matches[0].Score
	}
	s.audit(ctx, in.Caller, domain.FeatureReviewerSimilarity, "calculate_similarity",
		fmt.Sprintf("paper_id: %s, reviewers: %d", in.Paper.ID, len(ids)),
		fmt.Sprintf("ranked %d reviewers for paper %s", len(matches), in.Paper.ID),
		map[string]any{"paper_id": in.Paper.ID, "reviewers_count": len(ids), "top_score": top})
	return matches, nil
}

// SuggestInput asks for an allocation. Nil Constraints means the defaults.
// PaperIDs may list papers absent from Papers; they end up unassigned.
// ReviewerIDs is the full roster: reviewers absent from Reviewers are never
// assigned but still count toward the mean load. Empty means the ids of Reviewers.
type SuggestInput struct {
	Caller
	PaperIDs    []string
	Papers      []domain.Paper
	ReviewerIDs []string
	Reviewers   []domain.Reviewer
	Constraints *domain.AssignmentConstraints
	Existing    []domain.ExistingAssignment
}

// SuggestAssignments runs the greedy allocator over every submitted paper.
func (s AssignmentService) SuggestAssignments(ctx context.Context, in SuggestInput) (domain.AssignmentResult, error) {
	ctx = obsctx.WithConference(ctx, in.ConferenceID, domain.FeatureAssignmentSuggestion)
	if err := s.Guard.Allow(ctx, in.ConferenceID, domain.FeatureAssignmentSuggestion); err != nil {
		return domain.AssignmentResult{}, err
	}
	c := domain.DefaultAssignmentConstraints()
	if in.Constraints != nil {
		c = *in.Constraints
	}
	paperIDs := in.PaperIDs
	papers := make(map[string]domain.Paper, len(in.Papers))
	for _, p := range in.Papers {
		if len(in.PaperIDs) == 0 {
			paperIDs = append(paperIDs, p.ID)
		}
		if _, dup := papers[p.ID]; !dup {
			papers[p.ID] = p
		}
	}
	reviewerIDs, reviewers := indexReviewers(in.Reviewers)
	if len(in.ReviewerIDs) > 0 {
		reviewerIDs = in.ReviewerIDs
	}
	res, err := s.Allocator.Suggest(ctx, assignment.Request{
		PaperIDs:    paperIDs,
		Papers:      papers,
		ReviewerIDs: reviewerIDs,
		Reviewers:   reviewers,
		Constraints: c,
		Existing:    in.Existing,
	})
	if err != nil {
		return domain.AssignmentResult{}, err
	}
	s.audit(ctx, in.Caller, domain.FeatureAssignmentSuggestion, "suggest_assignments",
		fmt.Sprintf("papers: %d, reviewers: %d, max_per_reviewer: %d, min_per_paper: %d",
			len(paperIDs), len(reviewerIDs), c.MaxPapersPerReviewer, c.MinReviewersPerPaper),
		res.Rationale,
		map[string]any{
			"assignments_count": len(res.SuggestedAssignments),
			"unassigned_count":  len(res.UnassignedPapers),
			"overloaded_count":  len(res.OverloadedReviewers),
		})
	return res, nil
}

func (s AssignmentService) audit(ctx context.Context, c Caller, feature, action, prompt, output string, meta map[string]any) {
	if s.Audit == nil {
		return
	}
	s.Audit.Record(ctx, AuditRecord{
		ConferenceID: c.ConferenceID,
		UserID:       c.UserID,
		Feature:      feature,
		Action:       action,
		Prompt:       prompt,
		ModelID:      s.ModelID,
		Output:       output,
		Metadata:     meta,
	})
}

func indexReviewers(rs []domain.Reviewer) ([]string, map[string]domain.Reviewer) {
	ids := make([]string, 0, len(rs))
	byID := make(map[string]domain.Reviewer, len(rs))
	for _, r := range rs {
		if _, dup := byID[r.ID]; dup {
			continue
		}
		ids = append(ids, r.ID)
		byID[r.ID] = r
	}
	return ids, byID
}
