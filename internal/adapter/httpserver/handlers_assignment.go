package httpserver

import (
	"net/http"

	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	"github.com/fairyhunter13/confms-ai-service/internal/usecase"
)

type reviewerData struct {
	ExpertiseKeywords []string `json:"expertise_keywords" validate:"max=100,dive,max=200"`
	PastAbstracts     []string `json:"past_abstracts" validate:"max=20,dive,max=5000"`
}

type paperData struct {
	Title    string   `json:"title" validate:"max=500"`
	Abstract string   `json:"abstract" validate:"max=5000"`
	Keywords []string `json:"keywords" validate:"max=50,dive,max=200"`
}

type coiPair struct {
	PaperID    string `json:"paper_id" validate:"required"`
	ReviewerID string `json:"reviewer_id" validate:"required"`
}

type constraintsRequest struct {
	MaxPapersPerReviewer *int      `json:"max_papers_per_reviewer"`
	MinReviewersPerPaper *int      `json:"min_reviewers_per_paper"`
	COIExclusions        []coiPair `json:"coi_exclusions" validate:"dive"`
	WorkloadBalance      *bool     `json:"workload_balance"`
	OverloadFactor       *float64  `json:"overload_factor" validate:"omitempty,gt=0"`
	IgnoreExistingLoad   bool      `json:"ignore_existing_load"`
}

// toDomain fills every missing field from the defaults.
func (c *constraintsRequest) toDomain() *domain.AssignmentConstraints {
	out := domain.DefaultAssignmentConstraints()
	if c == nil {
		return &out
	}
	if c.MaxPapersPerReviewer != nil {
		out.MaxPapersPerReviewer = *c.MaxPapersPerReviewer
	}
	if c.MinReviewersPerPaper != nil {
		out.MinReviewersPerPaper = *c.MinReviewersPerPaper
	}
	if c.WorkloadBalance != nil {
		out.WorkloadBalance = *c.WorkloadBalance
	}
	if c.OverloadFactor != nil {
		out.OverloadFactor = *c.OverloadFactor
	}
	out.IgnoreExistingLoad = c.IgnoreExistingLoad
	for _, p := range c.COIExclusions {
		out.COIExclusions = append(out.COIExclusions, domain.COIPair(p))
	}
	return &out
}

// reviewersFrom keeps ids order and drops ids that have no entry in data.
func reviewersFrom(r *http.Request, ids []string, data map[string]reviewerData) []domain.Reviewer {
	out := make([]domain.Reviewer, 0, len(ids))
	for _, id := range ids {
		d, ok := data[id]
		if !ok {
			LoggerFrom(r).Warn("reviewer data missing; skipping", "reviewer_id", id)
			continue
		}
		out = append(out, domain.Reviewer{ID: id, ExpertiseKeywords: d.ExpertiseKeywords, PastAbstracts: d.PastAbstracts})
	}
	return out
}

type matchResponse struct {
	ReviewerID       string   `json:"reviewer_id"`
	SimilarityScore  float64  `json:"similarity_score"`
	Confidence       float64  `json:"confidence"`
	MatchingKeywords []string `json:"matching_keywords"`
	CommonTopics     []string `json:"common_topics"`
	ExpertiseMatch   string   `json:"expertise_match"`
	Rationale        string   `json:"rationale"`
}

// CalculateSimilarityHandler serves POST /api/v1/assignment/calculate-similarity.
func (s *Server) CalculateSimilarityHandler() http.HandlerFunc {
	type request struct {
		PaperID       string                  `json:"paper_id" validate:"required,max=100"`
		PaperTitle    string                  `json:"paper_title" validate:"max=500"`
		PaperAbstract string                  `json:"paper_abstract" validate:"max=5000"`
		PaperKeywords []string                `json:"paper_keywords" validate:"max=50,dive,max=200"`
		ReviewerIDs   []string                `json:"reviewer_ids" validate:"required,min=1,max=500,dive,required"`
		ReviewerData  map[string]reviewerData `json:"reviewer_data" validate:"required,dive"`
		ConferenceID  string                  `json:"conference_id" validate:"required,max=100"`
		UserID        string                  `json:"user_id" validate:"max=100"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		if details, err := requireText(map[string]string{"paper_title": req.PaperTitle, "paper_abstract": req.PaperAbstract}); err != nil {
			writeError(w, r, err, details)
			return
		}
		matches, err := s.Assignment.CalculateSimilarity(r.Context(), usecase.SimilarityInput{
			Caller: usecase.Caller{ConferenceID: req.ConferenceID, UserID: req.UserID},
			Paper: domain.Paper{
				ID:       req.PaperID,
				Title:    req.PaperTitle,
				Abstract: req.PaperAbstract,
				Keywords: req.PaperKeywords,
			},
			Reviewers: reviewersFrom(r, req.ReviewerIDs, req.ReviewerData),
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]matchResponse, 0, len(matches))
		for _, m := range matches {
			out = append(out, matchResponse{
				ReviewerID:       m.ReviewerID,
				SimilarityScore:  m.Score,
				Confidence:       m.Confidence,
				MatchingKeywords: nonNilStrings(m.MatchingKeywords),
				CommonTopics:     nonNilStrings(m.CommonTopics),
				ExpertiseMatch:   string(m.Tier),
				Rationale:        m.Rationale,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"matches":   out,
			"ranked_by": "similarity_score",
			"paper_id":  req.PaperID,
		})
	}
}

type assignmentResponse struct {
	PaperID    string  `json:"paper_id"`
	ReviewerID string  `json:"reviewer_id"`
	Score      float64 `json:"score"`
	Rationale  string  `json:"rationale"`
}

// SuggestAssignmentsHandler serves POST /api/v1/assignment/suggest-assignments.
func (s *Server) SuggestAssignmentsHandler() http.HandlerFunc {
	type existing struct {
		PaperID    string `json:"paper_id" validate:"required"`
		ReviewerID string `json:"reviewer_id" validate:"required"`
	}
	type request struct {
		ConferenceID        string                  `json:"conference_id" validate:"required,max=100"`
		PaperIDs            []string                `json:"paper_ids" validate:"required,min=1,max=2000,dive,required"`
		PaperData           map[string]paperData    `json:"paper_data" validate:"dive"`
		ReviewerIDs         []string                `json:"reviewer_ids" validate:"max=2000,dive,required"`
		ReviewerData        map[string]reviewerData `json:"reviewer_data" validate:"dive"`
		Constraints         *constraintsRequest     `json:"constraints"`
		ExistingAssignments []existing              `json:"existing_assignments" validate:"dive"`
		UserID              string                  `json:"user_id" validate:"max=100"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		// papers without data stay in paper_ids so they are reported as unassigned
		papers := make([]domain.Paper, 0, len(req.PaperIDs))
		for _, id := range req.PaperIDs {
			d, ok := req.PaperData[id]
			if !ok {
				continue
			}
			papers = append(papers, domain.Paper{ID: id, Title: d.Title, Abstract: d.Abstract, Keywords: d.Keywords})
		}
		ex := make([]domain.ExistingAssignment, len(req.ExistingAssignments))
		for i, e := range req.ExistingAssignments {
			ex[i] = domain.ExistingAssignment(e)
		}
		res, err := s.Assignment.SuggestAssignments(r.Context(), usecase.SuggestInput{
			Caller:      usecase.Caller{ConferenceID: req.ConferenceID, UserID: req.UserID},
			PaperIDs:    req.PaperIDs,
			Papers:      papers,
			ReviewerIDs: req.ReviewerIDs,
			Reviewers:   reviewersFrom(r, req.ReviewerIDs, req.ReviewerData),
			Constraints: req.Constraints.toDomain(),
			Existing:    ex,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]assignmentResponse, 0, len(res.SuggestedAssignments))
		for _, a := range res.SuggestedAssignments {
			out = append(out, assignmentResponse(a))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"suggested_assignments": out,
			"unassigned_papers":     nonNilStrings(res.UnassignedPapers),
			"overloaded_reviewers":  nonNilStrings(res.OverloadedReviewers),
			"rationale":             res.Rationale,
		})
	}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
