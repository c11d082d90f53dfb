package domain

// Paper is the submission side of a similarity computation.
type Paper struct {
	ID       string
	Title    string
	Abstract string
	Keywords []string
}

// Reviewer is the candidate side of a similarity computation.
type Reviewer struct {
	ID                string
	ExpertiseKeywords []string
	PastAbstracts     []string
}

// ExpertiseTier buckets a combined score.
type ExpertiseTier string

const (
	TierHigh   ExpertiseTier = "high"
	TierMedium ExpertiseTier = "medium"
	TierLow    ExpertiseTier = "low"
)

// SimilarityScore is the per (paper, reviewer) result.
// Invariants: Score in [0,1] with at most 3 decimals; Tier derived from Score.
type SimilarityScore struct {
	ReviewerID       string
	Score            float64
	MatchingKeywords []string
	CommonTopics     []string
	Tier             ExpertiseTier
	Rationale        string
}

// Match is a ranked SimilarityScore. Confidence always equals Score.
type Match struct {
	SimilarityScore
	Confidence float64
}

// COIPair forbids assigning ReviewerID to PaperID.
type COIPair struct {
	PaperID    string
	ReviewerID string
}

// ExistingAssignment is a pre-existing (paper, reviewer) link.
type ExistingAssignment struct {
	PaperID    string
	ReviewerID string
}

// AssignmentConstraints tune the allocator.
type AssignmentConstraints struct {
	MaxPapersPerReviewer int
	MinReviewersPerPaper int
	COIExclusions        []COIPair
	WorkloadBalance      bool
	// OverloadFactor multiplies the mean load; zero means the default.
	OverloadFactor float64
	// IgnoreExistingLoad keeps existing assignments out of the running counts.
	IgnoreExistingLoad bool
}

// DefaultAssignmentConstraints returns 5 papers / 3 reviewers with balancing on.
func DefaultAssignmentConstraints() AssignmentConstraints {
	return AssignmentConstraints{
		MaxPapersPerReviewer: 5,
		MinReviewersPerPaper: 3,
		WorkloadBalance:      true,
		OverloadFactor:       1.5,
	}
}

// Assignment is one suggested (paper, reviewer) pair.
type Assignment struct {
	PaperID    string
	ReviewerID string
	Score      float64
	Rationale  string
}

// AssignmentResult is the allocator output. Slices are never nil.
type AssignmentResult struct {
	SuggestedAssignments []Assignment
	UnassignedPapers     []string
	OverloadedReviewers  []string
	Rationale            string
}
