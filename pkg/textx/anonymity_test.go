package textx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckAnonymityClean(t *testing.T) {
	s := "The paper proposes a graph-based method for protein folding and evaluates it on two benchmarks."
	rep := CheckAnonymity(s, nil)
	assert.True(t, rep.Valid)
	assert.Empty(t, rep.Issues)
	assert.Equal(t, s, rep.Redacted)
}

func TestCheckAnonymityLeaks(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		authors []string
		gone    string
	}{
		{"et al", "Extending Nguyen et al. the method improves recall.", nil, "Nguyen et al."},
		{"title", "Work led by Dr. Tran shows gains.", nil, "Dr. Tran"},
		{"affiliation", "Experiments ran at the University of Danang cluster.", nil, "University of Danang"},
		{"known author", "Building on Hoang's earlier system, results improve.", []string{"Minh Hoang"}, "Hoang"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := CheckAnonymity(tt.text, tt.authors)
			assert.False(t, rep.Valid)
			assert.NotEmpty(t, rep.Issues)
			assert.NotContains(t, rep.Redacted, tt.gone)
		})
	}
}
