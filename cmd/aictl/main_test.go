package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "github.com/fairyhunter13/confms-ai-service/internal/adapter/httpserver"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
)

type fakeFlags struct {
	state  map[string]map[string]bool
	closed bool
}

func (f *fakeFlags) Seed(_ context.Context, conferences []string, flags map[string]map[string]bool) (int, error) {
	n := 0
	for _, c := range conferences {
		for name, on := range flags[c] {
			_ = f.Set(context.Background(), c, name, on)
			n++
		}
	}
	return n, nil
}

func (f *fakeFlags) List(_ context.Context, conferenceID string) ([]domain.FeatureFlag, error) {
	var out []domain.FeatureFlag
	for name, on := range f.state[conferenceID] {
		out = append(out, domain.FeatureFlag{ConferenceID: conferenceID, Feature: name, Enabled: on})
	}
	return out, nil
}

func (f *fakeFlags) Set(_ context.Context, conferenceID, feature string, enabled bool) error {
	if f.state[conferenceID] == nil {
		f.state[conferenceID] = map[string]bool{}
	}
	f.state[conferenceID][feature] = enabled
	return nil
}

func withFakeFlags(t *testing.T) *fakeFlags {
	t.Helper()
	fake := &fakeFlags{state: map[string]map[string]bool{}}
	orig := openFlags
	openFlags = func(context.Context) (flagStore, func(), error) {
		return fake, func() { fake.closed = true }, nil
	}
	t.Cleanup(func() { openFlags = orig })
	return fake
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTokenHash(t *testing.T) {
	out, err := run(t, "s3cret-token\n", "token", "hash")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(hash, "argon2id$"))
	assert.True(t, httpserver.VerifyToken("s3cret-token", hash))

	_, err = run(t, "\n", "token", "hash")
	assert.ErrorContains(t, err, "empty token")
}

func TestMigrateList(t *testing.T) {
	out, err := run(t, "", "migrate", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "000001_feature_flags.up.sql")
	assert.Contains(t, out, "000003_rate_limit_buckets.down.sql")
}

func TestParseSteps(t *testing.T) {
	n, err := parseSteps(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = parseSteps([]string{"3"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, bad := range []string{"0", "-2", "two"} {
		_, err := parseSteps([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestFlagsSetAndList(t *testing.T) {
	fake := withFakeFlags(t)

	out, err := run(t, "", "flags", "set", "--conference", "conf-1", "--feature", domain.FeatureEmailDraft, "--enabled=false")
	require.NoError(t, err)
	assert.Contains(t, out, "conf-1 email_draft enabled=false")
	assert.True(t, fake.closed)

	_, err = run(t, "", "flags", "set", "-c", "conf-1", "--feature", domain.FeatureGrammarCheck)
	require.NoError(t, err)

	out, err = run(t, "", "flags", "list", "-c", "conf-1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(domain.AvailableFeatures)+1)
	assert.Regexp(t, `^grammar_check\s+true$`, lines[1])
	assert.Regexp(t, `^email_draft\s+false$`, lines[len(lines)-1])
}

func TestFlagsSet_UnknownFeature(t *testing.T) {
	withFakeFlags(t)
	_, err := run(t, "", "flags", "set", "-c", "conf-1", "--feature", "time_travel")
	assert.ErrorContains(t, err, "unknown feature")
}

func TestFlagsSeed(t *testing.T) {
	fake := withFakeFlags(t)
	path := filepath.Join(t.TempDir(), "flags.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`conferences:
  conf-a:
    grammar_check: true
    email_draft: false
  conf-b:
    paper_synopsis: true
`), 0o600))

	out, err := run(t, "", "flags", "seed", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 3 flag(s) across 2 conference(s)")
	assert.True(t, fake.state["conf-a"]["grammar_check"])
	assert.True(t, fake.state["conf-b"]["paper_synopsis"])

	_, err = run(t, "", "flags", "seed")
	assert.Error(t, err)
}
