package title

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/labor-atlas/internal/model"
)

func defaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultRules(), 0.5)
	require.NoError(t, err)
	return c
}

func TestClassify_SeniorSoftwareEngineer(t *testing.T) {
	c := defaultClassifier(t)

	cl := c.Classify("Senior Software Engineer")
	assert.True(t, cl.RoleMatched)
	assert.Equal(t, int64(1), cl.RoleID)
	assert.GreaterOrEqual(t, cl.RoleConfidence, 0.8)
	assert.Equal(t, model.SenioritySenior, cl.Seniority)
	assert.GreaterOrEqual(t, cl.SeniorityConfidence, 0.8)
	assert.False(t, c.BelowThreshold(cl))
}

func TestClassify_EmptyTitle(t *testing.T) {
	c := defaultClassifier(t)

	cl := c.Classify("")
	assert.False(t, cl.RoleMatched)
	assert.True(t, c.BelowThreshold(cl))
}

func TestClassify_GarbageTitle(t *testing.T) {
	c := defaultClassifier(t)

	cl := c.Classify("xyzzy fnord 123")
	assert.False(t, cl.RoleMatched)
	assert.True(t, c.BelowThreshold(cl))
}

func TestClassify_CatchAllBelowThreshold(t *testing.T) {
	c := defaultClassifier(t)

	// "Nuclear Engineer" only hits the broad catch-all whose confidence
	// sits under the threshold, so it goes to review.
	cl := c.Classify("Nuclear Engineer")
	assert.True(t, cl.RoleMatched)
	assert.True(t, c.BelowThreshold(cl))
}

func TestClassify_SeniorityIndependent(t *testing.T) {
	c := defaultClassifier(t)

	// No role rule matches, seniority cue still fires.
	cl := c.Classify("Senior Basket Weaver")
	assert.False(t, cl.RoleMatched)
	assert.Equal(t, model.SenioritySenior, cl.Seniority)
}

func TestClassify_SeniorityCues(t *testing.T) {
	cases := []struct {
		title string
		want  model.Seniority
	}{
		{"Software Engineering Intern", model.SeniorityIntern},
		{"Junior Data Analyst", model.SeniorityEntry},
		{"Associate Product Manager", model.SeniorityEntry},
		{"Data Scientist", model.SeniorityMid},
		{"Sr. Software Engineer", model.SenioritySenior},
		{"Staff Software Engineer", model.SeniorityLead},
		{"Principal Engineer", model.SeniorityLead},
		{"Engineering Manager", model.SeniorityManager},
		{"Director of Engineering", model.SeniorityDirector},
		{"VP of Sales", model.SeniorityExec},
		{"Chief Technology Officer", model.SeniorityExec},
	}
	for _, tc := range cases {
		got, _ := classifySeniority(tc.title)
		assert.Equal(t, tc.want, got, "title %q", tc.title)
	}
}

func TestClassify_NoFalseInternOnInternational(t *testing.T) {
	got, _ := classifySeniority("International Sales Representative")
	assert.Equal(t, model.SeniorityMid, got)
}

func TestClassify_ManagerOutranksSenior(t *testing.T) {
	got, _ := classifySeniority("Senior Engineering Manager")
	assert.Equal(t, model.SeniorityManager, got)
}

func TestClassify_PriorityOrdering(t *testing.T) {
	rules := []model.TitleRule{
		{ID: 1, Pattern: `engineer`, RoleID: 10, Confidence: 0.4, Priority: 30},
		{ID: 2, Pattern: `software engineer`, RoleID: 20, Confidence: 0.9, Priority: 10},
	}
	c, err := NewClassifier(rules, 0.5)
	require.NoError(t, err)

	cl := c.Classify("Software Engineer")
	assert.Equal(t, int64(20), cl.RoleID, "lower priority value wins")
}

func TestClassify_EqualPriorityInsertionOrderTieBreak(t *testing.T) {
	rules := []model.TitleRule{
		{ID: 2, Pattern: `engineer`, RoleID: 20, Confidence: 0.8, Priority: 10},
		{ID: 1, Pattern: `engineer`, RoleID: 10, Confidence: 0.8, Priority: 10},
	}
	c, err := NewClassifier(rules, 0.5)
	require.NoError(t, err)

	cl := c.Classify("Engineer")
	assert.Equal(t, int64(10), cl.RoleID, "equal priority ties break by ID")
}

func TestClassify_RuleSeniorityOverride(t *testing.T) {
	rules := []model.TitleRule{
		{ID: 1, Pattern: `graduate\s+engineer`, RoleID: 1, Seniority: model.SeniorityEntry, Confidence: 0.9, Priority: 10},
	}
	c, err := NewClassifier(rules, 0.5)
	require.NoError(t, err)

	cl := c.Classify("Graduate Engineer")
	assert.Equal(t, model.SeniorityEntry, cl.Seniority)
}

func TestNewClassifier_BadPattern(t *testing.T) {
	_, err := NewClassifier([]model.TitleRule{{ID: 1, Pattern: `([`, RoleID: 1}}, 0.5)
	assert.Error(t, err)
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `rules:
  - id: 1
    pattern: 'data scientist'
    role_id: 2
    confidence: 0.95
    priority: 10
  - id: 2
    pattern: 'graduate engineer'
    role_id: 1
    seniority: entry
    confidence: 0.9
    priority: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, int64(2), rules[0].RoleID)
	assert.Equal(t, model.SeniorityEntry, rules[1].Seniority)
}

func TestLoadRules_MissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - id: 1\n    confidence: 0.5\n"), 0o644))

	_, err := LoadRules(path)
	assert.Error(t, err)
}
