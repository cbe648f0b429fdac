// Package title maps raw job titles to canonical roles and seniority
// levels. Role classification is deterministic: an ordered rule table is
// evaluated first-match-wins. Seniority is inferred independently from
// lexical cues, so either side can fail without taking the other down.
package title

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/labor-atlas/internal/model"
)

// Classification is the result of classifying one raw title.
type Classification struct {
	RoleID              int64
	RoleConfidence      float64
	RoleMatched         bool
	Seniority           model.Seniority
	SeniorityConfidence float64
}

// compiledRule pairs a TitleRule with its compiled pattern.
type compiledRule struct {
	rule model.TitleRule
	re   *regexp.Regexp
}

// Classifier evaluates the rule table against raw titles.
type Classifier struct {
	rules     []compiledRule
	threshold float64
}

// NewClassifier compiles the rule set. Rules are ordered by priority
// (lower first), then by ID as a stable tie-break for equal priorities.
// threshold is the minimum role confidence below which a title is routed
// to human review instead of producing an observation.
func NewClassifier(rules []model.TitleRule, threshold float64) (*Classifier, error) {
	sorted := make([]model.TitleRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].ID < sorted[j].ID
	})

	compiled := make([]compiledRule, 0, len(sorted))
	for _, r := range sorted {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "title: compile rule %d pattern %q", r.ID, r.Pattern)
		}
		compiled = append(compiled, compiledRule{rule: r, re: re})
	}

	if threshold <= 0 {
		threshold = 0.5
	}
	return &Classifier{rules: compiled, threshold: threshold}, nil
}

// Threshold returns the review-queue confidence threshold.
func (c *Classifier) Threshold() float64 { return c.threshold }

// Classify maps a raw title to a role and seniority. Role confidence of
// zero with RoleMatched=false means no rule matched at all; confidence
// below the threshold means the match is too weak to trust. Callers are
// responsible for routing either case to the review queue.
func (c *Classifier) Classify(rawTitle string) Classification {
	out := Classification{}
	title := strings.TrimSpace(rawTitle)

	out.Seniority, out.SeniorityConfidence = classifySeniority(title)

	if title == "" {
		return out
	}

	for _, cr := range c.rules {
		if cr.re.MatchString(title) {
			out.RoleID = cr.rule.RoleID
			out.RoleConfidence = cr.rule.Confidence
			out.RoleMatched = true
			if cr.rule.Seniority != "" {
				out.Seniority = cr.rule.Seniority
				out.SeniorityConfidence = cr.rule.Confidence
			}
			return out
		}
	}
	return out
}

// BelowThreshold reports whether a classification should be queued for
// human review rather than producing an observation.
func (c *Classifier) BelowThreshold(cl Classification) bool {
	return !cl.RoleMatched || cl.RoleConfidence < c.threshold
}

// seniorityCue is one ordered lexical cue. Earlier cues win: "senior
// engineering manager" classifies as manager, not senior.
type seniorityCue struct {
	terms      []string
	level      model.Seniority
	confidence float64
}

// seniorityCues is evaluated in order; the first matching cue wins.
// Executive and management cues outrank individual-contributor
// modifiers so compound titles land on the stronger signal.
var seniorityCues = []seniorityCue{
	{[]string{"intern", "internship", "co op", "coop"}, model.SeniorityIntern, 0.95},
	{[]string{"chief", "cto", "ceo", "cfo", "coo", "president", "evp", "svp", "vice president", "vp"}, model.SeniorityExec, 0.9},
	{[]string{"director", "head of"}, model.SeniorityDirector, 0.9},
	{[]string{"junior", "jr", "entry", "associate", "apprentice", "trainee"}, model.SeniorityEntry, 0.85},
	{[]string{"manager", "mgr"}, model.SeniorityManager, 0.85},
	{[]string{"principal", "staff", "lead"}, model.SeniorityLead, 0.85},
	{[]string{"senior", "sr"}, model.SenioritySenior, 0.9},
}

var nonWordRe = regexp.MustCompile(`[^a-z0-9]+`)

// classifySeniority infers a seniority level from lexical cues matched
// on word boundaries ("intern" must not fire on "International").
// Titles with no cue default to mid with moderate confidence.
func classifySeniority(rawTitle string) (model.Seniority, float64) {
	if strings.TrimSpace(rawTitle) == "" {
		return model.SeniorityMid, 0
	}
	title := " " + nonWordRe.ReplaceAllString(strings.ToLower(rawTitle), " ") + " "

	for _, cue := range seniorityCues {
		for _, term := range cue.terms {
			if strings.Contains(title, " "+term+" ") {
				return cue.level, cue.confidence
			}
		}
	}
	return model.SeniorityMid, 0.6
}
