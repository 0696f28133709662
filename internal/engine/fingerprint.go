package engine

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"voicefeedback/internal/model"
)

// KeyParts are the inputs the optimizer output depends on
type KeyParts struct {
	BusinessContextID string
	RuleVersion       int
	Outcomes          []model.TriggerOutcome
	Candidates        []Candidate // harmonized, scorer order
	Constraints       Constraints
}

// TriggerSignature lists the matched triggers with their confidence
func TriggerSignature(outcomes []model.TriggerOutcome) string {
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Matched && !o.Disabled {
			parts = append(parts, o.TriggerID+"="+strconv.FormatFloat(o.Confidence, 'f', 4, 64))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// FrequencyFingerprint captures only what decides eligibility: the window each
// candidate's counter is in and whether its quota is exhausted.
func FrequencyFingerprint(cands []Candidate) string {
	parts := make([]string, 0, len(cands))
	for _, c := range cands {
		exhausted := c.Question.Capped() && c.Frequency.Count >= c.Question.FrequencyTarget
		parts = append(parts, c.Question.ID+"@"+strconv.FormatInt(c.Frequency.Stamp().ResetAt, 10)+":"+strconv.FormatBool(exhausted))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// CacheKey hashes everything the plan is a function of
func CacheKey(p KeyParts) string {
	var b strings.Builder
	b.WriteString(p.BusinessContextID)
	b.WriteString("|v")
	b.WriteString(strconv.Itoa(p.RuleVersion))
	b.WriteString("|t:")
	b.WriteString(TriggerSignature(p.Outcomes))
	b.WriteString("|f:")
	b.WriteString(FrequencyFingerprint(p.Candidates))
	b.WriteString("|c:")
	for _, c := range p.Candidates {
		b.WriteString(c.Question.ID)
		b.WriteByte('/')
		b.WriteString(c.Question.TopicCategory)
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(c.Question.EstimatedDurationSec))
		b.WriteByte('/')
		b.WriteString(strconv.FormatFloat(c.EffectivePriority, 'f', 4, 64))
		b.WriteByte('/')
		b.WriteString(c.TriggerID)
		b.WriteByte(';')
	}
	th := p.Constraints.Thresholds
	b.WriteString("|k:")
	for _, v := range []float64{th.Critical, th.High, th.Medium, th.Low} {
		b.WriteString(strconv.FormatFloat(v, 'f', 4, 64))
		b.WriteByte(',')
	}
	b.WriteString(strconv.Itoa(p.Constraints.MaxDurationSec))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(p.Constraints.TargetCount))

	return p.BusinessContextID + ":" + strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

// Stamps records the exact counter state of the candidates a plan was built from
func Stamps(cands []Candidate) map[string]model.FrequencyStamp {
	out := make(map[string]model.FrequencyStamp, len(cands))
	for _, c := range cands {
		out[c.Question.ID] = c.Frequency.Stamp()
	}
	return out
}

// StillValid re-checks a memoized entry against the current counters. Any
// counter that moved since the entry was written invalidates it.
func StillValid(entry *model.CombinationEntry, ruleVersion int, cands []Candidate, now time.Time) bool {
	if entry == nil || entry.RuleVersion != ruleVersion {
		return false
	}
	if !entry.ExpiresAt.IsZero() && !now.Before(entry.ExpiresAt) {
		return false
	}
	if len(entry.Frequency) != len(cands) {
		return false
	}
	for _, c := range cands {
		stamp, ok := entry.Frequency[c.Question.ID]
		if !ok || stamp != c.Frequency.Stamp() {
			return false
		}
	}
	return true
}
