package router

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/zen-systems/switchboard/pkg/backend"
	"github.com/zen-systems/switchboard/pkg/config"
)

// Selector maps a request to an ordered backend candidate list. It is
// deterministic for identical inputs except where ties between equally
// scored backends are broken at random; Rand supplies uniform ints for
// that and defaults to the shared math/rand source.
type Selector struct {
	Routing  *config.Routing
	Failures *FailureTracker
	Rand     func(n int) int
}

type specialtyScore struct {
	name    string
	score   int
	matched []string
}

// Select produces the routing decision for one request against a fixed
// registry view. Rules, first match wins for the primary: explicit
// backend, by-name request in the text, specialty keyword score, long or
// complex content fronting the reliable backend, last used, configured
// default, first enabled. The remaining enabled backends follow the
// primary in registration order, so the cascade can try every enabled
// backend exactly once.
func (s *Selector) Select(req Request, view *backend.View, lastUsed string) Decision {
	enabled := view.Enabled()
	if len(enabled) == 0 {
		return Decision{Reason: "no backends enabled"}
	}

	lower := strings.ToLower(req.Text)

	if name := req.ExplicitBackend; name != "" {
		if e, ok := view.Lookup(name); ok && e.Enabled {
			return Decision{
				Candidates: buildCandidates(name, enabled),
				Reason:     "explicit backend",
			}
		}
	}

	if name, ok := requestedByName(lower, enabled); ok {
		return Decision{
			Candidates: buildCandidates(name, enabled),
			Reason:     fmt.Sprintf("requested by name: %s", name),
		}
	}

	primary, reason := s.selectPrimary(req.Text, lower, enabled, view, lastUsed)
	return Decision{
		Candidates: buildCandidates(primary, enabled),
		Reason:     reason,
	}
}

// requestedByName detects "use X" / "ask X" phrasings naming an enabled
// backend.
func requestedByName(lower string, enabled []backend.Entry) (string, bool) {
	for _, e := range enabled {
		name := strings.ToLower(e.Name)
		if containsKeyword(lower, "use "+name) || containsKeyword(lower, "ask "+name) {
			return e.Name, true
		}
	}
	return "", false
}

func (s *Selector) selectPrimary(original, lower string, enabled []backend.Entry, view *backend.View, lastUsed string) (string, string) {
	if pick, ok := s.bestSpecialty(lower, enabled); ok {
		return pick.name, fmt.Sprintf("specialty match: %s", strings.Join(pick.matched, ", "))
	}

	if name, why, ok := s.reliableOverride(original, lower, view); ok {
		return name, why
	}

	if lastUsed != "" && isEnabled(lastUsed, enabled) {
		return lastUsed, "last used"
	}
	if def := s.Routing.Default; def != "" && isEnabled(def, enabled) {
		return def, "default backend"
	}
	return enabled[0].Name, "first enabled"
}

// bestSpecialty scores each enabled backend one point per specialty
// keyword found in the text and picks the highest scorer. Ties are
// broken uniformly at random, except that a tied backend with recent
// failures is dropped when a tied alternative is clean.
func (s *Selector) bestSpecialty(lower string, enabled []backend.Entry) (specialtyScore, bool) {
	var scores []specialtyScore
	for _, e := range enabled {
		var matched []string
		for _, kw := range e.Specialties {
			if containsKeyword(lower, strings.ToLower(kw)) {
				matched = append(matched, kw)
			}
		}
		if len(matched) > 0 {
			scores = append(scores, specialtyScore{name: e.Name, score: len(matched), matched: matched})
		}
	}
	if len(scores) == 0 {
		return specialtyScore{}, false
	}

	tied := tiedLeaders(scores)
	tied = s.dropFailing(tied)

	pick := tied[0]
	if len(tied) > 1 {
		pick = tied[s.intN(len(tied))]
	}
	return pick, true
}

// reliableOverride fronts the configured reliable backend for long or
// complex-topic content.
func (s *Selector) reliableOverride(original, lower string, view *backend.View) (string, string, bool) {
	name := s.Routing.Reliable
	if name == "" {
		return "", "", false
	}
	e, ok := view.Lookup(name)
	if !ok || !e.Enabled {
		return "", "", false
	}

	if s.Routing.LengthThreshold > 0 && len(original) > s.Routing.LengthThreshold {
		return name, "long message override", true
	}
	for _, topic := range s.Routing.ComplexTopics {
		if containsKeyword(lower, strings.ToLower(topic)) {
			return name, fmt.Sprintf("complex topic override: %s", topic), true
		}
	}
	return "", "", false
}

// tiedLeaders returns every entry sharing the top score, in registration
// order.
func tiedLeaders(scores []specialtyScore) []specialtyScore {
	best := 0
	for _, sc := range scores {
		if sc.score > best {
			best = sc.score
		}
	}
	var tied []specialtyScore
	for _, sc := range scores {
		if sc.score == best {
			tied = append(tied, sc)
		}
	}
	return tied
}

// dropFailing removes tied backends carrying recent failures, unless
// every tied backend is failing.
func (s *Selector) dropFailing(tied []specialtyScore) []specialtyScore {
	if len(tied) < 2 || s.Failures == nil {
		return tied
	}
	var clean []specialtyScore
	for _, sc := range tied {
		if s.Failures.Count(sc.name) == 0 {
			clean = append(clean, sc)
		}
	}
	if len(clean) == 0 {
		return tied
	}
	return clean
}

func (s *Selector) intN(n int) int {
	if s.Rand != nil {
		return s.Rand(n)
	}
	return rand.IntN(n)
}

// buildCandidates places the primary first and appends the remaining
// enabled backends in registration order.
func buildCandidates(primary string, enabled []backend.Entry) []string {
	out := make([]string, 0, len(enabled))
	out = append(out, primary)
	for _, e := range enabled {
		if e.Name != primary {
			out = append(out, e.Name)
		}
	}
	return out
}

func isEnabled(name string, enabled []backend.Entry) bool {
	for _, e := range enabled {
		if e.Name == name {
			return true
		}
	}
	return false
}

// containsKeyword checks whether the text contains the keyword as a
// whole word or phrase. Both arguments must already be lowercase.
func containsKeyword(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	for start := 0; ; {
		idx := strings.Index(text[start:], keyword)
		if idx == -1 {
			return false
		}
		idx += start

		end := idx + len(keyword)
		beforeOK := idx == 0 || !isWordChar(text[idx-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}
