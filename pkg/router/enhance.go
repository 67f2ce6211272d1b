package router

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zen-systems/switchboard/pkg/backend"
	"github.com/zen-systems/switchboard/pkg/config"
)

// enhancer fetches background context from the auxiliary backend and
// folds it into the prompt sent to the primary. Strictly best-effort:
// every failure path hands back the original text.
type enhancer struct {
	cfg     config.Augmentation
	timeout time.Duration
	logger  *zap.Logger
}

// enhance returns the text the primary attempt should use and whether
// augmentation happened. It fires only when the primary candidate is the
// configured target, the text asks for current or external information,
// and the auxiliary backend is enabled.
func (e *enhancer) enhance(ctx context.Context, req Request, dec Decision, view *backend.View) (string, bool) {
	if e.cfg.Target == "" || e.cfg.Auxiliary == "" || len(dec.Candidates) == 0 {
		return req.Text, false
	}
	if dec.Candidates[0] != e.cfg.Target {
		return req.Text, false
	}
	if !matchesAnyKeyword(strings.ToLower(req.Text), e.cfg.Triggers) {
		return req.Text, false
	}
	aux, ok := view.Lookup(e.cfg.Auxiliary)
	if !ok || !aux.Enabled {
		return req.Text, false
	}

	prompt := "provide background information about: " + req.Text
	raw, attempt := supervise(ctx, aux.Name, aux.Client, prompt, e.timeout)
	if attempt.Status != StatusSuccess {
		e.logger.Debug("context enhancement skipped",
			zap.String("auxiliary", aux.Name),
			zap.String("status", string(attempt.Status)),
			zap.String("error", attempt.Error))
		return req.Text, false
	}

	background := normalizeContent(raw)
	if background == "" {
		return req.Text, false
	}

	return "Here is background: " + background + "\n\nNow answer: " + req.Text, true
}

func matchesAnyKeyword(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if containsKeyword(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
