package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zen-systems/switchboard/pkg/backend"
)

const (
	systemModel   = "system"
	errNoBackends = "no backends enabled"
	errAllFailed  = "all backends failed"

	noBackendsContent = "No AI backends are currently enabled. Check your configuration."
	failureContent    = "All AI backends are currently unavailable. Please try again shortly."
)

type callResult struct {
	raw any
	err error
}

// supervise runs one backend call under a fresh deadline, racing the
// call against the timer. When the deadline wins, the in-flight call is
// abandoned: its eventual result drains into the buffered channel and is
// discarded. A panicking client is contained and reported as a failure.
func supervise(ctx context.Context, name string, client backend.Client, text string, deadline time.Duration) (any, Attempt) {
	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ch := make(chan callResult, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- callResult{err: fmt.Errorf("backend panic: %v", r)}
			}
		}()
		raw, err := client.Process(callCtx, text)
		ch <- callResult{raw: raw, err: err}
	}()

	select {
	case res := <-ch:
		latency := time.Since(start).Milliseconds()
		if res.err != nil {
			return nil, Attempt{
				Backend:   name,
				Status:    classifyError(res.err),
				LatencyMS: latency,
				Error:     res.err.Error(),
			}
		}
		return res.raw, Attempt{Backend: name, Status: StatusSuccess, LatencyMS: latency}

	case <-callCtx.Done():
		return nil, Attempt{
			Backend:   name,
			Status:    classifyError(callCtx.Err()),
			LatencyMS: time.Since(start).Milliseconds(),
			Error:     callCtx.Err().Error(),
		}
	}
}

// classifyError tags deadline hits as timeouts regardless of whether the
// timer fired here or the client returned the context error itself.
func classifyError(err error) Status {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	return StatusFailure
}

// runCascade walks the candidates in order, one fresh deadline each,
// stopping at the first success. Failure counters move on every attempt:
// reset on success, incremented on failure or timeout. No candidate is
// tried twice within a request.
func (r *Router) runCascade(ctx context.Context, req Request, dec Decision, view *backend.View, primaryText string, enhanced bool) (Response, []Attempt) {
	attempts := make([]Attempt, 0, len(dec.Candidates))

	for i, name := range dec.Candidates {
		entry, ok := view.Lookup(name)
		if !ok {
			continue
		}

		// Enhancement applies to the primary attempt only; fallbacks
		// get the original text.
		text := req.Text
		if i == 0 {
			text = primaryText
		}

		raw, attempt := supervise(ctx, name, entry.Client, text, r.timeout)
		attempts = append(attempts, attempt)

		if attempt.Status == StatusSuccess {
			r.failures.MarkSuccess(name)
			r.setLastUsed(name)

			resp := Response{Content: normalizeContent(raw), Model: name}
			if i > 0 {
				resp.FallbackFrom = dec.Candidates[0]
			}
			if i == 0 && enhanced {
				resp.Enhanced = true
				resp.Model = name + "+" + r.routing.Augmentation.Auxiliary
			}
			return resp, attempts
		}

		r.failures.MarkFailure(name)
		r.logger.Debug("backend attempt failed",
			zap.String("backend", name),
			zap.String("status", string(attempt.Status)),
			zap.Int64("latency_ms", attempt.LatencyMS),
			zap.String("error", attempt.Error))
	}

	return Response{Content: failureContent, Model: systemModel, Error: errAllFailed}, attempts
}
