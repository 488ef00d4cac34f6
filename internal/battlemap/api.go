package battlemap

import (
	"context"
	"encoding/json"
	"strings"

	. "github.com/eneris/battlemap/internal/logging"
)

// relayScript runs inside the authenticated page so the request carries the
// page's session cookies and anti-forgery token. It never rejects: failures
// come back as an envelope with whatever status the game's ajax layer saw,
// 0 when there was none.
const relayScript = `async (endpoint, method, payload) => {
	try {
		const body = await window.ajaxController.getValues(endpoint, method, payload)
		return { status: 200, body: body }
	} catch (err) {
		return {
			status: Number(err && (err.status || err.httpStatus)) || 0,
			message: String((err && (err.statusText || err.message)) || err),
		}
	}
}`

// apiRequest is one proxied call. Transient, never persisted.
type apiRequest struct {
	Endpoint string
	Method   string
	Payload  map[string]interface{}
	IsRetry  bool
}

// apiResult is the raw transport outcome before classification.
type apiResult struct {
	Status int
	Body   interface{}
	Msg    string
	Err    error // transport-level failure, no status available
}

// roundTrip executes one call in the page context. Holds the session mutex
// only for the duration of the browser command, so a re-login triggered by
// another caller can interleave between attempts.
func (s *Session) roundTrip(req apiRequest) apiResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		return apiResult{Err: newError(KindSessionCrash, 0, "no active session")}
	}

	raw, err := s.page.Eval(apiRequestTimeout, relayScript, req.Endpoint, req.Method, req.Payload)
	if err != nil {
		return apiResult{Err: err}
	}

	envelope, ok := raw.(map[string]interface{})
	if !ok {
		// The page returned something that is not our envelope at all.
		return apiResult{Status: 200, Body: raw}
	}

	status := 200
	if v, ok := envelope["status"].(float64); ok {
		status = int(v)
	}
	msg, _ := envelope["message"].(string)
	return apiResult{Status: status, Body: envelope["body"], Msg: msg}
}

// classify turns a raw transport outcome into either a usable body or a
// typed failure, per the relay's failure taxonomy.
func classify(res apiResult) (interface{}, *Error) {
	if res.Err != nil {
		// No status at all: the browser process itself is the suspect.
		return nil, wrapError(KindSessionCrash, res.Err, "browser transport failed")
	}

	switch {
	case res.Status == 200:
		return classifyBody(res.Body)
	case res.Status == 401 || res.Status == 419:
		return nil, newError(KindUnauthorized, res.Status, "authentication expired")
	case res.Status == 500:
		return nil, newError(KindRemoteCrash, res.Status, "remote application error: %s", res.Msg)
	default:
		return nil, newError(KindRequestFailed, res.Status, "%s", res.Msg)
	}
}

// classifyBody handles the game's inconsistent success shapes. String bodies
// are JSON when possible and returned raw otherwise; malformed-but-present
// bodies never raise. Application envelopes that signal a negative status or
// the empty-message marker count as expired authentication even though the
// HTTP layer said 200. That marker is an observed convention of the game's
// ajax layer, not a contract; the status-code paths above stay authoritative.
func classifyBody(body interface{}) (interface{}, *Error) {
	if str, ok := body.(string); ok {
		var parsed interface{}
		if err := json.Unmarshal([]byte(str), &parsed); err != nil {
			L_debug("api: body is not JSON, returning raw string", "len", len(str))
			return str, nil
		}
		body = parsed
	}

	if m, ok := body.(map[string]interface{}); ok {
		if st, ok := m["status"].(float64); ok && st < 0 {
			return nil, newError(KindUnauthorized, 0, "application status %d", int(st))
		}
		if msg, present := m["message"]; present {
			if str, ok := msg.(string); ok && strings.TrimSpace(str) == "" && len(m) == 1 {
				return nil, newError(KindUnauthorized, 0, "empty-message unauthenticated marker")
			}
		}
	}

	return body, nil
}

// GetAPIData proxies one JSON API call through the authenticated page and
// applies the retry policy: an Unauthorized outcome earns exactly one
// re-login followed by one replay of the same call; a second Unauthorized
// surfaces. A transport failure with no status relaunches the browser and
// surfaces KindSessionCrash, leaving the reissue decision to the caller.
func (s *Session) GetAPIData(ctx context.Context, endpoint string, payload map[string]interface{}, method string) (interface{}, error) {
	if method == "" {
		method = "post"
	}

	return runRetryPolicy(
		apiRequest{Endpoint: endpoint, Method: method, Payload: payload},
		s.roundTrip,
		func() error { return s.relogin(ctx) },
		func() error { return s.Init(ctx, nil) },
	)
}

// runRetryPolicy maps failure classifications to recovery actions. The
// two-iteration loop is the whole retry budget: attempt 0 is the original
// call, attempt 1 the single post-login replay, so "exactly one re-auth per
// call" holds structurally rather than by convention.
func runRetryPolicy(req apiRequest, do func(apiRequest) apiResult, relogin, relaunch func() error) (interface{}, error) {
	for attempt := 0; attempt < 2; attempt++ {
		req.IsRetry = attempt > 0
		L_debug("api: request", "endpoint", req.Endpoint, "method", req.Method, "payload", req.Payload, "retry", req.IsRetry)

		body, apiErr := classify(do(req))
		if apiErr == nil {
			return body, nil
		}

		switch apiErr.Kind {
		case KindUnauthorized:
			if req.IsRetry {
				L_warn("api: still unauthorized after re-login", "endpoint", req.Endpoint)
				return nil, apiErr
			}
			L_info("api: unauthorized, re-authenticating", "endpoint", req.Endpoint)
			if err := relogin(); err != nil {
				return nil, err
			}
			continue

		case KindSessionCrash:
			L_error("api: browser transport failed, relaunching session", "endpoint", req.Endpoint, "error", apiErr)
			if err := relaunch(); err != nil {
				L_error("api: session relaunch failed", "error", err)
			}
			// The triggering call still fails; the caller may reissue
			// against the fresh session.
			return nil, apiErr

		default:
			return nil, apiErr
		}
	}

	// Unreachable: every attempt either returns or continues exactly once.
	return nil, newError(KindRequestFailed, 0, "retry policy exhausted for %s", req.Endpoint)
}
