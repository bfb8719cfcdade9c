package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/consortia/consortia/internal/platform/httpx"
)

// createTask handles the task-creation forward. The body carries a list of
// {id, input, ...} organization entries; every entry's input is sealed to
// that organization's public key before the payload goes anywhere. The
// whole request is validated first: a malformed payload aborts with zero
// outbound calls, and a key or seal failure on any entry means nothing is
// forwarded. The coordinator only ever receives a fully sealed payload.
func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		httpx.RespondError(w, fmt.Errorf("%w: missing Authorization header", httpx.ErrAuth))
		return
	}

	// Decode into a generic map so fields this relay does not know about
	// pass through untouched.
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid JSON body", httpx.ErrMalformedPayload))
		return
	}
	entries, err := organizationEntries(payload)
	if err != nil {
		s.logger.Info("rejected task payload", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	// All entries validated; now seal them in payload order. A failure on
	// entry k aborts before entry k+1 and before any coordinator contact.
	for _, entry := range entries {
		organizationID := entry.id
		publicKey, err := s.keys.PublicKeyOf(r.Context(), organizationID, authorization)
		if err != nil {
			s.logger.Error("key lookup failed", slog.Int64("organization_id", organizationID), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		ciphertext, err := s.sealer.Seal(entry.plaintext, publicKey)
		if err != nil {
			s.logger.Error("sealing input failed", slog.Int64("organization_id", organizationID), slog.Any("error", err))
			httpx.RespondError(w, fmt.Errorf("%w: sealing input for organization %d: %v", httpx.ErrRelay, organizationID, err))
			return
		}
		entry.raw["input"] = ciphertext
	}

	body, err := json.Marshal(payload)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: re-encoding payload: %v", httpx.ErrRelay, err))
		return
	}
	s.proxy(w, r, http.MethodPost, "/task", "", authorization, bytes.NewReader(body))
}

// organizationEntry pairs a payload entry with its extracted fields.
type organizationEntry struct {
	id        int64
	plaintext []byte
	raw       map[string]any
}

// organizationEntries validates the payload shape up front: a missing or
// empty organizations list, or any entry without an id or input, rejects
// the entire request before a single outbound call.
func organizationEntries(payload map[string]any) ([]organizationEntry, error) {
	rawList, ok := payload["organizations"].([]any)
	if !ok || len(rawList) == 0 {
		return nil, fmt.Errorf("%w: organizations list missing or empty", httpx.ErrMalformedPayload)
	}
	entries := make([]organizationEntry, 0, len(rawList))
	for i, item := range rawList {
		raw, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: organizations[%d] is not an object", httpx.ErrMalformedPayload, i)
		}
		id, ok := numericID(raw["id"])
		if !ok {
			return nil, fmt.Errorf("%w: organizations[%d] missing id", httpx.ErrMalformedPayload, i)
		}
		input, present := raw["input"]
		if !present || input == nil {
			return nil, fmt.Errorf("%w: organizations[%d] missing input", httpx.ErrMalformedPayload, i)
		}
		plaintext, err := inputBytes(input)
		if err != nil {
			return nil, fmt.Errorf("%w: organizations[%d]: %v", httpx.ErrMalformedPayload, i, err)
		}
		entries = append(entries, organizationEntry{id: id, plaintext: plaintext, raw: raw})
	}
	return entries, nil
}

// numericID reads a JSON number as an organization id.
func numericID(v any) (int64, bool) {
	f, ok := v.(float64)
	if !ok || f <= 0 {
		return 0, false
	}
	return int64(f), true
}

// inputBytes converts the input field to the plaintext to seal. String
// inputs seal as-is; structured inputs seal as their JSON encoding.
func inputBytes(input any) ([]byte, error) {
	if s, ok := input.(string); ok {
		if s == "" {
			return nil, fmt.Errorf("empty input")
		}
		return []byte(s), nil
	}
	encoded, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("unencodable input: %v", err)
	}
	return encoded, nil
}

// fetchResult forwards a result read verbatim.
func (s *Server) fetchResult(w http.ResponseWriter, r *http.Request) {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		httpx.RespondError(w, fmt.Errorf("%w: missing Authorization header", httpx.ErrAuth))
		return
	}
	s.proxy(w, r, http.MethodGet, r.URL.Path, r.URL.RawQuery, authorization, nil)
}

// forward relays any other request to the identically-named coordinator
// path with the same query, body, and credential. An absent Authorization
// header stays absent and is logged; the coordinator must see "no
// credential", not an empty one. Unrecognized methods forward as GET.
func (s *Server) forward(w http.ResponseWriter, r *http.Request) {
	method := r.Method
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
	default:
		method = http.MethodGet
	}
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		s.logger.Info("forwarding without credential, this could lead to errors",
			slog.String("method", method),
			slog.String("path", r.URL.Path))
	}
	s.proxy(w, r, method, r.URL.Path, r.URL.RawQuery, authorization, r.Body)
}

// proxy performs the outbound call and writes the coordinator's response
// verbatim. Non-success statuses are logged with whatever detail the
// coordinator gave, then still returned to the caller. A transport failure
// always produces a well-defined relay error response.
func (s *Server) proxy(w http.ResponseWriter, r *http.Request, method, path, rawQuery, authorization string, body io.Reader) {
	url := s.coordinatorURL + path
	if rawQuery != "" {
		url += "?" + rawQuery
	}
	req, err := http.NewRequestWithContext(r.Context(), method, url, body)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: building request: %v", httpx.ErrRelay, err))
		return
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	if contentType := r.Header.Get("Content-Type"); contentType != "" {
		req.Header.Set("Content-Type", contentType)
	} else if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("coordinator unreachable",
			slog.String("method", method),
			slog.String("url", url),
			slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %s %s: %v", httpx.ErrRelay, method, path, err))
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: reading coordinator response: %v", httpx.ErrRelay, err))
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Error("coordinator returned error",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("detail", errorDetail(respBody)))
	}
	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(respBody)
}

// errorDetail extracts a human-readable message from an error body.
func errorDetail(body []byte) string {
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Msg    string `json:"msg"`
	}
	if err := json.Unmarshal(body, &problem); err != nil {
		return "no description"
	}
	switch {
	case problem.Detail != "":
		return problem.Detail
	case problem.Title != "":
		return problem.Title
	case problem.Msg != "":
		return problem.Msg
	}
	return "no description"
}
