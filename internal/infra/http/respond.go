package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
)

const (
	maxBody   = 1 << 20
	maxUpload = 10 << 20
)

type errorBody struct {
	Code     string                  `json:"code"`
	Message  string                  `json:"message"`
	Failures []pricing.MemberFailure `json:"failures,omitempty"`
}

var statusByReason = map[string]int{
	"invalid_quantity":          http.StatusBadRequest,
	"invalid_input":             http.StatusBadRequest,
	"unpricable_material":       http.StatusUnprocessableEntity,
	"no_matching_tier":          http.StatusUnprocessableEntity,
	"already_frozen":            http.StatusConflict,
	"batch_frozen":              http.StatusConflict,
	"concurrent_modification":   http.StatusConflict,
	"batch_set_partial_failure": http.StatusConflict,
	"not_found":                 http.StatusNotFound,
}

func (a *API) fail(w http.ResponseWriter, err error) {
	code := pricing.Reason(err)
	status, ok := statusByReason[code]
	if !ok {
		status = http.StatusInternalServerError
		a.log.Error("request failed", "err", err)
		writeJSON(w, status, errorBody{Code: code, Message: "internal error"})
		return
	}
	body := errorBody{Code: code, Message: err.Error()}
	var se *pricing.BatchSetFreezeError
	if errors.As(err, &se) {
		body.Failures = se.Failures
	}
	writeJSON(w, status, body)
}

func (a *API) badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_input", Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeXLSX(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// readOptionalJSON accepts an empty body and leaves v zero.
func readOptionalJSON(r *http.Request, v any) error {
	err := readJSON(r, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad id %q", raw)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: bad integer %q", name, raw)
	}
	return n, nil
}

// queryInts reads a repeated or comma separated parameter: qty=1&qty=10 or qty=1,10.
func queryInts(r *http.Request, name string) ([]int, error) {
	var out []int
	for _, v := range r.URL.Query()[name] {
		for _, f := range strings.Split(v, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			n, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("%s: bad integer %q", name, f)
			}
			out = append(out, n)
		}
	}
	return out, nil
}
