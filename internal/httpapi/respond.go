package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	apperrors "estore/api/internal/errors"
	"estore/api/internal/logger"
	"estore/api/internal/validation"
)

// maxBody limita o tamanho dos corpos JSON aceitos.
const maxBody = 1 << 16

type errorBody struct {
	Error   string            `json:"error"`
	Code    apperrors.Code    `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError maps err to its HTTP status. Errors outside the domain
// taxonomy are logged and answered with a generic 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperrors.As(err)
	if !ok {
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: "erro interno", Code: apperrors.CodeInternal})
		return
	}
	if e.Code == apperrors.CodeInternal {
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	respondJSON(w, e.Code.HTTPStatus(), errorBody{Error: e.Error(), Code: e.Code, Details: e.Metadata})
}

func unauthenticated(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "não autenticado"))
}

func forbidden(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, apperrors.New(apperrors.CodeForbidden, "acesso negado"))
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.WithMetadata(apperrors.CodeValidation, "corpo inválido",
			map[string]string{"field": "body", "reason": string(validation.InvalidFormat), "detail": err.Error()})
	}
	return nil
}

func badQuery(field string) error {
	return apperrors.WithMetadata(apperrors.CodeValidation, "parâmetro inválido: "+field,
		map[string]string{"field": field, "reason": string(validation.InvalidFormat)})
}

// queryTime parses an RFC 3339 timestamp or a plain 2006-01-02 date.
func queryTime(r *http.Request, field string) (time.Time, error) {
	s := r.URL.Query().Get(field)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, badQuery(field)
	}
	return t, nil
}

func queryInt(r *http.Request, field string) (int, error) {
	s := r.URL.Query().Get(field)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, badQuery(field)
	}
	return n, nil
}
