// Package person maps the person REST and GraphQL routes onto storage and the
// GraphQL schema.
package person

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/personql/internal/platform/errors"
	"github.com/louisbranch/personql/internal/platform/httpx"
	"github.com/louisbranch/personql/internal/services/person/graph"
	"github.com/louisbranch/personql/internal/services/person/storage"
)

// Service handles person HTTP operations.
type Service struct {
	store  storage.PersonStore
	schema *graph.Schema
}

// NewService creates a person handler over store and a schema parsed once at
// startup.
func NewService(store storage.PersonStore, schema *graph.Schema) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("person store is required")
	}
	if schema == nil {
		return nil, fmt.Errorf("graphql schema is required")
	}
	return &Service{store: store, schema: schema}, nil
}

// Register mounts the person routes on mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /addPerson", s.addPerson)
	mux.HandleFunc("GET /findAllPerson", s.findAllPerson)
	mux.HandleFunc("POST /getAll", s.query)
	mux.HandleFunc("POST /getPersonByEmail", s.query)
	mux.HandleFunc("POST /graphql", s.query)
	mux.HandleFunc("GET /healthz", healthz)
}

// Handler returns a mux serving only the person routes.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

type personPayload struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Service) addPerson(w http.ResponseWriter, r *http.Request) {
	body, err := httpx.ReadBody(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	payloads, err := decodeBatch(body)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	batch := make([]storage.Person, 0, len(payloads))
	for _, payload := range payloads {
		batch = append(batch, storage.Person{ID: payload.ID, Name: payload.Name, Email: payload.Email})
	}
	saved, err := s.store.SavePersons(r.Context(), batch)
	if err != nil {
		httpx.WriteError(w, r, classifyStoreError(err))
		return
	}
	_ = httpx.WriteText(w, http.StatusOK, fmt.Sprintf("record inserted %d", len(saved)))
}

func decodeBatch(body []byte) ([]personPayload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, apperrors.E(apperrors.KindInvalidInput, "request body must be a JSON array of persons")
	}
	var payloads []personPayload
	if err := json.Unmarshal(trimmed, &payloads); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidInput, "invalid person batch json", err)
	}
	return payloads, nil
}

func classifyStoreError(err error) error {
	switch {
	case errors.Is(err, storage.ErrInvalidBatch):
		return apperrors.Wrap(apperrors.KindInvalidInput, err.Error(), err)
	case errors.Is(err, storage.ErrUnavailable):
		return apperrors.Wrap(apperrors.KindUnavailable, "person store is busy, retry later", err)
	default:
		return err
	}
}

func (s *Service) findAllPerson(w http.ResponseWriter, r *http.Request) {
	persons, err := s.store.ListPersons(r.Context())
	if err != nil {
		httpx.WriteError(w, r, classifyStoreError(err))
		return
	}
	payloads := make([]personPayload, 0, len(persons))
	for _, person := range persons {
		payloads = append(payloads, personPayload{ID: person.ID, Name: person.Name, Email: person.Email})
	}
	_ = httpx.WriteJSON(w, http.StatusOK, payloads)
}

// query runs one GraphQL operation. Execution errors ride in the result body,
// so the status is 200 once the body has been read.
func (s *Service) query(w http.ResponseWriter, r *http.Request) {
	body, err := httpx.ReadBody(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	result := s.schema.Exec(r.Context(), parseGraphQLRequest(r.Header.Get("Content-Type"), body))
	_ = httpx.WriteJSON(w, http.StatusOK, result)
}

// parseGraphQLRequest reads a GraphQL-over-HTTP JSON envelope when the body is
// declared as JSON and decodes as one; anything else is raw query text.
func parseGraphQLRequest(contentType string, body []byte) graph.Request {
	raw := graph.Request{Query: string(body)}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.EqualFold(mediaType, "application/json") {
		return raw
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw
	}
	var envelope graph.Request
	if err := json.Unmarshal(trimmed, &envelope); err != nil || strings.TrimSpace(envelope.Query) == "" {
		return raw
	}
	return envelope
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	_ = httpx.WriteText(w, http.StatusOK, "ok")
}
