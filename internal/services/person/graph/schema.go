// Package graph holds the person GraphQL schema and the resolvers bound to it.
package graph

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	graphql "github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"
	gqlotel "github.com/graph-gophers/graphql-go/trace/otel"
	"github.com/louisbranch/personql/internal/services/person/storage"
)

//go:embed schema.graphqls
var schemaSDL string

// SDL returns the schema definition served by this package.
func SDL() string {
	return schemaSDL
}

// Options tunes query execution limits. Zero values keep library defaults.
type Options struct {
	MaxDepth       int
	MaxParallelism int
	// DisableTracing skips OpenTelemetry spans for query execution.
	DisableTracing bool
}

// Request is one GraphQL operation as carried by GraphQL-over-HTTP bodies.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Result is the execution outcome. Data is null when execution never started.
type Result struct {
	Data   json.RawMessage          `json:"data"`
	Errors []*gqlerrors.QueryError `json:"errors,omitempty"`
}

// Schema is a parsed, immutable schema safe for concurrent Exec calls.
type Schema struct {
	schema *graphql.Schema
}

// New parses the embedded SDL and binds it to resolvers over store.
func New(store storage.PersonStore, opts Options) (*Schema, error) {
	if store == nil {
		return nil, fmt.Errorf("person store is required")
	}
	return parse(&Resolver{store: store}, opts)
}

func parse(resolver any, opts Options) (*Schema, error) {
	schemaOpts := make([]graphql.SchemaOpt, 0, 3)
	if opts.MaxDepth > 0 {
		schemaOpts = append(schemaOpts, graphql.MaxDepth(opts.MaxDepth))
	}
	if opts.MaxParallelism > 0 {
		schemaOpts = append(schemaOpts, graphql.MaxParallelism(opts.MaxParallelism))
	}
	if !opts.DisableTracing {
		schemaOpts = append(schemaOpts, graphql.Tracer(gqlotel.DefaultTracer()))
	}

	parsed, err := graphql.ParseSchema(schemaSDL, resolver, schemaOpts...)
	if err != nil {
		return nil, fmt.Errorf("parse person schema: %w", err)
	}
	return &Schema{schema: parsed}, nil
}

// Exec runs one operation. Syntax, validation and resolver failures are
// reported in Result.Errors, never as a Go error.
func (s *Schema) Exec(ctx context.Context, req Request) *Result {
	resp := s.schema.Exec(ctx, req.Query, req.OperationName, req.Variables)
	return &Result{Data: resp.Data, Errors: resp.Errors}
}
