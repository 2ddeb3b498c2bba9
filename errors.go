package gocypher

import (
	"errors"

	"github.com/brunobiangulo/gocypher/graphdb"
	"github.com/brunobiangulo/gocypher/llm"
	"github.com/brunobiangulo/gocypher/schema"
	"github.com/brunobiangulo/gocypher/store"
)

var (
	// ErrInvalidSchema is returned when a schema description is malformed.
	ErrInvalidSchema = schema.ErrInvalidSchema

	// ErrGenerationFailed marks a failed generator call. It never escapes
	// SynthesizeQuery or SummarizeResults; it is exported for callers that
	// use the llm package directly.
	ErrGenerationFailed = llm.ErrGenerationFailed

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("gocypher: invalid configuration")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = store.ErrClosed

	// ErrNoStore is returned by history and example operations when the
	// audit store is disabled.
	ErrNoStore = errors.New("gocypher: store disabled")

	// ErrNotConnected is returned when no graph database is connected.
	ErrNotConnected = graphdb.ErrNotConnected

	// ErrUnknownDatabase is returned for sample database ids that do not exist.
	ErrUnknownDatabase = errors.New("gocypher: unknown database")

	// ErrUnsafeStatement is returned when a statement is refused for execution.
	ErrUnsafeStatement = graphdb.ErrUnsafeStatement
)
