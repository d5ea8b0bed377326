package gql

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"

	"github.com/roach88/gqlhost/internal/dynamic"
	"github.com/roach88/gqlhost/internal/engine"
	"github.com/roach88/gqlhost/internal/marshal"
	"github.com/roach88/gqlhost/internal/response"
	"github.com/roach88/gqlhost/internal/store"
)

// Config configures the reference engine.
type Config struct {
	// Database is the SQLite path. Empty means a private in-memory database.
	Database string

	// MaxValueNodes bounds every response tree and every variables tree.
	// Zero means unbounded.
	MaxValueNodes int

	// IDs generates folder and item ids. Default: store.UUIDv7Generator.
	IDs store.IDGenerator
}

// NewFactory returns an engine.Factory that builds reference engines.
func NewFactory(cfg Config) engine.Factory {
	return func(env engine.Env) (engine.Engine, error) {
		return New(cfg, env)
	}
}

// Engine is the reference engine. It is not safe for concurrent use: all
// calls come from the owning worker.
type Engine struct {
	cfg       Config
	env       engine.Env
	logger    *slog.Logger
	marshaler *marshal.Marshaler
	schema    graphql.Schema

	store   *store.Store
	queries map[engine.QueryID]*ast.Document
	subs    map[engine.SubscriptionID]*subscription
	pending []event
}

type subscription struct {
	doc           *ast.Document
	operation     *ast.OperationDefinition
	operationName string
	variables     map[string]interface{}
	fields        map[string]bool
	next          engine.NextFunc
	complete      engine.CompleteFunc

	// registered is true while a subscription operation is live. Inline
	// operations are never registered.
	registered bool
}

// New creates an unstarted engine.
func New(cfg Config, env engine.Env) (*Engine, error) {
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:       cfg,
		env:       env,
		logger:    logger,
		marshaler: &marshal.Marshaler{MaxNodes: cfg.MaxValueNodes, Logger: logger},
		queries:   make(map[engine.QueryID]*ast.Document),
		subs:      make(map[engine.SubscriptionID]*subscription),
	}
	schema, err := e.buildSchema()
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	e.schema = schema
	return e, nil
}

// Start opens the store. With useDefaultIdentity the default folder is
// created if missing.
func (e *Engine) Start(useDefaultIdentity bool) error {
	if e.store != nil {
		return nil
	}
	path := e.cfg.Database
	if path == "" {
		path = ":memory:"
	}

	var opts []store.Option
	if e.cfg.IDs != nil {
		opts = append(opts, store.WithIDGenerator(e.cfg.IDs))
	}
	s, err := store.Open(path, opts...)
	if err != nil {
		return engine.Errorf(engine.ErrCodeStorage, "%v", err)
	}
	if useDefaultIdentity {
		if _, err := s.EnsureFolder(context.Background(), store.DefaultFolderName); err != nil {
			s.Close()
			return engine.Errorf(engine.ErrCodeStorage, "%v", err)
		}
	}
	e.store = s
	e.logger.Info("engine started", "database", path, "use_default_identity", useDefaultIdentity)
	return nil
}

// Stop unsubscribes every subscription, discards every query and closes
// the store. Stopping an unstarted engine does nothing.
func (e *Engine) Stop() error {
	if e.store == nil {
		return nil
	}
	for _, id := range sortedIDs(e.subs) {
		e.unsubscribe(id)
	}
	clear(e.queries)
	e.pending = nil

	err := e.store.Close()
	e.store = nil
	e.logger.Info("engine stopped")
	if err != nil {
		return engine.Errorf(engine.ErrCodeStorage, "%v", err)
	}
	return nil
}

// ParseQuery parses query text. The id is one past the highest live query
// id, starting at 1.
func (e *Engine) ParseQuery(query string) (engine.QueryID, error) {
	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(query), Name: "GraphQL request"}),
	})
	if err != nil {
		return 0, engine.Errorf(engine.ErrCodeParse, "%s", err.Error())
	}
	id := nextID(e.queries)
	e.queries[id] = doc
	return id, nil
}

// DiscardQuery forgets a parsed query. Subscriptions already created from
// it keep running.
func (e *Engine) DiscardQuery(id engine.QueryID) error {
	delete(e.queries, id)
	return nil
}

// Subscribe runs or registers an operation of a parsed query.
func (e *Engine) Subscribe(id engine.QueryID, operationName, variables string, next engine.NextFunc, complete engine.CompleteFunc) (engine.SubscriptionID, error) {
	doc, ok := e.queries[id]
	if !ok {
		return 0, engine.Errorf(engine.ErrCodeUnknownQuery, "unknown query id %d", id)
	}
	vars, err := e.decodeVariables(variables)
	if err != nil {
		return 0, err
	}
	if e.store == nil {
		return 0, engine.Errorf(engine.ErrCodeNotStarted, "service not started")
	}

	sid := nextID(e.subs)
	sub := &subscription{
		doc:           doc,
		operation:     findOperation(doc, operationName),
		operationName: operationName,
		variables:     vars,
		next:          next,
		complete:      complete,
	}

	if sub.operation != nil && sub.operation.Operation == ast.OperationTypeSubscription {
		if errs := e.validate(doc); len(errs) > 0 {
			return 0, engine.Errorf(engine.ErrCodeEvaluation, "%s", joinMessages(errs))
		}
		sub.registered = true
		sub.fields = rootFields(sub.operation)
		e.subs[sid] = sub
		e.logger.Debug("subscription registered", "subscription_id", sid, "fields", len(sub.fields))
		return sid, nil
	}

	e.subs[sid] = sub
	next(e.execute(sub, nil))
	complete()
	e.flush()
	return sid, nil
}

// Unsubscribe stops a subscription and delivers its completion.
func (e *Engine) Unsubscribe(id engine.SubscriptionID) error {
	e.unsubscribe(id)
	return nil
}

func (e *Engine) unsubscribe(id engine.SubscriptionID) {
	sub, ok := e.subs[id]
	if !ok {
		return
	}
	delete(e.subs, id)
	if sub.registered {
		sub.registered = false
		sub.complete()
	}
}

// decodeVariables turns variables JSON into executor arguments by way of
// the typed tree: JSON, dynamic value, typed tree, dynamic value, Go map.
func (e *Engine) decodeVariables(text string) (map[string]interface{}, error) {
	if text == "" {
		return map[string]interface{}{}, nil
	}
	typed, err := e.marshaler.DecodeJSON([]byte(text))
	if err != nil {
		if marshal.IsConversionError(err) {
			return nil, err
		}
		return nil, engine.Errorf(engine.ErrCodeInvalidVariables, "invalid variables object: %v", err)
	}
	if typed.Type() != response.TypeMap {
		return nil, engine.Errorf(engine.ErrCodeInvalidVariables, "invalid variables object")
	}
	d, err := e.marshaler.ToDynamic(typed)
	if err != nil {
		return nil, err
	}
	g, err := dynamic.ToGo(d)
	if err != nil {
		return nil, err
	}
	vars, ok := g.(map[string]interface{})
	if !ok {
		return nil, engine.Errorf(engine.ErrCodeInvalidVariables, "invalid variables object")
	}
	return vars, nil
}

// execute runs sub's operation against root and renders the payload.
// Validation and execution failures become an errors document.
func (e *Engine) execute(sub *subscription, root map[string]interface{}) string {
	var result *graphql.Result
	if errs := e.validate(sub.doc); len(errs) > 0 {
		result = &graphql.Result{Errors: errs}
	} else {
		result = graphql.Execute(graphql.ExecuteParams{
			Schema:        e.schema,
			Root:          root,
			AST:           sub.doc,
			OperationName: sub.operationName,
			Args:          sub.variables,
			Context:       context.Background(),
		})
	}

	arena := response.NewArena(e.cfg.MaxValueNodes)
	doc, err := newTreeBuilder(arena, &e.schema, sub.doc).document(sub.operation, result)
	if err == nil {
		var text []byte
		if text, err = e.marshaler.EncodeJSON(doc); err == nil {
			return string(text)
		}
	}
	e.logger.Warn("payload conversion failed", "error", err)
	return errorDocument(err)
}

func (e *Engine) validate(doc *ast.Document) []gqlerrors.FormattedError {
	res := graphql.ValidateDocument(&e.schema, doc, nil)
	if res.IsValid {
		return nil
	}
	return res.Errors
}

// findOperation returns the named operation, or the only operation when
// name is empty. Returns nil when there is no match.
func findOperation(doc *ast.Document, name string) *ast.OperationDefinition {
	var found *ast.OperationDefinition
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if name == "" {
			if found != nil {
				return nil
			}
			found = op
			continue
		}
		if op.Name != nil && op.Name.Value == name {
			return op
		}
	}
	return found
}

// rootFields lists the schema fields an operation selects at its root.
func rootFields(op *ast.OperationDefinition) map[string]bool {
	fields := make(map[string]bool)
	if op.SelectionSet == nil {
		return fields
	}
	for _, sel := range op.SelectionSet.Selections {
		if f, ok := sel.(*ast.Field); ok && f.Name != nil {
			fields[f.Name.Value] = true
		}
	}
	return fields
}

func joinMessages(errs []gqlerrors.FormattedError) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Message
	}
	return strings.Join(msgs, "; ")
}

// nextID returns one past the highest live id, starting at 1.
func nextID[K ~uint64, V any](live map[K]V) K {
	var highest K
	for id := range live {
		highest = max(highest, id)
	}
	return highest + 1
}

func sortedIDs[K ~uint64, V any](m map[K]V) []K {
	ids := make([]K, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
