package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/gqlhost"
	"github.com/roach88/gqlhost/internal/config"
	"github.com/roach88/gqlhost/internal/dynamic"
	"github.com/roach88/gqlhost/internal/gql"
	"github.com/roach88/gqlhost/internal/store"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Query     string
	Operation string
	Variables string
	Database  string
	Canonical bool
	Timeout   time.Duration

	// IDs overrides folder and item id generation (for testing).
	// If nil, the engine uses UUIDv7 ids.
	IDs store.IDGenerator
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run one GraphQL operation and print its first payload",
		Long: `Parse a query, run one of its operations and print the first response
document. The query is read from --query or, if that is empty, from stdin.

A subscription operation waits for its first event; use --timeout to bound
the wait.

Example:
  gqlhost exec --query '{ folders { name unreadCount } }'
  echo 'query Q($id: ID!) { item(id: $id) { subject } }' | gqlhost exec --variables '{"id":"..."}'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "query text (default: read stdin)")
	cmd.Flags().StringVar(&opts.Operation, "operation", "", "operation name")
	cmd.Flags().StringVar(&opts.Variables, "variables", "", "operation variables as a JSON object")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().BoolVar(&opts.Canonical, "canonical", false, "print canonical JSON (sorted keys)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "give up waiting for a payload after this long")

	return cmd
}

func runExec(opts *ExecOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	logger := opts.newLogger(cfg, cmd.ErrOrStderr())
	formatter := opts.formatter(cmd)

	query := opts.Query
	if query == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read query", err)
		}
		query = string(data)
	}
	if strings.TrimSpace(query) == "" {
		return NewExitError(ExitCommandError, "no query given")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	svc, err := newService(cfg, opts.IDs, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start service", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("error stopping service", "error", err)
		}
	}()

	formatter.VerboseLog("parsing %d bytes of query text", len(query))
	q, err := svc.ParseQuery(ctx, query)
	if err != nil {
		return reportError(formatter, err)
	}
	defer q.Release()

	payload, err := firstPayload(ctx, q, opts.Operation, opts.Variables)
	if err != nil {
		return reportError(formatter, err)
	}
	if payload == nil {
		return formatter.Success("no payload")
	}

	if opts.Canonical {
		if payload, err = dynamic.CanonicalizeJSON(payload); err != nil {
			return WrapExitError(ExitFailure, "failed to canonicalize payload", err)
		}
	}
	return formatter.Payload(payload)
}

// newService starts the reference engine described by cfg.
func newService(cfg config.Config, ids store.IDGenerator, logger *slog.Logger) (*gqlhost.Service, error) {
	factory := gql.NewFactory(gql.Config{
		Database:      cfg.Database,
		MaxValueNodes: cfg.MaxValueNodes,
		IDs:           ids,
	})
	return gqlhost.New(factory,
		gqlhost.WithUseDefaultIdentity(cfg.UseDefaultIdentity),
		gqlhost.WithMessagePump(cfg.MessagePump),
		gqlhost.WithLogger(logger),
	)
}

// firstPayload returns the first payload of an operation, or nil when it
// completes without one.
func firstPayload(ctx context.Context, q *gqlhost.ParsedQuery, operation, variables string) ([]byte, error) {
	next := make(chan string, 1)
	complete := make(chan struct{}, 1)
	sub, err := q.Subscribe(ctx, operation, variables, next, complete)
	if err != nil {
		return nil, err
	}
	defer sub.Release()

	select {
	case p := <-next:
		return []byte(p), nil
	case <-complete:
		select {
		case p := <-next:
			return []byte(p), nil
		default:
			return nil, nil
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// reportError prints err through the formatter and returns the matching
// exit error.
func reportError(formatter *OutputFormatter, err error) error {
	var ee *gqlhost.EngineError
	switch {
	case errors.As(err, &ee):
		_ = formatter.Error(string(ee.Code), ee.Message, nil)
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", ee.Code, ee.Message))
	case gqlhost.IsConversionError(err):
		_ = formatter.Error("CONVERSION_FAILED", err.Error(), nil)
		return NewExitError(ExitFailure, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		_ = formatter.Error("TIMEOUT", "no payload before timeout", nil)
		return WrapExitError(ExitFailure, "no payload before timeout", err)
	default:
		_ = formatter.Error("SERVICE_ERROR", err.Error(), nil)
		return WrapExitError(ExitCommandError, "service error", err)
	}
}
