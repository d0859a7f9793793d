package server

import (
	"strings"
	"time"

	"github.com/eternalApril/emberkv/internal/metrics"
	"github.com/eternalApril/emberkv/internal/resp"
	"github.com/eternalApril/emberkv/internal/storage"
	"go.uber.org/zap"
)

// unknownLabel keeps metric cardinality bounded for names outside the table
const unknownLabel = "UNKNOWN"

// Engine validates and executes commands against the shared storage.
// It keeps no per-connection state, so one Engine serves every client
type Engine struct {
	commands map[string]command // Registry of available commands (the key is the command name in uppercase)
	storage  storage.Storage    // Interface to the underlying KV storage
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine initializes the engine with the standard command table
func NewEngine(s storage.Storage, m *metrics.Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		commands: commandTable,
		storage:  s,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Execute finds the command by name (case-insensitive) and executes it with the passed arguments.
// Failures are returned as RESP error replies, never as Go errors
func (e *Engine) Execute(name string, args []string) resp.Value {
	upper := strings.ToUpper(name)

	if e.logger.Core().Enabled(zap.DebugLevel) {
		// Log the command name and number of args
		e.logger.Debug("executing command",
			zap.String("cmd", upper),
			zap.Int("args_count", len(args)),
		)
	}

	start := time.Now()
	res, err := e.dispatch(name, upper, args)

	label := upper
	if _, ok := e.commands[upper]; !ok {
		label = unknownLabel
	}
	e.metrics.ObserveCommand(label, err != nil, time.Since(start))

	if err != nil {
		if e.logger.Core().Enabled(zap.DebugLevel) {
			e.logger.Debug("command failed", zap.String("cmd", upper), zap.Error(err))
		}
		return resp.MakeError(replyText(err))
	}

	return res
}

func (e *Engine) dispatch(name, upper string, args []string) (resp.Value, error) {
	cmd, ok := e.commands[upper]
	if !ok {
		return resp.Value{}, errUnknownCommand(name)
	}

	if !cmd.acceptsArgs(len(args)) {
		return resp.Value{}, errWrongArity(upper)
	}

	ctx := &cmdContext{
		name:    upper,
		args:    args,
		storage: e.storage,
		now:     e.now(),
		evicted: e.metrics.ExpiredEviction,
	}

	return cmd.handler(ctx)
}
