package remoteengine

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/vk/accgraph/internal/ctxlog"
	"github.com/vk/accgraph/internal/engine"
	"github.com/vk/accgraph/internal/graph"
	"github.com/vk/accgraph/internal/tensor"
)

// DefaultTimeout bounds one request when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// transport sends one request and waits for its reply.
type transport interface {
	request(ctx context.Context, event, id string, payload map[string]any) (any, error)
	close()
}

// Engine forwards builds and runs to a remote service.
type Engine struct {
	t       transport
	timeout time.Duration
	seq     atomic.Uint64
}

var _ engine.Engine = (*Engine)(nil)

func newEngine(t transport, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{t: t, timeout: timeout}
}

// Close releases the connection.
func (e *Engine) Close() {
	e.t.close()
}

func (e *Engine) Build(ctx context.Context, g *graph.Graph, cfg engine.Config) (engine.Handle, error) {
	if g == nil {
		return "", &engine.Error{Code: engine.CodeNullptr, Message: "graph is nil"}
	}
	wg, err := EncodeGraph(g)
	if err != nil {
		return "", &engine.Error{Code: engine.CodeInvalidParam, Message: err.Error()}
	}
	id := e.nextID()
	rep, err := e.call(ctx, EventBuild, id, BuildRequest{RequestID: id, Graph: wg, Config: cfg})
	if err != nil {
		return "", err
	}
	if rep.Handle == "" {
		return "", &engine.Error{Code: engine.CodePipelineBuildError, Message: "service returned no handle"}
	}
	return rep.Handle, nil
}

func (e *Engine) Run(ctx context.Context, h engine.Handle, inputs map[string]*tensor.Batch) ([]*tensor.Batch, error) {
	id := e.nextID()
	rep, err := e.call(ctx, EventRun, id, RunRequest{RequestID: id, Handle: h, Inputs: inputs})
	if err != nil {
		return nil, err
	}
	return rep.Outputs, nil
}

func (e *Engine) nextID() string {
	return strconv.FormatUint(e.seq.Add(1), 10)
}

// call performs one request. Transport failures and timeouts are reported as
// CodePipelineError; failures reported by the service keep their code.
func (e *Engine) call(ctx context.Context, event, id string, req any) (*Reply, error) {
	logger := ctxlog.FromContext(ctx).With("event", event, "request_id", id)

	payload, err := toPayload(req)
	if err != nil {
		return nil, &engine.Error{Code: engine.CodeInvalidParam, Message: fmt.Sprintf("failed to encode %s request: %v", event, err)}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	logger.Debug("Remote engine: sending request.")
	data, err := e.t.request(ctx, event, id, payload)
	if err != nil {
		logger.Warn("Remote engine: request failed.", "error", err)
		return nil, &engine.Error{Code: engine.CodePipelineError, Message: fmt.Sprintf("%s request failed: %v", event, err)}
	}

	var rep Reply
	if err := fromPayload(data, &rep); err != nil {
		return nil, &engine.Error{Code: engine.CodeCommonError, Message: fmt.Sprintf("malformed %s reply: %v", event, err)}
	}
	if err := rep.Err(); err != nil {
		logger.Debug("Remote engine: service reported failure.", "code", rep.Code, "op", rep.Op)
		return nil, err
	}
	logger.Debug("Remote engine: reply received.")
	return &rep, nil
}
