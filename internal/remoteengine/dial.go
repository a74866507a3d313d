package remoteengine

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/vk/accgraph/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// connectTimeout bounds the initial handshake.
const connectTimeout = 15 * time.Second

// Options configures Dial.
type Options struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	// Timeout bounds each request; zero means DefaultTimeout.
	Timeout time.Duration
}

// Dial connects to the compute service over a websocket and returns an
// engine bound to that connection.
func Dial(ctx context.Context, o Options) (*Engine, error) {
	logger := ctxlog.FromContext(ctx).With("url", o.URL)
	logger.Info("Connecting to remote engine...")

	parsedURL, err := url.Parse(o.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse engine URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("engine URL %q needs a scheme and a host", o.URL)
	}
	namespace := o.Namespace
	if namespace == "" {
		namespace = "/"
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if o.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to remote engine.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		logger.Debug("Remote engine connect_error.", "error", err)
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(connectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", connectTimeout)
	}

	return newEngine(&socketTransport{io: io, logger: logger}, o.Timeout), nil
}

// socketTransport sends requests over a connected socket.io client.
type socketTransport struct {
	io     *socket.Socket
	logger *slog.Logger
}

func (s *socketTransport) request(ctx context.Context, event, id string, payload map[string]any) (any, error) {
	if !s.io.Connected() {
		return nil, errors.New("socket.io client is not connected")
	}

	done := make(chan any, 1)
	replyEvent := ReplyEvent(event, id)
	s.io.Once(types.EventName(replyEvent), func(data ...any) {
		var v any
		if len(data) > 0 {
			v = data[0]
		}
		done <- v
	})

	s.logger.Debug("Emitting event.", "event", event, "reply_event", replyEvent)
	s.io.Emit(event, payload)

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for %q: %w", replyEvent, ctx.Err())
	case v := <-done:
		return v, nil
	}
}

func (s *socketTransport) close() {
	s.logger.Info("Closing remote engine connection.", "sid", s.io.Id())
	s.io.Disconnect()
}
