package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/release-pipeline/internal/service/updater"
)

// DefaultCallTimeout bounds short unary calls.
const DefaultCallTimeout = 10 * time.Second

var (
	errAddressRequired = errors.New("address must be provided")
	errBadStatus       = errors.New("malformed status message")
)

// Client wraps the update bridge with convenience helpers.
type Client struct {
	conn *grpc.ClientConn
	// callTimeout applies to short calls; downloads are not bounded.
	callTimeout time.Duration
}

// ClientOption configures client behaviour.
type ClientOption func(*Client)

// WithCallTimeout sets a default timeout for short service calls.
func WithCallTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// Dial creates a client for the bridge at address.
// The bridge only listens on loopback, so the transport is not encrypted.
func Dial(_ context.Context, address string, opts ...ClientOption) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial update agent: %w", err)
	}

	return NewClient(conn, opts...), nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn, opts ...ClientOption) *Client {
	client := &Client{
		conn:        conn,
		callTimeout: DefaultCallTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// AppVersion returns the version of the running app.
func (c *Client) AppVersion(ctx context.Context) (string, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(callCtx, MethodGetAppVersion, new(emptypb.Empty), out); err != nil {
		return "", fmt.Errorf("get app version: %w", err)
	}

	return out.GetValue(), nil
}

// Status returns the current update status.
func (c *Client) Status(ctx context.Context) (updater.Status, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	return c.invokeStatus(callCtx, MethodGetStatus, "get status")
}

// Check asks the agent to check for updates.
func (c *Client) Check(ctx context.Context) (updater.Status, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	return c.invokeStatus(callCtx, MethodCheckForUpdates, "check for updates")
}

// StartUpdate downloads the available update. It is bounded by ctx only.
func (c *Client) StartUpdate(ctx context.Context) (updater.Status, error) {
	return c.invokeStatus(ctx, MethodStartUpdate, "start update")
}

// QuitAndInstall installs the downloaded update.
func (c *Client) QuitAndInstall(ctx context.Context) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if err := c.conn.Invoke(callCtx, MethodQuitAndInstall, new(emptypb.Empty), new(emptypb.Empty)); err != nil {
		return fmt.Errorf("quit and install: %w", err)
	}

	return nil
}

// Watch calls fn with the current status and every later transition until
// fn returns false, ctx is done or the stream ends.
func (c *Client) Watch(ctx context.Context, fn func(updater.Status) bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], MethodWatchStatus)
	if err != nil {
		return fmt.Errorf("watch status: %w", err)
	}

	watcher := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}

	if err = watcher.SendMsg(new(emptypb.Empty)); err != nil {
		return fmt.Errorf("watch status: %w", err)
	}

	if err = watcher.CloseSend(); err != nil {
		return fmt.Errorf("watch status: %w", err)
	}

	for {
		msg, recvErr := watcher.Recv()
		if errors.Is(recvErr, io.EOF) {
			return nil
		}

		if recvErr != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("watch status: %w", recvErr)
		}

		st, ok := FromProtoStatus(msg)
		if !ok {
			return errBadStatus
		}

		if !fn(st) {
			return nil
		}
	}
}

func (c *Client) invokeStatus(ctx context.Context, method, action string) (updater.Status, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, new(emptypb.Empty), out); err != nil {
		return updater.Status{}, fmt.Errorf("%s: %w", action, err)
	}

	st, ok := FromProtoStatus(out)
	if !ok {
		return updater.Status{}, fmt.Errorf("%s: %w", action, errBadStatus)
	}

	return st, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
