package update

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/release-pipeline/internal/logger"
	"github.com/oshokin/release-pipeline/internal/service/updater"
)

// watchBuffer is how many transitions may queue for one slow watcher
// before the controller waits for it.
const watchBuffer = 64

// Service abstracts the controller operations the transport depends on.
type Service interface {
	CurrentVersion() string
	Status() updater.Status
	// Watch registers fn and returns the status fn's transitions follow.
	Watch(fn func(updater.Status)) (updater.Status, func())
	Check(ctx context.Context) error
	StartDownload(ctx context.Context) error
	QuitAndInstall(ctx context.Context) error
}

// Server implements the update bridge on top of a Service.
type Server struct {
	service Service
}

var _ UpdateServiceServer = (*Server)(nil)

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// Register attaches the server to a gRPC registrar.
func (s *Server) Register(registrar grpc.ServiceRegistrar) {
	RegisterUpdateServiceServer(registrar, s)
}

// GetAppVersion returns the version of the running app.
func (s *Server) GetAppVersion(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(s.service.CurrentVersion()), nil
}

// GetStatus returns the current update status.
func (s *Server) GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return toProtoStatus(s.service.Status()), nil
}

// CheckForUpdates runs a check and returns the resulting status.
// A failed check is reported as an error status, not as an RPC error.
func (s *Server) CheckForUpdates(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.service.Check(ctx); err != nil {
		logger.WarnKV(ctx, "Update check failed", "error", err)
	}

	return toProtoStatus(s.service.Status()), nil
}

// StartUpdate downloads the available update and returns once it finished.
// The download continues if the caller goes away.
func (s *Server) StartUpdate(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	err := s.service.StartDownload(context.WithoutCancel(ctx))

	switch {
	case errors.Is(err, updater.ErrNoUpdateAvailable):
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, updater.ErrDownloadInProgress):
		return nil, status.Error(codes.Aborted, err.Error())
	case err != nil:
		logger.WarnKV(ctx, "Update download failed", "error", err)
	}

	return toProtoStatus(s.service.Status()), nil
}

// QuitAndInstall installs the downloaded update.
func (s *Server) QuitAndInstall(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	err := s.service.QuitAndInstall(context.WithoutCancel(ctx))

	switch {
	case errors.Is(err, updater.ErrNothingStaged):
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	case err != nil:
		return nil, status.Error(codes.Internal, err.Error())
	}

	return new(emptypb.Empty), nil
}

// WatchStatus streams the current status followed by every transition until
// the caller cancels.
func (s *Server) WatchStatus(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	updates := make(chan updater.Status, watchBuffer)

	current, unsubscribe := s.service.Watch(func(st updater.Status) {
		select {
		case updates <- st:
		case <-ctx.Done():
		}
	})
	defer unsubscribe()

	if err := stream.Send(toProtoStatus(current)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case st := <-updates:
			if err := stream.Send(toProtoStatus(st)); err != nil {
				return err
			}
		}
	}
}
