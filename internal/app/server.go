package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/gigboard/gigchat/internal/api"
	"github.com/gigboard/gigchat/internal/session"
)

// Server is the control socket gigchatctl talks to.
type Server struct {
	grpc       *grpc.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger
}

// NewServer listens on the profile's Unix socket. A leftover socket file is
// removed first; the profile lock rules out a live owner.
func NewServer(p Params, logger *zap.Logger, svc *api.ConversationService) (*Server, error) {
	path := p.SocketPath
	if path == "" {
		path = session.SocketPath(p.Profile)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	log := logger.Named("api")
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(logUnary(log)),
		grpc.ChainStreamInterceptor(logStream(log)),
	)
	api.RegisterConversationServer(srv, svc)
	return &Server{grpc: srv, listener: ln, socketPath: path, logger: logger}, nil
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("control socket listening", zap.String("socket", s.socketPath))
	return s.grpc.Serve(s.listener)
}

// Stop drains in-flight calls and removes the socket. Watch streams that
// outlive ctx are cut.
func (s *Server) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("forcing control socket shutdown")
		s.grpc.Stop()
		<-done
	}
	_ = os.Remove(s.socketPath)
	s.logger.Info("control socket closed")
}

func (s *Server) SocketPath() string { return s.socketPath }

func logUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(log, info.FullMethod, start, err)
		return resp, err
	}
}

func logStream(log *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(log, info.FullMethod, start, err)
		return err
	}
}

func logCall(log *zap.Logger, method string, start time.Time, err error) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.Duration("took", time.Since(start)),
	}
	if err != nil {
		log.Warn("call failed", append(fields, zap.Stringer("code", status.Code(err)), zap.Error(err))...)
		return
	}
	log.Debug("call", fields...)
}
