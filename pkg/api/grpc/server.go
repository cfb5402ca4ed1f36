// Package grpcapi implements the Calculator gRPC service over the same store
// as the REST API.
package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/lemonberrylabs/infixcalc/pkg/expr"
	"github.com/lemonberrylabs/infixcalc/pkg/store"
)

// Server implements the Calculator gRPC service.
type Server struct {
	store *store.Store
	log   zerolog.Logger
	grpc  *grpc.Server
}

var _ CalculatorServer = (*Server)(nil)

// New creates a new gRPC server wrapping the given store.
func New(s *store.Store, logger zerolog.Logger) *Server {
	srv := &Server{
		store: s,
		log:   logger,
	}

	gs := grpc.NewServer(grpc.UnaryInterceptor(srv.logCalls))
	RegisterCalculatorServer(gs, srv)
	srv.grpc = gs

	return srv
}

// Serve starts listening on the given address and serves gRPC requests.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.grpc.Serve(lis)
}

// GracefulStop gracefully stops the gRPC server.
func (s *Server) GracefulStop() {
	s.grpc.GracefulStop()
}

func (s *Server) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.log.Debug().
		Str("method", info.FullMethod).
		Str("code", status.Code(err).String()).
		Dur("took", time.Since(start)).
		Msg("rpc")
	return resp, err
}

// --- Calculator Service ---

func (s *Server) Evaluate(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	expression := req.GetValue()
	if expression == "" {
		return nil, status.Error(codes.InvalidArgument, "expression is required")
	}

	result, evalErr := expr.Evaluate(expression)
	ev, err := s.store.RecordEvaluation("", expression, result, evalErr)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return evaluationToStruct(ev)
}

func (s *Server) GetEvaluation(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	ev, err := s.store.GetEvaluation(req.GetValue())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return evaluationToStruct(ev)
}

func (s *Server) ListEvaluations(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	evs := s.store.ListEvaluations("")

	list := &structpb.ListValue{Values: make([]*structpb.Value, len(evs))}
	for i, ev := range evs {
		st, err := evaluationToStruct(ev)
		if err != nil {
			return nil, err
		}
		list.Values[i] = structpb.NewStructValue(st)
	}
	return list, nil
}

// --- Internal helpers ---

func evaluationToStruct(ev *store.Evaluation) (*structpb.Struct, error) {
	m := map[string]any{
		"name":       ev.Name,
		"expression": ev.Expression,
		"state":      string(ev.State),
		"createTime": ev.CreateTime.Format(time.RFC3339),
	}

	if ev.State == store.EvaluationSucceeded {
		m["result"] = ev.Result
	}
	if ev.Error != nil {
		m["error"] = map[string]any{
			"tag":     ev.Error.Tag,
			"message": ev.Error.Message,
			"pos":     ev.Error.Pos,
		}
	}
	if ev.Batch != "" {
		m["batch"] = ev.Batch
		m["entryId"] = ev.EntryID
	}
	if ev.Matched != nil {
		m["expect"] = ev.Expect
		m["matched"] = *ev.Matched
	}

	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode evaluation: %v", err)
	}
	return st, nil
}
