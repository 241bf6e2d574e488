package rpc

import (
	"context"
	"errors"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wfunc/geoworld/logger"
	"github.com/wfunc/geoworld/models"
	"github.com/wfunc/geoworld/world"
)

const serviceName = "geoworld.Admin"

type StatsRequest struct{}

type StatsReply struct {
	Players      int       `json:"players"`
	Sessions     int       `json:"sessions"`
	Items        int       `json:"items"`
	ClaimedItems int       `json:"claimedItems"`
	StartedAt    time.Time `json:"startedAt"`
	Uptime       string    `json:"uptime"`
}

type GetPlayerRequest struct {
	PlayerID string `json:"playerId"`
}

type GetPlayerReply struct {
	Player *models.Player `json:"player"`
}

// AdminServer is the server side of geoworld.Admin.
type AdminServer interface {
	WorldStats(ctx context.Context, req *StatsRequest) (*StatsReply, error)
	GetPlayer(ctx context.Context, req *GetPlayerRequest) (*GetPlayerReply, error)
}

// WorldReader is the part of the world the admin service reads.
type WorldReader interface {
	Stats(ctx context.Context) (world.Stats, error)
	Player(ctx context.Context, playerID string) (*models.Player, error)
}

// SessionCounter reports live connections.
type SessionCounter interface {
	Count() int
}

// AdminService exposes read-only world queries.
type AdminService struct {
	world    WorldReader
	sessions SessionCounter
}

func NewAdminService(w WorldReader, sessions SessionCounter) *AdminService {
	return &AdminService{world: w, sessions: sessions}
}

func (a *AdminService) WorldStats(ctx context.Context, _ *StatsRequest) (*StatsReply, error) {
	st, err := a.world.Stats(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	reply := &StatsReply{
		Players:      st.Players,
		Items:        st.Items,
		ClaimedItems: st.ClaimedItems,
		StartedAt:    st.StartedAt,
		Uptime:       time.Since(st.StartedAt).Truncate(time.Second).String(),
	}
	if a.sessions != nil {
		reply.Sessions = a.sessions.Count()
	}
	return reply, nil
}

func (a *AdminService) GetPlayer(ctx context.Context, req *GetPlayerRequest) (*GetPlayerReply, error) {
	if req.PlayerID == "" {
		return nil, status.Error(codes.InvalidArgument, "playerId is required")
	}
	p, err := a.world.Player(ctx, req.PlayerID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetPlayerReply{Player: p}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, world.ErrPlayerNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, world.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func worldStatsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).WorldStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/WorldStats"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).WorldStats(ctx, req.(*StatsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getPlayerHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetPlayerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).GetPlayer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetPlayer"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).GetPlayer(ctx, req.(*GetPlayerRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "WorldStats", Handler: worldStatsHandler},
		{MethodName: "GetPlayer", Handler: getPlayerHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "geoworld/admin",
}

// RegisterAdminServer attaches srv to s.
func RegisterAdminServer(s *grpc.Server, srv AdminServer) {
	s.RegisterService(&adminServiceDesc, srv)
}

// AdminClient calls geoworld.Admin.
type AdminClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminClient(cc grpc.ClientConnInterface) *AdminClient {
	return &AdminClient{cc: cc}
}

func (c *AdminClient) WorldStats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (*StatsReply, error) {
	out := new(StatsReply)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/WorldStats", in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AdminClient) GetPlayer(ctx context.Context, in *GetPlayerRequest, opts ...grpc.CallOption) (*GetPlayerReply, error) {
	out := new(GetPlayerReply)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/GetPlayer", in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
}

// Server manages the RPC listener.
type Server struct {
	grpc     *grpc.Server
	listener net.Listener
	address  string
}

// NewServer listens on addr and registers the admin service.
func NewServer(addr string, svc AdminServer) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newServer(listener, svc), nil
}

func newServer(listener net.Listener, svc AdminServer) *Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(logCalls))
	RegisterAdminServer(s, svc)
	return &Server{
		grpc:     s,
		listener: listener,
		address:  listener.Addr().String(),
	}
}

// Start serves until Stop is called.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	if err := s.grpc.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Log.Errorf("RPC server error: %v", err)
	}
}

// Stop waits for in-flight calls, then closes the listener.
func (s *Server) Stop() {
	logger.Log.Info("Stopping RPC server.")
	s.grpc.GracefulStop()
}

func logCalls(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	logger.Log.Debugw("RPC call", "method", info.FullMethod, "duration", time.Since(start), "error", err)
	return resp, err
}
