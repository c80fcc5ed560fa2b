package grpc

import (
	"context"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"google.golang.org/grpc"
)

const (
	serviceName          = "gputrace.SpanCollector"
	sendSpanBatchMethod  = "SendSpanBatch"
	sendSpanBatchFullRPC = "/" + serviceName + "/" + sendSpanBatchMethod
)

// SpanCollectorServer receives span batches from agents.
type SpanCollectorServer interface {
	SendSpanBatch(ctx context.Context, in *types.SpanBatch) (*types.CollectorAck, error)
}

func sendSpanBatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(types.SpanBatch)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SpanCollectorServer).SendSpanBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: sendSpanBatchFullRPC,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SpanCollectorServer).SendSpanBatch(ctx, req.(*types.SpanBatch))
	}
	return interceptor(ctx, in, info, handler)
}

var spanCollectorServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SpanCollectorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: sendSpanBatchMethod,
			Handler:    sendSpanBatchHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gputrace/span_collector",
}

func RegisterSpanCollectorServer(s grpc.ServiceRegistrar, srv SpanCollectorServer) {
	s.RegisterService(&spanCollectorServiceDesc, srv)
}
