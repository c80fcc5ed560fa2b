package grpc

import (
	"context"
	"fmt"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/logutil"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

type Client struct {
	conn *grpc.ClientConn
}

const maxMsgSize = 64 * 1024 * 1024

// NewGrpcClient connects lazily to a span collector at address:port. Extra
// dial options are appended after the defaults.
func NewGrpcClient(address string, port string, opts ...grpc.DialOption) (*Client, error) {
	serverAdress := fmt.Sprintf("%s:%s", address, port)
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMsgSize),
			grpc.MaxCallSendMsgSize(maxMsgSize),
			grpc.CallContentSubtype(codecName)),
	}, opts...)

	conn, err := grpc.NewClient(serverAdress, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) SendSpanBatch(ctx context.Context, in *types.SpanBatch) (*types.CollectorAck, error) {
	logger := logutil.GetLogger()

	logger.Info("Batch size", zap.String("type", in.Type), zap.Int("size", len(in.Batch)))

	out := new(types.CollectorAck)
	if err := c.conn.Invoke(ctx, sendSpanBatchFullRPC, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Run ships every batch until the channel closes or ctx is cancelled. It
// gives up when the server is unavailable.
func (c *Client) Run(ctx context.Context, batches <-chan *types.SpanBatch) error {
	logger := logutil.GetLogger()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Client received cancellation signal")
			return nil
		case batch, ok := <-batches:
			if !ok {
				logger.Info("Batch stream closed")
				return nil
			}
			ack, err := c.SendSpanBatch(ctx, batch)
			if err != nil {
				logger.Error("Error from sending", zap.Error(err))
				st, ok := status.FromError(err)
				if ok && (st.Code() == codes.Unavailable || st.Code() == codes.Canceled) {
					logger.Warn("Server unavailable. Shutting down client.")
					return err
				}
				continue
			}
			logger.Debug("Batch acknowledged", zap.String("status", ack.Status), zap.Int("received", ack.Received))
		}
	}
}
