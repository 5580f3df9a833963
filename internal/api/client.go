package api

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the daemon over its unix socket.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon listening on socketPath. The connection is
// established lazily on the first call.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call invokes a unary method with req and returns its response fields.
func (c *Client) Call(ctx context.Context, method string, req map[string]any) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Stream opens a server stream and calls fn for every response until the
// stream ends, ctx is cancelled, or fn returns an error.
func (c *Client) Stream(ctx context.Context, method string, req map[string]any, fn func(map[string]any) error) error {
	desc := streamDesc(method)
	if desc == nil {
		return fmt.Errorf("unknown stream %q", method)
	}
	in, err := structpb.NewStruct(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	stream, err := c.conn.NewStream(ctx, desc, FullMethod(method))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(in); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(out.AsMap()); err != nil {
			return err
		}
	}
}
