package api

import (
	"fmt"
	"strconv"

	"github.com/matheus3301/jobboard/internal/bus"
	"github.com/matheus3301/jobboard/internal/model"
	"github.com/matheus3301/jobboard/internal/repository"
	"github.com/matheus3301/jobboard/internal/status"
	intsync "github.com/matheus3301/jobboard/internal/sync"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// eventBuffer is the bus subscription size for WatchEvents. Events beyond
// it are dropped for a slow client.
const eventBuffer = 128

// forward sends each snapshot of sub as an items response until the client
// goes away or the subscription ends.
func forward[T any](stream grpc.ServerStream, sub *repository.Subscription[T], conv func(T) map[string]any) error {
	defer sub.Cancel()
	for {
		select {
		case <-stream.Context().Done():
			return nil
		case items, ok := <-sub.C:
			if !ok {
				return nil
			}
			msg, err := toStruct(itemsMap(items, 0, conv))
			if err != nil {
				return err
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

// WatchJobs streams the jobs matching the request filter, once now and
// again after every local change.
func (s *Service) WatchJobs(in *structpb.Struct, stream grpc.ServerStream) error {
	f, err := filterFromArgs(argsOf(in))
	if err != nil {
		return err
	}
	return forward(stream, s.Jobs.Watch(stream.Context(), f), jobMap)
}

func (s *Service) WatchConversation(in *structpb.Struct, stream grpc.ServerStream) error {
	a := argsOf(in)
	me, err := s.me(stream.Context(), a, "user_id")
	if err != nil {
		return err
	}
	with, err := a.requiredKey("with")
	if err != nil {
		return err
	}
	return forward(stream, s.Messages.WatchConversation(stream.Context(), me, with), messageMap)
}

// WatchEvents streams bus events whose kind starts with the requested
// namespace. An empty namespace streams everything.
func (s *Service) WatchEvents(in *structpb.Struct, stream grpc.ServerStream) error {
	if s.Bus == nil {
		return grpcstatus.Errorf(codes.Unavailable, "event bus not configured")
	}
	events, unsub := s.Bus.Subscribe(argsOf(in).str("namespace"), eventBuffer)
	defer unsub()
	for {
		select {
		case <-stream.Context().Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			msg, err := toStruct(eventMap(evt))
			if err != nil {
				s.Logger.Warn("drop event", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

func eventMap(evt bus.Event) map[string]any {
	return map[string]any{
		"kind":      evt.Kind,
		"timestamp": float64(evt.Timestamp.UnixMilli()),
		"payload":   payloadMap(evt.Payload),
	}
}

func payloadMap(p any) map[string]any {
	switch p := p.(type) {
	case bus.Change:
		return map[string]any{"table": p.Table, "op": p.Op, "key": key(p.Key)}
	case status.StatusChange:
		return map[string]any{"from": string(p.From), "to": string(p.To)}
	case intsync.IncomingMessage:
		return map[string]any{
			"id":          key(p.MessageID),
			"sender_id":   key(p.SenderID),
			"sender_name": p.SenderName,
			"text":        p.Text,
			"timestamp":   float64(p.Timestamp),
		}
	case model.Message:
		return messageMap(p)
	case map[string]string:
		m := make(map[string]any, len(p))
		for k, v := range p {
			m[k] = v
		}
		return m
	case map[string]int64:
		m := make(map[string]any, len(p))
		for k, v := range p {
			m[k] = strconv.FormatInt(v, 10)
		}
		return m
	case nil:
		return map[string]any{}
	}
	return map[string]any{"value": fmt.Sprint(p)}
}
