package api

import (
	"context"
	"time"

	"github.com/matheus3301/jobboard/internal/bus"
	"github.com/matheus3301/jobboard/internal/gate"
	"github.com/matheus3301/jobboard/internal/model"
	"github.com/matheus3301/jobboard/internal/outbox"
	"github.com/matheus3301/jobboard/internal/repository"
	"github.com/matheus3301/jobboard/internal/status"
	intsync "github.com/matheus3301/jobboard/internal/sync"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Deps wires a Service. Poller and Outbox are optional.
type Deps struct {
	Profile  string
	Jobs     *repository.Jobs
	Users    *repository.Users
	Messages *repository.Messages
	Session  *intsync.Session
	Machine  *status.Machine
	Gate     gate.Gate
	Bus      *bus.Bus
	Poller   *intsync.Poller
	Outbox   *outbox.Dispatcher
	Logger   *zap.Logger
}

// Service implements the JobBoard gRPC service.
type Service struct {
	Deps
	startedAt time.Time
}

// NewService creates the service.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Gate == nil {
		d.Gate = gate.NewStatic(false)
	}
	return &Service{Deps: d, startedAt: time.Now()}
}

// me returns the signed-in user, or the key in field when the request
// names one.
func (s *Service) me(ctx context.Context, a args, field string) (int64, error) {
	if a.has(field) {
		return a.requiredKey(field)
	}
	st, err := s.Session.Current(ctx)
	if err != nil {
		return 0, toStatus("session", err)
	}
	if !st.SignedIn() {
		return 0, grpcstatus.Errorf(codes.Unauthenticated, "not signed in")
	}
	return st.UserID, nil
}

func (s *Service) GetStatus(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	resp := map[string]any{
		"profile":   s.Profile,
		"status":    string(s.Machine.Current()),
		"online":    s.Gate.Online(ctx),
		"uptime_ms": float64(time.Since(s.startedAt).Milliseconds()),
	}
	st, err := s.Session.Current(ctx)
	if err != nil {
		return nil, toStatus("session", err)
	}
	resp["guest"] = st.Guest
	if st.UserID != 0 {
		resp["user_id"] = key(st.UserID)
	}
	return toStruct(resp)
}

// Users.

func (s *Service) RegisterUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.Users.Register(ctx, userFromArgs(argsOf(in)))
	if err != nil {
		return nil, toStatus("register", err)
	}
	return toStruct(writeMap(res))
}

// Login checks the credentials and signs the user in on success.
func (s *Service) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(in)
	res, err := s.Users.Login(ctx, a.str("email"), a.str("password"))
	if err != nil {
		return nil, toStatus("login", err)
	}
	if !res.Found {
		return nil, grpcstatus.Errorf(codes.Unauthenticated, "invalid email or password")
	}
	if err := s.Session.SignIn(ctx, res.Value.ID); err != nil {
		return nil, toStatus("login", err)
	}
	s.Logger.Info("signed in", zap.Int64("user", res.Value.ID), zap.Stringer("source", res.Source))
	return toStruct(resultMap(res, "user", userMap))
}

func (s *Service) LoginGuest(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.Session.SignInGuest(ctx); err != nil {
		return nil, toStatus("guest login", err)
	}
	return toStruct(map[string]any{"guest": true})
}

func (s *Service) Logout(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.Session.SignOut(ctx); err != nil {
		return nil, toStatus("logout", err)
	}
	return toStruct(map[string]any{})
}

func (s *Service) GetUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.me(ctx, argsOf(in), "id")
	if err != nil {
		return nil, err
	}
	res, err := s.Users.Get(ctx, id)
	if err != nil {
		return nil, toStatus("get user", err)
	}
	return toStruct(resultMap(res, "user", userMap))
}

// FindUser looks a user up by email or username.
func (s *Service) FindUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(in)
	var (
		res repository.Result[model.User]
		err error
	)
	switch {
	case a.str("email") != "":
		res, err = s.Users.ByEmail(ctx, a.str("email"))
	case a.str("username") != "":
		res, err = s.Users.ByUsername(ctx, a.str("username"))
	default:
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "email or username is required")
	}
	if err != nil {
		return nil, toStatus("find user", err)
	}
	return toStruct(resultMap(res, "user", userMap))
}

func (s *Service) ListUsers(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.Users.List(ctx)
	if err != nil {
		return nil, toStatus("list users", err)
	}
	return toStruct(itemsMap(res.Items, res.Source, userMap))
}

func (s *Service) SearchUsers(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(in)
	res, err := s.Users.Search(ctx, a.str("query"), a.int("limit"))
	if err != nil {
		return nil, toStatus("search users", err)
	}
	return toStruct(itemsMap(res.Items, res.Source, userMap))
}

// SetProfilePhoto sets photo_url when given, otherwise the photo_id selector.
func (s *Service) SetProfilePhoto(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(in)
	id, err := s.me(ctx, a, "id")
	if err != nil {
		return nil, err
	}
	var res repository.WriteResult
	if a.has("photo_url") {
		res, err = s.Users.SetProfilePhotoURL(ctx, id, a.str("photo_url"))
	} else {
		res, err = s.Users.SetProfilePhoto(ctx, id, a.int("photo_id"))
	}
	if err != nil {
		return nil, toStatus("set photo", err)
	}
	return toStruct(writeMap(res))
}

// Jobs.

// CreateJob posts a job. The employer defaults to the signed-in user.
func (s *Service) CreateJob(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(in)
	j, err := jobFromArgs(a)
	if err != nil {
		return nil, err
	}
	if j.EmployerID == 0 {
		if j.EmployerID, err = s.me(ctx, a, "employer_id"); err != nil {
			return nil, err
		}
	}
	res, err := s.Jobs.Create(ctx, j)
	if err != nil {
		return nil, toStatus("create job", err)
	}
	return toStruct(writeMap(res))
}

func (s *Service) UpdateJob(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(in)
	id, err := a.requiredKey("id")
	if err != nil {
		return nil, err
	}
	j, err := jobFromArgs(a)
	if err != nil {
		return nil, err
	}
	j.ID = id
	if j.EmployerID == 0 {
		if j.EmployerID, err = s.me(ctx, a, "employer_id"); err != nil {
			return nil, err
		}
	}
	res, err := s.Jobs.Update(ctx, j)
	if err != nil {
		return nil, toStatus("update job", err)
	}
	return toStruct(writeMap(res))
}

func (s *Service) DeleteJob(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := argsOf(in).requiredKey("id")
	if err != nil {
		return nil, err
	}
	res, err := s.Jobs.Delete(ctx, id)
	if err != nil {
		return nil, toStatus("delete job", err)
	}
	return toStruct(writeMap(res))
}

func (s *Service) GetJob(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := argsOf(in).requiredKey("id")
	if err != nil {
		return nil, err
	}
	res, err := s.Jobs.Get(ctx, id)
	if err != nil {
		return nil, toStatus("get job", err)
	}
	return toStruct(resultMap(res, "job", jobMap))
}

func (s *Service) SearchJobs(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f, err := filterFromArgs(argsOf(in))
	if err != nil {
		return nil, err
	}
	res, err := s.Jobs.Search(ctx, f)
	if err != nil {
		return nil, toStatus("search jobs", err)
	}
	return toStruct(itemsMap(res.Items, res.Source, jobMap))
}

// Messages.

// SendMessage sends text to receiver_id from the signed-in user.
func (s *Service) SendMessage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(in)
	from, err := s.me(ctx, a, "sender_id")
	if err != nil {
		return nil, err
	}
	to, err := a.requiredKey("receiver_id")
	if err != nil {
		return nil, err
	}
	res, err := s.Messages.Send(ctx, model.Message{SenderID: from, ReceiverID: to, Text: a.str("text")})
	if err != nil {
		return nil, toStatus("send message", err)
	}
	return toStruct(writeMap(res))
}

// Conversation lists the messages between the signed-in user and with.
func (s *Service) Conversation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(in)
	me, err := s.me(ctx, a, "user_id")
	if err != nil {
		return nil, err
	}
	with, err := a.requiredKey("with")
	if err != nil {
		return nil, err
	}
	res, err := s.Messages.Conversation(ctx, me, with)
	if err != nil {
		return nil, toStatus("conversation", err)
	}
	return toStruct(itemsMap(res.Items, res.Source, messageMap))
}

func (s *Service) MessagesForUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	me, err := s.me(ctx, argsOf(in), "user_id")
	if err != nil {
		return nil, err
	}
	res, err := s.Messages.ForUser(ctx, me)
	if err != nil {
		return nil, toStatus("list messages", err)
	}
	return toStruct(itemsMap(res.Items, res.Source, messageMap))
}

func (s *Service) GetMessage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := argsOf(in).requiredKey("id")
	if err != nil {
		return nil, err
	}
	res, err := s.Messages.Get(ctx, id)
	if err != nil {
		return nil, toStatus("get message", err)
	}
	return toStruct(resultMap(res, "message", messageMap))
}

// SyncMessages pulls incoming messages and drains the notification outbox
// now instead of waiting for the next tick. With "with" set it also pulls
// that conversation.
func (s *Service) SyncMessages(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(in)
	resp := map[string]any{}
	if a.has("with") {
		me, err := s.me(ctx, a, "user_id")
		if err != nil {
			return nil, err
		}
		with, err := a.requiredKey("with")
		if err != nil {
			return nil, err
		}
		src, err := s.Messages.SyncConversation(ctx, me, with)
		if err != nil {
			return nil, toStatus("sync conversation", err)
		}
		resp["source"] = src.String()
	}
	if s.Poller != nil {
		n, err := s.Poller.Poll(ctx)
		if err != nil {
			return nil, toStatus("poll", err)
		}
		resp["incoming"] = float64(n)
	}
	if s.Outbox != nil {
		resp["notified"] = float64(s.Outbox.Flush(ctx))
	}
	return toStruct(resp)
}
