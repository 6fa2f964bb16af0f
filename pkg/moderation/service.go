package moderation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/cloudgroundcontrol/livekit-moderation/pkg/authguard"
	"github.com/cloudgroundcontrol/livekit-moderation/pkg/floor"
	"github.com/cloudgroundcontrol/livekit-moderation/pkg/notify"
	"github.com/cloudgroundcontrol/livekit-moderation/pkg/session"
	"github.com/labstack/gommon/log"
	"github.com/livekit/protocol/utils"
	lksdk "github.com/livekit/server-sdk-go"
)

const moderatorBotPrefix = "MB_"

var (
	ErrUrlMustHaveWS      = errors.New("url must contain either ws:// or wss://")
	ErrRoomNotModerated   = errors.New("room is not moderated")
	ErrUnknownParticipant = errors.New("participant not found in room")
)

// Service hosts the moderation control plane: one hidden bot per moderated
// room, plus the operations a moderator console drives.
type Service interface {
	StartModeration(ctx context.Context, room string) error
	StopModeration(room string)

	ToggleRestrictedMode(ctx context.Context, room string, requestedBy string, enable bool) error
	RequestUnmute(ctx context.Context, room string, identity string) (bool, error)
	RaiseHand(ctx context.Context, room string, identity string) error
	LowerHand(ctx context.Context, room string, identity string) error
	SetApproval(ctx context.Context, room string, identity string, kind session.MediaKind, approved bool) error
	MuteAll(ctx context.Context, room string, exclude []string) error
	Status(room string) (floor.Status, error)
}

type service struct {
	// Info
	url      string
	sentinel string

	// State
	lock sync.Mutex
	bots map[string]*bot

	// Services
	auth  *authProvider
	lksvc *lksdk.RoomServiceClient
	guard *authguard.Pipeline
	sink  notify.Sink
}

func httpUrlFromWS(url string) string {
	if strings.Contains(url, "ws://") {
		return strings.ReplaceAll(url, "ws://", "http://")
	} else if strings.Contains(url, "wss://") {
		return strings.ReplaceAll(url, "wss://", "https://")
	}
	return ""
}

func NewService(url string, apiKey string, apiSecret string, sentinel string, sink notify.Sink, recorder authguard.Recorder) (Service, error) {
	httpUrl := httpUrlFromWS(url)
	if httpUrl == "" {
		return nil, ErrUrlMustHaveWS
	}
	if sentinel == "" {
		sentinel = authguard.DefaultSentinelClaim
	}
	if sink == nil {
		sink = notify.NewLogSink()
	}

	auth := createAuthProvider(apiKey, apiSecret)
	lksvc := lksdk.NewRoomServiceClient(httpUrl, apiKey, apiSecret)

	return &service{
		url:      url,
		sentinel: sentinel,
		lock:     sync.Mutex{},
		bots:     make(map[string]*bot),
		auth:     auth,
		lksvc:    lksvc,
		guard:    authguard.NewPipeline(sentinel, recorder),
		sink:     sink,
	}, nil
}

func (s *service) StartModeration(ctx context.Context, room string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, found := s.bots[room]; found {
		return nil
	}

	log.Debugf("no bot found in room, creating one | room: %s", room)
	id := utils.NewGuid(moderatorBotPrefix)
	token, err := s.auth.buildObserverToken(room, id)
	if err != nil {
		return err
	}

	b, err := createBot(id, room, s.url, token, s.lksvc, s.guard, s.sentinel, s.sink)
	if err != nil {
		return err
	}
	s.bots[room] = b
	return nil
}

func (s *service) StopModeration(room string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	b, found := s.bots[room]
	if !found {
		return
	}
	b.disconnect()
	delete(s.bots, room)
}

func (s *service) botFor(room string) (*bot, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	b, found := s.bots[room]
	if !found {
		return nil, ErrRoomNotModerated
	}
	return b, nil
}

func (s *service) ToggleRestrictedMode(ctx context.Context, room string, requestedBy string, enable bool) error {
	b, err := s.botFor(room)
	if err != nil {
		return err
	}

	var known bool
	b.coord.WithSession(func(sess *session.Session) {
		known = sess.Participant(requestedBy) != nil
	})
	if !known {
		return ErrUnknownParticipant
	}

	cmds := b.coord.ToggleRestrictedMode(requestedBy, enable)
	b.dispatch(cmds)
	return nil
}

func (s *service) RequestUnmute(ctx context.Context, room string, identity string) (bool, error) {
	b, err := s.botFor(room)
	if err != nil {
		return false, err
	}

	granted, cmds := b.coord.RequestLocalUnmute(identity)
	b.dispatch(cmds)
	if granted {
		b.sched.schedule(identity, convergenceDelay, b.reconverge)
	}
	return granted, nil
}

func (s *service) RaiseHand(ctx context.Context, room string, identity string) error {
	b, err := s.botFor(room)
	if err != nil {
		return err
	}
	b.dispatch(b.coord.RaiseHand(identity))
	return nil
}

func (s *service) LowerHand(ctx context.Context, room string, identity string) error {
	b, err := s.botFor(room)
	if err != nil {
		return err
	}
	b.dispatch(b.coord.LowerHand(identity))
	return nil
}

func (s *service) SetApproval(ctx context.Context, room string, identity string, kind session.MediaKind, approved bool) error {
	b, err := s.botFor(room)
	if err != nil {
		return err
	}

	if approved {
		b.approvals.Approve(identity, kind)
	} else {
		b.approvals.Revoke(identity, kind)
	}
	b.coord.SetApproved(identity, kind, approved)
	log.Infof("approval changed | room: %s, participant: %s, kind: %s, approved: %t", room, identity, kind, approved)
	return nil
}

func (s *service) MuteAll(ctx context.Context, room string, exclude []string) error {
	b, err := s.botFor(room)
	if err != nil {
		return err
	}
	b.dispatch(b.coord.MuteAll(exclude))
	return nil
}

func (s *service) Status(room string) (floor.Status, error) {
	b, err := s.botFor(room)
	if err != nil {
		return floor.Status{}, err
	}
	return b.coord.Snapshot(), nil
}
