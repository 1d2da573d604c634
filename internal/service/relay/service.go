package relay

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yachaflex/pairing/internal/model/biometric"
	"github.com/yachaflex/pairing/internal/model/pairing"
	"github.com/yachaflex/pairing/internal/service/link"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExpired   = errors.New("session expired")
	ErrAlreadyDelivered = errors.New("session already received a payload")
)

// DefaultTTL bounds how long a session waits for its forwarder.
const DefaultTTL = 10 * time.Minute

// Rejection reasons reported to the Recorder.
const (
	RejectToken     = "token"
	RejectNotFound  = "not_found"
	RejectExpired   = "expired"
	RejectDuplicate = "duplicate"
)

// Recorder receives relay lifecycle events.
type Recorder interface {
	SessionCreated()
	Delivered(elapsed time.Duration)
	Rejected(reason string)
	Expired(n int)
	Active(n int)
}

type nopRecorder struct{}

func (nopRecorder) SessionCreated()         {}
func (nopRecorder) Delivered(time.Duration) {}
func (nopRecorder) Rejected(string)         {}
func (nopRecorder) Expired(int)             {}
func (nopRecorder) Active(int)              {}

// Options configure a Service.
type Options struct {
	// PublicURL is the externally reachable base URL the forwarder posts to.
	PublicURL string
	Parser    link.Parser
	Style     link.Style
	TTL       time.Duration
	Recorder  Recorder
	Now       func() time.Time
}

// Service keeps pairing sessions in memory and fans results out to the
// waiting web clients.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]pairing.Session
	watchers map[string]map[int]chan pairing.Status
	nextID   int

	tokens   *Tokens
	opts     Options
	recorder Recorder
}

// NewService bootstraps the in-memory relay.
func NewService(tokens *Tokens, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Parser.Scheme == "" || opts.Parser.Host == "" {
		opts.Parser = link.NewParser(opts.Parser.Scheme, opts.Parser.Host)
	}
	if opts.Style == "" {
		opts.Style = link.StyleCustom
	}
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")

	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	tokens.Now = opts.Now

	return &Service{
		sessions: make(map[string]pairing.Session),
		watchers: make(map[string]map[int]chan pairing.Status),
		tokens:   tokens,
		opts:     opts,
		recorder: recorder,
	}
}

// CreateSession provisions a session and the ticket the web client shows as
// a QR code.
func (s *Service) CreateSession(_ context.Context) (pairing.Ticket, error) {
	now := s.opts.Now().UTC()
	session := pairing.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.TTL),
	}

	token, claims, err := s.tokens.Issue(session.ID, session.ExpiresAt)
	if err != nil {
		return pairing.Ticket{}, err
	}
	session.TokenID = claims.TokenID

	s.mu.Lock()
	s.sessions[session.ID] = session
	active := len(s.sessions)
	s.mu.Unlock()

	s.recorder.SessionCreated()
	s.recorder.Active(active)

	endpoint := s.Endpoint(session.ID)
	return pairing.Ticket{
		ID:        session.ID,
		Token:     token,
		Endpoint:  endpoint,
		Link:      s.opts.Parser.Build(s.opts.Style, endpoint, token),
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Endpoint is the URL a forwarder delivers the session's payload to.
func (s *Service) Endpoint(sessionID string) string {
	return s.opts.PublicURL + "/api/biometrics?session_id=" + url.QueryEscape(sessionID)
}

// Link rebuilds the deep link of an existing session after checking token.
func (s *Service) Link(_ context.Context, sessionID, token string) (string, error) {
	if _, err := s.authorize(sessionID, token); err != nil {
		return "", err
	}
	return s.opts.Parser.Build(s.opts.Style, s.Endpoint(sessionID), token), nil
}

// Deliver stores the forwarder's payload. Each session accepts exactly one.
func (s *Service) Deliver(_ context.Context, sessionID, token string, payload biometric.Payload) (pairing.Session, error) {
	session, err := s.deliver(sessionID, token, payload)
	if err != nil {
		s.recorder.Rejected(rejectReason(err))
		return pairing.Session{}, err
	}

	s.recorder.Delivered(session.Result.ReceivedAt.Sub(session.CreatedAt))
	log.Printf("[relay] session %s received payload", session.ID)
	return session, nil
}

func (s *Service) deliver(sessionID, token string, payload biometric.Payload) (pairing.Session, error) {
	claims, err := s.tokens.Verify(token, sessionID)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return pairing.Session{}, err
	}
	now := s.opts.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return pairing.Session{}, ErrSessionNotFound
	}
	if session.TokenID != claims.TokenID {
		return pairing.Session{}, ErrTokenInvalid
	}
	if errors.Is(err, ErrTokenExpired) || session.Expired(now) {
		return pairing.Session{}, ErrSessionExpired
	}
	if session.Result != nil {
		return pairing.Session{}, ErrAlreadyDelivered
	}

	session.Result = &pairing.Result{Payload: payload, ReceivedAt: now}
	s.sessions[sessionID] = session

	status := pairing.StatusOf(session)
	for id, ch := range s.watchers[sessionID] {
		ch <- status
		close(ch)
		delete(s.watchers[sessionID], id)
	}
	delete(s.watchers, sessionID)

	return session, nil
}

// Status returns what the waiting web client polls for.
func (s *Service) Status(_ context.Context, sessionID, token string) (pairing.Status, error) {
	session, err := s.authorize(sessionID, token)
	if err != nil {
		return pairing.Status{}, err
	}
	return pairing.StatusOf(session), nil
}

// Watch returns the current status and, while the session is still waiting,
// a channel that yields the result once and is then closed. The channel is
// also closed without a value when the session expires or cancel is called.
func (s *Service) Watch(_ context.Context, sessionID, token string) (pairing.Status, <-chan pairing.Status, func(), error) {
	claims, err := s.tokens.Verify(token, sessionID)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return pairing.Status{}, nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return pairing.Status{}, nil, nil, ErrSessionNotFound
	}
	if session.TokenID != claims.TokenID {
		return pairing.Status{}, nil, nil, ErrTokenInvalid
	}

	current := pairing.StatusOf(session)
	ch := make(chan pairing.Status, 1)
	if session.Result != nil {
		close(ch)
		return current, ch, func() {}, nil
	}

	id := s.nextID
	s.nextID++
	if s.watchers[sessionID] == nil {
		s.watchers[sessionID] = make(map[int]chan pairing.Status)
	}
	s.watchers[sessionID][id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.watchers[sessionID][id]; ok {
			close(sub)
			delete(s.watchers[sessionID], id)
		}
	}
	return current, ch, cancel, nil
}

// Sweep drops sessions whose TTL has elapsed and returns how many were removed.
func (s *Service) Sweep(now time.Time) int {
	s.mu.Lock()
	removed := 0
	for id, session := range s.sessions {
		if !session.Expired(now) {
			continue
		}
		for wid, ch := range s.watchers[id] {
			close(ch)
			delete(s.watchers[id], wid)
		}
		delete(s.watchers, id)
		delete(s.sessions, id)
		removed++
	}
	active := len(s.sessions)
	s.mu.Unlock()

	if removed > 0 {
		s.recorder.Expired(removed)
		log.Printf("[relay] swept %d expired session(s)", removed)
	}
	s.recorder.Active(active)
	return removed
}

// RunSweeper sweeps every interval until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.opts.Now())
		}
	}
}

func (s *Service) authorize(sessionID, token string) (pairing.Session, error) {
	claims, err := s.tokens.Verify(token, sessionID)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return pairing.Session{}, err
	}

	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return pairing.Session{}, ErrSessionNotFound
	}
	if session.TokenID != claims.TokenID {
		return pairing.Session{}, ErrTokenInvalid
	}
	return session, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return RejectNotFound
	case errors.Is(err, ErrSessionExpired):
		return RejectExpired
	case errors.Is(err, ErrAlreadyDelivered):
		return RejectDuplicate
	default:
		return RejectToken
	}
}
