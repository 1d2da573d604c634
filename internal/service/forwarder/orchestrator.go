package forwarder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yachaflex/pairing/internal/model/biometric"
	"github.com/yachaflex/pairing/internal/model/pairing"
	"github.com/yachaflex/pairing/internal/service/health"
	"github.com/yachaflex/pairing/internal/service/link"
)

// DefaultWindow is the trailing lookback read on every fetch.
const DefaultWindow = time.Hour

// User-facing status lines.
const (
	StatusReadyToScan    = "Ready to scan."
	StatusScanned        = "QR scanned successfully."
	StatusEndpointRecv   = "Endpoint received."
	StatusScanFailed     = "Scan failed."
	StatusAwaitingGrant  = "Waiting for permission..."
	StatusPermission     = "Permission denied."
	StatusUnavailable    = "Health provider unavailable."
	StatusUpdateRequired = "Update health provider."
	StatusFetchFailed    = "Fetch failed."
	StatusReadyToSend    = "Ready to send."
	StatusSending        = "Sending..."
	StatusNothingToSend  = "Nothing to send."
	StatusSent           = "Sent successfully."
	StatusSendFailed     = "Send failed."
)

const (
	subscriberBufferSize = 32
	commandQueueSize     = 32
)

// Phase is the orchestrator state.
type Phase int

const (
	Idle Phase = iota
	Connected
	Fetching
	Ready
	Sending
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Connected:
		return "connected"
	case Fetching:
		return "fetching"
	case Ready:
		return "ready"
	case Sending:
		return "sending"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Source tells where scanned content came from.
type Source int

const (
	SourceQR Source = iota
	SourceDeepLink
)

// Sender delivers a payload to a descriptor's endpoint.
type Sender interface {
	Send(ctx context.Context, d pairing.Descriptor, payload any) error
}

// Options tune the orchestrator. Zero values fall back to defaults.
type Options struct {
	Window   time.Duration
	Parser   link.Parser
	Now      func() time.Time
	Location *time.Location
}

// Snapshot is what the UI renders after every transition.
type Snapshot struct {
	Phase                 Phase
	Status                string
	IsError               bool
	Descriptor            *pairing.Descriptor
	Summary               string
	Payload               []byte
	ReadyToSend           bool
	AwaitingAuthorization bool
	Generation            uint64
}

// Orchestrator drives scan -> permission check -> fetch -> send -> reset.
// All state lives on the goroutine running Run; callers and background
// reads/sends talk to it through a command queue, and results carry the
// generation they were started under so superseded ones are dropped.
type Orchestrator struct {
	reader     health.Reader
	authorizer health.Authorizer
	sender     Sender
	opts       Options

	cmds chan func()
	done chan struct{}
	ctx  context.Context

	state       SessionState
	phase       Phase
	status      string
	isError     bool
	awaiting    bool
	subscribers map[int]chan Snapshot
	nextSubID   int
}

// New builds an orchestrator. Run must be called for it to make progress.
func New(reader health.Reader, authorizer health.Authorizer, sender Sender, opts Options) *Orchestrator {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Parser.Scheme == "" || opts.Parser.Host == "" {
		opts.Parser = link.NewParser(opts.Parser.Scheme, opts.Parser.Host)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	return &Orchestrator{
		reader:      reader,
		authorizer:  authorizer,
		sender:      sender,
		opts:        opts,
		cmds:        make(chan func(), commandQueueSize),
		done:        make(chan struct{}),
		status:      StatusReadyToScan,
		subscribers: make(map[int]chan Snapshot),
	}
}

// Run processes commands until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.ctx = ctx
	defer close(o.done)
	defer func() {
		for id, ch := range o.subscribers {
			close(ch)
			delete(o.subscribers, id)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-o.cmds:
			fn()
		}
	}
}

// Submit feeds scanned or deep-linked content into the machine. It is
// accepted in every phase and restarts the attempt with the new descriptor.
func (o *Orchestrator) Submit(raw string, src Source) {
	o.enqueue(func() { o.handleContent(raw, src) })
}

// Send delivers the current payload. It does nothing useful unless a payload
// is ready and no send is in flight.
func (o *Orchestrator) Send() {
	o.enqueue(o.handleSend)
}

// Snapshot returns the current state, or a zero Snapshot once Run has exited.
func (o *Orchestrator) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	if !o.enqueue(func() { reply <- o.snapshot() }) {
		return Snapshot{}
	}
	select {
	case snap := <-reply:
		return snap
	case <-o.done:
		return Snapshot{}
	}
}

// Subscribe returns a channel receiving a snapshot after every transition,
// starting with the current one. Slow subscribers miss intermediate updates.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBufferSize)
	idCh := make(chan int, 1)
	if !o.enqueue(func() {
		id := o.nextSubID
		o.nextSubID++
		o.subscribers[id] = ch
		ch <- o.snapshot()
		idCh <- id
	}) {
		close(ch)
		return ch, func() {}
	}

	var id int
	select {
	case id = <-idCh:
	case <-o.done:
		return ch, func() {}
	}

	cancel := func() {
		o.enqueue(func() {
			if sub, ok := o.subscribers[id]; ok {
				close(sub)
				delete(o.subscribers, id)
			}
		})
	}
	return ch, cancel
}

func (o *Orchestrator) enqueue(fn func()) bool {
	select {
	case o.cmds <- fn:
		return true
	case <-o.done:
		return false
	}
}

// post hands a background result back to the loop.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.cmds <- fn:
	case <-o.done:
	}
}

func (o *Orchestrator) handleContent(raw string, src Source) {
	d, err := o.opts.Parser.Parse(raw)
	if err != nil {
		o.setStatus(StatusScanFailed, true)
		o.publish()
		return
	}

	gen := o.state.SetDescriptor(d)
	o.phase = Connected
	o.awaiting = false
	if src == SourceQR {
		o.setStatus(StatusScanned, false)
	} else {
		o.setStatus(StatusEndpointRecv, false)
	}
	o.publish()

	o.startFetch(gen)
}

func (o *Orchestrator) startFetch(gen uint64) {
	o.phase = Fetching
	o.publish()

	ctx := o.ctx
	go func() {
		if err := o.reader.Status(ctx).Err(); err != nil {
			o.post(func() { o.fetchFailed(gen, err) })
			return
		}

		grants, err := o.reader.GrantedPermissions(ctx)
		if err != nil {
			o.post(func() { o.fetchFailed(gen, err) })
			return
		}
		if missing := grants.Missing(biometric.Kinds()); len(missing) > 0 {
			o.post(func() { o.requestAuthorization(gen) })
			return
		}

		o.collect(ctx, gen)
	}()
}

func (o *Orchestrator) requestAuthorization(gen uint64) {
	if !o.state.Current(gen) {
		return
	}
	if o.authorizer == nil {
		o.fetchFailed(gen, health.ErrPermissionDenied)
		return
	}

	o.awaiting = true
	o.setStatus(StatusAwaitingGrant, false)
	o.publish()

	ctx := o.ctx
	go func() {
		grants, err := o.authorizer.RequestPermissions(ctx, biometric.Kinds())
		o.post(func() { o.authorizationAnswered(gen, grants, err) })
	}()
}

func (o *Orchestrator) authorizationAnswered(gen uint64, grants health.Grants, err error) {
	if !o.state.Current(gen) {
		return
	}
	o.awaiting = false
	if err != nil || !grants[biometric.HeartRate] {
		o.fetchFailed(gen, health.ErrPermissionDenied)
		return
	}

	o.publish()
	ctx := o.ctx
	go o.collect(ctx, gen)
}

// collect reads every kind over the trailing window. The primary kind must
// succeed; secondary kinds are left out of the payload when their read fails.
func (o *Orchestrator) collect(ctx context.Context, gen uint64) {
	end := o.opts.Now()
	start := end.Add(-o.opts.Window)

	windows := make(map[biometric.Kind]biometric.Window)
	for _, kind := range biometric.Kinds() {
		samples, err := o.reader.ReadWindow(ctx, kind, start, end)
		if err != nil {
			if kind.Primary() {
				o.post(func() { o.fetchFailed(gen, err) })
				return
			}
			log.Printf("[forwarder] skipping %s: %v", kind, err)
			continue
		}
		windows[kind] = biometric.NewWindow(kind, start, end, samples)
	}

	payload := biometric.BuildPayload(windows)
	body, err := json.Marshal(payload)
	if err != nil {
		o.post(func() { o.fetchFailed(gen, err) })
		return
	}

	collected := Collected{
		Payload: payload,
		Body:    body,
		Summary: biometric.Summary(windows, o.opts.Window, o.opts.Location),
	}
	o.post(func() { o.fetchDone(gen, collected) })
}

func (o *Orchestrator) fetchDone(gen uint64, c Collected) {
	if err := o.state.SetPayload(gen, c); err != nil {
		return
	}
	o.phase = Ready
	o.setStatus(StatusReadyToSend, false)
	o.publish()
}

func (o *Orchestrator) fetchFailed(gen uint64, err error) {
	if !o.state.Current(gen) {
		return
	}

	o.phase = Connected
	o.awaiting = false
	switch {
	case errors.Is(err, health.ErrUnavailable):
		o.setStatus(StatusUnavailable, true)
	case errors.Is(err, health.ErrUpdateRequired):
		o.setStatus(StatusUpdateRequired, true)
	case errors.Is(err, health.ErrPermissionDenied):
		o.setStatus(StatusPermission, true)
	default:
		log.Printf("[forwarder] fetch failed: %v", err)
		o.setStatus(StatusFetchFailed, true)
	}
	o.publish()
}

func (o *Orchestrator) handleSend() {
	if o.phase == Sending {
		return
	}
	snap := o.state.Snapshot()
	if snap.Descriptor == nil || snap.Payload == nil {
		o.setStatus(StatusNothingToSend, true)
		o.publish()
		return
	}

	gen := snap.Generation
	d := *snap.Descriptor
	payload := snap.Payload.Payload
	o.phase = Sending
	o.setStatus(StatusSending, false)
	o.publish()

	ctx := o.ctx
	go func() {
		err := o.sender.Send(ctx, d, payload)
		o.post(func() { o.sendDone(gen, err) })
	}()
}

func (o *Orchestrator) sendDone(gen uint64, err error) {
	if !o.state.Current(gen) {
		return
	}
	if err != nil {
		log.Printf("[forwarder] send failed: %v", err)
		o.phase = Ready
		o.setStatus(StatusSendFailed, true)
		o.publish()
		return
	}

	o.state.Clear()
	o.phase = Idle
	o.setStatus(StatusSent, false)
	o.publish()
}

func (o *Orchestrator) setStatus(msg string, isError bool) {
	o.status = msg
	o.isError = isError
}

func (o *Orchestrator) snapshot() Snapshot {
	st := o.state.Snapshot()
	snap := Snapshot{
		Phase:                 o.phase,
		Status:                o.status,
		IsError:               o.isError,
		Descriptor:            st.Descriptor,
		ReadyToSend:           st.ReadyToSend && o.phase == Ready,
		AwaitingAuthorization: o.awaiting,
		Generation:            st.Generation,
	}
	if st.Payload != nil {
		snap.Summary = st.Payload.Summary
		snap.Payload = st.Payload.Body
	}
	return snap
}

func (o *Orchestrator) publish() {
	snap := o.snapshot()
	for _, ch := range o.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}
