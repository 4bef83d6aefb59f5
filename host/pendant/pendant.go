// Package pendant serves a small HTTP API for jogging, homing and watching
// the machine from a browser or phone.
package pendant

import (
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/go-chi/chi"
	"golang.org/x/time/rate"

	"cncmotion/core"
	"cncmotion/protocol"
)

// StatusPath is the SSE channel carrying status updates
const StatusPath = "/events/status"

var (
	ErrRateLimited = errors.New("jog rate limit exceeded")
	ErrTimeout     = errors.New("machine did not process the request in time")
	ErrBadValue    = errors.New("bad value")
)

// Controller is the machine surface the pendant drives. *core.Machine
// implements it.
type Controller interface {
	Submit(req core.Request) error
	Status() core.Status
}

// InputSetter injects input levels in simulation. *sim.Inputs implements it.
type InputSetter interface {
	Set(name string, asserted bool) error
}

// Options configures a Server
type Options struct {
	JogRate  float64       // jog requests per second, unlimited when zero
	JogBurst int           // jog burst size
	Timeout  time.Duration // wait for the machine to apply a request
	Inputs   InputSetter   // non-nil enables the /sim routes
	Logger   *log.Logger   // nil discards SSE server logs
}

// Server is the pendant HTTP handler
type Server struct {
	http.Handler

	ctl     Controller
	inputs  InputSetter
	jog     *rate.Limiter
	timeout time.Duration
	events  *sse.Server

	mu     sync.Mutex
	last   *core.Status
	notify chan struct{}
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// New builds the route table
func New(ctl Controller, opts Options) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(ioutil.Discard, "", 0)
	}
	s := &Server{
		ctl:     ctl,
		inputs:  opts.Inputs,
		timeout: opts.Timeout,
		events:  sse.NewServer(&sse.Options{Logger: logger}),
		notify:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if opts.JogRate > 0 {
		burst := opts.JogBurst
		if burst < 1 {
			burst = 1
		}
		s.jog = rate.NewLimiter(rate.Limit(opts.JogRate), burst)
	}

	r := chi.NewRouter()
	r.Get("/status", s.getStatus)
	r.Post("/axis/{axis}/jog", s.postJog)
	r.Post("/axis/{axis}/release", s.postRelease)
	r.Post("/stop", s.postStop)
	r.Post("/home/confirm", s.postConfirm)
	r.Post("/home/{mode}", s.postHome)
	r.Post("/fault/{code}", s.postFault)
	r.Handle(StatusPath, s.events)
	if s.inputs != nil {
		r.Post("/sim/input/{name}", s.postInput)
	}
	s.Handler = r

	go s.publisher()
	return s
}

// Publish queues st for SSE clients when it differs from the last status
// published. The target loop calls it after every cycle; it never blocks.
func (s *Server) Publish(st core.Status) {
	s.mu.Lock()
	if s.last != nil && *s.last == st {
		s.mu.Unlock()
		return
	}
	s.last = &st
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// publisher sends the latest status to SSE clients. Statuses published
// while a send is in progress collapse into one.
func (s *Server) publisher() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case <-s.notify:
		}
		s.mu.Lock()
		st := *s.last
		s.mu.Unlock()

		data, err := json.Marshal(NewStatusPayload(st))
		if err != nil {
			continue
		}
		s.events.SendMessage(StatusPath, sse.SimpleMessage(string(data)))
	}
}

// Close stops publishing and disconnects SSE clients
func (s *Server) Close() {
	s.once.Do(func() {
		close(s.quit)
		<-s.done
		s.events.Shutdown()
	})
}

// submit queues req and waits for the cycle that applies it
func (s *Server) submit(ctx context.Context, req core.Request) (core.Status, error) {
	type result struct {
		st  core.Status
		err error
	}
	done := make(chan result, 1)
	req.Done = func(st core.Status, err error) {
		done <- result{st, err}
	}
	if err := s.ctl.Submit(req); err != nil {
		return s.ctl.Status(), err
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case r := <-done:
		return r.st, r.err
	case <-timer.C:
		return s.ctl.Status(), ErrTimeout
	case <-ctx.Done():
		return s.ctl.Status(), ctx.Err()
	}
}

// httpCode maps a request error to an HTTP status
func httpCode(err error) int {
	switch err {
	case nil:
		return http.StatusOK
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrBadValue:
		return http.StatusBadRequest
	}
	switch core.StatusCode(err) {
	case protocol.StatusBadRequest:
		return http.StatusBadRequest
	case protocol.StatusBusy:
		return http.StatusConflict
	case protocol.StatusNoRecord:
		return http.StatusNotFound
	case protocol.StatusQueueFull:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respond writes the status payload, with the error text when err is set
func respond(w http.ResponseWriter, st core.Status, err error) {
	p := NewStatusPayload(st)
	if err != nil {
		p.Error = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode(err))
	_ = json.NewEncoder(w).Encode(p)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	respond(w, s.ctl.Status(), nil)
}

func (s *Server) postJog(w http.ResponseWriter, r *http.Request) {
	axis, err := core.ParseAxis(chi.URLParam(r, "axis"))
	if err != nil {
		respond(w, s.ctl.Status(), err)
		return
	}
	dir, ok := parseDir(r.URL.Query().Get("dir"))
	if !ok {
		respond(w, s.ctl.Status(), core.ErrNoDirection)
		return
	}
	if s.jog != nil && !s.jog.Allow() {
		respond(w, s.ctl.Status(), ErrRateLimited)
		return
	}
	st, err := s.submit(r.Context(), core.Request{Kind: core.ReqJog, Axis: axis, Dir: dir})
	respond(w, st, err)
}

// parseDir accepts the direction query value. An unescaped "+" arrives as
// a space.
func parseDir(s string) (core.Direction, bool) {
	if s == " " {
		s = "+"
	}
	return core.ParseDirection(s)
}

func (s *Server) postRelease(w http.ResponseWriter, r *http.Request) {
	axis, err := core.ParseAxis(chi.URLParam(r, "axis"))
	if err != nil {
		respond(w, s.ctl.Status(), err)
		return
	}
	st, err := s.submit(r.Context(), core.Request{Kind: core.ReqRelease, Axis: axis})
	respond(w, st, err)
}

func (s *Server) postStop(w http.ResponseWriter, r *http.Request) {
	st, err := s.submit(r.Context(), core.Request{Kind: core.ReqStopAll})
	respond(w, st, err)
}

var homeModes = map[string]core.MenuChoice{
	"load":   core.MenuLoadFromStorage,
	"manual": core.MenuSetHomeManual,
	"auto":   core.MenuSetHomeAuto,
}

func (s *Server) postHome(w http.ResponseWriter, r *http.Request) {
	choice, ok := homeModes[chi.URLParam(r, "mode")]
	if !ok {
		respond(w, s.ctl.Status(), core.ErrUnknownHomeMode)
		return
	}
	st, err := s.submit(r.Context(), core.Request{Kind: core.ReqHome, Choice: choice})
	respond(w, st, err)
}

func (s *Server) postConfirm(w http.ResponseWriter, r *http.Request) {
	st, err := s.submit(r.Context(), core.Request{Kind: core.ReqHomeConfirm})
	respond(w, st, err)
}

var faultNames = map[string]core.FaultCode{
	"none": core.FaultNone,
	"sd":   core.FaultSdError,
	"file": core.FaultFileError,
}

func (s *Server) postFault(w http.ResponseWriter, r *http.Request) {
	param := chi.URLParam(r, "code")
	code, ok := faultNames[param]
	if !ok {
		n, err := strconv.ParseUint(param, 10, 8)
		if err != nil {
			respond(w, s.ctl.Status(), ErrBadValue)
			return
		}
		code = core.FaultCode(n)
	}
	st, err := s.submit(r.Context(), core.Request{Kind: core.ReqSetFault, Fault: code})
	respond(w, st, err)
}

func (s *Server) postInput(w http.ResponseWriter, r *http.Request) {
	var asserted bool
	switch r.URL.Query().Get("value") {
	case "1", "true", "on":
		asserted = true
	case "0", "false", "off":
	default:
		respond(w, s.ctl.Status(), ErrBadValue)
		return
	}
	if err := s.inputs.Set(chi.URLParam(r, "name"), asserted); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
