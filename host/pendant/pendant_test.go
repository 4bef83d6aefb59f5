package pendant

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cncmotion/config"
	"cncmotion/host/sim"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pendantRig struct {
	ctl *sim.Controller
	srv *Server
	web *httptest.Server
}

// newPendantRig runs a simulated controller cycling every millisecond and
// a pendant in front of it
func newPendantRig(t *testing.T, opts Options) *pendantRig {
	t.Helper()
	ctl, err := sim.NewController(config.Default(), nil, nil)
	require.NoError(t, err)
	if opts.Inputs == nil {
		opts.Inputs = ctl.Inputs
	}
	srv := New(ctl.Machine(), opts)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tick := time.NewTicker(time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				ctl.Cycle()
				srv.Publish(ctl.Machine().Status())
			}
		}
	}()

	web := httptest.NewServer(srv)
	t.Cleanup(func() {
		close(stop)
		wg.Wait()
		srv.Close()
		web.Close()
	})
	return &pendantRig{ctl: ctl, srv: srv, web: web}
}

func (p *pendantRig) call(t *testing.T, method, path string) (int, StatusPayload) {
	t.Helper()
	req, err := http.NewRequest(method, p.web.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload StatusPayload
	if resp.StatusCode != http.StatusNoContent && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	}
	return resp.StatusCode, payload
}

func TestPendantStatus(t *testing.T) {
	p := newPendantRig(t, Options{})
	code, st := p.call(t, http.MethodGet, "/status")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", st.Message)
	assert.Equal(t, "idle", st.Homing)
	assert.Equal(t, uint32(2000), st.Rate)
	assert.Equal(t, []string{}, st.Active)
}

func TestPendantJogAndRelease(t *testing.T) {
	p := newPendantRig(t, Options{})

	code, st := p.call(t, http.MethodPost, "/axis/y/jog?dir=%2B")
	require.Equal(t, http.StatusOK, code, st.Error)
	assert.True(t, st.Armed)
	assert.Equal(t, []string{"Y"}, st.Active)

	code, st = p.call(t, http.MethodPost, "/axis/Y/release")
	require.Equal(t, http.StatusOK, code, st.Error)
	assert.False(t, st.Armed)
	assert.True(t, st.Positions.Y > 0, "Y = %d", st.Positions.Y)
}

func TestPendantUnescapedPlus(t *testing.T) {
	p := newPendantRig(t, Options{})
	code, st := p.call(t, http.MethodPost, "/axis/z/jog?dir=+")
	require.Equal(t, http.StatusOK, code, st.Error)
	assert.Equal(t, []string{"Z"}, st.Active)
}

func TestPendantErrors(t *testing.T) {
	p := newPendantRig(t, Options{})

	cases := []struct {
		method, path string
		code         int
	}{
		{http.MethodPost, "/axis/a/jog?dir=pos", http.StatusBadRequest},
		{http.MethodPost, "/axis/x/jog", http.StatusBadRequest},
		{http.MethodPost, "/axis/q/release", http.StatusBadRequest},
		{http.MethodPost, "/home/sideways", http.StatusBadRequest},
		{http.MethodPost, "/home/load", http.StatusNotFound},
		{http.MethodPost, "/home/confirm", http.StatusConflict},
		{http.MethodPost, "/fault/2", http.StatusBadRequest},
		{http.MethodPost, "/fault/lots", http.StatusBadRequest},
		{http.MethodGet, "/axis/x/jog", http.StatusMethodNotAllowed},
	}
	for _, c := range cases {
		code, _ := p.call(t, c.method, c.path)
		assert.Equal(t, c.code, code, "%s %s", c.method, c.path)
	}
}

func TestPendantHomingAndFault(t *testing.T) {
	p := newPendantRig(t, Options{})

	code, st := p.call(t, http.MethodPost, "/home/manual")
	require.Equal(t, http.StatusOK, code, st.Error)
	assert.Equal(t, "manual", st.Homing)

	code, st = p.call(t, http.MethodPost, "/home/confirm")
	require.Equal(t, http.StatusOK, code, st.Error)
	assert.True(t, st.Homed)

	code, st = p.call(t, http.MethodPost, "/fault/file")
	require.Equal(t, http.StatusOK, code, st.Error)
	assert.Equal(t, "file ERROR", st.Message)

	code, st = p.call(t, http.MethodPost, "/fault/none")
	require.Equal(t, http.StatusOK, code, st.Error)
	assert.Equal(t, "OK", st.Message)

	code, st = p.call(t, http.MethodPost, "/stop")
	require.Equal(t, http.StatusOK, code, st.Error)
	assert.True(t, st.Homed, "stop keeps a completed home")
}

func TestPendantJogRateLimit(t *testing.T) {
	p := newPendantRig(t, Options{JogRate: 0.001, JogBurst: 2})

	for i := 0; i < 2; i++ {
		code, st := p.call(t, http.MethodPost, "/axis/x/jog?dir=pos")
		require.Equal(t, http.StatusOK, code, st.Error)
	}
	code, st := p.call(t, http.MethodPost, "/axis/x/jog?dir=pos")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, ErrRateLimited.Error(), st.Error)

	code, _ = p.call(t, http.MethodPost, "/axis/x/release")
	assert.Equal(t, http.StatusOK, code, "release is not limited")
}

func TestPendantSimInput(t *testing.T) {
	p := newPendantRig(t, Options{})

	code, _ := p.call(t, http.MethodPost, "/sim/input/spindle_fault?value=1")
	require.Equal(t, http.StatusNoContent, code)

	code, st := p.call(t, http.MethodPost, "/axis/x/jog?dir=pos")
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, st.Armed)
	assert.Equal(t, "SPINDLE ERROR", st.Message)

	code, _ = p.call(t, http.MethodPost, "/sim/input/spindle_fault?value=maybe")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = p.call(t, http.MethodPost, "/sim/input/coolant?value=1")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPendantStatusEvents(t *testing.T) {
	p := newPendantRig(t, Options{})

	resp, err := http.Get(p.web.URL + StatusPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// A jog changes the status every cycle, so an event follows shortly
	code, _ := p.call(t, http.MethodPost, "/axis/x/jog?dir=neg")
	require.Equal(t, http.StatusOK, code)

	lines := bufio.NewScanner(resp.Body)
	for lines.Scan() {
		line := lines.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var st StatusPayload
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &st))
		if st.Armed {
			assert.Equal(t, []string{"X"}, st.Active)
			return
		}
	}
	t.Fatalf("stream ended: %v", lines.Err())
}
