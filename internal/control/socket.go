package control

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"thermod/internal/timetable"
	"thermod/pkg/eventbus"
	"thermod/pkg/logger"
)

// lockWait bounds how long a settings request waits for the master lock
// before giving up with a 423 rather than blocking the HTTP handler on a
// cycle step that is mid actuator call.
const lockWait = 200 * time.Millisecond

// errorBody is the stable JSON error shape for every non-2xx response,
// per spec.md §4.5/§7.
type errorBody struct {
	Error   string `json:"error"`
	Explain string `json:"explain,omitempty"`
}

// settingsPatch is the partial-update envelope accepted by POST /settings:
// exactly one of these top-level keys should be set.
type settingsPatch struct {
	Mode         *timetable.Mode     `json:"mode,omitempty"`
	Temperatures map[string]float64  `json:"temperatures,omitempty"`
	Differential *float64            `json:"differential,omitempty"`
	GraceTime    *float64            `json:"grace_time,omitempty"`
	HVACMode     *timetable.HVACMode `json:"hvac_mode,omitempty"`
	Timetable    timetable.Program   `json:"timetable,omitempty"`
	Settings     *timetable.Settings `json:"settings,omitempty"`
}

// Socket is the HTTP control surface described in spec.md §4.5.
type Socket struct {
	cycle   *Cycle
	tt      *timetable.Timetable
	bus     *eventbus.Bus
	version string
	ws      *wsClients
	log     *logger.Logger
}

func NewSocket(cycle *Cycle, tt *timetable.Timetable, bus *eventbus.Bus, version string) *Socket {
	return &Socket{
		cycle:   cycle,
		tt:      tt,
		bus:     bus,
		version: version,
		ws:      newWsClients(),
		log:     logger.New("Socket"),
	}
}

// Handler builds the mux for every endpoint in spec.md §4.5's table,
// to be attached under "/" on the shared rootserv.RootServer.
func (s *Socket) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/version", s.withCorrelation(s.handleVersion))
	mux.HandleFunc("/status", s.withCorrelation(s.handleStatus))
	mux.HandleFunc("/settings", s.withCorrelation(s.handleSettings))
	mux.HandleFunc("/monitor", s.withCorrelation(s.handleMonitorLongPoll))
	mux.HandleFunc("/monitor/ws", s.serveMonitorWS)
	mux.HandleFunc("/heating", s.withCorrelation(s.handleStatus)) // legacy alias

	events, _ := s.bus.Subscribe(context.Background(), statusTopic, true)
	go s.runMonitorBroadcaster(events)

	return mux
}

func (s *Socket) withCorrelation(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := newCorrelationID()
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("X-Correlation-Id", id)
		s.log.Debug("[%s] %s %s", id, r.Method, r.URL.Path)
		h(w, r)
	}
}

func (s *Socket) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Socket) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if last, ok := s.bus.GetLast(statusTopic); ok {
		writeJSON(w, http.StatusOK, last)
		return
	}
	writeJSON(w, http.StatusOK, timetable.Status{Timestamp: time.Now().Format(time.RFC3339)})
}

func (s *Socket) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		lock := s.cycle.Lock()
		if !lock.TryLockTimeout(lockWait) {
			writeError(w, http.StatusLocked, "timetable locked elsewhere", "")
			return
		}
		defer lock.Unlock()
		writeJSON(w, http.StatusOK, s.tt.Settings())

	case http.MethodPost:
		s.handlePatchSettings(w, r)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	}
}

func (s *Socket) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch settingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}

	lock := s.cycle.Lock()
	if !lock.TryLockTimeout(lockWait) {
		writeError(w, http.StatusLocked, "timetable locked elsewhere", "")
		return
	}
	defer lock.Unlock()

	var err error
	switch {
	case patch.Settings != nil:
		err = s.tt.SetSettings(*patch.Settings)
	case patch.Mode != nil:
		err = s.tt.SetMode(*patch.Mode)
	case patch.HVACMode != nil:
		err = s.tt.SetHVACMode(*patch.HVACMode)
	case patch.Differential != nil:
		err = s.tt.SetDifferential(*patch.Differential)
	case patch.GraceTime != nil:
		err = s.tt.SetGraceTime(patch.GraceTime)
	case len(patch.Temperatures) > 0:
		for name, v := range patch.Temperatures {
			if err = s.tt.SetTemperature(timetable.TempName(name), v); err != nil {
				break
			}
		}
	case len(patch.Timetable) > 0:
		err = s.tt.SetProgram(patch.Timetable)
	default:
		writeError(w, http.StatusBadRequest, "empty settings patch", "")
		return
	}

	if err != nil {
		// Setters only fail semantic validation before ever touching
		// disk, so every error here is a client-side ValidationError
		// (spec.md §7), not an internal failure.
		writeError(w, http.StatusBadRequest, "invalid settings", err.Error())
		return
	}

	lock.Notify()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleMonitorLongPoll holds the connection open and streams the next
// N status snapshots, one flushed JSON object per line.
func (s *Socket) handleMonitorLongPoll(w http.ResponseWriter, r *http.Request) {
	const defaultCount = 5

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", "")
		return
	}

	events, cancel := s.bus.Subscribe(r.Context(), statusTopic, true)
	defer cancel()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	sent := 0
	for sent < defaultCount {
		select {
		case <-r.Context().Done():
			return
		case ev, more := <-events:
			if !more {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.log.Error("marshal monitor snapshot: %v", err)
				continue
			}
			w.Write(data)
			w.Write([]byte("\n"))
			flusher.Flush()
			sent++
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, explain string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: msg, Explain: explain})
}
