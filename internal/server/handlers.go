package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jeongseonghan/modulation-studio/internal/audio"
	"github.com/jeongseonghan/modulation-studio/internal/dsp"
	"github.com/jeongseonghan/modulation-studio/internal/export"
	"github.com/jeongseonghan/modulation-studio/internal/modem"
	"github.com/jeongseonghan/modulation-studio/internal/preset"
	"github.com/jeongseonghan/modulation-studio/internal/sim"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Options configures Handlers.
type Options struct {
	// PresetsFile is where saved presets live. Empty keeps them in memory.
	PresetsFile string
	// DefaultSeed makes requests without deterministic mode reproducible.
	DefaultSeed *uint32
	Loop        modem.LoopConfig
	Logger      *log.Logger
	Metrics     *Metrics
}

// Handlers holds the HTTP API handlers.
type Handlers struct {
	wsHub       *WSHub
	metrics     *Metrics
	logger      *log.Logger
	presetsFile string
	defaultSeed *uint32
	loop        modem.LoopConfig

	mu      sync.Mutex
	presets map[string]preset.Controls
	last    *sim.Report
}

// NewHandlers creates new API handlers and loads the saved presets.
func NewHandlers(opts Options) (*Handlers, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.Loop == (modem.LoopConfig{}) {
		opts.Loop = modem.DefaultLoopConfig()
	}
	presets := map[string]preset.Controls{}
	if opts.PresetsFile != "" {
		var err error
		if presets, err = preset.LoadFile(opts.PresetsFile); err != nil {
			return nil, err
		}
	}
	return &Handlers{
		wsHub:       NewWSHub(logger.With("component", "ws")),
		metrics:     opts.Metrics,
		logger:      logger,
		presetsFile: opts.PresetsFile,
		defaultSeed: opts.DefaultSeed,
		loop:        opts.Loop,
		presets:     presets,
	}, nil
}

// Hub returns the websocket hub.
func (h *Handlers) Hub() *WSHub {
	return h.wsHub
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// statusFor maps request errors to 400 and everything else to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, modem.ErrUnsupportedScheme),
		errors.Is(err, modem.ErrMismatchedArrays),
		errors.Is(err, preset.ErrUnknownPreset),
		errors.Is(err, preset.ErrInvalidControls),
		errors.Is(err, preset.ErrInvalidName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// HandleWebSocket handles WebSocket upgrade requests.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade", "err", err)
		return
	}

	h.wsHub.AddClient(conn)

	// Drain client messages until the connection closes.
	go func() {
		defer h.wsHub.RemoveClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// HandleSchemes lists the schemes and message waveforms.
func (h *Handlers) HandleSchemes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"schemes":    modem.Schemes(),
		"basebands":  modem.Shapes(),
		"sampleRate": dsp.SampleRate,
	})
}

// HandlePresets lists presets on GET and saves one on POST.
func (h *Handlers) HandlePresets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.mu.Lock()
		saved := make(map[string]preset.Controls, len(h.presets))
		for k, v := range h.presets {
			saved[k] = v
		}
		h.mu.Unlock()
		writeJSON(w, map[string]any{
			"defaults":  preset.Defaults(),
			"scenarios": preset.Scenarios(),
			"presets":   saved,
		})
	case http.MethodPost:
		h.handleSavePreset(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handlers) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string          `json:"name"`
		Controls preset.Controls `json:"controls"`
	}
	req.Controls = preset.Defaults()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Parse request: %v", err), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	key := preset.NormalizeName(req.Name)
	if h.presetsFile != "" {
		var err error
		if key, err = preset.SaveFile(h.presetsFile, req.Name, req.Controls); err != nil {
			http.Error(w, fmt.Sprintf("Save preset: %v", err), statusFor(err))
			return
		}
	} else {
		if !preset.IsValidName(key) {
			http.Error(w, fmt.Sprintf("Save preset: %v %q", preset.ErrInvalidName, req.Name), http.StatusBadRequest)
			return
		}
		if err := req.Controls.Validate(); err != nil {
			http.Error(w, fmt.Sprintf("Save preset: %v", err), statusFor(err))
			return
		}
	}
	h.presets[key] = req.Controls
	h.logger.Info("preset saved", "name", key, "scheme", req.Controls.Scheme)

	writeJSON(w, map[string]string{
		"name":   key,
		"status": "saved",
	})
}

// simulateRequest selects a preset and overrides some of its controls.
type simulateRequest struct {
	Preset   string          `json:"preset"`
	Controls json.RawMessage `json:"controls"`
}

// resolve returns the controls a request describes: the named preset, or
// the defaults, with the request's controls decoded over them.
func (h *Handlers) resolve(req simulateRequest) (preset.Controls, error) {
	c := preset.Defaults()
	if req.Preset != "" {
		h.mu.Lock()
		var err error
		c, err = preset.Resolve(req.Preset, h.presets)
		h.mu.Unlock()
		if err != nil {
			return c, err
		}
	}
	if len(req.Controls) > 0 {
		if err := json.Unmarshal(req.Controls, &c); err != nil {
			return c, fmt.Errorf("%w: %v", preset.ErrInvalidControls, err)
		}
	}
	if !c.Deterministic && h.defaultSeed != nil {
		c.Deterministic = true
		c.Seed = *h.defaultSeed
	}
	return c, nil
}

// HandleSimulate runs one simulation and returns its report.
func (h *Handlers) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req simulateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.observeFailure("bad_request")
		http.Error(w, fmt.Sprintf("Parse request: %v", err), http.StatusBadRequest)
		return
	}
	c, err := h.resolve(req)
	if err != nil {
		h.observeFailure("bad_request")
		http.Error(w, fmt.Sprintf("Resolve controls: %v", err), statusFor(err))
		return
	}

	report, err := sim.Run(r.Context(), c,
		sim.WithLogger(h.logger.With("component", "sim")),
		sim.WithLoopConfig(h.loop))
	if err != nil {
		status := statusFor(err)
		reason := "error"
		if status == http.StatusBadRequest {
			reason = "bad_request"
		}
		h.observeFailure(reason)
		http.Error(w, fmt.Sprintf("Simulate: %v", err), status)
		return
	}

	h.mu.Lock()
	h.last = report
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ObserveRun(report)
	}
	h.wsHub.BroadcastRun(report)

	writeJSON(w, struct {
		*sim.Report
		PrimaryText string `json:"primaryText"`
		CompareText string `json:"compareText"`
	}{report, report.PrimaryText(), report.CompareText()})
}

func (h *Handlers) observeFailure(reason string) {
	if h.metrics != nil {
		h.metrics.ObserveFailure(reason)
	}
}

// HandleExportCSV serves the latest run as CSV. ?kind=symbols selects the
// symbol decisions instead of the waveforms.
func (h *Handlers) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	report := h.last
	h.mu.Unlock()
	if report == nil {
		http.Error(w, "Nothing to export yet. Run a simulation first.", http.StatusNotFound)
		return
	}

	write := export.WriteSignals
	name := export.FileName(time.Now())
	if r.URL.Query().Get("kind") == "symbols" {
		write = export.WriteSymbols
		name = "modulation-symbols-" + name[len("modulation-signals-"):]
	}

	var buf bytes.Buffer
	if err := write(&buf, report); err != nil {
		http.Error(w, fmt.Sprintf("Export: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(buf.Bytes())
}

// HandleDevices lists available audio output devices.
func (h *Handlers) HandleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := audio.ListDevices()
	if err != nil {
		writeJSON(w, map[string]any{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, map[string]any{
		"status":    "ok",
		"devices":   devices,
		"hasOutput": audio.HasOutputDevice(),
	})
}
