package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *Handlers) {
	t.Helper()
	reg := prometheus.NewRegistry()
	opts.Metrics = NewMetrics(reg)
	opts.Logger = log.New(io.Discard)
	h, err := NewHandlers(opts)
	require.NoError(t, err)
	ts := httptest.NewServer(NewServer("", h, reg, "").Handler())
	t.Cleanup(ts.Close)
	return ts, h
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandleSchemes(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/api/schemes")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Schemes []struct {
			ID      string `json:"id"`
			Digital bool   `json:"digital"`
		} `json:"schemes"`
		SampleRate int `json:"sampleRate"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Schemes, 9)
	assert.Equal(t, 8000, body.SampleRate)
}

func TestHandleSchemes_Gzip(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/schemes", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
}

func TestHandleSimulate(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp := post(t, ts.URL+"/api/simulate",
		`{"preset":"offsetQpsk","controls":{"deterministicMode":true,"rngSeed":5}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ID          string `json:"id"`
		PrimaryText string `json:"primaryText"`
		CompareText string `json:"compareText"`
		Primary     struct {
			Metrics struct {
				Digital bool   `json:"digital"`
				Scheme  string `json:"scheme"`
			} `json:"metrics"`
		} `json:"primary"`
		Compare *struct{} `json:"compare"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.ID)
	assert.True(t, body.Primary.Metrics.Digital)
	assert.Equal(t, "qpsk", body.Primary.Metrics.Scheme)
	assert.True(t, strings.HasPrefix(body.PrimaryText, "BER "), body.PrimaryText)
	assert.True(t, strings.HasSuffix(body.PrimaryText, "| Seed: 5"), body.PrimaryText)
	assert.NotNil(t, body.Compare)
}

func TestHandleSimulate_DefaultSeed(t *testing.T) {
	seed := uint32(77)
	ts, _ := newTestServer(t, Options{DefaultSeed: &seed})

	fingerprint := func() string {
		resp := post(t, ts.URL+"/api/simulate", `{"controls":{"scheme":"bpsk"}}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			Primary struct {
				Metrics struct {
					Fingerprint string `json:"fingerprint"`
				} `json:"metrics"`
			} `json:"primary"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body.Primary.Metrics.Fingerprint
	}
	assert.Equal(t, fingerprint(), fingerprint())
}

func TestHandleSimulate_BadRequests(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"controls":`},
		{"unknown scheme", `{"controls":{"scheme":"ofdm"}}`},
		{"unknown compare", `{"controls":{"compareMode":true,"compareScheme":"x"}}`},
		{"unknown preset", `{"preset":"nope"}`},
		{"bad shape", `{"controls":{"baseband":"sawtooth"}}`},
		{"wrong type", `{"controls":{"snrDb":"loud"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/api/simulate", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	resp, err := http.Get(ts.URL + "/api/simulate")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleExportCSV(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/api/export.csv")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	post(t, ts.URL+"/api/simulate", `{"preset":"cleanAnalog"}`)

	resp, err = http.Get(ts.URL + "/api/export.csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "modulation-signals-")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "time_s,primary_baseband,primary_rx,primary_demod,compare_baseband,compare_rx,compare_demod", lines[0])
	assert.Len(t, lines, 641)

	resp2, err := http.Get(ts.URL + "/api/export.csv?kind=symbols")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Contains(t, resp2.Header.Get("Content-Disposition"), "modulation-symbols-")
}

func TestHandlePresets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	ts, _ := newTestServer(t, Options{PresetsFile: path})

	resp := post(t, ts.URL+"/api/presets", `{"name":"My QAM","controls":{"scheme":"qam16","snrDb":18}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var saved map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&saved))
	assert.Equal(t, "my-qam", saved["name"])

	resp = post(t, ts.URL+"/api/presets", `{"name":"!!!","controls":{"scheme":"qam16"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts.URL+"/api/simulate", `{"preset":"my-qam","controls":{"deterministicMode":true}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	get, err := http.Get(ts.URL + "/api/presets")
	require.NoError(t, err)
	defer get.Body.Close()
	var list struct {
		Scenarios map[string]json.RawMessage `json:"scenarios"`
		Presets   map[string]struct {
			Scheme string  `json:"scheme"`
			SNR    float64 `json:"snrDb"`
		} `json:"presets"`
	}
	require.NoError(t, json.NewDecoder(get.Body).Decode(&list))
	assert.Len(t, list.Scenarios, 4)
	assert.Equal(t, "qam16", list.Presets["my-qam"].Scheme)
	assert.Equal(t, 18.0, list.Presets["my-qam"].SNR)

	// A fresh server sees the preset through the file.
	_, h := newTestServer(t, Options{PresetsFile: path})
	assert.Contains(t, h.presets, "my-qam")
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	post(t, ts.URL+"/api/simulate", `{"controls":{"scheme":"fm","compareMode":true,"compareScheme":"ask"}}`)
	post(t, ts.URL+"/api/simulate", `{"controls":{"scheme":"nope"}}`)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `modsim_runs_total{scheme="fm"} 1`)
	assert.Contains(t, text, `modsim_run_failures_total{reason="bad_request"} 1`)
	assert.Contains(t, text, `modsim_last_correlation{scheme="fm"}`)
	assert.Contains(t, text, `modsim_last_ber{scheme="ask"}`)
	assert.Contains(t, text, `modsim_run_duration_seconds_count{scheme="fm"} 1`)
}

func TestWebSocketBroadcastsRuns(t *testing.T) {
	ts, h := newTestServer(t, Options{})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.Hub().ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	post(t, ts.URL+"/api/simulate", `{"controls":{"scheme":"bpsk","deterministicMode":true,"rngSeed":9}}`)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg struct {
		Type    string     `json:"type"`
		Payload RunSummary `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "run", msg.Type)
	assert.Equal(t, "bpsk", string(msg.Payload.Scheme))
	assert.Equal(t, "Comparison disabled", msg.Payload.Compare)
	assert.Len(t, msg.Payload.Fingerprint, 8)
}
