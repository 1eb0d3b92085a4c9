package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/impact-globe/internal/config"
	"github.com/signalsfoundry/impact-globe/internal/logging"
)

func startServer(t *testing.T) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.ImageryDir = t.TempDir()
	cfg.ImageryRemote = nil
	cfg.FrameInterval = 10 * time.Millisecond

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	log := logging.New(logging.Config{Level: "warn", Format: "text", Output: io.Discard})

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, lis)
	}()
	base := "http://" + lis.Addr().String()
	waitHealthy(t, base)
	return base, cancel, errCh
}

func waitHealthy(t *testing.T, base string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server at %s never became healthy", base)
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestGlobeServerSceneLifecycle(t *testing.T) {
	base, cancel, errCh := startServer(t)

	resp := do(t, http.MethodGet, base+"/healthz", nil)
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "running", health.Status)
	assert.True(t, health.Degraded)
	assert.NotEmpty(t, health.Session)

	resp = do(t, http.MethodGet, base+"/hazard", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPut, base+"/impact", map[string]float64{"lat": 100, "lon": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPut, base+"/impact", map[string]float64{"lat": 10, "lon": 20})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, base+"/hazard", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/simulations", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var ticket ticketResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ticket))

	result := map[string]float64{"crater_radius_km": 1.5, "thermal_radius_km": 40}
	resp = do(t, http.MethodPut, fmt.Sprintf("%s/simulations/%d", base, ticket.Generation+1), result)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodPut, fmt.Sprintf("%s/simulations/%d", base, ticket.Generation), result)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, base+"/hazard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var overlay struct {
		Zones []json.RawMessage
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&overlay))
	assert.Len(t, overlay.Zones, 2)

	resp = do(t, http.MethodPost, base+"/pick", map[string]float64{"x": 640, "y": 360})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var picked pickResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&picked))
	assert.True(t, picked.Hit)

	resp = do(t, http.MethodGet, base+"/metrics", nil)
	metrics, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "scene_frames_total")
	assert.Contains(t, string(metrics), "http_requests_total")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestGlobeServerMapPick(t *testing.T) {
	base, cancel, errCh := startServer(t)
	defer func() {
		cancel()
		<-errCh
	}()

	resp := do(t, http.MethodPost, base+"/map/pick", map[string]any{"x": 10, "y": 10, "width": 0, "height": 180})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Before any result only the coordinate is reported.
	resp = do(t, http.MethodPost, base+"/map/pick", map[string]any{"x": 200, "y": 80, "width": 360, "height": 180})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var picked mapPickResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&picked))
	assert.InDelta(t, 10, picked.Coordinate.Lat, 1e-9)
	assert.InDelta(t, 20, picked.Coordinate.Lon, 1e-9)
	assert.Empty(t, picked.Zone)
	assert.Nil(t, picked.DistanceKm)

	resp = do(t, http.MethodPut, base+"/impact", map[string]float64{"lat": 10, "lon": 20})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, http.MethodPost, base+"/simulations", nil)
	var ticket ticketResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ticket))
	result := map[string]float64{"crater_radius_km": 2, "thermal_radius_km": 40}
	resp = do(t, http.MethodPut, fmt.Sprintf("%s/simulations/%d", base, ticket.Generation), result)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/map/pick", map[string]any{"x": 200, "y": 80, "width": 360, "height": 180})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	picked = mapPickResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&picked))
	assert.Equal(t, "crater", picked.Zone)
	require.NotNil(t, picked.DistanceKm)
	assert.InDelta(t, 0, *picked.DistanceKm, 0.01)
	require.NotNil(t, picked.ImpactPixel)
	assert.InDelta(t, 200, picked.ImpactPixel[0], 1e-6)
	assert.InDelta(t, 80, picked.ImpactPixel[1], 1e-6)

	// The north-west corner lies outside every zone.
	resp = do(t, http.MethodPost, base+"/map/pick", map[string]any{"x": 0, "y": 0, "width": 360, "height": 180})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	picked = mapPickResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&picked))
	assert.Empty(t, picked.Zone)
	require.NotNil(t, picked.DistanceKm)
	assert.Greater(t, *picked.DistanceKm, 40.0)

	resp = do(t, http.MethodPost, base+"/map/pick", map[string]any{"x": 180, "y": 90, "width": 360, "height": 180, "apply": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	picked = mapPickResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&picked))
	assert.InDelta(t, 0, picked.Coordinate.Lat, 1e-9)
	assert.InDelta(t, 0, picked.Coordinate.Lon, 1e-9)
}

func TestGlobeServerStreamsFrames(t *testing.T) {
	base, cancel, errCh := startServer(t)
	defer func() {
		cancel()
		<-errCh
	}()

	url := "ws" + strings.TrimPrefix(base, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for i := 0; i < 20; i++ {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg struct {
			Type     string            `json:"type"`
			Entities []json.RawMessage `json:"entities"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == "frame" {
			assert.NotEmpty(t, msg.Entities)
			return
		}
	}
	t.Fatal("no frame message received")
}
