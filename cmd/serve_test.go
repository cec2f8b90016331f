package main

import (
	"context"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrolock/internal/actuator"
	"retrolock/internal/config"
)

const serveTestToken = "serve-secret"

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func serveConfig(addr string, pulseMs int) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddress: addr},
		Auth:   config.AuthConfig{Token: serveTestToken},
		Actuator: config.ActuatorConfig{
			Driver:          config.DriverSim,
			Pin:             17,
			ActiveLow:       true,
			PulseDurationMs: pulseMs,
			BusyPolicy:      config.BusyPolicyWait,
		},
		Log: config.LogConfig{Level: "error"},
	}
}

// useSimulatedDriver makes serve build sim and hands it to the test.
func useSimulatedDriver(t *testing.T) *actuator.Simulated {
	t.Helper()
	sim := actuator.NewSimulated(actuator.Polarity{ActiveLow: true})
	orig := newDriver
	newDriver = func(config.ActuatorConfig) (actuator.Driver, error) { return sim, nil }
	t.Cleanup(func() { newDriver = orig })
	return sim
}

func startServe(t *testing.T, cfg *config.Config) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.Server.ListenAddress + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	return cancel, done
}

func postGPIO(addr, state string) (int, error) {
	req, err := http.NewRequest(http.MethodPost, "http://"+addr+"/gpio", strings.NewReader(`{"state":"`+state+`"}`))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+serveTestToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func waitDone(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServe_ShutdownReleasesEngagedLine(t *testing.T) {
	sim := useSimulatedDriver(t)
	cfg := serveConfig(freeAddr(t), 50)
	cancel, done := startServe(t, cfg)

	code, err := postGPIO(cfg.Server.ListenAddress, "on")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	require.True(t, sim.Active())

	cancel()
	waitDone(t, done)

	assert.True(t, sim.Closed())
	assert.False(t, sim.Active())
	assert.Equal(t, []bool{true, false}, levels(sim.Writes()))
}

func TestServe_ShutdownLetsRunningPulseFinish(t *testing.T) {
	sim := useSimulatedDriver(t)
	cfg := serveConfig(freeAddr(t), 300)
	cancel, done := startServe(t, cfg)

	pulse := make(chan int, 1)
	go func() {
		code, _ := postGPIO(cfg.Server.ListenAddress, "open")
		pulse <- code
	}()
	require.Eventually(t, sim.Active, time.Second, 5*time.Millisecond)

	cancel()
	assert.Equal(t, http.StatusOK, <-pulse, "pulse response survives shutdown")
	waitDone(t, done)

	// pulse end lands on an open line, release comes last
	assert.True(t, sim.Closed())
	assert.Equal(t, []bool{true, false, false}, levels(sim.Writes()))
}

func TestServe_MissingTokenFails(t *testing.T) {
	useSimulatedDriver(t)
	cfg := serveConfig(freeAddr(t), 50)
	cfg.Auth = config.AuthConfig{TokenFile: t.TempDir() + "/absent.txt"}

	err := serve(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrTokenMissing)
}

func levels(ws []actuator.Write) []bool {
	out := make([]bool, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Active)
	}
	return out
}
