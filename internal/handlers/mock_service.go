package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"retrolock/internal/models"
	"retrolock/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockDoor struct {
	mu sync.Mutex

	applyRes   service.Result
	applyErr   error
	resetErr   error
	state      models.ActuatorState
	lastCmd    service.Command
	applyCalls int
	resetCalls int
}

func (m *mockDoor) Apply(ctx context.Context, cmd service.Command) (service.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCalls++
	m.lastCmd = cmd
	return m.applyRes, m.applyErr
}

func (m *mockDoor) State(ctx context.Context) models.ActuatorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockDoor) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCalls++
	return m.resetErr
}

func (m *mockDoor) Close(ctx context.Context) error {
	return nil
}

func (m *mockDoor) setState(st models.ActuatorState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = st
}

func (m *mockDoor) calls() (apply, reset int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyCalls, m.resetCalls
}

type mockEventLog struct {
	resp     []models.ActuatorEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.ActuatorEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

const testSecret = "valid"

// faultRecorder replaces the fatal fault hook in tests.
type faultRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (f *faultRecorder) record(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func (f *faultRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errs)
}

func newTestRouter(s *service.Service) (*gin.Engine, *faultRecorder) {
	gin.SetMode(gin.TestMode)
	if s.Access == nil {
		s.Access = service.NewAccessService(testSecret, nil)
	}
	faults := &faultRecorder{}
	h := NewHandler(s, nil, WithFaultHandler(faults.record))
	return h.InitRoutes(), faults
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
