package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leozw/domain-activator/internal/activation"
	"github.com/leozw/domain-activator/internal/api/handlers"
	"github.com/leozw/domain-activator/internal/config"
	"github.com/leozw/domain-activator/internal/core"
	"github.com/leozw/domain-activator/internal/domains"
	"github.com/leozw/domain-activator/internal/metrics"
	"github.com/leozw/domain-activator/internal/notify/notifytest"
	"github.com/leozw/domain-activator/internal/queue"
	"github.com/leozw/domain-activator/internal/storage/memory"
)

const secret = "test-secret"

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, *queue.Command) error { return nil }

type testServer struct {
	server    *Server
	store     *memory.Store
	finalizer *activation.Finalizer
	tenantID  uuid.UUID
	token     string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := memory.NewStore()
	tenantID := uuid.New()
	store.Put(&core.Tenant{ID: tenantID, Name: "Example Shop", Email: "owner@example.com"})

	recorder := &notifytest.Recorder{}
	finalizer := activation.NewFinalizer(store, recorder, clock, zap.NewNop(), nil)
	target := core.PlatformTarget{CNAME: "sites.platform.test"}
	svc := domains.NewService(store, store, finalizer, nopDispatcher{}, recorder, nil, target, clock, zap.NewNop())

	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg, reg)

	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: secret}}
	h := handlers.NewHandler(svc, nil, zap.NewNop())

	return &testServer{
		server:    NewServer(cfg, h, reg, zap.NewNop()),
		store:     store,
		finalizer: finalizer,
		tenantID:  tenantID,
		token:     sign(t, tenantID.String(), jwt.SigningMethodHS256),
	}
}

func sign(t *testing.T, subject string, method jwt.SigningMethod) string {
	t.Helper()
	token := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.server.Router.ServeHTTP(w, req)
	return w
}

func TestAPI_DomainLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/domain", gin.H{"hostname": "shop.example.com", "canonical": "apex"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var created struct {
		Request core.DomainRequest `json:"request"`
		Status  core.DomainStatus  `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, core.StatusPendingVerification, created.Status)
	assert.Equal(t, "example.com", created.Request.Apex)

	w = s.do(t, http.MethodGet, "/api/v1/domain/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status domains.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "still verifying", status.Message)
	assert.Nil(t, status.Verdict)

	// Neither restart nor recheck apply to a pending request.
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/api/v1/domain/restart", nil).Code)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/api/v1/domain/check", nil).Code)

	_, err := s.finalizer.BeginMonitoring(context.Background(), s.tenantID, created.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/api/v1/domain/check", nil).Code)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/v1/domain", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/v1/domain", nil).Code)
}

func TestAPI_SubmitValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/domain", gin.H{"hostname": "192.0.2.1"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "hostname")

	w = s.do(t, http.MethodPost, "/api/v1/domain", gin.H{"hostname": "shop.example.com", "canonical": "blog"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/domain", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_HostnameClaimedByAnotherTenant(t *testing.T) {
	s := newTestServer(t)

	other := uuid.New()
	s.store.Put(&core.Tenant{ID: other, Name: "Other", Email: "other@example.net"})
	req, err := core.NewDomainRequest("example.com", core.CanonicalApex, time.Now())
	require.NoError(t, err)
	_, err = s.finalizer.Submit(context.Background(), other, req)
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/api/v1/domain", gin.H{"hostname": "shop.example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAPI_Auth(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
		{"non-uuid subject", sign(t, "tenant-1", jwt.SigningMethodHS256)},
		{"wrong algorithm", sign(t, s.tenantID.String(), jwt.SigningMethodHS512)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s.token = tc.token
			w := s.do(t, http.MethodGet, "/api/v1/domain/status", nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAPI_UnknownTenant(t *testing.T) {
	s := newTestServer(t)
	s.token = sign(t, uuid.NewString(), jwt.SigningMethodHS256)

	w := s.do(t, http.MethodGet, "/api/v1/domain/status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	s.token = ""

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/ready", nil).Code)

	w := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "activator_sessions_active")
}
