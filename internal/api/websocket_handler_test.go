package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kingrain94/entitlement-api/internal/api/dto"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/utils"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

type MockEntitlementSource struct {
	mock.Mock
}

func (m *MockEntitlementSource) GetFeatureFlag(ctx context.Context, key string, ec domain.EvaluationContext) domain.Value {
	args := m.Called(ctx, key, ec)
	return args.Get(0).(domain.Value)
}

func (m *MockEntitlementSource) GetAllFeatureFlags(ctx context.Context, ec domain.EvaluationContext) map[string]domain.Value {
	args := m.Called(ctx, ec)
	return args.Get(0).(map[string]domain.Value)
}

func newStreamServer(t *testing.T, source EntitlementSource) (*WebSocketHandler, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewWebSocketHandler(source, logger.NewLogger("test"))
	go h.Start()
	t.Cleanup(h.Stop)

	router := gin.New()
	router.GET("/stream", func(c *gin.Context) {
		if user := c.Query("user"); user != "" {
			c.Set(string(utils.PrincipalKey), &domain.Principal{ID: user})
		}
		if tenant := c.Query("tenant"); tenant != "" {
			c.Set(string(utils.TenantIDKey), tenant)
		}
		c.Next()
	}, h.HandleWebSocket)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return h, server
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/stream?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, wait time.Duration) (dto.EntitlementEvent, error) {
	t.Helper()
	var event dto.EntitlementEvent
	conn.SetReadDeadline(time.Now().Add(wait))
	err := conn.ReadJSON(&event)
	return event, err
}

func TestWebSocket_SnapshotThenChanges(t *testing.T) {
	source := new(MockEntitlementSource)
	roma := domain.EvaluationContext{UserID: "u1", TenantID: "tenant-7"}
	milano := domain.EvaluationContext{UserID: "u2", TenantID: "tenant-8"}
	source.On("GetAllFeatureFlags", mock.Anything, roma).Return(map[string]domain.Value{"custom_branding": domain.Bool(false)})
	source.On("GetAllFeatureFlags", mock.Anything, milano).Return(map[string]domain.Value{"custom_branding": domain.Bool(false)})
	source.On("GetFeatureFlag", mock.Anything, "custom_branding", roma).Return(domain.Bool(true))

	h, server := newStreamServer(t, source)
	romaConn := dial(t, server, "user=u1&tenant=tenant-7")
	milanoConn := dial(t, server, "user=u2&tenant=tenant-8")

	snapshot, err := readEvent(t, romaConn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", snapshot.Type)
	assert.False(t, snapshot.Flags["custom_branding"].Truthy())
	_, err = readEvent(t, milanoConn, 2*time.Second)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	h.OnFlagChange(&domain.FlagChange{
		FlagKey:   "custom_branding",
		Action:    domain.FlagChangeSetTenantOverride,
		SubjectID: "tenant-7",
		Value:     domain.Bool(true),
	}, false)

	change, err := readEvent(t, romaConn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "change", change.Type)
	assert.Equal(t, "custom_branding", change.Key)
	assert.True(t, change.Enabled)
	assert.Equal(t, "set_tenant_override", change.Action)

	// The change targets another tenant, so nothing reaches this subscriber.
	_, err = readEvent(t, milanoConn, 200*time.Millisecond)
	assert.Error(t, err)
	source.AssertNotCalled(t, "GetFeatureFlag", mock.Anything, "custom_branding", milano)
}

func TestWebSocket_DisconnectUnregisters(t *testing.T) {
	source := new(MockEntitlementSource)
	source.On("GetAllFeatureFlags", mock.Anything, mock.Anything).Return(map[string]domain.Value{})

	h, server := newStreamServer(t, source)
	conn := dial(t, server, "user=u1")
	_, err := readEvent(t, conn, 2*time.Second)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_RequiresCaller(t *testing.T) {
	source := new(MockEntitlementSource)
	_, server := newStreamServer(t, source)

	resp, err := http.Get(server.URL + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	source.AssertNotCalled(t, "GetAllFeatureFlags", mock.Anything, mock.Anything)
}
