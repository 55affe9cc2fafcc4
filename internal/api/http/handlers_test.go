package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/mainthread"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/rpc"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/testutil"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/uri"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/urls"
)

type fixture struct {
	svc      *mainthread.Service
	handlers *Handlers
	srv      *httptest.Server
}

func setup(t *testing.T, opts ...mainthread.Option) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := mainthread.NewService(opts...)
	h := NewHandlers(svc, nil, nil, testutil.NewRecordingReporter())

	router := gin.New()
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/handlers", h.ListHandlers)
	router.POST("/open", h.Open)
	router.GET("/exthost", h.ExtHost)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		h.CloseConnections()
		srv.Close()
	})
	return &fixture{svc: svc, handlers: h, srv: srv}
}

// connect attaches an extension host with a real registry.
func (f *fixture) connect(t *testing.T) *urls.Registry {
	t.Helper()
	var registry *urls.Registry
	conn, err := rpc.Dial(context.Background(), "ws"+strings.TrimPrefix(f.srv.URL, "http")+"/exthost",
		rpc.NewExtHostService(dispatcher(func(ctx context.Context, handle int, c uri.Components) error {
			return registry.HandleExternalURI(ctx, handle, c)
		}), nil))
	require.NoError(t, err)
	registry = urls.NewRegistry(rpc.NewMainThreadProxy(conn, nil), urls.WithReporter(testutil.NewRecordingReporter()))
	go conn.Serve(context.Background())
	t.Cleanup(func() { conn.Close() })
	return registry
}

type dispatcher func(ctx context.Context, handle int, c uri.Components) error

func (d dispatcher) HandleExternalURI(ctx context.Context, handle int, c uri.Components) error {
	return d(ctx, handle, c)
}

func (f *fixture) post(t *testing.T, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(f.srv.URL+"/open", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func (f *fixture) get(t *testing.T, path string) map[string]any {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRootAndHealth(t *testing.T) {
	f := setup(t)

	root := f.get(t, "/")
	assert.Equal(t, "online", root["status"])
	assert.Equal(t, Version, root["version"])

	health := f.get(t, "/health")
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, 0.0, health["connections"])
	assert.Equal(t, 0.0, health["handlers"])
}

func TestListHandlersEmpty(t *testing.T) {
	f := setup(t)

	out := f.get(t, "/handlers")
	assert.Equal(t, []any{}, out["handlers"])
	assert.Equal(t, 0.0, out["count"])
}

func TestOpenBadRequests(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "uri=x"},
		{name: "missing uri", body: `{}`},
		{name: "no scheme", body: `{"uri": "pub.ext/cb"}`},
		{name: "unparseable", body: `{"uri": "vscode://pub ext/%zz"}`},
		{name: "no authority", body: `{"uri": "mailto:user@example.com"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := f.post(t, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, false, out["success"])
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestOpenNoHandler(t *testing.T) {
	f := setup(t)

	resp, out := f.post(t, `{"uri": "vscode://nobody/cb"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, out["error"], "no handler")
}

func TestOpenRoutesThroughExtensionHost(t *testing.T) {
	f := setup(t)
	registry := f.connect(t)

	got := make(chan uri.URI, 1)
	_, err := registry.Register("pub.auth", urls.HandlerFunc(func(_ context.Context, u uri.URI) error {
		got <- u
		return nil
	}))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(f.svc.Handlers()) == 1 }, 2*time.Second, 5*time.Millisecond)

	listed := f.get(t, "/handlers")
	require.Len(t, listed["handlers"], 1)
	entry := listed["handlers"].([]any)[0].(map[string]any)
	assert.Equal(t, "pub.auth", entry["extension_id"])
	assert.Equal(t, 0.0, entry["handle"])

	health := f.get(t, "/health")
	assert.Equal(t, 1.0, health["connections"])

	resp, out := f.post(t, `{"uri": "vscode://PUB.AUTH/done?code=9#top"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	route := out["route"].(map[string]any)
	assert.Equal(t, "pub.auth", route["extension_id"])
	assert.True(t, strings.HasPrefix(route["dispatch_id"].(string), "dsp_"))

	select {
	case u := <-got:
		assert.Equal(t, "/done", u.Path())
		assert.Equal(t, "code=9", u.Query())
		assert.Equal(t, "top", u.Fragment())
	case <-time.After(2 * time.Second):
		t.Fatal("handler not invoked")
	}
}

func TestOpenTimesOut(t *testing.T) {
	f := setup(t, mainthread.WithDispatchTimeout(50*time.Millisecond))

	sess := f.svc.NewSession()
	sess.Attach(blockingCaller{})
	raw, err := json.Marshal(rpc.RegisterParams{Handle: 0, ExtensionID: "pub.slow"})
	require.NoError(t, err)
	sess.HandleNotification(context.Background(), rpc.MethodRegisterURIHandler, raw)

	resp, _ := f.post(t, `{"uri": "vscode://pub.slow/x"}`)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
}

func TestOpenDeliveryFailure(t *testing.T) {
	f := setup(t)

	sess := f.svc.NewSession()
	sess.Attach(closedCaller{})
	raw, err := json.Marshal(rpc.RegisterParams{Handle: 0, ExtensionID: "pub.gone"})
	require.NoError(t, err)
	sess.HandleNotification(context.Background(), rpc.MethodRegisterURIHandler, raw)

	resp, out := f.post(t, `{"uri": "vscode://pub.gone/x"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, out["error"], rpc.ErrClosed.Error())
}

func TestExtHostRejectsPlainHTTP(t *testing.T) {
	f := setup(t)

	resp, err := http.Get(f.srv.URL + "/exthost")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, f.svc.Connections())
}

type blockingCaller struct{}

func (blockingCaller) ID() id.ConnectionID { return "conn_blocking" }

func (blockingCaller) Call(ctx context.Context, _ string, _ any, _ any) error {
	<-ctx.Done()
	return ctx.Err()
}

type closedCaller struct{}

func (closedCaller) ID() id.ConnectionID { return "conn_closed" }

func (closedCaller) Call(context.Context, string, any, any) error { return rpc.ErrClosed }
