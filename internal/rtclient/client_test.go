// internal/rtclient/client_test.go
package rtclient

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/davem/wrenchd/internal/auth"
	"github.com/davem/wrenchd/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens map[string]*auth.Identity

func (s staticTokens) IdentityFromToken(token string) (*auth.Identity, error) {
	if ident, ok := s[token]; ok {
		return ident, nil
	}
	return nil, &AuthError{Reason: "invalid token"}
}

type fakeAlerter struct {
	mu     sync.Mutex
	grant  bool
	asked  int
	alerts []string
}

func (f *fakeAlerter) RequestPermission() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked++
	return f.grant
}

func (f *fakeAlerter) Alert(title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, title)
	return nil
}

func (f *fakeAlerter) alertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

func (f *fakeAlerter) askedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.asked
}

func newBridgeTestServer(t *testing.T, tokens staticTokens) (*realtime.Service, string) {
	t.Helper()
	svc := realtime.NewService(tokens)
	ts := httptest.NewServer(http.HandlerFunc(svc.HandleWebSocket))
	t.Cleanup(ts.Close)
	return svc, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBridgeSubscribesAndToasts(t *testing.T) {
	svc, url := newBridgeTestServer(t, staticTokens{
		"tok-42": {UserID: "42", Role: auth.RoleOperator},
	})

	var mu sync.Mutex
	var toasts []realtime.NotificationPayload

	client := New(Config{
		URL:    url,
		Token:  "tok-42",
		UserID: "42",
		Role:   auth.RoleOperator,
		OnToast: func(p realtime.NotificationPayload) {
			mu.Lock()
			toasts = append(toasts, p)
			mu.Unlock()
		},
	})
	client.Start()
	defer client.Close()

	waitFor(t, "subscribed state", func() bool { return client.State() == StateSubscribed })
	waitFor(t, "registry entry", func() bool {
		_, ok := svc.Registry().Lookup("42")
		return ok
	})

	svc.Dispatcher().PushToUser("42", &realtime.NotificationPayload{
		ID: "n1", Type: realtime.TypeInfo, Title: "Orden lista", Message: "Listo para recoger",
	})

	waitFor(t, "toast", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(toasts) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Orden lista", toasts[0].Title)

	connected, lastErr := client.Status()
	assert.True(t, connected)
	assert.Empty(t, lastErr)
}

func TestBridgeInvalidatesCacheOnSignal(t *testing.T) {
	svc, url := newBridgeTestServer(t, staticTokens{
		"tok-admin": {UserID: "1", Role: auth.RoleAdmin},
	})

	cache := NewQueryCache()
	cache.Set("service-orders", "stale list")
	cache.Set("service-orders/o1", "stale detail")
	cache.Set("clients", "untouched")

	client := New(Config{
		URL:    url,
		Token:  "tok-admin",
		UserID: "1",
		Role:   auth.RoleAdmin,
		Cache:  cache,
	})
	client.Start()
	defer client.Close()

	waitFor(t, "registry entry", func() bool {
		_, ok := svc.Registry().Lookup("1")
		return ok
	})
	waitFor(t, "subscribed state", func() bool { return client.State() == StateSubscribed })

	svc.Dispatcher().SignalOrders("", map[string]any{"orderId": "o1"})

	waitFor(t, "cache invalidation", func() bool {
		_, ok := cache.Get("service-orders")
		return !ok
	})
	if _, ok := cache.Get("service-orders/o1"); ok {
		t.Error("detail key should be invalidated")
	}
	if _, ok := cache.Get("clients"); !ok {
		t.Error("unrelated key should survive")
	}
}

func TestBridgePermissionDeniedDisablesAlerts(t *testing.T) {
	svc, url := newBridgeTestServer(t, staticTokens{
		"tok-42": {UserID: "42", Role: auth.RoleUser},
	})

	alerter := &fakeAlerter{grant: false}
	seen := make(chan struct{}, 8)

	client := New(Config{
		URL:     url,
		Token:   "tok-42",
		UserID:  "42",
		Role:    auth.RoleUser,
		Alerter: alerter,
		OnToast: func(realtime.NotificationPayload) { seen <- struct{}{} },
	})
	client.Start()
	defer client.Close()

	waitFor(t, "registry entry", func() bool {
		_, ok := svc.Registry().Lookup("42")
		return ok
	})

	svc.Dispatcher().PushToUser("42", &realtime.NotificationPayload{
		ID: "n1", Type: realtime.TypeWarning, Title: "Aviso",
	})

	select {
	case <-seen:
	case <-time.After(2 * time.Second):
		t.Fatal("toast never arrived")
	}

	assert.Equal(t, 1, alerter.askedCount(), "permission requested exactly once")
	assert.Equal(t, 0, alerter.alertCount(), "denial must disable OS alerts, toast still fires")
}

func TestBridgeGrantedPermissionAlerts(t *testing.T) {
	svc, url := newBridgeTestServer(t, staticTokens{
		"tok-42": {UserID: "42", Role: auth.RoleUser},
	})

	alerter := &fakeAlerter{grant: true}
	client := New(Config{
		URL:     url,
		Token:   "tok-42",
		UserID:  "42",
		Role:    auth.RoleUser,
		Alerter: alerter,
	})
	client.Start()
	defer client.Close()

	waitFor(t, "registry entry", func() bool {
		_, ok := svc.Registry().Lookup("42")
		return ok
	})

	svc.Dispatcher().PushToUser("42", &realtime.NotificationPayload{
		ID: "n1", Type: realtime.TypeSuccess, Title: "Orden lista",
	})

	waitFor(t, "alert", func() bool { return alerter.alertCount() == 1 })
}

func TestBridgeReconnectsWithBackoff(t *testing.T) {
	// No server yet: the client must keep retrying, then surface the error.
	client := New(Config{
		URL:          "ws://127.0.0.1:1", // nothing listens here
		Token:        "tok",
		UserID:       "42",
		Role:         auth.RoleUser,
		ReconnectMin: 10 * time.Millisecond,
		ReconnectMax: 50 * time.Millisecond,
	})
	client.Start()
	defer client.Close()

	waitFor(t, "error surfaced", func() bool {
		connected, lastErr := client.Status()
		return !connected && lastErr != ""
	})

	require.Equal(t, StateDisconnected, client.State())
}

func TestBridgeRespond(t *testing.T) {
	svc, url := newBridgeTestServer(t, staticTokens{
		"tok-user":  {UserID: "42", Role: auth.RoleUser},
		"tok-admin": {UserID: "1", Role: auth.RoleAdmin},
	})

	adminSeen := make(chan realtime.NotificationPayload, 1)
	admin := New(Config{
		URL: url, Token: "tok-admin", UserID: "1", Role: auth.RoleAdmin,
		OnToast: func(p realtime.NotificationPayload) { adminSeen <- p },
	})
	admin.Start()
	defer admin.Close()

	user := New(Config{URL: url, Token: "tok-user", UserID: "42", Role: auth.RoleUser})
	user.Start()
	defer user.Close()

	waitFor(t, "both sessions", func() bool {
		_, a := svc.Registry().Lookup("1")
		_, b := svc.Registry().Lookup("42")
		return a && b
	})
	waitFor(t, "user subscribed", func() bool { return user.State() == StateSubscribed })

	require.NoError(t, user.Respond("n-99", "De acuerdo"))

	select {
	case p := <-adminSeen:
		assert.Equal(t, "n-99", p.Data["notificationId"])
	case <-time.After(2 * time.Second):
		t.Fatal("admin never saw the response relay")
	}
}
