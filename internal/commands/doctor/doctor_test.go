package doctor

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/mqview/internal/core/config"
	"github.com/hay-kot/mqview/internal/store/jsonfile"
)

type staticCheck struct {
	name  string
	items []CheckItem
}

func (c staticCheck) Name() string { return c.name }

func (c staticCheck) Run(context.Context) Result {
	return Result{Name: c.name, Items: c.items}
}

func TestRunAll_Summary(t *testing.T) {
	results := RunAll(context.Background(), []Check{
		staticCheck{name: "a", items: []CheckItem{{Label: "one", Status: StatusPass}, {Label: "two", Status: StatusWarn}}},
		staticCheck{name: "b", items: []CheckItem{{Label: "three", Status: StatusFail}}},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "pass", results[0].Items[0].StatusStr)
	assert.Equal(t, "warn", results[0].Items[1].StatusStr)
	assert.Equal(t, "fail", results[1].Items[0].StatusStr)

	passed, warned, failed := Summary(results)
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, warned)
	assert.Equal(t, 1, failed)
}

func TestStoreCheck(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	require.NoError(t, jsonfile.NewBrokerStore(cfg.BrokersFile()).Add(ctx, "localhost:1883"))

	result := NewStoreCheck(&cfg).Run(ctx)

	assert.Equal(t, "Data Directory", result.Name)
	require.Len(t, result.Items, 3)
	for _, item := range result.Items {
		assert.Equal(t, StatusPass, item.Status, item.Label)
	}
	assert.Equal(t, "1 found", result.Items[0].Detail)
	assert.Equal(t, "0 found", result.Items[1].Detail)
}

func TestStoreCheck_NoConfig(t *testing.T) {
	result := NewStoreCheck(nil).Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusFail, result.Items[0].Status)
}

func TestBrokerCheck(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedAddr := closed.Addr().String()
	require.NoError(t, closed.Close())

	result := NewBrokerCheck([]string{ln.Addr().String(), closedAddr}).Run(context.Background())

	require.Len(t, result.Items, 2)
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Equal(t, StatusWarn, result.Items[1].Status)
}

func TestBrokerCheck_NoHosts(t *testing.T) {
	result := NewBrokerCheck(nil).Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusWarn, result.Items[0].Status)
}

func TestBridgeCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	result := NewBridgeCheck(wsURL).Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusPass, result.Items[0].Status)
}

func TestHealthURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "ws", in: "ws://127.0.0.1:3030/ws", want: "http://127.0.0.1:3030/healthz"},
		{name: "wss with query", in: "wss://example.com/ws?x=1", want: "https://example.com/healthz"},
		{name: "http rejected", in: "http://example.com/ws", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HealthURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigCheck(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(cfg *config.Config)
		configPath func(t *testing.T) string
		want       map[string]Status
		wantDetail map[string]string
	}{
		{
			name:       "defaults without a file",
			configPath: func(t *testing.T) string { return filepath.Join(t.TempDir(), "config.yaml") },
			want: map[string]Status{
				"Config file":        StatusPass,
				"Listen address":     StatusPass,
				"Configured brokers": StatusPass,
			},
			wantDetail: map[string]string{
				"Listen address":     "127.0.0.1:3030",
				"Configured brokers": "none, relying on remembered brokers",
			},
		},
		{
			name:       "brokers counted",
			mutate:     func(cfg *config.Config) { cfg.Brokers = []string{"a:1883", "b:1883"} },
			configPath: func(t *testing.T) string { return "" },
			want:       map[string]Status{"Configured brokers": StatusPass},
			wantDetail: map[string]string{
				"Config file":        "none, using defaults",
				"Configured brokers": "2 configured",
			},
		},
		{
			name:       "bad listen address",
			mutate:     func(cfg *config.Config) { cfg.Server.Listen = "no-port" },
			configPath: func(t *testing.T) string { return "" },
			want:       map[string]Status{"Listen address": StatusFail},
		},
		{
			name:       "duplicate broker warns",
			mutate:     func(cfg *config.Config) { cfg.Brokers = []string{"a:1883", "a:1883"} },
			configPath: func(t *testing.T) string { return "" },
			want:       map[string]Status{"Brokers (a:1883)": StatusWarn},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.DataDir = t.TempDir()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}

			result := NewConfigCheck(&cfg, tt.configPath(t)).Run(context.Background())

			items := make(map[string]CheckItem, len(result.Items))
			for _, item := range result.Items {
				items[item.Label] = item
			}
			for label, status := range tt.want {
				require.Contains(t, items, label)
				assert.Equal(t, status, items[label].Status, label)
			}
			for label, detail := range tt.wantDetail {
				require.Contains(t, items, label)
				assert.Equal(t, detail, items[label].Detail, label)
			}
		})
	}
}

func TestConfigCheck_NoConfig(t *testing.T) {
	result := NewConfigCheck(nil, "").Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusFail, result.Items[0].Status)
}
