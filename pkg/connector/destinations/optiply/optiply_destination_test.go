package optiply

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optisync/optiply-target/pkg/config"
	"github.com/optisync/optiply-target/pkg/connector/core"
	"github.com/optisync/optiply-target/pkg/connector/registry"
	"github.com/optisync/optiply-target/pkg/errors"
	"github.com/optisync/optiply-target/pkg/models"
)

// testAPIServer serves both the auth endpoint and the resource endpoints.
func testAPIServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
			return
		}
		handler(w, r)
	}))
}

func testDestinationConfig(serverURL string) *config.BaseConfig {
	cfg := config.NewBaseConfig("optiply", "destination")
	cfg.Security.Credentials = map[string]string{
		"username":      "user@example.com",
		"password":      "pass",
		"client_id":     "client",
		"client_secret": "secret",
		"account_id":    "1",
		"coupling_id":   "2",
		"base_url":      serverURL,
		"auth_url":      serverURL + "/token",
	}
	return cfg
}

func TestDestinationRegistered(t *testing.T) {
	assert.True(t, registry.HasDestination("optiply"))
}

func TestDestinationInitializeRequiresCredentials(t *testing.T) {
	dest := NewDestination()
	cfg := config.NewBaseConfig("optiply", "destination")

	err := dest.Initialize(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestDestinationSinkPerStream(t *testing.T) {
	server := testAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	defer server.Close()

	dest := NewDestination()
	require.NoError(t, dest.Initialize(context.Background(), testDestinationConfig(server.URL)))
	defer func() { _ = dest.Close(context.Background()) }()

	for _, stream := range Streams() {
		sink, err := dest.SinkFor(stream)
		require.NoError(t, err)
		assert.Equal(t, stream, sink.Stream())
	}

	_, err := dest.SinkFor("Invoices")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestDestinationWriteDrainsStream(t *testing.T) {
	var paths []string
	server := testAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusCreated)
	})
	defer server.Close()

	dest := NewDestination()
	require.NoError(t, dest.Initialize(context.Background(), testDestinationConfig(server.URL)))
	defer func() { _ = dest.Close(context.Background()) }()

	records := make(chan *models.Record, 2)
	errs := make(chan error)

	product := models.NewRecord("Products")
	product.Data = map[string]interface{}{
		"name": "Widget", "stockLevel": float64(3), "unlimitedStock": false,
	}
	supplier := models.NewRecord("Suppliers")
	supplier.Data = map[string]interface{}{"name": "Acme BV"}
	records <- product
	records <- supplier
	close(records)

	err := dest.Write(context.Background(), &core.RecordStream{Records: records, Errors: errs})
	require.NoError(t, err)

	assert.Equal(t, []string{"/products", "/suppliers"}, paths)
	m := dest.Metrics()
	assert.Equal(t, int64(2), m["records_written"])
}

func TestDestinationWriteContinuesPastSkips(t *testing.T) {
	calls := 0
	server := testAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})
	defer server.Close()

	dest := NewDestination()
	require.NoError(t, dest.Initialize(context.Background(), testDestinationConfig(server.URL)))
	defer func() { _ = dest.Close(context.Background()) }()

	records := make(chan *models.Record, 2)
	errs := make(chan error)

	invalid := models.NewRecord("Products")
	invalid.Data = map[string]interface{}{}
	valid := models.NewRecord("Products")
	valid.Data = map[string]interface{}{
		"name": "Widget", "stockLevel": float64(3), "unlimitedStock": true,
	}
	records <- invalid
	records <- valid
	close(records)

	err := dest.Write(context.Background(), &core.RecordStream{Records: records, Errors: errs})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	m := dest.Metrics()
	assert.Equal(t, int64(1), m["records_written"])
	assert.Equal(t, int64(1), m["records_skipped"])
}

func TestDestinationHealth(t *testing.T) {
	server := testAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	dest := NewDestination()
	require.NoError(t, dest.Initialize(context.Background(), testDestinationConfig(server.URL)))
	defer func() { _ = dest.Close(context.Background()) }()

	assert.NoError(t, dest.Health(context.Background()))
}
