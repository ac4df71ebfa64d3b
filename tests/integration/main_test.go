//go:build integration

// Package integration contains end-to-end tests that run the full
// application against a real PostgreSQL event journal.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/bracketops/incidentd/internal/app"
	"github.com/bracketops/incidentd/internal/config"
	"github.com/bracketops/incidentd/internal/domain"
	"github.com/bracketops/incidentd/internal/testutil"
	"github.com/stretchr/testify/require"
)

const openAPISpecPath = "../../api/openapi/openapi.yaml"

var (
	databaseURL string
	testApp     *app.App
	server      *httptest.Server
	client      *testutil.Client
)

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	container, err := testutil.NewPostgresContainer(ctx)
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			log.Printf("terminate postgres container: %v", err)
		}
	}()
	databaseURL = container.ConnectionString

	testApp, err = newTestApp()
	if err != nil {
		log.Fatalf("create app: %v", err)
	}
	defer func() {
		if err := testApp.Shutdown(ctx); err != nil {
			log.Printf("shutdown app: %v", err)
		}
	}()

	server = httptest.NewServer(testApp.Router())
	defer server.Close()

	validator, err := testutil.LoadOpenAPIValidator(openAPISpecPath)
	if err != nil {
		log.Fatalf("load openapi spec: %v", err)
	}
	client = testutil.NewClientWithValidator(server.URL, validator)

	return m.Run()
}

func newTestApp() (*app.App, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}

	cfg.Database.Enabled = true
	cfg.Database.URL = databaseURL
	cfg.Database.MigrationsPath = "../../migrations"
	cfg.Log.Level = "error"

	return app.New(cfg)
}

// decodeData unwraps the {"data": ...} response envelope into v.
func decodeData(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, v))
}

func createIncident(t *testing.T, severity string) *domain.Incident {
	t.Helper()
	client.SetT(t)

	resp, err := client.POST("/api/v1/incidents", map[string]interface{}{
		"title":            fmt.Sprintf("integration incident %s", severity),
		"category":         "unauthorized_access",
		"severity":         severity,
		"detection_source": "siem",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var incident domain.Incident
	decodeData(t, resp, &incident)
	return &incident
}

func ingestEvent(t *testing.T, event map[string]interface{}, wantStatus int) *domain.Incident {
	t.Helper()
	client.SetT(t)

	resp, err := client.POST("/api/v1/events", event)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode)

	if wantStatus >= 400 {
		_ = resp.Body.Close()
		return nil
	}

	var incident domain.Incident
	decodeData(t, resp, &incident)
	return &incident
}

func advancePhase(t *testing.T, incidentID, phase string) *domain.Incident {
	t.Helper()
	return ingestEvent(t, map[string]interface{}{
		"type":        "phase_advanced",
		"incident_id": incidentID,
		"phase":       map[string]string{"name": phase},
	}, http.StatusOK)
}
