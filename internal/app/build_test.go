package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ent0n29/taskboard/internal/config"
	"github.com/ent0n29/taskboard/internal/tasks"
)

func TestBuildWiresRouterToManager(t *testing.T) {
	cfg := config.Config{
		AppName:          "Task Management API",
		Version:          "1.0.0",
		MetricsNamespace: "test_app_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		TaskEventBuffer:  4,
	}
	built, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer func() {
		if err := built.Cleanup(); err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}
	}()

	ts := httptest.NewServer(built.API.Router())
	defer ts.Close()

	res, err := http.Post(ts.URL+"/api/v1/tasks", "application/json", strings.NewReader(`{"title":"wired"}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	task, err := built.Tasks.Get(1)
	if err != nil {
		t.Fatalf("Tasks.Get(1) error = %v", err)
	}
	if task.Title != "wired" || task.Status != tasks.TaskStatusPending {
		t.Fatalf("task = %+v, want wired/pending", task)
	}
}
