package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ankesh-007/peft-studio-sub003/internal/domain"
)

// TestHealthAcceptsAnyOKResponse checks the liveness contract.
func TestHealthAcceptsAnyOKResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			t.Errorf("path = %q, want /api/health", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
}

// TestHealthReportsServerError checks non-2xx mapping to StatusError.
func TestHealthReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend booting", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	err = client.Health(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Health() error = %v, want StatusError", err)
	}
	if statusErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", statusErr.Code)
	}
}

// TestHealthHonorsContextDeadline checks per-attempt timeout behavior.
func TestHealthHonorsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := client.Health(ctx); err == nil {
		t.Fatal("expected deadline error")
	}
}

// TestDependenciesDecodesReport checks dependency report decoding.
func TestDependenciesDecodesReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dependencies" {
			t.Errorf("path = %q, want /api/dependencies", r.URL.Path)
		}
		json.NewEncoder(w).Encode(domain.DependencyReport{
			HasFailures: true,
			Items: []domain.DependencyItem{
				{ID: "cuda", Name: "CUDA toolkit", Status: domain.DependencyStatusFail, Required: true},
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	report, err := client.Dependencies(context.Background())
	if err != nil {
		t.Fatalf("Dependencies() error = %v", err)
	}
	if !report.HasFailures || len(report.Items) != 1 || report.Items[0].ID != "cuda" {
		t.Fatalf("report = %+v, want one failing cuda item", report)
	}
}

// TestCreateDeploymentPostsRequest checks the outgoing payload and decoding.
func TestCreateDeploymentPostsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/deployments" {
			t.Errorf("%s %s, want POST /api/deployments", r.Method, r.URL.Path)
		}

		var req domain.DeploymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Name != "qlora-demo" || req.RequestID == "" {
			t.Errorf("request = %+v, want named request with id", req)
		}

		json.NewEncoder(w).Encode(domain.Deployment{
			ID:     "dep-1",
			Name:   req.Name,
			Status: domain.DeploymentStatusCreating,
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	deployment, err := client.CreateDeployment(context.Background(), domain.DeploymentRequest{
		RequestID: "req-1",
		Name:      "qlora-demo",
		ModelID:   "llama-3-8b",
		Platform:  "modal",
	})
	if err != nil {
		t.Fatalf("CreateDeployment() error = %v", err)
	}
	if deployment.ID != "dep-1" || deployment.Status != domain.DeploymentStatusCreating {
		t.Fatalf("deployment = %+v, want dep-1 creating", deployment)
	}
}

// TestUploadDatasetSendsMultipartFile checks the multipart upload shape.
func TestUploadDatasetSendsMultipartFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if got := r.FormValue("uploadId"); got != "upload-1" {
			t.Errorf("uploadId = %q, want upload-1", got)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "train.jsonl" {
			t.Errorf("filename = %q, want train.jsonl", header.Filename)
		}

		json.NewEncoder(w).Encode(domain.DatasetInfo{ID: "ds-1", Name: header.Filename, RowCount: 2})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "train.jsonl")
	if err := os.WriteFile(path, []byte("{\"text\":\"a\"}\n{\"text\":\"b\"}\n"), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	info, err := client.UploadDataset(context.Background(), "upload-1", path)
	if err != nil {
		t.Fatalf("UploadDataset() error = %v", err)
	}
	if info.ID != "ds-1" || info.RowCount != 2 {
		t.Fatalf("info = %+v, want ds-1 with 2 rows", info)
	}
}

// TestExportConfigReturnsRawDocument checks opaque config passthrough.
func TestExportConfigReturnsRawDocument(t *testing.T) {
	doc := `{"loraRank":16,"epochs":3}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(doc))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	raw, err := client.ExportConfig(context.Background())
	if err != nil {
		t.Fatalf("ExportConfig() error = %v", err)
	}
	if string(raw) != doc {
		t.Fatalf("export = %s, want %s", raw, doc)
	}
}

// TestLatestVersionParsesChannel checks the updates endpoint query and decoding.
func TestLatestVersionParsesChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("channel"); got != "beta" {
			t.Errorf("channel = %q, want beta", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"version": "1.4.0-beta.2", "notes": "fixes"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	version, notes, err := client.LatestVersion(context.Background(), "beta")
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if version != "1.4.0-beta.2" || notes != "fixes" {
		t.Fatalf("version = %q notes = %q", version, notes)
	}
}

// TestNewClientRejectsBadScheme checks base URL validation.
func TestNewClientRejectsBadScheme(t *testing.T) {
	if _, err := NewClient("ftp://localhost:8000"); err == nil {
		t.Fatal("expected scheme error")
	}
}
