package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/example/assetmeta/internal/classifier"
)

func TestParseInstructions(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{"empty", nil, map[string]string{}, false},
		{"simple", []string{"kind=color", "topN=5"}, map[string]string{"kind": "color", "topN": "5"}, false},
		{"value with equals", []string{"endpoint=https://x.test/CLASSIFIER_ID?a=b"}, map[string]string{"endpoint": "https://x.test/CLASSIFIER_ID?a=b"}, false},
		{"last wins", []string{"kind=tag", "kind=color"}, map[string]string{"kind": "color"}, false},
		{"missing separator", []string{"kind"}, nil, true},
		{"empty key", []string{"=tag"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInstructions(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Fatalf("expected %s=%s, got %s", k, v, got[k])
				}
			}
		})
	}
}

func newTagServer(t *testing.T, wantToken string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+wantToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":[{"tags":[{"tag":"beach","confidence":0.4},{"tag":"sea","confidence":0.875}]}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeTestSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.jpg")
	if err := os.WriteFile(path, []byte("jpeg bytes"), 0o600); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}
	return path
}

func TestRunProcessWritesDocument(t *testing.T) {
	srv := newTagServer(t, "flag-token")
	output := filepath.Join(t.TempDir(), "metadata.json")

	cmd := newProcessCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)

	opts := &processOptions{
		jobID:  "job-7",
		source: writeTestSource(t),
		url:    "https://assets.test/source.jpg",
		output: output,
		instructions: []string{
			"classifierIds=general",
			"endpoint=" + srv.URL + "/CLASSIFIER_ID",
			"token=flag-token",
		},
	}
	if err := runProcess(context.Background(), cmd, opts, "", classifier.NewInvoker(), zap.NewNop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var summary map[string]any
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("invalid summary %q: %v", out.String(), err)
	}
	if summary["job_id"] != "job-7" || summary["feature_count"] != float64(2) {
		t.Fatalf("unexpected summary: %v", summary)
	}

	doc, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("metadata document missing: %v", err)
	}
	if !strings.Contains(string(doc), `"sea"`) || strings.Index(string(doc), "sea") > strings.Index(string(doc), "beach") {
		t.Fatalf("unexpected document: %s", doc)
	}
}

func TestRunProcessTestModeReadsEnvironment(t *testing.T) {
	srv := newTagServer(t, "env-token")
	t.Setenv("ASSETMETA_TOKEN", "env-token")
	t.Setenv("ASSETMETA_CLASSIFIER_IDS", "general")
	t.Setenv("ASSETMETA_ENDPOINT", srv.URL+"/CLASSIFIER_ID")

	output := filepath.Join(t.TempDir(), "metadata.json")
	opts := &processOptions{
		source: writeTestSource(t),
		url:    "https://assets.test/source.jpg",
		output: output,
	}

	cmd := newProcessCommand()
	cmd.SetOut(&bytes.Buffer{})
	if err := runProcess(context.Background(), cmd, opts, "", classifier.NewInvoker(), zap.NewNop()); err == nil {
		t.Fatal("expected failure without test mode")
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatalf("expected no document without test mode, stat err: %v", err)
	}

	opts.testMode = true
	if err := runProcess(context.Background(), cmd, opts, "", classifier.NewInvoker(), zap.NewNop()); err != nil {
		t.Fatalf("unexpected error in test mode: %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("expected document in test mode: %v", err)
	}
}

func TestRunProcessRequiresSource(t *testing.T) {
	cmd := newProcessCommand()
	err := runProcess(context.Background(), cmd, &processOptions{output: "out.json"}, "", classifier.NewInvoker(), zap.NewNop())
	if err == nil {
		t.Fatal("expected error without --source or --url")
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"serve", "process"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("expected %s subcommand, got %v (%v)", name, cmd, err)
		}
	}
}
