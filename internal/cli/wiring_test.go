package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"srp-quiz-service/internal/config"
	"srp-quiz-service/internal/infra/filesource"
	"srp-quiz-service/internal/infra/memory"
	"srp-quiz-service/internal/infra/sqlite"
)

func TestResultSinkSelection(t *testing.T) {
	ctx := context.Background()
	d := &deps{}
	defer d.Close()

	cfg := config.Config{}
	sink, err := resultSink(ctx, cfg, d)
	if err != nil {
		t.Fatalf("memory sink: %v", err)
	}
	if _, ok := sink.(*memory.ResultStore); !ok {
		t.Fatalf("expected memory sink by default, got %T", sink)
	}

	cfg.Results.Backend = "sqlite"
	cfg.Results.SQLitePath = filepath.Join(t.TempDir(), "results.db")
	sink, err = resultSink(ctx, cfg, d)
	if err != nil {
		t.Fatalf("sqlite sink: %v", err)
	}
	if _, ok := sink.(*sqlite.ResultStore); !ok {
		t.Fatalf("expected sqlite sink, got %T", sink)
	}

	for _, backend := range []string{"redis", "postgres", "gcs", "s3"} {
		cfg.Results.Backend = backend
		if _, err := resultSink(ctx, cfg, d); err == nil {
			t.Fatalf("expected error for unconfigured backend %s", backend)
		}
	}
}

func TestItemSourceSelection(t *testing.T) {
	d := &deps{}
	cfg := config.Config{}
	cfg.Items.Source = "csv"
	cfg.Items.Path = "items.csv"
	source, err := itemSource(cfg, d)
	if err != nil {
		t.Fatalf("csv source: %v", err)
	}
	if _, ok := source.(*filesource.CSV); !ok {
		t.Fatalf("expected csv source, got %T", source)
	}

	cfg.Items.Source = "postgres"
	if _, err := itemSource(cfg, d); err == nil {
		t.Fatalf("expected error without postgres pool")
	}
	cfg.Items.Source = "ftp"
	if _, err := itemSource(cfg, d); err == nil {
		t.Fatalf("expected error for unknown source")
	}
}

func TestItemsCheckCommand(t *testing.T) {
	dir := t.TempDir()
	items := filepath.Join(dir, "items.csv")
	csv := "id,topic,week,image,answers\n" +
		"o1,organic,6,o1.png,ethanol\n" +
		"u1,units,6,u1.png,kg\n" +
		"x1,,6,x1.png,kg\n"
	if err := os.WriteFile(items, []byte(csv), 0o644); err != nil {
		t.Fatalf("write items: %v", err)
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("items:\n  source: csv\n  path: "+items+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "items", "check"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("items check: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "items: 2") || !strings.Contains(got, "excluded row") {
		t.Fatalf("unexpected output:\n%s", got)
	}
}
