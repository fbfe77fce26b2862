//go:build integration

package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/inputguard/internal/config"
	"github.com/eliteGoblin/focusd/inputguard/internal/daemon"
	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
	"github.com/eliteGoblin/focusd/inputguard/internal/infra"
	"github.com/eliteGoblin/focusd/inputguard/test/fixtures"
)

func TestReplay_FileBackedSession(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := config.Default()
	cfg.Detection.GracePeriod = 10 * time.Millisecond
	cfg.Store.Path = filepath.Join(tmpDir, "activities.json")
	cfg.Host.LockFile = filepath.Join(tmpDir, "inputguard.lock")

	logger, _ := zap.NewDevelopment()
	window := infra.NewMemWindow(nil)
	clock := infra.NewSystemClock()

	svc, err := daemon.Build(cfg, daemon.Deps{Window: window, Clock: clock, Logger: logger})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer svc.Close()

	stream := fixtures.ReplayStream(
		`# a short chat session`,
		`{"kind":"text_changed","app":"com.whatsapp","text":"hi","node":{"class":"android.widget.EditText","text":"hi","editable":true,"focused":true}}`,
		`{"kind":"text_changed","app":"com.whatsapp","text":"www.example.com","node":{"class":"android.widget.EditText","text":"www.example.com","editable":true,"focused":true}}`,
		`not json`,
		`{"kind":"text_changed","app":"com.whatsapp","text":"my password is secret123","delay_ms":50,"node":{"class":"android.widget.EditText","text":"my password is secret123","editable":true,"focused":true}}`,
		`{"kind":"text_changed","app":"com.whatsapp","text":"see you at lunch tomorrow","delay_ms":50,"node":{"class":"android.widget.EditText","text":"see you at lunch tomorrow","editable":true,"focused":true}}`,
	)

	events := make(chan domain.InputEvent, 8)
	source := infra.NewReplaySource(stream, window, clock, logger)
	go func() { _ = source.Run(context.Background(), events) }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Run(ctx, events); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	items := svc.Store().ListAll()
	if len(items) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(items))
	}
	if items[0].Content != "my password is secret123" {
		t.Errorf("unexpected content %q", items[0].Content)
	}

	// A fresh log over the same file sees the same entry.
	reloaded, backend, err := daemon.OpenStore(cfg.Store, logger)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer backend.Close()
	if reloaded.Count() != 1 {
		t.Errorf("expected 1 persisted activity, got %d", reloaded.Count())
	}
}
