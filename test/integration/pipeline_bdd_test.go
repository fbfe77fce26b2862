//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/inputguard/internal/config"
	"github.com/eliteGoblin/focusd/inputguard/internal/daemon"
	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
	"github.com/eliteGoblin/focusd/inputguard/internal/infra"
	"github.com/eliteGoblin/focusd/inputguard/test/fixtures"
)

// shownOverlays counts surface Add calls on top of the log surface.
type shownOverlays struct {
	*infra.LogSurface
	mu    sync.Mutex
	shown []string
}

func (s *shownOverlays) Add(content domain.OverlayContent, params domain.LayoutParams) (domain.OverlayHandle, error) {
	s.mu.Lock()
	s.shown = append(s.shown, content.Title)
	s.mu.Unlock()
	return s.LogSurface.Add(content, params)
}

func (s *shownOverlays) Shown() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.shown...)
}

var _ = Describe("Moderation pipeline", func() {
	var (
		tmpDir  string
		cfg     *config.Config
		window  *infra.MemWindow
		surface *shownOverlays
		svc     *daemon.Service
	)

	build := func() {
		var err error
		svc, err = daemon.Build(cfg, daemon.Deps{
			Window:  window,
			Surface: surface,
			Logger:  zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
	}

	run := func(events ...domain.InputEvent) {
		ch := make(chan domain.InputEvent, len(events))
		for _, ev := range events {
			ch <- ev
		}
		close(ch)

		done := make(chan error, 1)
		go func() { done <- svc.Run(context.Background(), ch) }()
		Eventually(done, 5*time.Second).Should(Receive(BeNil()))
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "inputguard-integration-*")
		Expect(err).NotTo(HaveOccurred())

		cfg = config.Default()
		cfg.Detection.GracePeriod = 10 * time.Millisecond
		cfg.Remediation.BrowserSettle = 10 * time.Millisecond
		cfg.Store.Backend = config.BackendEncrypted
		cfg.Store.DataDir = filepath.Join(tmpDir, "db")
		cfg.Host.LockFile = filepath.Join(tmpDir, "inputguard.lock")

		window = infra.NewMemWindow(nil)
		surface = &shownOverlays{LogSurface: infra.NewLogSurface(zap.NewNop())}
	})

	AfterEach(func() {
		if svc != nil {
			_ = svc.Close()
		}
		os.RemoveAll(tmpDir)
	})

	Describe("a credential typed into a chat", func() {
		It("should log, warn and clear", func() {
			chat := fixtures.NewChatWindow("my password is secret123")
			window.SetRoot(chat.Root)
			build()

			run(domain.InputEvent{
				Kind:  domain.KindTextChanged,
				Text:  "my password is secret123",
				AppID: fixtures.ChatApp,
				Node:  chat.Compose,
			})

			Expect(svc.Store().Count()).To(Equal(1))
			Expect(svc.Store().FilterByCategory("PRIVACY_VIOLATION")).To(HaveLen(1))
			Expect(surface.Shown()).To(Equal([]string{"Privacy Violation Detected"}))
			Expect(chat.Compose.Text()).To(BeEmpty())
			Expect(surface.Active()).To(Equal(0), "overlay is torn down on shutdown")
		})

		It("should persist the activity in the encrypted store", func() {
			chat := fixtures.NewChatWindow("my password is secret123")
			window.SetRoot(chat.Root)
			build()
			run(domain.InputEvent{
				Kind:  domain.KindTextChanged,
				Text:  "my password is secret123",
				AppID: fixtures.ChatApp,
				Node:  chat.Compose,
			})
			Expect(svc.Close()).To(Succeed())

			store, backend, err := daemon.OpenStore(cfg.Store, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
			defer backend.Close()

			Expect(store.ListAll()).To(HaveLen(1))
			Expect(store.ListAll()[0].Content).To(Equal("my password is secret123"))
			Expect(store.Apps()).To(Equal([]string{fixtures.ChatApp}))

			raw, err := os.ReadFile(filepath.Join(cfg.Store.DataDir, "activities.db"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).NotTo(ContainSubstring("secret123"))
		})
	})

	Describe("a browser page", func() {
		It("should ignore the address bar", func() {
			page := fixtures.NewBrowserPage("https://www.example.com/login", "")
			window.SetRoot(page.Root)
			build()

			run(domain.InputEvent{
				Kind:  domain.KindTextChanged,
				Text:  "https://www.example.com/login",
				AppID: fixtures.BrowserApp,
				Node:  page.URLBar,
			})

			Expect(svc.Store().Count()).To(BeZero())
			Expect(surface.Shown()).To(BeEmpty())
		})

		It("should clear a web input found by the window scan", func() {
			page := fixtures.NewBrowserPage("example.com", "how to make a bomb at home")
			window.SetRoot(page.Root)
			build()

			run(domain.InputEvent{
				Kind:  domain.KindWindowContentChanged,
				AppID: fixtures.BrowserApp,
			})

			Expect(svc.Store().FilterByCategory("HARMFUL_CONTENT")).To(HaveLen(1))
			Expect(page.WebSearch.Text()).To(BeEmpty())
			Expect(page.URLBar.Text()).To(Equal("example.com"), "non-matching fields are untouched")
		})
	})

	Describe("benign text", func() {
		It("should leave no trace", func() {
			chat := fixtures.NewChatWindow("see you at lunch tomorrow")
			window.SetRoot(chat.Root)
			build()

			run(domain.InputEvent{
				Kind:  domain.KindTextChanged,
				Text:  "see you at lunch tomorrow",
				AppID: fixtures.ChatApp,
				Node:  chat.Compose,
			})

			Expect(svc.Store().Count()).To(BeZero())
			Expect(surface.Shown()).To(BeEmpty())
			Expect(chat.Compose.Text()).To(Equal("see you at lunch tomorrow"))
		})
	})
})
