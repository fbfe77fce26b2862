package infra

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
)

// LogSurface implements domain.OverlaySurface by writing overlay lifecycle
// to the log. Used by the headless run mode where no window system exists.
type LogSurface struct {
	mu     sync.Mutex
	logger *zap.Logger
	nextID int
	active map[int]domain.OverlayContent
}

func NewLogSurface(logger *zap.Logger) *LogSurface {
	return &LogSurface{
		logger: logger,
		active: make(map[int]domain.OverlayContent),
	}
}

func (s *LogSurface) Add(content domain.OverlayContent, params domain.LayoutParams) (domain.OverlayHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.active[s.nextID] = content
	s.logger.Warn("content warning shown",
		zap.Int("overlay", s.nextID),
		zap.String("title", content.Title),
		zap.String("description", content.Description),
		zap.String("suggestion", content.Suggestion),
		zap.String("gravity", string(params.Gravity)))
	return s.nextID, nil
}

func (s *LogSurface) Update(handle domain.OverlayHandle, frame domain.OverlayFrame) error {
	id, err := s.lookup(handle)
	if err != nil {
		return err
	}
	s.logger.Debug("overlay frame",
		zap.Int("overlay", id),
		zap.Float64("alpha", frame.Alpha),
		zap.Int("progress", frame.Progress))
	return nil
}

func (s *LogSurface) Remove(handle domain.OverlayHandle) error {
	id, err := s.lookup(handle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()

	s.logger.Info("content warning dismissed", zap.Int("overlay", id))
	return nil
}

// Active returns the number of overlays currently attached.
func (s *LogSurface) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *LogSurface) lookup(handle domain.OverlayHandle) (int, error) {
	id, ok := handle.(int)
	if !ok {
		return 0, fmt.Errorf("%w: bad handle %v", domain.ErrSurfaceUnavailable, handle)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[id]; !ok {
		return 0, fmt.Errorf("%w: overlay %d not attached", domain.ErrSurfaceUnavailable, id)
	}
	return id, nil
}

var _ domain.OverlaySurface = (*LogSurface)(nil)
