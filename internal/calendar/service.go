package calendar

import (
	"sync"

	"crm_followup_backend/platform/config"
	"crm_followup_backend/platform/logger"
)

// Service holds the active schedule behind a lock so it can be hot-reloaded
// without restarting the engine. Readers always see a consistent schedule.
type Service struct {
	mu       sync.RWMutex
	schedule WeekSchedule
	path     string
	log      *logger.Logger
}

// NewService creates a calendar service. If the config names a schedule file
// it is loaded immediately; otherwise the built-in default applies.
func NewService(cfg config.CalendarConfig, log *logger.Logger) (*Service, error) {
	s := &Service{
		schedule: DefaultSchedule(),
		path:     cfg.GetScheduleFile(),
		log:      log,
	}

	if s.path != "" {
		loaded, err := LoadSchedule(s.path)
		if err != nil {
			return nil, err
		}
		s.schedule = loaded
	}

	return s, nil
}

// Schedule returns the currently active week schedule.
func (s *Service) Schedule() WeekSchedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedule
}

// Reload re-reads the schedule file. A failed reload keeps the previous
// schedule active.
func (s *Service) Reload() error {
	if s.path == "" {
		return nil
	}

	loaded, err := LoadSchedule(s.path)
	if err != nil {
		if s.log != nil {
			s.log.Error("schedule reload failed, keeping previous schedule", "error", err, "path", s.path)
		}
		return err
	}

	s.mu.Lock()
	s.schedule = loaded
	s.mu.Unlock()

	if s.log != nil {
		s.log.Info("schedule reloaded", "path", s.path)
	}
	return nil
}
