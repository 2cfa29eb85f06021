package payroll

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// SyncState records the calendar events already created for each schedule
type SyncState struct {
	Schedules map[string]*ScheduleSync `json:"schedules"` // schedule file name -> events
}

// ScheduleSync holds the events created for one schedule file
type ScheduleSync struct {
	Events   map[string]string `json:"events"` // "YYYY-MM-DD/CODE" -> event id
	SyncedAt string            `json:"synced_at"`
}

// SyncStateManager persists SyncState as JSON
type SyncStateManager struct {
	stateFile string
	state     *SyncState
	logger    *zap.Logger
}

// NewSyncStateManager creates a new sync state manager
func NewSyncStateManager(stateFile string, logger *zap.Logger) *SyncStateManager {
	return &SyncStateManager{
		stateFile: stateFile,
		logger:    logger,
	}
}

// Load loads the sync state from file
func (sm *SyncStateManager) Load() error {
	data, err := os.ReadFile(sm.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			// created on first save
			sm.state = &SyncState{Schedules: make(map[string]*ScheduleSync)}
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var state SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}
	if state.Schedules == nil {
		state.Schedules = make(map[string]*ScheduleSync)
	}
	for name, s := range state.Schedules {
		if s == nil {
			s = &ScheduleSync{}
			state.Schedules[name] = s
		}
		if s.Events == nil {
			s.Events = make(map[string]string)
		}
	}

	sm.state = &state
	sm.logger.Debug("Sync state loaded",
		zap.String("file", sm.stateFile),
		zap.Int("schedules", len(state.Schedules)))

	return nil
}

// Save saves the sync state to file
func (sm *SyncStateManager) Save() error {
	if sm.state == nil {
		return nil
	}

	data, err := json.MarshalIndent(sm.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if dir := filepath.Dir(sm.stateFile); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	if err := os.WriteFile(sm.stateFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	return nil
}

// IsSynced reports whether the event for key was already created from schedule
func (sm *SyncStateManager) IsSynced(schedule, key string) bool {
	if sm.state == nil {
		return false
	}
	s, ok := sm.state.Schedules[schedule]
	if !ok || s == nil {
		return false
	}
	_, ok = s.Events[key]
	return ok
}

// MarkSynced remembers the event id created for key
func (sm *SyncStateManager) MarkSynced(schedule, key, eventID string) {
	if sm.state == nil {
		sm.state = &SyncState{Schedules: make(map[string]*ScheduleSync)}
	}

	s, ok := sm.state.Schedules[schedule]
	if !ok || s == nil {
		s = &ScheduleSync{}
		sm.state.Schedules[schedule] = s
	}
	if s.Events == nil {
		s.Events = make(map[string]string)
	}
	s.Events[key] = eventID
	s.SyncedAt = time.Now().Format(time.RFC3339)
}

// Forget drops everything recorded for schedule
func (sm *SyncStateManager) Forget(schedule string) {
	if sm.state != nil {
		delete(sm.state.Schedules, schedule)
	}
}

// SyncedEvents returns the recorded event count for schedule
func (sm *SyncStateManager) SyncedEvents(schedule string) int {
	if sm.state == nil {
		return 0
	}
	if s, ok := sm.state.Schedules[schedule]; ok && s != nil {
		return len(s.Events)
	}
	return 0
}
