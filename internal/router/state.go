package router

import (
	"sync"

	"github.com/dgnsrekt/musicbridge/internal/cdpcontrol"
)

// State is the router's only mutable memory: the control window it opened
// and the service a music tab was last found on. It starts empty and is
// reset when the control window closes.
type State struct {
	mu            sync.Mutex
	controlWindow *cdpcontrol.WindowHandle
	lastUsed      string
}

func NewState() *State { return &State{} }

// ControlWindow returns the recorded control window, if any.
func (s *State) ControlWindow() (cdpcontrol.WindowHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controlWindow == nil {
		return cdpcontrol.WindowHandle{}, false
	}
	return *s.controlWindow, true
}

// LastUsedService returns the canonical name of the last discovered service.
func (s *State) LastUsedService() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *State) setControlWindow(h cdpcontrol.WindowHandle) {
	s.mu.Lock()
	s.controlWindow = &h
	s.mu.Unlock()
}

// forgetControlWindow drops h if it is still the recorded window.
func (s *State) forgetControlWindow(h cdpcontrol.WindowHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controlWindow == nil || *s.controlWindow != h {
		return false
	}
	s.controlWindow = nil
	return true
}

// setLastUsed records name and reports whether it changed.
func (s *State) setLastUsed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastUsed == name {
		return false
	}
	s.lastUsed = name
	return true
}

// reset empties the state if h is still the recorded window.
func (s *State) reset(h cdpcontrol.WindowHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controlWindow == nil || *s.controlWindow != h {
		return false
	}
	s.controlWindow = nil
	s.lastUsed = ""
	return true
}
