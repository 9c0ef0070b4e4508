package memory

import "replay-proxy/internal/domain"

// CaptureRepository

func (s *Store) RecordingState() (bool, int) {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	return s.recording, s.currentCapture
}

// StartCapture resets the buffer and returns the new capture number.
func (s *Store) StartCapture() int {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	s.currentCapture++
	s.recording = true
	s.captured = make([]domain.ScenarioExchange, 0, 32)
	return s.currentCapture
}

func (s *Store) AppendCapture(ex domain.ScenarioExchange) bool {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	if !s.recording {
		return false
	}
	s.captured = append(s.captured, ex)
	return true
}

// StopCapture ends the capture and hands over the buffered exchanges.
func (s *Store) StopCapture() []domain.ScenarioExchange {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	out := s.captured
	s.captured = nil
	s.recording = false
	return out
}
