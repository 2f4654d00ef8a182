package server

// CachedServices is the number of per-session auth services held in memory.
func (s *Server) CachedServices() int {
	s.servicesMu.Lock()
	defer s.servicesMu.Unlock()
	return len(s.services)
}
