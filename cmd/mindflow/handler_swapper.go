package main

import (
	"net/http"
	"sync"
)

// handlerSwapper lets SIGHUP reloads replace the panel handler while the
// listener keeps serving.
type handlerSwapper struct {
	mu      sync.RWMutex
	handler http.Handler
	swaps   int
}

func newHandlerSwapper(h http.Handler) *handlerSwapper {
	return &handlerSwapper{handler: h}
}

func (s *handlerSwapper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	h := s.handler
	s.mu.RUnlock()
	h.ServeHTTP(w, r)
}

// Swap installs h for every request that arrives after it returns.
func (s *handlerSwapper) Swap(h http.Handler) {
	s.mu.Lock()
	s.handler = h
	s.swaps++
	s.mu.Unlock()
}

// Swaps reports how many times the handler was replaced.
func (s *handlerSwapper) Swaps() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.swaps
}
