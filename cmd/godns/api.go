package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// APIServer exposes read-only routing decisions over HTTP.
type APIServer struct {
	handler *GODNSHandler
	server  *http.Server
}

func NewAPIServer(addr string, h *GODNSHandler) *APIServer {
	s := &APIServer{handler: h}

	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("api request: %s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	})

	r.HandleFunc("/upstream/{domain}", s.upstream).Methods("GET")
	r.HandleFunc("/hosts/{domain}", s.hosts).Methods("GET")
	r.HandleFunc("/network/{addr}", s.network).Methods("GET")

	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *APIServer) Run() {
	go func() {
		logger.Info("Start api listener on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Start api listener on %s failed:%s", s.server.Addr, err.Error())
		}
	}()
}

func (s *APIServer) Shutdown(ctx context.Context) {
	if err := s.server.Shutdown(ctx); err != nil {
		logger.Warn("Stop api listener on %s: %s", s.server.Addr, err)
	}
}

func (s *APIServer) upstream(w http.ResponseWriter, r *http.Request) {
	domain := mux.Vars(r)["domain"]
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"domain":      domain,
		"nameservers": s.handler.resolver.Nameservers(domain),
	})
}

func (s *APIServer) hosts(w http.ResponseWriter, r *http.Request) {
	domain := mux.Vars(r)["domain"]
	if s.handler.hosts == nil {
		http.Error(w, "hosts disabled", http.StatusNotFound)
		return
	}

	family := _IP4Query
	if r.URL.Query().Get("family") == "6" {
		family = _IP6Query
	}

	ips, txt, ok := s.handler.hosts.Get(domain, family)
	if !ok {
		http.Error(w, domain+" not found", http.StatusNotFound)
		return
	}

	sips := make([]string, 0, len(ips))
	for _, ip := range ips {
		sips = append(sips, ip.String())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"domain": domain,
		"ips":    sips,
		"txt":    txt,
	})
}

func (s *APIServer) network(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"addr":    addr,
		"network": s.handler.networks.Classify(addr),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("api response encode failed: %s", err)
	}
}
