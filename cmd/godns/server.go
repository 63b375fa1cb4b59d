package main

import (
	"net"
	"strconv"
	"time"

	"github.com/miekg/dns"
)

// Server runs one UDP and one TCP listener on the same address.
type Server struct {
	addr    string
	servers []*dns.Server
}

func NewServer(ss DNSServerSettings, h *GODNSHandler, timeout time.Duration) *Server {
	s := &Server{addr: net.JoinHostPort(ss.Host, strconv.Itoa(ss.Port))}

	for network, serve := range map[string]dns.HandlerFunc{"udp": h.DoUDP, "tcp": h.DoTCP} {
		mux := dns.NewServeMux()
		mux.HandleFunc(".", serve)

		ds := &dns.Server{
			Addr:         s.addr,
			Net:          network,
			Handler:      mux,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		}
		if network == "udp" {
			ds.UDPSize = dns.MaxMsgSize
		}
		s.servers = append(s.servers, ds)
	}
	return s
}

func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) Run() {
	for _, ds := range s.servers {
		go func(ds *dns.Server) {
			logger.Info("Start %s listener on %s", ds.Net, s.addr)
			if err := ds.ListenAndServe(); err != nil {
				logger.Error("Start %s listener on %s failed:%s", ds.Net, s.addr, err.Error())
			}
		}(ds)
	}
}

// Shutdown stops the listeners and waits for in-flight queries.
func (s *Server) Shutdown() {
	for _, ds := range s.servers {
		if err := ds.Shutdown(); err != nil {
			logger.Warn("Stop %s listener on %s: %s", ds.Net, s.addr, err)
		}
	}
}
