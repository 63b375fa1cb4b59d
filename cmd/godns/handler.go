package main

import (
	"net"

	"github.com/miekg/dns"
)

const (
	notIPQuery = 0
	_IP4Query  = 4
	_IP6Query  = 6
)

type Question struct {
	qname  string
	qtype  string
	qclass string
}

func (q *Question) String() string {
	return q.qname + " " + q.qclass + " " + q.qtype
}

type GODNSHandler struct {
	resolver *Resolver
	cache    Cache
	hosts    *Hosts
	hostsTTL uint32
	auditor  AuditLogger
	networks *NetworkClassifier
}

func NewHandler(s Settings) (*GODNSHandler, error) {
	resolver, err := NewResolver(s.ResolvConfig)
	if err != nil {
		return nil, err
	}

	cache, err := NewCache(s.Cache, s.Memcache, s.Redis)
	if err != nil {
		return nil, err
	}

	h := &GODNSHandler{resolver: resolver, cache: cache}

	if s.Hosts.Enable {
		hosts := NewHosts(s.Hosts, s.Redis)
		h.hosts = &hosts
		h.hostsTTL = s.Hosts.TTL
	}

	if s.Audit.Enable {
		if h.auditor, err = NewAuditLogger(s); err != nil {
			return nil, err
		}
		if h.networks, err = NewNetworkClassifier(s.Audit.Networks); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *GODNSHandler) do(Net string, w dns.ResponseWriter, req *dns.Msg) {
	if len(req.Question) == 0 {
		dns.HandleFailed(w, req)
		return
	}

	q := req.Question[0]
	Q := Question{UnFqdn(q.Name), dns.TypeToString[q.Qtype], dns.ClassToString[q.Qclass]}

	var remote net.IP
	if ip, ok := w.RemoteAddr().(*net.UDPAddr); ok {
		remote = ip.IP
	} else if ip, ok := w.RemoteAddr().(*net.TCPAddr); ok {
		remote = ip.IP
	}
	logger.Info("%s lookup %s", remote, Q.String())

	h.audit(w.RemoteAddr(), Q)

	IPQuery := h.isIPQuery(q)

	if h.hosts != nil && (IPQuery > 0 || q.Qtype == dns.TypeTXT) {
		if m := h.answerFromHosts(req, IPQuery); m != nil {
			logger.Debug("%s found in hosts file", Q.qname)
			w.WriteMsg(m)
			return
		}
		logger.Debug("%s didn't found in hosts file", Q.qname)
	}

	key := KeyGen(Q)
	// Only query cache when qtype is A or AAAA and qclass is IN
	if IPQuery > 0 {
		mesg, err := h.cache.Get(key)
		if err != nil {
			logger.Debug("%s didn't hit cache: %s", Q.String(), err)
		} else if mesg != nil {
			logger.Debug("%s hit cache", Q.String())
			m := mesg.Copy()
			m.Id = req.Id
			w.WriteMsg(m)
			return
		}
	}

	mesg, err := h.resolver.Lookup(Net, req)
	if err != nil {
		logger.Warn("Resolve query error %s", err)
		dns.HandleFailed(w, req)
		return
	}

	w.WriteMsg(mesg)

	if IPQuery > 0 && len(mesg.Answer) > 0 {
		if err := h.cache.Set(key, mesg); err != nil {
			logger.Warn("Set %s cache failed: %s", Q.String(), err.Error())
			return
		}
		logger.Debug("Insert %s into cache", Q.String())
	}
}

func (h *GODNSHandler) answerFromHosts(req *dns.Msg, IPQuery int) *dns.Msg {
	q := req.Question[0]
	ips, txt, ok := h.hosts.Get(q.Name, IPQuery)
	if !ok {
		return nil
	}

	m := new(dns.Msg)
	m.SetReply(req)

	for _, ip := range ips {
		rr_header := dns.RR_Header{
			Name:   q.Name,
			Class:  dns.ClassINET,
			Ttl:    h.hostsTTL,
			Rrtype: dns.TypeA,
		}
		switch IPQuery {
		case _IP4Query:
			m.Answer = append(m.Answer, &dns.A{Hdr: rr_header, A: ip})
		case _IP6Query:
			rr_header.Rrtype = dns.TypeAAAA
			m.Answer = append(m.Answer, &dns.AAAA{Hdr: rr_header, AAAA: ip})
		}
	}

	if q.Qtype == dns.TypeTXT && txt != "" {
		rr_header := dns.RR_Header{
			Name:   q.Name,
			Class:  dns.ClassINET,
			Ttl:    h.hostsTTL,
			Rrtype: dns.TypeTXT,
		}
		m.Answer = append(m.Answer, &dns.TXT{Hdr: rr_header, Txt: []string{txt}})
	}

	if len(m.Answer) == 0 {
		return nil
	}
	return m
}

func (h *GODNSHandler) audit(remote net.Addr, Q Question) {
	if h.auditor == nil {
		return
	}
	addr := ""
	if remote != nil {
		addr = remote.String()
	}
	h.auditor.Write(NewAuditMessage(addr, h.networks.Classify(addr), Q.qname, Q.qtype))
}

func (h *GODNSHandler) DoTCP(w dns.ResponseWriter, req *dns.Msg) {
	h.do("tcp", w, req)
}

func (h *GODNSHandler) DoUDP(w dns.ResponseWriter, req *dns.Msg) {
	h.do("udp", w, req)
}

func (h *GODNSHandler) isIPQuery(q dns.Question) int {
	if q.Qclass != dns.ClassINET {
		return notIPQuery
	}

	switch q.Qtype {
	case dns.TypeA:
		return _IP4Query
	case dns.TypeAAAA:
		return _IP6Query
	default:
		return notIPQuery
	}
}
