package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/kenshinx/affixtree"
	"github.com/miekg/dns"
)

type ResolvError struct {
	qname       string
	nameservers []string
}

func (e ResolvError) Error() string {
	errmsg := fmt.Sprintf("%s resolv failed on %s", e.qname, strings.Join(e.nameservers, "; "))
	return errmsg
}

type Resolver struct {
	config        *dns.ClientConfig
	domain_server *affixtree.Tree[string]
}

func NewResolver(c ResolvSettings) (*Resolver, error) {
	clientConfig, err := dns.ClientConfigFromFile(c.ResolvFile)
	if err != nil {
		return nil, fmt.Errorf("%s is not a valid resolv.conf file: %w", c.ResolvFile, err)
	}
	if c.Timeout > 0 {
		clientConfig.Timeout = c.Timeout
	}

	r := &Resolver{clientConfig, affixtree.NewSuffix[string]()}

	if len(c.DomainServerFile) > 0 {
		if err := r.ReadDomainServerFile(c.DomainServerFile); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ReadDomainServerFile loads dnsmasq style rules:
//
//	server=/google.com/8.8.8.8
//	server=/corp.example.com/10.0.0.53#5353
func (r *Resolver) ReadDomainServerFile(file string) error {
	buf, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("can't open %s: %w", file, err)
	}
	defer buf.Close()

	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if !strings.HasPrefix(line, "server") {
			continue
		}

		sli := strings.Split(line, "=")
		if len(sli) != 2 {
			continue
		}

		tokens := strings.Split(strings.TrimSpace(sli[1]), "/")
		if len(tokens) != 3 {
			continue
		}
		domain := tokens[1]
		nameserver, ok := parseNameserver(tokens[2])
		if !isDomain(domain) || !ok {
			logger.Debug("skip invalid domain server rule: %s", line)
			continue
		}
		if err := r.domain_server.Insert(domainKey(domain), nameserver); err != nil {
			logger.Warn("domain server rule %s ignored: %s", line, err)
		}
	}
	logger.Debug("load %d domain server rules from %s", r.domain_server.Len(), file)
	return scanner.Err()
}

// parseNameserver accepts "ip" or dnsmasq's "ip#port" and returns host:port.
func parseNameserver(s string) (string, bool) {
	ip, port := s, "53"
	if i := strings.IndexByte(s, '#'); i >= 0 {
		ip, port = s[:i], s[i+1:]
	}
	if !isIP(ip) || port == "" {
		return "", false
	}
	return net.JoinHostPort(ip, port), true
}

func (r *Resolver) Lookup(net string, req *dns.Msg) (message *dns.Msg, err error) {
	c := &dns.Client{
		Net:          net,
		ReadTimeout:  r.Timeout(),
		WriteTimeout: r.Timeout(),
	}

	qname := req.Question[0].Name
	nameservers := r.Nameservers(qname)
	for _, nameserver := range nameservers {
		r, rtt, err := c.Exchange(req, nameserver)
		if err != nil {
			logger.Debug("%s socket error on %s: %s", qname, nameserver, err)
			continue
		}
		if r != nil && r.Rcode != dns.RcodeSuccess {
			logger.Debug("%s failed to get an valid answer on %s", qname, nameserver)
			continue
		}
		logger.Debug("%s resolv on %s rtt: %v", UnFqdn(qname), nameserver, rtt)
		return r, nil
	}
	return nil, ResolvError{qname, nameservers}
}

// Nameservers returns the upstream of the longest matching domain rule
// followed by the resolv.conf servers.
func (r *Resolver) Nameservers(qname string) []string {
	ns := []string{}
	if v, found := r.domain_server.Find(domainKey(qname)); found {
		logger.Debug("found upstream: %v", v)
		ns = append(ns, v)
	}

	for _, server := range r.config.Servers {
		nameserver := net.JoinHostPort(server, r.config.Port)
		ns = append(ns, nameserver)
	}
	return ns
}

func (r *Resolver) Timeout() time.Duration {
	return time.Duration(r.config.Timeout) * time.Second
}
