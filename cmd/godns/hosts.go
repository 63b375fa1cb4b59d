package main

import (
	"bufio"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hoisie/redis"
	"github.com/kenshinx/affixtree"
)

type Hosts struct {
	fileHosts  *FileHosts
	redisHosts *RedisHosts
}

func NewHosts(hs HostsSettings, rs RedisSettings) Hosts {
	fileHosts := &FileHosts{file: hs.HostsFile, table: newHostTable()}

	var redisHosts *RedisHosts
	if hs.RedisEnable {
		rc := &redis.Client{Addr: rs.Addr(), Db: rs.DB, Password: rs.Password}
		redisHosts = &RedisHosts{redis: rc, key: hs.RedisKey, table: newHostTable()}
	}

	hosts := Hosts{fileHosts, redisHosts}
	hosts.refresh()
	return hosts

}

/*
Match local /etc/hosts file first, remote redis records second
Return list of IPs in array, IPs/TXT in a string, and found/not found on either
th hosts file or redis
*/
func (h *Hosts) Get(domain string, family int) ([]net.IP, string, bool) {

	var sips []string
	var txt string
	var ip net.IP
	var ips []net.IP

	sips, _, ok := h.fileHosts.Get(domain) //hosts files don't have TXT records
	if h.redisHosts != nil {
		if !ok {
			sips, txt, _ = h.redisHosts.Get(domain)
		} else {
			_, txt, _ = h.redisHosts.Get(domain)
		}
	}

	// no IP records or any TXT entry found
	if sips == nil && len(txt) == 0 {
		return nil, "", false
	}

	for _, sip := range sips {
		switch family {
		case _IP4Query:
			ip = net.ParseIP(sip).To4()
		case _IP6Query:
			ip = net.ParseIP(sip).To16()
		default:
			continue
		}
		if ip != nil {
			ips = append(ips, ip)
		}
	}

	return ips, txt, (ips != nil || len(txt) != 0)
}

/*
Update hosts records from /etc/hosts file and redis per minute
*/
func (h *Hosts) refresh() {
	ticker := time.NewTicker(time.Minute)
	go func() {
		for {
			h.fileHosts.Refresh()
			if h.redisHosts != nil {
				h.redisHosts.Refresh()
			}
			<-ticker.C
		}
	}()
}

// hostTable keeps exact names in a map and "*.domain" entries in a suffix
// tree, so the most specific wildcard wins. Tables are rebuilt on refresh.
type hostTable struct {
	exact    map[string]string
	wildcard *affixtree.Tree[string]
}

func newHostTable() *hostTable {
	return &hostTable{
		exact:    make(map[string]string),
		wildcard: affixtree.NewSuffix[string](),
	}
}

// add keeps the first value seen for a name.
func (t *hostTable) add(domain, value string) error {
	if strings.HasPrefix(domain, "*.") {
		return t.wildcard.Insert(domainKey(domain[2:]), value)
	}
	key := domainKey(domain)
	if _, ok := t.exact[key]; ok {
		return affixtree.DuplicateKeyError{Key: key, Value: value}
	}
	t.exact[key] = value
	return nil
}

func (t *hostTable) get(domain string) (string, bool) {
	key := domainKey(domain)
	if v, ok := t.exact[key]; ok {
		return v, true
	}
	return t.wildcard.Find(key)
}

func (t *hostTable) size() int {
	return len(t.exact) + t.wildcard.Len()
}

type RedisHosts struct {
	redis *redis.Client
	key   string
	mu    sync.RWMutex
	table *hostTable
}

func (r *RedisHosts) Get(domain string) ([]string, string, bool) {
	r.mu.RLock()
	entry, ok := r.table.get(domain)
	r.mu.RUnlock()
	if !ok {
		return nil, "", false
	}
	ips, txt := getEntriesFromCache(entry)
	return ips, txt, true
}

func (r *RedisHosts) Refresh() {
	hosts := make(map[string]string)
	err := r.redis.Hgetall(r.key, hosts)
	if err != nil {
		logger.Warn("Update hosts records from redis failed %s", err)
		return
	}

	table := newHostTable()
	for domain, entry := range hosts {
		if err := table.add(domain, entry); err != nil {
			logger.Debug("redis hosts record %s ignored: %s", domain, err)
		}
	}

	r.mu.Lock()
	r.table = table
	r.mu.Unlock()
	logger.Debug("Update hosts records from redis")
}

/*
	"1.1.1.1,2.2.2.2,\"TXT Entry\"" as input returns:
	["1.1.1.1","2.2.2.2"], "TXT Entry"
*/
func getEntriesFromCache(cachestr string) ([]string, string) {

	var ips []string
	var txt string
	values := strings.Split(cachestr, ",")
	for _, ip := range values {
		if len(ip) >= 2 && strings.HasPrefix(ip, "\"") && strings.HasSuffix(ip, "\"") {
			// remove " at beginning and end
			txt = txt + ip[1:len(ip)-1]
		} else {
			ips = append(ips, ip)
		}
	}
	return ips, txt

}

type FileHosts struct {
	file  string
	mu    sync.RWMutex
	table *hostTable
}

func (f *FileHosts) Get(domain string) ([]string, string, bool) {
	f.mu.RLock()
	ip, ok := f.table.get(domain)
	f.mu.RUnlock()
	if !ok {
		return nil, "", false
	}
	return []string{ip}, "", true
}

func (f *FileHosts) Refresh() {
	buf, err := os.Open(f.file)
	if err != nil {
		logger.Warn("Update hosts records from file failed %s", err)
		return
	}
	defer buf.Close()

	table := newHostTable()

	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {

		line := scanner.Text()
		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		sli := strings.Fields(line)
		if len(sli) < 2 {
			continue
		}

		ip := sli[0]
		if !f.isIP(ip) {
			continue
		}

		for _, domain := range sli[1:] {
			if !f.isDomain(domain) {
				continue
			}
			if err := table.add(domain, ip); err != nil {
				logger.Debug("hosts record %s %s ignored: %s", ip, domain, err)
			}
		}
	}

	f.mu.Lock()
	f.table = table
	f.mu.Unlock()
	logger.Debug("update %d hosts records from %s", table.size(), f.file)
}

func (f *FileHosts) isDomain(domain string) bool {
	return isDomain(domain)
}

func (f *FileHosts) isIP(ip string) bool {
	return isIP(ip)
}
