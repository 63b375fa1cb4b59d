package main

import (
	"crypto/md5"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/hoisie/redis"
	"github.com/kenshinx/affixtree"
	"github.com/miekg/dns"
)

var ErrCacheFull = errors.New("cache is full")

// CacheMiss is returned by Get when nothing usable is stored under Key.
type CacheMiss struct {
	Key     string
	Expired bool
}

func (e CacheMiss) Error() string {
	if e.Expired {
		return e.Key + " expired"
	}
	return e.Key + " not found"
}

type SerializerError struct {
	err error
}

func (e SerializerError) Error() string {
	return fmt.Sprintf("Serializer error: got %v", e.err)
}

func (e SerializerError) Unwrap() error {
	return e.err
}

type Cache interface {
	Get(key string) (*dns.Msg, error)
	Set(key string, msg *dns.Msg) error
	Exists(key string) bool
	Remove(key string) error
	Full() bool
}

// ExpireRules picks how long an answer is cached from the longest matching
// domain suffix of its question, e.g. "cdn.example.com" = 30. A rule of 0
// keeps the domain out of the cache.
type ExpireRules struct {
	fallback time.Duration
	domains  *affixtree.Tree[time.Duration]
}

func NewExpireRules(fallback int, rules map[string]int) (*ExpireRules, error) {
	domains := affixtree.NewSuffix[time.Duration]()
	for domain, seconds := range rules {
		if seconds < 0 {
			return nil, fmt.Errorf("cache rule %s: negative expire %d", domain, seconds)
		}
		if err := domains.Insert(domainKey(domain), time.Duration(seconds)*time.Second); err != nil {
			return nil, fmt.Errorf("cache rule %s: %w", domain, err)
		}
	}
	return &ExpireRules{time.Duration(fallback) * time.Second, domains}, nil
}

// For returns the lifetime for msg; nil messages (negative answers) use the
// fallback.
func (e *ExpireRules) For(msg *dns.Msg) time.Duration {
	if msg == nil || len(msg.Question) == 0 {
		return e.fallback
	}
	if d, ok := e.domains.Find(domainKey(msg.Question[0].Name)); ok {
		return d
	}
	return e.fallback
}

func NewCache(cs CacheSettings, ms MemcacheSettings, rs RedisSettings) (Cache, error) {
	rules, err := NewExpireRules(cs.Expire, cs.Rules)
	if err != nil {
		return nil, err
	}

	switch cs.Backend {
	case "memory":
		return NewMemoryCache(rules, cs.Maxcount), nil
	case "memcache":
		return &MemcachedCache{memcache.New(ms.Servers...), rules}, nil
	case "redis":
		rc := &redis.Client{Addr: rs.Addr(), Db: rs.DB, Password: rs.Password}
		return &RedisCache{rc, rules}, nil
	}
	return nil, fmt.Errorf("invalid cache backend %s", cs.Backend)
}

type memoryEntry struct {
	msg    *dns.Msg
	expire time.Time
}

type MemoryCache struct {
	mu       sync.RWMutex
	entries  map[string]memoryEntry
	maxcount int // 0 means unbounded
	rules    *ExpireRules
}

func NewMemoryCache(rules *ExpireRules, maxcount int) *MemoryCache {
	return &MemoryCache{
		entries:  make(map[string]memoryEntry),
		maxcount: maxcount,
		rules:    rules,
	}
}

func (c *MemoryCache) Get(key string) (*dns.Msg, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	switch {
	case !ok:
		return nil, CacheMiss{Key: key}
	case time.Now().After(entry.expire):
		c.Remove(key)
		return nil, CacheMiss{Key: key, Expired: true}
	}
	return entry.msg, nil
}

func (c *MemoryCache) Set(key string, msg *dns.Msg) error {
	ttl := c.rules.For(msg)
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok && c.full() {
		return ErrCacheFull
	}
	c.entries[key] = memoryEntry{msg, time.Now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Remove(key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Exists(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

func (c *MemoryCache) Full() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.full()
}

func (c *MemoryCache) full() bool {
	return c.maxcount > 0 && len(c.entries) >= c.maxcount
}

// MemcachedCache never reports full, memcached evicts on its own.
type MemcachedCache struct {
	client *memcache.Client
	rules  *ExpireRules
}

func (m *MemcachedCache) Get(key string) (*dns.Msg, error) {
	item, err := m.client.Get(key)
	if err != nil {
		return nil, CacheMiss{Key: key}
	}
	return unpackMsg(item.Value)
}

func (m *MemcachedCache) Set(key string, msg *dns.Msg) error {
	ttl := m.rules.For(msg)
	if ttl <= 0 {
		return nil
	}
	val, err := packMsg(msg)
	if err != nil {
		return err
	}
	return m.client.Set(&memcache.Item{Key: key, Value: val, Expiration: int32(ttl / time.Second)})
}

func (m *MemcachedCache) Exists(key string) bool {
	_, err := m.client.Get(key)
	return err == nil
}

func (m *MemcachedCache) Remove(key string) error {
	if err := m.client.Delete(key); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return err
	}
	return nil
}

func (m *MemcachedCache) Full() bool { return false }

type RedisCache struct {
	client *redis.Client
	rules  *ExpireRules
}

func (r *RedisCache) Get(key string) (*dns.Msg, error) {
	val, err := r.client.Get(key)
	if err != nil || val == nil {
		return nil, CacheMiss{Key: key}
	}
	return unpackMsg(val)
}

func (r *RedisCache) Set(key string, msg *dns.Msg) error {
	ttl := r.rules.For(msg)
	if ttl <= 0 {
		return nil
	}
	val, err := packMsg(msg)
	if err != nil {
		return err
	}
	return r.client.Setex(key, int64(ttl/time.Second), val)
}

func (r *RedisCache) Exists(key string) bool {
	ok, err := r.client.Exists(key)
	return err == nil && ok
}

func (r *RedisCache) Remove(key string) error {
	_, err := r.client.Del(key)
	return err
}

func (r *RedisCache) Full() bool { return false }

// negative cache entries are stored as "nil"
var nilMsg = []byte("nil")

func packMsg(msg *dns.Msg) ([]byte, error) {
	if msg == nil {
		return nilMsg, nil
	}
	val, err := msg.Pack()
	if err != nil {
		return nil, SerializerError{err}
	}
	return val, nil
}

func unpackMsg(val []byte) (*dns.Msg, error) {
	if string(val) == string(nilMsg) {
		return nil, nil
	}
	msg := new(dns.Msg)
	if err := msg.Unpack(val); err != nil {
		return nil, SerializerError{err}
	}
	return msg, nil
}

func KeyGen(q Question) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(q.String())))
}
