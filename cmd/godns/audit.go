package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/hoisie/redis"
	"github.com/kenshinx/affixtree"
	_ "github.com/lib/pq"
)

const AUDIT_LOG_OUTPUT_BUFFER = 1024

type AuditLogger interface {
	Run()
	Write(mesg *AuditMesg)
}

type AuditMesg struct {
	RemoteAddr string    `json:"remoteaddr"`
	Network    string    `json:"network"`
	Domain     string    `json:"domain"`
	QType      string    `json:"qtype"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewAuditMessage(remoteAddr string, network string, domain string, qtype string) *AuditMesg {
	return &AuditMesg{
		RemoteAddr: remoteAddr,
		Network:    network,
		Domain:     domain,
		QType:      qtype,
		Timestamp:  time.Now(),
	}
}

func NewAuditLogger(s Settings) (AuditLogger, error) {
	switch s.Audit.Backend {
	case "redis":
		return NewRedisAuditLogger(s.Redis, s.Audit.Expire), nil
	case "postgresql":
		return NewPostgresqlAuditLogger(s.Postgresql, s.Audit.Expire)
	}
	return nil, fmt.Errorf("invalid audit backend %s", s.Audit.Backend)
}

// NetworkClassifier names client networks by the longest configured address
// prefix, e.g. "10.1." = "lab" and "10.1.7." = "lab-printers".
type NetworkClassifier struct {
	prefixes *affixtree.Tree[string]
}

func NewNetworkClassifier(networks map[string]string) (*NetworkClassifier, error) {
	prefixes := affixtree.NewPrefix[string]()
	for prefix, name := range networks {
		if err := prefixes.Insert(prefix, name); err != nil {
			return nil, fmt.Errorf("audit network %q: %w", name, err)
		}
	}
	return &NetworkClassifier{prefixes}, nil
}

// Classify accepts a bare address or host:port. Unknown clients get "".
func (c *NetworkClassifier) Classify(addr string) string {
	if c == nil {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	network, _ := c.prefixes.Find(addr)
	return network
}

type RedisAuditLogger struct {
	backend *redis.Client
	mesgs   chan *AuditMesg
	expire  int64
}

func NewRedisAuditLogger(rs RedisSettings, expire int64) AuditLogger {
	rc := &redis.Client{Addr: rs.Addr(), Db: rs.DB, Password: rs.Password}
	auditLogger := &RedisAuditLogger{
		backend: rc,
		mesgs:   make(chan *AuditMesg, AUDIT_LOG_OUTPUT_BUFFER),
		expire:  expire,
	}
	go auditLogger.Run()
	return auditLogger
}

func auditRedisKey(mesg *AuditMesg) string {
	return fmt.Sprintf("audit-%s:00", mesg.Timestamp.Format("2006-01-02T15"))
}

func (rl *RedisAuditLogger) Run() {
	for mesg := range rl.mesgs {
		jsonMesg, err := json.Marshal(mesg)
		if err != nil {
			logger.Error("Can't write to redis audit log: %v", err)
			continue
		}
		redisKey := auditRedisKey(mesg)
		err = rl.backend.Rpush(redisKey, jsonMesg)
		if err != nil {
			logger.Error("Can't write to redis audit log: %v", err)
			continue
		}
		_, err = rl.backend.Expire(redisKey, rl.expire)
		if err != nil {
			logger.Error("Can't set expiration for redis audit log: %v", err)
			continue
		}
	}
}

func (rl *RedisAuditLogger) Write(mesg *AuditMesg) {
	rl.mesgs <- mesg
}

type PostgresqlAuditLogger struct {
	backend *sql.DB
	mesgs   chan *AuditMesg
	expire  int64
}

func NewPostgresqlAuditLogger(ps PostgresqlSettings, expire int64) (AuditLogger, error) {
	connStr := fmt.Sprintf(`
                host=%s port=%d
                user=%s password=%s
                dbname=%s sslmode=%s
                sslcert=%s sslkey=%s
                sslrootcert=%s
                `,
		ps.Host, ps.Port,
		ps.User, ps.Password,
		ps.DB, ps.Sslmode,
		ps.Sslcert, ps.Sslkey,
		ps.Sslrootcert,
	)
	pc, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("can't connect to audit log postgresql: %w", err)
	}
	_, err = pc.Exec(`
                CREATE TABLE IF NOT EXISTS audit (
                        id BIGSERIAL NOT NULL,
                        remoteaddr TEXT,
                        network TEXT,
                        domain TEXT,
                        qtype TEXT,
                        timestamp TIMESTAMP
                )
        `)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("can't create audit table: %w", err)
	}
	auditLogger := &PostgresqlAuditLogger{
		backend: pc,
		mesgs:   make(chan *AuditMesg, AUDIT_LOG_OUTPUT_BUFFER),
		expire:  expire,
	}
	go auditLogger.Run()
	go auditLogger.Expire()
	return auditLogger, nil
}

func (pl *PostgresqlAuditLogger) Run() {
	for mesg := range pl.mesgs {
		_, err := pl.backend.Exec(`INSERT INTO audit (remoteaddr, network, domain, qtype, timestamp) VALUES ($1, $2, $3, $4, $5)`,
			mesg.RemoteAddr, mesg.Network, mesg.Domain, mesg.QType, mesg.Timestamp,
		)
		if err != nil {
			logger.Error("Can't write to postgresql audit log: %v", err)
			continue
		}
	}
}

func (pl *PostgresqlAuditLogger) Write(mesg *AuditMesg) {
	pl.mesgs <- mesg
}

func (pl *PostgresqlAuditLogger) Expire() {
	if pl.expire <= 0 {
		return
	}
	for {
		expireTime := time.Now().Add(time.Duration(-pl.expire) * time.Second)
		_, err := pl.backend.Exec(`DELETE FROM audit WHERE timestamp < $1`, expireTime)
		if err != nil {
			logger.Error("Can't expire postgresql audit log: %v", err)
		}
		time.Sleep(time.Duration(pl.expire) * time.Second / 2)
	}
}
