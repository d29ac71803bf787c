// Package dedup implements the admission gate on a Valkey/Redis-compatible
// server. Admission is a single atomic conditional write: SET NX with a
// millisecond TTL equal to the window, so expiry needs no sweeper.
package dedup

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"alarm-triage-agent/internal/domain/port"
)

const keyPrefix = "triage:admission:"

// Config holds connection parameters for the gate backend.
type Config struct {
	Addr         string
	Username     string
	Password     string
	TLS          bool
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c *Config) normalize() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 2 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 500 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 500 * time.Millisecond
	}
}

// ValkeyGate implements port.AdmissionGate. Every call dials a fresh
// connection; the gate sees one write per alarm firing, so pooling buys
// nothing. Backend errors surface to the caller, which fails closed.
type ValkeyGate struct {
	cfg    Config
	logger *zap.Logger
}

// NewValkeyGate creates a gate and pings the backend to fail fast on bad
// credentials or connectivity. A nil logger falls back to a no-op logger.
func NewValkeyGate(cfg Config, logger *zap.Logger) (*ValkeyGate, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	cfg.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &ValkeyGate{cfg: cfg, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := g.ping(ctx); err != nil {
		return nil, fmt.Errorf("valkey ping: %w", err)
	}
	return g, nil
}

// Admit attempts the conditional write for the alarm identity. The stored
// value is the window expiry in RFC 3339, so a rejected caller can report
// when the slot frees up. Exactly one concurrent caller wins.
func (g *ValkeyGate) Admit(ctx context.Context, alarmIdentity string, window time.Duration) (port.Admission, error) {
	if alarmIdentity == "" {
		return port.Admission{}, errors.New("alarm identity is required")
	}
	if window <= 0 {
		return port.Admission{}, errors.New("admission window must be positive")
	}

	key := keyPrefix + alarmIdentity
	expiry := time.Now().Add(window).UTC().Format(time.RFC3339)
	ttlMS := strconv.FormatInt(window.Milliseconds(), 10)

	conn, err := g.connect(ctx)
	if err != nil {
		return port.Admission{}, err
	}
	defer conn.close()

	if err := conn.command("SET", key, expiry, "PX", ttlMS, "NX"); err != nil {
		return port.Admission{}, err
	}
	reply, err := conn.reply()
	if err != nil {
		return port.Admission{}, err
	}

	switch reply.kind {
	case replyStatus:
		g.logger.Debug("alarm admitted",
			zap.String("alarm", alarmIdentity),
			zap.Duration("window", window),
		)
		return port.Admission{Admitted: true}, nil
	case replyNil:
		// Key already held; read the stored expiry for reporting.
		existing, err := g.existingExpiry(conn, key)
		if err != nil {
			g.logger.Warn("could not read existing admission expiry",
				zap.String("alarm", alarmIdentity),
				zap.Error(err),
			)
		}
		return port.Admission{Admitted: false, ExistingExpiry: existing}, nil
	default:
		return port.Admission{}, fmt.Errorf("unexpected SET reply type %q", reply.kind)
	}
}

func (g *ValkeyGate) existingExpiry(conn *gateConn, key string) (time.Time, error) {
	if err := conn.command("GET", key); err != nil {
		return time.Time{}, err
	}
	reply, err := conn.reply()
	if err != nil {
		return time.Time{}, err
	}
	if reply.kind != replyBulk {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, string(reply.data))
}

func (g *ValkeyGate) ping(ctx context.Context) error {
	conn, err := g.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.close()

	if err := conn.command("PING"); err != nil {
		return err
	}
	reply, err := conn.reply()
	if err != nil {
		return err
	}
	if reply.kind != replyStatus || string(reply.data) != "PONG" {
		return fmt.Errorf("unexpected PING reply: %s", reply.data)
	}
	return nil
}

// connect dials and authenticates a fresh connection.
func (g *ValkeyGate) connect(ctx context.Context) (*gateConn, error) {
	dialer := net.Dialer{Timeout: g.cfg.DialTimeout}
	var (
		raw net.Conn
		err error
	)
	if g.cfg.TLS {
		host, _, splitErr := net.SplitHostPort(g.cfg.Addr)
		if splitErr != nil {
			host = g.cfg.Addr
		}
		raw, err = tls.DialWithDialer(&dialer, "tcp", g.cfg.Addr, &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: host,
		})
	} else {
		raw, err = dialer.DialContext(ctx, "tcp", g.cfg.Addr)
	}
	if err != nil {
		return nil, err
	}

	conn := &gateConn{
		raw:          raw,
		r:            bufio.NewReader(raw),
		w:            bufio.NewWriter(raw),
		readTimeout:  g.cfg.ReadTimeout,
		writeTimeout: g.cfg.WriteTimeout,
	}

	if g.cfg.Password != "" {
		args := []string{"AUTH", g.cfg.Password}
		if g.cfg.Username != "" {
			args = []string{"AUTH", g.cfg.Username, g.cfg.Password}
		}
		if err := conn.command(args[0], args[1:]...); err != nil {
			conn.close()
			return nil, err
		}
		reply, err := conn.reply()
		if err != nil {
			conn.close()
			return nil, err
		}
		if reply.kind != replyStatus {
			conn.close()
			return nil, fmt.Errorf("auth failed: %s", reply.data)
		}
	}

	return conn, nil
}

// replyKind enumerates the RESP reply types the gate needs.
type replyKind byte

const (
	replyStatus replyKind = '+'
	replyBulk   replyKind = '$'
	replyInt    replyKind = ':'
	replyNil    replyKind = '_'
)

type respReply struct {
	kind replyKind
	data []byte
}

// gateConn wraps one connection with minimal RESP encoding.
type gateConn struct {
	raw          net.Conn
	r            *bufio.Reader
	w            *bufio.Writer
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *gateConn) close() { _ = c.raw.Close() }

// command writes one RESP array command.
func (c *gateConn) command(name string, args ...string) error {
	if err := c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	fmt.Fprintf(c.w, "*%d\r\n", len(args)+1)
	for _, part := range append([]string{name}, args...) {
		fmt.Fprintf(c.w, "$%d\r\n%s\r\n", len(part), part)
	}
	return c.w.Flush()
}

// reply reads one RESP reply. Server errors come back as Go errors.
func (c *gateConn) reply() (respReply, error) {
	if err := c.raw.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return respReply{}, err
	}
	prefix, err := c.r.ReadByte()
	if err != nil {
		return respReply{}, err
	}

	switch prefix {
	case '+':
		line, err := c.line()
		return respReply{kind: replyStatus, data: line}, err
	case '-':
		line, err := c.line()
		if err != nil {
			return respReply{}, err
		}
		return respReply{}, errors.New(string(line))
	case ':':
		line, err := c.line()
		return respReply{kind: replyInt, data: line}, err
	case '$':
		line, err := c.line()
		if err != nil {
			return respReply{}, err
		}
		size, err := strconv.Atoi(string(line))
		if err != nil {
			return respReply{}, err
		}
		if size < 0 {
			return respReply{kind: replyNil}, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(c.r, buf); err != nil {
			return respReply{}, err
		}
		return respReply{kind: replyBulk, data: buf[:size]}, nil
	default:
		return respReply{}, fmt.Errorf("unexpected RESP prefix %q", prefix)
	}
}

func (c *gateConn) line() ([]byte, error) {
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	n := len(line)
	if n >= 2 && line[n-2] == '\r' {
		return line[:n-2], nil
	}
	return line[:n-1], nil
}

var _ port.AdmissionGate = (*ValkeyGate)(nil)
