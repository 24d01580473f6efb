package main

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorcon/rcon"
)

// commandExecutor runs one console command and returns its text response.
type commandExecutor interface {
	Execute(cmd string) (string, error)
}

// RCONPool holds one mutex-protected RCON connection per server and redials on failure.
// A server's log source and messenger share the same pool.
type RCONPool struct {
	addr     string
	password string
	timeout  time.Duration
	mu       sync.Mutex
	conn     *rcon.Conn
}

func NewRCONPool(host, port, password string, timeout time.Duration) *RCONPool {
	return &RCONPool{
		addr:     net.JoinHostPort(host, port),
		password: password,
		timeout:  timeout,
	}
}

func (p *RCONPool) Addr() string { return p.addr }

// Execute runs cmd, redialing once if the cached connection has gone stale.
func (p *RCONPool) Execute(cmd string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	resp, err := p.execute(cmd)
	if err == nil {
		return resp, nil
	}
	p.drop()

	resp, err = p.execute(cmd)
	if err != nil {
		p.drop()
		return "", fmt.Errorf("rcon %s: %w", p.addr, err)
	}
	return resp, nil
}

func (p *RCONPool) execute(cmd string) (string, error) {
	if p.conn == nil {
		opts := []rcon.Option{rcon.SetMaxCommandLen(4096)}
		if p.timeout > 0 {
			opts = append(opts, rcon.SetDialTimeout(p.timeout), rcon.SetDeadline(p.timeout))
		}
		conn, err := rcon.Dial(p.addr, p.password, opts...)
		if err != nil {
			return "", err
		}
		p.conn = conn
	}
	return p.conn.Execute(cmd)
}

func (p *RCONPool) drop() {
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

func (p *RCONPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
