package provider

import (
	"context"
	"io"
	"net"
	"net/textproto"
	"strings"
	"sync"
)

// fakeSMTPServer speaks just enough ESMTP for net/smtp over net.Pipe.
type fakeSMTPServer struct {
	authReply string
	mailReply string
	dataReply string
	stall     bool

	wg       sync.WaitGroup
	mu       sync.Mutex
	dials    int
	authLine string
	mailFrom string
	rcptTo   string
	data     string
}

func (s *fakeSMTPServer) DialContext(_ context.Context, _, _ string) (net.Conn, error) {
	client, server := net.Pipe()
	s.mu.Lock()
	s.dials++
	s.mu.Unlock()
	s.wg.Add(1)
	go s.serve(server)
	return client, nil
}

func (s *fakeSMTPServer) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	if s.stall {
		_, _ = io.Copy(io.Discard, conn)
		return
	}

	tp := textproto.NewConn(conn)
	reply := func(lines ...string) bool {
		for _, l := range lines {
			if err := tp.PrintfLine("%s", l); err != nil {
				return false
			}
		}
		return true
	}
	or := func(v, def string) string {
		if v != "" {
			return v
		}
		return def
	}

	if !reply("220 fake.smtp ESMTP ready") {
		return
	}
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch verb {
		case "EHLO":
			reply("250-fake.smtp greets you", "250-AUTH PLAIN LOGIN", "250 8BITMIME")
		case "HELO", "NOOP", "RSET":
			reply("250 Ok")
		case "AUTH":
			s.set(func() { s.authLine = line })
			reply(or(s.authReply, "235 2.7.0 Authentication successful"))
		case "MAIL":
			s.set(func() { s.mailFrom = line })
			reply(or(s.mailReply, "250 2.1.0 Ok"))
		case "RCPT":
			s.set(func() { s.rcptTo = line })
			reply("250 2.1.5 Ok")
		case "DATA":
			reply("354 End data with <CR><LF>.<CR><LF>")
			body, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			s.set(func() { s.data = string(body) })
			reply(or(s.dataReply, "250 2.0.0 Ok: queued"))
		case "QUIT":
			reply("221 2.0.0 Bye")
			return
		default:
			reply("502 5.5.2 Command not recognized")
		}
	}
}

func (s *fakeSMTPServer) set(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// wait blocks until every session has ended.
func (s *fakeSMTPServer) wait() {
	s.wg.Wait()
}
