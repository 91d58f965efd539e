// Package resolvertest provides an in-process DNS server for tests.
package resolvertest

import (
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/miekg/dns"
)

// Behavior overrides the default answer for a name
type Behavior int

const (
	// Answer replies with the configured records (NOERROR)
	Answer Behavior = iota
	// ServFail replies with SERVFAIL
	ServFail
	// Drop never replies, so the client times out
	Drop
	// Garbage replies with bytes that are not a DNS message
	Garbage
)

// Server is a UDP DNS server answering A and AAAA questions from a fixed
// table. Unknown names get NXDOMAIN.
type Server struct {
	pc        net.PacketConn
	records   map[string][]string
	behaviors map[string]Behavior
	done      chan struct{}
	mu        sync.RWMutex
	queries   atomic.Int64
}

// NewServer starts a server on 127.0.0.1 and registers its shutdown with t.
// Keys of records are host names with or without the trailing dot; values
// are IPv4 or IPv6 literals.
func NewServer(t testing.TB, records map[string][]string) *Server {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	s := &Server{
		pc:        pc,
		records:   make(map[string][]string),
		behaviors: make(map[string]Behavior),
		done:      make(chan struct{}),
	}
	for name, addrs := range records {
		s.records[dns.Fqdn(strings.ToLower(name))] = addrs
	}

	go s.serve()
	t.Cleanup(s.Close)

	return s
}

// Addr returns the host:port the server listens on
func (s *Server) Addr() string {
	return s.pc.LocalAddr().String()
}

// Queries returns how many requests the server has received
func (s *Server) Queries() int64 {
	return s.queries.Load()
}

// SetBehavior changes how the server treats name
func (s *Server) SetBehavior(name string, b Behavior) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.behaviors[dns.Fqdn(strings.ToLower(name))] = b
}

// Close stops the server and waits for its goroutine
func (s *Server) Close() {
	_ = s.pc.Close()
	<-s.done
}

func (s *Server) serve() {
	defer close(s.done)
	buf := make([]byte, 1500)

	for {
		n, clientAddr, err := s.pc.ReadFrom(buf)
		if err != nil {
			return
		}
		s.queries.Add(1)

		req := new(dns.Msg)
		if err := req.Unpack(buf[:n]); err != nil {
			continue
		}

		resp, ok := s.reply(req)
		if !ok {
			continue
		}
		_, _ = s.pc.WriteTo(resp, clientAddr)
	}
}

// reply builds the wire response for req; ok is false when nothing is sent
func (s *Server) reply(req *dns.Msg) (out []byte, ok bool) {
	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.RecursionAvailable = true

	if len(req.Question) == 0 {
		resp.SetRcode(req, dns.RcodeFormatError)
		return pack(resp)
	}

	q := req.Question[0]
	name := strings.ToLower(q.Name)

	s.mu.RLock()
	behavior := s.behaviors[name]
	addrs, known := s.records[name]
	s.mu.RUnlock()

	switch behavior {
	case Drop:
		return nil, false
	case Garbage:
		return []byte{0xde, 0xad}, true
	case ServFail:
		resp.SetRcode(req, dns.RcodeServerFailure)
		return pack(resp)
	}

	if !known {
		resp.SetRcode(req, dns.RcodeNameError)
		return pack(resp)
	}

	for _, addr := range addrs {
		ip := net.ParseIP(addr)
		if ip == nil {
			continue
		}
		hdr := dns.RR_Header{Name: q.Name, Class: dns.ClassINET, Ttl: 300}
		switch {
		case ip.To4() != nil && q.Qtype == dns.TypeA:
			hdr.Rrtype = dns.TypeA
			resp.Answer = append(resp.Answer, &dns.A{Hdr: hdr, A: ip.To4()})
		case ip.To4() == nil && q.Qtype == dns.TypeAAAA:
			hdr.Rrtype = dns.TypeAAAA
			resp.Answer = append(resp.Answer, &dns.AAAA{Hdr: hdr, AAAA: ip})
		}
	}
	return pack(resp)
}

func pack(m *dns.Msg) ([]byte, bool) {
	packed, err := m.Pack()
	if err != nil {
		return nil, false
	}
	return packed, true
}
