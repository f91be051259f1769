package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/ackwire/internal/testutil/testlog"
	"github.com/danmuck/ackwire/internal/testutil/tlstest"
)

func TestValidateClientProductionRequiresTLSMTLS(t *testing.T) {
	testlog.Start(t)
	s := Security{Mode: SecurityModeProduction}
	if err := s.ValidateClient(); !errors.Is(err, ErrTLSRequired) {
		t.Fatalf("expected ErrTLSRequired, got %v", err)
	}

	s.TLS.Enabled = true
	if err := s.ValidateClient(); !errors.Is(err, ErrMTLSRequired) {
		t.Fatalf("expected ErrMTLSRequired, got %v", err)
	}

	s.TLS.Mutual = true
	s.TLS.InsecureSkipVerify = true
	if err := s.ValidateClient(); !errors.Is(err, ErrTLSInsecureSkipNotAllow) {
		t.Fatalf("expected ErrTLSInsecureSkipNotAllow, got %v", err)
	}
}

func TestValidateClientMutualRequiresCertKeyCA(t *testing.T) {
	testlog.Start(t)
	s := Security{TLS: TLSConfig{Enabled: true, Mutual: true}}
	if err := s.ValidateClient(); !errors.Is(err, ErrTLSCAFileRequired) {
		t.Fatalf("expected ErrTLSCAFileRequired, got %v", err)
	}

	s.TLS.CAFile = "/tmp/ca.pem"
	if err := s.ValidateClient(); !errors.Is(err, ErrTLSCertFileRequired) {
		t.Fatalf("expected ErrTLSCertFileRequired, got %v", err)
	}

	s.TLS.CertFile = "/tmp/client.pem"
	if err := s.ValidateClient(); !errors.Is(err, ErrTLSKeyFileRequired) {
		t.Fatalf("expected ErrTLSKeyFileRequired, got %v", err)
	}

	s.TLS.KeyFile = "/tmp/client.key"
	if err := s.ValidateClient(); err != nil {
		t.Fatalf("expected valid transport config, got %v", err)
	}
}

func TestValidateServer(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		sec     Security
		wantErr error
	}{
		{name: "development plaintext", sec: Security{}, wantErr: nil},
		{name: "unknown mode", sec: Security{Mode: "staging"}, wantErr: ErrInvalidSecurityMode},
		{name: "production plaintext", sec: Security{Mode: "Production"}, wantErr: ErrTLSRequired},
		{name: "production one-way", sec: Security{Mode: SecurityModeProduction, TLS: TLSConfig{Enabled: true}}, wantErr: ErrMTLSRequired},
		{name: "mutual without tls", sec: Security{TLS: TLSConfig{Mutual: true}}, wantErr: ErrTLSRequired},
		{name: "tls without cert", sec: Security{TLS: TLSConfig{Enabled: true}}, wantErr: ErrTLSCertFileRequired},
		{name: "tls without key", sec: Security{TLS: TLSConfig{Enabled: true, CertFile: "c"}}, wantErr: ErrTLSKeyFileRequired},
		{name: "mutual without ca", sec: Security{TLS: TLSConfig{Enabled: true, Mutual: true, CertFile: "c", KeyFile: "k"}}, wantErr: ErrTLSCAFileRequired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.sec.ValidateServer(); !errors.Is(err, tc.wantErr) {
				t.Fatalf("got=%v want=%v", err, tc.wantErr)
			}
		})
	}
}

func TestDisabledTLSReturnsNil(t *testing.T) {
	testlog.Start(t)
	srv, err := Security{}.ServerTLS()
	if err != nil || srv != nil {
		t.Fatalf("server got=%v err=%v", srv, err)
	}
	cli, err := Security{}.ClientTLS()
	if err != nil || cli != nil {
		t.Fatalf("client got=%v err=%v", cli, err)
	}
}

func TestMutualTLSHandshake(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	ca := tlstest.NewAuthority(t, dir, "ackwire-test-ca")
	srvCert, srvKey := ca.IssueServerCert(t, dir, "ackd", []string{"localhost"}, []net.IP{net.ParseIP("127.0.0.1")})
	cliCert, cliKey := ca.IssueClientCert(t, dir, "ackctl")

	serverCfg, err := Security{
		Mode: SecurityModeProduction,
		TLS:  TLSConfig{Enabled: true, Mutual: true, CertFile: srvCert, KeyFile: srvKey, CAFile: ca.CAFile()},
	}.ServerTLS()
	if err != nil {
		t.Fatalf("server tls: %v", err)
	}
	clientCfg, err := Security{
		Mode: SecurityModeProduction,
		TLS:  TLSConfig{Enabled: true, Mutual: true, CertFile: cliCert, KeyFile: cliKey, CAFile: ca.CAFile(), ServerName: "localhost"},
	}.ClientTLS()
	if err != nil {
		t.Fatalf("client tls: %v", err)
	}

	ln, err := tls.Listen("tcp", "127.0.0.1:0", serverCfg)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			accepted <- err
			return
		}
		defer conn.Close()
		accepted <- conn.(*tls.Conn).Handshake()
	}()

	conn, err := tls.Dial("tcp", ln.Addr().String(), clientCfg)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := <-accepted; err != nil {
		t.Fatalf("server handshake: %v", err)
	}
	if got := conn.ConnectionState().PeerCertificates[0].Subject.CommonName; got != "ackd" {
		t.Fatalf("peer got=%s want=ackd", got)
	}
}

func TestPeerIdentityPreference(t *testing.T) {
	testlog.Start(t)
	if got := PeerIdentity(nil); got != "" {
		t.Fatalf("nil cert got=%q", got)
	}
	cert := &x509.Certificate{DNSNames: []string{"edge.local"}}
	if got := PeerIdentity(cert); got != "edge.local" {
		t.Fatalf("dns got=%q", got)
	}
	cert.Subject.CommonName = "ackctl"
	if got := PeerIdentity(cert); got != "ackctl" {
		t.Fatalf("cn got=%q", got)
	}
}

func TestHandshakePlaintextIsAnonymous(t *testing.T) {
	testlog.Start(t)
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	id, err := Handshake(context.Background(), a, time.Second)
	if err != nil || id != "" {
		t.Fatalf("plaintext got id=%q err=%v", id, err)
	}
}
