package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"
	"time"
)

var ErrEmptyPeerIdentity = errors.New("transport: empty peer identity")

// Handshake completes TLS on conn within timeout and returns the peer
// identity, or "" for plaintext connections and peers without a certificate.
func Handshake(ctx context.Context, conn net.Conn, timeout time.Duration) (string, error) {
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return "", nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return "", err
	}
	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return "", nil
	}
	id := PeerIdentity(state.PeerCertificates[0])
	if id == "" {
		return "", ErrEmptyPeerIdentity
	}
	return id, nil
}

// PeerIdentity prefers CN, then the first URI SAN, then the first DNS SAN.
func PeerIdentity(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	if v := strings.TrimSpace(cert.Subject.CommonName); v != "" {
		return v
	}
	if len(cert.URIs) > 0 {
		if v := strings.TrimSpace(cert.URIs[0].String()); v != "" {
			return v
		}
	}
	if len(cert.DNSNames) > 0 {
		return strings.TrimSpace(cert.DNSNames[0])
	}
	return ""
}
