// Package mcpquic carries MCP sessions over QUIC streams. Each connection
// negotiates the MCP ALPN protocol, opens one bidirectional stream, and
// exchanges a four-byte preamble before the JSON-RPC traffic starts.
package mcpquic

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

// Wire identity. The magic bytes let the server reject stray non-MCP
// traffic before any JSON-RPC parsing happens.
const (
	ALPNProtocolMCP = "mcp-quic-v1"
	MagicBytesMCP   = "MCP1"
	MaxMessageSize  = 10 * 1024 * 1024
)

// Connection timing. The keepalive must stay well under the idle timeout.
const (
	DefaultIdleTimeout = 5 * time.Minute
	DefaultKeepAlive   = 15 * time.Second
)

// Application-level close codes.
const (
	ConnErrorNoError           quic.ApplicationErrorCode = 0x00
	ConnErrorInternal          quic.ApplicationErrorCode = 0x01
	ConnErrorUnsupportedALPN   quic.ApplicationErrorCode = 0x02
	ConnErrorProtocolViolation quic.ApplicationErrorCode = 0x03
)

// StreamErrorProtocolConfusion resets a stream that opened with the wrong
// preamble.
const StreamErrorProtocolConfusion quic.StreamErrorCode = 0x10

var (
	ErrInvalidMagicBytes = errors.New("mcpquic: invalid magic bytes")
	ErrUnsupportedALPN   = errors.New("mcpquic: unsupported ALPN protocol")
	ErrConnectionClosed  = errors.New("mcpquic: connection closed")
)

// ConnectionError describes a connection-level failure with its close code.
type ConnectionError struct {
	RemoteAddr string
	Code       quic.ApplicationErrorCode
	Err        error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcpquic: connection %s closed (code 0x%02x): %v", e.RemoteAddr, uint64(e.Code), e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SendMagicBytes writes the protocol preamble on a fresh stream.
func SendMagicBytes(w io.Writer) error {
	_, err := io.WriteString(w, MagicBytesMCP)
	return err
}

// ValidateMagicBytes reads and checks the protocol preamble.
func ValidateMagicBytes(r io.Reader) error {
	buf := make([]byte, len(MagicBytesMCP))
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("mcpquic: read magic bytes: %w", err)
	}
	if string(buf) != MagicBytesMCP {
		return fmt.Errorf("%w: got %q", ErrInvalidMagicBytes, buf)
	}
	return nil
}

// ProductionQUICConfig returns the QUIC tuning used on both ends.
func ProductionQUICConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  DefaultIdleTimeout,
		KeepAlivePeriod: DefaultKeepAlive,
		Allow0RTT:       false,
	}
}

// ServerTLSConfig loads a certificate pair for the QUIC listener.
func ServerTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("mcpquic: load key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPNProtocolMCP},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// SelfSignedTLSConfig generates an in-memory certificate for development
// and single-host deployments. Clients must skip verification.
func SelfSignedTLSConfig() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("mcpquic: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("mcpquic: serial number: %w", err)
	}

	tmpl := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "mcpquic"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("mcpquic: create certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		NextProtos:   []string{ALPNProtocolMCP},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// ClientTLSConfig returns the dialer TLS config. insecure skips server
// certificate verification, for servers running on self-signed certs.
func ClientTLSConfig(insecure bool) *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: insecure,
		NextProtos:         []string{ALPNProtocolMCP},
		MinVersion:         tls.VersionTLS13,
	}
}

// H3TLSConfig derives an HTTP/3 config from an MCP one, leaving the base
// untouched.
func H3TLSConfig(base *tls.Config) *tls.Config {
	out := base.Clone()
	out.NextProtos = []string{"h3"}
	return out
}
