package overlay

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"math/big"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

const quicALPN = "fbagreement/1"

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// devCertificate derives a deterministic self-signed certificate from
// seed, for test and single-operator deployments that don't yet have a
// PKI (spec.md §1 leaves peer identity/transport security to an external
// collaborator; this is the minimal one that satisfies quic-go's TLS
// requirement).
func devCertificate(seed string) (tls.Certificate, *x509.Certificate, error) {
	h := sha256.Sum256([]byte(seed))
	priv := ed25519.NewKeyFromSeed(h[:])
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(10 * 365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(zeroReader{}, &template, &template, priv.Public(), priv)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}, cert, nil
}

// quicStream adapts a quic.Stream to io.ReadWriteCloser without otherwise
// exposing quic-go's flow-control API to Session (spec.md §4.1 "any
// ordered byte stream").
type quicStream struct {
	quic.Stream
}

// Listener accepts inbound QUIC connections; Accept returns each
// connection's stream for the caller to wrap with NewSession as Acceptor.
type Listener struct {
	ql *quic.Listener
}

// Listen binds addr and begins accepting QUIC connections. name seeds the
// listener's certificate.
func Listen(addr, name string) (*Listener, error) {
	cert, _, err := devCertificate(name)
	if err != nil {
		return nil, fmt.Errorf("derive listener certificate: %w", err)
	}
	tlsConf := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{quicALPN},
	}
	ql, err := quic.ListenAddr(addr, tlsConf, nil)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Listener{ql: ql}, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ql.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ql.Close() }

// Accept blocks for the next inbound connection's first stream. Each
// connection is expected to carry exactly one long-lived stream, mirroring
// the original's one-TCP-connection-per-peer model (spec.md §2).
func (l *Listener) Accept(ctx context.Context) (io.ReadWriteCloser, error) {
	conn, err := l.ql.Accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("accept connection: %w", err)
	}
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("accept stream: %w", err)
	}
	return quicStream{stream}, nil
}

// Dial opens a QUIC connection to addr and returns its single stream, for
// NewSession with Initiator. insecure skips certificate verification,
// appropriate only against a known devCertificate peer (tests, local
// clusters); production deployments must supply a real PKI out of band.
func Dial(ctx context.Context, addr string, insecure bool) (io.ReadWriteCloser, error) {
	tlsConf := &tls.Config{
		InsecureSkipVerify: insecure,
		NextProtos:         []string{quicALPN},
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConf, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("open stream to %s: %w", addr, err)
	}
	return quicStream{stream}, nil
}
