package server

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"io"
	"math/big"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/boids/internal/config"
	"github.com/zeusync/boids/internal/core/observability/log"
	"github.com/zeusync/boids/pkg/generic"
)

// ALPN is the application protocol negotiated on the frame stream.
const ALPN = "boids-frames"

const (
	quicIdleTimeout = 30 * time.Second
	quicKeepAlive   = 15 * time.Second
	maxHelloLength  = 256
)

var lineBuffers = generic.NewBufferPool()

// QUICConfig is the transport configuration shared by the server and
// clients of the frame stream.
func QUICConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:        quicIdleTimeout,
		MaxIncomingStreams:    16,
		MaxIncomingUniStreams: -1,
		KeepAlivePeriod:       quicKeepAlive,
	}
}

// GenerateSelfSignedTLS creates a throwaway certificate for localhost.
func GenerateSelfSignedTLS() (*tls.Config, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"boids"},
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{certDER}, PrivateKey: privateKey}},
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// LoadTLS reads the configured key pair, or generates a self-signed one when
// none is set.
func LoadTLS(cfg config.QUICConfig) (*tls.Config, error) {
	if cfg.CertFile == "" && cfg.KeyFile == "" {
		return GenerateSelfSignedTLS()
	}
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, fmt.Errorf("%w: cert_file and key_file must be set together", ErrTLSConfig)
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTLSConfig, err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

func (s *Server) startQUIC(ctx context.Context) error {
	tlsConf, err := LoadTLS(s.cfg.QUIC)
	if err != nil {
		return err
	}

	ln, err := quic.ListenAddr(s.cfg.QUIC.Addr, tlsConf, QUICConfig())
	if err != nil {
		s.logger.Error("Failed to create QUIC listener", log.String("addr", s.cfg.QUIC.Addr), log.Error(err))
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	s.quicLn = ln
	s.logger.Info("QUIC listener created", log.String("addr", ln.Addr().String()))

	s.workers.Add(1)
	go s.acceptQUIC(ctx, ln)
	return nil
}

func (s *Server) acceptQUIC(ctx context.Context, ln *quic.Listener) {
	defer s.workers.Done()

	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if s.running.Load() && ctx.Err() == nil {
				s.logger.Error("Failed to accept QUIC connection", log.Error(err))
			}
			return
		}

		s.quicConn.Store(conn, struct{}{})
		s.logger.Info("QUIC connection accepted", log.String("remote_addr", conn.RemoteAddr().String()))

		s.workers.Add(1)
		go s.serveQUICConn(ctx, conn)
	}
}

func (s *Server) serveQUICConn(ctx context.Context, conn *quic.Conn) {
	defer s.workers.Done()
	defer s.quicConn.Delete(conn)

	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			s.logger.Debug("QUIC connection closed",
				log.String("remote_addr", conn.RemoteAddr().String()),
				log.Error(err))
			return
		}

		s.workers.Add(1)
		go s.serveFrameStream(conn, stream)
	}
}

// serveFrameStream waits for the client's hello line, then writes one JSON
// frame per line until either side goes away.
func (s *Server) serveFrameStream(conn *quic.Conn, stream *quic.Stream) {
	defer s.workers.Done()
	defer stream.Close()

	logger := s.logger.With(
		log.String("remote_addr", conn.RemoteAddr().String()),
		log.Int64("stream_id", int64(stream.StreamID())))

	_ = stream.SetReadDeadline(time.Now().Add(quicIdleTimeout))
	hello, err := bufio.NewReaderSize(stream, maxHelloLength).ReadSlice('\n')
	if err != nil {
		logger.Warn("Frame stream closed before hello", log.Error(err))
		stream.CancelRead(0)
		return
	}
	stream.CancelRead(0)

	v := newViewer(uuid.NewString(), "quic", s.cfg.ClientBuffer)
	if !s.hub.add(v) {
		return
	}
	defer s.hub.remove(v)
	logger.Info("Frame stream opened",
		log.String("viewer_id", v.id),
		log.Int("hello_bytes", len(hello)))

	// Nothing is read after the hello, so a vanished peer shows up only
	// through the connection context.
	done := conn.Context().Done()
loop:
	for {
		select {
		case <-done:
			break loop
		case b, ok := <-v.send:
			if !ok {
				break loop
			}
			if s.cfg.WriteTimeout > 0 {
				_ = stream.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			}
			if err = writeLine(stream, b); err != nil {
				break loop
			}
		}
	}
	logger.Info("Frame stream closed",
		log.String("viewer_id", v.id),
		log.Uint64("dropped_frames", v.dropped.Load()))
}

func writeLine(w io.Writer, payload []byte) error {
	buf := lineBuffers.Get()
	defer lineBuffers.Put(buf)

	buf.Grow(len(payload) + 1)
	buf.Write(payload)
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}
