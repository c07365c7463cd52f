package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// KeyPair is a certificate and private key loaded from disk.
type KeyPair struct {
	certFile string
	keyFile  string
	logger   *slog.Logger

	cert atomic.Pointer[tls.Certificate]
}

// LoadKeyPair loads certFile and keyFile. A nil logger uses slog.Default.
func LoadKeyPair(certFile, keyFile string, logger *slog.Logger) (*KeyPair, error) {
	if logger == nil {
		logger = slog.Default()
	}
	kp := &KeyPair{certFile: certFile, keyFile: keyFile, logger: logger}
	if err := kp.Reload(); err != nil {
		return nil, err
	}
	return kp, nil
}

// Files returns the certificate and key paths.
func (kp *KeyPair) Files() []string {
	return []string{kp.certFile, kp.keyFile}
}

// Reload re-reads both files. On error the previous certificate stays in
// use.
func (kp *KeyPair) Reload() error {
	cert, err := tls.LoadX509KeyPair(kp.certFile, kp.keyFile)
	if err != nil {
		return fmt.Errorf("tlsroots: load key pair: %w", err)
	}
	if cert.Leaf == nil && len(cert.Certificate) > 0 {
		if leaf, err := x509.ParseCertificate(cert.Certificate[0]); err == nil {
			cert.Leaf = leaf
		}
	}
	kp.cert.Store(&cert)

	attrs := []any{"cert_file", kp.certFile}
	if cert.Leaf != nil {
		attrs = append(attrs, "not_after", cert.Leaf.NotAfter.UTC().Format(time.RFC3339))
	}
	kp.logger.Info("certificate loaded", attrs...)
	return nil
}

// NotAfter returns the expiry of the current leaf certificate, or the zero
// time when it could not be parsed.
func (kp *KeyPair) NotAfter() time.Time {
	cert := kp.cert.Load()
	if cert == nil || cert.Leaf == nil {
		return time.Time{}
	}
	return cert.Leaf.NotAfter
}

// GetCertificate implements tls.Config.GetCertificate.
func (kp *KeyPair) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return kp.cert.Load(), nil
}

// ServerConfig returns a TLS config serving kp. When clientCAs is non-nil
// every client must present a certificate signed by one of them.
func ServerConfig(kp *KeyPair, clientCAs *Pool) *tls.Config {
	cfg := &tls.Config{
		GetCertificate: kp.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
	if clientCAs != nil {
		cfg.ClientCAs = clientCAs.Pool()
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg
}
