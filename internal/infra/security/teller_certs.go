// File: internal/infra/security/teller_certs.go
package security

import (
	"crypto/tls"
	"fmt"
	"sync"
)

// TellerCertSource loads the Teller mTLS client certificate on first use and
// memoizes it. Invalidate forces a reload on the next Certificate call, which
// is the hook used after certificate rotation.
type TellerCertSource struct {
	certFile string
	keyFile  string

	mu   sync.Mutex
	cert *tls.Certificate
}

func NewTellerCertSource(certFile, keyFile string) *TellerCertSource {
	return &TellerCertSource{certFile: certFile, keyFile: keyFile}
}

// Certificate returns the cached certificate, loading it from disk on the
// first call after construction or Invalidate.
func (s *TellerCertSource) Certificate() (*tls.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cert != nil {
		return s.cert, nil
	}
	cert, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
	if err != nil {
		return nil, fmt.Errorf("load teller client cert: %w", err)
	}
	s.cert = &cert
	return s.cert, nil
}

// Invalidate drops the cached certificate.
func (s *TellerCertSource) Invalidate() {
	s.mu.Lock()
	s.cert = nil
	s.mu.Unlock()
}
