//go:build !integration

package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestKeyPair(t *testing.T) (certFile, keyFile string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func TestCertSourceMemoizes(t *testing.T) {
	certFile, keyFile := writeTestKeyPair(t)
	src := NewTellerCertSource(certFile, keyFile)

	first, err := src.Certificate()
	if err != nil {
		t.Fatalf("Certificate: %v", err)
	}

	// Remove the files; the memoized copy must keep serving.
	if err := os.Remove(certFile); err != nil {
		t.Fatal(err)
	}
	second, err := src.Certificate()
	if err != nil {
		t.Fatalf("Certificate after file removal: %v", err)
	}
	if first != second {
		t.Fatal("second call did not return the memoized certificate")
	}
}

func TestCertSourceInvalidateForcesReload(t *testing.T) {
	certFile, keyFile := writeTestKeyPair(t)
	src := NewTellerCertSource(certFile, keyFile)

	if _, err := src.Certificate(); err != nil {
		t.Fatalf("Certificate: %v", err)
	}
	if err := os.Remove(certFile); err != nil {
		t.Fatal(err)
	}
	src.Invalidate()
	if _, err := src.Certificate(); err == nil {
		t.Fatal("reload after Invalidate succeeded despite missing file")
	}
}

func TestCertSourceMissingFiles(t *testing.T) {
	src := NewTellerCertSource("/nonexistent/cert.pem", "/nonexistent/key.pem")
	if _, err := src.Certificate(); err == nil {
		t.Fatal("want error for missing cert files")
	}
}
