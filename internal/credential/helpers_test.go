package credential

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"
)

// testKeyHex is a valid P-256 scalar written the way openssl prints it.
const testKeyHex = "00:11:22:33:44:55:66:77:88:99:aa:bb:cc:dd:ee:ff:" +
	"00:11:22:33:44:55:66:77:88:99:aa:bb:cc:dd:ee:ff"

// fakeWatchdog records suspend/resume calls.
type fakeWatchdog struct {
	suspends  int
	resumes   int
	suspended bool
}

func (w *fakeWatchdog) Suspend() {
	w.suspends++
	w.suspended = true
}

func (w *fakeWatchdog) Resume() {
	w.resumes++
	w.suspended = false
}

func testIdentity(t *testing.T) Identity {
	t.Helper()
	id, err := NewIdentity("proj", "europe-west1", "reg", "hp-01")
	if err != nil {
		t.Fatalf("NewIdentity() error = %v", err)
	}
	return id
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(testIdentity(t), ManagerConfig{
		Lifetime:    time.Hour,
		DriftMargin: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func testManagerWithKey(t *testing.T) *Manager {
	t.Helper()
	m := testManager(t)
	raw, err := DecodeKeyHex(testKeyHex)
	if err != nil {
		t.Fatalf("DecodeKeyHex() error = %v", err)
	}
	if err := m.LoadPrivateKey(raw); err != nil {
		t.Fatalf("LoadPrivateKey() error = %v", err)
	}
	return m
}

// testCertificate creates a self-signed CA and returns it as PEM and DER.
func testCertificate(t *testing.T, cn string) (pemBytes, der []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	der, err = x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), der
}

// testECKeyDER returns a fresh P-256 key in SEC 1 DER form.
func testECKeyDER(t *testing.T) (*ecdsa.PrivateKey, []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() error = %v", err)
	}
	return key, der
}
