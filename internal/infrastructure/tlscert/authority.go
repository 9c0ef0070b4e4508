// Package tlscert issues leaf certificates for the TLS listener from a local CA.
package tlscert

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

// Authority signs per-host leaf certificates and caches them by host.
type Authority struct {
	cert    *x509.Certificate
	key     *rsa.PrivateKey
	certPEM []byte
	leafTTL time.Duration

	mu    sync.Mutex
	cache map[string]*tls.Certificate
}

// LoadFiles reads a PEM CA certificate and RSA key.
func LoadFiles(certPath, keyPath string) (*Authority, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, err
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	return FromPEM(certPEM, keyPEM)
}

// FromPEM parses a CA certificate and a PKCS1 or PKCS8 RSA key.
func FromPEM(certPEM, keyPEM []byte) (*Authority, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, errors.New("tlscert: invalid CA certificate PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}
	kblk, _ := pem.Decode(keyPEM)
	if kblk == nil {
		return nil, errors.New("tlscert: invalid CA key PEM")
	}
	var key *rsa.PrivateKey
	switch kblk.Type {
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(kblk.Bytes)
		if err != nil {
			return nil, err
		}
	case "PRIVATE KEY":
		pk, err := x509.ParsePKCS8PrivateKey(kblk.Bytes)
		if err != nil {
			return nil, err
		}
		var ok bool
		if key, ok = pk.(*rsa.PrivateKey); !ok {
			return nil, errors.New("tlscert: only RSA CA keys are supported")
		}
	default:
		return nil, fmt.Errorf("tlscert: unknown CA key block %q", kblk.Type)
	}
	if !cert.IsCA {
		return nil, errors.New("tlscert: certificate is not a CA")
	}
	return &Authority{
		cert:    cert,
		key:     key,
		certPEM: certPEM,
		leafTTL: 24 * time.Hour,
		cache:   make(map[string]*tls.Certificate),
	}, nil
}

// GenerateDev creates a self-signed development CA valid for yearsValid years.
func GenerateDev(commonName string, yearsValid int) (*Authority, []byte, error) {
	if yearsValid <= 0 {
		yearsValid = 5
	}
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}
	serial, err := newSerial()
	if err != nil {
		return nil, nil, err
	}
	now := time.Now().Add(-5 * time.Minute)
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName, Organization: []string{"replay-proxy"}},
		NotBefore:             now,
		NotAfter:              now.AddDate(yearsValid, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	a, err := FromPEM(certPEM, keyPEM)
	return a, keyPEM, err
}

// CertPEM returns the CA certificate, for clients that need to trust it.
func (a *Authority) CertPEM() []byte { return a.certPEM }

// Issue returns a cached or freshly signed leaf for host (port ignored).
func (a *Authority) Issue(host string) (*tls.Certificate, error) {
	h := strings.TrimSpace(host)
	if v, _, err := net.SplitHostPort(h); err == nil {
		h = v
	}
	if h == "" {
		h = "localhost"
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.cache[h]; ok && time.Now().Before(c.Leaf.NotAfter) {
		return c, nil
	}
	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	serial, err := newSerial()
	if err != nil {
		return nil, err
	}
	now := time.Now().Add(-5 * time.Minute)
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: h},
		NotBefore:    now,
		NotAfter:     now.Add(a.leafTTL),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if ip := net.ParseIP(h); ip != nil {
		tmpl.IPAddresses = []net.IP{ip}
	} else {
		tmpl.DNSNames = []string{h}
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, a.cert, &leafKey.PublicKey, a.key)
	if err != nil {
		return nil, err
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	c := &tls.Certificate{
		Certificate: [][]byte{der, a.cert.Raw},
		PrivateKey:  leafKey,
		Leaf:        leaf,
	}
	a.cache[h] = c
	return c, nil
}

// TLSConfig serves a leaf per SNI name and advertises HTTP/2. Clients dialing an IP
// send no SNI, so the listener's local address names the leaf instead.
func (a *Authority) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		NextProtos: []string{"h2", "http/1.1"},
		GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			host := hello.ServerName
			if host == "" && hello.Conn != nil {
				host = hello.Conn.LocalAddr().String()
			}
			return a.Issue(host)
		},
	}
}

func newSerial() (*big.Int, error) {
	return rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
}
