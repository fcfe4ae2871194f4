package pki

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	caValidity   = 10 * 365 * 24 * time.Hour
	certValidity = 365 * 24 * time.Hour
	serialBits   = 128
	dirPerm      = 0o750
	certPerm     = 0o644
	keyPerm      = 0o600
)

var (
	// ErrNoHosts is returned when a certificate request names no host.
	ErrNoHosts = errors.New("certificate request needs at least one host")
	// ErrInvalidCA is returned when the stored CA files cannot be used.
	ErrInvalidCA = errors.New("invalid certificate authority")
	// ErrInvalidIP is returned for malformed IP SANs.
	ErrInvalidIP = errors.New("invalid IP address")
)

// CA locates the certificate authority files.
type CA struct {
	Name     string
	CertPath string
	KeyPath  string
	// Created is true when EnsureCA generated the CA in this call.
	Created bool
}

// CertRequest asks for a server certificate. The first host becomes the common name.
type CertRequest struct {
	Hosts     []string
	IPs       []string
	OutputDir string
}

// Certificate locates a signed certificate and its key.
type Certificate struct {
	CertPath string
	KeyPath  string
}

// Authority creates a CA on demand and signs certificates with it.
type Authority interface {
	EnsureCA(ctx context.Context) (CA, error)
	Sign(ctx context.Context, request CertRequest) (Certificate, error)
}

// FileAuthority keeps the CA as PEM files in a directory.
type FileAuthority struct {
	dir  string
	name string
	now  func() time.Time
	mu   sync.Mutex
}

var _ Authority = (*FileAuthority)(nil)

// NewFileAuthority creates an authority storing files under dir for a CA called name.
func NewFileAuthority(dir, name string) *FileAuthority {
	return &FileAuthority{dir: dir, name: name, now: time.Now}
}

// EnsureCA returns the existing CA or generates one.
func (a *FileAuthority) EnsureCA(_ context.Context) (CA, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ca := CA{
		Name:     a.name,
		CertPath: filepath.Join(a.dir, a.name+"_ca_cert.pem"),
		KeyPath:  filepath.Join(a.dir, a.name+"_ca_key.pem"),
	}

	if fileExists(ca.CertPath) && fileExists(ca.KeyPath) {
		return ca, nil
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return CA{}, fmt.Errorf("generate CA key: %w", err)
	}

	serial, err := newSerial()
	if err != nil {
		return CA{}, err
	}

	now := a.now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:         a.name,
			Organization:       []string{a.name + "'s Dev Test Environment"},
			OrganizationalUnit: []string{"Test"},
		},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(caValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return CA{}, fmt.Errorf("create CA certificate: %w", err)
	}

	err = writePair(ca.CertPath, der, ca.KeyPath, key)
	if err != nil {
		return CA{}, err
	}

	ca.Created = true

	return ca, nil
}

// Sign issues a server certificate for the requested hosts and IPs.
func (a *FileAuthority) Sign(ctx context.Context, request CertRequest) (Certificate, error) {
	if len(request.Hosts) == 0 {
		return Certificate{}, ErrNoHosts
	}

	ips := make([]net.IP, 0, len(request.IPs))

	for _, raw := range request.IPs {
		ip := net.ParseIP(raw)
		if ip == nil {
			return Certificate{}, fmt.Errorf("%w: %q", ErrInvalidIP, raw)
		}

		ips = append(ips, ip)
	}

	ca, err := a.EnsureCA(ctx)
	if err != nil {
		return Certificate{}, err
	}

	caCert, caKey, err := loadCA(ca)
	if err != nil {
		return Certificate{}, err
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Certificate{}, fmt.Errorf("generate key: %w", err)
	}

	serial, err := newSerial()
	if err != nil {
		return Certificate{}, err
	}

	now := a.now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: request.Hosts[0]},
		DNSNames:     request.Hosts,
		IPAddresses:  ips,
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(certValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, caCert, &key.PublicKey, caKey)
	if err != nil {
		return Certificate{}, fmt.Errorf("sign certificate for %s: %w", request.Hosts[0], err)
	}

	outputDir := request.OutputDir
	if outputDir == "" {
		outputDir = a.dir
	}

	base := safeName(request.Hosts[0])
	cert := Certificate{
		CertPath: filepath.Join(outputDir, base+".crt"),
		KeyPath:  filepath.Join(outputDir, base+".key"),
	}

	err = writePair(cert.CertPath, der, cert.KeyPath, key)
	if err != nil {
		return Certificate{}, err
	}

	return cert, nil
}

func loadCA(ca CA) (*x509.Certificate, crypto.Signer, error) {
	certBlock, err := readPEM(ca.CertPath)
	if err != nil {
		return nil, nil, err
	}

	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse %s: %w", ErrInvalidCA, ca.CertPath, err)
	}

	keyBlock, err := readPEM(ca.KeyPath)
	if err != nil {
		return nil, nil, err
	}

	parsed, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse %s: %w", ErrInvalidCA, ca.KeyPath, err)
	}

	signer, ok := parsed.(crypto.Signer)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s is not a signing key", ErrInvalidCA, ca.KeyPath)
	}

	return cert, signer, nil
}

func readPEM(path string) (*pem.Block, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is inside the pki directory
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCA, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: %s holds no PEM block", ErrInvalidCA, path)
	}

	return block, nil
}

func writePair(certPath string, der []byte, keyPath string, key *ecdsa.PrivateKey) error {
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("encode key: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(certPath), dirPerm)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(certPath), err)
	}

	err = os.MkdirAll(filepath.Dir(keyPath), dirPerm)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(keyPath), err)
	}

	err = os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), certPerm)
	if err != nil {
		return fmt.Errorf("write %s: %w", certPath, err)
	}

	err = os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}), keyPerm)
	if err != nil {
		return fmt.Errorf("write %s: %w", keyPath, err)
	}

	return nil
}

func newSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), serialBits))
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}

	return serial, nil
}

func safeName(host string) string {
	return strings.NewReplacer("*", "wildcard", ".", "_").Replace(host)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}
