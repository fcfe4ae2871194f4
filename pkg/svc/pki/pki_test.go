package pki_test

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/devantler-tech/testbed/pkg/svc/pki"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseCert(t *testing.T, path string) *x509.Certificate {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	block, _ := pem.Decode(data)
	require.NotNil(t, block)

	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)

	return cert
}

func TestEnsureCAIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	authority := pki.NewFileAuthority(dir, "devtest")

	first, err := authority.EnsureCA(context.Background())
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, filepath.Join(dir, "devtest_ca_cert.pem"), first.CertPath)

	second, err := authority.EnsureCA(context.Background())
	require.NoError(t, err)
	assert.False(t, second.Created)

	cert := parseCert(t, first.CertPath)
	assert.True(t, cert.IsCA)
	assert.Equal(t, "devtest", cert.Subject.CommonName)
}

func TestSignChainsToCA(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	authority := pki.NewFileAuthority(dir, "devtest")

	signed, err := authority.Sign(context.Background(), pki.CertRequest{
		Hosts:     []string{"*.web.test", "web.test"},
		IPs:       []string{"10.0.0.5"},
		OutputDir: filepath.Join(dir, "certs"),
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "certs", "wildcard_web_test.crt"), signed.CertPath)
	assert.FileExists(t, signed.KeyPath)

	caCert := parseCert(t, filepath.Join(dir, "devtest_ca_cert.pem"))
	leaf := parseCert(t, signed.CertPath)

	roots := x509.NewCertPool()
	roots.AddCert(caCert)

	_, err = leaf.Verify(x509.VerifyOptions{Roots: roots, DNSName: "api.web.test"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", leaf.IPAddresses[0].String())
}

func TestSignValidatesRequest(t *testing.T) {
	t.Parallel()

	authority := pki.NewFileAuthority(t.TempDir(), "devtest")

	_, err := authority.Sign(context.Background(), pki.CertRequest{})
	require.ErrorIs(t, err, pki.ErrNoHosts)

	_, err = authority.Sign(context.Background(), pki.CertRequest{Hosts: []string{"a"}, IPs: []string{"nope"}})
	require.ErrorIs(t, err, pki.ErrInvalidIP)
}

func TestSignRejectsCorruptCA(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "devtest_ca_cert.pem"), []byte("junk"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "devtest_ca_key.pem"), []byte("junk"), 0o600))

	_, err := pki.NewFileAuthority(dir, "devtest").Sign(context.Background(), pki.CertRequest{Hosts: []string{"a"}})

	require.ErrorIs(t, err, pki.ErrInvalidCA)
}
