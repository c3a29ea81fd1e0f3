package testingx

//
// Certificate fixtures
//

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/ooni/sslsocket/internal/runtimex"
)

// KeyPair is a certificate and its private key in PEM format, along
// with the corresponding parsed [tls.Certificate].
type KeyPair struct {
	// Cert is the parsed certificate.
	Cert *x509.Certificate

	// CertPEM is the PEM encoded certificate.
	CertPEM []byte

	// KeyPEM is the PEM encoded private key.
	KeyPEM []byte

	// TLSCertificate is ready to use in a [tls.Config].
	TLSCertificate *tls.Certificate

	key *ecdsa.PrivateKey
}

// CertificateAuthority is a fake CA signing leaf certificates.
type CertificateAuthority struct {
	*KeyPair
}

// MustNewCertificateAuthority creates a new fake CA valid for a day.
func MustNewCertificateAuthority(commonName string) *CertificateAuthority {
	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          mustNewSerialNumber(),
		Subject:               pkix.Name{CommonName: commonName, Organization: []string{"sslsocket"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	return &CertificateAuthority{mustNewKeyPair(template, nil)}
}

// MustNewLeaf creates a leaf certificate signed by the CA for the given
// names, which may be domain names or IP addresses.
func (ca *CertificateAuthority) MustNewLeaf(notBefore, notAfter time.Time, names ...string) *KeyPair {
	return mustNewKeyPair(newLeafTemplate(notBefore, notAfter, names...), ca.KeyPair)
}

// CertPool returns a pool containing only the CA certificate.
func (ca *CertificateAuthority) CertPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(ca.Cert)
	return pool
}

// MustNewSelfSigned creates a self-signed leaf certificate.
func MustNewSelfSigned(notBefore, notAfter time.Time, names ...string) *KeyPair {
	return mustNewKeyPair(newLeafTemplate(notBefore, notAfter, names...), nil)
}

// MustWriteFile writes data to dir/name and returns the path.
func MustWriteFile(dir, name string, data []byte) string {
	path := filepath.Join(dir, name)
	runtimex.PanicOnError(os.WriteFile(path, data, 0600), "os.WriteFile")
	return path
}

func newLeafTemplate(notBefore, notAfter time.Time, names ...string) *x509.Certificate {
	runtimex.Assert(len(names) > 0, "expected at least one name")
	template := &x509.Certificate{
		SerialNumber:          mustNewSerialNumber(),
		Subject:               pkix.Name{CommonName: names[0]},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}
	for _, name := range names {
		if ip := net.ParseIP(name); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
			continue
		}
		template.DNSNames = append(template.DNSNames, name)
	}
	return template
}

func mustNewSerialNumber() *big.Int {
	limit := new(big.Int).Lsh(big.NewInt(1), 64)
	return runtimex.Try1(rand.Int(rand.Reader, limit))
}

// mustNewKeyPair signs template with parent or, if parent is nil, self-signs it.
func mustNewKeyPair(template *x509.Certificate, parent *KeyPair) *KeyPair {
	key := runtimex.Try1(ecdsa.GenerateKey(elliptic.P256(), rand.Reader))
	issuer, signer := template, key
	if parent != nil {
		issuer, signer = parent.Cert, parent.key
	}
	der := runtimex.Try1(x509.CreateCertificate(rand.Reader, template, issuer, &key.PublicKey, signer))
	keyDER := runtimex.Try1(x509.MarshalECPrivateKey(key))
	pair := &KeyPair{
		Cert:    runtimex.Try1(x509.ParseCertificate(der)),
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
		key:     key,
	}
	cert := runtimex.Try1(tls.X509KeyPair(pair.CertPEM, pair.KeyPEM))
	pair.TLSCertificate = &cert
	return pair
}
