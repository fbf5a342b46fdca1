package tunnel

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"strings"
	"time"

	uuid "github.com/satori/go.uuid"
)

// Certificates is what pairing needs from a certificate authority. The host
// certificate doubles as the root certificate and PrivateKey signs both.
type Certificates struct {
	DeviceCertificate []byte
	HostCertificate   []byte
	PrivateKey        []byte
}

type CertificateAuthority interface {
	GenerateCertificates(devicePublicKey []byte) (*Certificates, error)
}

// DefaultAuthority issues a self signed host certificate and signs the device key with it.
type DefaultAuthority struct{}

// NewHostID returns a fresh upper case host identifier for pairing.
func NewHostID() string {
	return strings.ToUpper(uuid.NewV4().String())
}

func getPemCertificate(cert []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := pem.Encode(buf, &pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert,
	}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func getPemPrivateKey(key *rsa.PrivateKey) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := pem.Encode(buf, &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func parseDevicePublicKey(b []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, errors.New("device public key is not PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("device public key is not RSA")
	}
	return rsaKey, nil
}

func (DefaultAuthority) GenerateCertificates(devicePublicKey []byte) (*Certificates, error) {
	deviceKey, err := parseDevicePublicKey(devicePublicKey)
	if err != nil {
		return nil, err
	}

	rootKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, err
	}

	notBefore := time.Now()
	notAfter := notBefore.Add(time.Hour * (24 * 365) * 10)

	rootTemplate := x509.Certificate{
		IsCA:                  true,
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{},
		SignatureAlgorithm:    x509.SHA256WithRSA,
		PublicKeyAlgorithm:    x509.RSA,
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	hostCert, err := x509.CreateCertificate(rand.Reader, &rootTemplate, &rootTemplate, rootKey.Public(), rootKey)
	if err != nil {
		return nil, err
	}

	deviceTemplate := x509.Certificate{
		IsCA:                  false,
		SerialNumber:          new(big.Int).Add(serialNumber, big.NewInt(1)),
		SignatureAlgorithm:    x509.SHA256WithRSA,
		PublicKeyAlgorithm:    x509.RSA,
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	deviceCert, err := x509.CreateCertificate(rand.Reader, &deviceTemplate, &rootTemplate, deviceKey, rootKey)
	if err != nil {
		return nil, err
	}

	certs := &Certificates{}
	if certs.HostCertificate, err = getPemCertificate(hostCert); err != nil {
		return nil, err
	}
	if certs.DeviceCertificate, err = getPemCertificate(deviceCert); err != nil {
		return nil, err
	}
	if certs.PrivateKey, err = getPemPrivateKey(rootKey); err != nil {
		return nil, err
	}
	return certs, nil
}
