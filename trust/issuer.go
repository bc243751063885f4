package trust

import (
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"time"

	"github.com/pkg/errors"
	"github.com/whitekid/goxp/fx"
	"github.com/whitekid/goxp/log"

	"drg/pkg/helper"
	"drg/pkg/helper/x509x"
)

const (
	// Organization is the fixed organization of issued certificates
	Organization = "Drogue IoT"
	// AnchorOrganizationalUnit is the organizational unit of trust anchors
	AnchorOrganizationalUnit = "Cloud"

	DefaultDays = 365
)

var (
	ErrKeyMismatch    = errors.New("CA private key does not match the public key of the CA certificate")
	ErrUnsupportedKey = errors.New("unsupported key")
)

const (
	KeyUsageAnchor = x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	KeyUsageLeaf   = x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
)

var ExtKeyUsageLeaf = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}

// Request certificate issue request
type Request struct {
	CommonName         string `validate:"required"`
	OrganizationalUnit string
	Days               int `validate:"gte=0"` // validity in days; 0 means DefaultDays
	Algorithm          Algorithm
	Key                []byte // optional external private key in PEM; generated when empty
}

// Issued issued certificate
type Issued struct {
	CertificatePEM []byte
	PrivateKeyPEM  []byte // nil if key was supplied by caller
	Algorithm      Algorithm
	NotBefore      time.Time
	NotAfter       time.Time
}

// IssueTrustAnchor create self-signed CA certificate for an application
func IssueTrustAnchor(req *Request) (*Issued, error) {
	log.Debugf("IssueTrustAnchor(): cn=%s, algorithm=%s, days=%d", req.CommonName, req.Algorithm, req.Days)

	key, algo, generated, err := req.privateKey()
	if err != nil {
		return nil, err
	}

	template, err := req.template()
	if err != nil {
		return nil, err
	}
	template.Subject.OrganizationalUnit = []string{fx.Ternary(req.OrganizationalUnit == "", AnchorOrganizationalUnit, req.OrganizationalUnit)}
	template.IsCA = true
	template.BasicConstraintsValid = true
	template.KeyUsage = KeyUsageAnchor

	return issue(template, template, key, key, algo, generated)
}

// IssueLeafCertificate create certificate signed by the CA.
// caKeyPEM must be the private key of caCertPEM.
func IssueLeafCertificate(req *Request, caKeyPEM []byte, caCertPEM []byte) (*Issued, error) {
	log.Debugf("IssueLeafCertificate(): cn=%s, algorithm=%s, days=%d", req.CommonName, req.Algorithm, req.Days)

	caKey, err := x509x.ParsePrivateKey(caKeyPEM)
	if err != nil {
		return nil, errors.Wrap(err, "fail to parse CA key")
	}

	caCert, err := x509x.ParseCertificate(caCertPEM)
	if err != nil {
		return nil, errors.Wrap(err, "fail to parse CA certificate")
	}

	if !x509x.PublicKeyMatches(caKey, caCert) {
		return nil, ErrKeyMismatch
	}

	key, algo, generated, err := req.privateKey()
	if err != nil {
		return nil, err
	}

	template, err := req.template()
	if err != nil {
		return nil, err
	}
	template.Subject.OrganizationalUnit = fx.Ternary(req.OrganizationalUnit == "", []string(nil), []string{req.OrganizationalUnit})
	template.KeyUsage = KeyUsageLeaf
	template.ExtKeyUsage = ExtKeyUsageLeaf

	return issue(template, caCert, key, caKey, algo, generated)
}

func issue(template, parent *x509.Certificate, key, signerKey x509x.PrivateKey, algo Algorithm, generated bool) (*Issued, error) {
	certDerBytes, err := x509.CreateCertificate(rand.Reader, template, parent, key.Public(), signerKey)
	if err != nil {
		return nil, errors.Wrap(err, "fail to create certificate")
	}

	issued := &Issued{
		CertificatePEM: x509x.EncodeCertificateToPEM(certDerBytes),
		Algorithm:      algo,
		NotBefore:      template.NotBefore,
		NotAfter:       template.NotAfter,
	}

	if generated {
		issued.PrivateKeyPEM, err = x509x.EncodePrivateKeyToPEM(key)
		if err != nil {
			return nil, errors.Wrap(err, "fail to create certificate")
		}
	}

	return issued, nil
}

// privateKey returns external key if given, otherwise generate new one
func (req *Request) privateKey() (key x509x.PrivateKey, algo Algorithm, generated bool, err error) {
	if len(req.Key) > 0 {
		key, err = x509x.ParsePrivateKey(req.Key)
		if err != nil {
			return nil, AlgorithmNone, false, errors.Wrap(ErrUnsupportedKey, err.Error())
		}

		algo, err = KeyAlgorithm(key)
		if err != nil {
			return nil, AlgorithmNone, false, err
		}

		return key, algo, false, nil
	}

	algo = fx.Ternary(req.Algorithm == AlgorithmNone, DefaultAlgorithm, req.Algorithm)
	key, err = x509x.GenerateKey(algo.ToX509SignatureAlgorithm())
	if err != nil {
		return nil, AlgorithmNone, false, errors.Wrap(err, "fail to generate key")
	}

	return key, algo, true, nil
}

func (req *Request) template() (*x509.Certificate, error) {
	if err := helper.ValidateStruct(req); err != nil {
		return nil, err
	}

	days := fx.Ternary(req.Days == 0, DefaultDays, req.Days)
	notBefore := helper.AfterNow(0, 0, 0)

	return &x509.Certificate{
		SerialNumber: x509x.RandomSerial(),
		Subject: pkix.Name{
			CommonName:   req.CommonName,
			Organization: []string{Organization},
		},
		NotBefore: notBefore,
		NotAfter:  notBefore.AddDate(0, 0, days),
	}, nil
}
