package trust

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"drg/pkg/helper/x509x"
)

// Algorithm key algorithm for generated certificates
type Algorithm int

const (
	AlgorithmNone Algorithm = iota
	ECDSA_P256
	ECDSA_P384
	ED25519
	RSA
)

// DefaultAlgorithm is used when neither flag nor context provides an algorithm
const DefaultAlgorithm = ECDSA_P256

var (
	ErrUnknownAlgorithm = errors.New("unknown algorithm")

	algorithmToStr = map[Algorithm]string{
		ECDSA_P256: "ECDSA_P256",
		ECDSA_P384: "ECDSA_P384",
		ED25519:    "ED25519",
		RSA:        "RSA",
	}

	// key and signature algorithm for certificate template
	algorithmToX509 = map[Algorithm]x509.SignatureAlgorithm{
		ECDSA_P256: x509.ECDSAWithSHA256,
		ECDSA_P384: x509.ECDSAWithSHA384,
		ED25519:    x509.PureEd25519,
		RSA:        x509.SHA256WithRSA,
	}
)

// Algorithms returns supported algorithm names
func Algorithms() []string {
	return []string{"ECDSA_P256", "ECDSA_P384", "ED25519", "RSA"}
}

func (a Algorithm) String() string { return algorithmToStr[a] }

// ToX509SignatureAlgorithm returns signature algorithm used for key generation and signing
func (a Algorithm) ToX509SignatureAlgorithm() x509.SignatureAlgorithm { return algorithmToX509[a] }

func (a Algorithm) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }
func (a *Algorithm) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	algo, err := ParseAlgorithm(s)
	if err != nil {
		return err
	}

	*a = algo
	return nil
}

// ParseAlgorithm parse algorithm name, case insensitive
func ParseAlgorithm(s string) (Algorithm, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for algo, str := range algorithmToStr {
		if str == normalized {
			return algo, nil
		}
	}

	return AlgorithmNone, errors.Wrapf(ErrUnknownAlgorithm, "%q, supported: %s", s, strings.Join(Algorithms(), ", "))
}

// KeyAlgorithm detect algorithm of private key; only the four supported key types are recognized
func KeyAlgorithm(key x509x.PrivateKey) (Algorithm, error) {
	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		switch k.Curve {
		case elliptic.P256():
			return ECDSA_P256, nil
		case elliptic.P384():
			return ECDSA_P384, nil
		}
		return AlgorithmNone, errors.Wrapf(ErrUnsupportedKey, "ecdsa curve %s", k.Curve.Params().Name)
	case ed25519.PrivateKey:
		return ED25519, nil
	case *rsa.PrivateKey:
		if k.N.BitLen() != 2048 {
			return AlgorithmNone, errors.Wrapf(ErrUnsupportedKey, "rsa key size %d", k.N.BitLen())
		}
		return RSA, nil
	}

	return AlgorithmNone, errors.Wrapf(ErrUnsupportedKey, "%T", key)
}
