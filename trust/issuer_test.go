package trust

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"drg/pkg/helper/x509x"
	"drg/pkg/testutils"
)

func TestIssueTrustAnchor(t *testing.T) {
	type args struct {
		req *Request
	}
	tests := [...]struct {
		name     string
		args     args
		wantErr  bool
		wantAlgo Algorithm
		wantDays int
	}{
		{`default algorithm`, args{&Request{CommonName: "app1"}}, false, ECDSA_P256, DefaultDays},
		{`ecdsa p384`, args{&Request{CommonName: "app1", Algorithm: ECDSA_P384, Days: 10}}, false, ECDSA_P384, 10},
		{`ed25519`, args{&Request{CommonName: "app1", Algorithm: ED25519}}, false, ED25519, DefaultDays},
		{`rsa`, args{&Request{CommonName: "app1", Algorithm: RSA}}, false, RSA, DefaultDays},
		{`common name required`, args{&Request{}}, true, AlgorithmNone, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IssueTrustAnchor(tt.args.req)
			require.Truef(t, (err != nil) == tt.wantErr, `IssueTrustAnchor() failed: error = %+v, wantErr = %v`, err, tt.wantErr)
			if tt.wantErr {
				return
			}

			cert, err := x509x.ParseCertificate(got.CertificatePEM)
			require.NoError(t, err)

			require.Equal(t, tt.wantAlgo, got.Algorithm)
			require.Equal(t, tt.wantAlgo.ToX509SignatureAlgorithm(), cert.SignatureAlgorithm)
			require.True(t, cert.IsCA)
			require.True(t, cert.BasicConstraintsValid)
			require.Equal(t, tt.args.req.CommonName, cert.Subject.CommonName)
			require.Equal(t, []string{Organization}, cert.Subject.Organization)
			require.Equal(t, []string{AnchorOrganizationalUnit}, cert.Subject.OrganizationalUnit)
			require.Equal(t, got.NotBefore.AddDate(0, 0, tt.wantDays), cert.NotAfter)
			require.NoError(t, cert.CheckSignatureFrom(cert))

			key, err := x509x.ParsePrivateKey(got.PrivateKeyPEM)
			require.NoError(t, err)
			require.True(t, x509x.PublicKeyMatches(key, cert))
		})
	}
}

func TestIssueLeafCertificate(t *testing.T) {
	for _, algo := range []Algorithm{ECDSA_P256, ECDSA_P384, ED25519, RSA} {
		t.Run(algo.String(), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			anchor, err := IssueTrustAnchor(&Request{CommonName: "app1", Algorithm: algo})
			require.NoError(t, err)

			leaf, err := IssueLeafCertificate(&Request{CommonName: "device1", OrganizationalUnit: "app1", Algorithm: algo}, anchor.PrivateKeyPEM, anchor.CertificatePEM)
			require.NoError(t, err)

			caCert := testutils.Must1(x509x.ParseCertificate(anchor.CertificatePEM))
			cert := testutils.Must1(x509x.ParseCertificate(leaf.CertificatePEM))

			require.NoError(t, cert.CheckSignatureFrom(caCert))
			require.False(t, cert.IsCA)
			require.Equal(t, "device1", cert.Subject.CommonName)
			require.Equal(t, []string{"app1"}, cert.Subject.OrganizationalUnit)
			require.Equal(t, "app1", cert.Issuer.CommonName)
			require.Equal(t, []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}, cert.ExtKeyUsage)

			require.NoError(t, testutils.TestClientCertificate(ctx, anchor.CertificatePEM, anchor.PrivateKeyPEM, leaf.CertificatePEM, leaf.PrivateKeyPEM))
		})
	}
}

func TestIssueLeafCertificateKeyMismatch(t *testing.T) {
	anchor := testutils.Must1(IssueTrustAnchor(&Request{CommonName: "app1"}))
	other := testutils.Must1(IssueTrustAnchor(&Request{CommonName: "app2"}))

	_, err := IssueLeafCertificate(&Request{CommonName: "device1"}, other.PrivateKeyPEM, anchor.CertificatePEM)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrKeyMismatch))
}

func TestExternalKey(t *testing.T) {
	p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	p384PEM := testutils.Must1(x509x.EncodePrivateKeyToPEM(p384))

	p521, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	require.NoError(t, err)
	p521PEM := testutils.Must1(x509x.EncodePrivateKeyToPEM(p521))

	type args struct {
		key []byte
	}
	tests := [...]struct {
		name     string
		args     args
		wantErr  error
		wantAlgo Algorithm
	}{
		{`p384 key`, args{p384PEM}, nil, ECDSA_P384},
		{`unsupported curve`, args{p521PEM}, ErrUnsupportedKey, AlgorithmNone},
		{`not a key`, args{[]byte("hello world")}, ErrUnsupportedKey, AlgorithmNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// algorithm of external key wins over the requested one
			got, err := IssueTrustAnchor(&Request{CommonName: "app1", Algorithm: RSA, Key: tt.args.key})
			if tt.wantErr != nil {
				require.Error(t, err)
				require.True(t, errors.Is(err, tt.wantErr), "got %+v", err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.wantAlgo, got.Algorithm)
			require.Nil(t, got.PrivateKeyPEM)

			cert := testutils.Must1(x509x.ParseCertificate(got.CertificatePEM))
			require.True(t, x509x.PublicKeyMatches(p384, cert))
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := [...]struct {
		name    string
		arg     string
		want    Algorithm
		wantErr bool
	}{
		{`upper`, "ECDSA_P256", ECDSA_P256, false},
		{`lower with dash`, "ecdsa-p384", ECDSA_P384, false},
		{`ed25519`, "Ed25519", ED25519, false},
		{`rsa`, "rsa", RSA, false},
		{`unknown`, "dsa", AlgorithmNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.arg)
			require.Truef(t, (err != nil) == tt.wantErr, `ParseAlgorithm() failed: error = %+v, wantErr = %v`, err, tt.wantErr)
			require.Equal(t, tt.want, got)
		})
	}
}
