package testutils

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"

	"github.com/pkg/errors"
)

// TestClientCertificate start TLS server which requires client certificate signed by anchorPEM
// and request it with the client certificate. the anchor certificate and key are used as server certificate.
func TestClientCertificate(ctx context.Context, anchorPEM, anchorKeyPEM, clientCrt, clientKey []byte) error {
	serverCert, err := tls.X509KeyPair(anchorPEM, anchorKeyPEM)
	if err != nil {
		return errors.Wrap(err, "server key pair")
	}

	clientCert, err := tls.X509KeyPair(clientCrt, clientKey)
	if err != nil {
		return errors.Wrap(err, "client key pair")
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(anchorPEM) {
		return errors.New("invalid anchor certificate")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	ln = tls.NewListener(ln, &tls.Config{
		Certificates: []tls.Certificate{serverCert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    caPool,
	})
	go func() {
		handler := http.NewServeMux()
		handler.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, "hello %s", r.TLS.PeerCertificates[0].Subject.CommonName)
		})
		http.Serve(ln, handler)
	}()

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates:       []tls.Certificate{clientCert},
				InsecureSkipVerify: true,
			},
		},
	}
	resp, err := client.Get(fmt.Sprintf("https://%s/", ln.Addr().String()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("want %d but get status %d", http.StatusOK, resp.StatusCode)
	}

	return nil
}
