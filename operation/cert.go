package operation

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"

	"drg/client/common"
	"drg/outcome"
	"drg/pkg/helper"
	"drg/trust"
)

// CertRequest options of certificate creation
type CertRequest struct {
	Days       int
	Algorithm  string // context default if empty
	KeyInput   string // file of an existing private key
	CertOutput string
	KeyOutput  string
}

// IssuedCert PEM material which was not written to a file
type IssuedCert struct {
	Certificate string `json:"certificate,omitempty"`
	PrivateKey  string `json:"private_key,omitempty"`
}

func (c *IssuedCert) String() string { return c.Certificate + c.PrivateKey }

type CertOutcome = outcome.Outcome[*IssuedCert]

func (o *Operations) trustRequest(cn, ou string, req *CertRequest) (*trust.Request, error) {
	algo, err := o.context.Algorithm(req.Algorithm)
	if err != nil {
		return nil, err
	}

	tr := &trust.Request{CommonName: cn, OrganizationalUnit: ou, Days: req.Days, Algorithm: algo}
	if req.KeyInput != "" {
		if tr.Key, err = helper.ReadFile(req.KeyInput); err != nil {
			return nil, outcome.InvalidInput("fail to read key %s: %s", req.KeyInput, err)
		}
	}

	return tr, nil
}

// CreateAppCert create trust anchor and add it to the application
func (o *Operations) CreateAppCert(ctx context.Context, app string, req *CertRequest) (*CertOutcome, error) {
	tr, err := o.trustRequest(app, "", req)
	if err != nil {
		return nil, err
	}

	issued, err := trust.IssueTrustAnchor(tr)
	if err != nil {
		return nil, err
	}

	svc := o.registry().Apps()
	get := func(ctx context.Context) (*common.Resource, error) { return svc.Get(ctx, app) }
	modify := func(r *common.Resource) (*common.Resource, error) {
		return addTrustAnchor(r, issued.CertificatePEM), nil
	}
	if _, err := readModifyWrite(ctx, App(app).notFound(), get, modify, svc.Update); err != nil {
		return nil, err
	}

	return writeIssued(issued, req, "Trust anchor for application "+app+" created")
}

// GetAppCert returns trust anchors of the application in PEM
func (o *Operations) GetAppCert(ctx context.Context, app string) (*outcome.Outcome[[]string], error) {
	r, err := o.registry().Apps().Get(ctx, app)
	if err != nil {
		if outcome.IsNotFound(err) {
			return nil, App(app).notFound()
		}
		return nil, err
	}

	var pems []string
	for _, anchor := range trustAnchors(r) {
		m, _ := anchor.(map[string]interface{})
		encoded, _ := m["certificate"].(string)

		pem, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, outcome.UnexpectedClient(errors.Wrap(err, "invalid trust anchor"))
		}
		pems = append(pems, string(pem))
	}

	if len(pems) == 0 {
		return nil, outcome.NotFound("no trust anchor in application %s", app)
	}

	return outcome.WithData(pems), nil
}

// CreateDeviceCert create device certificate signed by the application's trust anchor
func (o *Operations) CreateDeviceCert(ctx context.Context, app, device, caKeyFile, caCertFile string, req *CertRequest) (*CertOutcome, error) {
	caKey, err := helper.ReadFile(caKeyFile)
	if err != nil {
		return nil, outcome.InvalidInput("fail to read CA key %s: %s", caKeyFile, err)
	}

	caCert, err := helper.ReadFile(caCertFile)
	if err != nil {
		return nil, outcome.InvalidInput("fail to read CA certificate %s: %s", caCertFile, err)
	}

	tr, err := o.trustRequest(device, app, req)
	if err != nil {
		return nil, err
	}

	issued, err := trust.IssueLeafCertificate(tr, caKey, caCert)
	if err != nil {
		return nil, err
	}

	return writeIssued(issued, req, "Certificate for device "+device+" created")
}

func trustAnchors(r *common.Resource) []interface{} {
	anchorsDoc, _ := r.Spec["trustAnchors"].(map[string]interface{})
	anchors, _ := anchorsDoc["anchors"].([]interface{})
	return anchors
}

func addTrustAnchor(r *common.Resource, certPEM []byte) *common.Resource {
	if r.Spec == nil {
		r.Spec = map[string]interface{}{}
	}

	anchorsDoc, ok := r.Spec["trustAnchors"].(map[string]interface{})
	if !ok {
		anchorsDoc = map[string]interface{}{}
		r.Spec["trustAnchors"] = anchorsDoc
	}

	anchorsDoc["anchors"] = append(trustAnchors(r), map[string]interface{}{
		"certificate": base64.StdEncoding.EncodeToString(certPEM),
	})

	return r
}

// writeIssued write certificate and key to output files; material without output file is returned
func writeIssued(issued *trust.Issued, req *CertRequest, message string) (*CertOutcome, error) {
	remains := &IssuedCert{}
	var written []string

	if req.CertOutput != "" {
		if err := helper.WriteFile(req.CertOutput, issued.CertificatePEM, 0o644); err != nil {
			return nil, errors.Wrapf(err, "fail to write %s", req.CertOutput)
		}
		written = append(written, "certificate to "+req.CertOutput)
	} else {
		remains.Certificate = string(issued.CertificatePEM)
	}

	if issued.PrivateKeyPEM != nil {
		if req.KeyOutput != "" {
			if err := helper.WriteFile(req.KeyOutput, issued.PrivateKeyPEM, 0o600); err != nil {
				return nil, errors.Wrapf(err, "fail to write %s", req.KeyOutput)
			}
			written = append(written, "private key to "+req.KeyOutput)
		} else {
			remains.PrivateKey = string(issued.PrivateKeyPEM)
		}
	}

	if remains.Certificate == "" && remains.PrivateKey == "" {
		return outcome.WithMessage[*IssuedCert]("%s, wrote %s", message, strings.Join(written, " and ")), nil
	}

	return outcome.WithData(remains), nil
}
