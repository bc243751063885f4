package operation

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/whitekid/goxp/retry"

	"drg/client"
	"drg/client/registry"
	"drg/config"
	"drg/outcome"
	"drg/pkg/helper/x509x"
	"drg/pkg/testutils"
)

func newTestOperations(ctx context.Context, t *testing.T) (*Operations, *testutils.Registry) {
	ts, reg := testutils.NewRegistryServer(ctx)

	cred := &config.AccessToken{ID: "user", Secret: "token"}
	reg.Authorization = cred.Authorization()

	c := &config.Context{
		Name:        "test",
		CloudURL:    ts.URL,
		AuthURL:     ts.URL + "/auth",
		TokenURL:    ts.URL + "/token",
		RegistryURL: ts.URL,
		Credential:  cred,
	}

	return New(client.New(c)), reg
}

func requireKind(t *testing.T, err error, kind outcome.Kind) {
	require.Error(t, err)
	require.Equal(t, kind, outcome.FromError(err).Kind, "got %+v", err)
}

func writeFiles(t *testing.T, files map[string]string) string {
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func TestParseKind(t *testing.T) {
	tests := [...]struct {
		name    string
		arg     string
		want    Kind
		wantErr bool
	}{
		{`app`, "app", KindApp, false},
		{`plural`, "Applications", KindApp, false},
		{`device short`, "dev", KindDevice, false},
		{`trust anchor`, "trust-anchor", KindAppCert, false},
		{`unknown`, "widget", KindNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKind(tt.arg)
			require.Truef(t, (err != nil) == tt.wantErr, `ParseKind() failed: error = %+v, wantErr = %v`, err, tt.wantErr)
			require.Equal(t, tt.want, got)
			if tt.wantErr {
				requireKind(t, err, outcome.KindInvalidInput)
			}
		})
	}
}

func TestCreateGetList(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	op, _ := newTestOperations(ctx, t)

	got, err := op.Create(ctx, App("app1"), map[string]interface{}{"key": "value"}, map[string]string{"env": "prod"})
	require.NoError(t, err)
	require.Equal(t, "Application app1 created", got.Message)

	_, err = op.Create(ctx, App("app1"), nil, nil)
	requireKind(t, err, outcome.KindService)
	require.Equal(t, http.StatusConflict, outcome.StatusCode(err))

	_, err = op.Create(ctx, Device("app1", "dev1"), nil, nil)
	require.NoError(t, err)

	_, err = op.Create(ctx, Device("", "dev1"), nil, nil)
	requireKind(t, err, outcome.KindInvalidInput)

	app, err := op.Get(ctx, App("app1"))
	require.NoError(t, err)
	require.True(t, app.HasData())
	require.Equal(t, "value", app.Data.Spec["key"])

	_, err = op.Get(ctx, Device("app1", "missing"))
	requireKind(t, err, outcome.KindNotFound)

	devices, err := op.List(ctx, KindDevice, "app1", "")
	require.NoError(t, err)
	require.Len(t, devices.Data, 1)

	apps, err := op.List(ctx, KindApp, "", "env=dev")
	require.NoError(t, err)
	require.Empty(t, apps.Data)
}

func TestDeleteIgnoreMissing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	op, reg := newTestOperations(ctx, t)
	reg.AddApp(ctx, "app1")
	reg.AddDevice(ctx, "app1", "dev1")

	tests := [...]struct {
		name          string
		target        *Target
		ignoreMissing bool
		wantErr       bool
		wantMessage   string
	}{
		{`delete device`, Device("app1", "dev1"), true, false, "Device dev1 deleted"},
		{`delete again`, Device("app1", "dev1"), true, false, "Device dev1 not found, nothing to delete"},
		{`delete missing`, Device("app1", "dev1"), false, true, ""},
		{`delete app`, App("app1"), false, false, "Application app1 deleted"},
		{`delete app again`, App("app1"), true, false, "Application app1 not found, nothing to delete"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := op.Delete(ctx, tt.target, tt.ignoreMissing)
			require.Truef(t, (err != nil) == tt.wantErr, `Delete() failed: error = %+v, wantErr = %v`, err, tt.wantErr)
			if tt.wantErr {
				requireKind(t, err, outcome.KindNotFound)
				return
			}
			require.Equal(t, tt.wantMessage, got.Message)
		})
	}
}

func TestApplyFaultIsolation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	op, reg := newTestOperations(ctx, t)
	reg.AddApp(ctx, "app1")

	dir := writeFiles(t, map[string]string{
		"1-app.json":    `{"metadata":{"name":"app1","labels":{"env":"prod"}},"spec":{"key":"value"}}`,
		"2-broken.json": `{"metadata": {"name": "dev1"`,
		"3-device.yaml": "metadata:\n  name: dev1\n  application: app1\nspec:\n  credentials: {}\n",
		"README.md":     "not a document",
	})

	docs := ReadDocuments([]string{dir}, nil)
	require.Len(t, docs, 3)

	results := op.Apply(ctx, docs)
	require.Len(t, results, 3)
	require.NoError(t, results[0].Err)
	require.Equal(t, "Application app1 updated", results[0].Message)
	requireKind(t, results[1].Err, outcome.KindInvalidInput)
	require.True(t, strings.HasSuffix(results[1].Name, "2-broken.json"))
	require.NoError(t, results[2].Err)
	require.Equal(t, "Device dev1 created", results[2].Message)

	app := testutils.Must1(reg.GetApp(ctx, "app1"))
	require.Equal(t, "prod", app.Metadata.Labels["env"])
	_ = testutils.Must1(reg.GetDevice(ctx, "app1", "dev1"))

	p, _, _ := newTestPrinter()
	require.Equal(t, 1, p.PrintAll(results))
}

func TestApplyMissingApp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	op, reg := newTestOperations(ctx, t)

	stdin := strings.NewReader(`{"metadata":{"name":"dev1","application":"missing-app"}}`)
	results := op.Apply(ctx, ReadDocuments([]string{"-"}, stdin))
	require.Len(t, results, 1)
	require.Equal(t, "<stdin>", results[0].Name)

	err := results[0].Err
	requireKind(t, err, outcome.KindNotFound)
	require.True(t, errors.Is(err, ErrNoOwningApp))
	require.Contains(t, err.Error(), "missing-app")

	require.Equal(t, 0, reg.CountCalls(http.MethodPost, "/api/registry/v1/apps/missing-app/devices"))
	require.Contains(t, reg.Calls(), "GET /api/registry/v1/apps/missing-app", "owning application probed")
}

func TestReadDocuments(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"app.yaml":    "metadata:\n  name: app1\n",
		"noname.json": `{"metadata":{}}`,
	})

	docs := ReadDocuments([]string{filepath.Join(dir, "app.yaml"), filepath.Join(dir, "missing.yaml"), filepath.Join(dir, "noname.json")}, nil)
	require.Len(t, docs, 3)
	require.NoError(t, docs[0].Err)
	require.Equal(t, "app1", docs[0].Resource.Name())
	require.Error(t, docs[1].Err)
	require.Error(t, docs[2].Err)
}

func TestEdit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	op, reg := newTestOperations(ctx, t)
	reg.AddApp(ctx, "app1")
	reg.AddDevice(ctx, "app1", "dev1")

	t.Run("not found", func(t *testing.T) {
		_, err := op.Edit(ctx, Device("app1", "missing"), &Edit{Path: "spec", Fragment: []byte(`{"a":1}`)})
		requireKind(t, err, outcome.KindNotFound)
		require.Equal(t, 0, reg.CountCalls(http.MethodPut, "/api/registry/v1/apps/app1/devices/missing"))
		require.Equal(t, 0, reg.CountCalls(http.MethodPost, "/api/registry/v1/apps/app1/devices"))
	})

	t.Run("merge at path", func(t *testing.T) {
		_, err := op.Edit(ctx, Device("app1", "dev1"), &Edit{Path: "spec.credentials", Fragment: []byte(`{"credentials":[{"pass":"secret"}]}`)})
		require.NoError(t, err)

		_, err = op.Edit(ctx, Device("app1", "dev1"), &Edit{Path: "spec.gatewaySelector", Fragment: []byte("matchNames: [gw1]")})
		require.NoError(t, err)

		dev := testutils.Must1(reg.GetDevice(ctx, "app1", "dev1"))
		require.Contains(t, dev.Spec, "credentials")
		require.Contains(t, dev.Spec, "gatewaySelector")
	})

	t.Run("replace", func(t *testing.T) {
		replace := testutils.Must1(op.Get(ctx, App("app1"))).Data
		replace.Spec = map[string]interface{}{"replaced": true}

		got, err := op.Edit(ctx, App("app1"), &Edit{Replace: replace})
		require.NoError(t, err)
		require.Equal(t, "Application app1 updated", got.Message)

		app := testutils.Must1(reg.GetApp(ctx, "app1"))
		require.Equal(t, map[string]interface{}{"replaced": true}, app.Spec)
	})

	t.Run("editor", func(t *testing.T) {
		_, err := op.Edit(ctx, App("app1"), &Edit{Editor: `sed -i -e 's/replaced: true/replaced: false/'`})
		require.NoError(t, err)

		app := testutils.Must1(reg.GetApp(ctx, "app1"))
		require.Equal(t, false, app.Spec["replaced"])
	})

	t.Run("editor without change", func(t *testing.T) {
		before := reg.CountCalls(http.MethodPut, "/api/registry/v1/apps/app1")

		got, err := op.Edit(ctx, App("app1"), &Edit{Editor: "true"})
		require.NoError(t, err)
		require.Equal(t, "Edit cancelled, no changes made", got.Message)
		require.Equal(t, before, reg.CountCalls(http.MethodPut, "/api/registry/v1/apps/app1"))
	})

	t.Run("rename rejected", func(t *testing.T) {
		_, err := op.Edit(ctx, App("app1"), &Edit{Path: "metadata", Fragment: []byte(`{"name":"other"}`)})
		requireKind(t, err, outcome.KindInvalidInput)
	})
}

func TestLabel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	op, reg := newTestOperations(ctx, t)
	reg.AddApp(ctx, "app1")

	_, err := op.Label(ctx, App("app1"), []string{"env=prod", "team=iot"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"env": "prod", "team": "iot"}, testutils.Must1(reg.GetApp(ctx, "app1")).Metadata.Labels)

	_, err = op.Label(ctx, App("app1"), []string{"team-", "tier=1"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"env": "prod", "tier": "1"}, testutils.Must1(reg.GetApp(ctx, "app1")).Metadata.Labels)

	_, err = op.Label(ctx, App("app1"), []string{"=x"})
	requireKind(t, err, outcome.KindInvalidInput)

	_, err = op.Label(ctx, App("missing"), []string{"a=b"})
	requireKind(t, err, outcome.KindNotFound)
}

func TestLabelPatch(t *testing.T) {
	tests := [...]struct {
		name    string
		labels  []string
		wantErr bool
		want    string
	}{
		{`set`, []string{"env=prod"}, false, `{"env":"prod"}`},
		{`remove`, []string{"team-"}, false, `{"team":null}`},
		{`value ending with dash`, []string{"env=pre-"}, false, `{"env":"pre-"}`},
		{`empty removal key`, []string{"-"}, true, ""},
		{`empty key`, []string{"=x"}, true, ""},
		{`no separator`, []string{"env"}, true, ""},
		{`none`, nil, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := labelPatch(tt.labels)
			require.Truef(t, (err != nil) == tt.wantErr, `labelPatch() failed: error = %+v, wantErr = %v`, err, tt.wantErr)
			if tt.wantErr {
				requireKind(t, err, outcome.KindInvalidInput)
				return
			}
			require.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestConflictIsReported(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	op, reg := newTestOperations(ctx, t)
	reg.AddApp(ctx, "app1")
	reg.InjectConflicts(2)

	_, err := op.Label(ctx, App("app1"), []string{"env=prod"})
	requireKind(t, err, outcome.KindService)
	require.Equal(t, http.StatusConflict, outcome.StatusCode(err))
	require.Equal(t, 1, reg.CountCalls(http.MethodPut, "/api/registry/v1/apps/app1"), "exactly one attempt")

	attempts := 0
	err = retry.New().Backoff(10*time.Millisecond, 1.0).Limit(5).Do(ctx, func() error {
		attempts++
		_, err := op.Label(ctx, App("app1"), []string{"env=prod"})
		if err != nil && outcome.StatusCode(err) != http.StatusConflict {
			t.Fatalf("unexpected error: %+v", err)
		}
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.Equal(t, "prod", testutils.Must1(reg.GetApp(ctx, "app1")).Metadata.Labels["env"])
}

func TestMembers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	op, reg := newTestOperations(ctx, t)
	reg.AddApp(ctx, "app1")

	_, err := op.AddMember(ctx, "app1", "alice", registry.RoleReader)
	require.NoError(t, err)
	_, err = op.AddMember(ctx, "app1", "alice", registry.RoleAdmin)
	require.NoError(t, err)

	members, err := op.ListMembers(ctx, "app1")
	require.NoError(t, err)
	require.Equal(t, registry.RoleAdmin, members.Data.Members["alice"].Role)

	_, err = op.AddMember(ctx, "app1", "bob", registry.Role("owner"))
	requireKind(t, err, outcome.KindInvalidInput)

	_, err = op.DeleteMember(ctx, "app1", "alice")
	require.NoError(t, err)
	_, err = op.DeleteMember(ctx, "app1", "alice")
	requireKind(t, err, outcome.KindNotFound)

	_, err = op.AddMember(ctx, "missing", "alice", registry.RoleReader)
	requireKind(t, err, outcome.KindNotFound)
}

func TestTransferTokensCommand(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	op, reg := newTestOperations(ctx, t)
	reg.AddApp(ctx, "app1")
	reg.AddDevice(ctx, "app1", "dev1")

	_, err := op.TransferInit(ctx, "app1", "bob")
	require.NoError(t, err)
	_, err = op.TransferCancel(ctx, "app1")
	require.NoError(t, err)
	_, err = op.TransferAccept(ctx, "app1")
	requireKind(t, err, outcome.KindNotFound)
	_, err = op.TransferInit(ctx, "missing", "bob")
	requireKind(t, err, outcome.KindNotFound)

	created, err := op.CreateToken(ctx, "ci")
	require.NoError(t, err)
	tokens, err := op.ListTokens(ctx)
	require.NoError(t, err)
	require.Len(t, tokens.Data, 1)
	_, err = op.DeleteToken(ctx, created.Data.Prefix)
	require.NoError(t, err)
	_, err = op.DeleteToken(ctx, created.Data.Prefix)
	requireKind(t, err, outcome.KindNotFound)

	_, err = op.SendCommand(ctx, "app1", "dev1", "reboot", []byte(`{"delay":5}`))
	require.NoError(t, err)
	_, err = op.SendCommand(ctx, "app1", "dev1", "reboot", []byte(`{`))
	requireKind(t, err, outcome.KindInvalidInput)
	_, err = op.SendCommand(ctx, "app1", "missing", "reboot", nil)
	requireKind(t, err, outcome.KindNotFound)
	require.Equal(t, []string{"dev1:reboot"}, reg.Commands())
}

func TestCerts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	op, reg := newTestOperations(ctx, t)
	reg.AddApp(ctx, "app1")
	dir := t.TempDir()

	caCert, caKey := filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key")
	got, err := op.CreateAppCert(ctx, "app1", &CertRequest{Algorithm: "ed25519", CertOutput: caCert, KeyOutput: caKey})
	require.NoError(t, err)
	require.False(t, got.HasData())

	// second anchor is appended
	second, err := op.CreateAppCert(ctx, "app1", &CertRequest{})
	require.NoError(t, err)
	require.True(t, second.HasData())
	require.Contains(t, second.Data.Certificate, "BEGIN CERTIFICATE")
	require.Contains(t, second.Data.PrivateKey, "PRIVATE KEY")

	anchors, err := op.GetAppCert(ctx, "app1")
	require.NoError(t, err)
	require.Len(t, anchors.Data, 2)
	require.Equal(t, string(testutils.Must1(os.ReadFile(caCert))), anchors.Data[0])

	_, err = op.CreateAppCert(ctx, "missing", &CertRequest{})
	requireKind(t, err, outcome.KindNotFound)

	_, err = op.CreateAppCert(ctx, "app1", &CertRequest{Algorithm: "dsa"})
	requireKind(t, err, outcome.KindInvalidInput)

	devCert, err := op.CreateDeviceCert(ctx, "app1", "dev1", caKey, caCert, &CertRequest{Days: 30})
	require.NoError(t, err)

	cert := testutils.Must1(x509x.ParseCertificate([]byte(devCert.Data.Certificate)))
	ca := testutils.Must1(x509x.ParseCertificate([]byte(anchors.Data[0])))
	require.NoError(t, cert.CheckSignatureFrom(ca))
	require.Equal(t, "dev1", cert.Subject.CommonName)
	require.Equal(t, []string{"app1"}, cert.Subject.OrganizationalUnit)

	otherKey := filepath.Join(dir, "other.key")
	require.NoError(t, os.WriteFile(otherKey, []byte(second.Data.PrivateKey), 0o600))
	_, err = op.CreateDeviceCert(ctx, "app1", "dev1", otherKey, caCert, &CertRequest{})
	requireKind(t, err, outcome.KindConfigIssue)
}

func TestStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	op, reg := newTestOperations(ctx, t)
	reg.AddApp(ctx, "app1")
	reg.Events = []string{`{"id":"1"}`, `{"id":"2"}`, `{"id":"3"}`}

	var out bytes.Buffer
	n, err := op.Stream(ctx, "app1", 2, &out)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "{\"id\":\"1\"}\n{\"id\":\"2\"}\n", out.String())

	out.Reset()
	n, err = op.Stream(ctx, "app1", 0, &out)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	_, err = op.Stream(ctx, "missing", 0, &out)
	requireKind(t, err, outcome.KindNotFound)
}

type closeCounter struct{ closed atomic.Int32 }

func (c *closeCounter) Close() error {
	c.closed.Add(1)
	return nil
}

func TestCloseOnDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &closeCounter{}
	stop := closeOnDone(ctx, c)
	stop()
	cancel()
	require.Equal(t, int32(0), c.closed.Load(), "stopped watch never closes")

	ctx, cancel = context.WithCancel(context.Background())
	c = &closeCounter{}
	stop = closeOnDone(ctx, c)
	cancel()
	stop()
	require.Equal(t, int32(1), c.closed.Load())
}

func newTestPrinter() (*outcome.Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return &outcome.Printer{Mode: outcome.ModeText, Out: &out, Err: &errOut}, &out, &errOut
}

func TestContextOperations(t *testing.T) {
	cfg := &config.Config{}
	for _, name := range []string{"a", "b"} {
		cfg.AddOrReplace(&config.Context{Name: name, CloudURL: "https://" + name, Credential: &config.AccessToken{ID: "u", Secret: "t"}})
	}

	list := ListContexts(cfg)
	require.Len(t, list.Data, 2)
	require.True(t, list.Data[0].Active)

	_, err := UseContext(cfg, "c")
	requireKind(t, err, outcome.KindNotFound)

	_, err = UseContext(cfg, "b")
	require.NoError(t, err)

	_, err = RenameContext(cfg, "b", "a")
	requireKind(t, err, outcome.KindInvalidInput)

	_, err = RenameContext(cfg, "b", "prod")
	require.NoError(t, err)
	require.Equal(t, "prod", cfg.ActiveContext)

	got, err := DeleteContext(cfg, "prod")
	require.NoError(t, err)
	require.Equal(t, "Context prod deleted, active context is a", got.Message)

	active, err := ShowContext(cfg, "")
	require.NoError(t, err)
	require.Equal(t, "a", active.Data.Name)

	_, err = SetDefaultAlgo(cfg, active.Data, "dsa")
	requireKind(t, err, outcome.KindInvalidInput)
	got, err = SetDefaultAlgo(cfg, active.Data, "ecdsa-p384")
	require.NoError(t, err)
	require.Equal(t, "Default algorithm of context a set to ECDSA_P384", got.Message)
}
