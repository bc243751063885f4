package operation

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/whitekid/goxp/log"
	"gopkg.in/yaml.v3"

	"drg/client/common"
	"drg/client/registry"
	"drg/outcome"
	"drg/pkg/helper"
)

var (
	ErrNoOwningApp    = errors.New("owning application does not exist")
	documentExtension = []string{".json", ".yaml", ".yml"}
)

// Document input document of apply
type Document struct {
	Source   string
	Resource *common.Resource
	Err      error // read or parse error
}

// ReadDocuments read documents from files, directories or stdin("-").
// Directories are not traversed recursively. Every input results in one document, even if it is malformed.
func ReadDocuments(paths []string, stdin io.Reader) []*Document {
	var docs []*Document

	for _, path := range paths {
		if path == "-" {
			data, err := io.ReadAll(stdin)
			docs = append(docs, parseDocument("<stdin>", data, err))
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			docs = append(docs, &Document{Source: path, Err: outcome.InvalidInput("%s", err)})
			continue
		}

		if !info.IsDir() {
			data, err := helper.ReadFile(path)
			docs = append(docs, parseDocument(path, data, err))
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			docs = append(docs, &Document{Source: path, Err: outcome.InvalidInput("%s", err)})
			continue
		}

		var names []string
		for _, entry := range entries {
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if entry.Type().IsRegular() && isDocumentExtension(ext) {
				names = append(names, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(names)

		for _, name := range names {
			data, err := helper.ReadFile(name)
			docs = append(docs, parseDocument(name, data, err))
		}
	}

	return docs
}

func isDocumentExtension(ext string) bool {
	for _, e := range documentExtension {
		if ext == e {
			return true
		}
	}
	return false
}

// parseDocument parse json or yaml document
func parseDocument(source string, data []byte, err error) *Document {
	doc := &Document{Source: source}
	if err != nil {
		doc.Err = outcome.InvalidInput("fail to read %s: %s", source, err)
		return doc
	}

	var r common.Resource
	if err := yaml.Unmarshal(data, &r); err != nil {
		doc.Err = outcome.InvalidInput("malformed document %s: %s", source, err)
		return doc
	}

	if err := helper.ValidateStruct(&r); err != nil {
		doc.Err = outcome.InvalidInput("invalid document %s: %s", source, err)
		return doc
	}

	doc.Resource = &r
	return doc
}

type applyAction int

const (
	actionUnresolved applyAction = iota
	actionUpdate
	actionCreate
	actionRejected
)

// Apply create or update resources to match the documents. Every document is processed independently in order.
func (o *Operations) Apply(ctx context.Context, docs []*Document) []*outcome.Result {
	results := make([]*outcome.Result, 0, len(docs))

	for _, doc := range docs {
		result := &outcome.Result{Name: doc.Source}
		if doc.Err != nil {
			result.Err = doc.Err
		} else {
			result.Message, result.Err = o.apply(ctx, doc.Resource)
		}

		if result.Err != nil {
			log.Debugf("apply %s failed: %+v", doc.Source, result.Err)
		}
		results = append(results, result)
	}

	return results
}

func (o *Operations) apply(ctx context.Context, r *common.Resource) (string, error) {
	t := &Target{Kind: KindApp, Name: r.Name()}
	if r.IsDevice() {
		t = Device(r.Metadata.Application, r.Name())
	}

	svc, err := o.resources(t)
	if err != nil {
		return "", err
	}

	action, err := o.resolve(ctx, svc, t)
	if err != nil {
		return "", err
	}

	switch action {
	case actionUpdate:
		if err := svc.Update(ctx, r); err != nil {
			return "", err
		}
		return t.title() + " updated", nil

	case actionCreate:
		if err := svc.Create(ctx, r); err != nil {
			return "", err
		}
		return t.title() + " created", nil
	}

	return "", outcome.NewError(outcome.KindNotFound, errors.Wrapf(ErrNoOwningApp, "application %q of device %q", t.App, t.Name))
}

// resolve probe existence of the target, and its application for a missing device
func (o *Operations) resolve(ctx context.Context, svc *registry.ResourceService, t *Target) (applyAction, error) {
	_, err := svc.Get(ctx, t.Name)
	switch {
	case err == nil:
		return actionUpdate, nil
	case !outcome.IsNotFound(err):
		return actionUnresolved, err
	case t.Kind == KindApp:
		return actionCreate, nil
	}

	if _, err := o.registry().Apps().Get(ctx, t.App); err != nil {
		if outcome.IsNotFound(err) {
			return actionRejected, nil
		}
		return actionUnresolved, err
	}

	return actionCreate, nil
}
