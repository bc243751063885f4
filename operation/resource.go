package operation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/whitekid/goxp/log"
	"gopkg.in/yaml.v3"

	"drg/client/common"
	"drg/outcome"
	"drg/pkg/helper"
)

type ResourceOutcome = outcome.Outcome[*common.Resource]

// Create create application or device with optional spec
func (o *Operations) Create(ctx context.Context, t *Target, spec map[string]interface{}, labels map[string]string) (*ResourceOutcome, error) {
	svc, err := o.resources(t)
	if err != nil {
		return nil, err
	}

	r := &common.Resource{
		Metadata: common.Metadata{Name: t.Name, Application: t.App, Labels: labels},
		Spec:     spec,
	}
	if err := svc.Create(ctx, r); err != nil {
		return nil, err
	}

	return outcome.WithMessage[*common.Resource]("%s created", t.title()), nil
}

func (o *Operations) Get(ctx context.Context, t *Target) (*ResourceOutcome, error) {
	svc, err := o.resources(t)
	if err != nil {
		return nil, err
	}

	r, err := svc.Get(ctx, t.Name)
	if err != nil {
		if outcome.IsNotFound(err) {
			return nil, t.notFound()
		}
		return nil, err
	}

	return outcome.WithData(r), nil
}

// List list applications, or devices of the application if app is set
func (o *Operations) List(ctx context.Context, kind Kind, app, labels string) (*outcome.Outcome[[]*common.Resource], error) {
	svc, err := o.resources(&Target{Kind: kind, App: app})
	if err != nil {
		return nil, err
	}

	list, err := svc.List(ctx, labels)
	if err != nil {
		return nil, err
	}

	return outcome.WithData(list), nil
}

// Delete delete the resource. With ignoreMissing a missing resource is not an error.
func (o *Operations) Delete(ctx context.Context, t *Target, ignoreMissing bool) (*ResourceOutcome, error) {
	svc, err := o.resources(t)
	if err != nil {
		return nil, err
	}

	if err := svc.Delete(ctx, t.Name); err != nil {
		if !outcome.IsNotFound(err) {
			return nil, err
		}

		if !ignoreMissing {
			return nil, t.notFound()
		}

		return outcome.WithMessage[*common.Resource]("%s not found, nothing to delete", t.title()), nil
	}

	return outcome.WithMessage[*common.Resource]("%s deleted", t.title()), nil
}

// Edit how to change a resource; exactly one of them is used in order of Replace, Fragment, Editor
type Edit struct {
	Replace  *common.Resource
	Path     string // dot separated path where Fragment is merged, e.g. spec.credentials
	Fragment []byte // json or yaml
	Editor   string // editor command
}

// Edit fetch the resource, change it and update. A missing resource is reported, never created.
func (o *Operations) Edit(ctx context.Context, t *Target, edit *Edit) (*ResourceOutcome, error) {
	svc, err := o.resources(t)
	if err != nil {
		return nil, err
	}

	unchanged := false
	modify := func(current *common.Resource) (*common.Resource, error) {
		switch {
		case edit.Replace != nil:
			return replaceResource(current, edit.Replace, t)
		case edit.Fragment != nil:
			return mergeAt(current, edit.Path, edit.Fragment)
		}

		updated, err := editInEditor(ctx, edit.Editor, current)
		if err != nil {
			return nil, err
		}
		unchanged = updated == nil
		return updated, nil
	}

	write := func(ctx context.Context, r *common.Resource) error {
		if r == nil {
			return nil
		}
		return svc.Update(ctx, r)
	}

	get := func(ctx context.Context) (*common.Resource, error) { return svc.Get(ctx, t.Name) }
	if _, err := readModifyWrite(ctx, t.notFound(), get, modify, write); err != nil {
		return nil, err
	}

	if unchanged {
		return outcome.WithMessage[*common.Resource]("Edit cancelled, no changes made"), nil
	}

	return outcome.WithMessage[*common.Resource]("%s updated", t.title()), nil
}

// Label set labels: "key=value" sets, "key-" removes
func (o *Operations) Label(ctx context.Context, t *Target, labels []string) (*ResourceOutcome, error) {
	patch, err := labelPatch(labels)
	if err != nil {
		return nil, err
	}

	return o.Edit(ctx, t, &Edit{Path: "metadata.labels", Fragment: patch})
}

func labelPatch(labels []string) ([]byte, error) {
	if len(labels) == 0 {
		return nil, outcome.InvalidInput("no labels given")
	}

	patch := map[string]interface{}{}
	for _, label := range labels {
		if key, ok := strings.CutSuffix(label, "-"); ok && !strings.Contains(label, "=") {
			if key == "" {
				return nil, outcome.InvalidInput("invalid label %q, must be key=value or key-", label)
			}
			patch[key] = nil
			continue
		}

		key, value, ok := strings.Cut(label, "=")
		if !ok || key == "" {
			return nil, outcome.InvalidInput("invalid label %q, must be key=value or key-", label)
		}
		patch[key] = value
	}

	return json.Marshal(patch)
}

func replaceResource(current, replace *common.Resource, t *Target) (*common.Resource, error) {
	if replace.Metadata.Name != "" && replace.Metadata.Name != t.Name {
		return nil, outcome.InvalidInput("name %q of the document does not match %q", replace.Metadata.Name, t.Name)
	}

	updated := *replace
	updated.Metadata.Name = t.Name
	updated.Metadata.Application = current.Metadata.Application
	if updated.Metadata.ResourceVersion == "" {
		updated.Metadata.ResourceVersion = current.Metadata.ResourceVersion
	}

	return &updated, nil
}

// mergeAt merge fragment into the resource at the path with json merge patch
func mergeAt(current *common.Resource, path string, fragment []byte) (*common.Resource, error) {
	var value interface{}
	if err := yaml.Unmarshal(fragment, &value); err != nil {
		return nil, outcome.InvalidInput("invalid fragment: %s", err)
	}

	if path != "" {
		keys := strings.Split(path, ".")
		for i := len(keys) - 1; i >= 0; i-- {
			value = map[string]interface{}{keys[i]: value}
		}
	}

	patch, err := json.Marshal(value)
	if err != nil {
		return nil, outcome.InvalidInput("invalid fragment: %s", err)
	}

	original, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}

	merged, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return nil, outcome.InvalidInput("fail to merge: %s", err)
	}

	var updated common.Resource
	if err := json.Unmarshal(merged, &updated); err != nil {
		return nil, outcome.InvalidInput("merged document is not a resource: %s", err)
	}

	if updated.Metadata.Name != current.Metadata.Name || updated.Metadata.Application != current.Metadata.Application {
		return nil, outcome.InvalidInput("name and application can not be changed")
	}

	return &updated, nil
}

// editInEditor round trip the resource through the editor; returns nil if nothing changed
func editInEditor(ctx context.Context, editor string, current *common.Resource) (*common.Resource, error) {
	if editor == "" {
		editor = defaultEditor()
	}

	original, err := helper.MarshalYAML(current)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "drg-edit-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	name := filepath.Join(dir, fmt.Sprintf("%s.yaml", current.Name()))
	if err := os.WriteFile(name, original, 0o600); err != nil {
		return nil, err
	}

	if err := helper.Execute(editor, "'"+name+"'").Shell().Interactive().Do(ctx); err != nil {
		return nil, outcome.InvalidInput("editor %q failed: %s", editor, err)
	}

	edited, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}

	if bytes.Equal(original, edited) {
		log.Debugf("%s unchanged", name)
		return nil, nil
	}

	var updated common.Resource
	if err := yaml.Unmarshal(edited, &updated); err != nil {
		return nil, outcome.InvalidInput("invalid document: %s", err)
	}

	if updated.Metadata.Name != current.Metadata.Name {
		return nil, outcome.InvalidInput("name can not be changed")
	}

	return &updated, nil
}

func defaultEditor() string {
	for _, env := range []string{"DRG_EDITOR", "VISUAL", "EDITOR"} {
		if editor := os.Getenv(env); editor != "" {
			return editor
		}
	}

	return "vi"
}
