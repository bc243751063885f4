package registry

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
	"github.com/whitekid/goxp/log"

	"drg/client/common"
	"drg/pkg/helper"
)

// ResourceService CRUD of applications or devices
type ResourceService struct {
	client   *Client
	endpoint string
}

func (svc *ResourceService) url(name string) string { return svc.endpoint + "/" + url.PathEscape(name) }

// List list resources; labels is a label selector such as "env=prod,!debug"
func (svc *ResourceService) List(ctx context.Context, labels string) ([]*common.Resource, error) {
	query := url.Values{}
	if labels != "" {
		query.Set("labels", labels)
	}

	var list []*common.Resource
	if err := svc.client.decode(ctx, svc.client.client.Get("%s", withQuery(svc.endpoint, query)), &list); err != nil {
		return nil, err
	}

	return list, nil
}

func (svc *ResourceService) Get(ctx context.Context, name string) (*common.Resource, error) {
	var r common.Resource
	if err := svc.client.decode(ctx, svc.client.client.Get("%s", svc.url(name)), &r); err != nil {
		return nil, err
	}

	return &r, nil
}

func (svc *ResourceService) Create(ctx context.Context, r *common.Resource) error {
	if err := helper.ValidateStruct(r); err != nil {
		return errors.Wrap(err, "invalid resource")
	}

	log.Debugf("create %s: %s", svc.endpoint, r.Name())
	return svc.client.send(ctx, svc.client.client.Post("%s", svc.endpoint).JSON(r))
}

// Update replace the resource; resourceVersion in metadata is checked by the service
func (svc *ResourceService) Update(ctx context.Context, r *common.Resource) error {
	if err := helper.ValidateStruct(r); err != nil {
		return errors.Wrap(err, "invalid resource")
	}

	log.Debugf("update %s: %s@%s", svc.endpoint, r.Name(), r.Metadata.ResourceVersion)
	return svc.client.send(ctx, svc.client.client.Put("%s", svc.url(r.Name())).JSON(r))
}

func (svc *ResourceService) Delete(ctx context.Context, name string) error {
	return svc.client.send(ctx, svc.client.client.Delete("%s", svc.url(name)))
}
