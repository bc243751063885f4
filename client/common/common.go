package common

// Metadata common metadata of registry resources
type Metadata struct {
	Name              string            `json:"name" yaml:"name" validate:"required"`
	Application       string            `json:"application,omitempty" yaml:"application,omitempty"`
	UID               string            `json:"uid,omitempty" yaml:"uid,omitempty"`
	CreationTimestamp *Timestamp        `json:"creationTimestamp,omitempty" yaml:"creationTimestamp,omitempty"`
	ResourceVersion   string            `json:"resourceVersion,omitempty" yaml:"resourceVersion,omitempty"`
	Generation        int64             `json:"generation,omitempty" yaml:"generation,omitempty"`
	DeletionTimestamp *Timestamp        `json:"deletionTimestamp,omitempty" yaml:"deletionTimestamp,omitempty"`
	Finalizers        []string          `json:"finalizers,omitempty" yaml:"finalizers,omitempty"`
	Labels            map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Annotations       map[string]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// Resource application or device document; spec and status are free form
type Resource struct {
	Metadata Metadata               `json:"metadata" yaml:"metadata"`
	Spec     map[string]interface{} `json:"spec,omitempty" yaml:"spec,omitempty"`
	Status   map[string]interface{} `json:"status,omitempty" yaml:"status,omitempty"`
}

func (r *Resource) Name() string { return r.Metadata.Name }

// IsDevice returns true if the resource belongs to an application
func (r *Resource) IsDevice() bool { return r.Metadata.Application != "" }
