package inventory

import "time"

// Application is a deployable system that owns resources.
type Application struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Owner         string    `json:"owner"`
	Environment   string    `json:"environment"`
	Criticality   string    `json:"criticality"`
	Tags          []string  `json:"tags"`
	Description   string    `json:"description,omitempty"`
	ResourceCount int       `json:"resourceCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (a Application) Key() int64 { return a.ID }

func (a Application) WithKey(id int64) Application {
	a.ID = id
	return a
}

// ResourceStatus is the operational state of a resource.
type ResourceStatus string

const (
	ResourceActive      ResourceStatus = "active"
	ResourceInactive    ResourceStatus = "inactive"
	ResourceMaintenance ResourceStatus = "maintenance"
)

// Resource is an individual host, container, or database that access
// requests target.
type Resource struct {
	ID            int64          `json:"id"`
	ApplicationID int64          `json:"applicationId"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Environment   string         `json:"environment"`
	Host          string         `json:"host"`
	Tags          []string       `json:"tags"`
	Status        ResourceStatus `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
}

func (r Resource) Key() int64 { return r.ID }

func (r Resource) WithKey(id int64) Resource {
	r.ID = id
	return r
}
