package domain

import "fmt"

// DatasetRef identifies one dataset version on the hosting service.
type DatasetRef struct {
	APIKey    string
	Workspace string
	Project   string
	Version   int
	Format    string
	// Location is the directory datasets are extracted under.
	Location string
}

// Dataset is the opaque handle returned once a dataset is on local storage.
type Dataset struct {
	Name     string
	Version  int
	Format   string
	Location string
}

// String omits the API key.
func (r DatasetRef) String() string {
	return fmt.Sprintf("%s/%s/%d (%s)", r.Workspace, r.Project, r.Version, r.Format)
}
