package domain

// RunStatus is the final state of an experiment-tracker run.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
	RunFailed   RunStatus = "failed"
)

// Image is a logged image file.
type Image struct {
	Path    string `json:"path"`
	Caption string `json:"caption,omitempty"`
}

// Artifact is a named, typed bundle of files submitted to a tracker.
type Artifact struct {
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Files []string `json:"files"`
}

// NewArtifact returns an empty artifact.
func NewArtifact(name, typ string) *Artifact {
	return &Artifact{Name: name, Type: typ}
}

// AddFile attaches a local file to the artifact.
func (a *Artifact) AddFile(path string) {
	a.Files = append(a.Files, path)
}

// RunSpec identifies a tracker run.
type RunSpec struct {
	Project string
	Name    string
	Config  map[string]any
}
