package domain

// Parameter is one tensor of a model's parameter set.
type Parameter struct {
	Name      string `json:"name"`
	Numel     int64  `json:"numel"`
	Trainable bool   `json:"trainable"`
}

// ParamCount is the size of a parameter set. Trainable never exceeds Total.
type ParamCount struct {
	Total     int64
	Trainable int64
}

// Frozen is the number of parameters excluded from training.
func (c ParamCount) Frozen() int64 {
	return c.Total - c.Trainable
}

// CountParameters sums element counts over params.
func CountParameters(params []Parameter) ParamCount {
	var c ParamCount
	for _, p := range params {
		c.Total += p.Numel
		if p.Trainable {
			c.Trainable += p.Numel
		}
	}
	return c
}

// ModelInfo is the summary a model collaborator reports after construction.
type ModelInfo struct {
	Layers     int   `json:"layers"`
	Parameters int64 `json:"parameters"`
	Gradients  int64 `json:"gradients"`
}
