package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Metrics is the evaluation result reported by the model collaborator.
type Metrics map[string]float64

// Keys returns metric names sorted.
func (m Metrics) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m Metrics) String() string {
	var b strings.Builder
	for i, k := range m.Keys() {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %.5g", k, m[k])
	}
	return b.String()
}
