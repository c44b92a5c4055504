package credstore

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	probeNamespace = "ssh-manager-test"
	probeAccount   = "testuser"
	probeValue     = "testpass123"
)

// Deleter is implemented by stores that can remove an entry.
type Deleter interface {
	Delete(namespace, account string) error
}

// ProbeStep is one line of a store self-test.
type ProbeStep struct {
	Name string
	Err  error
}

func (s ProbeStep) String() string {
	if s.Err != nil {
		return fmt.Sprintf("FAIL %s: %v", s.Name, s.Err)
	}
	return "ok   " + s.Name
}

// Probe writes, reads back and deletes a throwaway entry under a test
// namespace. It stops at the first failed write or read.
func Probe(s Store) []ProbeStep {
	var steps []ProbeStep

	if err := s.SetOpaque(probeNamespace, probeAccount, probeValue); err != nil {
		return append(steps, ProbeStep{Name: "store test value", Err: err})
	}
	steps = append(steps, ProbeStep{Name: "store test value"})

	v, found, err := s.GetOpaque(probeNamespace, probeAccount)
	switch {
	case err != nil:
		return append(steps, ProbeStep{Name: "read test value", Err: err})
	case !found:
		return append(steps, ProbeStep{Name: "read test value", Err: errors.New("value missing after write")})
	case v != probeValue:
		return append(steps, ProbeStep{Name: "read test value", Err: errors.New("value mismatch after write")})
	}
	steps = append(steps, ProbeStep{Name: "read test value"})

	if d, ok := s.(Deleter); ok {
		steps = append(steps, ProbeStep{Name: "remove test value", Err: d.Delete(probeNamespace, probeAccount)})
	}
	return steps
}

// ProbeOK reports whether every step succeeded.
func ProbeOK(steps []ProbeStep) bool {
	for _, s := range steps {
		if s.Err != nil {
			return false
		}
	}
	return len(steps) > 0
}
