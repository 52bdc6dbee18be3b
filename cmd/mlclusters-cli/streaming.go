package main

import (
	"fmt"
	"math/rand"

	"github.com/therealutkarshpriyadarshi/vector/internal/clustering"
)

// sliceStream adapts an in-memory instance slice (loaded from the local
// CSV) to the StreamingSource contract (§6), the way train-minibatch
// exercises TrainMiniBatch without a genuinely external data store.
type sliceStream struct {
	instances []clustering.Instance
	pos       int
	open      bool
}

func newSliceStream(instances []clustering.Instance) *sliceStream {
	return &sliceStream{instances: instances}
}

func (s *sliceStream) OpenForRead() error {
	if s.open {
		return fmt.Errorf("mlclusters-cli: stream already open")
	}
	s.pos = 0
	s.open = true
	return nil
}

func (s *sliceStream) ReadOne() (clustering.Instance, bool, error) {
	if !s.open {
		return clustering.Instance{}, false, fmt.Errorf("mlclusters-cli: stream not open")
	}
	if s.pos >= len(s.instances) {
		return clustering.Instance{}, false, nil
	}
	inst := s.instances[s.pos]
	s.pos++
	return inst, true, nil
}

func (s *sliceStream) Close() error {
	s.open = false
	return nil
}

func (s *sliceStream) Sample(percent float64, seed int64) ([]clustering.Instance, error) {
	if percent <= 0 || percent > 1 {
		return nil, fmt.Errorf("mlclusters-cli: sample percent %f out of (0,1]", percent)
	}
	n := int(float64(len(s.instances)) * percent)
	if n < 1 {
		n = 1
	}
	if n > len(s.instances) {
		n = len(s.instances)
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(s.instances))
	out := make([]clustering.Instance, n)
	for i := 0; i < n; i++ {
		out[i] = s.instances[perm[i]]
	}
	return out, nil
}
