package core

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/signalsfoundry/conjunction-sweep/model"
)

// Batch is the outcome of propagating a list of objects to one instant.
// Positions[k] belongs to objects[Index[k]]; objects that failed are absent
// from Positions and listed in Failures instead.
type Batch struct {
	Instant   time.Time
	States    []model.StateVector
	Positions []Vec3
	Index     []int
	Failures  []*PropagationError
}

// Conjunction is a detected pair expressed in object (catalog) indices with
// the exact distance between the two propagated positions.
type Conjunction struct {
	A, B       int
	DistanceKm float64
}

// WorkerPool propagates many objects to one instant on a fixed number of
// goroutines and waits for all of them before returning.
type WorkerPool struct {
	workers int
}

// NewWorkerPool creates a pool; workers <= 0 means runtime.NumCPU().
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &WorkerPool{workers: workers}
}

// Workers reports the pool size.
func (wp *WorkerPool) Workers() int { return wp.workers }

// Propagate evaluates prop for every object at the same instant. Failures are
// collected per object and never abort the batch. The result is in object
// order regardless of scheduling.
func (wp *WorkerPool) Propagate(prop Propagator, objects []model.TrackedObject, at time.Time) Batch {
	states := make([]model.StateVector, len(objects))
	errs := make([]error, len(objects))

	workers := wp.workers
	if workers > len(objects) {
		workers = len(objects)
	}

	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				states[i], errs[i] = propagateOne(prop, objects[i], at)
			}
		}()
	}
	for i := range objects {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	batch := Batch{
		Instant:   at,
		States:    make([]model.StateVector, 0, len(objects)),
		Positions: make([]Vec3, 0, len(objects)),
		Index:     make([]int, 0, len(objects)),
	}
	for i, err := range errs {
		if err != nil {
			batch.Failures = append(batch.Failures, asPropagationError(objects[i], at, err))
			continue
		}
		batch.States = append(batch.States, states[i])
		batch.Positions = append(batch.Positions, VecOf(states[i].Position))
		batch.Index = append(batch.Index, i)
	}
	return batch
}

// propagateOne shields the pool from a panicking propagator.
func propagateOne(prop Propagator, obj model.TrackedObject, at time.Time) (sv model.StateVector, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("propagator panic: %v", r)
		}
	}()
	sv, err = prop.Propagate(obj, at)
	if err == nil && !VecOf(sv.Position).Finite() {
		err = &PropagationError{
			Designator: obj.Designator,
			Instant:    at,
			Code:       CodeNonFinite,
			Err:        errors.New("non-finite position"),
		}
	}
	return sv, err
}

func asPropagationError(obj model.TrackedObject, at time.Time, err error) *PropagationError {
	var perr *PropagationError
	if errors.As(err, &perr) {
		return perr
	}
	return &PropagationError{
		Designator: obj.Designator,
		Instant:    at,
		Code:       CodeUnclassified,
		Err:        err,
	}
}

// Conjunctions runs det over the batch and maps the resulting pairs back to
// object indices. Distances are recomputed from the propagated positions.
// Fewer than two positions yields nil without invoking the detector.
func (b Batch) Conjunctions(det Detector, thresholdKm float64) []Conjunction {
	if len(b.Positions) < 2 {
		return nil
	}
	pairs := det.Detect(b.Positions, thresholdKm)
	if len(pairs) == 0 {
		return nil
	}
	out := make([]Conjunction, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, Conjunction{
			A:          b.Index[p.I],
			B:          b.Index[p.J],
			DistanceKm: PairDistance(b.States[p.I], b.States[p.J]),
		})
	}
	return out
}
