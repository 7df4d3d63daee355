// Copyright 2025 Hyli
//
// Async proving dispatch. Proving tasks hold immutable snapshots of
// (witness, calldata) and never touch shared wallet state; the host
// fires them and forgets them, and the queue may drop tasks under
// pressure.

package prover

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hyli/wallet-node/pkg/model"
	"github.com/hyli/wallet-node/pkg/smt"
)

var (
	proofsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_proofs_generated_total",
		Help: "Number of transition proofs generated",
	})
	proofsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_proofs_failed_total",
		Help: "Number of transition proving failures",
	})
	proofsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_proofs_dropped_total",
		Help: "Number of proving tasks dropped on a full queue",
	})
)

// Task is one immutable proving job.
type Task struct {
	ID           uuid.UUID
	Witness      []byte
	Calldata     model.Calldata
	PrevRoot     smt.H256
	NextRoot     smt.H256
	InvitePubKey [33]byte
}

// Dispatcher feeds proving tasks to a single worker goroutine.
type Dispatcher struct {
	prover *TransitionProver
	tasks  chan Task
	logger *log.Logger
	wg     sync.WaitGroup
	cancel context.CancelFunc

	// OnProof, when set, receives every generated proof. The node does
	// not set it, so generated proofs are only counted and logged.
	OnProof func(*TransitionProof)
}

// NewDispatcher builds a dispatcher with a bounded queue.
func NewDispatcher(prover *TransitionProver, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		prover: prover,
		tasks:  make(chan Task, queueSize),
		logger: log.New(log.Writer(), "[Prover] ", log.LstdFlags),
	}
}

// Start launches the worker.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.run(ctx)
}

// Stop cancels the worker and waits for it to exit. Tasks still in the
// queue are not proved.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

// Submit enqueues a task without blocking; tasks are dropped when the
// queue is full.
func (d *Dispatcher) Submit(task Task) {
	select {
	case d.tasks <- task:
	default:
		proofsDropped.Inc()
		d.logger.Printf("Proving queue full, dropped task %s", task.ID)
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-d.tasks:
			d.process(task)
		}
	}
}

func (d *Dispatcher) process(task Task) {
	proof, err := d.prover.ProveTransition(task.ID, task.PrevRoot, task.NextRoot, task.InvitePubKey)
	if err != nil {
		proofsFailed.Inc()
		d.logger.Printf("Failed to prove task %s: %v", task.ID, err)
		return
	}
	proofsGenerated.Inc()
	d.logger.Printf("Proved transition %s", task.ID)
	if d.OnProof != nil {
		d.OnProof(proof)
	}
}
