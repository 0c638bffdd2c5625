package transport

import (
	"net"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"
)

// connTaskChanSize bounds how many accepted connections may wait for a free
// worker before Accept itself starts blocking (spec.md's transport is not
// on the hot path, so a little backpressure here is fine).
const connTaskChanSize = 128

// connHandler processes one connection to completion (or until t.Dying).
type connHandler = func(t *tomb.Tomb, conn net.Conn) error

// connPool is a fixed-size worker pool over accepted connections, grounded
// on the teacher's (saiputravu-Exchange) internal/worker.go WorkerPool,
// narrowed from a generic any-task channel to net.Conn and from a single
// shared work function passed at Setup time to one bound at construction.
type connPool struct {
	n     int
	tasks chan net.Conn
	work  connHandler
	log   zerolog.Logger
}

func newConnPool(size int, work connHandler, log zerolog.Logger) *connPool {
	return &connPool{
		n:     size,
		tasks: make(chan net.Conn, connTaskChanSize),
		work:  work,
		log:   log,
	}
}

// AddTask queues a connection for an available worker. Blocks if the
// worker pool's task channel is full.
func (p *connPool) AddTask(conn net.Conn) {
	p.tasks <- conn
}

// Run starts n workers, each reading one connection at a time from tasks
// until t.Dying fires.
func (p *connPool) Run(t *tomb.Tomb) {
	for i := 0; i < p.n; i++ {
		t.Go(func() error { return p.worker(t) })
	}
}

func (p *connPool) worker(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case conn := <-p.tasks:
			if err := p.work(t, conn); err != nil {
				p.log.Error().Err(err).Msg("connection worker exiting on error")
			}
		}
	}
}
