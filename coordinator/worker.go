// seehuhn.de/go/pagekit - page-level editing and export of PDF documents
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"seehuhn.de/go/pagekit/render"
)

// errTerminated is returned when a request is posted to a stopped worker.
var errTerminated = errors.New("worker terminated")

// A Worker executes requests in the background.
//
// Post hands a request to the worker.  It must not wait for the request to
// be processed.  The response is delivered on the channel given to the
// [WorkerFactory].  Terminate stops the worker; requests in progress are
// abandoned.
type Worker interface {
	Post(ctx context.Context, req *Request) error
	Terminate()
}

// WorkerFactory creates a worker which sends its responses to the given
// channel.
type WorkerFactory func(responses chan<- *Response) (Worker, error)

// GoroutineWorkers returns a WorkerFactory for workers running in a
// goroutine.  Each worker owns a separate renderer, created with the given
// options, and therefore a separate document cache.
func GoroutineWorkers(log logrus.FieldLogger, opts ...render.Option) WorkerFactory {
	return func(responses chan<- *Response) (Worker, error) {
		w := &goroutineWorker{
			requests:  make(chan *Request, 16),
			done:      make(chan struct{}),
			responses: responses,
			log:       log,
		}
		go w.run(render.New(opts...))
		return w, nil
	}
}

type goroutineWorker struct {
	requests  chan *Request
	done      chan struct{}
	once      sync.Once
	responses chan<- *Response
	log       logrus.FieldLogger
}

func (w *goroutineWorker) Post(ctx context.Context, req *Request) error {
	select {
	case <-w.done:
		return errTerminated
	default:
	}

	select {
	case w.requests <- req:
		return nil
	case <-w.done:
		return errTerminated
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *goroutineWorker) Terminate() {
	w.once.Do(func() {
		close(w.done)
	})
}

func (w *goroutineWorker) run(r *render.Renderer) {
	// the worker has its own context, requests are never cancelled
	// mid-flight
	ctx := context.Background()
	for {
		var req *Request
		select {
		case req = <-w.requests:
		case <-w.done:
			return
		}

		resp := w.execute(ctx, r, req)
		select {
		case w.responses <- resp:
		case <-w.done:
			resp.release()
			return
		}
	}
}

func (w *goroutineWorker) execute(ctx context.Context, r *render.Renderer, req *Request) (resp *Response) {
	defer func() {
		if p := recover(); p != nil {
			w.log.WithFields(logrus.Fields{
				"id":    req.ID,
				"kind":  req.Kind,
				"panic": p,
			}).Error("worker crashed")
			resp = &Response{ID: req.ID, Err: fmt.Errorf("%w: %v", ErrWorkerFailed, p)}
		}
	}()
	return Execute(ctx, r, req)
}
