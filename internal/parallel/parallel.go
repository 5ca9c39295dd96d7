/*
Copyright The Modrepo Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package parallel provides a bounded, order-preserving concurrent mapper.
//
// The repository fan-out and the per-repository release fan-out both run
// through Map with independent limits, so the total number of in-flight
// archive probes never exceeds the product of the two caps.
package parallel

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Map applies fn to every element of in, running at most limit invocations
// concurrently, and returns a slice whose i-th element is the result of
// fn over in[i] regardless of completion order.
//
// An error returned by fn cancels the group context and is returned to the
// caller; partial results are discarded. Callers that must tolerate
// per-element failures return them as values instead.
func Map[T, R any](ctx context.Context, limit int, in []T, fn func(ctx context.Context, i int, v T) (R, error)) ([]R, error) {
	if limit < 1 {
		return nil, errors.Errorf("concurrency limit must be positive, got %d", limit)
	}

	out := make([]R, len(in))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, v := range in {
		i, v := i, v
		g.Go(func() error {
			r, err := fn(ctx, i, v)
			if err != nil {
				return err
			}
			// Each goroutine owns exactly its slot, so no lock is needed.
			out[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
