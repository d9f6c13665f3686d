package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	calls    *[]string
	name     string
	failWith error
}

func (r recorder) Shutdown(ctx context.Context) error {
	*r.calls = append(*r.calls, r.name)
	return r.failWith
}

func (r recorder) Close() error {
	*r.calls = append(*r.calls, r.name)
	return r.failWith
}

func TestDrainThenClose_ClosesStoreAfterServer(t *testing.T) {
	var calls []string
	op := drainThenClose(recorder{calls: &calls, name: "server"}, recorder{calls: &calls, name: "store"})

	assert.NoError(t, op(context.Background()))
	assert.Equal(t, []string{"server", "store"}, calls)
}

func TestDrainThenClose_ClosesStoreWhenDrainFails(t *testing.T) {
	var calls []string
	closeErr := errors.New("close failed")
	op := drainThenClose(
		recorder{calls: &calls, name: "server", failWith: context.DeadlineExceeded},
		recorder{calls: &calls, name: "store", failWith: closeErr},
	)

	assert.ErrorIs(t, op(context.Background()), closeErr)
	assert.Equal(t, []string{"server", "store"}, calls)
}
