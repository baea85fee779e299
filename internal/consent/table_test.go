package consent

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const origin = "https://dapp.example"

type awaitResult struct {
	d   Decision
	err error
}

func awaitAsync(ctx context.Context, tbl *Table, origin string) <-chan awaitResult {
	ch := make(chan awaitResult, 1)
	go func() {
		d, err := tbl.Await(ctx, origin)
		ch <- awaitResult{d, err}
	}()
	return ch
}

func waitPending(t *testing.T, tbl *Table, origin string) {
	t.Helper()
	require.Eventually(t, func() bool { return tbl.Pending(origin) }, time.Second, time.Millisecond)
}

func TestResolveWakesWaiter(t *testing.T) {
	tbl := NewTable()
	res := awaitAsync(context.Background(), tbl, origin)
	waitPending(t, tbl, origin)

	assert.True(t, tbl.Resolve(origin, DecisionGranted))

	select {
	case r := <-res:
		require.NoError(t, r.err)
		assert.Equal(t, DecisionGranted, r.d)
	case <-time.After(time.Second):
		t.Fatal("waiter not resolved")
	}
	assert.Equal(t, 0, tbl.Len())
}

func TestResolveWithoutWaiter(t *testing.T) {
	tbl := NewTable()
	assert.False(t, tbl.Resolve(origin, DecisionGranted))
}

func TestSecondAwaitSupersedesFirst(t *testing.T) {
	tbl := NewTable()

	first := awaitAsync(context.Background(), tbl, origin)
	waitPending(t, tbl, origin)

	second := awaitAsync(context.Background(), tbl, origin)

	select {
	case r := <-first:
		assert.True(t, errors.Is(r.err, ErrSuperseded))
	case <-time.After(time.Second):
		t.Fatal("first waiter not displaced")
	}

	waitPending(t, tbl, origin)
	assert.Equal(t, 1, tbl.Len())
	assert.True(t, tbl.Resolve(origin, DecisionDenied))

	r := <-second
	require.NoError(t, r.err)
	assert.Equal(t, DecisionDenied, r.d)

	// one resolver only
	assert.False(t, tbl.Resolve(origin, DecisionGranted))
}

func TestOriginsAreIndependent(t *testing.T) {
	tbl := NewTable()
	a := awaitAsync(context.Background(), tbl, "https://a.example")
	b := awaitAsync(context.Background(), tbl, "https://b.example")
	waitPending(t, tbl, "https://a.example")
	waitPending(t, tbl, "https://b.example")
	assert.Equal(t, 2, tbl.Len())

	tbl.Resolve("https://b.example", DecisionGranted)
	assert.Equal(t, DecisionGranted, (<-b).d)
	assert.True(t, tbl.Pending("https://a.example"))

	tbl.Resolve("https://a.example", DecisionDenied)
	assert.Equal(t, DecisionDenied, (<-a).d)
}

func TestCancelRemovesEntry(t *testing.T) {
	tbl := NewTable()
	ctx, cancel := context.WithCancel(context.Background())

	res := awaitAsync(ctx, tbl, origin)
	waitPending(t, tbl, origin)
	cancel()

	r := <-res
	assert.ErrorIs(t, r.err, context.Canceled)
	assert.False(t, tbl.Pending(origin))
	assert.False(t, tbl.Resolve(origin, DecisionGranted))
}

func TestCancelledWaiterDoesNotRemoveSuccessor(t *testing.T) {
	tbl := NewTable()
	ctx, cancel := context.WithCancel(context.Background())

	first := awaitAsync(ctx, tbl, origin)
	waitPending(t, tbl, origin)
	second := awaitAsync(context.Background(), tbl, origin)

	assert.True(t, errors.Is((<-first).err, ErrSuperseded))
	cancel()

	waitPending(t, tbl, origin)
	tbl.Resolve(origin, DecisionGranted)
	assert.Equal(t, DecisionGranted, (<-second).d)
}

func TestResolveBeforeAwaitIsKept(t *testing.T) {
	tbl := NewTable()
	w := tbl.Register(origin)

	require.True(t, tbl.Resolve(origin, DecisionGranted))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d, err := w.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, DecisionGranted, d)
	assert.Equal(t, 0, tbl.Len())
}

func TestCancelAfterRegister(t *testing.T) {
	tbl := NewTable()
	w := tbl.Register(origin)
	next := tbl.Register(origin)

	// the displaced wait must not remove its successor
	w.Cancel()
	assert.True(t, tbl.Pending(origin))

	d, err := w.Await(context.Background())
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.Equal(t, DecisionDenied, d)

	next.Cancel()
	assert.False(t, tbl.Pending(origin))
	assert.False(t, tbl.Resolve(origin, DecisionGranted))
}
