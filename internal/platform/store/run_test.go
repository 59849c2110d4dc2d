package store

import (
	"context"
	"errors"
	"testing"
)

type fakeTxRunner struct {
	fakeRowQuerier
	ctxUser string
	calls   int
	err     error
}

func (f *fakeTxRunner) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	f.calls++
	f.ctxUser, _ = UserID(ctx)
	if f.err != nil {
		return f.err
	}
	return fn(&f.fakeRowQuerier)
}

func TestRunAsUser_StampsUserOnTxContext(t *testing.T) {
	t.Parallel()

	ftx := &fakeTxRunner{}
	var sawUser string
	err := RunAsUser(context.Background(), ftx, "mek-1", func(ctx context.Context, q RowQuerier) error {
		sawUser, _ = UserID(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("RunAsUser err: %v", err)
	}
	if ftx.calls != 1 {
		t.Fatalf("Tx calls = %d want 1", ftx.calls)
	}
	if ftx.ctxUser != "mek-1" || sawUser != "mek-1" {
		t.Fatalf("user id not carried: tx=%q fn=%q", ftx.ctxUser, sawUser)
	}
}

func TestRunAsUser_PropagatesTxError(t *testing.T) {
	t.Parallel()

	want := errors.New("begin failed")
	ftx := &fakeTxRunner{err: want}
	err := RunAsUser(context.Background(), ftx, "mek-1", func(context.Context, RowQuerier) error { return nil })
	if !errors.Is(err, want) {
		t.Fatalf("RunAsUser err = %v want %v", err, want)
	}
}
