package deadline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCall_Success(t *testing.T) {
	v, err := Call(context.Background(), time.Second, "op", func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("got (%d, %v), want (42, nil)", v, err)
	}
}

func TestCall_Timeout(t *testing.T) {
	_, err := Call(context.Background(), 10*time.Millisecond, "slow op", func(ctx context.Context) (struct{}, error) {
		<-ctx.Done()
		return struct{}{}, ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want it to wrap context.DeadlineExceeded", err)
	}
}

func TestCall_OpaqueErrorAfterDeadline(t *testing.T) {
	// Some SDKs report an expired deadline with their own error type.
	_, err := Call(context.Background(), 10*time.Millisecond, "grpc op", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, errors.New("rpc error: code = DeadlineExceeded")
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestCall_ParentCancelIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Call(ctx, time.Second, "op", func(ctx context.Context) (int, error) {
		return 0, ctx.Err()
	})
	if errors.Is(err, ErrTimeout) {
		t.Error("caller cancellation must not be reported as a timeout")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCall_NoLimit(t *testing.T) {
	_, err := Call(context.Background(), 0, "op", func(ctx context.Context) (int, error) {
		if _, ok := ctx.Deadline(); ok {
			t.Error("zero duration should not set a deadline")
		}
		return 0, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
