package util

import (
	"sync"
	"testing"
	"time"
)

func TestSafeGo_RunsFunction(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	ran := false
	SafeGo(func() {
		ran = true
		wg.Done()
	})
	wg.Wait()
	if !ran {
		t.Error("function did not run")
	}
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})
	SafeGoWithName("panicky", func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not complete")
	}
	// Reaching here without the test process dying means the panic was
	// recovered.
}
