package reactor

import (
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestReadAsyncDeliversInOrder(t *testing.T) {
	r := New()
	var sb strings.Builder
	for i := 0; sb.Len() < 100000; i++ {
		sb.WriteString(strconv.Itoa(i))
		sb.WriteByte(' ')
	}
	want := sb.String()[:100000]
	rdr := strings.NewReader(want)
	var mu sync.Mutex
	var got []byte
	var eof bool
	r.ReadAsync(rdr, func(buf []byte, err error) {
		mu.Lock()
		defer mu.Unlock()
		if buf != nil {
			got = append(got, buf...)
		}
		if err != nil {
			eof = err == io.EOF
		}
	})
	r.Run()
	if len(got) != 100000 {
		t.Fatalf("total = %d, want 100000", len(got))
	}
	if string(got) != want {
		t.Fatal("chunks were not delivered in arrival order")
	}
	if !eof {
		t.Fatal("expected EOF observed")
	}
}

func TestRegisterProcessCompletes(t *testing.T) {
	r := New()
	called := false
	r.RegisterProcess(func() (error, bool) {
		time.Sleep(10 * time.Millisecond)
		return nil, false
	}, func(err error, hit bool) {
		called = true
		if err != nil || hit {
			t.Fatalf("unexpected err=%v hit=%v", err, hit)
		}
	})
	r.Run()
	if !called {
		t.Fatal("callback never invoked")
	}
}

func TestStopEndsRunEarly(t *testing.T) {
	r := New()
	r.begin() // simulate outstanding work that never completes
	done := make(chan struct{})
	go func() {
		r.Run()
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	r.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestRunReturnsImmediatelyWithNoWork(t *testing.T) {
	r := New()
	done := make(chan struct{})
	go func() {
		r.Run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return with zero outstanding work")
	}
}
