package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// echoWorker replies to every request with the tool name as content.
func echoWorker(ep *Endpoint, delay time.Duration) {
	for {
		select {
		case <-ep.Done():
			return
		case env := <-ep.Requests():
			time.Sleep(delay)
			req := env.Request()
			env.Reply(CallResponse{ID: req.ID, Status: StatusSuccess, Content: req.Tool})
		}
	}
}

func TestRouter_CallRoundTrip(t *testing.T) {
	r := NewRouter(time.Second)
	ep, err := r.Bind("a")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	go echoWorker(ep, 0)
	defer r.Close()

	resp := r.Call(context.Background(), "a", CallRequest{Tool: "ping"})
	if !resp.OK() || resp.Content != "ping" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.ID == "" {
		t.Fatal("expected generated correlation id")
	}
	if ep.Address != "inproc://mcp/a" {
		t.Errorf("address = %s", ep.Address)
	}
}

func TestRouter_BindTwiceFails(t *testing.T) {
	r := NewRouter(time.Second)
	if _, err := r.Bind("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Bind("a"); err == nil {
		t.Fatal("expected error binding twice")
	}
}

func TestRouter_UnknownServer(t *testing.T) {
	r := NewRouter(time.Second)
	resp := r.Call(context.Background(), "nobody", CallRequest{Tool: "x"})
	if resp.OK() || !errors.Is(resp.Err, ErrServerUnavailable) {
		t.Fatalf("resp = %+v", resp)
	}
	var rerr *RoutingError
	if !errors.As(resp.Err, &rerr) {
		t.Fatalf("err = %T, want *RoutingError", resp.Err)
	}
}

func TestRouter_Timeout(t *testing.T) {
	r := NewRouter(30 * time.Millisecond)
	ep, _ := r.Bind("slow")
	go echoWorker(ep, 200*time.Millisecond)
	defer r.Close()

	start := time.Now()
	resp := r.Call(context.Background(), "slow", CallRequest{Tool: "x"})
	if !errors.Is(resp.Err, ErrCallTimeout) {
		t.Fatalf("err = %v, want timeout", resp.Err)
	}
	if time.Since(start) > 150*time.Millisecond {
		t.Fatalf("call did not honour timeout")
	}
}

func TestRouter_CallerCancellation(t *testing.T) {
	r := NewRouter(time.Second)
	ep, _ := r.Bind("slow")
	go echoWorker(ep, 200*time.Millisecond)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	resp := r.Call(ctx, "slow", CallRequest{Tool: "x"})
	if !errors.Is(resp.Err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", resp.Err)
	}
}

func TestRouter_StaleResponse(t *testing.T) {
	r := NewRouter(time.Second)
	ep, _ := r.Bind("a")
	go func() {
		env := <-ep.Requests()
		env.Reply(CallResponse{ID: "someone-else", Status: StatusSuccess})
	}()
	resp := r.Call(context.Background(), "a", CallRequest{Tool: "x"})
	if !errors.Is(resp.Err, ErrStaleResponse) {
		t.Fatalf("err = %v, want stale", resp.Err)
	}
}

func TestRouter_UnbindWakesWaiters(t *testing.T) {
	r := NewRouter(5 * time.Second)
	ep, _ := r.Bind("a")
	go func() {
		<-ep.Requests()
		r.Unbind("a")
	}()
	resp := r.Call(context.Background(), "a", CallRequest{Tool: "x"})
	if !errors.Is(resp.Err, ErrServerUnavailable) {
		t.Fatalf("err = %v, want unavailable", resp.Err)
	}
	if r.Bound("a") {
		t.Fatal("endpoint still bound")
	}
}

func TestRouter_PerServerOrdering(t *testing.T) {
	r := NewRouter(5 * time.Second)
	ep, _ := r.Bind("a")
	var mu sync.Mutex
	var served []string
	var inFlight, maxInFlight int
	go func() {
		for env := range ep.Requests() {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			served = append(served, env.Request().Tool)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			env.Reply(CallResponse{ID: env.Request().ID, Status: StatusSuccess})
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := r.Call(context.Background(), "a", CallRequest{Tool: fmt.Sprintf("t%d", i)})
			if !resp.OK() {
				t.Errorf("call %d: %v", i, resp.Err)
			}
		}()
	}
	wg.Wait()
	if len(served) != 10 {
		t.Fatalf("served %d requests, want 10", len(served))
	}
	if maxInFlight != 1 {
		t.Fatalf("worker handled %d requests at once", maxInFlight)
	}
}
