package bus

import (
	"context"
	"testing"
	"time"

	"marketpulse/internal/model"
)

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New(10)
	out1 := fo.Subscribe()
	out2 := fo.Subscribe()

	input := make(chan *model.SignalRecord, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	input <- &model.SignalRecord{AssetID: "bitcoin", Score: 72, Signal: model.SignalBuy}

	select {
	case r := <-out1:
		if r.AssetID != "bitcoin" {
			t.Errorf("out1: expected bitcoin, got %s", r.AssetID)
		}
	case <-time.After(time.Second):
		t.Fatal("out1: timed out waiting for record")
	}

	select {
	case r := <-out2:
		if r.AssetID != "bitcoin" {
			t.Errorf("out2: expected bitcoin, got %s", r.AssetID)
		}
	case <-time.After(time.Second):
		t.Fatal("out2: timed out waiting for record")
	}
}

func TestFanOut_DropsForSlowSubscriber(t *testing.T) {
	fo := New(1)
	slow := fo.Subscribe()
	_ = slow // never drained

	dropped := make(chan int, 4)
	fo.OnDrop = func(idx int) { dropped <- idx }

	input := make(chan *model.SignalRecord, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	input <- &model.SignalRecord{AssetID: "a"}
	input <- &model.SignalRecord{AssetID: "b"} // slow buffer (cap 1) now full

	select {
	case idx := <-dropped:
		if idx != 0 {
			t.Errorf("expected drop on subscriber 0, got %d", idx)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a drop callback for the saturated subscriber")
	}
}

func TestFanOut_ClosesOutputsWhenInputCloses(t *testing.T) {
	fo := New(1)
	out := fo.Subscribe()

	input := make(chan *model.SignalRecord)
	go fo.Run(context.Background(), input)
	close(input)

	select {
	case _, ok := <-out:
		if ok {
			t.Fatal("expected closed output channel")
		}
	case <-time.After(time.Second):
		t.Fatal("output channel never closed")
	}
}
