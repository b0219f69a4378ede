package events_test

import (
	"testing"

	"github.com/blockj/node/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Events(t *testing.T) {
	t.Log("Given the need to fan out events to registered receivers.")
	{
		evts := events.New(2)

		a := evts.Acquire("a")
		b := evts.Acquire("b")

		if evts.Acquire("a") != a {
			t.Fatalf("\t%s\tShould get the same channel for the same id.", failed)
		}
		t.Logf("\t%s\tShould get the same channel for the same id.", success)

		evts.Send("one")
		evts.Send("two")
		evts.Send("three")

		for _, ch := range []<-chan string{a, b} {
			if got := len(ch); got != 2 {
				t.Fatalf("\t%s\tShould hold only the buffered events: got %d", failed, got)
			}
			if got := <-ch; got != "one" {
				t.Fatalf("\t%s\tShould receive the events in order: got %q", failed, got)
			}
		}
		t.Logf("\t%s\tShould buffer events per receiver and drop the overflow.", success)

		if err := evts.Release("a"); err != nil {
			t.Fatalf("\t%s\tShould be able to release a receiver: %v", failed, err)
		}
		if err := evts.Release("a"); err == nil {
			t.Fatalf("\t%s\tShould not be able to release a receiver twice.", failed)
		}
		t.Logf("\t%s\tShould be able to release a receiver once.", success)

		evts.Shutdown()
		if evts.Count() != 0 {
			t.Fatalf("\t%s\tShould have no receivers after shutdown.", failed)
		}
		for range b {
		}
		if _, ok := <-evts.Acquire("c"); ok {
			t.Fatalf("\t%s\tShould get a closed channel after shutdown.", failed)
		}
		t.Logf("\t%s\tShould close every receiver on shutdown.", success)
	}
}
