package mailbox

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestOrder(t *testing.T) {
	is := is.New(t)
	m := New[int]()
	defer m.Close()

	for i := range 100 {
		is.True(m.Put(i)) // never blocks
	}
	for i := range 100 {
		select {
		case v := <-m.Out():
			is.Equal(v, i)
		case <-time.After(time.Second):
			t.Fatalf("value %d not delivered", i)
		}
	}
}

func TestClose(t *testing.T) {
	is := is.New(t)
	m := New[string]()
	m.Put("a")
	m.Close()
	m.Close() // idempotent

	is.True(!m.Put("b"))

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-m.Out():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("out channel not closed")
		}
	}
}
