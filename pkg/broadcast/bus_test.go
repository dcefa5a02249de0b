package broadcast

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/0xArtex/excalidraw-mcp/pkg/canvas"
	"github.com/0xArtex/excalidraw-mcp/pkg/idgen"
	"github.com/0xArtex/excalidraw-mcp/pkg/stores"
)

// recorder is an Observer that keeps every accepted event, with an optional
// acceptance cap to simulate a slow client.
type recorder struct {
	events []Event
	cap    int
}

func (r *recorder) Send(evt Event) bool {
	if r.cap > 0 && len(r.events) >= r.cap {
		return false
	}
	r.events = append(r.events, evt)
	return true
}

func populatedSession(n int) *stores.Session {
	registry := stores.NewRegistry(idgen.New())
	session := registry.Create("bus-test")
	types := canvas.NewTypeSet(nil)
	for i := 0; i < n; i++ {
		x := float64(i)
		if _, err := session.CreateElement(&canvas.CreateRequest{
			Type: canvas.TypeRectangle, X: &x, Y: &x,
		}, types); err != nil {
			panic(err)
		}
	}
	return session
}

func TestBusAttachPreamble(t *testing.T) {
	Convey("Given a session holding three elements", t, func() {
		session := populatedSession(3)
		bus := NewBus()
		obs := &recorder{}

		Convey("When an observer attaches", func() {
			bus.Attach(session, obs)

			Convey("It receives exactly the three preamble events in order", func() {
				So(len(obs.events), ShouldEqual, 3)
				So(obs.events[0].Type, ShouldEqual, EventSessionInfo)
				So(obs.events[1].Type, ShouldEqual, EventInitialElements)
				So(obs.events[2].Type, ShouldEqual, EventSyncStatus)
			})

			Convey("The session identity event carries id and creation time", func() {
				So(obs.events[0].SessionID, ShouldEqual, "bus-test")
				So(obs.events[0].CreatedAt, ShouldNotBeNil)
			})

			Convey("The snapshot event carries every stored element", func() {
				So(len(obs.events[1].Elements), ShouldEqual, 3)
			})

			Convey("The status event carries the element count", func() {
				So(obs.events[2].Count, ShouldNotBeNil)
				So(*obs.events[2].Count, ShouldEqual, 3)
			})

			Convey("The observer is now counted as attached", func() {
				So(bus.ObserverCount(), ShouldEqual, 1)
				So(bus.SessionObserverCount("bus-test"), ShouldEqual, 1)
			})
		})
	})

	Convey("Given an empty session", t, func() {
		session := populatedSession(0)
		bus := NewBus()
		obs := &recorder{}
		bus.Attach(session, obs)

		Convey("The preamble still arrives, with an empty snapshot", func() {
			So(len(obs.events), ShouldEqual, 3)
			So(len(obs.events[1].Elements), ShouldEqual, 0)
			So(*obs.events[2].Count, ShouldEqual, 0)
		})
	})
}

func TestBusAttachDuringActiveWrites(t *testing.T) {
	Convey("Given a writer committing and publishing while observers attach", t, func() {
		registry := stores.NewRegistry(idgen.New())
		session := registry.Create("attach-race")
		types := canvas.NewTypeSet(nil)
		bus := NewBus()

		const total = 200
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < total; i++ {
				x := float64(i)
				el, err := session.CreateElement(&canvas.CreateRequest{
					Type: canvas.TypeRectangle, X: &x, Y: &x,
				}, types)
				if err != nil {
					panic(err)
				}
				bus.Publish(session.ID, ElementCreated(session.ID, el))
			}
		}()

		observers := make([]*recorder, 0, 20)
		for i := 0; i < 20; i++ {
			obs := &recorder{}
			bus.Attach(session, obs)
			observers = append(observers, obs)
		}
		<-done

		Convey("No element falls between an observer's snapshot and its live events", func() {
			for _, obs := range observers {
				seen := make(map[string]struct{})
				for _, evt := range obs.events {
					for _, el := range evt.Elements {
						seen[el.ID] = struct{}{}
					}
					if evt.Element != nil {
						seen[evt.Element.ID] = struct{}{}
					}
				}
				So(len(seen), ShouldEqual, total)
			}
		})
	})
}

func TestBusPublish(t *testing.T) {
	Convey("Given two observers of the same session and one of another", t, func() {
		session := populatedSession(0)
		other := populatedSession(0)
		bus := NewBus()

		a, b, c := &recorder{}, &recorder{}, &recorder{}
		bus.Attach(session, a)
		bus.Attach(session, b)
		bus.Attach(other, c)

		Convey("When an event is published to the first session", func() {
			bus.Publish(session.ID, ElementDeleted(session.ID, "el1"))

			Convey("Both of its observers receive it", func() {
				So(len(a.events), ShouldEqual, 4)
				So(a.events[3].Type, ShouldEqual, EventElementDeleted)
				So(a.events[3].ElementID, ShouldEqual, "el1")
				So(len(b.events), ShouldEqual, 4)
			})
		})
	})

	Convey("Given a session with no observers", t, func() {
		bus := NewBus()

		Convey("Publishing is a no-op", func() {
			So(func() {
				bus.Publish("nobody", ElementDeleted("nobody", "el1"))
			}, ShouldNotPanic)
		})
	})
}

func TestBusDropsUndeliverable(t *testing.T) {
	Convey("Given one healthy and one saturated observer", t, func() {
		session := populatedSession(0)
		bus := NewBus()

		healthy := &recorder{}
		saturated := &recorder{cap: 3} // room for the preamble only
		bus.Attach(session, healthy)
		bus.Attach(session, saturated)

		Convey("When events are published", func() {
			bus.Publish(session.ID, ElementDeleted(session.ID, "a"))
			bus.Publish(session.ID, ElementDeleted(session.ID, "b"))

			Convey("The healthy observer receives them all", func() {
				So(len(healthy.events), ShouldEqual, 5)
			})

			Convey("The saturated observer is skipped without disturbing others", func() {
				So(len(saturated.events), ShouldEqual, 3)
			})
		})
	})
}

func TestBusDetach(t *testing.T) {
	Convey("Given an attached observer", t, func() {
		session := populatedSession(0)
		bus := NewBus()
		obs := &recorder{}
		bus.Attach(session, obs)

		Convey("When it detaches", func() {
			bus.Detach(session.ID, obs)

			Convey("It no longer receives events", func() {
				bus.Publish(session.ID, ElementDeleted(session.ID, "x"))
				So(len(obs.events), ShouldEqual, 3)
			})

			Convey("The membership set is discarded", func() {
				So(bus.SessionObserverCount(session.ID), ShouldEqual, 0)
				So(bus.ObserverCount(), ShouldEqual, 0)
			})
		})

		Convey("Detaching from an unknown session is harmless", func() {
			So(func() { bus.Detach("ghost", obs) }, ShouldNotPanic)
		})
	})
}
