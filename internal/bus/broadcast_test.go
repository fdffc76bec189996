package bus

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tucoflyer/flyer-controller/internal/message"
)

func TestBroadcaster(t *testing.T) {
	Convey("Given a broadcaster with one subscriber", t, func() {
		b := NewBroadcaster(nil)
		sub := b.Subscribe()

		Convey("Publish delivers to that subscriber", func() {
			b.Publish(message.Wrap(message.Message{Kind: message.KindFlyerSensors}))
			select {
			case got := <-sub.C():
				So(got.Message.Kind, ShouldEqual, message.KindFlyerSensors)
			case <-time.After(time.Second):
				t.Fatal("expected a message")
			}
		})

		Convey("A subscriber created after Publish never sees the earlier message", func() {
			b.Publish(message.Wrap(message.Message{Kind: message.KindFlyerSensors}))
			<-sub.C()

			late := b.Subscribe()
			select {
			case <-late.C():
				t.Fatal("late subscriber should not observe messages published before it joined")
			case <-time.After(50 * time.Millisecond):
			}
		})

		Convey("Close detaches the subscriber", func() {
			sub.Close()
			So(b.Len(), ShouldEqual, 0)
		})

		Convey("A full subscriber queue drops instead of blocking Publish", func() {
			dropped := 0
			b2 := NewBroadcaster(func(n int) { dropped += n })
			s2 := b2.Subscribe()
			for i := 0; i < Depth+10; i++ {
				b2.Publish(message.Wrap(message.Message{Kind: message.KindFlyerSensors}))
			}
			So(dropped, ShouldBeGreaterThan, 0)
			So(len(s2.C()), ShouldEqual, Depth)
		})
	})
}

func TestPort(t *testing.T) {
	Convey("Given a fresh port", t, func() {
		port, in := NewPort()

		Convey("Send enqueues a message item", func() {
			ok := port.Send(message.Message{Kind: message.KindFlyerSensors})
			So(ok, ShouldBeTrue)

			item := <-in
			So(item.IsMessage(), ShouldBeTrue)
			So(item.IsReaderRequest(), ShouldBeFalse)
			So(item.Message().Message.Kind, ShouldEqual, message.KindFlyerSensors)
		})

		Convey("AddSubscriber blocks until the loop fulfills the request", func() {
			done := make(chan struct{})
			var gotErr error
			go func() {
				_, gotErr = port.AddSubscriber()
				close(done)
			}()

			item := <-in
			So(item.IsReaderRequest(), ShouldBeTrue)
			item.Fulfill(&Subscriber{})

			<-done
			So(gotErr, ShouldBeNil)
		})
	})
}
