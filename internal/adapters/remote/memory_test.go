package remote_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/formeval/internal/adapters/remote"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryStore(t *testing.T) {
	Convey("Given an empty memory store", t, func() {
		ctx := context.Background()
		m := remote.NewMemoryStore()

		Convey("When fetching a missing object", func() {
			_, err := m.Fetch(ctx, "scores.csv")
			So(errors.Is(err, remote.ErrNotFound), ShouldBeTrue)
		})

		Convey("When creating then updating", func() {
			v1, err := m.Create(ctx, "scores.csv", []byte("a"))
			So(err, ShouldBeNil)
			v2, err := m.Update(ctx, "scores.csv", []byte("b"), v1)
			So(err, ShouldBeNil)

			Convey("Then the latest content and version are returned", func() {
				obj, err := m.Fetch(ctx, "scores.csv")
				So(err, ShouldBeNil)
				So(string(obj.Content), ShouldEqual, "b")
				So(obj.Version, ShouldEqual, v2)
				So(m.Writes(), ShouldEqual, 2)
			})

			Convey("And a stale version conflicts", func() {
				_, err := m.Update(ctx, "scores.csv", []byte("c"), v1)
				So(errors.Is(err, remote.ErrVersionConflict), ShouldBeTrue)
			})

			Convey("And creating again conflicts", func() {
				_, err := m.Create(ctx, "scores.csv", []byte("c"))
				So(errors.Is(err, remote.ErrVersionConflict), ShouldBeTrue)
			})
		})

		Convey("When failures are injected", func() {
			boom := errors.New("network down")
			m.FailFetch(boom)
			m.FailWrites(boom)

			_, fetchErr := m.Fetch(ctx, "x")
			_, createErr := m.Create(ctx, "x", nil)

			Convey("Then they are returned until cleared", func() {
				So(fetchErr, ShouldEqual, boom)
				So(createErr, ShouldEqual, boom)
				m.FailWrites(nil)
				_, err := m.Create(ctx, "x", nil)
				So(err, ShouldBeNil)
			})
		})
	})
}
