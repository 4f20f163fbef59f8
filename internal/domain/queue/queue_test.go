package queue_test

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/okian/formeval/internal/domain/model"
	"github.com/okian/formeval/internal/domain/queue"
	. "github.com/smartystreets/goconvey/convey"
)

func catalogOf(names ...string) []model.CatalogItem {
	items := make([]model.CatalogItem, len(names))
	for i, n := range names {
		items[i] = model.CatalogItem{Exercise: "squat", VideoName: n, URL: "u/" + n}
	}
	return items
}

func sorted(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}

func TestBuild(t *testing.T) {
	Convey("Given a catalog", t, func() {
		cat := catalogOf("A", "B", "C", "D")
		before := append([]model.CatalogItem(nil), cat...)

		Convey("When the rater has no prior records", func() {
			q := queue.Build(cat, "R", nil)

			Convey("Then every item appears exactly once", func() {
				So(q.Len(), ShouldEqual, 4)
				So(sorted(q.VideoNames()), ShouldResemble, []string{"A", "B", "C", "D"})
				So(q.Expert, ShouldEqual, "R")
			})

			Convey("And the catalog is untouched", func() {
				So(cat, ShouldResemble, before)
			})
		})

		Convey("When the rater already scored A and B", func() {
			scored := map[string]struct{}{"A": {}, "B": {}}
			q := queue.Build(cat, "R", scored)

			Convey("Then the queue is a permutation of C and D", func() {
				So(sorted(q.VideoNames()), ShouldResemble, []string{"C", "D"})
			})
		})

		Convey("When everything is scored", func() {
			scored := map[string]struct{}{"A": {}, "B": {}, "C": {}, "D": {}}
			q := queue.Build(cat, "R", scored)

			Convey("Then the queue is empty", func() {
				So(q.Len(), ShouldEqual, 0)
				_, ok := q.At(0)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When seeded sources are used", func() {
			q1 := queue.Build(cat, "R", nil, queue.WithRand(rand.New(rand.NewPCG(1, 2))))
			q2 := queue.Build(cat, "R", nil, queue.WithRand(rand.New(rand.NewPCG(1, 2))))

			Convey("Then the order is reproducible", func() {
				So(q1.VideoNames(), ShouldResemble, q2.VideoNames())
			})
		})

		Convey("When the queue items are copied out", func() {
			q := queue.Build(cat, "R", nil)
			items := q.Items()
			items[0].VideoName = "mutated"

			Convey("Then the queue is unaffected", func() {
				first, _ := q.At(0)
				So(first.VideoName, ShouldNotEqual, "mutated")
			})
		})
	})
}

func TestBuild_Uniformity(t *testing.T) {
	Convey("Given many builds over three items", t, func() {
		cat := catalogOf("A", "B", "C")
		rng := rand.New(rand.NewPCG(7, 11))
		counts := map[string]int{}
		const runs = 6000
		for i := 0; i < runs; i++ {
			q := queue.Build(cat, "R", nil, queue.WithRand(rng))
			counts[fmt.Sprint(q.VideoNames())]++
		}

		Convey("Then all six orders show up at similar rates", func() {
			So(len(counts), ShouldEqual, 6)
			for _, c := range counts {
				So(c, ShouldBeBetween, runs/6-300, runs/6+300)
			}
		})
	})
}

func TestScoredSet(t *testing.T) {
	Convey("Given records from two raters", t, func() {
		records := []model.ScoreRecord{
			{Expert: "R", Video: "A"},
			{Expert: "S", Video: "B"},
			{Expert: "R", Video: "C"},
		}

		set := queue.ScoredSet(records, "R")

		Convey("Then only the rater's videos are included", func() {
			So(set, ShouldResemble, map[string]struct{}{"A": {}, "C": {}})
		})
	})
}
