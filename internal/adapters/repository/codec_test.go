package repository_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/okian/formeval/internal/adapters/repository"
	"github.com/okian/formeval/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCSVCodec(t *testing.T) {
	Convey("Given score records", t, func() {
		records := []model.ScoreRecord{
			{Expert: "EXP01", Video: "d1.mp4", Exercise: "deadlift", FormLabel: model.GoodForm, Score: 85},
			{Expert: "EXP01", Video: "s1, take 2.mp4", Exercise: "sprint", FormLabel: model.BadForm, Score: 40},
		}

		Convey("When writing them", func() {
			var buf bytes.Buffer
			So(repository.WriteCSV(&buf, records), ShouldBeNil)

			Convey("Then the table has the expected header and rows", func() {
				lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
				So(lines[0], ShouldEqual, "Expert,Video,Exercise,Form_Label,Score")
				So(lines[1], ShouldEqual, "EXP01,d1.mp4,deadlift,Good Form,85")
				So(lines[2], ShouldEqual, `EXP01,"s1, take 2.mp4",sprint,Bad Form,40`)
			})

			Convey("Then reading it back yields the same records", func() {
				back, err := repository.ReadCSV(&buf)
				So(err, ShouldBeNil)
				So(back, ShouldResemble, records)
			})
		})

		Convey("When reading an empty input", func() {
			back, err := repository.DecodeCSV(nil)
			So(err, ShouldBeNil)
			So(back, ShouldBeEmpty)
		})

		Convey("When reading a legacy four column table", func() {
			back, err := repository.DecodeCSV([]byte("Expert,Video,Form_Label,Score\nEXP01,d1.mp4,Good Form,85\n"))

			Convey("Then rows load with an empty exercise", func() {
				So(err, ShouldBeNil)
				So(back, ShouldResemble, []model.ScoreRecord{{Expert: "EXP01", Video: "d1.mp4", FormLabel: model.GoodForm, Score: 85}})
			})
		})
	})
}

func TestCSVCodec_Corruption(t *testing.T) {
	Convey("Given malformed tables", t, func() {
		cases := map[string]string{
			"unknown header": "Name,Video,Exercise,Form_Label,Score\nEXP01,d1.mp4,deadlift,Good Form,85\n",
			"bad score":      "Expert,Video,Exercise,Form_Label,Score\nEXP01,d1.mp4,deadlift,Good Form,high\n",
			"score range":    "Expert,Video,Exercise,Form_Label,Score\nEXP01,d1.mp4,deadlift,Good Form,140\n",
			"bad label":      "Expert,Video,Exercise,Form_Label,Score\nEXP01,d1.mp4,deadlift,Fine,85\n",
			"short row":      "Expert,Video,Exercise,Form_Label,Score\nEXP01,d1.mp4,deadlift\n",
			"missing expert": "Expert,Video,Exercise,Form_Label,Score\n,d1.mp4,deadlift,Good Form,85\n",
		}

		for name, src := range cases {
			Convey("When reading a table with "+name, func() {
				_, err := repository.DecodeCSV([]byte(src))

				Convey("Then the read fails closed", func() {
					So(errors.Is(err, repository.ErrStoreCorruption), ShouldBeTrue)
				})
			})
		}
	})
}
