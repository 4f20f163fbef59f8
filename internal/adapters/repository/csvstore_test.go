package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/okian/formeval/internal/adapters/repository"
	"github.com/okian/formeval/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func rec(expert, video string, label model.FormLabel, score int) model.ScoreRecord {
	return model.ScoreRecord{Expert: expert, Video: video, Exercise: "squat", FormLabel: label, Score: score}
}

func openStore(dir string) *repository.CSVStore {
	s, err := repository.OpenCSVStore(context.Background(), filepath.Join(dir, "expert_scores.csv"))
	So(err, ShouldBeNil)
	return s
}

func TestCSVStore(t *testing.T) {
	Convey("Given a new CSV store", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		store := openStore(dir)

		Convey("Then the file exists with only a header", func() {
			data, err := os.ReadFile(store.Path())
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "Expert,Video,Exercise,Form_Label,Score\n")
			records, err := store.Load(ctx)
			So(err, ShouldBeNil)
			So(records, ShouldBeEmpty)
		})

		Convey("When the same key is upserted twice", func() {
			So(store.Upsert(ctx, rec("E", "V1", model.GoodForm, 10)), ShouldBeNil)
			So(store.Upsert(ctx, rec("E", "V1", model.BadForm, 60)), ShouldBeNil)

			Convey("Then exactly one record holds the second values", func() {
				records, err := store.Load(ctx)
				So(err, ShouldBeNil)
				So(records, ShouldResemble, []model.ScoreRecord{rec("E", "V1", model.BadForm, 60)})
			})
		})

		Convey("When checking existence", func() {
			So(store.Upsert(ctx, rec("E", "V1", model.GoodForm, 10)), ShouldBeNil)

			ok1, err1 := store.Exists(ctx, "E", "V1")
			ok2, err2 := store.Exists(ctx, "F", "V1")

			Convey("Then only the stored key exists", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(ok1, ShouldBeTrue)
				So(ok2, ShouldBeFalse)
			})
		})

		Convey("When exporting per expert", func() {
			So(store.Upsert(ctx, rec("E", "V1", model.GoodForm, 10)), ShouldBeNil)
			So(store.Upsert(ctx, rec("F", "V2", model.GoodForm, 20)), ShouldBeNil)

			mine, err := store.ExportFor(ctx, "E")
			none, err2 := store.ExportFor(ctx, "nobody")

			Convey("Then only that expert's rows are returned", func() {
				So(err, ShouldBeNil)
				So(mine, ShouldResemble, []model.ScoreRecord{rec("E", "V1", model.GoodForm, 10)})
				So(err2, ShouldBeNil)
				So(none, ShouldBeEmpty)
			})
		})

		Convey("When saving a table with duplicates", func() {
			err := store.Save(ctx, []model.ScoreRecord{
				rec("E", "V1", model.GoodForm, 1),
				rec("E", "V2", model.GoodForm, 2),
				rec("E", "V1", model.GoodForm, 3),
			})
			So(err, ShouldBeNil)

			Convey("Then the written table has one row per key", func() {
				records, _ := store.Load(ctx)
				So(len(records), ShouldEqual, 2)
				So(records[1].Score, ShouldEqual, 3)
			})
		})

		Convey("When upserting an invalid record", func() {
			err := store.Upsert(ctx, rec("E", "V1", model.GoodForm, 101))
			So(errors.Is(err, repository.ErrInvalidRecord), ShouldBeTrue)
		})

		Convey("When resetting", func() {
			So(store.Upsert(ctx, rec("E", "V1", model.GoodForm, 10)), ShouldBeNil)
			So(store.Reset(ctx), ShouldBeNil)

			Convey("Then the table is header only", func() {
				records, err := store.Load(ctx)
				So(err, ShouldBeNil)
				So(records, ShouldBeEmpty)
				ok, _ := store.Exists(ctx, "E", "V1")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the file on disk is corrupt", func() {
			So(os.WriteFile(store.Path(), []byte("Expert,Video,Exercise,Form_Label,Score\nE,V1,squat,Good Form,abc\n"), 0o644), ShouldBeNil)

			_, loadErr := store.Load(ctx)
			upsertErr := store.Upsert(ctx, rec("E", "V2", model.GoodForm, 10))

			Convey("Then reads and writes fail instead of dropping rows", func() {
				So(errors.Is(loadErr, repository.ErrStoreCorruption), ShouldBeTrue)
				So(errors.Is(upsertErr, repository.ErrStoreCorruption), ShouldBeTrue)
				data, _ := os.ReadFile(store.Path())
				So(string(data), ShouldContainSubstring, "abc")
			})
		})

		Convey("When reopening an existing table", func() {
			So(store.Upsert(ctx, rec("E", "V1", model.GoodForm, 10)), ShouldBeNil)
			again := openStore(dir)

			Convey("Then existing rows are kept", func() {
				records, err := again.Load(ctx)
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 1)
			})
		})

		Convey("When writes complete", func() {
			So(store.Upsert(ctx, rec("E", "V1", model.GoodForm, 10)), ShouldBeNil)

			Convey("Then no temp files are left behind", func() {
				matches, err := filepath.Glob(filepath.Join(dir, ".scores-*.tmp"))
				So(err, ShouldBeNil)
				So(matches, ShouldBeEmpty)
			})
		})
	})
}

func TestCSVStore_ConcurrentWriters(t *testing.T) {
	Convey("Given two stores sharing one file", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		a := openStore(dir)
		b := openStore(dir)

		Convey("When both upsert disjoint keys concurrently", func() {
			const perWriter = 25
			var wg sync.WaitGroup
			errs := make(chan error, 2*perWriter)
			for w, store := range []*repository.CSVStore{a, b} {
				wg.Add(1)
				go func(w int, store *repository.CSVStore) {
					defer wg.Done()
					for i := 0; i < perWriter; i++ {
						if err := store.Upsert(ctx, rec(fmt.Sprintf("R%d", w), fmt.Sprintf("v%02d.mp4", i), model.GoodForm, i)); err != nil {
							errs <- err
						}
					}
				}(w, store)
			}
			wg.Wait()
			close(errs)

			Convey("Then no write is lost", func() {
				for err := range errs {
					So(err, ShouldBeNil)
				}
				records, err := a.Load(ctx)
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 2*perWriter)
			})
		})

		Convey("When one store writes while the other is read in the background", func() {
			done := make(chan struct{})
			var readers sync.WaitGroup
			for i := 0; i < 4; i++ {
				readers.Add(1)
				go func() {
					defer readers.Done()
					for {
						select {
						case <-done:
							return
						default:
							_, _ = a.Load(ctx)
						}
					}
				}()
			}

			var missed []string
			for i := 0; i < 30; i++ {
				video := fmt.Sprintf("v%02d.mp4", i)
				So(b.Upsert(ctx, rec("R", video, model.BadForm, i)), ShouldBeNil)
				ok, err := a.Exists(ctx, "R", video)
				So(err, ShouldBeNil)
				if !ok {
					missed = append(missed, video)
				}
			}
			close(done)
			readers.Wait()

			Convey("Then existence always reflects the latest completed write", func() {
				So(missed, ShouldBeEmpty)
			})
		})
	})
}

func TestCSVStore_RoundTrip(t *testing.T) {
	Convey("Given a set of records", t, func() {
		ctx := context.Background()
		store := openStore(t.TempDir())
		want := map[model.Key]model.ScoreRecord{}
		var records []model.ScoreRecord
		for i := 0; i < 10; i++ {
			r := rec(fmt.Sprintf("E%d", i%3), fmt.Sprintf("v%d.mp4", i), model.FormLabel(1+i%2), i*10)
			records = append(records, r)
			want[r.Key()] = r
		}

		So(store.Save(ctx, records), ShouldBeNil)
		back, err := store.Load(ctx)

		Convey("Then reading back yields the same set", func() {
			So(err, ShouldBeNil)
			So(len(back), ShouldEqual, len(want))
			for _, r := range back {
				So(r, ShouldResemble, want[r.Key()])
			}
		})
	})
}
