package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/formeval/internal/adapters/http/api"
	"github.com/okian/formeval/internal/adapters/repository"
	service "github.com/okian/formeval/internal/app"
	"github.com/okian/formeval/internal/domain/catalog"
	"github.com/okian/formeval/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var items = []model.CatalogItem{
	{Exercise: "deadlift", VideoName: "d1.mp4", URL: "https://cdn.example.com/d1.mp4"},
	{Exercise: "sprint", VideoName: "s1.mp4", URL: "https://cdn.example.com/s1.mp4"},
}

func newMux(t *testing.T, opts ...service.Option) (*http.ServeMux, *repository.CSVStore) {
	t.Helper()
	store, err := repository.OpenCSVStore(context.Background(), filepath.Join(t.TempDir(), "scores.csv"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc := service.New(store, func(context.Context) ([]model.CatalogItem, error) { return items, nil }, opts...)
	return register(svc), store
}

func register(deps interface {
	api.Dependencies
	api.StatsProvider
}) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, deps).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&v), ShouldBeNil)
	return v
}

func TestServer_Sessions(t *testing.T) {
	Convey("Given a registered API", t, func() {
		mux, store := newMux(t)

		Convey("When starting a session", func() {
			w := do(mux, http.MethodPost, "/sessions", `{"expert":"EXP01"}`)

			Convey("Then the first item is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				v := decode[service.View](w)
				So(v.Expert, ShouldEqual, "EXP01")
				So(v.Total, ShouldEqual, 2)
				So(v.Current, ShouldNotBeNil)
				So(v.State, ShouldEqual, service.AwaitingInput)
				So(v.Draft.Label, ShouldEqual, model.GoodForm)
				So(v.Draft.Score, ShouldEqual, 75)
			})

			Convey("And the session can be read back", func() {
				w := do(mux, http.MethodGet, "/sessions/EXP01", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[service.View](w).Index, ShouldEqual, 0)
			})

			Convey("And a draft can be saved", func() {
				w := do(mux, http.MethodPut, "/sessions/EXP01/draft", `{"label":"bad form","score":35}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				v := decode[service.View](w)
				So(v.Draft.Label, ShouldEqual, model.BadForm)
				So(v.Draft.Score, ShouldEqual, 35)
			})

			Convey("And submitting both items completes the session", func() {
				first := do(mux, http.MethodPost, "/sessions/EXP01/submit", `{"label":"Good Form","score":85,"index":0}`)
				So(first.Code, ShouldEqual, http.StatusOK)
				So(decode[service.Outcome](first).State, ShouldEqual, service.Saved)

				second := do(mux, http.MethodPost, "/sessions/EXP01/submit", `{"label":"Bad Form","score":40}`)
				So(second.Code, ShouldEqual, http.StatusOK)
				out := decode[service.Outcome](second)
				So(out.State, ShouldEqual, service.SessionComplete)
				So(out.Index, ShouldEqual, 2)
				So(out.Record, ShouldNotBeNil)

				rows, err := store.ExportFor(context.Background(), "EXP01")
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
			})

			Convey("And an out of range score is a bad request", func() {
				w := do(mux, http.MethodPost, "/sessions/EXP01/submit", `{"label":"Good Form","score":150}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[map[string]string](w)["code"], ShouldEqual, "bad_request")
			})

			Convey("And an unknown label is a bad request", func() {
				w := do(mux, http.MethodPost, "/sessions/EXP01/submit", `{"label":"Okay Form","score":50}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/sessions", `{`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the expert is blank", func() {
			w := do(mux, http.MethodPost, "/sessions", `{"expert":"  "}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When reading a session that was never started", func() {
			w := do(mux, http.MethodGet, "/sessions/NOBODY", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode[map[string]string](w)["code"], ShouldEqual, "not_found")
		})

		Convey("When using the wrong method", func() {
			w := do(mux, http.MethodDelete, "/sessions/EXP01", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestServer_Export(t *testing.T) {
	Convey("Given a table with one score", t, func() {
		mux, store := newMux(t)
		So(store.Upsert(context.Background(), model.ScoreRecord{
			Expert: "EXP01", Video: "d1.mp4", Exercise: "deadlift", FormLabel: model.GoodForm, Score: 85,
		}), ShouldBeNil)

		Convey("When exporting the rater", func() {
			w := do(mux, http.MethodGet, "/exports/EXP01", "")

			Convey("Then a CSV attachment is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "text/csv")
				So(w.Header().Get("Content-Disposition"), ShouldContainSubstring, "EXP01_scores.csv")
				So(w.Header().Get("X-Record-Count"), ShouldEqual, "1")
				So(w.Body.String(), ShouldEqual, "Expert,Video,Exercise,Form_Label,Score\nEXP01,d1.mp4,deadlift,Good Form,85\n")
			})
		})

		Convey("When exporting a rater with no rows", func() {
			w := do(mux, http.MethodGet, "/exports/EXP02", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("X-Record-Count"), ShouldEqual, "0")
			So(w.Body.String(), ShouldEqual, "Expert,Video,Exercise,Form_Label,Score\n")
		})
	})
}

func TestServer_Admin(t *testing.T) {
	Convey("Given the admin reset route", t, func() {
		Convey("When admin mode is off", func() {
			mux, _ := newMux(t)
			w := do(mux, http.MethodPost, "/admin/reset", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When admin mode is on", func() {
			mux, store := newMux(t, service.WithAdminMode(true))
			So(store.Upsert(context.Background(), model.ScoreRecord{
				Expert: "EXP01", Video: "d1.mp4", Exercise: "deadlift", FormLabel: model.GoodForm, Score: 85,
			}), ShouldBeNil)

			w := do(mux, http.MethodPost, "/admin/reset", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			rows, err := store.Load(context.Background())
			So(err, ShouldBeNil)
			So(rows, ShouldBeEmpty)
		})
	})
}

func TestServer_Health(t *testing.T) {
	Convey("Given a registered API", t, func() {
		mux, _ := newMux(t)
		do(mux, http.MethodPost, "/sessions", `{"expert":"EXP01"}`)

		Convey("When scraping /healthz", func() {
			w := do(mux, http.MethodGet, "/healthz", "")

			Convey("Then prometheus metrics are served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "formeval_rating_sessions_started_total")
				So(w.Body.String(), ShouldContainSubstring, "formeval_http_requests_total")
			})
		})

		Convey("When reading /stats", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			stats := decode[map[string]any](w)
			So(stats["sessions"], ShouldEqual, float64(1))
			So(stats["catalogVideos"], ShouldEqual, float64(2))
		})
	})
}

// failingDeps returns a fixed error from every call.
type failingDeps struct {
	err error
}

func (f failingDeps) StartSession(context.Context, string) (service.View, error) {
	return service.View{}, f.err
}

func (f failingDeps) Current(context.Context, string) (service.View, error) {
	return service.View{}, f.err
}

func (f failingDeps) SetDraft(context.Context, string, model.FormLabel, int) (service.View, error) {
	return service.View{}, f.err
}

func (f failingDeps) Submit(context.Context, string, service.Draft) (service.Outcome, error) {
	return service.Outcome{}, f.err
}

func (f failingDeps) Export(context.Context, string) ([]byte, int, error) { return nil, 0, f.err }

func (f failingDeps) Reset(context.Context) error { return f.err }

func (f failingDeps) GetStats(context.Context) map[string]interface{} { return nil }

func TestServer_ErrorMapping(t *testing.T) {
	Convey("Given handlers whose service fails", t, func() {
		cases := []struct {
			err  error
			code int
		}{
			{catalog.ErrCatalogNotFound, http.StatusServiceUnavailable},
			{catalog.ErrCatalogSchema, http.StatusServiceUnavailable},
			{repository.ErrLockTimeout, http.StatusServiceUnavailable},
			{service.ErrNoSession, http.StatusNotFound},
			{service.ErrInvalidDraft, http.StatusBadRequest},
			{errors.New("disk on fire"), http.StatusInternalServerError},
		}
		for _, tc := range cases {
			mux := register(failingDeps{err: tc.err})
			So(do(mux, http.MethodPost, "/sessions", `{"expert":"EXP01"}`).Code, ShouldEqual, tc.code)
			So(do(mux, http.MethodGet, "/exports/EXP01", "").Code, ShouldEqual, tc.code)
		}
	})
}
