package contracts

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
)

type route string

func (p route) RegisterRoutes(router *httprouter.Router) {
	router.GET(string(p), func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestHandlers_RegistersAll(t *testing.T) {
	router := httprouter.New()
	Handlers{route("/a"), route("/b")}.RegisterRoutes(router)

	for _, path := range []string{"/a", "/b"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNoContent {
			t.Errorf("%s: expected 204, got %d", path, rec.Code)
		}
	}
}
