package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Acme"}`))
		var dest struct {
			Name string `json:"name"`
		}
		require.NoError(t, ParseJSON(req, &dest))
		assert.Equal(t, "Acme", dest.Name)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":`))
		var dest struct{}
		err := ParseJSON(req, &dest)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid JSON")
	})

	t.Run("or-error writes 400", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`nope`))
		rec := httptest.NewRecorder()
		var dest struct{}
		ok := ParseJSONOrError(rec, req, &dest)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestParsePathInt64(t *testing.T) {
	router := mux.NewRouter()
	var got int64
	var gotErr error
	router.HandleFunc("/tenants/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = ParsePathInt64(r, "id")
	})

	t.Run("valid id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/tenants/42", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
		require.NoError(t, gotErr)
		assert.Equal(t, int64(42), got)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/tenants/abc", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
		assert.Error(t, gotErr)
	})

	t.Run("missing parameter", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/tenants/1", nil)
		_, err := ParsePathInt64(req, "other")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing path parameter")
	})
}

func TestParsePathInt64OrError(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/tenants/{id}", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ParsePathInt64OrError(w, r, "id"); !ok {
			return
		}
		WriteNoContent(w)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/tenants/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/tenants/9", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
