package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mvpplanner/internal/source/core"
	"mvpplanner/pkg/domain"
)

func TestClientFetchDecodesCSV(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("clinician_id,last_name,is_active\n1,Lovelace,Y\n2,\"Hopper, G\",N\n"))
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, SheetID: "abc", GIDs: map[string]string{"clinicians": "0"}}, nil)
	require.NoError(t, err)

	records, err := client.Fetch(context.Background(), domain.CollectionClinicians)
	require.NoError(t, err)
	assert.Equal(t, "/spreadsheets/d/abc/export", gotPath)
	assert.Contains(t, gotQuery, "format=csv")
	assert.Contains(t, gotQuery, "gid=0")
	assert.Equal(t, []domain.Record{
		{"clinician_id": "1", "last_name": "Lovelace", "is_active": "Y"},
		{"clinician_id": "2", "last_name": "Hopper, G", "is_active": "N"},
	}, records)
}

func TestClientFetchUnknownTab(t *testing.T) {
	client, err := New(Config{SheetID: "abc"}, nil)
	require.NoError(t, err)
	_, err = client.Fetch(context.Background(), domain.CollectionWork)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestClientFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("setting,value\norganization_name,Converse\n"))
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, SheetID: "abc", GIDs: map[string]string{"config": "9"}, Retries: 2}, nil)
	require.NoError(t, err)
	records, err := client.Fetch(context.Background(), domain.CollectionConfig)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientFetchReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, SheetID: "abc", GIDs: map[string]string{"mvps": "1"}}, nil)
	require.NoError(t, err)
	_, err = client.Fetch(context.Background(), domain.CollectionMVPs)
	assert.ErrorContains(t, err, "failed to fetch sheet mvps: 403")
}

func TestNewRequiresSheetID(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}
