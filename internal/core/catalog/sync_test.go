package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	db "github.com/markdave123-py/libassist/internal/core/database"
	"github.com/markdave123-py/libassist/internal/logger"
	"github.com/markdave123-py/libassist/internal/models"
)

const page = `<html><body>
<a href="https://library-service.com.ua:8443/khkhdak/DocumentSearchForm">Електронний каталог</a>
<a href="https://www.scopus.com/">Scopus</a>
<a href="/about">Про нас</a>
</body></html>`

type staticFetcher struct {
	body string
	err  error
}

func (f staticFetcher) Fetch(context.Context, string) (string, error) { return f.body, f.err }

type brokenStore struct {
	*db.MemoryStore
}

func (brokenStore) CreateResource(context.Context, *models.LibraryResource) error {
	return errors.New("connection reset")
}

func TestHTTPFetcher(t *testing.T) {
	t.Run("Should return the body and send the sync user agent", func(t *testing.T) {
		var ua atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ua.Store(r.UserAgent())
			_, _ = w.Write([]byte(page))
		}))
		defer srv.Close()

		body, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, page, body)
		assert.Equal(t, userAgent, ua.Load())
	})

	t.Run("Should fail on non-2xx responses", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), srv.URL)
		require.ErrorIs(t, err, ErrFetch)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("Should fail when the upstream is slower than the timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()

		_, err := NewHTTPFetcher(50*time.Millisecond).Fetch(context.Background(), srv.URL)
		assert.ErrorIs(t, err, ErrFetch)
	})
}

func TestSyncer_RunSync(t *testing.T) {
	ctx := context.Background()

	t.Run("Should insert new resources once across repeated runs", func(t *testing.T) {
		store := db.NewMemoryStore()
		s := NewSyncer(store, staticFetcher{body: page}, "https://catalog", logger.Nop())

		first := s.RunSync(ctx)
		assert.Equal(t, 2, first.Synced)
		assert.Empty(t, first.Errors)

		second := s.RunSync(ctx)
		assert.Equal(t, 0, second.Synced)
		assert.Empty(t, second.Errors)

		all, err := store.ListResources(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "Електронний каталог", all[0].NameUk)
		assert.Equal(t, all[0].NameUk, all[0].NameEn)
		assert.Equal(t, all[0].NameUk, all[0].NameRu)
		assert.Equal(t, models.ResourceCatalog, all[0].Type)
	})

	t.Run("Should never overwrite an existing resource", func(t *testing.T) {
		store := db.NewMemoryStore()
		require.NoError(t, store.CreateResource(ctx, &models.LibraryResource{NameEn: "Scopus (edited)", URL: "https://www.scopus.com/", Type: models.ResourceDatabase}))
		s := NewSyncer(store, staticFetcher{body: page}, "https://catalog", logger.Nop())

		res := s.RunSync(ctx)
		assert.Equal(t, 1, res.Synced)
		got, err := store.GetResourceByURL(ctx, "https://www.scopus.com/")
		require.NoError(t, err)
		assert.Equal(t, "Scopus (edited)", got.NameEn)
	})

	t.Run("Should report a fetch failure as a single error", func(t *testing.T) {
		store := db.NewMemoryStore()
		s := NewSyncer(store, staticFetcher{err: ErrFetch}, "https://catalog", logger.Nop())

		res := s.RunSync(ctx)
		assert.Zero(t, res.Synced)
		assert.Len(t, res.Errors, 1)

		st := s.Status()
		assert.Equal(t, StateIdle, st.State)
		assert.True(t, st.LastFailed)
		assert.Zero(t, st.Running)
		all, _ := store.ListResources(ctx)
		assert.Empty(t, all)
	})

	t.Run("Should collect per-entry failures and keep going", func(t *testing.T) {
		s := NewSyncer(brokenStore{db.NewMemoryStore()}, staticFetcher{body: page}, "https://catalog", logger.Nop())

		res := s.RunSync(ctx)
		assert.Zero(t, res.Synced)
		require.Len(t, res.Errors, 2)
		assert.Equal(t, `Failed to sync "Scopus": connection reset`, res.Errors[1])
	})

	t.Run("Should record the last result", func(t *testing.T) {
		s := NewSyncer(db.NewMemoryStore(), staticFetcher{body: page}, "https://catalog", logger.Nop())
		assert.Nil(t, s.Status().LastResult)

		s.RunSync(ctx)
		st := s.Status()
		require.NotNil(t, st.LastResult)
		assert.Equal(t, 2, st.LastResult.Synced)
		assert.NotNil(t, st.LastRunAt)
		assert.False(t, st.LastFailed)
	})
}

type countingRunner struct{ n atomic.Int32 }

func (c *countingRunner) RunSync(context.Context) SyncResult {
	c.n.Add(1)
	return SyncResult{}
}

func TestScheduler(t *testing.T) {
	t.Run("Should run immediately and stop idempotently", func(t *testing.T) {
		r := &countingRunner{}
		s := NewScheduler(r, time.Hour, logger.Nop())

		require.NoError(t, s.Start(context.Background()))
		require.NoError(t, s.Start(context.Background()))
		assert.Eventually(t, func() bool { return r.n.Load() == 1 }, time.Second, 5*time.Millisecond)

		s.Stop()
		s.Stop()
		assert.Equal(t, int32(1), r.n.Load())
	})

	t.Run("Should reject a non-positive interval", func(t *testing.T) {
		s := NewScheduler(&countingRunner{}, 0, logger.Nop())
		assert.Error(t, s.Start(context.Background()))
		s.Stop()
	})
}
