package queue

import (
	"context"
	"path/filepath"
	"testing"

	"cellarsync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func incJob(itemID string, by int, ts int64) model.OfflineJob {
	return model.OfflineJob{Type: model.JobIncrement, ItemID: itemID, By: by, Timestamp: ts}
}

func TestFIFOOrder(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			want := []model.OfflineJob{
				incJob("42", 1, 1000),
				incJob("42", 3, 2000),
				incJob("7", 2, 3000),
				{Type: model.JobUploadPhoto, Kind: model.KindBottle, TargetID: "9", LocalPath: "/tmp/p.jpg", Timestamp: 4000},
			}
			for _, j := range want {
				require.NoError(t, store.Enqueue(ctx, j))
			}

			size, err := store.Size(ctx)
			require.NoError(t, err)
			assert.Equal(t, len(want), size)

			var got []model.OfflineJob
			for {
				job, err := store.Dequeue(ctx)
				require.NoError(t, err)
				if job == nil {
					break
				}
				got = append(got, *job)
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestRemoveMatchesFullKeyOnly(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			a := incJob("42", 1, 1000)
			b := incJob("42", 3, 2000) // same item, different timestamp
			c := incJob("7", 2, 1000)  // same timestamp, different item
			for _, j := range []model.OfflineJob{a, b, c} {
				require.NoError(t, store.Enqueue(ctx, j))
			}

			require.NoError(t, store.Remove(ctx, b))

			jobs, err := store.Jobs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []model.OfflineJob{a, c}, jobs)
		})
	}
}

func TestHasAndValidation(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Enqueue(ctx, incJob("42", 1, 1000)))

			has, err := store.Has(ctx, model.JobIncrement, "42")
			require.NoError(t, err)
			assert.True(t, has)

			has, err = store.Has(ctx, model.JobUploadPhoto, "42")
			require.NoError(t, err)
			assert.False(t, has)

			has, err = store.Has(ctx, model.JobIncrement, "99")
			require.NoError(t, err)
			assert.False(t, has)

			// by must be positive
			assert.Error(t, store.Enqueue(ctx, incJob("42", 0, 2000)))
			// unknown type rejected
			assert.Error(t, store.Enqueue(ctx, model.OfflineJob{Type: "bogus", Timestamp: 1}))
		})
	}
}

func TestClear(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Enqueue(ctx, incJob("1", 1, 1)))
			require.NoError(t, store.Enqueue(ctx, incJob("2", 1, 2)))
			require.NoError(t, store.Clear(ctx))

			size, err := store.Size(ctx)
			require.NoError(t, err)
			assert.Zero(t, size)

			job, err := store.Dequeue(ctx)
			require.NoError(t, err)
			assert.Nil(t, job)
		})
	}
}

func TestQueueUploadReplacesExistingForItem(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first := model.PendingUpload{ID: "cigar_5_1000", ItemID: "5", Kind: model.KindCigar, PhotoURI: "/tmp/a.jpg", Timestamp: 1000}
			second := model.PendingUpload{ID: "cigar_5_2000", ItemID: "5", Kind: model.KindCigar, PhotoURI: "/tmp/b.jpg", Timestamp: 2000}
			other := model.PendingUpload{ID: "bottle_5_1500", ItemID: "5", Kind: model.KindBottle, PhotoURI: "/tmp/c.jpg", Timestamp: 1500}

			require.NoError(t, store.QueueUpload(ctx, first))
			require.NoError(t, store.QueueUpload(ctx, other))
			require.NoError(t, store.QueueUpload(ctx, second))

			ups, err := store.PendingUploads(ctx)
			require.NoError(t, err)
			require.Len(t, ups, 2)

			byID := map[string]model.PendingUpload{}
			for _, u := range ups {
				byID[u.ID] = u
			}
			assert.Contains(t, byID, second.ID)
			assert.Contains(t, byID, other.ID)
			assert.NotContains(t, byID, first.ID)
		})
	}
}

func TestClearUploadByID(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			a := model.PendingUpload{ID: "cigar_1_1", ItemID: "1", Kind: model.KindCigar, PhotoURI: "/a", Timestamp: 1}
			b := model.PendingUpload{ID: "bottle_2_2", ItemID: "2", Kind: model.KindBottle, PhotoURI: "/b", Timestamp: 2}
			require.NoError(t, store.QueueUpload(ctx, a))
			require.NoError(t, store.QueueUpload(ctx, b))

			require.NoError(t, store.ClearUpload(ctx, a.ID))
			// clearing twice is harmless
			require.NoError(t, store.ClearUpload(ctx, a.ID))

			ups, err := store.PendingUploads(ctx)
			require.NoError(t, err)
			require.Len(t, ups, 1)
			assert.Equal(t, b.ID, ups[0].ID)
		})
	}
}

func TestPingHealthyStores(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, store.Ping(context.Background()))
		})
	}
}

func TestPingReportsBrokenStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	require.NoError(t, store.Ping(context.Background()))

	require.NoError(t, store.Close())

	// reads degrade to empty, Ping must not
	size, err := store.Size(context.Background())
	require.NoError(t, err)
	assert.Zero(t, size)
	assert.Error(t, store.Ping(context.Background()))
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(ctx, incJob("42", 1, 1000)))
	require.NoError(t, store.QueueUpload(ctx, model.PendingUpload{ID: "cigar_42_1000", ItemID: "42", Kind: model.KindCigar, PhotoURI: "/p", Timestamp: 1000}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	size, err := reopened.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	ups, err := reopened.PendingUploads(ctx)
	require.NoError(t, err)
	assert.Len(t, ups, 1)
}

func TestSQLiteDropsMalformedPayload(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Enqueue(ctx, incJob("1", 1, 1)))
	_, err = store.db.Exec(`INSERT INTO offline_jobs (job_type, item_id, created_ms, payload) VALUES ('increment', '2', 2, 'not json')`)
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(ctx, incJob("3", 1, 3)))

	jobs, err := store.Jobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	first, err := store.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "1", first.ItemID)

	// the corrupt row is skipped, not fatal
	second, err := store.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "3", second.ItemID)
}
