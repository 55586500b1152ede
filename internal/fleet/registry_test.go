package fleet

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shenikar/truck_dispatch_system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFleet() []models.Truck {
	return []models.Truck{
		{ID: "XYZ789", Location: models.Location{Latitude: 34.05, Longitude: -118.24}, Available: true},
		{ID: "ABC123", Location: models.Location{Latitude: 34.05, Longitude: -118.24}, Available: true},
	}
}

func TestListAvailable_SortedByID(t *testing.T) {
	r := NewRegistry(testFleet())

	available := r.ListAvailable()
	require.Len(t, available, 2)
	assert.Equal(t, "ABC123", available[0].ID)
	assert.Equal(t, "XYZ789", available[1].ID)
}

func TestReserve_ExcludesFromAvailable(t *testing.T) {
	r := NewRegistry(testFleet())

	require.NoError(t, r.Reserve("ABC123"))

	available := r.ListAvailable()
	require.Len(t, available, 1)
	assert.Equal(t, "XYZ789", available[0].ID)
}

func TestReserve_Errors(t *testing.T) {
	r := NewRegistry(testFleet())

	assert.ErrorIs(t, r.Reserve("NOPE"), ErrTruckNotFound)

	require.NoError(t, r.Reserve("ABC123"))
	assert.ErrorIs(t, r.Reserve("ABC123"), ErrTruckAlreadyReserved)
}

func TestRelease(t *testing.T) {
	r := NewRegistry(testFleet())
	require.NoError(t, r.Reserve("ABC123"))

	require.NoError(t, r.Release("ABC123"))
	assert.Len(t, r.ListAvailable(), 2)

	assert.ErrorIs(t, r.Release("NOPE"), ErrTruckNotFound)
}

func TestResetToDefaults(t *testing.T) {
	r := NewRegistry(testFleet())
	require.NoError(t, r.Reserve("ABC123"))
	require.NoError(t, r.Reserve("XYZ789"))
	r.Restore([]models.Truck{{ID: "ABC123", Location: models.Location{Latitude: 1, Longitude: 1}}})

	r.ResetToDefaults()

	trucks := r.List()
	require.Len(t, trucks, 2)
	for _, tr := range trucks {
		assert.True(t, tr.Available)
		assert.Equal(t, 34.05, tr.Location.Latitude)
	}
}

func TestRestore_IgnoresUnknownTrucks(t *testing.T) {
	r := NewRegistry(testFleet())

	r.Restore([]models.Truck{
		{ID: "ABC123", Location: models.Location{Latitude: 34.05, Longitude: -118.24}, Available: false},
		{ID: "GHOST1", Available: true},
	})

	_, err := r.Get("GHOST1")
	assert.ErrorIs(t, err, ErrTruckNotFound)

	truck, err := r.Get("ABC123")
	require.NoError(t, err)
	assert.False(t, truck.Available)
}

func TestNewRegistry_CopiesDefaults(t *testing.T) {
	defaults := testFleet()
	r := NewRegistry(defaults)
	defaults[0].ID = "CHANGED"

	_, err := r.Get("XYZ789")
	assert.NoError(t, err)
}

func TestReserve_Concurrent(t *testing.T) {
	r := NewRegistry([]models.Truck{{ID: "ONLY1", Available: true}})

	var wg sync.WaitGroup
	var won atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Reserve("ONLY1") == nil {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
}
