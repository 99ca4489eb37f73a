package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rideo/rideo_core/internal/models"
)

type stubStopSource struct {
	name  string
	stops []models.Stop
	err   error
}

func (s *stubStopSource) Name() string { return s.name }

func (s *stubStopSource) FetchStops(ctx context.Context) ([]models.Stop, error) {
	return s.stops, s.err
}

func seededCatalog() *Catalog {
	cat := NewCatalog()
	cat.LoadStops([]models.Stop{
		{ID: "stop_a", Name: "Автовокзал Якутск", City: "Якутск"},
		{ID: "stop_b", Name: "АС Нижний Бестях", City: "Нижний Бестях"},
		{ID: "stop_c", Name: "Аэропорт Якутск", City: "Якутск"},
	})
	return cat
}

func TestFindLocationsByName(t *testing.T) {
	cat := seededCatalog()

	matches := cat.FindLocations("автовокзал")
	require.Len(t, matches, 1)
	assert.Equal(t, "stop_a", matches[0].ID)
}

func TestFindLocationsByCity(t *testing.T) {
	cat := seededCatalog()

	matches := cat.FindLocations("Якутск")
	require.Len(t, matches, 2)
	assert.Equal(t, "stop_a", matches[0].ID)
	assert.Equal(t, "stop_c", matches[1].ID)
}

func TestFindLocationsCaseAndWhitespaceInsensitive(t *testing.T) {
	cat := seededCatalog()

	assert.Equal(t, cat.FindLocations("якутск"), cat.FindLocations("  ЯКУТСК "))
}

func TestFindLocationsVirtualFallback(t *testing.T) {
	cat := seededCatalog()

	first := cat.FindLocations("Мирный")
	require.Len(t, first, 1)
	assert.Equal(t, "city:мирный", first[0].ID)
	assert.Equal(t, "Мирный", first[0].Name)

	// the virtual identity is stable across spellings of the same name
	second := cat.FindLocations("  мирный ")
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestFindLocationsEmptyQuery(t *testing.T) {
	cat := seededCatalog()

	assert.Nil(t, cat.FindLocations(""))
	assert.Nil(t, cat.FindLocations("   "))
}

func TestStopsInCity(t *testing.T) {
	cat := seededCatalog()

	stops := cat.StopsInCity("якутск")
	require.Len(t, stops, 2)

	assert.Empty(t, cat.StopsInCity("Ленск"))
	assert.Empty(t, cat.StopsInCity(""))
}

func TestDisplayName(t *testing.T) {
	cat := seededCatalog()

	assert.Equal(t, "Автовокзал Якутск", cat.DisplayName("stop_a", "raw name"))
	assert.Equal(t, "raw name", cat.DisplayName("missing", "raw name"))
	assert.Equal(t, "missing", cat.DisplayName("missing", ""))
}

func TestLoadBaseFailureAborts(t *testing.T) {
	cat := NewCatalog()
	base := &stubStopSource{name: "demo", err: errors.New("file missing")}

	err := cat.Load(context.Background(), base)
	require.Error(t, err)
	assert.False(t, cat.Loaded())
}

func TestLoadExtrasDegrade(t *testing.T) {
	cat := NewCatalog()
	base := &stubStopSource{name: "demo", stops: []models.Stop{{ID: "stop_a", Name: "Автовокзал"}}}
	broken := &stubStopSource{name: "gars", err: errors.New("timeout")}

	err := cat.Load(context.Background(), base, broken)
	require.NoError(t, err)
	assert.True(t, cat.Loaded())
	assert.Len(t, cat.Stops(), 1)
}

func TestLoadRunsOnce(t *testing.T) {
	cat := NewCatalog()
	base := &stubStopSource{name: "demo", stops: []models.Stop{{ID: "stop_a", Name: "Автовокзал"}}}

	require.NoError(t, cat.Load(context.Background(), base))

	// a second load is a no-op even with a different source
	other := &stubStopSource{name: "other", stops: []models.Stop{{ID: "stop_b", Name: "Аэропорт"}}}
	require.NoError(t, cat.Load(context.Background(), other))

	_, ok := cat.Stop("stop_b")
	assert.False(t, ok)
}
