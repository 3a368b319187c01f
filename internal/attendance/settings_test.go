package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSettingsSource struct {
	calls int
	st    Settings
}

func (s *countingSettingsSource) Settings(ctx context.Context) (Settings, error) {
	s.calls++
	return s.st, nil
}

func TestSettingsCacheServesFromCache(t *testing.T) {
	src := &countingSettingsSource{st: DefaultSettings()}
	c := NewSettingsCache(src, nil, time.Minute)

	first, err := c.Get(context.Background())
	require.NoError(t, err)
	_, err = c.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 15, first.GraceMinutes)
}

func TestSettingsCacheInvalidateReloads(t *testing.T) {
	src := &countingSettingsSource{st: DefaultSettings()}
	c := NewSettingsCache(src, nil, time.Minute)

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	// A save changed the row; after Invalidate the next Get must see it.
	src.st.GraceMinutes = 20
	c.Invalidate(context.Background())

	st, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, 20, st.GraceMinutes)
}
