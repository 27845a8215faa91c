package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/botfsm/fsm"
)

func TestBackend_GetState_MissingChat(t *testing.T) {
	b := New()
	_, ok, err := b.GetState(context.Background(), fsm.ChatID(1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBackend_SetState_RoundTrip(t *testing.T) {
	b := New()
	ctx := context.Background()

	require.NoError(t, b.SetState(ctx, fsm.ChatID(1), fsm.StateCode("main_menu")))

	code, ok, err := b.GetState(ctx, fsm.ChatID(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fsm.StateCode("main_menu"), code)
}

func TestBackend_SetContext_RoundTrip(t *testing.T) {
	b := New()
	ctx := context.Background()

	vars := fsm.NewContext()
	vars.Set("name", "ada")
	require.NoError(t, b.SetContext(ctx, fsm.ChatID(7), vars))

	got, ok, err := b.GetContext(ctx, fsm.ChatID(7))
	require.NoError(t, err)
	require.True(t, ok)

	name, ok := got.Get("name")
	require.True(t, ok)
	assert.Equal(t, "ada", name)
}

func TestBackend_GetContext_IsolatedFromWriterMutation(t *testing.T) {
	b := New()
	ctx := context.Background()

	vars := fsm.NewContext()
	vars.Set("count", float64(1))
	require.NoError(t, b.SetContext(ctx, fsm.ChatID(3), vars))

	// Mutating the caller's own copy after the write must not leak into
	// the backend's stored snapshot.
	vars.Set("count", float64(99))

	got, ok, err := b.GetContext(ctx, fsm.ChatID(3))
	require.NoError(t, err)
	require.True(t, ok)

	count, _ := got.Get("count")
	assert.Equal(t, float64(1), count)
}

func TestBackend_Len(t *testing.T) {
	b := New()
	ctx := context.Background()
	assert.Equal(t, 0, b.Len())

	require.NoError(t, b.SetState(ctx, fsm.ChatID(1), fsm.StateCode("a")))
	require.NoError(t, b.SetState(ctx, fsm.ChatID(2), fsm.StateCode("b")))
	assert.Equal(t, 2, b.Len())
}
