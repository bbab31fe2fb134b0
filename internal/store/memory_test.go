package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fedresearch-cli/internal/model"
)

func TestMemoryRoundTrip(t *testing.T) {
	st := NewMemory()
	st.AddEntity("jane | GSA")

	require.NoError(t, st.Put(context.Background(), "jane | GSA", sampleProfile()))

	p, err := st.Get(context.Background(), "jane | GSA")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, model.MethodFresh, p.Method)
}

func TestMemoryGetMissing(t *testing.T) {
	st := NewMemory()
	p, err := st.Get(context.Background(), "missing | X")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestMemoryPutUnknownEntity(t *testing.T) {
	st := NewMemory()
	err := st.Put(context.Background(), "ghost | GSA", sampleProfile())
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	st := NewMemory()
	st.AddEntity("jane | GSA")
	require.NoError(t, st.Put(context.Background(), "jane | GSA", sampleProfile()))

	p, err := st.Get(context.Background(), "jane | GSA")
	require.NoError(t, err)
	p.Method = model.MethodCached

	again, err := st.Get(context.Background(), "jane | GSA")
	require.NoError(t, err)
	assert.Equal(t, model.MethodFresh, again.Method, "mutating a returned profile does not affect the store")
}
