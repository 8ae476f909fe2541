package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func layerTask(key string, n int, err error) Task[int] {
	return Task[int]{Key: key, Run: func(ctx context.Context) (int, error) {
		return n, err
	}}
}

func TestSettleAllCollectsSuccesses(t *testing.T) {
	out := SettleAll(context.Background(), []Task[int]{
		layerTask("roads", 3, nil),
		layerTask("water", 0, errors.New("timeout")),
		layerTask("buildings", 7, nil),
	})
	require.Len(t, out, 3)
	assert.Equal(t, []string{"roads", "water", "buildings"}, []string{out[0].Key, out[1].Key, out[2].Key})
	assert.Equal(t, []int{3, 7}, Fulfilled(out))

	bad := Rejected(out)
	require.Len(t, bad, 1)
	assert.Equal(t, "water", bad[0].Key)
}

func TestSettleAllInCoordinator(t *testing.T) {
	c := New("layers", func(ctx context.Context, in int) ([]int, error) {
		return Fulfilled(SettleAll(ctx, []Task[int]{
			layerTask("a", in, nil),
			layerTask("b", 0, errors.New("layer b failed")),
			layerTask("c", in+1, nil),
		})), nil
	}, nil)
	c.Update(10)
	c.Wait()
	snap := c.Snapshot()
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Equal(t, []int{10, 11}, snap.Result)
}

func TestSettleAllEmpty(t *testing.T) {
	assert.Empty(t, SettleAll[int](context.Background(), nil))
	assert.Nil(t, Fulfilled[int](nil))
}
