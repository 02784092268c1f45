package history

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-bridge/internal/record"
)

func rec(i int) *record.Record {
	return record.FromFields(record.Field{Key: "n", Value: strconv.Itoa(i)})
}

func ids(t *testing.T, recs []*record.Record) []string {
	t.Helper()
	out := make([]string, len(recs))
	for i, r := range recs {
		v, ok := r.Get("n")
		require.True(t, ok)
		out[i] = v.(string)
	}
	return out
}

func TestBuffer_AppendBelowCapacity(t *testing.T) {
	b := NewBuffer(5)
	for i := 1; i <= 3; i++ {
		b.Append(rec(i))
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 5, b.Cap())
	assert.Equal(t, []string{"1", "2", "3"}, ids(t, b.Snapshot()))
}

func TestBuffer_EvictsOldestFirst(t *testing.T) {
	b := NewBuffer(DefaultCapacity)
	for i := 1; i <= 1001; i++ {
		b.Append(rec(i))
		require.LessOrEqual(t, b.Len(), DefaultCapacity)
	}

	snap := b.Snapshot()
	require.Len(t, snap, 1000)
	got := ids(t, snap)
	assert.Equal(t, "2", got[0])
	assert.Equal(t, "1001", got[999])
	for i, id := range got {
		assert.Equal(t, strconv.Itoa(i+2), id)
	}
}

func TestBuffer_WrapsRepeatedly(t *testing.T) {
	b := NewBuffer(3)
	for i := 1; i <= 10; i++ {
		b.Append(rec(i))
	}
	assert.Equal(t, []string{"8", "9", "10"}, ids(t, b.Snapshot()))
}

func TestBuffer_SnapshotIsIdempotentAndIndependent(t *testing.T) {
	b := NewBuffer(3)
	b.Append(rec(1))
	b.Append(rec(2))

	first := b.Snapshot()
	second := b.Snapshot()
	assert.Equal(t, first, second)

	first[0] = nil
	b.Append(rec(3))
	assert.Equal(t, []string{"1", "2", "3"}, ids(t, b.Snapshot()))
	assert.Len(t, second, 2)
}

func TestBuffer_IgnoresNil(t *testing.T) {
	b := NewBuffer(2)
	b.Append(nil)
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Snapshot())
}

func TestBuffer_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewBuffer(0).Cap())
	assert.Equal(t, DefaultCapacity, NewBuffer(-4).Cap())
}

func TestBuffer_ConcurrentAppendAndSnapshot(t *testing.T) {
	b := NewBuffer(100)

	const writers, perWriter = 8, 1000
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				b.Append(rec(w*perWriter + i))
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			snap := b.Snapshot()
			assert.LessOrEqual(t, len(snap), 100)
			for _, r := range snap {
				assert.NotNil(t, r)
			}
		}
	}()

	wg.Wait()
	<-done
	assert.Equal(t, 100, b.Len())
}

func TestBuffer_PerWriterOrderPreserved(t *testing.T) {
	b := NewBuffer(10000)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				b.Append(record.FromFields(
					record.Field{Key: "w", Value: w},
					record.Field{Key: "i", Value: i},
				))
			}
		}(w)
	}
	wg.Wait()

	last := map[int]int{0: -1, 1: -1, 2: -1, 3: -1}
	for _, r := range b.Snapshot() {
		w, _ := r.Get("w")
		i, _ := r.Get("i")
		assert.Greater(t, i.(int), last[w.(int)])
		last[w.(int)] = i.(int)
	}
}
