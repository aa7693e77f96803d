package runlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/battopt/core/factory"
)

func TestQueryMatch(t *testing.T) {
	base := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	rec := Record{Timestamp: base, Status: "Optimal"}

	assert.True(t, Query{}.Match(rec))
	assert.True(t, Query{Start: base, End: base}.Match(rec))
	assert.False(t, Query{Start: base.Add(time.Second)}.Match(rec))
	assert.False(t, Query{End: base.Add(-time.Second)}.Match(rec))
	assert.True(t, Query{Status: "Optimal"}.Match(rec))
	assert.False(t, Query{Status: "Infeasible"}.Match(rec))
}

func TestQueryTrim(t *testing.T) {
	recs := []Record{{RunID: "a"}, {RunID: "b"}, {RunID: "c"}}
	assert.Len(t, Query{}.Trim(recs), 3)
	got := Query{Limit: 2}.Trim(recs)
	assert.Equal(t, []Record{{RunID: "b"}, {RunID: "c"}}, got)
}

func TestNewStoreDefaultsToNop(t *testing.T) {
	s, err := NewStore(factory.ModuleConfig{})
	assert.NoError(t, err)
	assert.IsType(t, NopStore{}, s)

	_, err = NewStore(factory.ModuleConfig{Type: "missing"})
	assert.Error(t, err)
}
