package op

import (
	"testing"

	"github.com/nelknet/dbsp/zset"
)

type timedRow struct{ t int64 }

func TestTumblingWindowClosesOnWatermark(t *testing.T) {
	w := NewTumblingWindow[timedRow](10, func(r timedRow) int64 { return r.t })

	delta := zset.NewBuilder[timedRow](0).Add(timedRow{3}, 1).Add(timedRow{7}, 1).Build()
	closed := w.Step(delta, 5)
	if len(closed) != 0 {
		t.Fatalf("bucket [0,10) must not close before watermark reaches 10")
	}

	more := zset.NewBuilder[timedRow](0).Add(timedRow{15}, 1).Build()
	closed = w.Step(more, 12)
	if len(closed) != 1 || closed[0].Bucket != 0 {
		t.Fatalf("expected bucket 0 to close once watermark passes 10, got %+v", closed)
	}
	if closed[0].Content.Len() != 2 {
		t.Fatalf("expected both rows from bucket 0")
	}
}

func TestSlidingCountWindowEvictsOldestStep(t *testing.T) {
	w := NewSlidingCountWindow[int](2)
	s1 := zset.Singleton(1, 1)
	s2 := zset.Singleton(2, 1)
	s3 := zset.Singleton(3, 1)

	out1 := w.Step(s1)
	if !zset.Equal(out1, s1) {
		t.Fatalf("first step should pass through unchanged")
	}
	out2 := w.Step(s2)
	if !zset.Equal(out2, s2) {
		t.Fatalf("second step should pass through unchanged (window not yet full)")
	}
	out3 := w.Step(s3)
	want := zset.Difference(s3, s1)
	if !zset.Equal(out3, want) {
		t.Fatalf("third step should evict step 1's content")
	}
}
