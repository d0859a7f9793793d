package storage

import (
	"fmt"
	"testing"
)

func getAllImplementations() map[string]Storage {
	shardedMap1, _ := NewShardedMapStorage(1)
	shardedMap16, _ := NewShardedMapStorage(16)
	shardedMap64, _ := NewShardedMapStorage(64)

	return map[string]Storage{
		"MapStorage":           NewMapStorage(),
		"ShardedMapStorage_1":  shardedMap1,
		"ShardedMapStorage_16": shardedMap16,
		"ShardedMapStorage_64": shardedMap64,
	}
}

func BenchmarkStorage(b *testing.B) {
	implementations := getAllImplementations()

	for name, s := range implementations {
		b.Run(fmt.Sprintf("%s/ReadOnly", name), func(b *testing.B) {
			s.Put("bench_key", "value", 0)
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					s.GetIfPresent("bench_key")
				}
			})
		})

		b.Run(fmt.Sprintf("%s/Mixed90-10", name), func(b *testing.B) {
			keyCount := 1000
			for i := 0; i < keyCount; i++ {
				s.Put(fmt.Sprintf("key%d", i), "val", 0)
			}
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					key := fmt.Sprintf("key%d", i%keyCount)
					if i%10 == 0 {
						s.Put(key, "new_val", 0)
					} else {
						s.GetIfPresent(key)
					}
					i++
				}
			})
		})

		b.Run(fmt.Sprintf("%s/WriteHeavy", name), func(b *testing.B) {
			keyCount := 1000
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					key := fmt.Sprintf("key%d", i%keyCount)
					if i%2 == 0 {
						s.Put(key, "val", 0)
					} else {
						s.GetIfPresent(key)
					}
					i++
				}
			})
		})
	}
}
