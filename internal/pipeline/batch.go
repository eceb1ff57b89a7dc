// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

package pipeline

// DefaultBatchSize is the number of canonical observations per downstream
// delivery.
const DefaultBatchSize = 200

// Batch partitions items into groups of at most size elements, preserving
// order. For M items it yields ceil(M/size) groups; the concatenation of
// all groups equals the input. The groups share the input's backing array.
func Batch[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if len(items) == 0 {
		return nil
	}

	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}
