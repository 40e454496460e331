package coordinator

import "context"

// runChunked feeds ids to fn in fixed-size chunks, checking for
// caller cancellation between chunks. Chunking bounds the peak
// working set during large batch updates; it is not a parallelism
// mechanism, the engine runs one mutation at a time.
func (c *Coordinator) runChunked(ctx context.Context, ids []string, fn func(chunk []string)) error {
	for start := 0; start < len(ids); start += c.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + c.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		fn(ids[start:end])
	}
	return nil
}
