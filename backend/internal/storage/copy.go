package storage

import (
	"context"
	"fmt"
)

// CopyPageSize is the scan page used by Copy
const CopyPageSize = 200

// Copy upserts every entry of src into dst and returns how many were written.
// Entries already in dst are overwritten when overwrite is set, and kept otherwise.
func Copy(ctx context.Context, src, dst Bucket, overwrite bool) (int, error) {
	written := 0
	for offset := 0; ; offset += CopyPageSize {
		page, err := src.Scan(ctx, CopyPageSize, offset)
		if err != nil {
			return written, fmt.Errorf("failed to scan source at offset %d: %w", offset, err)
		}

		for _, entry := range page {
			if !overwrite {
				if _, err := dst.Get(ctx, entry.Key); err == nil {
					continue
				}
			}
			if err := dst.Upsert(ctx, entry.Key, entry.Value); err != nil {
				return written, fmt.Errorf("failed to copy %q: %w", entry.Key, err)
			}
			written++
		}

		if len(page) < CopyPageSize {
			return written, nil
		}
	}
}
