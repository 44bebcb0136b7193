// Package dedup filters candidate batches against previously seen content.
package dedup

import "NewsDigest/internal/domain"

// Dedupe partitions a fingerprinted batch into the subset not previously seen
// plus the fingerprints to record for it. Candidates whose fingerprint appears
// in known, or earlier in the same batch, are duplicates and dropped; within a
// batch the first occurrence wins. Candidates with an empty fingerprint carry
// no usable identity and are skipped. Input order is preserved, which keeps
// the result deterministic for a given batch.
func Dedupe(candidates []domain.Candidate, known map[domain.Fingerprint]struct{}) ([]domain.Candidate, []domain.Fingerprint) {
	fresh := make([]domain.Candidate, 0, len(candidates))
	fingerprints := make([]domain.Fingerprint, 0, len(candidates))
	batch := make(map[domain.Fingerprint]struct{}, len(candidates))

	for _, candidate := range candidates {
		fp := candidate.Fingerprint
		if fp == "" {
			continue
		}
		if _, seen := known[fp]; seen {
			continue
		}
		if _, seen := batch[fp]; seen {
			continue
		}
		batch[fp] = struct{}{}
		fresh = append(fresh, candidate)
		fingerprints = append(fingerprints, fp)
	}

	return fresh, fingerprints
}
