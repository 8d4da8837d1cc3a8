package domain

// ReindexReport summarises one reindex run over a corpus.
//
// Counts are per chunk, not per document. Running reindex twice on an
// unchanged corpus yields Added=0, Updated=0, Removed=0 on the second run,
// with every chunk counted as unchanged.
type ReindexReport struct {
	// CorpusID is the corpus the run covered.
	CorpusID string `json:"corpus_id"`

	// Added counts chunks whose IDs were not previously known.
	Added int `json:"added"`

	// Updated counts chunks whose ID was known but whose content hash changed.
	Updated int `json:"updated"`

	// Unchanged counts chunks skipped entirely (no embed call, no index call).
	Unchanged int `json:"unchanged"`

	// Removed counts stale chunks deleted from the index and store.
	Removed int `json:"removed"`

	// FailedBatches lists embedding batches that exhausted their retry
	// budget. Failed batches are retryable independently; successfully
	// processed batches are not rolled back.
	FailedBatches []string `json:"failed_batches,omitempty"`
}
