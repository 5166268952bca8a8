package markov

// Stats holds aggregated statistics for a chain.
type Stats struct {
	Order          int    `json:"order"`           // The number of tokens per context
	Contexts       int    `json:"contexts"`        // The number of distinct contexts
	Links          int    `json:"links"`           // The number of unique context->token links
	TotalFrequency uint64 `json:"total_frequency"` // The sum of all counts; the total number of trained transitions
	Vocabulary     int    `json:"vocabulary"`      // The number of distinct tokens appearing anywhere in the chain
}

// Stats returns a snapshot of statistics for the chain.
func (c *Chain) Stats() Stats {
	vocab := make(map[string]struct{})
	stats := Stats{
		Order:    c.order,
		Contexts: len(c.entries),
	}
	for _, e := range c.entries {
		for _, token := range e.context {
			vocab[token] = struct{}{}
		}
		for _, next := range e.next {
			vocab[next.Token] = struct{}{}
		}
		stats.Links += len(e.next)
		stats.TotalFrequency += e.total
	}
	stats.Vocabulary = len(vocab)
	return stats
}
