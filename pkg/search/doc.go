// Package search aggregates vendor results from every configured source.
//
// # Overview
//
// A search request carries a free-text keyword, a free-text location and an
// optional subcategory. The aggregator turns that into a single query that
// every source adapter understands:
//
//   - the keyword is classified once into a canonical category, if any rule
//     matches it
//   - the location is split on commas into city and state; adapters filter
//     by place only when both are present
//   - the location is resolved once into a provider location code, which is
//     reported back and recorded
//
// # Fan-out
//
// Each adapter runs in its own goroutine under its own timeout derived from
// the request context. Adapters write to their own result slot, so the merge
// needs no locking. The aggregator waits for every adapter to settle; a
// failing, slow or panicking adapter contributes zero results and an error
// entry in the per-source report but never fails the request.
//
// Results are concatenated in adapter registration order. No cross-source
// ranking is done here.
//
// # Usage
//
//	agg := search.New(registry.Adapters(),
//		search.WithClassifier(category.New()),
//		search.WithResolver(res),
//		search.WithRecorder(stats),
//	)
//	resp, err := agg.Search(ctx, search.Request{
//		Keyword:  "wedding photographer",
//		Location: "Austin, Texas",
//	})
//	if errors.Is(err, search.ErrValidation) {
//		// keyword or location missing
//	}
//
// # Recording
//
// When a recorder is configured every successful search is logged to the
// search-call table together with its cost, which is the sum of the
// configured cost of the adapters that answered.
package search
