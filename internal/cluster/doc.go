// Package cluster defines the job model and the HTTP client used to
// fetch authoritative job lists from the aggregator, one host per
// request. Fetch failures are classified as timeout or other via
// *FetchError so sync bookkeeping can record the two kinds separately.
// The same JobsResponse shape arrives over the push channel.
package cluster
