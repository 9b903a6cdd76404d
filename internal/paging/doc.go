// package paging implements a generic engine for draining offset-paginated
// remote collections.
//
// The engine issues one probe request to learn the collection's total
// cardinality, synthesizes the full set of page requests, and executes them
// with bounded parallel fan-out. Results are reassembled in request order so
// callers always see the sequence a strictly sequential fetch would have
// produced. Individual pages retry with a fixed delay before the whole fetch
// is abandoned.
package paging
