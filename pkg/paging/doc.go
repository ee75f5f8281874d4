// Package paging walks cursor-paginated upstream collections.
//
// Pager streams pages to a callback in cursor order and can be stopped
// cooperatively: a stopped pager discards the page in flight and Start
// returns nil. FetchAll collects every page of a collection into a slice
// with large pages by default.
//
// Both follow the "before" cursor returned in each page's paging block and
// stop when it is absent. The cursor parameter is always owned by the pager;
// callers cannot seed it.
package paging
