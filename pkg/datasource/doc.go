// Package datasource memoizes an expensive load so that every consumer of a
// request shares one fetch.
//
// A Source starts its fetch on first use and hands the same value and error
// to every caller, whether they block on Get or register with Subscribe.
// Ready builds an already-resolved Source that never fetches.
package datasource
