// Package cache implements the query-result cache that sits in front of the
// document store: a fixed-capacity LRU whose entries expire by data class.
//
// Keys come from Key, which canonicalizes a store.Query so that
// semantically equal queries share an entry. Writers keep the cache
// coherent by calling Invalidate with the affected collection prefix.
package cache
