// Package storage provides the embedded key-value engine that persists the
// object database.
//
// KVEngine abstracts the engine; BadgerEngine implements it on Badger v3.
// The engine runs value log GC in the background and can publish its size
// on a Prometheus registry.
//
// Object caching, connections and activity accounting live one level up in
// package objdb. This package only moves bytes.
package storage
