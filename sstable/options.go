package sstable

import "github.com/cqlite/cqlite/schema"

// Options configures how a generation is opened.
type Options struct {
	CompressionCacheChunks int
	EnableBloom            bool
	SchemaOverride         *schema.Table
	LenientOrdering        bool
}

// Option mutates an Options value.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		CompressionCacheChunks: 8,
		EnableBloom:            true,
	}
}

// WithCompressionCacheChunks overrides how many decompressed chunks
// compression.Reader caches per shard.
func WithCompressionCacheChunks(n int) Option {
	return func(o *Options) { o.CompressionCacheChunks = n }
}

// WithBloomFilter toggles whether Filter.db is loaded and consulted on
// Get. Disabling it is mainly useful for exercising the fallback path
// in tests.
func WithBloomFilter(enable bool) Option {
	return func(o *Options) { o.EnableBloom = enable }
}

// WithSchemaOverride supplies a CREATE TABLE-derived schema to unify
// against Statistics.db's serialization header, instead of the
// synthetic positional schema Open falls back to inferring on its own.
func WithSchemaOverride(t *schema.Table) Option {
	return func(o *Options) { o.SchemaOverride = t }
}

// WithLenientOrdering allows Open to accept a schema whose clustering
// order disagrees with the serialization header's recorded order,
// trusting the caller's override instead of rejecting the mismatch.
func WithLenientOrdering(lenient bool) Option {
	return func(o *Options) { o.LenientOrdering = lenient }
}
