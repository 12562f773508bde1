// Package redis keeps the proof cache and the computation log in Redis.
// Proofs live in a hash keyed by proof id with a companion list preserving
// insertion order; computation records are appended to a list.
package redis
