// Package mysql persists the proof cache and the computation log in MySQL.
// Open establishes the connection pool and applies the embedded schema
// migrations from deploy/migrations before any repository is used.
package mysql
