// Package store defines the token store capability and its built-in
// implementations.
//
// A token store is a minimal key-value persistence layer with no business
// logic: the token manager decides what gets written, a store only keeps it.
// Three implementations ship with the SDK: an in-process memory store, a
// file-backed store for tokens that must survive restarts, and a cookie-jar
// backed store for deployments where the API lives on a different origin and
// the session must ride in a cookie the host controls.
//
// Stores are addressed by name through a Registry, so hosts can register
// their own implementation and select it in configuration.
package store
