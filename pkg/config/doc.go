// Package config loads the training configuration document.
//
// A configuration is kept in two views: the raw nested mapping exactly as the
// YAML decoder produced it, and a typed Settings value decoded from it. The
// raw view is what gets logged (redacted) and sent to the experiment tracker;
// the typed view is what the orchestrator reads.
package config
