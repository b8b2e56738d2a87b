// Package redis implements an experiment tracker backed by Redis, so that
// several training hosts can report runs to one place.
package redis
