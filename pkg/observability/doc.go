/*
Package observability provides lifecycle hooks that turn pipeline stage
transitions into structured log lines and Prometheus metrics.

Metrics are kept in a private registry and can be written in the node
exporter textfile format at the end of a run, since the pipeline is a batch
job with no long-lived endpoint to scrape.
*/
package observability
