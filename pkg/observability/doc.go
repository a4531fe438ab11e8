/*
Package observability exports editor activity as Prometheus metrics.

Metrics count graph bus events by topic, connection checks by verdict and
reason, document imports with their duration, and the size of the operator
library. A nil *Metrics is valid and records nothing.
*/
package observability
