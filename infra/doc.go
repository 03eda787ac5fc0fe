// Package infra groups the adapters that move optimizer results out of the
// process: zerolog logging, Prometheus and InfluxDB sinks, the Paho schedule
// publisher and the Sentry monitor. Each adapter implements a contract from
// core and is selected by configuration; the optimizer never imports them.
package infra
