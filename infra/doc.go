// Package infra holds the adapters behind the core interfaces: the paho
// MQTT client, the LP solver backends, run log stores, metric sinks, logging
// backends and Sentry.
package infra
