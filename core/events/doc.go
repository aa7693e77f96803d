// Package events defines the events emitted on the event bus by the
// optimization service.
//
// Available event types:
//   - RunEvent: one optimization run finished, successfully or not
//   - ForecastEvent: a price forecast was fetched or the fetch failed
//   - PublishEvent: a schedule publication attempt finished
package events
