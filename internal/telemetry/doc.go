// Package telemetry defines the core data types shared by the ingestion
// engine and its readers.
//
// Key types:
//   - Sample: one complete set of 15 channel readings received together
//   - Channel: index of one scalar quantity inside a Sample
package telemetry
