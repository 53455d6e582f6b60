// Package store owns durable persistence for the monitoring and delivery
// pipeline: monitor configurations, observed status points, events, delivery
// records, notification channels and fan-out rules.
//
// The schema is SQLite managed through gorm with AutoMigrate. Cross-table
// invariants live here: deleting an event also deletes its delivery records,
// deleting a channel removes the rules that reference it, and the
// (event, channel) delivery-existence check backs the at-most-once guarantee.
package store
