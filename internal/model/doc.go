// Package model contains the data structures shared between the download
// orchestrator, the HTTP layer, and the notification channel.
package model
