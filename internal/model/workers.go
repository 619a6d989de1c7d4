package model

import "time"

// FetchTask is one per-day warehouse query
type FetchTask struct {
	Day   time.Time `json:"day"`
	Table string    `json:"table"`
	Query string    `json:"query"`
}

// FetchResult is the materialized result of a FetchTask
type FetchResult struct {
	Task  FetchTask
	Table *Table
	Err   error
}

// SummarySpec names one group-by-sum reduction and the tab it is published to
type SummarySpec struct {
	Title     string `json:"title"`
	Dimension string `json:"dimension"`
	Metric    string `json:"metric"`
}
