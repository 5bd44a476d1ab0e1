// Package service contains the stateful side of the flow map server: the
// current dataset, visual settings, selection and the latest composition.
package service

import (
	"time"

	"github.com/joeblew999/plat-flowmap/internal/flow"
)

// SourceFile represents a tabular source file (CSV, Parquet, JSON).
type SourceFile struct {
	Name     string `json:"name" doc:"File name" example:"flights.csv"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	FileType string `json:"fileType" doc:"File type: CSV, Parquet or JSON" example:"CSV"`
}

// Dataset is the host data currently bound to the visual.
type Dataset struct {
	Columns   flow.Columns        `json:"columns" doc:"Raw columns by role"`
	Overrides *flow.OverrideTable `json:"overrides,omitempty" doc:"Per-row and global color overrides"`
}

// DatasetInfo summarises the bound dataset.
type DatasetInfo struct {
	Rows        int    `json:"rows" doc:"Source rows"`
	Routes      int    `json:"routes" doc:"Valid routes after normalization"`
	HasCategory bool   `json:"hasCategory" doc:"Whether a category column is bound"`
	Source      string `json:"source,omitempty" doc:"Where the rows came from"`
}

// Frame is one published composition.
type Frame struct {
	ID          string            `json:"id" doc:"Frame identifier"`
	Sequence    uint64            `json:"sequence" doc:"Monotonic composition counter"`
	ComposedAt  time.Time         `json:"composedAt" doc:"Composition time"`
	Error       string            `json:"error,omitempty" doc:"Composition failure, if any"`
	Composition *flow.Composition `json:"composition" doc:"Styled routes, clusters and legend"`
}
