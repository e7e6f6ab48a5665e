package entity

import (
	"time"
)

type ResourceStatus string

const (
	ResourceStatusAvailable   ResourceStatus = "available"
	ResourceStatusBorrowed    ResourceStatus = "borrowed"
	ResourceStatusReserved    ResourceStatus = "reserved"
	ResourceStatusMaintenance ResourceStatus = "maintenance"
)

type ResourceCategory string

const (
	CategoryAcademic   ResourceCategory = "academic"
	CategoryFiction    ResourceCategory = "fiction"
	CategoryHistorical ResourceCategory = "historical"
	CategoryReference  ResourceCategory = "reference"
	CategoryMultimedia ResourceCategory = "multimedia"
	CategoryResearch   ResourceCategory = "research"
)

type Resource struct {
	ID        string           `json:"id" db:"id"`
	Title     string           `json:"title" db:"title"`
	Author    string           `json:"author" db:"author"`
	Category  ResourceCategory `json:"category" db:"category"`
	Status    ResourceStatus   `json:"status" db:"status"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// Available reports whether the resource can be handed out right now.
func (r *Resource) Available() bool {
	return r.Status == ResourceStatusAvailable
}
