package model

// LocationStats aggregates plot counts and value totals for one
// location collection (or globally when Location is empty).  Served
// from cache; recomputed after any plot write invalidates the key.
type LocationStats struct {
	Location       string `json:"location,omitempty"`
	TotalPlots     int    `json:"total_plots"`
	Available      int    `json:"available"`
	Reserved       int    `json:"reserved"`
	Held           int    `json:"held"`
	Sold           int    `json:"sold"`
	TotalValue     int64  `json:"total_value"`
	SoldValue      int64  `json:"sold_value"`
	CollectedValue int64  `json:"collected_value"`
}
