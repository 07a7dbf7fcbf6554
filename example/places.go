package main

import (
	"slices"
	"strings"

	"github.com/deeplooplabs/pagedcache"
)

// Place is one search result
type Place struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

func matchPlace(q *pagedcache.Query, p Place) bool {
	if q.Term != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Term)) {
		return false
	}
	return len(q.Categories) == 0 || slices.Contains(q.Categories, p.Category)
}

var demoPlaces = []Place{
	{ID: "d1", Name: "Central Coffee", Category: "cafe", Lat: 52.5200, Lon: 13.4050},
	{ID: "d2", Name: "Coffee Corner", Category: "cafe", Lat: 52.5210, Lon: 13.4100},
	{ID: "d3", Name: "Museum of Coffee", Category: "museum", Lat: 52.5170, Lon: 13.3890},
	{ID: "d4", Name: "Harbor Museum", Category: "museum", Lat: 52.5050, Lon: 13.4400},
	{ID: "d5", Name: "Riverside Park", Category: "park", Lat: 52.4980, Lon: 13.4200},
	{ID: "d6", Name: "Night Coffee Bar", Category: "bar", Lat: 52.5300, Lon: 13.4010},
	{ID: "d7", Name: "Old Town Bakery", Category: "cafe", Lat: 52.5190, Lon: 13.3980},
	{ID: "d8", Name: "Coffee Lab", Category: "cafe", Lat: 52.5120, Lon: 13.4150},
	{ID: "d9", Name: "City Park", Category: "park", Lat: 52.5140, Lon: 13.3500},
	{ID: "d10", Name: "Coffee & Books", Category: "cafe", Lat: 52.5260, Lon: 13.4300},
	{ID: "d11", Name: "Art Museum", Category: "museum", Lat: 52.5090, Lon: 13.3760},
	{ID: "d12", Name: "Coffee Kiosk", Category: "cafe", Lat: 52.5230, Lon: 13.4120},
	{ID: "d13", Name: "Tea & Coffee House", Category: "cafe", Lat: 52.5160, Lon: 13.4020},
	{ID: "d14", Name: "Botanical Garden", Category: "park", Lat: 52.4550, Lon: 13.3050},
	{ID: "d15", Name: "Coffee Roastery", Category: "cafe", Lat: 52.5010, Lon: 13.4430},
}
