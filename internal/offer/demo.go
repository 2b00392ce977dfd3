package offer

import (
	"github.com/shopspring/decimal"

	"github.com/example/tow-dispatch/internal/models"
)

// DemoOffer is the canned roadside job shown when the driver comes online in
// demo mode.
func DemoOffer() models.Offer {
	return models.Offer{
		ID:             "TT-2024-001",
		CustomerName:   "Sarah Johnson",
		CustomerRating: 4.8,
		Pickup:         models.Coord{Lat: 41.8781, Lon: -87.6298},
		Dropoff:        models.Coord{Lat: 41.8800, Lon: -87.6300},
		PickupAddress:  "I-90 Exit 15, Chicago",
		DropoffAddress: "Shell Station, Main St",
		Problem:        "Battery Dead",
		VehicleType:    "Sedan",
		BasePrice:      decimal.NewFromInt(85),
	}
}
