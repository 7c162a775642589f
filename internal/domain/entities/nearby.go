package entities

import (
	"sort"

	"github.com/zatekoja/carefinder/pkg/geo"
)

// RankNearby keeps active facilities within radiusKm of center that match any of
// the payment options, nearest first. Ties keep input order.
func RankNearby(facilities []*Facility, center geo.Coordinates, radiusKm float64, paymentOptions []string) []*NearbyFacility {
	nearby := make([]*NearbyFacility, 0, len(facilities))
	for _, f := range facilities {
		if f == nil || !f.IsActive || !f.PaymentOptions.MatchesAny(paymentOptions) {
			continue
		}
		distance := geo.DistanceKm(center, geo.Coordinates{Latitude: f.Location.Latitude, Longitude: f.Location.Longitude})
		if distance > radiusKm {
			continue
		}
		nearby = append(nearby, &NearbyFacility{Facility: f, DistanceKm: distance})
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].DistanceKm < nearby[j].DistanceKm
	})
	return nearby
}
