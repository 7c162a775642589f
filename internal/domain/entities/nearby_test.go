package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/carefinder/pkg/geo"
)

func TestRankNearby_SortsAscending(t *testing.T) {
	center := geo.Coordinates{Latitude: 0, Longitude: 0}
	// about 12.3, 1.0 and 5.5 km north of the equator origin
	at := func(id string, km float64) *Facility {
		return &Facility{ID: id, IsActive: true, Location: Location{Latitude: km / 111.195}}
	}

	ranked := RankNearby([]*Facility{at("c", 12.3), at("a", 1.0), at("b", 5.5)}, center, 20, nil)

	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{ranked[0].ID, ranked[1].ID, ranked[2].ID})
	assert.InDelta(t, 1.0, ranked[0].DistanceKm, 0.01)
	assert.InDelta(t, 5.5, ranked[1].DistanceKm, 0.01)
	assert.InDelta(t, 12.3, ranked[2].DistanceKm, 0.01)
}

func TestRankNearby_ExcludesInactiveAndOutOfRadius(t *testing.T) {
	center := geo.Coordinates{Latitude: 0, Longitude: 0}
	active := &Facility{ID: "a", IsActive: true, Location: Location{Latitude: 0.01}}
	inactive := &Facility{ID: "x", IsActive: false, Location: Location{Latitude: 0.01}}
	far := &Facility{ID: "far", IsActive: true, Location: Location{Latitude: 1}}

	ranked := RankNearby([]*Facility{active, inactive, far, nil}, center, 5, nil)

	require.Len(t, ranked, 1)
	assert.Equal(t, "a", ranked[0].ID)
}

func TestRankNearby_StableOnTies(t *testing.T) {
	center := geo.Coordinates{Latitude: 0, Longitude: 0}
	a := &Facility{ID: "a", IsActive: true, Location: Location{Latitude: 0.01}}
	b := &Facility{ID: "b", IsActive: true, Location: Location{Latitude: -0.01}}

	ranked := RankNearby([]*Facility{a, b}, center, 5, nil)

	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].ID)
	assert.Equal(t, "b", ranked[1].ID)
}

func TestRankNearby_PaymentOptionsAreOR(t *testing.T) {
	center := geo.Coordinates{Latitude: 0, Longitude: 0}
	sliding := &Facility{ID: "sliding", IsActive: true, PaymentOptions: PaymentOptions{SlidingScale: true}}
	free := &Facility{ID: "free", IsActive: true, PaymentOptions: PaymentOptions{FreeCare: true}}
	medicare := &Facility{ID: "medicare", IsActive: true, PaymentOptions: PaymentOptions{AcceptsMedicare: true}}

	ranked := RankNearby([]*Facility{sliding, free, medicare}, center, 5, []string{"slidingScale", "freeCare"})

	require.Len(t, ranked, 2)
	assert.Equal(t, "sliding", ranked[0].ID)
	assert.Equal(t, "free", ranked[1].ID)
}

func TestFindProcedure_CaseInsensitive(t *testing.T) {
	f := &Facility{ProcedureCosts: []ProcedureCost{{ProcedureName: "Annual Physical", AverageCost: 200}}}

	pc, ok := f.FindProcedure("  annual physical")
	require.True(t, ok)
	assert.Equal(t, 200.0, pc.AverageCost)

	_, ok = f.FindProcedure("MRI")
	assert.False(t, ok)
}

func TestPaymentInfo_Satisfies(t *testing.T) {
	info := PaymentInfo{AcceptsInsurance: TriStateYes, SlidingScale: TriStateUnknown, FreeCare: TriStateNo}

	assert.True(t, info.Satisfies("acceptsInsurance"))
	assert.False(t, info.Satisfies("slidingScale"))
	assert.False(t, info.Satisfies("freeCare"))
	assert.False(t, info.Satisfies("cash"))
}

func TestAddressString(t *testing.T) {
	a := Address{Street: "75 Francis St", City: "Boston", State: "MA", ZipCode: "02115"}
	assert.Equal(t, "75 Francis St, Boston, MA, 02115", a.String())
}
