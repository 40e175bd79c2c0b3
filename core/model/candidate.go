package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// MaxTripsPerPair caps the trip count of a single truck/site pair to keep the
// integer program small.
const MaxTripsPerPair = 15

// ErrDuplicateCandidate is returned when the same truck/site pair is added twice.
var ErrDuplicateCandidate = errors.New("duplicate truck/site candidate")

// Pair identifies a truck/site combination.
type Pair struct {
	TruckID string
	SiteID  string
}

func (p Pair) String() string { return p.TruckID + "/" + p.SiteID }

// Candidate is one row of the truck x site input table.
type Candidate struct {
	TruckID        string
	SiteID         string
	AvailableHours float64 // truck budget
	RoundTripHours float64 // site turnaround for the selected season
	Stockpile      float64 // site weekly volume
	LoadPerTrip    float64 // volume one trip of this truck brings back from this site
	ProfitPerUnit  *float64
}

// Pair returns the candidate key.
func (c Candidate) Pair() Pair { return Pair{TruckID: c.TruckID, SiteID: c.SiteID} }

// TripBound returns floor(hours / round trip) capped at limit. A non-positive
// round trip makes the candidate inadmissible.
func (c Candidate) TripBound(limit int) int {
	if c.RoundTripHours <= 0 || !finiteNonNegative(c.AvailableHours) || math.IsNaN(c.RoundTripHours) {
		return 0
	}
	phys := math.Floor(c.AvailableHours/c.RoundTripHours + eps)
	if math.IsInf(phys, 1) || phys > float64(limit) {
		return limit
	}
	if phys < 0 {
		return 0
	}
	return int(phys)
}

// TripValue returns the objective weight of one trip.
func (c Candidate) TripValue(profit bool) float64 {
	if profit && c.ProfitPerUnit != nil {
		return c.LoadPerTrip * *c.ProfitPerUnit
	}
	return c.LoadPerTrip
}

// TripProfit returns the profit of one trip, 0 without profit data.
func (c Candidate) TripProfit() float64 {
	if c.ProfitPerUnit == nil {
		return 0
	}
	return c.LoadPerTrip * *c.ProfitPerUnit
}

// CandidateTable indexes candidates by pair and keeps per truck and per site
// aggregates. Candidates keep insertion order.
type CandidateTable struct {
	rows    []Candidate
	index   map[Pair]int
	trucks  []string
	sites   []string
	hours   map[string]float64
	volumes map[string]float64
}

// NewCandidateTable validates and indexes the given candidates.
func NewCandidateTable(cands []Candidate) (*CandidateTable, error) {
	t := &CandidateTable{
		index:   make(map[Pair]int, len(cands)),
		hours:   make(map[string]float64),
		volumes: make(map[string]float64),
	}
	for _, c := range cands {
		if err := t.add(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *CandidateTable) add(c Candidate) error {
	if c.TruckID == "" || c.SiteID == "" {
		return fmt.Errorf("candidate requires truck and site ids")
	}
	p := c.Pair()
	if _, ok := t.index[p]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCandidate, p)
	}
	if h, ok := t.hours[c.TruckID]; !ok {
		t.trucks = append(t.trucks, c.TruckID)
		t.hours[c.TruckID] = c.AvailableHours
	} else if h != c.AvailableHours && !(math.IsNaN(h) && math.IsNaN(c.AvailableHours)) {
		return fmt.Errorf("truck %s: inconsistent available hours %v and %v", c.TruckID, h, c.AvailableHours)
	}
	if v, ok := t.volumes[c.SiteID]; !ok {
		t.sites = append(t.sites, c.SiteID)
		t.volumes[c.SiteID] = c.Stockpile
	} else if v != c.Stockpile && !(math.IsNaN(v) && math.IsNaN(c.Stockpile)) {
		return fmt.Errorf("site %s: inconsistent stockpile %v and %v", c.SiteID, v, c.Stockpile)
	}
	t.index[p] = len(t.rows)
	t.rows = append(t.rows, c)
	return nil
}

// Len returns the number of candidates.
func (t *CandidateTable) Len() int { return len(t.rows) }

// Candidates returns a copy of all rows.
func (t *CandidateTable) Candidates() []Candidate {
	out := make([]Candidate, len(t.rows))
	copy(out, t.rows)
	return out
}

// Lookup returns the candidate for the pair.
func (t *CandidateTable) Lookup(truckID, siteID string) (Candidate, bool) {
	i, ok := t.index[Pair{TruckID: truckID, SiteID: siteID}]
	if !ok {
		return Candidate{}, false
	}
	return t.rows[i], true
}

// TruckIDs lists trucks in first-seen order.
func (t *CandidateTable) TruckIDs() []string { return append([]string(nil), t.trucks...) }

// SiteIDs lists sites in first-seen order.
func (t *CandidateTable) SiteIDs() []string { return append([]string(nil), t.sites...) }

// TruckHours returns the weekly budget of a truck.
func (t *CandidateTable) TruckHours(id string) float64 { return t.hours[id] }

// SiteStockpile returns the weekly volume of a site.
func (t *CandidateTable) SiteStockpile(id string) float64 { return t.volumes[id] }

// HasProfit reports whether every candidate carries profit data.
func (t *CandidateTable) HasProfit() bool {
	if len(t.rows) == 0 {
		return false
	}
	for _, c := range t.rows {
		if c.ProfitPerUnit == nil {
			return false
		}
	}
	return true
}

// SiteProfile summarises the per-site parameters shared by every truck.
type SiteProfile struct {
	SiteID         string
	RoundTripHours float64
	// LoadPerTrip is the largest load any truck brings back from the site.
	LoadPerTrip   float64
	ProfitPerUnit *float64
}

// SiteProfile returns the profile of the given site.
func (t *CandidateTable) SiteProfile(id string) (SiteProfile, bool) {
	var (
		prof  SiteProfile
		found bool
	)
	for _, c := range t.rows {
		if c.SiteID != id {
			continue
		}
		if !found {
			prof = SiteProfile{SiteID: id, RoundTripHours: c.RoundTripHours, ProfitPerUnit: c.ProfitPerUnit}
			found = true
		}
		if c.LoadPerTrip > prof.LoadPerTrip {
			prof.LoadPerTrip = c.LoadPerTrip
		}
	}
	return prof, found
}

// Validate checks every budget and stockpile is a finite non-negative number.
func (t *CandidateTable) Validate() error {
	for _, id := range t.trucks {
		if !finiteNonNegative(t.hours[id]) {
			return fmt.Errorf("truck %s: invalid available hours %v", id, t.hours[id])
		}
	}
	for _, id := range t.sites {
		if !finiteNonNegative(t.volumes[id]) {
			return fmt.Errorf("site %s: invalid stockpile %v", id, t.volumes[id])
		}
	}
	return nil
}

// CrossJoin builds the candidate table for every truck and every site with a
// positive stockpile. load returns the volume a truck brings back from a site.
func CrossJoin(trucks []Truck, sites []Site, load func(Truck, Site) float64) (*CandidateTable, error) {
	cands := make([]Candidate, 0, len(trucks)*len(sites))
	for _, tr := range trucks {
		if err := tr.Validate(); err != nil {
			return nil, err
		}
		for _, s := range sites {
			if err := s.Validate(); err != nil {
				return nil, err
			}
			if s.StockpileVolume <= 0 {
				continue
			}
			cands = append(cands, Candidate{
				TruckID:        tr.ID,
				SiteID:         s.ID,
				AvailableHours: tr.AvailableHours,
				RoundTripHours: s.RoundTripHours,
				Stockpile:      s.StockpileVolume,
				LoadPerTrip:    load(tr, s),
				ProfitPerUnit:  s.ProfitPerUnit,
			})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].TruckID != cands[j].TruckID {
			return cands[i].TruckID < cands[j].TruckID
		}
		return cands[i].SiteID < cands[j].SiteID
	})
	return NewCandidateTable(cands)
}

const eps = 1e-9

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
