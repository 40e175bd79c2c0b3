package allocation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	simplexTol = 1e-7
	feasTol    = 1e-7
	intTol     = 1e-6
	gapTol     = 1e-6
)

// lpSimplex points to the LP solver. It can be overridden in tests to
// simulate solver failures.
var lpSimplex = lp.Simplex

var errNodeInfeasible = errors.New("node infeasible")

// program is the bounded integer program of the primary allocation.
// Every coefficient is non-negative, so x = 0 is feasible and rounding a
// feasible point down keeps it feasible.
type program struct {
	value    []float64 // objective weight of one trip
	hours    []float64 // round-trip hours of one trip
	load     []float64 // volume of one trip
	truck    []int
	site     []int
	bound    []int
	truckCap []float64
	siteCap  []float64
	order    []int // variables by decreasing value
}

func (p *program) size() int { return len(p.value) }

func (p *program) finish() {
	p.order = make([]int, p.size())
	for j := range p.order {
		p.order[j] = j
	}
	sort.SliceStable(p.order, func(a, b int) bool { return p.value[p.order[a]] > p.value[p.order[b]] })
}

type bounds struct {
	lo, hi []int
}

func (b bounds) clone() bounds {
	return bounds{lo: append([]int(nil), b.lo...), hi: append([]int(nil), b.hi...)}
}

type relaxation struct {
	value float64
	x     []float64
}

type lpRow struct {
	cols  []int
	coefs []float64
	rhs   float64
}

// relax solves the LP relaxation of the node. Lower bounds are substituted
// out (x = lo + y) so every right-hand side stays non-negative and the slack
// basis is a feasible starting point for the simplex.
func (p *program) relax(b bounds) (relaxation, error) {
	n := p.size()
	truckRHS := append([]float64(nil), p.truckCap...)
	siteRHS := append([]float64(nil), p.siteCap...)
	x := make([]float64, n)
	var base float64
	for j := 0; j < n; j++ {
		x[j] = float64(b.lo[j])
		if b.lo[j] == 0 {
			continue
		}
		truckRHS[p.truck[j]] -= x[j] * p.hours[j]
		siteRHS[p.site[j]] -= x[j] * p.load[j]
		base += x[j] * p.value[j]
	}
	if !clampRHS(truckRHS) || !clampRHS(siteRHS) {
		return relaxation{}, errNodeInfeasible
	}

	var free []int
	for j := 0; j < n; j++ {
		if b.hi[j] > b.lo[j] {
			free = append(free, j)
		}
	}
	if len(free) == 0 {
		return relaxation{value: base, x: x}, nil
	}

	var rows []lpRow
	truckRow := make(map[int]int)
	siteRow := make(map[int]int)
	for k, j := range free {
		r, ok := truckRow[p.truck[j]]
		if !ok {
			r = len(rows)
			truckRow[p.truck[j]] = r
			rows = append(rows, lpRow{rhs: truckRHS[p.truck[j]]})
		}
		rows[r].cols = append(rows[r].cols, k)
		rows[r].coefs = append(rows[r].coefs, p.hours[j])

		r, ok = siteRow[p.site[j]]
		if !ok {
			r = len(rows)
			siteRow[p.site[j]] = r
			rows = append(rows, lpRow{rhs: siteRHS[p.site[j]]})
		}
		rows[r].cols = append(rows[r].cols, k)
		rows[r].coefs = append(rows[r].coefs, p.load[j])
	}
	// Upper bounds only need a row when the truck row does not imply them.
	for k, j := range free {
		width := float64(b.hi[j] - b.lo[j])
		if width*p.hours[j] < truckRHS[p.truck[j]]-feasTol {
			rows = append(rows, lpRow{cols: []int{k}, coefs: []float64{1}, rhs: width})
		}
	}

	m := len(rows)
	cols := len(free) + m
	a := mat.NewDense(m, cols, nil)
	rhs := make([]float64, m)
	basic := make([]int, m)
	for i, r := range rows {
		for t, k := range r.cols {
			a.Set(i, k, a.At(i, k)+r.coefs[t])
		}
		a.Set(i, len(free)+i, 1)
		rhs[i] = r.rhs
		basic[i] = len(free) + i
	}
	c := make([]float64, cols)
	for k, j := range free {
		c[k] = -p.value[j]
	}

	opt, sol, err := lpSimplex(c, a, rhs, simplexTol, basic)
	if err != nil {
		if errors.Is(err, lp.ErrInfeasible) {
			return relaxation{}, errNodeInfeasible
		}
		return relaxation{}, err
	}
	for k, j := range free {
		y := sol[k]
		width := float64(b.hi[j] - b.lo[j])
		if y < 0 {
			y = 0
		}
		if y > width {
			y = width
		}
		x[j] += y
	}
	return relaxation{value: base - opt, x: x}, nil
}

func clampRHS(rhs []float64) bool {
	for i, r := range rhs {
		if r < -feasTol {
			return false
		}
		if r < 0 {
			rhs[i] = 0
		}
	}
	return true
}

// feasible checks the truck-hour and site-volume rows for an integer point.
func (p *program) feasible(x []int) bool {
	truckUse := make([]float64, len(p.truckCap))
	siteUse := make([]float64, len(p.siteCap))
	for j, v := range x {
		if v < 0 || v > p.bound[j] {
			return false
		}
		truckUse[p.truck[j]] += float64(v) * p.hours[j]
		siteUse[p.site[j]] += float64(v) * p.load[j]
	}
	for i, u := range truckUse {
		if u > p.truckCap[i]+feasTol {
			return false
		}
	}
	for i, u := range siteUse {
		if u > p.siteCap[i]+feasTol {
			return false
		}
	}
	return true
}

func (p *program) objective(x []int) float64 {
	var v float64
	for j, n := range x {
		v += float64(n) * p.value[j]
	}
	return v
}

// round turns a relaxation into a feasible integer point: round down, then
// greedily add trips to the most valuable variables while the rows allow it.
func (p *program) round(b bounds, rel relaxation) ([]int, bool) {
	x := make([]int, p.size())
	for j, v := range rel.x {
		x[j] = clampInt(int(math.Floor(v+intTol)), b.lo[j], b.hi[j])
	}
	if !p.feasible(x) {
		for j, v := range rel.x {
			x[j] = clampInt(int(math.Floor(v)), b.lo[j], b.hi[j])
		}
		if !p.feasible(x) {
			return nil, false
		}
	}
	for _, j := range p.order {
		if p.value[j] <= 0 {
			break
		}
		for x[j] < b.hi[j] {
			x[j]++
			if !p.feasible(x) {
				x[j]--
				break
			}
		}
	}
	return x, true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// fractional returns the most fractional variable or -1 when x is integral.
func fractional(x []float64) (int, float64) {
	best, dist := -1, intTol
	for j, v := range x {
		f := v - math.Floor(v)
		d := math.Min(f, 1-f)
		if d > dist {
			best, dist = j, d
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, x[best]
}

type node struct {
	b     bounds
	bound float64 // parent relaxation value
}

type searchLimits struct {
	deadline time.Time
	maxNodes int
	now      func() time.Time
}

func (l searchLimits) reached(ctx context.Context, nodes int) bool {
	if ctx.Err() != nil {
		return true
	}
	if !l.deadline.IsZero() && !l.now().Before(l.deadline) {
		return true
	}
	return l.maxNodes > 0 && nodes >= l.maxNodes
}

type searchResult struct {
	x      []int
	value  float64
	nodes  int
	proven bool
}

// search runs a depth-first branch-and-bound. The root relaxation is always
// solved so a rounded incumbent exists before any limit is checked.
func (p *program) search(ctx context.Context, lim searchLimits) (searchResult, error) {
	n := p.size()
	best := searchResult{x: make([]int, n)}
	root := bounds{lo: make([]int, n), hi: append([]int(nil), p.bound...)}
	rel, err := p.relax(root)
	if err != nil {
		if errors.Is(err, errNodeInfeasible) {
			return best, ErrInfeasible
		}
		return best, fmt.Errorf("%w: %v", ErrSolver, err)
	}
	best.nodes = 1
	p.improve(&best, root, rel)
	stack := p.branch(root, rel, best.value)

	proven := true
	for len(stack) > 0 {
		if lim.reached(ctx, best.nodes) {
			proven = false
			break
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nd.bound <= best.value+gapTol {
			continue
		}
		rel, err := p.relax(nd.b)
		best.nodes++
		if err != nil {
			if !errors.Is(err, errNodeInfeasible) {
				proven = false
			}
			continue
		}
		if rel.value <= best.value+gapTol {
			continue
		}
		p.improve(&best, nd.b, rel)
		stack = append(stack, p.branch(nd.b, rel, best.value)...)
	}
	best.proven = proven
	return best, nil
}

func (p *program) improve(best *searchResult, b bounds, rel relaxation) {
	x, ok := p.round(b, rel)
	if !ok {
		return
	}
	if v := p.objective(x); v > best.value+gapTol {
		best.x = x
		best.value = v
	}
}

// branch splits the node on its most fractional variable. The up branch is
// pushed last so it is explored first.
func (p *program) branch(b bounds, rel relaxation, incumbent float64) []node {
	if rel.value <= incumbent+gapTol {
		return nil
	}
	j, v := fractional(rel.x)
	if j < 0 {
		return nil
	}
	fl := int(math.Floor(v))
	var out []node
	if fl >= b.lo[j] {
		down := b.clone()
		down.hi[j] = fl
		out = append(out, node{b: down, bound: rel.value})
	}
	if fl+1 <= b.hi[j] {
		up := b.clone()
		up.lo[j] = fl + 1
		out = append(out, node{b: up, bound: rel.value})
	}
	return out
}
