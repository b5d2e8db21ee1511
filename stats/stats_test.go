package stats

import (
	"testing"

	"github.com/matryer/is"
)

func TestRunningStat(t *testing.T) {
	is := is.New(t)
	type tc struct {
		scores []int
		mean   float64
		stdev  float64
	}
	cases := []tc{
		{[]int{10, 12, 23, 23, 16, 23, 21, 16}, 18, 5.2372293656638},
		{[]int{14, 35, 71, 124, 10, 24, 55, 33, 87, 19}, 47.2, 36.937785531891},
		{[]int{1}, 1, 0},
		{[]int{}, 0, 0},
		{[]int{1, 1}, 1, 0},
	}
	for _, c := range cases {
		s := &Statistic{}
		for _, score := range c.scores {
			s.Push(float64(score))
		}
		is.True(FuzzyEqual(s.Mean(), c.mean))
		is.True(FuzzyEqual(s.Stdev(), c.stdev))
	}
}

func TestZVal(t *testing.T) {
	is := is.New(t)
	is.True(FuzzyEqual(Z95, 1.959963984540054))
	is.True(Z99 > Z98 && Z98 > Z95)
}

func TestBounds(t *testing.T) {
	is := is.New(t)
	hi, lo := &Statistic{}, &Statistic{}
	for i := range 200 {
		hi.Push(float64(20 + i%3))
		lo.Push(float64(10 + i%3))
	}
	is.True(hi.LowerBound(2) > lo.UpperBound(2))
	is.True(Separated(hi, lo, Z99))
	is.True(!Separated(lo, hi, Z95))
	is.Equal(hi.Iterations(), 200)
}
