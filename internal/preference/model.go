// Package preference mines scheduling habits from past events and scores
// candidate slots against them. The profile is a pure value; callers own
// synchronization (see Cache).
package preference

import (
	"math"
	"sort"
	"time"

	"github.com/slotwise/slotwise/internal/core"
)

// Weights controls how much each learned signal contributes to a score.
// They should sum to 1 so scores stay in [0, 1].
type Weights struct {
	Hour     float64
	Weekday  float64
	Duration float64
}

// DefaultWeights favors time-of-day habits over day-of-week ones
func DefaultWeights() Weights {
	return Weights{Hour: 0.5, Weekday: 0.3, Duration: 0.2}
}

// Profile is the learned model: recency-weighted histograms over start
// hour and weekday, duration statistics, and contact frequency. A zero
// Profile scores every slot at exactly 0.5.
type Profile struct {
	HourWeight    [24]float64        `json:"hour_weight"`
	WeekdayWeight [7]float64         `json:"weekday_weight"`
	MeanDuration  time.Duration      `json:"mean_duration"`
	Contacts      map[string]float64 `json:"contacts"`
	EventCount    int                `json:"event_count"`
	TotalWeight   float64            `json:"total_weight"`
	BuiltAt       time.Time          `json:"built_at"`
}

// Empty reports whether the profile carries no learned signal
func (p *Profile) Empty() bool {
	return p == nil || p.EventCount == 0 || p.TotalWeight == 0
}

// Contact holds a participant and their recency-weighted frequency
type Contact struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// FrequentContacts returns up to n contacts ordered by weight, ties
// broken alphabetically so the output is stable.
func (p *Profile) FrequentContacts(n int) []Contact {
	if p.Empty() || n <= 0 {
		return nil
	}
	contacts := make([]Contact, 0, len(p.Contacts))
	for name, w := range p.Contacts {
		contacts = append(contacts, Contact{Name: name, Weight: w})
	}
	sort.Slice(contacts, func(i, j int) bool {
		if contacts[i].Weight != contacts[j].Weight {
			return contacts[i].Weight > contacts[j].Weight
		}
		return contacts[i].Name < contacts[j].Name
	})
	if len(contacts) > n {
		contacts = contacts[:n]
	}
	return contacts
}

// PreferredHours returns the start hours with above-average weight, most
// preferred first.
func (p *Profile) PreferredHours() []int {
	if p.Empty() {
		return nil
	}
	avg := p.TotalWeight / 24
	var hours []int
	for h, w := range p.HourWeight {
		if w > avg {
			hours = append(hours, h)
		}
	}
	sort.Slice(hours, func(i, j int) bool {
		if p.HourWeight[hours[i]] != p.HourWeight[hours[j]] {
			return p.HourWeight[hours[i]] > p.HourWeight[hours[j]]
		}
		return hours[i] < hours[j]
	})
	return hours
}

// Learn builds a Profile from past events. Events are weighted by
// recency: an event halfLife old counts half as much as one from now.
// A non-positive halfLife disables recency weighting.
func Learn(events []core.Event, now time.Time, halfLife time.Duration) *Profile {
	p := &Profile{Contacts: make(map[string]float64), BuiltAt: now}

	var durationSum float64
	for _, ev := range events {
		if !ev.Start.Before(ev.End) {
			continue
		}

		w := 1.0
		if halfLife > 0 {
			age := now.Sub(ev.Start)
			if age < 0 {
				age = 0
			}
			w = halfLifeDecay(age, halfLife)
		}

		p.HourWeight[ev.Start.Hour()] += w
		p.WeekdayWeight[int(ev.Start.Weekday())] += w
		durationSum += w * ev.End.Sub(ev.Start).Minutes()
		for _, name := range ev.Participants {
			if name != "" {
				p.Contacts[name] += w
			}
		}

		p.EventCount++
		p.TotalWeight += w
	}

	if p.TotalWeight > 0 {
		p.MeanDuration = time.Duration(durationSum/p.TotalWeight) * time.Minute
	}
	return p
}

// halfLifeDecay is 2^(-age/halfLife)
func halfLifeDecay(age, halfLife time.Duration) float64 {
	return math.Exp2(-float64(age) / float64(halfLife))
}

// Score rates a candidate window in [0, 1]. An empty profile returns
// exactly 0.5 so unscored and neutral candidates are indistinguishable,
// which keeps ranking stable before any history exists.
func (p *Profile) Score(w core.Window, weights Weights) float64 {
	if p.Empty() {
		return 0.5
	}

	hourScore := p.hourAffinity(w.Start.Hour())
	dayScore := p.weekdayAffinity(int(w.Start.Weekday()))
	durScore := p.durationAffinity(w.Duration())

	s := weights.Hour*hourScore + weights.Weekday*dayScore + weights.Duration*durScore
	total := weights.Hour + weights.Weekday + weights.Duration
	if total > 0 {
		s /= total
	}
	return clamp01(s)
}

// hourAffinity maps the hour histogram to [0, 1]: the most frequent hour
// scores 1, an unseen hour scores 0.
func (p *Profile) hourAffinity(hour int) float64 {
	var peak float64
	for _, w := range p.HourWeight {
		if w > peak {
			peak = w
		}
	}
	if peak == 0 {
		return 0.5
	}
	return p.HourWeight[hour] / peak
}

func (p *Profile) weekdayAffinity(weekday int) float64 {
	var peak float64
	for _, w := range p.WeekdayWeight {
		if w > peak {
			peak = w
		}
	}
	if peak == 0 {
		return 0.5
	}
	return p.WeekdayWeight[weekday] / peak
}

// durationAffinity decays linearly with distance from the learned mean:
// exact match scores 1, twice (or half) the mean scores 0.
func (p *Profile) durationAffinity(d time.Duration) float64 {
	if p.MeanDuration <= 0 || d <= 0 {
		return 0.5
	}
	diff := float64(d-p.MeanDuration) / float64(p.MeanDuration)
	if diff < 0 {
		diff = -diff
	}
	return clamp01(1 - diff)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
