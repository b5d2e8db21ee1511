// Package belief tracks, for every observer and every dealt card, the set
// of identities that observer cannot yet rule out.
//
// Each player observes their own hand through hints and deduction and sees
// everyone else's cards directly. An extra public observer sees only the
// cards that have been played or discarded; its candidate sets are common
// knowledge among all players.
//
// Whenever an observer accounts for every copy of an identity, that identity
// is removed from all of the observer's other hidden cards. A card reduced to
// a singleton this way is itself accounted for, so the cascade is re-run
// until nothing changes.
package belief

import (
	"errors"

	"github.com/facebookresearch/Hanabi-SPARTA/card"
)

type EventKind uint8

const (
	// EventDrawn: a card was dealt into a hand.
	EventDrawn EventKind = iota
	// EventRevealed: a card was played or discarded, so everyone sees it.
	EventRevealed
	// EventHint: a hint named Touched and, implicitly, not Untouched.
	EventHint
)

type Event struct {
	Kind   EventKind
	Player int
	CardID int
	Card   card.Card
	// Match is the set of identities the hint names.
	Match     Set
	Touched   []int
	Untouched []int
}

var ErrUnknownCard = errors.New("card has not been dealt")

const notHeld = -1

type observer struct {
	cand    [card.DeckSize]Set
	hidden  [card.DeckSize]bool
	counted [card.DeckSize]bool
	known   card.Composition
}

// Tracker is the incremental belief tracker. The zero value is not usable;
// call New.
type Tracker struct {
	numPlayers int
	holder     [card.DeckSize]int8
	identity   [card.DeckSize]card.Card
	hinted     [card.DeckSize]Set
	observers  []observer
	// removed counts candidate eliminations since the last call to Update.
	removed int
}

func New(numPlayers int) *Tracker {
	t := &Tracker{numPlayers: numPlayers, observers: make([]observer, numPlayers+1)}
	for i := range t.holder {
		t.holder[i] = notHeld
		t.hinted[i] = All
	}
	return t
}

// PublicObserver is the observer index for common knowledge.
func (t *Tracker) PublicObserver() int {
	return t.numPlayers
}

func (t *Tracker) NumObservers() int {
	return len(t.observers)
}

// Copy returns a structurally independent tracker.
func (t *Tracker) Copy() *Tracker {
	c := *t
	c.observers = make([]observer, len(t.observers))
	copy(c.observers, t.observers)
	return &c
}

// Update applies a public event and returns how many candidate identities
// were eliminated across all observers.
func (t *Tracker) Update(ev Event) int {
	t.removed = 0
	switch ev.Kind {
	case EventDrawn:
		t.drawn(ev.Player, ev.CardID, ev.Card)
	case EventRevealed:
		t.revealed(ev.CardID, ev.Card)
	case EventHint:
		for _, id := range ev.Touched {
			t.restrict(id, ev.Match)
		}
		for _, id := range ev.Untouched {
			t.restrict(id, All&^ev.Match)
		}
	}
	return t.removed
}

func (t *Tracker) drawn(player, id int, c card.Card) {
	t.holder[id] = int8(player)
	t.identity[id] = c
	for o := range t.observers {
		ob := &t.observers[o]
		if o == player || o == t.PublicObserver() {
			ob.hidden[id] = true
			ob.cand[id] = t.hinted[id] &^ Exhausted(ob.known)
			t.removed += All.Len() - ob.cand[id].Len()
			if x, ok := ob.cand[id].Only(); ok {
				ob.counted[id] = true
				t.account(ob, x)
			}
			continue
		}
		ob.cand[id] = Single(c)
		ob.counted[id] = true
		t.account(ob, c)
	}
}

func (t *Tracker) revealed(id int, c card.Card) {
	t.holder[id] = notHeld
	t.identity[id] = c
	for o := range t.observers {
		ob := &t.observers[o]
		if ob.hidden[id] {
			t.removed += ob.cand[id].Len() - 1
			ob.hidden[id] = false
		}
		ob.cand[id] = Single(c)
		if !ob.counted[id] {
			ob.counted[id] = true
			t.account(ob, c)
		}
	}
}

func (t *Tracker) restrict(id int, mask Set) {
	t.hinted[id] &= mask
	for o := range t.observers {
		ob := &t.observers[o]
		if !ob.hidden[id] || ob.counted[id] {
			continue
		}
		before := ob.cand[id]
		ob.cand[id] &= mask
		t.removed += before.Len() - ob.cand[id].Len()
		if x, ok := ob.cand[id].Only(); ok {
			ob.counted[id] = true
			t.account(ob, x)
		}
	}
}

// account records that one more copy of x is known to the observer, then
// propagates any exhaustion through the observer's hidden cards.
func (t *Tracker) account(ob *observer, x card.Card) {
	work := []card.Card{x}
	for len(work) > 0 {
		x, work = work[len(work)-1], work[:len(work)-1]
		ob.known.Add(x)
		if ob.known.Count(x) < card.Multiplicity(x.Value) {
			continue
		}
		bit := Single(x)
		for id := range ob.cand {
			if !ob.hidden[id] || ob.counted[id] || ob.cand[id]&bit == 0 {
				continue
			}
			ob.cand[id] &^= bit
			t.removed++
			if y, ok := ob.cand[id].Only(); ok {
				ob.counted[id] = true
				work = append(work, y)
			}
		}
	}
}

// CandidatesFor returns the identities the observer cannot rule out for the
// card. Cards the observer can see are singletons. Undealt cards get every
// identity the observer has not fully accounted for.
func (t *Tracker) CandidatesFor(observer, cardID int) Set {
	ob := &t.observers[observer]
	if ob.hidden[cardID] || ob.counted[cardID] {
		return ob.cand[cardID]
	}
	return All &^ Exhausted(ob.known)
}

// Hinted returns the public hint constraint on a card, before deduction.
func (t *Tracker) Hinted(cardID int) Set {
	return t.hinted[cardID]
}

// Known returns the identities the observer has accounted for.
func (t *Tracker) Known(observer int) card.Composition {
	return t.observers[observer].known
}

// Holder returns the seat holding the card, or -1.
func (t *Tracker) Holder(cardID int) int {
	return int(t.holder[cardID])
}

// Restore builds a tracker for a position without replaying its history.
// hands holds card ids per seat, identities maps ids to cards, hinted holds
// the public hint constraint per id and revealed is the composition of all
// played and discarded cards.
func Restore(hands [][]int, identities []card.Card, hinted []Set, revealed card.Composition) *Tracker {
	t := New(len(hands))
	for o := range t.observers {
		t.observers[o].known = revealed
	}
	for p, hand := range hands {
		for _, id := range hand {
			t.holder[id] = int8(p)
			t.identity[id] = identities[id]
			t.hinted[id] = hinted[id]
		}
	}
	for o := range t.observers {
		ob := &t.observers[o]
		var own []int
		for p, hand := range hands {
			for _, id := range hand {
				if p == o || o == t.PublicObserver() {
					own = append(own, id)
					ob.hidden[id] = true
					continue
				}
				ob.cand[id] = Single(identities[id])
				ob.counted[id] = true
				ob.known.Add(identities[id])
			}
		}
		masks := make([]Set, len(own))
		for i, id := range own {
			masks[i] = hinted[id]
		}
		deduced := Deduce(masks, ob.known)
		for i, id := range own {
			ob.cand[id] = deduced[i]
			if x, ok := deduced[i].Only(); ok {
				ob.counted[id] = true
				ob.known.Add(x)
			}
		}
	}
	return t
}

// Deduce computes, from scratch, the candidate sets of hidden cards given
// their hint constraints and the composition of cards already accounted for.
// It reaches the same fixpoint the incremental tracker does.
func Deduce(hinted []Set, visible card.Composition) []Set {
	cand := make([]Set, len(hinted))
	counted := make([]bool, len(hinted))
	copy(cand, hinted)
	known := visible
	for {
		changed := false
		for i, s := range cand {
			if counted[i] {
				continue
			}
			if x, ok := s.Only(); ok {
				counted[i] = true
				known.Add(x)
				changed = true
			}
		}
		ex := Exhausted(known)
		for i := range cand {
			if counted[i] || cand[i]&ex == 0 {
				continue
			}
			cand[i] &^= ex
			changed = true
		}
		if !changed {
			return cand
		}
	}
}
