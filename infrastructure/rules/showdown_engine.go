package rules

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"cardroom/domain/entities"
	"cardroom/domain/interfaces"

	"github.com/paulhankin/poker"
	log "github.com/sirupsen/logrus"
)

const boardSize = 5

// ShowdownEngine settles a hand by running the board out from a freshly
// shuffled deck and ranking every live hand with poker.Eval7. Committed chips
// are split into side pots so an all-in player only wins what they covered.
type ShowdownEngine struct {
	shuffle func() ([]poker.Card, error)
}

// NewShowdownEngine creates an engine dealing from a crypto-shuffled deck
func NewShowdownEngine() *ShowdownEngine {
	return &ShowdownEngine{shuffle: ShuffledDeck}
}

// NewShowdownEngineWithDeck creates an engine dealing from the given deck source
func NewShowdownEngineWithDeck(shuffle func() ([]poker.Card, error)) *ShowdownEngine {
	return &ShowdownEngine{shuffle: shuffle}
}

// NewDeck returns the 52 cards in suit then rank order. Ranks run 1 (ace) to 13.
func NewDeck() ([]poker.Card, error) {
	deck := make([]poker.Card, 0, 52)
	for suit := 0; suit < 4; suit++ {
		for rank := 1; rank <= 13; rank++ {
			card, err := poker.MakeCard(poker.Suit(suit), poker.Rank(rank))
			if err != nil {
				return nil, fmt.Errorf("failed to build deck: %w", err)
			}
			deck = append(deck, card)
		}
	}
	return deck, nil
}

// ShuffledDeck returns a deck shuffled with crypto/rand (Fisher-Yates)
func ShuffledDeck() ([]poker.Card, error) {
	deck, err := NewDeck()
	if err != nil {
		return nil, err
	}
	for i := len(deck) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, fmt.Errorf("failed to shuffle deck: %w", err)
		}
		j := int(n.Int64())
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck, nil
}

type pot struct {
	amount   int64
	eligible []interfaces.SeatSnapshot
}

// SettleHand implements interfaces.RulesEngine
func (e *ShowdownEngine) SettleHand(ctx context.Context, snapshot interfaces.HandSnapshot) (*interfaces.HandOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seats := make([]interfaces.SeatSnapshot, len(snapshot.Seats))
	copy(seats, snapshot.Seats)
	sort.Slice(seats, func(i, j int) bool { return seats[i].SeatIndex < seats[j].SeatIndex })

	var contenders []interfaces.SeatSnapshot
	for _, seat := range seats {
		if !seat.Folded && seat.Committed > 0 {
			contenders = append(contenders, seat)
		}
	}

	payouts := make(map[int64]int64)
	description := ""

	switch len(contenders) {
	case 0:
		// Nobody is live; every contribution goes back
		for _, seat := range seats {
			if seat.Committed > 0 {
				payouts[seat.SeatID] += seat.Committed
			}
		}
		description = "no live hands, contributions returned"
	case 1:
		payouts[contenders[0].SeatID] = snapshot.Pot
		description = "uncontested"
	default:
		scores, err := e.deal(snapshot.Variant, contenders)
		if err != nil {
			return nil, err
		}
		for _, p := range buildPots(seats) {
			awardPot(p, scores, payouts)
		}
		description = describeBest(contenders, scores)
	}

	outcome := &interfaces.HandOutcome{
		HandComplete: true,
		Description:  description,
	}
	for _, seat := range seats {
		if amount := payouts[seat.SeatID]; amount > 0 {
			outcome.Winners = append(outcome.Winners, interfaces.SeatPayout{
				SeatID: seat.SeatID,
				UserID: seat.UserID,
				Amount: amount,
			})
		}
	}

	log.WithFields(log.Fields{
		"tableID":     snapshot.TableID,
		"handID":      snapshot.HandID,
		"pot":         snapshot.Pot,
		"winners":     len(outcome.Winners),
		"description": description,
	}).Debug("Settled hand at showdown")

	return outcome, nil
}

type scoredHand struct {
	score int16
	cards [7]poker.Card
}

// deal gives each contender hole cards in seat order, then the board, and
// scores every hand. Omaha hands take the best of their hole-card pairs.
func (e *ShowdownEngine) deal(variant entities.Variant, contenders []interfaces.SeatSnapshot) (map[int64]scoredHand, error) {
	holeCards := 2
	if variant == entities.VariantOmaha {
		holeCards = 4
	}

	deck, err := e.shuffle()
	if err != nil {
		return nil, err
	}
	needed := len(contenders)*holeCards + boardSize
	if len(deck) < needed {
		return nil, fmt.Errorf("deck has %d cards, %d needed", len(deck), needed)
	}

	next := 0
	holes := make([][]poker.Card, len(contenders))
	for i := range contenders {
		holes[i] = deck[next : next+holeCards]
		next += holeCards
	}
	board := deck[next : next+boardSize]

	scores := make(map[int64]scoredHand, len(contenders))
	for i, seat := range contenders {
		var best scoredHand
		first := true
		for a := 0; a < holeCards; a++ {
			for b := a + 1; b < holeCards; b++ {
				var cards [7]poker.Card
				copy(cards[:boardSize], board)
				cards[5] = holes[i][a]
				cards[6] = holes[i][b]
				score := poker.Eval7(&cards)
				if first || score > best.score {
					best = scoredHand{score: score, cards: cards}
					first = false
				}
			}
		}
		scores[seat.SeatID] = best
	}
	return scores, nil
}

// buildPots layers the contributions into a main pot and side pots. A layer
// nobody live reached is folded into the pot below it.
func buildPots(seats []interfaces.SeatSnapshot) []pot {
	levels := make([]int64, 0, len(seats))
	seen := make(map[int64]bool)
	for _, seat := range seats {
		if seat.Committed > 0 && !seen[seat.Committed] {
			seen[seat.Committed] = true
			levels = append(levels, seat.Committed)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	var pots []pot
	var previous int64
	for _, level := range levels {
		var layer pot
		for _, seat := range seats {
			layer.amount += min(seat.Committed, level) - min(seat.Committed, previous)
			if !seat.Folded && seat.Committed >= level {
				layer.eligible = append(layer.eligible, seat)
			}
		}
		previous = level

		if len(layer.eligible) == 0 {
			if len(pots) > 0 {
				pots[len(pots)-1].amount += layer.amount
			}
			continue
		}
		pots = append(pots, layer)
	}
	return pots
}

// awardPot splits a pot between its best hands. Odd chips go to the winners
// in seat order.
func awardPot(p pot, scores map[int64]scoredHand, payouts map[int64]int64) {
	var winners []interfaces.SeatSnapshot
	var best int16
	for _, seat := range p.eligible {
		score := scores[seat.SeatID].score
		switch {
		case len(winners) == 0 || score > best:
			best = score
			winners = []interfaces.SeatSnapshot{seat}
		case score == best:
			winners = append(winners, seat)
		}
	}

	share := p.amount / int64(len(winners))
	remainder := p.amount % int64(len(winners))
	for i, winner := range winners {
		payouts[winner.SeatID] += share
		if int64(i) < remainder {
			payouts[winner.SeatID]++
		}
	}
}

func describeBest(contenders []interfaces.SeatSnapshot, scores map[int64]scoredHand) string {
	var best int16
	var descriptions []string
	for i, seat := range contenders {
		hand := scores[seat.SeatID]
		desc, err := poker.Describe(hand.cards[:])
		if err != nil {
			desc = "unknown hand"
		}
		switch {
		case i == 0 || hand.score > best:
			best = hand.score
			descriptions = []string{desc}
		case hand.score == best:
			descriptions = append(descriptions, desc)
		}
	}
	return strings.Join(descriptions, ", ")
}
