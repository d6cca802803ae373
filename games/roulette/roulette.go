// Package roulette holds the pure bet rules for the wheel game: outcome
// classification, bet shape validation, win determination and payout math.
// Nothing in here touches a wallet, a clock or a connection.
package roulette

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// The wheel has 37 pockets, 0-36. The table layout is twelve rows of three:
// row r covers 3r+1..3r+3.
const (
	MinNumber = 0
	MaxNumber = 36
	RowWidth  = 3
)

type BetType string

const (
	BetStraight BetType = "straight"
	BetSplit    BetType = "split"
	BetStreet   BetType = "street"
	BetCorner   BetType = "corner"
	BetLine     BetType = "line"
	BetColumn   BetType = "column"
	BetDozen    BetType = "dozen"
	BetRed      BetType = "red"
	BetBlack    BetType = "black"
	BetEven     BetType = "even"
	BetOdd      BetType = "odd"
	BetLow      BetType = "low"
	BetHigh     BetType = "high"
)

// Bet is a single wager. Numbers is used by the number-shaped types, Value
// carries the 1-3 index for column/dozen bets and is empty otherwise.
type Bet struct {
	Type    BetType `json:"type"`
	Numbers []int   `json:"numbers,omitempty"`
	Value   string  `json:"value,omitempty"`
	Amount  int64   `json:"amount"`
}

type Color string

const (
	ColorGreen Color = "green"
	ColorRed   Color = "red"
	ColorBlack Color = "black"
)

// Outcome is the classified result of a spin. Derived attributes are fixed
// functions of Number; zero has no parity, range, column or dozen.
type Outcome struct {
	Number int   `json:"number"`
	Color  Color `json:"color"`
	Even   bool  `json:"even"`
	Odd    bool  `json:"odd"`
	Low    bool  `json:"low"`
	High   bool  `json:"high"`
	Column int   `json:"column"`
	Dozen  int   `json:"dozen"`
}

// WinRecord pairs a winning bet with what it paid out.
type WinRecord struct {
	Bet    Bet   `json:"bet"`
	Payout int64 `json:"payout"`
}

var ErrNumberOutOfRange = errors.New("number out of range")

var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true,
	12: true, 14: true, 16: true, 18: true, 19: true,
	21: true, 23: true, 25: true, 27: true, 30: true,
	32: true, 34: true, 36: true,
}

// multipliers is the to-1 odds table; a winning bet returns its stake plus
// stake times the multiplier.
var multipliers = map[BetType]int64{
	BetStraight: 35,
	BetSplit:    17,
	BetStreet:   11,
	BetCorner:   8,
	BetLine:     5,
	BetColumn:   2,
	BetDozen:    2,
	BetRed:      1,
	BetBlack:    1,
	BetEven:     1,
	BetOdd:      1,
	BetLow:      1,
	BetHigh:     1,
}

// Classify derives every outcome attribute from a drawn number.
func Classify(number int) (Outcome, error) {
	if number < MinNumber || number > MaxNumber {
		return Outcome{}, fmt.Errorf("%w: %d", ErrNumberOutOfRange, number)
	}

	o := Outcome{Number: number}
	if number == 0 {
		o.Color = ColorGreen
		return o, nil
	}

	if redNumbers[number] {
		o.Color = ColorRed
	} else {
		o.Color = ColorBlack
	}
	o.Even = number%2 == 0
	o.Odd = !o.Even
	o.Low = number <= 18
	o.High = !o.Low
	o.Column = number%RowWidth + 1
	o.Dozen = (number-1)/12 + 1
	return o, nil
}

// ValidateBet checks the stake, the outcome-number domain and, for the
// number-shaped types, the geometric shape on the table layout. The returned
// error is the player-facing rejection reason.
func ValidateBet(b Bet) error {
	if b.Amount <= 0 {
		return errors.New("stake must be positive")
	}
	for _, n := range b.Numbers {
		if n < MinNumber || n > MaxNumber {
			return fmt.Errorf("number %d out of range", n)
		}
	}

	switch b.Type {
	case BetStraight:
		if len(b.Numbers) != 1 {
			return errors.New("straight bet covers exactly one number")
		}
	case BetSplit:
		if len(b.Numbers) != 2 {
			return errors.New("split bet covers exactly two numbers")
		}
		if !validSplit(b.Numbers) {
			return errors.New("split numbers must be adjacent on the table")
		}
	case BetStreet:
		if len(b.Numbers) != 3 {
			return errors.New("street bet covers exactly three numbers")
		}
		if !validStreet(b.Numbers) {
			return errors.New("street numbers must form one table row")
		}
	case BetCorner:
		if len(b.Numbers) != 4 {
			return errors.New("corner bet covers exactly four numbers")
		}
		if !validCorner(b.Numbers) {
			return errors.New("corner numbers must form a 2x2 block")
		}
	case BetLine:
		if len(b.Numbers) != 6 {
			return errors.New("line bet covers exactly six numbers")
		}
		if !validLine(b.Numbers) {
			return errors.New("line numbers must form two adjacent rows")
		}
	case BetColumn, BetDozen:
		if len(b.Numbers) != 0 {
			return fmt.Errorf("%s bet carries an index, not numbers", b.Type)
		}
		idx, err := strconv.Atoi(b.Value)
		if err != nil || idx < 1 || idx > 3 {
			return fmt.Errorf("%s index must be 1-3", b.Type)
		}
	case BetRed, BetBlack, BetEven, BetOdd, BetLow, BetHigh:
		if len(b.Numbers) != 0 || b.Value != "" {
			return fmt.Errorf("%s bet carries no numbers or value", b.Type)
		}
	default:
		return fmt.Errorf("unknown bet type %q", b.Type)
	}
	return nil
}

// sortedCopy keeps ValidateBet a pure function of the bet value.
func sortedCopy(numbers []int) []int {
	s := make([]int, len(numbers))
	copy(s, numbers)
	sort.Ints(s)
	return s
}

// rowOf returns the zero-based table row of a number, -1 for zero.
func rowOf(n int) int {
	if n == 0 {
		return -1
	}
	return (n - 1) / RowWidth
}

func validSplit(numbers []int) bool {
	s := sortedCopy(numbers)
	a, b := s[0], s[1]
	if a == 0 {
		return false
	}
	// Vertical: one row-width apart. Horizontal: consecutive in one row.
	if b == a+RowWidth {
		return true
	}
	return b == a+1 && rowOf(a) == rowOf(b)
}

func validStreet(numbers []int) bool {
	s := sortedCopy(numbers)
	if s[0] == 0 {
		return false
	}
	return s[1] == s[0]+1 && s[2] == s[0]+2 && (s[0]-1)%RowWidth == 0
}

func validCorner(numbers []int) bool {
	s := sortedCopy(numbers)
	a := s[0]
	if a == 0 || rowOf(a) != rowOf(a+1) {
		return false
	}
	return s[1] == a+1 && s[2] == a+RowWidth && s[3] == a+RowWidth+1 && a+RowWidth+1 <= MaxNumber
}

func validLine(numbers []int) bool {
	s := sortedCopy(numbers)
	if s[0] == 0 || (s[0]-1)%RowWidth != 0 {
		return false
	}
	for i := 1; i < 6; i++ {
		if s[i] != s[0]+i {
			return false
		}
	}
	return true
}

// IsWinning reports whether a bet wins against a classified outcome.
// The bet is assumed valid.
func IsWinning(b Bet, o Outcome) bool {
	switch b.Type {
	case BetStraight, BetSplit, BetStreet, BetCorner, BetLine:
		for _, n := range b.Numbers {
			if n == o.Number {
				return true
			}
		}
		return false
	case BetColumn:
		idx, _ := strconv.Atoi(b.Value)
		return o.Column != 0 && o.Column == idx
	case BetDozen:
		idx, _ := strconv.Atoi(b.Value)
		return o.Dozen != 0 && o.Dozen == idx
	case BetRed:
		return o.Color == ColorRed
	case BetBlack:
		return o.Color == ColorBlack
	case BetEven:
		return o.Even
	case BetOdd:
		return o.Odd
	case BetLow:
		return o.Low
	case BetHigh:
		return o.High
	}
	return false
}

// Payout returns stake plus winnings for a winning bet.
func Payout(b Bet) int64 {
	return b.Amount + b.Amount*multipliers[b.Type]
}
