package roulette

import (
	"testing"
)

func TestClassify_Zero(t *testing.T) {
	o, err := Classify(0)
	if err != nil {
		t.Fatalf("Classify(0) returned error: %v", err)
	}
	if o.Color != ColorGreen {
		t.Errorf("Expected green for zero, got %s", o.Color)
	}
	if o.Even || o.Odd || o.Low || o.High {
		t.Error("Zero must have neither parity nor range")
	}
	if o.Column != 0 || o.Dozen != 0 {
		t.Errorf("Zero must have no column/dozen, got column=%d dozen=%d", o.Column, o.Dozen)
	}
}

func TestClassify_OutOfRange(t *testing.T) {
	for _, n := range []int{-1, 37, 100} {
		if _, err := Classify(n); err == nil {
			t.Errorf("Classify(%d) should fail", n)
		}
	}
}

func TestClassify_PartitionConsistency(t *testing.T) {
	// Every pocket 1-36 gets exactly one color, one parity, one range and a
	// column/dozen from the fixed partition tables.
	redCount, blackCount := 0, 0
	columnCounts := make(map[int]int)
	dozenCounts := make(map[int]int)

	for n := 1; n <= MaxNumber; n++ {
		o, err := Classify(n)
		if err != nil {
			t.Fatalf("Classify(%d) returned error: %v", n, err)
		}

		switch o.Color {
		case ColorRed:
			redCount++
		case ColorBlack:
			blackCount++
		default:
			t.Errorf("Number %d classified as %s", n, o.Color)
		}
		if o.Even == o.Odd {
			t.Errorf("Number %d has inconsistent parity", n)
		}
		if o.Low == o.High {
			t.Errorf("Number %d has inconsistent range", n)
		}
		if o.Column < 1 || o.Column > 3 {
			t.Errorf("Number %d has column %d", n, o.Column)
		}
		if o.Dozen < 1 || o.Dozen > 3 {
			t.Errorf("Number %d has dozen %d", n, o.Dozen)
		}
		columnCounts[o.Column]++
		dozenCounts[o.Dozen]++

		// Idempotent.
		again, _ := Classify(n)
		if again != o {
			t.Errorf("Classify(%d) not idempotent", n)
		}
	}

	if redCount != 18 || blackCount != 18 {
		t.Errorf("Expected 18 red and 18 black, got %d/%d", redCount, blackCount)
	}
	for idx := 1; idx <= 3; idx++ {
		if columnCounts[idx] != 12 {
			t.Errorf("Column %d covers %d numbers, want 12", idx, columnCounts[idx])
		}
		if dozenCounts[idx] != 12 {
			t.Errorf("Dozen %d covers %d numbers, want 12", idx, dozenCounts[idx])
		}
	}
}

func TestClassify_Seventeen(t *testing.T) {
	o, err := Classify(17)
	if err != nil {
		t.Fatalf("Classify(17) returned error: %v", err)
	}
	if o.Color != ColorBlack || !o.Odd || !o.Low || o.Column != 3 || o.Dozen != 2 {
		t.Errorf("Unexpected classification for 17: %+v", o)
	}
}

func TestValidateBet(t *testing.T) {
	cases := []struct {
		name  string
		bet   Bet
		valid bool
	}{
		{"straight", Bet{Type: BetStraight, Numbers: []int{17}, Amount: 10}, true},
		{"straight zero", Bet{Type: BetStraight, Numbers: []int{0}, Amount: 10}, true},
		{"straight two numbers", Bet{Type: BetStraight, Numbers: []int{1, 2}, Amount: 10}, false},
		{"zero stake", Bet{Type: BetStraight, Numbers: []int{17}, Amount: 0}, false},
		{"negative stake", Bet{Type: BetStraight, Numbers: []int{17}, Amount: -5}, false},
		{"number out of domain", Bet{Type: BetStraight, Numbers: []int{37}, Amount: 10}, false},

		{"split horizontal", Bet{Type: BetSplit, Numbers: []int{16, 17}, Amount: 10}, true},
		{"split vertical", Bet{Type: BetSplit, Numbers: []int{14, 17}, Amount: 10}, true},
		{"split unordered", Bet{Type: BetSplit, Numbers: []int{17, 14}, Amount: 10}, true},
		{"split across rows", Bet{Type: BetSplit, Numbers: []int{3, 4}, Amount: 10}, false},
		{"split not adjacent", Bet{Type: BetSplit, Numbers: []int{1, 5}, Amount: 10}, false},
		{"split with zero", Bet{Type: BetSplit, Numbers: []int{0, 3}, Amount: 10}, false},

		{"street", Bet{Type: BetStreet, Numbers: []int{16, 17, 18}, Amount: 10}, true},
		{"street misaligned", Bet{Type: BetStreet, Numbers: []int{17, 18, 19}, Amount: 10}, false},
		{"street gap", Bet{Type: BetStreet, Numbers: []int{16, 17, 19}, Amount: 10}, false},

		{"corner", Bet{Type: BetCorner, Numbers: []int{16, 17, 19, 20}, Amount: 10}, true},
		{"corner at row end", Bet{Type: BetCorner, Numbers: []int{17, 18, 20, 21}, Amount: 10}, true},
		{"corner wrapping row", Bet{Type: BetCorner, Numbers: []int{18, 19, 21, 22}, Amount: 10}, false},
		{"corner scattered", Bet{Type: BetCorner, Numbers: []int{1, 2, 7, 8}, Amount: 10}, false},

		{"line", Bet{Type: BetLine, Numbers: []int{16, 17, 18, 19, 20, 21}, Amount: 10}, true},
		{"line last rows", Bet{Type: BetLine, Numbers: []int{31, 32, 33, 34, 35, 36}, Amount: 10}, true},
		{"line misaligned", Bet{Type: BetLine, Numbers: []int{17, 18, 19, 20, 21, 22}, Amount: 10}, false},

		{"column", Bet{Type: BetColumn, Value: "3", Amount: 10}, true},
		{"column bad index", Bet{Type: BetColumn, Value: "4", Amount: 10}, false},
		{"column with numbers", Bet{Type: BetColumn, Value: "1", Numbers: []int{1}, Amount: 10}, false},
		{"dozen", Bet{Type: BetDozen, Value: "2", Amount: 10}, true},
		{"dozen empty index", Bet{Type: BetDozen, Amount: 10}, false},

		{"red", Bet{Type: BetRed, Amount: 10}, true},
		{"red with numbers", Bet{Type: BetRed, Numbers: []int{1}, Amount: 10}, false},
		{"black", Bet{Type: BetBlack, Amount: 10}, true},
		{"even", Bet{Type: BetEven, Amount: 10}, true},
		{"odd", Bet{Type: BetOdd, Amount: 10}, true},
		{"low", Bet{Type: BetLow, Amount: 10}, true},
		{"high", Bet{Type: BetHigh, Amount: 10}, true},

		{"unknown type", Bet{Type: "snake", Amount: 10}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateBet(tc.bet)
			if tc.valid && err != nil {
				t.Errorf("Expected valid, got %v", err)
			}
			if !tc.valid && err == nil {
				t.Error("Expected rejection, bet accepted")
			}

			// Re-validating must give the same answer; validation is a pure
			// function of the bet value.
			again := ValidateBet(tc.bet)
			if (err == nil) != (again == nil) {
				t.Error("Validation is not stable across calls")
			}
		})
	}
}

func TestPayout_Multipliers(t *testing.T) {
	cases := []struct {
		bet    Bet
		payout int64
	}{
		{Bet{Type: BetStraight, Numbers: []int{17}, Amount: 10}, 360},
		{Bet{Type: BetSplit, Numbers: []int{16, 17}, Amount: 10}, 180},
		{Bet{Type: BetStreet, Numbers: []int{16, 17, 18}, Amount: 10}, 120},
		{Bet{Type: BetCorner, Numbers: []int{16, 17, 19, 20}, Amount: 10}, 90},
		{Bet{Type: BetLine, Numbers: []int{16, 17, 18, 19, 20, 21}, Amount: 10}, 60},
		{Bet{Type: BetColumn, Value: "1", Amount: 10}, 30},
		{Bet{Type: BetDozen, Value: "1", Amount: 10}, 30},
		{Bet{Type: BetRed, Amount: 10}, 20},
		{Bet{Type: BetHigh, Amount: 10}, 20},
	}
	for _, tc := range cases {
		if got := Payout(tc.bet); got != tc.payout {
			t.Errorf("Payout(%s) = %d, want %d", tc.bet.Type, got, tc.payout)
		}
	}
}

func TestResolveRound_StraightSeventeen(t *testing.T) {
	bets := []Bet{{Type: BetStraight, Numbers: []int{17}, Amount: 10}}

	win, err := ResolveRound(bets, 17)
	if err != nil {
		t.Fatalf("ResolveRound failed: %v", err)
	}
	if len(win.Wins) != 1 || win.Wins[0].Payout != 360 {
		t.Fatalf("Expected one win paying 360, got %+v", win.Wins)
	}
	if win.TotalPayout != 360 || win.TotalStake != 10 || win.Net != 350 {
		t.Errorf("Unexpected totals: %+v", win)
	}

	lose, err := ResolveRound(bets, 0)
	if err != nil {
		t.Fatalf("ResolveRound failed: %v", err)
	}
	if len(lose.Wins) != 0 || lose.TotalPayout != 0 {
		t.Errorf("Straight 17 must lose against 0, got %+v", lose)
	}
}

func TestResolveRound_Totals(t *testing.T) {
	bets := []Bet{
		{Type: BetStraight, Numbers: []int{5}, Amount: 25},
		{Type: BetRed, Amount: 40},
		{Type: BetDozen, Value: "1", Amount: 15},
	}

	for n := MinNumber; n <= MaxNumber; n++ {
		r, err := ResolveRound(bets, n)
		if err != nil {
			t.Fatalf("ResolveRound(%d) failed: %v", n, err)
		}
		if r.TotalStake != 80 {
			t.Errorf("TotalStake for %d = %d, want 80", n, r.TotalStake)
		}
		if r.Net != r.TotalPayout-r.TotalStake {
			t.Errorf("Net inconsistent for %d: %+v", n, r)
		}
	}
}

func TestMaxPossibleNet_OppositeColors(t *testing.T) {
	bets := []Bet{
		{Type: BetBlack, Amount: 10},
		{Type: BetRed, Amount: 10},
	}
	if got := MaxPossibleNet(bets); got != 0 {
		t.Errorf("MaxPossibleNet(red+black) = %d, want 0", got)
	}
}

func TestMaxPossibleNet_DominatesEveryOutcome(t *testing.T) {
	bets := []Bet{
		{Type: BetStraight, Numbers: []int{17}, Amount: 10},
		{Type: BetBlack, Amount: 30},
		{Type: BetColumn, Value: "3", Amount: 20},
		{Type: BetLow, Amount: 5},
	}
	max := MaxPossibleNet(bets)
	for n := MinNumber; n <= MaxNumber; n++ {
		r, _ := ResolveRound(bets, n)
		if r.Net > max {
			t.Errorf("Outcome %d nets %d, above simulated max %d", n, r.Net, max)
		}
	}
	// 17 wins all four bets at once; the max must be reachable.
	r, _ := ResolveRound(bets, 17)
	if r.Net != max {
		t.Errorf("Expected max %d to be achieved on 17, got %d", max, r.Net)
	}
}
