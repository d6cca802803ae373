package roulette

// Result is the resolution of one round's bet set against a single outcome.
type Result struct {
	Outcome     Outcome     `json:"outcome"`
	TotalStake  int64       `json:"total_stake"`
	TotalPayout int64       `json:"total_payout"`
	Net         int64       `json:"net"`
	Wins        []WinRecord `json:"wins"`
}

// ResolveRound classifies the outcome once and evaluates every bet against it.
func ResolveRound(bets []Bet, number int) (Result, error) {
	outcome, err := Classify(number)
	if err != nil {
		return Result{}, err
	}

	r := Result{Outcome: outcome}
	for _, b := range bets {
		r.TotalStake += b.Amount
		if IsWinning(b, outcome) {
			p := Payout(b)
			r.TotalPayout += p
			r.Wins = append(r.Wins, WinRecord{Bet: b, Payout: p})
		}
	}
	r.Net = r.TotalPayout - r.TotalStake
	return r, nil
}

// MaxPossibleNet simulates every pocket and returns the best achievable net
// result for the bet set. Mutually exclusive bets (red and black together)
// are accounted for naturally because each pocket is tried on its own.
func MaxPossibleNet(bets []Bet) int64 {
	var totalStake int64
	for _, b := range bets {
		totalStake += b.Amount
	}

	best := -totalStake
	for n := MinNumber; n <= MaxNumber; n++ {
		outcome, _ := Classify(n)
		var payout int64
		for _, b := range bets {
			if IsWinning(b, outcome) {
				payout += Payout(b)
			}
		}
		if net := payout - totalStake; net > best {
			best = net
		}
	}
	return best
}
