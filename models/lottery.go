package models

// LotteryEntrant is one paid entry in the current lottery pot.
type LotteryEntrant struct {
	MemberID    int64  `json:"member_id"`
	DisplayName string `json:"display_name"`
}

// LotteryPot is the singleton list of entrants, cleared after each draw.
type LotteryPot struct {
	Entrants []LotteryEntrant
}

// HasEntrant reports whether the member already bought into the pot.
func (p *LotteryPot) HasEntrant(memberID int64) bool {
	for _, e := range p.Entrants {
		if e.MemberID == memberID {
			return true
		}
	}
	return false
}
