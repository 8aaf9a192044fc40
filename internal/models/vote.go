package models

// ItemKind names one of the two voteable entity kinds.
type ItemKind string

const (
	ItemPost    ItemKind = "post"
	ItemComment ItemKind = "comment"
)

// VoteDirection is the polarity of a vote.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// Opposite returns the other direction.
func (d VoteDirection) Opposite() VoteDirection {
	if d == VoteUp {
		return VoteDown
	}
	return VoteUp
}

// Noun is the word used in user-facing messages ("upvote", "downvote").
func (d VoteDirection) Noun() string {
	return string(d) + "vote"
}

// Voters is the vote state of one item: counters and voter sets.
type Voters struct {
	Upvotes    int
	Downvotes  int
	Upvoters   map[string]bool
	Downvoters map[string]bool
}

// Set returns the voter set for the given direction.
func (v Voters) Set(d VoteDirection) map[string]bool {
	if d == VoteUp {
		return v.Upvoters
	}
	return v.Downvoters
}

// Count returns the counter for the given direction.
func (v Voters) Count(d VoteDirection) int {
	if d == VoteUp {
		return v.Upvotes
	}
	return v.Downvotes
}

// Has reports whether username holds a vote in direction d.
func (v Voters) Has(d VoteDirection, username string) bool {
	return v.Set(d)[username]
}

// DuplicateVotePolicy decides what a repeated same-direction vote does.
type DuplicateVotePolicy string

const (
	// DuplicateIgnore answers a repeated vote with success and changes nothing.
	DuplicateIgnore DuplicateVotePolicy = "ignore"
	// DuplicateConflict rejects a repeated vote with a conflict error.
	DuplicateConflict DuplicateVotePolicy = "conflict"
)
